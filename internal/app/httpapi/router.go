// Package httpapi exposes the application services over JSON/HTTP.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	app "github.com/letsbefriends/platform/internal/app"
	"github.com/letsbefriends/platform/internal/app/metrics"
	"github.com/letsbefriends/platform/internal/httputil"
	"github.com/letsbefriends/platform/internal/logging"
	"github.com/letsbefriends/platform/internal/middleware"
)

// APIPrefix is the path prefix of the versioned API.
const APIPrefix = "/api/v1"

// Config carries the HTTP layer dependencies.
type Config struct {
	Auth        *middleware.AuthMiddleware
	RateLimiter *middleware.RateLimiter
	CORSOrigins []string
	Logger      *logging.Logger
	// AuditLogPath appends one JSON line per mutating request when set.
	AuditLogPath string
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app      *app.Application
	log      *logging.Logger
	audit    *auditLog
	upgrader websocket.Upgrader
}

// NewRouter builds the full HTTP surface. The middleware order is tracing,
// CORS, then per route logging and metrics, then authentication, rate
// limiting and auditing.
func NewRouter(application *app.Application, cfg Config) (http.Handler, error) {
	if application == nil {
		return nil, errors.New("application is required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("auth middleware is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Wrap(nil)
	}
	sink, err := newFileAuditSink(cfg.AuditLogPath)
	if err != nil {
		return nil, err
	}
	cors := middleware.NewCORSMiddleware(cfg.CORSOrigins)
	h := &handler{
		app:      application,
		log:      cfg.Logger,
		audit:    newAuditLog(0, sink),
		upgrader: newUpgrader(cors.Allows),
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.NotFound(w, "route not found")
	})
	r.Use(middleware.LoggingMiddleware(cfg.Logger), middleware.MetricsMiddleware)

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/webhooks/payments", h.paymentWebhook).Methods(http.MethodPost)

	api := r.PathPrefix(APIPrefix).Subrouter()

	public := api.NewRoute().Subrouter()
	public.Use(cfg.Auth.Optional)
	if cfg.RateLimiter != nil {
		public.Use(cfg.RateLimiter.Handler)
	}
	public.HandleFunc("/sites/{handle}", h.publicSite).Methods(http.MethodGet)
	public.HandleFunc("/sites/{handle}/pages/{slug}", h.publicPage).Methods(http.MethodGet)
	public.HandleFunc("/locations", h.listLocations).Methods(http.MethodGet)

	authed := api.NewRoute().Subrouter()
	authed.Use(cfg.Auth.Handler)
	if cfg.RateLimiter != nil {
		authed.Use(cfg.RateLimiter.Handler)
	}
	authed.Use(h.audit.middleware)
	h.registerUsers(authed)
	h.registerPosts(authed)
	h.registerDiscovery(authed)
	h.registerOfferings(authed)
	h.registerBookings(authed)
	h.registerMessaging(authed)
	h.registerNotifications(authed)
	h.registerSites(authed)
	authed.HandleFunc("/uploads", h.createUpload).Methods(http.MethodPost)
	authed.HandleFunc("/ws", h.stream).Methods(http.MethodGet)

	return middleware.TracingMiddleware(cors.Handler(r)), nil
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"services": h.app.Services(),
	})
}
