// Package runtime assembles the process: configuration, storage, cache,
// authentication and the HTTP server around the application services.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	app "github.com/letsbefriends/platform/internal/app"
	"github.com/letsbefriends/platform/internal/app/httpapi"
	"github.com/letsbefriends/platform/internal/app/services/payments"
	"github.com/letsbefriends/platform/internal/app/services/uploads"
	"github.com/letsbefriends/platform/internal/app/storage/postgres"
	"github.com/letsbefriends/platform/internal/cache"
	"github.com/letsbefriends/platform/internal/config"
	"github.com/letsbefriends/platform/internal/logging"
	"github.com/letsbefriends/platform/internal/middleware"
	"github.com/letsbefriends/platform/internal/platform/database"
	"github.com/letsbefriends/platform/internal/platform/migrations"
	"github.com/letsbefriends/platform/pkg/logger"
)

const (
	providerTimeout = 15 * time.Second
	limiterSweep    = time.Minute
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	app     *app.Application
	handler http.Handler
	server  *http.Server
	db      *sqlx.DB
	redis   *cache.Redis
}

// NewApplication builds the process from cfg. Without a database DSN the
// in-memory stores are used.
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	log := logger.New(cfg.Logging.Logger())
	a := &Application{cfg: cfg, log: log}

	stores, err := a.buildStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}
	plans, err := config.LoadPlans(cfg.PlansFile)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	c, err := a.buildCache(ctx)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("configure cache: %w", err)
	}

	application, err := app.New(stores, app.Options{
		Plans:    plans,
		Cache:    c,
		CacheTTL: cfg.Redis.CacheTTL,
		Currency: cfg.Payments.Currency,
		Payments: paymentProvider(cfg.Payments),
		PaymentConfig: payments.Config{
			WebhookSecret: cfg.Payments.WebhookSecret,
			Mapping: payments.Mapping{
				EventPath:     cfg.Payments.EventPath,
				ReferencePath: cfg.Payments.ReferencePath,
				StatusPath:    cfg.Payments.StatusPath,
			},
		},
		Uploads: uploads.Config{
			BaseURL:  cfg.Uploads.BaseURL,
			Secret:   cfg.Uploads.Secret,
			TTL:      cfg.Uploads.TTL,
			MaxBytes: cfg.Uploads.MaxBytes,
		},
		SweepSpec:      cfg.Scheduler.BookingSweepSpec,
		RealtimeBuffer: cfg.Server.RealtimeBuffer,
	}, log)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	a.app = application

	httpLog := logging.Wrap(log.Named("http"))
	authCfg, err := authConfig(cfg.Auth)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	auth, err := middleware.NewAuthMiddleware(authCfg, application.Users, httpLog)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, httpLog)
		if err := application.Attach(&limiterJanitor{limiter: limiter}); err != nil {
			a.closeResources()
			return nil, err
		}
	}

	handler, err := httpapi.NewRouter(application, httpapi.Config{
		Auth:         auth,
		RateLimiter:  limiter,
		CORSOrigins:  cfg.Server.AllowedOrigins(),
		Logger:       httpLog,
		AuditLogPath: cfg.AuditLogPath,
	})
	if err != nil {
		a.closeResources()
		return nil, err
	}
	a.handler = handler
	a.server = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	return a, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *Application) Handler() http.Handler {
	return a.handler
}

// Services lists the lifecycle-managed background services.
func (a *Application) Services() []string {
	return a.app.Services()
}

// Run starts background services and the HTTP server, and blocks until ctx
// is cancelled or the server fails. Cancellation triggers a graceful
// shutdown bounded by the configured timeout.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", a.server.Addr).Info("HTTP server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		timeout := a.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	case err := <-errCh:
		_ = a.Shutdown(context.Background())
		return fmt.Errorf("http server: %w", err)
	}
}

// Shutdown stops the HTTP server, the background services and closes
// connections.
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.app.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop services: %w", err))
	}
	a.closeResources()
	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *Application) closeResources() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
		a.redis = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
		a.db = nil
	}
}

func (a *Application) buildStores(ctx context.Context) (app.Stores, error) {
	dbCfg := a.cfg.Database
	if strings.TrimSpace(dbCfg.DSN) == "" {
		a.log.Warn("DATABASE_URL not set; using in-memory storage")
		return app.Stores{}, nil
	}
	db, err := database.Open(ctx, database.Options{
		Driver:          dbCfg.Driver,
		DSN:             dbCfg.DSN,
		MaxOpenConns:    dbCfg.MaxOpenConns,
		MaxIdleConns:    dbCfg.MaxIdleConns,
		ConnMaxLifetime: dbCfg.ConnMaxLifetime,
	})
	if err != nil {
		return app.Stores{}, err
	}
	a.db = db
	if dbCfg.MigrateOnStart {
		if err := migrations.Apply(ctx, db); err != nil {
			return app.Stores{}, fmt.Errorf("apply migrations: %w", err)
		}
		a.log.Info("database migrations applied")
	}
	return app.StoresFrom(postgres.New(db)), nil
}

// buildCache returns a redis cache when configured, nil otherwise so the
// application falls back to its in-process cache.
func (a *Application) buildCache(ctx context.Context) (cache.Cache, error) {
	if a.cfg.Redis.Addr == "" {
		return nil, nil
	}
	r, err := cache.NewRedis(ctx, cache.RedisConfig{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
		Prefix:   "lbf:",
	})
	if err != nil {
		return nil, err
	}
	a.redis = r
	return r, nil
}

// authConfig prefers an RSA public key over the shared secret.
func authConfig(cfg config.AuthConfig) (middleware.AuthConfig, error) {
	out := middleware.AuthConfig{Issuer: cfg.Issuer, Audience: cfg.Audience}
	switch {
	case strings.TrimSpace(cfg.PublicKeyPEM) != "":
		key, err := middleware.ParseRSAPublicKey(cfg.PublicKeyPEM)
		if err != nil {
			return out, err
		}
		out.PublicKey = key
	case cfg.HMACSecret != "":
		out.HMACSecret = []byte(cfg.HMACSecret)
	default:
		return out, errors.New("AUTH_JWT_SECRET or AUTH_JWT_PUBLIC_KEY is required")
	}
	return out, nil
}

func paymentProvider(cfg config.PaymentsConfig) payments.Provider {
	if cfg.ProviderURL == "" {
		return nil
	}
	return payments.NewHTTPProvider(cfg.ProviderURL, cfg.APIKey, providerTimeout)
}

// limiterJanitor evicts idle rate limiter entries in the background.
type limiterJanitor struct {
	limiter *middleware.RateLimiter
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func (j *limiterJanitor) Name() string { return "rate-limiter" }

func (j *limiterJanitor) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	j.cancel = cancel
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.limiter.Run(runCtx, limiterSweep)
	}()
	return nil
}

func (j *limiterJanitor) Stop(context.Context) error {
	if j.cancel != nil {
		j.cancel()
		j.wg.Wait()
	}
	return nil
}
