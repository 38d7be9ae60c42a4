package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/letsbefriends/platform/internal/app/domain/booking"
	"github.com/letsbefriends/platform/internal/app/domain/offering"
	"github.com/letsbefriends/platform/internal/app/services/payments"
	apperrors "github.com/letsbefriends/platform/internal/errors"
	"github.com/letsbefriends/platform/internal/httputil"
)

// maxWebhookBody bounds provider webhook payloads.
const maxWebhookBody = 1 << 20

func (h *handler) registerOfferings(r *mux.Router) {
	r.HandleFunc("/services/categories", h.serviceCategories).Methods(http.MethodGet)
	r.HandleFunc("/services", h.listServices).Methods(http.MethodGet)
	r.HandleFunc("/services", h.createService).Methods(http.MethodPost)
	r.HandleFunc("/services/{id}", h.getService).Methods(http.MethodGet)
	r.HandleFunc("/services/{id}", h.updateService).Methods(http.MethodPatch)
	r.HandleFunc("/services/{id}", h.deleteService).Methods(http.MethodDelete)
	r.HandleFunc("/services/{id}/reviews", h.serviceReviews).Methods(http.MethodGet)
}

func (h *handler) serviceCategories(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	cats, err := h.app.Offerings.Categories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(cats))
}

// listServices lists active offerings. Providers listing their own see
// inactive ones too.
func (h *handler) listServices(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	filter := offering.Filter{
		Category:   q.Get("category"),
		ProviderID: q.Get("provider_id"),
		Query:      q.Get("q"),
		ActiveOnly: true,
		Limit:      limit,
	}
	if filter.ProviderID != "" && filter.ProviderID == userID {
		filter.ActiveOnly = false
	}
	found, err := h.app.Offerings.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(found))
}

func (h *handler) createService(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		Title           string   `json:"title"`
		Description     string   `json:"description"`
		Category        string   `json:"category"`
		Price           int64    `json:"price"`
		Currency        string   `json:"currency"`
		DurationMinutes int      `json:"duration_minutes"`
		ImageURLs       []string `json:"image_urls"`
		City            string   `json:"city"`
		Latitude        *float64 `json:"latitude"`
		Longitude       *float64 `json:"longitude"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	o, err := h.app.Offerings.Create(r.Context(), userID, offering.Offering{
		Title:           payload.Title,
		Description:     payload.Description,
		Category:        payload.Category,
		Price:           payload.Price,
		Currency:        payload.Currency,
		DurationMinutes: payload.DurationMinutes,
		ImageURLs:       payload.ImageURLs,
		City:            payload.City,
		Latitude:        payload.Latitude,
		Longitude:       payload.Longitude,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, o)
}

func (h *handler) getService(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	o, err := h.app.Offerings.Get(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !o.Active && o.ProviderID != userID {
		h.writeError(w, r, apperrors.NotFound("service", o.ID))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *handler) updateService(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var patch offering.Patch
	if !httputil.DecodeJSON(w, r, &patch) {
		return
	}
	o, err := h.app.Offerings.Update(r.Context(), userID, pathVar(r, "id"), patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *handler) deleteService(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.app.Offerings.Delete(r.Context(), userID, pathVar(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) serviceReviews(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	found, err := h.app.Reviews.ListForOffering(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(found))
}

func (h *handler) registerBookings(r *mux.Router) {
	r.HandleFunc("/bookings", h.requestBooking).Methods(http.MethodPost)
	r.HandleFunc("/bookings", h.listBookings).Methods(http.MethodGet)
	r.HandleFunc("/bookings/{id}", h.getBooking).Methods(http.MethodGet)
	r.HandleFunc("/bookings/{id}/checkout", h.checkout).Methods(http.MethodPost)
	r.HandleFunc("/bookings/{id}/{action:accept|decline|cancel|complete}", h.transitionBooking).Methods(http.MethodPost)
	r.HandleFunc("/reviews", h.createReview).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/reviews", h.providerReviews).Methods(http.MethodGet)
}

func (h *handler) requestBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		ServiceID   string    `json:"service_id"`
		ScheduledAt time.Time `json:"scheduled_at"`
		Notes       string    `json:"notes"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	b, err := h.app.Bookings.Request(r.Context(), userID, payload.ServiceID, payload.ScheduledAt, payload.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, b)
}

// listBookings lists the caller's bookings as client (default) or provider.
func (h *handler) listBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	status := booking.Status(r.URL.Query().Get("status"))
	switch status {
	case "", booking.StatusPending, booking.StatusAccepted, booking.StatusDeclined,
		booking.StatusPaid, booking.StatusCompleted, booking.StatusCancelled:
	default:
		h.writeError(w, r, apperrors.Validation("unknown booking status").WithDetails("status", string(status)))
		return
	}
	var (
		found []booking.Booking
		err   error
	)
	switch role := booking.Role(r.URL.Query().Get("role")); role {
	case "", booking.RoleClient:
		found, err = h.app.Bookings.ListForClient(r.Context(), userID, status)
	case booking.RoleProvider:
		found, err = h.app.Bookings.ListForProvider(r.Context(), userID, status)
	default:
		err = apperrors.Validation("role must be client or provider")
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(found))
}

func (h *handler) getBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	b, err := h.app.Bookings.Get(r.Context(), userID, pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

func (h *handler) transitionBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		Reason string `json:"reason"`
	}
	if !decodeOptional(w, r, &payload) {
		return
	}
	var (
		b   booking.Booking
		err error
		id  = pathVar(r, "id")
		ctx = r.Context()
	)
	switch pathVar(r, "action") {
	case "accept":
		b, err = h.app.Bookings.Accept(ctx, userID, id)
	case "decline":
		b, err = h.app.Bookings.Decline(ctx, userID, id, payload.Reason)
	case "cancel":
		b, err = h.app.Bookings.Cancel(ctx, userID, id, payload.Reason)
	case "complete":
		b, err = h.app.Bookings.Complete(ctx, userID, id)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

func (h *handler) checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	b, err := h.app.Payments.CreateCheckout(r.Context(), userID, pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, b)
}

func (h *handler) createReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		BookingID string `json:"booking_id"`
		Rating    int    `json:"rating"`
		Comment   string `json:"comment"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	rv, err := h.app.Reviews.Create(r.Context(), userID, payload.BookingID, payload.Rating, payload.Comment)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, rv)
}

func (h *handler) providerReviews(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	found, err := h.app.Reviews.ListForProvider(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(found))
}

// paymentWebhook applies a provider event. It sits outside authentication;
// the body signature is the credential.
func (h *handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadAllStrict(r.Body, maxWebhookBody)
	if err != nil {
		httputil.WriteErrorResponse(w, r, http.StatusRequestEntityTooLarge, string(apperrors.CodeValidation), "webhook body too large", nil)
		return
	}
	outcome, err := h.app.Payments.HandleWebhook(r.Context(), body, r.Header.Get(payments.SignatureHeader))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}
