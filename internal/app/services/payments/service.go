package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/letsbefriends/platform/internal/app/domain/booking"
	"github.com/letsbefriends/platform/internal/app/metrics"
	"github.com/letsbefriends/platform/internal/app/services/bookings"
	"github.com/letsbefriends/platform/internal/app/storage"
	apperrors "github.com/letsbefriends/platform/internal/errors"
	"github.com/letsbefriends/platform/pkg/logger"
)

// Config configures the payment service.
type Config struct {
	WebhookSecret string
	Mapping       Mapping
}

// Service starts checkouts for accepted bookings and applies provider
// webhooks.
type Service struct {
	bookings *bookings.Service
	provider Provider
	cfg      Config
	log      *logger.Logger
}

// New constructs a payment service. A nil provider means LocalProvider.
func New(bookingSvc *bookings.Service, provider Provider, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("payments")
	}
	if provider == nil {
		provider = LocalProvider{}
	}
	if cfg.Mapping == (Mapping{}) {
		cfg.Mapping = DefaultMapping()
	}
	return &Service{bookings: bookingSvc, provider: provider, cfg: cfg, log: log}
}

// CreateCheckout starts a checkout for an accepted booking. Only the client
// may pay.
func (s *Service) CreateCheckout(ctx context.Context, actorID, bookingID string) (booking.Booking, error) {
	b, err := s.bookings.Get(ctx, actorID, bookingID)
	if err != nil {
		return booking.Booking{}, err
	}
	if b.ClientID != actorID {
		return booking.Booking{}, apperrors.Forbidden("only the client can pay for a booking")
	}
	if b.Status != booking.StatusAccepted {
		return booking.Booking{}, apperrors.InvalidState(fmt.Sprintf("booking is %s, checkout needs accepted", b.Status))
	}
	if b.PaymentStatus == booking.PaymentAwaiting && b.CheckoutURL != "" {
		return b, nil
	}

	session, err := s.provider.CreateCheckout(ctx, CheckoutRequest{
		Reference:   b.ID,
		Amount:      b.Amount,
		Currency:    b.Currency,
		Description: fmt.Sprintf("Booking %s", b.ID),
	})
	if err != nil {
		s.log.WithError(err).WithField("booking_id", b.ID).Error("checkout failed")
		return booking.Booking{}, apperrors.Unavailable("payment provider unavailable", err)
	}
	updated, err := s.bookings.AttachCheckout(ctx, b, session.ID, session.CheckoutURL)
	if err != nil {
		return booking.Booking{}, err
	}
	s.log.WithField("booking_id", b.ID).WithField("payment_ref", session.ID).Info("checkout created")
	return updated, nil
}

// HandleWebhook verifies and applies one provider event. Unknown references,
// irrelevant events and events for bookings that moved on are acknowledged
// without error. Without a configured secret every event is rejected.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) (Outcome, error) {
	if s.cfg.WebhookSecret == "" {
		metrics.RecordWebhookEvent(string(OutcomeRejected))
		s.log.Error("webhook rejected; no webhook secret configured")
		return OutcomeRejected, apperrors.Unauthorized("webhook signing is not configured")
	}
	if !VerifySignature(s.cfg.WebhookSecret, body, signature) {
		metrics.RecordWebhookEvent(string(OutcomeRejected))
		s.log.Warn("webhook signature rejected")
		return OutcomeRejected, apperrors.Unauthorized("invalid webhook signature")
	}

	ev, err := s.cfg.Mapping.Extract(body)
	if err != nil {
		metrics.RecordWebhookEvent(string(OutcomeRejected))
		return OutcomeRejected, apperrors.Validation(err.Error())
	}

	outcome := ev.Classify()
	entry := s.log.WithField("payment_ref", ev.Reference).WithField("event", ev.Type).WithField("status", ev.Status)
	if outcome == OutcomeIgnored {
		metrics.RecordWebhookEvent(string(outcome))
		entry.Info("webhook ignored")
		return outcome, nil
	}

	b, err := s.resolve(ctx, ev.Reference)
	if errors.Is(err, storage.ErrNotFound) {
		metrics.RecordWebhookEvent(string(OutcomeUnknownReference))
		entry.Warn("webhook for unknown payment reference")
		return OutcomeUnknownReference, nil
	}
	if err != nil {
		return "", err
	}

	switch outcome {
	case OutcomePaid:
		ref := b.PaymentRef
		if ref == "" {
			ref = ev.Reference
		}
		_, err = s.bookings.MarkPaid(ctx, b.ID, ref)
	case OutcomeFailed:
		_, err = s.bookings.MarkPaymentFailed(ctx, b.ID)
	}
	if apperrors.HasCode(err, apperrors.CodeInvalidState) {
		metrics.RecordWebhookEvent(string(OutcomeIgnored))
		entry.WithError(err).WithField("booking_id", b.ID).WithField("booking_status", string(b.Status)).
			Warn("webhook ignored; booking no longer accepts payment")
		return OutcomeIgnored, nil
	}
	if err != nil {
		entry.WithError(err).WithField("booking_id", b.ID).Warn("webhook could not be applied")
		return "", err
	}
	metrics.RecordWebhookEvent(string(outcome))
	entry.WithField("booking_id", b.ID).Info("webhook applied")
	return outcome, nil
}

// resolve finds the booking by provider reference, falling back to the
// booking id sent as our own reference.
func (s *Service) resolve(ctx context.Context, ref string) (booking.Booking, error) {
	b, err := s.bookings.FindByPaymentRef(ctx, ref)
	if err == nil || !errors.Is(err, storage.ErrNotFound) {
		return b, err
	}
	b, err = s.bookings.Find(ctx, strings.TrimSpace(ref))
	if err != nil {
		return booking.Booking{}, err
	}
	return b, nil
}
