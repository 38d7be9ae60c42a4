package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/letsbefriends/platform/internal/app/domain/booking"
	"github.com/letsbefriends/platform/internal/app/domain/notification"
	"github.com/letsbefriends/platform/internal/app/metrics"
	"github.com/letsbefriends/platform/internal/app/services/notifications"
	"github.com/letsbefriends/platform/internal/app/storage"
	apperrors "github.com/letsbefriends/platform/internal/errors"
	"github.com/letsbefriends/platform/pkg/logger"
)

const (
	maxNotes  = 1000
	maxReason = 500
	// ReasonExpired is recorded when the sweeper cancels an overdue booking.
	ReasonExpired = "expired"
)

// Service runs the booking lifecycle. Every status change goes through
// transition, which consults the booking transition table.
type Service struct {
	store     storage.BookingStore
	offerings storage.OfferingStore
	notifier  notifications.Sender
	now       func() time.Time
	log       *logger.Logger
}

// New constructs a booking service. notifier may be nil.
func New(store storage.BookingStore, offerings storage.OfferingStore, notifier notifications.Sender, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("bookings")
	}
	return &Service{
		store:     store,
		offerings: offerings,
		notifier:  notifier,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
	}
}

// Request books an offering for clientID. Price and duration are copied from
// the offering.
func (s *Service) Request(ctx context.Context, clientID, offeringID string, scheduledAt time.Time, notes string) (booking.Booking, error) {
	offeringID = strings.TrimSpace(offeringID)
	notes = strings.TrimSpace(notes)
	if offeringID == "" {
		return booking.Booking{}, apperrors.Validation("offering_id is required")
	}
	if scheduledAt.IsZero() || !scheduledAt.After(s.now()) {
		return booking.Booking{}, apperrors.Validation("scheduled_at must be in the future")
	}
	if utf8.RuneCountInString(notes) > maxNotes {
		return booking.Booking{}, apperrors.Validation(fmt.Sprintf("notes must be at most %d characters", maxNotes))
	}

	o, err := s.offerings.GetOffering(ctx, offeringID)
	if err != nil {
		return booking.Booking{}, err
	}
	if !o.Active {
		return booking.Booking{}, apperrors.InvalidState("offering is not accepting bookings")
	}
	if o.ProviderID == clientID {
		return booking.Booking{}, apperrors.Validation("you cannot book your own service")
	}

	now := s.now()
	created, err := s.store.CreateBooking(ctx, booking.Booking{
		OfferingID:      o.ID,
		ClientID:        clientID,
		ProviderID:      o.ProviderID,
		ScheduledAt:     scheduledAt.UTC(),
		DurationMinutes: o.DurationMinutes,
		Notes:           notes,
		Amount:          o.Price,
		Currency:        o.Currency,
		Status:          booking.StatusPending,
		PaymentStatus:   booking.PaymentNone,
		History: []booking.Transition{{
			To: booking.StatusPending, Actor: clientID, Role: booking.RoleClient, At: now,
		}},
		CreatedAt: now,
	})
	if err != nil {
		return booking.Booking{}, err
	}
	metrics.RecordBookingTransition(string(booking.StatusPending), string(booking.RoleClient))
	s.log.WithField("booking_id", created.ID).
		WithField("offering_id", o.ID).
		WithField("client_id", clientID).
		Info("booking requested")
	s.notify(ctx, created.ProviderID, clientID, notification.TypeBookingRequest, created.ID,
		fmt.Sprintf("requested %q", o.Title))
	return created, nil
}

// Accept confirms a pending booking. Provider only.
func (s *Service) Accept(ctx context.Context, actorID, id string) (booking.Booking, error) {
	return s.act(ctx, actorID, id, booking.StatusAccepted, "")
}

// Decline rejects a pending booking. Provider only.
func (s *Service) Decline(ctx context.Context, actorID, id, reason string) (booking.Booking, error) {
	return s.act(ctx, actorID, id, booking.StatusDeclined, reason)
}

// Cancel cancels a booking on behalf of either participant, as the
// transition table allows. Cancelling a paid booking marks the payment
// refund_due.
func (s *Service) Cancel(ctx context.Context, actorID, id, reason string) (booking.Booking, error) {
	return s.act(ctx, actorID, id, booking.StatusCancelled, reason)
}

// Complete closes a paid booking. Provider only.
func (s *Service) Complete(ctx context.Context, actorID, id string) (booking.Booking, error) {
	return s.act(ctx, actorID, id, booking.StatusCompleted, "")
}

// MarkPaid records a confirmed payment. Repeating it with the same
// reference is a no-op.
func (s *Service) MarkPaid(ctx context.Context, id, paymentRef string) (booking.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return booking.Booking{}, err
	}
	if b.Status == booking.StatusPaid {
		if paymentRef == "" || b.PaymentRef == paymentRef {
			return b, nil
		}
		return booking.Booking{}, apperrors.Conflict("booking was paid with another reference")
	}
	return s.transition(ctx, b, booking.StatusPaid, booking.RolePayment, "", "", func(b *booking.Booking) {
		b.PaymentStatus = booking.PaymentPaid
		if paymentRef != "" {
			b.PaymentRef = paymentRef
		}
	})
}

// MarkPaymentFailed flags a failed or expired checkout. The booking stays
// accepted so the client can retry.
func (s *Service) MarkPaymentFailed(ctx context.Context, id string) (booking.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return booking.Booking{}, err
	}
	if b.Status != booking.StatusAccepted || b.PaymentStatus == booking.PaymentFailed {
		return b, nil
	}
	b.PaymentStatus = booking.PaymentFailed
	updated, err := s.store.UpdateBooking(ctx, b, booking.StatusAccepted)
	if err != nil {
		return booking.Booking{}, mapConflict(err)
	}
	s.log.WithField("booking_id", id).Warn("booking payment failed")
	s.notify(ctx, updated.ClientID, "", notification.TypeBookingUpdate, id, "payment failed, please try again")
	return updated, nil
}

// AttachCheckout stores the checkout started for an accepted booking.
func (s *Service) AttachCheckout(ctx context.Context, b booking.Booking, paymentRef, checkoutURL string) (booking.Booking, error) {
	if b.Status != booking.StatusAccepted {
		return booking.Booking{}, apperrors.InvalidState(fmt.Sprintf("booking is %s, checkout needs accepted", b.Status))
	}
	b.PaymentRef = paymentRef
	b.CheckoutURL = checkoutURL
	b.PaymentStatus = booking.PaymentAwaiting
	updated, err := s.store.UpdateBooking(ctx, b, booking.StatusAccepted)
	if err != nil {
		return booking.Booking{}, mapConflict(err)
	}
	s.log.WithField("booking_id", b.ID).WithField("payment_ref", paymentRef).Info("checkout attached")
	return updated, nil
}

// Get returns a booking to one of its participants.
func (s *Service) Get(ctx context.Context, actorID, id string) (booking.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return booking.Booking{}, err
	}
	if b.RoleOf(actorID) == "" {
		return booking.Booking{}, apperrors.Forbidden("not a participant of this booking")
	}
	return b, nil
}

// Find returns a booking without a participant check, for internal callers.
func (s *Service) Find(ctx context.Context, id string) (booking.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

// FindByPaymentRef resolves the booking a provider reference belongs to.
func (s *Service) FindByPaymentRef(ctx context.Context, ref string) (booking.Booking, error) {
	return s.store.GetBookingByPaymentRef(ctx, ref)
}

// ListForClient lists the client's bookings, optionally by status.
func (s *Service) ListForClient(ctx context.Context, clientID string, status booking.Status) ([]booking.Booking, error) {
	if err := validStatusFilter(status); err != nil {
		return nil, err
	}
	return s.store.ListBookingsForClient(ctx, clientID, status)
}

// ListForProvider lists bookings of the provider's offerings, optionally by
// status.
func (s *Service) ListForProvider(ctx context.Context, providerID string, status booking.Status) ([]booking.Booking, error) {
	if err := validStatusFilter(status); err != nil {
		return nil, err
	}
	return s.store.ListBookingsForProvider(ctx, providerID, status)
}

// ExpireOverdue cancels pending and accepted bookings whose scheduled time
// has passed and returns how many were cancelled.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	overdue, err := s.store.ListExpiredBookings(ctx, s.now())
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, b := range overdue {
		if _, err := s.transition(ctx, b, booking.StatusCancelled, booking.RoleSystem, "", ReasonExpired, nil); err != nil {
			if apperrors.HasCode(err, apperrors.CodeInvalidState) {
				// Moved on since it was listed.
				continue
			}
			return expired, err
		}
		expired++
	}
	if expired > 0 {
		s.log.WithField("count", expired).Info("overdue bookings expired")
	}
	return expired, nil
}

func (s *Service) act(ctx context.Context, actorID, id string, to booking.Status, reason string) (booking.Booking, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > maxReason {
		return booking.Booking{}, apperrors.Validation(fmt.Sprintf("reason must be at most %d characters", maxReason))
	}
	b, err := s.Get(ctx, actorID, id)
	if err != nil {
		return booking.Booking{}, err
	}
	return s.transition(ctx, b, to, b.RoleOf(actorID), actorID, reason, nil)
}

// transition validates and persists one status change, then records it and
// notifies the other side.
func (s *Service) transition(ctx context.Context, b booking.Booking, to booking.Status, role booking.Role, actorID, reason string, mutate func(*booking.Booking)) (booking.Booking, error) {
	from := b.Status
	if !booking.Reachable(from, to) {
		return booking.Booking{}, apperrors.InvalidState(fmt.Sprintf("cannot move booking from %s to %s", from, to)).
			WithDetails("from", from).
			WithDetails("to", to)
	}
	if !booking.CanTransition(from, to, role) {
		return booking.Booking{}, apperrors.Forbidden(fmt.Sprintf("%s cannot move booking from %s to %s", roleName(role), from, to))
	}

	now := s.now()
	b.Status = to
	b.History = append(b.History, booking.Transition{
		From: from, To: to, Actor: actorID, Role: role, Reason: reason, At: now,
	})
	if to == booking.StatusCancelled || to == booking.StatusDeclined {
		b.CancelReason = reason
	}
	if to == booking.StatusCancelled {
		b.CancelledBy = string(role)
		if from == booking.StatusPaid {
			b.PaymentStatus = booking.PaymentRefundDue
		}
	}
	if mutate != nil {
		mutate(&b)
	}

	updated, err := s.store.UpdateBooking(ctx, b, from)
	if err != nil {
		return booking.Booking{}, mapConflict(err)
	}
	metrics.RecordBookingTransition(string(to), string(role))
	s.log.WithField("booking_id", b.ID).
		WithField("from", from).
		WithField("to", to).
		WithField("role", role).
		Info("booking transitioned")

	message := fmt.Sprintf("booking %s", to)
	switch role {
	case booking.RoleClient:
		s.notify(ctx, updated.ProviderID, actorID, notification.TypeBookingUpdate, updated.ID, message)
	case booking.RoleProvider:
		s.notify(ctx, updated.ClientID, actorID, notification.TypeBookingUpdate, updated.ID, message)
	case booking.RolePayment:
		s.notify(ctx, updated.ProviderID, "", notification.TypeBookingUpdate, updated.ID, "booking paid")
		s.notify(ctx, updated.ClientID, "", notification.TypeBookingUpdate, updated.ID, "payment received")
	default:
		s.notify(ctx, updated.ClientID, "", notification.TypeBookingUpdate, updated.ID, message)
		s.notify(ctx, updated.ProviderID, "", notification.TypeBookingUpdate, updated.ID, message)
	}
	return updated, nil
}

func (s *Service) notify(ctx context.Context, userID, actorID string, kind notification.Type, bookingID, message string) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, notification.Notification{
		UserID:   userID,
		ActorID:  actorID,
		Type:     kind,
		EntityID: bookingID,
		Message:  message,
	}); err != nil {
		s.log.WithError(err).WithField("booking_id", bookingID).Warn("booking notification failed")
	}
}

func mapConflict(err error) error {
	if errors.Is(err, storage.ErrConflict) {
		return apperrors.InvalidState("booking was changed by another request")
	}
	return err
}

func validStatusFilter(status booking.Status) error {
	switch status {
	case "", booking.StatusPending, booking.StatusAccepted, booking.StatusDeclined,
		booking.StatusPaid, booking.StatusCompleted, booking.StatusCancelled:
		return nil
	}
	return apperrors.Validation(fmt.Sprintf("unknown booking status %q", status))
}

func roleName(r booking.Role) string {
	if r == "" {
		return "non-participant"
	}
	return string(r)
}
