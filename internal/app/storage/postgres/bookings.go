package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/letsbefriends/platform/internal/app/domain/booking"
	"github.com/letsbefriends/platform/internal/app/storage"
)

const bookingColumns = `id, offering_id, client_id, provider_id, scheduled_at, duration_minutes, notes,
	amount, currency, status, payment_status, payment_ref, checkout_url, cancel_reason, cancelled_by,
	history, created_at, updated_at`

type bookingRow struct {
	ID              string    `db:"id"`
	OfferingID      string    `db:"offering_id"`
	ClientID        string    `db:"client_id"`
	ProviderID      string    `db:"provider_id"`
	ScheduledAt     time.Time `db:"scheduled_at"`
	DurationMinutes int       `db:"duration_minutes"`
	Notes           string    `db:"notes"`
	Amount          int64     `db:"amount"`
	Currency        string    `db:"currency"`
	Status          string    `db:"status"`
	PaymentStatus   string    `db:"payment_status"`
	PaymentRef      string    `db:"payment_ref"`
	CheckoutURL     string    `db:"checkout_url"`
	CancelReason    string    `db:"cancel_reason"`
	CancelledBy     string    `db:"cancelled_by"`
	History         []byte    `db:"history"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r bookingRow) toDomain() booking.Booking {
	b := booking.Booking{
		ID:              r.ID,
		OfferingID:      r.OfferingID,
		ClientID:        r.ClientID,
		ProviderID:      r.ProviderID,
		ScheduledAt:     r.ScheduledAt.UTC(),
		DurationMinutes: r.DurationMinutes,
		Notes:           r.Notes,
		Amount:          r.Amount,
		Currency:        r.Currency,
		Status:          booking.Status(r.Status),
		PaymentStatus:   booking.PaymentStatus(r.PaymentStatus),
		PaymentRef:      r.PaymentRef,
		CheckoutURL:     r.CheckoutURL,
		CancelReason:    r.CancelReason,
		CancelledBy:     r.CancelledBy,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
	if len(r.History) > 0 {
		_ = json.Unmarshal(r.History, &b.History)
	}
	return b
}

func bookingsFromRows(rows []bookingRow) []booking.Booking {
	out := make([]booking.Booking, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

func (s *Store) CreateBooking(ctx context.Context, b booking.Booking) (booking.Booking, error) {
	b.ID = newID(b.ID)
	b.CreatedAt, b.UpdatedAt = stamp(b.CreatedAt)
	history, err := marshalJSON(b.History)
	if err != nil {
		return booking.Booking{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, b.ID, b.OfferingID, b.ClientID, b.ProviderID, b.ScheduledAt, b.DurationMinutes, b.Notes,
		b.Amount, b.Currency, string(b.Status), string(b.PaymentStatus), b.PaymentRef, b.CheckoutURL,
		b.CancelReason, b.CancelledBy, history, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return booking.Booking{}, mapErr(err, "booking", b.ID)
	}
	return b, nil
}

func (s *Store) UpdateBooking(ctx context.Context, b booking.Booking, expected booking.Status) (booking.Booking, error) {
	b.UpdatedAt = time.Now().UTC()
	history, err := marshalJSON(b.History)
	if err != nil {
		return booking.Booking{}, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings
		SET status = $3, payment_status = $4, payment_ref = $5, checkout_url = $6,
			cancel_reason = $7, cancelled_by = $8, history = $9, updated_at = $10
		WHERE id = $1 AND status = $2
	`, b.ID, string(expected), string(b.Status), string(b.PaymentStatus), b.PaymentRef, b.CheckoutURL,
		b.CancelReason, b.CancelledBy, history, b.UpdatedAt)
	if err != nil {
		return booking.Booking{}, mapErr(err, "booking", b.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		current, err := s.GetBooking(ctx, b.ID)
		if err != nil {
			return booking.Booking{}, err
		}
		return booking.Booking{}, fmt.Errorf("booking %s is %s, expected %s: %w", b.ID, current.Status, expected, storage.ErrConflict)
	}
	return s.GetBooking(ctx, b.ID)
}

func (s *Store) getBooking(ctx context.Context, where, arg string) (booking.Booking, error) {
	var r bookingRow
	if err := s.db.GetContext(ctx, &r, `SELECT `+bookingColumns+` FROM bookings WHERE `+where, arg); err != nil {
		return booking.Booking{}, mapErr(err, "booking", arg)
	}
	return r.toDomain(), nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (booking.Booking, error) {
	return s.getBooking(ctx, "id = $1", id)
}

func (s *Store) GetBookingByPaymentRef(ctx context.Context, ref string) (booking.Booking, error) {
	if ref == "" {
		return booking.Booking{}, fmt.Errorf("booking with empty payment ref: %w", storage.ErrNotFound)
	}
	return s.getBooking(ctx, "payment_ref = $1", ref)
}

func (s *Store) listBookings(ctx context.Context, column, id string, status booking.Status) ([]booking.Booking, error) {
	var rows []bookingRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE `+column+` = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
	`, id, string(status))
	if err != nil {
		return nil, err
	}
	return bookingsFromRows(rows), nil
}

func (s *Store) ListBookingsForClient(ctx context.Context, clientID string, status booking.Status) ([]booking.Booking, error) {
	return s.listBookings(ctx, "client_id", clientID, status)
}

func (s *Store) ListBookingsForProvider(ctx context.Context, providerID string, status booking.Status) ([]booking.Booking, error) {
	return s.listBookings(ctx, "provider_id", providerID, status)
}

func (s *Store) CountActiveBookingsForOffering(ctx context.Context, offeringID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM bookings
		WHERE offering_id = $1 AND status IN ('pending', 'accepted', 'paid')
	`, offeringID)
	return count, err
}

func (s *Store) ListExpiredBookings(ctx context.Context, cutoff time.Time) ([]booking.Booking, error) {
	var rows []bookingRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status IN ('pending', 'accepted') AND scheduled_at < $1
		ORDER BY scheduled_at
	`, cutoff)
	if err != nil {
		return nil, err
	}
	return bookingsFromRows(rows), nil
}
