package memory

import (
	"context"
	"sort"
	"time"

	"github.com/letsbefriends/platform/internal/app/domain/booking"
)

func (s *Store) CreateBooking(_ context.Context, b booking.Booking) (booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID != "" {
		if _, exists := s.bookings[b.ID]; exists {
			return booking.Booking{}, conflict("booking %s already exists", b.ID)
		}
	}
	b.ID = s.assignIDLocked(b.ID)
	b.CreatedAt, b.UpdatedAt = stamp(b.CreatedAt)
	s.bookings[b.ID] = cloneBooking(b)
	return cloneBooking(b), nil
}

func (s *Store) UpdateBooking(_ context.Context, b booking.Booking, expected booking.Status) (booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.bookings[b.ID]
	if !ok {
		return booking.Booking{}, notFound("booking", b.ID)
	}
	if original.Status != expected {
		return booking.Booking{}, conflict("booking %s is %s, expected %s", b.ID, original.Status, expected)
	}
	b.CreatedAt = original.CreatedAt
	_, b.UpdatedAt = stamp(b.CreatedAt)
	s.bookings[b.ID] = cloneBooking(b)
	return cloneBooking(b), nil
}

func (s *Store) GetBooking(_ context.Context, id string) (booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return booking.Booking{}, notFound("booking", id)
	}
	return cloneBooking(b), nil
}

func (s *Store) GetBookingByPaymentRef(_ context.Context, ref string) (booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ref != "" {
		for _, b := range s.bookings {
			if b.PaymentRef == ref {
				return cloneBooking(b), nil
			}
		}
	}
	return booking.Booking{}, notFound("booking with payment ref", ref)
}

func (s *Store) ListBookingsForClient(_ context.Context, clientID string, status booking.Status) ([]booking.Booking, error) {
	return s.listBookings(func(b booking.Booking) bool {
		return b.ClientID == clientID && (status == "" || b.Status == status)
	}), nil
}

func (s *Store) ListBookingsForProvider(_ context.Context, providerID string, status booking.Status) ([]booking.Booking, error) {
	return s.listBookings(func(b booking.Booking) bool {
		return b.ProviderID == providerID && (status == "" || b.Status == status)
	}), nil
}

func (s *Store) CountActiveBookingsForOffering(_ context.Context, offeringID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, b := range s.bookings {
		if b.OfferingID == offeringID && b.Active() {
			count++
		}
	}
	return count, nil
}

func (s *Store) ListExpiredBookings(_ context.Context, cutoff time.Time) ([]booking.Booking, error) {
	result := s.listBookings(func(b booking.Booking) bool {
		return (b.Status == booking.StatusPending || b.Status == booking.StatusAccepted) && b.ScheduledAt.Before(cutoff)
	})
	sort.Slice(result, func(i, j int) bool { return result[i].ScheduledAt.Before(result[j].ScheduledAt) })
	return result, nil
}

func (s *Store) listBookings(match func(booking.Booking) bool) []booking.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []booking.Booking
	for _, b := range s.bookings {
		if match(b) {
			result = append(result, cloneBooking(b))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return s.newerFirst(result[i].ID, result[i].CreatedAt, result[j].ID, result[j].CreatedAt)
	})
	return result
}
