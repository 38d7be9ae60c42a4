package memory

import (
	"context"
	"sort"

	"github.com/letsbefriends/platform/internal/app/domain/review"
)

func (s *Store) CreateReview(_ context.Context, r review.Review) (review.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.reviews {
		if existing.BookingID == r.BookingID {
			return review.Review{}, conflict("booking %s already reviewed", r.BookingID)
		}
	}
	r.ID = s.assignIDLocked(r.ID)
	r.CreatedAt, _ = stamp(r.CreatedAt)
	s.reviews[r.ID] = r
	return r, nil
}

func (s *Store) GetReviewByBooking(_ context.Context, bookingID string) (review.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.reviews {
		if r.BookingID == bookingID {
			return r, nil
		}
	}
	return review.Review{}, notFound("review for booking", bookingID)
}

func (s *Store) ListReviewsForOffering(_ context.Context, offeringID string) ([]review.Review, error) {
	return s.listReviews(func(r review.Review) bool { return r.OfferingID == offeringID }), nil
}

func (s *Store) ListReviewsForProvider(_ context.Context, providerID string) ([]review.Review, error) {
	return s.listReviews(func(r review.Review) bool { return r.ProviderID == providerID }), nil
}

func (s *Store) listReviews(match func(review.Review) bool) []review.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []review.Review
	for _, r := range s.reviews {
		if match(r) {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return s.newerFirst(result[i].ID, result[i].CreatedAt, result[j].ID, result[j].CreatedAt)
	})
	return result
}
