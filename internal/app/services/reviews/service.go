package reviews

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/letsbefriends/platform/internal/app/domain/booking"
	"github.com/letsbefriends/platform/internal/app/domain/notification"
	"github.com/letsbefriends/platform/internal/app/domain/review"
	"github.com/letsbefriends/platform/internal/app/services/notifications"
	"github.com/letsbefriends/platform/internal/app/storage"
	apperrors "github.com/letsbefriends/platform/internal/errors"
	"github.com/letsbefriends/platform/pkg/logger"
)

const maxComment = 1000

// Service records reviews of completed bookings and keeps offering ratings
// current.
type Service struct {
	store     storage.ReviewStore
	bookings  storage.BookingStore
	offerings storage.OfferingStore
	notifier  notifications.Sender
	log       *logger.Logger
}

// New constructs a review service. notifier may be nil.
func New(store storage.ReviewStore, bookings storage.BookingStore, offerings storage.OfferingStore, notifier notifications.Sender, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("reviews")
	}
	return &Service{store: store, bookings: bookings, offerings: offerings, notifier: notifier, log: log}
}

// Create stores the client's review of a completed booking.
func (s *Service) Create(ctx context.Context, reviewerID, bookingID string, rating int, comment string) (review.Review, error) {
	comment = strings.TrimSpace(comment)
	if rating < 1 || rating > 5 {
		return review.Review{}, apperrors.Validation("rating must be between 1 and 5")
	}
	if utf8.RuneCountInString(comment) > maxComment {
		return review.Review{}, apperrors.Validation(fmt.Sprintf("comment must be at most %d characters", maxComment))
	}

	b, err := s.bookings.GetBooking(ctx, strings.TrimSpace(bookingID))
	if err != nil {
		return review.Review{}, err
	}
	if b.ClientID != reviewerID {
		return review.Review{}, apperrors.Forbidden("only the client of the booking can review it")
	}
	if b.Status != booking.StatusCompleted {
		return review.Review{}, apperrors.InvalidState("only completed bookings can be reviewed")
	}
	if _, err := s.store.GetReviewByBooking(ctx, b.ID); err == nil {
		return review.Review{}, apperrors.Conflict("booking already reviewed")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return review.Review{}, err
	}

	created, err := s.store.CreateReview(ctx, review.Review{
		BookingID:  b.ID,
		OfferingID: b.OfferingID,
		ReviewerID: reviewerID,
		ProviderID: b.ProviderID,
		Rating:     rating,
		Comment:    comment,
	})
	if errors.Is(err, storage.ErrConflict) {
		return review.Review{}, apperrors.Conflict("booking already reviewed")
	}
	if err != nil {
		return review.Review{}, err
	}
	s.log.WithField("review_id", created.ID).
		WithField("offering_id", b.OfferingID).
		WithField("rating", rating).
		Info("review created")

	if err := s.refreshRating(ctx, b.OfferingID); err != nil {
		s.log.WithError(err).WithField("offering_id", b.OfferingID).Warn("rating refresh failed")
	}
	if s.notifier != nil {
		if _, err := s.notifier.Notify(ctx, notification.Notification{
			UserID:   b.ProviderID,
			ActorID:  reviewerID,
			Type:     notification.TypeReview,
			EntityID: b.OfferingID,
			Message:  fmt.Sprintf("left a %d-star review", rating),
		}); err != nil {
			s.log.WithError(err).Warn("review notification failed")
		}
	}
	return created, nil
}

// ListForOffering returns an offering's reviews, newest first.
func (s *Service) ListForOffering(ctx context.Context, offeringID string) ([]review.Review, error) {
	return s.store.ListReviewsForOffering(ctx, offeringID)
}

// ListForProvider returns all reviews a provider received, newest first.
func (s *Service) ListForProvider(ctx context.Context, providerID string) ([]review.Review, error) {
	return s.store.ListReviewsForProvider(ctx, providerID)
}

// refreshRating recomputes the offering's average from all its reviews.
func (s *Service) refreshRating(ctx context.Context, offeringID string) error {
	all, err := s.store.ListReviewsForOffering(ctx, offeringID)
	if err != nil {
		return err
	}
	return s.offerings.SetOfferingRating(ctx, offeringID, Average(all), len(all))
}

// Average returns the mean rating rounded to two decimals, or zero.
func Average(reviews []review.Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, r := range reviews {
		sum += r.Rating
	}
	return math.Round(float64(sum)/float64(len(reviews))*100) / 100
}
