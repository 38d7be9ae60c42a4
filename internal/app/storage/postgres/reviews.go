package postgres

import (
	"context"
	"time"

	"github.com/letsbefriends/platform/internal/app/domain/review"
)

const reviewColumns = `id, booking_id, offering_id, reviewer_id, provider_id, rating, comment, created_at`

type reviewRow struct {
	ID         string    `db:"id"`
	BookingID  string    `db:"booking_id"`
	OfferingID string    `db:"offering_id"`
	ReviewerID string    `db:"reviewer_id"`
	ProviderID string    `db:"provider_id"`
	Rating     int       `db:"rating"`
	Comment    string    `db:"comment"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r reviewRow) toDomain() review.Review {
	return review.Review{
		ID:         r.ID,
		BookingID:  r.BookingID,
		OfferingID: r.OfferingID,
		ReviewerID: r.ReviewerID,
		ProviderID: r.ProviderID,
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

func (s *Store) CreateReview(ctx context.Context, r review.Review) (review.Review, error) {
	r.ID = newID(r.ID)
	r.CreatedAt, _ = stamp(r.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reviews (`+reviewColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, r.BookingID, r.OfferingID, r.ReviewerID, r.ProviderID, r.Rating, r.Comment, r.CreatedAt)
	if err != nil {
		return review.Review{}, mapErr(err, "review for booking", r.BookingID)
	}
	return r, nil
}

func (s *Store) GetReviewByBooking(ctx context.Context, bookingID string) (review.Review, error) {
	var r reviewRow
	if err := s.db.GetContext(ctx, &r, `SELECT `+reviewColumns+` FROM reviews WHERE booking_id = $1`, bookingID); err != nil {
		return review.Review{}, mapErr(err, "review for booking", bookingID)
	}
	return r.toDomain(), nil
}

func (s *Store) listReviews(ctx context.Context, column, id string) ([]review.Review, error) {
	var rows []reviewRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+reviewColumns+` FROM reviews WHERE `+column+` = $1 ORDER BY created_at DESC, id DESC
	`, id)
	if err != nil {
		return nil, err
	}
	out := make([]review.Review, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) ListReviewsForOffering(ctx context.Context, offeringID string) ([]review.Review, error) {
	return s.listReviews(ctx, "offering_id", offeringID)
}

func (s *Store) ListReviewsForProvider(ctx context.Context, providerID string) ([]review.Review, error) {
	return s.listReviews(ctx, "provider_id", providerID)
}
