package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/letsbefriends/platform/internal/app/domain/offering"
)

const offeringColumns = `id, provider_id, title, description, category, price, currency, duration_minutes,
	image_urls, city, latitude, longitude, active, rating_average, review_count, created_at, updated_at`

type offeringRow struct {
	ID              string          `db:"id"`
	ProviderID      string          `db:"provider_id"`
	Title           string          `db:"title"`
	Description     string          `db:"description"`
	Category        string          `db:"category"`
	Price           int64           `db:"price"`
	Currency        string          `db:"currency"`
	DurationMinutes int             `db:"duration_minutes"`
	ImageURLs       []byte          `db:"image_urls"`
	City            string          `db:"city"`
	Latitude        sql.NullFloat64 `db:"latitude"`
	Longitude       sql.NullFloat64 `db:"longitude"`
	Active          bool            `db:"active"`
	RatingAverage   float64         `db:"rating_average"`
	ReviewCount     int             `db:"review_count"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func (r offeringRow) toDomain() offering.Offering {
	return offering.Offering{
		ID:              r.ID,
		ProviderID:      r.ProviderID,
		Title:           r.Title,
		Description:     r.Description,
		Category:        r.Category,
		Price:           r.Price,
		Currency:        r.Currency,
		DurationMinutes: r.DurationMinutes,
		ImageURLs:       unmarshalStrings(r.ImageURLs),
		City:            r.City,
		Latitude:        fromNullFloat(r.Latitude),
		Longitude:       fromNullFloat(r.Longitude),
		Active:          r.Active,
		RatingAverage:   r.RatingAverage,
		ReviewCount:     r.ReviewCount,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

func offeringsFromRows(rows []offeringRow) []offering.Offering {
	out := make([]offering.Offering, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

func (s *Store) CreateOffering(ctx context.Context, o offering.Offering) (offering.Offering, error) {
	o.ID = newID(o.ID)
	o.CreatedAt, o.UpdatedAt = stamp(o.CreatedAt)

	images, err := marshalJSON(o.ImageURLs)
	if err != nil {
		return offering.Offering{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO offerings (`+offeringColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, o.ID, o.ProviderID, o.Title, o.Description, o.Category, o.Price, o.Currency, o.DurationMinutes,
		images, o.City, toNullFloat(o.Latitude), toNullFloat(o.Longitude), o.Active,
		o.RatingAverage, o.ReviewCount, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return offering.Offering{}, mapErr(err, "offering", o.ID)
	}
	return o, nil
}

func (s *Store) UpdateOffering(ctx context.Context, o offering.Offering) (offering.Offering, error) {
	o.UpdatedAt = time.Now().UTC()
	images, err := marshalJSON(o.ImageURLs)
	if err != nil {
		return offering.Offering{}, err
	}
	var stored struct {
		CreatedAt     time.Time `db:"created_at"`
		RatingAverage float64   `db:"rating_average"`
		ReviewCount   int       `db:"review_count"`
	}
	err = s.db.GetContext(ctx, &stored, `
		UPDATE offerings
		SET title = $2, description = $3, category = $4, price = $5, currency = $6,
			duration_minutes = $7, image_urls = $8, city = $9, latitude = $10, longitude = $11,
			active = $12, updated_at = $13
		WHERE id = $1
		RETURNING created_at, rating_average, review_count
	`, o.ID, o.Title, o.Description, o.Category, o.Price, o.Currency, o.DurationMinutes, images,
		o.City, toNullFloat(o.Latitude), toNullFloat(o.Longitude), o.Active, o.UpdatedAt)
	if err != nil {
		return offering.Offering{}, mapErr(err, "offering", o.ID)
	}
	o.CreatedAt = stored.CreatedAt.UTC()
	o.RatingAverage, o.ReviewCount = stored.RatingAverage, stored.ReviewCount
	return o, nil
}

func (s *Store) SetOfferingRating(ctx context.Context, id string, average float64, count int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE offerings SET rating_average = $2, review_count = $3 WHERE id = $1
	`, id, average, count)
	if err != nil {
		return mapErr(err, "offering", id)
	}
	return requireRow(res, "offering", id)
}

func (s *Store) GetOffering(ctx context.Context, id string) (offering.Offering, error) {
	var r offeringRow
	if err := s.db.GetContext(ctx, &r, `SELECT `+offeringColumns+` FROM offerings WHERE id = $1`, id); err != nil {
		return offering.Offering{}, mapErr(err, "offering", id)
	}
	return r.toDomain(), nil
}

func (s *Store) DeleteOffering(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM offerings WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "offering", id)
	}
	return requireRow(res, "offering", id)
}

func (s *Store) ListOfferings(ctx context.Context, filter offering.Filter) ([]offering.Offering, error) {
	query := `
		SELECT ` + offeringColumns + `
		FROM offerings
		WHERE ($1 = '' OR lower(category) = lower($1))
		  AND ($2 = '' OR provider_id = $2)
		  AND ($3 = '' OR title ILIKE $4 OR description ILIKE $4)
		  AND (NOT $5 OR active)
		ORDER BY created_at DESC, id DESC
		LIMIT $6`
	var rows []offeringRow
	err := s.db.SelectContext(ctx, &rows, query, filter.Category, filter.ProviderID, filter.Query,
		likePattern(filter.Query), filter.ActiveOnly, limitOrAll(filter.Limit))
	if err != nil {
		return nil, err
	}
	return offeringsFromRows(rows), nil
}

func (s *Store) ListOfferingsWithLocation(ctx context.Context) ([]offering.Offering, error) {
	var rows []offeringRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+offeringColumns+`
		FROM offerings
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	return offeringsFromRows(rows), nil
}

func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	err := s.db.SelectContext(ctx, &categories, `
		SELECT DISTINCT category FROM offerings WHERE active AND category <> '' ORDER BY category
	`)
	return categories, err
}
