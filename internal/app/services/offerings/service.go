package offerings

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/letsbefriends/platform/internal/app/domain/offering"
	"github.com/letsbefriends/platform/internal/app/services/users"
	"github.com/letsbefriends/platform/internal/app/storage"
	apperrors "github.com/letsbefriends/platform/internal/errors"
	"github.com/letsbefriends/platform/pkg/logger"
)

const (
	minTitle       = 3
	maxTitle       = 120
	maxDescription = 2000
	minDuration    = 15
	maxDuration    = 1440
	maxImages      = 10
	defaultLimit   = 20
	maxLimit       = 100
)

// Service manages bookable offerings.
type Service struct {
	store    storage.OfferingStore
	bookings storage.BookingStore
	currency string
	log      *logger.Logger
}

// New constructs an offering service. currency is applied to offerings
// created without one.
func New(store storage.OfferingStore, bookings storage.BookingStore, currency string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("offerings")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "PHP"
	}
	return &Service{store: store, bookings: bookings, currency: currency, log: log}
}

// Create lists a new active offering for providerID.
func (s *Service) Create(ctx context.Context, providerID string, o offering.Offering) (offering.Offering, error) {
	o.ID = ""
	o.ProviderID = providerID
	o.Active = true
	o.RatingAverage, o.ReviewCount = 0, 0
	if o.Currency == "" {
		o.Currency = s.currency
	}
	if err := normalize(&o); err != nil {
		return offering.Offering{}, err
	}
	created, err := s.store.CreateOffering(ctx, o)
	if err != nil {
		return offering.Offering{}, err
	}
	s.log.WithField("offering_id", created.ID).
		WithField("provider_id", providerID).
		WithField("category", created.Category).
		Info("offering created")
	return created, nil
}

// Update applies patch. Only the provider may change an offering.
func (s *Service) Update(ctx context.Context, actorID, id string, patch offering.Patch) (offering.Offering, error) {
	o, err := s.owned(ctx, actorID, id)
	if err != nil {
		return offering.Offering{}, err
	}
	if patch.Title != nil {
		o.Title = *patch.Title
	}
	if patch.Description != nil {
		o.Description = *patch.Description
	}
	if patch.Category != nil {
		o.Category = *patch.Category
	}
	if patch.Price != nil {
		o.Price = *patch.Price
	}
	if patch.DurationMinutes != nil {
		o.DurationMinutes = *patch.DurationMinutes
	}
	if patch.ImageURLs != nil {
		o.ImageURLs = *patch.ImageURLs
	}
	if patch.City != nil {
		o.City = *patch.City
	}
	switch {
	case patch.ClearLocation:
		o.Latitude, o.Longitude = nil, nil
	case patch.Latitude != nil || patch.Longitude != nil:
		o.Latitude, o.Longitude = patch.Latitude, patch.Longitude
	}
	if patch.Active != nil {
		o.Active = *patch.Active
	}
	if err := normalize(&o); err != nil {
		return offering.Offering{}, err
	}
	updated, err := s.store.UpdateOffering(ctx, o)
	if err != nil {
		return offering.Offering{}, err
	}
	s.log.WithField("offering_id", id).Info("offering updated")
	return updated, nil
}

// SetActive shows or hides an offering.
func (s *Service) SetActive(ctx context.Context, actorID, id string, active bool) (offering.Offering, error) {
	return s.Update(ctx, actorID, id, offering.Patch{Active: &active})
}

// Delete removes an offering that no open booking depends on.
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	if _, err := s.owned(ctx, actorID, id); err != nil {
		return err
	}
	if s.bookings != nil {
		active, err := s.bookings.CountActiveBookingsForOffering(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return apperrors.Conflict("offering has open bookings").WithDetails("open_bookings", active)
		}
	}
	if err := s.store.DeleteOffering(ctx, id); err != nil {
		return err
	}
	s.log.WithField("offering_id", id).Info("offering deleted")
	return nil
}

// Get returns an offering.
func (s *Service) Get(ctx context.Context, id string) (offering.Offering, error) {
	return s.store.GetOffering(ctx, id)
}

// List returns offerings matching filter, newest first.
func (s *Service) List(ctx context.Context, filter offering.Filter) ([]offering.Offering, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Query = strings.TrimSpace(filter.Query)
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	return s.store.ListOfferings(ctx, filter)
}

// Categories returns the distinct categories of active offerings.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.store.ListCategories(ctx)
}

func (s *Service) owned(ctx context.Context, actorID, id string) (offering.Offering, error) {
	o, err := s.store.GetOffering(ctx, id)
	if err != nil {
		return offering.Offering{}, err
	}
	if o.ProviderID != actorID {
		return offering.Offering{}, apperrors.Forbidden("only the provider can modify this offering")
	}
	return o, nil
}

func normalize(o *offering.Offering) error {
	o.Title = strings.TrimSpace(o.Title)
	o.Description = strings.TrimSpace(o.Description)
	o.Category = strings.TrimSpace(o.Category)
	o.City = strings.TrimSpace(o.City)
	o.Currency = strings.ToUpper(strings.TrimSpace(o.Currency))

	if n := utf8.RuneCountInString(o.Title); n < minTitle || n > maxTitle {
		return apperrors.Validation(fmt.Sprintf("title must be %d-%d characters", minTitle, maxTitle))
	}
	if utf8.RuneCountInString(o.Description) > maxDescription {
		return apperrors.Validation(fmt.Sprintf("description must be at most %d characters", maxDescription))
	}
	if o.Category == "" {
		return apperrors.Validation("category is required")
	}
	if o.Price < 0 {
		return apperrors.Validation("price must not be negative")
	}
	if o.DurationMinutes < minDuration || o.DurationMinutes > maxDuration {
		return apperrors.Validation(fmt.Sprintf("duration must be %d-%d minutes", minDuration, maxDuration))
	}
	if len(o.Currency) != 3 {
		return apperrors.Validation("currency must be a 3-letter code")
	}

	images := make([]string, 0, len(o.ImageURLs))
	for _, u := range o.ImageURLs {
		if u = strings.TrimSpace(u); u != "" {
			images = append(images, u)
		}
	}
	if len(images) > maxImages {
		return apperrors.Validation(fmt.Sprintf("at most %d images are allowed", maxImages))
	}
	o.ImageURLs = images

	if (o.Latitude == nil) != (o.Longitude == nil) {
		return apperrors.Validation("latitude and longitude must be set together")
	}
	if o.Latitude != nil {
		if err := users.ValidateCoordinates(*o.Latitude, *o.Longitude); err != nil {
			return err
		}
	}
	return nil
}
