package locations

import (
	"context"
	"fmt"
	"strings"

	"github.com/letsbefriends/platform/internal/app/domain/location"
	"github.com/letsbefriends/platform/internal/app/storage"
	apperrors "github.com/letsbefriends/platform/internal/errors"
	"github.com/letsbefriends/platform/pkg/logger"
)

// DefaultBatchSize is the number of records upserted per store call.
const DefaultBatchSize = 500

// Service exposes the PSGC location hierarchy.
type Service struct {
	store storage.LocationStore
	log   *logger.Logger
}

// New constructs a location service.
func New(store storage.LocationStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("locations")
	}
	return &Service{store: store, log: log}
}

// List returns the locations under parentCode, optionally restricted to one
// level. Both filters are optional.
func (s *Service) List(ctx context.Context, parentCode, level string) ([]location.Location, error) {
	lvl := location.Level(strings.ToLower(strings.TrimSpace(level)))
	if lvl != "" && !lvl.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("unknown level %q", level))
	}
	return s.store.ListLocations(ctx, strings.TrimSpace(parentCode), lvl)
}

// Import validates locs and upserts them in batches, returning how many were
// written.
func (s *Service) Import(ctx context.Context, locs []location.Location, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	for i, loc := range locs {
		if err := Validate(loc); err != nil {
			return 0, fmt.Errorf("record %d: %w", i, err)
		}
	}
	written := 0
	for start := 0; start < len(locs); start += batchSize {
		end := start + batchSize
		if end > len(locs) {
			end = len(locs)
		}
		n, err := s.store.UpsertLocations(ctx, locs[start:end])
		if err != nil {
			return written, fmt.Errorf("upsert batch at %d: %w", start, err)
		}
		written += n
	}
	s.log.WithField("count", written).Info("locations imported")
	return written, nil
}

// Validate checks the required fields of a location.
func Validate(loc location.Location) error {
	if strings.TrimSpace(loc.Code) == "" {
		return apperrors.Validation("location code is required")
	}
	if strings.TrimSpace(loc.Name) == "" {
		return apperrors.Validation("location name is required")
	}
	if !loc.Level.Valid() {
		return apperrors.Validation(fmt.Sprintf("unknown level %q", loc.Level))
	}
	return nil
}
