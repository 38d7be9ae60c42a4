package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/letsbefriends/platform/internal/app/domain/offering"
)

func (s *Store) CreateOffering(_ context.Context, o offering.Offering) (offering.Offering, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID != "" {
		if _, exists := s.offerings[o.ID]; exists {
			return offering.Offering{}, conflict("offering %s already exists", o.ID)
		}
	}
	o.ID = s.assignIDLocked(o.ID)
	o.CreatedAt, o.UpdatedAt = stamp(o.CreatedAt)
	s.offerings[o.ID] = cloneOffering(o)
	return cloneOffering(o), nil
}

func (s *Store) UpdateOffering(_ context.Context, o offering.Offering) (offering.Offering, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.offerings[o.ID]
	if !ok {
		return offering.Offering{}, notFound("offering", o.ID)
	}
	o.CreatedAt = original.CreatedAt
	o.RatingAverage, o.ReviewCount = original.RatingAverage, original.ReviewCount
	_, o.UpdatedAt = stamp(o.CreatedAt)
	s.offerings[o.ID] = cloneOffering(o)
	return cloneOffering(o), nil
}

func (s *Store) SetOfferingRating(_ context.Context, id string, average float64, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.offerings[id]
	if !ok {
		return notFound("offering", id)
	}
	o.RatingAverage, o.ReviewCount = average, count
	s.offerings[id] = o
	return nil
}

func (s *Store) GetOffering(_ context.Context, id string) (offering.Offering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.offerings[id]
	if !ok {
		return offering.Offering{}, notFound("offering", id)
	}
	return cloneOffering(o), nil
}

func (s *Store) DeleteOffering(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.offerings[id]; !ok {
		return notFound("offering", id)
	}
	delete(s.offerings, id)
	return nil
}

func (s *Store) ListOfferings(_ context.Context, filter offering.Filter) ([]offering.Offering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []offering.Offering
	for _, o := range s.offerings {
		if filter.ActiveOnly && !o.Active {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(o.Category, filter.Category) {
			continue
		}
		if filter.ProviderID != "" && o.ProviderID != filter.ProviderID {
			continue
		}
		if filter.Query != "" && !containsFold(o.Title, filter.Query) && !containsFold(o.Description, filter.Query) {
			continue
		}
		result = append(result, cloneOffering(o))
	}
	sort.Slice(result, func(i, j int) bool {
		return s.newerFirst(result[i].ID, result[i].CreatedAt, result[j].ID, result[j].CreatedAt)
	})
	return applyLimit(result, filter.Limit), nil
}

func (s *Store) ListOfferingsWithLocation(_ context.Context) ([]offering.Offering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []offering.Offering
	for _, id := range sortedKeys(s.offerings) {
		if o := s.offerings[id]; o.HasLocation() {
			result = append(result, cloneOffering(o))
		}
	}
	return result, nil
}

func (s *Store) ListCategories(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, o := range s.offerings {
		if o.Active && o.Category != "" {
			seen[o.Category] = struct{}{}
		}
	}
	return sortedKeys(seen), nil
}
