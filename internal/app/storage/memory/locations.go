package memory

import (
	"context"
	"sort"

	"github.com/letsbefriends/platform/internal/app/domain/location"
)

func (s *Store) UpsertLocations(_ context.Context, locs []location.Location) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, loc := range locs {
		s.locations[loc.Code] = loc
	}
	return len(locs), nil
}

func (s *Store) ListLocations(_ context.Context, parentCode string, level location.Level) ([]location.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []location.Location
	for _, loc := range s.locations {
		if parentCode != "" && loc.ParentCode != parentCode {
			continue
		}
		if level != "" && loc.Level != level {
			continue
		}
		result = append(result, loc)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].Code < result[j].Code
	})
	return result, nil
}
