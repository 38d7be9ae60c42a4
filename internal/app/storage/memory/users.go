package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/letsbefriends/platform/internal/app/domain/user"
)

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID != "" {
		if _, exists := s.users[u.ID]; exists {
			return user.User{}, conflict("user %s already exists", u.ID)
		}
	}
	if err := s.checkUserUniqueLocked("", u); err != nil {
		return user.User{}, err
	}
	u.ID = s.assignIDLocked(u.ID)
	u.CreatedAt, u.UpdatedAt = stamp(u.CreatedAt)
	s.users[u.ID] = cloneUser(u)
	return cloneUser(u), nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, notFound("user", u.ID)
	}
	if err := s.checkUserUniqueLocked(u.ID, u); err != nil {
		return user.User{}, err
	}
	u.CreatedAt = original.CreatedAt
	_, u.UpdatedAt = stamp(u.CreatedAt)
	// Counters are owned by the follow store.
	u.FollowersCount = original.FollowersCount
	u.FollowingCount = original.FollowingCount
	s.users[u.ID] = cloneUser(u)
	return cloneUser(u), nil
}

func (s *Store) checkUserUniqueLocked(selfID string, u user.User) error {
	for id, existing := range s.users {
		if id == selfID {
			continue
		}
		if u.Username != "" && strings.EqualFold(existing.Username, u.Username) {
			return conflict("username %s is taken", u.Username)
		}
		if u.ExternalID != "" && existing.ExternalID == u.ExternalID {
			return conflict("external id %s already linked", u.ExternalID)
		}
	}
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, notFound("user", id)
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByExternalID(_ context.Context, externalID string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.ExternalID == externalID {
			return cloneUser(u), nil
		}
	}
	return user.User{}, notFound("user with external id", externalID)
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return cloneUser(u), nil
		}
	}
	return user.User{}, notFound("user", username)
}

func (s *Store) SearchUsers(_ context.Context, query string, limit int) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []user.User
	for _, u := range s.users {
		if containsFold(u.Name, query) || containsFold(u.Username, query) {
			result = append(result, cloneUser(u))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return applyLimit(result, limit), nil
}

func (s *Store) ListUsersWithLocation(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []user.User
	for _, id := range sortedKeys(s.users) {
		if u := s.users[id]; u.HasLocation() {
			result = append(result, cloneUser(u))
		}
	}
	return result, nil
}
