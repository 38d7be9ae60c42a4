package memory

import (
	"context"
	"sort"
	"time"

	"github.com/letsbefriends/platform/internal/app/domain/follow"
)

func (s *Store) CreateFollow(_ context.Context, f follow.Follow) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	follower, ok := s.users[f.FollowerID]
	if !ok {
		return false, notFound("user", f.FollowerID)
	}
	followee, ok := s.users[f.FolloweeID]
	if !ok {
		return false, notFound("user", f.FolloweeID)
	}
	edges := s.follows[f.FollowerID]
	if edges == nil {
		edges = make(map[string]time.Time)
		s.follows[f.FollowerID] = edges
	}
	if _, exists := edges[f.FolloweeID]; exists {
		return false, nil
	}
	created, _ := stamp(f.CreatedAt)
	edges[f.FolloweeID] = created

	follower.FollowingCount++
	followee.FollowersCount++
	s.users[follower.ID] = follower
	s.users[followee.ID] = followee
	return true, nil
}

func (s *Store) DeleteFollow(_ context.Context, followerID, followeeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	edges := s.follows[followerID]
	if _, exists := edges[followeeID]; !exists {
		return false, nil
	}
	delete(edges, followeeID)

	if follower, ok := s.users[followerID]; ok && follower.FollowingCount > 0 {
		follower.FollowingCount--
		s.users[followerID] = follower
	}
	if followee, ok := s.users[followeeID]; ok && followee.FollowersCount > 0 {
		followee.FollowersCount--
		s.users[followeeID] = followee
	}
	return true, nil
}

func (s *Store) IsFollowing(_ context.Context, followerID, followeeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.follows[followerID][followeeID]
	return ok, nil
}

func (s *Store) ListFollowerIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for follower, edges := range s.follows {
		if _, ok := edges[userID]; ok {
			ids = append(ids, follower)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) ListFolloweeIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedKeys(s.follows[userID]), nil
}
