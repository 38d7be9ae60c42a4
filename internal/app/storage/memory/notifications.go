package memory

import (
	"context"
	"sort"

	"github.com/letsbefriends/platform/internal/app/domain/notification"
)

func (s *Store) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n.ID = s.assignIDLocked(n.ID)
	n.CreatedAt, _ = stamp(n.CreatedAt)
	s.notifications[n.ID] = n
	return n, nil
}

func (s *Store) GetNotification(_ context.Context, id string) (notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok {
		return notification.Notification{}, notFound("notification", id)
	}
	return n, nil
}

func (s *Store) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []notification.Notification
	for _, n := range s.notifications {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool {
		return s.newerFirst(result[i].ID, result[i].CreatedAt, result[j].ID, result[j].CreatedAt)
	})
	return applyLimit(result, limit), nil
}

func (s *Store) CountUnreadNotifications(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return notFound("notification", id)
	}
	n.Read = true
	s.notifications[id] = n
	return nil
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := 0
	for id, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			s.notifications[id] = n
			marked++
		}
	}
	return marked, nil
}
