package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/letsbefriends/platform/internal/app/domain/notification"
	"github.com/letsbefriends/platform/internal/app/metrics"
	"github.com/letsbefriends/platform/internal/app/realtime"
	"github.com/letsbefriends/platform/internal/app/storage"
	apperrors "github.com/letsbefriends/platform/internal/errors"
	"github.com/letsbefriends/platform/pkg/logger"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Sender is the part of the service other domains use to raise alerts.
type Sender interface {
	Notify(ctx context.Context, n notification.Notification) (bool, error)
	NotifyMany(ctx context.Context, userIDs []string, n notification.Notification) (int, error)
}

var _ Sender = (*Service)(nil)

// Service stores in-app notifications and pushes them to live connections.
type Service struct {
	store     storage.NotificationStore
	publisher realtime.Publisher
	log       *logger.Logger
}

// New constructs a notification service.
func New(store storage.NotificationStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("notifications")
	}
	return &Service{store: store, log: log}
}

// SetPublisher pushes every stored notification through p.
func (s *Service) SetPublisher(p realtime.Publisher) {
	s.publisher = p
}

// Notify stores n for n.UserID. Notifications a user would raise for
// themselves are skipped and reported as false.
func (s *Service) Notify(ctx context.Context, n notification.Notification) (bool, error) {
	n.UserID = strings.TrimSpace(n.UserID)
	if n.UserID == "" {
		return false, apperrors.Validation("notification user_id is required")
	}
	if n.Type == "" {
		return false, apperrors.Validation("notification type is required")
	}
	if n.ActorID != "" && n.ActorID == n.UserID {
		return false, nil
	}
	n.ID = ""
	n.Read = false
	created, err := s.store.CreateNotification(ctx, n)
	if err != nil {
		return false, fmt.Errorf("create notification: %w", err)
	}
	metrics.RecordNotifications(string(created.Type), 1)
	if s.publisher != nil {
		s.publisher.Publish(created.UserID, realtime.Event{Type: realtime.EventNotification, Payload: created})
	}
	s.log.WithField("notification_id", created.ID).
		WithField("user_id", created.UserID).
		WithField("type", created.Type).
		Debug("notification created")
	return true, nil
}

// NotifyMany fans n out to every distinct recipient except the actor and
// returns how many notifications were stored.
func (s *Service) NotifyMany(ctx context.Context, userIDs []string, n notification.Notification) (int, error) {
	seen := make(map[string]struct{}, len(userIDs))
	sent := 0
	for _, id := range userIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		n.UserID = id
		ok, err := s.Notify(ctx, n)
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		}
	}
	if sent > 0 {
		s.log.WithField("type", n.Type).
			WithField("entity_id", n.EntityID).
			WithField("recipients", sent).
			Info("notifications fanned out")
	}
	return sent, nil
}

// List returns the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	return s.store.ListNotifications(ctx, userID, unreadOnly, clampLimit(limit))
}

// UnreadCount returns how many notifications the user has not read.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnreadNotifications(ctx, userID)
}

// MarkRead marks one notification as read. Only its recipient may do so.
func (s *Service) MarkRead(ctx context.Context, actorID, id string) error {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return err
	}
	if n.UserID != actorID {
		return apperrors.Forbidden("notification belongs to another user")
	}
	if n.Read {
		return nil
	}
	return s.store.MarkNotificationRead(ctx, id)
}

// MarkAllRead marks every notification of the user as read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	marked, err := s.store.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if marked > 0 {
		s.log.WithField("user_id", userID).WithField("count", marked).Info("notifications marked read")
	}
	return marked, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
