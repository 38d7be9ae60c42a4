package postgres

import (
	"context"
	"time"

	"github.com/letsbefriends/platform/internal/app/domain/notification"
)

const notificationColumns = `id, user_id, actor_id, type, entity_id, message, read, created_at`

type notificationRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	ActorID   string    `db:"actor_id"`
	Type      string    `db:"type"`
	EntityID  string    `db:"entity_id"`
	Message   string    `db:"message"`
	Read      bool      `db:"read"`
	CreatedAt time.Time `db:"created_at"`
}

func (r notificationRow) toDomain() notification.Notification {
	return notification.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		ActorID:   r.ActorID,
		Type:      notification.Type(r.Type),
		EntityID:  r.EntityID,
		Message:   r.Message,
		Read:      r.Read,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (s *Store) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	n.ID = newID(n.ID)
	n.CreatedAt, _ = stamp(n.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.UserID, n.ActorID, string(n.Type), n.EntityID, n.Message, n.Read, n.CreatedAt)
	if err != nil {
		return notification.Notification{}, mapErr(err, "notification", n.ID)
	}
	return n, nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	var r notificationRow
	if err := s.db.GetContext(ctx, &r, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id); err != nil {
		return notification.Notification{}, mapErr(err, "notification", id)
	}
	return r.toDomain(), nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	var rows []notificationRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT read)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, userID, unreadOnly, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	out := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID)
	return count, err
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "notification", id)
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
