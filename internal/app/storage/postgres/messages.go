package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/letsbefriends/platform/internal/app/domain/message"
)

const conversationColumns = `id, participant_a, participant_b, last_message_at, last_message_preview, created_at`

type conversationRow struct {
	ID                 string    `db:"id"`
	ParticipantA       string    `db:"participant_a"`
	ParticipantB       string    `db:"participant_b"`
	LastMessageAt      time.Time `db:"last_message_at"`
	LastMessagePreview string    `db:"last_message_preview"`
	CreatedAt          time.Time `db:"created_at"`
}

func (r conversationRow) toDomain() message.Conversation {
	return message.Conversation{
		ID:                 r.ID,
		ParticipantIDs:     []string{r.ParticipantA, r.ParticipantB},
		LastMessageAt:      r.LastMessageAt.UTC(),
		LastMessagePreview: r.LastMessagePreview,
		CreatedAt:          r.CreatedAt.UTC(),
	}
}

type messageRow struct {
	ID             string       `db:"id"`
	ConversationID string       `db:"conversation_id"`
	SenderID       string       `db:"sender_id"`
	Content        string       `db:"content"`
	ReadAt         sql.NullTime `db:"read_at"`
	CreatedAt      time.Time    `db:"created_at"`
}

func (r messageRow) toDomain() message.Message {
	m := message.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		SenderID:       r.SenderID,
		Content:        r.Content,
		CreatedAt:      r.CreatedAt.UTC(),
	}
	if r.ReadAt.Valid {
		at := r.ReadAt.Time.UTC()
		m.ReadAt = &at
	}
	return m
}

func pairOf(ids []string) ([]string, error) {
	if len(ids) != 2 {
		return nil, fmt.Errorf("conversation needs exactly two participants")
	}
	return message.Pair(ids[0], ids[1]), nil
}

func (s *Store) CreateConversation(ctx context.Context, c message.Conversation) (message.Conversation, error) {
	pair, err := pairOf(c.ParticipantIDs)
	if err != nil {
		return message.Conversation{}, err
	}
	c.ParticipantIDs = pair
	c.ID = newID(c.ID)
	c.CreatedAt, _ = stamp(c.CreatedAt)
	if c.LastMessageAt.IsZero() {
		c.LastMessageAt = c.CreatedAt
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (`+conversationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, pair[0], pair[1], c.LastMessageAt, c.LastMessagePreview, c.CreatedAt)
	if err != nil {
		return message.Conversation{}, mapErr(err, "conversation", pair[0]+"/"+pair[1])
	}
	return c, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (message.Conversation, error) {
	var r conversationRow
	if err := s.db.GetContext(ctx, &r, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id); err != nil {
		return message.Conversation{}, mapErr(err, "conversation", id)
	}
	return r.toDomain(), nil
}

func (s *Store) GetConversationByParticipants(ctx context.Context, participantIDs []string) (message.Conversation, error) {
	pair, err := pairOf(participantIDs)
	if err != nil {
		return message.Conversation{}, err
	}
	var r conversationRow
	err = s.db.GetContext(ctx, &r, `
		SELECT `+conversationColumns+` FROM conversations WHERE participant_a = $1 AND participant_b = $2
	`, pair[0], pair[1])
	if err != nil {
		return message.Conversation{}, mapErr(err, "conversation", pair[0]+"/"+pair[1])
	}
	return r.toDomain(), nil
}

func (s *Store) ListConversations(ctx context.Context, userID string) ([]message.Conversation, error) {
	var rows []conversationRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY last_message_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	out := make([]message.Conversation, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) CreateMessage(ctx context.Context, m message.Message, preview string) (message.Message, error) {
	m.ID = newID(m.ID)
	m.CreatedAt, _ = stamp(m.CreatedAt)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE conversations SET last_message_at = $2, last_message_preview = $3 WHERE id = $1
		`, m.ConversationID, m.CreatedAt, preview)
		if err != nil {
			return err
		}
		if err := requireRow(res, "conversation", m.ConversationID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, sender_id, content, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, m.ID, m.ConversationID, m.SenderID, m.Content, m.CreatedAt)
		return err
	})
	if err != nil {
		return message.Message{}, err
	}
	return m, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string, before time.Time, limit int) ([]message.Message, error) {
	var rows []messageRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, conversation_id, sender_id, content, read_at, created_at
		FROM messages
		WHERE conversation_id = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, conversationID, toNullTime(before), limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	out := make([]message.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) MarkMessagesRead(ctx context.Context, conversationID, readerID string, at time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET read_at = $3
		WHERE conversation_id = $1 AND sender_id <> $2 AND read_at IS NULL
	`, conversationID, readerID, at)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) CountUnreadMessages(ctx context.Context, conversationID, readerID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM messages
		WHERE conversation_id = $1 AND sender_id <> $2 AND read_at IS NULL
	`, conversationID, readerID)
	return count, err
}
