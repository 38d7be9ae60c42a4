package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/letsbefriends/platform/internal/app/domain/message"
	"github.com/letsbefriends/platform/internal/app/domain/notification"
	"github.com/letsbefriends/platform/internal/app/realtime"
	"github.com/letsbefriends/platform/internal/app/services/notifications"
	"github.com/letsbefriends/platform/internal/app/storage"
	apperrors "github.com/letsbefriends/platform/internal/errors"
	"github.com/letsbefriends/platform/pkg/logger"
)

const (
	defaultLimit = 20
	maxLimit     = 100

	maxContent    = 2000
	previewLength = 80
)

// Service manages direct conversations between two users.
type Service struct {
	users     storage.UserStore
	store     storage.MessageStore
	notifier  notifications.Sender
	publisher realtime.Publisher
	log       *logger.Logger
	now       func() time.Time
}

// New constructs a messaging service. notifier may be nil.
func New(users storage.UserStore, store storage.MessageStore, notifier notifications.Sender, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("messaging")
	}
	return &Service{users: users, store: store, notifier: notifier, log: log, now: time.Now}
}

// SetPublisher pushes new messages and read receipts through p.
func (s *Service) SetPublisher(p realtime.Publisher) {
	s.publisher = p
}

// ReadReceipt is pushed to the other participant when messages are read.
type ReadReceipt struct {
	ConversationID string    `json:"conversation_id"`
	ReaderID       string    `json:"reader_id"`
	Count          int       `json:"count"`
	ReadAt         time.Time `json:"read_at"`
}

// GetOrCreate returns the conversation between userID and otherID, creating
// it on first contact.
func (s *Service) GetOrCreate(ctx context.Context, userID, otherID string) (message.Conversation, error) {
	otherID = strings.TrimSpace(otherID)
	if otherID == "" {
		return message.Conversation{}, apperrors.Validation("participant id is required")
	}
	if otherID == userID {
		return message.Conversation{}, apperrors.Validation("cannot start a conversation with yourself")
	}
	if _, err := s.users.GetUser(ctx, otherID); err != nil {
		return message.Conversation{}, err
	}

	pair := message.Pair(userID, otherID)
	if c, err := s.store.GetConversationByParticipants(ctx, pair); err == nil {
		return c, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return message.Conversation{}, err
	}

	c, err := s.store.CreateConversation(ctx, message.Conversation{ParticipantIDs: pair})
	if errors.Is(err, storage.ErrConflict) {
		// Lost a race with the other participant.
		return s.store.GetConversationByParticipants(ctx, pair)
	}
	if err != nil {
		return message.Conversation{}, err
	}
	s.log.WithField("conversation_id", c.ID).Info("conversation created")
	return c, nil
}

// List returns userID's conversations, most recent activity first, with the
// number of messages userID has not read yet.
func (s *Service) List(ctx context.Context, userID string) ([]message.Summary, error) {
	convs, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]message.Summary, 0, len(convs))
	for _, c := range convs {
		unread, err := s.store.CountUnreadMessages(ctx, c.ID, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, message.Summary{Conversation: c, UnreadCount: unread})
	}
	return out, nil
}

// Send appends a message to the conversation and alerts the other participant.
func (s *Service) Send(ctx context.Context, senderID, conversationID, content string) (message.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return message.Message{}, apperrors.Validation("message content is required")
	}
	if utf8.RuneCountInString(content) > maxContent {
		return message.Message{}, apperrors.Validation(fmt.Sprintf("message must be at most %d characters", maxContent))
	}
	c, err := s.participant(ctx, senderID, conversationID)
	if err != nil {
		return message.Message{}, err
	}

	m, err := s.store.CreateMessage(ctx, message.Message{
		ConversationID: c.ID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      s.now().UTC(),
	}, Preview(content))
	if err != nil {
		return message.Message{}, err
	}
	s.log.WithField("conversation_id", c.ID).WithField("message_id", m.ID).Info("message sent")

	if s.publisher != nil {
		for _, id := range c.ParticipantIDs {
			s.publisher.Publish(id, realtime.Event{Type: realtime.EventMessage, Payload: m})
		}
	}

	if s.notifier != nil {
		if _, err := s.notifier.Notify(ctx, notification.Notification{
			UserID:   c.Other(senderID),
			ActorID:  senderID,
			Type:     notification.TypeMessage,
			EntityID: c.ID,
			Message:  Preview(content),
		}); err != nil {
			s.log.WithError(err).Warn("message notification failed")
		}
	}
	return m, nil
}

// Messages pages backwards through a conversation, newest first.
func (s *Service) Messages(ctx context.Context, actorID, conversationID string, before time.Time, limit int) ([]message.Message, error) {
	c, err := s.participant(ctx, actorID, conversationID)
	if err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, c.ID, before, clampLimit(limit))
}

// MarkRead marks every message the other participant sent as read and
// returns how many changed.
func (s *Service) MarkRead(ctx context.Context, actorID, conversationID string) (int, error) {
	c, err := s.participant(ctx, actorID, conversationID)
	if err != nil {
		return 0, err
	}
	readAt := s.now().UTC()
	marked, err := s.store.MarkMessagesRead(ctx, c.ID, actorID, readAt)
	if err != nil {
		return 0, err
	}
	if marked > 0 && s.publisher != nil {
		s.publisher.Publish(c.Other(actorID), realtime.Event{
			Type:    realtime.EventConversationRead,
			Payload: ReadReceipt{ConversationID: c.ID, ReaderID: actorID, Count: marked, ReadAt: readAt},
		})
	}
	return marked, nil
}

func (s *Service) participant(ctx context.Context, userID, conversationID string) (message.Conversation, error) {
	c, err := s.store.GetConversation(ctx, strings.TrimSpace(conversationID))
	if err != nil {
		return message.Conversation{}, err
	}
	if !c.Has(userID) {
		return message.Conversation{}, apperrors.Forbidden("not a participant of this conversation")
	}
	return c, nil
}

// Preview shortens content to the conversation list preview length.
func Preview(content string) string {
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewLength-1]) + "…"
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
