package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/letsbefriends/platform/internal/app/domain/message"
)

func (s *Store) CreateConversation(_ context.Context, c message.Conversation) (message.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(c.ParticipantIDs) != 2 {
		return message.Conversation{}, fmt.Errorf("conversation needs exactly two participants")
	}
	c.ParticipantIDs = message.Pair(c.ParticipantIDs[0], c.ParticipantIDs[1])
	for _, existing := range s.conversations {
		if samePair(existing.ParticipantIDs, c.ParticipantIDs) {
			return message.Conversation{}, conflict("conversation between %v already exists", c.ParticipantIDs)
		}
	}
	c.ID = s.assignIDLocked(c.ID)
	c.CreatedAt, _ = stamp(c.CreatedAt)
	if c.LastMessageAt.IsZero() {
		c.LastMessageAt = c.CreatedAt
	}
	s.conversations[c.ID] = cloneConversation(c)
	return cloneConversation(c), nil
}

func samePair(a, b []string) bool {
	return len(a) == 2 && len(b) == 2 && a[0] == b[0] && a[1] == b[1]
}

func (s *Store) GetConversation(_ context.Context, id string) (message.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return message.Conversation{}, notFound("conversation", id)
	}
	return cloneConversation(c), nil
}

func (s *Store) GetConversationByParticipants(_ context.Context, participantIDs []string) (message.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(participantIDs) != 2 {
		return message.Conversation{}, fmt.Errorf("conversation needs exactly two participants")
	}
	pair := message.Pair(participantIDs[0], participantIDs[1])
	for _, c := range s.conversations {
		if samePair(c.ParticipantIDs, pair) {
			return cloneConversation(c), nil
		}
	}
	return message.Conversation{}, notFound("conversation", pair[0]+"/"+pair[1])
}

func (s *Store) ListConversations(_ context.Context, userID string) ([]message.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []message.Conversation
	for _, c := range s.conversations {
		if c.Has(userID) {
			result = append(result, cloneConversation(c))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return s.newerFirst(result[i].ID, result[i].LastMessageAt, result[j].ID, result[j].LastMessageAt)
	})
	return result, nil
}

func (s *Store) CreateMessage(_ context.Context, m message.Message, preview string) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[m.ConversationID]
	if !ok {
		return message.Message{}, notFound("conversation", m.ConversationID)
	}
	m.ID = s.assignIDLocked(m.ID)
	m.CreatedAt, _ = stamp(m.CreatedAt)
	s.messages[c.ID] = append(s.messages[c.ID], cloneMessage(m))

	c.LastMessageAt = m.CreatedAt
	c.LastMessagePreview = preview
	s.conversations[c.ID] = c
	return cloneMessage(m), nil
}

func (s *Store) ListMessages(_ context.Context, conversationID string, before time.Time, limit int) ([]message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.messages[conversationID]
	var result []message.Message
	for i := len(all) - 1; i >= 0; i-- {
		m := all[i]
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		result = append(result, cloneMessage(m))
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *Store) MarkMessagesRead(_ context.Context, conversationID, readerID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return 0, notFound("conversation", conversationID)
	}
	marked := 0
	msgs := s.messages[conversationID]
	for i := range msgs {
		if msgs[i].SenderID != readerID && msgs[i].ReadAt == nil {
			readAt := at
			msgs[i].ReadAt = &readAt
			marked++
		}
	}
	return marked, nil
}

func (s *Store) CountUnreadMessages(_ context.Context, conversationID, readerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, m := range s.messages[conversationID] {
		if m.SenderID != readerID && m.ReadAt == nil {
			count++
		}
	}
	return count, nil
}
