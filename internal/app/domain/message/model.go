package message

import (
	"sort"
	"time"
)

// Conversation is a direct message thread between two users.
// ParticipantIDs is always sorted.
type Conversation struct {
	ID                 string    `json:"id"`
	ParticipantIDs     []string  `json:"participant_ids"`
	LastMessageAt      time.Time `json:"last_message_at"`
	LastMessagePreview string    `json:"last_message_preview,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// Has reports whether userID participates in the conversation.
func (c Conversation) Has(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Other returns the participant that is not userID.
func (c Conversation) Other(userID string) string {
	for _, id := range c.ParticipantIDs {
		if id != userID {
			return id
		}
	}
	return ""
}

// Pair returns the two ids in canonical order.
func Pair(a, b string) []string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids
}

// Message is one entry in a conversation.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	Content        string     `json:"content"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Summary is a conversation as listed for one participant.
type Summary struct {
	Conversation
	UnreadCount int `json:"unread_count"`
}
