package notification

import "time"

// Type classifies notifications.
type Type string

const (
	TypeNewPost        Type = "new_post"
	TypeLike           Type = "like"
	TypeComment        Type = "comment"
	TypeFollow         Type = "follow"
	TypeBookingRequest Type = "booking_request"
	TypeBookingUpdate  Type = "booking_update"
	TypeReview         Type = "review"
	TypeMessage        Type = "message"
)

// Notification is an in-app alert addressed to UserID, caused by ActorID.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ActorID   string    `json:"actor_id,omitempty"`
	Type      Type      `json:"type"`
	EntityID  string    `json:"entity_id,omitempty"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
