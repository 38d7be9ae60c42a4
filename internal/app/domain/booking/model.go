package booking

import "time"

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusDeclined  Status = "declined"
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus tracks the checkout attached to a booking.
type PaymentStatus string

const (
	PaymentNone      PaymentStatus = "none"
	PaymentAwaiting  PaymentStatus = "awaiting_payment"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefundDue PaymentStatus = "refund_due"
)

// Role identifies which side of a booking acts on it.
type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	RoleSystem   Role = "system"
	RolePayment  Role = "payment"
)

// Transition is one recorded status change.
type Transition struct {
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	Actor  string    `json:"actor,omitempty"`
	Role   Role      `json:"role"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// Booking is a client's reservation of an offering. Amount and duration are
// copied from the offering when the booking is requested.
type Booking struct {
	ID              string        `json:"id"`
	OfferingID      string        `json:"offering_id"`
	ClientID        string        `json:"client_id"`
	ProviderID      string        `json:"provider_id"`
	ScheduledAt     time.Time     `json:"scheduled_at"`
	DurationMinutes int           `json:"duration_minutes"`
	Notes           string        `json:"notes,omitempty"`
	Amount          int64         `json:"amount"`
	Currency        string        `json:"currency"`
	Status          Status        `json:"status"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentRef      string        `json:"payment_ref,omitempty"`
	CheckoutURL     string        `json:"checkout_url,omitempty"`
	CancelReason    string        `json:"cancel_reason,omitempty"`
	CancelledBy     string        `json:"cancelled_by,omitempty"`
	History         []Transition  `json:"history"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Active reports whether the booking still ties up the offering.
func (b Booking) Active() bool {
	switch b.Status {
	case StatusPending, StatusAccepted, StatusPaid:
		return true
	}
	return false
}

// RoleOf returns the role userID plays in the booking, or "" when the user
// is not a participant.
func (b Booking) RoleOf(userID string) Role {
	switch userID {
	case b.ClientID:
		return RoleClient
	case b.ProviderID:
		return RoleProvider
	}
	return ""
}
