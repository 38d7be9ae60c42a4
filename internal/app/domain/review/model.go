package review

import "time"

// Review is a client's rating of a completed booking.
type Review struct {
	ID         string    `json:"id"`
	BookingID  string    `json:"booking_id"`
	OfferingID string    `json:"offering_id"`
	ReviewerID string    `json:"reviewer_id"`
	ProviderID string    `json:"provider_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
