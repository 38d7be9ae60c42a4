package offering

import "time"

// Offering is a bookable service listed by a provider. Price is expressed in
// minor currency units.
type Offering struct {
	ID              string    `json:"id"`
	ProviderID      string    `json:"provider_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Category        string    `json:"category"`
	Price           int64     `json:"price"`
	Currency        string    `json:"currency"`
	DurationMinutes int       `json:"duration_minutes"`
	ImageURLs       []string  `json:"image_urls"`
	City            string    `json:"city,omitempty"`
	Latitude        *float64  `json:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty"`
	Active          bool      `json:"active"`
	RatingAverage   float64   `json:"rating_average"`
	ReviewCount     int       `json:"review_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasLocation reports whether both coordinates are set.
func (o Offering) HasLocation() bool {
	return o.Latitude != nil && o.Longitude != nil
}

// Filter narrows offering listings. Empty fields match everything.
type Filter struct {
	Category   string
	ProviderID string
	Query      string
	ActiveOnly bool
	Limit      int
}

// Patch lists optional offering changes; nil fields are left alone. Setting
// ClearLocation removes the coordinates.
type Patch struct {
	Title           *string   `json:"title,omitempty"`
	Description     *string   `json:"description,omitempty"`
	Category        *string   `json:"category,omitempty"`
	Price           *int64    `json:"price,omitempty"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
	ImageURLs       *[]string `json:"image_urls,omitempty"`
	City            *string   `json:"city,omitempty"`
	Latitude        *float64  `json:"latitude,omitempty"`
	Longitude       *float64  `json:"longitude,omitempty"`
	ClearLocation   bool      `json:"clear_location,omitempty"`
	Active          *bool     `json:"active,omitempty"`
}
