package user

import "time"

// User is a member of the marketplace. ExternalID is the subject issued by
// the authentication provider.
type User struct {
	ID             string    `json:"id"`
	ExternalID     string    `json:"-"`
	Name           string    `json:"name"`
	Username       string    `json:"username"`
	Email          string    `json:"email,omitempty"`
	Bio            string    `json:"bio,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	City           string    `json:"city,omitempty"`
	Province       string    `json:"province,omitempty"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	Plan           string    `json:"plan"`
	FollowersCount int       `json:"followers_count"`
	FollowingCount int       `json:"following_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasLocation reports whether both coordinates are set.
func (u User) HasLocation() bool {
	return u.Latitude != nil && u.Longitude != nil
}

// Public strips private fields for display to other users.
func (u User) Public() User {
	u.Email = ""
	return u
}

// ProfilePatch lists optional profile changes; nil fields are left alone.
type ProfilePatch struct {
	Name      *string `json:"name,omitempty"`
	Username  *string `json:"username,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	City      *string `json:"city,omitempty"`
	Province  *string `json:"province,omitempty"`
}
