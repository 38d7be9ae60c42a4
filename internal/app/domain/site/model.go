package site

import "time"

// Site is a user's public mini-site.
type Site struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Handle    string    `json:"handle"`
	Title     string    `json:"title"`
	Theme     string    `json:"theme,omitempty"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Block is one content section of a page.
type Block struct {
	Type    string                 `json:"type"`
	Content map[string]interface{} `json:"content,omitempty"`
}

// Page belongs to a site. Exactly one page per owner is the homepage, and
// Order values are contiguous from zero.
type Page struct {
	ID         string    `json:"id"`
	SiteID     string    `json:"site_id"`
	OwnerID    string    `json:"owner_id"`
	Title      string    `json:"title"`
	Slug       string    `json:"slug"`
	Blocks     []Block   `json:"blocks"`
	IsHomepage bool      `json:"is_homepage"`
	Published  bool      `json:"published"`
	Order      int       `json:"order"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
