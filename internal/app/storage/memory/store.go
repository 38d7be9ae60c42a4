// Package memory is a concurrent in-memory implementation of the storage
// interfaces, used by tests and by the server when no database is configured.
package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/letsbefriends/platform/internal/app/domain/booking"
	"github.com/letsbefriends/platform/internal/app/domain/location"
	"github.com/letsbefriends/platform/internal/app/domain/message"
	"github.com/letsbefriends/platform/internal/app/domain/notification"
	"github.com/letsbefriends/platform/internal/app/domain/offering"
	"github.com/letsbefriends/platform/internal/app/domain/post"
	"github.com/letsbefriends/platform/internal/app/domain/review"
	"github.com/letsbefriends/platform/internal/app/domain/site"
	"github.com/letsbefriends/platform/internal/app/domain/user"
	"github.com/letsbefriends/platform/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	// seq records creation order for tie-breaking equal timestamps.
	seq map[string]int64

	users         map[string]user.User
	posts         map[string]post.Post
	comments      map[string]post.Comment
	likes         map[string]map[string]time.Time // post -> user -> liked at
	follows       map[string]map[string]time.Time // follower -> followee -> since
	offerings     map[string]offering.Offering
	bookings      map[string]booking.Booking
	reviews       map[string]review.Review
	conversations map[string]message.Conversation
	messages      map[string][]message.Message // conversation -> messages, oldest first
	notifications map[string]notification.Notification
	sites         map[string]site.Site
	pages         map[string]site.Page
	locations     map[string]location.Location
}

var (
	_ storage.UserStore         = (*Store)(nil)
	_ storage.PostStore         = (*Store)(nil)
	_ storage.FollowStore       = (*Store)(nil)
	_ storage.OfferingStore     = (*Store)(nil)
	_ storage.BookingStore      = (*Store)(nil)
	_ storage.ReviewStore       = (*Store)(nil)
	_ storage.MessageStore      = (*Store)(nil)
	_ storage.NotificationStore = (*Store)(nil)
	_ storage.SiteStore         = (*Store)(nil)
	_ storage.LocationStore     = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:        1,
		seq:           make(map[string]int64),
		users:         make(map[string]user.User),
		posts:         make(map[string]post.Post),
		comments:      make(map[string]post.Comment),
		likes:         make(map[string]map[string]time.Time),
		follows:       make(map[string]map[string]time.Time),
		offerings:     make(map[string]offering.Offering),
		bookings:      make(map[string]booking.Booking),
		reviews:       make(map[string]review.Review),
		conversations: make(map[string]message.Conversation),
		messages:      make(map[string][]message.Message),
		notifications: make(map[string]notification.Notification),
		sites:         make(map[string]site.Site),
		pages:         make(map[string]site.Page),
		locations:     make(map[string]location.Location),
	}
}

// assignIDLocked returns id, or a fresh one when id is empty, and records
// its creation sequence.
func (s *Store) assignIDLocked(id string) string {
	n := s.nextID
	s.nextID++
	if id == "" {
		id = fmt.Sprintf("%d", n)
	}
	s.seq[id] = n
	return id
}

// newerFirst orders by CreatedAt descending, falling back to creation order.
func (s *Store) newerFirst(aID string, aAt time.Time, bID string, bAt time.Time) bool {
	if !aAt.Equal(bAt) {
		return aAt.After(bAt)
	}
	return s.seq[aID] > s.seq[bID]
}

func stamp(created time.Time) (time.Time, time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		created = now
	}
	return created, now
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
}

func conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), storage.ErrConflict)
}

func applyLimit[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneUser(u user.User) user.User {
	u.Latitude = cloneFloat(u.Latitude)
	u.Longitude = cloneFloat(u.Longitude)
	return u
}

func clonePost(p post.Post) post.Post {
	p.ImageURLs = cloneStrings(p.ImageURLs)
	p.Latitude = cloneFloat(p.Latitude)
	p.Longitude = cloneFloat(p.Longitude)
	return p
}

func cloneOffering(o offering.Offering) offering.Offering {
	o.ImageURLs = cloneStrings(o.ImageURLs)
	o.Latitude = cloneFloat(o.Latitude)
	o.Longitude = cloneFloat(o.Longitude)
	return o
}

func cloneBooking(b booking.Booking) booking.Booking {
	if b.History != nil {
		b.History = append([]booking.Transition(nil), b.History...)
	}
	return b
}

func cloneConversation(c message.Conversation) message.Conversation {
	c.ParticipantIDs = cloneStrings(c.ParticipantIDs)
	return c
}

func cloneMessage(m message.Message) message.Message {
	if m.ReadAt != nil {
		at := *m.ReadAt
		m.ReadAt = &at
	}
	return m
}

func clonePage(p site.Page) site.Page {
	if p.Blocks != nil {
		blocks := make([]site.Block, len(p.Blocks))
		for i, b := range p.Blocks {
			blocks[i] = site.Block{Type: b.Type, Content: cloneContent(b.Content)}
		}
		p.Blocks = blocks
	}
	return p
}

func cloneContent(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
