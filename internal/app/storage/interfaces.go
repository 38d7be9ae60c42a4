package storage

import (
	"context"
	"errors"
	"time"

	"github.com/letsbefriends/platform/internal/app/domain/booking"
	"github.com/letsbefriends/platform/internal/app/domain/follow"
	"github.com/letsbefriends/platform/internal/app/domain/location"
	"github.com/letsbefriends/platform/internal/app/domain/message"
	"github.com/letsbefriends/platform/internal/app/domain/notification"
	"github.com/letsbefriends/platform/internal/app/domain/offering"
	"github.com/letsbefriends/platform/internal/app/domain/post"
	"github.com/letsbefriends/platform/internal/app/domain/review"
	"github.com/letsbefriends/platform/internal/app/domain/site"
	"github.com/letsbefriends/platform/internal/app/domain/user"
)

var (
	// ErrNotFound is returned (wrapped) when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness rule or an expected state
	// does not hold.
	ErrConflict = errors.New("conflict")
	// ErrLimitReached is returned when a quota check inside the store fails.
	ErrLimitReached = errors.New("limit reached")
)

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]user.User, error)
	ListUsersWithLocation(ctx context.Context) ([]user.User, error)
}

// PostStore persists posts, comments and likes. Like and comment writes keep
// the post counters in step.
type PostStore interface {
	CreatePost(ctx context.Context, p post.Post) (post.Post, error)
	GetPost(ctx context.Context, id string) (post.Post, error)
	DeletePost(ctx context.Context, id string) error
	// ListPostsByAuthors returns posts newest first, created strictly before
	// before when it is non-zero.
	ListPostsByAuthors(ctx context.Context, authorIDs []string, before time.Time, limit int) ([]post.Post, error)
	ListPostsWithLocation(ctx context.Context) ([]post.Post, error)

	ToggleLike(ctx context.Context, postID, userID string) (bool, error)
	CreateComment(ctx context.Context, c post.Comment) (post.Comment, error)
	GetComment(ctx context.Context, id string) (post.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	ListComments(ctx context.Context, postID string) ([]post.Comment, error)
}

// FollowStore persists the follow graph and the user follow counters.
type FollowStore interface {
	// CreateFollow returns false when the edge already existed.
	CreateFollow(ctx context.Context, f follow.Follow) (bool, error)
	// DeleteFollow returns false when there was no edge.
	DeleteFollow(ctx context.Context, followerID, followeeID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error)
	ListFollowerIDs(ctx context.Context, userID string) ([]string, error)
	ListFolloweeIDs(ctx context.Context, userID string) ([]string, error)
}

// OfferingStore persists bookable offerings.
type OfferingStore interface {
	CreateOffering(ctx context.Context, o offering.Offering) (offering.Offering, error)
	// UpdateOffering writes provider-editable fields; rating fields are
	// left untouched.
	UpdateOffering(ctx context.Context, o offering.Offering) (offering.Offering, error)
	SetOfferingRating(ctx context.Context, id string, average float64, count int) error
	GetOffering(ctx context.Context, id string) (offering.Offering, error)
	DeleteOffering(ctx context.Context, id string) error
	ListOfferings(ctx context.Context, filter offering.Filter) ([]offering.Offering, error)
	ListOfferingsWithLocation(ctx context.Context) ([]offering.Offering, error)
	ListCategories(ctx context.Context) ([]string, error)
}

// BookingStore persists bookings.
type BookingStore interface {
	CreateBooking(ctx context.Context, b booking.Booking) (booking.Booking, error)
	// UpdateBooking saves b only if the stored status still equals expected,
	// otherwise it returns ErrConflict.
	UpdateBooking(ctx context.Context, b booking.Booking, expected booking.Status) (booking.Booking, error)
	GetBooking(ctx context.Context, id string) (booking.Booking, error)
	GetBookingByPaymentRef(ctx context.Context, ref string) (booking.Booking, error)
	ListBookingsForClient(ctx context.Context, clientID string, status booking.Status) ([]booking.Booking, error)
	ListBookingsForProvider(ctx context.Context, providerID string, status booking.Status) ([]booking.Booking, error)
	CountActiveBookingsForOffering(ctx context.Context, offeringID string) (int, error)
	// ListExpiredBookings returns pending or accepted bookings scheduled
	// before cutoff.
	ListExpiredBookings(ctx context.Context, cutoff time.Time) ([]booking.Booking, error)
}

// ReviewStore persists reviews. At most one review exists per booking.
type ReviewStore interface {
	CreateReview(ctx context.Context, r review.Review) (review.Review, error)
	GetReviewByBooking(ctx context.Context, bookingID string) (review.Review, error)
	ListReviewsForOffering(ctx context.Context, offeringID string) ([]review.Review, error)
	ListReviewsForProvider(ctx context.Context, providerID string) ([]review.Review, error)
}

// MessageStore persists conversations and messages.
type MessageStore interface {
	CreateConversation(ctx context.Context, c message.Conversation) (message.Conversation, error)
	GetConversation(ctx context.Context, id string) (message.Conversation, error)
	GetConversationByParticipants(ctx context.Context, participantIDs []string) (message.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]message.Conversation, error)
	// CreateMessage also refreshes the conversation's last message fields.
	CreateMessage(ctx context.Context, m message.Message, preview string) (message.Message, error)
	ListMessages(ctx context.Context, conversationID string, before time.Time, limit int) ([]message.Message, error)
	// MarkMessagesRead marks messages not sent by readerID as read.
	MarkMessagesRead(ctx context.Context, conversationID, readerID string, at time.Time) (int, error)
	CountUnreadMessages(ctx context.Context, conversationID, readerID string) (int, error)
}

// NotificationStore persists notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
	GetNotification(ctx context.Context, id string) (notification.Notification, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
}

// SiteStore persists sites and pages.
type SiteStore interface {
	CreateSite(ctx context.Context, s site.Site) (site.Site, error)
	UpdateSite(ctx context.Context, s site.Site) (site.Site, error)
	GetSiteByOwner(ctx context.Context, ownerID string) (site.Site, error)
	GetSiteByHandle(ctx context.Context, handle string) (site.Site, error)

	// CreatePage inserts p only while the owner has fewer than maxPages
	// pages, otherwise it returns ErrLimitReached. The store assigns Order
	// (one past the highest) and makes the first page the homepage.
	CreatePage(ctx context.Context, p site.Page, maxPages int) (site.Page, error)
	UpdatePage(ctx context.Context, p site.Page) (site.Page, error)
	GetPage(ctx context.Context, id string) (site.Page, error)
	ListPages(ctx context.Context, ownerID string) ([]site.Page, error)
	// DeletePage removes the page, promotes the lowest-ordered remaining
	// page when the homepage was removed and compacts Order to 0..n-1.
	DeletePage(ctx context.Context, ownerID, pageID string) error
	// SetHomepage flags pageID as the owner's only homepage.
	SetHomepage(ctx context.Context, ownerID, pageID string) error
	// ReorderPages sets each page's Order to its index in orderedIDs.
	ReorderPages(ctx context.Context, ownerID string, orderedIDs []string) error
}

// LocationStore persists PSGC locations.
type LocationStore interface {
	UpsertLocations(ctx context.Context, locs []location.Location) (int, error)
	ListLocations(ctx context.Context, parentCode string, level location.Level) ([]location.Location, error)
}
