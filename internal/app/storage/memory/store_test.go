package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsbefriends/platform/internal/app/domain/booking"
	"github.com/letsbefriends/platform/internal/app/domain/follow"
	"github.com/letsbefriends/platform/internal/app/domain/message"
	"github.com/letsbefriends/platform/internal/app/domain/post"
	"github.com/letsbefriends/platform/internal/app/domain/site"
	"github.com/letsbefriends/platform/internal/app/domain/user"
	"github.com/letsbefriends/platform/internal/app/storage"
)

func TestUserUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()

	a, err := s.CreateUser(ctx, user.User{ExternalID: "ext-a", Username: "ana"})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, user.User{ExternalID: "ext-b", Username: "ANA"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	b, err := s.CreateUser(ctx, user.User{ExternalID: "ext-b", Username: "ben"})
	require.NoError(t, err)
	b.Username = "ana"
	_, err = s.UpdateUser(ctx, b)
	assert.ErrorIs(t, err, storage.ErrConflict)

	got, err := s.GetUserByUsername(ctx, "Ana")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFollowCounters(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, _ := s.CreateUser(ctx, user.User{Username: "a"})
	b, _ := s.CreateUser(ctx, user.User{Username: "b"})

	created, err := s.CreateFollow(ctx, follow.Follow{FollowerID: a.ID, FolloweeID: b.ID})
	require.NoError(t, err)
	assert.True(t, created)
	created, err = s.CreateFollow(ctx, follow.Follow{FollowerID: a.ID, FolloweeID: b.ID})
	require.NoError(t, err)
	assert.False(t, created)

	a, _ = s.GetUser(ctx, a.ID)
	b, _ = s.GetUser(ctx, b.ID)
	assert.Equal(t, 1, a.FollowingCount)
	assert.Equal(t, 1, b.FollowersCount)

	// Profile updates never clobber counters.
	b.Bio = "hello"
	b.FollowersCount = 0
	b, err = s.UpdateUser(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 1, b.FollowersCount)

	removed, err := s.DeleteFollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	b, _ = s.GetUser(ctx, b.ID)
	assert.Equal(t, 0, b.FollowersCount)
}

func TestPostLikesAndComments(t *testing.T) {
	ctx := context.Background()
	s := New()
	p, err := s.CreatePost(ctx, post.Post{AuthorID: "1", Content: "hi"})
	require.NoError(t, err)

	liked, err := s.ToggleLike(ctx, p.ID, "2")
	require.NoError(t, err)
	assert.True(t, liked)
	c, err := s.CreateComment(ctx, post.Comment{PostID: p.ID, AuthorID: "2", Content: "nice"})
	require.NoError(t, err)

	p, _ = s.GetPost(ctx, p.ID)
	assert.Equal(t, 1, p.LikesCount)
	assert.Equal(t, 1, p.CommentsCount)

	liked, _ = s.ToggleLike(ctx, p.ID, "2")
	assert.False(t, liked)

	require.NoError(t, s.DeletePost(ctx, p.ID))
	_, err = s.GetComment(ctx, c.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListPostsByAuthorsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.CreatePost(ctx, post.Post{AuthorID: "1", Content: "p", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}
	_, _ = s.CreatePost(ctx, post.Post{AuthorID: "2", Content: "other", CreatedAt: base})

	posts, err := s.ListPostsByAuthors(ctx, []string{"1"}, time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.True(t, posts[0].CreatedAt.After(posts[1].CreatedAt))

	older, err := s.ListPostsByAuthors(ctx, []string{"1"}, posts[1].CreatedAt, 10)
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, base, older[0].CreatedAt)
}

func TestUpdateBookingExpectedStatus(t *testing.T) {
	ctx := context.Background()
	s := New()
	b, err := s.CreateBooking(ctx, booking.Booking{Status: booking.StatusPending, ScheduledAt: time.Now().Add(-time.Hour)})
	require.NoError(t, err)

	b.Status = booking.StatusAccepted
	_, err = s.UpdateBooking(ctx, b, booking.StatusPending)
	require.NoError(t, err)

	b.Status = booking.StatusDeclined
	_, err = s.UpdateBooking(ctx, b, booking.StatusPending)
	assert.True(t, errors.Is(err, storage.ErrConflict))

	expired, err := s.ListExpiredBookings(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, booking.StatusAccepted, expired[0].Status)
}

func TestPagesQuotaHomepageAndCompaction(t *testing.T) {
	ctx := context.Background()
	s := New()

	var ids []string
	for _, slug := range []string{"home", "about", "shop"} {
		p, err := s.CreatePage(ctx, site.Page{OwnerID: "u1", Slug: slug}, 3)
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}
	_, err := s.CreatePage(ctx, site.Page{OwnerID: "u1", Slug: "extra"}, 3)
	assert.ErrorIs(t, err, storage.ErrLimitReached)

	pages, _ := s.ListPages(ctx, "u1")
	assert.True(t, pages[0].IsHomepage)
	assert.Equal(t, []int{0, 1, 2}, []int{pages[0].Order, pages[1].Order, pages[2].Order})

	require.NoError(t, s.ReorderPages(ctx, "u1", []string{ids[2], ids[0], ids[1]}))
	require.NoError(t, s.DeletePage(ctx, "u1", ids[0]))

	pages, _ = s.ListPages(ctx, "u1")
	require.Len(t, pages, 2)
	assert.Equal(t, ids[2], pages[0].ID)
	assert.True(t, pages[0].IsHomepage, "lowest-ordered page is promoted")
	assert.False(t, pages[1].IsHomepage)
	assert.Equal(t, 1, pages[1].Order)

	require.NoError(t, s.SetHomepage(ctx, "u1", ids[1]))
	pages, _ = s.ListPages(ctx, "u1")
	homepages := 0
	for _, p := range pages {
		if p.IsHomepage {
			homepages++
			assert.Equal(t, ids[1], p.ID)
		}
	}
	assert.Equal(t, 1, homepages)
}

func TestConversationUnread(t *testing.T) {
	ctx := context.Background()
	s := New()
	c, err := s.CreateConversation(ctx, message.Conversation{ParticipantIDs: []string{"b", "a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, c.ParticipantIDs)

	_, err = s.CreateConversation(ctx, message.Conversation{ParticipantIDs: []string{"a", "b"}})
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = s.CreateMessage(ctx, message.Message{ConversationID: c.ID, SenderID: "a", Content: "hi"}, "hi")
	require.NoError(t, err)
	n, _ := s.CountUnreadMessages(ctx, c.ID, "b")
	assert.Equal(t, 1, n)
	n, _ = s.CountUnreadMessages(ctx, c.ID, "a")
	assert.Equal(t, 0, n)

	marked, err := s.MarkMessagesRead(ctx, c.ID, "b", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	got, _ := s.GetConversationByParticipants(ctx, []string{"b", "a"})
	assert.Equal(t, "hi", got.LastMessagePreview)
}
