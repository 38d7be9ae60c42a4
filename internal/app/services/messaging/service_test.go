package messaging

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsbefriends/platform/internal/app/domain/message"
	"github.com/letsbefriends/platform/internal/app/domain/user"
	"github.com/letsbefriends/platform/internal/app/realtime"
	"github.com/letsbefriends/platform/internal/app/services/notifications"
	"github.com/letsbefriends/platform/internal/app/storage/memory"
	apperrors "github.com/letsbefriends/platform/internal/errors"
)

type fixture struct {
	svc      *Service
	notes    *notifications.Service
	ana, ben string
	carla    string
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	mk := func(name string) string {
		u, err := store.CreateUser(ctx, user.User{ExternalID: "ext-" + name, Name: name, Username: name})
		require.NoError(t, err)
		return u.ID
	}
	f := &fixture{ana: mk("ana"), ben: mk("ben"), carla: mk("carla"), clock: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	f.notes = notifications.New(store, nil)
	f.svc = New(store, store, f.notes, nil)
	f.svc.now = func() time.Time {
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	}
	return f
}

func TestGetOrCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetOrCreate(ctx, f.ana, f.ana)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	c1, err := f.svc.GetOrCreate(ctx, f.ana, f.ben)
	require.NoError(t, err)
	c2, err := f.svc.GetOrCreate(ctx, f.ben, f.ana)
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID)
	assert.True(t, c1.Has(f.ana) && c1.Has(f.ben))

	_, err = f.svc.GetOrCreate(ctx, f.ana, "nobody")
	assert.Error(t, err)
}

func TestSendAndRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.GetOrCreate(ctx, f.ana, f.ben)
	require.NoError(t, err)

	_, err = f.svc.Send(ctx, f.carla, c.ID, "hi")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	_, err = f.svc.Send(ctx, f.ana, c.ID, "   ")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	_, err = f.svc.Send(ctx, f.ana, c.ID, strings.Repeat("x", maxContent+1))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.svc.Send(ctx, f.ana, c.ID, "hello")
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, f.ana, c.ID, "are you free saturday?")
	require.NoError(t, err)

	list, err := f.svc.List(ctx, f.ben)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].UnreadCount)
	assert.Equal(t, "are you free saturday?", list[0].LastMessagePreview)

	unread, _ := f.notes.UnreadCount(ctx, f.ben)
	assert.Equal(t, 2, unread)

	msgs, err := f.svc.Messages(ctx, f.ben, c.ID, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "are you free saturday?", msgs[0].Content)

	older, err := f.svc.Messages(ctx, f.ben, c.ID, msgs[0].CreatedAt, 10)
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, "hello", older[0].Content)

	_, err = f.svc.Messages(ctx, f.carla, c.ID, time.Time{}, 0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	n, err := f.svc.MarkRead(ctx, f.ben, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	list, _ = f.svc.List(ctx, f.ben)
	assert.Zero(t, list[0].UnreadCount)

	// The sender's own messages never count as unread for them.
	list, _ = f.svc.List(ctx, f.ana)
	assert.Zero(t, list[0].UnreadCount)
}

func TestSendAndReadArePushed(t *testing.T) {
	f := newFixture(t)
	hub := realtime.NewHub(8, nil)
	f.svc.SetPublisher(hub)
	ctx := context.Background()
	anaLive := hub.Subscribe(f.ana)
	benLive := hub.Subscribe(f.ben)
	carlaLive := hub.Subscribe(f.carla)
	defer anaLive.Close()
	defer benLive.Close()
	defer carlaLive.Close()

	c, err := f.svc.GetOrCreate(ctx, f.ana, f.ben)
	require.NoError(t, err)
	sent, err := f.svc.Send(ctx, f.ana, c.ID, "hello")
	require.NoError(t, err)

	for _, sub := range []*realtime.Subscription{anaLive, benLive} {
		require.Len(t, sub.Events(), 1)
		ev := <-sub.Events()
		assert.Equal(t, realtime.EventMessage, ev.Type)
		assert.Equal(t, sent.ID, ev.Payload.(message.Message).ID)
	}

	n, err := f.svc.MarkRead(ctx, f.ben, c.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, anaLive.Events(), 1)
	ev := <-anaLive.Events()
	assert.Equal(t, realtime.EventConversationRead, ev.Type)
	receipt := ev.Payload.(ReadReceipt)
	assert.Equal(t, c.ID, receipt.ConversationID)
	assert.Equal(t, f.ben, receipt.ReaderID)
	assert.Equal(t, 1, receipt.Count)

	// nothing left to mark, no receipt
	_, err = f.svc.MarkRead(ctx, f.ben, c.ID)
	require.NoError(t, err)
	assert.Len(t, anaLive.Events(), 0)
	assert.Len(t, benLive.Events(), 0)
	assert.Len(t, carlaLive.Events(), 0)
}

func TestListOrdersByActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	withBen, _ := f.svc.GetOrCreate(ctx, f.ana, f.ben)
	withCarla, _ := f.svc.GetOrCreate(ctx, f.ana, f.carla)

	_, err := f.svc.Send(ctx, f.ana, withCarla.ID, "first")
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, f.ana, withBen.ID, "second")
	require.NoError(t, err)

	list, err := f.svc.List(ctx, f.ana)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, withBen.ID, list[0].ID)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short"))
	long := strings.Repeat("ñ", 200)
	p := Preview(long)
	assert.Equal(t, previewLength, utf8.RuneCountInString(p))
	assert.True(t, strings.HasSuffix(p, "…"))
}
