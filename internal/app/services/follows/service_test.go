package follows

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsbefriends/platform/internal/app/domain/user"
	"github.com/letsbefriends/platform/internal/app/services/notifications"
	"github.com/letsbefriends/platform/internal/app/storage"
	"github.com/letsbefriends/platform/internal/app/storage/memory"
	apperrors "github.com/letsbefriends/platform/internal/errors"
)

func seedUsers(t *testing.T, store *memory.Store, names ...string) []user.User {
	t.Helper()
	out := make([]user.User, 0, len(names))
	for _, name := range names {
		u, err := store.CreateUser(context.Background(), user.User{ExternalID: name, Name: name, Username: name})
		require.NoError(t, err)
		out = append(out, u)
	}
	return out
}

func TestFollowLifecycle(t *testing.T) {
	store := memory.New()
	notes := notifications.New(store, nil)
	svc := New(store, store, notes, nil)
	ctx := context.Background()
	u := seedUsers(t, store, "ana", "ben")
	ana, ben := u[0], u[1]

	require.NoError(t, svc.Follow(ctx, ana.ID, ben.ID))
	require.NoError(t, svc.Follow(ctx, ana.ID, ben.ID))

	following, err := svc.IsFollowing(ctx, ana.ID, ben.ID)
	require.NoError(t, err)
	assert.True(t, following)

	got, err := store.GetUser(ctx, ben.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.FollowersCount)

	followers, err := svc.Followers(ctx, ben.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, ana.ID, followers[0].ID)

	followed, err := svc.Following(ctx, ana.ID)
	require.NoError(t, err)
	require.Len(t, followed, 1)

	unread, err := notes.UnreadCount(ctx, ben.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unread, "a repeated follow must not notify twice")

	require.NoError(t, svc.Unfollow(ctx, ana.ID, ben.ID))
	require.NoError(t, svc.Unfollow(ctx, ana.ID, ben.ID))
	got, _ = store.GetUser(ctx, ben.ID)
	assert.Equal(t, 0, got.FollowersCount)
}

func TestFollowRejectsSelfAndUnknown(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil, nil)
	ctx := context.Background()
	ana := seedUsers(t, store, "ana")[0]

	assert.True(t, apperrors.HasCode(svc.Follow(ctx, ana.ID, ana.ID), apperrors.CodeValidation))
	err := svc.Follow(ctx, ana.ID, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)

	_, err = svc.Followers(ctx, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
