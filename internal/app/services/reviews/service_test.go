package reviews

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsbefriends/platform/internal/app/domain/booking"
	"github.com/letsbefriends/platform/internal/app/domain/offering"
	"github.com/letsbefriends/platform/internal/app/domain/review"
	"github.com/letsbefriends/platform/internal/app/services/notifications"
	"github.com/letsbefriends/platform/internal/app/storage/memory"
	apperrors "github.com/letsbefriends/platform/internal/errors"
)

func seedBooking(t *testing.T, store *memory.Store, offeringID, clientID string, status booking.Status) booking.Booking {
	t.Helper()
	b, err := store.CreateBooking(context.Background(), booking.Booking{
		OfferingID: offeringID, ClientID: clientID, ProviderID: "prov",
		ScheduledAt: time.Now().Add(-time.Hour), Status: status,
	})
	require.NoError(t, err)
	return b
}

func TestCreateReview(t *testing.T) {
	store := memory.New()
	notes := notifications.New(store, nil)
	svc := New(store, store, store, notes, nil)
	ctx := context.Background()

	o, err := store.CreateOffering(ctx, offering.Offering{ProviderID: "prov", Title: "Cleaning", Category: "Home", DurationMinutes: 120, Active: true})
	require.NoError(t, err)
	done1 := seedBooking(t, store, o.ID, "cli1", booking.StatusCompleted)
	done2 := seedBooking(t, store, o.ID, "cli2", booking.StatusCompleted)
	open := seedBooking(t, store, o.ID, "cli1", booking.StatusPaid)

	_, err = svc.Create(ctx, "cli1", done1.ID, 6, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	_, err = svc.Create(ctx, "cli2", done1.ID, 5, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	_, err = svc.Create(ctx, "cli1", open.ID, 5, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))

	r, err := svc.Create(ctx, "cli1", done1.ID, 5, " spotless ")
	require.NoError(t, err)
	assert.Equal(t, "spotless", r.Comment)
	assert.Equal(t, "prov", r.ProviderID)

	_, err = svc.Create(ctx, "cli1", done1.ID, 4, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	_, err = svc.Create(ctx, "cli2", done2.ID, 4, "")
	require.NoError(t, err)

	updated, err := store.GetOffering(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.ReviewCount)
	assert.Equal(t, 4.5, updated.RatingAverage)

	list, err := svc.ListForOffering(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	byProvider, err := svc.ListForProvider(ctx, "prov")
	require.NoError(t, err)
	assert.Len(t, byProvider, 2)

	unread, _ := notes.UnreadCount(ctx, "prov")
	assert.Equal(t, 2, unread)
}

func TestRatingSurvivesStaleOfferingUpdate(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil, nil)
	ctx := context.Background()

	o, err := store.CreateOffering(ctx, offering.Offering{ProviderID: "prov", Title: "Massage", Category: "Wellness", DurationMinutes: 60, Active: true})
	require.NoError(t, err)
	done := seedBooking(t, store, o.ID, "cli1", booking.StatusCompleted)

	stale, err := store.GetOffering(ctx, o.ID)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "cli1", done.ID, 4, "")
	require.NoError(t, err)

	stale.Title = "Hilot massage"
	written, err := store.UpdateOffering(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, 1, written.ReviewCount)

	got, err := store.GetOffering(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hilot massage", got.Title)
	assert.Equal(t, 1, got.ReviewCount)
	assert.Equal(t, 4.0, got.RatingAverage)
}

func TestAverage(t *testing.T) {
	assert.Zero(t, Average(nil))
	assert.Equal(t, 3.67, Average([]review.Review{{Rating: 5}, {Rating: 4}, {Rating: 2}}))
}
