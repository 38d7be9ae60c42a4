package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsbefriends/platform/internal/app/domain/booking"
	"github.com/letsbefriends/platform/internal/app/domain/notification"
	"github.com/letsbefriends/platform/internal/app/domain/offering"
	"github.com/letsbefriends/platform/internal/app/services/notifications"
	"github.com/letsbefriends/platform/internal/app/storage/memory"
	apperrors "github.com/letsbefriends/platform/internal/errors"
)

type fixture struct {
	store    *memory.Store
	notes    *notifications.Service
	svc      *Service
	offering offering.Offering
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	notes := notifications.New(store, nil)
	f := &fixture{store: store, notes: notes, clock: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	f.svc = New(store, store, notes, nil)
	f.svc.now = func() time.Time { return f.clock }

	o, err := store.CreateOffering(context.Background(), offering.Offering{
		ProviderID: "prov", Title: "Massage", Category: "Wellness",
		Price: 80000, Currency: "PHP", DurationMinutes: 60, Active: true,
	})
	require.NoError(t, err)
	f.offering = o
	return f
}

func (f *fixture) request(t *testing.T) booking.Booking {
	t.Helper()
	b, err := f.svc.Request(context.Background(), "cli", f.offering.ID, f.clock.Add(24*time.Hour), " back pain ")
	require.NoError(t, err)
	return b
}

func TestRequestSnapshotsOffering(t *testing.T) {
	f := newFixture(t)
	b := f.request(t)

	assert.Equal(t, booking.StatusPending, b.Status)
	assert.Equal(t, booking.PaymentNone, b.PaymentStatus)
	assert.Equal(t, int64(80000), b.Amount)
	assert.Equal(t, "PHP", b.Currency)
	assert.Equal(t, 60, b.DurationMinutes)
	assert.Equal(t, "prov", b.ProviderID)
	assert.Equal(t, "back pain", b.Notes)
	require.Len(t, b.History, 1)

	list, err := f.notes.List(context.Background(), "prov", true, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, notification.TypeBookingRequest, list[0].Type)
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Request(ctx, "cli", f.offering.ID, f.clock.Add(-time.Minute), "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.svc.Request(ctx, "prov", f.offering.ID, f.clock.Add(time.Hour), "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	inactive := f.offering
	inactive.Active = false
	_, err = f.store.UpdateOffering(ctx, inactive)
	require.NoError(t, err)
	_, err = f.svc.Request(ctx, "cli", f.offering.ID, f.clock.Add(time.Hour), "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))
}

func TestHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.request(t)

	_, err := f.svc.Accept(ctx, "cli", b.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden), "client cannot accept")

	b, err = f.svc.Accept(ctx, "prov", b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusAccepted, b.Status)

	_, err = f.svc.Complete(ctx, "prov", b.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState), "accepted cannot complete")

	b, err = f.svc.AttachCheckout(ctx, b, "chk_1", "https://pay/chk_1")
	require.NoError(t, err)
	assert.Equal(t, booking.PaymentAwaiting, b.PaymentStatus)

	b, err = f.svc.MarkPaid(ctx, b.ID, "chk_1")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPaid, b.Status)
	assert.Equal(t, booking.PaymentPaid, b.PaymentStatus)

	again, err := f.svc.MarkPaid(ctx, b.ID, "chk_1")
	require.NoError(t, err)
	assert.Equal(t, len(b.History), len(again.History), "repeat webhook must not add history")

	_, err = f.svc.MarkPaid(ctx, b.ID, "chk_other")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	b, err = f.svc.Complete(ctx, "prov", b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, b.Status)
	require.Len(t, b.History, 4)
	assert.Equal(t, booking.RolePayment, b.History[2].Role)

	_, err = f.svc.Cancel(ctx, "prov", b.ID, "oops")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState), "completed is terminal")
}

func TestCancelRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.request(t)
	cancelled, err := f.svc.Cancel(ctx, "cli", pending.ID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, cancelled.Status)
	assert.Equal(t, "client", cancelled.CancelledBy)
	assert.Equal(t, "changed my mind", cancelled.CancelReason)

	paid := f.request(t)
	_, err = f.svc.Accept(ctx, "prov", paid.ID)
	require.NoError(t, err)
	_, err = f.svc.MarkPaid(ctx, paid.ID, "ref")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, "cli", paid.ID, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden), "client cannot cancel a paid booking")

	refunded, err := f.svc.Cancel(ctx, "prov", paid.ID, "sick")
	require.NoError(t, err)
	assert.Equal(t, booking.PaymentRefundDue, refunded.PaymentStatus)

	_, err = f.svc.Cancel(ctx, "stranger", paid.ID, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestDeclineAndPaymentFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.request(t)
	declined, err := f.svc.Decline(ctx, "prov", b.ID, "fully booked")
	require.NoError(t, err)
	assert.Equal(t, booking.StatusDeclined, declined.Status)
	assert.Equal(t, "fully booked", declined.CancelReason)

	b = f.request(t)
	_, err = f.svc.Accept(ctx, "prov", b.ID)
	require.NoError(t, err)
	failed, err := f.svc.MarkPaymentFailed(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusAccepted, failed.Status)
	assert.Equal(t, booking.PaymentFailed, failed.PaymentStatus)
}

func TestListsAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.request(t)
	f.request(t)
	_, err := f.svc.Accept(ctx, "prov", b.ID)
	require.NoError(t, err)

	all, err := f.svc.ListForClient(ctx, "cli", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	accepted, err := f.svc.ListForProvider(ctx, "prov", booking.StatusAccepted)
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, b.ID, accepted[0].ID)

	_, err = f.svc.ListForClient(ctx, "cli", "bogus")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.svc.Get(ctx, "stranger", b.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestExpireOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending := f.request(t)
	accepted := f.request(t)
	_, err := f.svc.Accept(ctx, "prov", accepted.ID)
	require.NoError(t, err)
	later, err := f.svc.Request(ctx, "cli", f.offering.ID, f.clock.Add(72*time.Hour), "")
	require.NoError(t, err)

	f.clock = f.clock.Add(48 * time.Hour)
	expired, err := f.svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, expired)

	for _, id := range []string{pending.ID, accepted.ID} {
		b, err := f.store.GetBooking(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, booking.StatusCancelled, b.Status)
		assert.Equal(t, ReasonExpired, b.CancelReason)
		assert.Equal(t, "system", b.CancelledBy)
	}
	b, _ := f.store.GetBooking(ctx, later.ID)
	assert.Equal(t, booking.StatusPending, b.Status)
}
