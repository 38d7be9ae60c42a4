package bookings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/letsbefriends/platform/internal/app/domain/booking"
)

func TestNewSweeperRejectsBadSchedule(t *testing.T) {
	_, err := NewSweeper(nil, "every now and then", nil)
	assert.Error(t, err)

	s, err := NewSweeper(nil, "", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultSweepSpec, s.spec)
}

func TestSweeperLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	s, err := NewSweeper(f.svc, "@every 1h", nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx), "second start is a no-op")

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	require.NoError(t, s.Stop(stopCtx), "second stop is a no-op")
}

func TestSweepExpiresBookings(t *testing.T) {
	f := newFixture(t)
	b := f.request(t)
	f.clock = f.clock.Add(25 * time.Hour)

	s, err := NewSweeper(f.svc, DefaultSweepSpec, nil)
	require.NoError(t, err)
	n, err := s.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.store.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, got.Status)
}
