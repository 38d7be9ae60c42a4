package users

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsbefriends/platform/internal/app/domain/user"
	"github.com/letsbefriends/platform/internal/app/storage/memory"
	apperrors "github.com/letsbefriends/platform/internal/errors"
)

func strPtr(s string) *string { return &s }
func fPtr(f float64) *float64 { return &f }

func TestStoreCreatesAndRefreshes(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	u, err := svc.Store(ctx, "auth|1", "Maria Clara", "Maria.Clara@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "maria.clara", u.Username)
	assert.Equal(t, "maria.clara@example.com", u.Email)
	assert.Equal(t, "free", u.Plan)

	again, err := svc.Store(ctx, "auth|1", "Maria C.", "")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, "Maria C.", again.Name)
	assert.Equal(t, "maria.clara@example.com", again.Email)

	current, err := svc.Current(ctx, "auth|1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, current.ID)
}

func TestStoreMakesUsernameUnique(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	first, err := svc.Store(ctx, "a", "", "juan@example.com")
	require.NoError(t, err)
	second, err := svc.Store(ctx, "b", "", "juan@other.org")
	require.NoError(t, err)
	third, err := svc.Store(ctx, "c", "Juan", "")
	require.NoError(t, err)

	assert.Equal(t, "juan", first.Username)
	assert.Equal(t, "juan1", second.Username)
	assert.Equal(t, "juan2", third.Username)
}

func TestStoreRequiresSubject(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	_, err := svc.Store(context.Background(), "  ", "x", "x@y.z")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestDeriveUsername(t *testing.T) {
	cases := []struct{ email, name, want string }{
		{"ana@x.com", "", "ana"},
		{"a@x.com", "José Rizal", "josrizal"},
		{"", "!!", "friend"},
		{"__dots..__@x.com", "", "dots"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, deriveUsername(tc.email, tc.name), "%q/%q", tc.email, tc.name)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()
	a, err := svc.Store(ctx, "a", "Ana", "ana@x.com")
	require.NoError(t, err)
	b, err := svc.Store(ctx, "b", "Ben", "ben@x.com")
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, a.ID, user.ProfilePatch{
		Bio:      strPtr("  hello  "),
		City:     strPtr("Cebu City"),
		Username: strPtr("Ana_Reyes"),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", updated.Bio)
	assert.Equal(t, "ana_reyes", updated.Username)
	assert.Equal(t, "Ana", updated.Name)

	_, err = svc.UpdateProfile(ctx, b.ID, user.ProfilePatch{Username: strPtr("ana_reyes")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict), "got %v", err)

	_, err = svc.UpdateProfile(ctx, b.ID, user.ProfilePatch{Username: strPtr("a!")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = svc.UpdateProfile(ctx, b.ID, user.ProfilePatch{Name: strPtr("   ")})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestUpdateLocation(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()
	u, err := svc.Store(ctx, "a", "Ana", "ana@x.com")
	require.NoError(t, err)

	_, err = svc.UpdateLocation(ctx, u.ID, fPtr(91), fPtr(0))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	_, err = svc.UpdateLocation(ctx, u.ID, fPtr(10), nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	_, err = svc.UpdateLocation(ctx, u.ID, fPtr(math.NaN()), fPtr(121))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	located, err := svc.UpdateLocation(ctx, u.ID, fPtr(10.3157), fPtr(123.8854))
	require.NoError(t, err)
	assert.True(t, located.HasLocation())

	cleared, err := svc.UpdateLocation(ctx, u.ID, nil, nil)
	require.NoError(t, err)
	assert.False(t, cleared.HasLocation())
}

func TestSearchAndPlan(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()
	u, err := svc.Store(ctx, "a", "Maria Santos", "maria@x.com")
	require.NoError(t, err)
	_, err = svc.Store(ctx, "b", "Pedro", "pedro@x.com")
	require.NoError(t, err)

	found, err := svc.Search(ctx, "SANTOS", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Empty(t, found[0].Email)

	none, err := svc.Search(ctx, " ", 10)
	require.NoError(t, err)
	assert.Empty(t, none)

	upgraded, err := svc.SetPlan(ctx, u.ID, "PRO")
	require.NoError(t, err)
	assert.Equal(t, "pro", upgraded.Plan)

	_, err = svc.SetPlan(ctx, u.ID, "platinum")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestResolveSubject(t *testing.T) {
	svc := New(memory.New(), nil, nil)
	ctx := context.Background()

	id, err := svc.ResolveSubject(ctx, "auth0|unknown")
	require.NoError(t, err)
	assert.Empty(t, id)

	u, err := svc.Store(ctx, "auth0|known", "Ana", "ana@example.com")
	require.NoError(t, err)
	id, err = svc.ResolveSubject(ctx, "auth0|known")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
}

func TestValidateCoordinates(t *testing.T) {
	bad := [][2]float64{
		{90.1, 0}, {0, -180.5}, {math.NaN(), 0}, {0, math.NaN()}, {math.Inf(-1), 0}, {0, math.Inf(1)},
	}
	for _, c := range bad {
		assert.Error(t, ValidateCoordinates(c[0], c[1]), "%v", c)
	}
	assert.NoError(t, ValidateCoordinates(-90, 180))
	assert.NoError(t, ValidateCoordinates(14.5995, 120.9842))
}
