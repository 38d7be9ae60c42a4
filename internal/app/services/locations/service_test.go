package locations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsbefriends/platform/internal/app/domain/location"
	"github.com/letsbefriends/platform/internal/app/storage/memory"
	apperrors "github.com/letsbefriends/platform/internal/errors"
)

func TestImportAndList(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	locs := []location.Location{
		{Code: "1300000000", Name: "National Capital Region", Level: location.LevelRegion},
		{Code: "1380600000", Name: "City of Manila", Level: location.LevelCity, ParentCode: "1300000000"},
		{Code: "1381400000", Name: "Quezon City", Level: location.LevelCity, ParentCode: "1300000000"},
		{Code: "1380100000", Name: "Caloocan", Level: location.LevelCity, ParentCode: "1300000000"},
	}
	n, err := svc.Import(ctx, locs, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	cities, err := svc.List(ctx, "1300000000", "CITY")
	require.NoError(t, err)
	require.Len(t, cities, 3)
	assert.Equal(t, "Caloocan", cities[0].Name)

	regions, err := svc.List(ctx, "", "region")
	require.NoError(t, err)
	assert.Len(t, regions, 1)

	// Re-importing updates in place.
	locs[1].Name = "Manila"
	_, err = svc.Import(ctx, locs[1:2], 0)
	require.NoError(t, err)
	all, err := svc.List(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = svc.List(ctx, "", "village")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestImportRejectsInvalidRecords(t *testing.T) {
	svc := New(memory.New(), nil)
	_, err := svc.Import(context.Background(), []location.Location{{Code: "1", Name: "X", Level: "zone"}}, 10)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}
