package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letsbefriends/platform/internal/app/domain/location"
	"github.com/letsbefriends/platform/internal/cli"
)

func TestParseRecordsPSGCShape(t *testing.T) {
	data := []byte(`[
		{"code":"0100000000","name":"Ilocos Region","geographicLevel":"Reg"},
		{"code":"0102800000","name":"Ilocos Norte","geographicLevel":"Prov","regionCode":"0100000000"},
		{"code":"0102801000","name":"Adams","geographicLevel":"Mun","provinceCode":"0102800000","regionCode":"0100000000"},
		{"code":"0102801001","name":"Adams (Pob.)","geographicLevel":"Bgy","municipalityCode":"0102801000","cityCode":false}
	]`)

	locs, err := parseRecords(data, "")
	require.NoError(t, err)
	require.Len(t, locs, 4)

	assert.Equal(t, location.LevelRegion, locs[0].Level)
	assert.Empty(t, locs[0].ParentCode)
	assert.Equal(t, "0100000000", locs[1].ParentCode)
	assert.Equal(t, location.LevelMunicipality, locs[2].Level)
	assert.Equal(t, "0102800000", locs[2].ParentCode, "nearest ancestor wins")
	assert.Equal(t, location.LevelBarangay, locs[3].Level)
	assert.Equal(t, "0102801000", locs[3].ParentCode)
}

func TestParseRecordsDefaultLevel(t *testing.T) {
	locs, err := parseRecords([]byte(`[{"code":"1","name":"NCR"}]`), location.LevelRegion)
	require.NoError(t, err)
	assert.Equal(t, location.LevelRegion, locs[0].Level)

	_, err = parseRecords([]byte(`[{"code":"1","name":"NCR"}]`), "")
	assert.ErrorContains(t, err, "record 0")
}

func TestParseRecordsRejectsBadInput(t *testing.T) {
	_, err := parseRecords([]byte(`{"code":"1"}`), location.LevelRegion)
	assert.Error(t, err)

	_, err = parseRecords([]byte(`[{"code":"1"`), location.LevelRegion)
	assert.Error(t, err)

	_, err = parseRecords([]byte(`[{"code":"1","name":"x","level":"continent"}]`), "")
	assert.ErrorContains(t, err, "continent")
}

type fakeImporter struct {
	batches [][]location.Location
}

func (f *fakeImporter) Import(_ context.Context, locs []location.Location, _ int) (int, error) {
	f.batches = append(f.batches, locs)
	return len(locs), nil
}

func TestImportAllBatches(t *testing.T) {
	locs := make([]location.Location, 5)
	imp := &fakeImporter{}
	var out bytes.Buffer

	n, err := importAll(context.Background(), imp, locs, 2, cli.NewProgressBar(&out, len(locs), "locations"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Len(t, imp.batches, 3)
	assert.Contains(t, out.String(), "5/5")
}
