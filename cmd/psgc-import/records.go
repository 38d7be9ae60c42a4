package main

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/letsbefriends/platform/internal/app/domain/location"
)

// geographicLevels maps the PSGC "geographicLevel" abbreviations.
var geographicLevels = map[string]location.Level{
	"reg":    location.LevelRegion,
	"prov":   location.LevelProvince,
	"city":   location.LevelCity,
	"mun":    location.LevelMunicipality,
	"submun": location.LevelMunicipality,
	"bgy":    location.LevelBarangay,
}

// parentKeys lists, per level, the fields that may carry the parent code,
// nearest ancestor first.
var parentKeys = map[location.Level][]string{
	location.LevelRegion:       nil,
	location.LevelProvince:     {"regionCode"},
	location.LevelCity:         {"provinceCode", "regionCode"},
	location.LevelMunicipality: {"provinceCode", "regionCode"},
	location.LevelBarangay:     {"municipalityCode", "cityCode", "subMunicipalityCode", "provinceCode"},
}

// parseRecords walks a JSON array of PSGC records. defaultLevel applies to
// records that carry no level of their own.
func parseRecords(data []byte, defaultLevel location.Level) ([]location.Location, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("input is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("input must be a JSON array")
	}

	var (
		out []location.Location
		err error
		idx int
	)
	root.ForEach(func(_, rec gjson.Result) bool {
		var loc location.Location
		loc, err = toLocation(rec, defaultLevel)
		if err != nil {
			err = fmt.Errorf("record %d: %w", idx, err)
			return false
		}
		out = append(out, loc)
		idx++
		return true
	})
	return out, err
}

func toLocation(rec gjson.Result, defaultLevel location.Level) (location.Location, error) {
	level := defaultLevel
	if raw := firstString(rec, "level", "geographicLevel"); raw != "" {
		lvl, ok := parseLevel(raw)
		if !ok {
			return location.Location{}, fmt.Errorf("unknown level %q", raw)
		}
		level = lvl
	}
	if !level.Valid() {
		return location.Location{}, fmt.Errorf("record has no level; pass -level")
	}

	loc := location.Location{
		Code:       firstString(rec, "code", "psgc10DigitCode"),
		Name:       firstString(rec, "name"),
		Level:      level,
		ParentCode: firstString(rec, "parent_code", "parentCode"),
	}
	if loc.ParentCode == "" {
		loc.ParentCode = firstString(rec, parentKeys[level]...)
	}
	return loc, nil
}

func parseLevel(raw string) (location.Level, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if lvl, ok := geographicLevels[key]; ok {
		return lvl, true
	}
	lvl := location.Level(key)
	return lvl, lvl.Valid()
}

func firstString(rec gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := rec.Get(k); v.Exists() && v.Type != gjson.False {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}
