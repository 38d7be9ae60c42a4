package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/letsbefriends/platform/internal/app/domain/location"
)

func (s *Store) UpsertLocations(ctx context.Context, locs []location.Location) (int, error) {
	if len(locs) == 0 {
		return 0, nil
	}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, `
			INSERT INTO locations (code, name, level, parent_code)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (code) DO UPDATE
			SET name = EXCLUDED.name, level = EXCLUDED.level, parent_code = EXCLUDED.parent_code
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, loc := range locs {
			if _, err := stmt.ExecContext(ctx, loc.Code, loc.Name, string(loc.Level), loc.ParentCode); err != nil {
				return fmt.Errorf("upsert location %s: %w", loc.Code, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(locs), nil
}

func (s *Store) ListLocations(ctx context.Context, parentCode string, level location.Level) ([]location.Location, error) {
	var rows []struct {
		Code       string `db:"code"`
		Name       string `db:"name"`
		Level      string `db:"level"`
		ParentCode string `db:"parent_code"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT code, name, level, parent_code
		FROM locations
		WHERE ($1 = '' OR parent_code = $1) AND ($2 = '' OR level = $2)
		ORDER BY name, code
	`, parentCode, string(level))
	if err != nil {
		return nil, err
	}
	out := make([]location.Location, 0, len(rows))
	for _, r := range rows {
		out = append(out, location.Location{Code: r.Code, Name: r.Name, Level: location.Level(r.Level), ParentCode: r.ParentCode})
	}
	return out, nil
}
