// Package postgres implements the storage interfaces on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/letsbefriends/platform/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var (
	_ storage.UserStore         = (*Store)(nil)
	_ storage.PostStore         = (*Store)(nil)
	_ storage.FollowStore       = (*Store)(nil)
	_ storage.OfferingStore     = (*Store)(nil)
	_ storage.BookingStore      = (*Store)(nil)
	_ storage.ReviewStore       = (*Store)(nil)
	_ storage.MessageStore      = (*Store)(nil)
	_ storage.NotificationStore = (*Store)(nil)
	_ storage.SiteStore         = (*Store)(nil)
	_ storage.LocationStore     = (*Store)(nil)
)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// withTx runs fn inside a transaction, committing when it returns nil.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func stamp(created time.Time) (time.Time, time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		created = now
	}
	return created, now
}

// mapErr translates driver errors into storage sentinels.
func mapErr(err error, kind, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%s %s: %s: %w", kind, id, pqErr.Constraint, storage.ErrConflict)
		case "23503":
			return fmt.Errorf("%s %s references a missing record: %w", kind, id, storage.ErrNotFound)
		}
	}
	return err
}

func requireRow(res sql.Result, kind, id string) error {
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}

func toNullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func fromNullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func marshalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return []byte("[]"), nil
	}
	return raw, nil
}

func unmarshalStrings(raw []byte) []string {
	var out []string
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return out
}

// likePattern escapes LIKE metacharacters and wraps the term in wildcards.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

func limitOrAll(limit int) sql.NullInt64 {
	if limit <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(limit), Valid: true}
}
