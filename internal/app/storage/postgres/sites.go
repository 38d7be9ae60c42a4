package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/letsbefriends/platform/internal/app/domain/site"
	"github.com/letsbefriends/platform/internal/app/storage"
)

const siteColumns = `id, owner_id, handle, title, theme, published, created_at, updated_at`

const pageColumns = `id, site_id, owner_id, title, slug, blocks, is_homepage, published, page_order,
	created_at, updated_at`

type siteRow struct {
	ID        string    `db:"id"`
	OwnerID   string    `db:"owner_id"`
	Handle    string    `db:"handle"`
	Title     string    `db:"title"`
	Theme     string    `db:"theme"`
	Published bool      `db:"published"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r siteRow) toDomain() site.Site {
	return site.Site{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Handle:    r.Handle,
		Title:     r.Title,
		Theme:     r.Theme,
		Published: r.Published,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type pageRow struct {
	ID         string    `db:"id"`
	SiteID     string    `db:"site_id"`
	OwnerID    string    `db:"owner_id"`
	Title      string    `db:"title"`
	Slug       string    `db:"slug"`
	Blocks     []byte    `db:"blocks"`
	IsHomepage bool      `db:"is_homepage"`
	Published  bool      `db:"published"`
	Order      int       `db:"page_order"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r pageRow) toDomain() site.Page {
	p := site.Page{
		ID:         r.ID,
		SiteID:     r.SiteID,
		OwnerID:    r.OwnerID,
		Title:      r.Title,
		Slug:       r.Slug,
		IsHomepage: r.IsHomepage,
		Published:  r.Published,
		Order:      r.Order,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if len(r.Blocks) > 0 {
		_ = json.Unmarshal(r.Blocks, &p.Blocks)
	}
	return p
}

func (s *Store) CreateSite(ctx context.Context, st site.Site) (site.Site, error) {
	st.ID = newID(st.ID)
	st.CreatedAt, st.UpdatedAt = stamp(st.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sites (`+siteColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, st.ID, st.OwnerID, st.Handle, st.Title, st.Theme, st.Published, st.CreatedAt, st.UpdatedAt)
	if err != nil {
		return site.Site{}, mapErr(err, "site", st.Handle)
	}
	return st, nil
}

func (s *Store) UpdateSite(ctx context.Context, st site.Site) (site.Site, error) {
	st.UpdatedAt = time.Now().UTC()
	var r siteRow
	err := s.db.QueryRowxContext(ctx, `
		UPDATE sites SET handle = $2, title = $3, theme = $4, published = $5, updated_at = $6
		WHERE id = $1
		RETURNING `+siteColumns,
		st.ID, st.Handle, st.Title, st.Theme, st.Published, st.UpdatedAt).StructScan(&r)
	if err != nil {
		return site.Site{}, mapErr(err, "site", st.ID)
	}
	return r.toDomain(), nil
}

func (s *Store) GetSiteByOwner(ctx context.Context, ownerID string) (site.Site, error) {
	var r siteRow
	if err := s.db.GetContext(ctx, &r, `SELECT `+siteColumns+` FROM sites WHERE owner_id = $1`, ownerID); err != nil {
		return site.Site{}, mapErr(err, "site for user", ownerID)
	}
	return r.toDomain(), nil
}

func (s *Store) GetSiteByHandle(ctx context.Context, handle string) (site.Site, error) {
	var r siteRow
	if err := s.db.GetContext(ctx, &r, `SELECT `+siteColumns+` FROM sites WHERE lower(handle) = lower($1)`, handle); err != nil {
		return site.Site{}, mapErr(err, "site", handle)
	}
	return r.toDomain(), nil
}

// lockSite serialises page changes for one owner by locking the site row.
func lockSite(ctx context.Context, tx *sqlx.Tx, ownerID string) error {
	var id string
	if err := tx.GetContext(ctx, &id, `SELECT id FROM sites WHERE owner_id = $1 FOR UPDATE`, ownerID); err != nil {
		return mapErr(err, "site for user", ownerID)
	}
	return nil
}

func (s *Store) CreatePage(ctx context.Context, p site.Page, maxPages int) (site.Page, error) {
	p.ID = newID(p.ID)
	p.CreatedAt, p.UpdatedAt = stamp(p.CreatedAt)
	blocks, err := marshalJSON(p.Blocks)
	if err != nil {
		return site.Page{}, err
	}

	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockSite(ctx, tx, p.OwnerID); err != nil {
			return err
		}
		var stats struct {
			Count    int `db:"count"`
			MaxOrder int `db:"max_order"`
		}
		if err := tx.GetContext(ctx, &stats, `
			SELECT COUNT(*) AS count, COALESCE(MAX(page_order), -1) AS max_order
			FROM site_pages WHERE owner_id = $1
		`, p.OwnerID); err != nil {
			return err
		}
		if stats.Count >= maxPages {
			return storage.ErrLimitReached
		}
		p.Order = stats.MaxOrder + 1
		p.IsHomepage = stats.Count == 0
		_, err := tx.ExecContext(ctx, `
			INSERT INTO site_pages (`+pageColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, p.ID, p.SiteID, p.OwnerID, p.Title, p.Slug, blocks, p.IsHomepage, p.Published, p.Order,
			p.CreatedAt, p.UpdatedAt)
		return mapErr(err, "page", p.Slug)
	})
	if err != nil {
		return site.Page{}, err
	}
	return p, nil
}

func (s *Store) UpdatePage(ctx context.Context, p site.Page) (site.Page, error) {
	blocks, err := marshalJSON(p.Blocks)
	if err != nil {
		return site.Page{}, err
	}
	var r pageRow
	err = s.db.QueryRowxContext(ctx, `
		UPDATE site_pages SET title = $2, slug = $3, blocks = $4, published = $5, updated_at = $6
		WHERE id = $1
		RETURNING `+pageColumns,
		p.ID, p.Title, p.Slug, blocks, p.Published, time.Now().UTC()).StructScan(&r)
	if err != nil {
		return site.Page{}, mapErr(err, "page", p.ID)
	}
	return r.toDomain(), nil
}

func (s *Store) GetPage(ctx context.Context, id string) (site.Page, error) {
	var r pageRow
	if err := s.db.GetContext(ctx, &r, `SELECT `+pageColumns+` FROM site_pages WHERE id = $1`, id); err != nil {
		return site.Page{}, mapErr(err, "page", id)
	}
	return r.toDomain(), nil
}

func (s *Store) ListPages(ctx context.Context, ownerID string) ([]site.Page, error) {
	return listPages(ctx, s.db, ownerID)
}

func listPages(ctx context.Context, q sqlx.QueryerContext, ownerID string) ([]site.Page, error) {
	var rows []pageRow
	err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT `+pageColumns+`
		FROM site_pages
		WHERE owner_id = $1
		ORDER BY page_order, created_at, id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]site.Page, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) DeletePage(ctx context.Context, ownerID, pageID string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockSite(ctx, tx, ownerID); err != nil {
			return err
		}
		var wasHomepage bool
		err := tx.GetContext(ctx, &wasHomepage, `
			DELETE FROM site_pages WHERE id = $1 AND owner_id = $2 RETURNING is_homepage
		`, pageID, ownerID)
		if err != nil {
			return mapErr(err, "page", pageID)
		}
		remaining, err := listPages(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		for i, p := range remaining {
			homepage := p.IsHomepage || (wasHomepage && i == 0)
			if p.Order == i && homepage == p.IsHomepage {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE site_pages SET page_order = $2, is_homepage = $3 WHERE id = $1
			`, p.ID, i, homepage); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SetHomepage(ctx context.Context, ownerID, pageID string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockSite(ctx, tx, ownerID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE site_pages SET is_homepage = FALSE WHERE owner_id = $1 AND is_homepage AND id <> $2
		`, ownerID, pageID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE site_pages SET is_homepage = TRUE WHERE id = $1 AND owner_id = $2
		`, pageID, ownerID)
		if err != nil {
			return err
		}
		return requireRow(res, "page", pageID)
	})
}

func (s *Store) ReorderPages(ctx context.Context, ownerID string, orderedIDs []string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockSite(ctx, tx, ownerID); err != nil {
			return err
		}
		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM site_pages WHERE owner_id = $1`, ownerID); err != nil {
			return err
		}
		if count != len(orderedIDs) {
			return fmt.Errorf("page set changed: %w", storage.ErrConflict)
		}
		for i, id := range orderedIDs {
			res, err := tx.ExecContext(ctx, `
				UPDATE site_pages SET page_order = $3 WHERE id = $1 AND owner_id = $2
			`, id, ownerID, i)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("page %s is not owned by %s: %w", id, ownerID, storage.ErrConflict)
			}
		}
		return nil
	})
}
