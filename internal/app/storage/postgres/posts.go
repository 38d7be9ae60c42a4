package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/letsbefriends/platform/internal/app/domain/post"
)

const postColumns = `id, author_id, content, image_urls, latitude, longitude, location_name,
	likes_count, comments_count, created_at, updated_at`

type postRow struct {
	ID            string          `db:"id"`
	AuthorID      string          `db:"author_id"`
	Content       string          `db:"content"`
	ImageURLs     []byte          `db:"image_urls"`
	Latitude      sql.NullFloat64 `db:"latitude"`
	Longitude     sql.NullFloat64 `db:"longitude"`
	LocationName  string          `db:"location_name"`
	LikesCount    int             `db:"likes_count"`
	CommentsCount int             `db:"comments_count"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func (r postRow) toDomain() post.Post {
	return post.Post{
		ID:            r.ID,
		AuthorID:      r.AuthorID,
		Content:       r.Content,
		ImageURLs:     unmarshalStrings(r.ImageURLs),
		Latitude:      fromNullFloat(r.Latitude),
		Longitude:     fromNullFloat(r.Longitude),
		LocationName:  r.LocationName,
		LikesCount:    r.LikesCount,
		CommentsCount: r.CommentsCount,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

func postsFromRows(rows []postRow) []post.Post {
	out := make([]post.Post, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

type commentRow struct {
	ID        string    `db:"id"`
	PostID    string    `db:"post_id"`
	AuthorID  string    `db:"author_id"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

func (r commentRow) toDomain() post.Comment {
	return post.Comment{ID: r.ID, PostID: r.PostID, AuthorID: r.AuthorID, Content: r.Content, CreatedAt: r.CreatedAt.UTC()}
}

func (s *Store) CreatePost(ctx context.Context, p post.Post) (post.Post, error) {
	p.ID = newID(p.ID)
	p.CreatedAt, p.UpdatedAt = stamp(p.CreatedAt)
	p.LikesCount, p.CommentsCount = 0, 0

	images, err := marshalJSON(p.ImageURLs)
	if err != nil {
		return post.Post{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, $8, $9)
	`, p.ID, p.AuthorID, p.Content, images, toNullFloat(p.Latitude), toNullFloat(p.Longitude),
		p.LocationName, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return post.Post{}, mapErr(err, "post", p.ID)
	}
	return p, nil
}

func (s *Store) GetPost(ctx context.Context, id string) (post.Post, error) {
	var r postRow
	if err := s.db.GetContext(ctx, &r, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id); err != nil {
		return post.Post{}, mapErr(err, "post", id)
	}
	return r.toDomain(), nil
}

// DeletePost relies on ON DELETE CASCADE for likes and comments.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, "post", id)
}

func (s *Store) ListPostsByAuthors(ctx context.Context, authorIDs []string, before time.Time, limit int) ([]post.Post, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}
	var rows []postRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+postColumns+`
		FROM posts
		WHERE author_id = ANY($1) AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`, pq.Array(authorIDs), toNullTime(before), limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	return postsFromRows(rows), nil
}

func (s *Store) ListPostsWithLocation(ctx context.Context) ([]post.Post, error) {
	var rows []postRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+postColumns+`
		FROM posts
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	return postsFromRows(rows), nil
}

func (s *Store) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	liked := false
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var id string
		if err := tx.GetContext(ctx, &id, `SELECT id FROM posts WHERE id = $1 FOR UPDATE`, postID); err != nil {
			return mapErr(err, "post", postID)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
		if err != nil {
			return err
		}
		delta := -1
		if n, _ := res.RowsAffected(); n == 0 {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO post_likes (post_id, user_id, created_at) VALUES ($1, $2, $3)
			`, postID, userID, time.Now().UTC()); err != nil {
				return err
			}
			delta = 1
			liked = true
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE posts SET likes_count = GREATEST(likes_count + $2, 0) WHERE id = $1
		`, postID, delta)
		return err
	})
	return liked, err
}

func (s *Store) CreateComment(ctx context.Context, c post.Comment) (post.Comment, error) {
	c.ID = newID(c.ID)
	c.CreatedAt, _ = stamp(c.CreatedAt)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE posts SET comments_count = comments_count + 1 WHERE id = $1
		`, c.PostID)
		if err != nil {
			return err
		}
		if err := requireRow(res, "post", c.PostID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO post_comments (id, post_id, author_id, content, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, c.ID, c.PostID, c.AuthorID, c.Content, c.CreatedAt)
		return err
	})
	if err != nil {
		return post.Comment{}, err
	}
	return c, nil
}

func (s *Store) GetComment(ctx context.Context, id string) (post.Comment, error) {
	var r commentRow
	err := s.db.GetContext(ctx, &r, `
		SELECT id, post_id, author_id, content, created_at FROM post_comments WHERE id = $1
	`, id)
	if err != nil {
		return post.Comment{}, mapErr(err, "comment", id)
	}
	return r.toDomain(), nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var postID string
		err := tx.GetContext(ctx, &postID, `DELETE FROM post_comments WHERE id = $1 RETURNING post_id`, id)
		if err != nil {
			return mapErr(err, "comment", id)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE posts SET comments_count = GREATEST(comments_count - 1, 0) WHERE id = $1
		`, postID)
		return err
	})
}

func (s *Store) ListComments(ctx context.Context, postID string) ([]post.Comment, error) {
	var rows []commentRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, post_id, author_id, content, created_at
		FROM post_comments
		WHERE post_id = $1
		ORDER BY created_at, id
	`, postID)
	if err != nil {
		return nil, err
	}
	out := make([]post.Comment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
