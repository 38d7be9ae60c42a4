package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/letsbefriends/platform/internal/app/domain/follow"
)

func (s *Store) CreateFollow(ctx context.Context, f follow.Follow) (bool, error) {
	created, _ := stamp(f.CreatedAt)
	inserted := false
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO follows (follower_id, followee_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, f.FollowerID, f.FolloweeID, created)
		if err != nil {
			return mapErr(err, "follow", f.FolloweeID)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		inserted = true
		return adjustFollowCounts(ctx, tx, f.FollowerID, f.FolloweeID, 1)
	})
	return inserted, err
}

func (s *Store) DeleteFollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	removed := false
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2
		`, followerID, followeeID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		removed = true
		return adjustFollowCounts(ctx, tx, followerID, followeeID, -1)
	})
	return removed, err
}

func adjustFollowCounts(ctx context.Context, tx *sqlx.Tx, followerID, followeeID string, delta int) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET following_count = GREATEST(following_count + $2, 0) WHERE id = $1
	`, followerID, delta); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE users SET followers_count = GREATEST(followers_count + $2, 0) WHERE id = $1
	`, followeeID, delta)
	return err
}

func (s *Store) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2)
	`, followerID, followeeID)
	return exists, err
}

func (s *Store) ListFollowerIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT follower_id FROM follows WHERE followee_id = $1 ORDER BY follower_id
	`, userID)
	return ids, err
}

func (s *Store) ListFolloweeIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT followee_id FROM follows WHERE follower_id = $1 ORDER BY followee_id
	`, userID)
	return ids, err
}
