package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/letsbefriends/platform/internal/app/domain/user"
)

const userColumns = `id, external_id, name, username, email, bio, avatar_url, city, province,
	latitude, longitude, plan, followers_count, following_count, created_at, updated_at`

type userRow struct {
	ID             string          `db:"id"`
	ExternalID     string          `db:"external_id"`
	Name           string          `db:"name"`
	Username       string          `db:"username"`
	Email          string          `db:"email"`
	Bio            string          `db:"bio"`
	AvatarURL      string          `db:"avatar_url"`
	City           string          `db:"city"`
	Province       string          `db:"province"`
	Latitude       sql.NullFloat64 `db:"latitude"`
	Longitude      sql.NullFloat64 `db:"longitude"`
	Plan           string          `db:"plan"`
	FollowersCount int             `db:"followers_count"`
	FollowingCount int             `db:"following_count"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

func (r userRow) toDomain() user.User {
	return user.User{
		ID:             r.ID,
		ExternalID:     r.ExternalID,
		Name:           r.Name,
		Username:       r.Username,
		Email:          r.Email,
		Bio:            r.Bio,
		AvatarURL:      r.AvatarURL,
		City:           r.City,
		Province:       r.Province,
		Latitude:       fromNullFloat(r.Latitude),
		Longitude:      fromNullFloat(r.Longitude),
		Plan:           r.Plan,
		FollowersCount: r.FollowersCount,
		FollowingCount: r.FollowingCount,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func usersFromRows(rows []userRow) []user.User {
	out := make([]user.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	u.ID = newID(u.ID)
	u.CreatedAt, u.UpdatedAt = stamp(u.CreatedAt)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0, 0, $13, $14)
	`, u.ID, u.ExternalID, u.Name, u.Username, u.Email, u.Bio, u.AvatarURL, u.City, u.Province,
		toNullFloat(u.Latitude), toNullFloat(u.Longitude), u.Plan, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, mapErr(err, "user", u.Username)
	}
	u.FollowersCount, u.FollowingCount = 0, 0
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	u.UpdatedAt = time.Now().UTC()

	row := s.db.QueryRowxContext(ctx, `
		UPDATE users
		SET external_id = $2, name = $3, username = $4, email = $5, bio = $6, avatar_url = $7,
			city = $8, province = $9, latitude = $10, longitude = $11, plan = $12, updated_at = $13
		WHERE id = $1
		RETURNING `+userColumns,
		u.ID, u.ExternalID, u.Name, u.Username, u.Email, u.Bio, u.AvatarURL, u.City, u.Province,
		toNullFloat(u.Latitude), toNullFloat(u.Longitude), u.Plan, u.UpdatedAt)

	var r userRow
	if err := row.StructScan(&r); err != nil {
		return user.User{}, mapErr(err, "user", u.ID)
	}
	return r.toDomain(), nil
}

func (s *Store) getUser(ctx context.Context, where, arg string) (user.User, error) {
	var r userRow
	err := s.db.GetContext(ctx, &r, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	if err != nil {
		return user.User{}, mapErr(err, "user", arg)
	}
	return r.toDomain(), nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return s.getUser(ctx, "id = $1", id)
}

func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (user.User, error) {
	return s.getUser(ctx, "external_id = $1", externalID)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return s.getUser(ctx, "lower(username) = lower($1)", username)
}

func (s *Store) SearchUsers(ctx context.Context, query string, limit int) ([]user.User, error) {
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+userColumns+`
		FROM users
		WHERE name ILIKE $1 OR username ILIKE $1
		ORDER BY username
		LIMIT $2
	`, likePattern(query), limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	return usersFromRows(rows), nil
}

func (s *Store) ListUsersWithLocation(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+userColumns+`
		FROM users
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	return usersFromRows(rows), nil
}
