// Package discovery finds users, posts and offerings near a point.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/letsbefriends/platform/internal/app/domain/offering"
	"github.com/letsbefriends/platform/internal/app/domain/post"
	"github.com/letsbefriends/platform/internal/app/domain/user"
	"github.com/letsbefriends/platform/internal/app/metrics"
	"github.com/letsbefriends/platform/internal/app/services/users"
	"github.com/letsbefriends/platform/internal/app/storage"
	"github.com/letsbefriends/platform/internal/cache"
	apperrors "github.com/letsbefriends/platform/internal/errors"
	"github.com/letsbefriends/platform/pkg/logger"
)

const (
	DefaultRadiusKm = 10.0
	MaxRadiusKm     = 500.0
	defaultLimit    = 20
	maxLimit        = 100
	defaultCacheTTL = 30 * time.Second
)

// NearbyUser is a user with its distance from the query point.
type NearbyUser struct {
	user.User
	DistanceKm float64 `json:"distance_km"`
}

// NearbyPost is a post with its distance from the query point.
type NearbyPost struct {
	post.Post
	DistanceKm float64 `json:"distance_km"`
}

// NearbyOffering is an offering with its distance from the query point.
type NearbyOffering struct {
	offering.Offering
	DistanceKm float64 `json:"distance_km"`
}

// Query describes a nearby search. Radius zero means DefaultRadiusKm.
type Query struct {
	ViewerID string
	Lat      float64
	Lng      float64
	RadiusKm float64
	Category string
	Limit    int
}

// Service runs nearby searches as linear scans over located records.
type Service struct {
	users     storage.UserStore
	posts     storage.PostStore
	offerings storage.OfferingStore
	cache     cache.Cache
	ttl       time.Duration
	log       *logger.Logger
}

// New constructs a discovery service. c may be nil to disable caching.
func New(usersStore storage.UserStore, posts storage.PostStore, offerings storage.OfferingStore, c cache.Cache, ttl time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("discovery")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Service{users: usersStore, posts: posts, offerings: offerings, cache: c, ttl: ttl, log: log}
}

// NearbyUsers returns located users within the radius, excluding the viewer.
func (s *Service) NearbyUsers(ctx context.Context, q Query) ([]NearbyUser, error) {
	if err := normalize(&q); err != nil {
		return nil, err
	}
	var out []NearbyUser
	err := s.cached(ctx, "users", q, &out, func() error {
		candidates, err := s.users.ListUsersWithLocation(ctx)
		if err != nil {
			return err
		}
		origin := Point{Lat: q.Lat, Lng: q.Lng}
		out = make([]NearbyUser, 0)
		for _, u := range candidates {
			if u.ID == q.ViewerID || !u.HasLocation() {
				continue
			}
			d := Haversine(origin, Point{Lat: *u.Latitude, Lng: *u.Longitude})
			if d <= q.RadiusKm {
				out = append(out, NearbyUser{User: u.Public(), DistanceKm: d})
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			return closerOrNewer(out[i].DistanceKm, out[i].CreatedAt, out[j].DistanceKm, out[j].CreatedAt)
		})
		out = truncate(out, q.Limit)
		for i := range out {
			out[i].DistanceKm = roundTo(out[i].DistanceKm, 1)
		}
		return nil
	})
	return out, err
}

// NearbyPosts returns geotagged posts within the radius, excluding the
// viewer's own posts.
func (s *Service) NearbyPosts(ctx context.Context, q Query) ([]NearbyPost, error) {
	if err := normalize(&q); err != nil {
		return nil, err
	}
	var out []NearbyPost
	err := s.cached(ctx, "posts", q, &out, func() error {
		candidates, err := s.posts.ListPostsWithLocation(ctx)
		if err != nil {
			return err
		}
		origin := Point{Lat: q.Lat, Lng: q.Lng}
		out = make([]NearbyPost, 0)
		for _, p := range candidates {
			if p.AuthorID == q.ViewerID || !p.HasLocation() {
				continue
			}
			d := Haversine(origin, Point{Lat: *p.Latitude, Lng: *p.Longitude})
			if d <= q.RadiusKm {
				out = append(out, NearbyPost{Post: p, DistanceKm: d})
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			return closerOrNewer(out[i].DistanceKm, out[i].CreatedAt, out[j].DistanceKm, out[j].CreatedAt)
		})
		out = truncate(out, q.Limit)
		for i := range out {
			out[i].DistanceKm = roundTo(out[i].DistanceKm, 1)
		}
		return nil
	})
	return out, err
}

// NearbyServices returns active offerings within the radius, optionally
// restricted to one category.
func (s *Service) NearbyServices(ctx context.Context, q Query) ([]NearbyOffering, error) {
	if err := normalize(&q); err != nil {
		return nil, err
	}
	var out []NearbyOffering
	err := s.cached(ctx, "services", q, &out, func() error {
		candidates, err := s.offerings.ListOfferingsWithLocation(ctx)
		if err != nil {
			return err
		}
		origin := Point{Lat: q.Lat, Lng: q.Lng}
		out = make([]NearbyOffering, 0)
		for _, o := range candidates {
			if !o.Active || !o.HasLocation() {
				continue
			}
			if q.Category != "" && !strings.EqualFold(o.Category, q.Category) {
				continue
			}
			d := Haversine(origin, Point{Lat: *o.Latitude, Lng: *o.Longitude})
			if d <= q.RadiusKm {
				out = append(out, NearbyOffering{Offering: o, DistanceKm: d})
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			return closerOrNewer(out[i].DistanceKm, out[i].CreatedAt, out[j].DistanceKm, out[j].CreatedAt)
		})
		out = truncate(out, q.Limit)
		for i := range out {
			out[i].DistanceKm = roundTo(out[i].DistanceKm, 1)
		}
		return nil
	})
	return out, err
}

// cached serves dst from the cache when possible, otherwise runs scan and
// stores the result. Cache failures degrade to an uncached scan.
func (s *Service) cached(ctx context.Context, kind string, q Query, dst interface{}, scan func() error) error {
	key := cacheKey(kind, q)
	if s.cache != nil {
		err := cache.GetJSON(ctx, s.cache, key, dst)
		if err == nil {
			metrics.RecordNearbyQuery(kind, true, 0)
			return nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.log.WithError(err).WithField("key", key).Warn("nearby cache read failed")
		}
	}

	started := time.Now()
	if err := scan(); err != nil {
		return err
	}
	metrics.RecordNearbyQuery(kind, false, time.Since(started))

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, key, dst, s.ttl); err != nil {
			s.log.WithError(err).WithField("key", key).Warn("nearby cache write failed")
		}
	}
	return nil
}

// cacheKey buckets coordinates to three decimals (about 110 m).
func cacheKey(kind string, q Query) string {
	return fmt.Sprintf("nearby:%s:%s:%.3f:%.3f:%g:%s:%d",
		kind, q.ViewerID, q.Lat, q.Lng, q.RadiusKm, strings.ToLower(q.Category), q.Limit)
}

func normalize(q *Query) error {
	if err := users.ValidateCoordinates(q.Lat, q.Lng); err != nil {
		return err
	}
	if q.RadiusKm == 0 {
		q.RadiusKm = DefaultRadiusKm
	}
	if !(q.RadiusKm > 0 && q.RadiusKm <= MaxRadiusKm) {
		return apperrors.Validation(fmt.Sprintf("radius must be greater than 0 and at most %g km", MaxRadiusKm))
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	q.Category = strings.TrimSpace(q.Category)
	return nil
}

func closerOrNewer(d1 float64, t1 time.Time, d2 float64, t2 time.Time) bool {
	if d1 != d2 {
		return d1 < d2
	}
	return t1.After(t2)
}

func truncate[T any](items []T, limit int) []T {
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
