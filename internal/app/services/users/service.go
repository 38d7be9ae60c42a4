package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/letsbefriends/platform/internal/app/domain/user"
	"github.com/letsbefriends/platform/internal/app/storage"
	"github.com/letsbefriends/platform/internal/config"
	apperrors "github.com/letsbefriends/platform/internal/errors"
	"github.com/letsbefriends/platform/pkg/logger"
)

const (
	minUsername  = 3
	maxUsername  = 30
	maxBio       = 500
	maxName      = 80
	defaultLimit = 20
	maxLimit     = 100
	// usernameAttempts bounds the numeric suffixes tried when deriving a
	// username.
	usernameAttempts = 1000
)

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9_.]+$`)
	usernameStrip   = regexp.MustCompile(`[^a-z0-9_.]+`)
)

// Service manages user profiles.
type Service struct {
	store storage.UserStore
	plans config.Plans
	log   *logger.Logger
}

// New constructs a user service. A nil plans map means the built-in plans.
func New(store storage.UserStore, plans config.Plans, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	if plans == nil {
		plans = config.DefaultPlans()
	}
	return &Service{store: store, plans: plans, log: log}
}

// Store creates the user for an authenticated subject, or refreshes name and
// email of the existing record.
func (s *Service) Store(ctx context.Context, externalID, name, email string) (user.User, error) {
	externalID = strings.TrimSpace(externalID)
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if externalID == "" {
		return user.User{}, apperrors.Unauthorized("")
	}

	existing, err := s.store.GetUserByExternalID(ctx, externalID)
	switch {
	case err == nil:
		changed := false
		if name != "" && name != existing.Name {
			existing.Name = name
			changed = true
		}
		if email != "" && email != existing.Email {
			existing.Email = email
			changed = true
		}
		if !changed {
			return existing, nil
		}
		updated, err := s.store.UpdateUser(ctx, existing)
		if err != nil {
			return user.User{}, err
		}
		s.log.WithField("user_id", updated.ID).Info("user refreshed")
		return updated, nil
	case !errors.Is(err, storage.ErrNotFound):
		return user.User{}, err
	}

	if name == "" {
		name = localPart(email)
	}
	if name == "" {
		name = "Friend"
	}
	base := deriveUsername(email, name)

	for attempt := 0; attempt < usernameAttempts; attempt++ {
		candidate := withSuffix(base, attempt)
		if _, err := s.store.GetUserByUsername(ctx, candidate); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return user.User{}, err
		}
		created, err := s.store.CreateUser(ctx, user.User{
			ExternalID: externalID,
			Name:       truncate(name, maxName),
			Username:   candidate,
			Email:      email,
			Plan:       config.DefaultPlan,
		})
		if errors.Is(err, storage.ErrConflict) {
			// Lost a race for the username or the subject; retry or reload.
			if u, lookupErr := s.store.GetUserByExternalID(ctx, externalID); lookupErr == nil {
				return u, nil
			}
			continue
		}
		if err != nil {
			return user.User{}, err
		}
		s.log.WithField("user_id", created.ID).
			WithField("username", created.Username).
			Info("user created")
		return created, nil
	}
	return user.User{}, apperrors.Conflict("could not allocate a username")
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// GetByUsername returns a user by username, case-insensitively.
func (s *Service) GetByUsername(ctx context.Context, username string) (user.User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return user.User{}, apperrors.Validation("username is required")
	}
	return s.store.GetUserByUsername(ctx, username)
}

// Current resolves the user record of an authenticated subject.
func (s *Service) Current(ctx context.Context, externalID string) (user.User, error) {
	if strings.TrimSpace(externalID) == "" {
		return user.User{}, apperrors.Unauthorized("")
	}
	return s.store.GetUserByExternalID(ctx, externalID)
}

// ResolveSubject maps an auth subject to a user id, returning "" for
// subjects that have not stored a profile yet.
func (s *Service) ResolveSubject(ctx context.Context, subject string) (string, error) {
	u, err := s.store.GetUserByExternalID(ctx, subject)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// UpdateProfile applies the non-nil fields of patch.
func (s *Service) UpdateProfile(ctx context.Context, id string, patch user.ProfilePatch) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return user.User{}, apperrors.Validation("name must not be empty")
		}
		if utf8.RuneCountInString(name) > maxName {
			return user.User{}, apperrors.Validation(fmt.Sprintf("name must be at most %d characters", maxName))
		}
		u.Name = name
	}
	if patch.Username != nil {
		username := strings.ToLower(strings.TrimSpace(*patch.Username))
		if err := ValidateUsername(username); err != nil {
			return user.User{}, err
		}
		u.Username = username
	}
	if patch.Bio != nil {
		bio := strings.TrimSpace(*patch.Bio)
		if utf8.RuneCountInString(bio) > maxBio {
			return user.User{}, apperrors.Validation(fmt.Sprintf("bio must be at most %d characters", maxBio))
		}
		u.Bio = bio
	}
	if patch.AvatarURL != nil {
		u.AvatarURL = strings.TrimSpace(*patch.AvatarURL)
	}
	if patch.City != nil {
		u.City = strings.TrimSpace(*patch.City)
	}
	if patch.Province != nil {
		u.Province = strings.TrimSpace(*patch.Province)
	}

	updated, err := s.store.UpdateUser(ctx, u)
	if errors.Is(err, storage.ErrConflict) {
		return user.User{}, apperrors.Conflict("username is already taken")
	}
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", id).Info("profile updated")
	return updated, nil
}

// UpdateLocation sets the user's coordinates. Passing both as nil clears
// them.
func (s *Service) UpdateLocation(ctx context.Context, id string, lat, lng *float64) (user.User, error) {
	if (lat == nil) != (lng == nil) {
		return user.User{}, apperrors.Validation("latitude and longitude must be set together")
	}
	if lat != nil {
		if err := ValidateCoordinates(*lat, *lng); err != nil {
			return user.User{}, err
		}
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	u.Latitude, u.Longitude = lat, lng
	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", id).WithField("cleared", lat == nil).Info("location updated")
	return updated, nil
}

// Search matches name or username, case-insensitively. An empty query
// matches nothing.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]user.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []user.User{}, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	found, err := s.store.SearchUsers(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	for i := range found {
		found[i] = found[i].Public()
	}
	return found, nil
}

// SetPlan moves the user to another site-builder plan.
func (s *Service) SetPlan(ctx context.Context, id, planName string) (user.User, error) {
	plan, ok := s.plans.Get(planName)
	if !ok {
		return user.User{}, apperrors.Validation(fmt.Sprintf("unknown plan %q", planName)).
			WithDetails("plans", s.plans.Names())
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if u.Plan == plan.Name {
		return u, nil
	}
	u.Plan = plan.Name
	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", id).WithField("plan", plan.Name).Info("plan changed")
	return updated, nil
}

// ValidateUsername checks length and character set.
func ValidateUsername(username string) error {
	if n := len(username); n < minUsername || n > maxUsername {
		return apperrors.Validation(fmt.Sprintf("username must be %d-%d characters", minUsername, maxUsername))
	}
	if !usernamePattern.MatchString(username) {
		return apperrors.Validation("username may only contain a-z, 0-9, '_' and '.'")
	}
	return nil
}

// ValidateCoordinates checks latitude and longitude ranges. NaN fails both.
func ValidateCoordinates(lat, lng float64) error {
	if !(lat >= -90 && lat <= 90) {
		return apperrors.Validation("latitude must be between -90 and 90")
	}
	if !(lng >= -180 && lng <= 180) {
		return apperrors.Validation("longitude must be between -180 and 180")
	}
	return nil
}

// deriveUsername builds a valid base username from the email local part or
// the display name.
func deriveUsername(email, name string) string {
	for _, source := range []string{localPart(email), name} {
		candidate := usernameStrip.ReplaceAllString(strings.ToLower(source), "")
		candidate = strings.Trim(candidate, "._")
		if len(candidate) > maxUsername-4 {
			candidate = candidate[:maxUsername-4]
		}
		if len(candidate) >= minUsername {
			return candidate
		}
	}
	return "friend"
}

func withSuffix(base string, attempt int) string {
	if attempt == 0 {
		return base
	}
	return fmt.Sprintf("%s%d", base, attempt)
}

func localPart(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return ""
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
