package follows

import (
	"context"
	"errors"
	"strings"

	"github.com/letsbefriends/platform/internal/app/domain/follow"
	"github.com/letsbefriends/platform/internal/app/domain/notification"
	"github.com/letsbefriends/platform/internal/app/domain/user"
	"github.com/letsbefriends/platform/internal/app/services/notifications"
	"github.com/letsbefriends/platform/internal/app/storage"
	apperrors "github.com/letsbefriends/platform/internal/errors"
	"github.com/letsbefriends/platform/pkg/logger"
)

// Service manages the follow graph.
type Service struct {
	users    storage.UserStore
	store    storage.FollowStore
	notifier notifications.Sender
	log      *logger.Logger
}

// New constructs a follow service. notifier may be nil.
func New(users storage.UserStore, store storage.FollowStore, notifier notifications.Sender, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("follows")
	}
	return &Service{users: users, store: store, notifier: notifier, log: log}
}

// Follow makes followerID follow followeeID. Following twice is a no-op.
func (s *Service) Follow(ctx context.Context, followerID, followeeID string) error {
	followeeID = strings.TrimSpace(followeeID)
	if followeeID == "" {
		return apperrors.Validation("user id is required")
	}
	if followerID == followeeID {
		return apperrors.Validation("you cannot follow yourself")
	}
	created, err := s.store.CreateFollow(ctx, follow.Follow{FollowerID: followerID, FolloweeID: followeeID})
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	s.log.WithField("follower_id", followerID).WithField("followee_id", followeeID).Info("follow created")
	if s.notifier != nil {
		if _, err := s.notifier.Notify(ctx, notification.Notification{
			UserID:   followeeID,
			ActorID:  followerID,
			Type:     notification.TypeFollow,
			EntityID: followerID,
			Message:  "started following you",
		}); err != nil {
			s.log.WithError(err).WithField("followee_id", followeeID).Warn("follow notification failed")
		}
	}
	return nil
}

// Unfollow removes the edge if present.
func (s *Service) Unfollow(ctx context.Context, followerID, followeeID string) error {
	removed, err := s.store.DeleteFollow(ctx, followerID, followeeID)
	if err != nil {
		return err
	}
	if removed {
		s.log.WithField("follower_id", followerID).WithField("followee_id", followeeID).Info("follow removed")
	}
	return nil
}

// IsFollowing reports whether followerID follows followeeID.
func (s *Service) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	return s.store.IsFollowing(ctx, followerID, followeeID)
}

// Followers lists the public profiles following userID.
func (s *Service) Followers(ctx context.Context, userID string) ([]user.User, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	ids, err := s.store.ListFollowerIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.profiles(ctx, ids)
}

// Following lists the public profiles userID follows.
func (s *Service) Following(ctx context.Context, userID string) ([]user.User, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	ids, err := s.store.ListFolloweeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.profiles(ctx, ids)
}

func (s *Service) profiles(ctx context.Context, ids []string) ([]user.User, error) {
	out := make([]user.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.users.GetUser(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, u.Public())
	}
	return out, nil
}
