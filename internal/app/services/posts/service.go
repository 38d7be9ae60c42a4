package posts

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/letsbefriends/platform/internal/app/domain/notification"
	"github.com/letsbefriends/platform/internal/app/domain/post"
	"github.com/letsbefriends/platform/internal/app/services/notifications"
	"github.com/letsbefriends/platform/internal/app/services/users"
	"github.com/letsbefriends/platform/internal/app/storage"
	apperrors "github.com/letsbefriends/platform/internal/errors"
	"github.com/letsbefriends/platform/pkg/logger"
)

const (
	maxContent   = 2000
	maxComment   = 1000
	maxImages    = 10
	defaultLimit = 20
	maxLimit     = 100
)

// Service manages posts, likes and comments.
type Service struct {
	store    storage.PostStore
	follows  storage.FollowStore
	notifier notifications.Sender
	log      *logger.Logger
}

// New constructs a post service. notifier may be nil.
func New(store storage.PostStore, follows storage.FollowStore, notifier notifications.Sender, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("posts")
	}
	return &Service{store: store, follows: follows, notifier: notifier, log: log}
}

// Create publishes a post and notifies the author's followers.
func (s *Service) Create(ctx context.Context, authorID, content string, images []string, loc *post.Location) (post.Post, error) {
	content = strings.TrimSpace(content)
	images = cleanURLs(images)
	if content == "" && len(images) == 0 {
		return post.Post{}, apperrors.Validation("content or at least one image is required")
	}
	if utf8.RuneCountInString(content) > maxContent {
		return post.Post{}, apperrors.Validation(fmt.Sprintf("content must be at most %d characters", maxContent))
	}
	if len(images) > maxImages {
		return post.Post{}, apperrors.Validation(fmt.Sprintf("at most %d images are allowed", maxImages))
	}

	p := post.Post{AuthorID: authorID, Content: content, ImageURLs: images}
	if loc != nil {
		if err := users.ValidateCoordinates(loc.Latitude, loc.Longitude); err != nil {
			return post.Post{}, err
		}
		lat, lng := loc.Latitude, loc.Longitude
		p.Latitude, p.Longitude = &lat, &lng
		p.LocationName = strings.TrimSpace(loc.Name)
	}

	created, err := s.store.CreatePost(ctx, p)
	if err != nil {
		return post.Post{}, err
	}
	s.log.WithField("post_id", created.ID).WithField("author_id", authorID).Info("post created")

	if s.notifier != nil && s.follows != nil {
		followers, err := s.follows.ListFollowerIDs(ctx, authorID)
		if err != nil {
			s.log.WithError(err).WithField("post_id", created.ID).Warn("list followers for fan-out failed")
			return created, nil
		}
		if _, err := s.notifier.NotifyMany(ctx, followers, notification.Notification{
			ActorID:  authorID,
			Type:     notification.TypeNewPost,
			EntityID: created.ID,
			Message:  "shared a new post",
		}); err != nil {
			s.log.WithError(err).WithField("post_id", created.ID).Warn("post fan-out failed")
		}
	}
	return created, nil
}

// Get returns a post.
func (s *Service) Get(ctx context.Context, id string) (post.Post, error) {
	return s.store.GetPost(ctx, id)
}

// Delete removes a post with its comments and likes. Only the author may
// delete it.
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	p, err := s.store.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if p.AuthorID != actorID {
		return apperrors.Forbidden("only the author can delete this post")
	}
	if err := s.store.DeletePost(ctx, id); err != nil {
		return err
	}
	s.log.WithField("post_id", id).Info("post deleted")
	return nil
}

// ListByAuthor pages through one author's posts, newest first.
func (s *Service) ListByAuthor(ctx context.Context, authorID string, before time.Time, limit int) ([]post.Post, error) {
	return s.store.ListPostsByAuthors(ctx, []string{authorID}, before, clampLimit(limit))
}

// Feed returns the user's own posts and those of followed authors, newest
// first.
func (s *Service) Feed(ctx context.Context, userID string, before time.Time, limit int) ([]post.Post, error) {
	authors := []string{userID}
	if s.follows != nil {
		followees, err := s.follows.ListFolloweeIDs(ctx, userID)
		if err != nil {
			return nil, err
		}
		authors = append(authors, followees...)
	}
	return s.store.ListPostsByAuthors(ctx, authors, before, clampLimit(limit))
}

// ToggleLike likes or unlikes a post and reports the new state.
func (s *Service) ToggleLike(ctx context.Context, userID, postID string) (bool, error) {
	p, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return false, err
	}
	liked, err := s.store.ToggleLike(ctx, postID, userID)
	if err != nil {
		return false, err
	}
	s.log.WithField("post_id", postID).WithField("user_id", userID).WithField("liked", liked).Debug("like toggled")
	if liked {
		s.notify(ctx, notification.Notification{
			UserID:   p.AuthorID,
			ActorID:  userID,
			Type:     notification.TypeLike,
			EntityID: postID,
			Message:  "liked your post",
		})
	}
	return liked, nil
}

// AddComment adds a comment and notifies the post author.
func (s *Service) AddComment(ctx context.Context, userID, postID, content string) (post.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return post.Comment{}, apperrors.Validation("comment content is required")
	}
	if utf8.RuneCountInString(content) > maxComment {
		return post.Comment{}, apperrors.Validation(fmt.Sprintf("comment must be at most %d characters", maxComment))
	}
	p, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return post.Comment{}, err
	}
	created, err := s.store.CreateComment(ctx, post.Comment{PostID: postID, AuthorID: userID, Content: content})
	if err != nil {
		return post.Comment{}, err
	}
	s.log.WithField("comment_id", created.ID).WithField("post_id", postID).Info("comment created")
	s.notify(ctx, notification.Notification{
		UserID:   p.AuthorID,
		ActorID:  userID,
		Type:     notification.TypeComment,
		EntityID: postID,
		Message:  "commented on your post",
	})
	return created, nil
}

// ListComments returns a post's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, postID string) ([]post.Comment, error) {
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, postID)
}

// DeleteComment removes a comment. The comment author and the post author
// may delete it.
func (s *Service) DeleteComment(ctx context.Context, actorID, commentID string) error {
	c, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if c.AuthorID != actorID {
		p, err := s.store.GetPost(ctx, c.PostID)
		if err != nil {
			return err
		}
		if p.AuthorID != actorID {
			return apperrors.Forbidden("only the comment or post author can delete this comment")
		}
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		return err
	}
	s.log.WithField("comment_id", commentID).Info("comment deleted")
	return nil
}

func (s *Service) notify(ctx context.Context, n notification.Notification) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, n); err != nil {
		s.log.WithError(err).WithField("type", n.Type).Warn("notification failed")
	}
}

func cleanURLs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, u := range in {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
