package memory

import (
	"context"
	"sort"
	"time"

	"github.com/letsbefriends/platform/internal/app/domain/post"
)

func (s *Store) CreatePost(_ context.Context, p post.Post) (post.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID != "" {
		if _, exists := s.posts[p.ID]; exists {
			return post.Post{}, conflict("post %s already exists", p.ID)
		}
	}
	p.ID = s.assignIDLocked(p.ID)
	p.CreatedAt, p.UpdatedAt = stamp(p.CreatedAt)
	p.LikesCount, p.CommentsCount = 0, 0
	s.posts[p.ID] = clonePost(p)
	return clonePost(p), nil
}

func (s *Store) GetPost(_ context.Context, id string) (post.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return post.Post{}, notFound("post", id)
	}
	return clonePost(p), nil
}

func (s *Store) DeletePost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return notFound("post", id)
	}
	delete(s.posts, id)
	delete(s.likes, id)
	for cid, c := range s.comments {
		if c.PostID == id {
			delete(s.comments, cid)
		}
	}
	return nil
}

func (s *Store) ListPostsByAuthors(_ context.Context, authorIDs []string, before time.Time, limit int) ([]post.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	authors := make(map[string]struct{}, len(authorIDs))
	for _, id := range authorIDs {
		authors[id] = struct{}{}
	}
	var result []post.Post
	for _, p := range s.posts {
		if _, ok := authors[p.AuthorID]; !ok {
			continue
		}
		if !before.IsZero() && !p.CreatedAt.Before(before) {
			continue
		}
		result = append(result, clonePost(p))
	}
	sort.Slice(result, func(i, j int) bool {
		return s.newerFirst(result[i].ID, result[i].CreatedAt, result[j].ID, result[j].CreatedAt)
	})
	return applyLimit(result, limit), nil
}

func (s *Store) ListPostsWithLocation(_ context.Context) ([]post.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []post.Post
	for _, id := range sortedKeys(s.posts) {
		if p := s.posts[id]; p.HasLocation() {
			result = append(result, clonePost(p))
		}
	}
	return result, nil
}

func (s *Store) ToggleLike(_ context.Context, postID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return false, notFound("post", postID)
	}
	likers := s.likes[postID]
	if likers == nil {
		likers = make(map[string]time.Time)
		s.likes[postID] = likers
	}
	liked := false
	if _, exists := likers[userID]; exists {
		delete(likers, userID)
		if p.LikesCount > 0 {
			p.LikesCount--
		}
	} else {
		likers[userID] = time.Now().UTC()
		p.LikesCount++
		liked = true
	}
	s.posts[postID] = p
	return liked, nil
}

func (s *Store) CreateComment(_ context.Context, c post.Comment) (post.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[c.PostID]
	if !ok {
		return post.Comment{}, notFound("post", c.PostID)
	}
	c.ID = s.assignIDLocked(c.ID)
	c.CreatedAt, _ = stamp(c.CreatedAt)
	s.comments[c.ID] = c
	p.CommentsCount++
	s.posts[p.ID] = p
	return c, nil
}

func (s *Store) GetComment(_ context.Context, id string) (post.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return post.Comment{}, notFound("comment", id)
	}
	return c, nil
}

func (s *Store) DeleteComment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok {
		return notFound("comment", id)
	}
	delete(s.comments, id)
	if p, ok := s.posts[c.PostID]; ok && p.CommentsCount > 0 {
		p.CommentsCount--
		s.posts[p.ID] = p
	}
	return nil
}

func (s *Store) ListComments(_ context.Context, postID string) ([]post.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []post.Comment
	for _, c := range s.comments {
		if c.PostID == postID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return !s.newerFirst(result[i].ID, result[i].CreatedAt, result[j].ID, result[j].CreatedAt)
	})
	return result, nil
}
