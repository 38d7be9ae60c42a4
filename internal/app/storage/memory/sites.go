package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/letsbefriends/platform/internal/app/domain/site"
	"github.com/letsbefriends/platform/internal/app/storage"
)

func (s *Store) CreateSite(_ context.Context, st site.Site) (site.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sites {
		if existing.OwnerID == st.OwnerID {
			return site.Site{}, conflict("user %s already has a site", st.OwnerID)
		}
		if strings.EqualFold(existing.Handle, st.Handle) {
			return site.Site{}, conflict("handle %s is taken", st.Handle)
		}
	}
	st.ID = s.assignIDLocked(st.ID)
	st.CreatedAt, st.UpdatedAt = stamp(st.CreatedAt)
	s.sites[st.ID] = st
	return st, nil
}

func (s *Store) UpdateSite(_ context.Context, st site.Site) (site.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.sites[st.ID]
	if !ok {
		return site.Site{}, notFound("site", st.ID)
	}
	for id, existing := range s.sites {
		if id != st.ID && strings.EqualFold(existing.Handle, st.Handle) {
			return site.Site{}, conflict("handle %s is taken", st.Handle)
		}
	}
	st.OwnerID = original.OwnerID
	st.CreatedAt = original.CreatedAt
	_, st.UpdatedAt = stamp(st.CreatedAt)
	s.sites[st.ID] = st
	return st, nil
}

func (s *Store) GetSiteByOwner(_ context.Context, ownerID string) (site.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.sites {
		if st.OwnerID == ownerID {
			return st, nil
		}
	}
	return site.Site{}, notFound("site for user", ownerID)
}

func (s *Store) GetSiteByHandle(_ context.Context, handle string) (site.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.sites {
		if strings.EqualFold(st.Handle, handle) {
			return st, nil
		}
	}
	return site.Site{}, notFound("site", handle)
}

func (s *Store) CreatePage(_ context.Context, p site.Page, maxPages int) (site.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := s.pagesLocked(p.OwnerID)
	if len(owned) >= maxPages {
		return site.Page{}, storage.ErrLimitReached
	}
	for _, existing := range owned {
		if existing.Slug == p.Slug {
			return site.Page{}, conflict("slug %s already used", p.Slug)
		}
	}
	p.Order = 0
	if n := len(owned); n > 0 {
		p.Order = owned[n-1].Order + 1
	}
	p.IsHomepage = len(owned) == 0
	p.ID = s.assignIDLocked(p.ID)
	p.CreatedAt, p.UpdatedAt = stamp(p.CreatedAt)
	s.pages[p.ID] = clonePage(p)
	return clonePage(p), nil
}

func (s *Store) UpdatePage(_ context.Context, p site.Page) (site.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.pages[p.ID]
	if !ok {
		return site.Page{}, notFound("page", p.ID)
	}
	for _, existing := range s.pagesLocked(original.OwnerID) {
		if existing.ID != p.ID && existing.Slug == p.Slug {
			return site.Page{}, conflict("slug %s already used", p.Slug)
		}
	}
	// Placement is managed through SetHomepage, ReorderPages and DeletePage.
	p.OwnerID = original.OwnerID
	p.SiteID = original.SiteID
	p.Order = original.Order
	p.IsHomepage = original.IsHomepage
	p.CreatedAt = original.CreatedAt
	_, p.UpdatedAt = stamp(p.CreatedAt)
	s.pages[p.ID] = clonePage(p)
	return clonePage(p), nil
}

func (s *Store) GetPage(_ context.Context, id string) (site.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pages[id]
	if !ok {
		return site.Page{}, notFound("page", id)
	}
	return clonePage(p), nil
}

func (s *Store) ListPages(_ context.Context, ownerID string) ([]site.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := s.pagesLocked(ownerID)
	for i := range owned {
		owned[i] = clonePage(owned[i])
	}
	return owned, nil
}

func (s *Store) DeletePage(_ context.Context, ownerID, pageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pages[pageID]
	if !ok || p.OwnerID != ownerID {
		return notFound("page", pageID)
	}
	delete(s.pages, pageID)

	remaining := s.pagesLocked(ownerID)
	for i := range remaining {
		remaining[i].Order = i
		if p.IsHomepage && i == 0 {
			remaining[i].IsHomepage = true
		}
		s.pages[remaining[i].ID] = remaining[i]
	}
	return nil
}

func (s *Store) SetHomepage(_ context.Context, ownerID, pageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.pages[pageID]
	if !ok || target.OwnerID != ownerID {
		return notFound("page", pageID)
	}
	for _, p := range s.pagesLocked(ownerID) {
		p.IsHomepage = p.ID == pageID
		s.pages[p.ID] = p
	}
	return nil
}

func (s *Store) ReorderPages(_ context.Context, ownerID string, orderedIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned := s.pagesLocked(ownerID)
	if len(owned) != len(orderedIDs) {
		return conflict("page set changed")
	}
	for _, id := range orderedIDs {
		p, ok := s.pages[id]
		if !ok || p.OwnerID != ownerID {
			return conflict("page %s is not owned by %s", id, ownerID)
		}
	}
	for i, id := range orderedIDs {
		p := s.pages[id]
		p.Order = i
		s.pages[id] = p
	}
	return nil
}

// pagesLocked returns the owner's pages ordered by Order.
func (s *Store) pagesLocked(ownerID string) []site.Page {
	var owned []site.Page
	for _, p := range s.pages {
		if p.OwnerID == ownerID {
			owned = append(owned, p)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if owned[i].Order != owned[j].Order {
			return owned[i].Order < owned[j].Order
		}
		return s.seq[owned[i].ID] < s.seq[owned[j].ID]
	})
	return owned
}
