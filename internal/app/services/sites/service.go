package sites

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/letsbefriends/platform/internal/app/domain/site"
	"github.com/letsbefriends/platform/internal/app/storage"
	"github.com/letsbefriends/platform/internal/config"
	apperrors "github.com/letsbefriends/platform/internal/errors"
	"github.com/letsbefriends/platform/pkg/logger"
)

const (
	maxTitle  = 100
	maxBlocks = 50
)

// SitePatch lists optional site changes; nil fields are left alone.
type SitePatch struct {
	Handle    *string `json:"handle,omitempty"`
	Title     *string `json:"title,omitempty"`
	Theme     *string `json:"theme,omitempty"`
	Published *bool   `json:"published,omitempty"`
}

// PagePatch lists optional page changes; nil fields are left alone.
type PagePatch struct {
	Title     *string       `json:"title,omitempty"`
	Slug      *string       `json:"slug,omitempty"`
	Blocks    *[]site.Block `json:"blocks,omitempty"`
	Published *bool         `json:"published,omitempty"`
}

// Service implements the plan-limited site builder.
type Service struct {
	store storage.SiteStore
	users storage.UserStore
	plans config.Plans
	log   *logger.Logger
}

// New constructs a site builder service. An empty plans set means the
// built-in defaults.
func New(store storage.SiteStore, users storage.UserStore, plans config.Plans, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("sites")
	}
	if len(plans) == 0 {
		plans = config.DefaultPlans()
	}
	return &Service{store: store, users: users, plans: plans, log: log}
}

// EnsureSite returns the owner's site, creating it on first use.
func (s *Service) EnsureSite(ctx context.Context, ownerID, handle, title string) (site.Site, error) {
	existing, err := s.store.GetSiteByOwner(ctx, ownerID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return site.Site{}, err
	}

	handle = NormalizeHandle(handle)
	if !ValidHandle(handle) {
		return site.Site{}, apperrors.Validation("handle must be 3-30 characters of a-z, 0-9, '-' or '_'")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = handle
	}
	if err := validateTitle(title); err != nil {
		return site.Site{}, err
	}

	created, err := s.store.CreateSite(ctx, site.Site{OwnerID: ownerID, Handle: handle, Title: title})
	if errors.Is(err, storage.ErrConflict) {
		return site.Site{}, apperrors.Conflict("handle is already taken")
	}
	if err != nil {
		return site.Site{}, err
	}
	s.log.WithField("site_id", created.ID).WithField("handle", handle).Info("site created")
	return created, nil
}

// Get returns the owner's site.
func (s *Service) Get(ctx context.Context, ownerID string) (site.Site, error) {
	return s.store.GetSiteByOwner(ctx, ownerID)
}

// UpdateSite applies patch to the owner's site.
func (s *Service) UpdateSite(ctx context.Context, ownerID string, patch SitePatch) (site.Site, error) {
	st, err := s.store.GetSiteByOwner(ctx, ownerID)
	if err != nil {
		return site.Site{}, err
	}
	if patch.Handle != nil {
		handle := NormalizeHandle(*patch.Handle)
		if !ValidHandle(handle) {
			return site.Site{}, apperrors.Validation("handle must be 3-30 characters of a-z, 0-9, '-' or '_'")
		}
		st.Handle = handle
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if err := validateTitle(title); err != nil {
			return site.Site{}, err
		}
		st.Title = title
	}
	if patch.Theme != nil {
		st.Theme = strings.TrimSpace(*patch.Theme)
	}
	if patch.Published != nil {
		st.Published = *patch.Published
	}

	updated, err := s.store.UpdateSite(ctx, st)
	if errors.Is(err, storage.ErrConflict) {
		return site.Site{}, apperrors.Conflict("handle is already taken")
	}
	if err != nil {
		return site.Site{}, err
	}
	s.log.WithField("site_id", updated.ID).Info("site updated")
	return updated, nil
}

// Publish toggles the public visibility of the owner's site.
func (s *Service) Publish(ctx context.Context, ownerID string, published bool) (site.Site, error) {
	return s.UpdateSite(ctx, ownerID, SitePatch{Published: &published})
}

// GetByHandle returns a site by handle. Unpublished sites are only visible
// to their owner.
func (s *Service) GetByHandle(ctx context.Context, viewerID, handle string) (site.Site, error) {
	handle = NormalizeHandle(handle)
	st, err := s.store.GetSiteByHandle(ctx, handle)
	if err != nil {
		return site.Site{}, err
	}
	if !st.Published && st.OwnerID != viewerID {
		return site.Site{}, apperrors.NotFound("site", handle)
	}
	return st, nil
}

// CreatePage adds a page to the owner's site within the plan's page quota.
// The slug is derived from the title when empty.
func (s *Service) CreatePage(ctx context.Context, ownerID, title, slug string, blocks []site.Block) (site.Page, error) {
	st, err := s.store.GetSiteByOwner(ctx, ownerID)
	if errors.Is(err, storage.ErrNotFound) {
		return site.Page{}, apperrors.InvalidState("create a site before adding pages")
	}
	if err != nil {
		return site.Page{}, err
	}
	plan, err := s.planFor(ctx, ownerID)
	if err != nil {
		return site.Page{}, err
	}

	title = strings.TrimSpace(title)
	if err := validateTitle(title); err != nil {
		return site.Page{}, err
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		slug = Slugify(title)
		if slug == "" {
			slug = "page"
		}
	}
	if !ValidSlug(slug) {
		return site.Page{}, apperrors.Validation("slug must be lowercase letters, digits and single hyphens")
	}
	if err := validateBlocks(plan, blocks); err != nil {
		return site.Page{}, err
	}
	if blocks == nil {
		blocks = []site.Block{}
	}

	p, err := s.store.CreatePage(ctx, site.Page{
		SiteID:  st.ID,
		OwnerID: ownerID,
		Title:   title,
		Slug:    slug,
		Blocks:  blocks,
	}, plan.MaxPages)
	switch {
	case errors.Is(err, storage.ErrLimitReached):
		return site.Page{}, apperrors.LimitExceeded(fmt.Sprintf("the %s plan allows %d page(s)", plan.Name, plan.MaxPages)).
			WithDetails("plan", plan.Name).
			WithDetails("max_pages", plan.MaxPages)
	case errors.Is(err, storage.ErrConflict):
		return site.Page{}, apperrors.Conflict(fmt.Sprintf("slug %q is already used", slug))
	case err != nil:
		return site.Page{}, err
	}
	s.log.WithField("page_id", p.ID).WithField("owner_id", ownerID).Info("page created")
	return p, nil
}

// UpdatePage applies patch to one of the owner's pages.
func (s *Service) UpdatePage(ctx context.Context, ownerID, pageID string, patch PagePatch) (site.Page, error) {
	p, err := s.ownedPage(ctx, ownerID, pageID)
	if err != nil {
		return site.Page{}, err
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if err := validateTitle(title); err != nil {
			return site.Page{}, err
		}
		p.Title = title
	}
	if patch.Slug != nil {
		slug := strings.TrimSpace(*patch.Slug)
		if !ValidSlug(slug) {
			return site.Page{}, apperrors.Validation("slug must be lowercase letters, digits and single hyphens")
		}
		p.Slug = slug
	}
	if patch.Blocks != nil {
		plan, err := s.planFor(ctx, ownerID)
		if err != nil {
			return site.Page{}, err
		}
		if err := validateBlocks(plan, *patch.Blocks); err != nil {
			return site.Page{}, err
		}
		p.Blocks = *patch.Blocks
		if p.Blocks == nil {
			p.Blocks = []site.Block{}
		}
	}
	if patch.Published != nil {
		p.Published = *patch.Published
	}

	updated, err := s.store.UpdatePage(ctx, p)
	if errors.Is(err, storage.ErrConflict) {
		return site.Page{}, apperrors.Conflict(fmt.Sprintf("slug %q is already used", p.Slug))
	}
	if err != nil {
		return site.Page{}, err
	}
	s.log.WithField("page_id", updated.ID).Info("page updated")
	return updated, nil
}

// SetHomepage makes pageID the owner's only homepage.
func (s *Service) SetHomepage(ctx context.Context, ownerID, pageID string) error {
	if _, err := s.ownedPage(ctx, ownerID, pageID); err != nil {
		return err
	}
	if err := s.store.SetHomepage(ctx, ownerID, pageID); err != nil {
		return err
	}
	s.log.WithField("page_id", pageID).Info("homepage changed")
	return nil
}

// DeletePage removes a page. Removing the homepage promotes the first
// remaining page.
func (s *Service) DeletePage(ctx context.Context, ownerID, pageID string) error {
	if _, err := s.ownedPage(ctx, ownerID, pageID); err != nil {
		return err
	}
	if err := s.store.DeletePage(ctx, ownerID, pageID); err != nil {
		return err
	}
	s.log.WithField("page_id", pageID).Info("page deleted")
	return nil
}

// ReorderPages sets page order to the position of each id in orderedIDs,
// which must list every page of the owner exactly once.
func (s *Service) ReorderPages(ctx context.Context, ownerID string, orderedIDs []string) ([]site.Page, error) {
	pages, err := s.store.ListPages(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := checkPermutation(pages, orderedIDs); err != nil {
		return nil, err
	}
	if err := s.store.ReorderPages(ctx, ownerID, orderedIDs); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, apperrors.Conflict("pages changed while reordering, retry")
		}
		return nil, err
	}
	s.log.WithField("owner_id", ownerID).WithField("pages", len(orderedIDs)).Info("pages reordered")
	return s.store.ListPages(ctx, ownerID)
}

// ListPages returns the owner's pages in display order.
func (s *Service) ListPages(ctx context.Context, ownerID string) ([]site.Page, error) {
	return s.store.ListPages(ctx, ownerID)
}

// PublicPage resolves a page of the site with the given handle. An empty slug
// selects the homepage. Drafts are only visible to the owner.
func (s *Service) PublicPage(ctx context.Context, viewerID, handle, slug string) (site.Site, site.Page, error) {
	st, err := s.GetByHandle(ctx, viewerID, handle)
	if err != nil {
		return site.Site{}, site.Page{}, err
	}
	pages, err := s.store.ListPages(ctx, st.OwnerID)
	if err != nil {
		return site.Site{}, site.Page{}, err
	}
	owner := st.OwnerID == viewerID
	slug = strings.TrimSpace(slug)
	for _, p := range pages {
		match := p.Slug == slug
		if slug == "" {
			match = p.IsHomepage
		}
		if match && (p.Published || owner) {
			return st, p, nil
		}
	}
	if slug == "" {
		slug = "homepage"
	}
	return site.Site{}, site.Page{}, apperrors.NotFound("page", slug)
}

func (s *Service) ownedPage(ctx context.Context, ownerID, pageID string) (site.Page, error) {
	p, err := s.store.GetPage(ctx, strings.TrimSpace(pageID))
	if err != nil {
		return site.Page{}, err
	}
	if p.OwnerID != ownerID {
		return site.Page{}, apperrors.Forbidden("page belongs to another user")
	}
	return p, nil
}

// planFor resolves the owner's plan. Unknown plan names fall back to the
// default tier.
func (s *Service) planFor(ctx context.Context, ownerID string) (config.Plan, error) {
	u, err := s.users.GetUser(ctx, ownerID)
	if err != nil {
		return config.Plan{}, err
	}
	if plan, ok := s.plans.Get(u.Plan); ok {
		return plan, nil
	}
	if plan, ok := s.plans.Get(config.DefaultPlan); ok {
		return plan, nil
	}
	return config.Plan{}, apperrors.Internal("no site plan configured", nil)
}

func validateTitle(title string) error {
	if title == "" {
		return apperrors.Validation("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitle {
		return apperrors.Validation(fmt.Sprintf("title must be at most %d characters", maxTitle))
	}
	return nil
}

func validateBlocks(plan config.Plan, blocks []site.Block) error {
	if len(blocks) > maxBlocks {
		return apperrors.Validation(fmt.Sprintf("a page holds at most %d blocks", maxBlocks))
	}
	for i, b := range blocks {
		if strings.TrimSpace(b.Type) == "" {
			return apperrors.Validation(fmt.Sprintf("block %d: type is required", i))
		}
		if !plan.AllowsBlock(b.Type) {
			return apperrors.LimitExceeded(fmt.Sprintf("block type %q is not available on the %s plan", b.Type, plan.Name)).
				WithDetails("plan", plan.Name).
				WithDetails("block_type", b.Type)
		}
	}
	return nil
}

func checkPermutation(pages []site.Page, orderedIDs []string) error {
	if len(orderedIDs) != len(pages) {
		return apperrors.Validation(fmt.Sprintf("expected %d page ids, got %d", len(pages), len(orderedIDs)))
	}
	owned := make(map[string]bool, len(pages))
	for _, p := range pages {
		owned[p.ID] = false
	}
	for _, id := range orderedIDs {
		seen, ok := owned[id]
		if !ok {
			return apperrors.Validation(fmt.Sprintf("page %s is not one of your pages", id))
		}
		if seen {
			return apperrors.Validation(fmt.Sprintf("page %s listed twice", id))
		}
		owned[id] = true
	}
	return nil
}
