package httpapi

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/letsbefriends/platform/internal/app/domain/site"
	"github.com/letsbefriends/platform/internal/app/services/sites"
	"github.com/letsbefriends/platform/internal/app/storage"
	"github.com/letsbefriends/platform/internal/httputil"
	"github.com/letsbefriends/platform/internal/logging"
)

type siteView struct {
	Site  site.Site   `json:"site"`
	Pages []site.Page `json:"pages"`
}

type pageView struct {
	Site site.Site `json:"site"`
	Page site.Page `json:"page"`
}

func (h *handler) registerSites(r *mux.Router) {
	r.HandleFunc("/site", h.getSite).Methods(http.MethodGet)
	r.HandleFunc("/site", h.putSite).Methods(http.MethodPut)
	r.HandleFunc("/site/pages", h.listPages).Methods(http.MethodGet)
	r.HandleFunc("/site/pages", h.createPage).Methods(http.MethodPost)
	r.HandleFunc("/site/pages/order", h.reorderPages).Methods(http.MethodPut)
	r.HandleFunc("/site/pages/{id}", h.updatePage).Methods(http.MethodPatch)
	r.HandleFunc("/site/pages/{id}", h.deletePage).Methods(http.MethodDelete)
	r.HandleFunc("/site/pages/{id}/homepage", h.setHomepage).Methods(http.MethodPost)
}

func (h *handler) getSite(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	st, err := h.app.Sites.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pages, err := h.app.Sites.ListPages(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, siteView{Site: st, Pages: nonNil(pages)})
}

// putSite creates the caller's site on first use, then applies the patch.
// A missing handle on creation falls back to the caller's username.
func (h *handler) putSite(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var patch sites.SitePatch
	if !httputil.DecodeJSON(w, r, &patch) {
		return
	}
	ctx := r.Context()
	if _, err := h.app.Sites.Get(ctx, userID); errors.Is(err, storage.ErrNotFound) {
		var handle, title string
		if patch.Handle != nil {
			handle = *patch.Handle
		} else {
			u, err := h.app.Users.Get(ctx, userID)
			if err != nil {
				h.writeError(w, r, err)
				return
			}
			handle = u.Username
		}
		if patch.Title != nil {
			title = *patch.Title
		}
		if _, err := h.app.Sites.EnsureSite(ctx, userID, handle, title); err != nil {
			h.writeError(w, r, err)
			return
		}
	} else if err != nil {
		h.writeError(w, r, err)
		return
	}
	st, err := h.app.Sites.UpdateSite(ctx, userID, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

func (h *handler) listPages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	pages, err := h.app.Sites.ListPages(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(pages))
}

func (h *handler) createPage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		Title  string       `json:"title"`
		Slug   string       `json:"slug"`
		Blocks []site.Block `json:"blocks"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	p, err := h.app.Sites.CreatePage(r.Context(), userID, payload.Title, payload.Slug, payload.Blocks)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *handler) reorderPages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		PageIDs []string `json:"page_ids"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	pages, err := h.app.Sites.ReorderPages(r.Context(), userID, payload.PageIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(pages))
}

func (h *handler) updatePage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var patch sites.PagePatch
	if !httputil.DecodeJSON(w, r, &patch) {
		return
	}
	p, err := h.app.Sites.UpdatePage(r.Context(), userID, pathVar(r, "id"), patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) deletePage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.app.Sites.DeletePage(r.Context(), userID, pathVar(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) setHomepage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.app.Sites.SetHomepage(r.Context(), userID, pathVar(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

// publicSite renders a site and its visible pages. Owners also see drafts.
func (h *handler) publicSite(w http.ResponseWriter, r *http.Request) {
	viewerID := logging.GetUserID(r.Context())
	st, err := h.app.Sites.GetByHandle(r.Context(), viewerID, pathVar(r, "handle"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	pages, err := h.app.Sites.ListPages(r.Context(), st.OwnerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if st.OwnerID != viewerID {
		visible := pages[:0]
		for _, p := range pages {
			if p.Published {
				visible = append(visible, p)
			}
		}
		pages = visible
	}
	httputil.WriteJSON(w, http.StatusOK, siteView{Site: st, Pages: nonNil(pages)})
}

func (h *handler) publicPage(w http.ResponseWriter, r *http.Request) {
	st, p, err := h.app.Sites.PublicPage(r.Context(), logging.GetUserID(r.Context()), pathVar(r, "handle"), pathVar(r, "slug"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pageView{Site: st, Page: p})
}

func (h *handler) createUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		ContentType string `json:"content_type"`
		Size        int64  `json:"size"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	up, err := h.app.Uploads.GenerateUploadURL(userID, payload.ContentType, payload.Size)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, up)
}

func (h *handler) listLocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	found, err := h.app.Locations.List(r.Context(), q.Get("parent"), q.Get("level"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(found))
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
