package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/letsbefriends/platform/internal/app/domain/post"
	"github.com/letsbefriends/platform/internal/app/services/discovery"
	apperrors "github.com/letsbefriends/platform/internal/errors"
	"github.com/letsbefriends/platform/internal/httputil"
)

func (h *handler) registerPosts(r *mux.Router) {
	r.HandleFunc("/feed", h.feed).Methods(http.MethodGet)
	r.HandleFunc("/posts", h.createPost).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id}", h.getPost).Methods(http.MethodGet)
	r.HandleFunc("/posts/{id}", h.deletePost).Methods(http.MethodDelete)
	r.HandleFunc("/posts/{id}/like", h.toggleLike).Methods(http.MethodPost)
	r.HandleFunc("/posts/{id}/comments", h.listComments).Methods(http.MethodGet)
	r.HandleFunc("/posts/{id}/comments", h.addComment).Methods(http.MethodPost)
	r.HandleFunc("/comments/{id}", h.deleteComment).Methods(http.MethodDelete)
}

func (h *handler) feed(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	before, limit, err := page(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	posts, err := h.app.Posts.Feed(r.Context(), userID, before, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(posts))
}

func (h *handler) createPost(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		Content   string         `json:"content"`
		ImageURLs []string       `json:"image_urls"`
		Location  *post.Location `json:"location"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	p, err := h.app.Posts.Create(r.Context(), userID, payload.Content, payload.ImageURLs, payload.Location)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *handler) getPost(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	p, err := h.app.Posts.Get(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) deletePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.app.Posts.Delete(r.Context(), userID, pathVar(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) toggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	liked, err := h.app.Posts.ToggleLike(r.Context(), userID, pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

func (h *handler) listComments(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	comments, err := h.app.Posts.ListComments(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(comments))
}

func (h *handler) addComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		Content string `json:"content"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	c, err := h.app.Posts.AddComment(r.Context(), userID, pathVar(r, "id"), payload.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.app.Posts.DeleteComment(r.Context(), userID, pathVar(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) registerDiscovery(r *mux.Router) {
	r.HandleFunc("/discover/users", h.discoverUsers).Methods(http.MethodGet)
	r.HandleFunc("/discover/posts", h.discoverPosts).Methods(http.MethodGet)
	r.HandleFunc("/discover/services", h.discoverServices).Methods(http.MethodGet)
}

// discoveryQuery builds a nearby query from lat/lng/radius/category/limit.
// Without coordinates it falls back to the viewer's stored location.
func (h *handler) discoveryQuery(r *http.Request, viewerID string) (discovery.Query, error) {
	q := discovery.Query{ViewerID: viewerID, Category: r.URL.Query().Get("category")}
	lat, hasLat, err := queryFloat(r, "lat")
	if err != nil {
		return q, err
	}
	lng, hasLng, err := queryFloat(r, "lng")
	if err != nil {
		return q, err
	}
	if q.RadiusKm, _, err = queryFloat(r, "radius"); err != nil {
		return q, err
	}
	if q.Limit, err = queryLimit(r); err != nil {
		return q, err
	}
	if hasLat && hasLng {
		q.Lat, q.Lng = lat, lng
		return q, nil
	}
	if hasLat != hasLng {
		return q, apperrors.Validation("lat and lng must be given together")
	}
	u, err := h.app.Users.Get(r.Context(), viewerID)
	if err != nil {
		return q, err
	}
	if !u.HasLocation() {
		return q, apperrors.Validation("no coordinates given and no stored location")
	}
	q.Lat, q.Lng = *u.Latitude, *u.Longitude
	return q, nil
}

func (h *handler) discoverUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	q, err := h.discoveryQuery(r, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	found, err := h.app.Discovery.NearbyUsers(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(found))
}

func (h *handler) discoverPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	q, err := h.discoveryQuery(r, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	found, err := h.app.Discovery.NearbyPosts(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(found))
}

func (h *handler) discoverServices(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	q, err := h.discoveryQuery(r, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	found, err := h.app.Discovery.NearbyServices(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(found))
}
