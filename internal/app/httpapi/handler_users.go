package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/letsbefriends/platform/internal/app/domain/user"
	"github.com/letsbefriends/platform/internal/httputil"
	"github.com/letsbefriends/platform/internal/logging"
	"github.com/letsbefriends/platform/internal/middleware"
)

type profileView struct {
	user.User
	IsFollowing bool `json:"is_following"`
}

func (h *handler) registerUsers(r *mux.Router) {
	r.HandleFunc("/me", h.storeMe).Methods(http.MethodPost)
	r.HandleFunc("/me", h.getMe).Methods(http.MethodGet)
	r.HandleFunc("/me", h.updateMe).Methods(http.MethodPatch)
	r.HandleFunc("/me/location", h.updateMyLocation).Methods(http.MethodPut)
	r.HandleFunc("/users/search", h.searchUsers).Methods(http.MethodGet)
	r.HandleFunc("/users/by-username/{username}", h.getUserByUsername).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", h.getUser).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/follow", h.follow).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/follow", h.unfollow).Methods(http.MethodDelete)
	r.HandleFunc("/users/{id}/followers", h.followers).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/following", h.following).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/posts", h.userPosts).Methods(http.MethodGet)
}

// storeMe creates or refreshes the caller's profile from the token subject.
// Name and email fall back to the token claims.
func (h *handler) storeMe(w http.ResponseWriter, r *http.Request) {
	subject := logging.GetSubject(r.Context())
	if subject == "" {
		httputil.Unauthorized(w, "")
		return
	}
	var payload struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if !decodeOptional(w, r, &payload) {
		return
	}
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		if payload.Name == "" {
			payload.Name = claims.Name
		}
		if payload.Email == "" {
			payload.Email = claims.Email
		}
	}
	u, err := h.app.Users.Store(r.Context(), subject, payload.Name, payload.Email)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) getMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	u, err := h.app.Users.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) updateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var patch user.ProfilePatch
	if !httputil.DecodeJSON(w, r, &patch) {
		return
	}
	u, err := h.app.Users.UpdateProfile(r.Context(), userID, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) updateMyLocation(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	u, err := h.app.Users.UpdateLocation(r.Context(), userID, payload.Latitude, payload.Longitude)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) searchUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	found, err := h.app.Users.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(found))
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	u, err := h.app.Users.Get(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeProfile(w, r, viewerID, u)
}

func (h *handler) getUserByUsername(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	u, err := h.app.Users.GetByUsername(r.Context(), pathVar(r, "username"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeProfile(w, r, viewerID, u)
}

func (h *handler) writeProfile(w http.ResponseWriter, r *http.Request, viewerID string, u user.User) {
	if u.ID == viewerID {
		httputil.WriteJSON(w, http.StatusOK, profileView{User: u})
		return
	}
	following, err := h.app.Follows.IsFollowing(r.Context(), viewerID, u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profileView{User: u.Public(), IsFollowing: following})
}

func (h *handler) follow(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.app.Follows.Follow(r.Context(), userID, pathVar(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) unfollow(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.app.Follows.Unfollow(r.Context(), userID, pathVar(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) followers(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	found, err := h.app.Follows.Followers(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(found))
}

func (h *handler) following(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	found, err := h.app.Follows.Following(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(found))
}

func (h *handler) userPosts(w http.ResponseWriter, r *http.Request) {
	if _, ok := currentUser(w, r); !ok {
		return
	}
	before, limit, err := page(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	found, err := h.app.Posts.ListByAuthor(r.Context(), pathVar(r, "id"), before, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(found))
}
