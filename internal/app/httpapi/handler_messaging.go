package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/letsbefriends/platform/internal/httputil"
)

func (h *handler) registerMessaging(r *mux.Router) {
	r.HandleFunc("/conversations", h.listConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations", h.openConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/messages", h.listMessages).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/messages", h.sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/conversations/{id}/read", h.markConversationRead).Methods(http.MethodPost)
}

func (h *handler) listConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	found, err := h.app.Messaging.List(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(found))
}

func (h *handler) openConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		UserID string `json:"user_id"`
	}
	if !httputil.DecodeJSON(w, r, &payload) {
		return
	}
	conv, err := h.app.Messaging.GetOrCreate(r.Context(), userID, payload.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, conv)
}

func (h *handler) listMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	before, limit, err := page(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	found, err := h.app.Messaging.Messages(r.Context(), userID, pathVar(r, "id"), before, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(found))
}

func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request) {
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
	msg, err := h.app.Messaging.Send(r.Context(), userID, pathVar(r, "id"), payload.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, msg)
}

func (h *handler) markConversationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	n, err := h.app.Messaging.MarkRead(r.Context(), userID, pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"marked": n})
}

func (h *handler) registerNotifications(r *mux.Router) {
	r.HandleFunc("/notifications", h.listNotifications).Methods(http.MethodGet)
	r.HandleFunc("/notifications/unread-count", h.unreadNotifications).Methods(http.MethodGet)
	r.HandleFunc("/notifications/read-all", h.readAllNotifications).Methods(http.MethodPost)
	r.HandleFunc("/notifications/{id}/read", h.readNotification).Methods(http.MethodPost)
}

func (h *handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	found, err := h.app.Notifications.List(r.Context(), userID, queryBool(r, "unread"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list(found))
}

func (h *handler) unreadNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	n, err := h.app.Notifications.UnreadCount(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"unread": n})
}

func (h *handler) readNotification(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.app.Notifications.MarkRead(r.Context(), userID, pathVar(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

func (h *handler) readAllNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	n, err := h.app.Notifications.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"marked": n})
}
