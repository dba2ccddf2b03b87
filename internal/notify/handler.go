package notify

import (
	"net/http"
	"strconv"

	"github.com/sohnjk/docspace/internal/auth"
	"github.com/sohnjk/docspace/internal/platform/web"
)

type Handler struct {
	notifications *Service
}

func NewHandler(notifications *Service) *Handler {
	return &Handler{notifications: notifications}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/notifications", web.Handler(h.handleInbox))
	mux.Handle("GET /api/notifications/unread-count", web.Handler(h.handleUnreadCount))
	mux.Handle("POST /api/notifications/{id}/read", web.Handler(h.handleMarkRead))
}

func (h *Handler) handleInbox(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())

	items, err := h.notifications.Inbox(r.Context(), actorID, r.URL.Query().Get("filter"))
	if err != nil {
		return web.FromFault(err, "Failed to list notifications")
	}
	return web.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())

	count, err := h.notifications.UnreadCount(r.Context(), actorID)
	if err != nil {
		return web.FromFault(err, "Failed to count notifications")
	}
	return web.WriteJSON(w, http.StatusOK, map[string]int64{"count": count})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return &web.Error{Code: http.StatusBadRequest, Message: "Invalid id", Err: err}
	}

	if err := h.notifications.MarkRead(r.Context(), actorID, id); err != nil {
		return web.FromFault(err, "Failed to mark notification read")
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
