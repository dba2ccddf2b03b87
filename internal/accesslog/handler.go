package accesslog

import (
	"net/http"

	"github.com/sohnjk/docspace/internal/auth"
	"github.com/sohnjk/docspace/internal/platform/web"
)

type Handler struct {
	access *Service
}

func NewHandler(access *Service) *Handler {
	return &Handler{access: access}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/files/recent", web.Handler(h.handleRecent))
	mux.Handle("GET /api/files/recommended", web.Handler(h.handleRecommended))
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())

	items, err := h.access.LastOpened(r.Context(), actorID)
	if err != nil {
		return web.FromFault(err, "Failed to list recent files")
	}
	return web.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) handleRecommended(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())

	items, err := h.access.Recommended(r.Context(), actorID)
	if err != nil {
		return web.FromFault(err, "Failed to list recommended files")
	}
	return web.WriteJSON(w, http.StatusOK, items)
}
