package user

import (
	"net/http"

	"github.com/sohnjk/docspace/internal/auth"
	"github.com/sohnjk/docspace/internal/platform/web"
)

type Handler struct {
	users *Service
}

func NewHandler(users *Service) *Handler {
	return &Handler{users: users}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/users/me", web.Handler(h.handleMe))
	mux.Handle("GET /api/users/search", web.Handler(h.handleSearch))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())

	u, err := h.users.GetByID(r.Context(), actorID)
	if err != nil {
		return web.FromFault(err, "Failed to load user")
	}
	return web.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) *web.Error {
	users, err := h.users.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		return web.FromFault(err, "Failed to search users")
	}
	return web.WriteJSON(w, http.StatusOK, users)
}
