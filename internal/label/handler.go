package label

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sohnjk/docspace/internal/auth"
	"github.com/sohnjk/docspace/internal/platform/web"
)

type Handler struct {
	labels *Service
}

func NewHandler(labels *Service) *Handler {
	return &Handler{labels: labels}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/labels", web.Handler(h.handleList))
	mux.Handle("POST /api/labels", web.Handler(h.handleCreate))
	mux.Handle("PUT /api/labels/{id}", web.Handler(h.handleUpdate))
	mux.Handle("DELETE /api/labels/{id}", web.Handler(h.handleDelete))
	mux.Handle("POST /api/files/{id}/labels/{labelId}", web.Handler(h.handleAttach))
	mux.Handle("DELETE /api/files/{id}/labels/{labelId}", web.Handler(h.handleDetach))
}

func pathInt(r *http.Request, name string) (int64, *web.Error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 1 {
		return 0, &web.Error{Code: http.StatusBadRequest, Message: "Invalid " + name, Err: err}
	}
	return id, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) *web.Error {
	labels, err := h.labels.GetAll(r.Context())
	if err != nil {
		return web.FromFault(err, "Failed to list labels")
	}
	return web.WriteJSON(w, http.StatusOK, labels)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())

	var req UpsertLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err}
	}

	created, err := h.labels.Create(r.Context(), actorID, &req)
	if err != nil {
		return web.FromFault(err, "Failed to create label")
	}
	return web.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) *web.Error {
	id, webErr := pathInt(r, "id")
	if webErr != nil {
		return webErr
	}

	var req UpsertLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err}
	}

	updated, err := h.labels.Update(r.Context(), id, &req)
	if err != nil {
		return web.FromFault(err, "Failed to update label")
	}
	return web.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) *web.Error {
	id, webErr := pathInt(r, "id")
	if webErr != nil {
		return webErr
	}

	if err := h.labels.Delete(r.Context(), id); err != nil {
		return web.FromFault(err, "Failed to delete label")
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) handleAttach(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())
	nodeID, webErr := pathInt(r, "id")
	if webErr != nil {
		return webErr
	}
	labelID, webErr := pathInt(r, "labelId")
	if webErr != nil {
		return webErr
	}

	if err := h.labels.Attach(r.Context(), actorID, nodeID, labelID); err != nil {
		return web.FromFault(err, "Failed to attach label")
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) handleDetach(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())
	nodeID, webErr := pathInt(r, "id")
	if webErr != nil {
		return webErr
	}
	labelID, webErr := pathInt(r, "labelId")
	if webErr != nil {
		return webErr
	}

	if err := h.labels.Detach(r.Context(), actorID, nodeID, labelID); err != nil {
		return web.FromFault(err, "Failed to detach label")
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
