package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sohnjk/docspace/internal/auth"
	"github.com/sohnjk/docspace/internal/platform/web"
	"github.com/sohnjk/docspace/internal/tree"
)

func (h *Handler) registerTrashRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/trash", web.Handler(h.handleListTrash))
	mux.Handle("POST /api/trash/restore", web.Handler(h.handleRestoreMany))
	mux.Handle("POST /api/trash/purge", web.Handler(h.handlePurgeMany))
}

// itemOutcome reports one node of a bulk call. Bulk operations are
// per-item: one failure never rolls back the others, and the response says
// exactly which ids succeeded.
type itemOutcome struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

type bulkResult struct {
	Succeeded []int64       `json:"succeeded"`
	Failed    []itemOutcome `json:"failed"`
}

func decodeIDs(r *http.Request) ([]int64, *web.Error) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, &web.Error{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err}
	}
	if len(req.IDs) == 0 {
		return nil, &web.Error{Code: http.StatusBadRequest, Message: "No ids given"}
	}
	return req.IDs, nil
}

func (h *Handler) handleListTrash(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())

	items, err := h.trees.ListTrash(r.Context(), actorID, r.URL.Query().Get("search"))
	if err != nil {
		return web.FromFault(err, "Failed to list trash")
	}
	return web.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) handleTrashMany(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())
	ids, webErr := decodeIDs(r)
	if webErr != nil {
		return webErr
	}

	result := bulkResult{Succeeded: []int64{}, Failed: []itemOutcome{}}
	for _, id := range ids {
		if err := h.trees.MoveToTrash(r.Context(), actorID, id); err != nil {
			result.Failed = append(result.Failed, itemOutcome{ID: id, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return web.WriteJSON(w, bulkStatus(result), result)
}

func (h *Handler) handleRestoreMany(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())
	ids, webErr := decodeIDs(r)
	if webErr != nil {
		return webErr
	}

	result := bulkResult{Succeeded: []int64{}, Failed: []itemOutcome{}}
	for _, id := range ids {
		if _, err := h.trees.Restore(r.Context(), actorID, id); err != nil {
			result.Failed = append(result.Failed, itemOutcome{ID: id, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return web.WriteJSON(w, bulkStatus(result), result)
}

func (h *Handler) handlePurgeMany(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())
	ids, webErr := decodeIDs(r)
	if webErr != nil {
		return webErr
	}

	type purgeOutcome struct {
		bulkResult
		Partial []tree.PurgeFailure `json:"partial"`
	}
	result := purgeOutcome{
		bulkResult: bulkResult{Succeeded: []int64{}, Failed: []itemOutcome{}},
		Partial:    []tree.PurgeFailure{},
	}

	for _, id := range ids {
		purged, err := h.trees.Purge(r.Context(), actorID, id)
		if err != nil {
			result.Failed = append(result.Failed, itemOutcome{ID: id, Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
		result.Partial = append(result.Partial, purged.Failures...)
	}
	return web.WriteJSON(w, bulkStatus(result.bulkResult), result)
}

// bulkStatus is 200 when everything succeeded, 207 for a mix, 400 when
// every item failed.
func bulkStatus(result bulkResult) int {
	switch {
	case len(result.Failed) == 0:
		return http.StatusOK
	case len(result.Succeeded) == 0:
		return http.StatusBadRequest
	default:
		return http.StatusMultiStatus
	}
}
