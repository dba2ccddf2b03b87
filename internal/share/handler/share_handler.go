package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/sohnjk/docspace/internal/archive"
	"github.com/sohnjk/docspace/internal/auth"
	"github.com/sohnjk/docspace/internal/platform/web"
	"github.com/sohnjk/docspace/internal/share"
	"github.com/sohnjk/docspace/internal/tree"
)

type Handler struct {
	shares   *share.Service
	trees    *tree.Service
	archives *archive.Builder
}

func NewHandler(shares *share.Service, trees *tree.Service, archives *archive.Builder) *Handler {
	return &Handler{
		shares:   shares,
		trees:    trees,
		archives: archives,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("POST /api/shares", web.Handler(h.handleShare))
	mux.Handle("GET /api/shares/with-me", web.Handler(h.handleSharedWithMe))
	mux.Handle("GET /api/shares/file/{id}", web.Handler(h.handleGrantsOnFile))
	mux.Handle("PUT /api/shares/{id}", web.Handler(h.handleUpdateRole))
	mux.Handle("DELETE /api/shares/{id}", web.Handler(h.handleRevoke))
	mux.Handle("POST /api/share-links", web.Handler(h.handleCreateLink))
	mux.Handle("GET /api/shares/grant/{token}", web.Handler(h.handleResolveGrant))

	// Link-token routes are public; the auth middleware skips /api/s/.
	// Grant tokens stay behind auth because they are bound to a recipient.
	mux.Handle("GET /api/s/link/{token}", web.Handler(h.handleResolveLink))
	mux.Handle("GET /api/s/link/{token}/download", web.Handler(h.handleDownloadLink))
}

func pathID(r *http.Request) (int64, *web.Error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, &web.Error{Code: http.StatusBadRequest, Message: "Invalid id", Err: err}
	}
	return id, nil
}

func (h *Handler) handleShare(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())

	var req struct {
		NodeID       int64   `json:"nodeId"`
		RecipientIDs []int64 `json:"recipientIds"`
		RoleID       int64   `json:"roleId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err}
	}

	grants, err := h.shares.Share(r.Context(), actorID, req.NodeID, req.RecipientIDs, req.RoleID)
	if err != nil {
		return web.FromFault(err, "Failed to share")
	}
	return web.WriteJSON(w, http.StatusCreated, grants)
}

func (h *Handler) handleSharedWithMe(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())

	items, err := h.shares.SharedWithMe(r.Context(), actorID)
	if err != nil {
		return web.FromFault(err, "Failed to list shared items")
	}
	return web.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) handleGrantsOnFile(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())
	id, webErr := pathID(r)
	if webErr != nil {
		return webErr
	}

	grants, err := h.shares.GrantsOnFile(r.Context(), actorID, id)
	if err != nil {
		return web.FromFault(err, "Failed to list shares")
	}
	return web.WriteJSON(w, http.StatusOK, grants)
}

func (h *Handler) handleUpdateRole(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())
	id, webErr := pathID(r)
	if webErr != nil {
		return webErr
	}

	var req struct {
		RoleID int64 `json:"roleId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err}
	}

	if err := h.shares.UpdateRole(r.Context(), actorID, id, req.RoleID); err != nil {
		return web.FromFault(err, "Failed to update share")
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())
	id, webErr := pathID(r)
	if webErr != nil {
		return webErr
	}

	if err := h.shares.Revoke(r.Context(), actorID, id); err != nil {
		return web.FromFault(err, "Failed to revoke share")
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) handleCreateLink(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())

	var req struct {
		NodeID       int64 `json:"nodeId"`
		PermissionID int64 `json:"permissionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err}
	}

	link, err := h.shares.CreateLink(r.Context(), actorID, req.NodeID, req.PermissionID)
	if err != nil {
		return web.FromFault(err, "Failed to create share link")
	}
	return web.WriteJSON(w, http.StatusCreated, link)
}

func (h *Handler) handleResolveLink(w http.ResponseWriter, r *http.Request) *web.Error {
	_, node, err := h.shares.ResolveLink(r.Context(), r.PathValue("token"))
	if err != nil {
		return web.FromFault(err, "Failed to resolve share link")
	}
	return web.WriteJSON(w, http.StatusOK, h.trees.Describe(r.Context(), 0, node))
}

func (h *Handler) handleDownloadLink(w http.ResponseWriter, r *http.Request) *web.Error {
	_, node, err := h.shares.ResolveLink(r.Context(), r.PathValue("token"))
	if err != nil {
		return web.FromFault(err, "Failed to resolve share link")
	}

	if node.IsFolder {
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", node.Name+".zip"))
		if _, err := h.archives.WriteZip(r.Context(), w, []*tree.Node{node}); err != nil {
			return &web.Error{Code: http.StatusInternalServerError, Message: "Archive build interrupted", Err: err}
		}
		return nil
	}

	rc, err := h.trees.OpenContent(r.Context(), node)
	if err != nil {
		return web.FromFault(err, "Failed to open file")
	}
	defer rc.Close()

	contentType := "application/octet-stream"
	if node.Mime != nil && *node.Mime != "" {
		contentType = *node.Mime
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", node.Name))
	if _, err := io.Copy(w, rc); err != nil {
		return &web.Error{Code: http.StatusInternalServerError, Message: "Download interrupted", Err: err}
	}
	return nil
}

func (h *Handler) handleResolveGrant(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())

	grant, node, err := h.shares.ResolveGrantToken(r.Context(), actorID, r.PathValue("token"))
	if err != nil {
		return web.FromFault(err, "Failed to resolve share")
	}
	return web.WriteJSON(w, http.StatusOK, map[string]any{
		"grant": grant,
		"item":  h.trees.Describe(r.Context(), actorID, node),
	})
}
