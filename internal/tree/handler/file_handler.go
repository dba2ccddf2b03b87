package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sohnjk/docspace/internal/accesslog"
	"github.com/sohnjk/docspace/internal/archive"
	"github.com/sohnjk/docspace/internal/auth"
	"github.com/sohnjk/docspace/internal/platform/web"
	"github.com/sohnjk/docspace/internal/tree"
)

const maxUploadMemory = 32 << 20

type Handler struct {
	trees    *tree.Service
	access   *accesslog.Service
	archives *archive.Builder
}

func NewHandler(trees *tree.Service, access *accesslog.Service, archives *archive.Builder) *Handler {
	return &Handler{
		trees:    trees,
		access:   access,
		archives: archives,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/files", web.Handler(h.handleList))
	mux.Handle("POST /api/files", web.Handler(h.handleUpload))
	mux.Handle("POST /api/folders", web.Handler(h.handleCreateFolder))
	mux.Handle("GET /api/files/{id}", web.Handler(h.handleGet))
	mux.Handle("GET /api/files/{id}/download", web.Handler(h.handleDownload))
	mux.Handle("GET /api/files/{id}/size", web.Handler(h.handleFolderSize))
	mux.Handle("POST /api/files/{id}/rename", web.Handler(h.handleRename))
	mux.Handle("POST /api/files/{id}/duplicate", web.Handler(h.handleDuplicate))
	mux.Handle("POST /api/files/{id}/move", web.Handler(h.handleMove))
	mux.Handle("POST /api/files/download", web.Handler(h.handleDownloadMany))
	mux.Handle("POST /api/archives", web.Handler(h.handleBuildArchive))
	mux.Handle("GET /api/archives/{locator}", web.Handler(h.handleDownloadArchive))
	mux.Handle("POST /api/files/trash", web.Handler(h.handleTrashMany))

	h.registerTrashRoutes(mux)
}

func pathID(r *http.Request) (int64, *web.Error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, &web.Error{
			Code:    http.StatusBadRequest,
			Message: "Invalid id",
			Err:     err,
		}
	}
	return id, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())
	query := r.URL.Query()

	q := &tree.ListQuery{
		Search:      strings.TrimSpace(query.Get("search")),
		OwnerFilter: query.Get("owner"),
		TypeExt:     strings.TrimPrefix(query.Get("type"), "."),
		LabelName:   query.Get("label"),
	}
	if raw := query.Get("folderId"); raw != "" {
		folderID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return &web.Error{Code: http.StatusBadRequest, Message: "Invalid folderId", Err: err}
		}
		q.FolderID = folderID
	}
	if raw := query.Get("modifiedAfter"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return &web.Error{Code: http.StatusBadRequest, Message: "Invalid modifiedAfter, expected RFC3339", Err: err}
		}
		q.ModifiedAfter = &t
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return &web.Error{Code: http.StatusBadRequest, Message: "Invalid limit", Err: err}
		}
		q.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return &web.Error{Code: http.StatusBadRequest, Message: "Invalid offset", Err: err}
		}
		q.Offset = offset
	}

	listing, err := h.trees.ListFolder(r.Context(), actorID, q)
	if err != nil {
		return web.FromFault(err, "Failed to list folder")
	}
	return web.WriteJSON(w, http.StatusOK, listing)
}

func (h *Handler) handleCreateFolder(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())

	var req struct {
		ParentID int64  `json:"parentId"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err}
	}

	node, err := h.trees.CreateFolder(r.Context(), actorID, req.ParentID, req.Name)
	if err != nil {
		return web.FromFault(err, "Failed to create folder")
	}
	dto, err := h.trees.GetNodeDTO(r.Context(), actorID, node.ID)
	if err != nil {
		return web.FromFault(err, "Failed to load created folder")
	}
	return web.WriteJSON(w, http.StatusCreated, dto)
}

// handleUpload accepts a multipart upload. Each part's filename may carry a
// relative path; the path segments become folders.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "Invalid multipart request", Err: err}
	}
	defer r.MultipartForm.RemoveAll()

	var parentID int64
	if raw := r.FormValue("parentId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return &web.Error{Code: http.StatusBadRequest, Message: "Invalid parentId", Err: err}
		}
		parentID = id
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return &web.Error{Code: http.StatusBadRequest, Message: "No files in request"}
	}

	root := &tree.PathTree{Children: map[string]*tree.PathTree{}}
	opened := make([]io.Closer, 0, len(headers))
	defer func() {
		for _, c := range opened {
			c.Close()
		}
	}()

	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			return &web.Error{Code: http.StatusBadRequest, Message: "Failed to read uploaded file", Err: err}
		}
		opened = append(opened, f)

		if err := insertLeaf(root, header.Filename, &tree.FileLeaf{
			Content: f,
			Size:    header.Size,
			Mime:    header.Header.Get("Content-Type"),
		}); err != nil {
			return &web.Error{Code: http.StatusBadRequest, Message: err.Error(), Err: err}
		}
	}

	created, err := h.trees.ImportTree(r.Context(), actorID, parentID, root)
	if err != nil {
		return web.FromFault(err, "Failed to store upload")
	}
	dtos := make([]*tree.NodeDTO, 0, len(created))
	for _, n := range created {
		dtos = append(dtos, h.trees.Describe(r.Context(), actorID, n))
	}
	return web.WriteJSON(w, http.StatusCreated, dtos)
}

// insertLeaf places one uploaded file into the path tree, creating folder
// entries for intermediate path segments.
func insertLeaf(root *tree.PathTree, name string, leaf *tree.FileLeaf) error {
	segments := strings.Split(strings.Trim(strings.ReplaceAll(name, "\\", "/"), "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return fmt.Errorf("uploaded file has no name")
	}
	for _, segment := range segments {
		if segment == "." || segment == ".." {
			return fmt.Errorf("invalid path segment in %q", name)
		}
	}

	current := root
	for _, segment := range segments[:len(segments)-1] {
		child, ok := current.Children[segment]
		if !ok {
			child = &tree.PathTree{Children: map[string]*tree.PathTree{}}
			current.Children[segment] = child
		}
		if child.File != nil {
			return fmt.Errorf("path %q collides with an uploaded file", name)
		}
		current = child
	}

	base := segments[len(segments)-1]
	if _, exists := current.Children[base]; exists {
		return fmt.Errorf("duplicate upload entry %q", name)
	}
	current.Children[base] = &tree.PathTree{File: leaf}
	return nil
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())
	id, webErr := pathID(r)
	if webErr != nil {
		return webErr
	}

	dto, err := h.trees.GetNodeDTO(r.Context(), actorID, id)
	if err != nil {
		return web.FromFault(err, "Failed to load item")
	}
	if !dto.IsFolder {
		h.access.Touch(r.Context(), actorID, dto.ID)
	}
	return web.WriteJSON(w, http.StatusOK, dto)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())
	id, webErr := pathID(r)
	if webErr != nil {
		return webErr
	}

	node, err := h.trees.GetNodeForAccess(r.Context(), actorID, id)
	if err != nil {
		return web.FromFault(err, "Failed to load item")
	}
	if node.IsFolder {
		return h.streamZip(w, r, []*tree.Node{node}, node.Name+".zip")
	}
	return h.streamFile(w, r, actorID, node)
}

func (h *Handler) handleDownloadMany(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())

	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err}
	}
	if len(req.IDs) == 0 {
		return &web.Error{Code: http.StatusBadRequest, Message: "No ids given"}
	}

	nodes := make([]*tree.Node, 0, len(req.IDs))
	for _, id := range req.IDs {
		node, err := h.trees.GetNodeForAccess(r.Context(), actorID, id)
		if err != nil {
			return web.FromFault(err, "Failed to load item")
		}
		nodes = append(nodes, node)
	}

	if len(nodes) == 1 && !nodes[0].IsFolder {
		return h.streamFile(w, r, actorID, nodes[0])
	}
	return h.streamZip(w, r, nodes, "download.zip")
}

// handleBuildArchive builds an archive blob from a selection and hands back
// its locator for a later download. The blob lives outside the tree.
func (h *Handler) handleBuildArchive(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())

	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err}
	}
	if len(req.IDs) == 0 {
		return &web.Error{Code: http.StatusBadRequest, Message: "No ids given"}
	}

	nodes := make([]*tree.Node, 0, len(req.IDs))
	for _, id := range req.IDs {
		node, err := h.trees.GetNodeForAccess(r.Context(), actorID, id)
		if err != nil {
			return web.FromFault(err, "Failed to load item")
		}
		nodes = append(nodes, node)
	}

	locator, report, err := h.archives.Build(r.Context(), nodes)
	if err != nil {
		return &web.Error{Code: http.StatusInternalServerError, Message: "Failed to build archive", Err: err}
	}
	return web.WriteJSON(w, http.StatusCreated, map[string]any{
		"locator": locator,
		"entries": report.Entries,
		"skipped": report.Skipped,
	})
}

func (h *Handler) handleDownloadArchive(w http.ResponseWriter, r *http.Request) *web.Error {
	locator := r.PathValue("locator")

	rc, err := h.archives.Open(r.Context(), locator)
	if err != nil {
		return &web.Error{Code: http.StatusNotFound, Message: "Archive not found", Err: err}
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="download.zip"`)
	if _, err := io.Copy(w, rc); err != nil {
		return &web.Error{Code: http.StatusInternalServerError, Message: "Download interrupted", Err: err}
	}
	return nil
}

func (h *Handler) streamFile(w http.ResponseWriter, r *http.Request, actorID int64, node *tree.Node) *web.Error {
	rc, err := h.trees.OpenContent(r.Context(), node)
	if err != nil {
		return web.FromFault(err, "Failed to open file")
	}
	defer rc.Close()

	h.access.Touch(r.Context(), actorID, node.ID)

	contentType := "application/octet-stream"
	if node.Mime != nil && *node.Mime != "" {
		contentType = *node.Mime
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", node.Name))
	if node.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(node.Size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		// Headers are gone; just log through the handler wrapper.
		return &web.Error{Code: http.StatusInternalServerError, Message: "Download interrupted", Err: err}
	}
	return nil
}

func (h *Handler) streamZip(w http.ResponseWriter, r *http.Request, nodes []*tree.Node, filename string) *web.Error {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if _, err := h.archives.WriteZip(r.Context(), w, nodes); err != nil {
		return &web.Error{Code: http.StatusInternalServerError, Message: "Archive build interrupted", Err: err}
	}
	return nil
}

func (h *Handler) handleFolderSize(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())
	id, webErr := pathID(r)
	if webErr != nil {
		return webErr
	}

	size, err := h.trees.FolderSizeOf(r.Context(), actorID, id)
	if err != nil {
		return web.FromFault(err, "Failed to compute size")
	}
	return web.WriteJSON(w, http.StatusOK, map[string]int64{"size": size})
}

func (h *Handler) handleRename(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())
	id, webErr := pathID(r)
	if webErr != nil {
		return webErr
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err}
	}

	node, err := h.trees.Rename(r.Context(), actorID, id, req.Name)
	if err != nil {
		return web.FromFault(err, "Failed to rename")
	}
	return web.WriteJSON(w, http.StatusOK, map[string]any{"id": node.ID, "name": node.Name})
}

func (h *Handler) handleDuplicate(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())
	id, webErr := pathID(r)
	if webErr != nil {
		return webErr
	}

	node, err := h.trees.Duplicate(r.Context(), actorID, id)
	if err != nil {
		return web.FromFault(err, "Failed to duplicate")
	}
	return web.WriteJSON(w, http.StatusCreated, h.trees.Describe(r.Context(), actorID, node))
}

func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request) *web.Error {
	actorID := auth.UserIDFromContext(r.Context())
	id, webErr := pathID(r)
	if webErr != nil {
		return webErr
	}

	var req struct {
		ParentID int64 `json:"parentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "Invalid request body", Err: err}
	}

	node, err := h.trees.Move(r.Context(), actorID, id, req.ParentID)
	if err != nil {
		return web.FromFault(err, "Failed to move")
	}
	return web.WriteJSON(w, http.StatusOK, h.trees.Describe(r.Context(), actorID, node))
}
