package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docvault/backend/internal/auth"
	"github.com/docvault/backend/internal/document"
	"github.com/docvault/backend/internal/models"
)

const maxUploadBytes = 32 << 20

type DocumentHandler struct {
	svc *document.Service
}

func NewDocumentHandler(svc *document.Service) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		badRequest(w, "invalid multipart form")
		return
	}

	workspaceID, err := uuid.Parse(r.FormValue("workspace_id"))
	if err != nil {
		badRequest(w, "workspace_id required")
		return
	}
	if !principal.CanEdit(workspaceID) {
		forbidden(w)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		badRequest(w, "failed to read file")
		return
	}
	if len(data) > maxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large"})
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}

	doc, duplicate, err := h.svc.Upload(r.Context(), document.UploadRequest{
		WorkspaceID: workspaceID,
		UserID:      principal.UserID,
		Title:       title,
		Filename:    header.Filename,
		MimeType:    header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if duplicate {
		writeJSON(w, http.StatusOK, map[string]interface{}{"document": doc, "status": "duplicate"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"document": doc, "status": "created"})
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	workspaceIDs, ok := scopeWorkspaces(principal, r)
	if !ok {
		forbidden(w)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 20
	}

	docs, err := h.svc.List(r.Context(), workspaceIDs, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.readable(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Status is a light polling endpoint for upload progress.
func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.readable(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":              doc.ID,
		"status":          doc.Status,
		"error_message":   doc.ErrorMessage,
		"degraded_reason": doc.DegradedReason,
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid document ID")
		return
	}

	doc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !principal.CanEdit(doc.WorkspaceID) {
		forbidden(w)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) readable(w http.ResponseWriter, r *http.Request) (*models.Document, bool) {
	principal := auth.PrincipalFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid document ID")
		return nil, false
	}

	d, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if !principal.CanRead(d.WorkspaceID) {
		forbidden(w)
		return nil, false
	}
	return d, true
}

// scopeWorkspaces resolves the workspaces a request may see: the optional
// workspace_id query parameter narrowed against the principal's grants, or
// all granted workspaces when absent.
func scopeWorkspaces(principal *auth.Principal, r *http.Request) ([]uuid.UUID, bool) {
	if raw := r.URL.Query().Get("workspace_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil || !principal.CanRead(id) {
			return nil, false
		}
		return []uuid.UUID{id}, true
	}
	return principal.WorkspaceIDs(), true
}
