package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docvault/backend/internal/auth"
	"github.com/docvault/backend/internal/models"
	"github.com/docvault/backend/internal/store"
)

type TagHandler struct {
	tags store.TagStore
	docs store.DocumentStore
}

func NewTagHandler(tags store.TagStore, docs store.DocumentStore) *TagHandler {
	return &TagHandler{tags: tags, docs: docs}
}

// List returns a workspace's tags ordered by usage. A limit parameter caps
// the result for typeahead use.
func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	workspaceID, err := uuid.Parse(r.URL.Query().Get("workspace_id"))
	if err != nil {
		badRequest(w, "workspace_id required")
		return
	}
	if !principal.CanRead(workspaceID) {
		forbidden(w)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var tags []models.Tag
	if limit > 0 {
		tags, err = h.tags.TopByUsage(r.Context(), workspaceID, limit)
	} else {
		tags, err = h.tags.ListByWorkspace(r.Context(), workspaceID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tags": tags, "count": len(tags)})
}

type attachTagRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Attach adds a tag to a document, creating the tag on first use.
func (h *TagHandler) Attach(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid document ID")
		return
	}

	var req attachTagRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(strings.ToLower(req.Name))
	if req.Name == "" {
		badRequest(w, "tag name required")
		return
	}
	if req.Category == "" {
		req.Category = models.TagCategoryTopic
	}
	if !models.ValidTagCategory(req.Category) {
		badRequest(w, "invalid tag category")
		return
	}

	doc, err := h.docs.GetByID(r.Context(), docID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !principal.CanEdit(doc.WorkspaceID) {
		forbidden(w)
		return
	}

	tag, err := h.tags.FindOrCreate(r.Context(), doc.WorkspaceID, req.Name, req.Category)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.tags.Attach(r.Context(), docID, tag.ID, models.TagSourceUserAdded, nil); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (h *TagHandler) Detach(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	docID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid document ID")
		return
	}
	tagID, err := uuid.Parse(chi.URLParam(r, "tagID"))
	if err != nil {
		badRequest(w, "invalid tag ID")
		return
	}

	doc, err := h.docs.GetByID(r.Context(), docID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !principal.CanEdit(doc.WorkspaceID) {
		forbidden(w)
		return
	}

	if err := h.tags.Detach(r.Context(), docID, tagID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type renameTagRequest struct {
	Name string `json:"name"`
}

func (h *TagHandler) Rename(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	tag, ok := h.load(w, r)
	if !ok {
		return
	}
	if !principal.CanEdit(tag.WorkspaceID) {
		forbidden(w)
		return
	}

	var req renameTagRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(strings.ToLower(req.Name))
	if req.Name == "" {
		badRequest(w, "tag name required")
		return
	}

	if err := h.tags.Rename(r.Context(), tag.ID, req.Name); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type mergeTagRequest struct {
	IntoTagID uuid.UUID `json:"into_tag_id"`
}

// Merge folds one tag into another. Owner-only: the operation rewrites
// history across every tagged document in the workspace.
func (h *TagHandler) Merge(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	src, ok := h.load(w, r)
	if !ok {
		return
	}
	if !principal.IsOwner(src.WorkspaceID) {
		forbidden(w)
		return
	}

	var req mergeTagRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	dst, err := h.tags.GetByID(r.Context(), req.IntoTagID)
	if err != nil {
		writeError(w, err)
		return
	}
	if dst.WorkspaceID != src.WorkspaceID {
		badRequest(w, "tags belong to different workspaces")
		return
	}
	if dst.ID == src.ID {
		badRequest(w, "cannot merge a tag into itself")
		return
	}

	if err := h.tags.Merge(r.Context(), src.ID, dst.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dst)
}

func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	tag, ok := h.load(w, r)
	if !ok {
		return
	}
	if !principal.IsOwner(tag.WorkspaceID) {
		forbidden(w)
		return
	}

	if err := h.tags.Delete(r.Context(), tag.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TagHandler) load(w http.ResponseWriter, r *http.Request) (*models.Tag, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid tag ID")
		return nil, false
	}
	tag, err := h.tags.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return tag, true
}
