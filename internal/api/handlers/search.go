package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/docvault/backend/internal/auth"
	"github.com/docvault/backend/internal/search"
	"github.com/docvault/backend/internal/store"
)

type SearchHandler struct {
	retriever *search.Retriever
}

func NewSearchHandler(r *search.Retriever) *SearchHandler {
	return &SearchHandler{retriever: r}
}

// Search serves GET /search. A q parameter triggers semantic retrieval;
// facet parameters always apply. Without q the request is a plain filtered
// listing with a total count.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	workspaceIDs, ok := scopeWorkspaces(principal, r)
	if !ok {
		forbidden(w)
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	filter := store.SearchFilter{
		WorkspaceIDs: workspaceIDs,
		Text:         q.Get("text"),
		MimeFamily:   q.Get("mime"),
	}
	if tags := q.Get("tags"); tags != "" {
		for _, name := range strings.Split(tags, ",") {
			if name = strings.TrimSpace(name); name != "" {
				filter.TagNames = append(filter.TagNames, name)
			}
		}
	}
	var err error
	if filter.CreatedAfter, err = parseTimeParam(q.Get("created_after")); err != nil {
		badRequest(w, "invalid created_after")
		return
	}
	if filter.CreatedBefore, err = parseTimeParam(q.Get("created_before")); err != nil {
		badRequest(w, "invalid created_before")
		return
	}

	resp, err := h.retriever.Search(r.Context(), search.Request{
		Query:  q.Get("q"),
		Filter: filter,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseTimeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		// Accept bare dates as well.
		t, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, err
		}
	}
	return &t, nil
}
