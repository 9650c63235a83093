package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/docvault/backend/internal/auth"
	"github.com/docvault/backend/internal/chat"
	"github.com/docvault/backend/internal/models"
)

type ChatHandler struct {
	svc *chat.Service
}

func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type createSessionRequest struct {
	WorkspaceID uuid.UUID `json:"workspace_id"`
	Title       string    `json:"title"`
}

func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	principal := auth.PrincipalFromContext(r.Context())

	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if !principal.CanRead(req.WorkspaceID) {
		forbidden(w)
		return
	}

	sess, err := h.svc.CreateSession(r.Context(), req.WorkspaceID, principal.UserID, req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
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

	sessions, err := h.svc.ListSessions(r.Context(), workspaceID, principal.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions, "count": len(sessions)})
}

func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.readableSession(w, r)
	if !ok {
		return
	}

	messages, err := h.svc.Messages(r.Context(), sess.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": sess, "messages": messages})
}

func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.readableSession(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteSession(r.Context(), sess.ID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage streams the assistant's answer as server-sent events: content
// fragments, then the citation sources, then a done event carrying the
// persisted assistant message id.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.readableSession(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	events, err := h.svc.Stream(r.Context(), sess.ID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for ev := range events {
		writeSSE(w, ev)
		flusher.Flush()
	}
}

func writeSSE(w http.ResponseWriter, ev chat.Event) {
	payload := map[string]interface{}{"type": ev.Type}
	switch ev.Type {
	case chat.EventSources:
		payload["sources"] = ev.Sources
	case chat.EventContent:
		payload["content"] = ev.Content
	case chat.EventDone:
		payload["message_id"] = ev.MessageID
	case chat.EventError:
		payload["error"] = ev.Err.Error()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

type feedbackRequest struct {
	Feedback string `json:"feedback"`
}

func (h *ChatHandler) SetFeedback(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.readableSession(w, r); !ok {
		return
	}

	messageID, err := uuid.Parse(chi.URLParam(r, "messageID"))
	if err != nil {
		badRequest(w, "invalid message ID")
		return
	}

	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	if req.Feedback != models.FeedbackUp && req.Feedback != models.FeedbackDown && req.Feedback != "" {
		badRequest(w, "feedback must be up, down, or empty")
		return
	}

	if err := h.svc.SetFeedback(r.Context(), messageID, req.Feedback); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) readableSession(w http.ResponseWriter, r *http.Request) (*models.ChatSession, bool) {
	principal := auth.PrincipalFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid session ID")
		return nil, false
	}

	sess, err := h.svc.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if !principal.CanRead(sess.WorkspaceID) {
		forbidden(w)
		return nil, false
	}
	return sess, true
}
