// Package chat implements retrieval-grounded conversational sessions.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/docvault/backend/internal/embedding"
	"github.com/docvault/backend/internal/llm"
	"github.com/docvault/backend/internal/models"
	"github.com/docvault/backend/internal/store"
	"github.com/docvault/backend/internal/vectorstore"
)

const (
	// retrievalTopK chunks are fetched per question; the context window is
	// then capped to chunks from maxSourceDocuments distinct documents.
	retrievalTopK      = 10
	maxSourceDocuments = 5

	// historyLimit is the number of prior messages replayed to the model.
	historyLimit = 10
)

const systemPrompt = `You are a document assistant. Answer the user's question using only the provided document excerpts.
If the excerpts do not contain the answer, say that the documents do not cover it. Do not invent information.
Cite each fact by document title, for example (Invoice 2024-03.pdf).
For questions about totals or other numbers, show the itemized figures you used before giving the result.`

// Event is one server-side item of a streaming answer. Content fragments
// stream first; a terminal sources event follows, then a done event carrying
// the persisted assistant message id.
type Event struct {
	Type      string              `json:"type"`
	Content   string              `json:"content,omitempty"`
	Sources   []models.ChatSource `json:"sources,omitempty"`
	MessageID uuid.UUID           `json:"-"`
	Err       error               `json:"-"`
}

const (
	EventSources = "sources"
	EventContent = "content"
	EventDone    = "done"
	EventError   = "error"
)

type Service struct {
	sessions store.ChatStore
	docs     store.DocumentStore
	index    vectorstore.VectorIndex
	embedder embedding.Embedder
	gateway  llm.Gateway
	model    string
}

func NewService(
	sessions store.ChatStore,
	docs store.DocumentStore,
	index vectorstore.VectorIndex,
	embedder embedding.Embedder,
	gateway llm.Gateway,
	model string,
) *Service {
	return &Service{
		sessions: sessions,
		docs:     docs,
		index:    index,
		embedder: embedder,
		gateway:  gateway,
		model:    model,
	}
}

func (s *Service) CreateSession(ctx context.Context, workspaceID, userID uuid.UUID, title string) (*models.ChatSession, error) {
	sess := &models.ChatSession{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		UserID:      userID,
		Title:       title,
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	return s.sessions.GetSession(ctx, id)
}

func (s *Service) ListSessions(ctx context.Context, workspaceID, userID uuid.UUID) ([]models.ChatSession, error) {
	return s.sessions.ListSessions(ctx, workspaceID, userID)
}

func (s *Service) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return s.sessions.DeleteSession(ctx, id)
}

func (s *Service) Messages(ctx context.Context, sessionID uuid.UUID) ([]models.ChatMessage, error) {
	return s.sessions.ListMessages(ctx, sessionID)
}

func (s *Service) SetFeedback(ctx context.Context, messageID uuid.UUID, feedback string) error {
	if feedback != models.FeedbackUp && feedback != models.FeedbackDown && feedback != "" {
		return fmt.Errorf("invalid feedback %q", feedback)
	}
	return s.sessions.SetFeedback(ctx, messageID, feedback)
}

// Stream answers a question inside a session. The user message is persisted
// before any model call so an aborted stream never loses the question. The
// assistant message, with its source snapshot, is persisted exactly once when
// the stream ends, whether it completed, failed, or the client went away;
// on an abort whatever content was produced so far is kept.
func (s *Service) Stream(ctx context.Context, sessionID uuid.UUID, question string) (<-chan Event, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("empty question")
	}

	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	userMsg := &models.ChatMessage{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   question,
	}
	if err := s.sessions.InsertMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("persist question: %w", err)
	}

	sources, err := s.retrieve(ctx, sess.WorkspaceID, question)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	history, err := s.history(ctx, sessionID, userMsg.ID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	chunks, err := s.gateway.ChatStream(ctx, llm.ChatRequest{
		Model:    s.model,
		Messages: buildMessages(history, sources, question),
	})
	if err != nil {
		return nil, err
	}

	events := make(chan Event, 8)
	go s.pump(ctx, events, chunks, sessionID, sources)
	return events, nil
}

func (s *Service) pump(ctx context.Context, events chan<- Event, chunks <-chan llm.StreamChunk, sessionID uuid.UUID, sources []models.ChatSource) {
	defer close(events)

	var answer strings.Builder
	var streamErr error

drain:
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				break drain
			}
			if chunk.Error != nil {
				streamErr = chunk.Error
				events <- Event{Type: EventError, Err: chunk.Error}
				break drain
			}
			if chunk.Content != "" {
				answer.WriteString(chunk.Content)
				events <- Event{Type: EventContent, Content: chunk.Content}
			}
			if chunk.Done {
				break drain
			}
		case <-ctx.Done():
			streamErr = ctx.Err()
			break drain
		}
	}

	// Persist on a detached context so a client disconnect still records
	// the partial answer.
	persistCtx := context.WithoutCancel(ctx)
	msg := &models.ChatMessage{
		ID:        uuid.New(),
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   answer.String(),
		Sources:   sources,
	}
	if err := s.sessions.InsertMessage(persistCtx, msg); err != nil {
		slog.Error("failed to persist assistant message", "session_id", sessionID, "error", err)
	}
	if err := s.sessions.TouchSession(persistCtx, sessionID); err != nil {
		slog.Warn("failed to touch session", "session_id", sessionID, "error", err)
	}

	if streamErr == nil {
		events <- Event{Type: EventSources, Sources: sources}
		events <- Event{Type: EventDone, MessageID: msg.ID}
	}
}

// retrieve embeds the question and pulls the closest chunks, keeping the
// best-scoring chunk from each of at most maxSourceDocuments distinct
// documents. No matches is a normal outcome and yields an empty source list.
func (s *Service) retrieve(ctx context.Context, workspaceID uuid.UUID, question string) ([]models.ChatSource, error) {
	vector, err := s.embedder.EmbedSingle(ctx, question)
	if err != nil {
		return nil, err
	}

	matches, err := s.index.Query(ctx, vector, retrievalTopK, vectorstore.QueryFilter{
		WorkspaceIDs: []uuid.UUID{workspaceID},
	})
	if err != nil {
		return nil, err
	}

	// Matches arrive ordered by score, so the first chunk seen for a
	// document is its best one.
	seen := map[uuid.UUID]bool{}
	var kept []vectorstore.Match
	for _, m := range matches {
		if seen[m.Metadata.DocumentID] {
			continue
		}
		if len(kept) == maxSourceDocuments {
			break
		}
		seen[m.Metadata.DocumentID] = true
		kept = append(kept, m)
	}

	if len(kept) == 0 {
		return []models.ChatSource{}, nil
	}

	ids := make([]uuid.UUID, 0, len(kept))
	for _, m := range kept {
		ids = append(ids, m.Metadata.DocumentID)
	}
	titles, err := s.docs.TitlesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	sources := make([]models.ChatSource, len(kept))
	for i, m := range kept {
		sources[i] = models.ChatSource{
			DocumentID: m.Metadata.DocumentID,
			Title:      titles[m.Metadata.DocumentID],
			ChunkID:    m.ID,
			Snippet:    m.Metadata.Snippet,
			Score:      m.Score,
		}
	}
	return sources, nil
}

func (s *Service) history(ctx context.Context, sessionID, excludeID uuid.UUID) ([]models.ChatMessage, error) {
	recent, err := s.sessions.RecentMessages(ctx, sessionID, historyLimit+1)
	if err != nil {
		return nil, err
	}
	history := recent[:0]
	for _, m := range recent {
		if m.ID != excludeID {
			history = append(history, m)
		}
	}
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	return history, nil
}

func buildMessages(history []models.ChatMessage, sources []models.ChatSource, question string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: buildUserTurn(sources, question)})
	return messages
}

func buildUserTurn(sources []models.ChatSource, question string) string {
	if len(sources) == 0 {
		return fmt.Sprintf("No matching document excerpts were found.\n\nQuestion: %s", question)
	}
	var sb strings.Builder
	sb.WriteString("Document excerpts:\n\n")
	for i, src := range sources {
		fmt.Fprintf(&sb, "[Source %d: %s]\n%s\n\n", i+1, src.Title, src.Snippet)
	}
	fmt.Fprintf(&sb, "Question: %s", question)
	return sb.String()
}
