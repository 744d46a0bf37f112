package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"docuchat/features/document"
	"docuchat/internal/index"
	"docuchat/internal/llm"
)

const systemPrompt = `You are a helpful AI assistant that answers questions based ONLY on the provided document context.

Follow these rules strictly:
1. Only use information from the provided context to answer questions
2. If the answer is not in the context, respond with: "I cannot find this information in the document."
3. Always cite the page number(s) where you found the information
4. Be concise but comprehensive in your answers
5. If the context is ambiguous or unclear, acknowledge it
6. Do not make assumptions or add information not present in the context

When you provide an answer, reference the page numbers like this: (Page X).`

const (
	noContextAnswer = "I cannot find relevant information in the document to answer your question."
	emptyAnswer     = "Unable to generate answer."
	excerptLimit    = 200
)

// Format is the caller-requested rendering of an answer. It is echoed in
// the response and recorded with the history entry.
type Format string

const (
	FormatText Format = "TEXT"
	FormatJSON Format = "JSON"
)

// Message is one question/answer exchange kept in chat history.
type Message struct {
	ID             string    `json:"id"`
	DocumentID     string    `json:"document_id"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	ResponseFormat Format    `json:"response_format"`
	CreatedAt      time.Time `json:"created_at"`
}

// Source is a citation attached to an answer.
type Source struct {
	PageNumber     int     `json:"page_number"`
	Excerpt        string  `json:"excerpt"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Answer is a complete non-streamed chat response.
type Answer struct {
	Answer         string   `json:"answer"`
	ResponseFormat Format   `json:"response_format"`
	DocumentID     string   `json:"document_id"`
	Provider       string   `json:"provider,omitempty"`
	Sources        []Source `json:"sources,omitempty"`
}

// NotReadyError means the document exists but is not READY for querying.
type NotReadyError struct {
	Status document.Status
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("document is not ready for querying, status: %s", e.Status)
}

type DocumentGetter interface {
	Get(ctx context.Context, id string) (*document.Document, error)
}

type Retriever interface {
	Search(ctx context.Context, documentID, query string, topK int, minScore float64) ([]index.RetrievedChunk, error)
}

type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	CompleteStream(ctx context.Context, system, prompt string) (<-chan llm.StreamChunk, llm.Provider, error)
	ActiveProvider() llm.Provider
}

type HistoryRepository interface {
	Save(ctx context.Context, msg *Message) error
	ListByDocument(ctx context.Context, documentID string) ([]Message, error)
}

type Service struct {
	docs      DocumentGetter
	retriever Retriever
	gateway   Completer
	history   HistoryRepository
	topK      int
	minScore  float64
}

func NewService(docs DocumentGetter, retriever Retriever, gateway Completer, history HistoryRepository, topK int, minScore float64) *Service {
	return &Service{
		docs:      docs,
		retriever: retriever,
		gateway:   gateway,
		history:   history,
		topK:      topK,
		minScore:  minScore,
	}
}

// Ask answers a question against one document's indexed chunks.
func (s *Service) Ask(ctx context.Context, documentID, question string, format Format, includeSources bool) (*Answer, error) {
	chunks, err := s.prepare(ctx, documentID, question)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		s.persist(ctx, documentID, question, noContextAnswer, format)
		return &Answer{Answer: noContextAnswer, ResponseFormat: format, DocumentID: documentID}, nil
	}

	answer, err := s.gateway.Complete(ctx, systemPrompt, buildPrompt(question, chunks))
	if err != nil {
		return nil, err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = emptyAnswer
	}

	s.persist(ctx, documentID, question, answer, format)

	resp := &Answer{
		Answer:         answer,
		ResponseFormat: format,
		DocumentID:     documentID,
		Provider:       string(s.gateway.ActiveProvider()),
	}
	if includeSources {
		resp.Sources = buildSources(chunks)
	}
	return resp, nil
}

// AskStream answers a question as a stream of chunks. The full answer is
// persisted to history once the stream has drained. Failures after the
// stream has started arrive in-band with Err set.
func (s *Service) AskStream(ctx context.Context, documentID, question string, format Format) (<-chan llm.StreamChunk, error) {
	chunks, err := s.prepare(ctx, documentID, question)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		s.persist(ctx, documentID, question, noContextAnswer, format)
		out := make(chan llm.StreamChunk, 1)
		out <- llm.StreamChunk{Content: noContextAnswer}
		close(out)
		return out, nil
	}

	stream, provider, err := s.gateway.CompleteStream(ctx, systemPrompt, buildPrompt(question, chunks))
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "streaming answer", "document_id", documentID, "provider", provider)

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		var sb strings.Builder
		for chunk := range stream {
			if chunk.Err != nil {
				out <- chunk
				return
			}
			sb.WriteString(chunk.Content)
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
		answer := strings.TrimSpace(sb.String())
		if answer == "" {
			answer = emptyAnswer
		}
		s.persist(ctx, documentID, question, answer, format)
	}()
	return out, nil
}

// History returns every exchange for a document, oldest first.
func (s *Service) History(ctx context.Context, documentID string) ([]Message, error) {
	if _, err := s.docs.Get(ctx, documentID); err != nil {
		return nil, err
	}
	return s.history.ListByDocument(ctx, documentID)
}

// prepare checks the document is READY and retrieves the relevant chunks.
func (s *Service) prepare(ctx context.Context, documentID, question string) ([]index.RetrievedChunk, error) {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != document.StatusReady {
		return nil, &NotReadyError{Status: doc.Status}
	}

	chunks, err := s.retriever.Search(ctx, documentID, question, s.topK, s.minScore)
	if err != nil {
		return nil, fmt.Errorf("retrieve relevant chunks: %w", err)
	}
	slog.InfoContext(ctx, "retrieved relevant chunks", "document_id", documentID, "count", len(chunks))
	return chunks, nil
}

func (s *Service) persist(ctx context.Context, documentID, question, answer string, format Format) {
	msg := &Message{
		ID:             uuid.New().String(),
		DocumentID:     documentID,
		Question:       question,
		Answer:         answer,
		ResponseFormat: format,
		CreatedAt:      time.Now(),
	}
	if err := s.history.Save(ctx, msg); err != nil {
		// History is best-effort: a failed insert must not fail the answer.
		slog.WarnContext(ctx, "failed to persist chat message", "error", err, "document_id", documentID)
	}
}

func buildPrompt(question string, chunks []index.RetrievedChunk) string {
	var sb strings.Builder
	sb.WriteString("Context:\nBased on the following excerpts from the document:\n\n")
	for _, chunk := range chunks {
		fmt.Fprintf(&sb, "[Page %d] %s\n\n", chunk.PageNumber, chunk.Content)
	}
	fmt.Fprintf(&sb, "Question: %s\n\nAnswer:\n", question)
	return sb.String()
}

func buildSources(chunks []index.RetrievedChunk) []Source {
	sources := make([]Source, 0, len(chunks))
	for _, chunk := range chunks {
		excerpt := chunk.Content
		if len(excerpt) > excerptLimit {
			excerpt = excerpt[:excerptLimit] + "..."
		}
		sources = append(sources, Source{
			PageNumber:     chunk.PageNumber,
			Excerpt:        excerpt,
			RelevanceScore: chunk.Score,
		})
	}
	return sources
}
