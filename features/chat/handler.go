package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"docuchat/features/document"
	"docuchat/internal/llm"
	"docuchat/internal/middleware"
)

type ChatRequest struct {
	Question       string `json:"question" validate:"required"`
	ResponseFormat string `json:"response_format" validate:"required,oneof=TEXT JSON"`
	IncludeSources bool   `json:"include_sources"`
	Stream         bool   `json:"stream"`
}

type Handler struct {
	service  *Service
	validate *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "BAD_REQUEST", "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", validationMessage(err), http.StatusBadRequest)
		return
	}

	if req.Stream {
		h.chatStream(w, r, documentID, req)
		return
	}

	answer, err := h.service.Ask(r.Context(), documentID, req.Question, Format(req.ResponseFormat), req.IncludeSources)
	if err != nil {
		h.handleChatError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"data": answer}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) chatStream(w http.ResponseWriter, r *http.Request, documentID string, req ChatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Streaming not supported", http.StatusInternalServerError)
		return
	}

	stream, err := h.service.AskStream(r.Context(), documentID, req.Question, Format(req.ResponseFormat))
	if err != nil {
		h.handleChatError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for chunk := range stream {
		if chunk.Err != nil {
			slog.ErrorContext(r.Context(), "stream failed", "error", chunk.Err, "document_id", documentID)
			payload, _ := json.Marshal(map[string]string{"message": "Failed to generate answer"})
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
			flusher.Flush()
			return
		}
		payload, _ := json.Marshal(map[string]string{"content": chunk.Content})
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	fmt.Fprint(w, "event: done\ndata: {}\n\n")
	flusher.Flush()
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	messages, err := h.service.History(r.Context(), documentID)
	if err != nil {
		if errors.Is(err, document.ErrNotFound) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	if messages == nil {
		messages = []Message{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]any{
		"data": messages,
		"meta": map[string]int{"count": len(messages)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) handleChatError(ctx context.Context, w http.ResponseWriter, err error) {
	var notReady *NotReadyError
	var unavailable *llm.UnavailableError
	switch {
	case errors.Is(err, document.ErrNotFound):
		h.writeError(ctx, w, "NOT_FOUND", "Document not found", http.StatusNotFound)
	case errors.As(err, &notReady):
		h.writeError(ctx, w, "DOCUMENT_NOT_READY", notReady.Error(), http.StatusConflict)
	case errors.As(err, &unavailable):
		slog.ErrorContext(ctx, "chat providers unavailable", "error", err)
		h.writeError(ctx, w, "PROVIDERS_UNAVAILABLE", "No chat provider could generate an answer", http.StatusServiceUnavailable)
	default:
		slog.ErrorContext(ctx, "chat request failed", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "Question":
			return "question is required"
		case "ResponseFormat":
			return "response_format must be TEXT or JSON"
		}
	}
	return "invalid request"
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
