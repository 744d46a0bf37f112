package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrNoProviders means no provider has an API key configured.
var ErrNoProviders = errors.New("no chat providers configured")

// UnavailableError reports that every configured provider was tried and
// none could produce an answer.
type UnavailableError struct {
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("all chat providers unavailable: %v", e.Cause)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// StreamChunk is one piece of a streamed completion. A non-nil Err ends
// the stream; the channel is closed right after.
type StreamChunk struct {
	Content string
	Err     error
}

// ChatModel is one provider's completion client.
type ChatModel interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
	CompleteStream(ctx context.Context, system, prompt string) (<-chan StreamChunk, error)
}

// Gateway fans a completion request across providers in a fixed fallback
// order. The order is computed once at construction and never changes.
type Gateway struct {
	models map[Provider]ChatModel
	order  []Provider
}

// NewGateway builds the fallback chain. fallbackOrder is a comma-separated
// provider list; unknown names are dropped with a warning, configured
// providers missing from the list are appended, and the primary provider is
// moved to the front.
func NewGateway(models map[Provider]ChatModel, primary string, fallbackOrder string) *Gateway {
	order := parseOrder(models, primary, fallbackOrder)
	return &Gateway{models: models, order: order}
}

func parseOrder(models map[Provider]ChatModel, primary, fallbackOrder string) []Provider {
	var order []Provider
	seen := make(map[Provider]bool)

	add := func(p Provider) {
		if seen[p] {
			return
		}
		if _, ok := models[p]; !ok {
			return
		}
		seen[p] = true
		order = append(order, p)
	}

	if primary != "" {
		p, err := ParseProvider(strings.TrimSpace(primary))
		if err != nil {
			slog.Warn("ignoring unknown primary provider", "provider", primary)
		} else {
			add(p)
		}
	}

	for _, token := range strings.Split(fallbackOrder, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		p, err := ParseProvider(token)
		if err != nil {
			slog.Warn("ignoring unknown provider in fallback order", "provider", token)
			continue
		}
		add(p)
	}

	// Configured providers absent from the list still serve as a last resort.
	for _, p := range AllProviders {
		add(p)
	}

	return order
}

// Order returns the active fallback chain, primary first.
func (g *Gateway) Order() []Provider {
	out := make([]Provider, len(g.order))
	copy(out, g.order)
	return out
}

// ActiveProvider is the provider tried first, or "" when none is configured.
func (g *Gateway) ActiveProvider() Provider {
	if len(g.order) == 0 {
		return ""
	}
	return g.order[0]
}

func (g *Gateway) IsAvailable(p Provider) bool {
	_, ok := g.models[p]
	return ok
}

// Complete tries each provider in order and returns the first answer.
func (g *Gateway) Complete(ctx context.Context, system, prompt string) (string, error) {
	if len(g.order) == 0 {
		return "", &UnavailableError{Cause: ErrNoProviders}
	}

	var lastErr error
	for _, p := range g.order {
		answer, err := g.models[p].Complete(ctx, system, prompt)
		if err == nil {
			slog.InfoContext(ctx, "completion succeeded", "provider", p)
			return answer, nil
		}
		slog.WarnContext(ctx, "provider failed, falling back", "provider", p, "error", err)
		lastErr = err
	}
	return "", &UnavailableError{Cause: lastErr}
}

// CompleteStream tries each provider until one starts streaming. Fallback
// only covers the attempt to start; once a stream is live, a failure is
// delivered in-band as a StreamChunk with Err set.
func (g *Gateway) CompleteStream(ctx context.Context, system, prompt string) (<-chan StreamChunk, Provider, error) {
	if len(g.order) == 0 {
		return nil, "", &UnavailableError{Cause: ErrNoProviders}
	}

	var lastErr error
	for _, p := range g.order {
		ch, err := g.models[p].CompleteStream(ctx, system, prompt)
		if err == nil {
			slog.InfoContext(ctx, "stream started", "provider", p)
			return ch, p, nil
		}
		slog.WarnContext(ctx, "provider failed to start stream, falling back", "provider", p, "error", err)
		lastErr = err
	}
	return nil, "", &UnavailableError{Cause: lastErr}
}
