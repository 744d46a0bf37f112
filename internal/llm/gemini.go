package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiModel drives Google's Gemini API through the genai client.
type GeminiModel struct {
	client      *genai.Client
	model       string
	maxTokens   int
	temperature float64
}

func NewGeminiModel(ctx context.Context, apiKey, model string, maxTokens int, temperature float64, opts ...option.ClientOption) (*GeminiModel, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GeminiModel{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

func (m *GeminiModel) generativeModel(system string) *genai.GenerativeModel {
	gm := m.client.GenerativeModel(m.model)
	gm.SetMaxOutputTokens(int32(m.maxTokens))
	gm.SetTemperature(float32(m.temperature))
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	return gm
}

func (m *GeminiModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := m.generativeModel(system).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	answer := responseText(resp)
	if answer == "" {
		return "", errors.New("gemini returned no text content")
	}
	return answer, nil
}

func (m *GeminiModel) CompleteStream(ctx context.Context, system, prompt string) (<-chan StreamChunk, error) {
	iter := m.generativeModel(system).GenerateContentStream(ctx, genai.Text(prompt))

	// Pull the first response eagerly so a dead provider fails the start of
	// the stream and the gateway can fall back.
	first, err := iter.Next()
	if err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, errors.New("gemini returned an empty stream")
		}
		return nil, fmt.Errorf("gemini stream: %w", err)
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)

		emit := func(resp *genai.GenerateContentResponse) bool {
			text := responseText(resp)
			if text == "" {
				return true
			}
			select {
			case out <- StreamChunk{Content: text}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit(first) {
			return
		}
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				out <- StreamChunk{Err: fmt.Errorf("gemini stream: %w", err)}
				return
			}
			if !emit(resp) {
				return
			}
		}
	}()
	return out, nil
}

func (m *GeminiModel) Close() error {
	return m.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String()
}
