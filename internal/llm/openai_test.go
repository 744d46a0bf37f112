package llm_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuchat/internal/llm"
)

func TestOpenAIModel_Complete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "gpt-4o", req["model"])
		assert.InDelta(t, 0.3, req["temperature"], 1e-9)
		messages := req["messages"].([]interface{})
		require.Len(t, messages, 2)
		assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
		assert.Equal(t, "user", messages[1].(map[string]interface{})["role"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "the answer"}},
			},
		})
	}))
	defer ts.Close()

	model := llm.NewOpenAIModel("test-key", "gpt-4o", 5000, 0.3, llm.WithOpenAIBaseURL(ts.URL))
	answer, err := model.Complete(context.Background(), "sys", "question")
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
}

func TestOpenAIModel_Complete_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limit"}}`))
	}))
	defer ts.Close()

	model := llm.NewOpenAIModel("test-key", "gpt-4o", 5000, 0.3, llm.WithOpenAIBaseURL(ts.URL))
	_, err := model.Complete(context.Background(), "sys", "question")
	assert.ErrorContains(t, err, "status 429")
}

func TestOpenAIModel_CompleteStream(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, text := range []string{"hel", "lo"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", text)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer ts.Close()

	model := llm.NewOpenAIModel("test-key", "gpt-4o", 5000, 0.3, llm.WithOpenAIBaseURL(ts.URL))
	ch, err := model.CompleteStream(context.Background(), "sys", "question")
	require.NoError(t, err)

	var got string
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		got += chunk.Content
	}
	assert.Equal(t, "hello", got)
}

func TestAnthropicModel_Complete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "sys", req["system"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": "the answer"},
			},
		})
	}))
	defer ts.Close()

	model := llm.NewAnthropicModel("test-key", "claude-3-5-sonnet-20241022", 5000, 0.3, llm.WithAnthropicBaseURL(ts.URL))
	answer, err := model.Complete(context.Background(), "sys", "question")
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
}

func TestAnthropicModel_CompleteStream(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
		for _, text := range []string{"hel", "lo"} {
			fmt.Fprintf(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":%q}}\n\n", text)
		}
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer ts.Close()

	model := llm.NewAnthropicModel("test-key", "claude-3-5-sonnet-20241022", 5000, 0.3, llm.WithAnthropicBaseURL(ts.URL))
	ch, err := model.CompleteStream(context.Background(), "sys", "question")
	require.NoError(t, err)

	var got string
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		got += chunk.Content
	}
	assert.Equal(t, "hello", got)
}
