package weaviate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	adapter "docuchat/internal/adapter/weaviate"
	"docuchat/internal/index"
	"docuchat/internal/text"
)

func mockWeaviate(t *testing.T, handler http.HandlerFunc) (*weaviate.Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	cfg := weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"}
	client, err := weaviate.NewClient(cfg)
	assert.NoError(t, err)
	return client, ts
}

func TestStore_AddBatch(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, "POST", r.Method)

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		objects := body["objects"].([]interface{})
		assert.Len(t, objects, 2)
		props := objects[0].(map[string]interface{})["properties"].(map[string]interface{})
		assert.Equal(t, "first chunk", props["content"])
		assert.Equal(t, "doc-1", props["documentId"])

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode([]map[string]interface{}{{"id": "1"}, {"id": "2"}})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	chunks := []index.IndexedChunk{
		{
			DocumentID: "doc-1",
			Chunk:      text.Chunk{Index: 0, PageNumber: 1, Content: "first chunk"},
			Vector:     []float32{0.1, 0.2},
		},
		{
			DocumentID: "doc-1",
			Chunk:      text.Chunk{Index: 1, PageNumber: 1, Content: "second chunk"},
			Vector:     []float32{0.3, 0.4},
		},
	}
	err := store.AddBatch(context.Background(), chunks)
	assert.NoError(t, err)
}

func TestStore_AddBatch_ObjectError(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{
				"id": "1",
				"result": map[string]interface{}{
					"errors": map[string]interface{}{
						"error": []map[string]interface{}{{"message": "vector length mismatch"}},
					},
				},
			},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	chunks := []index.IndexedChunk{
		{DocumentID: "doc-1", Chunk: text.Chunk{Content: "bad"}, Vector: []float32{0.1}},
	}
	err := store.AddBatch(context.Background(), chunks)
	assert.ErrorContains(t, err, "vector length mismatch")
}

func TestStore_AddBatch_Empty(t *testing.T) {
	// No server: an empty batch must not issue a request at all.
	cfg := weaviate.Config{Host: "127.0.0.1:1", Scheme: "http"}
	client, err := weaviate.NewClient(cfg)
	assert.NoError(t, err)

	store := adapter.NewStore(client)
	assert.NoError(t, store.AddBatch(context.Background(), nil))
}

func TestStore_Search(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/graphql", r.URL.Path)

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		query := body["query"].(string)
		assert.Contains(t, query, "nearVector")
		assert.Contains(t, query, "documentId")
		assert.Contains(t, query, "certainty")

		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"DocumentChunk": []interface{}{
						map[string]interface{}{
							"content":    "found content",
							"pageNumber": 3.0,
							"chunkIndex": 7.0,
							"_additional": map[string]interface{}{
								"certainty": 0.95,
							},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	results, err := store.Search(context.Background(), "doc-1", []float32{0.1, 0.2}, 10, 0.5)
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "found content", results[0].Content)
	assert.Equal(t, 3, results[0].PageNumber)
	assert.Equal(t, 7, results[0].ChunkIndex)
	assert.Equal(t, 0.95, results[0].Score)
}

func TestStore_Search_StringCertainty(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"DocumentChunk": []interface{}{
						map[string]interface{}{
							"content": "found content",
							"_additional": map[string]interface{}{
								"certainty": "0.87",
							},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	results, err := store.Search(context.Background(), "doc-1", []float32{0.1}, 10, 0.5)
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.InDelta(t, 0.87, results[0].Score, 1e-9)
}

func TestStore_Search_GraphQLError(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		resp := map[string]interface{}{
			"errors": []map[string]interface{}{{"message": "class not found"}},
		}
		json.NewEncoder(w).Encode(resp)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	_, err := store.Search(context.Background(), "doc-1", []float32{0.1}, 10, 0.5)
	assert.ErrorContains(t, err, "graphql error")
}

func TestStore_DeleteAll(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, "DELETE", r.Method)
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": map[string]interface{}{"matches": 4.0, "successful": 4.0, "failed": 0.0},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	err := store.DeleteAll(context.Background(), "doc-1")
	assert.NoError(t, err)
}

func TestStore_DeleteAll_PartialFailure(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": map[string]interface{}{"matches": 4.0, "successful": 2.0, "failed": 2.0},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	err := store.DeleteAll(context.Background(), "doc-1")
	assert.ErrorContains(t, err, "2 objects failed")
}
