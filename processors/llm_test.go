package processors

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubechat/core"
)

func embeddingServer(t *testing.T, vector []float32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "test-embed",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": vector},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testEmbedder(srv *httptest.Server, dim int) *Embedder {
	cli := NewOpenAIClient(LLMConfig{APIKey: "test-key", BaseURL: srv.URL})
	return NewEmbedder(cli, "test-embed", dim, nil)
}

func TestEmbedderTruncatesLongVectors(t *testing.T) {
	srv, _ := embeddingServer(t, []float32{3, 4, 12})
	e := testEmbedder(srv, 2)
	assert.Equal(t, "test-embed", e.Model())
	assert.Equal(t, 2, e.Dimension())

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, vec, 2)
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)
}

func TestEmbedderRejectsShortVectors(t *testing.T) {
	srv, _ := embeddingServer(t, []float32{1, 0})
	e := testEmbedder(srv, 4)

	_, err := e.Embed(context.Background(), "hello")
	require.ErrorIs(t, err, core.ErrEmbeddingService)
	assert.Contains(t, err.Error(), "returned 2 dimensions, need 4")
}

func TestEmbedderUsesCache(t *testing.T) {
	srv, calls := embeddingServer(t, []float32{1, 0})
	cache := core.NewCacheManager(8, 0)
	e := testEmbedder(srv, 2).WithCache(cache)

	for range 3 {
		vec, err := e.Embed(context.Background(), "same text")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0}, vec)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(2), cache.Metrics().Hits)

	cache.Clear()
	_, err := e.Embed(context.Background(), "same text")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSlicedNormL2(t *testing.T) {
	got := slicedNormL2([]float32{3, 4, 100}, 2)
	var norm float64
	for _, v := range got {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
}
