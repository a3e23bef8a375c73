package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noa10/mataresit-sub011/internal/config"
	"github.com/noa10/mataresit-sub011/internal/db"
)

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = value
	return nil
}

func (m *memKV) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// shortVectorProvider serves an OpenAI-compatible embeddings endpoint that returns
// fewer floats than requested.
func shortVectorProvider(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "test-model",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{0.5, 0.25}},
			},
			"usage": map[string]int{"prompt_tokens": 2, "total_tokens": 2},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func embedderConfig(url string) *config.Config {
	cfg := &config.Config{}
	cfg.Embedding.APIKey = "k"
	cfg.Embedding.BaseURL = url
	cfg.Embedding.Model = "test-model"
	cfg.Embedding.Dimensions = 4
	cfg.Embedding.Provider = "test"
	cfg.Cache.EmbeddingTTLSec = 60
	return cfg
}

func TestBuildEmbedder_CachesPaddedVectors(t *testing.T) {
	var calls atomic.Int32
	srv := shortVectorProvider(t, &calls)
	kv := &memKV{}

	emb := buildEmbedder(embedderConfig(srv.URL), kv, zap.NewNop())

	for range 3 {
		res, err := emb.Embed(context.Background(), "coffee")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.5, 0.25, 0, 0}, res.Embedding)
		assert.True(t, res.Padded)
	}
	assert.Equal(t, int32(1), calls.Load(), "repeat queries must be served from the cache")
	assert.Len(t, kv.data, 1)
}

func TestBuildEmbedder_InstructionIsPartOfCacheKey(t *testing.T) {
	var calls atomic.Int32
	srv := shortVectorProvider(t, &calls)
	kv := &memKV{}
	cfg := embedderConfig(srv.URL)

	_, err := buildEmbedder(cfg, kv, zap.NewNop()).Embed(context.Background(), "coffee")
	require.NoError(t, err)

	cfg.Embedding.QueryInstruction = "query: "
	_, err = buildEmbedder(cfg, kv, zap.NewNop()).Embed(context.Background(), "coffee")
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, kv.data, 2)
}

func TestBuildEmbedder_NoCache(t *testing.T) {
	var calls atomic.Int32
	srv := shortVectorProvider(t, &calls)

	emb := buildEmbedder(embedderConfig(srv.URL), nil, zap.NewNop())
	for range 2 {
		res, err := emb.Embed(context.Background(), "coffee")
		require.NoError(t, err)
		assert.Len(t, res.Embedding, 4)
	}
	assert.Equal(t, int32(2), calls.Load())
}
