// Package embcache caches query embeddings so repeated searches skip the provider.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noa10/mataresit-sub011/internal/db"
	"github.com/noa10/mataresit-sub011/internal/domain"
)

// stage labels cache metrics and namespaces keys.
const stage = "embedding"

// entry layout: uint32 dimension, one flag byte, then little-endian float32 components.
const (
	headerLen  = 5
	flagPadded = 1 << 0
)

// store is the consumer interface for the vector cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config describes the provider the cached vectors came from.
type Config struct {
	Model      string
	Dimensions int
	TTL        time.Duration
}

// QueryVectors wraps an embedder with a read-through cache keyed by model, dimension
// and normalized query text. Concurrent misses for one key share a single provider call.
type QueryVectors struct {
	inner      domain.Embedder
	store      store
	cfg        Config
	group      singleflight.Group
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates the cache. cacheTotal has labels "stage" and "result" and may be nil.
func New(
	inner domain.Embedder,
	s store,
	cfg Config,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *QueryVectors {
	return &QueryVectors{
		inner:      inner,
		store:      s,
		cfg:        cfg,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns the cached vector for text or asks the provider.
// A hit reports zero tokens since nothing was billed.
func (q *QueryVectors) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := q.key(text)

	if res, ok := q.load(ctx, key); ok {
		q.inc("hit")
		return res, nil
	}
	q.inc("miss")

	v, err, _ := q.group.Do(key, func() (any, error) {
		res, err := q.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		q.save(ctx, key, res)
		return res, nil
	})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed query: %w", err)
	}
	return v.(domain.EmbeddingResult), nil
}

// HealthCheck delegates to the provider.
func (q *QueryVectors) HealthCheck(ctx context.Context) error {
	if hc, ok := q.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// key folds case and whitespace so "Coffee  shop" and "coffee shop" share an entry.
func (q *QueryVectors) key(text string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	h := sha256.Sum256([]byte(q.cfg.Model + "|" + strconv.Itoa(q.cfg.Dimensions) + "|" + norm))
	return domain.KeyPrefix + "cache:" + stage + ":" + hex.EncodeToString(h[:])
}

func (q *QueryVectors) load(ctx context.Context, key string) (domain.EmbeddingResult, bool) {
	data, err := q.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			q.logger.Warn("Vector cache read failed", zap.String("key", key), zap.Error(err))
		}
		return domain.EmbeddingResult{}, false
	}

	res, err := decode(data, q.cfg.Dimensions)
	if err != nil {
		q.logger.Warn("Discarding cached vector", zap.String("key", key), zap.Error(err))
		return domain.EmbeddingResult{}, false
	}
	return res, true
}

func (q *QueryVectors) save(ctx context.Context, key string, res domain.EmbeddingResult) {
	if q.cfg.Dimensions > 0 && len(res.Embedding) != q.cfg.Dimensions {
		return
	}
	if err := q.store.SetWithTTL(ctx, key, encode(res), q.cfg.TTL); err != nil {
		q.logger.Warn("Vector cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (q *QueryVectors) inc(result string) {
	if q.cacheTotal != nil {
		q.cacheTotal.WithLabelValues(stage, result).Inc()
	}
}

func encode(res domain.EmbeddingResult) []byte {
	buf := make([]byte, headerLen+len(res.Embedding)*4)
	binary.LittleEndian.PutUint32(buf, uint32(len(res.Embedding))) //nolint:gosec // bounded by provider dimension
	if res.Padded {
		buf[4] = flagPadded
	}
	for i, f := range res.Embedding {
		binary.LittleEndian.PutUint32(buf[headerLen+i*4:], math.Float32bits(f))
	}
	return buf
}

// decode rejects entries whose dimension differs from want; want <= 0 accepts any.
func decode(data []byte, want int) (domain.EmbeddingResult, error) {
	if len(data) < headerLen {
		return domain.EmbeddingResult{}, fmt.Errorf("entry too short: %d bytes", len(data))
	}
	dim := int(binary.LittleEndian.Uint32(data))
	if len(data) != headerLen+dim*4 {
		return domain.EmbeddingResult{}, fmt.Errorf("entry length %d does not match dimension %d", len(data), dim)
	}
	if want > 0 && dim != want {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: cached %d, want %d", domain.ErrDimensionMismatch, dim, want)
	}

	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[headerLen+i*4:]))
	}
	return domain.EmbeddingResult{Embedding: vec, Padded: data[4]&flagPadded != 0}, nil
}
