package ranker

import (
	"context"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/repository/popularity"
)

// counter counts in-scope documents sharing a tag value.
type counter interface {
	Count(ctx context.Context, scope domain.Scope, field, value string) (int, error)
}

// Popularity scores candidates by how common their category (or merchant) is
// within the requester's own documents. Lookups run on a shared bounded pool.
type Popularity struct {
	counter counter
	pool    *ants.Pool
	unknown float64
	logger  *zap.Logger
}

// NewPopularity creates a scorer. pool may be nil, in which case lookups run inline.
func NewPopularity(c counter, pool *ants.Pool, unknown float64, logger *zap.Logger) *Popularity {
	return &Popularity{counter: c, pool: pool, unknown: unknown, logger: logger}
}

type lookup struct {
	field, value string
}

// Scores returns one popularity per candidate, normalized by the most frequent
// value in the set. Candidates without a usable value, or whose lookup failed, get the unknown default.
func (p *Popularity) Scores(ctx context.Context, scope domain.Scope, cands []candidate.Candidate) []float64 {
	out := make([]float64, len(cands))
	for i := range out {
		out[i] = p.unknown
	}
	if p.counter == nil || len(cands) == 0 {
		return out
	}

	index := make(map[lookup]int)
	var lookups []lookup
	keys := make([]int, len(cands))
	for i := range cands {
		l, ok := lookupFor(&cands[i])
		if !ok {
			keys[i] = -1
			continue
		}
		j, seen := index[l]
		if !seen {
			j = len(lookups)
			index[l] = j
			lookups = append(lookups, l)
		}
		keys[i] = j
	}
	if len(lookups) == 0 {
		return out
	}

	counts := make([]int, len(lookups))
	ok := make([]bool, len(lookups))
	var wg sync.WaitGroup
	for j, l := range lookups {
		task := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			n, err := p.counter.Count(ctx, scope, l.field, l.value)
			if err != nil {
				p.logger.Debug("Popularity lookup failed",
					zap.String("field", l.field), zap.String("value", l.value), zap.Error(err))
				return
			}
			counts[j], ok[j] = n, true
		}
		wg.Add(1)
		if p.pool == nil {
			task()
			continue
		}
		if err := p.pool.Submit(task); err != nil {
			wg.Done()
			p.logger.Warn("Popularity pool rejected task", zap.Error(err))
		}
	}
	wg.Wait()

	maxCount := 0
	for j := range counts {
		if ok[j] {
			maxCount = max(maxCount, counts[j])
		}
	}
	if maxCount == 0 {
		return out
	}
	for i, j := range keys {
		if j >= 0 && ok[j] {
			out[i] = float64(counts[j]) / float64(maxCount)
		}
	}
	return out
}

func lookupFor(c *candidate.Candidate) (lookup, bool) {
	if v := strings.TrimSpace(c.Category()); v != "" {
		return lookup{popularity.ByCategory, strings.ToLower(v)}, true
	}
	if v := strings.TrimSpace(c.Merchant()); v != "" {
		return lookup{popularity.ByMerchant, strings.ToLower(v)}, true
	}
	return lookup{}, false
}
