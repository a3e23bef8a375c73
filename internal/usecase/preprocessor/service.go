package preprocessor

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noa10/mataresit-sub011/internal/domain"
	"github.com/noa10/mataresit-sub011/internal/domain/search/candidate"
	"github.com/noa10/mataresit-sub011/internal/domain/search/intent"
	"github.com/noa10/mataresit-sub011/internal/domain/search/preprocess"
	"github.com/noa10/mataresit-sub011/internal/domain/search/query"
	"github.com/noa10/mataresit-sub011/internal/repository/cache"
	"github.com/noa10/mataresit-sub011/internal/usecase/llm"
)

// CacheStage labels preprocessing entries in the shared cache.
const CacheStage = "preprocessing"

// Config tunes the preprocessor.
type Config struct {
	Temperature     float64
	MaxTokens       int
	CacheTTL        time.Duration
	DefaultCurrency string
}

// Service turns raw query text into a PreprocessResult. It never fails:
// any LLM problem degrades to the deterministic default classification.
type Service struct {
	llm    completer
	cache  resultCache
	cfg    Config
	now    func() time.Time
	logger *zap.Logger
}

// New creates a preprocessor. llm and c may be nil.
func New(l completer, c resultCache, cfg Config, logger *zap.Logger) *Service {
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = preprocess.DefaultCurrency
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	return &Service{llm: l, cache: c, cfg: cfg, now: time.Now, logger: logger}
}

// llmResponse is the JSON contract the classifier prompt asks for.
type llmResponse struct {
	ExpandedQuery  string                    `json:"expanded_query"`
	Intent         string                    `json:"intent"`
	Confidence     float64                   `json:"confidence"`
	Entities       preprocess.Entities       `json:"entities"`
	Classification preprocess.Classification `json:"classification"`
	Currency       string                    `json:"currency"`
	Model          string                    `json:"model,omitempty"`
}

// Preprocess classifies q. cached reports whether the LLM answer came from the cache.
func (s *Service) Preprocess(ctx context.Context, q query.Query) (res preprocess.Result, cached bool) {
	currency := q.Profile().Currency
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}

	res = preprocess.Default(q.Text(), currency)
	if q.Text() != "" && s.llm != nil {
		resp, hit, err := s.classify(ctx, q)
		if err != nil {
			s.logger.Warn("Preprocessing degraded to defaults",
				zap.Error(fmt.Errorf("%w: %w", domain.ErrPreprocessingDegraded, err)))
		} else {
			res = apply(res, resp)
			cached = hit
		}
	}

	money := ParseMoney(q.Text())
	res.Temporal = ParseTemporal(money.Rest, s.now())
	if money.Range.IsSet() {
		res.Amount = money.Range
		for _, a := range money.Amounts {
			if !slices.Contains(res.Entities.Amounts, a) {
				res.Entities.Amounts = append(res.Entities.Amounts, a)
			}
		}
	}
	if money.Currency != "" {
		res.Currency = money.Currency
	}
	if res.Temporal.IsTemporal && res.Temporal.Phrase != "" &&
		!slices.Contains(res.Entities.TimeRanges, res.Temporal.Phrase) {
		res.Entities.TimeRanges = append(res.Entities.TimeRanges, res.Temporal.Phrase)
	}
	return res, cached
}

func (s *Service) classify(ctx context.Context, q query.Query) (llmResponse, bool, error) {
	key := cache.Key(cacheText(q), q.Scope(), CacheStage)

	var resp llmResponse
	if s.cache != nil && s.cache.Load(ctx, CacheStage, key, &resp) {
		return resp, true, nil
	}

	out, err := s.llm.Complete(ctx, buildPrompt(q, s.now()), domain.CompletionOptions{
		System:      systemPrompt,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		return llmResponse{}, false, fmt.Errorf("classify: %w", err)
	}
	if err := llm.DecodeJSON(out.Text, &resp); err != nil {
		return llmResponse{}, false, fmt.Errorf("classify: %w", err)
	}
	if !intent.Intent(resp.Intent).IsValid() {
		return llmResponse{}, false, fmt.Errorf("unknown intent %q: %w", resp.Intent, domain.ErrMalformedLLMOutput)
	}
	resp.Model = out.Model

	if s.cache != nil {
		s.cache.Store(ctx, CacheStage, key, resp, s.cfg.CacheTTL)
	}
	return resp, false, nil
}

func apply(res preprocess.Result, resp llmResponse) preprocess.Result {
	res.Intent = intent.Parse(resp.Intent)
	res.Confidence = candidate.Clamp(resp.Confidence)
	if exp := strings.TrimSpace(resp.ExpandedQuery); exp != "" {
		res.ExpandedQuery = exp
	}
	res.Entities = resp.Entities
	if resp.Classification != (preprocess.Classification{}) {
		res.Classification = resp.Classification
	}
	if c := strings.ToUpper(strings.TrimSpace(resp.Currency)); len(c) == 3 {
		res.Currency = c
	}
	res.Degraded = false
	res.Model = resp.Model
	return res
}

// cacheText folds the conversation history into the cache identity.
func cacheText(q query.Query) string {
	h := q.History()
	if len(h) == 0 {
		return q.Normalized()
	}
	var b strings.Builder
	b.WriteString(q.Normalized())
	for _, t := range h {
		b.WriteString("\x00")
		b.WriteString(t.Role)
		b.WriteString(":")
		b.WriteString(strings.ToLower(t.Content))
	}
	return b.String()
}
