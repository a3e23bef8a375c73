package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the search service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Cache     CacheConfig     `yaml:"cache"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds gateway authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds datastore connection and index settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	IndexName        string   `yaml:"index_name"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	// EnsureIndex creates the search index at startup when missing.
	EnsureIndex bool `yaml:"ensure_index"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"`
	BaseURL          string `yaml:"base_url"`
	APIKey           string `yaml:"api_key"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	TimeoutSec       int    `yaml:"timeout_sec"`
	QueryInstruction string `yaml:"query_instruction"`
}

// LLM provider names.
const (
	LLMProviderOpenAI = "openai"
	LLMProviderOllama = "ollama"
	LLMProviderNone   = "none"
)

// LLMConfig holds completion provider settings.
type LLMConfig struct {
	Provider          string  `yaml:"provider"` // openai, ollama, none
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int     `yaml:"burst"`
}

// Cache driver names.
const (
	CacheDriverRedis  = "redis"
	CacheDriverBadger = "badger"
	CacheDriverNone   = "none"
)

// CacheConfig holds cache collaborator settings.
type CacheConfig struct {
	Driver            string `yaml:"driver"` // redis, badger, none
	BadgerPath        string `yaml:"badger_path"`
	PreprocessTTLSec  int    `yaml:"preprocess_ttl_sec"`
	AggregationTTLSec int    `yaml:"aggregation_ttl_sec"`
	EmbeddingTTLSec   int    `yaml:"embedding_ttl_sec"`
}

// WeightsConfig holds the default ranking weights.
type WeightsConfig struct {
	Vector     float64 `yaml:"vector"`
	FullText   float64 `yaml:"full_text"`
	Recency    float64 `yaml:"recency"`
	Popularity float64 `yaml:"popularity"`
}

// TimeoutsConfig holds per-stage deadlines in milliseconds. Zero disables a deadline.
type TimeoutsConfig struct {
	PreprocessingMs int `yaml:"preprocessing_ms"`
	EmbeddingMs     int `yaml:"embedding_ms"`
	SearchMs        int `yaml:"search_ms"`
	SearchTierMs    int `yaml:"search_tier_ms"`
	RankingMs       int `yaml:"ranking_ms"`
	ReRankingMs     int `yaml:"reranking_ms"`
}

// PipelineConfig holds ranking and orchestration settings.
type PipelineConfig struct {
	Weights             WeightsConfig  `yaml:"weights"`
	DiversityMode       string         `yaml:"diversity_mode"`
	SimilarityThreshold float64        `yaml:"similarity_threshold"`
	TrigramThreshold    float64        `yaml:"trigram_threshold"`
	RecencyLambda       float64        `yaml:"recency_lambda"`
	RecencyFloor        float64        `yaml:"recency_floor"`
	ExactMatchBoost     float64        `yaml:"exact_match_boost"`
	UnknownPopularity   float64        `yaml:"unknown_popularity"`
	RerankEnabled       *bool          `yaml:"rerank_enabled"`
	RerankMaxCandidates int            `yaml:"rerank_max_candidates"`
	OverFetchMin        int            `yaml:"over_fetch_min"`
	MonetaryBypass      *bool          `yaml:"monetary_threshold_bypass"`
	WorkerPoolSize      int            `yaml:"worker_pool_size"`
	DefaultCurrency     string         `yaml:"default_currency"`
	AggregateGroupBy    string         `yaml:"aggregate_group_by"`
	Timeouts            TimeoutsConfig `yaml:"timeouts"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes, expands ${VAR} references, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.IndexName == "" {
		c.Database.IndexName = "documents"
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "mataresit:"
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = LLMProviderNone
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 15
	}
	if c.LLM.Burst <= 0 {
		c.LLM.Burst = 1
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = CacheDriverRedis
	}
	if c.Cache.PreprocessTTLSec <= 0 {
		c.Cache.PreprocessTTLSec = 3600
	}
	if c.Cache.AggregationTTLSec <= 0 {
		c.Cache.AggregationTTLSec = 300
	}
	if c.Cache.EmbeddingTTLSec <= 0 {
		c.Cache.EmbeddingTTLSec = 86400
	}

	c.Pipeline.applyDefaults()
}

func (p *PipelineConfig) applyDefaults() {
	if p.Weights == (WeightsConfig{}) {
		p.Weights = WeightsConfig{Vector: 0.4, FullText: 0.3, Recency: 0.2, Popularity: 0.1}
	}
	if p.DiversityMode == "" {
		p.DiversityMode = "relevance"
	}
	if p.SimilarityThreshold <= 0 {
		p.SimilarityThreshold = 0.2
	}
	if p.TrigramThreshold <= 0 {
		p.TrigramThreshold = 0.3
	}
	if p.RecencyLambda <= 0 {
		p.RecencyLambda = 0.05
	}
	if p.RecencyFloor <= 0 {
		p.RecencyFloor = 0.05
	}
	if p.ExactMatchBoost <= 0 {
		p.ExactMatchBoost = 2.5
	}
	if p.UnknownPopularity <= 0 {
		p.UnknownPopularity = 0.5
	}
	if p.RerankEnabled == nil {
		p.RerankEnabled = boolPtr(true)
	}
	if p.RerankMaxCandidates <= 0 {
		p.RerankMaxCandidates = 50
	}
	if p.OverFetchMin <= 0 {
		p.OverFetchMin = 50
	}
	if p.MonetaryBypass == nil {
		p.MonetaryBypass = boolPtr(true)
	}
	if p.WorkerPoolSize <= 0 {
		p.WorkerPoolSize = 16
	}
	if p.DefaultCurrency == "" {
		p.DefaultCurrency = "MYR"
	}
	if p.AggregateGroupBy == "" {
		p.AggregateGroupBy = "merchant_tag"
	}
	t := &p.Timeouts
	if t.PreprocessingMs <= 0 {
		t.PreprocessingMs = 8000
	}
	if t.EmbeddingMs <= 0 {
		t.EmbeddingMs = 10000
	}
	if t.SearchMs <= 0 {
		t.SearchMs = 15000
	}
	if t.SearchTierMs <= 0 {
		t.SearchTierMs = 3000
	}
	if t.RankingMs <= 0 {
		t.RankingMs = 2000
	}
	if t.ReRankingMs <= 0 {
		t.ReRankingMs = 10000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.LLM.Provider {
	case LLMProviderOpenAI, LLMProviderOllama, LLMProviderNone:
	default:
		return fmt.Errorf("llm.provider must be %q, %q or %q, got %q",
			LLMProviderOpenAI, LLMProviderOllama, LLMProviderNone, c.LLM.Provider)
	}
	if c.LLM.Provider != LLMProviderNone && c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required for provider %q", c.LLM.Provider)
	}
	if c.LLM.Provider == LLMProviderOllama && c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required for provider %q", LLMProviderOllama)
	}
	switch c.Cache.Driver {
	case CacheDriverRedis, CacheDriverNone:
	case CacheDriverBadger:
		if c.Cache.BadgerPath == "" {
			return fmt.Errorf("cache.badger_path is required for driver %q", CacheDriverBadger)
		}
	default:
		return fmt.Errorf("cache.driver must be %q, %q or %q, got %q",
			CacheDriverRedis, CacheDriverBadger, CacheDriverNone, c.Cache.Driver)
	}
	return c.Pipeline.validate()
}

func (p *PipelineConfig) validate() error {
	w := p.Weights
	for name, v := range map[string]float64{
		"vector": w.Vector, "full_text": w.FullText, "recency": w.Recency, "popularity": w.Popularity,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("pipeline.weights.%s must be between 0 and 1, got %g", name, v)
		}
	}
	switch p.DiversityMode {
	case "relevance", "recency", "diversity":
	default:
		return fmt.Errorf("pipeline.diversity_mode must be relevance, recency or diversity, got %q", p.DiversityMode)
	}
	if p.SimilarityThreshold > 1 {
		return fmt.Errorf("pipeline.similarity_threshold must be at most 1, got %g", p.SimilarityThreshold)
	}
	if p.RecencyFloor > 1 {
		return fmt.Errorf("pipeline.recency_floor must be at most 1, got %g", p.RecencyFloor)
	}
	return nil
}

// Timeout converts seconds to a Duration.
func Timeout(sec int) time.Duration { return time.Duration(sec) * time.Second }

// Millis converts milliseconds to a Duration.
func Millis(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

func boolPtr(b bool) *bool { return &b }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
