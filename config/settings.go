package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yoockh/legalmatch/internal/models"
	"github.com/yoockh/legalmatch/internal/providers/embedding"
)

type EmbeddingSettings struct {
	Provider    string // openai | vertex
	Model       string
	Dimensions  int
	BaseURL     string
	APIKey      string
	GCPProject  string
	GCPLocation string
	CacheTTL    time.Duration
}

// Options is shared by the indexer and the search service.
func (e EmbeddingSettings) Options() embedding.Options {
	return embedding.Options{
		Provider:   e.Provider,
		Model:      e.Model,
		Dimensions: e.Dimensions,
		MeanPool:   true,
		Normalize:  true,
	}
}

type SearchSettings struct {
	DefaultLimit     int
	MaxLimit         int
	DefaultThreshold float64
}

type IndexerSettings struct {
	Concurrency int
	Interval    time.Duration
	Stream      string
	Group       string
}

type PhotoSettings struct {
	Bucket string
	URLTTL time.Duration
}

type JWTSettings struct {
	Secret   string
	Issuer   string
	Audience string
}

type Settings struct {
	Port      string
	Embedding EmbeddingSettings
	Search    SearchSettings
	Indexer   IndexerSettings
	Photo     PhotoSettings
	JWT       JWTSettings
}

// LoadSettings reads every tunable from the environment. Malformed values are
// reported instead of silently replaced by defaults.
func LoadSettings() (Settings, error) {
	var (
		s   Settings
		err error
		p   = envParser{}
	)

	s.Port = envOr("PORT", "8080")

	s.Embedding = EmbeddingSettings{
		Provider:    strings.ToLower(envOr("EMBEDDING_PROVIDER", "openai")),
		Model:       envOr("EMBEDDING_MODEL", "gte-small"),
		Dimensions:  p.int("EMBEDDING_DIMENSIONS", models.EmbeddingDimensions),
		BaseURL:     os.Getenv("EMBEDDING_BASE_URL"),
		APIKey:      os.Getenv("EMBEDDING_API_KEY"),
		GCPProject:  os.Getenv("GCP_PROJECT_ID"),
		GCPLocation: envOr("GCP_LOCATION", "us-central1"),
		CacheTTL:    p.duration("EMBEDDING_CACHE_TTL", 24*time.Hour),
	}

	s.Search = SearchSettings{
		DefaultLimit:     p.int("SEARCH_DEFAULT_LIMIT", 10),
		MaxLimit:         p.int("SEARCH_MAX_LIMIT", 50),
		DefaultThreshold: p.float("SEARCH_DEFAULT_THRESHOLD", 0.5),
	}

	s.Indexer = IndexerSettings{
		Concurrency: p.int("INDEXER_CONCURRENCY", 4),
		Interval:    p.duration("INDEXER_INTERVAL", 10*time.Minute),
		Stream:      envOr("INDEXER_STREAM", "index:requests"),
		Group:       envOr("INDEXER_GROUP", "indexers"),
	}

	s.Photo = PhotoSettings{
		Bucket: os.Getenv("PHOTO_BUCKET"),
		URLTTL: p.duration("PHOTO_URL_TTL", time.Hour),
	}

	s.JWT = JWTSettings{
		Secret:   os.Getenv("SUPABASE_JWT_SECRET"),
		Issuer:   os.Getenv("SUPABASE_JWT_ISSUER"),
		Audience: os.Getenv("SUPABASE_JWT_AUDIENCE"),
	}

	if err = p.err; err != nil {
		return s, err
	}
	return s, s.validate()
}

func (s Settings) validate() error {
	switch s.Embedding.Provider {
	case "openai":
	case "vertex":
		if s.Embedding.GCPProject == "" {
			return fmt.Errorf("GCP_PROJECT_ID is required for EMBEDDING_PROVIDER=vertex")
		}
	default:
		return fmt.Errorf("EMBEDDING_PROVIDER must be openai or vertex, got %q", s.Embedding.Provider)
	}
	if s.Embedding.Dimensions != models.EmbeddingDimensions {
		return fmt.Errorf("EMBEDDING_DIMENSIONS=%d does not match search_embedding vector(%d)",
			s.Embedding.Dimensions, models.EmbeddingDimensions)
	}
	if s.Search.DefaultLimit <= 0 || s.Search.MaxLimit < s.Search.DefaultLimit {
		return fmt.Errorf("SEARCH_DEFAULT_LIMIT must be > 0 and <= SEARCH_MAX_LIMIT")
	}
	if s.Search.DefaultThreshold < 0 || s.Search.DefaultThreshold > 1 {
		return fmt.Errorf("SEARCH_DEFAULT_THRESHOLD must be within [0,1]")
	}
	if s.Indexer.Concurrency <= 0 {
		return fmt.Errorf("INDEXER_CONCURRENCY must be > 0")
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envParser keeps the first parse error so LoadSettings can read every key
// before failing.
type envParser struct{ err error }

func (p *envParser) fail(key, val string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, val, err)
	}
}

func (p *envParser) int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *envParser) float(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *envParser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}
