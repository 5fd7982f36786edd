package services

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/legalmatch/internal/metrics"
	"github.com/yoockh/legalmatch/internal/models"
	"github.com/yoockh/legalmatch/internal/providers/embedding"
	pgrepo "github.com/yoockh/legalmatch/internal/repositories/postgres"
	"github.com/yoockh/legalmatch/internal/storage"
	"github.com/yoockh/legalmatch/internal/utils"
)

type SearchRequest struct {
	Query     string   `json:"query"`
	Limit     *int     `json:"limit,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type SearchResponse struct {
	Query   string                      `json:"query"`
	Results []models.LawyerSearchResult `json:"results"`
	Count   int                         `json:"count"`
}

type SearchConfig struct {
	DefaultLimit     int
	MaxLimit         int
	DefaultThreshold float64
	PhotoURLTTL      time.Duration
}

func DefaultSearchConfig() SearchConfig {
	return SearchConfig{DefaultLimit: 10, MaxLimit: 50, DefaultThreshold: 0.5, PhotoURLTTL: time.Hour}
}

type SearchService interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

type searchService struct {
	profiles pgrepo.ProfileRepository
	provider embedding.Provider
	photos   *photoResolver
	cfg      SearchConfig
	log      logrus.FieldLogger
}

// NewSearchService wires the query side. signer may be nil when photos are public URLs.
func NewSearchService(
	profiles pgrepo.ProfileRepository,
	provider embedding.Provider,
	signer storage.Signer,
	cfg SearchConfig,
	log logrus.FieldLogger,
) SearchService {
	def := DefaultSearchConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = cfg.DefaultLimit
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &searchService{
		profiles: profiles,
		provider: provider,
		photos:   newPhotoResolver(signer, cfg.PhotoURLTTL, log),
		cfg:      cfg,
		log:      log,
	}
}

func (s *searchService) Search(ctx context.Context, req SearchRequest) (resp *SearchResponse, err error) {
	const op = "SearchService.Search"

	start := time.Now()
	defer func() {
		code := "OK"
		if err != nil {
			code = string(utils.CodeOf(err))
		}
		metrics.SearchRequestsTotal.WithLabelValues(code).Inc()
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Query is required", nil)
	}

	limit := s.cfg.DefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	if limit <= 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "limit must be a positive integer", nil)
	}
	if limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}

	threshold := s.cfg.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "threshold must be between 0 and 1", nil)
	}

	log := s.log.WithFields(logrus.Fields{
		"query_length": utf8.RuneCountInString(query),
		"limit":        limit,
		"threshold":    threshold,
	})

	vec, err := s.provider.Embed(ctx, query)
	if err == nil {
		err = embedding.Validate(vec, s.provider.Options().Dimensions)
	}
	if err != nil {
		log.WithError(err).Error("query embedding failed")
		if ctx.Err() != nil {
			return nil, utils.E(utils.CodeTimeout, op, "search cancelled", ctx.Err())
		}
		return nil, utils.E(utils.CodeUpstream, op, "failed to generate query embedding", err)
	}

	rows, err := s.profiles.SearchBySimilarity(ctx, vec, threshold, limit)
	if err != nil {
		log.WithError(err).Error("similarity query failed")
		return nil, utils.EDetail(utils.CodeInternal, op, "failed to search lawyers", err)
	}

	results := rankResults(rows, threshold, limit)
	s.photos.resolve(ctx, results)

	metrics.SearchResults.Observe(float64(len(results)))
	log.WithField("count", len(results)).Debug("search served")

	return &SearchResponse{Query: req.Query, Results: results, Count: len(results)}, nil
}

// rankResults re-applies the ranking contract on whatever the store returned:
// rows without an id are dropped, similarity >= threshold is kept, order is
// similarity descending then id ascending, each id appears once (its best
// row), and at most limit rows remain.
func rankResults(rows []models.LawyerSearchResult, threshold float64, limit int) []models.LawyerSearchResult {
	kept := make([]models.LawyerSearchResult, 0, len(rows))
	for _, r := range rows {
		if r.ID == "" || r.Similarity < threshold {
			continue
		}
		kept = append(kept, r)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Similarity != kept[j].Similarity {
			return kept[i].Similarity > kept[j].Similarity
		}
		return kept[i].ID < kept[j].ID
	})

	seen := make(map[string]struct{}, len(kept))
	out := kept[:0]
	for _, r := range kept {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
