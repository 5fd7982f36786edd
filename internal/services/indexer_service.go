package services

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/legalmatch/internal/metrics"
	"github.com/yoockh/legalmatch/internal/models"
	"github.com/yoockh/legalmatch/internal/providers/embedding"
	mongorepo "github.com/yoockh/legalmatch/internal/repositories/mongo"
	pgrepo "github.com/yoockh/legalmatch/internal/repositories/postgres"
	"github.com/yoockh/legalmatch/internal/utils"
)

const (
	TriggerManual   = "manual"
	TriggerStream   = "stream"
	TriggerSchedule = "schedule"
	TriggerCLI      = "cli"
)

type IndexStatus struct {
	Model      string `json:"model"`
	Missing    int64  `json:"missing"`
	StaleModel int64  `json:"stale_model"`
}

type IndexerService interface {
	Run(ctx context.Context, trigger string) (*models.IndexRun, error)
	Status(ctx context.Context) (*IndexStatus, error)
	Runs(ctx context.Context, limit int64) ([]models.IndexRun, error)
	Close()
}

type indexerService struct {
	profiles pgrepo.ProfileRepository
	provider embedding.Provider
	runs     mongorepo.IndexRunRepository // nil: reports are only logged
	pool     *ants.Pool
	log      logrus.FieldLogger

	mu  sync.Mutex // one pass at a time per process
	now func() time.Time
}

// NewIndexerService builds the indexer. runs may be nil.
func NewIndexerService(
	profiles pgrepo.ProfileRepository,
	provider embedding.Provider,
	runs mongorepo.IndexRunRepository,
	concurrency int,
	log logrus.FieldLogger,
) (IndexerService, error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &indexerService{
		profiles: profiles,
		provider: provider,
		runs:     runs,
		pool:     pool,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *indexerService) Close() { s.pool.Release() }

func (s *indexerService) Run(ctx context.Context, trigger string) (*models.IndexRun, error) {
	const op = "IndexerService.Run"

	s.mu.Lock()
	defer s.mu.Unlock()

	if trigger == "" {
		trigger = TriggerManual
	}
	model := s.provider.Options().Fingerprint()
	run := &models.IndexRun{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		Model:     model,
		StartedAt: s.now(),
	}
	log := s.log.WithFields(logrus.Fields{"run_id": run.RunID, "trigger": trigger, "model": model})

	pending, err := s.profiles.ListMissingEmbedding(ctx)
	if err != nil {
		metrics.IndexerRunsTotal.WithLabelValues(trigger, "failed").Inc()
		log.WithError(err).Error("indexer scan failed")
		return nil, utils.EDetail(utils.CodeInternal, op, "failed to fetch lawyers", err)
	}

	run.Scanned = len(pending)
	run.Items = make([]models.IndexItemResult, len(pending))

	var wg sync.WaitGroup
	for i := range pending {
		i := i
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			run.Items[i] = s.indexOne(ctx, &pending[i], model, log)
		})
		if err != nil {
			wg.Done()
			run.Items[i] = s.fail(&pending[i], err, log)
		}
	}
	wg.Wait()

	for _, it := range run.Items {
		switch it.Status {
		case models.IndexItemSuccess:
			run.Succeeded++
		case models.IndexItemError:
			run.Failed++
		case models.IndexItemSkipped:
			run.Skipped++
		}
	}
	run.FinishedAt = s.now()

	result := "ok"
	switch {
	case run.NothingToDo():
		result = "noop"
	case run.Failed > 0:
		result = "partial"
	}
	metrics.IndexerRunsTotal.WithLabelValues(trigger, result).Inc()

	log.WithFields(logrus.Fields{
		"scanned":     run.Scanned,
		"succeeded":   run.Succeeded,
		"failed":      run.Failed,
		"skipped":     run.Skipped,
		"duration_ms": run.FinishedAt.Sub(run.StartedAt).Milliseconds(),
	}).Info(run.Message())

	s.record(ctx, run, log)
	return run, nil
}

func (s *indexerService) indexOne(ctx context.Context, p *models.LawyerProfile, model string, log logrus.FieldLogger) models.IndexItemResult {
	text := p.SearchableText()
	if text == "" {
		metrics.IndexerItemsTotal.WithLabelValues(string(models.IndexItemSkipped)).Inc()
		log.WithField("profile_id", p.ID).Info("no searchable text, skipped")
		return models.IndexItemResult{ID: p.ID, Status: models.IndexItemSkipped}
	}

	vec, err := s.provider.Embed(ctx, text)
	if err == nil {
		err = embedding.Validate(vec, s.provider.Options().Dimensions)
	}
	if err == nil {
		err = s.profiles.UpdateEmbedding(ctx, p, vec, model)
	}
	if err != nil {
		return s.fail(p, err, log)
	}

	n := utf8.RuneCountInString(text)
	metrics.IndexerItemsTotal.WithLabelValues(string(models.IndexItemSuccess)).Inc()
	log.WithFields(logrus.Fields{"profile_id": p.ID, "text_length": n}).Info("embedding stored")
	return models.IndexItemResult{ID: p.ID, Status: models.IndexItemSuccess, TextLength: n}
}

func (s *indexerService) fail(p *models.LawyerProfile, err error, log logrus.FieldLogger) models.IndexItemResult {
	metrics.IndexerItemsTotal.WithLabelValues(string(models.IndexItemError)).Inc()
	log.WithField("profile_id", p.ID).WithError(err).Warn("profile indexing failed")
	return models.IndexItemResult{ID: p.ID, Status: models.IndexItemError, Error: err.Error()}
}

// record stores the report. It outlives a cancelled request and never fails the run.
func (s *indexerService) record(ctx context.Context, run *models.IndexRun, log logrus.FieldLogger) {
	if s.runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.runs.Insert(ctx, run); err != nil {
		log.WithError(err).Warn("index run report not stored")
	}
}

func (s *indexerService) Status(ctx context.Context) (*IndexStatus, error) {
	const op = "IndexerService.Status"

	model := s.provider.Options().Fingerprint()
	missing, err := s.profiles.CountMissingEmbedding(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to count unindexed profiles", err)
	}
	stale, err := s.profiles.CountStaleModel(ctx, model)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to count stale embeddings", err)
	}
	return &IndexStatus{Model: model, Missing: missing, StaleModel: stale}, nil
}

func (s *indexerService) Runs(ctx context.Context, limit int64) ([]models.IndexRun, error) {
	const op = "IndexerService.Runs"

	if s.runs == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "index run history is disabled", nil)
	}
	out, err := s.runs.ListRecent(ctx, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list index runs", err)
	}
	return out, nil
}
