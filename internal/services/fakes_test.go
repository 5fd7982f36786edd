package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/yoockh/legalmatch/internal/models"
	"github.com/yoockh/legalmatch/internal/providers/embedding"
	pgrepo "github.com/yoockh/legalmatch/internal/repositories/postgres"
	"github.com/yoockh/legalmatch/internal/utils"
)

// fakeProfileRepo keeps profiles in memory. A profile is missing its embedding
// until UpdateEmbedding stores a vector for it; similarity search ranks stored
// vectors by cosine unless searchRows pins the rows the store returns.
type fakeProfileRepo struct {
	mu sync.Mutex

	pending    []models.LawyerProfile
	listErr    error
	updateErr  map[string]error
	updated    map[string][]float32
	updatedBy  map[string]string
	searchRows []models.LawyerSearchResult
	searchErr  error
	searchArgs struct {
		threshold float64
		limit     int
		calls     int
	}
	byUser     map[string]*models.LawyerProfile
	edits      []models.SearchableFields
	listed     []pgrepo.ListFilter
	listRows   []models.LawyerSearchResult
	missing    int64
	staleModel int64
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{
		updateErr: map[string]error{},
		updated:   map[string][]float32{},
		updatedBy: map[string]string{},
		byUser:    map[string]*models.LawyerProfile{},
	}
}

func (f *fakeProfileRepo) ListMissingEmbedding(context.Context) ([]models.LawyerProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.LawyerProfile
	for _, p := range f.pending {
		if f.updated[p.ID] == nil {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProfileRepo) UpdateEmbedding(_ context.Context, p *models.LawyerProfile, vec []float32, model string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateErr[p.ID]; err != nil {
		return err
	}
	if f.updated[p.ID] != nil {
		return pgrepo.ErrProfileChanged
	}
	f.updated[p.ID] = vec
	f.updatedBy[p.ID] = model
	return nil
}

func (f *fakeProfileRepo) CountMissingEmbedding(context.Context) (int64, error) {
	return f.missing, nil
}

func (f *fakeProfileRepo) CountStaleModel(context.Context, string) (int64, error) {
	return f.staleModel, nil
}

func (f *fakeProfileRepo) SearchBySimilarity(_ context.Context, vec []float32, threshold float64, limit int) ([]models.LawyerSearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchArgs.calls++
	f.searchArgs.threshold = threshold
	f.searchArgs.limit = limit
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if f.searchRows != nil {
		return append([]models.LawyerSearchResult(nil), f.searchRows...), nil
	}

	var out []models.LawyerSearchResult
	for _, p := range f.pending {
		stored := f.updated[p.ID]
		if stored == nil {
			continue
		}
		sim := embedding.Cosine(vec, stored)
		if sim < threshold {
			continue
		}
		out = append(out, models.LawyerSearchResult{
			ID:                   p.ID,
			FullName:             p.FullName,
			PracticeAreas:        p.PracticeAreas,
			ExpertiseDescription: p.ExpertiseDescription,
			ProfessionalBio:      p.ProfessionalBio,
			Similarity:           sim,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeProfileRepo) List(_ context.Context, lf pgrepo.ListFilter) ([]models.LawyerSearchResult, error) {
	f.listed = append(f.listed, lf)
	return append([]models.LawyerSearchResult(nil), f.listRows...), nil
}

func (f *fakeProfileRepo) GetByUserID(_ context.Context, userID string) (*models.LawyerProfile, error) {
	p, ok := f.byUser[userID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return p, nil
}

func (f *fakeProfileRepo) UpdateSearchableFields(_ context.Context, userID string, sf models.SearchableFields) (*models.LawyerProfile, error) {
	p, ok := f.byUser[userID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	f.edits = append(f.edits, sf)
	if sf.PracticeAreas != nil {
		p.PracticeAreas = *sf.PracticeAreas
	}
	if sf.ExpertiseDescription != nil {
		p.ExpertiseDescription = *sf.ExpertiseDescription
	}
	if sf.ProfessionalBio != nil {
		p.ProfessionalBio = *sf.ProfessionalBio
	}
	p.SearchEmbedding = nil
	p.EmbeddingModel = nil
	return p, nil
}

// fakeProvider returns a fixed unit vector of the configured width unless a
// per-text override or error is set.
type fakeProvider struct {
	mu     sync.Mutex
	opts   embedding.Options
	vecs   map[string][]float32
	errs   map[string]error
	delay  map[string]time.Duration
	calls  []string
	allErr error
}

func newFakeProvider(dims int) *fakeProvider {
	return &fakeProvider{
		opts:  embedding.Options{Provider: "fake", Model: "gte-small", Dimensions: dims, MeanPool: true, Normalize: true},
		vecs:  map[string][]float32{},
		errs:  map[string]error{},
		delay: map[string]time.Duration{},
	}
}

func (p *fakeProvider) Options() embedding.Options { return p.opts }

func (p *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.calls = append(p.calls, text)
	d := p.delay[text]
	vec, hasVec := p.vecs[text]
	err := p.errs[text]
	allErr := p.allErr
	p.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if allErr != nil {
		return nil, allErr
	}
	if err != nil {
		return nil, err
	}
	if hasVec {
		return vec, nil
	}
	out := make([]float32, p.opts.Dimensions)
	out[0] = 1
	return out, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fakeRunRepo struct {
	inserted []*models.IndexRun
	err      error
	recent   []models.IndexRun
}

func (r *fakeRunRepo) Insert(_ context.Context, run *models.IndexRun) error {
	if r.err != nil {
		return r.err
	}
	r.inserted = append(r.inserted, run)
	return nil
}

func (r *fakeRunRepo) GetByRunID(context.Context, string) (*models.IndexRun, error) {
	return nil, utils.ErrNotFound
}

func (r *fakeRunRepo) ListRecent(context.Context, int64) ([]models.IndexRun, error) {
	return r.recent, r.err
}

type fakeSigner struct {
	fail map[string]bool
}

func (s fakeSigner) SignedGetURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	if s.fail[objectName] {
		return "", errors.New("signing key missing")
	}
	return "https://storage.googleapis.com/photos/" + objectName + "?X-Goog-Signature=abc", nil
}

type fakeTrigger struct {
	reasons []string
	ids     []string
	err     error
}

func (t *fakeTrigger) Enqueue(_ context.Context, reason, profileID string) error {
	t.reasons = append(t.reasons, reason)
	t.ids = append(t.ids, profileID)
	return t.err
}
