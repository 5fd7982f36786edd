package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/yoockh/legalmatch/internal/models"
	"github.com/yoockh/legalmatch/internal/utils"
	"gorm.io/gorm"
)

// ErrProfileChanged means the profile was edited or deleted between the
// indexer's scan and its write; the vector is dropped and the next pass retries.
var ErrProfileChanged = errors.New("profile changed or deleted during indexing")

type ListFilter struct {
	Text         string // matches name, firm, location or a practice area
	PracticeArea string // exact practice area tag
	Limit        int
}

type ProfileRepository interface {
	// indexing side
	ListMissingEmbedding(ctx context.Context) ([]models.LawyerProfile, error)
	UpdateEmbedding(ctx context.Context, p *models.LawyerProfile, vec []float32, model string) error
	CountMissingEmbedding(ctx context.Context) (int64, error)
	CountStaleModel(ctx context.Context, model string) (int64, error)

	// query side
	SearchBySimilarity(ctx context.Context, vec []float32, threshold float64, limit int) ([]models.LawyerSearchResult, error)
	List(ctx context.Context, f ListFilter) ([]models.LawyerSearchResult, error)

	// owner side
	GetByUserID(ctx context.Context, userID string) (*models.LawyerProfile, error)
	UpdateSearchableFields(ctx context.Context, userID string, f models.SearchableFields) (*models.LawyerProfile, error)
}

type profileRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewProfileRepo(db *gorm.DB) ProfileRepository {
	return &profileRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const resultColumns = `id,
	COALESCE(full_name, '') AS full_name,
	COALESCE(email, '') AS email,
	COALESCE(phone_number, '') AS phone_number,
	COALESCE(firm_name, '') AS firm_name,
	practice_areas,
	COALESCE(expertise_description, '') AS expertise_description,
	COALESCE(professional_bio, '') AS professional_bio,
	COALESCE(hourly_rate, 0) AS hourly_rate,
	COALESCE(consultation_fee, 0) AS consultation_fee,
	COALESCE(free_consultation, false) AS free_consultation,
	COALESCE(availability_status, '') AS availability_status,
	COALESCE(response_time, '') AS response_time,
	COALESCE(rating, 0) AS rating,
	COALESCE(review_count, 0) AS review_count,
	COALESCE(profile_photo_url, '') AS profile_photo_url,
	COALESCE(location, '') AS location,
	COALESCE(years_experience, 0) AS years_experience,
	languages_spoken`

const similaritySQL = `SELECT ` + resultColumns + `,
	1 - (search_embedding <=> ?) AS similarity
FROM lawyer_profiles
WHERE search_embedding IS NOT NULL
	AND 1 - (search_embedding <=> ?) >= ?
ORDER BY similarity DESC, id ASC
LIMIT ?`

func (r *profileRepo) ListMissingEmbedding(ctx context.Context) ([]models.LawyerProfile, error) {
	var out []models.LawyerProfile
	err := r.db.WithContext(ctx).
		Select("id", "practice_areas", "expertise_description", "professional_bio", "updated_at").
		Where("search_embedding IS NULL").
		Order("id").
		Find(&out).Error
	return out, err
}

// UpdateEmbedding writes vec only if the profile still has no vector and has not
// been edited since it was scanned, so a vector always matches the text it came from.
func (r *profileRepo) UpdateEmbedding(ctx context.Context, p *models.LawyerProfile, vec []float32, model string) error {
	// a NULL updated_at scans as the zero time
	var scanned any = p.UpdatedAt
	if p.UpdatedAt.IsZero() {
		scanned = nil
	}
	res := r.db.WithContext(ctx).Exec(
		`UPDATE lawyer_profiles SET search_embedding = ?, embedding_model = ?, embedded_at = ?
		WHERE id = ? AND search_embedding IS NULL AND updated_at IS NOT DISTINCT FROM ?`,
		pgvector.NewVector(vec), model, r.now(), p.ID, scanned,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProfileChanged
	}
	return nil
}

func (r *profileRepo) CountMissingEmbedding(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.LawyerProfile{}).
		Where("search_embedding IS NULL").
		Count(&n).Error
	return n, err
}

func (r *profileRepo) CountStaleModel(ctx context.Context, model string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.LawyerProfile{}).
		Where("search_embedding IS NOT NULL AND (embedding_model IS NULL OR embedding_model <> ?)", model).
		Count(&n).Error
	return n, err
}

func (r *profileRepo) SearchBySimilarity(ctx context.Context, vec []float32, threshold float64, limit int) ([]models.LawyerSearchResult, error) {
	q := pgvector.NewVector(vec)
	out := []models.LawyerSearchResult{}
	err := r.db.WithContext(ctx).
		Raw(similaritySQL, q, q, threshold, limit).
		Scan(&out).Error
	return out, err
}

func (r *profileRepo) List(ctx context.Context, f ListFilter) ([]models.LawyerSearchResult, error) {
	tx := r.db.WithContext(ctx).
		Table("lawyer_profiles").
		Select(resultColumns + ", 0 AS similarity")

	if text := strings.TrimSpace(f.Text); text != "" {
		pat := "%" + escapeLike(text) + "%"
		tx = tx.Where(
			"(full_name ILIKE ? OR firm_name ILIKE ? OR location ILIKE ? OR array_to_string(practice_areas, ',') ILIKE ?)",
			pat, pat, pat, pat,
		)
	}
	if area := strings.TrimSpace(f.PracticeArea); area != "" {
		tx = tx.Where("? = ANY(practice_areas)", area)
	}
	if f.Limit > 0 {
		tx = tx.Limit(f.Limit)
	}

	out := []models.LawyerSearchResult{}
	err := tx.Order("rating DESC NULLS LAST, review_count DESC, id ASC").Scan(&out).Error
	return out, err
}

func (r *profileRepo) GetByUserID(ctx context.Context, userID string) (*models.LawyerProfile, error) {
	var p models.LawyerProfile
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateSearchableFields applies the edit and clears the stored vector in the
// same statement; the profile becomes visible to the next indexer pass.
func (r *profileRepo) UpdateSearchableFields(ctx context.Context, userID string, f models.SearchableFields) (*models.LawyerProfile, error) {
	updates := map[string]any{
		"search_embedding": nil,
		"embedding_model":  nil,
		"embedded_at":      nil,
		"updated_at":       r.now(),
	}
	if f.PracticeAreas != nil {
		updates["practice_areas"] = pq.StringArray(*f.PracticeAreas)
	}
	if f.ExpertiseDescription != nil {
		updates["expertise_description"] = *f.ExpertiseDescription
	}
	if f.ProfessionalBio != nil {
		updates["professional_bio"] = *f.ProfessionalBio
	}

	res := r.db.WithContext(ctx).
		Model(&models.LawyerProfile{}).
		Where("user_id = ?", userID).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.ErrNotFound
	}
	return r.GetByUserID(ctx, userID)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
