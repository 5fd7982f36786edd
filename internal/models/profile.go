package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingDimensions is the width of search_embedding (gte-small).
const EmbeddingDimensions = 384

type LawyerProfile struct {
	ID     string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID string `gorm:"column:user_id;type:uuid;uniqueIndex" json:"user_id"`

	FullName    string `gorm:"column:full_name;type:text" json:"full_name"`
	Email       string `gorm:"column:email;type:text" json:"email"`
	PhoneNumber string `gorm:"column:phone_number;type:text" json:"phone_number"`
	FirmName    string `gorm:"column:firm_name;type:text" json:"firm_name"`
	Location    string `gorm:"column:location;type:text" json:"location"`

	// searchable
	PracticeAreas        pq.StringArray `gorm:"column:practice_areas;type:text[]" json:"practice_areas"`
	ExpertiseDescription string         `gorm:"column:expertise_description;type:text" json:"expertise_description"`
	ProfessionalBio      string         `gorm:"column:professional_bio;type:text" json:"professional_bio"`

	HourlyRate         float64        `gorm:"column:hourly_rate" json:"hourly_rate"`
	ConsultationFee    float64        `gorm:"column:consultation_fee" json:"consultation_fee"`
	FreeConsultation   bool           `gorm:"column:free_consultation" json:"free_consultation"`
	AvailabilityStatus string         `gorm:"column:availability_status;type:text" json:"availability_status"`
	ResponseTime       string         `gorm:"column:response_time;type:text" json:"response_time"`
	Rating             float64        `gorm:"column:rating" json:"rating"`
	ReviewCount        int            `gorm:"column:review_count" json:"review_count"`
	ProfilePhotoURL    string         `gorm:"column:profile_photo_url;type:text" json:"profile_photo_url,omitempty"`
	YearsExperience    int            `gorm:"column:years_experience" json:"years_experience"`
	LanguagesSpoken    pq.StringArray `gorm:"column:languages_spoken;type:text[]" json:"languages_spoken"`

	// pgvector, NULL until the indexer has run for this profile
	SearchEmbedding *pgvector.Vector `gorm:"column:search_embedding;type:vector(384)" json:"-"`
	EmbeddingModel  *string          `gorm:"column:embedding_model;type:text" json:"embedding_model,omitempty"`
	EmbeddedAt      *time.Time       `gorm:"column:embedded_at;type:timestamptz" json:"embedded_at,omitempty"`

	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (LawyerProfile) TableName() string { return "lawyer_profiles" }

// SearchableText is the embedding input: the non-blank parts of
// (practice areas joined by ", ", expertise description, bio) joined by ". ".
// It returns "" when nothing is left after trimming.
func (p *LawyerProfile) SearchableText() string {
	return SearchableText(p.PracticeAreas, p.ExpertiseDescription, p.ProfessionalBio)
}

func SearchableText(practiceAreas []string, expertise, bio string) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{strings.Join(practiceAreas, ", "), expertise, bio} {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	text := strings.Join(parts, ". ")
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return text
}

// SearchableFields are the profile columns an embedding is derived from.
// Changing any of them invalidates search_embedding.
type SearchableFields struct {
	PracticeAreas        *[]string
	ExpertiseDescription *string
	ProfessionalBio      *string
}

func (f SearchableFields) Empty() bool {
	return f.PracticeAreas == nil && f.ExpertiseDescription == nil && f.ProfessionalBio == nil
}
