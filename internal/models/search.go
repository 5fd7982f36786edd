package models

import "github.com/lib/pq"

// LawyerSearchResult is the public projection of a profile returned by search
// and by the non-semantic listing. Similarity is 0 for listing rows.
type LawyerSearchResult struct {
	ID                   string         `gorm:"column:id" json:"id"`
	FullName             string         `gorm:"column:full_name" json:"full_name"`
	Email                string         `gorm:"column:email" json:"email"`
	PhoneNumber          string         `gorm:"column:phone_number" json:"phone_number"`
	FirmName             string         `gorm:"column:firm_name" json:"firm_name"`
	PracticeAreas        pq.StringArray `gorm:"column:practice_areas" json:"practice_areas"`
	ExpertiseDescription string         `gorm:"column:expertise_description" json:"expertise_description"`
	ProfessionalBio      string         `gorm:"column:professional_bio" json:"professional_bio"`
	HourlyRate           float64        `gorm:"column:hourly_rate" json:"hourly_rate"`
	ConsultationFee      float64        `gorm:"column:consultation_fee" json:"consultation_fee"`
	FreeConsultation     bool           `gorm:"column:free_consultation" json:"free_consultation"`
	AvailabilityStatus   string         `gorm:"column:availability_status" json:"availability_status"`
	ResponseTime         string         `gorm:"column:response_time" json:"response_time"`
	Rating               float64        `gorm:"column:rating" json:"rating"`
	ReviewCount          int            `gorm:"column:review_count" json:"review_count"`
	ProfilePhotoURL      string         `gorm:"column:profile_photo_url" json:"profile_photo_url,omitempty"`
	Location             string         `gorm:"column:location" json:"location"`
	YearsExperience      int            `gorm:"column:years_experience" json:"years_experience"`
	LanguagesSpoken      pq.StringArray `gorm:"column:languages_spoken" json:"languages_spoken"`
	Similarity           float64        `gorm:"column:similarity" json:"similarity"`
}
