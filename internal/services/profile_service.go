package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/legalmatch/internal/models"
	pgrepo "github.com/yoockh/legalmatch/internal/repositories/postgres"
	"github.com/yoockh/legalmatch/internal/storage"
	"github.com/yoockh/legalmatch/internal/utils"
)

const (
	maxSearchableFieldLen = 8000
	maxPracticeAreas      = 20
	defaultListLimit      = 20
	maxListLimit          = 50
)

// IndexTrigger asks the index worker for a pass.
type IndexTrigger interface {
	Enqueue(ctx context.Context, reason, profileID string) error
}

type ProfileService interface {
	GetMe(ctx context.Context, userID string) (*models.LawyerProfile, error)
	UpdateSearchable(ctx context.Context, userID string, f models.SearchableFields) (*models.LawyerProfile, error)
	List(ctx context.Context, f pgrepo.ListFilter) ([]models.LawyerSearchResult, error)
}

type profileService struct {
	profiles pgrepo.ProfileRepository
	trigger  IndexTrigger // optional
	photos   *photoResolver
	log      logrus.FieldLogger
}

func NewProfileService(profiles pgrepo.ProfileRepository, trigger IndexTrigger, signer storage.Signer, cfg SearchConfig, log logrus.FieldLogger) ProfileService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &profileService{
		profiles: profiles,
		trigger:  trigger,
		photos:   newPhotoResolver(signer, cfg.PhotoURLTTL, log),
		log:      log,
	}
}

func (s *profileService) GetMe(ctx context.Context, userID string) (*models.LawyerProfile, error) {
	const op = "ProfileService.GetMe"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}

	p, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "profile not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get profile", err)
	}
	return p, nil
}

// UpdateSearchable edits the text an embedding is derived from. The stored
// vector is cleared with the edit and a reindex is requested.
func (s *profileService) UpdateSearchable(ctx context.Context, userID string, f models.SearchableFields) (*models.LawyerProfile, error) {
	const op = "ProfileService.UpdateSearchable"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	if f.Empty() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "at least one searchable field is required", nil)
	}
	if f.PracticeAreas != nil {
		areas := cleanAreas(*f.PracticeAreas)
		if len(areas) > maxPracticeAreas {
			return nil, utils.E(utils.CodeInvalidArgument, op, "too many practice areas", nil)
		}
		f.PracticeAreas = &areas
	}
	for _, v := range []*string{f.ExpertiseDescription, f.ProfessionalBio} {
		if v != nil && utf8.RuneCountInString(*v) > maxSearchableFieldLen {
			return nil, utils.E(utils.CodeInvalidArgument, op, "text field is too long", nil)
		}
	}

	p, err := s.profiles.UpdateSearchableFields(ctx, userID, f)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "profile not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to update profile", err)
	}

	if s.trigger != nil {
		if err := s.trigger.Enqueue(ctx, "profile_updated", p.ID); err != nil {
			// the periodic pass still picks the profile up
			s.log.WithError(err).WithField("profile_id", p.ID).Warn("index request not queued")
		}
	}
	return p, nil
}

func (s *profileService) List(ctx context.Context, f pgrepo.ListFilter) ([]models.LawyerSearchResult, error) {
	const op = "ProfileService.List"

	switch {
	case f.Limit <= 0:
		f.Limit = defaultListLimit
	case f.Limit > maxListLimit:
		f.Limit = maxListLimit
	}

	out, err := s.profiles.List(ctx, f)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list lawyers", err)
	}
	s.photos.resolve(ctx, out)
	return out, nil
}

func cleanAreas(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, a := range in {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		k := strings.ToLower(a)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, a)
	}
	return out
}
