package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/legalmatch/internal/models"
	"github.com/yoockh/legalmatch/internal/storage"
)

// photoResolver swaps bucket object names for signed URLs. A signing failure
// drops the photo rather than the result.
type photoResolver struct {
	signer storage.Signer
	ttl    time.Duration
	log    logrus.FieldLogger
}

func newPhotoResolver(signer storage.Signer, ttl time.Duration, log logrus.FieldLogger) *photoResolver {
	return &photoResolver{signer: signer, ttl: ttl, log: log}
}

func (r *photoResolver) resolve(ctx context.Context, results []models.LawyerSearchResult) {
	for i := range results {
		ref := results[i].ProfilePhotoURL
		if !storage.IsObjectRef(ref) {
			continue
		}
		if r.signer == nil {
			results[i].ProfilePhotoURL = ""
			continue
		}
		url, err := r.signer.SignedGetURL(ctx, ref, r.ttl)
		if err != nil {
			r.log.WithError(err).WithField("profile_id", results[i].ID).Warn("photo url signing failed")
			url = ""
		}
		results[i].ProfilePhotoURL = url
	}
}
