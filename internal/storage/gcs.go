package storage

import (
	"context"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
)

// GCSSigner issues V4 signed GET URLs for profile photos kept in a private bucket.
type GCSSigner struct {
	client *gcs.Client
	bucket string
}

func NewGCSSigner(ctx context.Context, bucket string) (*GCSSigner, error) {
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSSigner{client: c, bucket: bucket}, nil
}

func (s *GCSSigner) Close() error { return s.client.Close() }

func (s *GCSSigner) SignedGetURL(_ context.Context, objectName string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return s.client.Bucket(s.bucket).SignedURL(strings.TrimPrefix(objectName, "/"), &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
}
