package storage

import (
	"context"
	"strings"
	"time"
)

type Signer interface {
	SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error)
}

// IsObjectRef reports whether a stored photo reference is a bucket object name
// rather than an absolute URL that can be served as is.
func IsObjectRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false
	}
	return !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://")
}
