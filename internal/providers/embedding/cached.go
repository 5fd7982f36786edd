package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/legalmatch/internal/cache"
	"github.com/yoockh/legalmatch/internal/metrics"
)

const cacheKeyPrefix = "emb:"

// CachedProvider memoizes embeddings keyed by fingerprint and text.
// Cache failures degrade to a direct model call.
type CachedProvider struct {
	inner Provider
	cache cache.Cache
	ttl   time.Duration
	log   logrus.FieldLogger
}

func NewCachedProvider(inner Provider, c cache.Cache, ttl time.Duration, log logrus.FieldLogger) *CachedProvider {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CachedProvider{inner: inner, cache: c, ttl: ttl, log: log}
}

func (p *CachedProvider) Options() Options { return p.inner.Options() }

func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := p.key(text)

	var vec []float32
	hit, err := p.cache.GetJSON(ctx, key, &vec)
	if err != nil {
		p.log.WithError(err).Warn("embedding cache read failed")
	}
	if hit && Validate(vec, p.inner.Options().Dimensions) == nil {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return vec, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	vec, err = p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := p.cache.SetJSON(ctx, key, vec, p.ttl); err != nil {
		p.log.WithError(err).Warn("embedding cache write failed")
	}
	return vec, nil
}

func (p *CachedProvider) key(text string) string {
	h := sha256.Sum256([]byte(p.inner.Options().Fingerprint() + "\x00" + text))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}
