package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	readErr error
}

func newMemoryCache() *memoryCache { return &memoryCache{data: map[string][]byte{}} }

func (m *memoryCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return false, m.readErr
	}
	b, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (m *memoryCache) SetJSON(_ context.Context, key string, val any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	m.data[key] = b
	return nil
}

func (m *memoryCache) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type countingProvider struct {
	opts  Options
	vec   []float32
	err   error
	calls int
}

func (c *countingProvider) Options() Options { return c.opts }

func (c *countingProvider) Embed(context.Context, string) ([]float32, error) {
	c.calls++
	return c.vec, c.err
}

func TestCachedProvider_HitAfterMiss(t *testing.T) {
	inner := &countingProvider{opts: Options{Model: "gte-small", Dimensions: 2}, vec: []float32{0.6, 0.8}}
	p := NewCachedProvider(inner, newMemoryCache(), time.Hour, nil)

	first, err := p.Embed(context.Background(), "divorce lawyer")
	require.NoError(t, err)
	second, err := p.Embed(context.Background(), "divorce lawyer")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	_, err = p.Embed(context.Background(), "patent lawyer")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedProvider_KeyIncludesFingerprint(t *testing.T) {
	a := NewCachedProvider(&countingProvider{opts: Options{Model: "gte-small", Dimensions: 2}}, newMemoryCache(), 0, nil)
	b := NewCachedProvider(&countingProvider{opts: Options{Model: "gte-base", Dimensions: 2}}, newMemoryCache(), 0, nil)
	assert.NotEqual(t, a.key("same text"), b.key("same text"))
}

func TestCachedProvider_ErrorsAreNotCached(t *testing.T) {
	inner := &countingProvider{opts: Options{Model: "gte-small", Dimensions: 2}, err: errors.New("quota")}
	mc := newMemoryCache()
	p := NewCachedProvider(inner, mc, time.Hour, nil)

	_, err := p.Embed(context.Background(), "tax")
	require.Error(t, err)
	assert.Empty(t, mc.data)
}

func TestCachedProvider_ReadFailureFallsThrough(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.WarnLevel)

	mc := newMemoryCache()
	mc.readErr = errors.New("redis down")
	inner := &countingProvider{opts: Options{Model: "gte-small", Dimensions: 2}, vec: []float32{1, 0}}
	p := NewCachedProvider(inner, mc, time.Hour, log)

	vec, err := p.Embed(context.Background(), "immigration")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
	assert.Equal(t, 1, inner.calls)
	require.NotEmpty(t, hook.AllEntries())
	assert.Equal(t, "embedding cache read failed", hook.AllEntries()[0].Message)
}
