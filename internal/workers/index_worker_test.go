package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/legalmatch/internal/models"
	"github.com/yoockh/legalmatch/internal/services"
)

type recordingIndexer struct {
	mu       sync.Mutex
	triggers []string
	block    chan struct{}
}

func (r *recordingIndexer) Run(_ context.Context, trigger string) (*models.IndexRun, error) {
	r.mu.Lock()
	r.triggers = append(r.triggers, trigger)
	block := r.block
	r.mu.Unlock()
	if block != nil {
		<-block
	}
	return &models.IndexRun{RunID: "r", Trigger: trigger}, nil
}

func (r *recordingIndexer) Status(context.Context) (*services.IndexStatus, error) { return nil, nil }

func (r *recordingIndexer) Runs(context.Context, int64) ([]models.IndexRun, error) { return nil, nil }

func (r *recordingIndexer) Close() {}

func (r *recordingIndexer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.triggers)
}

func TestIndexWorker_IntervalRuns(t *testing.T) {
	idx := &recordingIndexer{}
	log, _ := test.NewNullLogger()
	w := &IndexWorker{Indexer: idx, Logger: log, Interval: 10 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.Eventually(t, func() bool { return idx.count() >= 2 }, time.Second, 5*time.Millisecond)
	idx.mu.Lock()
	assert.Equal(t, services.TriggerSchedule, idx.triggers[0])
	idx.mu.Unlock()
}

func TestIndexWorker_KicksCoalesceWhileRunning(t *testing.T) {
	idx := &recordingIndexer{block: make(chan struct{})}
	w := &IndexWorker{Indexer: idx}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	w.Kick(services.TriggerStream)
	require.Eventually(t, func() bool { return idx.count() == 1 }, time.Second, time.Millisecond)

	// pass one is blocked; these collapse into a single follow-up
	for i := 0; i < 5; i++ {
		w.Kick(services.TriggerStream)
	}
	close(idx.block)

	require.Eventually(t, func() bool { return idx.count() == 2 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, idx.count())
}

func TestIndexWorker_RequiresIndexer(t *testing.T) {
	assert.Error(t, (&IndexWorker{}).Start(context.Background()))
}
