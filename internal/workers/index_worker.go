package workers

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/legalmatch/internal/services"
)

// IndexWorker runs indexer passes when index requests arrive on a Redis
// stream and on a fixed interval. Requests that arrive while a pass is running
// collapse into one follow-up pass.
type IndexWorker struct {
	Redis   redis.Cmdable // nil: interval only
	Indexer services.IndexerService
	Logger  logrus.FieldLogger

	Stream   string
	Group    string
	Consumer string
	Interval time.Duration // <= 0 disables the ticker

	kick chan string
}

func (w *IndexWorker) Start(ctx context.Context) error {
	if w.Indexer == nil {
		return errors.New("IndexWorker missing dependency: Indexer must be set")
	}
	if w.Stream == "" {
		w.Stream = "index:requests"
	}
	if w.Group == "" {
		w.Group = "indexers"
	}
	if w.Consumer == "" {
		host, _ := os.Hostname()
		w.Consumer = "indexer-" + host
	}
	if w.Logger == nil {
		w.Logger = logrus.StandardLogger()
	}
	w.kick = make(chan string, 1)

	if w.Redis != nil {
		_ = w.Redis.XGroupCreateMkStream(ctx, w.Stream, w.Group, "0").Err() // ignore BUSYGROUP
		go w.consume(ctx)
	}
	if w.Interval > 0 {
		go w.tick(ctx)
	}
	go w.loop(ctx)
	return nil
}

// Kick asks for a pass. It never blocks; a pending request absorbs new ones.
func (w *IndexWorker) Kick(trigger string) {
	select {
	case w.kick <- trigger:
	default:
	}
}

func (w *IndexWorker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case trigger := <-w.kick:
			run, err := w.Indexer.Run(ctx, trigger)
			if err != nil {
				w.Logger.WithError(err).WithField("trigger", trigger).Error("index pass failed")
				continue
			}
			if len(run.FailedIDs()) > 0 {
				w.Logger.WithFields(logrus.Fields{
					"run_id": run.RunID,
					"failed": run.FailedIDs(),
				}).Warn("index pass left profiles without embeddings")
			}
		}
	}
}

func (w *IndexWorker) tick(ctx context.Context) {
	t := time.NewTicker(w.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.Kick(services.TriggerSchedule)
		}
	}
}

func (w *IndexWorker) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := w.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.Group,
			Consumer: w.Consumer,
			Streams:  []string{w.Stream, ">"},
			Count:    100,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			w.Logger.WithError(err).Warn("index stream read failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		var ids []string
		for _, stream := range res {
			for _, msg := range stream.Messages {
				w.Logger.WithFields(logrus.Fields{
					"redis_id":   msg.ID,
					"reason":     str(msg.Values, "reason"),
					"profile_id": str(msg.Values, "profile_id"),
				}).Debug("index request received")
				ids = append(ids, msg.ID)
			}
		}
		if len(ids) == 0 {
			continue
		}
		// a pass reads every profile lacking a vector, so acking before it runs loses nothing
		_ = w.Redis.XAck(ctx, w.Stream, w.Group, ids...).Err()
		w.Kick(services.TriggerStream)
	}
}

func str(values map[string]any, key string) string {
	v, ok := values[key]
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// RedisIndexTrigger publishes index requests to the worker stream.
type RedisIndexTrigger struct {
	Redis  redis.Cmdable
	Stream string
}

func (t *RedisIndexTrigger) Enqueue(ctx context.Context, reason, profileID string) error {
	stream := t.Stream
	if stream == "" {
		stream = "index:requests"
	}
	return t.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]any{
			"reason":       reason,
			"profile_id":   profileID,
			"requested_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
}
