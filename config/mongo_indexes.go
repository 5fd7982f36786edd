package config

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureMongoIndexes() error {
	db := MongoDatabase()
	if db == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runs := db.Collection("index_runs")
	_, err := runs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "run_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_run_id").
				SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "started_at", Value: -1}},
			Options: options.Index().SetName("by_started"),
		},
		// reports are diagnostics; keep 90 days
		{
			Keys: bson.D{{Key: "finished_at", Value: 1}},
			Options: options.Index().
				SetName("ttl_finished_at").
				SetExpireAfterSeconds(90 * 24 * 3600),
		},
	})
	return err
}
