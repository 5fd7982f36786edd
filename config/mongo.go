package config

import (
	"context"
	"crypto/tls"
	"errors"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var MongoClient *mongo.Client

// ErrMongoDisabled is returned by InitMongo when MONGO_URI is unset.
// Index run reports are then only logged.
var ErrMongoDisabled = errors.New("MONGO_URI environment variable is not set")

// InitMongo initializes the MongoDB connection used for index run reports.
func InitMongo() error {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		return ErrMongoDisabled
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(uri).
		SetServerSelectionTimeout(20 * time.Second).
		SetConnectTimeout(15 * time.Second).
		SetMaxPoolSize(10).
		SetMinPoolSize(1)

	// Atlas over Go 1.24 TLS defaults
	if os.Getenv("MONGO_FORCE_TLS_CONFIG") == "true" || os.Getenv("GO_ENV") == "development" {
		clientOpts = clientOpts.SetTLSConfig(&tls.Config{
			InsecureSkipVerify: os.Getenv("MONGO_INSECURE_TLS") == "true",
			MinVersion:         tls.VersionTLS12,
			MaxVersion:         tls.VersionTLS12,
		})
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return err
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return err
	}

	MongoClient = client
	return nil
}

func MongoDatabaseName() string {
	if v := os.Getenv("MONGO_DB"); v != "" {
		return v
	}
	return "legalmatch"
}

func MongoDatabase() *mongo.Database {
	if MongoClient == nil {
		return nil
	}
	return MongoClient.Database(MongoDatabaseName())
}
