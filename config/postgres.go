package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/yoockh/legalmatch/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var PostgresDB *gorm.DB

func InitPostgres() error {
	uri := os.Getenv("POSTGRES_URI")
	if uri == "" {
		return errors.New("POSTGRES_URI environment variable is not set")
	}
	db, err := gorm.Open(postgres.Open(uri), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	// Connection Pooling settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	PostgresDB = db
	return nil
}

// EnsurePostgresSchema adds the search columns and the ANN index to an
// existing lawyer_profiles table. Every statement is idempotent.
func EnsurePostgresSchema(ctx context.Context) error {
	if PostgresDB == nil {
		return errors.New("PostgresDB is nil; call InitPostgres() first")
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`ALTER TABLE lawyer_profiles ADD COLUMN IF NOT EXISTS search_embedding vector(%d)`, models.EmbeddingDimensions),
		`ALTER TABLE lawyer_profiles ADD COLUMN IF NOT EXISTS embedding_model text`,
		`ALTER TABLE lawyer_profiles ADD COLUMN IF NOT EXISTS embedded_at timestamptz`,
		// the indexer guards its write on updated_at
		`ALTER TABLE lawyer_profiles ADD COLUMN IF NOT EXISTS updated_at timestamptz NOT NULL DEFAULT now()`,
		`UPDATE lawyer_profiles SET updated_at = now() WHERE updated_at IS NULL`,
		`ALTER TABLE lawyer_profiles ALTER COLUMN updated_at SET DEFAULT now()`,
		`ALTER TABLE lawyer_profiles ALTER COLUMN updated_at SET NOT NULL`,
		`CREATE INDEX IF NOT EXISTS lawyer_profiles_search_embedding_hnsw
			ON lawyer_profiles USING hnsw (search_embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS lawyer_profiles_missing_embedding
			ON lawyer_profiles (id) WHERE search_embedding IS NULL`,
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	db := PostgresDB.WithContext(ctx)
	for _, s := range stmts {
		if err := db.Exec(s).Error; err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}
