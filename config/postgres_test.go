package config

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestEnsurePostgresSchema_BackfillsUpdatedAt(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	prev := PostgresDB
	PostgresDB = db
	t.Cleanup(func() { PostgresDB = prev })

	for _, stmt := range []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`ADD COLUMN IF NOT EXISTS search_embedding vector(384)`,
		`ADD COLUMN IF NOT EXISTS embedding_model text`,
		`ADD COLUMN IF NOT EXISTS embedded_at timestamptz`,
		`ADD COLUMN IF NOT EXISTS updated_at timestamptz NOT NULL DEFAULT now()`,
		`UPDATE lawyer_profiles SET updated_at = now() WHERE updated_at IS NULL`,
		`ALTER COLUMN updated_at SET DEFAULT now()`,
		`ALTER COLUMN updated_at SET NOT NULL`,
		`CREATE INDEX IF NOT EXISTS lawyer_profiles_search_embedding_hnsw`,
		`CREATE INDEX IF NOT EXISTS lawyer_profiles_missing_embedding`,
	} {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, EnsurePostgresSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsurePostgresSchema_NoDB(t *testing.T) {
	prev := PostgresDB
	PostgresDB = nil
	t.Cleanup(func() { PostgresDB = prev })

	assert.Error(t, EnsurePostgresSchema(context.Background()))
}
