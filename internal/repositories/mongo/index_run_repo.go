package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/legalmatch/internal/models"
	"github.com/yoockh/legalmatch/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const IndexRunsCollection = "index_runs"

type IndexRunRepository interface {
	Insert(ctx context.Context, run *models.IndexRun) error
	GetByRunID(ctx context.Context, runID string) (*models.IndexRun, error)
	ListRecent(ctx context.Context, limit int64) ([]models.IndexRun, error)
}

type indexRunRepo struct {
	col *mongo.Collection
}

func NewIndexRunRepo(db *mongo.Database) IndexRunRepository {
	return &indexRunRepo{col: db.Collection(IndexRunsCollection)}
}

func (r *indexRunRepo) Insert(ctx context.Context, run *models.IndexRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, run)
	return err
}

func (r *indexRunRepo) GetByRunID(ctx context.Context, runID string) (*models.IndexRun, error) {
	var run models.IndexRun
	err := r.col.FindOne(ctx, bson.M{"run_id": runID}).Decode(&run)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRecent returns run summaries newest first. Per-item results are left out.
func (r *indexRunRepo) ListRecent(ctx context.Context, limit int64) ([]models.IndexRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(limit).
		SetProjection(bson.M{"items": 0})

	cur, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.IndexRun{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
