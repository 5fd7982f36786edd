package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type IndexItemStatus string

const (
	IndexItemSuccess IndexItemStatus = "success"
	IndexItemError   IndexItemStatus = "error"
	IndexItemSkipped IndexItemStatus = "skipped"
)

// IndexItemResult is the outcome for one profile in an indexer pass.
type IndexItemResult struct {
	ID         string          `bson:"id" json:"id"`
	Status     IndexItemStatus `bson:"status" json:"status"`
	TextLength int             `bson:"text_length,omitempty" json:"textLength,omitempty"`
	Error      string          `bson:"error,omitempty" json:"error,omitempty"`
}

// IndexRun is the summary report of one indexer pass.
type IndexRun struct {
	ObjectID primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	RunID    string             `bson:"run_id" json:"run_id"`
	Trigger  string             `bson:"trigger" json:"trigger"` // manual|stream|schedule|cli
	Model    string             `bson:"model" json:"model"`

	Scanned   int `bson:"scanned" json:"scanned"`
	Succeeded int `bson:"succeeded" json:"succeeded"`
	Failed    int `bson:"failed" json:"failed"`
	Skipped   int `bson:"skipped" json:"skipped"`

	Items []IndexItemResult `bson:"items" json:"results"`

	StartedAt  time.Time `bson:"started_at" json:"started_at"`
	FinishedAt time.Time `bson:"finished_at" json:"finished_at"`
}

// NothingToDo reports whether the pass found no profile lacking an embedding.
func (r *IndexRun) NothingToDo() bool { return r.Scanned == 0 }

// Message is the one-line outcome returned to the caller that triggered the pass.
func (r *IndexRun) Message() string {
	if r.NothingToDo() {
		return "No lawyers need embedding generation"
	}
	return fmt.Sprintf("Processed %d lawyers", r.Scanned)
}

// FailedIDs lists the profiles that still need attention after the pass.
func (r *IndexRun) FailedIDs() []string {
	var ids []string
	for _, it := range r.Items {
		if it.Status == IndexItemError {
			ids = append(ids, it.ID)
		}
	}
	return ids
}
