package searchclient

import (
	"context"

	"github.com/yoockh/legalmatch/internal/models"
	pgrepo "github.com/yoockh/legalmatch/internal/repositories/postgres"
	"github.com/yoockh/legalmatch/internal/services"
)

// Searcher runs one semantic search. services.SearchService satisfies it
// in-process; HTTPSearcher calls a remote endpoint.
type Searcher interface {
	Search(ctx context.Context, req services.SearchRequest) (*services.SearchResponse, error)
}

// Lister is the non-semantic listing used while AI search is off.
type Lister interface {
	List(ctx context.Context, query string, limit int) ([]models.LawyerSearchResult, error)
}

type Kind string

const (
	KindInfo  Kind = "info"
	KindError Kind = "error"
)

// Notifier surfaces user-facing messages. The client never renders.
type Notifier interface {
	Notify(message string, kind Kind)
}

type NotifierFunc func(message string, kind Kind)

func (f NotifierFunc) Notify(message string, kind Kind) { f(message, kind) }

// ProfileLister adapts the profile service listing to Lister.
type ProfileLister struct {
	Profiles services.ProfileService
}

func (l ProfileLister) List(ctx context.Context, query string, limit int) ([]models.LawyerSearchResult, error) {
	return l.Profiles.List(ctx, pgrepo.ListFilter{Text: query, Limit: limit})
}
