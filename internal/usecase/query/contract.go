package query

import (
	"context"

	"github.com/kailas-cloud/notedex/internal/domain"
)

// Repository defines the metadata reads the query path needs.
type Repository interface {
	GetEngine(ctx context.Context, engineID string) (domain.Engine, error)
}

// Searcher defines the conversational search contract.
type Searcher interface {
	Search(ctx context.Context, engineID, query string) (domain.QueryAnswer, error)
}
