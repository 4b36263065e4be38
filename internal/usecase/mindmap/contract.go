package mindmap

import (
	"context"

	"github.com/kailas-cloud/notedex/internal/domain"
)

// Repository defines the metadata reads mind map synthesis needs.
type Repository interface {
	GetEngine(ctx context.Context, engineID string) (domain.Engine, error)
	CountDocuments(ctx context.Context, engineID string) (int, error)
}

// ExcerptSource retrieves representative content from the indexed documents.
type ExcerptSource interface {
	FetchExcerpts(ctx context.Context, engineID string, pageSize int64) ([]domain.DocumentExcerpt, error)
}

// Generator turns document excerpts into a mind map tree.
type Generator interface {
	Generate(ctx context.Context, excerpts []domain.DocumentExcerpt) (domain.MindMapTree, error)
}
