package ingest

import (
	"context"

	"github.com/kailas-cloud/notedex/internal/domain"
)

// Repository defines the metadata storage contract for ingestion.
type Repository interface {
	GetEngine(ctx context.Context, engineID string) (domain.Engine, error)
	SaveDocument(ctx context.Context, d domain.Document) error
	GetDocument(ctx context.Context, engineID, documentID string) (domain.Document, error)
	ListDocuments(ctx context.Context, engineID string, limit, offset int, sortBy, sortOrder string) ([]domain.Document, error)
	DeleteDocument(ctx context.Context, engineID, documentID string) (bool, error)
	CreateTask(ctx context.Context, t domain.Task) error
	UpdateTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus, result, errorMessage string) error
}

// BlobStore defines the object storage contract for ingestion.
type BlobStore interface {
	LocateBucket(ctx context.Context, name string) error
	Upload(ctx context.Context, bucket string, content []byte, filename, contentType string) (uri string, err error)
	Delete(ctx context.Context, uri string) error
}

// Indexer defines the remote indexing contract.
type Indexer interface {
	ImportDocument(ctx context.Context, dataStoreID, blobURI string) (domain.ImportResult, error)
	DeleteDocument(ctx context.Context, dataStoreID, documentID string) error
}
