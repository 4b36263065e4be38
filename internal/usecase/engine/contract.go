package engine

import (
	"context"

	"github.com/kailas-cloud/notedex/internal/domain"
)

// Repository defines the metadata storage contract for engines.
type Repository interface {
	SaveEngine(ctx context.Context, e domain.Engine) error
	GetEngine(ctx context.Context, engineID string) (domain.Engine, error)
	ListEngines(ctx context.Context) ([]domain.Engine, error)
	DeleteEngine(ctx context.Context, engineID string) (bool, error)
	OtherEnginesSharingDataStore(ctx context.Context, dataStoreID, excludeEngineID string) ([]string, error)
	ListDocumentURIs(ctx context.Context, engineID string) ([]string, error)
	CountDocuments(ctx context.Context, engineID string) (int, error)
	DeleteDocumentsForEngine(ctx context.Context, engineID string) (int, error)
}

// SearchPlane defines the remote engine and data store lifecycle contract.
type SearchPlane interface {
	EnsureDataStore(ctx context.Context, dataStoreID string) (created bool, err error)
	CreateEngine(ctx context.Context, engineID, dataStoreID, displayName string) (domain.RemoteEngine, error)
	GetEngine(ctx context.Context, engineID string) (domain.RemoteEngine, error)
	DeleteEngine(ctx context.Context, engineID string) error
	DeleteDataStore(ctx context.Context, dataStoreID string) error
}

// BlobStore defines the bucket provisioning and teardown contract.
type BlobStore interface {
	EnsureBucket(ctx context.Context, name string) error
	DeleteAll(ctx context.Context, uris []string) (failed []string)
}
