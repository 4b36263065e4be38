// Package ingest orchestrates the asynchronous document ingestion workflow:
// accept a file, track it as a task, upload the blob, trigger remote
// indexing, and persist the document record.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/notedex/internal/domain"
	"github.com/kailas-cloud/notedex/internal/metrics"
)

// Service drives document ingestion, listing and deletion.
type Service struct {
	repo    Repository
	blobs   BlobStore
	indexer Indexer
	logger  *zap.Logger

	// spawn dispatches the background workflow. Tests replace it with a
	// synchronous call.
	spawn func(fn func())
}

// New creates an ingestion service.
func New(repo Repository, blobs BlobStore, indexer Indexer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		blobs:   blobs,
		indexer: indexer,
		logger:  logger,
		spawn:   func(fn func()) { go fn() },
	}
}

// WithSpawn replaces the background dispatcher.
func (s *Service) WithSpawn(spawn func(fn func())) *Service {
	s.spawn = spawn
	return s
}

// Upload is one accepted file.
type Upload struct {
	EngineID    string
	DataStoreID string // optional override; resolved from the engine record when empty
	Filename    string
	ContentType string
	Content     []byte
}

// Accept records a pending task for the file and dispatches the ingestion
// workflow in the background. The task exists before any validation runs, so
// a rejected file still leaves an auditable failed task.
func (s *Service) Accept(ctx context.Context, up Upload) (domain.Task, error) {
	task := domain.NewTask(up.Filename)
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return domain.Task{}, fmt.Errorf("create task: %w", err)
	}

	s.spawn(func() {
		// The workflow outlives the accepting request.
		s.run(context.Background(), task, up)
	})
	return task, nil
}

// run executes the ingestion workflow for one accepted file. Every failure
// path terminates the task as failed; there is no rollback of remote work
// already done.
func (s *Service) run(ctx context.Context, task domain.Task, up Upload) {
	start := time.Now()
	logger := s.logger.With(
		zap.String("task_id", task.TaskID),
		zap.String("engine_id", up.EngineID),
		zap.String("filename", up.Filename),
	)

	// interimResult carries the document id once it is known, so a late
	// failure keeps the only handle to the orphaned remote document.
	interimResult := ""
	fail := func(err error) {
		logger.Error("ingestion failed", zap.Error(err))
		metrics.IngestTasksTotal.WithLabelValues(string(domain.TaskFailed)).Inc()
		metrics.IngestTaskDuration.WithLabelValues(string(domain.TaskFailed)).Observe(time.Since(start).Seconds())
		if uerr := s.repo.UpdateTaskStatus(ctx, task.TaskID, domain.TaskFailed, interimResult, err.Error()); uerr != nil {
			logger.Error("failed to mark task failed", zap.Error(uerr))
		}
	}

	if !domain.SupportedFileType(up.Filename) {
		fail(fmt.Errorf("%w: %s (supported: %s)",
			domain.ErrUnsupportedFileType, up.Filename,
			strings.Join(domain.SupportedExtensions(), ", ")))
		return
	}

	dataStoreID := up.DataStoreID
	if dataStoreID == "" {
		record, err := s.repo.GetEngine(ctx, up.EngineID)
		if err != nil {
			fail(fmt.Errorf("resolve engine: %w", err))
			return
		}
		dataStoreID = record.DataStoreID
	}

	// The bucket was provisioned with the engine; its absence is a
	// configuration error, not something ingestion creates on the fly.
	bucket := domain.BucketName(up.EngineID, dataStoreID)
	if err := s.blobs.LocateBucket(ctx, bucket); err != nil {
		fail(fmt.Errorf("locate bucket %s: %w", bucket, err))
		return
	}

	if len(up.Content) == 0 {
		fail(fmt.Errorf("%w: %s", domain.ErrEmptyFile, up.Filename))
		return
	}

	uri, err := s.blobs.Upload(ctx, bucket, up.Content, up.Filename, up.ContentType)
	if err != nil {
		fail(fmt.Errorf("upload: %w", err))
		return
	}
	documentID := domain.ComputeDocumentID(uri)
	interimResult = documentID

	if err := s.repo.UpdateTaskStatus(ctx, task.TaskID, domain.TaskProcessing, documentID, ""); err != nil {
		logger.Warn("failed to mark task processing", zap.Error(err))
	}

	result, err := s.indexer.ImportDocument(ctx, dataStoreID, uri)
	if err != nil {
		fail(fmt.Errorf("import: %w", err))
		return
	}

	doc := domain.Document{
		DocumentID:  documentID,
		EngineID:    up.EngineID,
		DataStoreID: dataStoreID,
		Filename:    up.Filename,
		BlobURI:     uri,
		FileSize:    int64(len(up.Content)),
		ContentType: up.ContentType,
		UploadedAt:  time.Now().UTC(),
	}
	if err := s.repo.SaveDocument(ctx, doc); err != nil {
		// The document exists remotely but is untracked locally. This
		// inconsistency window is accepted, not auto-repaired.
		fail(fmt.Errorf("persist document %s: %w", documentID, err))
		return
	}

	summary := fmt.Sprintf("Document %s imported (%d succeeded, %d failed)",
		documentID, result.SuccessCount, result.FailureCount)
	if err := s.repo.UpdateTaskStatus(ctx, task.TaskID, domain.TaskCompleted, summary, ""); err != nil {
		logger.Error("failed to mark task completed", zap.Error(err))
		return
	}

	metrics.IngestTasksTotal.WithLabelValues(string(domain.TaskCompleted)).Inc()
	metrics.IngestTaskDuration.WithLabelValues(string(domain.TaskCompleted)).Observe(time.Since(start).Seconds())
	logger.Info("ingestion complete",
		zap.String("document_id", documentID),
		zap.Int64("file_size", doc.FileSize),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// Get returns one document record.
func (s *Service) Get(ctx context.Context, engineID, documentID string) (domain.Document, error) {
	doc, err := s.repo.GetDocument(ctx, engineID, documentID)
	if err != nil {
		return domain.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// List returns a page of document records. Sort values outside the whitelist
// fall back to the default inside the repository.
func (s *Service) List(ctx context.Context, engineID string, limit, offset int, sortBy, sortOrder string) ([]domain.Document, error) {
	docs, err := s.repo.ListDocuments(ctx, engineID, limit, offset, sortBy, sortOrder)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// DeleteResult reports each of the three independent deletions. The metadata
// outcome is the authoritative one.
type DeleteResult struct {
	IndexDeleted    bool `json:"index_deleted"`
	BlobDeleted     bool `json:"gcs_deleted"`
	DatabaseDeleted bool `json:"database_deleted"`
}

// Delete removes a document from the index, the blob store and the metadata
// store. The three deletions are independent; one failing does not block the
// others.
func (s *Service) Delete(ctx context.Context, engineID, documentID string) (DeleteResult, error) {
	doc, err := s.repo.GetDocument(ctx, engineID, documentID)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("get document: %w", err)
	}

	var result DeleteResult

	if err := s.indexer.DeleteDocument(ctx, doc.DataStoreID, documentID); err != nil {
		s.logger.Warn("index entry deletion failed",
			zap.String("document_id", documentID), zap.Error(err))
	} else {
		result.IndexDeleted = true
	}

	if err := s.blobs.Delete(ctx, doc.BlobURI); err != nil {
		s.logger.Warn("blob deletion failed",
			zap.String("uri", doc.BlobURI), zap.Error(err))
	} else {
		result.BlobDeleted = true
	}

	deleted, err := s.repo.DeleteDocument(ctx, engineID, documentID)
	if err != nil {
		s.logger.Error("document record deletion failed",
			zap.String("document_id", documentID), zap.Error(err))
	}
	result.DatabaseDeleted = deleted

	return result, nil
}
