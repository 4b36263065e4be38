// Package engine orchestrates engine provisioning and teardown across the
// search plane, the blob store and the metadata store.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/notedex/internal/domain"
)

// maxWarnedURIs bounds how many ids or URIs a single warning names.
const maxWarnedURIs = 5

// sampleIDs caps a warning list at maxWarnedURIs entries.
func sampleIDs(ids []string) []string {
	if len(ids) > maxWarnedURIs {
		return ids[:maxWarnedURIs]
	}
	return ids
}

// Service drives the engine lifecycle.
type Service struct {
	repo   Repository
	search SearchPlane
	blobs  BlobStore
	logger *zap.Logger
}

// New creates an engine lifecycle service.
func New(repo Repository, search SearchPlane, blobs BlobStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, search: search, blobs: blobs, logger: logger}
}

// Created describes a freshly provisioned engine. Warning is set when an
// optional provisioning step degraded.
type Created struct {
	EngineID     string `json:"engine_id"`
	EngineName   string `json:"engine_name"`
	DataStoreID  string `json:"data_store_id"`
	SolutionType string `json:"solution_type"`
	Message      string `json:"message"`
	Warning      string `json:"warning,omitempty"`
}

// Create provisions a data store, an engine bound to it, and a per-engine
// bucket, then persists the metadata record. A data store failure aborts the
// whole request before any engine or bucket exists. A bucket failure only
// degrades to a warning: the remote engine and data store already exist at
// that point and must stay addressable through the local record.
func (s *Service) Create(ctx context.Context, engineName string) (Created, error) {
	engineID := domain.NewEngineID(engineName)
	dataStoreID := domain.NewDataStoreID()

	if _, err := s.search.EnsureDataStore(ctx, dataStoreID); err != nil {
		return Created{}, fmt.Errorf("ensure data store: %w", err)
	}

	remote, err := s.search.CreateEngine(ctx, engineID, dataStoreID, engineName)
	if err != nil {
		return Created{}, fmt.Errorf("create engine: %w", err)
	}

	var warning string
	bucket := domain.BucketName(engineID, dataStoreID)
	if err := s.blobs.EnsureBucket(ctx, bucket); err != nil {
		warning = fmt.Sprintf("bucket %s not provisioned: %v", bucket, err)
		s.logger.Warn("bucket provisioning degraded",
			zap.String("engine_id", engineID),
			zap.String("bucket", bucket),
			zap.Error(err),
		)
	}

	displayName := remote.DisplayName
	if displayName == "" {
		displayName = engineName
	}
	record := domain.Engine{
		EngineID:    engineID,
		EngineName:  displayName,
		DataStoreID: dataStoreID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.SaveEngine(ctx, record); err != nil {
		return Created{}, fmt.Errorf("persist engine %s: %w", engineID, err)
	}

	s.logger.Info("engine provisioned",
		zap.String("engine_id", engineID),
		zap.String("data_store_id", dataStoreID),
		zap.String("bucket", bucket),
	)
	return Created{
		EngineID:     engineID,
		EngineName:   displayName,
		DataStoreID:  dataStoreID,
		SolutionType: remote.SolutionType,
		Message:      fmt.Sprintf("Engine %s created successfully", engineID),
		Warning:      warning,
	}, nil
}

// Detail is an engine record enriched with remote-confirmed state. Warning is
// set when the remote lookup failed but the local record exists.
type Detail struct {
	Engine        domain.Engine
	Remote        *domain.RemoteEngine
	DocumentCount int
	Warning       string
}

// Get returns the local record plus remote detail. A remote failure degrades
// to a warning rather than failing the lookup.
func (s *Service) Get(ctx context.Context, engineID string) (Detail, error) {
	record, err := s.repo.GetEngine(ctx, engineID)
	if err != nil {
		return Detail{}, fmt.Errorf("get engine: %w", err)
	}

	detail := Detail{Engine: record}

	if count, err := s.repo.CountDocuments(ctx, engineID); err == nil {
		detail.DocumentCount = count
	}

	remote, err := s.search.GetEngine(ctx, engineID)
	if err != nil {
		detail.Warning = fmt.Sprintf("remote engine state unavailable: %v", err)
		s.logger.Warn("remote engine lookup failed",
			zap.String("engine_id", engineID), zap.Error(err))
		return detail, nil
	}
	detail.Remote = &remote
	return detail, nil
}

// List returns all engine records.
func (s *Service) List(ctx context.Context) ([]domain.Engine, error) {
	engines, err := s.repo.ListEngines(ctx)
	if err != nil {
		return nil, fmt.Errorf("list engines: %w", err)
	}
	return engines, nil
}

// DeleteOptions controls which shared resources the deletion touches.
type DeleteOptions struct {
	DeleteDataStore bool
	DeleteBlobFiles bool
}

// DeleteResult aggregates the per-step outcomes of an engine deletion.
type DeleteResult struct {
	EngineDeleted    bool     `json:"engine_deleted"`
	DataStoreDeleted bool     `json:"data_store_deleted"`
	BlobsDeleted     bool     `json:"gcs_files_deleted"`
	MetadataDeleted  bool     `json:"metadata_deleted"`
	Warnings         []string `json:"warnings,omitempty"`
}

// Delete tears an engine down in a fixed order. Only the metadata lookup and
// a non-not-found remote engine delete are fatal; every other step downgrades
// its failure to a warning and the sequence continues.
func (s *Service) Delete(ctx context.Context, engineID string, opts DeleteOptions) (DeleteResult, error) {
	record, err := s.repo.GetEngine(ctx, engineID)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("get engine: %w", err)
	}

	var result DeleteResult
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		result.Warnings = append(result.Warnings, msg)
		s.logger.Warn("engine deletion step degraded",
			zap.String("engine_id", engineID), zap.String("warning", msg))
	}

	if err := s.search.DeleteEngine(ctx, engineID); err != nil {
		return DeleteResult{}, fmt.Errorf("delete remote engine: %w", err)
	}
	result.EngineDeleted = true

	if opts.DeleteBlobFiles {
		result.BlobsDeleted = s.deleteBlobs(ctx, record, warn)
	}

	if opts.DeleteDataStore {
		// Shared usage is re-checked here independently of the blob step.
		sharers, err := s.repo.OtherEnginesSharingDataStore(ctx, record.DataStoreID, engineID)
		switch {
		case err != nil:
			warn("shared data store check failed: %v", err)
		case len(sharers) > 0:
			warn("data store %s still used by %d other engine(s) %v, skipping deletion",
				record.DataStoreID, len(sharers), sampleIDs(sharers))
		default:
			if err := s.search.DeleteDataStore(ctx, record.DataStoreID); err != nil {
				warn("delete data store %s: %v", record.DataStoreID, err)
			} else {
				result.DataStoreDeleted = true
			}
		}
	}

	deleted, err := s.repo.DeleteEngine(ctx, engineID)
	if err != nil {
		warn("delete engine record: %v", err)
	}
	result.MetadataDeleted = deleted

	if _, err := s.repo.DeleteDocumentsForEngine(ctx, engineID); err != nil {
		warn("delete document records: %v", err)
	}

	s.logger.Info("engine deleted",
		zap.String("engine_id", engineID),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

// deleteBlobs removes every stored object for the engine unless the data
// store is shared with another engine.
func (s *Service) deleteBlobs(ctx context.Context, record domain.Engine, warn func(string, ...any)) bool {
	sharers, err := s.repo.OtherEnginesSharingDataStore(ctx, record.DataStoreID, record.EngineID)
	if err != nil {
		warn("shared data store check failed: %v", err)
		return false
	}
	if len(sharers) > 0 {
		warn("data store %s still used by %d other engine(s) %v, skipping blob deletion",
			record.DataStoreID, len(sharers), sampleIDs(sharers))
		return false
	}

	uris, err := s.repo.ListDocumentURIs(ctx, record.EngineID)
	if err != nil {
		warn("list document blobs: %v", err)
		return false
	}
	failed := s.blobs.DeleteAll(ctx, uris)
	if len(failed) > 0 {
		warn("failed to delete %d blob(s), first: %v", len(failed), sampleIDs(failed))
		return false
	}
	return true
}
