// Package discovery is the search engine gateway: data store and engine
// lifecycle, bulk document import and index deletion against the Discovery
// Engine control plane, with long-running-operation waits and bounded
// retries.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	discoveryengine "google.golang.org/api/discoveryengine/v1"

	"github.com/kailas-cloud/notedex/internal/backoff"
	"github.com/kailas-cloud/notedex/internal/domain"
	"github.com/kailas-cloud/notedex/internal/metrics"
)

// Fixed solution configuration for every provisioned engine.
const (
	solutionTypeSearch   = "SOLUTION_TYPE_SEARCH"
	searchTierEnterprise = "SEARCH_TIER_ENTERPRISE"
	searchAddOnLLM       = "SEARCH_ADD_ON_LLM"
	industryGeneric      = "GENERIC"
	contentRequired      = "CONTENT_REQUIRED"
)

// api is the consumer interface over the Discovery Engine plane (ISP).
type api interface {
	GetDataStore(ctx context.Context, name string) (*discoveryengine.GoogleCloudDiscoveryengineV1DataStore, error)
	CreateDataStore(ctx context.Context, parent, dataStoreID string, dataStore *discoveryengine.GoogleCloudDiscoveryengineV1DataStore) (*discoveryengine.GoogleLongrunningOperation, error)
	DeleteDataStore(ctx context.Context, name string) (*discoveryengine.GoogleLongrunningOperation, error)
	GetEngine(ctx context.Context, name string) (*discoveryengine.GoogleCloudDiscoveryengineV1Engine, error)
	CreateEngine(ctx context.Context, parent, engineID string, engine *discoveryengine.GoogleCloudDiscoveryengineV1Engine) (*discoveryengine.GoogleLongrunningOperation, error)
	DeleteEngine(ctx context.Context, name string) (*discoveryengine.GoogleLongrunningOperation, error)
	ImportDocuments(ctx context.Context, parent string, req *discoveryengine.GoogleCloudDiscoveryengineV1ImportDocumentsRequest) (*discoveryengine.GoogleLongrunningOperation, error)
	DeleteDocument(ctx context.Context, name string) error
	GetOperation(ctx context.Context, name string) (*discoveryengine.GoogleLongrunningOperation, error)
	Search(ctx context.Context, servingConfig string, req *discoveryengine.GoogleCloudDiscoveryengineV1SearchRequest) (*discoveryengine.GoogleCloudDiscoveryengineV1SearchResponse, error)
}

// Config holds gateway settings.
type Config struct {
	ProjectID string
	Location  string

	// Long-running operation bounds.
	DataStoreTimeout time.Duration // create data store (default 600s)
	EngineTimeout    time.Duration // create engine (default 900s)
	ImportTimeout    time.Duration // import documents (default 300s)
	PollInterval     time.Duration

	// ImportRetry bounds import attempts; its delay doubles as the
	// pre-attempt readiness wait for freshly uploaded objects.
	ImportRetry backoff.Policy
	// Settle is the post-import wait before content is queryable.
	Settle time.Duration

	Logger *zap.Logger
}

// Gateway drives the Discovery Engine control and data planes.
type Gateway struct {
	api api
	cfg Config

	sleep backoff.Sleeper
}

// New creates a search engine gateway.
func New(a api, cfg Config) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.DataStoreTimeout <= 0 {
		cfg.DataStoreTimeout = 600 * time.Second
	}
	if cfg.EngineTimeout <= 0 {
		cfg.EngineTimeout = 900 * time.Second
	}
	if cfg.ImportTimeout <= 0 {
		cfg.ImportTimeout = 300 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.ImportRetry.Attempts <= 0 {
		cfg.ImportRetry.Attempts = 3
	}
	return &Gateway{api: a, cfg: cfg, sleep: backoff.Sleep}
}

// WithSleeper replaces the sleeper. Tests inject a no-op.
func (g *Gateway) WithSleeper(s backoff.Sleeper) *Gateway {
	g.sleep = s
	return g
}

// --- Resource names ---

func (g *Gateway) collectionParent() string {
	return fmt.Sprintf("projects/%s/locations/%s/collections/default_collection",
		g.cfg.ProjectID, g.cfg.Location)
}

func (g *Gateway) dataStoreName(dataStoreID string) string {
	return g.collectionParent() + "/dataStores/" + dataStoreID
}

func (g *Gateway) engineName(engineID string) string {
	return g.collectionParent() + "/engines/" + engineID
}

func (g *Gateway) branchParent(dataStoreID string) string {
	return g.dataStoreName(dataStoreID) + "/branches/default_branch"
}

func (g *Gateway) documentName(dataStoreID, documentID string) string {
	return g.branchParent(dataStoreID) + "/documents/" + documentID
}

func (g *Gateway) servingConfig(engineID string) string {
	return g.engineName(engineID) + "/servingConfigs/default_config"
}

// --- Data stores ---

// EnsureDataStore creates the data store if absent and returns whether it was
// created. A creation race is resolved by re-fetching.
func (g *Gateway) EnsureDataStore(ctx context.Context, dataStoreID string) (created bool, err error) {
	name := g.dataStoreName(dataStoreID)

	if _, getErr := g.api.GetDataStore(ctx, name); getErr == nil {
		g.cfg.Logger.Info("data store exists, reusing", zap.String("data_store_id", dataStoreID))
		return false, nil
	} else if !isNotFound(getErr) {
		return false, fmt.Errorf("get data store %s: %w", dataStoreID, getErr)
	}

	dataStore := &discoveryengine.GoogleCloudDiscoveryengineV1DataStore{
		DisplayName:      fmt.Sprintf("Auto-generated Data Store (%s)", dataStoreID),
		IndustryVertical: industryGeneric,
		ContentConfig:    contentRequired,
		SolutionTypes:    []string{solutionTypeSearch},
	}

	g.cfg.Logger.Info("creating data store", zap.String("data_store_id", dataStoreID))
	op, createErr := g.api.CreateDataStore(ctx, g.collectionParent(), dataStoreID, dataStore)
	if createErr != nil {
		if isAlreadyExists(createErr) {
			// Created between the existence check and the create call.
			if _, getErr := g.api.GetDataStore(ctx, name); getErr != nil {
				return false, fmt.Errorf("data store %s reported existing but fetch failed: %w", dataStoreID, getErr)
			}
			return false, nil
		}
		return false, fmt.Errorf("create data store %s: %w", dataStoreID, createErr)
	}

	if _, err := g.waitOperation(ctx, op, g.cfg.DataStoreTimeout); err != nil {
		return false, fmt.Errorf("wait for data store %s: %w", dataStoreID, err)
	}
	g.cfg.Logger.Info("data store created", zap.String("data_store_id", dataStoreID))
	return true, nil
}

// DeleteDataStore removes the data store. Not-found is already-satisfied.
func (g *Gateway) DeleteDataStore(ctx context.Context, dataStoreID string) error {
	op, err := g.api.DeleteDataStore(ctx, g.dataStoreName(dataStoreID))
	if err != nil {
		if isNotFound(err) {
			g.cfg.Logger.Info("data store already deleted", zap.String("data_store_id", dataStoreID))
			return nil
		}
		return fmt.Errorf("delete data store %s: %w", dataStoreID, err)
	}
	if _, err := g.waitOperation(ctx, op, g.cfg.DataStoreTimeout); err != nil {
		return fmt.Errorf("wait for data store %s deletion: %w", dataStoreID, err)
	}
	return nil
}

// --- Engines ---

// CreateEngine provisions an enterprise search engine bound to a data store.
// An engine ID collision (rare, the ID carries a random suffix) is resolved
// by re-fetching the existing engine.
func (g *Gateway) CreateEngine(ctx context.Context, engineID, dataStoreID, displayName string) (domain.RemoteEngine, error) {
	engine := &discoveryengine.GoogleCloudDiscoveryengineV1Engine{
		DisplayName:      displayName,
		SolutionType:     solutionTypeSearch,
		DataStoreIds:     []string{dataStoreID},
		IndustryVertical: industryGeneric,
		SearchEngineConfig: &discoveryengine.GoogleCloudDiscoveryengineV1EngineSearchEngineConfig{
			SearchTier:   searchTierEnterprise,
			SearchAddOns: []string{searchAddOnLLM},
		},
	}

	g.cfg.Logger.Info("creating engine",
		zap.String("engine_id", engineID),
		zap.String("data_store_id", dataStoreID),
	)
	op, err := g.api.CreateEngine(ctx, g.collectionParent(), engineID, engine)
	if err != nil {
		if isAlreadyExists(err) {
			return g.fetchExistingEngine(ctx, engineID)
		}
		return domain.RemoteEngine{}, fmt.Errorf("create engine %s: %w", engineID, err)
	}

	if _, err := g.waitOperation(ctx, op, g.cfg.EngineTimeout); err != nil {
		return domain.RemoteEngine{}, fmt.Errorf("wait for engine %s: %w", engineID, err)
	}

	remote, err := g.api.GetEngine(ctx, g.engineName(engineID))
	if err != nil {
		return domain.RemoteEngine{}, fmt.Errorf("fetch engine %s after creation: %w", engineID, err)
	}
	g.cfg.Logger.Info("engine created", zap.String("engine_id", engineID))
	return domain.RemoteEngine{
		DisplayName:  remote.DisplayName,
		SolutionType: remote.SolutionType,
		DataStoreIDs: remote.DataStoreIds,
	}, nil
}

func (g *Gateway) fetchExistingEngine(ctx context.Context, engineID string) (domain.RemoteEngine, error) {
	remote, err := g.api.GetEngine(ctx, g.engineName(engineID))
	if err != nil {
		if isNotFound(err) {
			return domain.RemoteEngine{}, fmt.Errorf(
				"engine %s reported existing but was not found on fetch: %w", engineID, err)
		}
		return domain.RemoteEngine{}, fmt.Errorf("fetch existing engine %s: %w", engineID, err)
	}
	g.cfg.Logger.Info("engine already exists, reusing", zap.String("engine_id", engineID))
	return domain.RemoteEngine{
		DisplayName:  remote.DisplayName,
		SolutionType: remote.SolutionType,
		DataStoreIDs: remote.DataStoreIds,
		Existed:      true,
	}, nil
}

// GetEngine fetches remote engine detail. Not-found maps to
// domain.ErrEngineNotFound for the caller to downgrade to a warning.
func (g *Gateway) GetEngine(ctx context.Context, engineID string) (domain.RemoteEngine, error) {
	remote, err := g.api.GetEngine(ctx, g.engineName(engineID))
	if err != nil {
		if isNotFound(err) {
			return domain.RemoteEngine{}, domain.ErrEngineNotFound
		}
		return domain.RemoteEngine{}, fmt.Errorf("get engine %s: %w", engineID, err)
	}
	return domain.RemoteEngine{
		DisplayName:  remote.DisplayName,
		SolutionType: remote.SolutionType,
		DataStoreIDs: remote.DataStoreIds,
		Existed:      true,
	}, nil
}

// DeleteEngine removes the engine. Not-found is already-satisfied.
func (g *Gateway) DeleteEngine(ctx context.Context, engineID string) error {
	op, err := g.api.DeleteEngine(ctx, g.engineName(engineID))
	if err != nil {
		if isNotFound(err) {
			g.cfg.Logger.Info("engine already deleted", zap.String("engine_id", engineID))
			return nil
		}
		return fmt.Errorf("delete engine %s: %w", engineID, err)
	}
	if _, err := g.waitOperation(ctx, op, g.cfg.EngineTimeout); err != nil {
		return fmt.Errorf("wait for engine %s deletion: %w", engineID, err)
	}
	return nil
}

// --- Documents ---

// ImportDocument triggers a bulk import of one object by URI and blocks until
// the operation completes. Each attempt is preceded by a readiness delay that
// grows linearly, since a freshly created bucket or uploaded object may not
// be visible to the import service yet.
func (g *Gateway) ImportDocument(ctx context.Context, dataStoreID, blobURI string) (domain.ImportResult, error) {
	req := &discoveryengine.GoogleCloudDiscoveryengineV1ImportDocumentsRequest{
		GcsSource: &discoveryengine.GoogleCloudDiscoveryengineV1GcsSource{
			InputUris:  []string{blobURI},
			DataSchema: "content",
		},
		ReconciliationMode: "INCREMENTAL",
	}

	var result domain.ImportResult
	var lastErr error
	attempts := g.cfg.ImportRetry.Attempts
	for attempt := 0; attempt < attempts; attempt++ {
		// Pre-attempt readiness delay, growing per attempt.
		if err := g.sleep(ctx, g.cfg.ImportRetry.DelayFor(attempt)); err != nil {
			return domain.ImportResult{}, err
		}

		result, lastErr = g.importOnce(ctx, dataStoreID, req)
		if lastErr == nil {
			metrics.ImportAttemptsTotal.WithLabelValues("success").Inc()
			break
		}
		if !isImportRetryable(lastErr) {
			metrics.ImportAttemptsTotal.WithLabelValues("error").Inc()
			return domain.ImportResult{}, lastErr
		}
		metrics.ImportAttemptsTotal.WithLabelValues("retry").Inc()
		g.cfg.Logger.Warn("import attempt failed, retrying",
			zap.String("data_store_id", dataStoreID),
			zap.String("uri", blobURI),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}
	if lastErr != nil {
		return domain.ImportResult{}, fmt.Errorf("import %s: %w", blobURI, lastErr)
	}

	// Indexed content is not queryable immediately after the operation
	// completes.
	if err := g.sleep(ctx, g.cfg.Settle); err != nil {
		return domain.ImportResult{}, err
	}
	g.cfg.Logger.Info("import complete",
		zap.String("uri", blobURI),
		zap.Int64("success_count", result.SuccessCount),
		zap.Int64("failure_count", result.FailureCount),
	)
	return result, nil
}

func (g *Gateway) importOnce(
	ctx context.Context, dataStoreID string,
	req *discoveryengine.GoogleCloudDiscoveryengineV1ImportDocumentsRequest,
) (domain.ImportResult, error) {
	op, err := g.api.ImportDocuments(ctx, g.branchParent(dataStoreID), req)
	if err != nil {
		return domain.ImportResult{}, err
	}

	done, err := g.waitOperation(ctx, op, g.cfg.ImportTimeout)
	if err != nil {
		return domain.ImportResult{}, err
	}

	var meta struct {
		SuccessCount int64 `json:"successCount,string"`
		FailureCount int64 `json:"failureCount,string"`
	}
	if len(done.Metadata) > 0 {
		if err := json.Unmarshal(done.Metadata, &meta); err != nil {
			return domain.ImportResult{}, fmt.Errorf("decode import metadata: %w", err)
		}
	}

	result := domain.ImportResult{
		SuccessCount:  meta.SuccessCount,
		FailureCount:  meta.FailureCount,
		OperationName: done.Name,
	}
	switch {
	case meta.SuccessCount == 0 && meta.FailureCount == 0:
		// Completed but counted nothing — ambiguous remote state.
		return domain.ImportResult{}, fmt.Errorf("operation %s reported no outcome: %w", done.Name, domain.ErrImportFailed)
	case meta.FailureCount > 0 && meta.SuccessCount == 0:
		return domain.ImportResult{}, fmt.Errorf(
			"operation %s failed %d document(s): %w", done.Name, meta.FailureCount, domain.ErrImportFailed)
	default:
		// Success, or mixed counts surfaced to the caller without raising.
		return result, nil
	}
}

// DeleteDocument removes one indexed document. Not-found is already-satisfied.
func (g *Gateway) DeleteDocument(ctx context.Context, dataStoreID, documentID string) error {
	if err := g.api.DeleteDocument(ctx, g.documentName(dataStoreID, documentID)); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("delete indexed document %s: %w", documentID, err)
	}
	return nil
}

// --- Operations ---

// waitOperation polls until the operation completes, fails or the timeout
// elapses. A nil operation or one that is already done returns immediately.
func (g *Gateway) waitOperation(
	ctx context.Context,
	op *discoveryengine.GoogleLongrunningOperation,
	timeout time.Duration,
) (*discoveryengine.GoogleLongrunningOperation, error) {
	if op == nil {
		return nil, fmt.Errorf("nil operation")
	}

	deadline := time.Now().Add(timeout)
	current := op
	for !current.Done {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("operation %s timed out after %s", op.Name, timeout)
		}
		if err := g.sleep(ctx, g.cfg.PollInterval); err != nil {
			return nil, err
		}
		next, err := g.api.GetOperation(ctx, op.Name)
		if err != nil {
			if isTransient(err) {
				continue
			}
			return nil, fmt.Errorf("poll operation %s: %w", op.Name, err)
		}
		current = next
	}

	if current.Error != nil {
		return nil, fmt.Errorf("operation %s failed: %s (code %d)",
			op.Name, current.Error.Message, current.Error.Code)
	}
	return current, nil
}
