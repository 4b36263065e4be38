// Package gcs is the blob store gateway: per-engine bucket provisioning,
// collision-free uploads and best-effort deletion against Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/notedex/internal/backoff"
	"github.com/kailas-cloud/notedex/internal/domain"
)

// uriScheme prefixes every blob URI this gateway produces.
const uriScheme = "gs://"

// api is the consumer interface over the storage plane (ISP).
type api interface {
	GetBucket(ctx context.Context, name string) error
	CreateBucket(ctx context.Context, projectID, name, location string) error
	PutObject(ctx context.Context, bucket, key string, content []byte, contentType string) error
	StatObject(ctx context.Context, bucket, key string) error
	DeleteObject(ctx context.Context, bucket, key string) error
}

// Config holds gateway settings.
type Config struct {
	ProjectID string
	Location  string
	// Propagation is the wait after bucket creation before dependent remote
	// services can resolve the bucket (eventual consistency).
	Propagation time.Duration
	// Retry bounds transient-error retries for lookups and uploads.
	Retry  backoff.Policy
	Logger *zap.Logger
}

// Gateway orchestrates blob store access with retries and propagation waits.
type Gateway struct {
	api       api
	projectID string
	location  string

	propagation time.Duration
	retry       backoff.Policy
	sleep       backoff.Sleeper
	now         func() time.Time

	logger *zap.Logger
}

// New creates a blob store gateway.
func New(a api, cfg Config) *Gateway {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retry := cfg.Retry
	if retry.Attempts <= 0 {
		retry.Attempts = 3
	}
	return &Gateway{
		api:         a,
		projectID:   cfg.ProjectID,
		location:    cfg.Location,
		propagation: cfg.Propagation,
		retry:       retry,
		sleep:       backoff.Sleep,
		now:         time.Now,
		logger:      logger,
	}
}

// WithSleeper replaces the sleeper. Tests inject a no-op.
func (g *Gateway) WithSleeper(s backoff.Sleeper) *Gateway {
	g.sleep = s
	return g
}

// WithClock replaces the upload timestamp source.
func (g *Gateway) WithClock(now func() time.Time) *Gateway {
	g.now = now
	return g
}

// EnsureBucket creates the bucket if absent. A freshly created bucket is not
// immediately visible to dependent services, so creation is followed by a
// propagation wait. A creation race ("already exists") counts as success.
func (g *Gateway) EnsureBucket(ctx context.Context, name string) error {
	err := g.api.GetBucket(ctx, name)
	if err == nil {
		g.logger.Debug("bucket exists", zap.String("bucket", name))
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("check bucket %s: %w", name, err)
	}

	g.logger.Info("creating bucket",
		zap.String("bucket", name),
		zap.String("location", g.location),
	)
	createErr := g.retry.Retry(ctx, g.sleep, isTransient, func() error {
		return g.api.CreateBucket(ctx, g.projectID, name, g.location)
	})
	if createErr != nil {
		if isConflict(createErr) {
			g.logger.Info("bucket created concurrently", zap.String("bucket", name))
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", name, createErr)
	}

	// Dependent services resolve bucket existence with eventual consistency.
	if err := g.sleep(ctx, g.propagation); err != nil {
		return err
	}
	g.logger.Info("bucket created", zap.String("bucket", name))
	return nil
}

// LocateBucket verifies an existing bucket, retrying transient failures. A
// genuine not-found means engine provisioning never ran and is fatal.
func (g *Gateway) LocateBucket(ctx context.Context, name string) error {
	err := g.retry.Retry(ctx, g.sleep, isTransient, func() error {
		return g.api.GetBucket(ctx, name)
	})
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return fmt.Errorf("bucket %s: %w", name, domain.ErrBucketMissing)
	}
	return fmt.Errorf("locate bucket %s: %w", name, err)
}

// Upload writes content under a timestamped key and returns the blob URI.
// The key is fixed before the first attempt so retries overwrite the same
// object instead of leaking partial copies.
func (g *Gateway) Upload(ctx context.Context, bucket string, content []byte, filename, contentType string) (string, error) {
	key := fmt.Sprintf("documents/%d_%s", g.now().Unix(), filename)

	err := g.retry.Retry(ctx, g.sleep, isTransient, func() error {
		if putErr := g.api.PutObject(ctx, bucket, key, content, contentType); putErr != nil {
			return putErr
		}
		// Verify the write landed before declaring success.
		return g.api.StatObject(ctx, bucket, key)
	})
	if err != nil {
		return "", fmt.Errorf("upload %s to bucket %s: %w", filename, bucket, err)
	}

	uri := uriScheme + bucket + "/" + key
	g.logger.Info("uploaded object",
		zap.String("uri", uri),
		zap.Int("bytes", len(content)),
	)
	return uri, nil
}

// Delete removes the object a URI points at. An already-missing object is
// success-equivalent.
func (g *Gateway) Delete(ctx context.Context, uri string) error {
	bucket, key, err := ParseURI(uri)
	if err != nil {
		return err
	}
	if err := g.api.DeleteObject(ctx, bucket, key); err != nil {
		if isNotFound(err) {
			g.logger.Warn("object already gone", zap.String("uri", uri))
			return nil
		}
		return fmt.Errorf("delete object %s: %w", uri, err)
	}
	return nil
}

// DeleteAll removes every URI independently; one failure does not abort the
// rest. It returns the URIs that could not be deleted.
func (g *Gateway) DeleteAll(ctx context.Context, uris []string) []string {
	var failed []string
	for _, uri := range uris {
		if err := g.Delete(ctx, uri); err != nil {
			g.logger.Warn("failed to delete object",
				zap.String("uri", uri),
				zap.Error(err),
			)
			failed = append(failed, uri)
		}
	}
	return failed
}

// ParseURI splits a gs://bucket/key URI.
func ParseURI(uri string) (bucket, key string, err error) {
	if !strings.HasPrefix(uri, uriScheme) {
		return "", "", fmt.Errorf("invalid blob uri %q", uri)
	}
	rest := uri[len(uriScheme):]
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid blob uri %q", uri)
	}
	return bucket, key, nil
}
