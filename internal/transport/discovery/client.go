package discovery

import (
	"context"
	"fmt"
	"strings"

	discoveryengine "google.golang.org/api/discoveryengine/v1"
	"google.golang.org/api/option"
)

// Client wraps the Discovery Engine JSON API behind the gateway's consumer
// interface.
type Client struct {
	svc *discoveryengine.Service
}

// NewClient creates a Discovery Engine client. credentialsFile may be empty,
// in which case application default credentials apply.
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := discoveryengine.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create discovery engine service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// GetDataStore fetches a data store by resource name.
func (c *Client) GetDataStore(ctx context.Context, name string) (*discoveryengine.GoogleCloudDiscoveryengineV1DataStore, error) {
	return c.svc.Projects.Locations.Collections.DataStores.Get(name).Context(ctx).Do()
}

// CreateDataStore starts the data store creation long-running operation.
func (c *Client) CreateDataStore(
	ctx context.Context, parent, dataStoreID string,
	dataStore *discoveryengine.GoogleCloudDiscoveryengineV1DataStore,
) (*discoveryengine.GoogleLongrunningOperation, error) {
	return c.svc.Projects.Locations.Collections.DataStores.Create(parent, dataStore).
		DataStoreId(dataStoreID).
		CreateAdvancedSiteSearch(false).
		Context(ctx).
		Do()
}

// DeleteDataStore starts the data store deletion long-running operation.
func (c *Client) DeleteDataStore(ctx context.Context, name string) (*discoveryengine.GoogleLongrunningOperation, error) {
	return c.svc.Projects.Locations.Collections.DataStores.Delete(name).Context(ctx).Do()
}

// GetEngine fetches an engine by resource name.
func (c *Client) GetEngine(ctx context.Context, name string) (*discoveryengine.GoogleCloudDiscoveryengineV1Engine, error) {
	return c.svc.Projects.Locations.Collections.Engines.Get(name).Context(ctx).Do()
}

// CreateEngine starts the engine creation long-running operation.
func (c *Client) CreateEngine(
	ctx context.Context, parent, engineID string,
	engine *discoveryengine.GoogleCloudDiscoveryengineV1Engine,
) (*discoveryengine.GoogleLongrunningOperation, error) {
	return c.svc.Projects.Locations.Collections.Engines.Create(parent, engine).
		EngineId(engineID).
		Context(ctx).
		Do()
}

// DeleteEngine starts the engine deletion long-running operation.
func (c *Client) DeleteEngine(ctx context.Context, name string) (*discoveryengine.GoogleLongrunningOperation, error) {
	return c.svc.Projects.Locations.Collections.Engines.Delete(name).Context(ctx).Do()
}

// ImportDocuments starts a bulk import into a data store branch.
func (c *Client) ImportDocuments(
	ctx context.Context, parent string,
	req *discoveryengine.GoogleCloudDiscoveryengineV1ImportDocumentsRequest,
) (*discoveryengine.GoogleLongrunningOperation, error) {
	return c.svc.Projects.Locations.Collections.DataStores.Branches.Documents.Import(parent, req).
		Context(ctx).
		Do()
}

// DeleteDocument removes one indexed document.
func (c *Client) DeleteDocument(ctx context.Context, name string) error {
	_, err := c.svc.Projects.Locations.Collections.DataStores.Branches.Documents.Delete(name).
		Context(ctx).
		Do()
	return err
}

// GetOperation polls a long-running operation. The API exposes a separate
// operations service per resource level, so the call is routed by the
// operation's resource name.
func (c *Client) GetOperation(ctx context.Context, name string) (*discoveryengine.GoogleLongrunningOperation, error) {
	switch {
	case strings.Contains(name, "/branches/"):
		return c.svc.Projects.Locations.Collections.DataStores.Branches.Operations.Get(name).Context(ctx).Do()
	case strings.Contains(name, "/dataStores/"):
		return c.svc.Projects.Locations.Collections.DataStores.Operations.Get(name).Context(ctx).Do()
	case strings.Contains(name, "/engines/"):
		return c.svc.Projects.Locations.Collections.Engines.Operations.Get(name).Context(ctx).Do()
	default:
		return c.svc.Projects.Locations.Collections.Operations.Get(name).Context(ctx).Do()
	}
}

// Search runs a search against an engine's serving config.
func (c *Client) Search(
	ctx context.Context, servingConfig string,
	req *discoveryengine.GoogleCloudDiscoveryengineV1SearchRequest,
) (*discoveryengine.GoogleCloudDiscoveryengineV1SearchResponse, error) {
	return c.svc.Projects.Locations.Collections.Engines.ServingConfigs.Search(servingConfig, req).
		Context(ctx).
		Do()
}
