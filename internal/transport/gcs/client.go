package gcs

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

// Client wraps the Cloud Storage JSON API behind the gateway's consumer
// interface.
type Client struct {
	svc *storage.Service
}

// NewClient creates a storage client. credentialsFile may be empty, in which
// case application default credentials apply.
func NewClient(ctx context.Context, credentialsFile string) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// GetBucket checks bucket existence.
func (c *Client) GetBucket(ctx context.Context, name string) error {
	_, err := c.svc.Buckets.Get(name).Context(ctx).Do()
	return err
}

// CreateBucket creates a standard-class bucket in the given location.
func (c *Client) CreateBucket(ctx context.Context, projectID, name, location string) error {
	bucket := &storage.Bucket{
		Name:         name,
		Location:     strings.ToUpper(location),
		StorageClass: "STANDARD",
	}
	_, err := c.svc.Buckets.Insert(projectID, bucket).Context(ctx).Do()
	return err
}

// PutObject writes content under key.
func (c *Client) PutObject(ctx context.Context, bucket, key string, content []byte, contentType string) error {
	obj := &storage.Object{Name: key}
	call := c.svc.Objects.Insert(bucket, obj).Context(ctx)
	if contentType != "" {
		call = call.Media(bytes.NewReader(content), googleapi.ContentType(contentType))
	} else {
		call = call.Media(bytes.NewReader(content))
	}
	_, err := call.Do()
	return err
}

// StatObject checks object existence.
func (c *Client) StatObject(ctx context.Context, bucket, key string) error {
	_, err := c.svc.Objects.Get(bucket, key).Context(ctx).Do()
	return err
}

// DeleteObject removes one object.
func (c *Client) DeleteObject(ctx context.Context, bucket, key string) error {
	return c.svc.Objects.Delete(bucket, key).Context(ctx).Do()
}
