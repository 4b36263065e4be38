package domain

import "errors"

var (
	// ErrEngineNotFound signals a missing engine record.
	ErrEngineNotFound = errors.New("engine not found")
	// ErrDocumentNotFound signals a missing document record.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrTaskNotFound signals a missing ingestion task.
	ErrTaskNotFound = errors.New("task not found")
	// ErrEmptyFile signals an upload with zero-length content.
	ErrEmptyFile = errors.New("file is empty")
	// ErrUnsupportedFileType signals a file extension outside the ingest whitelist.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrBucketMissing signals that the per-engine bucket was never provisioned.
	// Ingestion requires the bucket created during engine provisioning.
	ErrBucketMissing = errors.New("bucket missing")
	// ErrImportFailed signals that the remote import reported failures.
	ErrImportFailed = errors.New("document import failed")
	// ErrEmptyQuery signals a blank question.
	ErrEmptyQuery = errors.New("query is empty")
	// ErrNoDocuments signals an engine with no indexed content.
	ErrNoDocuments = errors.New("no documents in engine")
	// ErrRemoteUnavailable signals an exhausted retry budget against a remote plane.
	ErrRemoteUnavailable = errors.New("remote service unavailable")
	// ErrBadMindMap signals an LLM response that could not be parsed into a tree.
	ErrBadMindMap = errors.New("invalid mind map response")
)
