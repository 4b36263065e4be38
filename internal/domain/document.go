package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"
)

// Document is the local metadata record for one ingested, indexed file.
type Document struct {
	DocumentID  string
	EngineID    string
	DataStoreID string
	Filename    string
	BlobURI     string
	FileSize    int64
	ContentType string
	UploadedAt  time.Time
}

// ComputeDocumentID derives the deterministic document identifier from a blob
// URI: the first 16 bytes of its SHA-256, hex encoded (32 characters). The
// remote indexing service assigns the same identifier when importing by URI,
// so index-deletion calls can address the object later.
func ComputeDocumentID(blobURI string) string {
	sum := sha256.Sum256([]byte(blobURI))
	return hex.EncodeToString(sum[:16])
}

// ImportResult carries the counts a remote import operation reported.
type ImportResult struct {
	SuccessCount  int64
	FailureCount  int64
	OperationName string
}

// supportedExtensions is the ingest whitelist.
var supportedExtensions = map[string]struct{}{
	".pdf":  {},
	".docx": {},
	".doc":  {},
	".txt":  {},
	".html": {},
	".htm":  {},
	".md":   {},
}

// SupportedFileType reports whether the filename's extension is ingestible.
func SupportedFileType(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	_, ok := supportedExtensions[ext]
	return ok
}

// SupportedExtensions returns the whitelist for error messages.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		exts = append(exts, ext)
	}
	return exts
}
