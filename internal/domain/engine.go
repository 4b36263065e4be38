package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Engine represents one provisioned search engine bound 1:1 to a remote data
// store. The data store may still be shared by other engines; deletion checks
// for that before tearing shared resources down.
type Engine struct {
	EngineID    string
	EngineName  string
	DataStoreID string
	CreatedAt   time.Time
}

// RemoteEngine is the search-plane-confirmed engine state.
type RemoteEngine struct {
	DisplayName  string
	SolutionType string
	DataStoreIDs []string
	Existed      bool
}

// maxBucketNameLen is the GCS bucket name limit.
const maxBucketNameLen = 63

// SanitizeEngineName normalizes a display name into an identifier fragment:
// lowercase, spaces and underscores become hyphens, everything that is not a
// lowercase alphanumeric or hyphen is dropped. Idempotent — sanitizing an
// already sanitized string is a no-op.
func SanitizeEngineName(name string) string {
	lowered := strings.ToLower(name)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r == ' ' || r == '_':
			b.WriteByte('-')
		case r == '-' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EngineIDWithSuffix builds an engine ID from a display name and an explicit
// random suffix. Split out from NewEngineID so the derivation is testable.
func EngineIDWithSuffix(name, suffix string) string {
	return SanitizeEngineName(name) + "-" + suffix
}

// NewEngineID generates a globally unique engine ID from a display name:
// sanitized name plus 8 hex characters of a fresh UUID.
func NewEngineID(name string) string {
	return EngineIDWithSuffix(name, uuid.NewString()[:8])
}

// NewDataStoreID generates a UUID-based data store ID.
func NewDataStoreID() string {
	return "ds-" + uuid.NewString()
}

// BucketName derives the per-engine bucket name from the engine and data
// store IDs. The name is recomputed from the IDs wherever it is needed rather
// than stored; this is the single place the derivation lives.
func BucketName(engineID, dataStoreID string) string {
	name := strings.ToLower(engineID + "-" + dataStoreID)
	name = strings.ReplaceAll(name, "_", "-")
	if len(name) > maxBucketNameLen {
		name = name[:maxBucketNameLen]
	}
	return name
}
