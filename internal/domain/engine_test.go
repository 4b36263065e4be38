package domain

import (
	"regexp"
	"strings"
	"testing"
)

func TestSanitizeEngineName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase passthrough", "compliance", "compliance"},
		{"spaces to hyphens", "Compliance Search", "compliance-search"},
		{"underscores to hyphens", "risk_analyst", "risk-analyst"},
		{"strips punctuation", "My Engine! (v2)", "my-engine-v2"},
		{"keeps digits", "Team 42", "team-42"},
		{"unicode dropped", "café", "caf"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeEngineName(tt.in); got != tt.want {
				t.Errorf("SanitizeEngineName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeEngineName_Idempotent(t *testing.T) {
	inputs := []string{"Compliance Search", "a_b_c", "Already-clean-1", "  spaced  "}
	for _, in := range inputs {
		once := SanitizeEngineName(in)
		twice := SanitizeEngineName(once)
		if once != twice {
			t.Errorf("sanitize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestEngineIDWithSuffix(t *testing.T) {
	got := EngineIDWithSuffix("Compliance Search", "deadbeef")
	if got != "compliance-search-deadbeef" {
		t.Errorf("EngineIDWithSuffix = %q", got)
	}
}

func TestNewEngineID_Pattern(t *testing.T) {
	pattern := regexp.MustCompile(`^compliance-search-[0-9a-f]{8}$`)
	id := NewEngineID("Compliance Search")
	if !pattern.MatchString(id) {
		t.Errorf("NewEngineID = %q, want match for %s", id, pattern)
	}
}

func TestNewDataStoreID_Pattern(t *testing.T) {
	pattern := regexp.MustCompile(`^ds-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	id := NewDataStoreID()
	if !pattern.MatchString(id) {
		t.Errorf("NewDataStoreID = %q, want match for %s", id, pattern)
	}
}

func TestBucketName(t *testing.T) {
	got := BucketName("my-engine-12ab34cd", "ds-1234")
	if got != "my-engine-12ab34cd-ds-1234" {
		t.Errorf("BucketName = %q", got)
	}

	// Underscores normalized, length capped at 63.
	long := BucketName("engine_one", strings.Repeat("x", 100))
	if strings.Contains(long, "_") {
		t.Errorf("BucketName kept underscore: %q", long)
	}
	if len(long) != 63 {
		t.Errorf("BucketName length = %d, want 63", len(long))
	}
}
