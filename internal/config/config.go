package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the notedex API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Google   GoogleConfig   `yaml:"google"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the local metadata store settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite file path (default: notedex.db)
}

// GoogleConfig holds the Google Cloud project settings shared by the search
// engine and blob store gateways.
type GoogleConfig struct {
	ProjectID       string `yaml:"project_id"`
	Location        string `yaml:"location"` // global, us, eu
	CredentialsFile string `yaml:"credentials_file"`
	BucketLocation  string `yaml:"bucket_location"` // GCS region; "global" maps to us
}

// OpenAIConfig holds the completion provider settings for mind maps.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// IngestConfig holds retry, timeout and settling-delay settings for the
// ingestion and lifecycle workflows. All delays are injectable so tests run
// with zeroes.
type IngestConfig struct {
	BucketPropagationSec int `yaml:"bucket_propagation_sec"` // wait after bucket creation
	PostImportSettleSec  int `yaml:"post_import_settle_sec"` // wait after confirmed import
	ImportAttempts       int `yaml:"import_attempts"`
	ImportDelaySec       int `yaml:"import_delay_sec"`        // base pre-attempt readiness delay
	ImportDelayGrowthSec int `yaml:"import_delay_growth_sec"` // linear growth per attempt
	StorageAttempts      int `yaml:"storage_attempts"`
	StorageDelaySec      int `yaml:"storage_delay_sec"`
	DataStoreTimeoutSec  int `yaml:"data_store_timeout_sec"` // data store create LRO bound
	EngineTimeoutSec     int `yaml:"engine_timeout_sec"`     // engine create LRO bound
	ImportTimeoutSec     int `yaml:"import_timeout_sec"`     // import LRO bound
	OperationPollSec     int `yaml:"operation_poll_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Path == "" {
		c.Database.Path = "notedex.db"
	}
	if c.Google.Location == "" {
		c.Google.Location = "global"
	}
	if c.Google.BucketLocation == "" {
		// GCS has no "global" region; data stores in global resolve to us.
		if c.Google.Location == "global" {
			c.Google.BucketLocation = "us"
		} else {
			c.Google.BucketLocation = strings.ToLower(c.Google.Location)
		}
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o"
	}
	if c.Ingest.BucketPropagationSec <= 0 {
		c.Ingest.BucketPropagationSec = 15
	}
	if c.Ingest.PostImportSettleSec <= 0 {
		c.Ingest.PostImportSettleSec = 30
	}
	if c.Ingest.ImportAttempts <= 0 {
		c.Ingest.ImportAttempts = 3
	}
	if c.Ingest.ImportDelaySec <= 0 {
		c.Ingest.ImportDelaySec = 5
	}
	if c.Ingest.ImportDelayGrowthSec <= 0 {
		c.Ingest.ImportDelayGrowthSec = 5
	}
	if c.Ingest.StorageAttempts <= 0 {
		c.Ingest.StorageAttempts = 3
	}
	if c.Ingest.StorageDelaySec <= 0 {
		c.Ingest.StorageDelaySec = 2
	}
	if c.Ingest.DataStoreTimeoutSec <= 0 {
		c.Ingest.DataStoreTimeoutSec = 600
	}
	if c.Ingest.EngineTimeoutSec <= 0 {
		c.Ingest.EngineTimeoutSec = 900
	}
	if c.Ingest.ImportTimeoutSec <= 0 {
		c.Ingest.ImportTimeoutSec = 300
	}
	if c.Ingest.OperationPollSec <= 0 {
		c.Ingest.OperationPollSec = 5
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Google.ProjectID == "" {
		return fmt.Errorf("google.project_id is required")
	}
	switch c.Google.Location {
	case "global", "us", "eu":
		// ok
	default:
		return fmt.Errorf("google.location must be global, us or eu, got %q", c.Google.Location)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
