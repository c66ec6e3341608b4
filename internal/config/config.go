package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/gookit/validate"
)

// Config represents the main configuration for trail.
type Config struct {
	DeviceID    string            `toml:"device_id" validate:"required"`
	BaseDir     string            `toml:"base_dir" validate:"required"`
	LogDir      string            `toml:"log_dir" validate:"required"`
	Database    DatabaseConfig    `toml:"database"`
	ObjectStore ObjectStoreConfig `toml:"object_store"`
	Remote      RemoteConfig      `toml:"remote"`
	Encryption  EncryptionConfig  `toml:"encryption"`
	Recording   RecordingConfig   `toml:"recording"`
	Label       LabelConfig       `toml:"label"`
	Metrics     MetricsConfig     `toml:"metrics"`
}

// DatabaseConfig represents configuration for the local session store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type" validate:"required|in:sqlite,memory"`
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ObjectStoreConfig represents configuration for the asset store (route
// images and database backups). Tagged union on Type.
type ObjectStoreConfig struct {
	Type string `toml:"type" validate:"required|in:memory,filesystem,s3"`

	// PublicBaseURL prefixes object keys to form public URLs. Optional for s3.
	PublicBaseURL string `toml:"public_base_url,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
	S3UsePathStyle    bool   `toml:"s3_use_path_style,omitempty"`
}

// RemoteConfig represents configuration for the route backend.
type RemoteConfig struct {
	Type           string `toml:"type" validate:"required|in:memory,http"`
	BaseURL        string `toml:"base_url,omitempty"` // only used for type=http
	APIKey         string `toml:"api_key,omitempty"`
	TimeoutSeconds int    `toml:"timeout_seconds,omitempty" validate:"min:0"`
}

// EncryptionConfig holds paths to the age key pair used for database backups.
type EncryptionConfig struct {
	Type           string `toml:"type" validate:"in:age,test"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// RecordingConfig holds location sampling settings.
type RecordingConfig struct {
	MinIntervalMillis int     `toml:"min_interval_ms" validate:"min:0"`
	MinDistanceMeters float64 `toml:"min_distance_m" validate:"min:0"`
}

// LabelConfig sizes the location label cache.
type LabelConfig struct {
	CacheSizeBytes int `toml:"cache_size_bytes" validate:"min:0"`
	TTLSeconds     int `toml:"ttl_seconds" validate:"min:0"`
}

// MetricsConfig enables prometheus instrumentation of sync. The CLI is
// short-lived, so metrics are written to TextfilePath (node_exporter
// textfile collector format) when the command finishes.
type MetricsConfig struct {
	Enabled      bool   `toml:"enabled"`
	Namespace    string `toml:"namespace,omitempty"`
	TextfilePath string `toml:"textfile_path,omitempty"`
}

// NewConfig creates a Config with default sub-configurations rooted at baseDir.
func NewConfig(deviceID, baseDir string) *Config {
	return &Config{
		DeviceID: deviceID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		ObjectStore: ObjectStoreConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "objects"),
		},
		Remote: RemoteConfig{
			Type:           "http",
			BaseURL:        "http://localhost:8080",
			TimeoutSeconds: 30,
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "trail.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "trail.key"),
		},
		Recording: RecordingConfig{
			MinIntervalMillis: 1000,
			MinDistanceMeters: 1,
		},
		Label: LabelConfig{
			CacheSizeBytes: 1024 * 1024,
			TTLSeconds:     3600,
		},
	}
}

// Validate checks struct tags and the fields each tagged union requires.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    any
	}{
		{"database", &c.Database},
		{"object_store", &c.ObjectStore},
		{"remote", &c.Remote},
		{"encryption", &c.Encryption},
		{"recording", &c.Recording},
		{"label", &c.Label},
		{"config", c},
	}
	for _, s := range sections {
		v := validate.Struct(s.v)
		if !v.Validate() {
			return fmt.Errorf("invalid %s: %s", s.name, v.Errors.One())
		}
	}

	var errs []error
	if c.Database.Type == "sqlite" && c.Database.DataDir == "" {
		errs = append(errs, errors.New("database: data_dir required for type sqlite"))
	}
	switch c.ObjectStore.Type {
	case "filesystem":
		if c.ObjectStore.FSRoot == "" {
			errs = append(errs, errors.New("object_store: fs_root required for type filesystem"))
		}
	case "s3":
		if c.ObjectStore.S3Bucket == "" {
			errs = append(errs, errors.New("object_store: s3_bucket required for type s3"))
		}
		if c.ObjectStore.S3Region == "" {
			errs = append(errs, errors.New("object_store: s3_region required for type s3"))
		}
	}
	if c.Remote.Type == "http" && c.Remote.BaseURL == "" {
		errs = append(errs, errors.New("remote: base_url required for type http"))
	}
	return errors.Join(errs...)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may carry backend credentials.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes a new config file. It refuses to overwrite an existing one.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
