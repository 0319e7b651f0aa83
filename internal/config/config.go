package config

import (
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/civil"
	"gopkg.in/yaml.v3"
)

// ErrConfig marks an invalid configuration.
var ErrConfig = errors.New("invalid configuration")

// Store kinds understood by store.Open.
const (
	StoreS3     = "s3"
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreMemory = "mem"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for a trade ETL job.
type Config struct {
	Logging Logging      `yaml:"logging"`
	Source  SourceConfig `yaml:"source"`
	Target  TargetConfig `yaml:"target"`
	Meta    MetaConfig   `yaml:"meta"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Store describes where a bucket of tabular objects lives.
type Store struct {
	Kind       string `yaml:"kind"`
	Endpoint   string `yaml:"endpoint"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	UseSSL     bool   `yaml:"use_ssl"`
	Dir        string `yaml:"dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// SourceConfig controls which source objects are extracted.
type SourceConfig struct {
	Store            Store    `yaml:"store"`
	FirstExtractDate string   `yaml:"first_extract_date"`
	DateColumn       string   `yaml:"date_column"`
	Columns          []string `yaml:"columns"`
	RateLimitPerMin  int      `yaml:"rate_limit_per_min"`
}

// TargetConfig controls where the processed report is written.
type TargetConfig struct {
	Store         Store  `yaml:"store"`
	KeyPrefix     string `yaml:"key_prefix"`
	KeyDateLayout string `yaml:"key_date_layout"`
	Format        string `yaml:"format"`
}

// MetaConfig locates the watermark log.
type MetaConfig struct {
	Store Store  `yaml:"store"`
	Key   string `yaml:"key"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides and defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FirstDate parses Source.FirstExtractDate.
func (c *Config) FirstDate() (civil.Date, error) {
	d, err := civil.ParseDate(c.Source.FirstExtractDate)
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: first_extract_date %q: %v", ErrConfig, c.Source.FirstExtractDate, err)
	}
	return d, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if _, err := c.FirstDate(); err != nil {
		return err
	}
	if c.Meta.Key == "" {
		return fmt.Errorf("%w: meta.key is required", ErrConfig)
	}
	if c.Source.DateColumn == "" {
		return fmt.Errorf("%w: source.date_column is required", ErrConfig)
	}
	if c.Source.RateLimitPerMin < 0 {
		return fmt.Errorf("%w: source.rate_limit_per_min must not be negative", ErrConfig)
	}
	stores := []struct {
		name  string
		store Store
	}{
		{"source.store", c.Source.Store},
		{"target.store", c.Target.Store},
		{"meta.store", c.Meta.Store},
	}
	for _, s := range stores {
		if err := s.store.validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func (s Store) validate() error {
	switch s.Kind {
	case StoreS3:
		if s.Endpoint == "" || s.Bucket == "" {
			return fmt.Errorf("%w: s3 store needs endpoint and bucket", ErrConfig)
		}
	case StoreFile:
		if s.Dir == "" {
			return fmt.Errorf("%w: file store needs dir", ErrConfig)
		}
	case StoreSQLite:
		if s.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite store needs sqlite_path", ErrConfig)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("%w: unknown store kind %q", ErrConfig, s.Kind)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Target.KeyDateLayout == "" {
		cfg.Target.KeyDateLayout = "20060102_150405"
	}
	if cfg.Target.Format == "" {
		cfg.Target.Format = "parquet"
	}
	for _, s := range []*Store{&cfg.Source.Store, &cfg.Target.Store, &cfg.Meta.Store} {
		if s.Kind == "" {
			s.Kind = StoreS3
		}
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	// Credentials apply to every S3 store; they are rarely kept in the file.
	if v := os.Getenv("S3_ACCESS_KEY"); v != "" {
		cfg.Source.Store.AccessKey = v
		cfg.Target.Store.AccessKey = v
		cfg.Meta.Store.AccessKey = v
	}
	if v := os.Getenv("S3_SECRET_KEY"); v != "" {
		cfg.Source.Store.SecretKey = v
		cfg.Target.Store.SecretKey = v
		cfg.Meta.Store.SecretKey = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("FIRST_EXTRACT_DATE"); v != "" {
		cfg.Source.FirstExtractDate = v
	}

	if v := os.Getenv("META_KEY"); v != "" {
		cfg.Meta.Key = v
	}
}
