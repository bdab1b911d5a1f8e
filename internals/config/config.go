// Package config loads the service configuration from defaults, an optional
// YAML file and ARCHIVE_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "ARCHIVE"

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// TmpDir holds one workspace per request.
	TmpDir           string
	TmpSweepInterval time.Duration
	TmpMaxAge        time.Duration

	MaxUploadSize     int64
	MaxExtractedSize  int64
	MaxDepth          int
	ExportConcurrency int
	NameLimit         int

	AllowedOrigins []string
	JWTSecret      string
	// RateLimit requests per RateWindow are allowed, a client going over
	// is blocked for RateBlock.
	RateLimit  int
	RateWindow time.Duration
	RateBlock  time.Duration

	Store StoreConfig
	Blob  BlobConfig
}

type StoreConfig struct {
	// Driver is postgres, sqlite or badger.
	Driver string
	DSN    string
	// Path is the sqlite file or the badger directory.
	Path string
}

type BlobConfig struct {
	// Driver is local or s3.
	Driver    string
	Root      string
	Prefix    string
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("tmp_dir", "tmp")
	v.SetDefault("tmp_sweep_interval", "10m")
	v.SetDefault("tmp_max_age", "1h")

	v.SetDefault("max_upload_size", 250<<20)
	v.SetDefault("max_extracted_size", 1<<30)
	v.SetDefault("max_depth", 128)
	v.SetDefault("export_concurrency", 4)
	v.SetDefault("name_limit", 100)

	v.SetDefault("allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("rate_limit", 100)
	v.SetDefault("rate_window", "90s")
	v.SetDefault("rate_block", "5m")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "data/items.db")

	v.SetDefault("blob.driver", "local")
	v.SetDefault("blob.root", "data/files")
	v.SetDefault("blob.prefix", "files")
	v.SetDefault("blob.region", "auto")
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:        v.GetString("port"),
		Environment: v.GetString("environment"),
		LogLevel:    v.GetString("log_level"),

		TmpDir:           v.GetString("tmp_dir"),
		TmpSweepInterval: v.GetDuration("tmp_sweep_interval"),
		TmpMaxAge:        v.GetDuration("tmp_max_age"),

		MaxUploadSize:     v.GetInt64("max_upload_size"),
		MaxExtractedSize:  v.GetInt64("max_extracted_size"),
		MaxDepth:          v.GetInt("max_depth"),
		ExportConcurrency: v.GetInt("export_concurrency"),
		NameLimit:         v.GetInt("name_limit"),

		AllowedOrigins: splitList(v.GetStringSlice("allowed_origins")),
		JWTSecret:      v.GetString("jwt_secret"),
		RateLimit:      v.GetInt("rate_limit"),
		RateWindow:     v.GetDuration("rate_window"),
		RateBlock:      v.GetDuration("rate_block"),

		Store: StoreConfig{
			Driver: v.GetString("store.driver"),
			DSN:    v.GetString("store.dsn"),
			Path:   v.GetString("store.path"),
		},
		Blob: BlobConfig{
			Driver:    v.GetString("blob.driver"),
			Root:      v.GetString("blob.root"),
			Prefix:    v.GetString("blob.prefix"),
			Bucket:    v.GetString("blob.bucket"),
			Region:    v.GetString("blob.region"),
			Endpoint:  v.GetString("blob.endpoint"),
			AccessKey: v.GetString("blob.access_key"),
			SecretKey: v.GetString("blob.secret_key"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// splitList accepts both YAML lists and comma separated environment values.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if c.TmpDir == "" {
		errs = append(errs, errors.New("tmp_dir is required"))
	}
	if c.TmpSweepInterval <= 0 || c.TmpMaxAge <= 0 {
		errs = append(errs, errors.New("tmp_sweep_interval and tmp_max_age must be positive"))
	}
	if c.MaxUploadSize <= 0 || c.MaxExtractedSize <= 0 {
		errs = append(errs, errors.New("max_upload_size and max_extracted_size must be positive"))
	}
	if c.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("max_depth must be at least 1, got %d", c.MaxDepth))
	}
	if c.ExportConcurrency < 1 {
		errs = append(errs, fmt.Errorf("export_concurrency must be at least 1, got %d", c.ExportConcurrency))
	}
	if c.NameLimit < 1 {
		errs = append(errs, fmt.Errorf("name_limit must be at least 1, got %d", c.NameLimit))
	}
	if c.RateLimit < 1 || c.RateWindow <= 0 || c.RateBlock < 0 {
		errs = append(errs, errors.New("rate_limit and rate_window must be positive"))
	}
	if c.IsProduction() && c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret is required in production"))
	}

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the postgres store"))
		}
	case "sqlite", "badger":
		if c.Store.Path == "" {
			errs = append(errs, fmt.Errorf("store.path is required for the %s store", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	switch c.Blob.Driver {
	case "local":
		if c.Blob.Root == "" {
			errs = append(errs, errors.New("blob.root is required for local storage"))
		}
	case "s3":
		if c.Blob.Bucket == "" {
			errs = append(errs, errors.New("blob.bucket is required for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob driver %q", c.Blob.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
