// Package config holds the run configuration for meddevices.
//
// The configuration is organized into sections:
//   - Log: logger level and encoding
//   - HTTP: client tuning for listing pages and archive downloads
//   - Mongo: destination host, port, database and batching
//   - Endpoints: overrides for the dataset download locations
//
// Mongo settings are validated separately because only the load command
// uses them.
//
// Example usage:
//
//	cfg := config.Default()
//	cfg.Mongo.Database = "fda"
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Mongo.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"net/netip"
	"strings"
	"time"

	"github.com/ajitpratap0/meddevices/pkg/errors"
	"github.com/ajitpratap0/meddevices/pkg/logger"
)

const (
	// DefaultDataDir is the cache root used when none is configured
	DefaultDataDir = "data"
	// DefaultMongoPort is the standard mongod port
	DefaultMongoPort = 27017
	// DefaultDatabase is the database the loader writes into
	DefaultDatabase = "medical_devices"
	// MaxPort is the largest valid TCP port
	MaxPort = 65535
)

// Config is the top level configuration for a run.
type Config struct {
	// DataDir is the root of the local download cache
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// Release selects the GUDID full release (YYYYMMDD). Empty means the
	// CLI derives it from the wall clock.
	Release string `yaml:"release" json:"release"`
	// LegacyGUDID switches GUDID to the paginated JSON listing
	LegacyGUDID bool `yaml:"legacy_gudid" json:"legacy_gudid"`

	Log   logger.Config `yaml:"log" json:"log"`
	HTTP  HTTPConfig    `yaml:"http" json:"http"`
	Mongo MongoConfig   `yaml:"mongo" json:"mongo"`

	Endpoints EndpointsConfig `yaml:"endpoints,omitempty" json:"endpoints,omitempty"`
}

// EndpointsConfig overrides where datasets are downloaded from. Empty
// fields keep the public FDA and NLM locations.
type EndpointsConfig struct {
	// GUDIDRelease is the directory holding the full release ZIPs
	GUDIDRelease string `yaml:"gudid_release,omitempty" json:"gudid_release,omitempty"`
	// GUDIDListing is the paginated implantable device listing
	GUDIDListing string `yaml:"gudid_listing,omitempty" json:"gudid_listing,omitempty"`
	// Premarket is the directory holding the 510(k) era and PMA ZIPs.
	// Directory URLs must end in a slash.
	Premarket string `yaml:"premarket,omitempty" json:"premarket,omitempty"`
}

// HTTPConfig tunes the download client
type HTTPConfig struct {
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	// RequestTimeout applies to listing requests. Zero disables it.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	// ArchiveTimeout applies to ZIP downloads. Zero disables it.
	ArchiveTimeout  time.Duration `yaml:"archive_timeout" json:"archive_timeout"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout" json:"idle_conn_timeout"`
	EnableHTTP2     bool          `yaml:"enable_http2" json:"enable_http2"`
}

// MongoConfig describes the load destination
type MongoConfig struct {
	Host           string        `yaml:"host" json:"host"`
	Port           int           `yaml:"port" json:"port"`
	Database       string        `yaml:"database" json:"database"`
	BatchSize      int           `yaml:"batch_size" json:"batch_size"`
	ProgressEvery  int           `yaml:"progress_every" json:"progress_every"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// Default returns a configuration with every field populated
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir,
		Log: logger.Config{
			Level:    "info",
			Encoding: "console",
		},
		HTTP: HTTPConfig{
			UserAgent:       "meddevices/1.0",
			RequestTimeout:  time.Minute,
			ArchiveTimeout:  0,
			MaxIdleConns:    100,
			IdleConnTimeout: 90 * time.Second,
			EnableHTTP2:     true,
		},
		Mongo: MongoConfig{
			Host:           "localhost",
			Port:           DefaultMongoPort,
			Database:       DefaultDatabase,
			BatchSize:      1000,
			ProgressEvery:  100_000,
			ConnectTimeout: 10 * time.Second,
		},
	}
}

// Validate checks every section except Mongo
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New(errors.ErrorTypeConfig, "data_dir is required")
	}
	if c.Release != "" {
		if _, err := time.Parse("20060102", c.Release); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "release must be YYYYMMDD").
				WithDetail("release", c.Release)
		}
	}
	if c.HTTP.RequestTimeout < 0 || c.HTTP.ArchiveTimeout < 0 {
		return errors.New(errors.ErrorTypeConfig, "http timeouts cannot be negative")
	}
	return nil
}

// Validate checks the destination settings and normalizes host and port
func (m *MongoConfig) Validate() error {
	host, err := ValidateHost(m.Host)
	if err != nil {
		return err
	}
	port, err := ValidatePort(m.Port)
	if err != nil {
		return err
	}
	m.Host = host
	m.Port = port
	if err := ValidateDatabaseName(m.Database); err != nil {
		return err
	}
	if m.BatchSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "mongo batch_size must be positive")
	}
	if m.ProgressEvery < 0 {
		return errors.New(errors.ErrorTypeConfig, "mongo progress_every cannot be negative")
	}
	return nil
}

// ValidateHost accepts "localhost" or a literal IP address and returns
// the address in canonical form.
func ValidateHost(host string) (string, error) {
	if host == "localhost" {
		return host, nil
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeValidation, "host must be an IP address or localhost").
			WithDetail("host", host)
	}
	return addr.String(), nil
}

// NormalizePort returns the absolute value of port
func NormalizePort(port int) int {
	if port < 0 {
		return -port
	}
	return port
}

// ValidatePort normalizes port and checks it is a usable TCP port
func ValidatePort(port int) (int, error) {
	p := NormalizePort(port)
	if p == 0 || p > MaxPort {
		return 0, errors.Newf(errors.ErrorTypeValidation, "port must be between 1 and %d", MaxPort).
			WithDetail("port", port)
	}
	return p, nil
}

// ValidateDatabaseName applies MongoDB's naming rules
func ValidateDatabaseName(name string) error {
	switch {
	case name == "":
		return errors.New(errors.ErrorTypeValidation, "database name cannot be empty")
	case name[0] == '$':
		return errors.New(errors.ErrorTypeValidation, `database name cannot start with "$"`)
	case strings.Contains(name, "."):
		return errors.New(errors.ErrorTypeValidation, `database name cannot contain "."`)
	}
	return nil
}
