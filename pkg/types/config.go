package types

import (
	"errors"
	"path/filepath"
)

// Config holds backend selection and parameters for opening a database.
type Config struct {
	Backend  string `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir  string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	Database string `json:"database" yaml:"database" mapstructure:"database"`
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// DefaultDatabase is the database file name used when Config.Database is empty.
const DefaultDatabase = "simpledb.db"

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	return nil
}

// DatabaseFile returns the path of the database file: Database, or
// DefaultDatabase, under DataDir. An absolute Database is used as is.
func (c Config) DatabaseFile() string {
	name := c.Database
	if name == "" {
		name = DefaultDatabase
	}
	if filepath.IsAbs(name) || c.DataDir == "" {
		return name
	}
	return filepath.Join(c.DataDir, name)
}
