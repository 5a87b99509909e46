// Package config loads the firedesk.yaml target configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/firedesk/internal/store"
)

// DefaultPath is the config file read when none is named.
const DefaultPath = "firedesk.yaml"

// Environment overrides.
const (
	TargetEnv       = "FIREDESK_TARGET"
	EmulatorHostEnv = "FIRESTORE_EMULATOR_HOST"
)

// Drivers.
const (
	DriverFirestore = "firestore"
	DriverSQLite    = "sqlite"
)

// LocalTarget is the name of the target in the default configuration.
const LocalTarget = "local"

// Config is the parsed configuration file.
type Config struct {
	// DefaultTarget names the target used when none is given.
	DefaultTarget string `yaml:"default_target"`

	Targets []Target `yaml:"targets"`

	Batch  BatchConfig  `yaml:"batch,omitempty"`
	Listen ListenConfig `yaml:"listen,omitempty"`
}

// Target is one named document store.
type Target struct {
	Name   string `yaml:"name"`
	Driver string `yaml:"driver"`

	// Firestore.
	ProjectID       string `yaml:"project_id,omitempty"`
	DatabaseID      string `yaml:"database_id,omitempty"`
	EmulatorHost    string `yaml:"emulator_host,omitempty"`
	CredentialsFile string `yaml:"credentials_file,omitempty"`

	// SQLite. Empty means a private in-memory database.
	DSN string `yaml:"dsn,omitempty"`
}

// BatchConfig tunes bulk writes.
type BatchConfig struct {
	Limit               int `yaml:"limit,omitempty"`
	MaxConcurrentChunks int `yaml:"max_concurrent_chunks,omitempty"`
}

// ListenConfig tunes live subscriptions.
type ListenConfig struct {
	IncludeSubcollections bool          `yaml:"include_subcollections,omitempty"`
	RetryInitial          time.Duration `yaml:"retry_initial,omitempty"`
	RetryMax              time.Duration `yaml:"retry_max,omitempty"`
}

// Default returns the configuration used when no file exists: one local
// sqlite target backed by firedesk.db in the working directory.
func Default() *Config {
	return &Config{
		DefaultTarget: LocalTarget,
		Targets: []Target{
			{Name: LocalTarget, Driver: DriverSQLite, DSN: "firedesk.db"},
		},
	}
}

// Load reads the configuration at path. A missing file yields Default().
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates configuration text.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(cfg.Targets) == 1 && cfg.DefaultTarget == "" {
		cfg.DefaultTarget = cfg.Targets[0].Name
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv applies environment overrides read through getenv:
// FIREDESK_TARGET selects the default target and FIRESTORE_EMULATOR_HOST
// points every firestore target without an emulator host at the emulator.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if name := getenv(TargetEnv); name != "" {
		c.DefaultTarget = name
	}
	if host := getenv(EmulatorHostEnv); host != "" {
		for i := range c.Targets {
			if c.Targets[i].Driver == DriverFirestore && c.Targets[i].EmulatorHost == "" {
				c.Targets[i].EmulatorHost = host
			}
		}
	}
}

// Validate checks target definitions and tuning values.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("targets list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(c.Targets))
	for i, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("targets[%d]: name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("targets[%d]: duplicate target name %q", i, t.Name)
		}
		seen[t.Name] = true

		switch t.Driver {
		case DriverFirestore:
			if t.ProjectID == "" {
				return fmt.Errorf("targets[%d]: project_id is required for the firestore driver", i)
			}
		case DriverSQLite:
		default:
			return fmt.Errorf("targets[%d]: driver must be %q or %q, got %q", i, DriverFirestore, DriverSQLite, t.Driver)
		}
	}

	if c.DefaultTarget != "" && !seen[c.DefaultTarget] {
		return fmt.Errorf("default_target %q is not a defined target", c.DefaultTarget)
	}

	if c.Batch.Limit < 0 || c.Batch.Limit > store.MaxBatchWrites {
		return fmt.Errorf("batch.limit must be between 0 and %d, got %d", store.MaxBatchWrites, c.Batch.Limit)
	}
	if c.Batch.MaxConcurrentChunks < 0 {
		return fmt.Errorf("batch.max_concurrent_chunks must not be negative")
	}
	if c.Listen.RetryInitial < 0 || c.Listen.RetryMax < 0 {
		return fmt.Errorf("listen retry intervals must not be negative")
	}
	return nil
}

// Target returns the named target, or the default target for "".
func (c *Config) Target(name string) (Target, error) {
	if name == "" {
		name = c.DefaultTarget
	}
	if name == "" {
		return Target{}, fmt.Errorf("no target named and no default_target configured")
	}
	for _, t := range c.Targets {
		if t.Name == name {
			return t, nil
		}
	}
	return Target{}, fmt.Errorf("unknown target %q", name)
}
