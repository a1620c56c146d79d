// Package config loads the verification engine's configuration.
// TOML is the primary format, YAML is accepted for compatibility with
// older installs; unknown extensions try both.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the engine configuration.
type Config struct {
	Replay       ReplayConfig       `toml:"replay" yaml:"replay"`
	Verification VerificationConfig `toml:"verification" yaml:"verification"`
	Archive      ArchiveConfig      `toml:"archive" yaml:"archive"`
	Logging      LoggingConfig      `toml:"logging" yaml:"logging"`
}

// ReplayConfig tunes content reconstruction.
type ReplayConfig struct {
	// SnapshotInterval is how many resolved indices pass between
	// memoized content snapshots.
	SnapshotInterval int `toml:"snapshot_interval" yaml:"snapshot_interval"`
}

// VerificationConfig tunes the verification pipeline.
type VerificationConfig struct {
	// SampleCoverage is the fraction of checkpoint segments a sampled
	// verification recomputes, (0, 1].
	SampleCoverage float64 `toml:"sample_coverage" yaml:"sample_coverage"`

	// PoSW calibration for timing checks.
	IterationsPerSecond uint64 `toml:"iterations_per_second" yaml:"iterations_per_second"`
	MinIterations       uint64 `toml:"min_iterations" yaml:"min_iterations"`
	MaxIterations       uint64 `toml:"max_iterations" yaml:"max_iterations"`
}

// ArchiveConfig controls the verification archive database.
type ArchiveConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// LoggingConfig mirrors logging.Config in file form.
type LoggingConfig struct {
	Level    string `toml:"level" yaml:"level"`
	Format   string `toml:"format" yaml:"format"`
	Output   string `toml:"output" yaml:"output"`
	FilePath string `toml:"file_path" yaml:"file_path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Replay: ReplayConfig{
			SnapshotInterval: 100,
		},
		Verification: VerificationConfig{
			SampleCoverage:      0.2,
			IterationsPerSecond: 1_000_000,
			MinIterations:       1_000,
			MaxIterations:       600_000_000,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Path:    defaultArchivePath(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

func defaultArchivePath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, _ := os.UserHomeDir()
		dataHome = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataHome, "typedcode", "verifications.db")
}

// Load reads a configuration file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse TOML config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse YAML config: %w", err)
		}
	default:
		// Unknown extension: TOML first, then YAML.
		if _, terr := toml.Decode(string(data), cfg); terr != nil {
			if yerr := yaml.Unmarshal(data, cfg); yerr != nil {
				return nil, fmt.Errorf("config is neither TOML (%v) nor YAML (%v)", terr, yerr)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot run
// with.
func (c *Config) Validate() error {
	var errs []error

	if c.Replay.SnapshotInterval <= 0 {
		errs = append(errs, fmt.Errorf("replay.snapshot_interval must be positive, got %d", c.Replay.SnapshotInterval))
	}
	if c.Verification.SampleCoverage <= 0 || c.Verification.SampleCoverage > 1 {
		errs = append(errs, fmt.Errorf("verification.sample_coverage must be in (0, 1], got %g", c.Verification.SampleCoverage))
	}
	if c.Verification.IterationsPerSecond == 0 {
		errs = append(errs, errors.New("verification.iterations_per_second must be positive"))
	}
	if c.Verification.MaxIterations < c.Verification.MinIterations {
		errs = append(errs, errors.New("verification.max_iterations below min_iterations"))
	}
	if c.Archive.Enabled && c.Archive.Path == "" {
		errs = append(errs, errors.New("archive.path required when archive.enabled"))
	}

	return errors.Join(errs...)
}
