package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bravais-data/beamtrace/internal/locate"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for locate runs. The
// schema matches the /api/locate request body so the same JSON can be
// used for both startup configuration and per-run overrides.
type TuningConfig struct {
	// Locate params
	Method            *string  `json:"method,omitempty"`
	ThresholdMultiple *float64 `json:"threshold_multiple,omitempty"`
	MaskRadius        *float64 `json:"mask_radius,omitempty"`
	WindowSize        *int     `json:"window_size,omitempty"`
	DiscRadius        *int     `json:"disc_radius,omitempty"`
	Subpixel          *bool    `json:"subpixel,omitempty"`
	Preprocess        *string  `json:"preprocess,omitempty"`
	MinSigma          *float64 `json:"min_sigma,omitempty"`
	MaxSigma          *float64 `json:"max_sigma,omitempty"`
	Footprint         *int     `json:"footprint,omitempty"`

	// Scheduling params
	Workers     *int `json:"workers,omitempty"`
	ChunkFrames *int `json:"chunk_frames,omitempty"`

	// Store params
	DatabasePath *string `json:"database_path,omitempty"`
	RunRetention *string `json:"run_retention,omitempty"` // duration string like "720h"
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size. Fields omitted from the JSON file retain their
// default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.Method != nil && *c.Method != "" {
		if _, err := locate.ParseMethod(*c.Method); err != nil {
			return fmt.Errorf("invalid method %q: %w", *c.Method, err)
		}
	}

	if c.Preprocess != nil && *c.Preprocess != "" {
		if _, err := locate.ParsePreprocess(*c.Preprocess); err != nil {
			return fmt.Errorf("invalid preprocess %q: %w", *c.Preprocess, err)
		}
	}

	if c.ThresholdMultiple != nil && *c.ThresholdMultiple < 0 {
		return fmt.Errorf("threshold_multiple must be non-negative, got %f", *c.ThresholdMultiple)
	}

	if c.WindowSize != nil {
		if *c.WindowSize < 4 || *c.WindowSize%2 != 0 {
			return fmt.Errorf("window_size must be an even number >= 4, got %d", *c.WindowSize)
		}
	}

	if c.ChunkFrames != nil && *c.ChunkFrames < 1 {
		return fmt.Errorf("chunk_frames must be positive, got %d", *c.ChunkFrames)
	}

	if c.RunRetention != nil && *c.RunRetention != "" {
		if _, err := time.ParseDuration(*c.RunRetention); err != nil {
			return fmt.Errorf("invalid run_retention '%s': %w", *c.RunRetention, err)
		}
	}

	return nil
}

// GetMethod returns the configured locate method or the default.
func (c *TuningConfig) GetMethod() locate.Method {
	if c.Method == nil || *c.Method == "" {
		return locate.MethodCenterOfMass
	}
	m, err := locate.ParseMethod(*c.Method)
	if err != nil {
		return locate.MethodCenterOfMass
	}
	return m
}

// GetChunkFrames returns the chunk_frames value or the default.
func (c *TuningConfig) GetChunkFrames() int {
	if c.ChunkFrames == nil || *c.ChunkFrames < 1 {
		return 64
	}
	return *c.ChunkFrames
}

// GetDatabasePath returns the database_path value or the default.
func (c *TuningConfig) GetDatabasePath() string {
	if c.DatabasePath == nil || *c.DatabasePath == "" {
		return "beamtrace.db"
	}
	return *c.DatabasePath
}

// GetRunRetention parses and returns the RunRetention as a time.Duration.
func (c *TuningConfig) GetRunRetention() time.Duration {
	if c.RunRetention == nil || *c.RunRetention == "" {
		return 30 * 24 * time.Hour // default
	}
	d, err := time.ParseDuration(*c.RunRetention)
	if err != nil {
		return 30 * 24 * time.Hour // default on parse error
	}
	return d
}

// Options assembles a locate.Options from the configured values, leaving
// zero values for locate's own defaulting where a field is unset.
func (c *TuningConfig) Options() locate.Options {
	opts := locate.Options{}
	if c.ThresholdMultiple != nil {
		opts.ThresholdMultiple = *c.ThresholdMultiple
	}
	if c.MaskRadius != nil {
		opts.MaskRadius = *c.MaskRadius
	}
	if c.WindowSize != nil {
		opts.WindowSize = *c.WindowSize
	}
	if c.DiscRadius != nil {
		opts.DiscRadius = *c.DiscRadius
	}
	if c.Subpixel != nil {
		opts.Subpixel = *c.Subpixel
	} else {
		opts.Subpixel = true
	}
	if c.Preprocess != nil {
		opts.PreprocessName = *c.Preprocess
	}
	if c.MinSigma != nil {
		opts.MinSigma = *c.MinSigma
	}
	if c.MaxSigma != nil {
		opts.MaxSigma = *c.MaxSigma
	}
	if c.Footprint != nil {
		opts.Footprint = *c.Footprint
	}
	if c.Workers != nil {
		opts.Workers = *c.Workers
	}
	return opts
}
