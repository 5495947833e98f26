package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bravais-data/beamtrace/internal/locate"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "method": "cross_correlate",
  "disc_radius": 6,
  "subpixel": false,
  "preprocess": "median",
  "footprint": 9,
  "workers": 4,
  "chunk_frames": 32,
  "database_path": "/tmp/runs.db",
  "run_retention": "48h"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetMethod() != locate.MethodCrossCorrelate {
		t.Errorf("GetMethod() = %v, want cross_correlate", cfg.GetMethod())
	}
	if cfg.DiscRadius == nil || *cfg.DiscRadius != 6 {
		t.Errorf("DiscRadius = %v, want 6", cfg.DiscRadius)
	}
	if cfg.Subpixel == nil || *cfg.Subpixel != false {
		t.Errorf("Subpixel = %v, want false", cfg.Subpixel)
	}
	if cfg.GetChunkFrames() != 32 {
		t.Errorf("GetChunkFrames() = %d, want 32", cfg.GetChunkFrames())
	}
	if cfg.GetDatabasePath() != "/tmp/runs.db" {
		t.Errorf("GetDatabasePath() = %q, want /tmp/runs.db", cfg.GetDatabasePath())
	}
	if cfg.GetRunRetention() != 48*time.Hour {
		t.Errorf("GetRunRetention() = %v, want 48h", cfg.GetRunRetention())
	}

	opts := cfg.Options()
	if opts.DiscRadius != 6 || opts.Subpixel || opts.PreprocessName != "median" || opts.Footprint != 9 || opts.Workers != 4 {
		t.Errorf("Options() = %+v, want configured overrides applied", opts)
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "disc_radius": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{
			name:    "empty config is valid",
			cfg:     &TuningConfig{},
			wantErr: false,
		},
		{
			name: "unknown method",
			cfg: &TuningConfig{
				Method: ptrString("hough"),
			},
			wantErr: true,
		},
		{
			name: "unknown preprocess",
			cfg: &TuningConfig{
				Preprocess: ptrString("wavelet"),
			},
			wantErr: true,
		},
		{
			name: "negative threshold",
			cfg: &TuningConfig{
				ThresholdMultiple: ptrFloat64(-0.5),
			},
			wantErr: true,
		},
		{
			name: "odd window size",
			cfg: &TuningConfig{
				WindowSize: ptrInt(7),
			},
			wantErr: true,
		},
		{
			name: "zero chunk frames",
			cfg: &TuningConfig{
				ChunkFrames: ptrInt(0),
			},
			wantErr: true,
		},
		{
			name: "invalid run retention",
			cfg: &TuningConfig{
				RunRetention: ptrString("invalid"),
			},
			wantErr: true,
		},
		{
			name: "valid overrides",
			cfg: &TuningConfig{
				Method:     ptrString("refined_center_of_mass"),
				WindowSize: ptrInt(12),
				Subpixel:   ptrBool(true),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetRunRetention(t *testing.T) {
	tests := []struct {
		name string
		cfg  *TuningConfig
		want time.Duration
	}{
		{
			name: "48 hours",
			cfg:  &TuningConfig{RunRetention: ptrString("48h")},
			want: 48 * time.Hour,
		},
		{
			name: "nil pointer returns default",
			cfg:  &TuningConfig{},
			want: 30 * 24 * time.Hour,
		},
		{
			name: "empty string returns default",
			cfg:  &TuningConfig{RunRetention: ptrString("")},
			want: 30 * 24 * time.Hour,
		},
		{
			name: "invalid duration returns default",
			cfg:  &TuningConfig{RunRetention: ptrString("invalid")},
			want: 30 * 24 * time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetRunRetention(); got != tt.want {
				t.Errorf("GetRunRetention() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.GetMethod() != locate.MethodCenterOfMass {
		t.Errorf("Expected center_of_mass, got %v", cfg.GetMethod())
	}
	if cfg.GetChunkFrames() != 64 {
		t.Errorf("Expected 64, got %d", cfg.GetChunkFrames())
	}
}

func TestLoadTuningConfigPartial(t *testing.T) {
	// Partial config: only override the method; everything else keeps
	// its default.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	partialJSON := `{
  "method": "refined_center_of_mass"
}`
	if err := os.WriteFile(configPath, []byte(partialJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load partial config: %v", err)
	}

	if cfg.GetMethod() != locate.MethodRefinedCenterOfMass {
		t.Errorf("Expected overridden method, got %v", cfg.GetMethod())
	}
	if cfg.GetChunkFrames() != 64 {
		t.Errorf("Expected default ChunkFrames 64, got %d", cfg.GetChunkFrames())
	}
	if cfg.GetDatabasePath() != "beamtrace.db" {
		t.Errorf("Expected default DatabasePath, got %q", cfg.GetDatabasePath())
	}
	if !cfg.Options().Subpixel {
		t.Error("Expected default Subpixel true")
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadTuningConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}
