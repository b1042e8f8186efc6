// Package config loads the application configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sandy7272/capture-3d/internal/prefs"
)

// Config represents the complete capture configuration
type Config struct {
	Capture  CaptureConfig  `yaml:"capture"`
	Flow     FlowConfig     `yaml:"flow"`
	Tutorial TutorialConfig `yaml:"tutorial"`
	Merge    MergeConfig    `yaml:"merge"`
	Output   OutputConfig   `yaml:"output"`
}

// CaptureConfig contains camera settings
type CaptureConfig struct {
	Device      string `yaml:"device"`       // camera device path
	Resolution  string `yaml:"resolution"`   // 720p, 1080p, 2160p
	FPS         int    `yaml:"fps"`          // target fps, 1-60
	BitrateKbps int    `yaml:"bitrate_kbps"` // encoder bitrate
}

// FlowConfig contains capture flow settings
type FlowConfig struct {
	Angles           int `yaml:"angles"`              // 3 or 4 (adds the detail angle)
	RecordDurationS  int `yaml:"record_duration_s"`   // per-angle auto-stop boundary
	SegmentIntervalS int `yaml:"segment_interval_s"`  // mid-recording signal spacing
	MinTakeDurationS int `yaml:"min_take_duration_s"` // validation hard gate
}

// TutorialConfig contains tutorial settings
type TutorialConfig struct {
	Narration bool   `yaml:"narration"` // voice the instruction decks
	PrefsDB   string `yaml:"prefs_db"`  // "don't show again" store path
}

// MergeConfig contains merge engine settings
type MergeConfig struct {
	FFmpeg  string `yaml:"ffmpeg"`  // binary name or path
	FFprobe string `yaml:"ffprobe"` // binary name or path
}

// OutputConfig contains export settings
type OutputConfig struct {
	Dir string `yaml:"dir"` // export destination directory
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields with working defaults
func (c *Config) ApplyDefaults() {
	if c.Capture.Device == "" {
		c.Capture.Device = "/dev/video0"
	}
	if c.Capture.Resolution == "" {
		c.Capture.Resolution = "1080p"
	}
	if c.Capture.FPS == 0 {
		c.Capture.FPS = 30
	}
	if c.Capture.BitrateKbps == 0 {
		c.Capture.BitrateKbps = 8000
	}
	if c.Flow.Angles == 0 {
		c.Flow.Angles = 3
	}
	if c.Flow.RecordDurationS == 0 {
		c.Flow.RecordDurationS = 30
	}
	if c.Flow.SegmentIntervalS == 0 {
		c.Flow.SegmentIntervalS = 10
	}
	if c.Flow.MinTakeDurationS == 0 {
		c.Flow.MinTakeDurationS = 3
	}
	if c.Tutorial.PrefsDB == "" {
		c.Tutorial.PrefsDB = prefs.DefaultDBPath()
	}
	if c.Merge.FFmpeg == "" {
		c.Merge.FFmpeg = "ffmpeg"
	}
	if c.Merge.FFprobe == "" {
		c.Merge.FFprobe = "ffprobe"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "."
	}
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	switch c.Capture.Resolution {
	case "720p", "1080p", "2160p":
	default:
		return fmt.Errorf("capture.resolution must be 720p, 1080p or 2160p, got %q", c.Capture.Resolution)
	}
	if c.Capture.FPS < 1 || c.Capture.FPS > 60 {
		return fmt.Errorf("capture.fps must be 1-60, got %d", c.Capture.FPS)
	}
	if c.Capture.BitrateKbps < 0 {
		return fmt.Errorf("capture.bitrate_kbps must not be negative, got %d", c.Capture.BitrateKbps)
	}
	if c.Flow.Angles < 3 || c.Flow.Angles > 4 {
		return fmt.Errorf("flow.angles must be 3 or 4, got %d", c.Flow.Angles)
	}
	if c.Flow.RecordDurationS < 1 {
		return fmt.Errorf("flow.record_duration_s must be positive, got %d", c.Flow.RecordDurationS)
	}
	if c.Flow.MinTakeDurationS < 1 {
		return fmt.Errorf("flow.min_take_duration_s must be positive, got %d", c.Flow.MinTakeDurationS)
	}
	if c.Flow.MinTakeDurationS > c.Flow.RecordDurationS {
		return fmt.Errorf("flow.min_take_duration_s (%d) exceeds record_duration_s (%d)",
			c.Flow.MinTakeDurationS, c.Flow.RecordDurationS)
	}
	if c.Flow.SegmentIntervalS < 1 || c.Flow.SegmentIntervalS > c.Flow.RecordDurationS {
		return fmt.Errorf("flow.segment_interval_s must be within the recording duration, got %d",
			c.Flow.SegmentIntervalS)
	}
	return nil
}

// RecordDuration returns the per-angle auto-stop boundary
func (c *Config) RecordDuration() time.Duration {
	return time.Duration(c.Flow.RecordDurationS) * time.Second
}

// SegmentInterval returns the mid-recording signal spacing
func (c *Config) SegmentInterval() time.Duration {
	return time.Duration(c.Flow.SegmentIntervalS) * time.Second
}

// MinTakeDuration returns the validation hard gate
func (c *Config) MinTakeDuration() time.Duration {
	return time.Duration(c.Flow.MinTakeDurationS) * time.Second
}
