// Package config loads the Hybrid Field-Detection Core's runtime
// configuration: detector thresholds, the vision provider, persistence
// and HTTP listen addresses. Values come from environment variables
// (bound through viper) with defaults matching spec §6's "Environment
// toggles", in the validated-struct style of the original MCP reader's
// own config package.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

const (
	// DefaultRenderDPI is the page-raster resolution per spec §4.2.
	DefaultRenderDPI = 144

	// DefaultIoUThreshold is the ensemble-merger overlap threshold (§4.6).
	DefaultIoUThreshold = 0.30

	// DefaultTextOverlapThreshold is the text-overlap filter threshold (§4.7).
	DefaultTextOverlapThreshold = 0.30

	// DefaultVisionConfidence is the confidence assigned to every vision
	// detection (§4.5); kept configurable per the §9 open question.
	DefaultVisionConfidence = 0.85

	// DefaultVisionDPI is the raster resolution sent to the vision provider (§4.5).
	DefaultVisionDPI = 150

	// DefaultHTTPAddr is the worker's HTTP listen address.
	DefaultHTTPAddr = "127.0.0.1:8090"
)

// VisionProvider identifies which vision backend to call.
type VisionProvider string

const (
	VisionProviderOpenAI VisionProvider = "openai"
	VisionProviderGemini VisionProvider = "gemini"
	VisionProviderNone   VisionProvider = ""
)

// Config holds all runtime configuration for the detection core and worker.
type Config struct {
	// Detector tuning.
	RenderDPI            int
	IoUThreshold         float64
	TextOverlapThreshold float64
	VisionConfidence     float64
	VisionDPI            int

	// Vision provider.
	VisionProvider VisionProvider
	VisionAPIKey   string
	VisionModel    string

	// Worker surface.
	HTTPAddr string

	// Persistence.
	DatabaseDSN string

	// Object storage root for the local-filesystem Blobs implementation.
	StorageDir string

	Debug bool
}

// DefaultConfig returns a Config with the defaults named throughout spec §4/§6.
func DefaultConfig() *Config {
	return &Config{
		RenderDPI:            DefaultRenderDPI,
		IoUThreshold:         DefaultIoUThreshold,
		TextOverlapThreshold: DefaultTextOverlapThreshold,
		VisionConfidence:     DefaultVisionConfidence,
		VisionDPI:            DefaultVisionDPI,
		VisionProvider:       VisionProviderNone,
		HTTPAddr:             DefaultHTTPAddr,
		StorageDir:           "./data/storage",
	}
}

// Load builds a Config from environment variables via viper: it starts from
// DefaultConfig() and overrides each value set in a FIELDSCAN_* variable.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("FIELDSCAN")
	v.AutomaticEnv()

	v.SetDefault("render_dpi", cfg.RenderDPI)
	v.SetDefault("iou_threshold", cfg.IoUThreshold)
	v.SetDefault("text_overlap_threshold", cfg.TextOverlapThreshold)
	v.SetDefault("vision_confidence", cfg.VisionConfidence)
	v.SetDefault("vision_dpi", cfg.VisionDPI)
	v.SetDefault("vision_provider", string(cfg.VisionProvider))
	v.SetDefault("http_addr", cfg.HTTPAddr)
	v.SetDefault("storage_dir", cfg.StorageDir)
	v.SetDefault("debug", cfg.Debug)

	cfg.RenderDPI = v.GetInt("render_dpi")
	cfg.IoUThreshold = v.GetFloat64("iou_threshold")
	cfg.TextOverlapThreshold = v.GetFloat64("text_overlap_threshold")
	cfg.VisionConfidence = v.GetFloat64("vision_confidence")
	cfg.VisionDPI = v.GetInt("vision_dpi")
	cfg.VisionProvider = VisionProvider(v.GetString("vision_provider"))
	cfg.VisionAPIKey = v.GetString("vision_api_key")
	cfg.VisionModel = v.GetString("vision_model")
	cfg.HTTPAddr = v.GetString("http_addr")
	cfg.DatabaseDSN = v.GetString("database_dsn")
	cfg.StorageDir = v.GetString("storage_dir")
	cfg.Debug = v.GetBool("debug")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that every threshold and provider value is usable.
func (c *Config) Validate() error {
	if c.RenderDPI <= 0 {
		return errors.New("render DPI must be positive")
	}
	if c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		return errors.New("IoU threshold must be in [0, 1]")
	}
	c.TextOverlapThreshold = clamp01(c.TextOverlapThreshold)
	if c.VisionConfidence < 0 || c.VisionConfidence > 1 {
		return errors.New("vision confidence must be in [0, 1]")
	}
	switch c.VisionProvider {
	case VisionProviderNone, VisionProviderOpenAI, VisionProviderGemini:
	default:
		return fmt.Errorf("unsupported vision provider: %s", c.VisionProvider)
	}
	if c.HTTPAddr == "" {
		return errors.New("HTTP address cannot be empty")
	}
	return nil
}

// VisionEnabled reports whether a vision provider is configured.
func (c *Config) VisionEnabled() bool {
	return c.VisionProvider != VisionProviderNone && c.VisionAPIKey != ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
