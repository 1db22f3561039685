package config

import "testing"

func TestLoad_DefaultConfig(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.RenderDPI != DefaultRenderDPI {
		t.Errorf("Load() RenderDPI = %v, want %v", cfg.RenderDPI, DefaultRenderDPI)
	}
	if cfg.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("Load() HTTPAddr = %v, want %v", cfg.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.VisionProvider != VisionProviderNone {
		t.Errorf("Load() VisionProvider = %v, want none", cfg.VisionProvider)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FIELDSCAN_RENDER_DPI", "300")
	t.Setenv("FIELDSCAN_IOU_THRESHOLD", "0.5")
	t.Setenv("FIELDSCAN_VISION_PROVIDER", "openai")
	t.Setenv("FIELDSCAN_VISION_API_KEY", "sk-test")
	t.Setenv("FIELDSCAN_HTTP_ADDR", "0.0.0.0:9000")
	t.Setenv("FIELDSCAN_DEBUG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.RenderDPI != 300 {
		t.Errorf("Load() RenderDPI = %v, want 300", cfg.RenderDPI)
	}
	if cfg.IoUThreshold != 0.5 {
		t.Errorf("Load() IoUThreshold = %v, want 0.5", cfg.IoUThreshold)
	}
	if cfg.VisionProvider != VisionProviderOpenAI {
		t.Errorf("Load() VisionProvider = %v, want openai", cfg.VisionProvider)
	}
	if !cfg.VisionEnabled() {
		t.Error("Load() expected VisionEnabled() to be true with provider+key set")
	}
	if cfg.HTTPAddr != "0.0.0.0:9000" {
		t.Errorf("Load() HTTPAddr = %v, want 0.0.0.0:9000", cfg.HTTPAddr)
	}
	if !cfg.Debug {
		t.Error("Load() Debug = false, want true")
	}
}

func TestLoad_InvalidEnvFailsValidation(t *testing.T) {
	t.Setenv("FIELDSCAN_VISION_PROVIDER", "anthropic")

	cfg, err := Load()
	if err == nil {
		t.Error("Load() expected error for unsupported vision provider but got none")
	}
	if cfg != nil {
		t.Errorf("Load() expected nil config on error, got %v", cfg)
	}
}

func TestLoad_NegativeRenderDPIFails(t *testing.T) {
	t.Setenv("FIELDSCAN_RENDER_DPI", "-1")

	_, err := Load()
	if err == nil {
		t.Error("Load() expected error for negative render DPI but got none")
	}
}
