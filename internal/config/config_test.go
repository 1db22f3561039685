package config

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.RenderDPI != DefaultRenderDPI {
		t.Errorf("Expected default render DPI to be %d, got %d", DefaultRenderDPI, cfg.RenderDPI)
	}
	if cfg.IoUThreshold != DefaultIoUThreshold {
		t.Errorf("Expected default IoU threshold to be %v, got %v", DefaultIoUThreshold, cfg.IoUThreshold)
	}
	if cfg.VisionProvider != VisionProviderNone {
		t.Errorf("Expected default vision provider to be none, got %q", cfg.VisionProvider)
	}
	if cfg.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("Expected default HTTP addr to be %q, got %q", DefaultHTTPAddr, cfg.HTTPAddr)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "valid default config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name: "negative render dpi",
			config: &Config{
				RenderDPI:      -1,
				VisionProvider: VisionProviderNone,
				HTTPAddr:       "127.0.0.1:8090",
			},
			wantErr: true,
		},
		{
			name: "iou threshold out of range",
			config: &Config{
				RenderDPI:      144,
				IoUThreshold:   1.5,
				VisionProvider: VisionProviderNone,
				HTTPAddr:       "127.0.0.1:8090",
			},
			wantErr: true,
		},
		{
			name: "vision confidence out of range",
			config: &Config{
				RenderDPI:        144,
				VisionConfidence: -0.1,
				VisionProvider:   VisionProviderNone,
				HTTPAddr:         "127.0.0.1:8090",
			},
			wantErr: true,
		},
		{
			name: "unsupported vision provider",
			config: &Config{
				RenderDPI:      144,
				VisionProvider: "anthropic",
				HTTPAddr:       "127.0.0.1:8090",
			},
			wantErr: true,
		},
		{
			name: "empty http addr",
			config: &Config{
				RenderDPI:      144,
				VisionProvider: VisionProviderNone,
				HTTPAddr:       "",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateClampsTextOverlapThreshold(t *testing.T) {
	cfg := &Config{
		RenderDPI:            144,
		TextOverlapThreshold: 1.8,
		VisionProvider:       VisionProviderNone,
		HTTPAddr:             "127.0.0.1:8090",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Config.Validate() returned error: %v", err)
	}
	if cfg.TextOverlapThreshold != 1 {
		t.Errorf("Expected text overlap threshold to be clamped to 1, got %v", cfg.TextOverlapThreshold)
	}
}

func TestVisionEnabled(t *testing.T) {
	tests := []struct {
		name     string
		provider VisionProvider
		apiKey   string
		want     bool
	}{
		{"no provider", VisionProviderNone, "", false},
		{"provider without key", VisionProviderOpenAI, "", false},
		{"provider with key", VisionProviderOpenAI, "sk-test", true},
		{"gemini with key", VisionProviderGemini, "key", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{VisionProvider: tt.provider, VisionAPIKey: tt.apiKey}
			if got := cfg.VisionEnabled(); got != tt.want {
				t.Errorf("Config.VisionEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}
