package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load returned error for missing file: %v", err)
	}
	def := Default()
	if cfg.Window.Width != def.Window.Width || cfg.Window.Height != def.Window.Height {
		t.Errorf("window defaults not applied: got %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
	if cfg.Renderer.FramesInFlight != 2 {
		t.Errorf("frames_in_flight default = %d, want 2", cfg.Renderer.FramesInFlight)
	}
}

func TestLoadOverridesAndClamps(t *testing.T) {
	tests := []struct {
		name       string
		toml       string
		wantFrames uint8
		wantWidth  uint32
	}{
		{
			name:       "overrides applied",
			toml:       "[window]\nwidth = 800\nheight = 600\n[renderer]\nframes_in_flight = 3\n",
			wantFrames: 3,
			wantWidth:  800,
		},
		{
			name:       "frames clamped high",
			toml:       "[renderer]\nframes_in_flight = 9\n",
			wantFrames: 3,
			wantWidth:  1280,
		},
		{
			name:       "frames clamped low",
			toml:       "[renderer]\nframes_in_flight = 0\n",
			wantFrames: 1,
			wantWidth:  1280,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "diffuse.toml")
			if err := os.WriteFile(path, []byte(tt.toml), 0o644); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Renderer.FramesInFlight != tt.wantFrames {
				t.Errorf("FramesInFlight = %d, want %d", cfg.Renderer.FramesInFlight, tt.wantFrames)
			}
			if cfg.Window.Width != tt.wantWidth {
				t.Errorf("Width = %d, want %d", cfg.Window.Width, tt.wantWidth)
			}
		})
	}
}

func TestSwapchainExtensionAlwaysPresent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diffuse.toml")
	body := "[renderer]\ndevice_extensions = [\"VK_KHR_shader_draw_parameters\"]\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	found := false
	for _, ext := range cfg.Renderer.DeviceExtensions {
		if ext == SwapchainExtensionName {
			found = true
		}
	}
	if !found {
		t.Errorf("device extensions %v missing %s", cfg.Renderer.DeviceExtensions, SwapchainExtensionName)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diffuse.toml")
	if err := os.WriteFile(path, []byte("[window\nwidth=="), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load accepted malformed TOML")
	}
}
