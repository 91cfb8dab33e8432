package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/diffuse/engine/core"
)

// Config holds everything the engine reads at startup. All fields have
// working defaults so a missing file is not an error.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
	LogLevel string         `toml:"log_level"`
}

type WindowConfig struct {
	Title     string `toml:"title"`
	StartPosX uint32 `toml:"start_pos_x"`
	StartPosY uint32 `toml:"start_pos_y"`
	Width     uint32 `toml:"width"`
	Height    uint32 `toml:"height"`
}

type RendererConfig struct {
	// Validation layers are requested only when enabled; a requested layer
	// that is not installed is a fatal setup error.
	EnableValidationLayers bool     `toml:"enable_validation_layers"`
	ValidationLayers       []string `toml:"validation_layers"`
	// Device extensions required beyond the implicit surface extensions.
	// The swapchain extension is always required and appended if missing.
	DeviceExtensions []string `toml:"device_extensions"`
	// Number of frames the CPU may record ahead of the GPU. Clamped to 1..3.
	FramesInFlight uint8 `toml:"frames_in_flight"`
	// Environment cubemap face size. Must be a multiple of the compute
	// workgroup size (32); rejected otherwise at prefilter setup.
	EnvmapSize uint32 `toml:"envmap_size"`
	// Mip levels for the environment map. Zero derives the full chain.
	EnvmapLevels uint32 `toml:"envmap_levels"`
	ShaderDir    string `toml:"shader_dir"`
}

type AssetsConfig struct {
	Dir string `toml:"dir"`
	// Watch enables the fsnotify shader watcher for pipeline hot reload.
	Watch bool `toml:"watch"`
}

const SwapchainExtensionName = "VK_KHR_swapchain"

func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:     "Diffuse",
			StartPosX: 100,
			StartPosY: 100,
			Width:     1280,
			Height:    720,
		},
		Renderer: RendererConfig{
			EnableValidationLayers: true,
			ValidationLayers:       []string{"VK_LAYER_KHRONOS_validation"},
			DeviceExtensions:       []string{SwapchainExtensionName},
			FramesInFlight:         2,
			EnvmapSize:             1024,
			EnvmapLevels:           0,
			ShaderDir:              "shaders",
		},
		Assets: AssetsConfig{
			Dir:   "assets",
			Watch: false,
		},
		LogLevel: "debug",
	}
}

// Load reads the TOML file at path on top of the defaults. A missing file
// yields the defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			core.LogInfo("no config file at '%s', using defaults", path)
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config '%s': %w", path, err)
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if c.Renderer.FramesInFlight < 1 {
		c.Renderer.FramesInFlight = 1
	}
	if c.Renderer.FramesInFlight > 3 {
		c.Renderer.FramesInFlight = 3
	}

	found := false
	for _, ext := range c.Renderer.DeviceExtensions {
		if ext == SwapchainExtensionName {
			found = true
			break
		}
	}
	if !found {
		c.Renderer.DeviceExtensions = append(c.Renderer.DeviceExtensions, SwapchainExtensionName)
	}

	if c.Window.Width == 0 || c.Window.Height == 0 {
		c.Window.Width = Default().Window.Width
		c.Window.Height = Default().Window.Height
	}
}

// Level maps the configured log level string onto the core logger levels.
// Unknown values fall back to debug.
func (c *Config) Level() core.LogLevel {
	switch c.LogLevel {
	case "info":
		return core.LogLevelInfo
	case "warn":
		return core.LogLevelWarn
	case "error":
		return core.LogLevelError
	default:
		return core.LogLevelDebug
	}
}
