package vulkan

import (
	"math"
	"testing"

	vk "github.com/goki/vulkan"
)

func TestChooseExtent(t *testing.T) {
	caps := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
		MinImageExtent: vk.Extent2D{Width: 64, Height: 64},
		MaxImageExtent: vk.Extent2D{Width: 4096, Height: 4096},
	}

	tests := []struct {
		name          string
		width, height uint32
		want          vk.Extent2D
	}{
		{"within range", 1280, 720, vk.Extent2D{Width: 1280, Height: 720}},
		{"clamped below", 10, 10, vk.Extent2D{Width: 64, Height: 64}},
		{"clamped above", 9000, 9000, vk.Extent2D{Width: 4096, Height: 4096}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := chooseExtent(caps, tt.width, tt.height)
			if got != tt.want {
				t.Errorf("chooseExtent(%d, %d) = %v, want %v", tt.width, tt.height, got, tt.want)
			}
		})
	}
}

func TestChooseExtentSurfacePinned(t *testing.T) {
	caps := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: 800, Height: 600},
		MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: vk.Extent2D{Width: 4096, Height: 4096},
	}
	got := chooseExtent(caps, 1920, 1080)
	if got.Width != 800 || got.Height != 600 {
		t.Errorf("chooseExtent = %v, want the surface's pinned 800x600", got)
	}
}

func TestChooseImageCount(t *testing.T) {
	tests := []struct {
		name     string
		min, max uint32
		want     uint32
	}{
		{"unbounded", 2, 0, 3},
		{"capped", 2, 2, 2},
		{"room for one more", 3, 8, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := vk.SurfaceCapabilities{MinImageCount: tt.min, MaxImageCount: tt.max}
			if got := chooseImageCount(caps); got != tt.want {
				t.Errorf("chooseImageCount(min=%d, max=%d) = %d, want %d", tt.min, tt.max, got, tt.want)
			}
		})
	}
}

func TestChooseSurfaceFormat(t *testing.T) {
	preferred := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	other := vk.SurfaceFormat{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	got := chooseSurfaceFormat([]vk.SurfaceFormat{other, preferred})
	if got.Format != preferred.Format {
		t.Errorf("chooseSurfaceFormat did not pick the preferred format, got %v", got.Format)
	}

	got = chooseSurfaceFormat([]vk.SurfaceFormat{other})
	if got.Format != other.Format {
		t.Errorf("chooseSurfaceFormat fallback = %v, want first reported", got.Format)
	}
}

func TestChoosePresentMode(t *testing.T) {
	got := choosePresentMode([]vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox})
	if got != vk.PresentModeMailbox {
		t.Errorf("choosePresentMode = %v, want mailbox", got)
	}
	got = choosePresentMode([]vk.PresentMode{vk.PresentModeFifo, vk.PresentModeImmediate})
	if got != vk.PresentModeFifo {
		t.Errorf("choosePresentMode = %v, want fifo fallback", got)
	}
}
