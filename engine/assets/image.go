package assets

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"

	"github.com/google/uuid"
)

// Image is a decoded texture ready for upload, always 8-bit RGBA.
type Image struct {
	ID     uuid.UUID
	Path   string
	Width  uint32
	Height uint32
	Pixels []byte
}

// LoadImage decodes the PNG or JPEG at path and converts it to RGBA.
func LoadImage(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image '%s': %w", path, err)
	}

	bounds := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)

	return &Image{
		ID:     uuid.New(),
		Path:   path,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
		Pixels: rgba.Pix,
	}, nil
}

// NewSolidImage returns a 1x1 texture of the given color. Used as the
// fallback when a material slot has no texture assigned.
func NewSolidImage(r, g, b, a byte) *Image {
	return &Image{
		ID:     uuid.New(),
		Path:   "",
		Width:  1,
		Height: 1,
		Pixels: []byte{r, g, b, a},
	}
}
