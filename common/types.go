// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Color is a linear RGBA color with components in [0, 1].
type Color [4]float32

var (
	ColorBlack = Color{0, 0, 0, 1}
	ColorWhite = Color{1, 1, 1, 1}
	ColorCyan  = Color{0, 1, 1, 1}
)

// RGB returns the color without its alpha channel.
func (c Color) RGB() Vec3 {
	return Vec3{c[0], c[1], c[2]}
}

// Scale multiplies the RGB channels by s and keeps alpha.
func (c Color) Scale(s float32) Color {
	return Color{c[0] * s, c[1] * s, c[2] * s, c[3]}
}

// Bytes converts the color to 8-bit RGBA.
func (c Color) Bytes() [4]byte {
	var out [4]byte
	for i, v := range c {
		out[i] = byte(Clamp(v, 0, 1)*255 + 0.5)
	}
	return out
}

// ImageData holds RGBA pixel data pending GPU upload.
type ImageData struct {
	// Pixels is the pixel data in RGBA format, 4 bytes per pixel, row-major.
	Pixels []byte
	// Width is the image width in pixels.
	Width uint32
	// Height is the image height in pixels.
	Height uint32
	// MimeType is the sniffed format of the source bytes, e.g. "image/png".
	MimeType string
}

// DecodeImage decodes encoded image bytes to raw RGBA pixel data.
// PNG, JPEG, BMP, TIFF and WebP are supported. The format is sniffed from the
// leading bytes, so file extensions are never trusted.
//
// Parameters:
//   - data: the encoded image bytes
//
// Returns:
//   - *ImageData: decoded pixels and dimensions
//   - error: error if the bytes are not a supported image
func DecodeImage(data []byte) (*ImageData, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image data is empty")
	}

	kind, err := filetype.Match(data)
	if err != nil {
		return nil, fmt.Errorf("failed to sniff image type: %w", err)
	}
	if kind == filetype.Unknown || !filetype.IsImage(data) {
		return nil, fmt.Errorf("unsupported image type")
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image: %w", kind.MIME.Value, err)
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	return &ImageData{
		Pixels:   rgba.Pix,
		Width:    uint32(bounds.Dx()),
		Height:   uint32(bounds.Dy()),
		MimeType: kind.MIME.Value,
	}, nil
}
