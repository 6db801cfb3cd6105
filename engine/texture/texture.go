// Package texture holds the 2D texture and cube map resources handed to materials and
// environment maps.
package texture

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
)

// Default cube map pattern.
const (
	DefaultCubeMapResolution = 64
	DefaultCubeMapChecker    = 4
)

// ErrInvalidSize is returned for non-positive dimensions or pixel data of the wrong length.
var ErrInvalidSize = errors.New("texture: invalid size")

// Texture is an uploaded 2D texture.
type Texture struct {
	Name   string
	Handle device.Handle
	Width  int
	Height int
}

// CubeMap is an uploaded cube map with square faces.
type CubeMap struct {
	Handle     device.Handle
	Resolution int
}

// NewTexture uploads decoded RGBA8 image data and generates its mipmaps.
//
// Parameters:
//   - dev: the device to upload to
//   - name: the resource name, usually the source path
//   - img: the decoded image
//
// Returns:
//   - *Texture: the uploaded texture
//   - error: ErrInvalidSize or the device error
func NewTexture(dev device.Device, name string, img *common.ImageData) (*Texture, error) {
	if img == nil || img.Width == 0 || img.Height == 0 || len(img.Pixels) != int(img.Width)*int(img.Height)*4 {
		return nil, fmt.Errorf("%s: %w", name, ErrInvalidSize)
	}
	w, ht := int(img.Width), int(img.Height)
	h, err := dev.CreateTexture(device.Texture2D, w, ht, [][]byte{img.Pixels})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %s: %w", name, err)
	}
	dev.GenerateMipmaps(device.Texture2D, h)
	return &Texture{Name: name, Handle: h, Width: w, Height: ht}, nil
}

// NewCubeMap allocates a cube map. faces may be nil for a render target, otherwise it must
// hold six tightly packed RGBA8 faces in +x, -x, +y, -y, +z, -z order.
func NewCubeMap(dev device.Device, resolution int, faces [][]byte) (*CubeMap, error) {
	if resolution <= 0 {
		return nil, ErrInvalidSize
	}
	if faces != nil {
		if len(faces) != device.CubeFaces {
			return nil, fmt.Errorf("cube map needs %d faces, got %d: %w", device.CubeFaces, len(faces), ErrInvalidSize)
		}
		for i, f := range faces {
			if len(f) != resolution*resolution*4 {
				return nil, fmt.Errorf("cube map face %d: %w", i, ErrInvalidSize)
			}
		}
	} else {
		faces = make([][]byte, device.CubeFaces)
	}
	h, err := dev.CreateTexture(device.TextureCube, resolution, resolution, faces)
	if err != nil {
		return nil, fmt.Errorf("failed to create cube map: %w", err)
	}
	return &CubeMap{Handle: h, Resolution: resolution}, nil
}

// NewDefaultCubeMap builds the cyan and black checker cube map sampled when reflections are
// requested but no environment map exists.
func NewDefaultCubeMap(dev device.Device) (*CubeMap, error) {
	face := CheckerPixels(common.ColorCyan, common.ColorBlack, DefaultCubeMapResolution, DefaultCubeMapChecker)
	faces := make([][]byte, device.CubeFaces)
	for i := range faces {
		faces[i] = face
	}
	return NewCubeMap(dev, DefaultCubeMapResolution, faces)
}

// CheckerPixels renders a square RGBA8 checkerboard.
//
// Parameters:
//   - a: color of the cell at the origin
//   - b: the alternate color
//   - resolution: width and height in pixels
//   - checker: number of cells along each edge
//
// Returns:
//   - []byte: resolution*resolution*4 bytes
func CheckerPixels(a, b common.Color, resolution, checker int) []byte {
	if resolution <= 0 {
		return nil
	}
	checker = max(checker, 1)
	cell := max(resolution/checker, 1)
	ca, cb := a.Bytes(), b.Bytes()

	out := make([]byte, resolution*resolution*4)
	for y := 0; y < resolution; y++ {
		for x := 0; x < resolution; x++ {
			c := ca
			if (x/cell+y/cell)%2 == 1 {
				c = cb
			}
			copy(out[(y*resolution+x)*4:], c[:])
		}
	}
	return out
}
