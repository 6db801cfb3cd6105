package texture

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type textureDevice struct {
	device.Device
	created  []device.TextureTarget
	faces    [][][]byte
	mipmaps  int
	failNext bool
}

func (d *textureDevice) CreateTexture(target device.TextureTarget, _, _ int, faces [][]byte) (device.Handle, error) {
	if d.failNext {
		return 0, errors.New("out of memory")
	}
	d.created = append(d.created, target)
	d.faces = append(d.faces, faces)
	return device.Handle(len(d.created)), nil
}

func (d *textureDevice) GenerateMipmaps(device.TextureTarget, device.Handle) {
	d.mipmaps++
}

func TestCheckerPixels(t *testing.T) {
	px := CheckerPixels(common.ColorCyan, common.ColorBlack, 8, 4)
	require.Len(t, px, 8*8*4)

	at := func(x, y int) []byte { return px[(y*8+x)*4 : (y*8+x)*4+4] }
	assert.Equal(t, []byte{0, 255, 255, 255}, at(0, 0))
	assert.Equal(t, []byte{0, 255, 255, 255}, at(1, 1))
	assert.Equal(t, []byte{0, 0, 0, 255}, at(2, 0))
	assert.Equal(t, []byte{0, 0, 0, 255}, at(0, 2))
	assert.Equal(t, []byte{0, 255, 255, 255}, at(2, 2))

	assert.Nil(t, CheckerPixels(common.ColorWhite, common.ColorBlack, 0, 4))
}

func TestNewDefaultCubeMap(t *testing.T) {
	dev := &textureDevice{}
	cube, err := NewDefaultCubeMap(dev)
	require.NoError(t, err)
	assert.Equal(t, DefaultCubeMapResolution, cube.Resolution)
	assert.Equal(t, []device.TextureTarget{device.TextureCube}, dev.created)
	require.Len(t, dev.faces[0], device.CubeFaces)
	assert.Len(t, dev.faces[0][5], 64*64*4)
}

func TestNewCubeMapValidation(t *testing.T) {
	dev := &textureDevice{}

	cube, err := NewCubeMap(dev, 256, nil)
	require.NoError(t, err)
	assert.Equal(t, 256, cube.Resolution)

	_, err = NewCubeMap(dev, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = NewCubeMap(dev, 2, [][]byte{make([]byte, 16)})
	assert.ErrorIs(t, err, ErrInvalidSize)

	dev.failNext = true
	_, err = NewCubeMap(dev, 2, nil)
	assert.ErrorContains(t, err, "out of memory")
}

func TestNewTexture(t *testing.T) {
	dev := &textureDevice{}
	img := &common.ImageData{Pixels: make([]byte, 2*3*4), Width: 2, Height: 3}

	tex, err := NewTexture(dev, "brick.png", img)
	require.NoError(t, err)
	assert.Equal(t, 2, tex.Width)
	assert.Equal(t, 3, tex.Height)
	assert.Equal(t, "brick.png", tex.Name)
	assert.Equal(t, 1, dev.mipmaps)

	img.Pixels = img.Pixels[:4]
	_, err = NewTexture(dev, "short.png", img)
	assert.ErrorIs(t, err, ErrInvalidSize)
}
