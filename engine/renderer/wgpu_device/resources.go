package wgpu_device

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
	"github.com/cogentcore/webgpu/wgpu"
)

// bufferObject is a vertex or index buffer, or an instance stream. Instance streams own no GPU
// buffer: their contents are kept on the CPU and pushed into the instance arena by each
// instanced draw.
type bufferObject struct {
	kind   device.BufferKind
	buffer *wgpu.Buffer
	size   int
	data   []byte
}

type textureObject struct {
	target  device.TextureTarget
	texture *wgpu.Texture
	view    *wgpu.TextureView
	format  wgpu.TextureFormat
	width   int
	height  int
	layers  int
	mips    uint32
	views   map[[2]uint32]*wgpu.TextureView
}

// layerView returns a single layer, single mip 2D view, used as a render target or mip source.
func (t *textureObject) layerView(layer, mip uint32) (*wgpu.TextureView, error) {
	key := [2]uint32{layer, mip}
	if v, ok := t.views[key]; ok {
		return v, nil
	}
	v, err := t.texture.CreateView(&wgpu.TextureViewDescriptor{
		Format:          t.format,
		Dimension:       wgpu.TextureViewDimension2D,
		BaseMipLevel:    mip,
		MipLevelCount:   1,
		BaseArrayLayer:  layer,
		ArrayLayerCount: 1,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		return nil, err
	}
	t.views[key] = v
	return v, nil
}

func (t *textureObject) release() {
	for _, v := range t.views {
		v.Release()
	}
	clear(t.views)
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

func (d *wgpuDevice) CreateBuffer(kind device.BufferKind, size int) (device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b := &bufferObject{kind: kind, size: size}
	if kind != device.InstanceBuffer {
		usage := wgpu.BufferUsageVertex
		if kind == device.IndexBuffer {
			usage = wgpu.BufferUsageIndex
		}
		buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "Mesh Buffer",
			Size:  uint64(alignUp(max(size, 4), 4)),
			Usage: usage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to create buffer: %w", err)
		}
		b.buffer = buf
	}

	h := d.handle()
	d.buffers[h] = b
	return h, nil
}

// BufferSubData writes into a buffer. A vertex or index buffer already read by recorded draws
// causes a submission first so those draws see the old contents.
func (d *wgpuDevice) BufferSubData(buffer device.Handle, offset int, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[buffer]
	if !ok {
		d.warnOnce("buffer", "write to unknown buffer", "buffer", buffer)
		return
	}

	if offset < 0 {
		return
	}
	if b.kind == device.InstanceBuffer {
		if end := offset + len(data); end > len(b.data) {
			b.data = append(b.data, make([]byte, end-len(b.data))...)
		}
		copy(b.data[offset:], data)
		return
	}

	if offset < 0 || offset+len(data) > b.size {
		d.warnOnce("range", "buffer write out of range", "buffer", buffer, "offset", offset, "bytes", len(data), "size", b.size)
		return
	}
	if d.inFlight[buffer] {
		_ = d.flush()
	}
	if pad := alignUp(len(data), 4) - len(data); pad > 0 {
		data = append(append([]byte(nil), data...), make([]byte, pad)...)
	}
	d.queue.WriteBuffer(b.buffer, uint64(offset), data)
}

func (d *wgpuDevice) BindVertexBuffer(buffer device.Handle, stride int, attributes []device.VertexAttribute) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vertex = vertexBinding{
		buffer:     buffer,
		stride:     stride,
		attributes: attributes,
		key:        attributeKey(stride, attributes),
	}
}

func (d *wgpuDevice) BindIndexBuffer(buffer device.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.index = buffer
}

func (d *wgpuDevice) BindInstanceBuffer(buffer device.Handle, location int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.instance = instanceBinding{buffer: buffer, location: location}
}

func (d *wgpuDevice) UnbindInstanceBuffer(int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.instance = instanceBinding{location: -1}
}

// CreateTexture creates a mipmapped RGBA8 texture. 2D textures are sRGB; cube maps are linear
// so they can be rendered into. A cube map created with all six faces gets its mip chain
// immediately.
func (d *wgpuDevice) CreateTexture(target device.TextureTarget, width, height int, faces [][]byte) (device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.createTexture(target, width, height, faces)
}

func (d *wgpuDevice) createTexture(target device.TextureTarget, width, height int, faces [][]byte) (device.Handle, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("invalid texture size %dx%d", width, height)
	}
	layers, format, dim := 1, textureFormat, wgpu.TextureViewDimension2D
	if target == device.TextureCube {
		layers, format, dim = device.CubeFaces, cubeFormat, wgpu.TextureViewDimensionCube
	}
	if len(faces) > layers {
		return 0, fmt.Errorf("texture has %d layers, got %d faces", layers, len(faces))
	}

	mips := mipLevels(width, height)
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: uint32(layers),
		},
		MipLevelCount: mips,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst | wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create texture: %w", err)
	}

	complete := len(faces) == layers
	for layer, data := range faces {
		if data == nil {
			complete = false
			continue
		}
		if len(data) != width*height*4 {
			tex.Release()
			return 0, fmt.Errorf("face %d has %d bytes, want %d", layer, len(data), width*height*4)
		}
		d.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  tex,
				MipLevel: 0,
				Origin:   wgpu.Origin3D{Z: uint32(layer)},
				Aspect:   wgpu.TextureAspectAll,
			},
			data,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(width) * 4,
				RowsPerImage: uint32(height),
			},
			&wgpu.Extent3D{
				Width:              uint32(width),
				Height:             uint32(height),
				DepthOrArrayLayers: 1,
			},
		)
	}

	view, err := tex.CreateView(&wgpu.TextureViewDescriptor{
		Format:          format,
		Dimension:       dim,
		BaseMipLevel:    0,
		MipLevelCount:   mips,
		BaseArrayLayer:  0,
		ArrayLayerCount: uint32(layers),
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		tex.Release()
		return 0, fmt.Errorf("failed to create texture view: %w", err)
	}

	t := &textureObject{
		target:  target,
		texture: tex,
		view:    view,
		format:  format,
		width:   width,
		height:  height,
		layers:  layers,
		mips:    mips,
		views:   make(map[[2]uint32]*wgpu.TextureView),
	}
	h := d.handle()
	d.textures[h] = t

	if target == device.TextureCube && complete {
		if err := d.generateMipmaps(t); err != nil {
			return h, err
		}
	}
	return h, nil
}

// BindTexture points the texture binding at location of the current program to texture.
// Units have no WebGPU equivalent: bindings are matched by name when the program is linked.
func (d *wgpuDevice) BindTexture(_ int, _ device.TextureTarget, texture device.Handle, location int32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.program == nil || location < textureLocationBase {
		return
	}
	d.program.bound[location] = texture
}

func (d *wgpuDevice) GenerateMipmaps(_ device.TextureTarget, texture device.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.textures[texture]
	if !ok {
		d.warnOnce("mipmaps", "mipmaps for unknown texture", "texture", texture)
		return
	}
	if err := d.generateMipmaps(t); err != nil {
		common.Logger().Error("failed to generate mipmaps", "texture", texture, "error", err)
	}
}
