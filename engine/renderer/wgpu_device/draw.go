package wgpu_device

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

var errNoTarget = errors.New("no render target")

type vertexBinding struct {
	buffer     device.Handle
	stride     int
	attributes []device.VertexAttribute
	key        string
}

type instanceBinding struct {
	buffer   device.Handle
	location int32
}

// renderPipeline is a cached pipeline and the vertex buffer slots it expects.
type renderPipeline struct {
	pipeline *wgpu.RenderPipeline
	slots    bufferSlots
}

func (d *wgpuDevice) SetDepthTest(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.depthTest = enabled
}

func (d *wgpuDevice) SetDepthWrite(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.depthWrite = enabled
}

func (d *wgpuDevice) SetCullFace(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.cull = enabled
}

func (d *wgpuDevice) SetBlend(enabled bool, fn device.BlendFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.blend = enabled
	d.state.blendFunc = fn
}

func (d *wgpuDevice) SetFrontFace(w device.Winding) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.winding = w
}

// SetDither is recorded but has no effect; WebGPU exposes no dithering control.
func (d *wgpuDevice) SetDither(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.dither = enabled
}

func (d *wgpuDevice) ensureEncoder() (*wgpu.CommandEncoder, error) {
	if d.encoder != nil {
		return d.encoder, nil
	}
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create command encoder: %w", err)
	}
	d.encoder = encoder
	return encoder, nil
}

// attachments are the views a render pass draws into.
type attachments struct {
	color   *wgpu.TextureView
	resolve *wgpu.TextureView
	depth   *wgpu.TextureView
	format  wgpu.TextureFormat
	samples uint32
}

// currentAttachments resolves the current target. The surface is only drawable between
// BeginFrame and Present; with MSAA the multisampled texture resolves into it.
func (d *wgpuDevice) currentAttachments() (attachments, error) {
	if d.target.cube == 0 {
		if d.frameView == nil || d.depthTextureView == nil {
			return attachments{}, errNoTarget
		}
		a := attachments{
			color:   d.frameView,
			depth:   d.depthTextureView,
			format:  d.surfaceFormat,
			samples: uint32(d.sampleCount),
		}
		if a.samples > 1 {
			if d.msaaTextureView == nil {
				return attachments{}, errNoTarget
			}
			a.color, a.resolve = d.msaaTextureView, d.frameView
		}
		return a, nil
	}

	t, ok := d.textures[d.target.cube]
	if !ok {
		return attachments{}, fmt.Errorf("cube %d: %w", d.target.cube, ErrUnknownHandle)
	}
	color, err := t.layerView(uint32(d.target.face), 0)
	if err != nil {
		return attachments{}, fmt.Errorf("failed to create cube face view: %w", err)
	}
	depth, err := d.cubeDepthView(t.width, t.height)
	if err != nil {
		return attachments{}, err
	}
	return attachments{color: color, depth: depth, format: t.format, samples: 1}, nil
}

// cubeDepthView returns the single sample depth attachment shared by all cube targets of a
// size. Cube faces are rendered one at a time so one texture per size is enough.
func (d *wgpuDevice) cubeDepthView(width, height int) (*wgpu.TextureView, error) {
	key := width<<16 | height
	if t, ok := d.cubeDepth[key]; ok {
		return t.view, nil
	}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Cube Depth Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cube depth texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("failed to create cube depth view: %w", err)
	}
	d.cubeDepth[key] = &textureObject{texture: tex, view: view, format: depthFormat, width: width, height: height}
	return view, nil
}

// beginPass opens a render pass on the current target unless one is open. A nil clear keeps
// the previous contents, which is how a pass resumes after an early flush.
func (d *wgpuDevice) beginPass(clear *common.Color) error {
	if d.pass != nil {
		return nil
	}
	a, err := d.currentAttachments()
	if err != nil {
		return err
	}
	encoder, err := d.ensureEncoder()
	if err != nil {
		return err
	}

	colorLoad, depthLoad := wgpu.LoadOpLoad, wgpu.LoadOpLoad
	var clearValue wgpu.Color
	if clear != nil {
		colorLoad, depthLoad = wgpu.LoadOpClear, wgpu.LoadOpClear
		clearValue = wgpu.Color{
			R: float64(clear[0]),
			G: float64(clear[1]),
			B: float64(clear[2]),
			A: float64(clear[3]),
		}
	}

	d.pass = encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Scene Pass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:          a.color,
				ResolveTarget: a.resolve,
				LoadOp:        colorLoad,
				StoreOp:       wgpu.StoreOpStore,
				ClearValue:    clearValue,
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            a.depth,
			DepthLoadOp:     depthLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		},
	})
	return nil
}

func (d *wgpuDevice) endPass() {
	if d.pass == nil {
		return
	}
	d.pass.End()
	d.pass.Release()
	d.pass = nil
}

// Clear starts a new pass on the current target that clears color to color and depth to 1.
func (d *wgpuDevice) Clear(color common.Color) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.endPass()
	if err := d.beginPass(&color); err != nil {
		d.warnOnce("clear", "clear dropped", "error", err)
	}
}

func (d *wgpuDevice) BeginRenderTarget(cube device.Handle, face device.CubeFace, resolution int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	t, ok := d.textures[cube]
	if !ok || t.target != device.TextureCube {
		return fmt.Errorf("cube %d: %w", cube, ErrUnknownHandle)
	}
	if face < 0 || face >= device.CubeFaces {
		return fmt.Errorf("cube face %d out of range", face)
	}
	if resolution != t.width {
		d.warnOnce("resolution", "cube target resolution differs from texture size", "resolution", resolution, "size", t.width)
	}
	d.endPass()
	d.target = renderTarget{cube: cube, face: face, resolution: resolution}
	return nil
}

func (d *wgpuDevice) EndRenderTarget() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.endPass()
	d.target = renderTarget{}
}

func (d *wgpuDevice) Draw(primitive device.Primitive, count int, indexType device.IndexType, byteOffset int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draw(primitive, count, indexType, byteOffset, 1, false)
}

func (d *wgpuDevice) DrawInstanced(primitive device.Primitive, count int, indexType device.IndexType, byteOffset int, instances int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draw(primitive, count, indexType, byteOffset, instances, true)
}

// draw records one indexed draw with the current program, bindings and fixed function state.
// Uniform blocks and instance matrices are copied into the arenas at this point, so later
// writes do not affect it. When an arena is full the recorded work is submitted and the pass
// resumes with its contents kept.
func (d *wgpuDevice) draw(primitive device.Primitive, count int, indexType device.IndexType, byteOffset, instances int, instanced bool) {
	p := d.program
	if p == nil {
		d.warnOnce("program", "draw without a program")
		return
	}
	vb, ok := d.buffers[d.vertex.buffer]
	if !ok || vb.buffer == nil {
		d.warnOnce("vertex", "draw without a vertex buffer")
		return
	}
	ib, ok := d.buffers[d.index]
	if !ok || ib.buffer == nil {
		d.warnOnce("index", "draw without an index buffer")
		return
	}
	if count <= 0 || instances <= 0 {
		return
	}

	instanceLocation := int32(-1)
	var instanceData []byte
	if instanced && d.instance.location >= 0 {
		b, ok := d.buffers[d.instance.buffer]
		if !ok {
			d.warnOnce("instances", "instanced draw without an instance buffer")
			return
		}
		instances = min(instances, len(b.data)/instanceStride)
		if instances == 0 {
			return
		}
		instanceLocation = d.instance.location
		instanceData = b.data[:instances*instanceStride]
	}

	offsets, instanceOffset, ok := d.stage(p, instanceData)
	if !ok {
		if err := d.flush(); err != nil {
			common.Logger().Error("failed to flush", "error", err)
		}
		if offsets, instanceOffset, ok = d.stage(p, instanceData); !ok {
			d.warnOnce("arena", "draw data exceeds arena capacity", "instances", instances)
			return
		}
	}

	if err := d.beginPass(nil); err != nil {
		d.warnOnce("target", "draw dropped", "error", err)
		return
	}
	a, _ := d.currentAttachments()

	rp, err := d.pipeline(p, primitive, instanceLocation, a)
	if err != nil {
		d.warnOnce("pipeline:"+strconv.Itoa(int(p.handle)), "failed to create pipeline", "program", p.handle, "error", err)
		return
	}
	d.pass.SetPipeline(rp.pipeline)

	for g := range p.layout.groups {
		bg, dynamic, err := d.bindGroup(p, g, offsets)
		if err != nil {
			d.warnOnce("bindgroup:"+strconv.Itoa(int(p.handle)), "failed to create bind group", "program", p.handle, "group", g, "error", err)
			return
		}
		d.pass.SetBindGroup(uint32(g), bg, dynamic)
	}

	d.pass.SetVertexBuffer(0, vb.buffer, 0, wgpu.WholeSize)
	if rp.slots.instance >= 0 {
		d.pass.SetVertexBuffer(uint32(rp.slots.instance), d.instances.buffer, uint64(instanceOffset), uint64(len(instanceData)))
	}
	if rp.slots.zero >= 0 {
		d.pass.SetVertexBuffer(uint32(rp.slots.zero), d.zeroBuffer, 0, wgpu.WholeSize)
	}
	d.pass.SetIndexBuffer(ib.buffer, indexFormat(indexType), 0, wgpu.WholeSize)
	d.pass.DrawIndexed(uint32(count), uint32(instances), uint32(byteOffset/indexType.Size()), 0, 0)

	d.inFlight[d.vertex.buffer] = true
	d.inFlight[d.index] = true
}

// stage pushes the program's uniform blocks and the instance data into the arenas.
//
// Returns:
//   - []uint32: the dynamic offset of each uniform block
//   - int: the instance data offset
//   - bool: false when an arena ran out of space
func (d *wgpuDevice) stage(p *programObject, instanceData []byte) ([]uint32, int, bool) {
	offsets := make([]uint32, len(p.blocks))
	for i, block := range p.blocks {
		off, ok := d.uniforms.push(block)
		if !ok {
			return nil, 0, false
		}
		offsets[i] = uint32(off)
	}
	if len(instanceData) == 0 {
		return offsets, 0, true
	}
	off, ok := d.instances.push(instanceData)
	if !ok {
		return nil, 0, false
	}
	return offsets, off, true
}

// pipeline returns the cached render pipeline for the current state, creating it on a miss.
func (d *wgpuDevice) pipeline(p *programObject, primitive device.Primitive, instanceLocation int32, a attachments) (*renderPipeline, error) {
	s := d.state
	key := pipelineKey{
		program:          p.handle,
		primitive:        primitive,
		depthTest:        s.depthTest,
		depthWrite:       s.depthWrite,
		cull:             s.cull,
		blend:            s.blend,
		blendFunc:        s.blendFunc,
		winding:          s.winding,
		attributes:       d.vertex.key,
		instanceLocation: instanceLocation,
		format:           a.format,
		samples:          a.samples,
	}
	if !s.blend {
		key.blendFunc = device.BlendFunc{}
	}
	if rp, ok := d.pipelines[key]; ok {
		return rp, nil
	}

	buffers, slots := vertexLayouts(p.inputs, d.vertex.stride, d.vertex.attributes, instanceLocation)
	cullMode := wgpu.CullModeNone
	if s.cull {
		cullMode = wgpu.CullModeBack
	}
	depthCompare := wgpu.CompareFunctionLess
	if !s.depthTest {
		depthCompare = wgpu.CompareFunctionAlways
	}

	created, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Program " + strconv.Itoa(int(p.handle)) + " Render Pipeline",
		Layout: p.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     p.vertex.module,
			EntryPoint: p.vertex.reflection.VertexEntry,
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     p.fragment.module,
			EntryPoint: p.fragment.reflection.FragmentEntry,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    a.format,
					Blend:     blendState(s.blend, s.blendFunc),
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  primitiveTopology(primitive),
			FrontFace: frontFace(s.winding),
			CullMode:  cullMode,
		},
		Multisample: wgpu.MultisampleState{
			Count: a.samples,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: s.depthWrite,
			DepthCompare:      depthCompare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	rp := &renderPipeline{pipeline: created, slots: slots}
	d.pipelines[key] = rp
	common.Logger().Debug("pipeline created", "program", p.handle, "primitive", primitive, "pipelines", len(d.pipelines))
	return rp, nil
}

// boundTexture resolves the texture bound to a texture slot of p. Unbound slots, textures of
// the wrong dimension and the cube currently rendered into fall back to a white 2D texture
// or a black cube map.
func (d *wgpuDevice) boundTexture(p *programObject, index int) (device.Handle, *textureObject) {
	slot := p.layout.textures[index]
	h := p.bound[int32(textureLocationBase+index)]
	if t, ok := d.textures[h]; ok && (t.target == device.TextureCube) == slot.cube && h != d.target.cube {
		return h, t
	}
	if slot.cube {
		return d.black, d.textures[d.black]
	}
	return d.white, d.textures[d.white]
}

// bindGroup returns the bind group of group g for the program's current texture bindings and
// the dynamic offsets of its uniform blocks in binding order.
func (d *wgpuDevice) bindGroup(p *programObject, g int, offsets []uint32) (*wgpu.BindGroup, []uint32, error) {
	entries := p.layout.groups[g]

	var sb strings.Builder
	sb.WriteString(strconv.Itoa(g))
	var dynamic []uint32
	for _, e := range entries {
		switch e.kind {
		case shader.ResourceUniform:
			dynamic = append(dynamic, offsets[e.index])
		case shader.ResourceTexture:
			h, _ := d.boundTexture(p, e.index)
			sb.WriteByte(':')
			sb.WriteString(strconv.Itoa(int(h)))
		}
	}
	key := sb.String()
	if bg, ok := p.bindGroups[key]; ok {
		return bg, dynamic, nil
	}

	bindGroupEntries := make([]wgpu.BindGroupEntry, 0, len(entries))
	for _, e := range entries {
		switch e.kind {
		case shader.ResourceUniform:
			bindGroupEntries = append(bindGroupEntries, wgpu.BindGroupEntry{
				Binding: uint32(e.binding),
				Buffer:  d.uniforms.buffer,
				Offset:  0,
				Size:    uint64(p.layout.blocks[e.index].size),
			})
		case shader.ResourceTexture:
			_, t := d.boundTexture(p, e.index)
			bindGroupEntries = append(bindGroupEntries, wgpu.BindGroupEntry{
				Binding:     uint32(e.binding),
				TextureView: t.view,
			})
		case shader.ResourceSampler:
			sampler := d.linearRepeat
			if e.cube {
				sampler = d.linearClamp
			}
			bindGroupEntries = append(bindGroupEntries, wgpu.BindGroupEntry{
				Binding: uint32(e.binding),
				Sampler: sampler,
			})
		}
	}

	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "Program " + strconv.Itoa(int(p.handle)) + " Bind Group",
		Layout:  p.bindGroupLayouts[g],
		Entries: bindGroupEntries,
	})
	if err != nil {
		return nil, nil, err
	}
	p.bindGroups[key] = bg
	return bg, dynamic, nil
}
