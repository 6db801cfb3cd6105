// Package wgpu_device implements the renderer's device abstraction on WebGPU.
//
// The renderer drives the device in an immediate style: it binds a program, writes uniforms,
// binds buffers and textures, toggles fixed function state and issues draws. The device
// turns each draw into a cached render pipeline for the current state, a uniform block pushed
// into a per submission arena and a set of bind groups, and records it into the open render
// pass. Everything recorded is submitted by Present or Flush.
package wgpu_device

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
	"github.com/cogentcore/webgpu/wgpu"
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples of the main render target. WebGPU guarantees
// support for 1 (off) and 4.
type MSAASampleCount uint32

const (
	MSAAOff MSAASampleCount = 1
	MSAA4x  MSAASampleCount = 4
)

const (
	// DefaultUniformArenaSize is the byte size of the per submission uniform arena.
	DefaultUniformArenaSize = 4 << 20
	// DefaultInstanceArenaSize is the byte size of the per submission instance arena.
	DefaultInstanceArenaSize = 4 << 20

	// uniformAlignment is the dynamic offset alignment every adapter supports.
	uniformAlignment = 256
	depthFormat      = wgpu.TextureFormatDepth24Plus
	cubeFormat       = wgpu.TextureFormatRGBA8Unorm
	textureFormat    = wgpu.TextureFormatRGBA8UnormSrgb
)

var (
	// ErrUnknownHandle is returned when a handle does not name an object of the expected kind.
	ErrUnknownHandle = errors.New("wgpu_device: unknown handle")
	// ErrNoSurface is returned by presenter operations on a device created without a surface.
	ErrNoSurface = errors.New("wgpu_device: device has no surface")
	// ErrFrameInProgress is returned by BeginFrame while the previous frame is not presented.
	ErrFrameInProgress = errors.New("wgpu_device: previous frame not yet presented")
	// ErrUnsupportedBinding is returned when a shader declares a resource the device cannot bind.
	ErrUnsupportedBinding = errors.New("wgpu_device: unsupported shader binding")
)

// renderTarget is the attachment set draws currently go to. A zero cube means the surface.
type renderTarget struct {
	cube       device.Handle
	face       device.CubeFace
	resolution int
}

type wgpuDevice struct {
	mu sync.Mutex

	gpu      *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface
	device   *wgpu.Device
	queue    *wgpu.Queue

	surfaceFormat    wgpu.TextureFormat
	presentMode      wgpu.PresentMode
	sampleCount      MSAASampleCount
	forceFallback    bool
	width, height    int
	msaaTextureView  *wgpu.TextureView
	depthTextureView *wgpu.TextureView
	surfaceTextures  []*wgpu.Texture

	uniformArenaSize  int
	instanceArenaSize int
	uniforms          *arena
	instances         *arena

	nextHandle device.Handle
	shaders    map[device.Handle]*shaderObject
	programs   map[device.Handle]*programObject
	buffers    map[device.Handle]*bufferObject
	textures   map[device.Handle]*textureObject

	pipelines     map[pipelineKey]*renderPipeline
	blitPipelines map[wgpu.TextureFormat]*wgpu.RenderPipeline
	blitLayout    *wgpu.BindGroupLayout
	blitModule    *wgpu.ShaderModule
	cubeDepth     map[int]*textureObject

	linearRepeat *wgpu.Sampler
	linearClamp  *wgpu.Sampler
	white        device.Handle
	black        device.Handle
	zeroBuffer   *wgpu.Buffer

	// Immediate mode state.
	program  *programObject
	state    fixedState
	vertex   vertexBinding
	index    device.Handle
	instance instanceBinding
	target   renderTarget

	// Recording state.
	encoder      *wgpu.CommandEncoder
	pass         *wgpu.RenderPassEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
	inFlight     map[device.Handle]bool
	transient    []*wgpu.BindGroup
	warned       map[string]bool
}

// WGPUDevice is a device.Device and device.Presenter backed by WebGPU.
type WGPUDevice interface {
	device.Device
	device.Presenter

	// SetPresentMode changes the present mode. It takes effect on the next Resize.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// SampleCount returns the MSAA sample count of the main render target.
	SampleCount() MSAASampleCount

	// Flush submits everything recorded so far without presenting. Work recorded outside a
	// frame, such as environment map captures before the first frame, is submitted by Flush.
	//
	// Returns:
	//   - error: an error if the command buffer could not be finished
	Flush() error

	// Release frees every GPU object owned by the device.
	Release()
}

var (
	_ WGPUDevice       = &wgpuDevice{}
	_ device.Presenter = &wgpuDevice{}
)

// NewWGPUDevice creates the WebGPU instance, adapter, device and, when a surface descriptor is
// given, the window surface. A nil descriptor creates a headless device that can only draw into
// cube map targets. The calling goroutine is locked to its OS thread, as the window system
// requires.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor, or nil
//   - options: WGPUDeviceBuilderOption values
//
// Returns:
//   - WGPUDevice: the device
//   - error: an error if no adapter or device could be obtained
func NewWGPUDevice(surfaceDescriptor *wgpu.SurfaceDescriptor, options ...WGPUDeviceBuilderOption) (WGPUDevice, error) {
	runtime.LockOSThread()
	d := &wgpuDevice{
		gpu:               wgpu.CreateInstance(nil),
		presentMode:       wgpu.PresentModeImmediate,
		sampleCount:       MSAA4x,
		uniformArenaSize:  DefaultUniformArenaSize,
		instanceArenaSize: DefaultInstanceArenaSize,
		shaders:           make(map[device.Handle]*shaderObject),
		programs:          make(map[device.Handle]*programObject),
		buffers:           make(map[device.Handle]*bufferObject),
		textures:          make(map[device.Handle]*textureObject),
		pipelines:         make(map[pipelineKey]*renderPipeline),
		blitPipelines:     make(map[wgpu.TextureFormat]*wgpu.RenderPipeline),
		cubeDepth:         make(map[int]*textureObject),
		inFlight:          make(map[device.Handle]bool),
		warned:            make(map[string]bool),
		state:             defaultFixedState(),
		instance:          instanceBinding{location: -1},
	}
	for _, opt := range options {
		opt(d)
	}
	if d.sampleCount == 0 {
		d.sampleCount = MSAAOff
	}

	if surfaceDescriptor != nil {
		d.surface = d.gpu.CreateSurface(surfaceDescriptor)
	}

	a, err := d.gpu.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallback,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	if err := d.createDefaults(); err != nil {
		d.Release()
		return nil, err
	}
	common.Logger().Info("wgpu device created", "msaa", uint32(d.sampleCount), "headless", d.surface == nil)
	return d, nil
}

// createDefaults allocates the arenas, shared samplers and fallback textures.
func (d *wgpuDevice) createDefaults() error {
	var err error
	d.uniforms, err = newArena(d.device, "Uniform Arena", wgpu.BufferUsageUniform, uniformAlignment, d.uniformArenaSize)
	if err != nil {
		return err
	}
	d.instances, err = newArena(d.device, "Instance Arena", wgpu.BufferUsageVertex, 16, d.instanceArenaSize)
	if err != nil {
		return err
	}

	d.linearRepeat, err = d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Linear Repeat Sampler",
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMaxClamp:   32.0,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to create sampler: %w", err)
	}
	d.linearClamp, err = d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Linear Clamp Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMaxClamp:   32.0,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to create sampler: %w", err)
	}

	d.zeroBuffer, err = d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Zero Vertex Buffer",
		Size:  64,
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("failed to create zero buffer: %w", err)
	}
	d.queue.WriteBuffer(d.zeroBuffer, 0, make([]byte, 64))

	white := []byte{255, 255, 255, 255}
	if d.white, err = d.createTexture(device.Texture2D, 1, 1, [][]byte{white}); err != nil {
		return err
	}
	black := []byte{0, 0, 0, 255}
	if d.black, err = d.createTexture(device.TextureCube, 1, 1, [][]byte{black, black, black, black, black, black}); err != nil {
		return err
	}
	return nil
}

func (d *wgpuDevice) handle() device.Handle {
	d.nextHandle++
	return d.nextHandle
}

// warnOnce logs a warning the first time key is seen.
func (d *wgpuDevice) warnOnce(key, msg string, args ...any) {
	if d.warned[key] {
		return
	}
	d.warned[key] = true
	common.Logger().Warn(msg, args...)
}

func (d *wgpuDevice) VersionDirective() string {
	return ""
}

func (d *wgpuDevice) SetPresentMode(mode PresentMode) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch mode {
	case PresentModeVSync:
		d.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		d.presentMode = wgpu.PresentModeImmediate
	}
}

func (d *wgpuDevice) SampleCount() MSAASampleCount {
	return d.sampleCount
}

// Resize reconfigures the surface and recreates the MSAA and depth attachments.
func (d *wgpuDevice) Resize(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.surface == nil || width <= 0 || height <= 0 {
		return
	}
	d.width, d.height = width, height

	capabilities := d.surface.GetCapabilities(d.adapter)
	d.surfaceFormat = capabilities.Formats[0]
	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: d.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	d.releaseSurfaceTextures()
	count := uint32(d.sampleCount)
	if count > 1 {
		view, err := d.attachment("MSAA Texture", d.surfaceFormat, width, height, count)
		if err != nil {
			common.Logger().Error("failed to create msaa texture", "error", err)
			return
		}
		d.msaaTextureView = view
	}
	view, err := d.attachment("Depth Texture", depthFormat, width, height, count)
	if err != nil {
		common.Logger().Error("failed to create depth texture", "error", err)
		return
	}
	d.depthTextureView = view
	common.Logger().Debug("surface configured", "width", width, "height", height, "format", d.surfaceFormat)
}

// attachment creates a render attachment texture and its view.
func (d *wgpuDevice) attachment(label string, format wgpu.TextureFormat, width, height int, samples uint32) (*wgpu.TextureView, error) {
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   samples,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	d.surfaceTextures = append(d.surfaceTextures, tex)
	return view, nil
}

func (d *wgpuDevice) releaseSurfaceTextures() {
	if d.msaaTextureView != nil {
		d.msaaTextureView.Release()
		d.msaaTextureView = nil
	}
	if d.depthTextureView != nil {
		d.depthTextureView.Release()
		d.depthTextureView = nil
	}
	for _, t := range d.surfaceTextures {
		t.Release()
	}
	d.surfaceTextures = nil
}

// BeginFrame acquires the next surface texture. Draws to the surface are dropped outside
// BeginFrame and Present.
func (d *wgpuDevice) BeginFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.surface == nil {
		return ErrNoSurface
	}
	if d.frameSurface != nil {
		return ErrFrameInProgress
	}

	surfaceTexture, err := d.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("failed to acquire surface texture: %w", err)
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return fmt.Errorf("failed to create surface view: %w", err)
	}
	d.endPass()
	d.frameSurface = surfaceTexture
	d.frameView = view
	d.target = renderTarget{}
	return nil
}

// Present submits the recorded frame and presents the surface texture.
func (d *wgpuDevice) Present() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frameSurface == nil {
		return nil
	}
	err := d.flush()
	d.surface.Present()

	d.frameView.Release()
	d.frameView = nil
	d.frameSurface.Release()
	d.frameSurface = nil
	return err
}

func (d *wgpuDevice) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flush()
}

// flush ends the open pass, uploads the arenas and submits the command buffer. Draws after a
// flush reopen the pass without clearing.
func (d *wgpuDevice) flush() error {
	d.endPass()
	if d.encoder == nil {
		return nil
	}

	d.uniforms.upload(d.queue)
	d.instances.upload(d.queue)

	commandBuffer, err := d.encoder.Finish(nil)
	d.encoder.Release()
	d.encoder = nil
	if err == nil {
		d.queue.Submit(commandBuffer)
		commandBuffer.Release()
	}

	d.uniforms.reset()
	d.instances.reset()
	clear(d.inFlight)
	for _, v := range d.transient {
		v.Release()
	}
	d.transient = d.transient[:0]

	if err != nil {
		return fmt.Errorf("failed to finish command buffer: %w", err)
	}
	return nil
}

func (d *wgpuDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.endPass()
	if d.encoder != nil {
		d.encoder.Release()
		d.encoder = nil
	}
	for h := range d.programs {
		d.deleteProgram(h)
	}
	for h, s := range d.shaders {
		s.module.Release()
		delete(d.shaders, h)
	}
	for h, b := range d.buffers {
		if b.buffer != nil {
			b.buffer.Release()
		}
		delete(d.buffers, h)
	}
	for h, t := range d.textures {
		t.release()
		delete(d.textures, h)
	}
	for _, p := range d.blitPipelines {
		p.Release()
	}
	if d.blitLayout != nil {
		d.blitLayout.Release()
	}
	if d.blitModule != nil {
		d.blitModule.Release()
	}
	for _, t := range d.cubeDepth {
		t.release()
	}
	d.releaseSurfaceTextures()
	for _, a := range []*arena{d.uniforms, d.instances} {
		if a != nil {
			a.release()
		}
	}
	for _, s := range []*wgpu.Sampler{d.linearRepeat, d.linearClamp} {
		if s != nil {
			s.Release()
		}
	}
	if d.zeroBuffer != nil {
		d.zeroBuffer.Release()
	}
	if d.queue != nil {
		d.queue.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.surface != nil {
		d.surface.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.gpu != nil {
		d.gpu.Release()
	}
}
