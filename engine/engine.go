package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/config"
	"github.com/Carmen-Shannon/oxy-scene/engine/loader"
	"github.com/Carmen-Shannon/oxy-scene/engine/model"
	"github.com/Carmen-Shannon/oxy-scene/engine/profiler"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/wgpu_device"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/Carmen-Shannon/oxy-scene/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// Names of the resources every engine registers with its loader.
const (
	BuiltinDefaultShader   = "DefaultShader"
	BuiltinDebugShader     = "DebugShader"
	BuiltinDefaultMaterial = "DefaultMaterial"
	BuiltinDefaultCube     = "DefaultCube"
	BuiltinDefaultPlane    = "DefaultPlane"
)

// ErrClosed is returned by Run and Frame after Close.
var ErrClosed = errors.New("engine: closed")

// engine implements the Engine interface.
type engine struct {
	cfg config.Config

	window    window.Window
	dev       device.Device
	presenter device.Presenter
	release   func()
	renderer  renderer.Renderer
	loader    loader.Loader

	rendererOptions []renderer.RendererBuilderOption
	loaderOptions   []loader.LoaderBuilderOption
	deviceOptions   []wgpu_device.WGPUDeviceBuilderOption
	windowOptions   []window.WindowBuilderOption
	headless        bool

	profiler         *profiler.Profiler
	profilingEnabled bool
	showFPS          bool

	tasksMu sync.Mutex
	tasks   []func()

	scene          scene.Scene
	camera         camera.Camera
	lookButton     window.MouseButton
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	renderFrameLimit time.Duration
	lastFrame        time.Time

	quit   atomic.Bool
	closed bool
}

// Engine owns the window, device, renderer, loader, active scene and camera, and drives the
// render loop. Everything the loop touches is reached through the engine; there is no global
// instance.
//
// All methods except RunOnMainLoop and Quit must be called from the goroutine that created the
// engine, which also runs the loop.
type Engine interface {
	// Window returns the window, or nil for a headless engine.
	Window() window.Window

	// Device returns the graphics device.
	Device() device.Device

	// Renderer returns the renderer.
	Renderer() renderer.Renderer

	// Loader returns the resource loader. Its background loads finish on the render loop.
	Loader() loader.Loader

	// Profiler returns the profiler.
	Profiler() *profiler.Profiler

	// Config returns the configuration the engine was built with.
	Config() config.Config

	// Scene returns the active scene, or nil.
	Scene() scene.Scene

	// SetScene makes s the scene drawn each frame.
	SetScene(s scene.Scene)

	// Camera returns the active camera, or nil.
	Camera() camera.Camera

	// SetCamera makes c the camera the scene is drawn from. Its aspect follows the window.
	SetCamera(c camera.Camera)

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickCallback registers the function called at the start of every frame, before
	// controllers update and transforms are recomputed.
	//
	// Parameters:
	//   - callback: function receiving the frame delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after the scene is drawn and before the
	// frame is presented. Debug lines are drawn here.
	//
	// Parameters:
	//   - callback: function receiving the frame delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// RunOnMainLoop queues fn to run at the start of the next frame. It is safe to call from
	// any goroutine.
	RunOnMainLoop(fn func())

	// Frame runs one iteration of the render loop: queued tasks, the tick callback, controller
	// updates, the hierarchy update, counter reset, BeginFrame, RenderScene, the render
	// callback, Present and the profiler.
	//
	// Parameters:
	//   - dt: the time since the previous frame in seconds
	//
	// Returns:
	//   - error: a BeginFrame or Present error, or ErrClosed
	Frame(dt float32) error

	// Run runs the render loop until the window closes, Quit is called or ctx is done.
	// File watching starts here when the loader configuration enables it.
	//
	// Returns:
	//   - error: ErrClosed, or nil
	Run(ctx context.Context) error

	// Quit stops Run after the current frame. Safe to call from any goroutine and more
	// than once.
	Quit()

	// Close stops the loader and releases the device and window the engine created.
	Close()
}

var _ Engine = &engine{}

// NewEngine creates the window, device, renderer and loader that the options do not supply,
// and registers the builtin resources.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: a device, renderer or builtin resource error
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		cfg:        config.Default(),
		lookButton: window.MouseButtonLeft,
	}
	for _, opt := range options {
		opt(e)
	}
	e.profiler = profiler.NewProfiler(profiler.WithInterval(e.cfg.Logging.ProfilerInterval.Duration))
	e.profilingEnabled = e.profilingEnabled || e.cfg.Logging.Profiler
	if e.renderFrameLimit == 0 && e.cfg.Window.FrameLimit > 0 {
		e.SetRenderFrameLimit(e.cfg.Window.FrameLimit)
	}

	if err := e.createDevice(); err != nil {
		e.Close()
		return nil, err
	}
	if e.renderer == nil {
		r, err := renderer.NewRenderer(e.dev, append(e.configRendererOptions(), e.rendererOptions...)...)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to create renderer: %w", err)
		}
		e.renderer = r
	}
	if e.loader == nil {
		e.loader = loader.NewLoader(append(e.configLoaderOptions(), e.loaderOptions...)...)
	}
	e.loader.OnReload(e.reloaded)
	if err := e.registerBuiltins(); err != nil {
		e.Close()
		return nil, err
	}
	e.preload()

	if e.window != nil {
		e.bindWindow()
	}
	common.Logger().Info("engine created", "headless", e.window == nil)
	return e, nil
}

// createDevice opens the window and the WebGPU device unless they were supplied.
func (e *engine) createDevice() error {
	if e.dev == nil && e.renderer != nil {
		e.dev = e.renderer.Device()
	}
	if e.dev == nil {
		if e.window == nil && !e.headless {
			w := e.cfg.Window
			opts := append([]window.WindowBuilderOption{
				window.WithTitle(w.Title),
				window.WithSize(w.Width, w.Height),
				window.WithMinSize(w.MinWidth, w.MinHeight),
				window.WithMaxSize(w.MaxWidth, w.MaxHeight),
				window.WithResizable(w.Resizable),
				window.WithCloseOnEscape(w.CloseOnEscape),
			}, e.windowOptions...)
			e.window = window.NewWindow(opts...)
		}

		surface := e.surfaceDescriptor()
		present := wgpu_device.PresentModeUncapped
		if e.cfg.Window.VSync {
			present = wgpu_device.PresentModeVSync
		}
		opts := append([]wgpu_device.WGPUDeviceBuilderOption{
			wgpu_device.WithMSAA(wgpu_device.MSAASampleCount(e.cfg.Renderer.MSAA)),
			wgpu_device.WithPresentMode(present),
			wgpu_device.WithForceFallbackAdapter(e.cfg.Renderer.FallbackAdapter),
		}, e.deviceOptions...)
		dev, err := wgpu_device.NewWGPUDevice(surface, opts...)
		if err != nil {
			return fmt.Errorf("failed to create device: %w", err)
		}
		e.dev = dev
		e.release = dev.Release
	}

	if p, ok := e.dev.(device.Presenter); ok {
		e.presenter = p
		if e.window != nil {
			p.Resize(e.window.Width(), e.window.Height())
		}
	}
	return nil
}

func (e *engine) surfaceDescriptor() *wgpu.SurfaceDescriptor {
	if e.window == nil {
		return nil
	}
	return e.window.SurfaceDescriptor()
}

func (e *engine) configRendererOptions() []renderer.RendererBuilderOption {
	r := e.cfg.Renderer
	return []renderer.RendererBuilderOption{
		renderer.WithInstancing(r.Instancing),
		renderer.WithReflections(r.Reflections),
		renderer.WithMaxLights(r.MaxLights),
		renderer.WithDisabledDefines(r.DisabledDefines...),
	}
}

func (e *engine) configLoaderOptions() []loader.LoaderBuilderOption {
	l := e.cfg.Loader
	return []loader.LoaderBuilderOption{
		loader.WithDevice(e.dev),
		loader.WithBaseDir(l.BaseDir),
		loader.WithHTTPClient(&http.Client{Timeout: l.HTTPTimeout.Duration}),
		loader.WithWorkers(l.Workers),
		loader.WithReloadDebounce(l.ReloadDebounce.Duration),
		loader.WithDispatcher(e.RunOnMainLoop),
	}
}

// registerBuiltins caches the default shaders, the default material and the primitive
// meshes under their builtin names.
func (e *engine) registerBuiltins() error {
	phong := shader.Phong()
	debug := shader.DebugLines()
	mat := e.renderer.DefaultMaterial()
	builtins := []struct {
		kind  loader.Kind
		name  string
		value any
	}{
		{loader.KindShader, BuiltinDefaultShader, &phong},
		{loader.KindShader, BuiltinDebugShader, &debug},
		{loader.KindMaterial, BuiltinDefaultMaterial, mat},
	}
	for _, b := range builtins {
		if err := e.loader.AddBuiltin(b.kind, b.name, b.value); err != nil {
			return err
		}
	}

	meshes := map[string]*model.MeshData{
		BuiltinDefaultCube:  model.Cube(1),
		BuiltinDefaultPlane: model.Plane(1),
	}
	for name, data := range meshes {
		mesh, err := data.Upload(e.dev)
		if err != nil {
			return fmt.Errorf("failed to upload builtin %s: %w", name, err)
		}
		asset := &loader.MeshAsset{Mesh: mesh, Materials: make([]material.Material, len(mesh.Geometries))}
		for i := range asset.Materials {
			asset.Materials[i] = mat
		}
		if err := e.loader.AddBuiltin(loader.KindMesh, name, asset); err != nil {
			return err
		}
	}
	return nil
}

// preload queues the configured sources.
func (e *engine) preload() {
	for _, source := range e.cfg.Loader.Preload {
		kind, ok := loader.KindForSource(source)
		if !ok {
			common.Logger().Warn("cannot preload source of unknown kind", "source", source)
			continue
		}
		e.loader.QueueForLoading(kind, source)
	}
}

// reloaded drops the compiled variants of reloaded shaders.
func (e *engine) reloaded(kind loader.Kind, source string, value any) {
	if kind != loader.KindShader {
		return
	}
	name := source
	if src, ok := value.(*shader.Source); ok {
		name = src.Name
	}
	e.renderer.InvalidateShader(name)
}

// bindWindow forwards resizes to the device and camera and input to the scene's controllers.
func (e *engine) bindWindow() {
	e.window.SetResizeCallback(func(width, height int) {
		if e.presenter != nil {
			e.presenter.Resize(width, height)
		}
		e.updateAspect(width, height)
	})
	e.window.SetKeyCallback(func(keyCode uint32, down bool) {
		for _, c := range e.controllers() {
			c.HandleKey(keyCode, down)
		}
	})
	e.window.SetMouseButtonCallback(func(button window.MouseButton, down bool, x, y int32) {
		if button != e.lookButton {
			return
		}
		for _, c := range e.controllers() {
			c.HandleDrag(down, x, y)
		}
	})
	e.window.SetMouseMoveCallback(func(x, y int32) {
		for _, c := range e.controllers() {
			c.HandleMouseMove(x, y)
		}
	})
	e.window.SetScrollCallback(func(delta float32) {
		for _, c := range e.controllers() {
			c.HandleScroll(delta)
		}
	})
}

func (e *engine) controllers() []camera.Controller {
	if e.scene == nil {
		return nil
	}
	return scene.AllComponents[camera.Controller](e.scene)
}

func (e *engine) updateAspect(width, height int) {
	if e.camera != nil && width > 0 && height > 0 {
		e.camera.SetAspect(float32(width) / float32(height))
	}
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Device() device.Device {
	return e.dev
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Loader() loader.Loader {
	return e.loader
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Config() config.Config {
	return e.cfg
}

func (e *engine) Scene() scene.Scene {
	return e.scene
}

func (e *engine) SetScene(s scene.Scene) {
	e.scene = s
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) SetCamera(c camera.Camera) {
	e.camera = c
	if e.window != nil {
		e.updateAspect(e.window.Width(), e.window.Height())
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) RunOnMainLoop(fn func()) {
	e.tasksMu.Lock()
	defer e.tasksMu.Unlock()
	e.tasks = append(e.tasks, fn)
}

// drainTasks runs the queued tasks. Tasks queued while draining run next frame.
func (e *engine) drainTasks() {
	e.tasksMu.Lock()
	tasks := e.tasks
	e.tasks = nil
	e.tasksMu.Unlock()
	for _, fn := range tasks {
		fn()
	}
}

func (e *engine) Frame(dt float32) error {
	if e.closed {
		return ErrClosed
	}
	e.drainTasks()

	if e.tickCallback != nil {
		e.tickCallback(dt)
	}
	if e.scene != nil {
		e.scene.WalkEnabled(func(n scene.Node) bool {
			for _, c := range n.Components() {
				if u, ok := c.(scene.Updater); ok {
					u.Update(dt)
				}
			}
			return true
		})
		e.scene.UpdateHierarchy(false)
	}

	e.renderer.ResetPerformance()
	if e.presenter != nil {
		if err := e.presenter.BeginFrame(); err != nil {
			return fmt.Errorf("failed to begin frame: %w", err)
		}
	}
	if e.scene != nil && e.camera != nil {
		e.renderer.RenderScene(e.scene, e.camera.RenderView())
	}
	if e.renderCallback != nil {
		e.renderCallback(dt)
	}
	if e.presenter != nil {
		if err := e.presenter.Present(); err != nil {
			return fmt.Errorf("failed to present frame: %w", err)
		}
	}

	if e.profilingEnabled {
		if stats, ok := e.profiler.Tick(e.renderer.Performance()); ok && e.showFPS && e.window != nil {
			e.window.SetTitle(fmt.Sprintf("%s (%.0f fps)", e.cfg.Window.Title, stats.FPS))
		}
	}
	return nil
}

// step runs one frame timed against the previous one and sleeps off the frame limit.
func (e *engine) step() {
	start := time.Now()
	dt := float32(start.Sub(e.lastFrame).Seconds())
	e.lastFrame = start

	if err := e.Frame(dt); err != nil {
		common.Logger().Warn("frame failed", "error", err)
	}

	if e.renderFrameLimit > 0 {
		if remaining := e.renderFrameLimit - time.Since(start); remaining > 0 {
			time.Sleep(remaining)
		}
	}
}

func (e *engine) Run(ctx context.Context) error {
	if e.closed {
		return ErrClosed
	}
	if e.cfg.Loader.Watch {
		if err := e.loader.Watch(ctx); err != nil {
			common.Logger().Warn("file watching disabled", "error", err)
		}
	}
	e.quit.Store(false)
	e.lastFrame = time.Now()

	if e.window == nil {
		for !e.quit.Load() && ctx.Err() == nil {
			e.step()
		}
		return nil
	}

	e.window.SetUpdateCallback(func() {
		if e.quit.Load() || ctx.Err() != nil {
			e.window.RequestClose()
			return
		}
		e.step()
	})
	e.window.ProcessMessages()
	e.window.SetUpdateCallback(nil)
	return nil
}

// Quit signals Run to return. Safe to call multiple times.
func (e *engine) Quit() {
	e.quit.Store(true)
}

func (e *engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	if e.loader != nil {
		e.loader.Close()
	}
	if e.release != nil {
		e.release()
	}
	if e.window != nil {
		if err := e.window.Close(); err != nil {
			common.Logger().Warn("failed to close window", "error", err)
		}
	}
}
