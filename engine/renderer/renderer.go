package renderer

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/envmap"
	"github.com/Carmen-Shannon/oxy-scene/engine/model"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/Carmen-Shannon/oxy-scene/engine/texture"
)

const (
	// DefaultMaxLights is the working light cap of a new renderer.
	DefaultMaxLights = 4
	// MaxLights is the hard light cap; shaders declare this many light slots.
	MaxLights = shader.MaxLights
	// MinInstancesPerBatch is the instance count a batch must exceed to be drawn instanced.
	MinInstancesPerBatch = 5
	// MaxInstancesPerBatch is the number of instances streamed per instanced draw call.
	MaxInstancesPerBatch = 256
)

// mat4Size is the byte size of one column-major 4x4 float32 matrix.
const mat4Size = 16 * 4

var (
	// ErrNoCubeMapTarget is returned by RenderCubeMap for a nil target.
	ErrNoCubeMapTarget = errors.New("renderer: cube map render needs a target")

	// ErrCubeMapViews is returned by RenderCubeMap unless exactly six views are given.
	ErrCubeMapViews = errors.New("renderer: cube map render needs 6 views")
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu sync.Mutex

	dev   device.Device
	cache shader.Cache

	defaultMaterial material.Material
	defaultShader   shader.Source
	defaultCubeMap  *texture.CubeMap
	instanceBuffer  device.Handle
	instanceData    []common.Mat4

	instancing      bool
	reflections     bool
	maxLights       int
	disabledDefines shader.DefineSet

	perf Performance

	// Trackers of the currently bound state, reset at the start of every pass.
	activeMaterial material.Material
	activeShader   *shader.Program
	activeMesh     *model.Mesh
	activeView     camera.RenderView
	// cubeTarget is the cube map being rendered into, never sampled while it is a target.
	cubeTarget device.Handle

	opaque      batchSet
	transparent batchSet
	lights      []LightBatch

	debug debugBuffers
}

// Queues is what the last RenderScene call collected from the scene.
type Queues struct {
	Opaque      []*GeometryBatch
	Transparent []*GeometryBatch
	// Lights are the lights that survived culling, in slot order.
	Lights []LightBatch
}

// Renderer draws scenes through a device.
//
// Each RenderScene call walks the enabled part of the scene, groups geometry into batches by
// geometry, material and environment map identity, ranks and caps the lights, then draws
// an opaque pass followed by a transparent pass. Shader variants are compiled on first use
// and cached per source and define set; failed variants are cached too and their batches are
// skipped until the defines change.
//
// A Renderer is used from the goroutine that owns the device.
type Renderer interface {
	// Device returns the device the renderer draws through.
	Device() device.Device

	// RenderScene draws s as seen from view into the current target. Counters accumulate
	// until ResetPerformance.
	//
	// Parameters:
	//   - s: the scene to draw
	//   - view: the camera matrices
	RenderScene(s scene.Scene, view camera.RenderView)

	// RenderCubeMap draws s once per view into the matching face of target and builds the
	// target's mipmaps.
	//
	// Parameters:
	//   - target: the cube map to render into
	//   - s: the scene to draw
	//   - views: six views ordered +x, -x, +y, -y, +z, -z
	//
	// Returns:
	//   - error: ErrNoCubeMapTarget, ErrCubeMapViews or a device render target error
	RenderCubeMap(target *texture.CubeMap, s scene.Scene, views []camera.RenderView) error

	// RenderDebugLines draws the accumulated debug lines and faces on top of the current
	// target. Nothing is drawn when lines is empty.
	//
	// Parameters:
	//   - view: the camera matrices
	//   - lines: the debug geometry
	//
	// Returns:
	//   - error: a device error while growing the debug buffers
	RenderDebugLines(view camera.RenderView, lines *DebugLines) error

	// ShaderProgram returns the variant of src for defines, compiling and caching it on first
	// use. A nil result means the variant failed to compile; the failure is cached.
	//
	// Parameters:
	//   - src: the shader source
	//   - defines: the variant defines
	//
	// Returns:
	//   - *shader.Program: the program or nil
	ShaderProgram(src shader.Source, defines shader.Defines) *shader.Program

	// InvalidateShader drops every cached variant of the named source, successful or failed,
	// so the next use recompiles from the current text.
	InvalidateShader(name string)

	// ShaderCache returns the variant cache.
	ShaderCache() shader.Cache

	// Queues returns a copy of the batches and lights collected by the last RenderScene call.
	Queues() Queues

	// Performance returns the accumulated counters.
	Performance() Performance

	// ResetPerformance zeroes the counters. Call it once per displayed frame.
	ResetPerformance()

	// Instancing reports whether large batches may be drawn instanced.
	Instancing() bool

	// SetInstancing toggles instanced drawing.
	SetInstancing(enabled bool)

	// Reflections reports whether renderables are assigned environment maps.
	Reflections() bool

	// SetReflections toggles environment map assignment.
	SetReflections(enabled bool)

	// MaxLights returns the working light cap.
	MaxLights() int

	// SetMaxLights changes the working light cap, clamped to [0, MaxLights]. Every cached
	// variant is dropped because the cap is compiled into the shaders.
	SetMaxLights(n int)

	// DisableDefine removes a define from the text of every variant compiled from now on.
	// Variant keys record disabled names, so no cached program is reused across the change.
	DisableDefine(name string)

	// EnableDefine undoes DisableDefine.
	EnableDefine(name string)

	// DisabledDefines returns the globally disabled define names in ascending order.
	DisabledDefines() []string

	// DefaultMaterial returns the material used for geometry without one.
	DefaultMaterial() material.Material
}

var _ Renderer = &renderer{}
var _ envmap.Builder = &renderer{}

// NewRenderer creates a renderer drawing through dev, with instancing and reflections on,
// DefaultMaxLights lights and the phong shader as default. It allocates the default cube map
// and the instance matrix buffer.
//
// Parameters:
//   - dev: the device to draw through
//   - options: variadic list of RendererBuilderOption functions
//
// Returns:
//   - Renderer: the renderer
//   - error: a device error while allocating the renderer's resources
func NewRenderer(dev device.Device, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		dev:             dev,
		cache:           shader.NewCache(),
		defaultShader:   shader.Phong(),
		instancing:      true,
		reflections:     true,
		maxLights:       DefaultMaxLights,
		disabledDefines: shader.NewDefineSet(),
		instanceData:    make([]common.Mat4, 0, MaxInstancesPerBatch),
	}
	for _, opt := range options {
		opt(r)
	}
	r.maxLights = common.Clamp(r.maxLights, 0, MaxLights)
	if r.defaultMaterial == nil {
		r.defaultMaterial = material.NewMaterial(material.WithName("default"))
	}

	cube, err := texture.NewDefaultCubeMap(dev)
	if err != nil {
		return nil, fmt.Errorf("failed to create default cube map: %w", err)
	}
	r.defaultCubeMap = cube

	r.instanceBuffer, err = dev.CreateBuffer(device.InstanceBuffer, mat4Size*MaxInstancesPerBatch)
	if err != nil {
		return nil, fmt.Errorf("failed to create instance buffer: %w", err)
	}
	return r, nil
}

func (r *renderer) Device() device.Device {
	return r.dev
}

func (r *renderer) RenderScene(s scene.Scene, view camera.RenderView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderScene(s, view)
}

func (r *renderer) renderScene(s scene.Scene, view camera.RenderView) {
	if s == nil {
		return
	}
	r.opaque.reset()
	r.transparent.reset()
	r.lights = nil

	var envMaps []envmap.EnvironmentMap
	if r.reflections {
		envMaps = scene.AllComponents[envmap.EnvironmentMap](s)
	}

	s.WalkEnabled(func(n scene.Node) bool {
		for _, c := range n.Components() {
			if l, ok := c.(LightSource); ok {
				r.lights = append(r.lights, LightBatch{Transform: n.WorldTransform(), Light: l})
			}
			if rd, ok := c.(Renderable); ok {
				r.queueRenderable(n, rd, envMaps)
			}
		}
		return true
	})

	r.lights = CullLights(r.lights, view.Position(), r.maxLights)

	r.dev.Clear(s.Background())
	r.perf.Lights += len(r.lights)

	r.renderPass(s, view, r.opaque.batches)
	r.renderPass(s, view, r.transparent.batches)
}

// queueRenderable adds every geometry of rd to the opaque or transparent batches.
func (r *renderer) queueRenderable(n scene.Node, rd Renderable, envMaps []envmap.EnvironmentMap) {
	geometries := rd.RenderGeometries()
	materials := rd.RenderMaterials()
	if geometries == nil || materials == nil {
		return
	}
	r.perf.Models++

	transform := n.WorldTransform()
	env := r.selectEnvironmentMap(rd, transform.GetTranslation(), materials, envMaps)

	for i, geom := range geometries {
		mat := r.defaultMaterial
		if i < len(materials) && materials[i] != nil {
			mat = materials[i]
		}
		if geom == nil || mat == nil {
			continue
		}
		geomEnv := env
		if !mat.AllowReflections() {
			geomEnv = nil
		}
		if mat.Opaque() {
			r.opaque.queue(geomEnv, geom, mat, transform)
		} else {
			r.transparent.queue(geomEnv, geom, mat, transform)
		}
	}
}

// selectEnvironmentMap picks the pinned map of rd, or the map nearest to position. The first
// map wins on equal distances. No map is selected while reflections are off or when none of
// the materials allows reflections.
func (r *renderer) selectEnvironmentMap(rd Renderable, position common.Vec3, materials []material.Material, envMaps []envmap.EnvironmentMap) envmap.EnvironmentMap {
	if !r.reflections {
		return nil
	}
	reflective := false
	for _, m := range materials {
		if m != nil && m.AllowReflections() {
			reflective = true
			break
		}
	}
	if !reflective {
		return nil
	}

	if o, ok := rd.(EnvironmentMapOverride); ok {
		if e, pinned := o.StaticEnvironmentMap(); pinned {
			return e
		}
	}

	var best envmap.EnvironmentMap
	var bestDist float32
	for _, e := range envMaps {
		n := e.Node()
		if n == nil {
			continue
		}
		d := position.DistanceSquared(n.WorldPosition())
		if best == nil || d < bestDist {
			best, bestDist = e, d
		}
	}
	return best
}

func (r *renderer) RenderCubeMap(target *texture.CubeMap, s scene.Scene, views []camera.RenderView) error {
	if target == nil {
		return ErrNoCubeMapTarget
	}
	if len(views) != device.CubeFaces {
		return fmt.Errorf("got %d views: %w", len(views), ErrCubeMapViews)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cubeTarget = target.Handle
	defer func() { r.cubeTarget = 0 }()
	for i, view := range views {
		if err := r.dev.BeginRenderTarget(target.Handle, device.CubeFace(i), target.Resolution); err != nil {
			return fmt.Errorf("failed to render cube map face %d: %w", i, err)
		}
		r.renderScene(s, view)
		r.dev.EndRenderTarget()
		common.Logger().Debug("rendered cube map face", "face", i, "resolution", target.Resolution)
	}
	r.dev.GenerateMipmaps(device.TextureCube, target.Handle)
	return nil
}

func (r *renderer) ShaderProgram(src shader.Source, defines shader.Defines) *shader.Program {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shaderProgram(src, defines)
}

func (r *renderer) InvalidateShader(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := r.cache.Invalidate(name)
	r.releasePrograms(dropped)
	common.Logger().Info("invalidated shader variants", "shader", name, "programs", len(dropped))
}

func (r *renderer) ShaderCache() shader.Cache {
	return r.cache
}

func (r *renderer) Queues() Queues {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Queues{
		Opaque:      cloneBatches(r.opaque.batches),
		Transparent: cloneBatches(r.transparent.batches),
		Lights:      slices.Clone(r.lights),
	}
}

// cloneBatches copies batches and their transform lists so callers never share storage
// with the next RenderScene.
func cloneBatches(batches []*GeometryBatch) []*GeometryBatch {
	out := make([]*GeometryBatch, len(batches))
	for i, b := range batches {
		c := *b
		c.Transforms = slices.Clone(b.Transforms)
		out[i] = &c
	}
	return out
}

func (r *renderer) Performance() Performance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.perf
}

func (r *renderer) ResetPerformance() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perf = Performance{}
}

func (r *renderer) Instancing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instancing
}

func (r *renderer) SetInstancing(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instancing = enabled
}

func (r *renderer) Reflections() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reflections
}

func (r *renderer) SetReflections(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reflections = enabled
}

func (r *renderer) MaxLights() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxLights
}

func (r *renderer) SetMaxLights(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n = common.Clamp(n, 0, MaxLights)
	if n == r.maxLights {
		return
	}
	r.maxLights = n
	r.releasePrograms(r.cache.Clear())
}

func (r *renderer) DisableDefine(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabledDefines.Add(name)
}

func (r *renderer) EnableDefine(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabledDefines.Remove(name)
}

func (r *renderer) DisabledDefines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disabledDefines.SortedNames()
}

func (r *renderer) DefaultMaterial() material.Material {
	return r.defaultMaterial
}
