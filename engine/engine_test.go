package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-scene/engine/camera"
	"github.com/Carmen-Shannon/oxy-scene/engine/config"
	"github.com/Carmen-Shannon/oxy-scene/engine/loader"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-scene/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frameDevice uploads into nothing and records the presenter calls.
type frameDevice struct {
	device.Device
	log        *[]string
	next       device.Handle
	beginError error
}

func (d *frameDevice) CreateBuffer(device.BufferKind, int) (device.Handle, error) {
	d.next++
	return d.next, nil
}

func (d *frameDevice) BufferSubData(device.Handle, int, []byte) {}

func (d *frameDevice) BeginFrame() error {
	*d.log = append(*d.log, "begin")
	return d.beginError
}

func (d *frameDevice) Present() error {
	*d.log = append(*d.log, "present")
	return nil
}

func (d *frameDevice) Resize(int, int) {}

// recordingRenderer records the calls the render loop makes.
type recordingRenderer struct {
	renderer.Renderer
	dev         device.Device
	log         *[]string
	mat         material.Material
	invalidated []string
}

func (r *recordingRenderer) Device() device.Device { return r.dev }

func (r *recordingRenderer) ResetPerformance() { *r.log = append(*r.log, "reset") }

func (r *recordingRenderer) Performance() renderer.Performance { return renderer.Performance{} }

func (r *recordingRenderer) RenderScene(scene.Scene, camera.RenderView) {
	*r.log = append(*r.log, "render")
}

func (r *recordingRenderer) DefaultMaterial() material.Material { return r.mat }

func (r *recordingRenderer) InvalidateShader(name string) {
	r.invalidated = append(r.invalidated, name)
}

type updateRecorder struct {
	scene.ComponentBase
	log *[]string
}

func (u *updateRecorder) Update(float32) { *u.log = append(*u.log, "update") }

func newTestEngine(t *testing.T, options ...EngineBuilderOption) (*engine, *recordingRenderer, *frameDevice, *[]string) {
	t.Helper()
	log := &[]string{}
	dev := &frameDevice{log: log}
	r := &recordingRenderer{dev: dev, log: log, mat: material.NewMaterial(material.WithName("default"))}
	e, err := NewEngine(append([]EngineBuilderOption{WithRenderer(r)}, options...)...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e.(*engine), r, dev, log
}

func TestFrameRunsStepsInOrder(t *testing.T) {
	e, _, _, log := newTestEngine(t)

	s := scene.NewScene()
	camNode := s.CreateChild("camera")
	cam, err := scene.AddComponent(camNode, camera.NewCamera())
	require.NoError(t, err)
	_, err = scene.AddComponent(camNode, &updateRecorder{log: log})
	require.NoError(t, err)
	e.SetScene(s)
	e.SetCamera(cam)

	e.RunOnMainLoop(func() { *log = append(*log, "task") })
	e.SetTickCallback(func(float32) { *log = append(*log, "tick") })
	e.SetRenderCallback(func(float32) { *log = append(*log, "callback") })

	require.NoError(t, e.Frame(0.016))
	assert.Equal(t, []string{"task", "tick", "update", "reset", "begin", "render", "callback", "present"}, *log)

	// Tasks run once.
	*log = nil
	require.NoError(t, e.Frame(0.016))
	assert.Equal(t, []string{"tick", "update", "reset", "begin", "render", "callback", "present"}, *log)
}

func TestFrameSkipsDisabledControllers(t *testing.T) {
	e, _, _, log := newTestEngine(t)

	s := scene.NewScene()
	n := s.CreateChild("rig")
	_, err := scene.AddComponent(n, &updateRecorder{log: log})
	require.NoError(t, err)
	n.SetEnabled(false)
	e.SetScene(s)

	require.NoError(t, e.Frame(0.016))
	assert.NotContains(t, *log, "update")
	// Without a camera nothing is drawn.
	assert.NotContains(t, *log, "render")
}

func TestFrameStopsWhenBeginFrameFails(t *testing.T) {
	e, _, dev, log := newTestEngine(t)
	dev.beginError = errors.New("surface lost")

	err := e.Frame(0.016)
	assert.ErrorIs(t, err, dev.beginError)
	assert.NotContains(t, *log, "present")
}

func TestBuiltinsAreRegistered(t *testing.T) {
	e, r, _, _ := newTestEngine(t)

	for _, name := range []string{BuiltinDefaultCube, BuiltinDefaultPlane} {
		asset, err := loader.Cached[*loader.MeshAsset](e.Loader(), loader.KindMesh, name)
		require.NoError(t, err, name)
		require.Len(t, asset.Materials, len(asset.Mesh.Geometries))
		assert.Same(t, r.mat, asset.Materials[0])
	}

	mat, err := loader.Cached[material.Material](e.Loader(), loader.KindMaterial, BuiltinDefaultMaterial)
	require.NoError(t, err)
	assert.Same(t, r.mat, mat)

	src, err := loader.Cached[*shader.Source](e.Loader(), loader.KindShader, BuiltinDefaultShader)
	require.NoError(t, err)
	assert.Equal(t, shader.Phong().Text, src.Text)
}

func TestLoadsFinishOnTheRenderLoop(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))

	cfg := config.Default()
	cfg.Loader.BaseDir = dir
	e, _, _, _ := newTestEngine(t, WithConfig(cfg))

	loaded := false
	e.Loader().QueueForLoading(loader.KindText, "notes.txt")
	e.Loader().OnAllLoaded(func() { loaded = true })

	require.Eventually(t, func() bool {
		e.tasksMu.Lock()
		queued := len(e.tasks)
		e.tasksMu.Unlock()
		return queued == 1
	}, 5*time.Second, 5*time.Millisecond)
	assert.False(t, loaded)

	require.NoError(t, e.Frame(0))
	assert.True(t, loaded)
	text, err := loader.Cached[string](e.Loader(), loader.KindText, "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestShaderReloadInvalidatesVariants(t *testing.T) {
	e, r, _, _ := newTestEngine(t)

	e.reloaded(loader.KindTexture, "textures/a.png", nil)
	e.reloaded(loader.KindShader, "shaders/flat.wgsl", &shader.Source{Name: "shaders/flat.wgsl"})
	assert.Equal(t, []string{"shaders/flat.wgsl"}, r.invalidated)
}

func TestRunHeadlessUntilQuit(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	frames := 0
	e.SetTickCallback(func(float32) {
		frames++
		if frames == 3 {
			e.Quit()
		}
	})
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 3, frames)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.Run(ctx))
	assert.Equal(t, 3, frames)
}

func TestClosedEngine(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	e.Close()
	e.Close()
	assert.ErrorIs(t, e.Frame(0), ErrClosed)
	assert.ErrorIs(t, e.Run(context.Background()), ErrClosed)
}

func TestSetRenderFrameLimit(t *testing.T) {
	e, _, _, _ := newTestEngine(t, WithRenderFrameLimit(50))
	assert.Equal(t, 20*time.Millisecond, e.renderFrameLimit)
	e.SetRenderFrameLimit(0)
	assert.Zero(t, e.renderFrameLimit)
}
