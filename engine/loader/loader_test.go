package loader

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-scene/engine/texture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uploadDevice hands out handles for buffers and textures and ignores everything else.
type uploadDevice struct {
	device.Device
	mu       sync.Mutex
	next     device.Handle
	textures int
}

func (d *uploadDevice) handle() device.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	return d.next
}

func (d *uploadDevice) CreateBuffer(device.BufferKind, int) (device.Handle, error) {
	return d.handle(), nil
}

func (d *uploadDevice) BufferSubData(device.Handle, int, []byte) {}

func (d *uploadDevice) CreateTexture(device.TextureTarget, int, int, [][]byte) (device.Handle, error) {
	d.mu.Lock()
	d.textures++
	d.mu.Unlock()
	return d.handle(), nil
}

func (d *uploadDevice) GenerateMipmaps(device.TextureTarget, device.Handle) {}

// mainLoop collects dispatched functions until drained, like the engine's render loop.
type mainLoop struct {
	mu    sync.Mutex
	tasks []func()
}

func (m *mainLoop) dispatch(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, fn)
}

func (m *mainLoop) queued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

func (m *mainLoop) drain() {
	m.mu.Lock()
	tasks := m.tasks
	m.tasks = nil
	m.mu.Unlock()
	for _, fn := range tasks {
		fn()
	}
}

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// triangleGLTF returns a glTF document with one indexed triangle in the XY plane, instanced
// by a node translated along x.
func triangleGLTF() []byte {
	var buf bytes.Buffer
	for _, f := range []float32{0, 0, 0, 1, 0, 0, 0, 1, 0} {
		_ = binary.Write(&buf, binary.LittleEndian, math.Float32bits(f))
	}
	for _, i := range []uint16{0, 1, 2} {
		_ = binary.Write(&buf, binary.LittleEndian, i)
	}
	uri := "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	return fmt.Appendf(nil, `{
		"asset": {"version": "2.0"},
		"scene": 0,
		"scenes": [{"nodes": [0]}],
		"nodes": [{"mesh": 0, "translation": [1, 0, 0]}],
		"meshes": [{"primitives": [{"attributes": {"POSITION": 0}, "indices": 1}]}],
		"accessors": [
			{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"},
			{"bufferView": 1, "componentType": 5123, "count": 3, "type": "SCALAR"}
		],
		"bufferViews": [
			{"buffer": 0, "byteOffset": 0, "byteLength": 36},
			{"buffer": 0, "byteOffset": 36, "byteLength": 6}
		],
		"buffers": [{"uri": %q, "byteLength": 42}]
	}`, uri)
}

func TestKindForSource(t *testing.T) {
	cases := map[string]Kind{
		"data/readme.txt":                    KindText,
		"data/level.JSON":                    KindJSON,
		"shaders/phong.wgsl":                 KindShader,
		"textures/brick.png":                 KindTexture,
		"https://example.com/a/b.jpg?size=2": KindTexture,
		"meshes/cube.glb":                    KindMesh,
		"meshes/teapot.obj":                  KindMesh,
		"materials/brick.toml":               KindMaterial,
	}
	for source, want := range cases {
		got, ok := KindForSource(source)
		assert.True(t, ok, source)
		assert.Equal(t, want, got, source)
	}

	_, ok := KindForSource("data/archive.zip")
	assert.False(t, ok)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Texture")
	require.NoError(t, err)
	assert.Equal(t, KindTexture, k)
	assert.Equal(t, "texture", k.String())

	_, err = ParseKind("sound")
	assert.Error(t, err)
}

func TestGetCachedErrors(t *testing.T) {
	dir := t.TempDir()
	loop := &mainLoop{}
	l := NewLoader(WithBaseDir(dir), WithDispatcher(loop.dispatch))
	defer l.Close()

	_, err := l.GetCached(KindText, "notes.txt")
	assert.ErrorIs(t, err, ErrNotLoaded)

	require.NoError(t, l.AddBuiltin(KindText, "notes.txt", "hello"))
	_, err = l.GetCached(KindShader, "notes.txt")
	assert.ErrorIs(t, err, ErrTypeMismatch)

	l.QueueForLoading(KindText, "missing.txt")
	require.Eventually(t, func() bool { return loop.queued() == 1 }, 5*time.Second, 5*time.Millisecond)
	loop.drain()

	_, err = l.GetCached(KindText, "missing.txt")
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.ErrorIs(t, err, os.ErrNotExist)

	// A failed source is not retried until removed.
	l.QueueForLoading(KindText, "missing.txt")
	assert.Equal(t, 0, l.Pending())
	assert.True(t, l.RemoveCached("missing.txt"))
	assert.False(t, l.RemoveCached("missing.txt"))
}

func TestAddBuiltinChecksType(t *testing.T) {
	l := NewLoader()
	defer l.Close()

	err := l.AddBuiltin(KindShader, "DebugShader", "not a shader")
	assert.ErrorIs(t, err, ErrTypeMismatch)

	src := &shader.Source{Name: "DebugShader", Text: "fn main() {}"}
	require.NoError(t, l.AddBuiltin(KindShader, "DebugShader", src))
	got, err := Cached[*shader.Source](l, KindShader, "DebugShader")
	require.NoError(t, err)
	assert.Same(t, src, got)
}

func TestQueueForLoadingFiresIdleCallbacksOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "data/notes.txt", []byte("hello"))
	writeFile(t, dir, "data/level.json", []byte(`{"lights": 3}`))

	loop := &mainLoop{}
	l := NewLoader(WithBaseDir(dir), WithDispatcher(loop.dispatch), WithWorkers(2))
	defer l.Close()

	l.QueueForLoading(KindText, "data/notes.txt")
	l.QueueForLoading(KindJSON, "data/level.json")
	l.QueueForLoading(KindText, "data/notes.txt")
	assert.Equal(t, 2, l.Pending())

	calls := 0
	l.OnAllLoaded(func() { calls++ })

	require.Eventually(t, func() bool { return loop.queued() == 2 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, calls)
	loop.drain()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, l.Pending())

	text, err := Cached[string](l, KindText, "data/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	doc, err := Cached[map[string]any](l, KindJSON, "data/level.json")
	require.NoError(t, err)
	assert.Equal(t, float64(3), doc["lights"])

	// Idle again: the callback runs right away and the first one is not repeated.
	l.OnAllLoaded(func() { calls += 10 })
	assert.Equal(t, 11, calls)
}

func TestQueueForLoadingSkipsCachedSources(t *testing.T) {
	l := NewLoader()
	defer l.Close()

	require.NoError(t, l.AddBuiltin(KindText, "readme.txt", "builtin"))
	l.QueueForLoading(KindText, "readme.txt")
	assert.Equal(t, 0, l.Pending())
}

func TestLoadMaterialWithDependencies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shaders/phong.wgsl", []byte("// phong"))
	writeFile(t, dir, "textures/brick.png", pngBytes(t, 2, 2))
	writeFile(t, dir, "materials/brick.toml", []byte(`
name = "brick"
diffuse = [1.0, 0.5, 0.5, 1.0]
shader = "shaders/phong.wgsl"

[textures]
diffuseMap = "textures/brick.png"
`))

	dev := &uploadDevice{}
	l := NewLoader(WithBaseDir(dir), WithDevice(dev))
	defer l.Close()

	mat, err := l.Material("materials/brick.toml")
	require.NoError(t, err)
	assert.Equal(t, "brick", mat.Name())
	require.NotNil(t, mat.Shader())
	assert.Equal(t, "// phong", mat.Shader().Text)

	tex, err := Cached[*texture.Texture](l, KindTexture, "textures/brick.png")
	require.NoError(t, err)
	assert.Equal(t, 2, tex.Width)
	assert.Equal(t, 1, dev.textures)

	again, err := l.Material("materials/brick.toml")
	require.NoError(t, err)
	assert.Same(t, mat, again)
}

func TestLoadTextureWithoutDevice(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "brick.png", pngBytes(t, 1, 1))
	l := NewLoader(WithBaseDir(dir))
	defer l.Close()

	_, err := l.Texture("brick.png")
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestImportGLTFBakesNodeTransform(t *testing.T) {
	imp, err := newGLTFImporter(nil, nil).Import("triangle.gltf", triangleGLTF())
	require.NoError(t, err)

	mesh := imp.mesh
	require.Len(t, mesh.Geometries, 1)
	assert.Equal(t, 3, mesh.Geometries[0].Count)
	assert.Equal(t, []uint32{0, 2, 1}, mesh.Indices)
	assert.Equal(t, []int{-1}, imp.geometryMaterials)

	require.Equal(t, 3*meshVertexFloats, len(mesh.Vertices))
	assert.Equal(t, []float32{1, 0, 0}, mesh.Vertices[0:3])
	assert.Equal(t, []float32{2, 0, 0}, mesh.Vertices[meshVertexFloats:meshVertexFloats+3])

	// Generated from the file's counter-clockwise winding, so facing +z.
	assert.InDelta(t, 1, mesh.Vertices[5], 1e-6)
}

func TestLoadMeshAsset(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "meshes/triangle.gltf", triangleGLTF())

	dev := &uploadDevice{}
	loop := &mainLoop{}
	l := NewLoader(WithBaseDir(dir), WithDevice(dev), WithDispatcher(loop.dispatch))
	defer l.Close()

	l.QueueForLoading(KindMesh, "meshes/triangle.gltf")
	require.Eventually(t, func() bool { return loop.queued() == 1 }, 5*time.Second, 5*time.Millisecond)
	loop.drain()

	asset, err := l.Mesh("meshes/triangle.gltf")
	require.NoError(t, err)
	require.Len(t, asset.Mesh.Geometries, 1)
	require.Len(t, asset.Materials, 1)
	assert.Equal(t, "meshes/triangle.gltf#default", asset.Materials[0].Name())

	m := asset.Model()
	assert.Len(t, m.RenderGeometries(), 1)
}

func TestDecodeOBJ(t *testing.T) {
	obj := []byte(`
mtllib scene.mtl
o quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
v 5 5 5
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
usemtl red
f 1/1/1 2/2/1 3/3/1 4/4/1
usemtl blue
f -4/2/1 -3/3/1 -2/4/1
`)
	mtl := []byte(`
newmtl red
Kd 1 0 0
map_Kd -s 1 1 1 red.png

newmtl blue
Kd 0 0 1
d 0.5
`)
	var fetched []string
	fetch := func(uri string) ([]byte, error) {
		fetched = append(fetched, uri)
		return mtl, nil
	}
	resolve := func(uri string) string { return resolveURI("meshes/quad.obj", uri) }

	imp, err := decodeOBJ("meshes/quad.obj", obj, fetch, resolve)
	require.NoError(t, err)
	assert.Equal(t, []string{"scene.mtl"}, fetched)

	mesh := imp.mesh
	require.Len(t, mesh.Geometries, 2)
	assert.Equal(t, 6, mesh.Geometries[0].Count)
	assert.Equal(t, 3, mesh.Geometries[1].Count)
	// Fan triangles 0-1-2 and 0-2-3, flipped to clockwise.
	assert.Equal(t, []uint32{0, 2, 1, 0, 3, 2}, mesh.Indices[:6])

	// The quad's corners are shared with the second face.
	assert.Equal(t, 4, mesh.VertexCount())
	// vt 0 0 is the bottom left, so v flips to 1.
	assert.Equal(t, []float32{0, 1}, mesh.Vertices[6:8])

	require.Len(t, imp.materials, 2)
	assert.Equal(t, []int{0, 1}, imp.geometryMaterials)
	red, blue := imp.materials[0], imp.materials[1]
	assert.Equal(t, common.Color{1, 0, 0, 1}, red.baseColor)
	require.Contains(t, red.textures, "diffuseMap")
	assert.Equal(t, "meshes/red.png", red.textures["diffuseMap"].source)
	assert.True(t, blue.blend)
	assert.InDelta(t, 0.5, blue.baseColor[3], 1e-6)
}

func TestDecodeOBJErrors(t *testing.T) {
	_, err := decodeOBJ("bad.obj", []byte("v 0 0 0\nf 1 2 3\n"), nil, nil)
	assert.ErrorIs(t, err, errOBJIndex)

	_, err = decodeOBJ("empty.obj", []byte("v 0 0 0\n"), nil, nil)
	assert.Error(t, err)
}

func TestResolveURI(t *testing.T) {
	cases := []struct {
		source, uri, want string
	}{
		{"meshes/cube.gltf", "cube.bin", "meshes/cube.bin"},
		{"meshes/cube.gltf", "../textures/a%20b.png", "textures/a b.png"},
		{"meshes/cube.gltf", "/abs/cube.bin", "/abs/cube.bin"},
		{"meshes/cube.gltf", "https://cdn.example.com/x.png", "https://cdn.example.com/x.png"},
		{"https://example.com/models/cube.gltf", "tex/a.png", "https://example.com/models/tex/a.png"},
		{"https://example.com/models/cube.gltf", "../b.bin", "https://example.com/b.bin"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, resolveURI(c.source, c.uri), c.uri)
	}
}

func TestDecodeDataURI(t *testing.T) {
	data, mime, err := decodeDataURI("data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, []byte("abc"), data)

	_, _, err = decodeDataURI("data:text/plain,abc")
	assert.ErrorIs(t, err, errInvalidDataURI)
	_, _, err = decodeDataURI("file:abc")
	assert.ErrorIs(t, err, errInvalidDataURI)
}

func TestWatchReloadsShaderInPlace(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shaders/flat.wgsl", []byte("// v1"))

	l := NewLoader(WithBaseDir(dir), WithReloadDebounce(10*time.Millisecond))
	defer l.Close()

	src, err := l.Shader("shaders/flat.wgsl")
	require.NoError(t, err)

	reloaded := make(chan any, 1)
	l.OnReload(func(kind Kind, source string, value any) {
		if kind == KindShader && source == "shaders/flat.wgsl" {
			select {
			case reloaded <- value:
			default:
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, l.Watch(ctx))
	assert.ErrorIs(t, l.Watch(ctx), ErrWatching)

	writeFile(t, dir, "shaders/flat.wgsl", []byte("// v2"))

	select {
	case value := <-reloaded:
		assert.Same(t, src, value)
		assert.Equal(t, "// v2", src.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("shader was not reloaded")
	}
}
