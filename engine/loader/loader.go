// Package loader fetches, parses and caches the resources a scene refers to: shader sources,
// textures, meshes, materials and plain text or JSON files. Sources are loaded in the
// background on a worker pool; device uploads are handed back to the render loop.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/model"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-scene/engine/texture"
	"github.com/fsnotify/fsnotify"
)

// Kind identifies what a source is parsed into.
type Kind int

const (
	// KindText is a text file, cached as a string.
	KindText Kind = iota + 1
	// KindJSON is a JSON document, cached as the value encoding/json decodes into an any.
	KindJSON
	// KindShader is a WGSL shader source, cached as a *shader.Source.
	KindShader
	// KindTexture is an image, cached as a *texture.Texture.
	KindTexture
	// KindMesh is a glTF, GLB or OBJ file, cached as a *MeshAsset.
	KindMesh
	// KindMaterial is a TOML material file, cached as a material.Material.
	KindMaterial
)

var kindNames = map[Kind]string{
	KindText:     "text",
	KindJSON:     "json",
	KindShader:   "shader",
	KindTexture:  "texture",
	KindMesh:     "mesh",
	KindMaterial: "material",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts a kind name such as "texture".
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown resource kind %q", s)
}

var extensionKinds = map[string]Kind{
	".txt":  KindText,
	".json": KindJSON,
	".wgsl": KindShader,
	".png":  KindTexture,
	".jpg":  KindTexture,
	".jpeg": KindTexture,
	".bmp":  KindTexture,
	".tif":  KindTexture,
	".tiff": KindTexture,
	".webp": KindTexture,
	".gif":  KindTexture,
	".gltf": KindMesh,
	".glb":  KindMesh,
	".obj":  KindMesh,
	".toml": KindMaterial,
}

// KindForSource guesses the kind of a source from its extension.
//
// Parameters:
//   - source: a file path or URL
//
// Returns:
//   - Kind: the kind
//   - bool: false when the extension is unknown
func KindForSource(source string) (Kind, bool) {
	k, ok := extensionKinds[sourceExt(source)]
	return k, ok
}

func sourceExt(source string) string {
	if i := strings.IndexAny(source, "?#"); i >= 0 && isURL(source) {
		source = source[:i]
	}
	return strings.ToLower(path.Ext(source))
}

var (
	// ErrTypeMismatch is returned when a source is requested as a different kind than it
	// was loaded as.
	ErrTypeMismatch = errors.New("loader: resource has a different kind")
	// ErrNotLoaded is returned by GetCached for sources that are not cached yet.
	ErrNotLoaded = errors.New("loader: resource not loaded")
	// ErrLoadFailed is returned for sources whose load failed. The cause is wrapped too.
	ErrLoadFailed = errors.New("loader: resource failed to load")
	// ErrUnsupportedSource is returned when no fetcher handles a source.
	ErrUnsupportedSource = errors.New("loader: no fetcher for source")
	// ErrNoDevice is returned when a resource needs a device upload and none is set.
	ErrNoDevice = errors.New("loader: no device for upload")
)

// MeshAsset is a loaded mesh file.
type MeshAsset struct {
	Mesh *model.Mesh
	// Materials holds the material of each geometry of Mesh.
	Materials []material.Material
}

// Model creates a model drawing the asset. Extra options are applied after the mesh and
// materials.
func (a *MeshAsset) Model(opts ...model.ModelBuilderOption) model.Model {
	all := append([]model.ModelBuilderOption{
		model.WithMesh(a.Mesh),
		model.WithMaterials(a.Materials...),
	}, opts...)
	return model.NewModel(all...)
}

// ReloadFunc is called on the render loop after a watched source was reloaded. Shader
// sources, textures and mesh assets are updated in place, so value is the pointer already
// held by materials and models.
type ReloadFunc func(kind Kind, source string, value any)

// entry is a cache slot. A failed load keeps its error so the source is not retried.
type entry struct {
	kind    Kind
	value   any
	err     error
	builtin bool
}

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.Mutex

	device   device.Device
	fetchers []Fetcher
	dispatch func(func())

	workers int
	pool    worker.DynamicWorkerPool
	taskID  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc

	cache   map[string]*entry
	loading map[string]Kind
	idle    []func()
	reload  []ReloadFunc

	watcher  *fsnotify.Watcher
	watched  map[string]bool
	debounce time.Duration
	timers   map[string]*time.Timer
}

// Loader fetches, parses and caches resources by source. A source is a path relative to the
// base directory or an http(s) URL, and it is cached as exactly one kind.
//
// Parsing runs on worker goroutines. Device uploads and material construction run through
// the dispatcher, which the engine points at its render loop; without a dispatcher they run
// on the worker goroutine.
type Loader interface {
	// QueueForLoading starts loading source in the background. Sources already cached or
	// in flight are skipped.
	//
	// Parameters:
	//   - kind: what to parse the source as
	//   - source: the source to load
	QueueForLoading(kind Kind, source string)

	// OnAllLoaded registers fn to run once when no load is pending. It runs immediately when
	// the loader is idle.
	OnAllLoaded(fn func())

	// GetCached returns a loaded resource.
	//
	// Parameters:
	//   - kind: the expected kind
	//   - source: the source
	//
	// Returns:
	//   - any: the resource, of the type documented on kind
	//   - error: ErrNotLoaded, ErrTypeMismatch, or ErrLoadFailed wrapping the load error
	GetCached(kind Kind, source string) (any, error)

	// Load returns the cached resource or loads it synchronously, on the calling goroutine.
	// It must be called from the goroutine owning the device when kind needs an upload.
	//
	// Parameters:
	//   - ctx: cancels fetching
	//   - kind: what to parse the source as
	//   - source: the source to load
	//
	// Returns:
	//   - any: the resource
	//   - error: the same errors as GetCached, or the load error
	Load(ctx context.Context, kind Kind, source string) (any, error)

	// RemoveCached drops a source from the cache so it can be loaded again. It reports
	// whether the source was cached.
	RemoveCached(source string) bool

	// AddBuiltin caches a resource created in code under name.
	//
	// Returns:
	//   - error: ErrTypeMismatch when value is not of the type kind caches
	AddBuiltin(kind Kind, name string, value any) error

	// Pending returns the number of queued loads that have not finished.
	Pending() int

	// OnReload registers fn to be called for every source reloaded by Watch.
	OnReload(fn ReloadFunc)

	// Watch reloads file sources when they change on disk until ctx is done or Close is
	// called. It returns once the watcher is running.
	Watch(ctx context.Context) error

	// Shader loads or returns a shader source.
	Shader(source string) (*shader.Source, error)

	// Texture loads or returns a texture.
	Texture(source string) (*texture.Texture, error)

	// Mesh loads or returns a mesh asset.
	Mesh(source string) (*MeshAsset, error)

	// Material loads or returns a material. Shader and texture paths inside the file are
	// loader sources, loaded synchronously.
	Material(source string) (material.Material, error)

	// Close stops the watcher and cancels in-flight fetches.
	Close()
}

var (
	_ Loader            = &loader{}
	_ material.Resolver = &loader{}
)

// NewLoader creates a loader. Without WithFetcher options it reads files relative to the
// working directory and downloads http(s) URLs.
//
// Parameters:
//   - options: the builder options
//
// Returns:
//   - Loader: the loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		workers:  DefaultWorkers,
		debounce: DefaultReloadDebounce,
		cache:    make(map[string]*entry),
		loading:  make(map[string]Kind),
		watched:  make(map[string]bool),
		timers:   make(map[string]*time.Timer),
	}
	l.dispatch = func(fn func()) { fn() }
	for _, opt := range options {
		opt(l)
	}
	if len(l.fetchers) == 0 {
		l.fetchers = []Fetcher{NewHTTPFetcher(nil), NewFileFetcher("")}
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.pool = worker.NewDynamicWorkerPool(l.workers, 256, 1*time.Second)
	return l
}

func (l *loader) QueueForLoading(kind Kind, source string) {
	l.mu.Lock()
	if _, ok := l.cache[source]; ok {
		l.mu.Unlock()
		return
	}
	if _, ok := l.loading[source]; ok {
		l.mu.Unlock()
		return
	}
	l.loading[source] = kind
	l.mu.Unlock()

	// Submitting outside the lock: a full pool queue blocks until workers finish, and
	// finishing takes the lock.
	l.pool.SubmitTask(worker.Task{
		ID: int(l.taskID.Add(1)),
		Do: func() (any, error) {
			decoded, err := l.decode(l.ctx, kind, source)
			l.dispatch(func() {
				l.finish(kind, source, decoded, err)
			})
			return nil, err
		},
	})
}

// finish runs on the dispatcher: it uploads a decoded resource, caches the outcome and fires
// the idle callbacks when it was the last pending load.
func (l *loader) finish(kind Kind, source string, decoded any, err error) {
	var value any
	if err == nil {
		value, err = l.finalize(kind, source, decoded)
	}
	if err != nil {
		common.Logger().Warn("failed to load resource", "kind", kind, "source", source, "error", err)
	} else {
		common.Logger().Debug("resource loaded", "kind", kind, "source", source)
	}

	l.mu.Lock()
	// A synchronous Load may have cached the source while this load was in flight.
	if _, ok := l.cache[source]; !ok {
		l.store(source, &entry{kind: kind, value: value, err: err})
	}
	delete(l.loading, source)
	var callbacks []func()
	if len(l.loading) == 0 {
		callbacks, l.idle = l.idle, nil
	}
	l.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// store caches e and watches its file when a watcher runs. Callers hold mu.
func (l *loader) store(source string, e *entry) {
	l.cache[source] = e
	if l.watcher != nil && !e.builtin {
		l.watchSource(source)
	}
}

func (l *loader) OnAllLoaded(fn func()) {
	l.mu.Lock()
	if len(l.loading) > 0 {
		l.idle = append(l.idle, fn)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	fn()
}

func (l *loader) GetCached(kind Kind, source string) (any, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cached(kind, source)
}

func (l *loader) cached(kind Kind, source string) (any, error) {
	e, ok := l.cache[source]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", kind, source, ErrNotLoaded)
	}
	if e.kind != kind {
		return nil, fmt.Errorf("%s was loaded as %s, not %s: %w", source, e.kind, kind, ErrTypeMismatch)
	}
	if e.err != nil {
		return nil, fmt.Errorf("%s %s: %w: %w", kind, source, ErrLoadFailed, e.err)
	}
	return e.value, nil
}

func (l *loader) Load(ctx context.Context, kind Kind, source string) (any, error) {
	l.mu.Lock()
	if _, ok := l.cache[source]; ok {
		defer l.mu.Unlock()
		return l.cached(kind, source)
	}
	l.mu.Unlock()

	decoded, err := l.decode(ctx, kind, source)
	var value any
	if err == nil {
		value, err = l.finalize(kind, source, decoded)
	}
	if err != nil {
		common.Logger().Warn("failed to load resource", "kind", kind, "source", source, "error", err)
	} else {
		common.Logger().Debug("resource loaded", "kind", kind, "source", source)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.cache[source]; !ok {
		l.store(source, &entry{kind: kind, value: value, err: err})
	}
	return l.cached(kind, source)
}

func (l *loader) RemoveCached(source string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.cache[source]
	delete(l.cache, source)
	return ok
}

func (l *loader) AddBuiltin(kind Kind, name string, value any) error {
	if !valueMatches(kind, value) {
		return fmt.Errorf("builtin %s is %T, not a %s: %w", name, value, kind, ErrTypeMismatch)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.store(name, &entry{kind: kind, value: value, builtin: true})
	return nil
}

// valueMatches reports whether value has the type cached for kind.
func valueMatches(kind Kind, value any) bool {
	switch kind {
	case KindText:
		_, ok := value.(string)
		return ok
	case KindJSON:
		return true
	case KindShader:
		v, ok := value.(*shader.Source)
		return ok && v != nil
	case KindTexture:
		v, ok := value.(*texture.Texture)
		return ok && v != nil
	case KindMesh:
		v, ok := value.(*MeshAsset)
		return ok && v != nil
	case KindMaterial:
		v, ok := value.(material.Material)
		return ok && v != nil
	}
	return false
}

func (l *loader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.loading)
}

func (l *loader) OnReload(fn ReloadFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reload = append(l.reload, fn)
}

func (l *loader) Shader(source string) (*shader.Source, error) {
	return load[*shader.Source](l, KindShader, source)
}

func (l *loader) Texture(source string) (*texture.Texture, error) {
	return load[*texture.Texture](l, KindTexture, source)
}

func (l *loader) Mesh(source string) (*MeshAsset, error) {
	return load[*MeshAsset](l, KindMesh, source)
}

func (l *loader) Material(source string) (material.Material, error) {
	return load[material.Material](l, KindMaterial, source)
}

func load[T any](l *loader, kind Kind, source string) (T, error) {
	var zero T
	v, err := l.Load(l.ctx, kind, source)
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Cached returns a cached resource as T.
//
// Parameters:
//   - l: the loader
//   - kind: the expected kind
//   - source: the source
//
// Returns:
//   - T: the resource
//   - error: the GetCached errors, or ErrTypeMismatch when the value is not a T
func Cached[T any](l Loader, kind Kind, source string) (T, error) {
	var zero T
	v, err := l.GetCached(kind, source)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%s is %T: %w", source, v, ErrTypeMismatch)
	}
	return t, nil
}

func (l *loader) Close() {
	l.cancel()
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.timers {
		t.Stop()
	}
	clear(l.timers)
	if l.watcher != nil {
		_ = l.watcher.Close()
		l.watcher = nil
	}
}

// fetch reads source with the first fetcher supporting it.
func (l *loader) fetch(ctx context.Context, source string) ([]byte, error) {
	for _, f := range l.fetchers {
		if f.Supports(source) {
			return f.Fetch(ctx, source)
		}
	}
	return nil, fmt.Errorf("%s: %w", source, ErrUnsupportedSource)
}

// decode fetches and parses source without touching the device. It is safe to run on any
// goroutine.
func (l *loader) decode(ctx context.Context, kind Kind, source string) (any, error) {
	data, err := l.fetch(ctx, source)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindText, KindShader:
		return string(data), nil
	case KindJSON:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", source, err)
		}
		return v, nil
	case KindTexture:
		img, err := common.DecodeImage(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		return img, nil
	case KindMesh:
		fetch := func(uri string) ([]byte, error) {
			return l.fetch(ctx, resolveURI(source, uri))
		}
		resolve := func(uri string) string {
			return resolveURI(source, uri)
		}
		if sourceExt(source) == ".obj" {
			return decodeOBJ(source, data, fetch, resolve)
		}
		return newGLTFImporter(fetch, resolve).Import(source, data)
	case KindMaterial:
		return material.DecodeFile(data)
	}
	return nil, fmt.Errorf("%s: unknown kind %s", source, kind)
}

// finalize turns decoded data into the cached value: device uploads, and material
// construction with its dependencies.
func (l *loader) finalize(kind Kind, source string, decoded any) (any, error) {
	switch kind {
	case KindShader:
		return &shader.Source{Name: source, Text: decoded.(string)}, nil
	case KindTexture:
		if l.device == nil {
			return nil, ErrNoDevice
		}
		return texture.NewTexture(l.device, source, decoded.(*common.ImageData))
	case KindMesh:
		return l.uploadMesh(source, decoded.(*meshImport))
	case KindMaterial:
		return decoded.(*material.File).Build(source, l)
	}
	return decoded, nil
}

// uploadMesh uploads a decoded mesh and builds its materials. Geometries without a material
// share one default material. External images are loaded through the cache, embedded ones
// are uploaded once per asset.
func (l *loader) uploadMesh(source string, imp *meshImport) (*MeshAsset, error) {
	if l.device == nil {
		return nil, ErrNoDevice
	}
	mesh, err := imp.mesh.Upload(l.device)
	if err != nil {
		return nil, err
	}

	uploaded := make(map[*importedImage]*texture.Texture)
	textureFor := func(img *importedImage) (*texture.Texture, error) {
		if img.source != "" {
			return l.Texture(img.source)
		}
		if tex, ok := uploaded[img]; ok {
			return tex, nil
		}
		tex, err := texture.NewTexture(l.device, source+"#"+img.name, img.image)
		if err != nil {
			return nil, err
		}
		uploaded[img] = tex
		return tex, nil
	}

	materials := make([]material.Material, len(imp.materials))
	for i, m := range imp.materials {
		mat, err := m.build(textureFor)
		if err != nil {
			return nil, err
		}
		materials[i] = mat
	}

	var fallback material.Material
	asset := &MeshAsset{Mesh: mesh, Materials: make([]material.Material, len(imp.geometryMaterials))}
	for i, slot := range imp.geometryMaterials {
		if slot >= 0 {
			asset.Materials[i] = materials[slot]
			continue
		}
		if fallback == nil {
			fallback = material.NewMaterial(material.WithName(source + "#default"))
		}
		asset.Materials[i] = fallback
	}
	return asset, nil
}
