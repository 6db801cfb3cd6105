package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-scene/common"
	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-scene/engine/texture"
	"github.com/fsnotify/fsnotify"
)

// ErrWatching is returned by Watch when a watcher is already running.
var ErrWatching = errors.New("loader: already watching")

func (l *loader) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	l.mu.Lock()
	if l.watcher != nil {
		l.mu.Unlock()
		_ = w.Close()
		return ErrWatching
	}
	l.watcher = w
	for source, e := range l.cache {
		if !e.builtin {
			l.watchSource(source)
		}
	}
	l.mu.Unlock()

	go l.watchLoop(ctx, w)
	return nil
}

// watchSource adds the directory of a file source to the watcher. Directories are watched
// instead of files so editors replacing a file by rename are still seen. Callers hold mu.
func (l *loader) watchSource(source string) {
	p, ok := l.filePath(source)
	if !ok {
		return
	}
	dir := filepath.Dir(p)
	if l.watched[dir] {
		return
	}
	if err := l.watcher.Add(dir); err != nil {
		common.Logger().Warn("failed to watch directory", "dir", dir, "error", err)
		return
	}
	l.watched[dir] = true
}

// filePath returns the local path of source when a file fetcher serves it.
func (l *loader) filePath(source string) (string, bool) {
	for _, f := range l.fetchers {
		if !f.Supports(source) {
			continue
		}
		if ff, ok := f.(*fileFetcher); ok {
			p, err := filepath.Abs(ff.Path(source))
			if err != nil {
				return "", false
			}
			return p, true
		}
		return "", false
	}
	return "", false
}

func (l *loader) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	defer func() {
		l.mu.Lock()
		if l.watcher == w {
			_ = w.Close()
			l.watcher = nil
		}
		clear(l.watched)
		l.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			l.changed(ev.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			common.Logger().Warn("file watcher error", "error", err)
		}
	}
}

// changed schedules a reload of every cached source stored at path once it has been quiet
// for the debounce interval.
func (l *loader) changed(name string) {
	p, err := filepath.Abs(name)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for source, e := range l.cache {
		if e.builtin {
			continue
		}
		if sp, ok := l.filePath(source); !ok || sp != p {
			continue
		}
		if t, ok := l.timers[source]; ok {
			t.Reset(l.debounce)
			continue
		}
		kind := e.kind
		l.timers[source] = time.AfterFunc(l.debounce, func() {
			l.mu.Lock()
			delete(l.timers, source)
			l.mu.Unlock()
			l.reloadSource(kind, source)
		})
	}
}

// reloadSource decodes a changed source on the worker pool and swaps it in on the dispatcher.
func (l *loader) reloadSource(kind Kind, source string) {
	l.pool.SubmitTask(worker.Task{
		ID: int(l.taskID.Add(1)),
		Do: func() (any, error) {
			decoded, err := l.decode(l.ctx, kind, source)
			if err != nil {
				common.Logger().Warn("failed to reload resource", "kind", kind, "source", source, "error", err)
				return nil, err
			}
			l.dispatch(func() {
				l.swap(kind, source, decoded)
			})
			return nil, nil
		},
	})
}

// swap finalizes a reloaded resource and updates the cache. Shader sources, textures and mesh
// assets keep their pointer so materials and models holding them see the new contents. The
// replaced device resources stay allocated.
func (l *loader) swap(kind Kind, source string, decoded any) {
	value, err := l.finalize(kind, source, decoded)
	if err != nil {
		common.Logger().Warn("failed to reload resource", "kind", kind, "source", source, "error", err)
		return
	}

	l.mu.Lock()
	e, ok := l.cache[source]
	if !ok || e.kind != kind {
		// Removed or replaced while reloading.
		l.mu.Unlock()
		return
	}
	switch old := e.value.(type) {
	case *shader.Source:
		old.Text = value.(*shader.Source).Text
		value = old
	case *texture.Texture:
		*old = *value.(*texture.Texture)
		value = old
	case *MeshAsset:
		fresh := value.(*MeshAsset)
		*old.Mesh = *fresh.Mesh
		for _, g := range old.Mesh.Geometries {
			g.Mesh = old.Mesh
		}
		old.Materials = fresh.Materials
		value = old
	}
	e.value, e.err = value, nil
	callbacks := append([]ReloadFunc(nil), l.reload...)
	l.mu.Unlock()

	common.Logger().Info("resource reloaded", "kind", kind, "source", source)
	for _, fn := range callbacks {
		fn(kind, source, value)
	}
}
