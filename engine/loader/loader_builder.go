package loader

import (
	"net/http"
	"time"

	"github.com/Carmen-Shannon/oxy-scene/engine/renderer/device"
)

const (
	// DefaultWorkers is the worker pool size used when WithWorkers is not given.
	DefaultWorkers = 4
	// DefaultReloadDebounce is how long a changed file must stay quiet before it is reloaded.
	DefaultReloadDebounce = 100 * time.Millisecond
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithDevice is an option builder that sets the device textures and meshes are uploaded to.
//
// Parameters:
//   - dev: the device
//
// Returns:
//   - LoaderBuilderOption: a function that applies the device option to a loader
func WithDevice(dev device.Device) LoaderBuilderOption {
	return func(l *loader) {
		l.device = dev
	}
}

// WithBaseDir is an option builder that reads files relative to dir and downloads http(s)
// URLs with the default client. It replaces fetchers added before it.
//
// Parameters:
//   - dir: the base directory of file sources
//
// Returns:
//   - LoaderBuilderOption: a function that applies the base directory option to a loader
func WithBaseDir(dir string) LoaderBuilderOption {
	return func(l *loader) {
		l.fetchers = []Fetcher{NewHTTPFetcher(nil), NewFileFetcher(dir)}
	}
}

// WithFetcher is an option builder that adds a fetcher. Fetchers are tried in the order they
// were added.
//
// Parameters:
//   - f: the fetcher
//
// Returns:
//   - LoaderBuilderOption: a function that applies the fetcher option to a loader
func WithFetcher(f Fetcher) LoaderBuilderOption {
	return func(l *loader) {
		l.fetchers = append(l.fetchers, f)
	}
}

// WithHTTPClient is an option builder that downloads http(s) URLs with client.
//
// Parameters:
//   - client: the http client
//
// Returns:
//   - LoaderBuilderOption: a function that applies the http client option to a loader
func WithHTTPClient(client *http.Client) LoaderBuilderOption {
	return func(l *loader) {
		for i, f := range l.fetchers {
			if _, ok := f.(*httpFetcher); ok {
				l.fetchers[i] = NewHTTPFetcher(client)
				return
			}
		}
		l.fetchers = append([]Fetcher{NewHTTPFetcher(client)}, l.fetchers...)
	}
}

// WithWorkers is an option builder that sets the maximum number of background loads.
//
// Parameters:
//   - n: the worker count, at least 1
//
// Returns:
//   - LoaderBuilderOption: a function that applies the workers option to a loader
func WithWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		l.workers = max(n, 1)
	}
}

// WithDispatcher is an option builder that sets where uploads and cache updates of
// background loads run. The engine passes a function queueing onto its render loop.
//
// Parameters:
//   - dispatch: runs the given function, now or later, on the device goroutine
//
// Returns:
//   - LoaderBuilderOption: a function that applies the dispatcher option to a loader
func WithDispatcher(dispatch func(func())) LoaderBuilderOption {
	return func(l *loader) {
		if dispatch != nil {
			l.dispatch = dispatch
		}
	}
}

// WithReloadDebounce is an option builder that sets how long Watch waits after the last
// change to a file before reloading it.
func WithReloadDebounce(d time.Duration) LoaderBuilderOption {
	return func(l *loader) {
		l.debounce = d
	}
}

// WithBuiltin is an option builder that caches a resource created in code. Values of the
// wrong type for kind are ignored.
func WithBuiltin(kind Kind, name string, value any) LoaderBuilderOption {
	return func(l *loader) {
		if valueMatches(kind, value) {
			l.cache[name] = &entry{kind: kind, value: value, builtin: true}
		}
	}
}
