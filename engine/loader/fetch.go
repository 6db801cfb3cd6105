package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Fetcher reads the raw bytes of a source.
type Fetcher interface {
	// Supports reports whether the fetcher handles source.
	Supports(source string) bool

	// Fetch reads source.
	//
	// Parameters:
	//   - ctx: cancels the read
	//   - source: the source to read
	//
	// Returns:
	//   - []byte: the contents
	//   - error: error if the source cannot be read
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// fileFetcher reads sources from the local file system. Relative sources are resolved
// against baseDir.
type fileFetcher struct {
	baseDir string
}

var _ Fetcher = &fileFetcher{}

// NewFileFetcher creates a fetcher for local files. Every source that is not an http(s) URL
// is treated as a path.
//
// Parameters:
//   - baseDir: the directory relative sources are resolved against; empty means the working directory
//
// Returns:
//   - Fetcher: the file fetcher
func NewFileFetcher(baseDir string) Fetcher {
	return &fileFetcher{baseDir: baseDir}
}

func (f *fileFetcher) Supports(source string) bool {
	return !isURL(source)
}

func (f *fileFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path(source))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}
	return data, nil
}

// Path returns the file path of source.
func (f *fileFetcher) Path(source string) string {
	p := filepath.FromSlash(source)
	if filepath.IsAbs(p) || f.baseDir == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(f.baseDir, p)
}

// httpFetcher downloads http and https sources.
type httpFetcher struct {
	client *http.Client
}

var _ Fetcher = &httpFetcher{}

// DefaultHTTPTimeout bounds a download when no client is configured.
const DefaultHTTPTimeout = 30 * time.Second

// NewHTTPFetcher creates a fetcher for http(s) URLs.
//
// Parameters:
//   - client: the client to use; nil uses a client with DefaultHTTPTimeout
//
// Returns:
//   - Fetcher: the http fetcher
func NewHTTPFetcher(client *http.Client) Fetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &httpFetcher{client: client}
}

func (f *httpFetcher) Supports(source string) bool {
	return isURL(source)
}

func (f *httpFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid request for %s: %w", source, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s: %s", source, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", source, err)
	}
	return data, nil
}

func isURL(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
