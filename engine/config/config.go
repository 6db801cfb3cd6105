// Package config reads engine settings from TOML files.
//
//	[window]
//	title = "Lit Scene"
//	width = 1280
//	height = 720
//	vsync = true
//
//	[renderer]
//	msaa = 4
//	max_lights = 8
//	disabled_defines = ["FOG"]
//
//	[loader]
//	base_dir = "data"
//	watch = true
//	reload_debounce = "150ms"
//
//	[logging]
//	level = "debug"
//	format = "json"
//	profiler = true
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid value")

// Config is the full engine configuration.
type Config struct {
	Window   Window   `toml:"window"`
	Renderer Renderer `toml:"renderer"`
	Loader   Loader   `toml:"loader"`
	Logging  Logging  `toml:"logging"`
}

// Window configures the GLFW window and the frame pacing of the render loop.
type Window struct {
	Title     string `toml:"title"`
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	MinWidth  int    `toml:"min_width"`
	MinHeight int    `toml:"min_height"`
	MaxWidth  int    `toml:"max_width"`
	MaxHeight int    `toml:"max_height"`
	Resizable bool   `toml:"resizable"`
	// VSync waits for vertical blank before presenting.
	VSync bool `toml:"vsync"`
	// FrameLimit caps the render loop in frames per second; 0 is uncapped.
	FrameLimit float64 `toml:"frame_limit"`
	// CloseOnEscape closes the window when escape is pressed.
	CloseOnEscape bool `toml:"close_on_escape"`
}

// Renderer configures the device and the renderer.
type Renderer struct {
	// MSAA is the sample count of the main render target, 1 or 4.
	MSAA            int      `toml:"msaa"`
	Instancing      bool     `toml:"instancing"`
	Reflections     bool     `toml:"reflections"`
	MaxLights       int      `toml:"max_lights"`
	DisabledDefines []string `toml:"disabled_defines"`
	// FallbackAdapter requests the software adapter.
	FallbackAdapter bool `toml:"fallback_adapter"`
}

// Loader configures the resource loader.
type Loader struct {
	// BaseDir is the directory file sources are relative to.
	BaseDir        string   `toml:"base_dir"`
	Workers        int      `toml:"workers"`
	Watch          bool     `toml:"watch"`
	ReloadDebounce Duration `toml:"reload_debounce"`
	HTTPTimeout    Duration `toml:"http_timeout"`
	// Preload lists sources queued when the engine starts. Kinds are guessed from extensions.
	Preload []string `toml:"preload"`
}

// Logging configures the engine logger and the profiler.
type Logging struct {
	// Level is debug, info, warn, error or off.
	Level string `toml:"level"`
	// Format is text or json.
	Format           string   `toml:"format"`
	Profiler         bool     `toml:"profiler"`
	ProfilerInterval Duration `toml:"profiler_interval"`
}

// Duration is a time.Duration written as a Go duration string such as "250ms".
type Duration struct {
	time.Duration

	// invalid holds text that did not parse. The TOML decoder does not keep the error chain
	// of UnmarshalText, so Validate reports it.
	invalid string
}

// Dur wraps d as a Duration.
func Dur(d time.Duration) Duration {
	return Duration{Duration: d}
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		d.Duration, d.invalid = 0, string(text)
		return nil
	}
	d.Duration, d.invalid = v, ""
	return nil
}

// Valid reports whether the last decoded text parsed.
func (d Duration) Valid() bool {
	return d.invalid == ""
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file is given. The values match the
// defaults of the packages they configure.
func Default() Config {
	return Config{
		Window: Window{
			Title:         "oxy-scene",
			Width:         1280,
			Height:        720,
			MinWidth:      320,
			MinHeight:     200,
			Resizable:     true,
			VSync:         false,
			CloseOnEscape: true,
		},
		Renderer: Renderer{
			MSAA:        4,
			Instancing:  true,
			Reflections: true,
			MaxLights:   4,
		},
		Loader: Loader{
			Workers:        4,
			ReloadDebounce: Dur(100 * time.Millisecond),
			HTTPTimeout:    Dur(30 * time.Second),
		},
		Logging: Logging{
			Level:            "info",
			Format:           "text",
			ProfilerInterval: Dur(time.Second),
		},
	}
}

// Decode parses TOML over the defaults. Keys that do not exist are rejected.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the defaults overridden by data
//   - error: a decode or validation error
func Decode(data []byte) (Config, error) {
	cfg := Default()
	if err := cfg.merge(data); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Load reads files in order, each overriding the values set by the ones before it, on top of
// the defaults.
//
// Parameters:
//   - paths: the TOML files to read
//
// Returns:
//   - Config: the merged configuration
//   - error: an error naming the file that failed, or a validation error
func Load(paths ...string) (Config, error) {
	cfg := Default()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cfg.merge(data); err != nil {
			return Config{}, fmt.Errorf("%s: %w", p, err)
		}
	}
	return cfg, cfg.Validate()
}

func (c *Config) merge(data []byte) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("%w: %s", ErrInvalid, strict.String())
		}
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

// Encode writes c as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	w := c.Window
	check(w.Width > 0 && w.Height > 0, "window size %dx%d", w.Width, w.Height)
	check(w.MinWidth >= 0 && w.MinHeight >= 0, "window minimum size %dx%d", w.MinWidth, w.MinHeight)
	check(w.MaxWidth == 0 || w.MaxWidth >= w.MinWidth, "window max_width %d below min_width %d", w.MaxWidth, w.MinWidth)
	check(w.MaxHeight == 0 || w.MaxHeight >= w.MinHeight, "window max_height %d below min_height %d", w.MaxHeight, w.MinHeight)
	check(w.FrameLimit >= 0, "window frame_limit %v", w.FrameLimit)

	r := c.Renderer
	check(r.MSAA == 1 || r.MSAA == 4, "renderer msaa %d, want 1 or 4", r.MSAA)
	check(r.MaxLights > 0, "renderer max_lights %d", r.MaxLights)

	l := c.Loader
	check(l.Workers > 0, "loader workers %d", l.Workers)
	check(l.ReloadDebounce.Duration >= 0, "loader reload_debounce %s", l.ReloadDebounce)
	check(l.HTTPTimeout.Duration >= 0, "loader http_timeout %s", l.HTTPTimeout)

	g := c.Logging
	for name, d := range map[string]Duration{
		"loader reload_debounce":    l.ReloadDebounce,
		"loader http_timeout":       l.HTTPTimeout,
		"logging profiler_interval": g.ProfilerInterval,
	} {
		check(d.Valid(), "%s duration %q", name, d.invalid)
	}
	_, err := ParseLevel(g.Level)
	check(err == nil, "logging level %q", g.Level)
	check(g.Format == "text" || g.Format == "json", "logging format %q", g.Format)
	check(!g.ProfilerInterval.Valid() || g.ProfilerInterval.Duration > 0, "logging profiler_interval %s", g.ProfilerInterval)

	return errors.Join(errs...)
}

// LevelOff disables logging.
const LevelOff = slog.Level(100)

// ParseLevel converts a level name.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "off", "none":
		return LevelOff, nil
	}
	return 0, fmt.Errorf("%w: log level %q", ErrInvalid, s)
}

// NewLogger builds the logger described by l, writing to w.
//
// Parameters:
//   - w: the destination, usually os.Stderr
//
// Returns:
//   - *slog.Logger: the logger
//   - error: an error for an unknown level
func (l Logging) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
