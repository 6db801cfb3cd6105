package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestDecodeOverridesDefaults(t *testing.T) {
	cfg, err := Decode([]byte(`
[window]
title = "Lit Scene"
vsync = true

[renderer]
msaa = 1
max_lights = 8
disabled_defines = ["FOG", "SPECULAR_MAP"]

[loader]
base_dir = "data"
watch = true
reload_debounce = "250ms"
preload = ["shaders/phong.wgsl"]

[logging]
level = "debug"
format = "json"
`))
	require.NoError(t, err)

	assert.Equal(t, "Lit Scene", cfg.Window.Title)
	assert.True(t, cfg.Window.VSync)
	assert.Equal(t, 1280, cfg.Window.Width)

	assert.Equal(t, 1, cfg.Renderer.MSAA)
	assert.Equal(t, 8, cfg.Renderer.MaxLights)
	assert.Equal(t, []string{"FOG", "SPECULAR_MAP"}, cfg.Renderer.DisabledDefines)
	assert.True(t, cfg.Renderer.Instancing)

	assert.Equal(t, "data", cfg.Loader.BaseDir)
	assert.True(t, cfg.Loader.Watch)
	assert.Equal(t, 250*time.Millisecond, cfg.Loader.ReloadDebounce.Duration)
	assert.Equal(t, 30*time.Second, cfg.Loader.HTTPTimeout.Duration)
	assert.Equal(t, []string{"shaders/phong.wgsl"}, cfg.Loader.Preload)

	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode([]byte("[window]\nfullscreen = true\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestDecodeRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"msaa":     "[renderer]\nmsaa = 2\n",
		"lights":   "[renderer]\nmax_lights = 0\n",
		"size":     "[window]\nwidth = 0\n",
		"level":    "[logging]\nlevel = \"loud\"\n",
		"format":   "[logging]\nformat = \"xml\"\n",
		"duration": "[loader]\nreload_debounce = \"soon\"\n",
		"interval": "[logging]\nprofiler_interval = \"often\"\n",
	}
	for name, doc := range cases {
		_, err := Decode([]byte(doc))
		assert.ErrorIs(t, err, ErrInvalid, name)
	}
}

func TestLoadLayersFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	local := filepath.Join(dir, "local.toml")
	require.NoError(t, os.WriteFile(base, []byte("[window]\ntitle = \"base\"\nwidth = 800\n"), 0o644))
	require.NoError(t, os.WriteFile(local, []byte("[window]\ntitle = \"local\"\n"), 0o644))

	cfg, err := Load(base, local)
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Window.Title)
	assert.Equal(t, 800, cfg.Window.Width)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEncodeRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Loader.ReloadDebounce = Dur(2 * time.Second)

	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))
	assert.Contains(t, buf.String(), "reload_debounce")

	back, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, cfg.Loader.ReloadDebounce, back.Loader.ReloadDebounce)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Logging{Level: "warn", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "source", "a.png")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	level, err := ParseLevel("off")
	require.NoError(t, err)
	assert.False(t, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})).Enabled(t.Context(), slog.LevelError))
}

func TestBadDurationNamesField(t *testing.T) {
	_, err := Decode([]byte("[loader]\nhttp_timeout = \"forever\"\n"))
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "loader http_timeout")
	assert.Contains(t, err.Error(), `"forever"`)

	cfg, err := Decode([]byte("[loader]\nhttp_timeout = \"5s\"\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Loader.HTTPTimeout.Valid())
	assert.Equal(t, Dur(5*time.Second), cfg.Loader.HTTPTimeout)
}
