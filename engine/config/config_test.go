package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygen3d/oxygen/engine/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.validate())
	assert.True(t, cfg.Application.Headless)
	assert.EqualValues(t, 3, cfg.Renderer.FramesInFlight)
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := writeConfig(t, `
[application]
name = "demo"
width = 1920
headless = false

[renderer]
frames_in_flight = 2

[renderer.heaps.srv]
capacity = 1024
base_index = 4096
allow_growth = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Application.Name)
	assert.EqualValues(t, 1920, cfg.Application.Width)
	// Untouched keys keep their defaults.
	assert.EqualValues(t, 720, cfg.Application.Height)
	assert.Equal(t, "assets", cfg.Assets.Root)
	assert.EqualValues(t, 2, cfg.Renderer.FramesInFlight)

	heap, ok := cfg.Renderer.Heaps["srv"]
	require.True(t, ok)
	assert.EqualValues(t, 1024, heap.Capacity)
	assert.EqualValues(t, 4096, heap.BaseIndex)
	assert.True(t, heap.AllowGrowth)
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := writeConfig(t, `
[renderer]
frames_in_flight = 0
`)
	_, err := Load(path)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	path = writeConfig(t, `
[jobs]
workers = -1
`)
	_, err = Load(path)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadMalformedToml(t *testing.T) {
	path := writeConfig(t, `[application`)
	_, err := Load(path)
	assert.Error(t, err)
}
