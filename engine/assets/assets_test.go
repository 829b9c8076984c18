package assets

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygen3d/oxygen/engine/core"
)

func newTestManager(t *testing.T) (*AssetManager, string) {
	t.Helper()
	root := t.TempDir()
	am, err := NewAssetManager(root)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, am.Shutdown()) })
	return am, root
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(file, img))
	require.NoError(t, file.Close())
}

func TestPathResolution(t *testing.T) {
	am, root := newTestManager(t)

	full := am.ResolvePath("textures/brick.png")
	assert.Equal(t, filepath.Join(root, "textures", "brick.png"), full)

	assert.Equal(t, "textures/brick.png", am.VirtualPath(full))
	// Paths outside the root come back unchanged.
	assert.Equal(t, "/elsewhere/file.png", am.VirtualPath("/elsewhere/file.png"))
}

func TestMissingRootIsNotFatal(t *testing.T) {
	am, err := NewAssetManager(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Zero(t, am.AssetCount())
}

func TestIndexCountsKnownAssetTypes(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "textures", "a.png"))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "mesh.geo"), []byte{1}, 0o644))

	am, err := NewAssetManager(root)
	require.NoError(t, err)
	defer am.Shutdown()

	// The text file is not an asset.
	assert.Equal(t, 2, am.AssetCount())
}

func TestLoadTextureSetsVirtualName(t *testing.T) {
	am, root := newTestManager(t)
	writePNG(t, filepath.Join(root, "textures", "brick.png"))

	cooked, err := am.LoadTexture("textures/brick.png")
	require.NoError(t, err)
	assert.Equal(t, "textures/brick.png", cooked.Desc.Name)
	assert.EqualValues(t, 2, cooked.Desc.Width)

	_, err = am.LoadTexture("textures/missing.png")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLoadBinaryThroughManager(t *testing.T) {
	am, root := newTestManager(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "blob.bin"), []byte{9, 8}, 0o644))

	data, err := am.LoadBinary("blob.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 8}, data)
}

func TestDetermineAssetType(t *testing.T) {
	assert.Equal(t, AssetTypeImage, determineAssetType("a/b.png"))
	assert.Equal(t, AssetTypeImage, determineAssetType("b.jpeg"))
	assert.Equal(t, AssetTypeShader, determineAssetType("forward_opaque.vert.spv"))
	assert.Equal(t, AssetTypeBinary, determineAssetType("mesh.geo"))
	assert.Equal(t, AssetTypeNone, determineAssetType("readme.md"))
}

func TestStartWatchingIsIdempotent(t *testing.T) {
	am, _ := newTestManager(t)

	require.NoError(t, am.StartWatching())
	require.NoError(t, am.StartWatching())
}
