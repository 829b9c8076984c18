package buffers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer/bindless"
	"github.com/oxygen3d/oxygen/engine/renderer/headless"
)

func newTestAtlas(t *testing.T, stride uint32, slots uint8) (*headless.Device, *AtlasBuffer) {
	t.Helper()
	gfx := headless.NewDevice()
	allocator, err := bindless.NewAllocator(bindless.NewDefaultStrategy())
	require.NoError(t, err)
	atlas, err := NewAtlasBuffer(gfx, allocator, stride, slots, "TestAtlas")
	require.NoError(t, err)
	return gfx, atlas
}

func TestAtlasRejectsBadConfig(t *testing.T) {
	gfx := headless.NewDevice()
	allocator, err := bindless.NewAllocator(bindless.NewDefaultStrategy())
	require.NoError(t, err)

	_, err = NewAtlasBuffer(gfx, allocator, 0, 3, "bad")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = NewAtlasBuffer(gfx, allocator, 64, 0, "bad")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestAtlasSRVStableAcrossResize(t *testing.T) {
	_, atlas := newTestAtlas(t, 64, 3)
	srv := atlas.ShaderVisibleIndex()
	assert.NotEqual(t, bindless.InvalidIndex, srv)

	result, err := atlas.EnsureCapacity(10, 0.0)
	require.NoError(t, err)
	assert.Equal(t, EnsureCreated, result)
	assert.Equal(t, uint32(10), atlas.CapacityElements())

	result, err = atlas.EnsureCapacity(100, 0.5)
	require.NoError(t, err)
	assert.Equal(t, EnsureResized, result)
	assert.Equal(t, uint32(150), atlas.CapacityElements())
	assert.Equal(t, srv, atlas.ShaderVisibleIndex())

	result, err = atlas.EnsureCapacity(50, 0.0)
	require.NoError(t, err)
	assert.Equal(t, EnsureUnchanged, result)
}

func TestAtlasAllocateAndExhaust(t *testing.T) {
	_, atlas := newTestAtlas(t, 64, 3)
	_, err := atlas.EnsureCapacity(2, 0.0)
	require.NoError(t, err)

	a, err := atlas.Allocate(1)
	require.NoError(t, err)
	b, err := atlas.Allocate(1)
	require.NoError(t, err)
	assert.NotEqual(t, a.Index, b.Index)

	_, err = atlas.Allocate(1)
	assert.ErrorIs(t, err, core.ErrCapacityExhausted)

	_, err = atlas.Allocate(4)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestAtlasRecycleDeferredToSlotWrap(t *testing.T) {
	_, atlas := newTestAtlas(t, 64, 3)
	_, err := atlas.EnsureCapacity(1, 0.0)
	require.NoError(t, err)

	ref, err := atlas.Allocate(1)
	require.NoError(t, err)
	require.NoError(t, atlas.Release(ref, 1))

	// Released but not yet recycled: the atlas is still full.
	_, err = atlas.Allocate(1)
	assert.ErrorIs(t, err, core.ErrCapacityExhausted)

	// Other slots wrapping does not free it.
	atlas.OnFrameStart(0)
	atlas.OnFrameStart(2)
	_, err = atlas.Allocate(1)
	assert.ErrorIs(t, err, core.ErrCapacityExhausted)

	atlas.OnFrameStart(1)
	again, err := atlas.Allocate(1)
	require.NoError(t, err)
	assert.Equal(t, ref.Index, again.Index)
}

func TestAtlasReleaseValidation(t *testing.T) {
	_, atlas := newTestAtlas(t, 64, 3)
	_, err := atlas.EnsureCapacity(1, 0.0)
	require.NoError(t, err)

	ref, err := atlas.Allocate(1)
	require.NoError(t, err)

	assert.ErrorIs(t, atlas.Release(ElementRef{}, 0), core.ErrInvalidArgument)
	assert.ErrorIs(t, atlas.Release(ref, 9), core.ErrInvalidArgument)
}

func TestAtlasUploadDesc(t *testing.T) {
	_, atlas := newTestAtlas(t, 64, 3)
	_, err := atlas.EnsureCapacity(4, 0.0)
	require.NoError(t, err)

	_, err = atlas.Allocate(1)
	require.NoError(t, err)
	ref, err := atlas.Allocate(1)
	require.NoError(t, err)

	desc, err := atlas.MakeUploadDesc(ref, 48)
	require.NoError(t, err)
	assert.Equal(t, uint64(ref.Index)*64, desc.DstOffset)
	assert.Equal(t, uint64(48), desc.Size)

	_, err = atlas.MakeUploadDesc(ref, 65)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = atlas.MakeUploadDesc(ElementRef{}, 8)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}
