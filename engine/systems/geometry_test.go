package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/math"
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/bindless"
	"github.com/oxygen3d/oxygen/engine/renderer/headless"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
	"github.com/oxygen3d/oxygen/engine/renderer/upload"
)

type geometryHarness struct {
	gfx        *headless.Device
	uploads    *upload.Coordinator
	geometries *GeometrySystem
}

func newGeometryHarness(t *testing.T, maxGeometries uint32, opts ...headless.Option) *geometryHarness {
	t.Helper()
	gfx := headless.NewDevice(opts...)
	allocator, err := bindless.NewAllocator(bindless.NewDefaultStrategy())
	require.NoError(t, err)
	uploads := upload.NewCoordinator(gfx, upload.NewBufferStagingProvider(gfx, 64*1024))
	gs, err := NewGeometrySystem(&GeometrySystemConfig{MaxGeometryCount: maxGeometries}, gfx, allocator, uploads)
	require.NoError(t, err)
	return &geometryHarness{gfx: gfx, uploads: uploads, geometries: gs}
}

func (h *geometryHarness) completePending() {
	h.gfx.Queue(renderer.QueueKindTransfer).(*headless.Queue).WaitIdle()
	h.uploads.PumpCompletions()
	h.geometries.OnFrameStart()
}

func triangleLOD() *metadata.MeshLOD {
	return &metadata.MeshLOD{
		VertexData:   make([]byte, 3*12),
		VertexCount:  3,
		VertexStride: 12,
		Indices:      []uint32{0, 1, 2},
		Bounds:       math.NewAABB(math.NewVec3(-1, -1, 0), math.NewVec3(1, 1, 0)),
	}
}

func TestGeometryResidencyLifecycle(t *testing.T) {
	h := newGeometryHarness(t, 8, headless.WithManualFences())
	key := metadata.GeometryKey{AssetKey: "meshes/tri", LODIndex: 0}

	require.NoError(t, h.geometries.GetOrAllocate(key, triangleLOD()))
	assert.True(t, h.geometries.Has(key))
	assert.False(t, h.geometries.IsResourceReady(key))
	assert.Equal(t, uint32(3), h.geometries.IndexCount(key))

	// Both SRVs read invalid until the uploads land.
	vb, ib := h.geometries.ShaderVisibleIndices(key)
	assert.Equal(t, metadata.InvalidID, vb)
	assert.Equal(t, metadata.InvalidID, ib)

	h.geometries.OnFrameStart()
	assert.False(t, h.geometries.IsResourceReady(key))

	h.completePending()
	assert.True(t, h.geometries.IsResourceReady(key))
	vb, ib = h.geometries.ShaderVisibleIndices(key)
	assert.NotEqual(t, metadata.InvalidID, vb)
	assert.NotEqual(t, metadata.InvalidID, ib)
	assert.NotEqual(t, vb, ib)
}

func TestGeometryDedupePerLOD(t *testing.T) {
	h := newGeometryHarness(t, 8)
	lod0 := metadata.GeometryKey{AssetKey: "meshes/rock", LODIndex: 0}
	lod1 := metadata.GeometryKey{AssetKey: "meshes/rock", LODIndex: 1}

	require.NoError(t, h.geometries.GetOrAllocate(lod0, triangleLOD()))
	require.NoError(t, h.geometries.GetOrAllocate(lod0, nil))
	assert.Equal(t, 1, h.geometries.EntryCount())

	require.NoError(t, h.geometries.GetOrAllocate(lod1, triangleLOD()))
	assert.Equal(t, 2, h.geometries.EntryCount())
}

func TestGeometryRejectsEmptyLOD(t *testing.T) {
	h := newGeometryHarness(t, 8)
	key := metadata.GeometryKey{AssetKey: "meshes/empty", LODIndex: 0}

	err := h.geometries.GetOrAllocate(key, &metadata.MeshLOD{})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	err = h.geometries.GetOrAllocate(key, nil)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestGeometryTableFull(t *testing.T) {
	h := newGeometryHarness(t, 1)

	require.NoError(t, h.geometries.GetOrAllocate(metadata.GeometryKey{AssetKey: "a"}, triangleLOD()))
	err := h.geometries.GetOrAllocate(metadata.GeometryKey{AssetKey: "b"}, triangleLOD())
	assert.ErrorIs(t, err, core.ErrCapacityExhausted)
}

func TestGeometryReleaseFreesEntry(t *testing.T) {
	h := newGeometryHarness(t, 8)
	key := metadata.GeometryKey{AssetKey: "meshes/tri", LODIndex: 0}

	require.NoError(t, h.geometries.GetOrAllocate(key, triangleLOD()))
	require.NoError(t, h.geometries.GetOrAllocate(key, nil))
	h.completePending()

	h.geometries.Release(key)
	assert.True(t, h.geometries.Has(key))

	h.geometries.Release(key)
	assert.False(t, h.geometries.Has(key))
	assert.Equal(t, uint32(0), h.geometries.IndexCount(key))

	// Releasing an unknown key is a no-op.
	h.geometries.Release(key)
}

func TestGeometryFailedUploadRetries(t *testing.T) {
	h := newGeometryHarness(t, 8)
	key := metadata.GeometryKey{AssetKey: "meshes/tri", LODIndex: 0}

	// Starve buffer creation so the first upload attempt fails outright.
	h.gfx.InjectBufferCreateFailures(1)
	require.NoError(t, h.geometries.GetOrAllocate(key, triangleLOD()))
	h.completePending()
	assert.False(t, h.geometries.IsResourceReady(key))

	// The next acquire with data retries and succeeds.
	require.NoError(t, h.geometries.GetOrAllocate(key, triangleLOD()))
	h.completePending()
	assert.True(t, h.geometries.IsResourceReady(key))
}
