package bindless

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygen3d/oxygen/engine/core"
)

func newTestAllocator(t *testing.T) *Allocator {
	t.Helper()
	a, err := NewAllocator(NewDefaultStrategy())
	require.NoError(t, err)
	return a
}

func TestAllocateReturnsSegmentBasedIndices(t *testing.T) {
	a := newTestAllocator(t)

	srv, err := a.Allocate(ViewTypeSRV, VisibilityShaderVisible)
	require.NoError(t, err)
	assert.True(t, srv.IsValid())
	assert.Equal(t, uint32(4096), srv.Index)
	assert.Equal(t, uint32(1), srv.Generation)

	cbv, err := a.Allocate(ViewTypeCBV, VisibilityShaderVisible)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), cbv.Index)

	assert.Equal(t, uint32(1), a.AllocatedCount(ViewTypeSRV, VisibilityShaderVisible))
	assert.Equal(t, uint32(1), a.AllocatedCount(ViewTypeCBV, VisibilityShaderVisible))
}

func TestReleaseRecyclesAndBumpsGeneration(t *testing.T) {
	a := newTestAllocator(t)

	first, err := a.Allocate(ViewTypeSRV, VisibilityShaderVisible)
	require.NoError(t, err)
	require.NoError(t, a.Release(first))
	assert.False(t, a.IsCurrent(first))

	second, err := a.Allocate(ViewTypeSRV, VisibilityShaderVisible)
	require.NoError(t, err)
	assert.Equal(t, first.Index, second.Index)
	assert.Equal(t, first.Generation+1, second.Generation)
	assert.True(t, a.IsCurrent(second))
}

func TestDoubleReleaseIsStale(t *testing.T) {
	a := newTestAllocator(t)

	h, err := a.Allocate(ViewTypeSRV, VisibilityShaderVisible)
	require.NoError(t, err)
	require.NoError(t, a.Release(h))

	err = a.Release(h)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestReleaseInvalidHandle(t *testing.T) {
	a := newTestAllocator(t)
	assert.ErrorIs(t, a.Release(InvalidHandle()), core.ErrInvalidArgument)
}

func TestReserveContiguousRange(t *testing.T) {
	a := newTestAllocator(t)

	base, err := a.Reserve(ViewTypeSRV, VisibilityShaderVisible, 16)
	require.NoError(t, err)
	assert.Equal(t, uint32(4096), base)

	next, err := a.Reserve(ViewTypeSRV, VisibilityShaderVisible, 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(4096+16), next)

	_, err = a.Reserve(ViewTypeSRV, VisibilityShaderVisible, 0)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestExhaustionWithoutGrowth(t *testing.T) {
	a, err := NewAllocator(NewDefaultStrategy(DefaultStrategyOverride{
		Domain:    Domain{ViewTypeRTV, VisibilityCPUOnly},
		Capacity:  2,
		BaseIndex: 0,
	}))
	require.NoError(t, err)

	_, err = a.Allocate(ViewTypeRTV, VisibilityCPUOnly)
	require.NoError(t, err)
	_, err = a.Allocate(ViewTypeRTV, VisibilityCPUOnly)
	require.NoError(t, err)

	_, err = a.Allocate(ViewTypeRTV, VisibilityCPUOnly)
	assert.ErrorIs(t, err, core.ErrCapacityExhausted)
}

func TestGrowthExtendsSegment(t *testing.T) {
	a, err := NewAllocator(NewDefaultStrategy(DefaultStrategyOverride{
		Domain:      Domain{ViewTypeSRV, VisibilityCPUOnly},
		Capacity:    2,
		AllowGrowth: true,
	}))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := a.Allocate(ViewTypeSRV, VisibilityCPUOnly)
		require.NoError(t, err)
	}
	assert.Equal(t, uint32(5), a.AllocatedCount(ViewTypeSRV, VisibilityCPUOnly))
}

func TestGrowthStopsAtNextDomainBase(t *testing.T) {
	// SRVs rebased flush against the UAV segment at 69632: two slots fit,
	// growing would overlap the neighboring domain's range.
	a, err := NewAllocator(NewDefaultStrategy(DefaultStrategyOverride{
		Domain:      Domain{ViewTypeSRV, VisibilityShaderVisible},
		BaseIndex:   69630,
		Capacity:    2,
		AllowGrowth: true,
	}))
	require.NoError(t, err)

	first, err := a.Allocate(ViewTypeSRV, VisibilityShaderVisible)
	require.NoError(t, err)
	assert.Equal(t, uint32(69630), first.Index)
	_, err = a.Allocate(ViewTypeSRV, VisibilityShaderVisible)
	require.NoError(t, err)

	_, err = a.Allocate(ViewTypeSRV, VisibilityShaderVisible)
	assert.ErrorIs(t, err, core.ErrCapacityExhausted)
}

func TestShaderVisibleRTVRejected(t *testing.T) {
	a := newTestAllocator(t)

	_, err := a.Allocate(ViewTypeRTV, VisibilityShaderVisible)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestShaderVisibleIndex(t *testing.T) {
	a := newTestAllocator(t)

	gpu, err := a.Allocate(ViewTypeSRV, VisibilityShaderVisible)
	require.NoError(t, err)
	assert.Equal(t, gpu.Index, a.ShaderVisibleIndex(gpu))

	cpu, err := a.Allocate(ViewTypeSRV, VisibilityCPUOnly)
	require.NoError(t, err)
	assert.Equal(t, InvalidIndex, a.ShaderVisibleIndex(cpu))

	assert.Equal(t, uint32(4096), a.DomainBaseIndex(ViewTypeSRV, VisibilityShaderVisible))
	assert.Equal(t, InvalidIndex, a.DomainBaseIndex(ViewTypeSRV, VisibilityCPUOnly))
}
