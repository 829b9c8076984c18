package buffers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer/bindless"
	"github.com/oxygen3d/oxygen/engine/renderer/headless"
)

func newTestRing(t *testing.T, stride uint32, capacity uint32) *RingBuffer {
	t.Helper()
	gfx := headless.NewDevice()
	allocator, err := bindless.NewAllocator(bindless.NewDefaultStrategy())
	require.NoError(t, err)
	ring, err := NewRingBuffer(gfx, allocator, stride, "TestRing")
	require.NoError(t, err)
	if capacity > 0 {
		require.NoError(t, ring.ReserveElements(capacity, 0.0))
	}
	return ring
}

func TestRingGrowsExponentially(t *testing.T) {
	ring := newTestRing(t, 16, 0)
	assert.Equal(t, uint32(0), ring.CapacityElements())

	require.NoError(t, ring.ReserveElements(5, 0.0))
	assert.Equal(t, uint32(8), ring.CapacityElements())

	srv := ring.ShaderVisibleIndex()
	require.NoError(t, ring.ReserveElements(100, 0.0))
	assert.Equal(t, uint32(128), ring.CapacityElements())
	assert.Equal(t, srv, ring.ShaderVisibleIndex())

	// Already large enough.
	require.NoError(t, ring.ReserveElements(64, 0.0))
	assert.Equal(t, uint32(128), ring.CapacityElements())
}

func TestRingSequentialAllocations(t *testing.T) {
	ring := newTestRing(t, 16, 16)

	a, err := ring.Allocate(4, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), a.FirstElement)
	assert.Equal(t, uint64(0), a.ByteOffset)

	b, err := ring.Allocate(4, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), b.FirstElement)
	assert.Equal(t, uint64(64), b.ByteOffset)
}

func TestRingAlignment(t *testing.T) {
	ring := newTestRing(t, 16, 16)

	_, err := ring.Allocate(3, 1)
	require.NoError(t, err)
	aligned, err := ring.Allocate(2, 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), aligned.FirstElement)

	_, err = ring.Allocate(1, 3)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
	_, err = ring.Allocate(0, 1)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestRingWrapAndReclaimFIFO(t *testing.T) {
	ring := newTestRing(t, 16, 8)

	// Frame 1 fills the first six elements.
	_, err := ring.Allocate(6, 1)
	require.NoError(t, err)
	chunk1, ok := ring.FinalizeChunk()
	require.True(t, ok)

	// Frame 2 cannot fit four elements at the head or the start.
	_, err = ring.Allocate(4, 1)
	assert.ErrorIs(t, err, core.ErrCapacityExhausted)

	// Two elements still fit at the head.
	alloc, err := ring.Allocate(2, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), alloc.FirstElement)
	chunk2, ok := ring.FinalizeChunk()
	require.True(t, ok)

	// Reclaim is strictly FIFO.
	assert.False(t, ring.TryReclaim(chunk2))
	assert.True(t, ring.TryReclaim(chunk1))

	// Space at the start is usable again after the wrap.
	wrapped, err := ring.Allocate(4, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), wrapped.FirstElement)

	_, ok = ring.FinalizeChunk()
	require.True(t, ok)
	assert.True(t, ring.TryReclaim(chunk2))
}

func TestRingFullAfterWrapDoesNotOverlapOutstandingChunk(t *testing.T) {
	ring := newTestRing(t, 16, 4)

	// Frame 1 takes the front half, frame 2 one more element.
	_, err := ring.Allocate(2, 1)
	require.NoError(t, err)
	chunk1, ok := ring.FinalizeChunk()
	require.True(t, ok)
	_, err = ring.Allocate(1, 1)
	require.NoError(t, err)
	chunk2, ok := ring.FinalizeChunk()
	require.True(t, ok)
	require.True(t, ring.TryReclaim(chunk1))

	// Wrapping into the reclaimed front half lands the head exactly on the
	// tail and fills the ring.
	wrapped, err := ring.Allocate(2, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), wrapped.FirstElement)

	// Full is not empty: the next allocation must not hand out the range
	// still owned by the outstanding chunk.
	_, err = ring.Allocate(1, 1)
	assert.ErrorIs(t, err, core.ErrCapacityExhausted)

	// Reclaiming the outstanding chunk frees its element again.
	_, ok = ring.FinalizeChunk()
	require.True(t, ok)
	require.True(t, ring.TryReclaim(chunk2))
	freed, err := ring.Allocate(1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), freed.FirstElement)
}

func TestRingFinalizeEmptyChunk(t *testing.T) {
	ring := newTestRing(t, 16, 8)
	_, ok := ring.FinalizeChunk()
	assert.False(t, ok)
}

func TestRingResetsWhenDrained(t *testing.T) {
	ring := newTestRing(t, 16, 8)

	_, err := ring.Allocate(5, 1)
	require.NoError(t, err)
	id, ok := ring.FinalizeChunk()
	require.True(t, ok)
	require.True(t, ring.TryReclaim(id))

	// Fully drained: the next allocation starts at zero again.
	alloc, err := ring.Allocate(8, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), alloc.FirstElement)
}

func TestRingActiveRangeBounds(t *testing.T) {
	ring := newTestRing(t, 16, 8)

	require.NoError(t, ring.SetActiveRange(0, 8))
	assert.ErrorIs(t, ring.SetActiveRange(4, 8), core.ErrInvalidArgument)
}
