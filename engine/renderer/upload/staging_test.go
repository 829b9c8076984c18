package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer/headless"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

func TestAllocationsDoNotOverlap(t *testing.T) {
	gfx := headless.NewDevice()
	p := NewBufferStagingProvider(gfx, 4096)
	defer p.Close()

	a, err := p.Allocate(100, "a")
	require.NoError(t, err)
	b, err := p.Allocate(100, "b")
	require.NoError(t, err)

	assert.Same(t, a.Buffer, b.Buffer)
	assert.GreaterOrEqual(t, b.Offset, a.Offset+metadata.SubresourcePlacementAlignment)

	copy(a.Mapped, []byte("first"))
	copy(b.Mapped, []byte("second"))
	assert.Equal(t, byte('f'), a.Mapped[0])
	assert.Equal(t, byte('s'), b.Mapped[0])
}

func TestZeroSizeAllocation(t *testing.T) {
	gfx := headless.NewDevice()
	p := NewBufferStagingProvider(gfx, 4096)
	defer p.Close()

	a, err := p.Allocate(0, "empty")
	require.NoError(t, err)
	assert.Nil(t, a.Buffer)
	assert.Empty(t, a.Mapped)
}

func TestOversizeRequestGetsDedicatedChunk(t *testing.T) {
	gfx := headless.NewDevice()
	p := NewBufferStagingProvider(gfx, 1024)
	defer p.Close()

	small, err := p.Allocate(64, "small")
	require.NoError(t, err)
	big, err := p.Allocate(10_000, "big")
	require.NoError(t, err)

	assert.NotSame(t, small.Buffer, big.Buffer)
	assert.Equal(t, uint64(10_000), big.Size)
	assert.Len(t, big.Mapped, 10_000)
}

func TestChunkResetsAfterRetire(t *testing.T) {
	gfx := headless.NewDevice()
	p := NewBufferStagingProvider(gfx, 4096)
	defer p.Close()

	a, err := p.Allocate(512, "a")
	require.NoError(t, err)
	p.OnBatchSubmitted(1)

	b, err := p.Allocate(512, "b")
	require.NoError(t, err)
	p.OnBatchSubmitted(2)
	assert.Greater(t, b.Offset, a.Offset)

	// Fence 1 alone leaves the chunk occupied.
	p.RetireCompleted("test", 1)
	c, err := p.Allocate(512, "c")
	require.NoError(t, err)
	assert.Greater(t, c.Offset, b.Offset)
	p.OnBatchSubmitted(3)

	// All fences done: the chunk rewinds to its start.
	p.RetireCompleted("test", 3)
	d, err := p.Allocate(512, "d")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), d.Offset)
}

func TestAllocateFailurePropagates(t *testing.T) {
	gfx := headless.NewDevice()
	p := NewBufferStagingProvider(gfx, 1024)
	defer p.Close()

	gfx.InjectBufferCreateFailures(1)
	_, err := p.Allocate(64, "doomed")
	assert.ErrorIs(t, err, core.ErrCapacityExhausted)

	// The next allocation recovers.
	_, err = p.Allocate(64, "fine")
	assert.NoError(t, err)
}

func TestClosedProviderRejectsAllocations(t *testing.T) {
	gfx := headless.NewDevice()
	p := NewBufferStagingProvider(gfx, 1024)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err := p.Allocate(64, "late")
	assert.ErrorIs(t, err, core.ErrStateViolation)
}
