package upload

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygen3d/oxygen/engine/core"
)

func TestFenceOrderedCompletion(t *testing.T) {
	tr := NewTracker()

	t1 := tr.Register(5, 128, "mesh")
	t2 := tr.Register(7, 256, "texture")
	assert.False(t, tr.IsComplete(t1.ID))
	assert.False(t, tr.IsComplete(t2.ID))
	assert.Equal(t, uint64(7), tr.LastRegisteredFenceValue())
	assert.Equal(t, 2, tr.PendingCount())

	tr.MarkFenceCompleted(5)
	assert.True(t, tr.IsComplete(t1.ID))
	assert.False(t, tr.IsComplete(t2.ID))

	r1, err := tr.TryGetResult(t1.ID)
	require.NoError(t, err)
	assert.True(t, r1.Success())
	assert.Equal(t, uint64(128), r1.BytesUploaded)

	tr.MarkFenceCompleted(7)
	r2, err := tr.TryGetResult(t2.ID)
	require.NoError(t, err)
	assert.True(t, r2.Success())
	assert.Equal(t, uint64(256), r2.BytesUploaded)
	assert.Equal(t, 0, tr.PendingCount())
}

func TestRegisterBehindCompletedFence(t *testing.T) {
	tr := NewTracker()
	tr.MarkFenceCompleted(10)

	ticket := tr.Register(3, 64, "late")
	assert.True(t, tr.IsComplete(ticket.ID))

	r, err := tr.TryGetResult(ticket.ID)
	require.NoError(t, err)
	assert.True(t, r.Success())
}

func TestMarkFenceCompletedIsMonotonic(t *testing.T) {
	tr := NewTracker()
	tr.MarkFenceCompleted(8)
	tr.MarkFenceCompleted(3)
	assert.Equal(t, uint64(8), tr.CompletedFenceValue())
}

func TestResultConsumedExactlyOnce(t *testing.T) {
	tr := NewTracker()
	ticket := tr.Register(1, 32, "once")
	tr.MarkFenceCompleted(1)

	_, err := tr.TryGetResult(ticket.ID)
	require.NoError(t, err)

	r, err := tr.TryGetResult(ticket.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, CodeTicketNotFound, r.Code)
}

func TestTryGetResultPending(t *testing.T) {
	tr := NewTracker()
	ticket := tr.Register(9, 32, "pending")

	_, err := tr.TryGetResult(ticket.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	// Still consumable once complete.
	tr.MarkFenceCompleted(9)
	_, err = tr.TryGetResult(ticket.ID)
	assert.NoError(t, err)
}

func TestUnknownTicketIsComplete(t *testing.T) {
	tr := NewTracker()
	assert.True(t, tr.IsComplete(uuid.New()))
}

func TestRegisterFailedImmediate(t *testing.T) {
	tr := NewTracker()
	ticket := tr.RegisterFailedImmediate("broken", CodeStagingAllocFailed)
	assert.True(t, tr.IsComplete(ticket.ID))

	r, err := tr.TryGetResult(ticket.ID)
	require.NoError(t, err)
	assert.False(t, r.Success())
	assert.Equal(t, CodeStagingAllocFailed, r.Code)
}

func TestAwaitBlocksUntilCompletion(t *testing.T) {
	tr := NewTracker()
	ticket := tr.Register(2, 16, "awaited")

	go func() {
		time.Sleep(10 * time.Millisecond)
		tr.MarkFenceCompleted(2)
	}()

	r, err := tr.Await(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.True(t, r.Success())
}

func TestAwaitHonorsContext(t *testing.T) {
	tr := NewTracker()
	ticket := tr.Register(99, 16, "never")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := tr.Await(ctx, ticket.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAwaitAllPreservesOrder(t *testing.T) {
	tr := NewTracker()
	a := tr.Register(1, 8, "a")
	b := tr.Register(2, 16, "b")
	tr.MarkFenceCompleted(2)

	results, err := tr.AwaitAll(context.Background(), []uuid.UUID{b.ID, a.ID})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, b.ID, results[0].TicketID)
	assert.Equal(t, a.ID, results[1].TicketID)
}

func TestCancelPendingOnly(t *testing.T) {
	tr := NewTracker()
	pending := tr.Register(50, 8, "pending")
	done := tr.Register(1, 8, "done")
	tr.MarkFenceCompleted(1)

	assert.True(t, tr.Cancel(pending.ID))
	assert.False(t, tr.Cancel(pending.ID))
	assert.False(t, tr.Cancel(done.ID))
	assert.False(t, tr.Cancel(uuid.New()))

	r, err := tr.TryGetResult(pending.ID)
	require.NoError(t, err)
	assert.Equal(t, CodeCanceled, r.Code)
}

func TestOnFrameStartRetiresSlot(t *testing.T) {
	tr := NewTracker()

	tr.OnFrameStart("frame", 0)
	slot0 := tr.Register(1, 8, "slot0")

	tr.OnFrameStart("frame", 1)
	slot1 := tr.Register(100, 8, "slot1")

	// Wrapping back to slot 0 retires slot0's tickets, pending or not.
	tr.OnFrameStart("frame", 0)
	_, err := tr.TryGetResult(slot0.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	// The slot1 ticket survives until its own slot wraps.
	assert.False(t, tr.IsComplete(slot1.ID))
	tr.OnFrameStart("frame", 1)
	assert.True(t, tr.IsComplete(slot1.ID))
	assert.Equal(t, 0, tr.PendingCount())
}
