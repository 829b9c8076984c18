package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

type fakeResource struct {
	name string
	kind metadata.ResourceKind
}

func (f *fakeResource) DebugName() string           { return f.name }
func (f *fakeResource) Kind() metadata.ResourceKind { return f.kind }

func fakeBuffer(name string) *fakeResource {
	return &fakeResource{name: name, kind: metadata.ResourceKindBuffer}
}

func fakeTexture(name string) *fakeResource {
	return &fakeResource{name: name, kind: metadata.ResourceKindTexture}
}

func TestTrackingRejectsDuplicatesAndUnknownKinds(t *testing.T) {
	tr := NewTracker()
	buf := fakeBuffer("vertices")

	require.NoError(t, tr.BeginTrackingResourceState(buf, metadata.StateCommon, false))
	err := tr.BeginTrackingResourceState(buf, metadata.StateCommon, false)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	unknown := &fakeResource{name: "?", kind: metadata.ResourceKindUnknown}
	err = tr.BeginTrackingResourceState(unknown, metadata.StateCommon, false)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	err = tr.BeginTrackingResourceState(nil, metadata.StateCommon, false)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestRequireEmitsTransitionOnce(t *testing.T) {
	tr := NewTracker()
	tex := fakeTexture("albedo")
	require.NoError(t, tr.BeginTrackingResourceState(tex, metadata.StateCommon, false))

	require.NoError(t, tr.RequireResourceState(tex, metadata.StateCopyDest))
	// Same state again: no new barrier.
	require.NoError(t, tr.RequireResourceState(tex, metadata.StateCopyDest))

	barriers := tr.TakePendingBarriers()
	require.Len(t, barriers, 1)
	assert.Equal(t, metadata.BarrierTypeTransition, barriers[0].Type)
	assert.Equal(t, metadata.StateCommon, barriers[0].Before)
	assert.Equal(t, metadata.StateCopyDest, barriers[0].After)

	current, err := tr.CurrentState(tex)
	require.NoError(t, err)
	assert.Equal(t, metadata.StateCopyDest, current)
	assert.Equal(t, 0, tr.PendingBarrierCount())
}

func TestRequireUntrackedResource(t *testing.T) {
	tr := NewTracker()
	err := tr.RequireResourceState(fakeBuffer("nope"), metadata.StateCopyDest)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestUAVMemoryBarrierBetweenAccesses(t *testing.T) {
	tr := NewTracker()
	buf := fakeBuffer("particles")
	require.NoError(t, tr.BeginTrackingResourceState(buf, metadata.StateCommon, false))

	require.NoError(t, tr.RequireResourceState(buf, metadata.StateUnorderedAccess))
	require.NoError(t, tr.RequireResourceState(buf, metadata.StateUnorderedAccess))
	require.NoError(t, tr.RequireResourceState(buf, metadata.StateUnorderedAccess))

	barriers := tr.TakePendingBarriers()
	require.Len(t, barriers, 2)
	assert.Equal(t, metadata.BarrierTypeTransition, barriers[0].Type)
	assert.Equal(t, metadata.BarrierTypeUAV, barriers[1].Type)
}

func TestUAVMemoryBarriersDisabled(t *testing.T) {
	tr := NewTracker()
	buf := fakeBuffer("particles")
	require.NoError(t, tr.BeginTrackingResourceState(buf, metadata.StateUnorderedAccess, false))
	require.NoError(t, tr.DisableAutoMemoryBarriers(buf))

	require.NoError(t, tr.RequireResourceState(buf, metadata.StateUnorderedAccess))
	require.NoError(t, tr.RequireResourceState(buf, metadata.StateUnorderedAccess))
	assert.Equal(t, 0, tr.PendingBarrierCount())

	require.NoError(t, tr.EnableAutoMemoryBarriers(buf))
	require.NoError(t, tr.RequireResourceState(buf, metadata.StateUnorderedAccess))
	assert.Equal(t, 1, tr.PendingBarrierCount())
}

func TestFinalStateIsPermanent(t *testing.T) {
	tr := NewTracker()
	tex := fakeTexture("static-lut")
	require.NoError(t, tr.BeginTrackingResourceState(tex, metadata.StateCopyDest, false))

	require.NoError(t, tr.RequireResourceStateFinal(tex, metadata.StateShaderResource))
	err := tr.RequireResourceState(tex, metadata.StateCopyDest)
	assert.ErrorIs(t, err, core.ErrStateViolation)
}

func TestKeepInitialStateRestoresOnClose(t *testing.T) {
	tr := NewTracker()
	tex := fakeTexture("backbuffer")
	require.NoError(t, tr.BeginTrackingResourceState(tex, metadata.StatePresent, true))

	require.NoError(t, tr.RequireResourceState(tex, metadata.StateRenderTarget))
	tr.TakePendingBarriers()

	tr.OnCommandListClosed()
	barriers := tr.TakePendingBarriers()
	require.Len(t, barriers, 1)
	assert.Equal(t, metadata.StateRenderTarget, barriers[0].Before)
	assert.Equal(t, metadata.StatePresent, barriers[0].After)

	current, err := tr.CurrentState(tex)
	require.NoError(t, err)
	assert.Equal(t, metadata.StatePresent, current)
}

func TestSubmittedKeepsStatesResetsUAVTracking(t *testing.T) {
	tr := NewTracker()
	buf := fakeBuffer("particles")
	require.NoError(t, tr.BeginTrackingResourceState(buf, metadata.StateCommon, false))
	require.NoError(t, tr.RequireResourceState(buf, metadata.StateUnorderedAccess))
	require.NoError(t, tr.RequireResourceState(buf, metadata.StateUnorderedAccess))

	tr.OnCommandListSubmitted()
	assert.Equal(t, 0, tr.PendingBarrierCount())

	current, err := tr.CurrentState(buf)
	require.NoError(t, err)
	assert.Equal(t, metadata.StateUnorderedAccess, current)

	// The next UAV pair on the re-used list gets its own memory barrier.
	require.NoError(t, tr.RequireResourceState(buf, metadata.StateUnorderedAccess))
	barriers := tr.TakePendingBarriers()
	require.Len(t, barriers, 1)
	assert.Equal(t, metadata.BarrierTypeUAV, barriers[0].Type)
}
