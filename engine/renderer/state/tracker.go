package state

import (
	"fmt"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

type trackingEntry struct {
	initialState               metadata.ResourceState
	currentState               metadata.ResourceState
	keepInitialState           bool
	isPermanent                bool
	autoMemoryBarriers         bool
	firstMemoryBarrierInserted bool
}

// Tracker accumulates barriers for the buffers and textures touched while
// one command list records. It is single-threaded by construction, one
// tracker per list. Barriers are only accumulated; the recorder flushes
// them explicitly with TakePendingBarriers.
type Tracker struct {
	entries map[metadata.GPUResource]*trackingEntry
	pending []metadata.Barrier
}

func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[metadata.GPUResource]*trackingEntry),
	}
}

// BeginTrackingResourceState registers the resource with its known state at
// list begin. Tracking the same resource twice fails. keepInitialState
// guarantees the resource is restored when the list closes.
func (t *Tracker) BeginTrackingResourceState(resource metadata.GPUResource, initial metadata.ResourceState, keepInitialState bool) error {
	if resource == nil {
		return fmt.Errorf("nil resource: %w", core.ErrInvalidArgument)
	}
	switch resource.Kind() {
	case metadata.ResourceKindBuffer, metadata.ResourceKindTexture:
	default:
		return fmt.Errorf("cannot track resource '%s' of unknown kind: %w", resource.DebugName(), core.ErrInvalidArgument)
	}
	if _, tracked := t.entries[resource]; tracked {
		return fmt.Errorf("resource '%s' already tracked: %w", resource.DebugName(), core.ErrInvalidArgument)
	}
	t.entries[resource] = &trackingEntry{
		initialState:       initial,
		currentState:       initial,
		keepInitialState:   keepInitialState,
		autoMemoryBarriers: true,
	}
	return nil
}

func (t *Tracker) EnableAutoMemoryBarriers(resource metadata.GPUResource) error {
	e, err := t.entry(resource)
	if err != nil {
		return err
	}
	e.autoMemoryBarriers = true
	return nil
}

func (t *Tracker) DisableAutoMemoryBarriers(resource metadata.GPUResource) error {
	e, err := t.entry(resource)
	if err != nil {
		return err
	}
	e.autoMemoryBarriers = false
	return nil
}

// RequireResourceState records a transition to the target state if the
// resource is not already there. Repeated UAV usage inserts one UAV barrier
// between accesses while auto memory barriers are enabled.
func (t *Tracker) RequireResourceState(resource metadata.GPUResource, target metadata.ResourceState) error {
	return t.require(resource, target, false)
}

// RequireResourceStateFinal transitions like RequireResourceState and then
// marks the resource permanent: any later Require call on it is rejected.
func (t *Tracker) RequireResourceStateFinal(resource metadata.GPUResource, target metadata.ResourceState) error {
	return t.require(resource, target, true)
}

func (t *Tracker) require(resource metadata.GPUResource, target metadata.ResourceState, final bool) error {
	e, err := t.entry(resource)
	if err != nil {
		return err
	}
	if e.isPermanent {
		return fmt.Errorf("resource '%s' state is permanent: %w", resource.DebugName(), core.ErrStateViolation)
	}
	if e.currentState != target {
		t.pending = append(t.pending, metadata.Barrier{
			Type:     metadata.BarrierTypeTransition,
			Resource: resource,
			Before:   e.currentState,
			After:    target,
		})
		e.currentState = target
		e.firstMemoryBarrierInserted = false
	} else if target == metadata.StateUnorderedAccess && e.autoMemoryBarriers {
		// UAV to UAV: one memory barrier between successive accesses.
		if !e.firstMemoryBarrierInserted {
			t.pending = append(t.pending, metadata.Barrier{
				Type:     metadata.BarrierTypeUAV,
				Resource: resource,
				Before:   target,
				After:    target,
			})
			e.firstMemoryBarrierInserted = true
		}
	}
	if final {
		e.isPermanent = true
	}
	return nil
}

// TakePendingBarriers returns the accumulated barriers and clears the
// pending list. The caller emits them into the command stream.
func (t *Tracker) TakePendingBarriers() []metadata.Barrier {
	out := t.pending
	t.pending = nil
	return out
}

// PendingBarrierCount reports how many barriers await a flush.
func (t *Tracker) PendingBarrierCount() int {
	return len(t.pending)
}

// CurrentState returns the tracked state of the resource.
func (t *Tracker) CurrentState(resource metadata.GPUResource) (metadata.ResourceState, error) {
	e, err := t.entry(resource)
	if err != nil {
		return metadata.StateUndefined, err
	}
	return e.currentState, nil
}

// OnCommandListClosed restores keep-initial-state resources by appending the
// restoring transitions to the pending list.
func (t *Tracker) OnCommandListClosed() {
	for resource, e := range t.entries {
		if e.keepInitialState && e.currentState != e.initialState {
			t.pending = append(t.pending, metadata.Barrier{
				Type:     metadata.BarrierTypeTransition,
				Resource: resource,
				Before:   e.currentState,
				After:    e.initialState,
			})
			e.currentState = e.initialState
		}
	}
}

// OnCommandListSubmitted resets per-list bookkeeping but keeps tracked
// current states so a re-used list picks up where it left off.
func (t *Tracker) OnCommandListSubmitted() {
	t.pending = nil
	for _, e := range t.entries {
		e.firstMemoryBarrierInserted = false
	}
}

func (t *Tracker) entry(resource metadata.GPUResource) (*trackingEntry, error) {
	if resource == nil {
		return nil, fmt.Errorf("nil resource: %w", core.ErrInvalidArgument)
	}
	e, ok := t.entries[resource]
	if !ok {
		return nil, fmt.Errorf("resource '%s' is not tracked: %w", resource.DebugName(), core.ErrNotFound)
	}
	return e, nil
}
