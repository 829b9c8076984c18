package renderer

import (
	"fmt"
	"sync"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer/bindless"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

// ViewDesc is what a bindless slot currently points at. For buffers the
// element range scopes the view; a zero ElementCount means "whole buffer".
type ViewDesc struct {
	Resource     metadata.GPUResource
	FirstElement uint32
	ElementCount uint32
	// Mip chain view parameters for textures.
	MostDetailedMip uint32
	MipLevels       uint32
}

type viewEntry struct {
	generation uint32
	view       ViewDesc
}

// ResourceRegistry maps bindless handles to the resource views shaders see.
// Binders register a view when a slot is first populated and update it in
// place to repoint the same index (placeholder to resident, resident to
// fallback). Lookups validate the handle generation.
type ResourceRegistry struct {
	mu    sync.RWMutex
	views map[uint32]*viewEntry
}

func NewResourceRegistry() *ResourceRegistry {
	return &ResourceRegistry{
		views: make(map[uint32]*viewEntry),
	}
}

// Register publishes the view for the handle's slot. Registering an already
// occupied slot fails; use Update to repoint.
func (r *ResourceRegistry) Register(h bindless.Handle, view ViewDesc) error {
	if !h.IsValid() {
		return fmt.Errorf("cannot register view for invalid handle: %w", core.ErrInvalidArgument)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.views[h.Index]; exists {
		return fmt.Errorf("slot %d already has a view: %w", h.Index, core.ErrInvalidArgument)
	}
	r.views[h.Index] = &viewEntry{generation: h.Generation, view: view}
	return nil
}

// Update repoints the slot to a new view. The handle generation must match
// the registration.
func (r *ResourceRegistry) Update(h bindless.Handle, view ViewDesc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.views[h.Index]
	if !ok {
		return fmt.Errorf("slot %d has no view: %w", h.Index, core.ErrNotFound)
	}
	if e.generation != h.Generation {
		return fmt.Errorf("stale handle for slot %d: %w", h.Index, core.ErrNotFound)
	}
	e.view = view
	return nil
}

// Find returns the view currently bound at the handle's slot.
func (r *ResourceRegistry) Find(h bindless.Handle) (ViewDesc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.views[h.Index]
	if !ok || e.generation != h.Generation {
		return ViewDesc{}, fmt.Errorf("no view for slot %d: %w", h.Index, core.ErrNotFound)
	}
	return e.view, nil
}

// Unregister drops the slot's view, typically right before the handle is
// released back to the allocator.
func (r *ResourceRegistry) Unregister(h bindless.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.views[h.Index]
	if ok && e.generation == h.Generation {
		delete(r.views, h.Index)
	}
}
