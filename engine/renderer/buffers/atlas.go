package buffers

import (
	"fmt"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/bindless"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

// EnsureResult tells the caller what EnsureCapacity did to the underlying
// buffer.
type EnsureResult uint8

const (
	EnsureUnchanged EnsureResult = iota
	EnsureCreated
	EnsureResized
)

// ElementRef is one allocated atlas element.
type ElementRef struct {
	Index uint32
	valid bool
}

func (r ElementRef) IsValid() bool {
	return r.valid
}

// AtlasBuffer is a fixed-stride structured buffer in device-local memory
// whose elements have sparse lifetimes. One SRV, allocated at construction,
// stays stable across resizes; released indices recycle through per-slot
// retire lists and become allocatable only after OnFrameStart for the slot
// they were released in. Resize does not migrate element contents; callers
// re-upload live elements if they need them.
type AtlasBuffer struct {
	gfx       renderer.Graphics
	allocator *bindless.Allocator
	name      string
	stride    uint32

	buffer   renderer.Buffer
	srv      bindless.Handle
	capacity uint32
	next     uint32
	freeList []uint32
	retire   [][]uint32
}

func NewAtlasBuffer(gfx renderer.Graphics, allocator *bindless.Allocator, stride uint32, frameSlots uint8, name string) (*AtlasBuffer, error) {
	if stride == 0 || frameSlots == 0 {
		return nil, fmt.Errorf("atlas '%s' needs a stride and at least one frame slot: %w", name, core.ErrInvalidArgument)
	}
	srv, err := allocator.Allocate(bindless.ViewTypeSRV, bindless.VisibilityShaderVisible)
	if err != nil {
		return nil, err
	}
	retire := make([][]uint32, frameSlots)
	return &AtlasBuffer{
		gfx:       gfx,
		allocator: allocator,
		name:      name,
		stride:    stride,
		srv:       srv,
		retire:    retire,
	}, nil
}

// ShaderVisibleIndex returns the stable bindless index of the atlas SRV.
func (a *AtlasBuffer) ShaderVisibleIndex() uint32 {
	return a.allocator.ShaderVisibleIndex(a.srv)
}

// CapacityElements returns the current element capacity.
func (a *AtlasBuffer) CapacityElements() uint32 {
	return a.capacity
}

// EnsureCapacity recreates the underlying buffer when minElements exceeds
// the current capacity, applying the slack fraction on growth. The SRV is
// repointed in place, so the shader-visible index never changes.
func (a *AtlasBuffer) EnsureCapacity(minElements uint32, slack float32) (EnsureResult, error) {
	if minElements <= a.capacity {
		return EnsureUnchanged, nil
	}
	target := minElements + uint32(float32(minElements)*slack)

	buffer, err := a.gfx.CreateBuffer(&metadata.BufferDesc{
		Size:   uint64(target) * uint64(a.stride),
		Usage:  metadata.BufferUsageStructured | metadata.BufferUsageCopyDest,
		Heap:   metadata.HeapKindDefault,
		Stride: a.stride,
		Name:   a.name,
	})
	if err != nil {
		return EnsureUnchanged, fmt.Errorf("atlas '%s' grow to %d elements: %w", a.name, target, err)
	}

	result := EnsureResized
	view := renderer.ViewDesc{Resource: buffer, ElementCount: target}
	if a.buffer == nil {
		result = EnsureCreated
		if err := a.gfx.Registry().Register(a.srv, view); err != nil {
			return EnsureUnchanged, err
		}
	} else {
		if err := a.gfx.Registry().Update(a.srv, view); err != nil {
			return EnsureUnchanged, err
		}
	}
	a.buffer = buffer
	a.capacity = target
	return result, nil
}

// Allocate hands out one element index, drawing from the free list first.
// Multi-element allocations are not supported yet.
func (a *AtlasBuffer) Allocate(count uint32) (ElementRef, error) {
	if count != 1 {
		return ElementRef{}, fmt.Errorf("atlas '%s' only allocates single elements (got %d): %w", a.name, count, core.ErrInvalidArgument)
	}
	if n := len(a.freeList); n > 0 {
		idx := a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
		return ElementRef{Index: idx, valid: true}, nil
	}
	if a.next >= a.capacity {
		return ElementRef{}, fmt.Errorf("atlas '%s' is full at %d elements: %w", a.name, a.capacity, core.ErrCapacityExhausted)
	}
	idx := a.next
	a.next++
	return ElementRef{Index: idx, valid: true}, nil
}

// Release queues the element for recycling once the given frame slot is
// reached again.
func (a *AtlasBuffer) Release(ref ElementRef, slot uint8) error {
	if !ref.IsValid() || ref.Index >= a.capacity {
		return fmt.Errorf("atlas '%s' release of invalid element: %w", a.name, core.ErrInvalidArgument)
	}
	if int(slot) >= len(a.retire) {
		return fmt.Errorf("atlas '%s' release into unknown slot %d: %w", a.name, slot, core.ErrInvalidArgument)
	}
	a.retire[slot] = append(a.retire[slot], ref.Index)
	return nil
}

// OnFrameStart moves the slot's retired indices onto the free list. Reuse
// order is unspecified.
func (a *AtlasBuffer) OnFrameStart(slot uint8) {
	if int(slot) >= len(a.retire) {
		return
	}
	a.freeList = append(a.freeList, a.retire[slot]...)
	a.retire[slot] = a.retire[slot][:0]
}

// MakeUploadDesc builds the destination tuple for writing size bytes into
// the element through the upload coordinator.
func (a *AtlasBuffer) MakeUploadDesc(ref ElementRef, size uint64) (metadata.BufferUploadDesc, error) {
	if !ref.IsValid() || ref.Index >= a.capacity {
		return metadata.BufferUploadDesc{}, fmt.Errorf("atlas '%s' upload to invalid element: %w", a.name, core.ErrInvalidArgument)
	}
	if size > uint64(a.stride) {
		return metadata.BufferUploadDesc{}, fmt.Errorf("atlas '%s' upload of %d bytes exceeds stride %d: %w", a.name, size, a.stride, core.ErrInvalidArgument)
	}
	return metadata.BufferUploadDesc{
		Dst:       a.buffer,
		DstOffset: uint64(ref.Index) * uint64(a.stride),
		Size:      size,
	}, nil
}
