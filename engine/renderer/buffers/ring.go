package buffers

import (
	"fmt"

	"github.com/oxygen3d/oxygen/engine/containers"
	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/math"
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/bindless"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

// RingAllocation is one element range handed out by the ring.
type RingAllocation struct {
	FirstElement uint32
	ElementCount uint32
	ByteOffset   uint64
}

type ringChunk struct {
	id uint64
	// End cursor and the exact ring distance the chunk covers, alignment
	// gaps included, so reclaiming restores used precisely.
	end  uint32
	span uint32
}

// RingBuffer is a device-local structured buffer fed sequentially each
// frame. Allocations advance a head cursor; FinalizeChunk closes the
// in-progress range and TryReclaim releases closed chunks strictly FIFO
// once the caller knows the consuming work has finished. The SRV stays
// stable across growth. Overlapping writes are the caller's responsibility
// to prevent.
type RingBuffer struct {
	gfx       renderer.Graphics
	allocator *bindless.Allocator
	name      string
	stride    uint32

	buffer   renderer.Buffer
	srv      bindless.Handle
	capacity uint32

	head      uint32
	tail      uint32
	used      uint32
	openSpan  uint32
	open      bool
	nextChunk uint64
	chunks    *containers.RingQueue[ringChunk]
}

const ringMaxChunks = 64

func NewRingBuffer(gfx renderer.Graphics, allocator *bindless.Allocator, stride uint32, name string) (*RingBuffer, error) {
	if stride == 0 {
		return nil, fmt.Errorf("ring '%s' needs a non-zero stride: %w", name, core.ErrInvalidArgument)
	}
	srv, err := allocator.Allocate(bindless.ViewTypeSRV, bindless.VisibilityShaderVisible)
	if err != nil {
		return nil, err
	}
	return &RingBuffer{
		gfx:       gfx,
		allocator: allocator,
		name:      name,
		stride:    stride,
		srv:       srv,
		nextChunk: 1,
		chunks:    containers.NewRingQueue[ringChunk](ringMaxChunks),
	}, nil
}

// ShaderVisibleIndex returns the stable bindless index of the ring SRV.
func (r *RingBuffer) ShaderVisibleIndex() uint32 {
	return r.allocator.ShaderVisibleIndex(r.srv)
}

func (r *RingBuffer) CapacityElements() uint32 {
	return r.capacity
}

// ReserveElements grows the buffer exponentially until it holds at least
// desired elements (plus slack), recreating the buffer and repointing the
// stable SRV. Existing contents are not migrated.
func (r *RingBuffer) ReserveElements(desired uint32, slack float32) error {
	target := desired + uint32(float32(desired)*slack)
	if target <= r.capacity {
		return nil
	}
	grown := r.capacity
	if grown == 0 {
		grown = 1
	}
	for grown < target {
		grown *= 2
	}

	buffer, err := r.gfx.CreateBuffer(&metadata.BufferDesc{
		Size:   uint64(grown) * uint64(r.stride),
		Usage:  metadata.BufferUsageStructured | metadata.BufferUsageCopyDest,
		Heap:   metadata.HeapKindDefault,
		Stride: r.stride,
		Name:   r.name,
	})
	if err != nil {
		return fmt.Errorf("ring '%s' grow to %d elements: %w", r.name, grown, err)
	}

	view := renderer.ViewDesc{Resource: buffer, ElementCount: grown}
	if r.buffer == nil {
		if err := r.gfx.Registry().Register(r.srv, view); err != nil {
			return err
		}
	} else {
		if err := r.gfx.Registry().Update(r.srv, view); err != nil {
			return err
		}
	}
	r.buffer = buffer
	r.capacity = grown
	return nil
}

// Allocate reserves elements at the head, aligned to alignElements (a power
// of two). It wraps to the start when the tail region cannot fit the
// request; when neither region can, it fails with capacity exhausted.
func (r *RingBuffer) Allocate(elements uint32, alignElements uint32) (RingAllocation, error) {
	if elements == 0 {
		return RingAllocation{}, fmt.Errorf("ring '%s' zero-element allocation: %w", r.name, core.ErrInvalidArgument)
	}
	if alignElements == 0 || !math.IsPowerOfTwo(uint64(alignElements)) {
		return RingAllocation{}, fmt.Errorf("ring '%s' alignment %d is not a power of two: %w", r.name, alignElements, core.ErrInvalidArgument)
	}

	if r.used == 0 && r.chunks.IsEmpty() && !r.open {
		r.head = 0
		r.tail = 0
	}
	// A full ring parks the head on the tail; without the used check that
	// state is indistinguishable from empty and the region past the head
	// would be handed out again while its chunk is still outstanding.
	if r.used > 0 && r.head == r.tail {
		return RingAllocation{}, fmt.Errorf("ring '%s' cannot fit %d elements: %w", r.name, elements, core.ErrCapacityExhausted)
	}

	aligned := uint32(math.AlignUp(uint64(r.head), uint64(alignElements)))
	if r.fits(aligned, elements) {
		return r.commit(aligned, elements), nil
	}
	// Wrap to the start of the buffer.
	if r.head >= r.tail && r.tail >= elements {
		return r.commit(0, elements), nil
	}
	return RingAllocation{}, fmt.Errorf("ring '%s' cannot fit %d elements: %w", r.name, elements, core.ErrCapacityExhausted)
}

func (r *RingBuffer) fits(start, elements uint32) bool {
	if start+elements > r.capacity {
		return false
	}
	if r.head >= r.tail {
		// Free region runs from head to end of buffer.
		return start >= r.head
	}
	// Wrapped: free region is [head, tail).
	return start >= r.head && start+elements <= r.tail
}

func (r *RingBuffer) commit(start, elements uint32) RingAllocation {
	r.open = true
	var span uint32
	if start < r.head {
		span = (r.capacity - r.head) + elements
	} else {
		span = (start - r.head) + elements
	}
	r.used += span
	r.openSpan += span
	r.head = start + elements
	return RingAllocation{
		FirstElement: start,
		ElementCount: elements,
		ByteOffset:   uint64(start) * uint64(r.stride),
	}
}

// FinalizeChunk closes the in-progress per-frame chunk and returns its id.
// Returns false when nothing was allocated since the last finalize.
func (r *RingBuffer) FinalizeChunk() (uint64, bool) {
	if !r.open {
		return 0, false
	}
	chunk := ringChunk{id: r.nextChunk, end: r.head, span: r.openSpan}
	if err := r.chunks.Enqueue(chunk); err != nil {
		core.LogError("ring '%s' chunk queue overflow", r.name)
		return 0, false
	}
	r.nextChunk++
	r.open = false
	r.openSpan = 0
	return chunk.id, true
}

// TryReclaim releases the front finalized chunk, strictly FIFO: the caller
// must pass the exact front chunk id.
func (r *RingBuffer) TryReclaim(id uint64) bool {
	front, err := r.chunks.Peek()
	if err != nil || front.id != id {
		return false
	}
	chunk, _ := r.chunks.Dequeue()
	r.used -= chunk.span
	r.tail = chunk.end
	if r.used == 0 && !r.open {
		r.head = 0
		r.tail = 0
	}
	return true
}

// SetActiveRange narrows the SRV to the committed sub-range so shaders only
// see this frame's data.
func (r *RingBuffer) SetActiveRange(base, count uint32) error {
	if base+count > r.capacity {
		return fmt.Errorf("ring '%s' active range [%d,%d) exceeds capacity %d: %w", r.name, base, base+count, r.capacity, core.ErrInvalidArgument)
	}
	return r.gfx.Registry().Update(r.srv, renderer.ViewDesc{
		Resource:     r.buffer,
		FirstElement: base,
		ElementCount: count,
	})
}

// Buffer exposes the backing buffer for upload destinations.
func (r *RingBuffer) Buffer() renderer.Buffer {
	return r.buffer
}
