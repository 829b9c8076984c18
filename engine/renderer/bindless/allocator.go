package bindless

import (
	"fmt"
	"sync"

	"github.com/oxygen3d/oxygen/engine/core"
)

// InvalidIndex marks a handle or shader index as unusable.
const InvalidIndex uint32 = 0xFFFFFFFF

// Handle is a bindless descriptor handle: the global index within the
// domain's segment plus the generation at allocation time.
type Handle struct {
	Index      uint32
	Generation uint32
	ViewType   ViewType
	Visibility Visibility
}

// InvalidHandle returns a handle that IsValid reports false for.
func InvalidHandle() Handle {
	return Handle{Index: InvalidIndex}
}

func (h Handle) IsValid() bool {
	return h.Index != InvalidIndex
}

type segment struct {
	desc        HeapDescription
	next        uint32
	freeList    []uint32
	generations *GenerationTracker
	allocated   uint32
}

// Allocator hands out shader-visible indices partitioned by domain. It is
// pure bookkeeping: backends publish actual descriptors through the
// resource registry using the indices allocated here.
type Allocator struct {
	mu       sync.Mutex
	strategy AllocationStrategy
	segments map[Domain]*segment
}

func NewAllocator(strategy AllocationStrategy) (*Allocator, error) {
	if strategy == nil {
		return nil, fmt.Errorf("allocation strategy is required: %w", core.ErrInvalidArgument)
	}
	a := &Allocator{
		strategy: strategy,
		segments: make(map[Domain]*segment),
	}
	bases := make(map[uint32]Domain)
	for _, d := range strategy.Domains() {
		desc, err := strategy.HeapDescription(d)
		if err != nil {
			return nil, err
		}
		// Samplers live in their own heap; only resource views share the
		// shader-visible descriptor space.
		if desc.ShaderVisible && d.ViewType != ViewTypeSampler {
			if prev, clash := bases[desc.BaseIndex]; clash {
				return nil, fmt.Errorf("domains %s and %s share base index %d: %w",
					prev.HeapKey(), d.HeapKey(), desc.BaseIndex, core.ErrInvalidArgument)
			}
			bases[desc.BaseIndex] = d
		}
		a.segments[d] = &segment{
			desc:        desc,
			generations: NewGenerationTracker(desc.Capacity),
		}
	}
	return a, nil
}

// Reserve returns the first global index of a contiguous range of count
// slots in the domain. It fails when the combination is illegal or the
// segment cannot satisfy the request.
func (a *Allocator) Reserve(vt ViewType, vis Visibility, count uint32) (uint32, error) {
	if count == 0 {
		return InvalidIndex, fmt.Errorf("reserve count must be > 0: %w", core.ErrInvalidArgument)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	seg, err := a.segmentFor(Domain{vt, vis})
	if err != nil {
		return InvalidIndex, err
	}
	if seg.next+count > seg.desc.Capacity {
		if !a.growLocked(Domain{vt, vis}, seg, count) {
			return InvalidIndex, fmt.Errorf("domain %s:%s out of descriptors: %w", vt, vis, core.ErrCapacityExhausted)
		}
	}
	local := seg.next
	seg.next += count
	seg.allocated += count
	return seg.desc.BaseIndex + local, nil
}

// Allocate hands out one slot, preferring recycled indices. The returned
// handle carries the slot's current generation.
func (a *Allocator) Allocate(vt ViewType, vis Visibility) (Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	seg, err := a.segmentFor(Domain{vt, vis})
	if err != nil {
		return InvalidHandle(), err
	}

	var local uint32
	if n := len(seg.freeList); n > 0 {
		local = seg.freeList[n-1]
		seg.freeList = seg.freeList[:n-1]
	} else {
		if seg.next >= seg.desc.Capacity && !a.growLocked(Domain{vt, vis}, seg, 1) {
			return InvalidHandle(), fmt.Errorf("domain %s:%s out of descriptors: %w", vt, vis, core.ErrCapacityExhausted)
		}
		local = seg.next
		seg.next++
	}
	seg.allocated++
	return Handle{
		Index:      seg.desc.BaseIndex + local,
		Generation: seg.generations.Load(local),
		ViewType:   vt,
		Visibility: vis,
	}, nil
}

// Release returns the handle's slot to its segment free pool and bumps the
// slot generation so stale handles are detectable.
func (a *Allocator) Release(h Handle) error {
	if !h.IsValid() {
		return fmt.Errorf("releasing invalid handle: %w", core.ErrInvalidArgument)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	seg, err := a.segmentFor(Domain{h.ViewType, h.Visibility})
	if err != nil {
		return err
	}
	local := h.Index - seg.desc.BaseIndex
	if local >= seg.next {
		return fmt.Errorf("handle index %d was never allocated: %w", h.Index, core.ErrNotFound)
	}
	if seg.generations.Load(local) != h.Generation {
		return fmt.Errorf("stale handle for index %d: %w", h.Index, core.ErrNotFound)
	}
	seg.generations.Bump(local)
	seg.freeList = append(seg.freeList, local)
	seg.allocated--
	return nil
}

// IsCurrent reports whether the handle's generation still matches the slot.
func (a *Allocator) IsCurrent(h Handle) bool {
	if !h.IsValid() {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	seg, err := a.segmentFor(Domain{h.ViewType, h.Visibility})
	if err != nil {
		return false
	}
	local := h.Index - seg.desc.BaseIndex
	return seg.generations.Load(local) == h.Generation
}

// ShaderVisibleIndex returns the index shaders use for the handle, or
// InvalidIndex for CPU-only domains.
func (a *Allocator) ShaderVisibleIndex(h Handle) uint32 {
	if !h.IsValid() || h.Visibility != VisibilityShaderVisible {
		return InvalidIndex
	}
	return h.Index
}

// DomainBaseIndex returns the stable base exposed to shaders so they can
// compute slot = base + local index. CPU-only domains return InvalidIndex.
func (a *Allocator) DomainBaseIndex(vt ViewType, vis Visibility) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	seg, err := a.segmentFor(Domain{vt, vis})
	if err != nil || !seg.desc.ShaderVisible {
		return InvalidIndex
	}
	return seg.desc.BaseIndex
}

// AllocatedCount reports live allocations in the domain.
func (a *Allocator) AllocatedCount(vt ViewType, vis Visibility) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	seg, err := a.segmentFor(Domain{vt, vis})
	if err != nil {
		return 0
	}
	return seg.allocated
}

func (a *Allocator) segmentFor(d Domain) (*segment, error) {
	seg, ok := a.segments[d]
	if ok {
		return seg, nil
	}
	// Surface the strategy's own error for illegal combinations.
	if _, err := a.strategy.HeapDescription(d); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("no segment for domain %s: %w", d.HeapKey(), core.ErrNotFound)
}

func (a *Allocator) growLocked(d Domain, seg *segment, need uint32) bool {
	if !seg.desc.AllowGrowth {
		return false
	}
	step := seg.desc.GrowthStep
	if step == 0 {
		step = seg.desc.Capacity
	}
	grown := seg.desc.Capacity
	for seg.next+need > grown {
		grown += step
	}
	if room, bounded := a.slotsBeforeNextBaseLocked(d, seg); bounded && grown > room {
		core.LogWarn("domain %s cannot grow to %d slots, next segment base leaves room for %d", d.HeapKey(), grown, room)
		return false
	}
	seg.desc.Capacity = grown
	seg.generations.Resize(grown)
	core.LogDebug("grew descriptor segment at base %d to %d slots", seg.desc.BaseIndex, grown)
	return true
}

// slotsBeforeNextBaseLocked returns how many slots the segment can hold
// before its range would run into the next segment in the shared
// shader-visible descriptor space. Samplers and CPU-only segments occupy
// their own heaps and are unbounded.
func (a *Allocator) slotsBeforeNextBaseLocked(d Domain, seg *segment) (uint32, bool) {
	if !seg.desc.ShaderVisible || d.ViewType == ViewTypeSampler {
		return 0, false
	}
	var room uint32
	bounded := false
	for other, s := range a.segments {
		if s == seg || !s.desc.ShaderVisible || other.ViewType == ViewTypeSampler {
			continue
		}
		if s.desc.BaseIndex <= seg.desc.BaseIndex {
			continue
		}
		if gap := s.desc.BaseIndex - seg.desc.BaseIndex; !bounded || gap < room {
			room = gap
			bounded = true
		}
	}
	return room, bounded
}
