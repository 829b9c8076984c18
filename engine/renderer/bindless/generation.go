package bindless

import "sync/atomic"

// GenerationTracker keeps one atomic generation counter per slot. Zero
// means uninitialized; the first Load promotes the slot to 1. Bump makes
// any outstanding handle to the slot detectably stale.
//
// Load uses acquire ordering, Bump release, and the promotion CAS acq/rel,
// so allocator and reclaim paths may race safely. Resize must only be
// called while no other goroutine touches the tracker.
type GenerationTracker struct {
	slots []atomic.Uint32
}

func NewGenerationTracker(capacity uint32) *GenerationTracker {
	return &GenerationTracker{
		slots: make([]atomic.Uint32, capacity),
	}
}

func (g *GenerationTracker) Capacity() uint32 {
	return uint32(len(g.slots))
}

// Load returns the current generation for the slot, promoting 0 to 1 on
// first access. Out-of-bounds indices return 0. The promotion never
// overwrites a concurrent Bump: if the CAS loses, the winner's value is
// re-read and returned.
func (g *GenerationTracker) Load(index uint32) uint32 {
	if index >= uint32(len(g.slots)) {
		return 0
	}
	v := g.slots[index].Load()
	if v == 0 {
		if g.slots[index].CompareAndSwap(0, 1) {
			return 1
		}
		return g.slots[index].Load()
	}
	return v
}

// Bump increments the slot's generation. Out-of-bounds indices are
// silently ignored. The counter wraps on overflow.
func (g *GenerationTracker) Bump(index uint32) {
	if index >= uint32(len(g.slots)) {
		return
	}
	g.slots[index].Add(1)
}

// Resize grows or shrinks the table, preserving existing values up to
// min(old, new). New slots start at 0. Callers must guarantee quiescence.
func (g *GenerationTracker) Resize(newCapacity uint32) {
	if newCapacity == uint32(len(g.slots)) {
		return
	}
	next := make([]atomic.Uint32, newCapacity)
	n := len(g.slots)
	if int(newCapacity) < n {
		n = int(newCapacity)
	}
	for i := 0; i < n; i++ {
		next[i].Store(g.slots[i].Load())
	}
	g.slots = next
}
