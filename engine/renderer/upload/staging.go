package upload

import (
	"fmt"
	"sync"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/math"
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

// Allocation is a CPU-writable, GPU-readable staging range. The span is
// persistently mapped; the owning provider unmaps on Close.
type Allocation struct {
	Buffer renderer.Buffer
	Offset uint64
	Size   uint64
	Mapped []byte
}

// StagingProvider supplies staging ranges for upload copies and recycles
// them once the consuming submissions have provably completed.
type StagingProvider interface {
	Allocate(size uint64, name string) (Allocation, error)
	// OnBatchSubmitted stamps every allocation handed out since the last
	// call with the fence value of the submission that consumes them.
	OnBatchSubmitted(fenceValue uint64)
	// RetireCompleted releases stamped ranges whose fence has completed.
	RetireCompleted(tag string, fenceValue uint64)
	Close() error
}

type stagingChunk struct {
	buffer renderer.Buffer
	mapped []byte
	head   uint64
	inUse  uint64
}

type stagingRange struct {
	chunk *stagingChunk
	size  uint64
	fence uint64
}

// BufferStagingProvider suballocates staging ranges from upload-heap chunks
// created through the graphics backend. Concurrent allocations never
// overlap; chunks reset once every range in them has retired.
type BufferStagingProvider struct {
	gfx       renderer.Graphics
	chunkSize uint64

	mu        sync.Mutex
	chunks    []*stagingChunk
	unstamped []stagingRange
	inFlight  []stagingRange
	closed    bool
}

func NewBufferStagingProvider(gfx renderer.Graphics, chunkSize uint64) *BufferStagingProvider {
	if chunkSize == 0 {
		chunkSize = 8 * 1024 * 1024
	}
	return &BufferStagingProvider{
		gfx:       gfx,
		chunkSize: chunkSize,
	}
}

// Allocate returns a staging range of the requested size, aligned to the
// subresource placement alignment. Zero-size requests return an empty span.
func (p *BufferStagingProvider) Allocate(size uint64, name string) (Allocation, error) {
	if size == 0 {
		return Allocation{Mapped: []byte{}}, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return Allocation{}, fmt.Errorf("staging provider closed: %w", core.ErrStateViolation)
	}

	aligned := math.AlignUp(size, metadata.SubresourcePlacementAlignment)
	chunk, err := p.chunkWithSpaceLocked(aligned, name)
	if err != nil {
		return Allocation{}, err
	}

	offset := chunk.head
	chunk.head += aligned
	chunk.inUse += aligned
	p.unstamped = append(p.unstamped, stagingRange{chunk: chunk, size: aligned})

	return Allocation{
		Buffer: chunk.buffer,
		Offset: offset,
		Size:   size,
		Mapped: chunk.mapped[offset : offset+size],
	}, nil
}

func (p *BufferStagingProvider) chunkWithSpaceLocked(size uint64, name string) (*stagingChunk, error) {
	for _, c := range p.chunks {
		if c.head+size <= uint64(len(c.mapped)) {
			return c, nil
		}
	}
	chunkSize := p.chunkSize
	if size > chunkSize {
		chunkSize = math.AlignUp(size, metadata.SubresourcePlacementAlignment)
	}
	buffer, err := p.gfx.CreateBuffer(&metadata.BufferDesc{
		Size:  chunkSize,
		Usage: metadata.BufferUsageCopySource,
		Heap:  metadata.HeapKindUpload,
		Name:  fmt.Sprintf("Staging[%d](%s)", len(p.chunks), name),
	})
	if err != nil {
		return nil, fmt.Errorf("staging allocation of %d bytes: %w", chunkSize, core.ErrCapacityExhausted)
	}
	mapped, err := buffer.Map()
	if err != nil {
		return nil, fmt.Errorf("mapping staging chunk: %w", core.ErrSystem)
	}
	chunk := &stagingChunk{buffer: buffer, mapped: mapped}
	p.chunks = append(p.chunks, chunk)
	return chunk, nil
}

func (p *BufferStagingProvider) OnBatchSubmitted(fenceValue uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.unstamped {
		r.fence = fenceValue
		p.inFlight = append(p.inFlight, r)
	}
	p.unstamped = p.unstamped[:0]
}

func (p *BufferStagingProvider) RetireCompleted(tag string, fenceValue uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.inFlight[:0]
	retired := 0
	for _, r := range p.inFlight {
		if r.fence <= fenceValue {
			r.chunk.inUse -= r.size
			if r.chunk.inUse == 0 {
				r.chunk.head = 0
			}
			retired++
		} else {
			kept = append(kept, r)
		}
	}
	p.inFlight = kept
	if retired > 0 {
		core.LogDebug("%s: retired %d staging ranges through fence %d", tag, retired, fenceValue)
	}
}

// Close unmaps and drops every chunk. Outstanding allocations become
// invalid.
func (p *BufferStagingProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	for _, c := range p.chunks {
		c.buffer.Unmap()
	}
	p.chunks = nil
	p.unstamped = nil
	p.inFlight = nil
	p.closed = true
	return nil
}
