package headless

import (
	"fmt"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

// Recorder buffers commands as closures; the queue runs them at submit.
// Draw-related commands are tallied so tests can assert on what a pass
// recorded.
type Recorder struct {
	began  bool
	closed bool
	ops    []func()

	barriers      []metadata.Barrier
	pipelineSets  int
	draws         int
	indexedDraws  int
	rootConstants map[uint32]uint32
}

func (r *Recorder) Begin() error {
	if r.began {
		return fmt.Errorf("recorder Begin called twice: %w", core.ErrStateViolation)
	}
	r.began = true
	r.rootConstants = make(map[uint32]uint32)
	return nil
}

func (r *Recorder) End() error {
	if !r.began || r.closed {
		return fmt.Errorf("recorder End without matching Begin: %w", core.ErrStateViolation)
	}
	r.closed = true
	return nil
}

func (r *Recorder) CopyBuffer(dst renderer.Buffer, dstOffset uint64, src renderer.Buffer, srcOffset, size uint64) error {
	d, ok := dst.(*Buffer)
	if !ok {
		return fmt.Errorf("copy destination is not a headless buffer: %w", core.ErrInvalidArgument)
	}
	s, ok := src.(*Buffer)
	if !ok {
		return fmt.Errorf("copy source is not a headless buffer: %w", core.ErrInvalidArgument)
	}
	if dstOffset+size > d.Size() || srcOffset+size > s.Size() {
		return fmt.Errorf("copy of %d bytes out of bounds (%s -> %s): %w", size, s.name, d.name, core.ErrInvalidArgument)
	}
	r.ops = append(r.ops, func() {
		copy(d.data[dstOffset:dstOffset+size], s.data[srcOffset:srcOffset+size])
	})
	return nil
}

func (r *Recorder) CopyBufferToTexture(dst renderer.Texture, src renderer.Buffer, srcOffset uint64, layouts []metadata.SubresourceLayout) error {
	d, ok := dst.(*Texture)
	if !ok {
		return fmt.Errorf("copy destination is not a headless texture: %w", core.ErrInvalidArgument)
	}
	s, ok := src.(*Buffer)
	if !ok {
		return fmt.Errorf("copy source is not a headless buffer: %w", core.ErrInvalidArgument)
	}
	snapshot := make([]metadata.SubresourceLayout, len(layouts))
	copy(snapshot, layouts)
	r.ops = append(r.ops, func() {
		for _, l := range snapshot {
			// Unpack row-pitched staging rows into tight mip storage.
			tight := make([]byte, uint64(l.RowCount)*l.RowSize)
			for row := uint32(0); row < l.RowCount; row++ {
				from := srcOffset + l.Offset + uint64(row)*l.RowPitch
				to := uint64(row) * l.RowSize
				copy(tight[to:to+l.RowSize], s.data[from:from+l.RowSize])
			}
			d.subresources[l.MipLevel] = tight
		}
	})
	return nil
}

func (r *Recorder) Barrier(barriers []metadata.Barrier) {
	r.barriers = append(r.barriers, barriers...)
}

func (r *Recorder) SetRenderTargets(colors []renderer.Texture, depth renderer.Texture) {}

func (r *Recorder) ClearRenderTarget(target renderer.Texture, rgba [4]float32) {}

func (r *Recorder) ClearDepthStencil(target renderer.Texture, depth float32, stencil uint8) {}

func (r *Recorder) SetPipelineState(desc *metadata.PipelineStateDesc) error {
	if desc == nil {
		return fmt.Errorf("nil pipeline state: %w", core.ErrInvalidArgument)
	}
	r.pipelineSets++
	return nil
}

func (r *Recorder) SetRootConstant(slot uint32, value uint32) {
	r.rootConstants[slot] = value
}

func (r *Recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.draws++
}

func (r *Recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	r.indexedDraws++
}

// RecordedBarriers returns every barrier recorded so far.
func (r *Recorder) RecordedBarriers() []metadata.Barrier {
	return r.barriers
}

// DrawCount returns the number of draw calls recorded, indexed included.
func (r *Recorder) DrawCount() int {
	return r.draws + r.indexedDraws
}

// PipelineSetCount returns how many times a pipeline state was bound.
func (r *Recorder) PipelineSetCount() int {
	return r.pipelineSets
}

// RootConstant reports the last value written to a root constant slot.
func (r *Recorder) RootConstant(slot uint32) (uint32, bool) {
	v, ok := r.rootConstants[slot]
	return v, ok
}
