package upload

import (
	"errors"
	"fmt"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

// Coordinator turns upload requests into staged copies on the transfer
// queue. It owns the ticket tracker and binds to a staging provider; one
// Submit call batches any number of requests into a single submission with
// one fence value.
type Coordinator struct {
	gfx      renderer.Graphics
	queue    renderer.CommandQueue
	provider StagingProvider
	tracker  *Tracker
}

func NewCoordinator(gfx renderer.Graphics, provider StagingProvider) *Coordinator {
	return &Coordinator{
		gfx:      gfx,
		queue:    gfx.Queue(renderer.QueueKindTransfer),
		provider: provider,
		tracker:  NewTracker(),
	}
}

func (c *Coordinator) Tracker() *Tracker {
	return c.tracker
}

// Submit stages and records every request, submits the batch and returns
// one ticket per request, in request order. Requests that fail to stage
// yield immediately-failed tickets without corrupting the rest of the
// batch.
func (c *Coordinator) Submit(requests ...metadata.UploadRequest) ([]Ticket, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	rec, err := c.gfx.AcquireRecorder(renderer.QueueKindTransfer)
	if err != nil {
		return c.failAll(requests, CodeSubmitFailed), nil
	}
	if err := rec.Begin(); err != nil {
		return c.failAll(requests, CodeSubmitFailed), nil
	}

	tickets := make([]Ticket, len(requests))
	type recorded struct {
		index int
		bytes uint64
	}
	var batch []recorded

	for i, req := range requests {
		bytes, err := c.record(rec, &req)
		if err != nil {
			code := CodeStagingAllocFailed
			if errors.Is(err, core.ErrSystem) {
				code = CodeMapFailed
			} else if errors.Is(err, core.ErrInvalidArgument) || errors.Is(err, core.ErrValidation) {
				code = CodeValidationFailed
			}
			tickets[i] = c.tracker.RegisterFailedImmediate(req.Name, code)
			continue
		}
		batch = append(batch, recorded{index: i, bytes: bytes})
	}

	if len(batch) == 0 {
		// Nothing staged; the recorder is abandoned unsubmitted.
		return tickets, nil
	}

	if err := rec.End(); err != nil {
		for _, b := range batch {
			tickets[b.index] = c.tracker.RegisterFailedImmediate(requests[b.index].Name, CodeSubmitFailed)
		}
		return tickets, nil
	}
	fence, err := c.queue.Submit(rec)
	if err != nil {
		for _, b := range batch {
			tickets[b.index] = c.tracker.RegisterFailedImmediate(requests[b.index].Name, CodeSubmitFailed)
		}
		return tickets, nil
	}

	for _, b := range batch {
		tickets[b.index] = c.tracker.Register(fence, b.bytes, requests[b.index].Name)
		core.MetricsRecordUpload(b.bytes)
	}
	c.provider.OnBatchSubmitted(fence)
	return tickets, nil
}

// SubmitOne is a convenience wrapper for single-request submissions.
func (c *Coordinator) SubmitOne(req metadata.UploadRequest) (Ticket, error) {
	tickets, err := c.Submit(req)
	if err != nil {
		return Ticket{}, err
	}
	return tickets[0], nil
}

func (c *Coordinator) record(rec renderer.CommandRecorder, req *metadata.UploadRequest) (uint64, error) {
	switch req.Kind {
	case metadata.UploadKindBuffer:
		dst, ok := req.Buffer.Dst.(renderer.Buffer)
		if !ok || dst == nil {
			return 0, fmt.Errorf("buffer upload '%s' has no destination buffer: %w", req.Name, core.ErrInvalidArgument)
		}
		size := req.Buffer.Size
		if size == 0 {
			size = uint64(len(req.Data))
		}
		if uint64(len(req.Data)) < size {
			return 0, fmt.Errorf("buffer upload '%s' data shorter than size %d: %w", req.Name, size, core.ErrInvalidArgument)
		}
		alloc, err := c.provider.Allocate(size, req.Name)
		if err != nil {
			return 0, err
		}
		copy(alloc.Mapped, req.Data[:size])
		if size > 0 {
			if err := rec.CopyBuffer(dst, req.Buffer.DstOffset, alloc.Buffer, alloc.Offset, size); err != nil {
				return 0, err
			}
		}
		return size, nil

	case metadata.UploadKindTexture:
		dst, ok := req.Texture.Dst.(renderer.Texture)
		if !ok || dst == nil {
			return 0, fmt.Errorf("texture upload '%s' has no destination texture: %w", req.Name, core.ErrInvalidArgument)
		}
		if len(req.Texture.Layouts) == 0 {
			return 0, fmt.Errorf("texture upload '%s' has no subresource layouts: %w", req.Name, core.ErrInvalidArgument)
		}
		if err := metadata.ValidateTextureLayout(dst.Desc(), req.Texture.Layouts, uint64(len(req.Data))); err != nil {
			return 0, fmt.Errorf("texture upload '%s': %s: %w", req.Name, err, core.ErrValidation)
		}
		size := uint64(len(req.Data))
		alloc, err := c.provider.Allocate(size, req.Name)
		if err != nil {
			return 0, err
		}
		copy(alloc.Mapped, req.Data)
		if err := rec.CopyBufferToTexture(dst, alloc.Buffer, alloc.Offset, req.Texture.Layouts); err != nil {
			return 0, err
		}
		return size, nil

	default:
		return 0, fmt.Errorf("upload '%s' has unknown kind %d: %w", req.Name, req.Kind, core.ErrInvalidArgument)
	}
}

func (c *Coordinator) failAll(requests []metadata.UploadRequest, code ErrorCode) []Ticket {
	tickets := make([]Ticket, len(requests))
	for i, req := range requests {
		tickets[i] = c.tracker.RegisterFailedImmediate(req.Name, code)
	}
	return tickets
}

// PumpCompletions folds the queue's completed fence into the tracker.
func (c *Coordinator) PumpCompletions() {
	c.tracker.MarkFenceCompleted(c.queue.CompletedFenceValue())
}

// OnFrameStart advances completions, retires the slot's tickets and
// releases staging ranges whose fences have completed.
func (c *Coordinator) OnFrameStart(tag string, slot uint8) {
	c.PumpCompletions()
	c.tracker.OnFrameStart(tag, slot)
	c.provider.RetireCompleted(tag, c.tracker.CompletedFenceValue())
}
