package vulkan

import (
	"fmt"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer"
)

// pendingSubmission pairs a fence with the monotonic value Submit handed
// out for it and the command buffer to recycle once it retires.
type pendingSubmission struct {
	fence  vk.Fence
	value  uint64
	buffer vk.CommandBuffer
	pool   vk.CommandPool
}

// Queue adapts a vk.Queue to the monotonic fence timeline the upload core
// expects: every submission gets the next value, and CompletedFenceValue
// advances as the per-submission fences signal.
type Queue struct {
	context *VulkanContext
	handle  vk.Queue
	pool    vk.CommandPool

	mu            sync.Mutex
	lastSubmitted uint64
	completed     uint64
	pending       []pendingSubmission
}

func newQueue(context *VulkanContext, handle vk.Queue, pool vk.CommandPool) *Queue {
	return &Queue{
		context: context,
		handle:  handle,
		pool:    pool,
	}
}

// Submit hands the recorder's command buffer to the hardware queue and
// returns its fence value.
func (q *Queue) Submit(rec renderer.CommandRecorder) (uint64, error) {
	recorder, ok := rec.(*Recorder)
	if !ok {
		return 0, fmt.Errorf("func Submit - recorder was not created by this device: %w", core.ErrInvalidArgument)
	}
	if !recorder.closed {
		return 0, fmt.Errorf("func Submit - recorder must be ended before submit: %w", core.ErrStateViolation)
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	var fence vk.Fence
	if res := vk.CreateFence(q.context.Device.LogicalDevice, &fenceCreateInfo, q.context.Allocator, &fence); res != vk.Success {
		return 0, fmt.Errorf("vkCreateFence failed with %s: %w", VulkanResultString(res, false), core.ErrSystem)
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{recorder.buffer},
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if res := vk.QueueSubmit(q.handle, 1, []vk.SubmitInfo{submitInfo}, fence); res != vk.Success {
		vk.DestroyFence(q.context.Device.LogicalDevice, fence, q.context.Allocator)
		return 0, fmt.Errorf("vkQueueSubmit failed with %s: %w", VulkanResultString(res, false), core.ErrSystem)
	}

	q.lastSubmitted++
	q.pending = append(q.pending, pendingSubmission{
		fence:  fence,
		value:  q.lastSubmitted,
		buffer: recorder.buffer,
		pool:   recorder.pool,
	})
	return q.lastSubmitted, nil
}

// CompletedFenceValue polls the pending fences in submission order and
// returns the highest value known complete.
func (q *Queue) CompletedFenceValue() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pollLocked()
	return q.completed
}

func (q *Queue) LastSubmittedFenceValue() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastSubmitted
}

// WaitIdle blocks until the hardware queue drains, then retires every
// pending submission.
func (q *Queue) WaitIdle() error {
	if res := vk.QueueWaitIdle(q.handle); res != vk.Success {
		return fmt.Errorf("vkQueueWaitIdle failed with %s: %w", VulkanResultString(res, false), core.ErrSystem)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range q.pending {
		q.retireLocked(p)
	}
	q.pending = q.pending[:0]
	q.completed = q.lastSubmitted
	return nil
}

// pollLocked retires the prefix of pending submissions whose fences have
// signaled. Fences signal in submission order on a single queue.
func (q *Queue) pollLocked() {
	retired := 0
	for _, p := range q.pending {
		if vk.GetFenceStatus(q.context.Device.LogicalDevice, p.fence) != vk.Success {
			break
		}
		q.retireLocked(p)
		q.completed = p.value
		retired++
	}
	if retired > 0 {
		q.pending = append(q.pending[:0], q.pending[retired:]...)
	}
}

func (q *Queue) retireLocked(p pendingSubmission) {
	vk.DestroyFence(q.context.Device.LogicalDevice, p.fence, q.context.Allocator)
	vk.FreeCommandBuffers(q.context.Device.LogicalDevice, p.pool, 1, []vk.CommandBuffer{p.buffer})
}
