package renderer

import (
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

// QueueKind selects which hardware queue work is submitted to.
type QueueKind uint8

const (
	QueueKindGraphics QueueKind = iota
	QueueKindTransfer
)

// Buffer is a GPU buffer created by a backend.
type Buffer interface {
	metadata.GPUResource
	Size() uint64
	// Map returns the persistently mapped span for upload-heap buffers.
	// Default-heap buffers fail with a system error.
	Map() ([]byte, error)
	Unmap()
}

// Texture is a GPU texture created by a backend.
type Texture interface {
	metadata.GPUResource
	Desc() *metadata.TextureDesc
}

// CommandQueue submits recorded work and exposes a monotonic fence
// timeline: Submit returns the fence value that completes when the
// submission retires.
type CommandQueue interface {
	Submit(rec CommandRecorder) (uint64, error)
	// CompletedFenceValue returns the highest fence value known complete.
	CompletedFenceValue() uint64
	// LastSubmittedFenceValue returns the highest value handed out.
	LastSubmittedFenceValue() uint64
	// WaitIdle blocks until every submission has completed.
	WaitIdle() error
}

// CommandRecorder records copies, barriers and draws. It is single-threaded
// and valid between Begin and End.
type CommandRecorder interface {
	Begin() error
	End() error
	CopyBuffer(dst Buffer, dstOffset uint64, src Buffer, srcOffset, size uint64) error
	CopyBufferToTexture(dst Texture, src Buffer, srcOffset uint64, layouts []metadata.SubresourceLayout) error
	Barrier(barriers []metadata.Barrier)
	SetRenderTargets(colors []Texture, depth Texture)
	ClearRenderTarget(target Texture, rgba [4]float32)
	ClearDepthStencil(target Texture, depth float32, stencil uint8)
	SetPipelineState(desc *metadata.PipelineStateDesc) error
	SetRootConstant(slot uint32, value uint32)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
}

// Graphics is the capability set a backend must provide. The core depends
// only on this interface; implementations exist for a headless in-process
// device (tests) and Vulkan.
type Graphics interface {
	DeviceName() string
	CreateBuffer(desc *metadata.BufferDesc) (Buffer, error)
	CreateTexture(desc *metadata.TextureDesc) (Texture, error)
	Registry() *ResourceRegistry
	Queue(kind QueueKind) CommandQueue
	// AcquireRecorder hands out a recorder targeting the given queue. The
	// recorder is owned by the caller until submitted.
	AcquireRecorder(kind QueueKind) (CommandRecorder, error)
	Shutdown() error
}
