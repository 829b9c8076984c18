// Package headless is an in-process graphics backend. Buffers are byte
// slices, copies execute at submit time and fences are plain counters, so
// the whole renderer stack can run (and be tested) without a GPU.
package headless

import (
	"fmt"
	"sync"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

type Device struct {
	mu       sync.Mutex
	registry *renderer.ResourceRegistry
	graphics *Queue
	transfer *Queue

	bufferFailures int
	shutdown       bool
}

// Option configures a headless device.
type Option func(*Device)

// WithManualFences defers fence completion: submissions retire only when
// the test calls Queue.CompleteThrough or WaitIdle.
func WithManualFences() Option {
	return func(d *Device) {
		d.graphics.auto = false
		d.transfer.auto = false
	}
}

func NewDevice(opts ...Option) *Device {
	d := &Device{
		registry: renderer.NewResourceRegistry(),
	}
	d.graphics = &Queue{auto: true}
	d.transfer = &Queue{auto: true}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Device) DeviceName() string {
	return "Oxygen Headless Device"
}

// InjectBufferCreateFailures makes the next n CreateBuffer calls fail.
// Used by tests to exercise staging and atlas failure paths.
func (d *Device) InjectBufferCreateFailures(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bufferFailures = n
}

func (d *Device) CreateBuffer(desc *metadata.BufferDesc) (renderer.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bufferFailures > 0 {
		d.bufferFailures--
		return nil, fmt.Errorf("headless buffer creation rejected: %w", core.ErrCapacityExhausted)
	}
	return &Buffer{
		name: desc.Name,
		heap: desc.Heap,
		data: make([]byte, desc.Size),
	}, nil
}

func (d *Device) CreateTexture(desc *metadata.TextureDesc) (renderer.Texture, error) {
	mips := desc.MipLevels
	if mips == 0 {
		mips = 1
	}
	copied := *desc
	copied.MipLevels = mips
	return &Texture{
		desc:         &copied,
		subresources: make(map[uint32][]byte, mips),
	}, nil
}

func (d *Device) Registry() *renderer.ResourceRegistry {
	return d.registry
}

func (d *Device) Queue(kind renderer.QueueKind) renderer.CommandQueue {
	if kind == renderer.QueueKindTransfer {
		return d.transfer
	}
	return d.graphics
}

func (d *Device) AcquireRecorder(kind renderer.QueueKind) (renderer.CommandRecorder, error) {
	if d.shutdown {
		return nil, fmt.Errorf("device is shut down: %w", core.ErrStateViolation)
	}
	return &Recorder{}, nil
}

func (d *Device) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shutdown = true
	return nil
}

// Buffer is a headless GPU buffer backed by host memory.
type Buffer struct {
	name   string
	heap   metadata.HeapKind
	data   []byte
	mapped bool
}

func (b *Buffer) DebugName() string {
	return b.name
}

func (b *Buffer) Kind() metadata.ResourceKind {
	return metadata.ResourceKindBuffer
}

func (b *Buffer) Size() uint64 {
	return uint64(len(b.data))
}

func (b *Buffer) Map() ([]byte, error) {
	if b.heap != metadata.HeapKindUpload && b.heap != metadata.HeapKindReadback {
		return nil, fmt.Errorf("buffer '%s' is not host visible: %w", b.name, core.ErrSystem)
	}
	b.mapped = true
	return b.data, nil
}

func (b *Buffer) Unmap() {
	b.mapped = false
}

// Data exposes the raw contents for test assertions.
func (b *Buffer) Data() []byte {
	return b.data
}

// Texture is a headless GPU texture storing tightly packed subresources.
type Texture struct {
	desc         *metadata.TextureDesc
	subresources map[uint32][]byte
}

func (t *Texture) DebugName() string {
	return t.desc.Name
}

func (t *Texture) Kind() metadata.ResourceKind {
	return metadata.ResourceKindTexture
}

func (t *Texture) Desc() *metadata.TextureDesc {
	return t.desc
}

// Subresource returns the tightly packed contents of one mip, or nil if it
// was never written.
func (t *Texture) Subresource(mip uint32) []byte {
	return t.subresources[mip]
}
