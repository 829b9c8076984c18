package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

// Buffer is a vk.Buffer plus its backing allocation. Upload and readback
// heap buffers are persistently mapped at creation.
type Buffer struct {
	context *VulkanContext
	desc    metadata.BufferDesc

	Handle vk.Buffer
	Memory vk.DeviceMemory

	mapped []byte
}

// CreateBuffer allocates a buffer and binds memory from the heap the desc
// asks for.
func (d *Device) CreateBuffer(desc *metadata.BufferDesc) (renderer.Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("func CreateBuffer - desc.Size must be > 0: %w", core.ErrInvalidArgument)
	}

	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       vulkanBufferUsage(desc.Usage),
		SharingMode: vk.SharingModeExclusive,
	}

	var handle vk.Buffer
	if res := vk.CreateBuffer(d.context.Device.LogicalDevice, &bufferCreateInfo, d.context.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("vkCreateBuffer '%s' failed with %s: %w", desc.Name, VulkanResultString(res, false), core.ErrCapacityExhausted)
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.context.Device.LogicalDevice, handle, &requirements)
	requirements.Deref()

	memoryIndex := d.context.Device.FindMemoryIndex(requirements.MemoryTypeBits, vulkanMemoryProperties(desc.Heap))
	if memoryIndex < 0 {
		vk.DestroyBuffer(d.context.Device.LogicalDevice, handle, d.context.Allocator)
		return nil, fmt.Errorf("func CreateBuffer - no memory type for heap %d: %w", desc.Heap, core.ErrSystem)
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(d.context.Device.LogicalDevice, &allocateInfo, d.context.Allocator, &memory); res != vk.Success {
		vk.DestroyBuffer(d.context.Device.LogicalDevice, handle, d.context.Allocator)
		return nil, fmt.Errorf("vkAllocateMemory for '%s' failed with %s: %w", desc.Name, VulkanResultString(res, false), core.ErrCapacityExhausted)
	}
	if res := vk.BindBufferMemory(d.context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		vk.FreeMemory(d.context.Device.LogicalDevice, memory, d.context.Allocator)
		vk.DestroyBuffer(d.context.Device.LogicalDevice, handle, d.context.Allocator)
		return nil, fmt.Errorf("vkBindBufferMemory for '%s' failed with %s: %w", desc.Name, VulkanResultString(res, false), core.ErrSystem)
	}

	b := &Buffer{
		context: d.context,
		desc:    *desc,
		Handle:  handle,
		Memory:  memory,
	}

	if desc.Heap == metadata.HeapKindUpload || desc.Heap == metadata.HeapKindReadback {
		var data unsafe.Pointer
		if res := vk.MapMemory(d.context.Device.LogicalDevice, memory, 0, vk.DeviceSize(desc.Size), 0, &data); res != vk.Success {
			vk.FreeMemory(d.context.Device.LogicalDevice, memory, d.context.Allocator)
			vk.DestroyBuffer(d.context.Device.LogicalDevice, handle, d.context.Allocator)
			return nil, fmt.Errorf("vkMapMemory for '%s' failed with %s: %w", desc.Name, VulkanResultString(res, false), core.ErrSystem)
		}
		b.mapped = unsafe.Slice((*byte)(data), desc.Size)
	}

	core.LogDebug("vulkan buffer '%s' created (%d bytes, heap %d)", desc.Name, desc.Size, desc.Heap)
	return b, nil
}

func (b *Buffer) DebugName() string {
	return b.desc.Name
}

func (b *Buffer) Kind() metadata.ResourceKind {
	return metadata.ResourceKindBuffer
}

func (b *Buffer) Size() uint64 {
	return b.desc.Size
}

// Map returns the persistent mapping. Default-heap buffers are not host
// visible and fail.
func (b *Buffer) Map() ([]byte, error) {
	if b.mapped == nil {
		return nil, fmt.Errorf("func Map - buffer '%s' lives in a device-local heap: %w", b.desc.Name, core.ErrSystem)
	}
	return b.mapped, nil
}

// Unmap is a no-op; the mapping is persistent for the buffer's lifetime.
func (b *Buffer) Unmap() {}

// Destroy releases the buffer and its memory. The caller guarantees the GPU
// is done with it.
func (b *Buffer) Destroy() {
	if b.mapped != nil {
		vk.UnmapMemory(b.context.Device.LogicalDevice, b.Memory)
		b.mapped = nil
	}
	if b.Handle != nil {
		vk.DestroyBuffer(b.context.Device.LogicalDevice, b.Handle, b.context.Allocator)
		b.Handle = nil
	}
	if b.Memory != nil {
		vk.FreeMemory(b.context.Device.LogicalDevice, b.Memory, b.context.Allocator)
		b.Memory = nil
	}
}
