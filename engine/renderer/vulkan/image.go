package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

// Texture is a vk.Image with its allocation and a full-resource view.
type Texture struct {
	context *VulkanContext
	desc    metadata.TextureDesc

	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
}

// CreateTexture allocates a 2D image in device-local memory and a view
// covering every mip.
func (d *Device) CreateTexture(desc *metadata.TextureDesc) (renderer.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("func CreateTexture - extent must be non-zero: %w", core.ErrInvalidArgument)
	}
	format := vulkanFormat(desc.Format)
	if format == vk.FormatUndefined {
		return nil, fmt.Errorf("func CreateTexture - unsupported format %d: %w", desc.Format, core.ErrInvalidArgument)
	}

	copied := *desc
	if copied.MipLevels == 0 {
		copied.MipLevels = 1
	}
	if copied.ArraySize == 0 {
		copied.ArraySize = 1
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  copied.Width,
			Height: copied.Height,
			Depth:  1,
		},
		MipLevels:     copied.MipLevels,
		ArrayLayers:   copied.ArraySize,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vulkanImageUsage(copied.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var handle vk.Image
	if res := vk.CreateImage(d.context.Device.LogicalDevice, &imageCreateInfo, d.context.Allocator, &handle); res != vk.Success {
		return nil, fmt.Errorf("vkCreateImage '%s' failed with %s: %w", desc.Name, VulkanResultString(res, false), core.ErrCapacityExhausted)
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.context.Device.LogicalDevice, handle, &requirements)
	requirements.Deref()

	memoryIndex := d.context.Device.FindMemoryIndex(requirements.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if memoryIndex < 0 {
		vk.DestroyImage(d.context.Device.LogicalDevice, handle, d.context.Allocator)
		return nil, fmt.Errorf("func CreateTexture - no device-local memory type: %w", core.ErrSystem)
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(d.context.Device.LogicalDevice, &allocateInfo, d.context.Allocator, &memory); res != vk.Success {
		vk.DestroyImage(d.context.Device.LogicalDevice, handle, d.context.Allocator)
		return nil, fmt.Errorf("vkAllocateMemory for '%s' failed with %s: %w", desc.Name, VulkanResultString(res, false), core.ErrCapacityExhausted)
	}
	if res := vk.BindImageMemory(d.context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		vk.FreeMemory(d.context.Device.LogicalDevice, memory, d.context.Allocator)
		vk.DestroyImage(d.context.Device.LogicalDevice, handle, d.context.Allocator)
		return nil, fmt.Errorf("vkBindImageMemory for '%s' failed with %s: %w", desc.Name, VulkanResultString(res, false), core.ErrSystem)
	}

	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vulkanAspectMask(copied.Format),
			LevelCount: copied.MipLevels,
			LayerCount: copied.ArraySize,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(d.context.Device.LogicalDevice, &viewCreateInfo, d.context.Allocator, &view); res != vk.Success {
		vk.FreeMemory(d.context.Device.LogicalDevice, memory, d.context.Allocator)
		vk.DestroyImage(d.context.Device.LogicalDevice, handle, d.context.Allocator)
		return nil, fmt.Errorf("vkCreateImageView for '%s' failed with %s: %w", desc.Name, VulkanResultString(res, false), core.ErrSystem)
	}

	core.LogDebug("vulkan image '%s' created (%dx%d, %d mips)", copied.Name, copied.Width, copied.Height, copied.MipLevels)
	return &Texture{
		context: d.context,
		desc:    copied,
		Handle:  handle,
		Memory:  memory,
		View:    view,
	}, nil
}

func (t *Texture) DebugName() string {
	return t.desc.Name
}

func (t *Texture) Kind() metadata.ResourceKind {
	return metadata.ResourceKindTexture
}

func (t *Texture) Desc() *metadata.TextureDesc {
	return &t.desc
}

// Destroy releases the view, image and memory. The caller guarantees the
// GPU is done with it.
func (t *Texture) Destroy() {
	if t.View != nil {
		vk.DestroyImageView(t.context.Device.LogicalDevice, t.View, t.context.Allocator)
		t.View = nil
	}
	if t.Handle != nil {
		vk.DestroyImage(t.context.Device.LogicalDevice, t.Handle, t.context.Allocator)
		t.Handle = nil
	}
	if t.Memory != nil {
		vk.FreeMemory(t.context.Device.LogicalDevice, t.Memory, t.context.Allocator)
		t.Memory = nil
	}
}
