package vulkan

import (
	vk "github.com/goki/vulkan"
)

// VulkanContext carries the instance-wide and device-wide handles shared by
// every resource and recorder the backend creates.
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks

	Device VulkanDevice
}

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex int32
	TransferQueueIndex int32

	GraphicsQueue vk.Queue
	TransferQueue vk.Queue

	GraphicsCommandPool vk.CommandPool
	TransferCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format
}

// FindMemoryIndex returns the index of a memory type satisfying both the
// type filter and the requested property flags, or -1.
func (d *VulkanDevice) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) int32 {
	d.Memory.Deref()
	for i := uint32(0); i < d.Memory.MemoryTypeCount; i++ {
		d.Memory.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 && d.Memory.MemoryTypes[i].PropertyFlags&propertyFlags == propertyFlags {
			return int32(i)
		}
	}
	return -1
}
