package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

// VulkanSafeString returns a NUL-terminated copy suitable for the C side.
func VulkanSafeString(s string) string {
	return s + "\x00"
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = VulkanSafeString(s)
	}
	return out
}

func VulkanResultIsSuccess(result vk.Result) bool {
	return result == vk.Success
}

// VulkanResultString names the results this backend actually branches on;
// anything else falls back to the numeric code.
func VulkanResultString(result vk.Result, getExtended bool) string {
	switch result {
	case vk.Success:
		return "VK_SUCCESS"
	case vk.NotReady:
		return "VK_NOT_READY"
	case vk.Timeout:
		return "VK_TIMEOUT"
	case vk.ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY"
	case vk.ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY"
	case vk.ErrorInitializationFailed:
		return "VK_ERROR_INITIALIZATION_FAILED"
	case vk.ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST"
	case vk.ErrorMemoryMapFailed:
		return "VK_ERROR_MEMORY_MAP_FAILED"
	case vk.ErrorLayerNotPresent:
		return "VK_ERROR_LAYER_NOT_PRESENT"
	case vk.ErrorExtensionNotPresent:
		return "VK_ERROR_EXTENSION_NOT_PRESENT"
	case vk.ErrorFeatureNotPresent:
		return "VK_ERROR_FEATURE_NOT_PRESENT"
	case vk.ErrorIncompatibleDriver:
		return "VK_ERROR_INCOMPATIBLE_DRIVER"
	case vk.ErrorFormatNotSupported:
		return "VK_ERROR_FORMAT_NOT_SUPPORTED"
	case vk.ErrorFragmentedPool:
		return "VK_ERROR_FRAGMENTED_POOL"
	case vk.ErrorOutOfPoolMemory:
		return "VK_ERROR_OUT_OF_POOL_MEMORY"
	default:
		return fmt.Sprintf("VK_RESULT(%d)", int32(result))
	}
}

func vulkanFormat(f metadata.Format) vk.Format {
	switch f {
	case metadata.FormatRGBA8Unorm:
		return vk.FormatR8g8b8a8Unorm
	case metadata.FormatBGRA8Unorm:
		return vk.FormatB8g8r8a8Unorm
	case metadata.FormatRGBA8UnormSRGB:
		return vk.FormatR8g8b8a8Srgb
	case metadata.FormatRGBA16Float:
		return vk.FormatR16g16b16a16Sfloat
	case metadata.FormatRGBA32Float:
		return vk.FormatR32g32b32a32Sfloat
	case metadata.FormatR32Float:
		return vk.FormatR32Sfloat
	case metadata.FormatRG32Float:
		return vk.FormatR32g32Sfloat
	case metadata.FormatR32Uint:
		return vk.FormatR32Uint
	case metadata.FormatD32Float:
		return vk.FormatD32Sfloat
	case metadata.FormatD24UnormS8Uint:
		return vk.FormatD24UnormS8Uint
	case metadata.FormatBC7Unorm:
		return vk.FormatBc7UnormBlock
	default:
		return vk.FormatUndefined
	}
}

func vulkanBufferUsage(usage metadata.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlags
	if usage&metadata.BufferUsageVertex != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	}
	if usage&metadata.BufferUsageIndex != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	}
	if usage&metadata.BufferUsageConstant != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	}
	if usage&metadata.BufferUsageStructured != 0 || usage&metadata.BufferUsageUnorderedAccess != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	}
	if usage&metadata.BufferUsageCopySource != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)
	}
	if usage&metadata.BufferUsageCopyDest != 0 {
		flags |= vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	}
	if flags == 0 {
		flags = vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	}
	return flags
}

func vulkanMemoryProperties(heap metadata.HeapKind) vk.MemoryPropertyFlags {
	switch heap {
	case metadata.HeapKindUpload:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) | vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit)
	case metadata.HeapKindReadback:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) | vk.MemoryPropertyFlags(vk.MemoryPropertyHostCachedBit)
	default:
		return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	}
}

func vulkanImageUsage(usage metadata.TextureUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlags
	if usage&metadata.TextureUsageSampled != 0 {
		flags |= vk.ImageUsageFlags(vk.ImageUsageSampledBit)
	}
	if usage&metadata.TextureUsageRenderTarget != 0 {
		flags |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	}
	if usage&metadata.TextureUsageDepthStencil != 0 {
		flags |= vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
	}
	if usage&metadata.TextureUsageUnorderedAccess != 0 {
		flags |= vk.ImageUsageFlags(vk.ImageUsageStorageBit)
	}
	if usage&metadata.TextureUsageCopyDest != 0 {
		flags |= vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)
	}
	if usage&metadata.TextureUsageCopySource != 0 {
		flags |= vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit)
	}
	// Sampled textures always receive their payload through a copy.
	if usage&metadata.TextureUsageSampled != 0 {
		flags |= vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)
	}
	return flags
}

func vulkanAspectMask(format metadata.Format) vk.ImageAspectFlags {
	if format.IsDepth() {
		mask := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
		if format == metadata.FormatD24UnormS8Uint {
			mask |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
		}
		return mask
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

// vulkanImageLayout maps a tracker state onto the layout images are kept in
// while that state is current.
func vulkanImageLayout(state metadata.ResourceState) vk.ImageLayout {
	switch state {
	case metadata.StateRenderTarget:
		return vk.ImageLayoutColorAttachmentOptimal
	case metadata.StateDepthWrite:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	case metadata.StateDepthRead:
		return vk.ImageLayoutDepthStencilReadOnlyOptimal
	case metadata.StateShaderResource:
		return vk.ImageLayoutShaderReadOnlyOptimal
	case metadata.StateCopyDest:
		return vk.ImageLayoutTransferDstOptimal
	case metadata.StateCopySource:
		return vk.ImageLayoutTransferSrcOptimal
	case metadata.StatePresent:
		return vk.ImageLayoutPresentSrc
	case metadata.StateUndefined:
		return vk.ImageLayoutUndefined
	default:
		return vk.ImageLayoutGeneral
	}
}

func vulkanAccessFlags(state metadata.ResourceState) vk.AccessFlags {
	switch state {
	case metadata.StateVertexAndConstantBuffer:
		return vk.AccessFlags(vk.AccessVertexAttributeReadBit) | vk.AccessFlags(vk.AccessUniformReadBit)
	case metadata.StateIndexBuffer:
		return vk.AccessFlags(vk.AccessIndexReadBit)
	case metadata.StateRenderTarget:
		return vk.AccessFlags(vk.AccessColorAttachmentReadBit) | vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
	case metadata.StateUnorderedAccess:
		return vk.AccessFlags(vk.AccessShaderReadBit) | vk.AccessFlags(vk.AccessShaderWriteBit)
	case metadata.StateDepthWrite:
		return vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit) | vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
	case metadata.StateDepthRead:
		return vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit)
	case metadata.StateShaderResource:
		return vk.AccessFlags(vk.AccessShaderReadBit)
	case metadata.StateCopyDest:
		return vk.AccessFlags(vk.AccessTransferWriteBit)
	case metadata.StateCopySource:
		return vk.AccessFlags(vk.AccessTransferReadBit)
	default:
		return 0
	}
}

func vulkanStageFlags(state metadata.ResourceState) vk.PipelineStageFlags {
	switch state {
	case metadata.StateVertexAndConstantBuffer, metadata.StateIndexBuffer:
		return vk.PipelineStageFlags(vk.PipelineStageVertexInputBit)
	case metadata.StateRenderTarget:
		return vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	case metadata.StateUnorderedAccess, metadata.StateShaderResource:
		return vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit) | vk.PipelineStageFlags(vk.PipelineStageVertexShaderBit)
	case metadata.StateDepthWrite, metadata.StateDepthRead:
		return vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit) | vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit)
	case metadata.StateCopyDest, metadata.StateCopySource:
		return vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	default:
		return vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
}

func vulkanCompareOp(op metadata.CompareOp) vk.CompareOp {
	switch op {
	case metadata.CompareOpNever:
		return vk.CompareOpNever
	case metadata.CompareOpLess:
		return vk.CompareOpLess
	case metadata.CompareOpLessEqual:
		return vk.CompareOpLessOrEqual
	case metadata.CompareOpGreaterEqual:
		return vk.CompareOpGreaterOrEqual
	case metadata.CompareOpAlways:
		return vk.CompareOpAlways
	default:
		return vk.CompareOpLess
	}
}

func vulkanCullMode(mode metadata.CullMode) vk.CullModeFlags {
	switch mode {
	case metadata.CullModeNone:
		return vk.CullModeFlags(vk.CullModeNone)
	case metadata.CullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	default:
		return vk.CullModeFlags(vk.CullModeBackBit)
	}
}
