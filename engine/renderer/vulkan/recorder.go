package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

// Recorder records into one primary command buffer. It is single threaded
// and valid between Begin and End; the queue owns the buffer after submit.
type Recorder struct {
	device  *Device
	context *VulkanContext
	pool    vk.CommandPool
	buffer  vk.CommandBuffer

	began  bool
	closed bool

	inRenderPass   bool
	boundColors    []renderer.Texture
	boundDepth     renderer.Texture
	pipelineLayout vk.PipelineLayout

	// Last depth attachment state seen in a barrier, used to pick the
	// read-only or writable render pass variant.
	depthRead     map[*Texture]bool
	depthReadOnly bool
}

func newRecorder(d *Device, pool vk.CommandPool) (*Recorder, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(d.context.Device.LogicalDevice, &allocateInfo, buffers); res != vk.Success {
		return nil, fmt.Errorf("vkAllocateCommandBuffers failed with %s: %w", VulkanResultString(res, false), core.ErrSystem)
	}
	return &Recorder{
		device:  d,
		context: d.context,
		pool:    pool,
		buffer:  buffers[0],

		depthRead: map[*Texture]bool{},
	}, nil
}

func (r *Recorder) Begin() error {
	if r.began {
		return fmt.Errorf("func Begin - recorder already began: %w", core.ErrStateViolation)
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(r.buffer, &beginInfo); res != vk.Success {
		return fmt.Errorf("vkBeginCommandBuffer failed with %s: %w", VulkanResultString(res, false), core.ErrSystem)
	}
	r.began = true
	return nil
}

func (r *Recorder) End() error {
	if !r.began || r.closed {
		return fmt.Errorf("func End - recorder is not recording: %w", core.ErrStateViolation)
	}
	r.endRenderPass()
	if res := vk.EndCommandBuffer(r.buffer); res != vk.Success {
		return fmt.Errorf("vkEndCommandBuffer failed with %s: %w", VulkanResultString(res, false), core.ErrSystem)
	}
	r.closed = true
	return nil
}

func (r *Recorder) CopyBuffer(dst renderer.Buffer, dstOffset uint64, src renderer.Buffer, srcOffset, size uint64) error {
	dstBuffer, ok := dst.(*Buffer)
	if !ok {
		return fmt.Errorf("func CopyBuffer - dst was not created by this device: %w", core.ErrInvalidArgument)
	}
	srcBuffer, ok := src.(*Buffer)
	if !ok {
		return fmt.Errorf("func CopyBuffer - src was not created by this device: %w", core.ErrInvalidArgument)
	}
	if srcOffset+size > src.Size() || dstOffset+size > dst.Size() {
		return fmt.Errorf("func CopyBuffer - copy range out of bounds: %w", core.ErrInvalidArgument)
	}
	r.endRenderPass()
	region := vk.BufferCopy{
		SrcOffset: vk.DeviceSize(srcOffset),
		DstOffset: vk.DeviceSize(dstOffset),
		Size:      vk.DeviceSize(size),
	}
	vk.CmdCopyBuffer(r.buffer, srcBuffer.Handle, dstBuffer.Handle, 1, []vk.BufferCopy{region})
	return nil
}

func (r *Recorder) CopyBufferToTexture(dst renderer.Texture, src renderer.Buffer, srcOffset uint64, layouts []metadata.SubresourceLayout) error {
	dstTexture, ok := dst.(*Texture)
	if !ok {
		return fmt.Errorf("func CopyBufferToTexture - dst was not created by this device: %w", core.ErrInvalidArgument)
	}
	srcBuffer, ok := src.(*Buffer)
	if !ok {
		return fmt.Errorf("func CopyBufferToTexture - src was not created by this device: %w", core.ErrInvalidArgument)
	}
	texel := dst.Desc().Format.BytesPerTexel()
	if texel == 0 {
		return fmt.Errorf("func CopyBufferToTexture - format %d has no texel size: %w", dst.Desc().Format, core.ErrInvalidArgument)
	}

	r.endRenderPass()
	regions := make([]vk.BufferImageCopy, 0, len(layouts))
	for _, l := range layouts {
		width := dst.Desc().Width >> l.MipLevel
		height := dst.Desc().Height >> l.MipLevel
		if width == 0 {
			width = 1
		}
		if height == 0 {
			height = 1
		}
		regions = append(regions, vk.BufferImageCopy{
			BufferOffset:      vk.DeviceSize(srcOffset + l.Offset),
			BufferRowLength:   uint32(l.RowPitch / uint64(texel)),
			BufferImageHeight: 0,
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vulkanAspectMask(dst.Desc().Format),
				MipLevel:   l.MipLevel,
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
		})
	}
	vk.CmdCopyBufferToImage(r.buffer, srcBuffer.Handle, dstTexture.Handle, vk.ImageLayoutTransferDstOptimal, uint32(len(regions)), regions)
	return nil
}

// Barrier lowers tracker barriers into one vkCmdPipelineBarrier call.
func (r *Recorder) Barrier(barriers []metadata.Barrier) {
	if len(barriers) == 0 {
		return
	}
	r.endRenderPass()

	var srcStages, dstStages vk.PipelineStageFlags
	var imageBarriers []vk.ImageMemoryBarrier
	var bufferBarriers []vk.BufferMemoryBarrier
	var memoryBarriers []vk.MemoryBarrier

	for _, b := range barriers {
		if b.Type == metadata.BarrierTypeUAV {
			memoryBarriers = append(memoryBarriers, vk.MemoryBarrier{
				SType:         vk.StructureTypeMemoryBarrier,
				SrcAccessMask: vk.AccessFlags(vk.AccessShaderWriteBit),
				DstAccessMask: vk.AccessFlags(vk.AccessShaderReadBit) | vk.AccessFlags(vk.AccessShaderWriteBit),
			})
			srcStages |= vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
			dstStages |= vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
			continue
		}
		srcStages |= vulkanStageFlags(b.Before)
		dstStages |= vulkanStageFlags(b.After)
		switch resource := b.Resource.(type) {
		case *Texture:
			if resource.desc.Format.IsDepth() {
				r.depthRead[resource] = b.After == metadata.StateDepthRead
			}
			imageBarriers = append(imageBarriers, vk.ImageMemoryBarrier{
				SType:               vk.StructureTypeImageMemoryBarrier,
				SrcAccessMask:       vulkanAccessFlags(b.Before),
				DstAccessMask:       vulkanAccessFlags(b.After),
				OldLayout:           vulkanImageLayout(b.Before),
				NewLayout:           vulkanImageLayout(b.After),
				SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
				DstQueueFamilyIndex: vk.QueueFamilyIgnored,
				Image:               resource.Handle,
				SubresourceRange: vk.ImageSubresourceRange{
					AspectMask: vulkanAspectMask(resource.desc.Format),
					LevelCount: resource.desc.MipLevels,
					LayerCount: resource.desc.ArraySize,
				},
			})
		case *Buffer:
			bufferBarriers = append(bufferBarriers, vk.BufferMemoryBarrier{
				SType:               vk.StructureTypeBufferMemoryBarrier,
				SrcAccessMask:       vulkanAccessFlags(b.Before),
				DstAccessMask:       vulkanAccessFlags(b.After),
				SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
				DstQueueFamilyIndex: vk.QueueFamilyIgnored,
				Buffer:              resource.Handle,
				Size:                vk.DeviceSize(resource.desc.Size),
			})
		}
	}
	if srcStages == 0 {
		srcStages = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
	if dstStages == 0 {
		dstStages = vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	}

	vk.CmdPipelineBarrier(r.buffer, srcStages, dstStages, 0,
		uint32(len(memoryBarriers)), memoryBarriers,
		uint32(len(bufferBarriers)), bufferBarriers,
		uint32(len(imageBarriers)), imageBarriers)
}

// SetRenderTargets begins a render pass over the given attachments. Any
// previously open pass is ended first.
func (r *Recorder) SetRenderTargets(colors []renderer.Texture, depth renderer.Texture) {
	r.endRenderPass()
	r.boundColors = colors
	r.boundDepth = depth

	r.depthReadOnly = false
	if texture, ok := depth.(*Texture); ok {
		r.depthReadOnly = r.depthRead[texture]
	}
	pass, framebuffer, extent, err := r.device.renderpasses.get(colors, depth, r.depthReadOnly)
	if err != nil {
		core.LogError("render target bind failed: %s", err)
		return
	}

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Extent: extent,
		},
	}
	vk.CmdBeginRenderPass(r.buffer, &beginInfo, vk.SubpassContentsInline)
	r.inRenderPass = true

	viewport := vk.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	vk.CmdSetViewport(r.buffer, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(r.buffer, 0, 1, []vk.Rect2D{{Extent: extent}})
}

func (r *Recorder) ClearRenderTarget(target renderer.Texture, rgba [4]float32) {
	if !r.inRenderPass {
		core.LogWarn("clear of '%s' outside a render pass ignored", target.DebugName())
		return
	}
	index := -1
	for i, c := range r.boundColors {
		if c == target {
			index = i
			break
		}
	}
	if index < 0 {
		core.LogWarn("clear target '%s' is not bound", target.DebugName())
		return
	}
	var clearValue vk.ClearValue
	clearValue.SetColor(rgba[:])
	attachment := vk.ClearAttachment{
		AspectMask:      vk.ImageAspectFlags(vk.ImageAspectColorBit),
		ColorAttachment: uint32(index),
		ClearValue:      clearValue,
	}
	rect := vk.ClearRect{
		Rect:       vk.Rect2D{Extent: vk.Extent2D{Width: target.Desc().Width, Height: target.Desc().Height}},
		LayerCount: 1,
	}
	vk.CmdClearAttachments(r.buffer, 1, []vk.ClearAttachment{attachment}, 1, []vk.ClearRect{rect})
}

func (r *Recorder) ClearDepthStencil(target renderer.Texture, depth float32, stencil uint8) {
	if !r.inRenderPass {
		core.LogWarn("depth clear of '%s' outside a render pass ignored", target.DebugName())
		return
	}
	var clearValue vk.ClearValue
	clearValue.SetDepthStencil(depth, uint32(stencil))
	attachment := vk.ClearAttachment{
		AspectMask: vulkanAspectMask(target.Desc().Format),
		ClearValue: clearValue,
	}
	rect := vk.ClearRect{
		Rect:       vk.Rect2D{Extent: vk.Extent2D{Width: target.Desc().Width, Height: target.Desc().Height}},
		LayerCount: 1,
	}
	vk.CmdClearAttachments(r.buffer, 1, []vk.ClearAttachment{attachment}, 1, []vk.ClearRect{rect})
}

func (r *Recorder) SetPipelineState(desc *metadata.PipelineStateDesc) error {
	if desc == nil {
		return fmt.Errorf("func SetPipelineState - desc must not be nil: %w", core.ErrInvalidArgument)
	}
	pipeline, err := r.device.pipelines.get(desc, r.depthReadOnly)
	if err != nil {
		return err
	}
	vk.CmdBindPipeline(r.buffer, vk.PipelineBindPointGraphics, pipeline.Handle)
	r.pipelineLayout = pipeline.Layout
	return nil
}

func (r *Recorder) SetRootConstant(slot uint32, value uint32) {
	if r.pipelineLayout == nil {
		return
	}
	data := []byte{byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24)}
	vk.CmdPushConstants(r.buffer,
		r.pipelineLayout,
		vk.ShaderStageFlags(vk.ShaderStageVertexBit)|vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		slot*4, 4, unsafe.Pointer(&data[0]))
}

func (r *Recorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(r.buffer, vertexCount, instanceCount, firstVertex, firstInstance)
}

// DrawIndexed lowers to a plain draw: index and vertex data are pulled from
// the bindless descriptor table in the vertex shader, so no index buffer is
// bound to the input assembler.
func (r *Recorder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDraw(r.buffer, indexCount, instanceCount, firstIndex, firstInstance)
}

func (r *Recorder) endRenderPass() {
	if r.inRenderPass {
		vk.CmdEndRenderPass(r.buffer)
		r.inRenderPass = false
	}
}
