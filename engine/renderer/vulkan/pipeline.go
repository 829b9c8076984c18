package vulkan

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	vk "github.com/goki/vulkan"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

// Pipeline holds a graphics pipeline and the layout push constants are
// recorded against.
type Pipeline struct {
	Handle vk.Pipeline
	Layout vk.PipelineLayout
}

// renderpassCache builds and reuses render passes and framebuffers keyed by
// attachment formats and depth writability. Attachments load their previous
// contents; clears are recorded explicitly by the passes.
type renderpassCache struct {
	context *VulkanContext

	mu           sync.Mutex
	passes       map[string]vk.RenderPass
	framebuffers map[string]vk.Framebuffer
}

func newRenderpassCache(context *VulkanContext) *renderpassCache {
	return &renderpassCache{
		context:      context,
		passes:       map[string]vk.RenderPass{},
		framebuffers: map[string]vk.Framebuffer{},
	}
}

func (c *renderpassCache) get(colors []renderer.Texture, depth renderer.Texture, depthReadOnly bool) (vk.RenderPass, vk.Framebuffer, vk.Extent2D, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var extent vk.Extent2D
	if len(colors) > 0 {
		extent = vk.Extent2D{Width: colors[0].Desc().Width, Height: colors[0].Desc().Height}
	} else if depth != nil {
		extent = vk.Extent2D{Width: depth.Desc().Width, Height: depth.Desc().Height}
	}

	passKey := passCacheKey(colors, depth, depthReadOnly)
	pass, ok := c.passes[passKey]
	if !ok {
		created, err := c.createRenderpass(colors, depth, depthReadOnly)
		if err != nil {
			return nil, nil, extent, err
		}
		c.passes[passKey] = created
		pass = created
	}

	fbKey := framebufferCacheKey(passKey, colors, depth)
	framebuffer, ok := c.framebuffers[fbKey]
	if !ok {
		created, err := c.createFramebuffer(pass, colors, depth, extent)
		if err != nil {
			return nil, nil, extent, err
		}
		c.framebuffers[fbKey] = created
		framebuffer = created
	}
	return pass, framebuffer, extent, nil
}

func (c *renderpassCache) getByLayout(layout *metadata.FramebufferLayout, depthReadOnly bool) (vk.RenderPass, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := layoutCacheKey(layout, depthReadOnly)
	if pass, ok := c.passes[key]; ok {
		return pass, nil
	}
	pass, err := c.createRenderpassFromLayout(layout, depthReadOnly)
	if err != nil {
		return nil, err
	}
	c.passes[key] = pass
	return pass, nil
}

func passCacheKey(colors []renderer.Texture, depth renderer.Texture, depthReadOnly bool) string {
	layout := metadata.FramebufferLayout{SampleCount: 1}
	for _, t := range colors {
		layout.ColorFormats = append(layout.ColorFormats, t.Desc().Format)
	}
	if depth != nil {
		layout.DepthStencilFormat = depth.Desc().Format
	}
	return layoutCacheKey(&layout, depthReadOnly)
}

func layoutCacheKey(layout *metadata.FramebufferLayout, depthReadOnly bool) string {
	var sb strings.Builder
	for _, f := range layout.ColorFormats {
		fmt.Fprintf(&sb, "c%d,", f)
	}
	fmt.Fprintf(&sb, "d%d,ro%t", layout.DepthStencilFormat, depthReadOnly)
	return sb.String()
}

func framebufferCacheKey(passKey string, colors []renderer.Texture, depth renderer.Texture) string {
	var sb strings.Builder
	sb.WriteString(passKey)
	for _, t := range colors {
		fmt.Fprintf(&sb, "|%p", t)
	}
	fmt.Fprintf(&sb, "|%p", depth)
	return sb.String()
}

func (c *renderpassCache) createRenderpass(colors []renderer.Texture, depth renderer.Texture, depthReadOnly bool) (vk.RenderPass, error) {
	layout := metadata.FramebufferLayout{SampleCount: 1}
	for _, t := range colors {
		layout.ColorFormats = append(layout.ColorFormats, t.Desc().Format)
	}
	if depth != nil {
		layout.DepthStencilFormat = depth.Desc().Format
	}
	return c.createRenderpassFromLayout(&layout, depthReadOnly)
}

func (c *renderpassCache) createRenderpassFromLayout(layout *metadata.FramebufferLayout, depthReadOnly bool) (vk.RenderPass, error) {
	var attachments []vk.AttachmentDescription
	var colorRefs []vk.AttachmentReference

	for _, format := range layout.ColorFormats {
		colorRefs = append(colorRefs, vk.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         vulkanFormat(format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpLoad,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
			FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
		})
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorRefs)),
		PColorAttachments:    colorRefs,
	}

	var depthRef vk.AttachmentReference
	if layout.DepthStencilFormat != metadata.FormatUnknown {
		depthLayout := vk.ImageLayoutDepthStencilAttachmentOptimal
		if depthReadOnly {
			depthLayout = vk.ImageLayoutDepthStencilReadOnlyOptimal
		}
		depthRef = vk.AttachmentReference{
			Attachment: uint32(len(attachments)),
			Layout:     depthLayout,
		}
		attachments = append(attachments, vk.AttachmentDescription{
			Format:         vulkanFormat(layout.DepthStencilFormat),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpLoad,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  depthLayout,
			FinalLayout:    depthLayout,
		})
		subpass.PDepthStencilAttachment = &depthRef
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit) | vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var pass vk.RenderPass
	if res := vk.CreateRenderPass(c.context.Device.LogicalDevice, &createInfo, c.context.Allocator, &pass); res != vk.Success {
		return nil, fmt.Errorf("vkCreateRenderPass failed with %s: %w", VulkanResultString(res, false), core.ErrSystem)
	}
	return pass, nil
}

func (c *renderpassCache) createFramebuffer(pass vk.RenderPass, colors []renderer.Texture, depth renderer.Texture, extent vk.Extent2D) (vk.Framebuffer, error) {
	var views []vk.ImageView
	for _, t := range colors {
		texture, ok := t.(*Texture)
		if !ok {
			return nil, fmt.Errorf("color target '%s' was not created by this device: %w", t.DebugName(), core.ErrInvalidArgument)
		}
		views = append(views, texture.View)
	}
	if depth != nil {
		texture, ok := depth.(*Texture)
		if !ok {
			return nil, fmt.Errorf("depth target '%s' was not created by this device: %w", depth.DebugName(), core.ErrInvalidArgument)
		}
		views = append(views, texture.View)
	}

	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}
	var framebuffer vk.Framebuffer
	if res := vk.CreateFramebuffer(c.context.Device.LogicalDevice, &createInfo, c.context.Allocator, &framebuffer); res != vk.Success {
		return nil, fmt.Errorf("vkCreateFramebuffer failed with %s: %w", VulkanResultString(res, false), core.ErrSystem)
	}
	return framebuffer, nil
}

func (c *renderpassCache) destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, framebuffer := range c.framebuffers {
		vk.DestroyFramebuffer(c.context.Device.LogicalDevice, framebuffer, c.context.Allocator)
	}
	for _, pass := range c.passes {
		vk.DestroyRenderPass(c.context.Device.LogicalDevice, pass, c.context.Allocator)
	}
	c.framebuffers = map[string]vk.Framebuffer{}
	c.passes = map[string]vk.RenderPass{}
}

// pipelineCache builds graphics pipelines on first use of a state
// descriptor. SPIR-V modules are looked up on disk by shader name.
type pipelineCache struct {
	context      *VulkanContext
	renderpasses *renderpassCache
	shaderDir    string

	mu        sync.Mutex
	pipelines map[string]*Pipeline
	modules   map[string]vk.ShaderModule
}

func newPipelineCache(context *VulkanContext, renderpasses *renderpassCache, shaderDir string) *pipelineCache {
	return &pipelineCache{
		context:      context,
		renderpasses: renderpasses,
		shaderDir:    shaderDir,
		pipelines:    map[string]*Pipeline{},
		modules:      map[string]vk.ShaderModule{},
	}
}

func (c *pipelineCache) get(desc *metadata.PipelineStateDesc, depthReadOnly bool) (*Pipeline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := fmt.Sprintf("%s|%v|%v|%v|%s|%t", desc.ShaderName, desc.Raster, desc.DepthStencil, desc.Blend, layoutCacheKey(&desc.Framebuffer, depthReadOnly), depthReadOnly)
	if pipeline, ok := c.pipelines[key]; ok {
		return pipeline, nil
	}

	pipeline, err := c.create(desc, depthReadOnly)
	if err != nil {
		return nil, err
	}
	c.pipelines[key] = pipeline
	return pipeline, nil
}

func (c *pipelineCache) shaderModule(name string) (vk.ShaderModule, error) {
	if module, ok := c.modules[name]; ok {
		return module, nil
	}
	path := filepath.Join(c.shaderDir, name+".spv")
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shader module '%s' not found at %s: %w", name, path, core.ErrNotFound)
	}
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("shader module '%s' is not valid SPIR-V: %w", name, core.ErrValidation)
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    words,
	}
	var module vk.ShaderModule
	if res := vk.CreateShaderModule(c.context.Device.LogicalDevice, &createInfo, c.context.Allocator, &module); res != vk.Success {
		return nil, fmt.Errorf("vkCreateShaderModule '%s' failed with %s: %w", name, VulkanResultString(res, false), core.ErrSystem)
	}
	c.modules[name] = module
	return module, nil
}

func (c *pipelineCache) create(desc *metadata.PipelineStateDesc, depthReadOnly bool) (*Pipeline, error) {
	vertModule, err := c.shaderModule(desc.ShaderName + ".vert")
	if err != nil {
		return nil, err
	}
	fragModule, err := c.shaderModule(desc.ShaderName + ".frag")
	if err != nil {
		return nil, err
	}

	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: vertModule,
			PName:  VulkanSafeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: fragModule,
			PName:  VulkanSafeString("main"),
		},
	}

	// Geometry is pulled from bindless structured buffers, so the input
	// assembler sees no vertex bindings at all.
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		LineWidth:   1.0,
		FrontFace:   vk.FrontFaceCounterClockwise,
		CullMode:    vulkanCullMode(desc.Raster.Cull),
	}
	if desc.Raster.Fill == metadata.FillModeWireframe {
		rasterizer.PolygonMode = vk.PolygonModeLine
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType: vk.StructureTypePipelineDepthStencilStateCreateInfo,
	}
	if desc.DepthStencil.DepthTest {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthCompareOp = vulkanCompareOp(desc.DepthStencil.DepthFunc)
	}
	if desc.DepthStencil.DepthWrite {
		depthStencil.DepthWriteEnable = vk.True
	}

	blendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	if desc.Blend.Enable {
		blendAttachment.BlendEnable = vk.True
		blendAttachment.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		blendAttachment.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		blendAttachment.ColorBlendOp = vk.BlendOpAdd
		blendAttachment.SrcAlphaBlendFactor = vk.BlendFactorSrcAlpha
		blendAttachment.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		blendAttachment.AlphaBlendOp = vk.BlendOpAdd
	}

	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, len(desc.Framebuffer.ColorFormats))
	for i := range blendAttachments {
		blendAttachments[i] = blendAttachment
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// One push constant range covering every root constant slot.
	pushRange := vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		Offset:     0,
		Size:       128,
	}
	layoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		PushConstantRangeCount: 1,
		PPushConstantRanges:    []vk.PushConstantRange{pushRange},
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(c.context.Device.LogicalDevice, &layoutCreateInfo, c.context.Allocator, &layout); res != vk.Success {
		return nil, fmt.Errorf("vkCreatePipelineLayout failed with %s: %w", VulkanResultString(res, false), core.ErrSystem)
	}

	renderpass, err := c.renderpasses.getByLayout(&desc.Framebuffer, depthReadOnly)
	if err != nil {
		vk.DestroyPipelineLayout(c.context.Device.LogicalDevice, layout, c.context.Allocator)
		return nil, err
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          renderpass,
		Subpass:             0,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(
		c.context.Device.LogicalDevice,
		vk.NullPipelineCache,
		1,
		[]vk.GraphicsPipelineCreateInfo{createInfo},
		c.context.Allocator,
		pipelines); res != vk.Success {
		vk.DestroyPipelineLayout(c.context.Device.LogicalDevice, layout, c.context.Allocator)
		return nil, fmt.Errorf("vkCreateGraphicsPipelines for '%s' failed with %s: %w", desc.ShaderName, VulkanResultString(res, false), core.ErrSystem)
	}

	core.LogDebug("graphics pipeline '%s' created", desc.ShaderName)
	return &Pipeline{Handle: pipelines[0], Layout: layout}, nil
}

func (c *pipelineCache) destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pipeline := range c.pipelines {
		vk.DestroyPipeline(c.context.Device.LogicalDevice, pipeline.Handle, c.context.Allocator)
		vk.DestroyPipelineLayout(c.context.Device.LogicalDevice, pipeline.Layout, c.context.Allocator)
	}
	for _, module := range c.modules {
		vk.DestroyShaderModule(c.context.Device.LogicalDevice, module, c.context.Allocator)
	}
	c.pipelines = map[string]*Pipeline{}
	c.modules = map[string]vk.ShaderModule{}
}
