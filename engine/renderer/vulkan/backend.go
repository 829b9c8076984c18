// Package vulkan is the hardware backend. It exposes the same capability
// surface as the headless device so the upload and rendering core never
// sees a vk handle directly.
package vulkan

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

// Device is the Vulkan implementation of renderer.Graphics. Rendering is
// done to offscreen attachments; presentation is the platform layer's
// concern.
type Device struct {
	context  *VulkanContext
	registry *renderer.ResourceRegistry

	graphicsQueue *Queue
	transferQueue *Queue

	renderpasses *renderpassCache
	pipelines    *pipelineCache
	shaderDir    string

	mu       sync.Mutex
	shutdown bool

	debug bool
}

// New initializes Vulkan, selects a physical device with graphics and
// transfer queues and builds the logical device. shaderDir is where
// compiled SPIR-V modules are looked up by pipeline name.
func New(appName, shaderDir string) (*Device, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, fmt.Errorf("func New - vulkan loader unavailable: %w", core.ErrSystem)
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("func New - vulkan init failed: %w", err)
	}

	d := &Device{
		context:   &VulkanContext{Allocator: nil},
		shaderDir: shaderDir,
		debug:     false,
	}

	if err := d.createInstance(appName); err != nil {
		return nil, err
	}
	if err := d.createDevice(); err != nil {
		return nil, err
	}

	d.registry = renderer.NewResourceRegistry()
	d.graphicsQueue = newQueue(d.context, d.context.Device.GraphicsQueue, d.context.Device.GraphicsCommandPool)
	d.transferQueue = newQueue(d.context, d.context.Device.TransferQueue, d.context.Device.TransferCommandPool)
	d.renderpasses = newRenderpassCache(d.context)
	d.pipelines = newPipelineCache(d.context, d.renderpasses, shaderDir)

	d.context.Device.Properties.Deref()
	core.LogInfo("vulkan device ready: '%s'", vk.ToString(d.context.Device.Properties.DeviceName[:]))
	return d, nil
}

func (d *Device) createInstance(appName string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Oxygen Engine"),
	}

	requiredExtensions := []string{}
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
	}

	layers := []string{}
	if d.debug {
		layers = append(layers, "VK_LAYER_KHRONOS_validation")
	}

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(requiredExtensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(requiredExtensions),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     VulkanSafeStrings(layers),
	}

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, d.context.Allocator, &instance); res != vk.Success {
		return fmt.Errorf("vkCreateInstance failed with %s: %w", VulkanResultString(res, false), core.ErrSystem)
	}
	d.context.Instance = instance
	if err := vk.InitInstance(instance); err != nil {
		return fmt.Errorf("func createInstance - instance proc load failed: %w", err)
	}
	return nil
}

func (d *Device) createDevice() error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(d.context.Instance, &physicalDeviceCount, nil); res != vk.Success || physicalDeviceCount == 0 {
		return fmt.Errorf("no vulkan capable devices found: %w", core.ErrSystem)
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(d.context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return fmt.Errorf("vkEnumeratePhysicalDevices failed with %s: %w", VulkanResultString(res, false), core.ErrSystem)
	}

	for _, candidate := range physicalDevices {
		graphicsIndex, transferIndex := queueFamilies(candidate)
		if graphicsIndex < 0 {
			continue
		}
		d.context.Device.PhysicalDevice = candidate
		d.context.Device.GraphicsQueueIndex = graphicsIndex
		d.context.Device.TransferQueueIndex = transferIndex
		vk.GetPhysicalDeviceProperties(candidate, &d.context.Device.Properties)
		vk.GetPhysicalDeviceFeatures(candidate, &d.context.Device.Features)
		vk.GetPhysicalDeviceMemoryProperties(candidate, &d.context.Device.Memory)
		break
	}
	if d.context.Device.PhysicalDevice == nil {
		return fmt.Errorf("no device exposes a graphics queue: %w", core.ErrSystem)
	}
	if !d.detectDepthFormat() {
		return fmt.Errorf("no supported depth format: %w", core.ErrSystem)
	}

	transferSharesGraphics := d.context.Device.GraphicsQueueIndex == d.context.Device.TransferQueueIndex
	indices := []uint32{uint32(d.context.Device.GraphicsQueueIndex)}
	if !transferSharesGraphics {
		indices = append(indices, uint32(d.context.Device.TransferQueueIndex))
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: indices[i],
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{}
	deviceFeatures.SamplerAnisotropy = vk.True

	extensionNames := []string{}
	if runtime.GOOS == "darwin" {
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	if res := vk.CreateDevice(
		d.context.Device.PhysicalDevice,
		&deviceCreateInfo,
		d.context.Allocator,
		&d.context.Device.LogicalDevice); res != vk.Success {
		return fmt.Errorf("vkCreateDevice failed with %s: %w", VulkanResultString(res, false), core.ErrSystem)
	}

	vk.GetDeviceQueue(d.context.Device.LogicalDevice, uint32(d.context.Device.GraphicsQueueIndex), 0, &d.context.Device.GraphicsQueue)
	vk.GetDeviceQueue(d.context.Device.LogicalDevice, uint32(d.context.Device.TransferQueueIndex), 0, &d.context.Device.TransferQueue)

	if err := d.createCommandPool(uint32(d.context.Device.GraphicsQueueIndex), &d.context.Device.GraphicsCommandPool); err != nil {
		return err
	}
	if transferSharesGraphics {
		d.context.Device.TransferCommandPool = d.context.Device.GraphicsCommandPool
		return nil
	}
	return d.createCommandPool(uint32(d.context.Device.TransferQueueIndex), &d.context.Device.TransferCommandPool)
}

func (d *Device) createCommandPool(familyIndex uint32, out *vk.CommandPool) error {
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: familyIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if res := vk.CreateCommandPool(d.context.Device.LogicalDevice, &poolCreateInfo, d.context.Allocator, out); res != vk.Success {
		return fmt.Errorf("vkCreateCommandPool failed with %s: %w", VulkanResultString(res, false), core.ErrSystem)
	}
	return nil
}

// queueFamilies picks the graphics family and the family with the fewest
// extra capabilities that still supports transfer, favoring a dedicated
// transfer queue when the hardware has one.
func queueFamilies(device vk.PhysicalDevice) (graphics, transfer int32) {
	graphics, transfer = -1, -1
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, families)

	minTransferScore := 255
	for i := uint32(0); i < count; i++ {
		families[i].Deref()
		score := 0
		if vk.QueueFlagBits(families[i].QueueFlags)&vk.QueueGraphicsBit != 0 {
			if graphics < 0 {
				graphics = int32(i)
			}
			score++
		}
		if vk.QueueFlagBits(families[i].QueueFlags)&vk.QueueComputeBit != 0 {
			score++
		}
		if vk.QueueFlagBits(families[i].QueueFlags)&vk.QueueTransferBit != 0 && score <= minTransferScore {
			minTransferScore = score
			transfer = int32(i)
		}
	}
	if transfer < 0 {
		transfer = graphics
	}
	return graphics, transfer
}

func (d *Device) detectDepthFormat() bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureDepthStencilAttachmentBit
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.context.Device.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if vk.FormatFeatureFlagBits(properties.OptimalTilingFeatures)&flags == flags {
			d.context.Device.DepthFormat = candidate
			return true
		}
	}
	return false
}

func (d *Device) DeviceName() string {
	d.context.Device.Properties.Deref()
	return vk.ToString(d.context.Device.Properties.DeviceName[:])
}

func (d *Device) Registry() *renderer.ResourceRegistry {
	return d.registry
}

func (d *Device) Queue(kind renderer.QueueKind) renderer.CommandQueue {
	if kind == renderer.QueueKindTransfer {
		return d.transferQueue
	}
	return d.graphicsQueue
}

// AcquireRecorder allocates a primary command buffer from the pool that
// matches the target queue.
func (d *Device) AcquireRecorder(kind renderer.QueueKind) (renderer.CommandRecorder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown {
		return nil, fmt.Errorf("func AcquireRecorder - device is shut down: %w", core.ErrStateViolation)
	}
	pool := d.context.Device.GraphicsCommandPool
	if kind == renderer.QueueKindTransfer {
		pool = d.context.Device.TransferCommandPool
	}
	return newRecorder(d, pool)
}

func (d *Device) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown {
		return nil
	}
	d.shutdown = true

	vk.DeviceWaitIdle(d.context.Device.LogicalDevice)

	d.pipelines.destroy()
	d.renderpasses.destroy()

	if d.context.Device.TransferCommandPool != d.context.Device.GraphicsCommandPool {
		vk.DestroyCommandPool(d.context.Device.LogicalDevice, d.context.Device.TransferCommandPool, d.context.Allocator)
	}
	vk.DestroyCommandPool(d.context.Device.LogicalDevice, d.context.Device.GraphicsCommandPool, d.context.Allocator)
	vk.DestroyDevice(d.context.Device.LogicalDevice, d.context.Allocator)
	vk.DestroyInstance(d.context.Instance, d.context.Allocator)
	core.LogInfo("vulkan device shut down")
	return nil
}

var _ renderer.Graphics = (*Device)(nil)
var _ metadata.GPUResource = (*Buffer)(nil)
var _ metadata.GPUResource = (*Texture)(nil)
