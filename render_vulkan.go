// render_vulkan.go - Vulkan transfer-based compositor for headless capture

// (c) 2024 - 2026 Zayn Otley derivative work
// https://github.com/intuitionamiga/videocomposer
// License: GPLv3 or later

package main

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"
)

var vulkanInitOnce sync.Once
var vulkanInitErr error

// VulkanCompositor composites CPU layer frames into an offscreen BGRA
// image using only transfer commands (clear + buffer-to-image copies), so
// it needs no shader pipeline and runs on any device with a graphics or
// transfer queue. It backs the headless mode: no DRM, no EGL, just a
// composited canvas read back for the virtual-output sinks. Layers are
// placed 1:1, centred on the canvas plus their X/Y offset, clipped to the
// canvas; there is no scaling, blending or grading on this path.
type VulkanCompositor struct {
	mutex sync.Mutex

	width  int
	height int

	instance       vk.Instance
	physicalDevice vk.PhysicalDevice
	device         vk.Device
	queue          vk.Queue
	queueFamily    uint32

	offscreenImage  vk.Image
	offscreenMemory vk.DeviceMemory

	commandPool   vk.CommandPool
	commandBuffer vk.CommandBuffer
	fence         vk.Fence

	// uploadBuffer stages every layer's pixels for the frame; readback
	// receives the composited image.
	uploadBuffer  vk.Buffer
	uploadMemory  vk.DeviceMemory
	uploadMapped  unsafe.Pointer
	readbackBuffer vk.Buffer
	readbackMemory vk.DeviceMemory

	outputFrame []byte
	initialized bool
	firstFrame  bool
}

// NewVulkanCompositor probes for a usable device. Returns an error when no
// ICD or no usable queue exists; headless mode then runs without a
// compositor and sinks see nothing.
func NewVulkanCompositor(width, height int) (*VulkanCompositor, error) {
	vulkanInitOnce.Do(func() {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			vulkanInitErr = fmt.Errorf("load Vulkan library: %w", err)
			return
		}
		vulkanInitErr = vk.Init()
	})
	if vulkanInitErr != nil {
		return nil, fmt.Errorf("vulkan loader: %w", vulkanInitErr)
	}

	vc := &VulkanCompositor{
		width:       width,
		height:      height,
		outputFrame: make([]byte, width*height*4),
		firstFrame:  true,
	}
	if err := vc.initVulkan(); err != nil {
		vc.Destroy()
		return nil, err
	}
	vc.initialized = true
	return vc, nil
}

func (vc *VulkanCompositor) initVulkan() error {
	if err := vc.createInstance(); err != nil {
		return err
	}
	if err := vc.selectPhysicalDevice(); err != nil {
		return err
	}
	if err := vc.createDevice(); err != nil {
		return err
	}
	if err := vc.createOffscreenImage(); err != nil {
		return err
	}
	return vc.createCommandObjects()
}

func (vc *VulkanCompositor) createInstance() error {
	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   "videocomposer\x00",
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        "videocomposer\x00",
		ApiVersion:         vk.ApiVersion11,
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}
	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &instance); res != vk.Success {
		return fmt.Errorf("vkCreateInstance: %v", res)
	}
	vc.instance = instance
	vk.InitInstance(instance)
	return nil
}

func (vc *VulkanCompositor) selectPhysicalDevice() error {
	var count uint32
	vk.EnumeratePhysicalDevices(vc.instance, &count, nil)
	if count == 0 {
		return fmt.Errorf("no Vulkan devices")
	}
	devices := make([]vk.PhysicalDevice, count)
	vk.EnumeratePhysicalDevices(vc.instance, &count, devices)

	for _, dev := range devices {
		var qCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(dev, &qCount, nil)
		props := make([]vk.QueueFamilyProperties, qCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(dev, &qCount, props)
		for i, p := range props {
			p.Deref()
			// Transfer-only queues suffice; graphics queues always carry
			// transfer capability.
			if p.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit|vk.QueueTransferBit) != 0 {
				vc.physicalDevice = dev
				vc.queueFamily = uint32(i)
				return nil
			}
		}
	}
	return fmt.Errorf("no usable queue family")
}

func (vc *VulkanCompositor) createDevice() error {
	priority := []float32{1.0}
	queueInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: vc.queueFamily,
		QueueCount:       1,
		PQueuePriorities: priority,
	}
	deviceInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos:    []vk.DeviceQueueCreateInfo{queueInfo},
	}
	var device vk.Device
	if res := vk.CreateDevice(vc.physicalDevice, &deviceInfo, nil, &device); res != vk.Success {
		return fmt.Errorf("vkCreateDevice: %v", res)
	}
	vc.device = device

	var queue vk.Queue
	vk.GetDeviceQueue(device, vc.queueFamily, 0, &queue)
	vc.queue = queue
	return nil
}

// createOffscreenImage allocates the canvas image. B8G8R8A8 matches the
// BGRA layout of decoded CPU frames, so copies are byte-for-byte.
func (vc *VulkanCompositor) createOffscreenImage() error {
	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.FormatB8g8r8a8Unorm,
		Extent: vk.Extent3D{
			Width: uint32(vc.width), Height: uint32(vc.height), Depth: 1,
		},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		Usage: vk.ImageUsageFlags(vk.ImageUsageTransferDstBit |
			vk.ImageUsageTransferSrcBit),
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var image vk.Image
	if res := vk.CreateImage(vc.device, &imageInfo, nil, &image); res != vk.Success {
		return fmt.Errorf("vkCreateImage: %v", res)
	}
	vc.offscreenImage = image

	var memReq vk.MemoryRequirements
	vk.GetImageMemoryRequirements(vc.device, image, &memReq)
	memReq.Deref()
	memType, err := vc.findMemoryType(memReq.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReq.Size,
		MemoryTypeIndex: memType,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(vc.device, &allocInfo, nil, &memory); res != vk.Success {
		return fmt.Errorf("vkAllocateMemory: %v", res)
	}
	vc.offscreenMemory = memory
	vk.BindImageMemory(vc.device, image, memory, 0)
	return nil
}

func (vc *VulkanCompositor) createCommandObjects() error {
	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: vc.queueFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(vc.device, &poolInfo, nil, &pool); res != vk.Success {
		return fmt.Errorf("vkCreateCommandPool: %v", res)
	}
	vc.commandPool = pool

	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	cmdBufs := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(vc.device, &allocInfo, cmdBufs); res != vk.Success {
		return fmt.Errorf("vkAllocateCommandBuffers: %v", res)
	}
	vc.commandBuffer = cmdBufs[0]

	fenceInfo := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	var fence vk.Fence
	if res := vk.CreateFence(vc.device, &fenceInfo, nil, &fence); res != vk.Success {
		return fmt.Errorf("vkCreateFence: %v", res)
	}
	vc.fence = fence

	size := vk.DeviceSize(vc.width * vc.height * 4)
	var err error
	vc.uploadBuffer, vc.uploadMemory, err = vc.createHostBuffer(size,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
	if err != nil {
		return err
	}
	if res := vk.MapMemory(vc.device, vc.uploadMemory, 0, size, 0, &vc.uploadMapped); res != vk.Success {
		return fmt.Errorf("vkMapMemory (upload): %v", res)
	}
	vc.readbackBuffer, vc.readbackMemory, err = vc.createHostBuffer(size,
		vk.BufferUsageFlags(vk.BufferUsageTransferDstBit))
	return err
}

func (vc *VulkanCompositor) createHostBuffer(size vk.DeviceSize, usage vk.BufferUsageFlags) (vk.Buffer, vk.DeviceMemory, error) {
	bufInfo := vk.BufferCreateInfo{
		SType: vk.StructureTypeBufferCreateInfo,
		Size:  size,
		Usage: usage,
	}
	var buf vk.Buffer
	if res := vk.CreateBuffer(vc.device, &bufInfo, nil, &buf); res != vk.Success {
		return vk.NullBuffer, vk.NullDeviceMemory, fmt.Errorf("vkCreateBuffer: %v", res)
	}
	var memReq vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(vc.device, buf, &memReq)
	memReq.Deref()
	memType, err := vc.findMemoryType(memReq.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		vk.DestroyBuffer(vc.device, buf, nil)
		return vk.NullBuffer, vk.NullDeviceMemory, err
	}
	memAlloc := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReq.Size,
		MemoryTypeIndex: memType,
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(vc.device, &memAlloc, nil, &memory); res != vk.Success {
		vk.DestroyBuffer(vc.device, buf, nil)
		return vk.NullBuffer, vk.NullDeviceMemory, fmt.Errorf("vkAllocateMemory: %v", res)
	}
	vk.BindBufferMemory(vc.device, buf, memory, 0)
	return buf, memory, nil
}

func (vc *VulkanCompositor) findMemoryType(typeFilter uint32, properties vk.MemoryPropertyFlags) (uint32, error) {
	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.physicalDevice, &memProps)
	memProps.Deref()
	for i := uint32(0); i < memProps.MemoryTypeCount; i++ {
		memProps.MemoryTypes[i].Deref()
		if typeFilter&(1<<i) != 0 &&
			memProps.MemoryTypes[i].PropertyFlags&properties == properties {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no suitable memory type")
}

// layerCopyRegion computes where a layer's frame lands on the canvas:
// centred on the canvas at 1:1 scale plus the layer offset, clipped to
// both the frame and the canvas.
func layerCopyRegion(buf *PixelBuffer, props *DisplayProperties, canvasW, canvasH int) (srcX, srcY, dstX, dstY, w, h int) {
	dstX = (canvasW-buf.Width)/2 + int(props.X)
	dstY = (canvasH-buf.Height)/2 + int(props.Y)
	w = buf.Width
	h = buf.Height

	if dstX < 0 {
		srcX = -dstX
		w += dstX
		dstX = 0
	}
	if dstY < 0 {
		srcY = -dstY
		h += dstY
		dstY = 0
	}
	if dstX+w > canvasW {
		w = canvasW - dstX
	}
	if dstY+h > canvasH {
		h = canvasH - dstY
	}
	return
}

// Composite records and submits one frame: clear the canvas image, copy
// every visible layer's CPU frame into place (bottom-up), then copy the
// image into the readback buffer. Blocks on the fence; headless capture
// has no vsync to race.
func (vc *VulkanCompositor) Composite(layers []*Layer) error {
	vc.mutex.Lock()
	defer vc.mutex.Unlock()
	if !vc.initialized {
		return fmt.Errorf("compositor not initialised")
	}

	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	vk.ResetCommandBuffer(vc.commandBuffer, 0)
	if res := vk.BeginCommandBuffer(vc.commandBuffer, &beginInfo); res != vk.Success {
		return fmt.Errorf("vkBeginCommandBuffer: %v", res)
	}

	subresourceRange := vk.ImageSubresourceRange{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LevelCount: 1, LayerCount: 1,
	}
	oldLayout := vk.ImageLayoutTransferSrcOptimal
	if vc.firstFrame {
		oldLayout = vk.ImageLayoutUndefined
	}
	vc.imageBarrier(oldLayout, vk.ImageLayoutTransferDstOptimal)

	clearColor := vk.ClearColorValue{}
	vk.CmdClearColorImage(vc.commandBuffer, vc.offscreenImage,
		vk.ImageLayoutTransferDstOptimal, &clearColor, 1, []vk.ImageSubresourceRange{subresourceRange})

	// Stage layer pixels into the upload buffer back to front; later
	// copies overwrite earlier ones, matching descending-z draw order
	// bottom-up.
	uploadOffset := 0
	uploadCap := vc.width * vc.height * 4
	dst := unsafe.Slice((*byte)(vc.uploadMapped), uploadCap)
	var copies []copyPlan
	for i := len(layers) - 1; i >= 0; i-- {
		layer := layers[i]
		if !layer.Props.Visible || layer.Props.Opacity <= 0 {
			continue
		}
		buf := layer.Latest.CPU
		if buf == nil || !buf.Valid() {
			continue
		}
		srcX, srcY, dstX, dstY, w, h := layerCopyRegion(buf, &layer.Props, vc.width, vc.height)
		if w <= 0 || h <= 0 {
			continue
		}
		need := w * h * 4
		if uploadOffset+need > uploadCap {
			fmt.Printf("Vulkan: upload buffer full, dropping layer %d this frame\n", layer.ID)
			continue
		}
		// Tight-pack the clipped window so the buffer copy needs no row
		// stride beyond the region width.
		for row := 0; row < h; row++ {
			src := (srcY+row)*buf.Stride + srcX*4
			copy(dst[uploadOffset+row*w*4:], buf.Data[src:src+w*4])
		}
		copies = append(copies, copyPlan{
			bufferOffset: uploadOffset,
			dstX:         dstX, dstY: dstY, w: w, h: h,
		})
		uploadOffset += need
	}

	for _, c := range copies {
		region := vk.BufferImageCopy{
			BufferOffset:      vk.DeviceSize(c.bufferOffset),
			BufferRowLength:   uint32(c.w),
			BufferImageHeight: uint32(c.h),
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageOffset: vk.Offset3D{X: int32(c.dstX), Y: int32(c.dstY)},
			ImageExtent: vk.Extent3D{Width: uint32(c.w), Height: uint32(c.h), Depth: 1},
		}
		vk.CmdCopyBufferToImage(vc.commandBuffer, vc.uploadBuffer, vc.offscreenImage,
			vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
	}

	vc.imageBarrier(vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferSrcOptimal)

	readback := vk.BufferImageCopy{
		BufferRowLength:   uint32(vc.width),
		BufferImageHeight: uint32(vc.height),
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: uint32(vc.width), Height: uint32(vc.height), Depth: 1},
	}
	vk.CmdCopyImageToBuffer(vc.commandBuffer, vc.offscreenImage,
		vk.ImageLayoutTransferSrcOptimal, vc.readbackBuffer, 1, []vk.BufferImageCopy{readback})

	if res := vk.EndCommandBuffer(vc.commandBuffer); res != vk.Success {
		return fmt.Errorf("vkEndCommandBuffer: %v", res)
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{vc.commandBuffer},
	}
	if res := vk.QueueSubmit(vc.queue, 1, []vk.SubmitInfo{submitInfo}, vc.fence); res != vk.Success {
		return fmt.Errorf("vkQueueSubmit: %v", res)
	}
	vk.WaitForFences(vc.device, 1, []vk.Fence{vc.fence}, vk.True, ^uint64(0))
	vk.ResetFences(vc.device, 1, []vk.Fence{vc.fence})
	vc.firstFrame = false
	return nil
}

type copyPlan struct {
	bufferOffset int
	dstX, dstY   int
	w, h         int
}

func (vc *VulkanCompositor) imageBarrier(oldLayout, newLayout vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               vc.offscreenImage,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1, LayerCount: 1,
		},
		SrcAccessMask: vk.AccessFlags(vk.AccessTransferWriteBit),
		DstAccessMask: vk.AccessFlags(vk.AccessTransferReadBit | vk.AccessTransferWriteBit),
	}
	vk.CmdPipelineBarrier(vc.commandBuffer,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

// ReadFrame copies the most recently composited frame out of the readback
// buffer into the reusable output slice, reordering the BGRA image bytes to
// the RGBA order the output sinks take.
func (vc *VulkanCompositor) ReadFrame() []byte {
	vc.mutex.Lock()
	defer vc.mutex.Unlock()
	if !vc.initialized || vc.firstFrame {
		return nil
	}
	var mapped unsafe.Pointer
	size := vk.DeviceSize(len(vc.outputFrame))
	if res := vk.MapMemory(vc.device, vc.readbackMemory, 0, size, 0, &mapped); res != vk.Success {
		return nil
	}
	src := unsafe.Slice((*byte)(mapped), len(vc.outputFrame))
	for i := 0; i+3 < len(src); i += 4 {
		vc.outputFrame[i], vc.outputFrame[i+1], vc.outputFrame[i+2], vc.outputFrame[i+3] =
			src[i+2], src[i+1], src[i], src[i+3]
	}
	vk.UnmapMemory(vc.device, vc.readbackMemory)
	return vc.outputFrame
}

func (vc *VulkanCompositor) Width() int  { return vc.width }
func (vc *VulkanCompositor) Height() int { return vc.height }

func (vc *VulkanCompositor) Destroy() {
	if vc.device != nil {
		vk.DeviceWaitIdle(vc.device)
		if vc.uploadMapped != nil {
			vk.UnmapMemory(vc.device, vc.uploadMemory)
			vc.uploadMapped = nil
		}
		if vc.uploadBuffer != vk.NullBuffer {
			vk.DestroyBuffer(vc.device, vc.uploadBuffer, nil)
		}
		if vc.uploadMemory != vk.NullDeviceMemory {
			vk.FreeMemory(vc.device, vc.uploadMemory, nil)
		}
		if vc.readbackBuffer != vk.NullBuffer {
			vk.DestroyBuffer(vc.device, vc.readbackBuffer, nil)
		}
		if vc.readbackMemory != vk.NullDeviceMemory {
			vk.FreeMemory(vc.device, vc.readbackMemory, nil)
		}
		if vc.fence != vk.NullFence {
			vk.DestroyFence(vc.device, vc.fence, nil)
		}
		if vc.commandPool != vk.NullCommandPool {
			vk.DestroyCommandPool(vc.device, vc.commandPool, nil)
		}
		if vc.offscreenImage != vk.NullImage {
			vk.DestroyImage(vc.device, vc.offscreenImage, nil)
		}
		if vc.offscreenMemory != vk.NullDeviceMemory {
			vk.FreeMemory(vc.device, vc.offscreenMemory, nil)
		}
		vk.DestroyDevice(vc.device, nil)
	}
	if vc.instance != nil {
		vk.DestroyInstance(vc.instance, nil)
	}
}
