package vulkan

import (
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/diffuse/engine/assets"
	"github.com/spaghettifunk/diffuse/engine/config"
	"github.com/spaghettifunk/diffuse/engine/core"
	amath "github.com/spaghettifunk/diffuse/engine/math"
	"github.com/spaghettifunk/diffuse/engine/platform"
	"github.com/spaghettifunk/diffuse/engine/renderer/components"
	"github.com/spaghettifunk/diffuse/engine/scene"
)

const frameTimeoutNs = math.MaxUint64

type VulkanRenderer struct {
	platform    *platform.Platform
	cfg         *config.RendererConfig
	FrameNumber uint64
	context     *VulkanContext

	cachedFramebufferWidth  uint32
	cachedFramebufferHeight uint32

	frameRing *FrameRing

	sceneSetLayout  vk.DescriptorSetLayout
	skyboxSetLayout vk.DescriptorSetLayout
	descriptorPool  vk.DescriptorPool

	scenePipeline  *VulkanPipeline
	skyboxPipeline *VulkanPipeline

	// Per swapchain image uniform buffers, host visible and mapped.
	sceneUniforms  []*VulkanBuffer
	skyboxUniforms []*VulkanBuffer

	// materialSets[imageIndex][materialIndex].
	materialSets [][]vk.DescriptorSet
	skyboxSets   []vk.DescriptorSet

	vertexBuffer *VulkanBuffer
	indexBuffer  *VulkanBuffer
	textures     []*VulkanTexture
	fallback     *VulkanTexture
	envmap       *VulkanTexture

	skyboxVertexBuffer *VulkanBuffer
	skyboxIndexBuffer  *VulkanBuffer
	skyboxIndexCount   uint32

	scene    *scene.Scene
	drawList []DrawCommand
}

func New(p *platform.Platform, cfg *config.RendererConfig) *VulkanRenderer {
	return &VulkanRenderer{
		platform:    p,
		cfg:         cfg,
		FrameNumber: 0,
		context: &VulkanContext{
			FramebufferWidth:  0,
			FramebufferHeight: 0,
			Allocator:         nil,
			Device:            &VulkanDevice{},
		},
	}
}

func (vr *VulkanRenderer) Initialize(appName string, appWidth, appHeight uint32) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		err := fmt.Errorf("GetInstanceProcAddress is nil")
		core.LogFatal(err.Error())
		return err
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogFatal("failed to initialize vk: %s", err)
		return err
	}

	vr.context.FramebufferWidth = appWidth
	vr.context.FramebufferHeight = appHeight

	if err := vr.createInstance(appName); err != nil {
		return err
	}

	if vr.cfg.EnableValidationLayers {
		if err := vr.createDebugger(); err != nil {
			return err
		}
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.platform.CreateVulkanSurface(vr.context.Instance)
	if err != nil {
		core.LogError("failed to create platform surface: %s", err)
		return err
	}
	vr.context.Surface = surface

	if err := DeviceCreate(vr.context, vr.cfg.DeviceExtensions); err != nil {
		core.LogError("failed to create device")
		return err
	}

	sc, err := SwapchainCreate(vr.context, vr.context.FramebufferWidth, vr.context.FramebufferHeight, vr.cfg.FramesInFlight)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc

	rp, err := RenderpassCreate(vr.context,
		0, 0,
		float32(vr.context.FramebufferWidth), float32(vr.context.FramebufferHeight),
		0.0, 0.0, 0.0, 1.0,
		1.0, 0)
	if err != nil {
		return err
	}
	vr.context.MainRenderpass = rp

	if err := vr.regenerateFramebuffers(); err != nil {
		return err
	}
	if err := vr.createCommandBuffers(); err != nil {
		return err
	}
	if err := vr.createSyncObjects(); err != nil {
		return err
	}

	vr.frameRing = NewFrameRing(sc.MaxFramesInFlight)

	if vr.sceneSetLayout, err = SceneDescriptorSetLayout(vr.context); err != nil {
		return err
	}
	if vr.skyboxSetLayout, err = SkyboxDescriptorSetLayout(vr.context); err != nil {
		return err
	}

	if err := vr.createPipelines(); err != nil {
		return err
	}

	core.LogInfo("Vulkan renderer initialized.")
	return nil
}

func (vr *VulkanRenderer) createInstance(appName string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Diffuse Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{"VK_KHR_surface"}
	requiredExtensions = append(requiredExtensions, vr.platform.GetRequiredExtensionNames()...)

	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	if vr.cfg.EnableValidationLayers {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
	}
	for _, ext := range requiredExtensions {
		core.LogDebug("Required instance extension: %s", ext)
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	layers := []string{}
	if vr.cfg.EnableValidationLayers {
		layers = vr.cfg.ValidationLayers
		if err := verifyValidationLayers(layers); err != nil {
			core.LogFatal(err.Error())
			return err
		}
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &vr.context.Instance); res != vk.Success {
		err := fmt.Errorf("failed to create Vulkan instance: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}

	core.LogInfo("Vulkan instance created.")
	return nil
}

// verifyValidationLayers fails when a requested layer is not installed. A
// silently dropped layer would hide exactly the errors it was meant to
// surface.
func verifyValidationLayers(required []string) error {
	var availableCount uint32
	if res := vk.EnumerateInstanceLayerProperties(&availableCount, nil); res != vk.Success {
		return fmt.Errorf("failed to enumerate instance layers: %s", VulkanResultString(res))
	}
	available := make([]vk.LayerProperties, availableCount)
	if res := vk.EnumerateInstanceLayerProperties(&availableCount, available); res != vk.Success {
		return fmt.Errorf("failed to enumerate instance layers: %s", VulkanResultString(res))
	}

	for _, name := range required {
		found := false
		for i := range available {
			available[i].Deref()
			if trimNulls(available[i].LayerName[:]) == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("required validation layer is missing: %s", name)
		}
	}
	return nil
}

func (vr *VulkanRenderer) createDebugger() error {
	core.LogDebug("Creating Vulkan debugger...")
	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
		PfnCallback: dbgCallbackFunc,
	}

	var dbg vk.DebugReportCallback
	if res := vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, nil, &dbg); res != vk.Success {
		err := fmt.Errorf("failed to create debug callback: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	vr.context.debugMessenger = dbg
	core.LogDebug("Vulkan debugger created.")
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("performance: [%s] Code %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("[%s] Code %d: %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}

func (vr *VulkanRenderer) regenerateFramebuffers() error {
	sc := vr.context.Swapchain
	sc.Framebuffers = make([]*VulkanFramebuffer, sc.ImageCount)
	for i := uint32(0); i < sc.ImageCount; i++ {
		attachments := []vk.ImageView{
			sc.Views[i],
			sc.DepthAttachment.View,
		}
		fb, err := FramebufferCreate(vr.context, vr.context.MainRenderpass,
			vr.context.FramebufferWidth, vr.context.FramebufferHeight, attachments)
		if err != nil {
			return err
		}
		sc.Framebuffers[i] = fb
	}
	return nil
}

func (vr *VulkanRenderer) createCommandBuffers() error {
	sc := vr.context.Swapchain
	vr.context.GraphicsCommandBuffers = make([]*VulkanCommandBuffer, sc.ImageCount)
	for i := range vr.context.GraphicsCommandBuffers {
		cb, err := NewVulkanCommandBuffer(vr.context, vr.context.Device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		vr.context.GraphicsCommandBuffers[i] = cb
	}
	core.LogDebug("Graphics command buffers created.")
	return nil
}

func (vr *VulkanRenderer) createSyncObjects() error {
	sc := vr.context.Swapchain
	framesInFlight := int(sc.MaxFramesInFlight)

	vr.context.RenderCompleteSemaphores = make([]vk.Semaphore, framesInFlight)
	vr.context.PresentCompleteSemaphores = make([]vk.Semaphore, framesInFlight)
	vr.context.InFlightFences = make([]*VulkanFence, framesInFlight)

	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	for i := 0; i < framesInFlight; i++ {
		if res := vk.CreateSemaphore(vr.context.Device.LogicalDevice, &semaphoreCreateInfo, vr.context.Allocator, &vr.context.RenderCompleteSemaphores[i]); res != vk.Success {
			return fmt.Errorf("failed to create semaphore: %s", VulkanResultString(res))
		}
		if res := vk.CreateSemaphore(vr.context.Device.LogicalDevice, &semaphoreCreateInfo, vr.context.Allocator, &vr.context.PresentCompleteSemaphores[i]); res != vk.Success {
			return fmt.Errorf("failed to create semaphore: %s", VulkanResultString(res))
		}

		// Created signaled so the first frame does not block forever.
		fence, err := NewFence(vr.context, true)
		if err != nil {
			return err
		}
		vr.context.InFlightFences[i] = fence
	}

	vr.context.ImagesInFlight = make([]*VulkanFence, sc.ImageCount)
	return nil
}

func vertexAttributes() (uint32, []vk.VertexInputAttributeDescription) {
	var v amath.Vertex
	attributes := []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(v.Position))},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(v.Normal))},
		{Location: 2, Binding: 0, Format: vk.FormatR32g32b32a32Sfloat, Offset: uint32(unsafe.Offsetof(v.Tangent))},
		{Location: 3, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: uint32(unsafe.Offsetof(v.UV))},
	}
	return uint32(unsafe.Sizeof(v)), attributes
}

func (vr *VulkanRenderer) shaderPath(name string) string {
	return filepath.Join(vr.cfg.ShaderDir, name)
}

func (vr *VulkanRenderer) createPipelines() error {
	viewport := vk.Viewport{
		X: 0, Y: 0,
		Width:    float32(vr.context.FramebufferWidth),
		Height:   float32(vr.context.FramebufferHeight),
		MinDepth: 0, MaxDepth: 1,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: vr.context.FramebufferWidth, Height: vr.context.FramebufferHeight},
	}

	sceneVert, err := ShaderModuleCreate(vr.context, vr.shaderPath("pbr.vert.spv"), vk.ShaderStageVertexBit)
	if err != nil {
		return err
	}
	defer sceneVert.Destroy(vr.context)
	sceneFrag, err := ShaderModuleCreate(vr.context, vr.shaderPath("pbr.frag.spv"), vk.ShaderStageFragmentBit)
	if err != nil {
		return err
	}
	defer sceneFrag.Destroy(vr.context)

	stride, attributes := vertexAttributes()
	scenePipeline, err := NewGraphicsPipeline(vr.context, &VulkanPipelineConfig{
		Renderpass:           vr.context.MainRenderpass,
		Stride:               stride,
		Attributes:           attributes,
		DescriptorSetLayouts: []vk.DescriptorSetLayout{vr.sceneSetLayout},
		Stages: []vk.PipelineShaderStageCreateInfo{
			sceneVert.StageCreateInfo(),
			sceneFrag.StageCreateInfo(),
		},
		Viewport:           viewport,
		Scissor:            scissor,
		CullMode:           FaceCullModeBack,
		DepthTest:          true,
		DepthWrite:         true,
		PushConstantRanges: []vk.PushConstantRange{ScenePushConstantRange()},
	})
	if err != nil {
		return err
	}

	skyboxVert, err := ShaderModuleCreate(vr.context, vr.shaderPath("skybox.vert.spv"), vk.ShaderStageVertexBit)
	if err != nil {
		scenePipeline.Destroy(vr.context)
		return err
	}
	defer skyboxVert.Destroy(vr.context)
	skyboxFrag, err := ShaderModuleCreate(vr.context, vr.shaderPath("skybox.frag.spv"), vk.ShaderStageFragmentBit)
	if err != nil {
		scenePipeline.Destroy(vr.context)
		return err
	}
	defer skyboxFrag.Destroy(vr.context)

	// The skybox cube is viewed from inside, so front faces are culled and
	// only the interior renders. Depth writes stay off so the scene always
	// draws over it.
	var cubeCorner amath.Vec3
	skyboxPipeline, err := NewGraphicsPipeline(vr.context, &VulkanPipelineConfig{
		Renderpass: vr.context.MainRenderpass,
		Stride:     uint32(unsafe.Sizeof(cubeCorner)),
		Attributes: []vk.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
		},
		DescriptorSetLayouts: []vk.DescriptorSetLayout{vr.skyboxSetLayout},
		Stages: []vk.PipelineShaderStageCreateInfo{
			skyboxVert.StageCreateInfo(),
			skyboxFrag.StageCreateInfo(),
		},
		Viewport:   viewport,
		Scissor:    scissor,
		CullMode:   FaceCullModeFront,
		DepthTest:  true,
		DepthWrite: false,
	})
	if err != nil {
		scenePipeline.Destroy(vr.context)
		return err
	}

	vr.scenePipeline = scenePipeline
	vr.skyboxPipeline = skyboxPipeline
	return nil
}

// ReloadPipelines rebuilds the graphics pipelines from the shader binaries
// on disk. Called when the shader watcher flags a change; the device is
// idled first so no recorded frame still references the old pipelines.
func (vr *VulkanRenderer) ReloadPipelines() error {
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	if vr.scenePipeline != nil {
		vr.scenePipeline.Destroy(vr.context)
		vr.scenePipeline = nil
	}
	if vr.skyboxPipeline != nil {
		vr.skyboxPipeline.Destroy(vr.context)
		vr.skyboxPipeline = nil
	}

	if err := vr.createPipelines(); err != nil {
		core.LogError("pipeline reload failed: %s", err)
		return err
	}
	core.LogInfo("Pipelines reloaded.")
	return nil
}

// LoadScene uploads the scene's geometry and textures to the GPU, runs the
// environment prefilter and allocates all descriptor sets. images holds the
// decoded textures referenced by the scene materials; envmap is the
// equirectangular environment to prefilter into the skybox cubemap.
func (vr *VulkanRenderer) LoadScene(s *scene.Scene, images []*assets.Image, envmap *assets.Image) error {
	var err error

	vr.drawList, err = BuildDrawList(s)
	if err != nil {
		return err
	}
	vr.scene = s

	if len(s.Vertices) > 0 {
		vr.vertexBuffer, err = UploadDeviceLocal(vr.context, vertexBytes(s.Vertices),
			vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
		if err != nil {
			return err
		}
		vr.indexBuffer, err = UploadDeviceLocal(vr.context, indexBytes(s.Indices),
			vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
		if err != nil {
			return err
		}
	}

	corners, cubeIndices := SkyboxCubeMesh()
	vr.skyboxVertexBuffer, err = UploadDeviceLocal(vr.context, vec3Bytes(corners),
		vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return err
	}
	vr.skyboxIndexBuffer, err = UploadDeviceLocal(vr.context, indexBytes(cubeIndices),
		vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
	if err != nil {
		return err
	}
	vr.skyboxIndexCount = uint32(len(cubeIndices))

	vr.fallback, err = FallbackTexture(vr.context, 255, 255, 255, 255)
	if err != nil {
		return err
	}
	vr.textures = make([]*VulkanTexture, len(images))
	for i, img := range images {
		tex, err := TextureCreate(vr.context, img)
		if err != nil {
			return err
		}
		vr.textures[i] = tex
	}

	equirect, err := TextureCreate(vr.context, envmap)
	if err != nil {
		return err
	}
	defer equirect.Destroy(vr.context)

	vr.envmap, err = PrefilterEnvmap(vr.context, equirect, vr.cfg.EnvmapSize, vr.cfg.EnvmapLevels,
		vr.shaderPath("equirect_to_cube.comp.spv"))
	if err != nil {
		return err
	}

	return vr.createDescriptorSets()
}

func (vr *VulkanRenderer) createDescriptorSets() error {
	imageCount := vr.context.Swapchain.ImageCount
	s := vr.scene

	counts := DescriptorPoolSizesFor(imageCount, uint32(len(s.Materials)), uint32(len(s.Meshes)))
	pool, err := DescriptorPoolCreate(vr.context, counts)
	if err != nil {
		return err
	}
	vr.descriptorPool = pool

	uniformSize := vk.DeviceSize(unsafe.Sizeof(FrameUniforms{}))
	vr.sceneUniforms = make([]*VulkanBuffer, imageCount)
	vr.skyboxUniforms = make([]*VulkanBuffer, imageCount)
	for i := uint32(0); i < imageCount; i++ {
		if vr.sceneUniforms[i], err = BufferCreate(vr.context, uniformSize,
			vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
			true); err != nil {
			return err
		}
		if vr.skyboxUniforms[i], err = BufferCreate(vr.context, uniformSize,
			vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
			true); err != nil {
			return err
		}
	}

	vr.materialSets = make([][]vk.DescriptorSet, imageCount)
	for i := uint32(0); i < imageCount; i++ {
		if len(s.Materials) == 0 {
			continue
		}
		sets, err := DescriptorSetsAllocate(vr.context, pool, vr.sceneSetLayout, uint32(len(s.Materials)))
		if err != nil {
			return err
		}
		vr.materialSets[i] = sets

		for m := range s.Materials {
			mat := &s.Materials[m]
			WriteUniformBuffer(vr.context, sets[m], 0, vr.sceneUniforms[i].Handle, uniformSize)

			slots := []int{mat.Albedo, mat.Normal, mat.MetallicRoughness, mat.AmbientOcclusion, mat.Emissive}
			for binding, slot := range slots {
				tex := vr.textureAt(slot)
				WriteImageSampler(vr.context, sets[m], uint32(binding+1),
					tex.Image.View, tex.Sampler, vk.ImageLayoutShaderReadOnlyOptimal)
			}
		}
	}

	skyboxSets, err := DescriptorSetsAllocate(vr.context, pool, vr.skyboxSetLayout, imageCount)
	if err != nil {
		return err
	}
	vr.skyboxSets = skyboxSets
	for i := uint32(0); i < imageCount; i++ {
		WriteUniformBuffer(vr.context, skyboxSets[i], 0, vr.skyboxUniforms[i].Handle, uniformSize)
		WriteImageSampler(vr.context, skyboxSets[i], 1,
			vr.envmap.Image.View, vr.envmap.Sampler, vk.ImageLayoutShaderReadOnlyOptimal)
	}

	return nil
}

func (vr *VulkanRenderer) textureAt(index int) *VulkanTexture {
	if index < 0 || index >= len(vr.textures) {
		return vr.fallback
	}
	return vr.textures[index]
}

func vertexBytes(vertices []amath.Vertex) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), len(vertices)*int(unsafe.Sizeof(vertices[0])))
}

func vec3Bytes(vectors []amath.Vec3) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&vectors[0])), len(vectors)*int(unsafe.Sizeof(vectors[0])))
}

func indexBytes(indices []uint32) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*4)
}

// Resized is called from the platform resize callback. The actual rebuild
// happens at the top of the next Draw, where nothing is mid-frame.
func (vr *VulkanRenderer) Resized(width, height uint32) {
	vr.cachedFramebufferWidth = width
	vr.cachedFramebufferHeight = height
	vr.context.FramebufferSizeGeneration++
}

// Draw runs one frame attempt. The frame slot rotation advances on every
// attempt, including skipped ones, so a resize storm cannot pin the loop to
// one slot. Returns ErrFrameSkipped when no image was presented.
func (vr *VulkanRenderer) Draw(cam *components.Camera) error {
	err := vr.drawFrame(cam)

	vr.frameRing.Advance()
	vr.context.CurrentFrame = vr.frameRing.Current()
	vr.FrameNumber++

	return err
}

func (vr *VulkanRenderer) drawFrame(cam *components.Camera) error {
	device := vr.context.Device

	if vr.context.RecreatingSwapchain {
		if res := vk.DeviceWaitIdle(device.LogicalDevice); res != vk.Success {
			core.LogError("DeviceWaitIdle failed: %s", VulkanResultString(res))
		}
		return core.ErrFrameSkipped
	}

	if vr.context.FramebufferSizeGeneration != vr.context.FramebufferSizeLastGeneration {
		if err := vr.recreateSwapchain(); err != nil {
			return err
		}
		return core.ErrFrameSkipped
	}

	if len(vr.skyboxSets) == 0 {
		core.LogWarn("no scene loaded, skipping frame")
		return core.ErrFrameSkipped
	}

	current := vr.frameRing.Current()

	if !vr.context.InFlightFences[current].Wait(vr.context, frameTimeoutNs) {
		core.LogWarn("in-flight fence wait failed, skipping frame")
		return core.ErrFrameSkipped
	}

	imageIndex, err := vr.context.Swapchain.SwapchainAcquireNextImageIndex(
		vr.context, frameTimeoutNs, vr.context.RenderCompleteSemaphores[current], vk.NullFence)
	if err != nil {
		if err == core.ErrSwapchainOutOfDate {
			if rerr := vr.recreateSwapchain(); rerr != nil {
				return rerr
			}
			return core.ErrFrameSkipped
		}
		return err
	}
	vr.context.ImageIndex = imageIndex

	// If a previous frame is still using this image, wait for it too. The
	// uniform buffers are per image, so they must not be written before the
	// frame reading them has retired.
	if vr.context.ImagesInFlight[imageIndex] != nil {
		vr.context.ImagesInFlight[imageIndex].Wait(vr.context, frameTimeoutNs)
	}
	vr.context.ImagesInFlight[imageIndex] = vr.context.InFlightFences[current]

	vr.updateUniforms(cam, imageIndex)

	if err := vr.context.InFlightFences[current].Reset(vr.context); err != nil {
		return err
	}

	cb := vr.context.GraphicsCommandBuffers[imageIndex]
	cb.Reset()
	if err := RecordFrame(cb, &FrameDrawData{
		Renderpass:         vr.context.MainRenderpass,
		Framebuffer:        vr.context.Swapchain.Framebuffers[imageIndex].Handle,
		SkyboxPipeline:     vr.skyboxPipeline,
		SkyboxSet:          vr.skyboxSets[imageIndex],
		SkyboxVertexBuffer: vr.skyboxVertexBuffer,
		SkyboxIndexBuffer:  vr.skyboxIndexBuffer,
		SkyboxIndexCount:   vr.skyboxIndexCount,
		ScenePipeline:      vr.scenePipeline,
		MaterialSets:       vr.materialSets[imageIndex],
		VertexBuffer:       vr.vertexBuffer,
		IndexBuffer:        vr.indexBuffer,
		DrawList:           vr.drawList,
		Width:              vr.context.FramebufferWidth,
		Height:             vr.context.FramebufferHeight,
	}); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.Handle},
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{vr.context.RenderCompleteSemaphores[current]},
		// Color writes wait for the acquired image; vertex work may start
		// earlier.
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{vr.context.PresentCompleteSemaphores[current]},
	}

	err = lockPool.SafeQueueCall(uint32(device.GraphicsQueueIndex), func() error {
		if res := vk.QueueSubmit(device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo},
			vr.context.InFlightFences[current].Handle); res != vk.Success {
			return fmt.Errorf("queue submit failed: %s", VulkanResultString(res))
		}
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		return err
	}
	cb.UpdateSubmitted()

	err = vr.context.Swapchain.SwapchainPresent(vr.context, device.PresentQueue,
		vr.context.PresentCompleteSemaphores[current], imageIndex)
	if err == core.ErrSwapchainOutOfDate {
		return vr.recreateSwapchain()
	}
	return err
}

func (vr *VulkanRenderer) updateUniforms(cam *components.Camera, imageIndex uint32) {
	projection := cam.Projection()

	sceneUniforms := FrameUniforms{
		Model:      amath.NewMat4Identity(),
		View:       cam.View(),
		Projection: projection,
	}
	vr.sceneUniforms[imageIndex].LoadData(sceneUniforms.Bytes())

	skyboxUniforms := FrameUniforms{
		Model:      amath.NewMat4Identity(),
		View:       cam.SkyboxView(),
		Projection: projection,
	}
	vr.skyboxUniforms[imageIndex].LoadData(skyboxUniforms.Bytes())
}

func (vr *VulkanRenderer) recreateSwapchain() error {
	if vr.context.RecreatingSwapchain {
		return core.ErrFrameSkipped
	}

	width := vr.cachedFramebufferWidth
	height := vr.cachedFramebufferHeight
	if width == 0 && height == 0 {
		width = vr.context.FramebufferWidth
		height = vr.context.FramebufferHeight
	}
	if width == 0 || height == 0 {
		// Minimized. Mark the generation seen so the loop can idle until the
		// next resize event.
		core.LogDebug("window is minimized, skipping swapchain rebuild")
		return core.ErrFrameSkipped
	}

	vr.context.RecreatingSwapchain = true
	defer func() { vr.context.RecreatingSwapchain = false }()

	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	for i := range vr.context.ImagesInFlight {
		vr.context.ImagesInFlight[i] = nil
	}

	if err := DeviceQuerySwapchainSupport(vr.context.Device.PhysicalDevice, vr.context.Surface, &vr.context.Device.SwapchainSupport); err != nil {
		return err
	}
	DeviceDetectDepthFormat(vr.context.Device)

	// The device is idle, so everything depending on the old swapchain goes
	// first: command buffers referencing its framebuffers, then the
	// framebuffers over its image views. Only then is the swapchain itself
	// rebuilt.
	for _, cb := range vr.context.GraphicsCommandBuffers {
		cb.Free(vr.context, vr.context.Device.GraphicsCommandPool)
	}
	vr.context.GraphicsCommandBuffers = nil
	for _, fb := range vr.context.Swapchain.Framebuffers {
		fb.Destroy(vr.context)
	}
	vr.context.Swapchain.Framebuffers = nil

	sc, err := vr.context.Swapchain.SwapchainRecreate(vr.context, width, height)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc

	vr.context.FramebufferWidth = sc.Extent.Width
	vr.context.FramebufferHeight = sc.Extent.Height
	vr.context.MainRenderpass.W = float32(sc.Extent.Width)
	vr.context.MainRenderpass.H = float32(sc.Extent.Height)
	vr.cachedFramebufferWidth = 0
	vr.cachedFramebufferHeight = 0

	vr.context.FramebufferSizeLastGeneration = vr.context.FramebufferSizeGeneration

	if err := vr.regenerateFramebuffers(); err != nil {
		return err
	}
	if err := vr.createCommandBuffers(); err != nil {
		return err
	}
	vr.context.ImagesInFlight = make([]*VulkanFence, sc.ImageCount)

	core.LogInfo("Swapchain recreated at %dx%d.", sc.Extent.Width, sc.Extent.Height)
	return nil
}

func (vr *VulkanRenderer) Shutdown() error {
	device := vr.context.Device
	vk.DeviceWaitIdle(device.LogicalDevice)

	if vr.scenePipeline != nil {
		vr.scenePipeline.Destroy(vr.context)
	}
	if vr.skyboxPipeline != nil {
		vr.skyboxPipeline.Destroy(vr.context)
	}

	if vr.descriptorPool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(device.LogicalDevice, vr.descriptorPool, vr.context.Allocator)
	}
	if vr.sceneSetLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(device.LogicalDevice, vr.sceneSetLayout, vr.context.Allocator)
	}
	if vr.skyboxSetLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(device.LogicalDevice, vr.skyboxSetLayout, vr.context.Allocator)
	}

	for _, ub := range vr.sceneUniforms {
		ub.Destroy(vr.context)
	}
	for _, ub := range vr.skyboxUniforms {
		ub.Destroy(vr.context)
	}

	if vr.vertexBuffer != nil {
		vr.vertexBuffer.Destroy(vr.context)
	}
	if vr.indexBuffer != nil {
		vr.indexBuffer.Destroy(vr.context)
	}
	if vr.skyboxVertexBuffer != nil {
		vr.skyboxVertexBuffer.Destroy(vr.context)
	}
	if vr.skyboxIndexBuffer != nil {
		vr.skyboxIndexBuffer.Destroy(vr.context)
	}
	for _, tex := range vr.textures {
		tex.Destroy(vr.context)
	}
	if vr.fallback != nil {
		vr.fallback.Destroy(vr.context)
	}
	if vr.envmap != nil {
		vr.envmap.Destroy(vr.context)
	}

	for i := range vr.context.RenderCompleteSemaphores {
		vk.DestroySemaphore(device.LogicalDevice, vr.context.RenderCompleteSemaphores[i], vr.context.Allocator)
		vk.DestroySemaphore(device.LogicalDevice, vr.context.PresentCompleteSemaphores[i], vr.context.Allocator)
	}
	for _, fence := range vr.context.InFlightFences {
		fence.Destroy(vr.context)
	}

	for _, cb := range vr.context.GraphicsCommandBuffers {
		cb.Free(vr.context, device.GraphicsCommandPool)
	}
	for _, fb := range vr.context.Swapchain.Framebuffers {
		fb.Destroy(vr.context)
	}
	vr.context.Swapchain.SwapchainDestroy(vr.context)
	vr.context.MainRenderpass.RenderpassDestroy(vr.context)

	DeviceDestroy(vr.context)

	if vr.context.Surface != vk.NullSurface {
		vk.DestroySurface(vr.context.Instance, vr.context.Surface, vr.context.Allocator)
		vr.context.Surface = vk.NullSurface
	}
	if vr.context.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, nil)
	}
	vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)

	core.LogInfo("Vulkan renderer shut down.")
	return nil
}
