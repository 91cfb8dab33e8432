package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"

	"github.com/spaghettifunk/diffuse/engine/core"
)

// Workgroup size of the equirect-to-cubemap compute shader, in texels per
// dimension.
const prefilterWorkgroupSize = 32

type prefilterPushConstants struct {
	Level     uint32
	Roughness float32
}

// ValidateEnvmapSize checks that a cubemap face size can be covered by
// whole compute workgroups.
func ValidateEnvmapSize(size uint32) error {
	if size < prefilterWorkgroupSize || size%prefilterWorkgroupSize != 0 {
		return fmt.Errorf("environment map size %d must be a positive multiple of %d", size, prefilterWorkgroupSize)
	}
	return nil
}

// PrefilterDispatchGroups returns the workgroup count per face dimension.
func PrefilterDispatchGroups(size uint32) uint32 {
	return size / prefilterWorkgroupSize
}

// PrefilterEnvmap converts an equirectangular texture into a mipmapped
// cubemap. Mip zero of every face is written by a compute dispatch; the
// remaining levels are blitted down from it. The work runs once on the
// graphics queue before the first frame and the resulting texture ends in
// shader read layout.
func PrefilterEnvmap(context *VulkanContext, equirect *VulkanTexture, size uint32, levels uint32, shaderPath string) (*VulkanTexture, error) {
	if err := ValidateEnvmapSize(size); err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	maxLevels := NumMipLevels(size, size)
	if levels == 0 || levels > maxLevels {
		levels = maxLevels
	}

	cube, err := ImageCreate(
		context,
		vk.ImageType2d,
		size, size,
		levels, 6,
		vk.FormatR8g8b8a8Unorm,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageStorageBit)|
			vk.ImageUsageFlags(vk.ImageUsageSampledBit)|
			vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit)|
			vk.ImageUsageFlags(vk.ImageUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return nil, err
	}

	// The storage target view covers mip zero only.
	storageView, err := ImageViewCreate(context, cube, vk.ImageViewTypeCube, vk.ImageAspectFlags(vk.ImageAspectColorBit), 0, 1)
	if err != nil {
		cube.Destroy(context)
		return nil, err
	}
	defer vk.DestroyImageView(context.Device.LogicalDevice, storageView, context.Allocator)

	shader, err := ShaderModuleCreate(context, shaderPath, vk.ShaderStageComputeBit)
	if err != nil {
		cube.Destroy(context)
		return nil, err
	}
	defer shader.Destroy(context)

	setLayout, err := PrefilterDescriptorSetLayout(context)
	if err != nil {
		cube.Destroy(context)
		return nil, err
	}
	defer vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, setLayout, context.Allocator)

	pushRange := vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		Offset:     0,
		Size:       uint32(unsafe.Sizeof(prefilterPushConstants{})),
	}
	pipeline, err := NewComputePipeline(context, shader.StageCreateInfo(), []vk.DescriptorSetLayout{setLayout}, []vk.PushConstantRange{pushRange})
	if err != nil {
		cube.Destroy(context)
		return nil, err
	}
	defer pipeline.Destroy(context)

	pool, err := DescriptorPoolCreate(context, DescriptorPoolCounts{
		Samplers:       1,
		UniformBuffers: 1,
		StorageImages:  1,
		MaxSets:        1,
	})
	if err != nil {
		cube.Destroy(context)
		return nil, err
	}
	defer vk.DestroyDescriptorPool(context.Device.LogicalDevice, pool, context.Allocator)

	sets, err := DescriptorSetsAllocate(context, pool, setLayout, 1)
	if err != nil {
		cube.Destroy(context)
		return nil, err
	}
	WriteImageSampler(context, sets[0], 0, equirect.Image.View, equirect.Sampler, vk.ImageLayoutShaderReadOnlyOptimal)
	WriteStorageImage(context, sets[0], 1, storageView)

	cb, err := AllocateAndBeginSingleUse(context, context.Device.GraphicsCommandPool)
	if err != nil {
		cube.Destroy(context)
		return nil, err
	}

	// All levels to general so the dispatch can write mip zero.
	cube.TransitionLayout(cb,
		vk.ImageLayoutUndefined, vk.ImageLayoutGeneral,
		0, levels,
		0, vk.AccessFlags(vk.AccessShaderWriteBit),
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit))

	pipeline.Bind(cb, vk.PipelineBindPointCompute)
	vk.CmdBindDescriptorSets(cb.Handle, vk.PipelineBindPointCompute, pipeline.PipelineLayout, 0, 1, sets, 0, nil)

	push := prefilterPushConstants{Level: 0, Roughness: 0}
	vk.CmdPushConstants(cb.Handle, pipeline.PipelineLayout, vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, uint32(unsafe.Sizeof(push)), unsafe.Pointer(&push))

	groups := PrefilterDispatchGroups(size)
	vk.CmdDispatch(cb.Handle, groups, groups, 6)

	// Mip zero becomes the blit source for the chain.
	cube.TransitionLayout(cb,
		vk.ImageLayoutGeneral, vk.ImageLayoutTransferSrcOptimal,
		0, 1,
		vk.AccessFlags(vk.AccessShaderWriteBit), vk.AccessFlags(vk.AccessTransferReadBit),
		vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit))

	recordMipChain(cb, cube, size, levels)

	// Whole chain to shader read for sampling.
	cube.TransitionLayout(cb,
		vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutShaderReadOnlyOptimal,
		0, levels,
		vk.AccessFlags(vk.AccessTransferReadBit), vk.AccessFlags(vk.AccessShaderReadBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit))

	if err := cb.EndSingleUse(context, context.Device.GraphicsCommandPool, context.Device.GraphicsQueue, uint32(context.Device.GraphicsQueueIndex)); err != nil {
		cube.Destroy(context)
		return nil, err
	}

	sampler, err := SamplerCreate(context, float32(levels))
	if err != nil {
		cube.Destroy(context)
		return nil, err
	}

	return &VulkanTexture{
		ID:      uuid.New(),
		Image:   cube,
		Sampler: sampler,
	}, nil
}

// recordMipChain fills levels 1..levels-1 of the cube by blitting each
// level from the one above it. Every source level is left in transfer src
// layout so the final whole-range transition sees a uniform layout.
func recordMipChain(cb *VulkanCommandBuffer, cube *VulkanImage, size, levels uint32) {
	for level := uint32(1); level < levels; level++ {
		srcWidth, srcHeight := MipExtent(size, size, level-1)
		dstWidth, dstHeight := MipExtent(size, size, level)

		// The destination level has never been written, so it comes from
		// undefined rather than general.
		cube.TransitionLayout(cb,
			vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal,
			level, 1,
			0, vk.AccessFlags(vk.AccessTransferWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit))

		blit := vk.ImageBlit{
			SrcSubresource: vk.ImageSubresourceLayers{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				MipLevel:       level - 1,
				BaseArrayLayer: 0,
				LayerCount:     6,
			},
			DstSubresource: vk.ImageSubresourceLayers{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				MipLevel:       level,
				BaseArrayLayer: 0,
				LayerCount:     6,
			},
		}
		blit.SrcOffsets[1] = vk.Offset3D{X: int32(srcWidth), Y: int32(srcHeight), Z: 1}
		blit.DstOffsets[1] = vk.Offset3D{X: int32(dstWidth), Y: int32(dstHeight), Z: 1}

		vk.CmdBlitImage(cb.Handle,
			cube.Handle, vk.ImageLayoutTransferSrcOptimal,
			cube.Handle, vk.ImageLayoutTransferDstOptimal,
			1, []vk.ImageBlit{blit},
			vk.FilterLinear)

		cube.TransitionLayout(cb,
			vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferSrcOptimal,
			level, 1,
			vk.AccessFlags(vk.AccessTransferWriteBit), vk.AccessFlags(vk.AccessTransferReadBit),
			vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit))
	}
}
