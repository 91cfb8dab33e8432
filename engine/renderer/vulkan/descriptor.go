package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/diffuse/engine/core"
)

// Number of sampled textures per material in the scene set layout.
const MaterialSamplerCount = 5

// DescriptorPoolCounts sizes the shared descriptor pool. One scene set per
// material per swapchain image, one frame set per mesh per image, plus the
// skybox and prefilter sets.
type DescriptorPoolCounts struct {
	Samplers       uint32
	UniformBuffers uint32
	StorageImages  uint32
	MaxSets        uint32
}

// DescriptorPoolSizesFor computes the pool sizes for a scene with the
// given material and mesh counts, replicated per swapchain image. Sized
// from the sets actually allocated: per image, one scene set per material
// (1 UBO + 5 samplers each) and one skybox set (1 UBO + 1 cubemap
// sampler), plus slack for the prefilter input. Under-provisioning is a
// fatal setup failure, so every term covers its consumer with room to
// spare.
func DescriptorPoolSizesFor(imageCount, materialCount, meshCount uint32) DescriptorPoolCounts {
	return DescriptorPoolCounts{
		Samplers:       MaterialSamplerCount*materialCount*imageCount + imageCount + 2,
		UniformBuffers: (4 + meshCount + materialCount) * imageCount,
		StorageImages:  1,
		MaxSets:        (2 + meshCount + materialCount) * imageCount,
	}
}

func DescriptorPoolCreate(context *VulkanContext, counts DescriptorPoolCounts) (vk.DescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{
		{
			Type:            vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: counts.Samplers,
		},
		{
			Type:            vk.DescriptorTypeUniformBuffer,
			DescriptorCount: counts.UniformBuffers,
		},
		{
			Type:            vk.DescriptorTypeStorageImage,
			DescriptorCount: counts.StorageImages,
		},
	}

	poolCreateInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
		MaxSets:       counts.MaxSets,
	}

	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolCreateInfo, context.Allocator, &pool); res != vk.Success {
		err := fmt.Errorf("failed to create descriptor pool: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return vk.NullDescriptorPool, err
	}
	return pool, nil
}

// SceneDescriptorSetLayout is the per-material layout: frame uniforms in
// the vertex stage at binding 0 and the five material textures in the
// fragment stage at bindings 1 to 5.
func SceneDescriptorSetLayout(context *VulkanContext) (vk.DescriptorSetLayout, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, 1+MaterialSamplerCount)
	bindings[0] = vk.DescriptorSetLayoutBinding{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
	}
	for i := 1; i <= MaterialSamplerCount; i++ {
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(i),
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		}
	}
	return descriptorSetLayoutCreate(context, bindings)
}

// SkyboxDescriptorSetLayout binds the frame uniforms and the environment
// cubemap.
func SkyboxDescriptorSetLayout(context *VulkanContext) (vk.DescriptorSetLayout, error) {
	bindings := []vk.DescriptorSetLayoutBinding{
		{
			Binding:         0,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		},
		{
			Binding:         1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
	}
	return descriptorSetLayoutCreate(context, bindings)
}

// PrefilterDescriptorSetLayout binds the equirectangular source at 0 and
// the cubemap storage target at 1, both in the compute stage.
func PrefilterDescriptorSetLayout(context *VulkanContext) (vk.DescriptorSetLayout, error) {
	bindings := []vk.DescriptorSetLayoutBinding{
		{
			Binding:         0,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		},
		{
			Binding:         1,
			DescriptorType:  vk.DescriptorTypeStorageImage,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		},
	}
	return descriptorSetLayoutCreate(context, bindings)
}

func descriptorSetLayoutCreate(context *VulkanContext, bindings []vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error) {
	layoutCreateInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}

	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &layoutCreateInfo, context.Allocator, &layout); res != vk.Success {
		err := fmt.Errorf("failed to create descriptor set layout: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return vk.NullDescriptorSetLayout, err
	}
	return layout, nil
}

// DescriptorSetsAllocate allocates count sets of the same layout from pool.
func DescriptorSetsAllocate(context *VulkanContext, pool vk.DescriptorPool, layout vk.DescriptorSetLayout, count uint32) ([]vk.DescriptorSet, error) {
	layouts := make([]vk.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = layout
	}

	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: count,
		PSetLayouts:        layouts,
	}

	sets := make([]vk.DescriptorSet, count)
	if res := vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocateInfo, &sets[0]); res != vk.Success {
		err := fmt.Errorf("failed to allocate descriptor sets: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	return sets, nil
}

func WriteUniformBuffer(context *VulkanContext, set vk.DescriptorSet, binding uint32, buffer vk.Buffer, size vk.DeviceSize) {
	bufferInfo := vk.DescriptorBufferInfo{
		Buffer: buffer,
		Offset: 0,
		Range:  size,
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		PBufferInfo:     []vk.DescriptorBufferInfo{bufferInfo},
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

func WriteImageSampler(context *VulkanContext, set vk.DescriptorSet, binding uint32, view vk.ImageView, sampler vk.Sampler, layout vk.ImageLayout) {
	imageInfo := vk.DescriptorImageInfo{
		Sampler:     sampler,
		ImageView:   view,
		ImageLayout: layout,
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: 1,
		PImageInfo:      []vk.DescriptorImageInfo{imageInfo},
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

func WriteStorageImage(context *VulkanContext, set vk.DescriptorSet, binding uint32, view vk.ImageView) {
	imageInfo := vk.DescriptorImageInfo{
		ImageView:   view,
		ImageLayout: vk.ImageLayoutGeneral,
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DescriptorType:  vk.DescriptorTypeStorageImage,
		DescriptorCount: 1,
		PImageInfo:      []vk.DescriptorImageInfo{imageInfo},
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}
