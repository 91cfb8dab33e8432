package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/google/uuid"

	"github.com/spaghettifunk/diffuse/engine/assets"
	"github.com/spaghettifunk/diffuse/engine/core"
)

type VulkanTexture struct {
	ID      uuid.UUID
	Image   *VulkanImage
	Sampler vk.Sampler
}

// TextureCreate uploads a decoded RGBA image into a device-local sampled
// texture and transitions it to shader read layout.
func TextureCreate(context *VulkanContext, img *assets.Image) (*VulkanTexture, error) {
	size := vk.DeviceSize(len(img.Pixels))

	staging, err := BufferCreate(context, size,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
		true)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(context)

	if err := staging.LoadData(img.Pixels); err != nil {
		return nil, err
	}

	image, err := ImageCreate(
		context,
		vk.ImageType2d,
		img.Width,
		img.Height,
		1, 1,
		vk.FormatR8g8b8a8Unorm,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)|vk.ImageUsageFlags(vk.ImageUsageSampledBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return nil, err
	}

	cb, err := AllocateAndBeginSingleUse(context, context.Device.GraphicsCommandPool)
	if err != nil {
		image.Destroy(context)
		return nil, err
	}

	image.TransitionLayout(cb,
		vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal,
		0, 1,
		0, vk.AccessFlags(vk.AccessTransferWriteBit),
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit))

	image.CopyFromBuffer(cb, staging.Handle)

	image.TransitionLayout(cb,
		vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal,
		0, 1,
		vk.AccessFlags(vk.AccessTransferWriteBit), vk.AccessFlags(vk.AccessShaderReadBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit))

	if err := cb.EndSingleUse(context, context.Device.GraphicsCommandPool, context.Device.GraphicsQueue, uint32(context.Device.GraphicsQueueIndex)); err != nil {
		image.Destroy(context)
		return nil, err
	}

	sampler, err := SamplerCreate(context, float32(1))
	if err != nil {
		image.Destroy(context)
		return nil, err
	}

	return &VulkanTexture{
		ID:      img.ID,
		Image:   image,
		Sampler: sampler,
	}, nil
}

// SamplerCreate builds a trilinear repeat sampler covering maxLod mip
// levels, with anisotropy at the device limit.
func SamplerCreate(context *VulkanContext, maxLod float32) (vk.Sampler, error) {
	samplerCreateInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.True,
		MaxAnisotropy:           context.Device.Properties.Limits.MaxSamplerAnisotropy,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		MipLodBias:              0,
		MinLod:                  0,
		MaxLod:                  maxLod,
	}

	var sampler vk.Sampler
	if res := vk.CreateSampler(context.Device.LogicalDevice, &samplerCreateInfo, context.Allocator, &sampler); res != vk.Success {
		err := fmt.Errorf("failed to create sampler: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return vk.NullSampler, err
	}
	return sampler, nil
}

func (vt *VulkanTexture) Destroy(context *VulkanContext) {
	if vt.Sampler != vk.NullSampler {
		vk.DestroySampler(context.Device.LogicalDevice, vt.Sampler, context.Allocator)
		vt.Sampler = vk.NullSampler
	}
	if vt.Image != nil {
		vt.Image.Destroy(context)
		vt.Image = nil
	}
}

// FallbackTexture is a 1x1 solid used when a material slot is unassigned.
func FallbackTexture(context *VulkanContext, r, g, b, a byte) (*VulkanTexture, error) {
	img := assets.NewSolidImage(r, g, b, a)
	tex, err := TextureCreate(context, img)
	if err != nil {
		return nil, err
	}
	tex.ID = uuid.New()
	return tex, nil
}
