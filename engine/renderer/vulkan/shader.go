package vulkan

import (
	"encoding/binary"
	"fmt"
	"os"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/diffuse/engine/core"
)

type VulkanShaderModule struct {
	Handle vk.ShaderModule
	Stage  vk.ShaderStageFlagBits
}

// ShaderModuleCreate reads a compiled SPIR-V binary from disk and wraps it
// in a shader module for the given stage.
func ShaderModuleCreate(context *VulkanContext, path string, stage vk.ShaderStageFlagBits) (*VulkanShaderModule, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		core.LogError("failed to read shader binary '%s': %s", path, err)
		return nil, err
	}
	if len(code) == 0 || len(code)%4 != 0 {
		err := fmt.Errorf("shader binary '%s' is not valid SPIR-V", path)
		core.LogError(err.Error())
		return nil, err
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    repackUint32(code),
	}

	var handle vk.ShaderModule
	var res vk.Result
	err = lockPool.SafeCall(ShaderManagement, func() error {
		if res = vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
			return fmt.Errorf("failed to create shader module for '%s': %s", path, VulkanResultString(res))
		}
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return &VulkanShaderModule{
		Handle: handle,
		Stage:  stage,
	}, nil
}

// StageCreateInfo produces the pipeline stage description for this module.
// Entry point is always "main", matching the glslc output.
func (sm *VulkanShaderModule) StageCreateInfo() vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  sm.Stage,
		Module: sm.Handle,
		PName:  VulkanSafeString("main"),
	}
}

func (sm *VulkanShaderModule) Destroy(context *VulkanContext) {
	if sm.Handle != vk.NullShaderModule {
		vk.DestroyShaderModule(context.Device.LogicalDevice, sm.Handle, context.Allocator)
		sm.Handle = vk.NullShaderModule
	}
}

func repackUint32(data []byte) []uint32 {
	out := make([]uint32, len(data)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return out
}
