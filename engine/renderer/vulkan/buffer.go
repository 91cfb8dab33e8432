package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/diffuse/engine/core"
)

type VulkanBuffer struct {
	Handle    vk.Buffer
	Memory    vk.DeviceMemory
	TotalSize vk.DeviceSize
	Usage     vk.BufferUsageFlags
	// Mapped is non-nil for host-visible buffers mapped at creation.
	Mapped unsafe.Pointer
}

func BufferCreate(context *VulkanContext, size vk.DeviceSize, usage vk.BufferUsageFlags, memoryFlags vk.MemoryPropertyFlags, mapAtCreation bool) (*VulkanBuffer, error) {
	buffer := &VulkanBuffer{
		TotalSize: size,
		Usage:     usage,
	}

	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}

	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferCreateInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("failed to create buffer: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	buffer.Handle = handle

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, buffer.Handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(memoryFlags))
	if memoryType == -1 {
		err := fmt.Errorf("required memory type not found, buffer not valid")
		core.LogError(err.Error())
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		err := fmt.Errorf("failed to allocate buffer memory: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	buffer.Memory = memory

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, buffer.Handle, buffer.Memory, 0); res != vk.Success {
		err := fmt.Errorf("failed to bind buffer memory: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	if mapAtCreation {
		var mapped unsafe.Pointer
		if res := vk.MapMemory(context.Device.LogicalDevice, buffer.Memory, 0, size, 0, &mapped); res != vk.Success {
			err := fmt.Errorf("failed to map buffer memory: %s", VulkanResultString(res))
			core.LogError(err.Error())
			return nil, err
		}
		buffer.Mapped = mapped
	}

	return buffer, nil
}

// LoadData copies data into the mapped region of a host-visible buffer.
func (vb *VulkanBuffer) LoadData(data []byte) error {
	if vb.Mapped == nil {
		return fmt.Errorf("buffer is not mapped")
	}
	vk.Memcopy(vb.Mapped, data)
	return nil
}

// CopyTo records a full copy of this buffer into dst. Both buffers must
// carry the matching transfer usage bits.
func (vb *VulkanBuffer) CopyTo(commandBuffer *VulkanCommandBuffer, dst *VulkanBuffer, size vk.DeviceSize) {
	region := vk.BufferCopy{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      size,
	}
	vk.CmdCopyBuffer(commandBuffer.Handle, vb.Handle, dst.Handle, 1, []vk.BufferCopy{region})
}

func (vb *VulkanBuffer) Destroy(context *VulkanContext) {
	if vb.Mapped != nil {
		vk.UnmapMemory(context.Device.LogicalDevice, vb.Memory)
		vb.Mapped = nil
	}
	if vb.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, vb.Memory, context.Allocator)
		vb.Memory = vk.NullDeviceMemory
	}
	if vb.Handle != vk.NullBuffer {
		vk.DestroyBuffer(context.Device.LogicalDevice, vb.Handle, context.Allocator)
		vb.Handle = vk.NullBuffer
	}
	vb.TotalSize = 0
}

// UploadDeviceLocal creates a device-local buffer and fills it through a
// staging buffer on the graphics queue.
func UploadDeviceLocal(context *VulkanContext, data []byte, usage vk.BufferUsageFlags) (*VulkanBuffer, error) {
	size := vk.DeviceSize(len(data))

	staging, err := BufferCreate(context, size,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
		true)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(context)

	if err := staging.LoadData(data); err != nil {
		return nil, err
	}

	deviceLocal, err := BufferCreate(context, size,
		usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		false)
	if err != nil {
		return nil, err
	}

	cb, err := AllocateAndBeginSingleUse(context, context.Device.GraphicsCommandPool)
	if err != nil {
		deviceLocal.Destroy(context)
		return nil, err
	}
	staging.CopyTo(cb, deviceLocal, size)
	if err := cb.EndSingleUse(context, context.Device.GraphicsCommandPool, context.Device.GraphicsQueue, uint32(context.Device.GraphicsQueueIndex)); err != nil {
		deviceLocal.Destroy(context)
		return nil, err
	}

	return deviceLocal, nil
}
