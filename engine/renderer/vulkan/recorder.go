package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	amath "github.com/spaghettifunk/diffuse/engine/math"
	"github.com/spaghettifunk/diffuse/engine/scene"
)

// SkyboxCubeMesh returns the position-only unit cube the skybox pass draws
// with a single indexed draw. Faces wind counter-clockwise seen from the
// outside; the pipeline culls front faces so only the inside renders.
func SkyboxCubeMesh() ([]amath.Vec3, []uint32) {
	positions := []amath.Vec3{
		{X: -1, Y: -1, Z: -1},
		{X: 1, Y: -1, Z: -1},
		{X: 1, Y: 1, Z: -1},
		{X: -1, Y: 1, Z: -1},
		{X: -1, Y: -1, Z: 1},
		{X: 1, Y: -1, Z: 1},
		{X: 1, Y: 1, Z: 1},
		{X: -1, Y: 1, Z: 1},
	}
	indices := []uint32{
		0, 2, 1, 0, 3, 2, // -Z
		4, 5, 6, 4, 6, 7, // +Z
		0, 1, 5, 0, 5, 4, // -Y
		3, 7, 6, 3, 6, 2, // +Y
		0, 4, 7, 0, 7, 3, // -X
		1, 2, 6, 1, 6, 5, // +X
	}
	return positions, indices
}

// DrawCommand is one indexed draw, flattened out of the scene graph. The
// list is rebuilt whenever the scene changes and replayed every frame.
type DrawCommand struct {
	World         amath.Mat4
	FirstIndex    uint32
	IndexCount    uint32
	MaterialIndex int
}

// BuildDrawList traverses the scene and flattens every primitive into a
// DrawCommand with its node's world transform. Transform-only nodes
// contribute no commands. Ordering follows the traversal, so draws stay
// deterministic across frames.
func BuildDrawList(s *scene.Scene) ([]DrawCommand, error) {
	commands := make([]DrawCommand, 0, len(s.Nodes))
	err := s.Traverse(func(index int, world amath.Mat4) error {
		node := &s.Nodes[index]
		if node.MeshIndex < 0 {
			return nil
		}
		mesh := &s.Meshes[node.MeshIndex]
		for _, prim := range mesh.Primitives {
			// Primitives without an assigned material fall back to
			// material 0.
			materialIndex := prim.MaterialIndex
			if materialIndex < 0 {
				materialIndex = 0
			}
			commands = append(commands, DrawCommand{
				World:         world,
				FirstIndex:    prim.FirstIndex,
				IndexCount:    prim.IndexCount,
				MaterialIndex: materialIndex,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return commands, nil
}

type scenePushConstants struct {
	Model amath.Mat4
}

// ScenePushConstantRange describes the per-draw model matrix pushed to the
// scene vertex shader.
func ScenePushConstantRange() vk.PushConstantRange {
	return vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		Offset:     0,
		Size:       uint32(unsafe.Sizeof(scenePushConstants{})),
	}
}

// FrameDrawData carries everything RecordFrame needs for one swapchain
// image. The backend fills it per frame; the sets are the ones allocated
// for the image being rendered.
type FrameDrawData struct {
	Renderpass  *VulkanRenderpass
	Framebuffer vk.Framebuffer

	SkyboxPipeline     *VulkanPipeline
	SkyboxSet          vk.DescriptorSet
	SkyboxVertexBuffer *VulkanBuffer
	SkyboxIndexBuffer  *VulkanBuffer
	SkyboxIndexCount   uint32

	ScenePipeline *VulkanPipeline
	MaterialSets  []vk.DescriptorSet

	VertexBuffer *VulkanBuffer
	IndexBuffer  *VulkanBuffer
	DrawList     []DrawCommand

	Width  uint32
	Height uint32
}

// RecordFrame re-records a frame's command buffer from scratch: begin the
// main pass, draw the skybox behind everything, then replay the scene draw
// list with per-draw material sets and model push constants.
func RecordFrame(commandBuffer *VulkanCommandBuffer, data *FrameDrawData) error {
	if err := commandBuffer.Begin(false, false, false); err != nil {
		return err
	}

	data.Renderpass.RenderpassBegin(commandBuffer, data.Framebuffer)

	viewport := vk.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(data.Width),
		Height:   float32(data.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: data.Width, Height: data.Height},
	}
	vk.CmdSetViewport(commandBuffer.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(commandBuffer.Handle, 0, 1, []vk.Rect2D{scissor})

	// Skybox first. It writes color at the far plane and leaves depth
	// untouched, so scene geometry always wins the depth test.
	if data.SkyboxPipeline != nil {
		if err := data.SkyboxPipeline.Bind(commandBuffer, vk.PipelineBindPointGraphics); err != nil {
			return err
		}
		vk.CmdBindDescriptorSets(commandBuffer.Handle, vk.PipelineBindPointGraphics,
			data.SkyboxPipeline.PipelineLayout, 0, 1, []vk.DescriptorSet{data.SkyboxSet}, 0, nil)
		vk.CmdBindVertexBuffers(commandBuffer.Handle, 0, 1,
			[]vk.Buffer{data.SkyboxVertexBuffer.Handle}, []vk.DeviceSize{0})
		vk.CmdBindIndexBuffer(commandBuffer.Handle, data.SkyboxIndexBuffer.Handle, 0, vk.IndexTypeUint32)
		vk.CmdDrawIndexed(commandBuffer.Handle, data.SkyboxIndexCount, 1, 0, 0, 0)
	}

	if len(data.DrawList) > 0 {
		if err := data.ScenePipeline.Bind(commandBuffer, vk.PipelineBindPointGraphics); err != nil {
			return err
		}
		vk.CmdBindVertexBuffers(commandBuffer.Handle, 0, 1,
			[]vk.Buffer{data.VertexBuffer.Handle}, []vk.DeviceSize{0})
		vk.CmdBindIndexBuffer(commandBuffer.Handle, data.IndexBuffer.Handle, 0, vk.IndexTypeUint32)

		for i := range data.DrawList {
			cmd := &data.DrawList[i]

			push := scenePushConstants{Model: cmd.World}
			vk.CmdPushConstants(commandBuffer.Handle, data.ScenePipeline.PipelineLayout,
				vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0,
				uint32(unsafe.Sizeof(push)), unsafe.Pointer(&push))

			vk.CmdBindDescriptorSets(commandBuffer.Handle, vk.PipelineBindPointGraphics,
				data.ScenePipeline.PipelineLayout, 0, 1,
				[]vk.DescriptorSet{data.MaterialSets[cmd.MaterialIndex]}, 0, nil)

			vk.CmdDrawIndexed(commandBuffer.Handle, cmd.IndexCount, 1, cmd.FirstIndex, 0, 0)
		}
	}

	data.Renderpass.RenderpassEnd(commandBuffer)
	return commandBuffer.End()
}
