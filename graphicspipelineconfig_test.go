package vkg

import (
	"testing"

	"github.com/igor-barinov/vulkan-game-engine/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func TestGraphicsPipelineConfigDefaults(t *testing.T) {
	var d *Device
	g := d.CreateGraphicsPipelineConfig()

	_, err := g.VKGraphicsPipelineCreateInfo(vk.Extent2D{Width: 640, Height: 480})
	assert.Error(t, err)

	g.SetShaderStages([]vk.PipelineShaderStageCreateInfo{
		{SType: vk.StructureTypePipelineShaderStageCreateInfo, Stage: vk.ShaderStageVertexBit},
		{SType: vk.StructureTypePipelineShaderStageCreateInfo, Stage: vk.ShaderStageFragmentBit},
	})
	g.AddVertexDescriptor(MeshVertices(nil))

	configured := false
	g.Configure = func(info *vk.GraphicsPipelineCreateInfo) {
		configured = true
		info.Subpass = 0
	}

	info, err := g.VKGraphicsPipelineCreateInfo(vk.Extent2D{Width: 640, Height: 480})
	require.NoError(t, err)
	assert.True(t, configured)

	assert.Equal(t, uint32(2), info.StageCount)
	assert.Equal(t, uint32(2), info.PDynamicState.DynamicStateCount)
	assert.Equal(t, vk.Bool32(vk.True), info.PDepthStencilState.DepthTestEnable)
	assert.Equal(t, vk.CompareOpLess, info.PDepthStencilState.DepthCompareOp)
	assert.Equal(t, vk.FrontFaceCounterClockwise, info.PRasterizationState.FrontFace)
	assert.Equal(t, float32(640), info.PViewportState.PViewports[0].Width)

	vi := info.PVertexInputState
	assert.Equal(t, uint32(1), vi.VertexBindingDescriptionCount)
	assert.Equal(t, uint32(mesh.VertexSize), vi.PVertexBindingDescriptions[0].Stride)
	require.Equal(t, uint32(3), vi.VertexAttributeDescriptionCount)
	assert.Equal(t, vk.FormatR32g32b32Sfloat, vi.PVertexAttributeDescriptions[0].Format)
	assert.Equal(t, vk.FormatR32g32Sfloat, vi.PVertexAttributeDescriptions[2].Format)
	assert.Equal(t, uint32(24), vi.PVertexAttributeDescriptions[2].Offset)
}

func TestParseShaderStage(t *testing.T) {
	s, err := ParseShaderStage("vertex")
	require.NoError(t, err)
	assert.Equal(t, vk.ShaderStageVertexBit, s)

	s, err = ParseShaderStage("fragment")
	require.NoError(t, err)
	assert.Equal(t, vk.ShaderStageFragmentBit, s)

	_, err = ParseShaderStage("geometry")
	assert.Error(t, err)
}

func TestSpirvWords(t *testing.T) {
	words, err := spirvWords([]byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, []uint32{spirvMagic, 1}, words)

	_, err = spirvWords([]byte{1, 2, 3})
	assert.Error(t, err)

	_, err = spirvWords([]byte{0, 0, 0, 0})
	assert.Error(t, err)
}
