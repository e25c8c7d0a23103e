package vkg

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type PipelineCache struct {
	Device          *Device
	VKPipelineCache vk.PipelineCache
}

func (d *Device) CreatePipelineCache() (*PipelineCache, error) {
	var pipelineCacheCreate = vk.PipelineCacheCreateInfo{}
	pipelineCacheCreate.SType = vk.StructureTypePipelineCacheCreateInfo

	var pipelineCache vk.PipelineCache

	err := vk.Error(vk.CreatePipelineCache(d.VKDevice, &pipelineCacheCreate, nil, &pipelineCache))
	if err != nil {
		return nil, errors.Wrap(err, "creating pipeline cache")
	}

	var ret PipelineCache
	ret.Device = d
	ret.VKPipelineCache = pipelineCache
	return &ret, nil
}

func (c *PipelineCache) Destroy() {
	vk.DestroyPipelineCache(c.Device.VKDevice, c.VKPipelineCache, nil)
}

// GraphicsPipeline is a pipeline built from a GraphicsPipelineConfig for one render pass
type GraphicsPipeline struct {
	Device     *Device
	VKPipeline vk.Pipeline
	Layout     *PipelineLayout
}

func (p *GraphicsPipeline) Destroy() {
	vk.DestroyPipeline(p.Device.VKDevice, p.VKPipeline, nil)
}

// CreateGraphicsPipelines builds one pipeline per config in a single call,
// each targeting subpass 0 of renderPass
func (d *Device) CreateGraphicsPipelines(pc *PipelineCache, renderPass vk.RenderPass, extent vk.Extent2D, configs ...*GraphicsPipelineConfig) ([]*GraphicsPipeline, error) {
	if len(configs) == 0 {
		return nil, nil
	}

	infos := make([]vk.GraphicsPipelineCreateInfo, len(configs))
	for i, config := range configs {
		info, err := config.VKGraphicsPipelineCreateInfo(extent)
		if err != nil {
			return nil, errors.Wrapf(err, "graphics pipeline config %d", i)
		}
		info.RenderPass = renderPass
		infos[i] = info
	}

	var cache vk.PipelineCache
	if pc != nil {
		cache = pc.VKPipelineCache
	}

	pipelines := make([]vk.Pipeline, len(infos))
	err := vk.Error(vk.CreateGraphicsPipelines(d.VKDevice, cache, uint32(len(infos)), infos, nil, pipelines))
	if err != nil {
		return nil, errors.Wrap(err, "creating graphics pipelines")
	}

	ret := make([]*GraphicsPipeline, len(pipelines))
	for i := range pipelines {
		ret[i] = &GraphicsPipeline{Device: d, VKPipeline: pipelines[i], Layout: configs[i].PipelineLayout}
	}
	return ret, nil
}

// CreateGraphicsPipeline builds a single pipeline
func (d *Device) CreateGraphicsPipeline(pc *PipelineCache, renderPass vk.RenderPass, extent vk.Extent2D, config *GraphicsPipelineConfig) (*GraphicsPipeline, error) {
	ret, err := d.CreateGraphicsPipelines(pc, renderPass, extent, config)
	if err != nil {
		return nil, err
	}
	return ret[0], nil
}
