package vkg

import (
	"os"
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type ShaderModule struct {
	Device         *Device
	Description    string
	VKShaderModule vk.ShaderModule
}

var shaderStages = map[string]vk.ShaderStageFlagBits{
	"vertex":   vk.ShaderStageVertexBit,
	"fragment": vk.ShaderStageFragmentBit,
}

// ParseShaderStage converts a configured stage name
func ParseShaderStage(name string) (vk.ShaderStageFlagBits, error) {
	if s, ok := shaderStages[name]; ok {
		return s, nil
	}
	return 0, errors.Errorf("unknown shader stage '%s'", name)
}

// LoadShaderModuleFromFile loads compiled SPIR-V
func (d *Device) LoadShaderModuleFromFile(file string) (*ShaderModule, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "reading shader")
	}
	code, err := spirvWords(data)
	if err != nil {
		return nil, errors.Wrap(err, file)
	}

	var module vk.ShaderModule
	err = vk.Error(vk.CreateShaderModule(d.VKDevice, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(data)),
		PCode:    code,
	}, nil, &module))

	if err != nil {
		return nil, errors.Wrapf(err, "creating shader module %s", file)
	}

	var ret ShaderModule
	ret.VKShaderModule = module
	ret.Device = d
	ret.Description = file
	return &ret, nil
}

func (s *ShaderModule) VKPipelineShaderStageCreateInfo(stage vk.ShaderStageFlagBits, entryPoint string) vk.PipelineShaderStageCreateInfo {
	var shaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{}
	shaderStageCreateInfo.SType = vk.StructureTypePipelineShaderStageCreateInfo
	shaderStageCreateInfo.Stage = stage
	shaderStageCreateInfo.Module = s.VKShaderModule
	shaderStageCreateInfo.PName = safeString(entryPoint)
	return shaderStageCreateInfo
}

func (s *ShaderModule) Destroy() {
	vk.DestroyShaderModule(s.Device.VKDevice, s.VKShaderModule, nil)
}

const spirvMagic = 0x07230203

// spirvWords reinterprets SPIR-V bytes as the words Vulkan expects
func spirvWords(data []byte) ([]uint32, error) {
	if len(data) < 4 || len(data)%4 != 0 {
		return nil, errors.Errorf("%d bytes is not a whole number of SPIR-V words", len(data))
	}
	words := unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
	if words[0] != spirvMagic {
		return nil, errors.Errorf("bad SPIR-V magic %#x", words[0])
	}
	return words, nil
}
