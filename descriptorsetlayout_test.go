package vkg

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

type layoutRecorder struct {
	mu        sync.Mutex
	created   int
	destroyed int
	fail      bool
}

func (r *layoutRecorder) cache() *DescriptorLayoutCache {
	return newDescriptorLayoutCache(
		func(bindings []vk.DescriptorSetLayoutBinding) (*DescriptorSetLayout, error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.fail {
				return nil, errors.New("out of memory")
			}
			r.created++
			return &DescriptorSetLayout{VKDescriptorSetLayoutBindings: bindings}, nil
		},
		func(*DescriptorSetLayout) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.destroyed++
		},
	)
}

func TestDescriptorLayoutCacheGet(t *testing.T) {
	var rec layoutRecorder
	c := rec.cache()

	first, err := c.Get(SceneLayoutKey, SceneBindings())
	require.NoError(t, err)
	again, err := c.Get(SceneLayoutKey, nil)
	require.NoError(t, err)

	assert.Same(t, first, again)
	assert.Len(t, first.VKDescriptorSetLayoutBindings, 2)
	assert.Equal(t, 1, rec.created)

	other, err := c.Get("ubo-only", []vk.DescriptorSetLayoutBinding{UniformBufferBinding(0, vk.ShaderStageVertexBit)})
	require.NoError(t, err)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, c.Len())
}

func TestDescriptorLayoutCacheConcurrent(t *testing.T) {
	var rec layoutRecorder
	c := rec.cache()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(SceneLayoutKey, SceneBindings())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, rec.created)
}

func TestDescriptorLayoutCacheDestroy(t *testing.T) {
	var rec layoutRecorder
	c := rec.cache()

	_, err := c.Get("a", SceneBindings())
	require.NoError(t, err)
	_, err = c.Get("b", SceneBindings())
	require.NoError(t, err)

	c.Destroy()
	assert.Equal(t, 2, rec.destroyed)
	assert.Equal(t, 0, c.Len())

	_, err = c.Get("a", SceneBindings())
	assert.Error(t, err)

	c.Destroy()
	assert.Equal(t, 2, rec.destroyed)
}

func TestDescriptorLayoutCacheCreateError(t *testing.T) {
	rec := layoutRecorder{fail: true}
	c := rec.cache()

	_, err := c.Get(SceneLayoutKey, SceneBindings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")
	assert.Equal(t, 0, c.Len())
}

func TestSceneBindings(t *testing.T) {
	b := SceneBindings()
	require.Len(t, b, 2)
	assert.Equal(t, vk.DescriptorTypeUniformBuffer, b[0].DescriptorType)
	assert.Equal(t, vk.ShaderStageFlags(vk.ShaderStageVertexBit), b[0].StageFlags)
	assert.Equal(t, uint32(1), b[1].Binding)
	assert.Equal(t, vk.DescriptorTypeCombinedImageSampler, b[1].DescriptorType)
	assert.Equal(t, vk.ShaderStageFlags(vk.ShaderStageFragmentBit), b[1].StageFlags)
}
