package vkg

import (
	"image"
	"image/color"
	"image/draw"
	"os"
	"time"

	// decoders registered with image.Decode
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// TextureFormat is the format every texture is uploaded in
const TextureFormat = vk.FormatR8g8b8a8Srgb

// LoadImage decodes a PNG, JPEG, BMP or TIFF file into tightly packed RGBA
func LoadImage(filename string) (*image.RGBA, error) {
	reader, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "opening texture")
	}
	defer reader.Close()

	src, format, err := image.Decode(reader)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", filename)
	}
	logger.Debugf("loaded %s texture %s, %dx%d", format, filename, src.Bounds().Dx(), src.Bounds().Dy())

	return ToRGBA(src), nil
}

// ToRGBA copies src into an RGBA image whose bounds start at the origin
func ToRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	if m, ok := src.(*image.RGBA); ok && b.Min == (image.Point{}) && m.Stride == 4*b.Dx() {
		return m
	}
	m := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(m, m.Bounds(), src, b.Min, draw.Src)
	return m
}

// WhiteTexel is the texture used when none is configured
func WhiteTexel() *image.RGBA {
	m := image.NewRGBA(image.Rect(0, 0, 1, 1))
	m.Set(0, 0, color.White)
	return m
}

// uploadTimeout bounds how long a one time upload may take before it is
// reported as failed
const uploadTimeout = 10 * time.Second

// submitOneTime records fn into cmd, submits it and blocks on a fence until
// the queue has executed it
func submitOneTime(cmd *CommandBuffer, queue *Queue, fn func()) error {
	if err := cmd.BeginOneTime(); err != nil {
		return errors.Wrap(err, "begin upload commands")
	}
	fn()
	if err := cmd.End(); err != nil {
		return errors.Wrap(err, "end upload commands")
	}

	f, err := queue.Device.CreateFence(false)
	if err != nil {
		return err
	}
	defer f.Destroy()

	if err := queue.SubmitWithFence(f, cmd); err != nil {
		return errors.Wrap(err, "submitting upload")
	}
	if err := queue.Device.WaitForFences(true, uploadTimeout, f); err != nil {
		return errors.Wrapf(err, "waiting %s for upload", uploadTimeout)
	}
	return cmd.Reset()
}

// StageTexture uploads img into a sampled image allocated from this pool
func (p *ImageResourcePool) StageTexture(srcImg image.Image, cmd *CommandBuffer, queue *Queue) (*ImageResource, error) {
	rgba := ToRGBA(srcImg)
	b := rgba.Bounds()
	if b.Empty() {
		return nil, errors.New("texture is empty")
	}

	extent := vk.Extent2D{Width: uint32(b.Dx()), Height: uint32(b.Dy())}

	img, err := p.AllocateImage(extent, TextureFormat, vk.ImageTilingOptimal, vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit)
	if err != nil {
		return nil, err
	}

	if err := img.AllocateStagingResource(); err != nil {
		img.Free()
		return nil, err
	}
	defer img.FreeStagingResource()

	if err := img.StagingResource.Upload(rgba.Pix); err != nil {
		img.Free()
		return nil, err
	}

	var recordErr error
	err = submitOneTime(cmd, queue, func() {
		if recordErr = cmd.TransitionImageLayout(img, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); recordErr != nil {
			return
		}
		if recordErr = cmd.StageImageResource(img); recordErr != nil {
			return
		}
		recordErr = cmd.TransitionImageLayout(img, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
	if err == nil {
		err = recordErr
	}
	if err != nil {
		img.Free()
		return nil, err
	}

	logger.Debugf("staged %dx%d texture", extent.Width, extent.Height)
	return img, nil
}

// Sampler is a linear, repeating texture sampler
type Sampler struct {
	Device    *Device
	VKSampler vk.Sampler
}

func (d *Device) CreateSampler() (*Sampler, error) {
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}

	var sampler vk.Sampler
	err := vk.Error(vk.CreateSampler(d.VKDevice, &info, nil, &sampler))
	if err != nil {
		return nil, errors.Wrap(err, "creating sampler")
	}
	return &Sampler{Device: d, VKSampler: sampler}, nil
}

func (s *Sampler) Destroy() {
	vk.DestroySampler(s.Device.VKDevice, s.VKSampler, nil)
}
