package vkg

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func checker() *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	m.Set(0, 0, color.NRGBA{R: 255, A: 255})
	m.Set(1, 0, color.NRGBA{G: 255, A: 255})
	m.Set(0, 1, color.NRGBA{B: 255, A: 255})
	m.Set(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	return m
}

func writeImage(t *testing.T, name string, encode func(f *os.File) error) string {
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, encode(f))
	require.NoError(t, f.Close())
	return path
}

func TestLoadImage(t *testing.T) {
	src := checker()
	for name, encode := range map[string]func(f *os.File) error{
		"checker.png": func(f *os.File) error { return png.Encode(f, src) },
		"checker.bmp": func(f *os.File) error { return bmp.Encode(f, src) },
	} {
		t.Run(name, func(t *testing.T) {
			img, err := LoadImage(writeImage(t, name, encode))
			require.NoError(t, err)

			assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())
			assert.Len(t, img.Pix, 16)
			assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(0, 0))
			assert.Equal(t, color.RGBA{B: 255, A: 255}, img.RGBAAt(0, 1))
		})
	}
}

func TestLoadImageErrors(t *testing.T) {
	_, err := LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "junk.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))
	_, err = LoadImage(path)
	assert.Error(t, err)
}

func TestToRGBAMovesOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 8, 7))
	src.Set(5, 5, color.RGBA{R: 10, A: 255})

	m := ToRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 3, 2), m.Bounds())
	assert.Equal(t, color.RGBA{R: 10, A: 255}, m.RGBAAt(0, 0))

	packed := image.NewRGBA(image.Rect(0, 0, 4, 4))
	assert.Same(t, packed, ToRGBA(packed))
}

func TestWhiteTexel(t *testing.T) {
	m := WhiteTexel()
	assert.Equal(t, []byte{255, 255, 255, 255}, m.Pix)
}

func TestIndexSliceBytes(t *testing.T) {
	b := IndexSliceUint32{1, 0x01020304}.Bytes()
	require.Len(t, b, 8)
	assert.Equal(t, IndexSliceUint32{}.Bytes(), []byte{})
	assert.Len(t, IndexSliceUint16{1, 2, 3}.Bytes(), 6)
}

func TestUsageToString(t *testing.T) {
	assert.Equal(t, "none", usageToString(0))
	assert.Equal(t, "index|vertex", usageToString(0x40|0x80))
}
