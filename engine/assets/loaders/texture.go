// Package loaders turns files on disk into engine-ready asset payloads.
package loaders

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/image/draw"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

// LoadTexture decodes an image file, optionally builds its full mip chain,
// and packs every mip into one payload following the aligned placement the
// upload path expects.
func LoadTexture(path string, generateMips bool) (*metadata.CookedTexture, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("func LoadTexture - '%s': %w", path, core.ErrNotFound)
		}
		return nil, fmt.Errorf("func LoadTexture - cannot open '%s': %w", path, err)
	}
	defer file.Close()

	decoded, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("func LoadTexture - cannot decode '%s': %w", path, err)
	}
	return CookTexture(decoded, generateMips)
}

// CookTexture converts a decoded image into a packed RGBA8 payload with its
// subresource layouts.
func CookTexture(img image.Image, generateMips bool) (*metadata.CookedTexture, error) {
	bounds := img.Bounds()
	width := uint32(bounds.Dx())
	height := uint32(bounds.Dy())
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("func CookTexture - image has zero extent: %w", core.ErrValidation)
	}

	mips := uint32(1)
	if generateMips {
		mips = metadata.MipCount(width, height)
	}
	desc := metadata.TextureDesc{
		Width:     width,
		Height:    height,
		MipLevels: mips,
		ArraySize: 1,
		Format:    metadata.FormatRGBA8Unorm,
		Usage:     metadata.TextureUsageSampled | metadata.TextureUsageCopyDest,
	}
	layouts, total, err := metadata.ComputeTextureLayout(&desc)
	if err != nil {
		return nil, fmt.Errorf("func CookTexture - %s: %w", err, core.ErrValidation)
	}

	payload := make([]byte, total)
	level := toRGBA(img)
	for _, l := range layouts {
		if l.MipLevel > 0 {
			level = downscale(level)
		}
		packRows(payload, level, l)
	}

	return &metadata.CookedTexture{
		Desc:    desc,
		Payload: payload,
		Layouts: layouts,
	}, nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}

// downscale halves an image in both dimensions, clamped to 1 texel.
func downscale(src *image.RGBA) *image.RGBA {
	w := src.Bounds().Dx() / 2
	h := src.Bounds().Dy() / 2
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// packRows copies the image row by row into the payload at the layout's
// aligned row pitch. The gap between RowSize and RowPitch stays zeroed.
func packRows(payload []byte, src *image.RGBA, l metadata.SubresourceLayout) {
	for row := uint32(0); row < l.RowCount; row++ {
		dstOff := l.Offset + uint64(row)*l.RowPitch
		srcOff := int(row) * src.Stride
		copy(payload[dstOff:dstOff+l.RowSize], src.Pix[srcOff:srcOff+int(l.RowSize)])
	}
}
