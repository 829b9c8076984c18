package metadata

import "fmt"

const (
	// Texture rows are placed in staging memory at this pitch alignment.
	RowPitchAlignment uint64 = 256
	// Each subresource (mip) begins at this placement alignment.
	SubresourcePlacementAlignment uint64 = 512
)

// SubresourceLayout describes where one mip level of a texture payload sits
// inside a packed upload.
type SubresourceLayout struct {
	MipLevel uint32
	// Byte offset of the mip inside the payload/staging range.
	Offset uint64
	// Aligned distance between rows, in bytes.
	RowPitch uint64
	// Number of rows in this mip.
	RowCount uint32
	// Unpadded bytes per row.
	RowSize uint64
}

// TotalSize returns the end offset of the layout's data.
func (l SubresourceLayout) TotalSize() uint64 {
	if l.RowCount == 0 {
		return l.Offset
	}
	return l.Offset + uint64(l.RowCount-1)*l.RowPitch + l.RowSize
}

// ComputeTextureLayout produces the packed, aligned placement for every mip
// of the described texture, and the total staging size required.
func ComputeTextureLayout(desc *TextureDesc) ([]SubresourceLayout, uint64, error) {
	texel := desc.Format.BytesPerTexel()
	if texel == 0 {
		return nil, 0, fmt.Errorf("cannot compute layout for format %d", desc.Format)
	}
	mips := desc.MipLevels
	if mips == 0 {
		mips = 1
	}
	layouts := make([]SubresourceLayout, 0, mips)
	offset := uint64(0)
	width, height := desc.Width, desc.Height
	for mip := uint32(0); mip < mips; mip++ {
		if width == 0 {
			width = 1
		}
		if height == 0 {
			height = 1
		}
		offset = alignUp(offset, SubresourcePlacementAlignment)
		rowSize := uint64(width) * uint64(texel)
		layout := SubresourceLayout{
			MipLevel: mip,
			Offset:   offset,
			RowPitch: alignUp(rowSize, RowPitchAlignment),
			RowCount: height,
			RowSize:  rowSize,
		}
		layouts = append(layouts, layout)
		offset = layout.TotalSize()
		width >>= 1
		height >>= 1
	}
	return layouts, alignUp(offset, SubresourcePlacementAlignment), nil
}

// ValidateTextureLayout checks that a cooked payload obeys the packing
// policy: aligned row pitches, aligned mip placement, rows that cover the
// described extents, and a payload large enough to hold the last mip.
func ValidateTextureLayout(desc *TextureDesc, layouts []SubresourceLayout, payloadSize uint64) error {
	if len(layouts) == 0 {
		return fmt.Errorf("payload has no subresource layouts")
	}
	texel := desc.Format.BytesPerTexel()
	width, height := desc.Width, desc.Height
	for _, l := range layouts {
		if l.Offset%SubresourcePlacementAlignment != 0 {
			return fmt.Errorf("mip %d offset %d is not %d-byte aligned", l.MipLevel, l.Offset, SubresourcePlacementAlignment)
		}
		if l.RowPitch%RowPitchAlignment != 0 {
			return fmt.Errorf("mip %d row pitch %d is not %d-byte aligned", l.MipLevel, l.RowPitch, RowPitchAlignment)
		}
		if width == 0 {
			width = 1
		}
		if height == 0 {
			height = 1
		}
		if texel != 0 && l.RowSize < uint64(width)*uint64(texel) {
			return fmt.Errorf("mip %d row size %d too small for width %d", l.MipLevel, l.RowSize, width)
		}
		if l.TotalSize() > payloadSize {
			return fmt.Errorf("mip %d extends past payload end (%d > %d)", l.MipLevel, l.TotalSize(), payloadSize)
		}
		width >>= 1
		height >>= 1
	}
	return nil
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

type UploadKind uint8

const (
	UploadKindBuffer UploadKind = iota
	UploadKindTexture
)

// BufferUploadDesc targets a byte range of a destination buffer.
type BufferUploadDesc struct {
	Dst       GPUResource
	DstOffset uint64
	Size      uint64
}

// TextureUploadDesc targets a texture with a packed multi-mip payload.
type TextureUploadDesc struct {
	Dst     GPUResource
	Layouts []SubresourceLayout
}

// UploadRequest is one unit of work for the upload coordinator. Data is
// copied into staging memory at submit time; the caller may reuse the slice
// after Submit returns.
type UploadRequest struct {
	Kind    UploadKind
	Buffer  BufferUploadDesc
	Texture TextureUploadDesc
	Data    []byte
	Name    string
}
