package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTextureLayoutSingleMip(t *testing.T) {
	desc := &TextureDesc{Width: 16, Height: 16, MipLevels: 1, Format: FormatRGBA8Unorm}

	layouts, total, err := ComputeTextureLayout(desc)
	require.NoError(t, err)
	require.Len(t, layouts, 1)

	l := layouts[0]
	assert.Equal(t, uint64(0), l.Offset)
	assert.Equal(t, uint64(64), l.RowSize)
	// 64-byte rows are padded out to the pitch alignment.
	assert.Equal(t, RowPitchAlignment, l.RowPitch)
	assert.Equal(t, uint32(16), l.RowCount)

	// 15 padded rows plus one tight row, rounded up to the placement unit.
	assert.Equal(t, uint64(15*256+64), l.TotalSize())
	assert.Equal(t, uint64(4096), total)
}

func TestComputeTextureLayoutMipChain(t *testing.T) {
	desc := &TextureDesc{Width: 8, Height: 4, MipLevels: 4, Format: FormatRGBA8Unorm}

	layouts, total, err := ComputeTextureLayout(desc)
	require.NoError(t, err)
	require.Len(t, layouts, 4)

	// Extents halve per mip and never reach zero.
	assert.Equal(t, uint64(32), layouts[0].RowSize)
	assert.Equal(t, uint32(4), layouts[0].RowCount)
	assert.Equal(t, uint64(16), layouts[1].RowSize)
	assert.Equal(t, uint32(2), layouts[1].RowCount)
	assert.Equal(t, uint64(8), layouts[2].RowSize)
	assert.Equal(t, uint32(1), layouts[2].RowCount)
	assert.Equal(t, uint64(4), layouts[3].RowSize)
	assert.Equal(t, uint32(1), layouts[3].RowCount)

	for _, l := range layouts {
		assert.Zero(t, l.Offset%SubresourcePlacementAlignment)
		assert.Zero(t, l.RowPitch%RowPitchAlignment)
	}
	// Each mip starts on its own placement slot.
	assert.Equal(t, uint64(1024), layouts[1].Offset)
	assert.Equal(t, uint64(1536), layouts[2].Offset)
	assert.Equal(t, uint64(2048), layouts[3].Offset)
	assert.Equal(t, uint64(2560), total)

	require.NoError(t, ValidateTextureLayout(desc, layouts, total))
}

func TestComputeTextureLayoutRejectsUnknownFormat(t *testing.T) {
	desc := &TextureDesc{Width: 4, Height: 4, MipLevels: 1, Format: Format(250)}
	_, _, err := ComputeTextureLayout(desc)
	assert.Error(t, err)
}

func TestValidateTextureLayoutCatchesViolations(t *testing.T) {
	desc := &TextureDesc{Width: 16, Height: 16, MipLevels: 1, Format: FormatRGBA8Unorm}
	layouts, total, err := ComputeTextureLayout(desc)
	require.NoError(t, err)

	assert.Error(t, ValidateTextureLayout(desc, nil, total))

	misaligned := append([]SubresourceLayout(nil), layouts...)
	misaligned[0].Offset = 100
	assert.Error(t, ValidateTextureLayout(desc, misaligned, total))

	badPitch := append([]SubresourceLayout(nil), layouts...)
	badPitch[0].RowPitch = 100
	assert.Error(t, ValidateTextureLayout(desc, badPitch, total))

	shortRow := append([]SubresourceLayout(nil), layouts...)
	shortRow[0].RowSize = 8
	assert.Error(t, ValidateTextureLayout(desc, shortRow, total))

	// Payload too small to hold the described rows.
	assert.Error(t, ValidateTextureLayout(desc, layouts, 100))
}

func TestMipCount(t *testing.T) {
	assert.Equal(t, uint32(1), MipCount(1, 1))
	assert.Equal(t, uint32(5), MipCount(16, 16))
	assert.Equal(t, uint32(3), MipCount(1, 4))
	assert.Equal(t, uint32(11), MipCount(1024, 512))
}
