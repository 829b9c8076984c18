package metadata

/** @brief An invalid 32-bit identifier. */
const InvalidID uint32 = 0xFFFFFFFF

/** @brief An invalid 8-bit identifier. */
const InvalidIDUint8 uint8 = 0xFF

/** @brief An invalid 64-bit identifier. */
const InvalidIDUint64 uint64 = 0xFFFFFFFFFFFFFFFF

// ResourceKind discriminates the GPU resource categories the state tracker
// and upload coordinator understand.
type ResourceKind uint8

const (
	ResourceKindUnknown ResourceKind = iota
	ResourceKindBuffer
	ResourceKindTexture
)

// GPUResource is the minimal surface shared by every backend resource.
// Concrete buffer/texture interfaces in the renderer package embed it.
type GPUResource interface {
	DebugName() string
	Kind() ResourceKind
}

// Format enumerates the texel/attachment formats the core understands.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatRGBA8Unorm
	FormatBGRA8Unorm
	FormatRGBA8UnormSRGB
	FormatRGBA16Float
	FormatRGBA32Float
	FormatR32Float
	FormatRG32Float
	FormatR32Uint
	FormatD32Float
	FormatD24UnormS8Uint
	FormatBC7Unorm
)

// BytesPerTexel returns the size of one texel for uncompressed formats, and
// 0 for block-compressed or unknown formats.
func (f Format) BytesPerTexel() uint32 {
	switch f {
	case FormatRGBA8Unorm, FormatBGRA8Unorm, FormatRGBA8UnormSRGB, FormatR32Float, FormatR32Uint, FormatD32Float, FormatD24UnormS8Uint:
		return 4
	case FormatRGBA16Float, FormatRG32Float:
		return 8
	case FormatRGBA32Float:
		return 16
	default:
		return 0
	}
}

// IsDepth reports whether the format is a depth/stencil format.
func (f Format) IsDepth() bool {
	return f == FormatD32Float || f == FormatD24UnormS8Uint
}
