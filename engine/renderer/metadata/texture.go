package metadata

import "fmt"

const (
	/** @brief Debug name of the shared texture bound after an eviction. */
	FALLBACK_TEXTURE_NAME string = "FallbackTexture"
	/** @brief Debug name of the shared texture bound on hard load failure. */
	ERROR_TEXTURE_NAME string = "ErrorTexture"
)

// PlaceholderTextureName builds the debug name of the per-entry texture that
// is bound while the real mip data is still uploading.
func PlaceholderTextureName(key string) string {
	return fmt.Sprintf("Placeholder(%s)", key)
}

// TextureUsage is a bitmask of the ways a texture may be bound.
type TextureUsage uint32

const (
	TextureUsageSampled TextureUsage = 1 << iota
	TextureUsageRenderTarget
	TextureUsageDepthStencil
	TextureUsageUnorderedAccess
	TextureUsageCopyDest
	TextureUsageCopySource
)

type TextureDesc struct {
	Width     uint32
	Height    uint32
	MipLevels uint32
	ArraySize uint32
	Format    Format
	Usage     TextureUsage
	Name      string
}

// SupportedTextureFormats is the set of formats the texture binder accepts
// from cooked payloads. Anything else repoints the entry to the error
// texture.
var SupportedTextureFormats = map[Format]bool{
	FormatRGBA8Unorm:     true,
	FormatBGRA8Unorm:     true,
	FormatRGBA8UnormSRGB: true,
	FormatRGBA16Float:    true,
	FormatBC7Unorm:       true,
}

// MipCount returns the number of levels in the full mip chain of a texture
// with the given extents.
func MipCount(width uint32, height uint32) uint32 {
	count := uint32(1)
	for width > 1 || height > 1 {
		width >>= 1
		height >>= 1
		count++
	}
	return count
}

// CookedTexture is the loader output consumed by the texture binder: a
// describing header, the packed payload and its per-mip placement.
type CookedTexture struct {
	Desc    TextureDesc
	Payload []byte
	Layouts []SubresourceLayout
}
