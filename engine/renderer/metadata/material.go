package metadata

import "github.com/oxygen3d/oxygen/engine/math"

const DEFAULT_MATERIAL_NAME string = "default"

// TextureSlot names the sampled inputs a material can reference.
type TextureSlot uint8

const (
	TextureSlotBaseColor TextureSlot = iota
	TextureSlotNormal
	TextureSlotMetallicRoughness
	TextureSlotEmissive
	TextureSlotMax
)

// Material is the resolved shading description attached to a submesh.
type Material struct {
	ID          uint32
	Name        string
	BaseColor   math.Vec4
	Metallic    float32
	Roughness   float32
	Transparent bool
	// Resource keys of the sampled textures, resolved to bindless indices
	// by the texture binder at collection time.
	Textures map[TextureSlot]string
	// Which passes draws with this material participate in.
	PassMask PassMask
}
