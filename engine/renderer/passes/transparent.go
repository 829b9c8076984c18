package passes

import (
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

// NewTransparentPass builds the sorted-blend pass: alpha blending on, depth
// tested against the opaque results but never written, so transparent
// surfaces do not occlude each other.
func NewTransparentPass(colorTargets []renderer.Texture, depthTarget renderer.Texture) (*Pass, error) {
	return newPass(PassConfig{
		Name:         "TransparentPass",
		ShaderName:   "forward_transparent",
		Mask:         metadata.PassMaskTransparent,
		ColorTargets: colorTargets,
		DepthTarget:  depthTarget,
		Raster: metadata.RasterDesc{
			Fill: metadata.FillModeSolid,
			Cull: metadata.CullModeNone,
		},
		DepthStencil: metadata.DepthStencilDesc{
			DepthTest:  true,
			DepthWrite: false,
			DepthFunc:  metadata.CompareOpLessEqual,
		},
		Blend:         metadata.BlendDesc{Enable: true},
		RootBindings:  defaultRootBindings(),
		DepthReadOnly: true,
		requireColor:  true,
	})
}
