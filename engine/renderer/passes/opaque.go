package passes

import (
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

// NewOpaquePass builds the main shading pass: color targets plus a read of
// the depth buffer primed by the prepass. Depth equality against the
// prepass results means no depth writes are needed.
func NewOpaquePass(colorTargets []renderer.Texture, depthTarget renderer.Texture) (*Pass, error) {
	return newPass(PassConfig{
		Name:         "OpaquePass",
		ShaderName:   "forward_opaque",
		Mask:         metadata.PassMaskOpaque,
		ColorTargets: colorTargets,
		DepthTarget:  depthTarget,
		Raster: metadata.RasterDesc{
			Fill: metadata.FillModeSolid,
			Cull: metadata.CullModeBack,
		},
		DepthStencil: metadata.DepthStencilDesc{
			DepthTest:  true,
			DepthWrite: false,
			DepthFunc:  metadata.CompareOpLessEqual,
		},
		RootBindings:  defaultRootBindings(),
		ClearColor:    [4]float32{0, 0, 0, 1},
		ClearOnBegin:  true,
		DepthReadOnly: true,
		requireColor:  true,
	})
}
