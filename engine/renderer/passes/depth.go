package passes

import (
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

// NewDepthPrepass builds the depth-only pass that primes the depth buffer
// before shading. No color targets; depth test and write enabled.
func NewDepthPrepass(depthTarget renderer.Texture) (*Pass, error) {
	return newPass(PassConfig{
		Name:        "DepthPrepass",
		ShaderName:  "depth_only",
		Mask:        metadata.PassMaskDepth,
		DepthTarget: depthTarget,
		Raster: metadata.RasterDesc{
			Fill: metadata.FillModeSolid,
			Cull: metadata.CullModeBack,
		},
		DepthStencil: metadata.DepthStencilDesc{
			DepthTest:  true,
			DepthWrite: true,
			DepthFunc:  metadata.CompareOpLess,
		},
		RootBindings: defaultRootBindings(),
		ClearDepth:   1.0,
		ClearOnBegin: true,
		requireDepth: true,
	})
}
