package metadata

import "github.com/oxygen3d/oxygen/engine/math"

// PassMask selects which render passes a draw participates in.
type PassMask uint8

const (
	PassMaskDepth PassMask = 1 << iota
	PassMaskOpaque
	PassMaskTransparent
	PassMaskShadow
)

// RenderItemFlags carries per-item shadow behavior.
type RenderItemFlags uint8

const (
	RenderItemCastShadows RenderItemFlags = 1 << iota
	RenderItemReceiveShadows
)

// RenderItemData is one finalized draw emitted by scene collection. It is
// stable for the duration of the frame and carries everything a pass needs
// to record the draw.
type RenderItemData struct {
	WorldTransform math.Mat4
	GeometryKey    GeometryKey
	SubmeshIndex   uint32
	Material       *Material
	// Shader-visible indices resolved by the binders; InvalidID while the
	// resource is not resident.
	VertexSRV   uint32
	IndexSRV    uint32
	IndexOffset uint32
	IndexCount  uint32
	Flags       RenderItemFlags
	PassMask    PassMask
}

type FillMode uint8

const (
	FillModeSolid FillMode = iota
	FillModeWireframe
)

type CullMode uint8

const (
	CullModeBack CullMode = iota
	CullModeFront
	CullModeNone
)

type CompareOp uint8

const (
	CompareOpLessEqual CompareOp = iota
	CompareOpLess
	CompareOpGreaterEqual
	CompareOpAlways
	CompareOpNever
)

// FramebufferLayout reduces pass/framebuffer compatibility to equality on
// this tuple.
type FramebufferLayout struct {
	ColorFormats       []Format
	DepthStencilFormat Format
	SampleCount        uint32
}

// Equal reports field-wise equality.
func (l *FramebufferLayout) Equal(o *FramebufferLayout) bool {
	if l.DepthStencilFormat != o.DepthStencilFormat || l.SampleCount != o.SampleCount {
		return false
	}
	if len(l.ColorFormats) != len(o.ColorFormats) {
		return false
	}
	for i := range l.ColorFormats {
		if l.ColorFormats[i] != o.ColorFormats[i] {
			return false
		}
	}
	return true
}

// RootBindingKind distinguishes direct indices from descriptor tables in the
// shared root signature layout.
type RootBindingKind uint8

const (
	RootBindingConstant RootBindingKind = iota
	RootBindingDescriptorTable
)

// RootBinding is one slot of the root layout every pass shares, keeping the
// shader ABI stable across passes.
type RootBinding struct {
	Kind RootBindingKind
	Slot uint32
	Name string
}

type DepthStencilDesc struct {
	DepthTest  bool
	DepthWrite bool
	DepthFunc  CompareOp
}

type BlendDesc struct {
	Enable bool
}

type RasterDesc struct {
	Fill FillMode
	Cull CullMode
}

// PipelineStateDesc is the tuple whose equality controls pipeline cache
// reuse.
type PipelineStateDesc struct {
	ShaderName   string
	Raster       RasterDesc
	DepthStencil DepthStencilDesc
	Blend        BlendDesc
	Framebuffer  FramebufferLayout
	RootBindings []RootBinding
}

// Equal reports whether two descriptors would produce the same pipeline.
func (p *PipelineStateDesc) Equal(o *PipelineStateDesc) bool {
	if p.ShaderName != o.ShaderName || p.Raster != o.Raster ||
		p.DepthStencil != o.DepthStencil || p.Blend != o.Blend {
		return false
	}
	if !p.Framebuffer.Equal(&o.Framebuffer) {
		return false
	}
	if len(p.RootBindings) != len(o.RootBindings) {
		return false
	}
	for i := range p.RootBindings {
		if p.RootBindings[i] != o.RootBindings[i] {
			return false
		}
	}
	return true
}
