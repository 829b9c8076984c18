// Package passes contains the render passes recording the frame's draws:
// depth prepass, opaque shading and transparent shading. A pass validates
// its configuration up front, transitions its attachments through the
// per-list state tracker and draws the items selected by its pass mask.
package passes

import (
	"fmt"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
	"github.com/oxygen3d/oxygen/engine/renderer/state"
)

// Root constant slots shared by every pass, keeping the shader ABI stable.
const (
	RootSlotVertexBuffer uint32 = 0
	RootSlotIndexBuffer  uint32 = 1
)

// PassConfig fully describes one pass: attachments, fixed-function state
// and which items it draws.
type PassConfig struct {
	Name         string
	ShaderName   string
	Mask         metadata.PassMask
	ColorTargets []renderer.Texture
	DepthTarget  renderer.Texture

	Raster       metadata.RasterDesc
	DepthStencil metadata.DepthStencilDesc
	Blend        metadata.BlendDesc
	RootBindings []metadata.RootBinding

	ClearColor   [4]float32
	ClearDepth   float32
	ClearOnBegin bool
	// Depth is sampled, not written; the attachment transitions to depth
	// read instead of depth write.
	DepthReadOnly bool

	requireColor bool
	requireDepth bool
}

// Pass is one configured render pass. Execute rebuilds the cached pipeline
// descriptor only when the config-derived inputs changed.
type Pass struct {
	config PassConfig

	pso      metadata.PipelineStateDesc
	psoValid bool

	drawsRecorded uint64
}

func newPass(config PassConfig) (*Pass, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("pass needs a name: %w", core.ErrValidation)
	}
	if config.Mask == 0 {
		return nil, fmt.Errorf("pass '%s' has an empty pass mask: %w", config.Name, core.ErrValidation)
	}
	if config.requireColor && len(config.ColorTargets) == 0 {
		return nil, fmt.Errorf("pass '%s' needs at least one color target: %w", config.Name, core.ErrValidation)
	}
	if config.requireDepth && config.DepthTarget == nil {
		return nil, fmt.Errorf("pass '%s' needs a depth target: %w", config.Name, core.ErrValidation)
	}
	for i, t := range config.ColorTargets {
		if t == nil {
			return nil, fmt.Errorf("pass '%s' color target %d is nil: %w", config.Name, i, core.ErrValidation)
		}
	}
	if config.DepthTarget != nil && !config.DepthTarget.Desc().Format.IsDepth() {
		return nil, fmt.Errorf("pass '%s' depth target '%s' has a color format: %w", config.Name, config.DepthTarget.DebugName(), core.ErrValidation)
	}
	return &Pass{config: config}, nil
}

func (p *Pass) Name() string {
	return p.config.Name
}

func (p *Pass) Mask() metadata.PassMask {
	return p.config.Mask
}

// PrepareResources transitions the attachments into their target states and
// flushes the accumulated barriers into the recorder.
func (p *Pass) PrepareResources(tracker *state.Tracker, rec renderer.CommandRecorder) error {
	for _, t := range p.config.ColorTargets {
		if err := tracker.RequireResourceState(t, metadata.StateRenderTarget); err != nil {
			return err
		}
	}
	if p.config.DepthTarget != nil {
		target := metadata.StateDepthWrite
		if p.config.DepthReadOnly {
			target = metadata.StateDepthRead
		}
		if err := tracker.RequireResourceState(p.config.DepthTarget, target); err != nil {
			return err
		}
	}
	if barriers := tracker.TakePendingBarriers(); len(barriers) > 0 {
		rec.Barrier(barriers)
	}
	return nil
}

func (p *Pass) framebufferLayout() metadata.FramebufferLayout {
	layout := metadata.FramebufferLayout{SampleCount: 1}
	for _, t := range p.config.ColorTargets {
		layout.ColorFormats = append(layout.ColorFormats, t.Desc().Format)
	}
	if p.config.DepthTarget != nil {
		layout.DepthStencilFormat = p.config.DepthTarget.Desc().Format
	}
	return layout
}

func (p *Pass) pipelineDesc() metadata.PipelineStateDesc {
	return metadata.PipelineStateDesc{
		ShaderName:   p.config.ShaderName,
		Raster:       p.config.Raster,
		DepthStencil: p.config.DepthStencil,
		Blend:        p.config.Blend,
		Framebuffer:  p.framebufferLayout(),
		RootBindings: p.config.RootBindings,
	}
}

// Execute binds targets and pipeline state and records the draws whose pass
// mask intersects this pass. Items whose geometry is not resident yet carry
// sentinel SRV indices and are skipped.
func (p *Pass) Execute(rec renderer.CommandRecorder, items []metadata.RenderItemData) error {
	desc := p.pipelineDesc()
	if !p.psoValid || !desc.Equal(&p.pso) {
		p.pso = desc
		p.psoValid = true
	}
	if err := rec.SetPipelineState(&p.pso); err != nil {
		return fmt.Errorf("pass '%s': %w", p.config.Name, err)
	}

	rec.SetRenderTargets(p.config.ColorTargets, p.config.DepthTarget)
	if p.config.ClearOnBegin {
		for _, t := range p.config.ColorTargets {
			rec.ClearRenderTarget(t, p.config.ClearColor)
		}
		if p.config.DepthTarget != nil && !p.config.DepthReadOnly {
			rec.ClearDepthStencil(p.config.DepthTarget, p.config.ClearDepth, 0)
		}
	}

	for i := range items {
		item := &items[i]
		if item.PassMask&p.config.Mask == 0 {
			continue
		}
		if item.VertexSRV == metadata.InvalidID || item.IndexSRV == metadata.InvalidID {
			continue
		}
		rec.SetRootConstant(RootSlotVertexBuffer, item.VertexSRV)
		rec.SetRootConstant(RootSlotIndexBuffer, item.IndexSRV)
		rec.DrawIndexed(item.IndexCount, 1, item.IndexOffset, 0, 0)
		p.drawsRecorded++
	}
	return nil
}

// DrawsRecorded returns the total number of draws this pass has issued.
func (p *Pass) DrawsRecorded() uint64 {
	return p.drawsRecorded
}

func defaultRootBindings() []metadata.RootBinding {
	return []metadata.RootBinding{
		{Kind: metadata.RootBindingConstant, Slot: RootSlotVertexBuffer, Name: "vertex_buffer_index"},
		{Kind: metadata.RootBindingConstant, Slot: RootSlotIndexBuffer, Name: "index_buffer_index"},
	}
}
