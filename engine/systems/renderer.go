package systems

import (
	"fmt"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
	"github.com/oxygen3d/oxygen/engine/renderer/passes"
	"github.com/oxygen3d/oxygen/engine/renderer/state"
)

type RendererSystemConfig struct {
	Width  uint32
	Height uint32
}

// RendererSystem owns the frame's attachments and pass chain and records
// one graphics submission per frame: depth prepass, opaque shading, then
// transparency, all fed from the collected draw list.
type RendererSystem struct {
	config *RendererSystemConfig
	gfx    renderer.Graphics

	colorTarget renderer.Texture
	depthTarget renderer.Texture

	tracker     *state.Tracker
	depthPass   *passes.Pass
	opaquePass  *passes.Pass
	transparent *passes.Pass

	lastFence uint64
}

func NewRendererSystem(config *RendererSystemConfig, gfx renderer.Graphics) (*RendererSystem, error) {
	if config.Width == 0 || config.Height == 0 {
		return nil, fmt.Errorf("func NewRendererSystem - render target extent must be non-zero: %w", core.ErrInvalidArgument)
	}
	rs := &RendererSystem{
		config: config,
		gfx:    gfx,
	}
	if err := rs.createTargets(); err != nil {
		return nil, err
	}
	if err := rs.createPasses(); err != nil {
		return nil, err
	}
	core.LogInfo("renderer system online on '%s' (%dx%d)", gfx.DeviceName(), config.Width, config.Height)
	return rs, nil
}

func (rs *RendererSystem) createTargets() error {
	color, err := rs.gfx.CreateTexture(&metadata.TextureDesc{
		Width:     rs.config.Width,
		Height:    rs.config.Height,
		MipLevels: 1,
		ArraySize: 1,
		Format:    metadata.FormatBGRA8Unorm,
		Usage:     metadata.TextureUsageRenderTarget | metadata.TextureUsageSampled,
		Name:      "SceneColor",
	})
	if err != nil {
		return err
	}
	depth, err := rs.gfx.CreateTexture(&metadata.TextureDesc{
		Width:     rs.config.Width,
		Height:    rs.config.Height,
		MipLevels: 1,
		ArraySize: 1,
		Format:    metadata.FormatD32Float,
		Usage:     metadata.TextureUsageDepthStencil,
		Name:      "SceneDepth",
	})
	if err != nil {
		return err
	}
	rs.colorTarget = color
	rs.depthTarget = depth

	rs.tracker = state.NewTracker()
	if err := rs.tracker.BeginTrackingResourceState(color, metadata.StateCommon, false); err != nil {
		return err
	}
	return rs.tracker.BeginTrackingResourceState(depth, metadata.StateCommon, false)
}

func (rs *RendererSystem) createPasses() error {
	depthPass, err := passes.NewDepthPrepass(rs.depthTarget)
	if err != nil {
		return err
	}
	opaquePass, err := passes.NewOpaquePass([]renderer.Texture{rs.colorTarget}, rs.depthTarget)
	if err != nil {
		return err
	}
	transparentPass, err := passes.NewTransparentPass([]renderer.Texture{rs.colorTarget}, rs.depthTarget)
	if err != nil {
		return err
	}
	rs.depthPass = depthPass
	rs.opaquePass = opaquePass
	rs.transparent = transparentPass
	return nil
}

// Resize recreates the attachments and the pass chain for the new extent.
func (rs *RendererSystem) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		// Minimized; keep the old targets until a real extent arrives.
		return nil
	}
	rs.config.Width = width
	rs.config.Height = height
	if err := rs.createTargets(); err != nil {
		return err
	}
	return rs.createPasses()
}

// ColorTarget exposes the frame's color attachment, e.g. for presentation.
func (rs *RendererSystem) ColorTarget() renderer.Texture {
	return rs.colorTarget
}

// DrawFrame records and submits one graphics submission covering every
// pass, returning the fence value that completes when the GPU is done.
func (rs *RendererSystem) DrawFrame(items []metadata.RenderItemData) (uint64, error) {
	rec, err := rs.gfx.AcquireRecorder(renderer.QueueKindGraphics)
	if err != nil {
		return 0, err
	}
	if err := rec.Begin(); err != nil {
		return 0, err
	}

	for _, pass := range []*passes.Pass{rs.depthPass, rs.opaquePass, rs.transparent} {
		if err := pass.PrepareResources(rs.tracker, rec); err != nil {
			return 0, fmt.Errorf("pass '%s' prepare: %w", pass.Name(), err)
		}
		if err := pass.Execute(rec, items); err != nil {
			return 0, err
		}
	}

	rs.tracker.OnCommandListClosed()
	if barriers := rs.tracker.TakePendingBarriers(); len(barriers) > 0 {
		rec.Barrier(barriers)
	}
	if err := rec.End(); err != nil {
		return 0, err
	}
	fence, err := rs.gfx.Queue(renderer.QueueKindGraphics).Submit(rec)
	if err != nil {
		return 0, err
	}
	rs.tracker.OnCommandListSubmitted()
	rs.lastFence = fence
	return fence, nil
}

// LastFenceValue returns the fence of the most recent DrawFrame.
func (rs *RendererSystem) LastFenceValue() uint64 {
	return rs.lastFence
}

func (rs *RendererSystem) Shutdown() error {
	return rs.gfx.Queue(renderer.QueueKindGraphics).WaitIdle()
}
