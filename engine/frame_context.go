package engine

import (
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
	"github.com/oxygen3d/oxygen/engine/scene"
	"github.com/oxygen3d/oxygen/engine/systems"
)

// FrameContext is the per-frame state handed to every module. It is built
// fresh each frame and must not be retained past FrameEnd.
type FrameContext struct {
	// Monotonic frame counter, starting at 1.
	FrameIndex uint64
	// Slot cycles through the frames-in-flight ring and selects which
	// per-slot resources (staging, atlases) this frame may reuse.
	Slot      uint8
	DeltaTime float64

	engine *Engine
	items  []metadata.RenderItemData
}

// RenderItems returns the draw list collected this frame. Empty before the
// SceneCollect phase has run.
func (fc *FrameContext) RenderItems() []metadata.RenderItemData {
	return fc.items
}

// SetRenderItems replaces the frame's draw list. Intended for modules that
// collect or filter draws during SceneCollect.
func (fc *FrameContext) SetRenderItems(items []metadata.RenderItemData) {
	fc.items = items
}

func (fc *FrameContext) Scene() *scene.Scene {
	return fc.engine.scene
}

func (fc *FrameContext) Systems() *systems.SystemManager {
	return fc.engine.systemManager
}

func (fc *FrameContext) Renderer() *systems.RendererSystem {
	return fc.engine.rendererSystem
}

// Marshal queues fn to run on the engine loop goroutine at the next
// marshalling point. Safe to call from any goroutine, including job system
// workers.
func (fc *FrameContext) Marshal(fn func()) {
	fc.engine.Marshal(fn)
}
