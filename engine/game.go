package engine

import (
	"github.com/oxygen3d/oxygen/engine/sceneprep"
)

// Game is the application half of the engine contract: the engine owns the
// frame loop and the systems, the game fills in behavior through these
// callbacks. Any callback may be nil.
type Game struct {
	// State is free for the game's own use.
	State interface{}

	// LODPolicy overrides the level-of-detail policy scene collection
	// uses. Defaults to the fixed policy when nil.
	LODPolicy sceneprep.LODPolicy

	FnInitialize Initialize
	FnUpdate     Update
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

// Initialize runs once after every system is up, before the first frame.
type Initialize func(e *Engine) error

// Update runs every frame during the Simulation phase.
type Update func(fc *FrameContext) error

// OnResize runs when the window framebuffer changes size.
type OnResize func(width uint32, height uint32) error

// Shutdown runs before the systems are torn down.
type Shutdown func() error
