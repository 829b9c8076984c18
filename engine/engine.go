package engine

import (
	"fmt"
	"sort"

	"github.com/oxygen3d/oxygen/engine/assets"
	"github.com/oxygen3d/oxygen/engine/config"
	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/math"
	"github.com/oxygen3d/oxygen/engine/platform"
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/headless"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
	"github.com/oxygen3d/oxygen/engine/renderer/vulkan"
	"github.com/oxygen3d/oxygen/engine/scene"
	"github.com/oxygen3d/oxygen/engine/sceneprep"
	"github.com/oxygen3d/oxygen/engine/systems"
)

// marshalQueueSize bounds how many cross-goroutine callbacks can be pending
// before Marshal drops to synchronous logging.
const marshalQueueSize = 256

// Engine owns the frame loop. Each frame walks the fixed phase sequence;
// built-in work (slot advance, scene update, collection, command recording)
// runs first in its phase, then registered modules in priority order. All
// phase work runs on the single loop goroutine; other goroutines get back
// onto it through Marshal.
type Engine struct {
	config *config.Config
	game   *Game

	platform *platform.Platform
	gfx      renderer.Graphics

	assetManager   *assets.AssetManager
	systemManager  *systems.SystemManager
	rendererSystem *systems.RendererSystem

	scene        *scene.Scene
	collector    *sceneprep.Collector
	activeCamera scene.NodeHandle

	modules []Module
	marshal chan func()

	clock       *core.Clock
	lastTime    float64
	frameIndex  uint64
	isRunning   bool
	isSuspended bool
	width       uint32
	height      uint32
}

// New builds the engine: graphics device (headless or Vulkan per config),
// window when not headless, asset manager, system manager and an empty
// scene. The game's FnInitialize runs at the end, with everything up.
func New(g *Game, cfg *config.Config) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("func New - game must not be nil: %w", core.ErrInvalidArgument)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	core.SetLogLevel(cfg.Logging.Level)

	if err := core.InputInitialize(); err != nil {
		return nil, err
	}
	if !core.EventInitialize() {
		core.LogWarn("event system was already initialized")
	}
	if err := core.MetricsInitialize(); err != nil {
		return nil, err
	}

	e := &Engine{
		config:       cfg,
		game:         g,
		scene:        scene.NewScene(cfg.Application.Name),
		activeCamera: scene.InvalidNodeHandle,
		marshal:      make(chan func(), marshalQueueSize),
		clock:        core.NewClock(),
		isRunning:    true,
		width:        cfg.Application.Width,
		height:       cfg.Application.Height,
	}

	if cfg.Application.Headless {
		e.gfx = headless.NewDevice()
	} else {
		p, err := platform.New()
		if err != nil {
			return nil, err
		}
		if err := p.Startup(cfg.Application.Name, 100, 100, cfg.Application.Width, cfg.Application.Height); err != nil {
			return nil, err
		}
		e.platform = p

		gfx, err := vulkan.New(cfg.Application.Name, cfg.Assets.Root+"/shaders")
		if err != nil {
			return nil, err
		}
		e.gfx = gfx
	}

	am, err := assets.NewAssetManager(cfg.Assets.Root)
	if err != nil {
		return nil, err
	}
	e.assetManager = am

	sm, err := systems.NewSystemManager(e.gfx, cfg)
	if err != nil {
		return nil, err
	}
	e.systemManager = sm

	rs, err := systems.NewRendererSystem(&systems.RendererSystemConfig{
		Width:  cfg.Application.Width,
		Height: cfg.Application.Height,
	}, e.gfx)
	if err != nil {
		return nil, err
	}
	e.rendererSystem = rs

	e.collector = sceneprep.NewCollector(sm.Geometries(), sm.Materials(), g.LODPolicy)

	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)
	core.EventRegister(core.EVENT_CODE_ASSET_CHANGED, e, e.onAssetChanged)

	if err := am.StartWatching(); err != nil {
		// Hot reload is best effort; the engine runs fine without it.
		core.LogWarn("asset watching unavailable: %s", err)
	}

	if g.FnInitialize != nil {
		if err := g.FnInitialize(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// RegisterModule adds a module to the frame loop. Registration order breaks
// priority ties.
func (e *Engine) RegisterModule(m Module) error {
	if m == nil || m.Name() == "" {
		return fmt.Errorf("func RegisterModule - module needs a name: %w", core.ErrInvalidArgument)
	}
	for _, existing := range e.modules {
		if existing.Name() == m.Name() {
			return fmt.Errorf("func RegisterModule - module '%s' already registered: %w", m.Name(), core.ErrInvalidArgument)
		}
	}
	e.modules = append(e.modules, m)
	sort.SliceStable(e.modules, func(i, j int) bool {
		return e.modules[i].Priority() < e.modules[j].Priority()
	})
	return nil
}

// Marshal queues fn to run on the loop goroutine at the next marshalling
// point (frame start and command record). Safe from any goroutine.
func (e *Engine) Marshal(fn func()) {
	select {
	case e.marshal <- fn:
	default:
		core.LogWarn("marshal queue full, callback dropped")
	}
}

func (e *Engine) drainMarshal() {
	for {
		select {
		case fn := <-e.marshal:
			fn()
		default:
			return
		}
	}
}

// Scene returns the engine's scene graph.
func (e *Engine) Scene() *scene.Scene {
	return e.scene
}

// Systems returns the system manager.
func (e *Engine) Systems() *systems.SystemManager {
	return e.systemManager
}

// Assets returns the asset manager.
func (e *Engine) Assets() *assets.AssetManager {
	return e.assetManager
}

// Graphics returns the underlying device.
func (e *Engine) Graphics() renderer.Graphics {
	return e.gfx
}

// SetActiveCamera selects the camera node scene collection uses. The node
// must carry a camera component.
func (e *Engine) SetActiveCamera(h scene.NodeHandle) error {
	if _, err := e.scene.Camera(h); err != nil {
		return err
	}
	e.activeCamera = h
	return nil
}

// GetFramebufferSize returns the width and height of the frame targets.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

// RunFrame advances the engine by one frame: the phase sequence runs to
// completion on the calling goroutine.
func (e *Engine) RunFrame(delta float64) error {
	e.frameIndex++
	fc := &FrameContext{
		FrameIndex: e.frameIndex,
		Slot:       uint8(e.frameIndex % uint64(e.config.Renderer.FramesInFlight)),
		DeltaTime:  delta,
		engine:     e,
	}

	for phase := Phase(0); phase < phaseCount; phase++ {
		if err := e.executeBuiltin(phase, fc); err != nil {
			return fmt.Errorf("phase %s: %w", phase, err)
		}
		for _, m := range e.modules {
			if !m.Phases().Has(phase) {
				continue
			}
			if err := m.Execute(phase, fc); err != nil {
				return fmt.Errorf("module '%s' in phase %s: %w", m.Name(), phase, err)
			}
		}
	}
	return nil
}

func (e *Engine) executeBuiltin(phase Phase, fc *FrameContext) error {
	switch phase {
	case PhaseFrameStart:
		e.drainMarshal()
		e.systemManager.OnFrameStart(fc.Slot)

	case PhaseSimulation:
		if e.game.FnUpdate != nil {
			return e.game.FnUpdate(fc)
		}

	case PhaseSceneUpdate:
		e.scene.ProcessDirtyFlags()
		e.scene.UpdateTransforms()

	case PhaseSceneCollect:
		fc.items = e.collector.Collect(e.collectInput())

	case PhaseResourcePrepare:
		e.systemManager.Uploads().PumpCompletions()

	case PhaseCommandRecord:
		// Marshalling point: async loads finished since frame start may
		// still contribute to this frame's draws.
		e.drainMarshal()
		if _, err := e.rendererSystem.DrawFrame(fc.items); err != nil {
			return err
		}

	case PhaseFrameEnd:
		core.InputUpdate(fc.DeltaTime)
		core.MetricsUpdate(fc.DeltaTime)
	}
	return nil
}

// collectInput derives the camera view state for scene collection. Without
// an active camera, collection still runs with a default view at the
// origin.
func (e *Engine) collectInput() *sceneprep.CollectInput {
	in := &sceneprep.CollectInput{
		Scene:          e.scene,
		VerticalFovRad: 1.0,
		ViewportHeight: e.height,
	}
	camera, err := e.scene.Camera(e.activeCamera)
	if err != nil {
		return in
	}
	in.VerticalFovRad = camera.VerticalFovRad
	if camera.ViewportHeight != 0 {
		in.ViewportHeight = camera.ViewportHeight
	}
	frustum := math.NewFrustumFromViewProjection(camera.View.Mul(camera.Projection))
	in.Frustum = &frustum
	if transform, err := e.scene.Transform(e.activeCamera); err == nil {
		if world, err := transform.GetWorldMatrix(); err == nil {
			// Translation lives in the last column.
			in.CameraPosition.X = world.Data[12]
			in.CameraPosition.Y = world.Data[13]
			in.CameraPosition.Z = world.Data[14]
		}
	}
	return in
}

// Run drives the frame loop until a quit event or window close.
func (e *Engine) Run() error {
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		if e.platform != nil && !e.platform.PumpMessages() {
			e.isRunning = false
			break
		}
		if e.isSuspended {
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		if err := e.RunFrame(delta); err != nil {
			core.LogFatal("frame %d failed: %s", e.frameIndex, err)
			e.isRunning = false
			return err
		}
		e.lastTime = currentTime
	}
	return nil
}

// Stop requests a clean exit after the current frame.
func (e *Engine) Stop() {
	e.isRunning = false
}

func (e *Engine) Shutdown() error {
	if e.game.FnShutdown != nil {
		if err := e.game.FnShutdown(); err != nil {
			core.LogError("game shutdown: %s", err)
		}
	}
	if err := e.assetManager.Shutdown(); err != nil {
		core.LogError("asset manager shutdown: %s", err)
	}
	if err := e.rendererSystem.Shutdown(); err != nil {
		return err
	}
	if err := e.systemManager.Shutdown(); err != nil {
		return err
	}
	if err := e.gfx.Shutdown(); err != nil {
		return err
	}
	if e.platform != nil {
		if err := e.platform.Shutdown(); err != nil {
			return err
		}
	}
	return core.EventShutdown()
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("quit event received, shutting down")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code != core.EVENT_CODE_RESIZED {
		return false
	}
	width := uint32(data.Data.U16[0])
	height := uint32(data.Data.U16[1])
	if width == e.width && height == e.height {
		return false
	}
	e.width = width
	e.height = height

	if width == 0 || height == 0 {
		core.LogInfo("window minimized, suspending frame loop")
		e.isSuspended = true
		return false
	}
	if e.isSuspended {
		core.LogInfo("window restored, resuming frame loop")
		e.isSuspended = false
	}
	if e.game.FnOnResize != nil {
		if err := e.game.FnOnResize(width, height); err != nil {
			core.LogError("game resize: %s", err)
		}
	}
	if err := e.rendererSystem.Resize(width, height); err != nil {
		core.LogError("render target resize: %s", err)
	}
	return false
}

// onAssetChanged reloads a texture whose source file changed on disk. The
// reload is marshalled onto the loop goroutine because the watcher delivers
// from its own goroutine.
func (e *Engine) onAssetChanged(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code != core.EVENT_CODE_ASSET_CHANGED {
		return false
	}
	path := data.Data.C[0]
	key := e.assetManager.VirtualPath(path)
	e.Marshal(func() {
		textures := e.systemManager.Textures()
		if textures.ShaderVisibleIndex(key) == metadata.InvalidID {
			return
		}
		cooked, err := e.assetManager.LoadTexture(key)
		if err != nil {
			core.LogError("hot reload of '%s' failed: %s", key, err)
			return
		}
		if err := textures.Evict(key); err != nil {
			core.LogError("hot reload of '%s' failed to evict: %s", key, err)
			return
		}
		if _, err := textures.GetOrAllocate(key, cooked, true); err != nil {
			core.LogError("hot reload of '%s' failed to restart upload: %s", key, err)
		}
	})
	return false
}
