package systems

import (
	"fmt"
	"strings"

	"github.com/oxygen3d/oxygen/engine/config"
	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer"
	"github.com/oxygen3d/oxygen/engine/renderer/bindless"
	"github.com/oxygen3d/oxygen/engine/renderer/upload"
)

// SystemManager builds and owns the resource systems sitting between the
// scene and the graphics backend: descriptor allocation, staged uploads and
// the geometry/texture/material binders.
type SystemManager struct {
	allocator *bindless.Allocator
	staging   *upload.BufferStagingProvider
	uploads   *upload.Coordinator

	jobSystem      *JobSystem
	textureSystem  *TextureSystem
	geometrySystem *GeometrySystem
	materialSystem *MaterialSystem
}

func NewSystemManager(gfx renderer.Graphics, cfg *config.Config) (*SystemManager, error) {
	overrides, err := heapOverrides(cfg.Renderer.Heaps)
	if err != nil {
		return nil, err
	}
	allocator, err := bindless.NewAllocator(bindless.NewDefaultStrategy(overrides...))
	if err != nil {
		return nil, err
	}

	staging := upload.NewBufferStagingProvider(gfx, cfg.Renderer.StagingChunkSize)
	uploads := upload.NewCoordinator(gfx, staging)

	js, err := NewJobSystem(cfg.Jobs.Workers, cfg.Jobs.QueueSize)
	if err != nil {
		return nil, err
	}
	ts, err := NewTextureSystem(&TextureSystemConfig{
		MaxTextureCount: cfg.Renderer.MaxTextureCount,
	}, gfx, allocator, uploads)
	if err != nil {
		return nil, err
	}
	if err := ts.Initialize(); err != nil {
		return nil, err
	}
	gs, err := NewGeometrySystem(&GeometrySystemConfig{
		MaxGeometryCount: cfg.Renderer.MaxGeometryCount,
	}, gfx, allocator, uploads)
	if err != nil {
		return nil, err
	}
	ms, err := NewMaterialSystem(&MaterialSystemConfig{
		MaxMaterialCount: 1024,
	})
	if err != nil {
		return nil, err
	}

	return &SystemManager{
		allocator:      allocator,
		staging:        staging,
		uploads:        uploads,
		jobSystem:      js,
		textureSystem:  ts,
		geometrySystem: gs,
		materialSystem: ms,
	}, nil
}

// heapOverrides translates the config's "VIEW:visibility" keyed heap table
// into strategy overrides.
func heapOverrides(heaps map[string]config.HeapConfig) ([]bindless.DefaultStrategyOverride, error) {
	overrides := make([]bindless.DefaultStrategyOverride, 0, len(heaps))
	for key, hc := range heaps {
		domain, err := parseHeapKey(key)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, bindless.DefaultStrategyOverride{
			Domain:      domain,
			BaseIndex:   hc.BaseIndex,
			Capacity:    hc.Capacity,
			AllowGrowth: hc.AllowGrowth,
		})
	}
	return overrides, nil
}

func parseHeapKey(key string) (bindless.Domain, error) {
	parts := strings.SplitN(key, ":", 2)
	if len(parts) != 2 {
		return bindless.Domain{}, fmt.Errorf("heap key '%s' is not VIEW:visibility: %w", key, core.ErrInvalidArgument)
	}
	var d bindless.Domain
	switch strings.ToUpper(parts[0]) {
	case "CBV":
		d.ViewType = bindless.ViewTypeCBV
	case "SRV":
		d.ViewType = bindless.ViewTypeSRV
	case "UAV":
		d.ViewType = bindless.ViewTypeUAV
	case "SAMPLER":
		d.ViewType = bindless.ViewTypeSampler
	case "RTV":
		d.ViewType = bindless.ViewTypeRTV
	case "DSV":
		d.ViewType = bindless.ViewTypeDSV
	default:
		return bindless.Domain{}, fmt.Errorf("heap key '%s' has unknown view type: %w", key, core.ErrInvalidArgument)
	}
	switch strings.ToLower(parts[1]) {
	case "gpu":
		d.Visibility = bindless.VisibilityShaderVisible
	case "cpu":
		d.Visibility = bindless.VisibilityCPUOnly
	default:
		return bindless.Domain{}, fmt.Errorf("heap key '%s' has unknown visibility: %w", key, core.ErrInvalidArgument)
	}
	return d, nil
}

func (sm *SystemManager) Allocator() *bindless.Allocator {
	return sm.allocator
}

func (sm *SystemManager) Uploads() *upload.Coordinator {
	return sm.uploads
}

func (sm *SystemManager) Jobs() *JobSystem {
	return sm.jobSystem
}

func (sm *SystemManager) Textures() *TextureSystem {
	return sm.textureSystem
}

func (sm *SystemManager) Geometries() *GeometrySystem {
	return sm.geometrySystem
}

func (sm *SystemManager) Materials() *MaterialSystem {
	return sm.materialSystem
}

// OnFrameStart advances the upload timeline for the new frame slot and lets
// the binders consume finished tickets.
func (sm *SystemManager) OnFrameStart(slot uint8) {
	sm.textureSystem.OnFrameStart()
	sm.geometrySystem.OnFrameStart()
	sm.uploads.OnFrameStart("frame start", slot)
}

func (sm *SystemManager) Shutdown() error {
	if err := sm.geometrySystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.textureSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.materialSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.jobSystem.Shutdown(); err != nil {
		return err
	}
	return sm.staging.Close()
}
