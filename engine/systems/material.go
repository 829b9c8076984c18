package systems

import (
	"fmt"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/math"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

type MaterialSystemConfig struct {
	/** @brief The maximum number of materials that can be registered. */
	MaxMaterialCount uint32
}

// MaterialSystem registers named materials and resolves references to them.
// Unknown names resolve to the default material so a missing asset degrades
// instead of dropping draws.
type MaterialSystem struct {
	config          *MaterialSystemConfig
	materials       map[string]*metadata.Material
	defaultMaterial *metadata.Material
	nextID          uint32
}

func NewMaterialSystem(config *MaterialSystemConfig) (*MaterialSystem, error) {
	if config.MaxMaterialCount == 0 {
		err := fmt.Errorf("func NewMaterialSystem - config.MaxMaterialCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	ms := &MaterialSystem{
		config:    config,
		materials: make(map[string]*metadata.Material),
		defaultMaterial: &metadata.Material{
			ID:        0,
			Name:      metadata.DEFAULT_MATERIAL_NAME,
			BaseColor: math.Vec4{X: 1, Y: 1, Z: 1, W: 1},
			Roughness: 1,
			PassMask:  metadata.PassMaskDepth | metadata.PassMaskOpaque,
		},
		nextID: 1,
	}
	ms.materials[metadata.DEFAULT_MATERIAL_NAME] = ms.defaultMaterial
	return ms, nil
}

// Register adds the material under its name. Re-registering a name replaces
// the previous definition but keeps its ID.
func (ms *MaterialSystem) Register(m *metadata.Material) error {
	if m == nil || m.Name == "" {
		return fmt.Errorf("material needs a name: %w", core.ErrInvalidArgument)
	}
	if existing, ok := ms.materials[m.Name]; ok {
		m.ID = existing.ID
		ms.materials[m.Name] = m
		return nil
	}
	if uint32(len(ms.materials)) >= ms.config.MaxMaterialCount {
		return fmt.Errorf("material table full at %d entries: %w", ms.config.MaxMaterialCount, core.ErrCapacityExhausted)
	}
	m.ID = ms.nextID
	ms.nextID++
	ms.materials[m.Name] = m
	return nil
}

// Resolve returns the named material, or the default material when the name
// is empty or unknown.
func (ms *MaterialSystem) Resolve(name string) *metadata.Material {
	if name == "" {
		return ms.defaultMaterial
	}
	if m, ok := ms.materials[name]; ok {
		return m
	}
	core.LogDebug("material '%s' not found, using '%s'", name, metadata.DEFAULT_MATERIAL_NAME)
	return ms.defaultMaterial
}

func (ms *MaterialSystem) Default() *metadata.Material {
	return ms.defaultMaterial
}

func (ms *MaterialSystem) Shutdown() error {
	ms.materials = make(map[string]*metadata.Material)
	ms.materials[metadata.DEFAULT_MATERIAL_NAME] = ms.defaultMaterial
	return nil
}
