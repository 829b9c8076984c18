package bindless

import (
	"fmt"

	"github.com/oxygen3d/oxygen/engine/core"
)

// ViewType enumerates descriptor view categories.
type ViewType uint8

const (
	ViewTypeCBV ViewType = iota
	ViewTypeSRV
	ViewTypeUAV
	ViewTypeSampler
	ViewTypeRTV
	ViewTypeDSV
	viewTypeCount
)

func (v ViewType) String() string {
	switch v {
	case ViewTypeCBV:
		return "CBV"
	case ViewTypeSRV:
		return "SRV"
	case ViewTypeUAV:
		return "UAV"
	case ViewTypeSampler:
		return "SAMPLER"
	case ViewTypeRTV:
		return "RTV"
	case ViewTypeDSV:
		return "DSV"
	default:
		return "?"
	}
}

// Visibility partitions descriptors into shader-visible and CPU-only heaps.
type Visibility uint8

const (
	VisibilityShaderVisible Visibility = iota
	VisibilityCPUOnly
)

func (v Visibility) String() string {
	if v == VisibilityShaderVisible {
		return "gpu"
	}
	return "cpu"
}

// Domain is the (view type, visibility) pair that partitions allocation.
type Domain struct {
	ViewType   ViewType
	Visibility Visibility
}

// HeapKey names the heap segment backing a domain, e.g. "SRV:gpu".
func (d Domain) HeapKey() string {
	return fmt.Sprintf("%s:%s", d.ViewType, d.Visibility)
}

// HeapDescription declares one heap segment's placement and policy.
type HeapDescription struct {
	BaseIndex   uint32
	Capacity    uint32
	AllowGrowth bool
	// Step used when growth is allowed and the segment is exhausted.
	GrowthStep    uint32
	ShaderVisible bool
}

// AllocationStrategy maps domains onto heap segments. Implementations
// declare capacity, growth, visibility and the externally stable base index
// of each segment. Two distinct GPU-visible domains must never share a base
// index.
type AllocationStrategy interface {
	// HeapDescription returns the segment layout for the domain, or an
	// error if the combination is not legal on the target.
	HeapDescription(d Domain) (HeapDescription, error)
	// Domains lists every domain the strategy supports.
	Domains() []Domain
}

// DefaultStrategy lays descriptors out D3D12-style: shader-visible CBV, SRV,
// UAV and sampler segments with disjoint base ranges, CPU-only RTV/DSV/SRV
// segments, and a hard rejection of shader-visible RTV/DSV reservations.
type DefaultStrategy struct {
	heaps map[Domain]HeapDescription
}

// DefaultStrategyOverride rebases or resizes a single domain, so an
// externally dictated shader ABI can be honored verbatim.
type DefaultStrategyOverride struct {
	Domain      Domain
	BaseIndex   uint32
	Capacity    uint32
	AllowGrowth bool
}

func NewDefaultStrategy(overrides ...DefaultStrategyOverride) *DefaultStrategy {
	heaps := map[Domain]HeapDescription{
		{ViewTypeCBV, VisibilityShaderVisible}:     {BaseIndex: 0, Capacity: 4096, GrowthStep: 1024, ShaderVisible: true},
		{ViewTypeSRV, VisibilityShaderVisible}:     {BaseIndex: 4096, Capacity: 65536, GrowthStep: 4096, ShaderVisible: true},
		{ViewTypeUAV, VisibilityShaderVisible}:     {BaseIndex: 69632, Capacity: 8192, GrowthStep: 1024, ShaderVisible: true},
		{ViewTypeSampler, VisibilityShaderVisible}: {BaseIndex: 0, Capacity: 2048, ShaderVisible: true},
		{ViewTypeSRV, VisibilityCPUOnly}:           {BaseIndex: 0, Capacity: 16384, AllowGrowth: true, GrowthStep: 4096},
		{ViewTypeRTV, VisibilityCPUOnly}:           {BaseIndex: 0, Capacity: 512},
		{ViewTypeDSV, VisibilityCPUOnly}:           {BaseIndex: 0, Capacity: 512},
	}
	for _, o := range overrides {
		h := heaps[o.Domain]
		h.BaseIndex = o.BaseIndex
		if o.Capacity != 0 {
			h.Capacity = o.Capacity
		}
		h.AllowGrowth = o.AllowGrowth
		heaps[o.Domain] = h
	}
	return &DefaultStrategy{heaps: heaps}
}

func (s *DefaultStrategy) HeapDescription(d Domain) (HeapDescription, error) {
	if d.Visibility == VisibilityShaderVisible && (d.ViewType == ViewTypeRTV || d.ViewType == ViewTypeDSV) {
		return HeapDescription{}, fmt.Errorf("shader-visible %s heaps are not supported: %w", d.ViewType, core.ErrInvalidArgument)
	}
	h, ok := s.heaps[d]
	if !ok {
		return HeapDescription{}, fmt.Errorf("no heap for domain %s: %w", d.HeapKey(), core.ErrNotFound)
	}
	return h, nil
}

func (s *DefaultStrategy) Domains() []Domain {
	out := make([]Domain, 0, len(s.heaps))
	for d := range s.heaps {
		out = append(out, d)
	}
	return out
}
