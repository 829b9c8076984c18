// Package sceneprep turns a scene graph into the flat, stable list of draw
// items the render passes consume: LOD selection, visibility and frustum
// culling, material resolution and bindless index lookup.
package sceneprep

import (
	"github.com/oxygen3d/oxygen/engine/math"
)

// LODContext carries the per-frame camera inputs LOD policies evaluate
// against.
type LODContext struct {
	CameraPosition math.Vec3
	VerticalFovRad float32
	ViewportHeight uint32
}

// FocalLength derives the pixel focal length from the vertical field of
// view. Returns 0 when the viewport height is unknown.
func (c *LODContext) FocalLength() float32 {
	if c.ViewportHeight == 0 || c.VerticalFovRad <= 0 {
		return 0
	}
	return float32(c.ViewportHeight) / (2 * math.Tan(c.VerticalFovRad/2))
}

// LODPolicy selects which level of detail to draw for a bounded object.
// previous is the LOD chosen for the same object last frame, or -1 on the
// first evaluation, so policies can apply hysteresis.
type LODPolicy interface {
	SelectLOD(ctx *LODContext, bounds math.AABB, lodCount uint32, previous int) uint32
}

// FixedLODPolicy always picks the same level, clamped to what the mesh has.
type FixedLODPolicy struct {
	Index uint32
}

func (p FixedLODPolicy) SelectLOD(_ *LODContext, _ math.AABB, lodCount uint32, _ int) uint32 {
	if lodCount == 0 {
		return 0
	}
	return math.Min(p.Index, lodCount-1)
}

// DistanceLODPolicy switches levels on camera distance normalized by the
// bounds radius. Thresholds are ordered ascending; crossing into the
// neighboring band only switches once the distance clears the boundary by
// the hysteresis margin, preventing flicker at band edges.
type DistanceLODPolicy struct {
	Thresholds []float32
	Hysteresis float32
}

func (p DistanceLODPolicy) SelectLOD(ctx *LODContext, bounds math.AABB, lodCount uint32, previous int) uint32 {
	if lodCount == 0 {
		return 0
	}
	radius := bounds.Radius()
	if radius <= 0 {
		radius = 1
	}
	normalized := ctx.CameraPosition.Distance(bounds.Center()) / radius

	candidate := uint32(0)
	for _, t := range p.Thresholds {
		if normalized < t {
			break
		}
		candidate++
	}
	candidate = math.Min(candidate, lodCount-1)

	if previous >= 0 && previous < int(lodCount) && candidate != uint32(previous) {
		prev := uint32(previous)
		if candidate > prev {
			// Moving coarser: the boundary we crossed is thresholds[prev].
			if int(prev) < len(p.Thresholds) && normalized < p.Thresholds[prev]+p.Hysteresis {
				return prev
			}
		} else {
			// Moving finer: the boundary is thresholds[prev-1].
			if prev > 0 && int(prev-1) < len(p.Thresholds) && normalized > p.Thresholds[prev-1]-p.Hysteresis {
				return prev
			}
		}
	}
	return candidate
}

const minScreenSpaceDepth = 1e-4

// ScreenSpaceErrorLODPolicy picks the coarsest level whose projected error
// stays under the threshold. The projected size of the bounds is
// sse = focal * radius / z (z clamped away from zero); each coarser level
// is assumed to double the geometric error. When the focal length cannot
// be computed (zero viewport) the policy falls back to the most detailed
// level.
type ScreenSpaceErrorLODPolicy struct {
	// Acceptable projected error in pixels.
	ErrorThresholdPx float32
}

func (p ScreenSpaceErrorLODPolicy) SelectLOD(ctx *LODContext, bounds math.AABB, lodCount uint32, _ int) uint32 {
	if lodCount == 0 {
		return 0
	}
	focal := ctx.FocalLength()
	if focal == 0 {
		return 0
	}
	z := ctx.CameraPosition.Distance(bounds.Center())
	if z < minScreenSpaceDepth {
		z = minScreenSpaceDepth
	}
	sse := focal * bounds.Radius() / z

	threshold := p.ErrorThresholdPx
	if threshold <= 0 {
		threshold = 1
	}
	// Error of the finest level relative to the projected bounds.
	err := sse / float32(uint32(1)<<lodCount)
	lod := uint32(0)
	for lod+1 < lodCount && err*2 <= threshold {
		err *= 2
		lod++
	}
	return lod
}
