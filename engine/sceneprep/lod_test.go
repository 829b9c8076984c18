package sceneprep

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oxygen3d/oxygen/engine/math"
)

func unitBoundsAt(center math.Vec3) math.AABB {
	half := math.NewVec3(1, 1, 1)
	return math.NewAABB(center.Sub(half), center.Add(half))
}

func TestFixedLODPolicyClamps(t *testing.T) {
	bounds := unitBoundsAt(math.NewVec3Zero())
	ctx := &LODContext{}

	assert.Equal(t, uint32(0), FixedLODPolicy{}.SelectLOD(ctx, bounds, 4, -1))
	assert.Equal(t, uint32(2), FixedLODPolicy{Index: 2}.SelectLOD(ctx, bounds, 4, -1))
	assert.Equal(t, uint32(3), FixedLODPolicy{Index: 9}.SelectLOD(ctx, bounds, 4, -1))
	assert.Equal(t, uint32(0), FixedLODPolicy{Index: 9}.SelectLOD(ctx, bounds, 0, -1))
}

func TestDistanceLODPolicyBands(t *testing.T) {
	policy := DistanceLODPolicy{Thresholds: []float32{10, 20}}
	bounds := unitBoundsAt(math.NewVec3Zero())
	radius := bounds.Radius()

	at := func(normalized float32) *LODContext {
		return &LODContext{CameraPosition: math.NewVec3(0, 0, normalized * radius)}
	}

	assert.Equal(t, uint32(0), policy.SelectLOD(at(5), bounds, 3, -1))
	assert.Equal(t, uint32(1), policy.SelectLOD(at(15), bounds, 3, -1))
	assert.Equal(t, uint32(2), policy.SelectLOD(at(25), bounds, 3, -1))
	// Clamped to the mesh's LOD count.
	assert.Equal(t, uint32(1), policy.SelectLOD(at(25), bounds, 2, -1))
}

func TestDistanceLODPolicyHysteresis(t *testing.T) {
	policy := DistanceLODPolicy{Thresholds: []float32{10}, Hysteresis: 2}
	bounds := unitBoundsAt(math.NewVec3Zero())
	radius := bounds.Radius()

	at := func(normalized float32) *LODContext {
		return &LODContext{CameraPosition: math.NewVec3(0, 0, normalized * radius)}
	}

	// Just past the boundary: the previous level sticks.
	assert.Equal(t, uint32(0), policy.SelectLOD(at(11), bounds, 2, 0))
	// Clear of the margin: the switch happens.
	assert.Equal(t, uint32(1), policy.SelectLOD(at(13), bounds, 2, 0))

	// Same coming back toward the camera.
	assert.Equal(t, uint32(1), policy.SelectLOD(at(9), bounds, 2, 1))
	assert.Equal(t, uint32(0), policy.SelectLOD(at(7), bounds, 2, 1))
}

func TestScreenSpaceErrorLODPolicy(t *testing.T) {
	policy := ScreenSpaceErrorLODPolicy{ErrorThresholdPx: 4}
	bounds := unitBoundsAt(math.NewVec3Zero())
	radius := bounds.Radius()

	ctx := func(distance float32) *LODContext {
		return &LODContext{
			CameraPosition: math.NewVec3(0, 0, distance * radius),
			VerticalFovRad: math.DegToRad(90),
			ViewportHeight: 1000,
		}
	}

	// Close up the projected error is large: full detail.
	assert.Equal(t, uint32(0), policy.SelectLOD(ctx(10), bounds, 3, -1))
	// Far away the coarsest level is still under the threshold.
	assert.Equal(t, uint32(2), policy.SelectLOD(ctx(500), bounds, 3, -1))
}

func TestScreenSpaceErrorPolicyWithoutViewport(t *testing.T) {
	policy := ScreenSpaceErrorLODPolicy{ErrorThresholdPx: 4}
	bounds := unitBoundsAt(math.NewVec3Zero())

	// No viewport means no focal length; fall back to full detail.
	ctx := &LODContext{CameraPosition: math.NewVec3(0, 0, 100)}
	assert.Equal(t, uint32(0), policy.SelectLOD(ctx, bounds, 3, -1))
}

func TestFocalLength(t *testing.T) {
	ctx := &LODContext{VerticalFovRad: math.DegToRad(90), ViewportHeight: 1000}
	assert.InDelta(t, 500, ctx.FocalLength(), 0.1)

	assert.Zero(t, (&LODContext{ViewportHeight: 1000}).FocalLength())
	assert.Zero(t, (&LODContext{VerticalFovRad: 1}).FocalLength())
}
