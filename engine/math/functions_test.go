package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func assertVec3Near(t *testing.T, expected, got Vec3) {
	t.Helper()
	assert.InDelta(t, expected.X, got.X, 1e-5)
	assert.InDelta(t, expected.Y, got.Y, 1e-5)
	assert.InDelta(t, expected.Z, got.Z, 1e-5)
}

func TestVec3Basics(t *testing.T) {
	v := NewVec3(3, 4, 0)

	assert.InDelta(t, 5, v.Length(), 1e-6)
	assert.InDelta(t, 25, v.LengthSquared(), 1e-6)
	assertVec3Near(t, NewVec3(0.6, 0.8, 0), v.Normalized())
	assert.InDelta(t, 5, NewVec3Zero().Distance(v), 1e-6)

	assert.Equal(t, NewVec3(4, 6, 3), v.Add(NewVec3(1, 2, 3)))
	assert.Equal(t, NewVec3(6, 8, 0), v.Scale(2))
	assert.InDelta(t, 11, v.Dot(NewVec3(1, 2, 7)), 1e-6)
	assertVec3Near(t, NewVec3(0, 0, 1), NewVec3(1, 0, 0).Cross(NewVec3(0, 1, 0)))
}

func TestDegRadRoundTrip(t *testing.T) {
	assert.InDelta(t, K_PI, DegToRad(180), 1e-6)
	assert.InDelta(t, 90, RadToDeg(DegToRad(90)), 1e-4)
}

func TestMat4MulAppliesReceiverFirst(t *testing.T) {
	scaleThenMove := NewMat4Scale(NewVec3(2, 2, 2)).Mul(NewMat4Translation(NewVec3(3, 0, 0)))
	assertVec3Near(t, NewVec3(5, 0, 0), scaleThenMove.TransformPoint(NewVec3(1, 0, 0)))

	moveThenScale := NewMat4Translation(NewVec3(3, 0, 0)).Mul(NewMat4Scale(NewVec3(2, 2, 2)))
	assertVec3Near(t, NewVec3(8, 0, 0), moveThenScale.TransformPoint(NewVec3(1, 0, 0)))
}

func TestMat4IdentityIsNeutral(t *testing.T) {
	m := NewMat4Translation(NewVec3(1, 2, 3)).Mul(NewMat4Scale(NewVec3(4, 5, 6)))

	assert.Equal(t, m, m.Mul(NewMat4Identity()))
	assert.Equal(t, m, NewMat4Identity().Mul(m))
}

func TestQuatAxisAngleRotation(t *testing.T) {
	q := NewQuatFromAxisAngle(NewVec3(0, 0, 1), DegToRad(90), true)
	rotated := q.ToMat4().TransformPoint(NewVec3(0, 1, 0))

	assert.InDelta(t, 1, Abs(rotated.X), 1e-5)
	assert.InDelta(t, 0, rotated.Y, 1e-5)
	assert.InDelta(t, 0, rotated.Z, 1e-5)
}

func TestQuatIdentityLeavesPointsAlone(t *testing.T) {
	p := NewVec3(1, 2, 3)
	assertVec3Near(t, p, NewQuatIdentity().ToMat4().TransformPoint(p))
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	eye := NewVec3(0, 0, 5)
	view := NewMat4LookAt(eye, NewVec3Zero(), NewVec3(0, 1, 0))

	assertVec3Near(t, NewVec3Zero(), view.TransformPoint(eye))
	// A point straight ahead lands on the -Z axis.
	looked := view.TransformPoint(NewVec3Zero())
	assert.InDelta(t, 0, looked.X, 1e-5)
	assert.InDelta(t, 0, looked.Y, 1e-5)
	assert.InDelta(t, -5, looked.Z, 1e-5)
}

func TestUtilHelpers(t *testing.T) {
	assert.Equal(t, 5, Clamp(7, 0, 5))
	assert.Equal(t, 0, Clamp(-2, 0, 5))
	assert.Equal(t, 3, Clamp(3, 0, 5))

	assert.Equal(t, uint32(8), Max(uint32(3), uint32(8)))
	assert.Equal(t, uint32(3), Min(uint32(3), uint32(8)))

	assert.True(t, IsPowerOfTwo(1))
	assert.True(t, IsPowerOfTwo(256))
	assert.False(t, IsPowerOfTwo(0))
	assert.False(t, IsPowerOfTwo(24))

	assert.Equal(t, uint64(512), AlignUp(1, 512))
	assert.Equal(t, uint64(512), AlignUp(512, 512))
	assert.Equal(t, uint64(1024), AlignUp(513, 512))
}
