package scene

import (
	"fmt"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/math"
)

// TransformComponent holds a node's local TRS and the cached world matrix
// derived from it. The world matrix is only readable after the first
// UpdateWorldTransform; reading it earlier is a programming error and fails
// fast instead of handing out an identity the renderer would silently draw
// with.
type TransformComponent struct {
	position math.Vec3
	rotation math.Quaternion
	scale    math.Vec3

	world    math.Mat4
	hasWorld bool
	dirty    bool
}

func newTransformComponent() *TransformComponent {
	return &TransformComponent{
		rotation: math.NewQuatIdentity(),
		scale:    math.NewVec3One(),
		dirty:    true,
	}
}

func (t *TransformComponent) Position() math.Vec3 {
	return t.position
}

func (t *TransformComponent) Rotation() math.Quaternion {
	return t.rotation
}

func (t *TransformComponent) Scale() math.Vec3 {
	return t.scale
}

func (t *TransformComponent) SetPosition(p math.Vec3) {
	t.position = p
	t.dirty = true
}

func (t *TransformComponent) SetRotation(r math.Quaternion) {
	t.rotation = r
	t.dirty = true
}

func (t *TransformComponent) SetScale(s math.Vec3) {
	t.scale = s
	t.dirty = true
}

// IsDirty reports whether the world matrix is stale relative to the local
// TRS.
func (t *TransformComponent) IsDirty() bool {
	return t.dirty
}

// GetLocalMatrix composes scale, rotation and translation, in that order.
func (t *TransformComponent) GetLocalMatrix() math.Mat4 {
	return math.NewMat4Scale(t.scale).Mul(t.rotation.ToMat4()).Mul(math.NewMat4Translation(t.position))
}

// GetWorldMatrix returns the cached world matrix. It fails until the first
// UpdateWorldTransform has run.
func (t *TransformComponent) GetWorldMatrix() (math.Mat4, error) {
	if !t.hasWorld {
		return math.Mat4{}, fmt.Errorf("world matrix read before first transform update: %w", core.ErrStateViolation)
	}
	return t.world, nil
}

// UpdateWorldTransform recomputes the cached world matrix from the parent's
// world matrix and clears the dirty bit.
func (t *TransformComponent) UpdateWorldTransform(parentWorld math.Mat4) {
	t.world = t.GetLocalMatrix().Mul(parentWorld)
	t.hasWorld = true
	t.dirty = false
}
