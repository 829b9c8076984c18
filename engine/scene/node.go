package scene

import (
	"github.com/oxygen3d/oxygen/engine/math"
	"github.com/oxygen3d/oxygen/engine/renderer/metadata"
)

// NodeHandle addresses a node in a scene's table. The generation makes
// handles to destroyed-and-reused slots detectably stale.
type NodeHandle struct {
	Index      uint32
	Generation uint32
}

// InvalidNodeHandle is the zero-value sentinel returned by failed lookups.
var InvalidNodeHandle = NodeHandle{Index: metadata.InvalidID}

func (h NodeHandle) IsValid() bool {
	return h.Index != metadata.InvalidID
}

// RenderableComponent attaches mesh data to a node. The mesh carries its
// LOD chain; selection happens at collection time.
type RenderableComponent struct {
	AssetKey string
	Mesh     *metadata.Mesh
	// World-space bounds override; zero value means derive from the mesh.
	Bounds math.AABB
}

// LightComponent is a minimal punctual light attached to a node.
type LightComponent struct {
	Color     math.Vec3
	Intensity float32
	Range     float32
}

// CameraComponent holds the matrices and viewport of a rendering camera.
type CameraComponent struct {
	View           math.Mat4
	Projection     math.Mat4
	VerticalFovRad float32
	ViewportWidth  uint32
	ViewportHeight uint32
}

// nodeImpl is the table-resident node object. Graph edges are an intrusive
// doubly-linked sibling list per parent; components are optional and
// composed by pointer.
type nodeImpl struct {
	alive bool
	name  string
	flags FlagSet

	parent      NodeHandle
	firstChild  NodeHandle
	lastChild   NodeHandle
	nextSibling NodeHandle
	prevSibling NodeHandle

	transform  *TransformComponent
	renderable *RenderableComponent
	light      *LightComponent
	camera     *CameraComponent

	// Set during UpdateTransforms when this node's world matrix changed, so
	// children recompute even when their own TRS is clean.
	worldChanged bool
}

func (n *nodeImpl) reset(name string) {
	n.alive = true
	n.name = name
	n.flags = newFlagSet()
	n.parent = InvalidNodeHandle
	n.firstChild = InvalidNodeHandle
	n.lastChild = InvalidNodeHandle
	n.nextSibling = InvalidNodeHandle
	n.prevSibling = InvalidNodeHandle
	n.transform = nil
	n.renderable = nil
	n.light = nil
	n.camera = nil
	n.worldChanged = false
}
