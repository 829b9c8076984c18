// Package scene implements the engine's scene graph: a handle-addressed
// node table with intrusive hierarchy links, tri-state inherited flags,
// cached world transforms and filtered traversal.
package scene

import (
	"fmt"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/math"
	"github.com/oxygen3d/oxygen/engine/renderer/bindless"
)

const initialNodeCapacity = 64

// Scene owns its nodes. Handles stay valid until the node is destroyed;
// destruction bumps the slot's generation so stale handles resolve to
// not-found instead of a recycled node. Queries and traversal are safe
// under an external reader lock; mutations need exclusive access.
type Scene struct {
	name        string
	nodes       []*nodeImpl
	generations *bindless.GenerationTracker
	freeList    []uint32
	roots       []NodeHandle
	aliveCount  int
}

func NewScene(name string) *Scene {
	return &Scene{
		name:        name,
		generations: bindless.NewGenerationTracker(initialNodeCapacity),
	}
}

func (s *Scene) Name() string {
	return s.name
}

// NodeCount returns the number of live nodes.
func (s *Scene) NodeCount() int {
	return s.aliveCount
}

func (s *Scene) resolve(h NodeHandle) (*nodeImpl, error) {
	if !h.IsValid() || h.Index >= uint32(len(s.nodes)) {
		return nil, fmt.Errorf("node handle %d out of range: %w", h.Index, core.ErrNotFound)
	}
	n := s.nodes[h.Index]
	if !n.alive || s.generations.Load(h.Index) != h.Generation {
		return nil, fmt.Errorf("node handle %d is stale: %w", h.Index, core.ErrNotFound)
	}
	return n, nil
}

// IsAlive reports whether the handle still resolves to a live node.
func (s *Scene) IsAlive(h NodeHandle) bool {
	_, err := s.resolve(h)
	return err == nil
}

// CreateNode adds a root node.
func (s *Scene) CreateNode(name string) NodeHandle {
	h := s.allocNode(name)
	s.roots = append(s.roots, h)
	return h
}

// CreateChildNode adds a node under parent, at the end of its child list.
func (s *Scene) CreateChildNode(parent NodeHandle, name string) (NodeHandle, error) {
	p, err := s.resolve(parent)
	if err != nil {
		return InvalidNodeHandle, err
	}
	h := s.allocNode(name)
	s.attach(p, parent, s.nodes[h.Index], h)
	return h, nil
}

func (s *Scene) allocNode(name string) NodeHandle {
	var index uint32
	if n := len(s.freeList); n > 0 {
		index = s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
	} else {
		index = uint32(len(s.nodes))
		s.nodes = append(s.nodes, &nodeImpl{})
		if index >= s.generations.Capacity() {
			s.generations.Resize(s.generations.Capacity() * 2)
		}
	}
	s.nodes[index].reset(name)
	s.aliveCount++
	return NodeHandle{Index: index, Generation: s.generations.Load(index)}
}

func (s *Scene) attach(parent *nodeImpl, parentHandle NodeHandle, child *nodeImpl, childHandle NodeHandle) {
	child.parent = parentHandle
	if parent.lastChild.IsValid() {
		last := s.nodes[parent.lastChild.Index]
		last.nextSibling = childHandle
		child.prevSibling = parent.lastChild
	} else {
		parent.firstChild = childHandle
	}
	parent.lastChild = childHandle
}

func (s *Scene) detach(node *nodeImpl, handle NodeHandle) {
	if node.parent.IsValid() {
		parent := s.nodes[node.parent.Index]
		if parent.firstChild == handle {
			parent.firstChild = node.nextSibling
		}
		if parent.lastChild == handle {
			parent.lastChild = node.prevSibling
		}
	} else {
		for i, r := range s.roots {
			if r == handle {
				s.roots = append(s.roots[:i], s.roots[i+1:]...)
				break
			}
		}
	}
	if node.prevSibling.IsValid() {
		s.nodes[node.prevSibling.Index].nextSibling = node.nextSibling
	}
	if node.nextSibling.IsValid() {
		s.nodes[node.nextSibling.Index].prevSibling = node.prevSibling
	}
	node.parent = InvalidNodeHandle
	node.prevSibling = InvalidNodeHandle
	node.nextSibling = InvalidNodeHandle
}

// SetParent moves the node under a new parent, or makes it a root when
// parent is invalid. Reparenting a node under its own descendant fails.
func (s *Scene) SetParent(child, parent NodeHandle) error {
	c, err := s.resolve(child)
	if err != nil {
		return err
	}
	if !parent.IsValid() {
		s.detach(c, child)
		s.roots = append(s.roots, child)
		return nil
	}
	p, err := s.resolve(parent)
	if err != nil {
		return err
	}
	for cursor := parent; cursor.IsValid(); {
		if cursor == child {
			return fmt.Errorf("reparenting '%s' under its own subtree: %w", c.name, core.ErrInvalidArgument)
		}
		cursor = s.nodes[cursor.Index].parent
	}
	s.detach(c, child)
	s.attach(p, parent, c, child)
	return nil
}

// DestroyNode removes the node and its whole subtree, invalidating every
// outstanding handle into it.
func (s *Scene) DestroyNode(h NodeHandle) error {
	n, err := s.resolve(h)
	if err != nil {
		return err
	}
	s.detach(n, h)
	s.destroySubtree(n, h)
	return nil
}

func (s *Scene) destroySubtree(n *nodeImpl, h NodeHandle) {
	for child := n.firstChild; child.IsValid(); {
		next := s.nodes[child.Index].nextSibling
		s.destroySubtree(s.nodes[child.Index], child)
		child = next
	}
	n.alive = false
	s.generations.Bump(h.Index)
	s.freeList = append(s.freeList, h.Index)
	s.aliveCount--
}

// NodeName returns the node's display name.
func (s *Scene) NodeName(h NodeHandle) (string, error) {
	n, err := s.resolve(h)
	if err != nil {
		return "", err
	}
	return n.name, nil
}

func (s *Scene) SetNodeName(h NodeHandle, name string) error {
	n, err := s.resolve(h)
	if err != nil {
		return err
	}
	n.name = name
	return nil
}

// Flags exposes the node's flag set for staging writes and reading
// effective values.
func (s *Scene) Flags(h NodeHandle) (*FlagSet, error) {
	n, err := s.resolve(h)
	if err != nil {
		return nil, err
	}
	return &n.flags, nil
}

// AddTransform attaches a transform component; adding twice returns the
// existing one.
func (s *Scene) AddTransform(h NodeHandle) (*TransformComponent, error) {
	n, err := s.resolve(h)
	if err != nil {
		return nil, err
	}
	if n.transform == nil {
		n.transform = newTransformComponent()
	}
	return n.transform, nil
}

// Transform returns the node's transform component, or not-found when none
// is attached.
func (s *Scene) Transform(h NodeHandle) (*TransformComponent, error) {
	n, err := s.resolve(h)
	if err != nil {
		return nil, err
	}
	if n.transform == nil {
		return nil, fmt.Errorf("node '%s' has no transform: %w", n.name, core.ErrNotFound)
	}
	return n.transform, nil
}

// AddRenderable attaches mesh data to the node.
func (s *Scene) AddRenderable(h NodeHandle, r *RenderableComponent) error {
	n, err := s.resolve(h)
	if err != nil {
		return err
	}
	if r == nil || r.Mesh == nil {
		return fmt.Errorf("renderable needs a mesh: %w", core.ErrInvalidArgument)
	}
	n.renderable = r
	return nil
}

func (s *Scene) Renderable(h NodeHandle) (*RenderableComponent, error) {
	n, err := s.resolve(h)
	if err != nil {
		return nil, err
	}
	if n.renderable == nil {
		return nil, fmt.Errorf("node '%s' has no renderable: %w", n.name, core.ErrNotFound)
	}
	return n.renderable, nil
}

func (s *Scene) AddLight(h NodeHandle, l *LightComponent) error {
	n, err := s.resolve(h)
	if err != nil {
		return err
	}
	n.light = l
	return nil
}

func (s *Scene) AddCamera(h NodeHandle, c *CameraComponent) error {
	n, err := s.resolve(h)
	if err != nil {
		return err
	}
	n.camera = c
	return nil
}

func (s *Scene) Camera(h NodeHandle) (*CameraComponent, error) {
	n, err := s.resolve(h)
	if err != nil {
		return nil, err
	}
	if n.camera == nil {
		return nil, fmt.Errorf("node '%s' has no camera: %w", n.name, core.ErrNotFound)
	}
	return n.camera, nil
}

// Parent returns the node's parent handle; invalid for roots.
func (s *Scene) Parent(h NodeHandle) (NodeHandle, error) {
	n, err := s.resolve(h)
	if err != nil {
		return InvalidNodeHandle, err
	}
	return n.parent, nil
}

// Children collects the node's child handles in sibling order.
func (s *Scene) Children(h NodeHandle) ([]NodeHandle, error) {
	n, err := s.resolve(h)
	if err != nil {
		return nil, err
	}
	var out []NodeHandle
	for child := n.firstChild; child.IsValid(); child = s.nodes[child.Index].nextSibling {
		out = append(out, child)
	}
	return out, nil
}

// Roots returns the root handles in creation order.
func (s *Scene) Roots() []NodeHandle {
	out := make([]NodeHandle, len(s.roots))
	copy(out, s.roots)
	return out
}

// ProcessDirtyFlags applies every staged flag write and recomposes
// effective values top down, so inherited flags observe their parent's
// state from this same pass.
func (s *Scene) ProcessDirtyFlags() {
	for _, root := range s.roots {
		s.processFlags(s.nodes[root.Index], defaultTrueMask)
	}
}

func (s *Scene) processFlags(n *nodeImpl, parentEffective uint32) {
	n.flags.process(parentEffective)
	for child := n.firstChild; child.IsValid(); child = s.nodes[child.Index].nextSibling {
		s.processFlags(s.nodes[child.Index], n.flags.effective)
	}
}

// UpdateTransforms recomputes cached world matrices. Only dirty nodes and
// subtrees below a changed parent are touched; a node whose effective
// ignore-parent-transform flag is set anchors its subtree at identity and
// is not recomputed for parent changes.
func (s *Scene) UpdateTransforms() {
	identity := math.NewMat4Identity()
	for _, root := range s.roots {
		s.updateTransform(s.nodes[root.Index], identity, false)
	}
}

func (s *Scene) updateTransform(n *nodeImpl, parentWorld math.Mat4, parentChanged bool) {
	if n.flags.EffectiveValue(FlagIgnoreParentTransform) {
		parentWorld = math.NewMat4Identity()
		parentChanged = false
	}
	childWorld := parentWorld
	childChanged := parentChanged
	if n.transform != nil {
		if n.transform.dirty || parentChanged || !n.transform.hasWorld {
			n.transform.UpdateWorldTransform(parentWorld)
			n.worldChanged = true
		} else {
			n.worldChanged = false
		}
		childWorld = n.transform.world
		childChanged = n.worldChanged
	}
	for child := n.firstChild; child.IsValid(); child = s.nodes[child.Index].nextSibling {
		s.updateTransform(s.nodes[child.Index], childWorld, childChanged)
	}
}
