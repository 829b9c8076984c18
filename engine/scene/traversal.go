package scene

// FilterResult classifies a node before visiting.
type FilterResult uint8

const (
	// FilterAccept visits the node and descends into its children.
	FilterAccept FilterResult = iota
	// FilterReject skips the node but still descends.
	FilterReject
	// FilterRejectSubTree skips the node and its whole subtree.
	FilterRejectSubTree
)

// VisitResult steers the traversal after visiting a node.
type VisitResult uint8

const (
	VisitContinue VisitResult = iota
	VisitSkipSubtree
	VisitStop
)

// VisitedNode is the read view handed to filters and visitors.
type VisitedNode struct {
	Handle NodeHandle
	Depth  int
	scene  *Scene
	impl   *nodeImpl
}

func (v VisitedNode) Name() string {
	return v.impl.name
}

func (v VisitedNode) Flags() *FlagSet {
	return &v.impl.flags
}

func (v VisitedNode) Transform() *TransformComponent {
	return v.impl.transform
}

func (v VisitedNode) Renderable() *RenderableComponent {
	return v.impl.renderable
}

func (v VisitedNode) Camera() *CameraComponent {
	return v.impl.camera
}

func (v VisitedNode) Light() *LightComponent {
	return v.impl.light
}

// NodeFilter decides whether a node (and possibly its subtree) takes part
// in a traversal. It receives the filter result of the node's parent so
// rejection can be made sticky or overridden per level.
type NodeFilter func(node VisitedNode, parentResult FilterResult) FilterResult

// NodeVisitor consumes accepted nodes and steers the traversal.
type NodeVisitor func(node VisitedNode) VisitResult

// AcceptAll is the identity filter.
func AcceptAll(VisitedNode, FilterResult) FilterResult {
	return FilterAccept
}

type traversalEntry struct {
	handle       NodeHandle
	depth        int
	parentResult FilterResult
}

// TraverseBFS walks the scene breadth first, in level order, siblings in
// creation order. Filters prune before the visitor runs; a visitor
// returning VisitStop aborts the whole walk.
func (s *Scene) TraverseBFS(filter NodeFilter, visitor NodeVisitor) {
	if filter == nil {
		filter = AcceptAll
	}
	queue := make([]traversalEntry, 0, s.aliveCount)
	for _, root := range s.roots {
		queue = append(queue, traversalEntry{handle: root, parentResult: FilterAccept})
	}
	for len(queue) > 0 {
		entry := queue[0]
		queue = queue[1:]

		n := s.nodes[entry.handle.Index]
		visited := VisitedNode{Handle: entry.handle, Depth: entry.depth, scene: s, impl: n}
		result := filter(visited, entry.parentResult)
		if result == FilterRejectSubTree {
			continue
		}
		if result == FilterAccept {
			switch visitor(visited) {
			case VisitStop:
				return
			case VisitSkipSubtree:
				continue
			}
		}
		for child := n.firstChild; child.IsValid(); child = s.nodes[child.Index].nextSibling {
			queue = append(queue, traversalEntry{handle: child, depth: entry.depth + 1, parentResult: result})
		}
	}
}

// TraverseDFS walks the scene depth first in pre-order, siblings in
// creation order, using an explicit stack.
func (s *Scene) TraverseDFS(filter NodeFilter, visitor NodeVisitor) {
	if filter == nil {
		filter = AcceptAll
	}
	stack := make([]traversalEntry, 0, s.aliveCount)
	for i := len(s.roots) - 1; i >= 0; i-- {
		stack = append(stack, traversalEntry{handle: s.roots[i], parentResult: FilterAccept})
	}
	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := s.nodes[entry.handle.Index]
		visited := VisitedNode{Handle: entry.handle, Depth: entry.depth, scene: s, impl: n}
		result := filter(visited, entry.parentResult)
		if result == FilterRejectSubTree {
			continue
		}
		if result == FilterAccept {
			switch visitor(visited) {
			case VisitStop:
				return
			case VisitSkipSubtree:
				continue
			}
		}
		// Push children reversed so the first child pops first.
		var children []NodeHandle
		for child := n.firstChild; child.IsValid(); child = s.nodes[child.Index].nextSibling {
			children = append(children, child)
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, traversalEntry{handle: children[i], depth: entry.depth + 1, parentResult: result})
		}
	}
}
