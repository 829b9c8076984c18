package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTestTree creates:
//
//	root
//	├── a
//	│   ├── a1
//	│   └── a2
//	└── b
//	    └── b1
func buildTestTree(t *testing.T) (*Scene, map[string]NodeHandle) {
	t.Helper()
	s := NewScene("test")
	handles := make(map[string]NodeHandle)

	handles["root"] = s.CreateNode("root")
	for _, spec := range []struct{ name, parent string }{
		{"a", "root"},
		{"b", "root"},
		{"a1", "a"},
		{"a2", "a"},
		{"b1", "b"},
	} {
		h, err := s.CreateChildNode(handles[spec.parent], spec.name)
		require.NoError(t, err)
		handles[spec.name] = h
	}
	return s, handles
}

func collectNames(s *Scene, traverse func(NodeFilter, NodeVisitor), filter NodeFilter) []string {
	var names []string
	traverse(filter, func(node VisitedNode) VisitResult {
		names = append(names, node.Name())
		return VisitContinue
	})
	return names
}

func TestBFSVisitsLevelOrder(t *testing.T) {
	s, _ := buildTestTree(t)
	names := collectNames(s, s.TraverseBFS, nil)
	assert.Equal(t, []string{"root", "a", "b", "a1", "a2", "b1"}, names)
}

func TestDFSVisitsPreOrder(t *testing.T) {
	s, _ := buildTestTree(t)
	names := collectNames(s, s.TraverseDFS, nil)
	assert.Equal(t, []string{"root", "a", "a1", "a2", "b", "b1"}, names)
}

func TestFilterRejectSkipsNodeNotChildren(t *testing.T) {
	s, _ := buildTestTree(t)
	filter := func(node VisitedNode, parent FilterResult) FilterResult {
		if node.Name() == "a" {
			return FilterReject
		}
		return FilterAccept
	}
	names := collectNames(s, s.TraverseBFS, filter)
	assert.Equal(t, []string{"root", "b", "a1", "a2", "b1"}, names)
}

func TestFilterRejectSubTreePrunes(t *testing.T) {
	s, _ := buildTestTree(t)
	filter := func(node VisitedNode, parent FilterResult) FilterResult {
		if node.Name() == "a" {
			return FilterRejectSubTree
		}
		return FilterAccept
	}

	for _, traverse := range []func(NodeFilter, NodeVisitor){s.TraverseBFS, s.TraverseDFS} {
		names := collectNames(s, traverse, filter)
		assert.NotContains(t, names, "a")
		assert.NotContains(t, names, "a1")
		assert.NotContains(t, names, "a2")
		assert.Contains(t, names, "b1")
	}
}

func TestFilterSeesParentResult(t *testing.T) {
	s, _ := buildTestTree(t)
	var sticky []string
	filter := func(node VisitedNode, parent FilterResult) FilterResult {
		if node.Name() == "a" || parent == FilterReject {
			sticky = append(sticky, node.Name())
			return FilterReject
		}
		return FilterAccept
	}
	names := collectNames(s, s.TraverseDFS, filter)
	// "a" and its descendants are all rejected through the parent result.
	assert.Equal(t, []string{"root", "b", "b1"}, names)
	assert.Equal(t, []string{"a", "a1", "a2"}, sticky)
}

func TestVisitStopAborts(t *testing.T) {
	s, _ := buildTestTree(t)
	var names []string
	s.TraverseBFS(nil, func(node VisitedNode) VisitResult {
		names = append(names, node.Name())
		if node.Name() == "a" {
			return VisitStop
		}
		return VisitContinue
	})
	assert.Equal(t, []string{"root", "a"}, names)
}

func TestVisitSkipSubtree(t *testing.T) {
	s, _ := buildTestTree(t)
	var names []string
	s.TraverseDFS(nil, func(node VisitedNode) VisitResult {
		names = append(names, node.Name())
		if node.Name() == "a" {
			return VisitSkipSubtree
		}
		return VisitContinue
	})
	assert.Equal(t, []string{"root", "a", "b", "b1"}, names)
}

func TestTraversalDepths(t *testing.T) {
	s, _ := buildTestTree(t)
	depths := make(map[string]int)
	s.TraverseBFS(nil, func(node VisitedNode) VisitResult {
		depths[node.Name()] = node.Depth
		return VisitContinue
	})
	assert.Equal(t, 0, depths["root"])
	assert.Equal(t, 1, depths["a"])
	assert.Equal(t, 2, depths["b1"])
}
