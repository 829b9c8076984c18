package scene

// QueryPredicate selects nodes during a query traversal.
type QueryPredicate func(node VisitedNode) bool

// FindFirst returns the first node (BFS order) matching the predicate.
func (s *Scene) FindFirst(pred QueryPredicate) (NodeHandle, bool) {
	found := InvalidNodeHandle
	s.TraverseBFS(nil, func(node VisitedNode) VisitResult {
		if pred(node) {
			found = node.Handle
			return VisitStop
		}
		return VisitContinue
	})
	return found, found.IsValid()
}

// FindAll collects every node matching the predicate, in BFS order.
func (s *Scene) FindAll(pred QueryPredicate) []NodeHandle {
	var out []NodeHandle
	s.TraverseBFS(nil, func(node VisitedNode) VisitResult {
		if pred(node) {
			out = append(out, node.Handle)
		}
		return VisitContinue
	})
	return out
}

// Any reports whether at least one node matches, short-circuiting on the
// first hit.
func (s *Scene) Any(pred QueryPredicate) bool {
	_, ok := s.FindFirst(pred)
	return ok
}

// FindByName resolves the first node with the given name.
func (s *Scene) FindByName(name string) (NodeHandle, bool) {
	return s.FindFirst(func(node VisitedNode) bool {
		return node.Name() == name
	})
}

type batchOpKind uint8

const (
	batchFindFirst batchOpKind = iota
	batchAny
	batchCollect
	batchCount
)

type batchOp struct {
	kind      batchOpKind
	pred      QueryPredicate
	done      bool
	found     NodeHandle
	matched   bool
	count     int
	collected []NodeHandle
}

// BatchQuery evaluates many operations in a single traversal. Find-first
// and any operations stop matching after their first hit; the traversal
// itself ends early once every operation is satisfied.
type BatchQuery struct {
	scene *Scene
	ops   []*batchOp
}

func (s *Scene) NewBatchQuery() *BatchQuery {
	return &BatchQuery{scene: s}
}

// FindFirst registers a find-first operation and returns its op index.
func (b *BatchQuery) FindFirst(pred QueryPredicate) int {
	b.ops = append(b.ops, &batchOp{kind: batchFindFirst, pred: pred, found: InvalidNodeHandle})
	return len(b.ops) - 1
}

// Any registers an existence operation and returns its op index.
func (b *BatchQuery) Any(pred QueryPredicate) int {
	b.ops = append(b.ops, &batchOp{kind: batchAny, pred: pred, found: InvalidNodeHandle})
	return len(b.ops) - 1
}

// Collect registers an operation gathering every match.
func (b *BatchQuery) Collect(pred QueryPredicate) int {
	b.ops = append(b.ops, &batchOp{kind: batchCollect, pred: pred, found: InvalidNodeHandle})
	return len(b.ops) - 1
}

// Count registers an operation counting matches.
func (b *BatchQuery) Count(pred QueryPredicate) int {
	b.ops = append(b.ops, &batchOp{kind: batchCount, pred: pred, found: InvalidNodeHandle})
	return len(b.ops) - 1
}

// Execute runs one BFS traversal evaluating every registered operation.
func (b *BatchQuery) Execute() {
	pending := len(b.ops)
	if pending == 0 {
		return
	}
	b.scene.TraverseBFS(nil, func(node VisitedNode) VisitResult {
		for _, op := range b.ops {
			if op.done || !op.pred(node) {
				continue
			}
			switch op.kind {
			case batchFindFirst, batchAny:
				op.found = node.Handle
				op.matched = true
				op.done = true
				pending--
			case batchCollect:
				op.collected = append(op.collected, node.Handle)
				op.matched = true
			case batchCount:
				op.count++
				op.matched = true
			}
		}
		if pending == 0 {
			return VisitStop
		}
		return VisitContinue
	})
}

// FirstResult returns the handle found by a find-first or any operation.
func (b *BatchQuery) FirstResult(op int) (NodeHandle, bool) {
	o := b.ops[op]
	return o.found, o.matched
}

// CollectedResult returns the matches gathered by a collect operation.
func (b *BatchQuery) CollectedResult(op int) []NodeHandle {
	return b.ops[op].collected
}

// CountResult returns the tally of a count operation.
func (b *BatchQuery) CountResult(op int) int {
	return b.ops[op].count
}
