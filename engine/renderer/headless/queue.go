package headless

import (
	"fmt"
	"sync"

	"github.com/oxygen3d/oxygen/engine/core"
	"github.com/oxygen3d/oxygen/engine/renderer"
)

// Queue is a headless command queue. Fence values are handed out
// monotonically at submit; with auto completion (the default) a submission
// retires immediately, otherwise tests drive CompleteThrough explicitly.
type Queue struct {
	mu            sync.Mutex
	auto          bool
	lastSubmitted uint64
	completed     uint64
}

func (q *Queue) Submit(rec renderer.CommandRecorder) (uint64, error) {
	r, ok := rec.(*Recorder)
	if !ok {
		return 0, fmt.Errorf("foreign recorder submitted to headless queue: %w", core.ErrInvalidArgument)
	}
	if !r.closed {
		return 0, fmt.Errorf("recorder submitted before End: %w", core.ErrStateViolation)
	}

	q.mu.Lock()
	q.lastSubmitted++
	fence := q.lastSubmitted
	q.mu.Unlock()

	// Execute the recorded commands "on the GPU".
	for _, op := range r.ops {
		op()
	}

	q.mu.Lock()
	if q.auto && fence > q.completed {
		q.completed = fence
	}
	q.mu.Unlock()
	return fence, nil
}

func (q *Queue) CompletedFenceValue() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completed
}

func (q *Queue) LastSubmittedFenceValue() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastSubmitted
}

// CompleteThrough retires submissions up to the given fence value. Lower
// values are ignored.
func (q *Queue) CompleteThrough(value uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if value > q.completed {
		if value > q.lastSubmitted {
			value = q.lastSubmitted
		}
		q.completed = value
	}
}

func (q *Queue) WaitIdle() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = q.lastSubmitted
	return nil
}
