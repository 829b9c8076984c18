package systems

import (
	"context"
	"fmt"
	"sync"

	"github.com/oxygen3d/oxygen/engine/core"
)

// JobTask is one unit of background work. OnStart runs on a worker
// goroutine; OnComplete or OnFailure runs afterwards on the same worker with
// whatever OnStart produced.
type JobTask struct {
	Name       string
	OnStart    func(ctx context.Context) (interface{}, error)
	OnComplete func(result interface{})
	OnFailure  func(err error)
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
		cancel:     cancel,
	}

	js.start(ctx)

	return js, nil
}

func (js *JobSystem) start(ctx context.Context) {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				result, err := job.OnStart(ctx)
				if err != nil {
					core.LogError("job '%s' failed: %s", job.Name, err.Error())
					if job.OnFailure != nil {
						job.OnFailure(err)
					}
					continue
				}
				if job.OnComplete != nil {
					job.OnComplete(result)
				}
			}
		}()
	}
}

// Shutdown cancels in-flight work and drains the workers.
func (js *JobSystem) Shutdown() error {
	js.cancel()
	close(js.jobQueue)
	js.wg.Wait()
	return nil
}

// Submit queues the job, blocking while the queue is full.
func (js *JobSystem) Submit(jt JobTask) {
	js.jobQueue <- jt
}

// SubmitNonBlocking queues the job from a detached goroutine and returns
// immediately.
func (js *JobSystem) SubmitNonBlocking(jt JobTask) {
	go js.Submit(jt)
}
