package jobs

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/quiver/engine/core"
)

type Priority uint8

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// Task describes one unit of background work. OnStart runs on a worker
// goroutine; exactly one of OnComplete/OnFailure is invoked afterwards,
// still on the worker. User-facing callbacks must not be dispatched from
// here directly; resolve an operation and let the Pump deliver them on the
// main thread.
type Task struct {
	Priority   Priority
	OnStart    func() (interface{}, error)
	OnComplete func(result interface{})
	OnFailure  func(err error)
}

type System struct {
	numWorkers int
	normal     chan Task
	high       chan Task
	wg         sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")

func NewSystem(numWorkers int, channelSize int) (*System, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	s := &System{
		numWorkers: numWorkers,
		normal:     make(chan Task, channelSize),
		high:       make(chan Task, channelSize),
	}

	s.start()

	return s, nil
}

func (s *System) start() {
	for i := 0; i < s.numWorkers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			high, normal := s.high, s.normal
			for high != nil || normal != nil {
				// Prefer queued high-priority work before picking fairly.
				if high != nil {
					select {
					case t, ok := <-high:
						if !ok {
							high = nil
							continue
						}
						s.run(t)
						continue
					default:
					}
				}
				select {
				case t, ok := <-high:
					if !ok {
						high = nil
						continue
					}
					s.run(t)
				case t, ok := <-normal:
					if !ok {
						normal = nil
						continue
					}
					s.run(t)
				}
			}
		}()
	}
}

func (s *System) run(t Task) {
	if t.OnStart == nil {
		return
	}
	result, err := t.OnStart()
	if err != nil {
		core.LogError(err.Error())
		if t.OnFailure != nil {
			t.OnFailure(err)
		}
		return
	}
	if t.OnComplete != nil {
		t.OnComplete(result)
	}
}

// Submit queues the provided task for execution. Tasks submitted after
// Shutdown are dropped with a warning.
func (s *System) Submit(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		core.LogWarn("job system is shut down, task dropped")
		return
	}
	if t.Priority == PriorityHigh {
		s.high <- t
		return
	}
	s.normal <- t
}

// Shuts the job system down, waiting for in-flight tasks to finish.
func (s *System) Shutdown() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.high)
	close(s.normal)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}
