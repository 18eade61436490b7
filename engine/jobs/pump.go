package jobs

import (
	"sync"
	"time"

	"github.com/spaghettifunk/quiver/engine/containers"
)

// Pump collects completion callbacks produced on worker goroutines and
// replays them from the owner's update thread. Update dispatches at least
// one callback per call, then keeps going until the frame budget is spent.
// A zero budget means unlimited.
type Pump struct {
	mu     sync.Mutex
	queue  *containers.RingQueue
	budget time.Duration
}

func NewPump(initialCapacity int) *Pump {
	return &Pump{
		queue: containers.NewRingQueue(initialCapacity),
	}
}

// SetBudget sets the maximum wall-clock time Update may spend per frame.
func (p *Pump) SetBudget(budget time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.budget = budget
}

// Enqueue schedules fn for the next Update. Safe to call from any goroutine.
func (p *Pump) Enqueue(fn func()) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue.Enqueue(fn)
}

// Update runs pending callbacks within the frame budget. Should happen once
// an update cycle, on the same thread every time.
func (p *Pump) Update() {
	start := time.Now()
	for {
		p.mu.Lock()
		budget := p.budget
		value, err := p.queue.Dequeue()
		p.mu.Unlock()
		if err != nil {
			return
		}

		value.(func())()

		if budget > 0 && time.Since(start) >= budget {
			return
		}
	}
}

// Pending reports how many callbacks are waiting for the next Update.
func (p *Pump) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}
