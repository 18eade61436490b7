package containers

import "errors"

var ErrQueueEmpty = errors.New("queue is empty")

// RingQueue is a FIFO over a circular buffer. When the buffer fills up it
// doubles in place, so enqueues never drop values. Not safe for concurrent
// use; callers hold their own lock.
type RingQueue struct {
	data       []interface{}
	readIndex  int
	writeIndex int
	count      int
}

// Create a new RingQueue with the given starting capacity.
func NewRingQueue(size int) *RingQueue {
	if size < 1 {
		size = 1
	}
	return &RingQueue{
		data: make([]interface{}, size),
	}
}

// Enqueue adds an element to the queue, growing the buffer when full.
func (rq *RingQueue) Enqueue(value interface{}) {
	if rq.count == len(rq.data) {
		rq.grow()
	}
	rq.data[rq.writeIndex] = value
	rq.writeIndex = (rq.writeIndex + 1) % len(rq.data)
	rq.count++
}

// Dequeue removes and returns the oldest element.
func (rq *RingQueue) Dequeue() (interface{}, error) {
	if rq.count == 0 {
		return nil, ErrQueueEmpty
	}
	value := rq.data[rq.readIndex]
	rq.data[rq.readIndex] = nil
	rq.readIndex = (rq.readIndex + 1) % len(rq.data)
	rq.count--
	return value, nil
}

func (rq *RingQueue) Len() int {
	return rq.count
}

func (rq *RingQueue) IsEmpty() bool {
	return rq.count == 0
}

func (rq *RingQueue) grow() {
	next := make([]interface{}, len(rq.data)*2)
	for i := 0; i < rq.count; i++ {
		next[i] = rq.data[(rq.readIndex+i)%len(rq.data)]
	}
	rq.data = next
	rq.readIndex = 0
	rq.writeIndex = rq.count
}
