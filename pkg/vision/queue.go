package vision

import "sync/atomic"

// Queue is an unbounded FIFO of batches between one producer and one
// consumer. Push never waits on the consumer, so a slow consumer costs
// memory rather than stalling the producer. Batches come out in push order.
type Queue struct {
	in      chan Batch
	out     chan Batch
	pending atomic.Int64
}

func NewQueue() *Queue {
	q := &Queue{
		in:  make(chan Batch),
		out: make(chan Batch),
	}
	go q.run()
	return q
}

// Push enqueues a batch. It must not be called after Close.
func (q *Queue) Push(b Batch) {
	q.pending.Add(1)
	q.in <- b
}

// Out delivers batches in push order. It is closed once the queue is closed
// and drained.
func (q *Queue) Out() <-chan Batch {
	return q.out
}

// Close stops accepting batches. Already queued batches are still delivered.
func (q *Queue) Close() {
	close(q.in)
}

// Len is the number of batches pushed but not yet received.
func (q *Queue) Len() int {
	return int(q.pending.Load())
}

func (q *Queue) run() {
	defer close(q.out)
	var buf []Batch
	in := q.in
	for in != nil || len(buf) > 0 {
		var out chan Batch
		var next Batch
		if len(buf) > 0 {
			out = q.out
			next = buf[0]
		}
		select {
		case b, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			buf = append(buf, b)
		case out <- next:
			buf[0] = nil
			buf = buf[1:]
			q.pending.Add(-1)
		}
	}
}
