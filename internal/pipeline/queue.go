package pipeline

import "sync"

// Queue is a concurrent LIFO work queue with duplicate rejection and
// quiescence detection.
//
// An item is "queued" from Push until Pop hands it out. Pushing an item that
// is currently queued is a no-op. Once popped, the same item may be pushed
// again; callers that need at-most-once processing keep their own visited
// set.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	// items holds queued work, popped from the end.
	items []string

	// queued mirrors items for duplicate checks.
	queued map[string]struct{}

	// active counts items handed out by Pop and not yet marked Done.
	active int

	// closed stops all Pops.
	closed bool

	// onChange is called with the queue length after every change.
	onChange func(int)
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithLengthObserver calls fn with the new queue length after every push
// and pop. fn is called with the queue lock held and must not call back
// into the queue.
func WithLengthObserver(fn func(int)) QueueOption {
	return func(q *Queue) {
		q.onChange = fn
	}
}

// NewQueue creates an empty queue.
func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{
		items:  make([]string, 0),
		queued: make(map[string]struct{}),
	}
	q.cond = sync.NewCond(&q.mu)

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Push adds item to the queue. It returns false if the item is already
// queued or the queue is closed.
func (q *Queue) Push(item string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if _, ok := q.queued[item]; ok {
		return false
	}

	q.queued[item] = struct{}{}
	q.items = append(q.items, item)
	q.changed()
	q.cond.Signal()

	return true
}

// Pop removes and returns the most recently pushed item, counting it as
// active until Done is called.
//
// Pop blocks while the queue is empty and other items are still active,
// since those may push more work. It returns false once the queue is closed,
// or once it is empty with nothing active.
func (q *Queue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.closed {
			return "", false
		}
		if n := len(q.items); n > 0 {
			item := q.items[n-1]
			q.items = q.items[:n-1]
			delete(q.queued, item)
			q.active++
			q.changed()
			return item, true
		}
		if q.active == 0 {
			q.cond.Broadcast()
			return "", false
		}
		q.cond.Wait()
	}
}

// Done marks one popped item as finished.
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.active > 0 {
		q.active--
	}
	if q.active == 0 && len(q.items) == 0 {
		q.cond.Broadcast()
	}
}

// Close stops the queue. Pending and future Pops return false and Push
// rejects everything. Items still queued are dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Contains reports whether item is currently queued.
func (q *Queue) Contains(item string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.queued[item]
	return ok
}

func (q *Queue) changed() {
	if q.onChange != nil {
		q.onChange(len(q.items))
	}
}
