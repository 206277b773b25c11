package recorder

import (
	"sync"
)

// spool is a thread-safe ring buffer that doubles its capacity at 70% full,
// so the feed side never blocks on a slow database. The consumer side blocks
// on Receive until an event arrives or the spool is closed.
type spool[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int
	closed   bool
}

// newSpool creates a spool with the given initial capacity.
func newSpool[T any](initialCapacity int) *spool[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	s := &spool[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Send adds an item, growing the ring when it reaches 70% capacity.
// Returns false if the spool is closed.
func (s *spool[T]) Send(item T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	threshold := (s.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if s.count+1 >= threshold {
		s.grow()
	}

	s.buf[s.tail] = item
	s.tail = (s.tail + 1) % s.capacity
	s.count++

	s.cond.Signal()
	return true
}

// Receive removes and returns the oldest item, blocking until one is
// available. After Close, remaining items drain in order; once empty it
// returns the zero value and false.
func (s *spool[T]) Receive() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.count == 0 && !s.closed {
		s.cond.Wait()
	}

	if s.count == 0 {
		var zero T
		return zero, false
	}

	return s.take(), true
}

// TryReceive removes and returns the oldest item without blocking.
func (s *spool[T]) TryReceive() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == 0 {
		var zero T
		return zero, false
	}

	return s.take(), true
}

// take pops the head item. Must be called with the lock held and count > 0.
func (s *spool[T]) take() T {
	item := s.buf[s.head]
	var zero T
	s.buf[s.head] = zero // clear reference for GC
	s.head = (s.head + 1) % s.capacity
	s.count--
	return item
}

// Close stops intake. Senders get false; receivers drain whatever remains.
func (s *spool[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.cond.Broadcast()
}

// Len returns the current number of buffered items.
func (s *spool[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Cap returns the current ring capacity.
func (s *spool[T]) Cap() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

// grow doubles the ring capacity. Must be called with the lock held.
func (s *spool[T]) grow() {
	newCapacity := s.capacity * 2
	newBuf := make([]T, newCapacity)

	if s.count > 0 {
		if s.head < s.tail {
			copy(newBuf, s.buf[s.head:s.tail])
		} else {
			n := copy(newBuf, s.buf[s.head:])
			copy(newBuf[n:], s.buf[:s.tail])
		}
	}

	s.buf = newBuf
	s.head = 0
	s.tail = s.count
	s.capacity = newCapacity
}
