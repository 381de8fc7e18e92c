// Package history keeps a bounded, ordered window over an unbounded stream
// of samples. Memory stays fixed no matter how long the stream runs.
package history

import "sync"

// Capacity is the fixed number of entries a Buffer retains.
const Capacity = 100

// Buffer is a fixed-capacity FIFO ring. When full, appending evicts the
// single oldest entry. It is safe for concurrent use.
type Buffer[T any] struct {
	mu    sync.RWMutex
	items []T
	start int // index of the oldest entry
	n     int
}

// New returns an empty buffer holding at most Capacity entries.
func New[T any]() *Buffer[T] {
	return &Buffer[T]{items: make([]T, Capacity)}
}

// Append adds v as the newest entry, evicting the oldest when full.
func (b *Buffer[T]) Append(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.n < len(b.items) {
		b.items[(b.start+b.n)%len(b.items)] = v
		b.n++
		return
	}
	b.items[b.start] = v
	b.start = (b.start + 1) % len(b.items)
}

// Snapshot returns a copy of the retained entries, oldest first. The
// returned slice never aliases the buffer's storage.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, b.n)
	for i := 0; i < b.n; i++ {
		out[i] = b.items[(b.start+i)%len(b.items)]
	}
	return out
}

// Len returns the number of retained entries.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.n
}

// Latest returns the newest entry, if any.
func (b *Buffer[T]) Latest() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var zero T
	if b.n == 0 {
		return zero, false
	}
	return b.items[(b.start+b.n-1)%len(b.items)], true
}

// Reset drops every entry.
func (b *Buffer[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.start, b.n = 0, 0
}
