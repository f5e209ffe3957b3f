package sentinel

// ring is a bounded FIFO that keeps the most recent cap items.
type ring[T any] struct {
	items []T
	cap   int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{items: make([]T, 0, capacity), cap: capacity}
}

// push appends v, evicting the oldest item when full.
func (r *ring[T]) push(v T) {
	if len(r.items) == r.cap {
		copy(r.items, r.items[1:])
		r.items = r.items[:len(r.items)-1]
	}
	r.items = append(r.items, v)
}

// last returns up to n of the most recent items, oldest first.
func (r *ring[T]) last(n int) []T {
	if n > len(r.items) {
		n = len(r.items)
	}
	return r.items[len(r.items)-n:]
}

func (r *ring[T]) len() int { return len(r.items) }

func (r *ring[T]) full() bool { return len(r.items) == r.cap }

func (r *ring[T]) reset() { r.items = r.items[:0] }

// snapshot returns a copy of the contents, oldest first.
func (r *ring[T]) snapshot() []T {
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}
