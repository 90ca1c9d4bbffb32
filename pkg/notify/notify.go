// Package notify provides synchronous, ordered listener lists for the
// single-threaded game loop.
package notify

// Registry holds listeners that are called synchronously in registration
// order. It is not safe for concurrent use.
type Registry[T any] struct {
	next uint64
	subs []subscription[T]
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// Add registers fn and returns a function that removes it. Calling the
// returned function more than once is a no-op.
func (r *Registry[T]) Add(fn func(T)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	r.next++
	id := r.next
	r.subs = append(r.subs, subscription[T]{id: id, fn: fn})
	return func() { r.remove(id) }
}

func (r *Registry[T]) remove(id uint64) {
	for i, s := range r.subs {
		if s.id == id {
			r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
			return
		}
	}
}

// Notify calls every listener registered at the time of the call. Listeners
// may unsubscribe themselves or others while being notified; a listener
// removed mid-notification is not called afterwards.
func (r *Registry[T]) Notify(v T) {
	snapshot := append([]subscription[T](nil), r.subs...)
	for _, s := range snapshot {
		if !r.has(s.id) {
			continue
		}
		s.fn(v)
	}
}

func (r *Registry[T]) has(id uint64) bool {
	for _, s := range r.subs {
		if s.id == id {
			return true
		}
	}
	return false
}

// Len returns the number of registered listeners.
func (r *Registry[T]) Len() int {
	return len(r.subs)
}

// Clear removes every listener.
func (r *Registry[T]) Clear() {
	r.subs = nil
}
