package store

import "slices"

type listener[T any] struct {
	id int
	fn func(T)
}

// Signal is an ordered list of callbacks receiving a value of type T.
// Listeners run in registration order.
type Signal[T any] struct {
	listeners []listener[T]
	nextID    int
}

// Add registers fn and returns a function removing it.
func (s *Signal[T]) Add(fn func(T)) (remove func()) {
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener[T]{id: id, fn: fn})
	return func() {
		s.listeners = slices.DeleteFunc(s.listeners, func(l listener[T]) bool { return l.id == id })
	}
}

// Len returns the number of registered listeners.
func (s *Signal[T]) Len() int {
	return len(s.listeners)
}

func (s *Signal[T]) dispatch(v T) {
	// Listeners may unsubscribe while being called.
	for _, l := range slices.Clone(s.listeners) {
		l.fn(v)
	}
}

// NullarySignal is a Signal without payload.
type NullarySignal struct {
	sig Signal[struct{}]
}

// Add registers fn and returns a function removing it.
func (n *NullarySignal) Add(fn func()) (remove func()) {
	return n.sig.Add(func(struct{}) { fn() })
}

// Len returns the number of registered listeners.
func (n *NullarySignal) Len() int {
	return n.sig.Len()
}

func (n *NullarySignal) dispatch() {
	n.sig.dispatch(struct{}{})
}
