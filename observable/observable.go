// Package observable provides the typed publish/subscribe cells that the
// printer state model and the renderers expose to the display layer. An
// observable holds a current value and a list of subscribers; setting a new
// value runs the subscribers synchronously on the caller's goroutine. All
// observables belong to the UI loop and must only be touched from there.
package observable

// Observable is a single typed value cell.
type Observable[T any] struct {
	value T
	subs  []subscriber[T]
	next  int
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// New creates an observable holding initial.
func New[T any](initial T) *Observable[T] {
	return &Observable[T]{value: initial}
}

// Get returns the current value.
func (o *Observable[T]) Get() T {
	return o.value
}

// Set stores v and notifies every subscriber in registration order.
func (o *Observable[T]) Set(v T) {
	o.value = v
	for _, s := range o.subs {
		s.fn(v)
	}
}

// Subscribe registers fn to run on every Set. It returns a cancel function
// that removes the subscription.
func (o *Observable[T]) Subscribe(fn func(T)) func() {
	o.next++
	id := o.next
	o.subs = append(o.subs, subscriber[T]{id: id, fn: fn})
	return func() {
		for i, s := range o.subs {
			if s.id == id {
				o.subs = append(o.subs[:i], o.subs[i+1:]...)
				return
			}
		}
	}
}

// BindString keeps *buf updated with format(value) so a label can read the
// buffer directly. The buffer is filled immediately and on every change.
func (o *Observable[T]) BindString(buf *string, format func(T) string) func() {
	*buf = format(o.value)
	return o.Subscribe(func(v T) {
		*buf = format(v)
	})
}
