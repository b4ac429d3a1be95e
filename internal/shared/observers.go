package shared

import "sync"

// Observers is a registration list of callbacks invoked with a value of type T.
//
// Callbacks run synchronously on the notifying goroutine, in registration order,
// outside the list's lock so they may register or unregister other observers.
type Observers[T any] struct {
	mu   sync.Mutex
	next int
	subs []observer[T]
}

type observer[T any] struct {
	id int
	fn func(T)
}

// Add registers fn and returns a function that removes it. Calling the returned
// function more than once is a no-op.
func (o *Observers[T]) Add(fn func(T)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.next
	o.next++
	o.subs = append(o.subs, observer[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { o.remove(id) })
	}
}

func (o *Observers[T]) remove(id int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, s := range o.subs {
		if s.id == id {
			o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
			return
		}
	}
}

// Notify calls every registered observer with v.
func (o *Observers[T]) Notify(v T) {
	o.mu.Lock()
	subs := make([]observer[T], len(o.subs))
	copy(subs, o.subs)
	o.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Len returns the number of registered observers.
func (o *Observers[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}
