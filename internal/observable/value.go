// Package observable holds the small reactive-state primitive the companion builds on: a
// value with a current snapshot and a set of subscribers that receive every change.
package observable

import "sync"

// Value is a single-writer, multi-reader cell. Subscribers get the current value on
// subscription and every later Set. A subscriber that falls behind loses intermediate
// values but always converges to the latest one.
type Value[T any] struct {
	mu      sync.RWMutex
	current T
	subs    map[int]chan T
	nextID  int
}

func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		current: initial,
		subs:    make(map[int]chan T),
	}
}

func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

func (v *Value[T]) Set(value T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.current = value
	for _, ch := range v.subs {
		offer(ch, value)
	}
}

// Subscribe returns a channel of updates and a cancel func that closes it.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.nextID
	v.nextID++
	ch := make(chan T, 1)
	ch <- v.current
	v.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			delete(v.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// offer replaces a stale pending value rather than blocking the writer.
func offer[T any](ch chan T, value T) {
	for {
		select {
		case ch <- value:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
