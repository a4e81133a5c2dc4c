package multicast

import (
	"sync"
	"weak"
)

// Ref is a non-owning handle to an observer of type O.
type Ref[O any] struct {
	key     any
	resolve func() (O, bool)
}

// Weak creates a Ref that does not keep observer alive. view converts the
// resolved pointer to the observer interface and must not capture observer.
func Weak[T any, O any](observer *T, view func(*T) O) Ref[O] {
	ptr := weak.Make(observer)
	return Ref[O]{
		key: ptr,
		resolve: func() (O, bool) {
			value := ptr.Value()
			if value == nil {
				var zero O
				return zero, false
			}
			return view(value), true
		},
	}
}

// Notifier fans out calls to weakly held observers.
type Notifier[O any] struct {
	mu    sync.Mutex
	slots []Ref[O]
}

// New creates an empty Notifier.
func New[O any]() *Notifier[O] {
	return &Notifier[O]{}
}

// Subscribe adds one slot for ref. Duplicates are kept.
func (notifier *Notifier[O]) Subscribe(ref Ref[O]) {
	if ref.resolve == nil {
		return
	}
	notifier.mu.Lock()
	notifier.slots = append(notifier.slots, ref)
	notifier.mu.Unlock()
}

// Unsubscribe removes the first slot that refers to the same observer as ref.
func (notifier *Notifier[O]) Unsubscribe(ref Ref[O]) {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	for index, slot := range notifier.slots {
		if slot.key == ref.key {
			notifier.slots = append(notifier.slots[:index], notifier.slots[index+1:]...)
			return
		}
	}
}

// Notify invokes fn once for every live observer and drops expired slots.
// fn runs outside the notifier lock.
func (notifier *Notifier[O]) Notify(fn func(O)) {
	notifier.mu.Lock()
	live := make([]O, 0, len(notifier.slots))
	kept := notifier.slots[:0]
	for _, slot := range notifier.slots {
		observer, ok := slot.resolve()
		if !ok {
			continue
		}
		kept = append(kept, slot)
		live = append(live, observer)
	}
	for index := len(kept); index < len(notifier.slots); index++ {
		notifier.slots[index] = Ref[O]{}
	}
	notifier.slots = kept
	notifier.mu.Unlock()

	for _, observer := range live {
		fn(observer)
	}
}

// Len reports the number of slots, including expired ones not yet pruned.
func (notifier *Notifier[O]) Len() int {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	return len(notifier.slots)
}
