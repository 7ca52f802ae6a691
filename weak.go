package cake

import (
	"fmt"
	"sync/atomic"
)

// Weak observes an object without keeping it alive.
type Weak[T any] struct {
	rec      *record[T]
	key      Key
	released atomic.Bool
}

// MakeWeak returns a weak handle sharing o's record, or nil when o is
// nil or released.
func MakeWeak[T any](o *Owner[T]) *Weak[T] {
	r := o.live()
	if r == nil {
		return nil
	}
	r.handles.Add(1)
	return &Weak[T]{rec: r, key: o.key}
}

// GetOwnership promotes w to a new owner if the object is still alive.
// It never returns an owner of an object that was already dead.
func GetOwnership[T any](w *Weak[T]) (*Owner[T], bool) {
	r := w.live()
	if r == nil {
		return nil, false
	}
	if !r.promote() {
		notify(EventPromotionFailed, w.key)
		return nil, false
	}
	return &Owner[T]{rec: r, key: w.key}, true
}

func (w *Weak[T]) live() *record[T] {
	if w == nil || w.released.Load() {
		return nil
	}
	return w.rec
}

// Lock is GetOwnership as a method.
func (w *Weak[T]) Lock() (*Owner[T], bool) {
	return GetOwnership(w)
}

func (w *Weak[T]) Get() *T {
	r := w.live()
	if r == nil {
		return nil
	}
	return r.obj.Load()
}

func (w *Weak[T]) Alive() bool {
	r := w.live()
	return r != nil && r.alive.Load()
}

func (w *Weak[T]) Clone() *Weak[T] {
	r := w.live()
	if r == nil {
		return nil
	}
	r.handles.Add(1)
	return &Weak[T]{rec: r, key: w.key}
}

func (w *Weak[T]) Release() {
	if w == nil || !w.released.CompareAndSwap(false, true) {
		return
	}
	w.rec.releaseHandle()
}

func (w *Weak[T]) Key() Key {
	if w == nil {
		return 0
	}
	return w.key
}

func (w *Weak[T]) Equal(other *Weak[T]) bool {
	return w.Key() == other.Key()
}

func (w *Weak[T]) Compare(other *Weak[T]) int {
	return w.Key().Compare(other.Key())
}

func (w *Weak[T]) String() string {
	return fmt.Sprintf("weak{key=%d alive=%t}", w.Key(), w.Alive())
}
