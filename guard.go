package cake

import "sync/atomic"

// Guard keeps an object from being destroyed while it is held. Deletion
// may still happen, and other handles will see the object as dead, but
// the destructor waits until every guard is unlocked.
type Guard[T any] struct {
	rec      *record[T]
	obj      *T
	key      Key
	released atomic.Bool
}

// Get returns the pinned object, or nil after Unlock.
func (g *Guard[T]) Get() *T {
	if g == nil || g.released.Load() {
		return nil
	}
	return g.obj
}

func (g *Guard[T]) Key() Key {
	if g == nil {
		return 0
	}
	return g.key
}

// Unlock releases the pin. It may run the destructor if the object was
// deleted while the guard was held. Further calls are no-ops.
func (g *Guard[T]) Unlock() {
	if g == nil || !g.released.CompareAndSwap(false, true) {
		return
	}
	g.rec.unpin()
	g.rec.releaseHandle()
}
