package cake

import (
	"fmt"
	"sync/atomic"
)

// Owner is an owning handle. The object lives until the last Owner is
// released or any Owner calls Delete.
type Owner[T any] struct {
	rec      *record[T]
	key      Key
	released atomic.Bool
}

// MakeOwner allocates a record holding value and returns its first owner.
func MakeOwner[T any](value T, opts ...Option[T]) *Owner[T] {
	r := newRecord(value, opts)
	return &Owner[T]{rec: r, key: r.key}
}

func (o *Owner[T]) live() *record[T] {
	if o == nil || o.released.Load() {
		return nil
	}
	return o.rec
}

// Get returns the object, or nil once it is dead or o was released.
// The pointer is not pinned; use TryLock when another goroutine may
// delete concurrently.
func (o *Owner[T]) Get() *T {
	r := o.live()
	if r == nil {
		return nil
	}
	return r.obj.Load()
}

func (o *Owner[T]) Alive() bool {
	r := o.live()
	return r != nil && r.alive.Load()
}

// Clone returns another owner of the same record.
func (o *Owner[T]) Clone() *Owner[T] {
	r := o.live()
	if r == nil {
		return nil
	}
	r.acquireOwner()
	return &Owner[T]{rec: r, key: o.key}
}

// Release drops this owner. Releasing the last owner destroys the object.
// Further calls are no-ops.
func (o *Owner[T]) Release() {
	if o == nil || !o.released.CompareAndSwap(false, true) {
		return
	}
	o.rec.releaseOwner()
}

// Delete destroys the object for every handle, whatever the owner count.
// It is safe to call from several goroutines; the object dies once.
func (o *Owner[T]) Delete() {
	if r := o.live(); r != nil {
		r.kill(EventObjectDeleted)
	}
}

// TryLock pins the object. It fails when the object is already dead.
// The destructor does not run before the returned guard is unlocked.
func (o *Owner[T]) TryLock() (*Guard[T], bool) {
	r := o.live()
	if r == nil {
		return nil, false
	}
	r.handles.Add(1)
	if !r.pin() {
		r.releaseHandle()
		notify(EventLockFailed, o.key)
		return nil, false
	}
	return &Guard[T]{rec: r, obj: &r.value, key: o.key}, true
}

func (o *Owner[T]) Key() Key {
	if o == nil {
		return 0
	}
	return o.key
}

func (o *Owner[T]) Equal(other *Owner[T]) bool {
	return o.Key() == other.Key()
}

func (o *Owner[T]) Compare(other *Owner[T]) int {
	return o.Key().Compare(other.Key())
}

func (o *Owner[T]) String() string {
	return fmt.Sprintf("owner{key=%d alive=%t}", o.Key(), o.Alive())
}
