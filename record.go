package cake

import (
	"reflect"
	"sync/atomic"

	"cake/infra/memory"
)

// Destroyer is implemented by payloads that need teardown when their
// owning record kills them. It is called at most once per object.
type Destroyer interface {
	Destroy()
}

// Option configures a record created by MakeOwner.
type Option[T any] func(*record[T])

// WithDestructor runs fn on the object when it dies, instead of
// Destroyer.Destroy.
func WithDestructor[T any](fn func(*T)) Option[T] {
	return func(r *record[T]) {
		r.destructor = fn
	}
}

// record is the control block shared by all owner, weak and guard
// handles of one object.
//
// pins starts at one: that base pin stands for the live object and is
// dropped by whoever wins the alive CAS. Whoever brings pins to zero runs
// the destructor, so it never overlaps a Guard.
type record[T any] struct {
	key   Key
	value T

	obj       atomic.Pointer[T] // &value while alive, nil afterwards
	alive     atomic.Bool
	destroyed atomic.Bool

	owners  atomic.Int64
	handles atomic.Int64 // owners + weaks + guards
	pins    atomic.Int64

	destructor func(*T)
}

var records memory.Registry

func recordPool[T any]() *memory.Pool[record[T]] {
	p := records.Load(reflect.TypeFor[T](), func() any {
		return memory.NewPool(func() *record[T] { return new(record[T]) })
	})
	return p.(*memory.Pool[record[T]])
}

func newRecord[T any](value T, opts []Option[T]) *record[T] {
	r := recordPool[T]().Get()
	r.key = nextKey()
	r.value = value
	r.destructor = nil
	for _, opt := range opts {
		opt(r)
	}

	r.destroyed.Store(false)
	r.owners.Store(1)
	r.handles.Store(1)
	r.pins.Store(1)
	r.obj.Store(&r.value)
	r.alive.Store(true)

	notify(EventRecordCreated, r.key)
	return r
}

// kill is destroy_object. Only the first caller does anything.
func (r *record[T]) kill(ev Event) bool {
	if !r.alive.CompareAndSwap(true, false) {
		return false
	}
	r.obj.Store(nil)
	notify(ev, r.key)
	r.unpin()
	return true
}

func (r *record[T]) pin() bool {
	r.pins.Add(1)
	if !r.alive.Load() {
		r.unpin()
		return false
	}
	return true
}

func (r *record[T]) unpin() {
	if r.pins.Add(-1) == 0 {
		r.finalize()
	}
}

// finalize can be reached twice when a failed pin bumps a drained count
// back up; destroyed keeps the destructor to a single run.
func (r *record[T]) finalize() {
	if !r.destroyed.CompareAndSwap(false, true) {
		return
	}
	if r.destructor != nil {
		r.destructor(&r.value)
	} else if d, ok := any(&r.value).(Destroyer); ok {
		d.Destroy()
	}
	var zero T
	r.value = zero
	notify(EventObjectDestroyed, r.key)
}

func (r *record[T]) acquireOwner() {
	r.owners.Add(1)
	r.handles.Add(1)
}

func (r *record[T]) releaseOwner() {
	if r.owners.Add(-1) == 0 {
		r.kill(EventObjectExpired)
	}
	r.releaseHandle()
}

// promote takes a new owner reference if the object is alive. The CAS
// refuses to resurrect a zero owner count; the second alive check backs
// out when a Delete lands between the load and the increment.
func (r *record[T]) promote() bool {
	for {
		n := r.owners.Load()
		if n == 0 || !r.alive.Load() {
			return false
		}
		if r.owners.CompareAndSwap(n, n+1) {
			break
		}
	}
	if !r.alive.Load() {
		if r.owners.Add(-1) == 0 {
			r.kill(EventObjectExpired)
		}
		return false
	}
	r.handles.Add(1)
	return true
}

func (r *record[T]) releaseHandle() {
	if r.handles.Add(-1) != 0 {
		return
	}
	key := r.key
	r.key = 0
	r.destructor = nil
	recordPool[T]().Put(r)
	notify(EventRecordReleased, key)
}
