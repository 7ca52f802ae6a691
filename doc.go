// Package cake provides three handle disciplines over a managed object.
//
// An Owner shares ownership of a heap object and can force its
// destruction for every holder at once. A Weak observes the same object
// without keeping it alive and can be promoted back to an Owner while
// the object still lives. A Proxy refers to a value that cake did not
// allocate, such as a slice element or a local, and keeps resolving to
// it while the host moves; the host severs its proxies when it is
// destroyed.
//
// Go has no destructors, so copying and dropping a handle are explicit:
// Clone takes another reference, Release gives one back. Handles are
// used through pointers and must not be copied by value.
//
//	o := cake.MakeOwner("prettystring")
//	defer o.Release()
//
//	w := cake.MakeWeak(o)
//	defer w.Release()
//
//	if g, ok := o.TryLock(); ok {
//		fmt.Println(*g.Get())
//		g.Unlock()
//	}
//
// Every handle carries the Key of the record it references. Keys are
// comparable and ordered, and stay valid after the object is gone, so
// they can be used as map keys or collected in a Set.
//
// # Concurrency
//
// Record-level operations (Get, Alive, Delete, TryLock, GetOwnership)
// may be called from any goroutine on a shared handle. Liveness only ever
// goes from true to false, and the object is destroyed exactly once even
// when several goroutines delete it at the same time. TryLock pins the
// record: the destructor does not run while any Guard is held. The
// payload itself is not synchronised.
//
// Release on a given handle must not race with other calls on that same
// handle; give each goroutine its own Clone instead.
package cake
