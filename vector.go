package cake

// Vector is a growable sequence of proxyable hosts. It relocates its
// elements whenever it reallocates, so proxies taken from elements keep
// resolving, and it destroys the elements it drops.
//
// Like a slice, Vector is not safe for concurrent mutation and panics on
// out-of-range indexes.
type Vector[T any, P Proxyable[T]] struct {
	items []T
}

// NewVector returns a vector of n zero elements.
func NewVector[T any, P Proxyable[T]](n int) *Vector[T, P] {
	v := &Vector[T, P]{}
	v.Resize(n)
	return v
}

func (v *Vector[T, P]) Len() int { return len(v.items) }

func (v *Vector[T, P]) Cap() int { return cap(v.items) }

// At returns the element at i. The pointer is invalidated by the next
// reallocation; take a proxy to keep a stable reference.
func (v *Vector[T, P]) At(i int) P {
	return P(&v.items[i])
}

// Resize grows with zero elements or shrinks, destroying the tail.
func (v *Vector[T, P]) Resize(n int) {
	if n < len(v.items) {
		for i := n; i < len(v.items); i++ {
			destroyHost[T](P(&v.items[i]))
		}
		clear(v.items[n:])
		v.items = v.items[:n]
		return
	}
	v.reserve(n)
	v.items = v.items[:n]
}

// Append moves the host at src to the end of v and returns its new
// address. src must not point into v.
func (v *Vector[T, P]) Append(src P) P {
	n := len(v.items)
	v.reserve(n + 1)
	v.items = v.items[:n+1]
	dst := P(&v.items[n])
	Relocate[T](dst, src)
	return dst
}

// Remove destroys the element at i and shifts the following ones down.
func (v *Vector[T, P]) Remove(i int) {
	last := len(v.items) - 1
	destroyHost[T](P(&v.items[i]))
	for j := i; j < last; j++ {
		Relocate[T](P(&v.items[j]), P(&v.items[j+1]))
	}
	var zero T
	v.items[last] = zero
	v.items = v.items[:last]
}

// Destroy destroys every element and empties v.
func (v *Vector[T, P]) Destroy() {
	v.Resize(0)
	v.items = nil
}

func (v *Vector[T, P]) reserve(n int) {
	if n <= cap(v.items) {
		return
	}
	grown := make([]T, len(v.items), max(n, 2*cap(v.items)))
	for i := range v.items {
		Relocate[T](P(&grown[i]), P(&v.items[i]))
	}
	v.items = grown
}

func destroyHost[T any, P Proxyable[T]](p P) {
	if d, ok := any(p).(Destroyer); ok {
		d.Destroy()
	}
	p.host().Destroy()
}
