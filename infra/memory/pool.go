package memory

import "sync"

// Pool is a typed object pool.
// Objects handed to Put must already be reset by the caller; the pool
// never inspects them.
type Pool[T any] struct {
	p *sync.Pool
}

func NewPool[T any](ctor func() *T) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
	}
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	p.p.Put(v)
}

// Registry keeps one pool per key, created on first use.
// cake uses it to hold a record pool per payload type.
type Registry struct {
	pools sync.Map
}

// Load returns the pool stored under key, creating it with mk if absent.
// Concurrent first calls may each run mk; only one result is kept.
func (r *Registry) Load(key any, mk func() any) any {
	if p, ok := r.pools.Load(key); ok {
		return p
	}
	p, _ := r.pools.LoadOrStore(key, mk())
	return p
}
