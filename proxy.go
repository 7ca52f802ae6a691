package cake

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"cake/infra/memory"
)

type hostAddr struct {
	ptr any // always *H for the record's host type H
}

// proxyRecord is shared by every proxy of one host, whatever view type
// the proxies were created with. refs counts proxies plus one for the
// host while it is attached.
type proxyRecord struct {
	key   Key
	host  reflect.Type
	addr  atomic.Pointer[hostAddr]
	alive atomic.Bool
	refs  atomic.Int64
}

var proxyRecords = memory.NewPool(func() *proxyRecord { return new(proxyRecord) })

func newProxyRecord(host any, typ reflect.Type) *proxyRecord {
	r := proxyRecords.Get()
	r.key = nextKey()
	r.host = typ
	r.refs.Store(1)
	r.addr.Store(&hostAddr{ptr: host})
	r.alive.Store(true)
	notify(EventProxyCreated, r.key)
	return r
}

func (r *proxyRecord) sever() {
	if !r.alive.CompareAndSwap(true, false) {
		return
	}
	r.addr.Store(nil)
	notify(EventProxySevered, r.key)
	r.release()
}

func (r *proxyRecord) release() {
	if r.refs.Add(-1) != 0 {
		return
	}
	key := r.key
	r.key = 0
	r.host = nil
	proxyRecords.Put(r)
	notify(EventProxyReleased, key)
}

// ProxyHost is embedded by value in a type T to make *T proxyable:
//
//	type Item struct {
//		cake.ProxyHost[Item]
//		Name string
//	}
//
// The host is a plain value owned by one goroutine: creating proxies,
// relocating and destroying it must not race each other. The proxies it
// hands out may be read from anywhere.
type ProxyHost[T any] struct {
	rec *proxyRecord
}

func (h *ProxyHost[T]) host() *ProxyHost[T] { return h }

// ProxyDelete severs every outstanding proxy while the host lives on.
// A later ProxyOf starts a new record.
func (h *ProxyHost[T]) ProxyDelete() {
	rec := h.rec
	if rec == nil {
		return
	}
	h.rec = nil
	rec.sever()
}

// Destroy marks the end of the host's life: its proxies report dead from
// now on. Types with their own Destroy should call this one too.
func (h *ProxyHost[T]) Destroy() {
	h.ProxyDelete()
}

// Proxied reports whether the host currently has a live proxy record.
func (h *ProxyHost[T]) Proxied() bool {
	return h.rec != nil
}

// Proxyable is satisfied by *T for every T embedding ProxyHost[T].
type Proxyable[T any] interface {
	*T
	host() *ProxyHost[T]
}

func attach[T any, P Proxyable[T]](obj P) *proxyRecord {
	h := obj.host()
	if h.rec == nil {
		h.rec = newProxyRecord((*T)(obj), reflect.TypeFor[T]())
	}
	h.rec.refs.Add(1)
	return h.rec
}

// ProxyOf returns a proxy to obj, allocating the host's record on first use.
func ProxyOf[T any, P Proxyable[T]](obj P) *Proxy[T] {
	return newProxy(attach[T](obj), func(h any) *T {
		return h.(*T)
	})
}

// ProxyFromBase returns a proxy that resolves to the part of obj selected
// by base, typically an embedded struct. It shares obj's record, so it
// follows relocation and dies with the host like any other proxy.
func ProxyFromBase[B any, T any, P Proxyable[T]](obj P, base func(P) *B) *Proxy[B] {
	return newProxy(attach[T](obj), func(h any) *B {
		return base(P(h.(*T)))
	})
}

// StaticPointerCast converts p to a proxy of its host type D. It fails
// unless D is exactly the type that embeds the ProxyHost.
func StaticPointerCast[D any, B any](p *Proxy[B]) (*Proxy[D], bool) {
	r := p.live()
	if r == nil || r.host != reflect.TypeFor[D]() {
		return nil, false
	}
	r.refs.Add(1)
	return newProxy(r, func(h any) *D {
		return h.(*D)
	}), true
}

// Relocate moves the host at src into dst, the way a move assignment
// would. Whatever dst held before is destroyed; proxies of src now
// resolve to dst and src is left detached.
func Relocate[T any, P Proxyable[T]](dst, src P) {
	if dst == src {
		return
	}
	dst.host().Destroy()
	*dst = *src

	sh := src.host()
	rec := sh.rec
	sh.rec = nil
	if rec != nil {
		rec.addr.Store(&hostAddr{ptr: (*T)(dst)})
		notify(EventProxyRelocated, rec.key)
	}
}

// Proxy is a handle to a host value that cake did not allocate.
type Proxy[T any] struct {
	rec      *proxyRecord
	key      Key
	view     func(any) *T
	released atomic.Bool
}

func newProxy[T any](r *proxyRecord, view func(any) *T) *Proxy[T] {
	return &Proxy[T]{rec: r, key: r.key, view: view}
}

func (p *Proxy[T]) live() *proxyRecord {
	if p == nil || p.released.Load() {
		return nil
	}
	return p.rec
}

// Get returns the host's current address, or nil once it was severed.
func (p *Proxy[T]) Get() *T {
	r := p.live()
	if r == nil {
		return nil
	}
	a := r.addr.Load()
	if a == nil {
		return nil
	}
	return p.view(a.ptr)
}

func (p *Proxy[T]) Alive() bool {
	r := p.live()
	return r != nil && r.alive.Load()
}

func (p *Proxy[T]) Clone() *Proxy[T] {
	r := p.live()
	if r == nil {
		return nil
	}
	r.refs.Add(1)
	return &Proxy[T]{rec: r, key: p.key, view: p.view}
}

func (p *Proxy[T]) Release() {
	if p == nil || !p.released.CompareAndSwap(false, true) {
		return
	}
	p.rec.release()
}

func (p *Proxy[T]) Key() Key {
	if p == nil {
		return 0
	}
	return p.key
}

func (p *Proxy[T]) Equal(other *Proxy[T]) bool {
	return p.Key() == other.Key()
}

func (p *Proxy[T]) Compare(other *Proxy[T]) int {
	return p.Key().Compare(other.Key())
}

func (p *Proxy[T]) String() string {
	return fmt.Sprintf("proxy{key=%d alive=%t}", p.Key(), p.Alive())
}
