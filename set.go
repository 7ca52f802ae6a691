package cake

import "cake/infra/rbtree"

// Set is an ordered set of handles keyed by record identity. Membership
// does not depend on liveness: a handle stays findable after its object
// or host is gone. The zero value is ready to use; Set is not safe for
// concurrent use.
type Set[H Keyed] struct {
	tree *rbtree.Tree[Key, H]
}

func NewSet[H Keyed]() *Set[H] {
	return &Set[H]{tree: rbtree.New[Key, H]()}
}

func (s *Set[H]) t() *rbtree.Tree[Key, H] {
	if s.tree == nil {
		s.tree = rbtree.New[Key, H]()
	}
	return s.tree
}

// Insert adds h. It reports false, leaving the stored handle in place,
// when a handle of the same record is already present.
func (s *Set[H]) Insert(h H) bool {
	if _, ok := s.t().Get(h.Key()); ok {
		return false
	}
	return s.t().Put(h.Key(), h)
}

// Contains accepts any handle kind: an owner and a weak of the same
// record share a key.
func (s *Set[H]) Contains(h Keyed) bool {
	_, ok := s.t().Get(h.Key())
	return ok
}

func (s *Set[H]) Get(k Key) (H, bool) {
	return s.t().Get(k)
}

func (s *Set[H]) Remove(h Keyed) bool {
	return s.t().Delete(h.Key())
}

func (s *Set[H]) Len() int {
	if s.tree == nil {
		return 0
	}
	return s.tree.Len()
}

// Ascend visits handles in key order until fn returns false.
func (s *Set[H]) Ascend(fn func(H) bool) {
	s.t().Ascend(func(_ Key, h H) bool {
		return fn(h)
	})
}
