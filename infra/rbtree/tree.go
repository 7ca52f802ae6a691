// Package rbtree is a red-black tree keyed by an ordered type.
// It is not safe for concurrent use.
package rbtree

import "cmp"

type color uint8

const (
	red   color = 0
	black color = 1
)

type node[K cmp.Ordered, V any] struct {
	key    K
	value  V
	color  color
	left   *node[K, V]
	right  *node[K, V]
	parent *node[K, V]
}

type Tree[K cmp.Ordered, V any] struct {
	root *node[K, V]
	nil  *node[K, V] // sentinel (black)
	size int
}

// New constructs an empty tree with a black sentinel.
func New[K cmp.Ordered, V any]() *Tree[K, V] {
	nilNode := &node[K, V]{color: black}
	return &Tree[K, V]{
		root: nilNode,
		nil:  nilNode,
	}
}

func (t *Tree[K, V]) Len() int { return t.size }

func (t *Tree[K, V]) Get(key K) (V, bool) {
	n := t.search(key)
	if n == t.nil {
		var zero V
		return zero, false
	}
	return n.value, true
}

// Put stores value under key. It reports whether the key was new.
func (t *Tree[K, V]) Put(key K, value V) bool {
	y := t.nil
	x := t.root
	for x != t.nil {
		y = x
		switch c := cmp.Compare(key, x.key); {
		case c < 0:
			x = x.left
		case c > 0:
			x = x.right
		default:
			x.value = value
			return false
		}
	}

	z := &node[K, V]{
		key:    key,
		value:  value,
		color:  red,
		left:   t.nil,
		right:  t.nil,
		parent: y,
	}

	if y == t.nil {
		t.root = z
	} else if z.key < y.key {
		y.left = z
	} else {
		y.right = z
	}
	t.insertFixup(z)
	t.size++
	return true
}

func (t *Tree[K, V]) Delete(key K) bool {
	z := t.search(key)
	if z == t.nil {
		return false
	}
	t.deleteNode(z)
	t.size--
	return true
}

func (t *Tree[K, V]) Min() (K, V, bool) {
	return t.entry(t.minNode(t.root))
}

func (t *Tree[K, V]) Max() (K, V, bool) {
	return t.entry(t.maxNode(t.root))
}

// Ascend calls fn in key order until fn returns false.
func (t *Tree[K, V]) Ascend(fn func(K, V) bool) {
	for n := t.minNode(t.root); n != t.nil; n = t.next(n) {
		if !fn(n.key, n.value) {
			return
		}
	}
}

// Descend calls fn in reverse key order until fn returns false.
func (t *Tree[K, V]) Descend(fn func(K, V) bool) {
	for n := t.maxNode(t.root); n != t.nil; n = t.prev(n) {
		if !fn(n.key, n.value) {
			return
		}
	}
}

func (t *Tree[K, V]) Clear() {
	t.root = t.nil
	t.size = 0
}

/******************** Internal helpers ********************/

func (t *Tree[K, V]) entry(n *node[K, V]) (K, V, bool) {
	if n == t.nil {
		var (
			k K
			v V
		)
		return k, v, false
	}
	return n.key, n.value, true
}

func (t *Tree[K, V]) search(key K) *node[K, V] {
	n := t.root
	for n != t.nil {
		switch c := cmp.Compare(key, n.key); {
		case c < 0:
			n = n.left
		case c > 0:
			n = n.right
		default:
			return n
		}
	}
	return t.nil
}

func (t *Tree[K, V]) minNode(n *node[K, V]) *node[K, V] {
	if n == t.nil {
		return t.nil
	}
	for n.left != t.nil {
		n = n.left
	}
	return n
}

func (t *Tree[K, V]) maxNode(n *node[K, V]) *node[K, V] {
	if n == t.nil {
		return t.nil
	}
	for n.right != t.nil {
		n = n.right
	}
	return n
}

func (t *Tree[K, V]) next(n *node[K, V]) *node[K, V] {
	if n.right != t.nil {
		return t.minNode(n.right)
	}
	p := n.parent
	for p != t.nil && n == p.right {
		n = p
		p = p.parent
	}
	return p
}

func (t *Tree[K, V]) prev(n *node[K, V]) *node[K, V] {
	if n.left != t.nil {
		return t.maxNode(n.left)
	}
	p := n.parent
	for p != t.nil && n == p.left {
		n = p
		p = p.parent
	}
	return p
}

func (t *Tree[K, V]) leftRotate(x *node[K, V]) {
	y := x.right
	x.right = y.left
	if y.left != t.nil {
		y.left.parent = x
	}
	y.parent = x.parent
	if x.parent == t.nil {
		t.root = y
	} else if x == x.parent.left {
		x.parent.left = y
	} else {
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *Tree[K, V]) rightRotate(y *node[K, V]) {
	x := y.left
	y.left = x.right
	if x.right != t.nil {
		x.right.parent = y
	}
	x.parent = y.parent
	if y.parent == t.nil {
		t.root = x
	} else if y == y.parent.right {
		y.parent.right = x
	} else {
		y.parent.left = x
	}
	x.right = y
	y.parent = x
}

func (t *Tree[K, V]) insertFixup(z *node[K, V]) {
	for z.parent.color == red {
		if z.parent == z.parent.parent.left {
			y := z.parent.parent.right
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
				continue
			}
			if z == z.parent.right {
				z = z.parent
				t.leftRotate(z)
			}
			z.parent.color = black
			z.parent.parent.color = red
			t.rightRotate(z.parent.parent)
		} else {
			y := z.parent.parent.left
			if y.color == red {
				z.parent.color = black
				y.color = black
				z.parent.parent.color = red
				z = z.parent.parent
				continue
			}
			if z == z.parent.left {
				z = z.parent
				t.rightRotate(z)
			}
			z.parent.color = black
			z.parent.parent.color = red
			t.leftRotate(z.parent.parent)
		}
	}
	t.root.color = black
}

func (t *Tree[K, V]) transplant(u, v *node[K, V]) {
	if u.parent == t.nil {
		t.root = v
	} else if u == u.parent.left {
		u.parent.left = v
	} else {
		u.parent.right = v
	}
	v.parent = u.parent
}

func (t *Tree[K, V]) deleteNode(z *node[K, V]) {
	y := z
	yOrigColor := y.color
	var x *node[K, V]

	switch {
	case z.left == t.nil:
		x = z.right
		t.transplant(z, z.right)
	case z.right == t.nil:
		x = z.left
		t.transplant(z, z.left)
	default:
		y = t.minNode(z.right)
		yOrigColor = y.color
		x = y.right
		if y.parent == z {
			x.parent = y
		} else {
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}

	if yOrigColor == black {
		t.deleteFixup(x)
	}
}

func (t *Tree[K, V]) deleteFixup(x *node[K, V]) {
	for x != t.root && x.color == black {
		if x == x.parent.left {
			w := x.parent.right
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.leftRotate(x.parent)
				w = x.parent.right
			}
			if w.left.color == black && w.right.color == black {
				w.color = red
				x = x.parent
				continue
			}
			if w.right.color == black {
				w.left.color = black
				w.color = red
				t.rightRotate(w)
				w = x.parent.right
			}
			w.color = x.parent.color
			x.parent.color = black
			w.right.color = black
			t.leftRotate(x.parent)
			x = t.root
		} else {
			w := x.parent.left
			if w.color == red {
				w.color = black
				x.parent.color = red
				t.rightRotate(x.parent)
				w = x.parent.left
			}
			if w.right.color == black && w.left.color == black {
				w.color = red
				x = x.parent
				continue
			}
			if w.left.color == black {
				w.right.color = black
				w.color = red
				t.leftRotate(w)
				w = x.parent.left
			}
			w.color = x.parent.color
			x.parent.color = black
			w.left.color = black
			t.rightRotate(x.parent)
			x = t.root
		}
	}
	x.color = black
}
