package cake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeakOutlivesOwnerScope(t *testing.T) {
	var weak *Weak[string]
	func() {
		o1 := MakeOwner("prettystring")
		defer o1.Release()

		weak = MakeWeak(o1)
		require.NotNil(t, weak.Get())
		assert.True(t, weak.Alive())
		assert.Equal(t, "prettystring", *weak.Get())

		weak2 := weak.Clone()
		defer weak2.Release()
		require.NotNil(t, weak2.Get())
		assert.True(t, weak2.Alive())
		assert.Equal(t, "prettystring", *weak2.Get())

		o2, ok := GetOwnership(weak2)
		require.True(t, ok)
		defer o2.Release()
		require.NotNil(t, o2.Get())
		assert.True(t, o2.Alive())
		assert.Equal(t, "prettystring", *o2.Get())
	}()

	assert.Nil(t, weak.Get())
	assert.False(t, weak.Alive())
	weak.Release()
}

func TestWeakDoesNotKeepObjectAlive(t *testing.T) {
	calls := 0
	o := MakeOwner(1, WithDestructor(func(*int) { calls++ }))
	w := MakeWeak(o)
	defer w.Release()

	o.Release()
	assert.Equal(t, 1, calls)
	assert.False(t, w.Alive())

	_, ok := w.Lock()
	assert.False(t, ok)
}

func TestWeakSeesDeleteFromAnyOwner(t *testing.T) {
	o := MakeOwner("x")
	defer o.Release()
	w := MakeWeak(o)
	defer w.Release()

	promoted, ok := GetOwnership(w)
	require.True(t, ok)
	promoted.Delete()
	promoted.Release()

	assert.False(t, o.Alive())
	assert.False(t, w.Alive())
	assert.Nil(t, w.Get())
}

func TestPromotedOwnerKeepsObjectAlive(t *testing.T) {
	o := MakeOwner("x")
	w := MakeWeak(o)
	defer w.Release()

	p, ok := GetOwnership(w)
	require.True(t, ok)
	o.Release()
	assert.True(t, w.Alive(), "promoted owner still holds the object")

	p.Release()
	assert.False(t, w.Alive())
}

func TestMakeWeakFromReleasedOwner(t *testing.T) {
	o := MakeOwner("x")
	o.Release()
	assert.Nil(t, MakeWeak(o))

	var w *Weak[string]
	p, ok := GetOwnership(w)
	assert.False(t, ok)
	assert.Nil(t, p)
	assert.False(t, p.Alive())
	assert.Nil(t, w.Clone())
}

func TestWeakSharesKeyWithOwner(t *testing.T) {
	o := MakeOwner("x")
	w := MakeWeak(o)
	assert.Equal(t, o.Key(), w.Key())
	c := w.Clone()
	assert.True(t, w.Equal(c))
	c.Release()
	o.Release()
	w.Release()
}
