package cake

import (
	"cmp"

	"cake/infra/sequence"
)

// Key identifies a record. It is issued once per allocation and never
// reused, so it stays a valid identity after the object dies and after
// the record itself is recycled. The zero Key belongs to no record.
type Key uint64

// keys is shared by owner and proxy records so that the two kinds never
// collide inside one Set or map.
var keys = sequence.New(0)

func nextKey() Key {
	return Key(keys.Next())
}

// Compare orders keys by allocation order.
func (k Key) Compare(other Key) int {
	return cmp.Compare(k, other)
}

// Keyed is implemented by every handle type.
type Keyed interface {
	Key() Key
}
