// Package bitkey implements BitKey, a set of star column bit positions.
package bitkey

import (
	"strconv"
	"strings"

	"golang.org/x/tools/container/intsets"
)

// BitKey is a set of column bit positions. The zero value is empty and
// ready to use. BitKeys are not safe for concurrent mutation.
type BitKey struct {
	s intsets.Sparse
}

// New returns a BitKey with the given positions set.
func New(positions ...int) *BitKey {
	k := &BitKey{}
	for _, p := range positions {
		k.s.Insert(p)
	}
	return k
}

// Set adds a position.
func (k *BitKey) Set(pos int) { k.s.Insert(pos) }

// Clear removes a position.
func (k *BitKey) Clear(pos int) { k.s.Remove(pos) }

// Get reports whether pos is set.
func (k *BitKey) Get(pos int) bool { return k.s.Has(pos) }

// Or adds every position of other to k.
func (k *BitKey) Or(other *BitKey) { k.s.UnionWith(&other.s) }

// And keeps only the positions also in other.
func (k *BitKey) And(other *BitKey) { k.s.IntersectionWith(&other.s) }

// Intersects reports whether k and other share a position.
func (k *BitKey) Intersects(other *BitKey) bool { return k.s.Intersects(&other.s) }

// IsSuperSetOf reports whether every position of other is in k.
func (k *BitKey) IsSuperSetOf(other *BitKey) bool { return other.s.SubsetOf(&k.s) }

func (k *BitKey) Equals(other *BitKey) bool { return k.s.Equals(&other.s) }

func (k *BitKey) IsEmpty() bool { return k.s.IsEmpty() }

func (k *BitKey) Cardinality() int { return k.s.Len() }

// Positions returns the set positions in ascending order.
func (k *BitKey) Positions() []int { return k.s.AppendTo(nil) }

// Clone returns an independent copy.
func (k *BitKey) Clone() *BitKey {
	c := &BitKey{}
	c.s.Copy(&k.s)
	return c
}

// String renders the set as "{0, 3, 7}". Equal keys render equally, so
// the string is usable as a map key.
func (k *BitKey) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, p := range k.Positions() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(p))
	}
	b.WriteByte('}')
	return b.String()
}
