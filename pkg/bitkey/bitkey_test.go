package bitkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitKey_SetOps(t *testing.T) {
	a := New(1, 3)
	b := New(3, 5)

	union := a.Clone()
	union.Or(b)
	assert.Equal(t, []int{1, 3, 5}, union.Positions())
	assert.Equal(t, []int{1, 3}, a.Positions(), "clone must not alias")

	inter := a.Clone()
	inter.And(b)
	assert.Equal(t, []int{3}, inter.Positions())

	assert.True(t, union.IsSuperSetOf(a))
	assert.False(t, a.IsSuperSetOf(union))
	assert.True(t, a.Intersects(b))
	assert.False(t, New(0).Intersects(New(1)))
}

func TestBitKey_Equality(t *testing.T) {
	a := New(7, 2)
	b := &BitKey{}
	b.Set(2)
	b.Set(7)

	assert.True(t, a.Equals(b))
	assert.Equal(t, "{2, 7}", a.String())
	assert.Equal(t, a.String(), b.String())

	b.Clear(7)
	assert.False(t, a.Equals(b))
	assert.Equal(t, 1, b.Cardinality())
}

func TestBitKey_Empty(t *testing.T) {
	var k BitKey
	assert.True(t, k.IsEmpty())
	assert.Equal(t, "{}", k.String())
	assert.False(t, k.Get(0))
}
