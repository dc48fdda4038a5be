package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, NullKey},
		{"int", 3, int64(3)},
		{"uint8", uint8(3), int64(3)},
		{"float32", float32(1.5), 1.5},
		{"bytes", []byte("CA"), "CA"},
		{"composite", CompositeKey{1, []byte("x")}, CompositeKey{int64(1), "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.in))
		})
	}
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, KeyString(int32(5)), KeyString(int64(5)))
	assert.NotEqual(t, KeyString(int64(5)), KeyString("5"))
	assert.Equal(t, KeyString(int64(5)), KeyString(5.0), "integral floats match integers")
	assert.Equal(t, KeyString(uint8(7)), KeyString(float32(7)))
	assert.NotEqual(t, KeyString(int64(5)), KeyString(5.5))
	assert.Equal(t, "f:1e+300", KeyString(1e300))
	assert.Equal(t, KeyString(nil), KeyString(NullKey))
	assert.Equal(t, KeyString(CompositeKey{1, "a"}), KeyString(CompositeKey{int16(1), []byte("a")}))
}

func TestKeyName(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"null", NullKey, "#null"},
		{"integral float", 1997.0, "1997"},
		{"fraction", 2.25, "2.25"},
		{"string", "CA", "CA"},
		{"date", time.Date(1997, 1, 2, 0, 0, 0, 0, time.UTC), "1997-01-02"},
		{"composite", CompositeKey{"Q1", 1997}, "Q1 1997"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyName(tt.in))
		})
	}
}

func TestCompareKeys(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"ints", 1, 2, -1},
		{"int vs float", int64(2), 1.5, 1},
		{"strings", "WA", "CA", 1},
		{"null last", NullKey, "A", 1},
		{"null vs null", nil, NullKey, 0},
		{"value before null", 0, nil, -1},
		{"bools", false, true, -1},
		{"times", time.Unix(10, 0), time.Unix(5, 0), 1},
		{"composite", CompositeKey{1, "b"}, CompositeKey{1, "a"}, 1},
		{"composite prefix", CompositeKey{1}, CompositeKey{1, "a"}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareKeys(tt.a, tt.b))
		})
	}
}
