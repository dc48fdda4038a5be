package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// NullKey is the key of a member whose key column held SQL NULL.
// It sorts after every non-null key.
var NullKey any = nullKey{}

type nullKey struct{}

func (nullKey) String() string { return "#null" }

// NullMemberName is the display name of members keyed by NullKey.
const NullMemberName = "#null"

// CompositeKey is the key of a member at a level keyed by more than one column.
type CompositeKey []any

// IsNullKey reports whether k represents SQL NULL.
func IsNullKey(k any) bool {
	if k == nil {
		return true
	}
	_, ok := k.(nullKey)
	return ok
}

// NormalizeKey maps driver values onto the small set of key types the
// cache understands: int64, float64, string, bool, time.Time, CompositeKey
// and NullKey.
func NormalizeKey(k any) any {
	switch v := k.(type) {
	case nil:
		return NullKey
	case nullKey:
		return NullKey
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint:
		return uintKey(uint64(v))
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return uintKey(v)
	case float32:
		return float64(v)
	case []byte:
		return string(v)
	case CompositeKey:
		out := make(CompositeKey, len(v))
		for i, p := range v {
			out[i] = NormalizeKey(p)
		}
		return out
	default:
		return v
	}
}

// maxExactFloatInt bounds the integral floats that convert to int64 exactly.
const maxExactFloatInt = 1 << 53

func uintKey(v uint64) any {
	if v > math.MaxInt64 {
		return float64(v)
	}
	return int64(v)
}

// KeyString returns a stable identity string for a normalized key.
// Two keys with equal KeyString identify the same member under one parent.
func KeyString(k any) string {
	k = NormalizeKey(k)
	switch v := k.(type) {
	case nullKey:
		return "n:"
	case int64:
		return "i:" + strconv.FormatInt(v, 10)
	case float64:
		// integral floats share the id of the equal integer
		if v == math.Trunc(v) && math.Abs(v) <= maxExactFloatInt {
			return "i:" + strconv.FormatInt(int64(v), 10)
		}
		return "f:" + strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return "s:" + v
	case bool:
		return "b:" + strconv.FormatBool(v)
	case time.Time:
		return "t:" + v.UTC().Format(time.RFC3339Nano)
	case CompositeKey:
		parts := make([]string, len(v))
		for i, p := range v {
			parts[i] = KeyString(p)
		}
		return "c:(" + strings.Join(parts, "\x1f") + ")"
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}

// KeyName renders a key the way it is displayed as a member name.
// Integral floats render without a fractional part.
func KeyName(k any) string {
	k = NormalizeKey(k)
	switch v := k.(type) {
	case nullKey:
		return NullMemberName
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	case time.Time:
		return v.Format(time.DateOnly)
	case CompositeKey:
		parts := make([]string, len(v))
		for i, p := range v {
			parts[i] = KeyName(p)
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(v)
	}
}

// CompareKeys orders two member keys. NullKey sorts last.
func CompareKeys(a, b any) int {
	a, b = NormalizeKey(a), NormalizeKey(b)
	an, bn := IsNullKey(a), IsNullKey(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}

	switch av := a.(type) {
	case int64:
		switch bv := b.(type) {
		case int64:
			return compareOrdered(av, bv)
		case float64:
			return compareOrdered(float64(av), bv)
		}
	case float64:
		switch bv := b.(type) {
		case int64:
			return compareOrdered(av, float64(bv))
		case float64:
			return compareOrdered(av, bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case CompositeKey:
		if bv, ok := b.(CompositeKey); ok {
			for i := 0; i < len(av) && i < len(bv); i++ {
				if c := CompareKeys(av[i], bv[i]); c != 0 {
					return c
				}
			}
			return compareOrdered(len(av), len(bv))
		}
	}
	return strings.Compare(KeyString(a), KeyString(b))
}

func compareOrdered[T int | int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
