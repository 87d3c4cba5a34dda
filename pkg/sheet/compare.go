package sheet

import (
	"cmp"
	"fmt"
	"time"
)

// Compare orders two cell values.
//
// Absent values (nil) sort before everything else. Values of the same kind
// compare naturally; mismatched kinds fall back to their string forms.
func Compare(a, b any) int {
	a, b = normalize(a), normalize(b)

	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case time.Duration:
		if bv, ok := b.(time.Duration); ok {
			return cmp.Compare(av, bv)
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return cmp.Compare(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return cmp.Compare(av, bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return cmp.Compare(av, bv)
		}
	}

	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// normalize folds pointers and sized integers into comparable kinds.
func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	case *time.Duration:
		if x == nil {
			return nil
		}
		return *x
	case *int64:
		if x == nil {
			return nil
		}
		return *x
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}
