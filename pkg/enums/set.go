package enums

import (
	"fmt"
	"slices"
)

func member[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

// parse matches raw exactly; callers normalise case beforehand if they need to.
func parse[T ~string](kind, raw string, set []T) (T, error) {
	if v := T(raw); member(v, set) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
