package validation

// IsValidPolygon reports whether v is a well-formed polygon: either a single
// ring (a list of at least 3 [lon, lat] pairs) or a list of such rings. Values
// are expected in the generic form produced by encoding/json.
func IsValidPolygon(v any) bool {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return false
	}
	first, ok := list[0].([]any)
	if !ok || len(first) == 0 {
		return false
	}
	if _, nested := first[0].([]any); !nested {
		return isRing(list, 3)
	}
	for _, r := range list {
		if !isRing(r, 3) {
			return false
		}
	}
	return true
}

// isRing reports whether v is a list of at least minPoints coordinate pairs.
func isRing(v any, minPoints int) bool {
	ring, ok := v.([]any)
	if !ok || len(ring) < minPoints {
		return false
	}
	for _, pt := range ring {
		if !isPair(pt) {
			return false
		}
	}
	return true
}

func isPair(v any) bool {
	pt, ok := v.([]any)
	return ok && len(pt) == 2 && allNumbers(pt)
}

func allNumbers(vs []any) bool {
	for _, c := range vs {
		if _, ok := c.(float64); !ok {
			return false
		}
	}
	return true
}
