package base

import "strings"

// LastSegment returns the simple name of a dotted name: "org.junit.Assert" -> "Assert".
func LastSegment(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

// Qualifier returns everything before the last segment: "org.junit.Assert" -> "org.junit".
func Qualifier(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[:idx]
	}
	return ""
}

func RangeInRange(outer, inner Range) bool {
	return outer.ContainsRange(&inner)
}
