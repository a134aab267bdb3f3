package rewrite

import (
	"github.com/armchr/junitmig/internal/bind"
	"github.com/armchr/junitmig/internal/pattern"
)

// OrderOperands applies the expected/actual tie-break to two bound operands. When exactly
// one operand is a compile-time constant it becomes the expected (first) one; when both
// or neither are constants the original order is kept.
func OrderOperands(b pattern.Bindings, expected, actual string) pattern.Bindings {
	if !b.Has(expected) || !b.Has(actual) {
		return b
	}
	if !NeedsSwap(b, expected, actual) {
		return b
	}
	out := b.Clone()
	out[expected], out[actual] = b[actual], b[expected]
	out[expected+bind.ConstSuffix] = b[actual+bind.ConstSuffix]
	delete(out, actual+bind.ConstSuffix)
	return out
}

// NeedsSwap reports whether the tie-break would exchange the two operands.
func NeedsSwap(b pattern.Bindings, expected, actual string) bool {
	return b.Has(actual+bind.ConstSuffix) && !b.Has(expected+bind.ConstSuffix)
}
