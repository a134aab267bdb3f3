package pattern

import (
	"sort"

	"github.com/armchr/junitmig/internal/model/ast"
)

// Binding is the value captured for one placeholder. Captured fragments keep the span
// they were copied from so rewrites can reinsert them byte for byte; computed values
// have no span.
type Binding struct {
	Text    string
	Span    ast.Span
	HasSpan bool
}

// Captured builds a binding for a source fragment.
func Captured(text string, span ast.Span) Binding {
	return Binding{Text: text, Span: span, HasSpan: true}
}

// Computed builds a binding for text produced by the engine.
func Computed(text string) Binding {
	return Binding{Text: text}
}

// Bindings maps placeholder names to captured values.
type Bindings map[string]Binding

func (b Bindings) Has(name string) bool {
	_, ok := b[name]
	return ok
}

func (b Bindings) Text(name string) string {
	return b[name].Text
}

// Names returns the bound placeholder names in sorted order.
func (b Bindings) Names() []string {
	names := make([]string, 0, len(b))
	for n := range b {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Clone returns a shallow copy that can be extended without touching the original.
func (b Bindings) Clone() Bindings {
	out := make(Bindings, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}
