package bind

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/armchr/junitmig/internal/model/ast"
	"github.com/armchr/junitmig/internal/parse"
	"github.com/armchr/junitmig/internal/pattern"
	"github.com/armchr/junitmig/internal/query"
	"github.com/armchr/junitmig/pkg/lsp/base"
)

func (e *Extractor) bindAnnotation(u *parse.Unit, m query.Match, b pattern.Bindings) error {
	shape := m.Pattern.Shape()
	if shape == nil {
		return nil
	}
	ann, ok := e.binder.Visitor().AnnotationAt(u, m.Node.ID)
	if !ok {
		return &BindError{Node: m.Node, Reason: "not an annotation"}
	}

	if shape.Marker {
		if len(ann.Arguments) > 0 {
			return &BindError{Node: m.Node, Reason: "annotation has arguments"}
		}
		return nil
	}

	if len(ann.Arguments) != len(shape.Args) {
		return &BindError{Node: m.Node, Reason: "annotation attributes differ"}
	}
	for _, arg := range shape.Args {
		value, ok := ann.Arguments[arg.Key]
		if !ok {
			return &BindError{Node: m.Node, Reason: "annotation lacks attribute " + arg.Key}
		}
		// the literal keeps its exact source text, escape sequences included
		b[arg.Names[0]] = capture(u, value)
	}
	return nil
}

// Derivation computes extra bindings from captured ones for rewrites whose output is not
// a plain re-arrangement of source fragments.
type Derivation string

const (
	DeriveNone     Derivation = ""
	DeriveTimeout  Derivation = "timeout"
	DeriveCategory Derivation = "category"
	DeriveTempDir  Derivation = "tempdir"
)

// Derive applies a named derivation to the bindings of a match.
func (e *Extractor) Derive(d Derivation, m query.Match, b pattern.Bindings) error {
	switch d {
	case DeriveNone:
		return nil
	case DeriveTimeout:
		return deriveTimeout(m, b)
	case DeriveCategory:
		u := e.binder.Project().Unit(m.File)
		return e.deriveCategory(u, m, b)
	case DeriveTempDir:
		u := e.binder.Project().Unit(m.File)
		if u == nil {
			return &BindError{Node: m.Node, Reason: "unknown file"}
		}
		return e.deriveTempDir(u, m, b)
	}
	return fmt.Errorf("unknown derivation %q", d)
}

// deriveTimeout converts a millisecond timeout literal into a value and a time unit,
// preferring whole seconds.
func deriveTimeout(m query.Match, b pattern.Bindings) error {
	raw, ok := b["timeout"]
	if !ok {
		return &BindError{Node: m.Node, Reason: "timeout not bound"}
	}
	text := strings.TrimRight(strings.ReplaceAll(raw.Text, "_", ""), "lL")
	millis, err := strconv.ParseInt(text, 10, 64)
	if err != nil || millis <= 0 {
		return &BindError{Node: m.Node, Reason: "timeout is not a positive decimal literal"}
	}
	if millis >= 1000 && millis%1000 == 0 {
		b["timeoutValue"] = pattern.Computed(strconv.FormatInt(millis/1000, 10))
		b["timeoutUnit"] = pattern.Computed("SECONDS")
	} else {
		b["timeoutValue"] = pattern.Computed(strconv.FormatInt(millis, 10))
		b["timeoutUnit"] = pattern.Computed("MILLISECONDS")
	}
	return nil
}

// deriveCategory turns @Category(A.class) or @Category({A.class, B.class}) into the
// text of one @Tag per category.
func (e *Extractor) deriveCategory(u *parse.Unit, m query.Match, b pattern.Bindings) error {
	raw, ok := b["value"]
	if !ok || u == nil {
		return &BindError{Node: m.Node, Reason: "category not bound"}
	}
	node := nodeAt(u, m.Node.ID, raw.Span)
	if node == ast.InvalidNodeID {
		return &BindError{Node: m.Node, Reason: "category value not found"}
	}

	var literals []ast.NodeID
	switch u.Kind(node) {
	case "class_literal":
		literals = append(literals, node)
	case "element_value_array_initializer":
		for _, c := range u.NamedChildren(node) {
			if u.Kind(c) != "class_literal" {
				return &BindError{Node: m.Node, Reason: "category element is not a class literal"}
			}
			literals = append(literals, c)
		}
	default:
		return &BindError{Node: m.Node, Reason: "category is not a class literal"}
	}
	if len(literals) == 0 {
		return &BindError{Node: m.Node, Reason: "empty category list"}
	}

	var tags []string
	for _, lit := range literals {
		typeNode := u.NamedChildren(lit)
		if len(typeNode) == 0 {
			return &BindError{Node: m.Node, Reason: "malformed class literal"}
		}
		name := base.LastSegment(compact(u.Text(typeNode[0])))
		tags = append(tags, fmt.Sprintf("@Tag(%s)", strconv.Quote(name)))
	}
	b["tags"] = pattern.Computed(strings.Join(tags, " "))
	return nil
}
