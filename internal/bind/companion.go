package bind

import (
	"fmt"

	"github.com/armchr/junitmig/internal/model/ast"
	"github.com/armchr/junitmig/internal/parse"
	"github.com/armchr/junitmig/internal/pattern"
	"github.com/armchr/junitmig/internal/query"
)

// Companion names the edits a match needs outside its own node.
type Companion string

const (
	CompanionNone Companion = ""
	// CompanionExpected wraps the body of the annotated method in assertThrows.
	CompanionExpected Companion = "expected"
	// CompanionTempDir rewrites the calls made on a TemporaryFolder field.
	CompanionTempDir Companion = "tempdir"
)

// Fragment is a rewrite of a source range outside the matched node. Template is rendered
// against Bindings like a rule replacement.
type Fragment struct {
	Span     ast.Span
	Template string
	Bindings pattern.Bindings
}

// Companions computes the fragments that go with a bound match. It may add bindings the
// rule's imports refer to.
func (e *Extractor) Companions(c Companion, m query.Match, b pattern.Bindings) ([]Fragment, error) {
	if c == CompanionNone {
		return nil, nil
	}
	u := e.binder.Project().Unit(m.File)
	if u == nil {
		return nil, fmt.Errorf("companions: unknown file %d", m.File)
	}
	switch c {
	case CompanionExpected:
		return expectedBody(u, m, b)
	case CompanionTempDir:
		return e.tempDirUses(u, m, b)
	}
	return nil, fmt.Errorf("unknown companion %q", c)
}

// expectedBody moves the statements of a method annotated with @Test(expected = X.class)
// into assertThrows(X.class, () -> { ... }). Statements keep their indentation.
func expectedBody(u *parse.Unit, m query.Match, b pattern.Bindings) ([]Fragment, error) {
	exception, ok := b["exception"]
	if !ok {
		return nil, &BindError{Node: m.Node, Reason: "expected exception not bound"}
	}
	if lit := nodeAt(u, m.Node.ID, exception.Span); lit == ast.InvalidNodeID || u.Kind(lit) != "class_literal" {
		return nil, &BindError{Node: m.Node, Reason: "expected exception is not a class literal"}
	}

	modifiers := u.Parent(m.Node.ID)
	method := u.Parent(modifiers)
	if u.Kind(modifiers) != "modifiers" || u.Kind(method) != "method_declaration" {
		return nil, &BindError{Node: m.Node, Reason: "annotation is not on a method"}
	}
	body := u.ChildByField(method, "body")
	if body == ast.InvalidNodeID {
		return nil, &BindError{Node: m.Node, Reason: "method has no body"}
	}

	span := u.Span(body)
	open, closing := span.Start+1, span.End-1
	closeLine, ownLine := lineStart(u.Source, closing)
	fb := pattern.Bindings{"exception": exception}

	if !ownLine || closeLine <= open {
		fb["statements"] = pattern.Captured(u.TextOf(ast.Span{Start: open, End: closing}), ast.Span{Start: open, End: closing})
		return []Fragment{{
			Span:     span,
			Template: "{ assertThrows($exception, () -> {$statements}); }",
			Bindings: fb,
		}}, nil
	}

	nl := lineBreak(u.Source)
	indent := lineIndent(u.Source, span.Start) + indentUnit(u.Source, span.Start)
	if stmts := u.NamedChildren(body); len(stmts) > 0 {
		indent = lineIndent(u.Source, u.Span(stmts[0]).Start)
	}
	inner := ast.Span{Start: open, End: closeLine}
	fb["statements"] = pattern.Captured(u.TextOf(inner), inner)
	return []Fragment{{
		Span: span,
		Template: "{" + nl + indent + "assertThrows($exception, () -> {$statements" +
			indent + "});" + nl + u.TextOf(ast.Span{Start: closeLine, End: closing}) + "}",
		Bindings: fb,
	}}, nil
}

// nodeAt finds the node below root covering exactly span.
func nodeAt(u *parse.Unit, root ast.NodeID, span ast.Span) ast.NodeID {
	found := ast.InvalidNodeID
	u.Walk(root, func(id ast.NodeID, kind string) bool {
		if found != ast.InvalidNodeID {
			return false
		}
		if u.Span(id) == span {
			found = id
			return false
		}
		return true
	})
	return found
}

// lineStart returns the start of the line of pos and whether only blanks precede pos on
// that line.
func lineStart(src []byte, pos int) (int, bool) {
	i := pos
	for i > 0 && (src[i-1] == ' ' || src[i-1] == '\t') {
		i--
	}
	if i > 0 && (src[i-1] == '\n' || src[i-1] == '\r') {
		return i, true
	}
	return pos, false
}

// lineIndent returns the leading blanks of the line containing pos.
func lineIndent(src []byte, pos int) string {
	start := pos
	for start > 0 && src[start-1] != '\n' && src[start-1] != '\r' {
		start--
	}
	end := start
	for end < len(src) && (src[end] == ' ' || src[end] == '\t') {
		end++
	}
	return string(src[start:end])
}

func indentUnit(src []byte, pos int) string {
	for _, c := range lineIndent(src, pos) {
		if c == '\t' {
			return "\t"
		}
	}
	return "    "
}

func lineBreak(src []byte) string {
	for i, c := range src {
		if c == '\n' {
			if i > 0 && src[i-1] == '\r' {
				return "\r\n"
			}
			return "\n"
		}
	}
	return "\n"
}
