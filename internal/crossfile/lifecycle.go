package crossfile

import (
	"strings"

	"github.com/armchr/junitmig/internal/model/ast"
	"github.com/armchr/junitmig/internal/parse"
	"github.com/armchr/junitmig/internal/rewrite"
)

const (
	ExternalResource    = "org.junit.rules.ExternalResource"
	RuleAnnotation      = "org.junit.Rule"
	ClassRuleAnnotation = "org.junit.ClassRule"
	RegisterExtension   = "org.junit.jupiter.api.extension.RegisterExtension"
	ExtensionContext    = "org.junit.jupiter.api.extension.ExtensionContext"

	extensionPackage = "org.junit.jupiter.api.extension."
	contextParam     = "(ExtensionContext context)"
)

// Mode selects the callback pair a rule resource is adapted to.
type Mode int

const (
	PerTest  Mode = iota // @Rule: BeforeEachCallback, AfterEachCallback
	PerClass             // @ClassRule: BeforeAllCallback, AfterAllCallback
)

func (m Mode) String() string {
	if m == PerClass {
		return "class"
	}
	return "test"
}

func (m Mode) callbacks() (string, string) {
	if m == PerClass {
		return "BeforeAllCallback", "AfterAllCallback"
	}
	return "BeforeEachCallback", "AfterEachCallback"
}

func (m Mode) methods() (string, string) {
	if m == PerClass {
		return "beforeAll", "afterAll"
	}
	return "beforeEach", "afterEach"
}

// rename maps the legacy template method names to the callback names.
func (m Mode) rename(old string) string {
	before, after := m.methods()
	switch old {
	case "before":
		return before
	case "after":
		return after
	}
	return ""
}

func (m Mode) implementsClause() string {
	before, after := m.callbacks()
	return before + ", " + after
}

func (m Mode) imports() []string {
	before, after := m.callbacks()
	return []string{extensionPackage + before, extensionPackage + after, ExtensionContext}
}

type adapter struct {
	u       *parse.Unit
	cleanup string
	nl      string
}

func newAdapter(u *parse.Unit, cleanup string) *adapter {
	return &adapter{u: u, cleanup: cleanup, nl: newline(u.Source)}
}

func (a *adapter) replace(span ast.Span, text string) rewrite.Edit {
	return rewrite.Edit{
		File:        a.u.ID,
		Span:        span,
		Replacement: text,
		HasSpan:     true,
		CleanupID:   a.cleanup,
	}
}

func (a *adapter) replaceNode(id ast.NodeID, text string) rewrite.Edit {
	e := a.replace(a.u.Span(id), text)
	e.Node = a.u.Ref(id)
	return e
}

func (a *adapter) imports(delta rewrite.ImportDelta) rewrite.Edit {
	return rewrite.Edit{File: a.u.ID, Imports: delta, CleanupID: a.cleanup}
}

// lifecycleEdits adapts the before()/after() overrides declared in a class body. super
// calls of a type directly extending ExternalResource are dropped since the base
// implementation is empty; deeper in the hierarchy they are renamed.
func (a *adapter) lifecycleEdits(body ast.NodeID, mode Mode, direct bool) ([]rewrite.Edit, map[string]bool) {
	u := a.u
	var edits []rewrite.Edit
	found := make(map[string]bool)

	for _, m := range u.ChildrenByKind(body, "method_declaration") {
		nameNode := u.ChildByField(m, "name")
		params := u.ChildByField(m, "parameters")
		if nameNode == ast.InvalidNodeID || params == ast.InvalidNodeID {
			continue
		}
		newName := mode.rename(u.Text(nameNode))
		if newName == "" || len(u.NamedChildren(params)) != 0 {
			continue
		}
		found[u.Text(nameNode)] = true

		if p := u.ModifierNode(m, "protected"); p != ast.InvalidNodeID {
			edits = append(edits, a.replaceNode(p, "public"))
		}
		edits = append(edits, a.replaceNode(nameNode, newName))
		edits = append(edits, a.replaceNode(params, contextParam))

		if throws := u.ChildByKind(m, "throws"); throws != ast.InvalidNodeID {
			for _, t := range u.NamedChildren(throws) {
				if u.Text(t) == "Throwable" || u.Text(t) == "java.lang.Throwable" {
					edits = append(edits, a.replaceNode(t, "Exception"))
				}
			}
		}

		if methodBody := u.ChildByField(m, "body"); methodBody != ast.InvalidNodeID {
			edits = append(edits, a.superCallEdits(methodBody, mode, direct)...)
		}
	}
	return edits, found
}

func (a *adapter) superCallEdits(methodBody ast.NodeID, mode Mode, direct bool) []rewrite.Edit {
	u := a.u
	var edits []rewrite.Edit
	u.Walk(methodBody, func(id ast.NodeID, kind string) bool {
		switch kind {
		case "class_body", "lambda_expression":
			return false
		case "method_invocation":
		default:
			return true
		}
		object := u.ChildByField(id, "object")
		name := u.ChildByField(id, "name")
		args := u.ChildByField(id, "arguments")
		if object == ast.InvalidNodeID || u.Kind(object) != "super" || name == ast.InvalidNodeID {
			return true
		}
		newName := mode.rename(u.Text(name))
		if newName == "" || len(u.NamedChildren(args)) != 0 {
			return true
		}
		if !direct {
			edits = append(edits, a.replaceNode(id, "super."+newName+"(context)"))
			return false
		}
		if stmt := u.Parent(id); u.Kind(stmt) == "expression_statement" {
			edits = append(edits, a.replace(a.lineSpan(u.Span(stmt)), ""))
		}
		return false
	})
	return edits
}

// lineSpan widens span to its whole line when nothing else is on that line.
func (a *adapter) lineSpan(span ast.Span) ast.Span {
	src := a.u.Source
	start := span.Start
	for start > 0 && (src[start-1] == ' ' || src[start-1] == '\t') {
		start--
	}
	if start > 0 && src[start-1] != '\n' && src[start-1] != '\r' {
		return span
	}
	end := span.End
	for end < len(src) && (src[end] == ' ' || src[end] == '\t') {
		end++
	}
	switch {
	case end < len(src) && src[end] == '\r' && end+1 < len(src) && src[end+1] == '\n':
		end += 2
	case end < len(src) && (src[end] == '\n' || src[end] == '\r'):
		end++
	case end < len(src):
		return span
	}
	return ast.Span{Start: start, End: end}
}

// headerEdits swaps "extends ExternalResource" for the callback interfaces.
func (a *adapter) headerEdits(decl ast.NodeID, mode Mode) []rewrite.Edit {
	u := a.u
	sc := u.ChildByKind(decl, "superclass")
	if sc == ast.InvalidNodeID {
		return nil
	}
	si := u.ChildByKind(decl, "super_interfaces")
	if si == ast.InvalidNodeID {
		return []rewrite.Edit{a.replaceNode(sc, "implements "+mode.implementsClause())}
	}

	start := u.Span(sc).Start
	for start > 0 && isSpace(u.Source[start-1]) {
		start--
	}
	edits := []rewrite.Edit{a.replace(ast.Span{Start: start, End: u.Span(sc).End}, "")}
	if list := u.ChildByKind(si, "type_list"); list != ast.InvalidNodeID {
		at := u.Span(list).End
		edits = append(edits, a.replace(ast.Span{Start: at, End: at}, ", "+mode.implementsClause()))
	}
	return edits
}

// stubs declares the callbacks a direct subclass did not override.
func (a *adapter) stubs(body ast.NodeID, mode Mode, found map[string]bool) []member {
	indent := a.memberIndent(body)
	var out []member
	for _, old := range []string{"before", "after"} {
		if found[old] {
			continue
		}
		out = append(out, member{
			text: "@Override" + a.nl + indent + "public void " + mode.rename(old) + contextParam + " {" + a.nl + indent + "}",
		})
	}
	return out
}

type member struct {
	text     string
	captures []rewrite.Capture
}

// appendMembers inserts declarations at the end of a class body. Captures are relative
// to the member text.
func (a *adapter) appendMembers(body ast.NodeID, indent string, members []member) rewrite.Edit {
	u := a.u
	var sb strings.Builder
	var captures []rewrite.Capture
	write := func(prefix string, m member) {
		sb.WriteString(prefix)
		for _, c := range m.captures {
			c.Offset += sb.Len()
			captures = append(captures, c)
		}
		sb.WriteString(m.text)
	}

	var children []ast.NodeID
	for _, c := range u.NamedChildren(body) {
		children = append(children, c)
	}
	if len(children) > 0 {
		for _, m := range members {
			write(a.nl+a.nl+indent, m)
		}
		at := u.Span(children[len(children)-1]).End
		e := a.replace(ast.Span{Start: at, End: at}, sb.String())
		e.Captures = captures
		return e
	}

	span := u.Span(body)
	sb.WriteString("{")
	for i, m := range members {
		prefix := a.nl + indent
		if i > 0 {
			prefix = a.nl + a.nl + indent
		}
		write(prefix, m)
	}
	sb.WriteString(a.nl + lineIndent(u.Source, span.End-1) + "}")
	e := a.replace(span, sb.String())
	e.Captures = captures
	return e
}

func (a *adapter) memberIndent(body ast.NodeID) string {
	u := a.u
	if children := u.NamedChildren(body); len(children) > 0 {
		return lineIndent(u.Source, u.Span(children[0]).Start)
	}
	outer := lineIndent(u.Source, u.Span(body).Start)
	if strings.Contains(outer, "\t") {
		return outer + "\t"
	}
	return outer + "    "
}

// lineIndent returns the leading whitespace of the line containing pos.
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

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func newline(src []byte) string {
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
