package bind

import (
	"sort"
	"strings"

	"github.com/armchr/junitmig/internal/model/ast"
	"github.com/armchr/junitmig/internal/parse"
	"github.com/armchr/junitmig/internal/pattern"
	"github.com/armchr/junitmig/internal/query"
)

const (
	temporaryFolder = "org.junit.rules.TemporaryFolder"
	ruleAnnotation  = "org.junit.Rule"
	classRule       = "org.junit.ClassRule"
	filesType       = "java.nio.file.Files"
)

// folderCalls maps the TemporaryFolder calls that have a Path counterpart to their
// replacement and arity.
var folderCalls = map[string]struct {
	template string
	args     int
	files    bool
}{
	"getRoot":   {"$folder.toFile()", 0, false},
	"newFile":   {"Files.createFile($folder.resolve($args)).toFile()", 1, true},
	"newFolder": {"Files.createDirectories($folder.resolve($args)).toFile()", 1, true},
}

type splice struct {
	span ast.Span
	text string
}

// deriveTempDir renders a @Rule TemporaryFolder field as a @TempDir Path field: the rule
// annotation becomes @TempDir, the type becomes Path, and final and the initializer go.
func (e *Extractor) deriveTempDir(u *parse.Unit, m query.Match, b pattern.Bindings) error {
	field := m.Node.ID
	if m.Owner != temporaryFolder {
		return &BindError{Node: m.Node, Reason: "field holds a TemporaryFolder subclass"}
	}
	typeNode := u.ChildByField(field, "type")
	if qn, err := e.binder.ResolveType(u, compact(u.Text(typeNode)), typeNode); err != nil || qn != temporaryFolder {
		return &BindError{Node: m.Node, Reason: "field is not declared as TemporaryFolder"}
	}

	var edits []splice
	rules := 0
	for _, ann := range e.binder.Visitor().ExtractAnnotations(u, field) {
		qn, err := e.binder.ResolveType(u, ann.Name, ann.Node)
		if err != nil || (qn != ruleAnnotation && qn != classRule) {
			continue
		}
		if !ann.Marker || (qn == classRule) != u.HasModifier(field, "static") {
			return &BindError{Node: m.Node, Reason: "rule annotation does not fit the field"}
		}
		rules++
		edits = append(edits, splice{u.Span(ann.Node), "@TempDir"})
	}
	if rules != 1 {
		return &BindError{Node: m.Node, Reason: "field is not a single rule"}
	}

	if final := u.ModifierNode(field, "final"); final != ast.InvalidNodeID {
		span := u.Span(final)
		for span.End < len(u.Source) && (u.Source[span.End] == ' ' || u.Source[span.End] == '\t') {
			span.End++
		}
		edits = append(edits, splice{span, ""})
	}
	edits = append(edits, splice{u.Span(typeNode), "Path"})

	decl := u.ChildByKind(field, "variable_declarator")
	if value := u.ChildByField(decl, "value"); value != ast.InvalidNodeID {
		if !plainCreation(u, value) {
			return &BindError{Node: m.Node, Reason: "TemporaryFolder is not created with its default constructor"}
		}
		name := u.ChildByField(decl, "name")
		edits = append(edits, splice{ast.Span{Start: u.Span(name).End, End: u.Span(decl).End}, ""})
	}

	sort.Slice(edits, func(i, j int) bool { return edits[i].span.Start < edits[j].span.Start })
	span := u.Span(field)
	var sb strings.Builder
	cursor := span.Start
	for _, s := range edits {
		sb.Write(u.Source[cursor:s.span.Start])
		sb.WriteString(s.text)
		cursor = s.span.End
	}
	sb.Write(u.Source[cursor:span.End])
	b["tempDirField"] = pattern.Computed(sb.String())
	return nil
}

func plainCreation(u *parse.Unit, value ast.NodeID) bool {
	if u.Kind(value) != "object_creation_expression" || u.ChildByKind(value, "class_body") != ast.InvalidNodeID {
		return false
	}
	args := u.ChildByField(value, "arguments")
	return args != ast.InvalidNodeID && len(arguments(u, args)) == 0
}

// tempDirUses rewrites every call made on the field inside its class. Any other use of
// the field refuses the match, since a Path cannot stand in for the rule there.
func (e *Extractor) tempDirUses(u *parse.Unit, m query.Match, b pattern.Bindings) ([]Fragment, error) {
	td := u.TypeAt(m.Node.ID)
	if td == nil {
		return nil, &BindError{Node: m.Node, Reason: "field outside a class"}
	}
	name := m.Name

	var out []Fragment
	var failure error
	files := false
	u.Walk(td.Node, func(id ast.NodeID, kind string) bool {
		if failure != nil {
			return false
		}
		if id == m.Node.ID {
			return false
		}
		if kind != "identifier" || u.Text(id) != name {
			return true
		}
		expr, ok := e.fieldReference(u, id, m.Node.ID)
		if !ok {
			return true
		}
		call := u.Parent(expr)
		if u.Kind(call) != "method_invocation" || u.ChildByField(call, "object") != expr {
			failure = &BindError{Node: m.Node, Reason: "TemporaryFolder field used outside a call"}
			return false
		}
		method := u.Text(u.ChildByField(call, "name"))
		args := arguments(u, u.ChildByField(call, "arguments"))
		repl, known := folderCalls[method]
		if !known || len(args) != repl.args {
			failure = &BindError{Node: m.Node, Reason: "TemporaryFolder." + method + " has no Path counterpart"}
			return false
		}
		fb := pattern.Bindings{"folder": capture(u, expr)}
		if len(args) > 0 {
			fb["args"] = capture(u, args[0])
		}
		out = append(out, Fragment{Span: u.Span(call), Template: repl.template, Bindings: fb})
		files = files || repl.files
		return false
	})
	if failure != nil {
		return nil, failure
	}
	if files {
		b["filesImport"] = pattern.Computed(filesType)
	}
	return out, nil
}

// fieldReference reports whether identifier id reads the field declared by field, and
// returns the expression naming it: the identifier itself or this.name.
func (e *Extractor) fieldReference(u *parse.Unit, id, field ast.NodeID) (ast.NodeID, bool) {
	parent := u.Parent(id)
	if u.ChildByField(parent, "name") == id {
		return ast.InvalidNodeID, false
	}
	if u.Kind(parent) == "field_access" {
		if u.ChildByField(parent, "field") != id {
			return ast.InvalidNodeID, false
		}
		if object := u.ChildByField(parent, "object"); u.Kind(object) == "this" {
			return parent, true
		}
		return ast.InvalidNodeID, false
	}
	v, ok := e.binder.Visitor().LookupVariable(u, u.Text(id), id)
	if !ok || !v.Field || v.Node != field {
		return ast.InvalidNodeID, false
	}
	return id, true
}

func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}
