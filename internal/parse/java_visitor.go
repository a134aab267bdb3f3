package parse

import (
	"github.com/armchr/junitmig/internal/model/ast"
	"go.uber.org/zap"
)

// Annotation is one annotation use on a declaration.
type Annotation struct {
	Name      string // name as written, simple or qualified
	Node      ast.NodeID
	NameNode  ast.NodeID
	Marker    bool
	ArgList   ast.NodeID
	Arguments map[string]ast.NodeID // element values keyed by attribute name, "value" for the single-element form
}

// Variable describes the declaration a simple name resolves to.
type Variable struct {
	Name   string
	Type   string // declared type text, empty when inferred (lambda parameter)
	Init   ast.NodeID
	Node   ast.NodeID
	Field  bool
	Static bool
	Final  bool
}

// JavaVisitor extracts declaration-level facts from a parsed unit: annotations and the
// declarations visible from a given node.
type JavaVisitor struct {
	logger *zap.Logger
}

func NewJavaVisitor(logger *zap.Logger) *JavaVisitor {
	return &JavaVisitor{logger: logger}
}

// ExtractAnnotations returns the annotations attached to a declaration's modifiers.
func (jv *JavaVisitor) ExtractAnnotations(u *Unit, decl ast.NodeID) []Annotation {
	modifiers := u.ChildByKind(decl, "modifiers")
	if modifiers == ast.InvalidNodeID {
		return nil
	}

	var annotations []Annotation
	for _, child := range u.Children(modifiers) {
		kind := u.Kind(child)
		if kind == "marker_annotation" || kind == "annotation" {
			if ann, ok := jv.AnnotationAt(u, child); ok {
				annotations = append(annotations, ann)
			}
		}
	}
	return annotations
}

// AnnotationAt decodes a marker_annotation or annotation node.
func (jv *JavaVisitor) AnnotationAt(u *Unit, node ast.NodeID) (Annotation, bool) {
	kind := u.Kind(node)
	if kind != "marker_annotation" && kind != "annotation" {
		return Annotation{}, false
	}
	nameNode := u.ChildByField(node, "name")
	if nameNode == ast.InvalidNodeID {
		return Annotation{}, false
	}

	ann := Annotation{
		Name:     compactName(u.Text(nameNode)),
		Node:     node,
		NameNode: nameNode,
		Marker:   kind == "marker_annotation",
		ArgList:  ast.InvalidNodeID,
	}
	if kind == "annotation" {
		if argList := u.ChildByKind(node, "annotation_argument_list"); argList != ast.InvalidNodeID {
			ann.ArgList = argList
			ann.Arguments = jv.extractAnnotationArguments(u, argList)
		}
	}
	return ann, true
}

func (jv *JavaVisitor) extractAnnotationArguments(u *Unit, argList ast.NodeID) map[string]ast.NodeID {
	args := make(map[string]ast.NodeID)
	for _, child := range u.NamedChildren(argList) {
		switch u.Kind(child) {
		case "element_value_pair":
			key := u.ChildByField(child, "key")
			value := u.ChildByField(child, "value")
			if key != ast.InvalidNodeID && value != ast.InvalidNodeID {
				args[u.Text(key)] = value
			}
		case "line_comment", "block_comment":
		default:
			// single element form: @Ignore("reason")
			args["value"] = child
		}
	}
	return args
}

// LookupVariable finds the declaration of a simple name as seen from node at. Locals and
// parameters shadow fields; fields are searched in every enclosing class body, including
// anonymous ones.
func (jv *JavaVisitor) LookupVariable(u *Unit, name string, at ast.NodeID) (Variable, bool) {
	atStart := u.Span(at).Start
	child := at
	for p := u.Parent(at); p != ast.InvalidNodeID; child, p = p, u.Parent(p) {
		switch u.Kind(p) {
		case "block", "switch_block_statement_group", "constructor_body":
			for _, c := range u.Children(p) {
				if u.Span(c).Start >= atStart {
					break
				}
				if u.Kind(c) == "local_variable_declaration" {
					if v, ok := jv.declaratorVariable(u, c, name, false); ok {
						return v, true
					}
				}
			}
		case "for_statement":
			if init := u.ChildByField(p, "init"); init != ast.InvalidNodeID && init != child &&
				u.Kind(init) == "local_variable_declaration" {
				if v, ok := jv.declaratorVariable(u, init, name, false); ok {
					return v, true
				}
			}
		case "enhanced_for_statement":
			if n := u.ChildByField(p, "name"); n != ast.InvalidNodeID && u.Text(n) == name {
				return Variable{Name: name, Type: fieldText(u, p, "type"), Node: p, Init: ast.InvalidNodeID}, true
			}
		case "catch_clause":
			if param := u.ChildByKind(p, "catch_formal_parameter"); param != ast.InvalidNodeID {
				if n := u.ChildByField(param, "name"); n != ast.InvalidNodeID && u.Text(n) == name {
					typeText := ""
					if ct := u.ChildByKind(param, "catch_type"); ct != ast.InvalidNodeID {
						typeText = compactName(u.Text(ct))
					}
					return Variable{Name: name, Type: typeText, Node: param, Init: ast.InvalidNodeID}, true
				}
			}
		case "try_with_resources_statement":
			if spec := u.ChildByField(p, "resources"); spec != ast.InvalidNodeID {
				for _, res := range u.ChildrenByKind(spec, "resource") {
					if n := u.ChildByField(res, "name"); n != ast.InvalidNodeID && u.Text(n) == name {
						return Variable{Name: name, Type: fieldText(u, res, "type"), Init: u.ChildByField(res, "value"), Node: res}, true
					}
				}
			}
		case "method_declaration", "constructor_declaration", "compact_constructor_declaration":
			if params := u.ChildByField(p, "parameters"); params != ast.InvalidNodeID {
				if v, ok := jv.parameterVariable(u, params, name); ok {
					return v, true
				}
			}
		case "lambda_expression":
			params := u.ChildByField(p, "parameters")
			switch u.Kind(params) {
			case "identifier":
				if u.Text(params) == name {
					return Variable{Name: name, Node: params, Init: ast.InvalidNodeID}, true
				}
			case "inferred_parameters":
				for _, id := range u.ChildrenByKind(params, "identifier") {
					if u.Text(id) == name {
						return Variable{Name: name, Node: id, Init: ast.InvalidNodeID}, true
					}
				}
			case "formal_parameters":
				if v, ok := jv.parameterVariable(u, params, name); ok {
					return v, true
				}
			}
		case "class_body", "enum_body_declarations", "interface_body":
			inInterface := u.Kind(p) == "interface_body"
			for _, c := range u.ChildrenByKind(p, "field_declaration") {
				if v, ok := jv.declaratorVariable(u, c, name, true); ok {
					if inInterface {
						v.Static, v.Final = true, true
					}
					return v, true
				}
			}
		case "enum_body":
			for _, c := range u.ChildrenByKind(p, "enum_constant") {
				if n := u.ChildByField(c, "name"); n != ast.InvalidNodeID && u.Text(n) == name {
					td := u.TypeAt(p)
					typeName := ""
					if td != nil {
						typeName = td.Name
					}
					return Variable{Name: name, Type: typeName, Node: c, Field: true, Static: true, Final: true, Init: ast.InvalidNodeID}, true
				}
			}
		}
	}
	return Variable{}, false
}

func (jv *JavaVisitor) declaratorVariable(u *Unit, decl ast.NodeID, name string, field bool) (Variable, bool) {
	for _, d := range u.ChildrenByKind(decl, "variable_declarator") {
		n := u.ChildByField(d, "name")
		if n == ast.InvalidNodeID || u.Text(n) != name {
			continue
		}
		typeText := fieldText(u, decl, "type")
		if dims := u.ChildByField(d, "dimensions"); dims != ast.InvalidNodeID {
			typeText += compactName(u.Text(dims))
		}
		return Variable{
			Name:   name,
			Type:   typeText,
			Init:   u.ChildByField(d, "value"),
			Node:   decl,
			Field:  field,
			Static: u.HasModifier(decl, "static"),
			Final:  u.HasModifier(decl, "final"),
		}, true
	}
	return Variable{}, false
}

func (jv *JavaVisitor) parameterVariable(u *Unit, params ast.NodeID, name string) (Variable, bool) {
	for _, param := range u.NamedChildren(params) {
		kind := u.Kind(param)
		if kind != "formal_parameter" && kind != "spread_parameter" {
			continue
		}
		n := u.ChildByField(param, "name")
		if n == ast.InvalidNodeID {
			// spread_parameter keeps its name inside a variable_declarator
			if d := u.ChildByKind(param, "variable_declarator"); d != ast.InvalidNodeID {
				n = u.ChildByField(d, "name")
			}
		}
		if n == ast.InvalidNodeID || u.Text(n) != name {
			continue
		}
		typeText := fieldText(u, param, "type")
		if typeText == "" {
			for _, c := range u.NamedChildren(param) {
				if c != n && u.Kind(c) != "modifiers" && u.Kind(c) != "variable_declarator" {
					typeText = compactName(u.Text(c))
					break
				}
			}
		}
		if kind == "spread_parameter" {
			typeText += "[]"
		}
		return Variable{Name: name, Type: typeText, Node: param, Init: ast.InvalidNodeID}, true
	}
	return Variable{}, false
}

func fieldText(u *Unit, node ast.NodeID, field string) string {
	if c := u.ChildByField(node, field); c != ast.InvalidNodeID {
		return compactName(u.Text(c))
	}
	return ""
}
