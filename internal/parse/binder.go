package parse

import (
	"fmt"
	"strings"

	"github.com/armchr/junitmig/internal/model/ast"
	"github.com/armchr/junitmig/pkg/lsp/base"
	"go.uber.org/zap"
)

const (
	TypeObject = "java.lang.Object"
	TypeString = "java.lang.String"
	TypeClass  = "java.lang.Class"
	TypeNull   = "null"

	// AnonymousOwner is the owner reported for methods declared in anonymous class bodies.
	AnonymousOwner = "<anonymous>"
)

// UnresolvedTypeError reports a name whose binding cannot be determined from the sources
// of the run. Matches depending on it are discarded, never matched by text.
type UnresolvedTypeError struct {
	Name string
	File string
	Why  string
}

func (e *UnresolvedTypeError) Error() string {
	if e.Why != "" {
		return fmt.Sprintf("unresolved type %q in %s: %s", e.Name, e.File, e.Why)
	}
	return fmt.Sprintf("unresolved type %q in %s", e.Name, e.File)
}

// Binder resolves names and expression types against the units of a project. It plays
// the role of a compiler's binding resolution, limited to what the migration catalog needs.
type Binder struct {
	project *Project
	visitor *JavaVisitor
	logger  *zap.Logger
}

func NewBinder(project *Project, logger *zap.Logger) *Binder {
	return &Binder{
		project: project,
		visitor: NewJavaVisitor(logger),
		logger:  logger,
	}
}

func (b *Binder) Project() *Project {
	return b.project
}

func (b *Binder) Visitor() *JavaVisitor {
	return b.visitor
}

// ResolveType maps a type name as written at node at to its qualified name. Array
// suffixes are kept, type arguments dropped, primitives returned unchanged.
func (b *Binder) ResolveType(u *Unit, name string, at ast.NodeID) (string, error) {
	name = stripTypeArguments(compactName(name))
	dims := ""
	for strings.HasSuffix(name, "[]") {
		dims += "[]"
		name = strings.TrimSuffix(name, "[]")
	}
	if strings.HasSuffix(name, "...") {
		dims += "[]"
		name = strings.TrimSuffix(name, "...")
	}
	if IsPrimitive(name) || name == "void" {
		return name + dims, nil
	}

	if idx := strings.Index(name, "."); idx >= 0 {
		head := name[:idx]
		if head != "" && head[0] >= 'a' && head[0] <= 'z' {
			return name + dims, nil
		}
		qn, err := b.resolveSimpleType(u, head, at, false)
		if err != nil {
			return name + dims, nil
		}
		return qn + name[idx:] + dims, nil
	}

	qn, err := b.resolveSimpleType(u, name, at, true)
	if err != nil {
		return "", err
	}
	return qn + dims, nil
}

func (b *Binder) resolveSimpleType(u *Unit, name string, at ast.NodeID, samePackageFallback bool) (string, error) {
	if b.isTypeParameter(u, name, at) {
		return name, nil
	}

	// member and local types shadow everything else
	for td := u.TypeAt(at); td != nil; td = td.Outer {
		if td.Name == name {
			return td.QualifiedName, nil
		}
		for _, t := range u.Types {
			if t.Outer == td && t.Name == name {
				return t.QualifiedName, nil
			}
		}
	}
	for _, t := range u.Types {
		if t.Outer == nil && t.Name == name {
			return t.QualifiedName, nil
		}
	}

	for _, imp := range u.Imports {
		if !imp.Static && !imp.Wildcard && base.LastSegment(imp.Name) == name {
			return imp.Name, nil
		}
	}

	if samePkg := qualify(u.Package, name); b.project != nil && b.project.HasType(samePkg) {
		return samePkg, nil
	}

	var candidates []string
	onDemand := false
	for _, imp := range u.Imports {
		if imp.Static || !imp.Wildcard {
			continue
		}
		onDemand = true
		cand := imp.Name + "." + name
		if (b.project != nil && b.project.HasType(cand)) || IsKnownType(cand) {
			candidates = append(candidates, cand)
		}
	}
	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
	default:
		return "", &UnresolvedTypeError{Name: name, File: u.Path, Why: "ambiguous on-demand imports"}
	}

	if IsKnownType("java.lang." + name) {
		return "java.lang." + name, nil
	}

	// without on-demand imports an unknown simple name can only live in the same package
	if samePackageFallback && !onDemand {
		return qualify(u.Package, name), nil
	}
	return "", &UnresolvedTypeError{Name: name, File: u.Path}
}

func (b *Binder) isTypeParameter(u *Unit, name string, at ast.NodeID) bool {
	for p := at; p != ast.InvalidNodeID; p = u.Parent(p) {
		switch u.Kind(p) {
		case "method_declaration", "constructor_declaration", "class_declaration",
			"interface_declaration", "record_declaration":
			params := u.ChildByKind(p, "type_parameters")
			if params == ast.InvalidNodeID {
				continue
			}
			for _, tp := range u.ChildrenByKind(params, "type_parameter") {
				for _, c := range u.NamedChildren(tp) {
					if (u.Kind(c) == "type_identifier" || u.Kind(c) == "identifier") && u.Text(c) == name {
						return true
					}
				}
			}
		}
	}
	return false
}

func qualify(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}

// ResolveMethodOwner finds the type an unqualified method call binds to: methods of the
// enclosing classes (declared or inherited) win over single static imports, which win
// over on-demand static imports.
func (b *Binder) ResolveMethodOwner(u *Unit, name string, at ast.NodeID) (string, error) {
	for p := u.Parent(at); p != ast.InvalidNodeID; p = u.Parent(p) {
		kind := u.Kind(p)
		if kind != "class_body" && kind != "interface_body" && kind != "enum_body" {
			continue
		}
		owner := u.Parent(p)
		members := p
		if kind == "enum_body" {
			members = u.ChildByKind(p, "enum_body_declarations")
		}
		for _, m := range u.ChildrenByKind(members, "method_declaration") {
			if n := u.ChildByField(m, "name"); n != ast.InvalidNodeID && u.Text(n) == name {
				if td := u.TypeByNode(owner); td != nil {
					return td.QualifiedName, nil
				}
				return AnonymousOwner, nil
			}
		}
		var super string
		if u.Kind(owner) == "object_creation_expression" {
			super = fieldText(u, owner, "type")
		} else if td := u.TypeByNode(owner); td != nil {
			super = td.Superclass
		}
		if super != "" {
			if qn, err := b.ResolveType(u, super, owner); err == nil {
				if declarer, ok := b.inheritedMethodOwner(qn, name); ok {
					return declarer, nil
				}
			}
		}
	}

	for _, imp := range u.Imports {
		if imp.Static && !imp.Wildcard && base.LastSegment(imp.Name) == name {
			return base.Qualifier(imp.Name), nil
		}
	}

	var candidates []string
	for _, imp := range u.Imports {
		if !imp.Static || !imp.Wildcard {
			continue
		}
		if HasKnownStaticMember(imp.Name, name) || b.declaresMethod(imp.Name, name) {
			candidates = append(candidates, imp.Name)
		}
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	if len(candidates) > 1 {
		return "", &UnresolvedTypeError{Name: name, File: u.Path, Why: "ambiguous static imports"}
	}
	return "", &UnresolvedTypeError{Name: name, File: u.Path, Why: "no declaration or static import"}
}

func (b *Binder) declaresMethod(qn, name string) bool {
	if b.project == nil {
		return false
	}
	u, td, ok := b.project.DeclaringUnit(qn)
	if !ok {
		return false
	}
	for _, m := range u.MethodsOf(td.Node) {
		if n := u.ChildByField(m, "name"); n != ast.InvalidNodeID && u.Text(n) == name {
			return true
		}
	}
	return false
}

func (b *Binder) inheritedMethodOwner(qn, name string) (string, bool) {
	for depth := 0; qn != "" && depth < 16; depth++ {
		if b.declaresMethod(qn, name) || HasKnownStaticMember(qn, name) {
			return qn, true
		}
		next, ok := b.SuperclassOf(qn)
		if !ok {
			return "", false
		}
		qn = next
	}
	return "", false
}

// SuperclassOf resolves the direct superclass of a type known to the run or the registry.
func (b *Binder) SuperclassOf(qn string) (string, bool) {
	if b.project != nil {
		if u, td, ok := b.project.DeclaringUnit(qn); ok {
			if td.Superclass == "" {
				return "", false
			}
			sc, err := b.ResolveType(u, td.Superclass, td.Node)
			if err != nil {
				return "", false
			}
			return sc, true
		}
	}
	sc, ok := knownSuperclasses[qn]
	return sc, ok
}

// IsSubtypeOf reports whether qn equals target or extends it through its superclass chain.
func (b *Binder) IsSubtypeOf(qn, target string) bool {
	for depth := 0; qn != "" && depth < 16; depth++ {
		if qn == target {
			return true
		}
		next, ok := b.SuperclassOf(qn)
		if !ok {
			return false
		}
		qn = next
	}
	return false
}

// ExpressionType returns the static type of an expression when it can be determined
// from the source: primitive names, qualified reference names, or "null".
func (b *Binder) ExpressionType(u *Unit, expr ast.NodeID) (string, bool) {
	switch u.Kind(expr) {
	case "string_literal", "text_block":
		return TypeString, true
	case "character_literal":
		return "char", true
	case "decimal_integer_literal", "hex_integer_literal", "octal_integer_literal", "binary_integer_literal":
		if t := u.Text(expr); strings.HasSuffix(t, "l") || strings.HasSuffix(t, "L") {
			return "long", true
		}
		return "int", true
	case "decimal_floating_point_literal", "hex_floating_point_literal":
		if t := u.Text(expr); strings.HasSuffix(t, "f") || strings.HasSuffix(t, "F") {
			return "float", true
		}
		return "double", true
	case "true", "false", "instanceof_expression":
		return "boolean", true
	case "null_literal":
		return TypeNull, true
	case "class_literal":
		return TypeClass, true
	case "this":
		if td := u.TypeAt(expr); td != nil {
			return td.QualifiedName, true
		}
	case "parenthesized_expression":
		if inner := u.NamedChildren(expr); len(inner) > 0 {
			return b.ExpressionType(u, inner[0])
		}
	case "unary_expression":
		op := u.ChildByField(expr, "operator")
		if op != ast.InvalidNodeID && u.Text(op) == "!" {
			return "boolean", true
		}
		return b.ExpressionType(u, u.ChildByField(expr, "operand"))
	case "binary_expression":
		return b.binaryType(u, expr)
	case "cast_expression", "object_creation_expression":
		return b.typeOfField(u, expr, "type")
	case "array_creation_expression":
		if t, ok := b.typeOfField(u, expr, "type"); ok {
			return t + "[]", true
		}
	case "ternary_expression":
		return b.ExpressionType(u, u.ChildByField(expr, "consequence"))
	case "assignment_expression":
		return b.ExpressionType(u, u.ChildByField(expr, "left"))
	case "array_access":
		if t, ok := b.ExpressionType(u, u.ChildByField(expr, "array")); ok && strings.HasSuffix(t, "[]") {
			return strings.TrimSuffix(t, "[]"), true
		}
	case "identifier":
		if v, ok := b.visitor.LookupVariable(u, u.Text(expr), expr); ok {
			return b.variableType(u, v)
		}
	case "field_access":
		return b.fieldAccessType(u, expr)
	case "method_invocation":
		return b.invocationType(u, expr)
	}
	return "", false
}

func (b *Binder) typeOfField(u *Unit, expr ast.NodeID, field string) (string, bool) {
	t := u.ChildByField(expr, field)
	if t == ast.InvalidNodeID {
		return "", false
	}
	qn, err := b.ResolveType(u, u.Text(t), t)
	if err != nil {
		return "", false
	}
	return qn, true
}

func (b *Binder) variableType(u *Unit, v Variable) (string, bool) {
	switch v.Type {
	case "":
		return "", false
	case "var":
		if v.Init == ast.InvalidNodeID {
			return "", false
		}
		return b.ExpressionType(u, v.Init)
	}
	qn, err := b.ResolveType(u, v.Type, v.Node)
	if err != nil {
		return "", false
	}
	return qn, true
}

var numericRank = map[string]int{"byte": 1, "short": 2, "char": 2, "int": 3, "long": 4, "float": 5, "double": 6}

func (b *Binder) binaryType(u *Unit, expr ast.NodeID) (string, bool) {
	op := u.ChildByField(expr, "operator")
	if op == ast.InvalidNodeID {
		return "", false
	}
	switch u.Text(op) {
	case "==", "!=", "<", ">", "<=", ">=", "&&", "||":
		return "boolean", true
	}
	left, lok := b.ExpressionType(u, u.ChildByField(expr, "left"))
	right, rok := b.ExpressionType(u, u.ChildByField(expr, "right"))
	if u.Text(op) == "+" && ((lok && left == TypeString) || (rok && right == TypeString)) {
		return TypeString, true
	}
	if !lok || !rok {
		return "", false
	}
	if left == "boolean" && right == "boolean" {
		return "boolean", true
	}
	l, r := numericRank[unbox(left)], numericRank[unbox(right)]
	if l == 0 || r == 0 {
		return "", false
	}
	switch {
	case l >= 5 || r >= 5:
		if l == 6 || r == 6 {
			return "double", true
		}
		return "float", true
	case l == 4 || r == 4:
		return "long", true
	}
	return "int", true
}

var boxes = map[string]string{
	"java.lang.Boolean": "boolean", "java.lang.Byte": "byte", "java.lang.Character": "char",
	"java.lang.Double": "double", "java.lang.Float": "float", "java.lang.Integer": "int",
	"java.lang.Long": "long", "java.lang.Short": "short",
}

func unbox(t string) string {
	if p, ok := boxes[t]; ok {
		return p
	}
	return t
}

func (b *Binder) fieldAccessType(u *Unit, expr ast.NodeID) (string, bool) {
	object := u.ChildByField(expr, "object")
	field := u.ChildByField(expr, "field")
	if object == ast.InvalidNodeID || field == ast.InvalidNodeID {
		return "", false
	}
	name := u.Text(field)

	var ownerType string
	switch u.Kind(object) {
	case "this":
		if td := u.TypeAt(expr); td != nil {
			ownerType = td.QualifiedName
		}
	default:
		if t, ok := b.ExpressionType(u, object); ok {
			if strings.HasSuffix(t, "[]") && name == "length" {
				return "int", true
			}
			ownerType = t
		} else if qn, err := b.ResolveType(u, u.Text(object), object); err == nil {
			ownerType = qn
		}
	}
	if ownerType == "" || b.project == nil {
		return "", false
	}
	du, td, ok := b.project.DeclaringUnit(ownerType)
	if !ok {
		return "", false
	}
	for _, c := range td.EnumConstants {
		if c == name {
			return td.QualifiedName, true
		}
	}
	for _, f := range du.FieldsOf(td) {
		if f.Name == name {
			qn, err := b.ResolveType(du, f.Type, f.Node)
			if err != nil {
				return "", false
			}
			return qn, true
		}
	}
	return "", false
}

func (b *Binder) invocationType(u *Unit, expr ast.NodeID) (string, bool) {
	nameNode := u.ChildByField(expr, "name")
	if nameNode == ast.InvalidNodeID {
		return "", false
	}
	name := u.Text(nameNode)
	switch name {
	case "equals", "isEmpty", "contains", "startsWith", "endsWith", "equalsIgnoreCase":
		return "boolean", true
	case "toString", "name", "trim", "toUpperCase", "toLowerCase", "substring":
		return TypeString, true
	case "hashCode", "size", "length", "compareTo", "indexOf", "ordinal":
		return "int", true
	}

	object := u.ChildByField(expr, "object")
	var ownerType string
	if object == ast.InvalidNodeID || u.Kind(object) == "this" {
		if td := u.TypeAt(expr); td != nil {
			ownerType = td.QualifiedName
		}
	} else if t, ok := b.ExpressionType(u, object); ok {
		ownerType = t
	} else if qn, err := b.ResolveType(u, u.Text(object), object); err == nil {
		ownerType = qn
	}
	if ownerType == "" || b.project == nil {
		return "", false
	}
	du, td, ok := b.project.DeclaringUnit(ownerType)
	if !ok {
		return "", false
	}
	for _, m := range du.MethodsOf(td.Node) {
		if n := du.ChildByField(m, "name"); n == ast.InvalidNodeID || du.Text(n) != name {
			continue
		}
		rt := du.ChildByField(m, "type")
		if rt == ast.InvalidNodeID {
			return "", false
		}
		qn, err := b.ResolveType(du, du.Text(rt), m)
		if err != nil {
			return "", false
		}
		return qn, true
	}
	return "", false
}

// IsReferenceType reports whether a resolved type name denotes an object type.
func IsReferenceType(t string) bool {
	return t != "" && t != TypeNull && t != "void" && !IsPrimitive(t)
}

// IsConstant reports whether an expression is a compile-time constant in the sense used
// for argument ordering: a literal, a class literal, a static final field or an enum
// constant.
func (b *Binder) IsConstant(u *Unit, expr ast.NodeID) bool {
	switch u.Kind(expr) {
	case "string_literal", "text_block", "character_literal", "decimal_integer_literal",
		"hex_integer_literal", "octal_integer_literal", "binary_integer_literal",
		"decimal_floating_point_literal", "hex_floating_point_literal", "true", "false",
		"null_literal", "class_literal":
		return true
	case "parenthesized_expression":
		if inner := u.NamedChildren(expr); len(inner) > 0 {
			return b.IsConstant(u, inner[0])
		}
	case "unary_expression":
		op := u.ChildByField(expr, "operator")
		if op != ast.InvalidNodeID && (u.Text(op) == "-" || u.Text(op) == "+") {
			return b.IsConstant(u, u.ChildByField(expr, "operand"))
		}
	case "identifier":
		name := u.Text(expr)
		if v, ok := b.visitor.LookupVariable(u, name, expr); ok {
			return v.Field && v.Static && v.Final
		}
		for _, imp := range u.Imports {
			if imp.Static && !imp.Wildcard && base.LastSegment(imp.Name) == name {
				return b.isConstantMember(base.Qualifier(imp.Name), name)
			}
		}
	case "field_access":
		object := u.ChildByField(expr, "object")
		field := u.ChildByField(expr, "field")
		if object == ast.InvalidNodeID || field == ast.InvalidNodeID {
			return false
		}
		if u.Kind(object) == "identifier" {
			if _, isVar := b.visitor.LookupVariable(u, u.Text(object), object); isVar {
				return false
			}
		}
		owner, err := b.ResolveType(u, u.Text(object), object)
		if err != nil {
			return false
		}
		return b.isConstantMember(owner, u.Text(field))
	}
	return false
}

func (b *Binder) isConstantMember(owner, name string) bool {
	if b.project != nil {
		if du, td, ok := b.project.DeclaringUnit(owner); ok {
			for _, c := range td.EnumConstants {
				if c == name {
					return true
				}
			}
			for _, f := range du.FieldsOf(td) {
				if f.Name == name {
					return f.Static && f.Final
				}
			}
			return false
		}
	}
	// library types: constants follow the upper-case naming convention
	return name == strings.ToUpper(name) && strings.ToLower(name) != name
}
