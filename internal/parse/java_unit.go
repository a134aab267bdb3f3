package parse

import (
	"fmt"
	"strings"

	"github.com/armchr/junitmig/internal/model/ast"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
)

// Import is one import declaration of a compilation unit.
type Import struct {
	Name     string // qualified name without the trailing ".*"
	Static   bool
	Wildcard bool
	Node     ast.NodeID
	Span     ast.Span
}

// Key renders the import the way rules refer to it: "a.b.C", "a.b.C.*", "a.b.C.m".
func (imp Import) Key() string {
	if imp.Wildcard {
		return imp.Name + ".*"
	}
	return imp.Name
}

// TypeDecl is a named type declared in a unit (top level or nested).
type TypeDecl struct {
	Name          string
	QualifiedName string
	Kind          string
	Node          ast.NodeID
	Outer         *TypeDecl
	Superclass    string   // raw text of the extends clause type, empty if none
	Interfaces    []string // raw text of implemented (or extended, for interfaces) types
	Static        bool
	EnumConstants []string
}

// FieldDecl is one declarator of a field declaration.
type FieldDecl struct {
	Name   string
	Type   string // raw declared type text
	Static bool
	Final  bool
	Owner  *TypeDecl
	Node   ast.NodeID // field_declaration node
}

// Unit is a parsed compilation unit. Every syntax node is registered in a preorder arena
// so nodes can be referred to by stable integer ids.
type Unit struct {
	ID         ast.FileID
	Path       string
	Source     []byte
	Generation uint32
	Package    string
	Imports    []Import
	Types      []*TypeDecl
	Fields     []*FieldDecl

	tree       *tree_sitter.Tree
	nodes      []*tree_sitter.Node
	parents    []ast.NodeID
	subtreeEnd []ast.NodeID
	index      map[uintptr]ast.NodeID
	typeByNode map[ast.NodeID]*TypeDecl
}

// ParseUnit parses Java source with tree-sitter and builds the node arena.
func ParseUnit(id ast.FileID, path string, source []byte) (*Unit, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(tree_sitter.NewLanguage(java.Language())); err != nil {
		return nil, fmt.Errorf("failed to set Java language: %w", err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s", path)
	}

	u := &Unit{
		ID:         id,
		Path:       path,
		Source:     source,
		Generation: 1,
		tree:       tree,
		index:      make(map[uintptr]ast.NodeID),
		typeByNode: make(map[ast.NodeID]*TypeDecl),
	}
	u.buildArena(tree.RootNode(), ast.InvalidNodeID)
	u.collectDeclarations()
	return u, nil
}

// Reparse replaces the unit's tree with a parse of newSource and bumps the generation,
// invalidating node references taken from the previous tree.
func (u *Unit) Reparse(newSource []byte) error {
	fresh, err := ParseUnit(u.ID, u.Path, newSource)
	if err != nil {
		return err
	}
	generation := u.Generation + 1
	u.Close()
	*u = *fresh
	u.Generation = generation
	return nil
}

func (u *Unit) Close() {
	if u.tree != nil {
		u.tree.Close()
		u.tree = nil
	}
}

func (u *Unit) buildArena(n *tree_sitter.Node, parent ast.NodeID) ast.NodeID {
	id := ast.NodeID(len(u.nodes))
	u.nodes = append(u.nodes, n)
	u.parents = append(u.parents, parent)
	u.subtreeEnd = append(u.subtreeEnd, ast.InvalidNodeID)
	u.index[n.Id()] = id

	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		u.buildArena(child, id)
	}
	u.subtreeEnd[id] = ast.NodeID(len(u.nodes))
	return id
}

func (u *Unit) Root() ast.NodeID {
	return 0
}

func (u *Unit) Len() int {
	return len(u.nodes)
}

func (u *Unit) Node(id ast.NodeID) *tree_sitter.Node {
	if id < 0 || int(id) >= len(u.nodes) {
		return nil
	}
	return u.nodes[id]
}

// IDOf maps a tree-sitter node back to its arena id.
func (u *Unit) IDOf(n *tree_sitter.Node) ast.NodeID {
	if n == nil {
		return ast.InvalidNodeID
	}
	if id, ok := u.index[n.Id()]; ok {
		return id
	}
	return ast.InvalidNodeID
}

func (u *Unit) Ref(id ast.NodeID) ast.NodeRef {
	return ast.NodeRef{File: u.ID, ID: id, Generation: u.Generation}
}

func (u *Unit) Kind(id ast.NodeID) string {
	n := u.Node(id)
	if n == nil {
		return ""
	}
	return n.Kind()
}

func (u *Unit) Parent(id ast.NodeID) ast.NodeID {
	if id < 0 || int(id) >= len(u.parents) {
		return ast.InvalidNodeID
	}
	return u.parents[id]
}

func (u *Unit) Span(id ast.NodeID) ast.Span {
	n := u.Node(id)
	if n == nil {
		return ast.Span{}
	}
	return ast.Span{Start: int(n.StartByte()), End: int(n.EndByte())}
}

// Text returns the exact source text of a node.
func (u *Unit) Text(id ast.NodeID) string {
	s := u.Span(id)
	return string(u.Source[s.Start:s.End])
}

func (u *Unit) TextOf(s ast.Span) string {
	return string(u.Source[s.Start:s.End])
}

// Children returns the direct children of a node, named and anonymous.
func (u *Unit) Children(id ast.NodeID) []ast.NodeID {
	if id < 0 || int(id) >= len(u.nodes) {
		return nil
	}
	var out []ast.NodeID
	for c := id + 1; c < u.subtreeEnd[id]; c = u.subtreeEnd[c] {
		out = append(out, c)
	}
	return out
}

func (u *Unit) NamedChildren(id ast.NodeID) []ast.NodeID {
	var out []ast.NodeID
	for _, c := range u.Children(id) {
		if u.nodes[c].IsNamed() {
			out = append(out, c)
		}
	}
	return out
}

func (u *Unit) ChildByKind(id ast.NodeID, kind string) ast.NodeID {
	for _, c := range u.Children(id) {
		if u.nodes[c].Kind() == kind {
			return c
		}
	}
	return ast.InvalidNodeID
}

func (u *Unit) ChildrenByKind(id ast.NodeID, kind string) []ast.NodeID {
	var out []ast.NodeID
	for _, c := range u.Children(id) {
		if u.nodes[c].Kind() == kind {
			out = append(out, c)
		}
	}
	return out
}

func (u *Unit) ChildByField(id ast.NodeID, field string) ast.NodeID {
	n := u.Node(id)
	if n == nil {
		return ast.InvalidNodeID
	}
	return u.IDOf(n.ChildByFieldName(field))
}

// Within reports whether id lies in the subtree rooted at ancestor.
func (u *Unit) Within(id, ancestor ast.NodeID) bool {
	if ancestor < 0 || id < 0 || int(ancestor) >= len(u.nodes) {
		return false
	}
	return id >= ancestor && id < u.subtreeEnd[ancestor]
}

// Ancestor returns the closest proper ancestor whose kind is one of kinds.
func (u *Unit) Ancestor(id ast.NodeID, kinds ...string) ast.NodeID {
	for p := u.Parent(id); p != ast.InvalidNodeID; p = u.Parent(p) {
		k := u.nodes[p].Kind()
		for _, want := range kinds {
			if k == want {
				return p
			}
		}
	}
	return ast.InvalidNodeID
}

// Walk visits the subtree of id in preorder. Returning false from fn skips the children
// of the visited node.
func (u *Unit) Walk(id ast.NodeID, fn func(id ast.NodeID, kind string) bool) {
	if id < 0 || int(id) >= len(u.nodes) {
		return
	}
	end := u.subtreeEnd[id]
	for c := id; c < end; {
		if fn(c, u.nodes[c].Kind()) {
			c++
		} else {
			c = u.subtreeEnd[c]
		}
	}
}

// HasModifier reports whether a declaration's modifiers list contains the keyword.
func (u *Unit) HasModifier(decl ast.NodeID, keyword string) bool {
	mods := u.ChildByKind(decl, "modifiers")
	if mods == ast.InvalidNodeID {
		return false
	}
	for _, c := range u.Children(mods) {
		if u.nodes[c].Kind() == keyword {
			return true
		}
	}
	return false
}

// ModifierNode returns the keyword node of a modifier, if present.
func (u *Unit) ModifierNode(decl ast.NodeID, keyword string) ast.NodeID {
	mods := u.ChildByKind(decl, "modifiers")
	if mods == ast.InvalidNodeID {
		return ast.InvalidNodeID
	}
	for _, c := range u.Children(mods) {
		if u.nodes[c].Kind() == keyword {
			return c
		}
	}
	return ast.InvalidNodeID
}

// TypeAt returns the innermost named type declaration enclosing id (or id itself).
func (u *Unit) TypeAt(id ast.NodeID) *TypeDecl {
	for n := id; n != ast.InvalidNodeID; n = u.Parent(n) {
		if td, ok := u.typeByNode[n]; ok {
			return td
		}
	}
	return nil
}

func (u *Unit) TypeByNode(id ast.NodeID) *TypeDecl {
	return u.typeByNode[id]
}

// IsTypeDeclaration reports whether a node kind declares a named type.
func IsTypeDeclaration(kind string) bool {
	switch kind {
	case "class_declaration", "interface_declaration", "enum_declaration",
		"record_declaration", "annotation_type_declaration":
		return true
	}
	return false
}

func (u *Unit) collectDeclarations() {
	root := u.Root()
	for _, c := range u.Children(root) {
		switch u.Kind(c) {
		case "package_declaration":
			u.handlePackageDeclaration(c)
		case "import_declaration":
			u.handleImportDeclaration(c)
		}
	}

	u.Walk(root, func(id ast.NodeID, kind string) bool {
		if IsTypeDeclaration(kind) {
			u.handleTypeDeclaration(id)
		} else if kind == "field_declaration" {
			u.handleFieldDeclaration(id)
		}
		return true
	})
}

func (u *Unit) handlePackageDeclaration(id ast.NodeID) {
	nameNode := u.ChildByKind(id, "scoped_identifier")
	if nameNode == ast.InvalidNodeID {
		nameNode = u.ChildByKind(id, "identifier")
	}
	if nameNode != ast.InvalidNodeID {
		u.Package = u.Text(nameNode)
	}
}

func (u *Unit) handleImportDeclaration(id ast.NodeID) {
	imp := Import{Node: id, Span: u.Span(id)}
	for _, c := range u.Children(id) {
		switch u.Kind(c) {
		case "static":
			imp.Static = true
		case "asterisk":
			imp.Wildcard = true
		case "scoped_identifier", "identifier":
			imp.Name = compactName(u.Text(c))
		}
	}
	if imp.Name != "" {
		u.Imports = append(u.Imports, imp)
	}
}

func (u *Unit) handleTypeDeclaration(id ast.NodeID) {
	nameNode := u.ChildByField(id, "name")
	if nameNode == ast.InvalidNodeID {
		return
	}
	td := &TypeDecl{
		Name:   u.Text(nameNode),
		Kind:   strings.TrimSuffix(u.Kind(id), "_declaration"),
		Node:   id,
		Static: u.HasModifier(id, "static"),
	}
	if outer := u.TypeAt(u.Parent(id)); outer != nil {
		td.Outer = outer
		td.QualifiedName = outer.QualifiedName + "." + td.Name
	} else if u.Package != "" {
		td.QualifiedName = u.Package + "." + td.Name
	} else {
		td.QualifiedName = td.Name
	}

	if sc := u.ChildByKind(id, "superclass"); sc != ast.InvalidNodeID {
		td.Superclass = typeNameOf(u, sc)
	}
	for _, kind := range []string{"super_interfaces", "extends_interfaces"} {
		if si := u.ChildByKind(id, kind); si != ast.InvalidNodeID {
			if list := u.ChildByKind(si, "type_list"); list != ast.InvalidNodeID {
				for _, t := range u.NamedChildren(list) {
					td.Interfaces = append(td.Interfaces, compactName(u.Text(t)))
				}
			}
		}
	}
	if td.Kind == "enum" {
		if body := u.ChildByKind(id, "enum_body"); body != ast.InvalidNodeID {
			for _, c := range u.ChildrenByKind(body, "enum_constant") {
				if n := u.ChildByField(c, "name"); n != ast.InvalidNodeID {
					td.EnumConstants = append(td.EnumConstants, u.Text(n))
				}
			}
		}
	}

	u.typeByNode[id] = td
	u.Types = append(u.Types, td)
}

func (u *Unit) handleFieldDeclaration(id ast.NodeID) {
	owner := u.TypeAt(id)
	typeNode := u.ChildByField(id, "type")
	typeText := ""
	if typeNode != ast.InvalidNodeID {
		typeText = compactName(u.Text(typeNode))
	}
	static := u.HasModifier(id, "static")
	final := u.HasModifier(id, "final")
	if owner != nil && owner.Kind == "interface" {
		static, final = true, true
	}
	for _, decl := range u.ChildrenByKind(id, "variable_declarator") {
		nameNode := u.ChildByField(decl, "name")
		if nameNode == ast.InvalidNodeID {
			continue
		}
		u.Fields = append(u.Fields, &FieldDecl{
			Name:   u.Text(nameNode),
			Type:   typeText,
			Static: static,
			Final:  final,
			Owner:  owner,
			Node:   id,
		})
	}
}

// typeNameOf extracts the type name from a superclass clause, dropping type arguments.
func typeNameOf(u *Unit, clause ast.NodeID) string {
	for _, c := range u.NamedChildren(clause) {
		return stripTypeArguments(compactName(u.Text(c)))
	}
	return ""
}

// compactName removes whitespace and comments-free line breaks from dotted names.
func compactName(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func stripTypeArguments(s string) string {
	if idx := strings.Index(s, "<"); idx >= 0 {
		return s[:idx]
	}
	return s
}

// FieldsOf returns the fields declared directly in td.
func (u *Unit) FieldsOf(td *TypeDecl) []*FieldDecl {
	var out []*FieldDecl
	for _, f := range u.Fields {
		if f.Owner == td {
			out = append(out, f)
		}
	}
	return out
}

// MethodsOf returns the method_declaration nodes declared directly in a type body.
func (u *Unit) MethodsOf(typeNode ast.NodeID) []ast.NodeID {
	body := u.ChildByField(typeNode, "body")
	if body == ast.InvalidNodeID {
		return nil
	}
	if u.Kind(body) == "enum_body" {
		if decls := u.ChildByKind(body, "enum_body_declarations"); decls != ast.InvalidNodeID {
			body = decls
		}
	}
	return u.ChildrenByKind(body, "method_declaration")
}

// DeclaresMethod reports whether the type node (or any type enclosing it) declares a method
// with the given name.
func (u *Unit) DeclaresMethod(td *TypeDecl, name string) bool {
	for t := td; t != nil; t = t.Outer {
		for _, m := range u.MethodsOf(t.Node) {
			if n := u.ChildByField(m, "name"); n != ast.InvalidNodeID && u.Text(n) == name {
				return true
			}
		}
	}
	return false
}
