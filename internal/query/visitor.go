package query

import (
	"strings"

	"github.com/armchr/junitmig/internal/model/ast"
	"github.com/armchr/junitmig/internal/parse"
	"github.com/armchr/junitmig/internal/pattern"
	"github.com/armchr/junitmig/pkg/lsp/base"
	"go.uber.org/zap"
)

// HelperVisitor combines several structural shapes into one traversal of a unit, e.g.
// annotation use sites and import declarations of the same type in a single pass.
type HelperVisitor struct {
	binder *parse.Binder
	logger *zap.Logger

	annotations    []pattern.Pattern
	methodCalls    []pattern.Pattern
	typeReferences []pattern.Pattern
	fields         []pattern.Pattern
	imports        []pattern.Pattern
}

func NewHelperVisitor(binder *parse.Binder, logger *zap.Logger) *HelperVisitor {
	return &HelperVisitor{binder: binder, logger: logger}
}

func (hv *HelperVisitor) Annotations(patterns ...pattern.Pattern) *HelperVisitor {
	hv.annotations = append(hv.annotations, patterns...)
	return hv
}

func (hv *HelperVisitor) MethodCalls(patterns ...pattern.Pattern) *HelperVisitor {
	hv.methodCalls = append(hv.methodCalls, patterns...)
	return hv
}

func (hv *HelperVisitor) TypeReferences(patterns ...pattern.Pattern) *HelperVisitor {
	hv.typeReferences = append(hv.typeReferences, patterns...)
	return hv
}

func (hv *HelperVisitor) Fields(patterns ...pattern.Pattern) *HelperVisitor {
	hv.fields = append(hv.fields, patterns...)
	return hv
}

func (hv *HelperVisitor) Imports(patterns ...pattern.Pattern) *HelperVisitor {
	hv.imports = append(hv.imports, patterns...)
	return hv
}

// Add routes a pattern to the shape list of its kind.
func (hv *HelperVisitor) Add(p pattern.Pattern) *HelperVisitor {
	switch p.Kind {
	case pattern.Annotation:
		return hv.Annotations(p)
	case pattern.MethodCall:
		return hv.MethodCalls(p)
	case pattern.TypeReference:
		return hv.TypeReferences(p)
	case pattern.FieldDeclaration:
		return hv.Fields(p)
	case pattern.ImportDeclaration:
		return hv.Imports(p)
	}
	return hv
}

// Visit walks the unit once and yields a candidate per (node, pattern) pair whose
// qualified type resolves exactly. Claimed nodes are skipped but their children are
// still visited.
func (hv *HelperVisitor) Visit(u *parse.Unit, claimed *ClaimedSet, yield func(Match) bool) {
	stopped := false
	emit := func(m Match) {
		if !stopped && !yield(m) {
			stopped = true
		}
	}

	u.Walk(u.Root(), func(id ast.NodeID, kind string) bool {
		if stopped {
			return false
		}
		ref := u.Ref(id)
		skip := claimed != nil && claimed.Has(ref)

		switch kind {
		case "import_declaration":
			if !skip {
				hv.visitImport(u, id, emit)
			}
			return false
		case "marker_annotation", "annotation":
			if !skip && len(hv.annotations) > 0 {
				hv.visitAnnotation(u, id, emit)
			}
		case "method_invocation":
			if !skip && len(hv.methodCalls) > 0 {
				hv.visitMethodCall(u, id, emit)
			}
		case "type_identifier", "scoped_type_identifier":
			if !skip && len(hv.typeReferences) > 0 {
				hv.visitTypeReference(u, id, emit)
			}
			return kind != "scoped_type_identifier"
		case "field_declaration":
			if !skip && len(hv.fields) > 0 {
				hv.visitField(u, id, emit)
			}
		}
		return true
	})
}

func (hv *HelperVisitor) unresolved(u *parse.Unit, id ast.NodeID, err error) {
	hv.logger.Debug("Discarding candidate with unresolved binding",
		zap.String("file", u.Path),
		zap.String("node", u.Text(id)),
		zap.Error(err))
}

func newMatch(u *parse.Unit, id ast.NodeID, p pattern.Pattern, form Form, name, owner string) Match {
	return Match{
		Node:     u.Ref(id),
		Pattern:  p,
		Bindings: pattern.Bindings{},
		File:     u.ID,
		Form:     form,
		Name:     name,
		Owner:    owner,
	}
}

func (hv *HelperVisitor) visitAnnotation(u *parse.Unit, id ast.NodeID, emit func(Match)) {
	nameNode := u.ChildByField(id, "name")
	if nameNode == ast.InvalidNodeID {
		return
	}
	written := u.Text(nameNode)
	qn, err := hv.binder.ResolveType(u, written, id)
	if err != nil {
		hv.unresolved(u, id, err)
		return
	}
	form := FormSimple
	if strings.Contains(written, ".") {
		form = FormQualified
	}
	for _, p := range hv.annotations {
		if p.QualifiedType == qn {
			emit(newMatch(u, id, p, form, base.LastSegment(written), qn))
		}
	}
}

func (hv *HelperVisitor) visitMethodCall(u *parse.Unit, id ast.NodeID, emit func(Match)) {
	nameNode := u.ChildByField(id, "name")
	if nameNode == ast.InvalidNodeID {
		return
	}
	name := u.Text(nameNode)

	var wanted []pattern.Pattern
	for _, p := range hv.methodCalls {
		if s := p.Shape(); s == nil || s.Name == "" || s.Name == name {
			wanted = append(wanted, p)
		}
	}
	if len(wanted) == 0 {
		return
	}

	owner, form, err := hv.receiver(u, id, name)
	if err != nil {
		hv.unresolved(u, id, err)
		return
	}
	if form == FormNone {
		return
	}
	for _, p := range wanted {
		if p.QualifiedType == owner {
			emit(newMatch(u, id, p, form, name, owner))
		}
	}
}

// receiver resolves the type a call is dispatched on when it is a static call.
// Instance calls report FormNone.
func (hv *HelperVisitor) receiver(u *parse.Unit, call ast.NodeID, name string) (string, Form, error) {
	object := u.ChildByField(call, "object")
	if object == ast.InvalidNodeID {
		owner, err := hv.binder.ResolveMethodOwner(u, name, call)
		if err != nil {
			return "", FormNone, err
		}
		return owner, FormUnqualified, nil
	}

	switch u.Kind(object) {
	case "identifier":
		if _, isVar := hv.binder.Visitor().LookupVariable(u, u.Text(object), object); isVar {
			return "", FormNone, nil
		}
		owner, err := hv.binder.ResolveType(u, u.Text(object), object)
		if err != nil {
			return "", FormNone, err
		}
		return owner, FormSimple, nil
	case "field_access", "scoped_identifier":
		leftmost := object
		for {
			inner := u.ChildByField(leftmost, "object")
			if inner == ast.InvalidNodeID {
				inner = u.ChildByField(leftmost, "scope")
			}
			if inner == ast.InvalidNodeID {
				break
			}
			leftmost = inner
		}
		if u.Kind(leftmost) != "identifier" {
			return "", FormNone, nil
		}
		if _, isVar := hv.binder.Visitor().LookupVariable(u, u.Text(leftmost), leftmost); isVar {
			return "", FormNone, nil
		}
		written := strings.Join(strings.Fields(u.Text(object)), "")
		owner, err := hv.binder.ResolveType(u, written, object)
		if err != nil {
			return "", FormNone, err
		}
		return owner, FormQualified, nil
	}
	return "", FormNone, nil
}

func (hv *HelperVisitor) visitTypeReference(u *parse.Unit, id ast.NodeID, emit func(Match)) {
	written := strings.Join(strings.Fields(u.Text(id)), "")
	qn, err := hv.binder.ResolveType(u, written, id)
	if err != nil {
		hv.unresolved(u, id, err)
		return
	}
	form := FormSimple
	if u.Kind(id) == "scoped_type_identifier" {
		form = FormQualified
	}
	for _, p := range hv.typeReferences {
		if p.QualifiedType == qn {
			emit(newMatch(u, id, p, form, base.LastSegment(written), qn))
		}
	}
}

func (hv *HelperVisitor) visitField(u *parse.Unit, id ast.NodeID, emit func(Match)) {
	declarators := u.ChildrenByKind(id, "variable_declarator")
	if len(declarators) != 1 {
		return
	}
	nameNode := u.ChildByField(declarators[0], "name")
	if nameNode == ast.InvalidNodeID {
		return
	}

	var declared, created string
	if t := u.ChildByField(id, "type"); t != ast.InvalidNodeID {
		if qn, err := hv.binder.ResolveType(u, u.Text(t), t); err == nil {
			declared = qn
		}
	}
	if value := u.ChildByField(declarators[0], "value"); u.Kind(value) == "object_creation_expression" {
		if t := u.ChildByField(value, "type"); t != ast.InvalidNodeID {
			qn, err := hv.binder.ResolveType(u, u.Text(t), t)
			if err != nil {
				hv.unresolved(u, id, err)
				return
			}
			created = qn
		}
	}

	for _, p := range hv.fields {
		declaredMatches := declared != "" && hv.binder.IsSubtypeOf(declared, p.QualifiedType)
		createdMatches := created != "" && hv.binder.IsSubtypeOf(created, p.QualifiedType)
		if !declaredMatches && !createdMatches {
			continue
		}
		owner := created
		if owner == "" {
			owner = declared
		}
		emit(newMatch(u, id, p, FormNone, u.Text(nameNode), owner))
	}
}

func (hv *HelperVisitor) visitImport(u *parse.Unit, id ast.NodeID, emit func(Match)) {
	var imp *parse.Import
	for i := range u.Imports {
		if u.Imports[i].Node == id {
			imp = &u.Imports[i]
			break
		}
	}
	if imp == nil {
		return
	}
	for _, p := range hv.imports {
		if importMatches(p, *imp) {
			form := FormQualified
			if imp.Static {
				form = FormUnqualified
			}
			emit(newMatch(u, id, p, form, base.LastSegment(imp.Name), p.QualifiedType))
		}
	}
}

func importMatches(p pattern.Pattern, imp parse.Import) bool {
	s := p.Shape()
	if s == nil {
		return imp.Name == p.QualifiedType || strings.HasPrefix(imp.Name, p.QualifiedType+".")
	}
	if s.Static != imp.Static || s.Wildcard != imp.Wildcard {
		return false
	}
	if s.Member != "" {
		return base.Qualifier(imp.Name) == s.Name
	}
	return imp.Name == s.Name
}
