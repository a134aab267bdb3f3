package bind

import (
	"fmt"

	"github.com/armchr/junitmig/internal/model/ast"
	"github.com/armchr/junitmig/internal/parse"
	"github.com/armchr/junitmig/internal/pattern"
	"github.com/armchr/junitmig/internal/query"
	"go.uber.org/zap"
)

// ConstSuffix marks computed bindings recording that a placeholder's expression is a
// compile-time constant. Such keys are never referenced by templates.
const ConstSuffix = "#const"

// BindError reports a candidate whose shape matches none of the recognised sub-patterns.
// The node is skipped, the run goes on.
type BindError struct {
	Node   ast.NodeRef
	Reason string
}

func (e *BindError) Error() string {
	return fmt.Sprintf("cannot bind node %s: %s", e.Node, e.Reason)
}

// Extractor binds placeholders of matched candidates.
type Extractor struct {
	binder *parse.Binder
	logger *zap.Logger
}

func NewExtractor(binder *parse.Binder, logger *zap.Logger) *Extractor {
	return &Extractor{binder: binder, logger: logger}
}

// Bind extracts the placeholder bindings of a candidate according to its pattern.
func (e *Extractor) Bind(m query.Match) (pattern.Bindings, error) {
	u := e.binder.Project().Unit(m.File)
	if u == nil {
		return nil, fmt.Errorf("bind: unknown file %d", m.File)
	}
	if u.Generation != m.Node.Generation {
		return nil, fmt.Errorf("bind: stale node %s, tree is at generation %d", m.Node, u.Generation)
	}

	b := pattern.Bindings{}
	switch m.Pattern.Kind {
	case pattern.Annotation:
		return b, e.bindAnnotation(u, m, b)
	case pattern.MethodCall:
		return b, e.bindMethodCall(u, m, b)
	case pattern.TypeReference:
		b["type"] = capture(u, m.Node.ID)
		return b, nil
	case pattern.FieldDeclaration:
		return b, e.bindField(u, m, b)
	case pattern.ImportDeclaration:
		return b, e.bindImport(u, m, b)
	}
	return nil, &BindError{Node: m.Node, Reason: "unsupported pattern kind " + m.Pattern.Kind.String()}
}

func capture(u *parse.Unit, id ast.NodeID) pattern.Binding {
	return pattern.Captured(u.Text(id), u.Span(id))
}

func (e *Extractor) bindField(u *parse.Unit, m query.Match, b pattern.Bindings) error {
	decl := u.ChildByKind(m.Node.ID, "variable_declarator")
	if decl == ast.InvalidNodeID {
		return &BindError{Node: m.Node, Reason: "field without declarator"}
	}
	if name := u.ChildByField(decl, "name"); name != ast.InvalidNodeID {
		b["name"] = capture(u, name)
	}
	if t := u.ChildByField(m.Node.ID, "type"); t != ast.InvalidNodeID {
		b["type"] = capture(u, t)
	}
	if v := u.ChildByField(decl, "value"); v != ast.InvalidNodeID {
		b["value"] = capture(u, v)
	}
	return nil
}

func (e *Extractor) bindImport(u *parse.Unit, m query.Match, b pattern.Bindings) error {
	for _, imp := range u.Imports {
		if imp.Node != m.Node.ID {
			continue
		}
		b["import"] = pattern.Computed(imp.Key())
		if s := m.Pattern.Shape(); s != nil && s.Member != "" {
			b[s.Member] = pattern.Computed(m.Name)
		}
		return nil
	}
	return &BindError{Node: m.Node, Reason: "not an import declaration"}
}
