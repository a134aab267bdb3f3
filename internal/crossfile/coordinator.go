package crossfile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/armchr/junitmig/internal/model/ast"
	"github.com/armchr/junitmig/internal/parse"
	"github.com/armchr/junitmig/internal/query"
	"github.com/armchr/junitmig/internal/rewrite"
	"go.uber.org/zap"
)

const maxChainDepth = 16

// CrossFileLink records that a rule use in one file required adapting a type declared in
// another.
type CrossFileLink struct {
	Group string
	Usage ast.FileID
	Decl  ast.FileID
	Type  string
}

// CrossFileUnavailableError reports a resource type whose declaration is not part of the
// run. The usage is left untouched.
type CrossFileUnavailableError struct {
	Path string
	Type string
}

func (e *CrossFileUnavailableError) Error() string {
	return fmt.Sprintf("%s: declaration of %s is not available in this run", e.Path, e.Type)
}

// UnsupportedRuleError reports a rule field whose shape cannot be migrated.
type UnsupportedRuleError struct {
	Path   string
	Field  string
	Reason string
}

func (e *UnsupportedRuleError) Error() string {
	return fmt.Sprintf("%s: rule field %s not migrated: %s", e.Path, e.Field, e.Reason)
}

// Result is the outcome of correlating every rule use of a run.
type Result struct {
	Edits       *EditSet
	Unsupported []*UnsupportedRuleError
	// Failed holds the errors of transactions that were rolled back.
	Failed []error
}

// Coordinator turns rule fields backed by ExternalResource subclasses into extension
// registrations. Every use, together with the adaptation of the types it depends on, is
// one transaction.
type Coordinator struct {
	binder    *parse.Binder
	cleanupID string
	logger    *zap.Logger

	namer    *Namer
	reserved map[string]bool
	adapted  map[string]Mode
}

func NewCoordinator(binder *parse.Binder, cleanupID string, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		binder:    binder,
		cleanupID: cleanupID,
		logger:    logger,
		namer:     NewNamer(),
		reserved:  make(map[string]bool),
		adapted:   make(map[string]Mode),
	}
}

// Correlate processes field matches in file and node order. Cancellation is checked
// between groups; a cancelled run commits nothing further.
func (c *Coordinator) Correlate(ctx context.Context, matches []query.Match) (*Result, error) {
	sorted := make([]query.Match, len(matches))
	copy(sorted, matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].File != sorted[j].File {
			return sorted[i].File < sorted[j].File
		}
		return sorted[i].Node.ID < sorted[j].Node.ID
	})

	res := &Result{Edits: NewEditSet()}
	seen := make(map[ast.NodeRef]bool)
	for _, m := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seen[m.Node] {
			continue
		}
		seen[m.Node] = true

		u := c.binder.Project().Unit(m.File)
		if u == nil {
			continue
		}
		txn := NewTransaction(fmt.Sprintf("%s:%d", u.Path, m.Node.ID))
		pending := make(map[string]Mode)
		if unsupported := c.migrateField(u, m, txn, pending); unsupported != nil {
			c.logger.Warn("Skipping rule field",
				zap.String("file", u.Path),
				zap.String("field", unsupported.Field),
				zap.String("reason", unsupported.Reason))
			res.Unsupported = append(res.Unsupported, unsupported)
			continue
		}
		if txn.Err() == nil && len(txn.Files()) == 0 {
			continue
		}
		if err := txn.Commit(res.Edits); err != nil {
			c.logger.Warn("Rolled back rule migration", zap.String("txn", txn.ID()), zap.Error(err))
			res.Failed = append(res.Failed, err)
			continue
		}
		for qn, mode := range pending {
			c.adapted[qn] = mode
		}
		c.logger.Debug("Committed rule migration",
			zap.String("txn", txn.ID()),
			zap.Int("files", len(txn.Files())))
	}
	return res, nil
}

// ruleMode finds the @Rule or @ClassRule annotation of a field.
func (c *Coordinator) ruleMode(u *parse.Unit, field ast.NodeID) (parse.Annotation, Mode, bool) {
	for _, ann := range c.binder.Visitor().ExtractAnnotations(u, field) {
		qn, err := c.binder.ResolveType(u, ann.Name, ann.Node)
		if err != nil {
			continue
		}
		switch qn {
		case RuleAnnotation:
			return ann, PerTest, true
		case ClassRuleAnnotation:
			return ann, PerClass, true
		}
	}
	return parse.Annotation{}, PerTest, false
}

func (c *Coordinator) migrateField(u *parse.Unit, m query.Match, txn *Transaction, pending map[string]Mode) *UnsupportedRuleError {
	field := m.Node.ID
	unsupported := func(reason string) *UnsupportedRuleError {
		return &UnsupportedRuleError{Path: u.Path, Field: m.Name, Reason: reason}
	}

	ann, mode, ok := c.ruleMode(u, field)
	if !ok {
		return nil
	}
	if mode == PerClass && !u.HasModifier(field, "static") {
		return unsupported("@ClassRule field is not static")
	}
	declarator := u.ChildByKind(field, "variable_declarator")
	value := u.ChildByField(declarator, "value")
	if value == ast.InvalidNodeID || u.Kind(value) != "object_creation_expression" {
		return unsupported("initializer is not an instance creation")
	}
	typeNode := u.ChildByField(value, "type")
	created, err := c.binder.ResolveType(u, u.Text(typeNode), typeNode)
	if err != nil {
		txn.Fail(err)
		return nil
	}

	a := newAdapter(u, c.cleanupID)
	usage := rewrite.ImportDelta{
		Add:    []string{RegisterExtension},
		Remove: []string{RuleAnnotation, ClassRuleAnnotation, ExternalResource},
	}
	txn.Add(a.replaceNode(ann.Node, "@RegisterExtension"))

	fieldType := u.Text(typeNode)
	anon := u.ChildByKind(value, "class_body")
	if anon != ast.InvalidNodeID {
		name, unsupportedReason := c.relocate(u, a, field, m.Name, value, anon, created, mode, txn, pending, &usage)
		if unsupportedReason != "" {
			return unsupported(unsupportedReason)
		}
		fieldType = name
	} else {
		if created == ExternalResource {
			return unsupported("ExternalResource instantiated without a body")
		}
		if reason := c.adaptChain(u, created, mode, txn, pending); reason != "" {
			return unsupported(reason)
		}
	}

	if t := u.ChildByField(field, "type"); t != ast.InvalidNodeID {
		if qn, err := c.binder.ResolveType(u, u.Text(t), t); err == nil && qn == ExternalResource {
			txn.Add(a.replaceNode(t, fieldType))
		}
	}
	txn.Add(a.imports(usage))
	return nil
}

// relocate moves an anonymous resource body into a named nested type of the enclosing
// class and adapts it there. The body edits stay anchored in the original fragment; the
// relocation copies it.
func (c *Coordinator) relocate(u *parse.Unit, a *adapter, field ast.NodeID, fieldName string, value, anon ast.NodeID, created string, mode Mode, txn *Transaction, pending map[string]Mode, usage *rewrite.ImportDelta) (string, string) {
	enclosing := u.TypeAt(field)
	if enclosing == nil {
		return "", "no enclosing type"
	}
	classBody := u.ChildByField(enclosing.Node, "body")
	if classBody == ast.InvalidNodeID {
		return "", "no enclosing class body"
	}

	direct := created == ExternalResource
	typeNode := u.ChildByField(value, "type")
	if !direct {
		if args := u.ChildByField(value, "arguments"); args != ast.InvalidNodeID && len(u.NamedChildren(args)) > 0 {
			return "", "anonymous subclass passes constructor arguments"
		}
		if reason := c.adaptChain(u, created, mode, txn, pending); reason != "" {
			return "", reason
		}
	}

	edits, found := a.lifecycleEdits(anon, mode, direct)
	txn.Add(edits...)
	if direct {
		if stubs := a.stubs(anon, mode, found); len(stubs) > 0 {
			txn.Add(a.appendMembers(anon, a.memberIndent(anon), stubs))
		}
	}
	if direct || len(found) > 0 {
		usage.Add = append(usage.Add, ExtensionContext)
	}

	c.reserve(u, enclosing)
	name := c.namer.Name(enclosing.QualifiedName, fieldName, u.Text(anon))

	var header strings.Builder
	if u.HasModifier(field, "static") {
		header.WriteString("static ")
	}
	header.WriteString("class " + name + " ")
	if direct {
		header.WriteString("implements " + mode.implementsClause() + " ")
		usage.Add = append(usage.Add, mode.imports()...)
	} else {
		header.WriteString("extends " + u.Text(typeNode) + " ")
	}

	anonSpan := u.Span(anon)
	decl := member{
		text:     header.String() + u.TextOf(anonSpan),
		captures: []rewrite.Capture{{Name: "body", Source: anonSpan, Offset: header.Len()}},
	}
	txn.Add(a.appendMembers(classBody, a.memberIndent(classBody), []member{decl}))
	txn.Add(a.replaceNode(value, "new "+name+"()"))
	return name, ""
}

// reserve records the names already declared around enclosing so synthetic names never
// shadow them.
func (c *Coordinator) reserve(u *parse.Unit, enclosing *parse.TypeDecl) {
	if c.reserved[enclosing.QualifiedName] {
		return
	}
	c.reserved[enclosing.QualifiedName] = true
	for _, td := range u.Types {
		if td.Outer == enclosing {
			c.namer.Reserve(enclosing.QualifiedName, td.Name)
		}
	}
	for outer := enclosing; outer != nil; outer = outer.Outer {
		c.namer.Reserve(enclosing.QualifiedName, outer.Name)
	}
}

// adaptChain adapts qn and its superclasses up to ExternalResource. Every type on the
// chain must be declared in the run.
func (c *Coordinator) adaptChain(usage *parse.Unit, qn string, mode Mode, txn *Transaction, pending map[string]Mode) string {
	project := c.binder.Project()
	cur := qn
	for depth := 0; cur != ExternalResource; depth++ {
		if depth >= maxChainDepth {
			txn.Fail(fmt.Errorf("superclass chain of %s is too deep", qn))
			return ""
		}
		if prev, ok := c.adapted[cur]; ok {
			if prev != mode {
				return fmt.Sprintf("%s is already adapted as a per-%s resource", cur, prev)
			}
			return ""
		}
		if prev, ok := pending[cur]; ok {
			if prev != mode {
				return fmt.Sprintf("%s is already adapted as a per-%s resource", cur, prev)
			}
			return ""
		}

		du, td, ok := project.DeclaringUnit(cur)
		if !ok {
			txn.Fail(&CrossFileUnavailableError{Path: usage.Path, Type: cur})
			return ""
		}
		super, ok := c.binder.SuperclassOf(cur)
		if !ok {
			txn.Fail(&CrossFileUnavailableError{Path: usage.Path, Type: cur})
			return ""
		}
		body := du.ChildByField(td.Node, "body")
		if body == ast.InvalidNodeID {
			txn.Fail(fmt.Errorf("%s: %s has no class body", du.Path, cur))
			return ""
		}

		direct := super == ExternalResource
		a := newAdapter(du, c.cleanupID)
		edits, found := a.lifecycleEdits(body, mode, direct)
		txn.Add(edits...)

		delta := rewrite.ImportDelta{Remove: []string{ExternalResource}}
		if direct {
			txn.Add(a.headerEdits(td.Node, mode)...)
			if stubs := a.stubs(body, mode, found); len(stubs) > 0 {
				txn.Add(a.appendMembers(body, a.memberIndent(body), stubs))
			}
			delta.Add = append(delta.Add, mode.imports()...)
		} else if len(found) > 0 {
			delta.Add = append(delta.Add, ExtensionContext)
		}
		txn.Add(a.imports(delta))

		if du.ID != usage.ID {
			txn.Link(CrossFileLink{Group: TxnGroupPrefix + txn.ID(), Usage: usage.ID, Decl: du.ID, Type: cur})
		}
		pending[cur] = mode
		cur = super
	}
	return ""
}
