package rewrite

import (
	"fmt"
	"strings"

	"github.com/armchr/junitmig/internal/model/ast"
	"github.com/armchr/junitmig/internal/parse"
	"github.com/armchr/junitmig/internal/pattern"
	"github.com/armchr/junitmig/internal/query"
	"github.com/armchr/junitmig/pkg/lsp/base"
	"go.uber.org/zap"
)

// StaticGroupPrefix prefixes the group of edits that add a static import. All edits of
// such a group in a file are withheld when an unmigrated call of the same name remains.
const StaticGroupPrefix = "static:"

// Processor turns bound matches into edits. It has no side effects: import deltas are
// queued on the edit and merged later by the assembler.
type Processor struct {
	project *parse.Project
	logger  *zap.Logger
}

func NewProcessor(project *parse.Project, logger *zap.Logger) *Processor {
	return &Processor{project: project, logger: logger}
}

// Apply renders rule for a bound match.
func (p *Processor) Apply(m query.Match, rule RewriteRule) (Edit, error) {
	u := p.project.Unit(m.File)
	if u == nil {
		return Edit{}, fmt.Errorf("apply: unknown file %d", m.File)
	}

	b := m.Bindings.Clone()
	if b == nil {
		b = pattern.Bindings{}
	}
	if rule.Swap[0] != "" {
		b = OrderOperands(b, rule.Swap[0], rule.Swap[1])
	}

	delta, err := ruleImports(rule, b)
	if err != nil {
		return Edit{}, err
	}

	edit := Edit{
		File:      m.File,
		CleanupID: m.Pattern.CleanupID,
		Node:      m.Node,
	}

	staticOwner := ""
	if rule.RetargetType != "" {
		switch m.Form {
		case query.FormSimple:
			b["target"] = pattern.Computed(base.LastSegment(rule.RetargetType))
			delta.Add = append(delta.Add, rule.RetargetType)
			if m.Owner != rule.RetargetType {
				delta.Remove = append(delta.Remove, m.Owner)
			}
		case query.FormQualified:
			b["target"] = pattern.Computed(rule.RetargetType)
		case query.FormUnqualified:
			staticOwner = rule.RetargetType
			if m.Pattern.Kind == pattern.MethodCall {
				delta.RemoveStatic = append(delta.RemoveStatic, m.Owner+"."+m.Name)
			}
		}
	}

	if rule.ImportOnly {
		edit.Imports = delta
		return edit, nil
	}

	text, captures, err := Substitute(rule.ReplaceWith, b)
	if err != nil {
		return Edit{}, fmt.Errorf("apply %s to %s: %w", m.Pattern, m.Node, err)
	}

	if staticOwner != "" {
		member := rule.StaticMember
		if member != "" {
			if member, _, err = Substitute(member, b); err != nil {
				return Edit{}, err
			}
		} else {
			member = leadingIdentifier(text)
		}
		if member == "" {
			return Edit{}, fmt.Errorf("apply %s: cannot determine static member", m.Pattern)
		}
		delta.AddStatic = append(delta.AddStatic, staticOwner+"."+member)
		if staticOwner != m.Owner {
			edit.Group = StaticGroupPrefix + staticOwner + "." + member
		}
	}

	edit.Span = u.Span(m.Node.ID)
	edit.Replacement = text
	edit.Captures = captures
	edit.HasSpan = true
	edit.Imports = delta
	return edit, nil
}

// Render substitutes template over span for a match whose rewrite reaches outside its
// own node. The edit carries no imports; the rule's edit for the match does.
func (p *Processor) Render(m query.Match, span ast.Span, template string, b pattern.Bindings) (Edit, error) {
	text, captures, err := Substitute(template, b)
	if err != nil {
		return Edit{}, fmt.Errorf("render %s for %s: %w", m.Pattern, m.Node, err)
	}
	return Edit{
		File:        m.File,
		Span:        span,
		Replacement: text,
		Captures:    captures,
		HasSpan:     true,
		CleanupID:   m.Pattern.CleanupID,
		Node:        m.Node,
	}, nil
}

func ruleImports(rule RewriteRule, b pattern.Bindings) (ImportDelta, error) {
	var delta ImportDelta
	lists := []struct {
		in  []string
		out *[]string
	}{
		{rule.AddImports, &delta.Add},
		{rule.RemoveImports, &delta.Remove},
		{rule.AddStaticImports, &delta.AddStatic},
		{rule.RemoveStaticImports, &delta.RemoveStatic},
	}
	for _, l := range lists {
		for _, name := range l.in {
			if strings.Contains(name, "$") {
				rendered, _, err := Substitute(name, b)
				if err != nil {
					return ImportDelta{}, err
				}
				name = rendered
			}
			// an optional [$name] import renders empty when unbound
			if name == "" {
				continue
			}
			*l.out = append(*l.out, name)
		}
	}
	return delta, nil
}

func leadingIdentifier(s string) string {
	for i := 0; i < len(s); i++ {
		if !isNameByte(s[i]) {
			return s[:i]
		}
	}
	return s
}
