package query

import (
	"context"
	"fmt"
	"iter"

	"github.com/armchr/junitmig/internal/model/ast"
	"github.com/armchr/junitmig/internal/parse"
	"github.com/armchr/junitmig/internal/pattern"
	"go.uber.org/zap"
)

// Form records how the matched type was spelled at the use site.
type Form int

const (
	FormNone        Form = iota
	FormSimple           // Assert.assertTrue(...), @Test
	FormQualified        // org.junit.Assert.assertTrue(...), @org.junit.Test
	FormUnqualified      // assertTrue(...) through a static import
)

func (f Form) String() string {
	switch f {
	case FormSimple:
		return "simple"
	case FormQualified:
		return "qualified"
	case FormUnqualified:
		return "unqualified"
	}
	return "none"
}

// Match is a located node plus the placeholder bindings extracted from it. The node is a
// back-reference into the unit's arena, never owned by the match.
type Match struct {
	Node     ast.NodeRef
	Pattern  pattern.Pattern
	Bindings pattern.Bindings
	File     ast.FileID

	Form  Form
	Name  string // annotation or method name as written, simple part only
	Owner string // resolved qualified type the pattern matched
	Entry int    // catalog entry that produced the match
}

// ConflictingMatchError reports two catalog entries claiming the same node. A well formed
// catalog never produces it.
type ConflictingMatchError struct {
	Node   ast.NodeRef
	First  string
	Second string
}

func (e *ConflictingMatchError) Error() string {
	return fmt.Sprintf("conflicting matches on node %s: %s and %s", e.Node, e.First, e.Second)
}

// Candidates lazily yields the candidates of patterns in unit. Iterating the sequence
// again on an unmodified tree yields the same candidates.
func Candidates(binder *parse.Binder, unit *parse.Unit, patterns []pattern.Pattern, claimed *ClaimedSet, logger *zap.Logger) iter.Seq[Match] {
	hv := NewHelperVisitor(binder, logger)
	for _, p := range patterns {
		hv.Add(p)
	}
	return func(yield func(Match) bool) {
		hv.Visit(unit, claimed, yield)
	}
}

// Query collects the candidates of patterns across units. Cancellation is checked
// between files.
func Query(ctx context.Context, binder *parse.Binder, patterns []pattern.Pattern, units []*parse.Unit, claimed *ClaimedSet, logger *zap.Logger) ([]Match, error) {
	var matches []Match
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for m := range Candidates(binder, u, patterns, claimed, logger) {
			matches = append(matches, m)
		}
	}
	return matches, nil
}
