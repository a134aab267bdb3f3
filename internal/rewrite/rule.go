package rewrite

import (
	"fmt"
	"sort"

	"github.com/armchr/junitmig/internal/model/ast"
)

// RewriteRule is the declarative replacement attached to a pattern.
type RewriteRule struct {
	// ReplaceWith is the replacement template: $name substitutes a binding verbatim and
	// [...] is emitted only when every placeholder inside it is bound.
	ReplaceWith         string
	RemoveImports       []string
	AddImports          []string
	RemoveStaticImports []string
	AddStaticImports    []string

	// RetargetType is the type the rewritten code refers to through $target. Its
	// spelling follows the matched one: simple name plus import, qualified name, or an
	// unqualified call plus a static import of StaticMember.
	RetargetType string
	// StaticMember names the member imported for unqualified calls; it may reference
	// placeholders. Empty means the first identifier of the replacement after $target.
	StaticMember string
	// Swap names two placeholders ordered by the constant tie-break before substitution.
	Swap [2]string
	// ImportOnly rules contribute an import delta and no text edit.
	ImportOnly bool
}

// ImportDelta is the import change requested by one edit. Deduplication is left to the
// assembler.
type ImportDelta struct {
	Add          []string
	Remove       []string
	AddStatic    []string
	RemoveStatic []string
}

func (d ImportDelta) IsEmpty() bool {
	return len(d.Add) == 0 && len(d.Remove) == 0 && len(d.AddStatic) == 0 && len(d.RemoveStatic) == 0
}

// Merge appends other's entries to d.
func (d *ImportDelta) Merge(other ImportDelta) {
	d.Add = append(d.Add, other.Add...)
	d.Remove = append(d.Remove, other.Remove...)
	d.AddStatic = append(d.AddStatic, other.AddStatic...)
	d.RemoveStatic = append(d.RemoveStatic, other.RemoveStatic...)
}

// Normalize sorts and deduplicates every set.
func (d ImportDelta) Normalize() ImportDelta {
	return ImportDelta{
		Add:          uniqueSorted(d.Add),
		Remove:       uniqueSorted(d.Remove),
		AddStatic:    uniqueSorted(d.AddStatic),
		RemoveStatic: uniqueSorted(d.RemoveStatic),
	}
}

func uniqueSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok || s == "" {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Capture records where a captured source fragment was copied into a replacement.
// Edits nested inside Source are applied to that copy when the file is assembled.
type Capture struct {
	Name   string
	Source ast.Span
	Offset int
}

// Edit is the textual result of one match, or of one cross-file adaptation step.
type Edit struct {
	File        ast.FileID
	Span        ast.Span
	Replacement string
	Captures    []Capture
	Imports     ImportDelta
	HasSpan     bool

	CleanupID string
	Node      ast.NodeRef
	// Group ties edits that must be applied together or not at all within one file.
	Group string
}

func (e Edit) String() string {
	if !e.HasSpan {
		return fmt.Sprintf("file %d: imports only (%s)", e.File, e.CleanupID)
	}
	return fmt.Sprintf("file %d [%d,%d) -> %q (%s)", e.File, e.Span.Start, e.Span.End, e.Replacement, e.CleanupID)
}
