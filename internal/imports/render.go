package imports

import (
	"fmt"
	"sort"
	"strings"

	"github.com/armchr/junitmig/internal/model/ast"
	"github.com/armchr/junitmig/internal/rewrite"
)

const maxNesting = 32

// ConflictingEditError reports two edits of one file whose ranges overlap without one
// being absorbed into a captured fragment of the other.
type ConflictingEditError struct {
	Path   string
	First  rewrite.Edit
	Second rewrite.Edit
}

func (e *ConflictingEditError) Error() string {
	return fmt.Sprintf("%s: overlapping edits %s and %s", e.Path, e.First, e.Second)
}

// piece is the rendered replacement of one top level edit.
type piece struct {
	span  ast.Span
	text  string
	fresh []ast.Span // ranges of text produced by templates, relative to text
	edit  *rewrite.Edit
}

type renderer struct {
	path   string
	source []byte
	edits  []*rewrite.Edit
}

func newRenderer(path string, source []byte, edits []rewrite.Edit) *renderer {
	r := &renderer{path: path, source: source}
	seen := make(map[string]bool, len(edits))
	for i := range edits {
		e := &edits[i]
		if !e.HasSpan {
			continue
		}
		key := fmt.Sprintf("%d:%d:%s", e.Span.Start, e.Span.End, e.Replacement)
		if seen[key] {
			continue
		}
		seen[key] = true
		r.edits = append(r.edits, e)
	}
	sortEdits(r.edits)
	return r
}

// sortEdits orders edits by start offset; at equal offsets insertions come first, then
// wider ranges before the ranges they contain.
func sortEdits(edits []*rewrite.Edit) {
	sort.SliceStable(edits, func(i, j int) bool {
		a, b := edits[i].Span, edits[j].Span
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.IsEmpty() != b.IsEmpty() {
			return a.IsEmpty()
		}
		return a.End > b.End
	})
}

// within reports whether e lies inside span. Insertions on the boundary of span are
// outside of it.
func within(span ast.Span, e *rewrite.Edit) bool {
	if !span.Contains(e.Span) || span.IsEmpty() {
		return false
	}
	if e.Span.IsEmpty() {
		return span.Overlaps(e.Span)
	}
	return true
}

func (r *renderer) editsWithin(span ast.Span, exclude *rewrite.Edit) []*rewrite.Edit {
	var out []*rewrite.Edit
	for _, e := range r.edits {
		if e != exclude && within(span, e) {
			out = append(out, e)
		}
	}
	return out
}

// absorbed reports whether some edit copies a fragment containing e, so e is applied to
// that copy.
func (r *renderer) absorbed(e *rewrite.Edit) bool {
	for _, other := range r.edits {
		if other == e {
			continue
		}
		for _, c := range other.Captures {
			if within(c.Source, e) {
				return true
			}
		}
	}
	return false
}

// pieces renders the top level edits of a region. edits must be sorted and lie inside
// the region.
func (r *renderer) pieces(edits []*rewrite.Edit, depth int) ([]piece, error) {
	if depth > maxNesting {
		return nil, fmt.Errorf("%s: edits nested deeper than %d levels", r.path, maxNesting)
	}
	var out []piece
	var top *rewrite.Edit
	for _, e := range edits {
		if top != nil && within(top.Span, e) {
			if !r.absorbed(e) {
				return nil, &ConflictingEditError{Path: r.path, First: *top, Second: *e}
			}
			continue
		}
		if top != nil && top.Span.Overlaps(e.Span) {
			return nil, &ConflictingEditError{Path: r.path, First: *top, Second: *e}
		}
		top = e
		p, err := r.renderEdit(e, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *renderer) renderEdit(e *rewrite.Edit, depth int) (piece, error) {
	captures := make([]rewrite.Capture, len(e.Captures))
	copy(captures, e.Captures)
	sort.SliceStable(captures, func(i, j int) bool { return captures[i].Offset < captures[j].Offset })

	var sb strings.Builder
	var fresh []ast.Span
	literal := func(s string) {
		if s != "" {
			fresh = append(fresh, ast.Span{Start: sb.Len(), End: sb.Len() + len(s)})
			sb.WriteString(s)
		}
	}

	pos := 0
	for _, c := range captures {
		end := c.Offset + c.Source.Len()
		if c.Offset < pos || end > len(e.Replacement) {
			return piece{}, fmt.Errorf("%s: capture $%s of %s out of range", r.path, c.Name, e)
		}
		literal(e.Replacement[pos:c.Offset])
		text, inner, err := r.renderRegion(c.Source, r.editsWithin(c.Source, e), depth+1)
		if err != nil {
			return piece{}, err
		}
		base := sb.Len()
		for _, f := range inner {
			fresh = append(fresh, ast.Span{Start: f.Start + base, End: f.End + base})
		}
		sb.WriteString(text)
		pos = end
	}
	literal(e.Replacement[pos:])

	return piece{span: e.Span, text: sb.String(), fresh: fresh, edit: e}, nil
}

// renderRegion returns the source of region with edits applied, plus the template
// ranges of the result.
func (r *renderer) renderRegion(region ast.Span, edits []*rewrite.Edit, depth int) (string, []ast.Span, error) {
	ps, err := r.pieces(edits, depth)
	if err != nil {
		return "", nil, err
	}
	text, fresh := splice(r.source, region, ps)
	return text, fresh, nil
}

// splice applies sorted, non-overlapping pieces to source[region].
func splice(source []byte, region ast.Span, ps []piece) (string, []ast.Span) {
	var sb strings.Builder
	var fresh []ast.Span
	cursor := region.Start
	for _, p := range ps {
		sb.Write(source[cursor:p.span.Start])
		base := sb.Len()
		for _, f := range p.fresh {
			fresh = append(fresh, ast.Span{Start: f.Start + base, End: f.End + base})
		}
		sb.WriteString(p.text)
		cursor = p.span.End
	}
	sb.Write(source[cursor:region.End])
	return sb.String(), fresh
}
