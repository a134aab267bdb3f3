package imports

import (
	"fmt"
	"sort"
	"strings"

	"github.com/armchr/junitmig/internal/model/ast"
	"github.com/armchr/junitmig/internal/parse"
	"github.com/armchr/junitmig/internal/rewrite"
	"github.com/armchr/junitmig/pkg/lsp/base"
	"go.uber.org/zap"
)

// ImportClashError reports an import that cannot be added because its simple name is
// already bound to another type in the file.
type ImportClashError struct {
	Path    string
	Clashes []Entry
}

func (e *ImportClashError) Error() string {
	names := make([]string, len(e.Clashes))
	for i, c := range e.Clashes {
		names[i] = c.Name
	}
	return fmt.Sprintf("%s: cannot import %s, simple name already bound", e.Path, strings.Join(names, ", "))
}

// Result is the assembled output of one file.
type Result struct {
	File    ast.FileID
	Path    string
	Text    string
	Changed bool
	// TextEdits transform the original text into Text.
	TextEdits []base.TextEdit
	Imports   Plan
	Applied   []rewrite.Edit
}

// Assembler applies the edits of a file and re-emits its import block.
type Assembler struct {
	project *parse.Project
	logger  *zap.Logger
}

func NewAssembler(project *parse.Project, logger *zap.Logger) *Assembler {
	return &Assembler{project: project, logger: logger}
}

// Assemble renders the final text of u. Edits nested inside the range of another edit
// must lie in a fragment the outer edit captured; they are applied to that copy.
func (a *Assembler) Assemble(u *parse.Unit, edits []rewrite.Edit) (*Result, error) {
	result := &Result{File: u.ID, Path: u.Path, Text: string(u.Source)}
	if len(edits) == 0 {
		return result, nil
	}

	r := newRenderer(u.Path, u.Source, edits)
	whole := ast.Span{Start: 0, End: len(u.Source)}
	ps, err := r.pieces(r.edits, 0)
	if err != nil {
		return nil, err
	}
	body, fresh := splice(u.Source, whole, ps)

	var delta rewrite.ImportDelta
	for _, e := range edits {
		delta.Merge(e.Imports)
	}

	var plan Plan
	if !delta.IsEmpty() {
		usage, err := collectUsage(u.Path, body, fresh)
		if err != nil {
			return nil, err
		}
		plan = planImports(u, delta, usage, a.project)
		if len(plan.Clashes) > 0 {
			return nil, &ImportClashError{Path: u.Path, Clashes: plan.Clashes}
		}
	}

	if plan.Changed() {
		p, err := importPiece(u, plan.Final)
		if err != nil {
			return nil, err
		}
		for _, other := range ps {
			if p.span.Overlaps(other.span) {
				return nil, &ConflictingEditError{Path: u.Path, First: rewrite.Edit{File: u.ID, Span: p.span, HasSpan: true}, Second: *other.edit}
			}
		}
		ps = append(ps, p)
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].span.Start < ps[j].span.Start })
		body, _ = splice(u.Source, whole, ps)
	}

	fh := base.NewFileHolder(u.Path, string(u.Source))
	for _, p := range ps {
		if p.span.IsEmpty() && p.text == "" {
			continue
		}
		if u.TextOf(p.span) == p.text {
			continue
		}
		result.TextEdits = append(result.TextEdits, base.TextEdit{
			Range:   fh.RangeOf(p.span.Start, p.span.End),
			NewText: p.text,
		})
	}
	result.Applied = edits

	result.Text = body
	result.Changed = body != string(u.Source)
	result.Imports = plan

	if len(plan.Kept) > 0 {
		a.logger.Debug("Keeping imports still referenced after rewrite",
			zap.String("file", u.Path),
			zap.Int("kept", len(plan.Kept)))
	}
	return result, nil
}

// importPiece replaces the existing import declarations with the sorted block, or
// inserts a new block after the package declaration.
func importPiece(u *parse.Unit, entries []Entry) (piece, error) {
	nl := newlineOf(u.Source)
	block := FormatBlock(entries, nl)

	if len(u.Imports) > 0 {
		span := ast.Span{Start: u.Imports[0].Span.Start, End: u.Imports[len(u.Imports)-1].Span.End}
		for _, imp := range u.Imports {
			if imp.Span.Start < span.Start {
				span.Start = imp.Span.Start
			}
			if imp.Span.End > span.End {
				span.End = imp.Span.End
			}
		}
		if block == "" {
			for span.End < len(u.Source) && (u.Source[span.End] == '\n' || u.Source[span.End] == '\r') {
				span.End++
			}
		}
		return piece{span: span, text: block}, nil
	}
	if block == "" {
		return piece{}, fmt.Errorf("%s: empty import block with no imports to replace", u.Path)
	}

	if pkg := u.ChildByKind(u.Root(), "package_declaration"); pkg != ast.InvalidNodeID {
		at := u.Span(pkg).End
		return piece{span: ast.Span{Start: at, End: at}, text: nl + nl + block}, nil
	}
	return piece{span: ast.Span{}, text: block + nl + nl}, nil
}

func newlineOf(source []byte) string {
	for i, c := range source {
		if c == '\n' {
			if i > 0 && source[i-1] == '\r' {
				return "\r\n"
			}
			return "\n"
		}
	}
	return "\n"
}

// collectUsage parses the rewritten text and records every identifier outside import
// and package declarations and outside template produced ranges.
func collectUsage(path string, text string, fresh []ast.Span) (Usage, error) {
	out, err := parse.ParseUnit(ast.InvalidFileID, path, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("reparse %s: %w", path, err)
	}
	defer out.Close()

	sort.Slice(fresh, func(i, j int) bool { return fresh[i].Start < fresh[j].Start })
	inFresh := func(s ast.Span) bool {
		i := sort.Search(len(fresh), func(i int) bool { return fresh[i].End > s.Start })
		for ; i < len(fresh) && fresh[i].Start <= s.Start; i++ {
			if fresh[i].Contains(s) {
				return true
			}
		}
		return false
	}

	usage := Usage{}
	out.Walk(out.Root(), func(id ast.NodeID, kind string) bool {
		switch kind {
		case "import_declaration", "package_declaration":
			return false
		case "identifier", "type_identifier":
			if !inFresh(out.Span(id)) {
				usage[out.Text(id)] = true
			}
		}
		return true
	})
	return usage, nil
}
