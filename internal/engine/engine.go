package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/armchr/junitmig/internal/bind"
	"github.com/armchr/junitmig/internal/catalog"
	"github.com/armchr/junitmig/internal/crossfile"
	"github.com/armchr/junitmig/internal/imports"
	"github.com/armchr/junitmig/internal/model/ast"
	"github.com/armchr/junitmig/internal/parse"
	"github.com/armchr/junitmig/internal/pattern"
	"github.com/armchr/junitmig/internal/query"
	"github.com/armchr/junitmig/internal/rewrite"
	"github.com/armchr/junitmig/pkg/lsp/base"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// OutputMode selects how changed files are reported.
type OutputMode string

const (
	OutputText  OutputMode = "text"
	OutputEdits OutputMode = "edits"
)

// Options tune a run.
type Options struct {
	// Workers bounds the files queried in parallel; zero means one per file.
	Workers int
	Output  OutputMode
	// Skip excludes a file from the query phase. A skipped file still takes part in
	// type resolution and can receive cross-file edits.
	Skip func(u *parse.Unit) bool
}

// Warning is a recoverable problem reported with the run instead of failing it.
type Warning struct {
	Path    string `json:"path"`
	Cleanup string `json:"cleanup,omitempty"`
	Message string `json:"message"`
}

// FileResult is the outcome of one changed file.
type FileResult struct {
	File    ast.FileID      `json:"-"`
	Path    string          `json:"path"`
	Text    string          `json:"text,omitempty"`
	Edits   []base.TextEdit `json:"edits,omitempty"`
	Applied map[string]int  `json:"applied"`
	Imports *imports.Plan   `json:"-"`
}

// Result is the outcome of a whole run. Files lists changed files only, ordered by path.
type Result struct {
	Files    []FileResult              `json:"files"`
	Warnings []Warning                 `json:"warnings,omitempty"`
	Links    []crossfile.CrossFileLink `json:"-"`
	Scanned  int                       `json:"scanned"`
	Skipped  int                       `json:"skipped"`
	Claimed  uint                      `json:"claimed"`
}

// EditCount sums the applied edits of every file.
func (r *Result) EditCount() int {
	n := 0
	for _, f := range r.Files {
		for _, c := range f.Applied {
			n += c
		}
	}
	return n
}

// Engine runs the enabled catalog over a set of parsed units. Nothing is written: the
// caller receives either every change of the run or an error.
type Engine struct {
	opts   Options
	logger *zap.Logger
}

func New(opts Options, logger *zap.Logger) *Engine {
	if opts.Output == "" {
		opts.Output = OutputText
	}
	return &Engine{opts: opts, logger: logger}
}

// fileWork is what the query phase produced for one file.
type fileWork struct {
	unit       *parse.Unit
	edits      []rewrite.Edit
	cross      []query.Match
	unmigrated []query.Match
	warnings   []Warning
}

type run struct {
	entries   []catalog.Entry
	index     map[string]int
	stages    [][]int
	binder    *parse.Binder
	extractor *bind.Extractor
	processor *rewrite.Processor
	claimed   *query.ClaimedSet
}

// Run migrates units with the enabled cleanups. The query phase runs per file in
// parallel; cross-file correlation and assembly follow once every file was queried.
// Cancellation is checked between files and before the result is returned.
func (e *Engine) Run(ctx context.Context, units []*parse.Unit, enabled []string) (*Result, error) {
	entries, err := catalog.Entries(enabled)
	if err != nil {
		return nil, err
	}

	project := parse.NewProject(units)
	r := e.newRun(entries, project, units)
	binder := r.binder

	work := make([]*fileWork, len(units))
	g, gctx := errgroup.WithContext(ctx)
	if e.opts.Workers > 0 {
		g.SetLimit(e.opts.Workers)
	}
	skipped := 0
	for i, u := range units {
		if e.opts.Skip != nil && e.opts.Skip(u) {
			work[i] = &fileWork{unit: u}
			skipped++
			continue
		}
		g.Go(func() error {
			w, err := e.queryFile(gctx, r, u)
			if err != nil {
				return fmt.Errorf("%s: %w", u.Path, err)
			}
			work[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, w := range work {
		w.edits = e.withholdStaticGroups(r, w)
	}

	result := &Result{Scanned: len(units), Skipped: skipped}
	byFile := make(map[ast.FileID]*fileWork, len(work))
	var cross []query.Match
	for _, w := range work {
		byFile[w.unit.ID] = w
		cross = append(cross, w.cross...)
		result.Warnings = append(result.Warnings, w.warnings...)
	}

	if len(cross) > 0 {
		cleanup := r.entries[cross[0].Entry].Cleanup
		coordinator := crossfile.NewCoordinator(binder, cleanup, e.logger)
		cr, err := coordinator.Correlate(ctx, cross)
		if err != nil {
			return nil, err
		}
		for _, u := range cr.Unsupported {
			result.Warnings = append(result.Warnings, Warning{Path: u.Path, Cleanup: cleanup, Message: u.Error()})
		}
		for _, err := range cr.Failed {
			result.Warnings = append(result.Warnings, Warning{Path: failedPath(err), Cleanup: cleanup, Message: err.Error()})
		}
		for _, edit := range cr.Edits.All() {
			w := byFile[edit.File]
			w.edits = append(w.edits, edit)
		}
		result.Links = cr.Edits.Links()
	}

	files, warnings, err := e.assemble(ctx, project, work)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(result.Warnings, warnings...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Files = files
	result.Claimed = r.claimed.Count()
	e.logger.Info("Migration run finished",
		zap.Int("files", len(units)),
		zap.Int("changed", len(files)),
		zap.Int("edits", result.EditCount()),
		zap.Int("warnings", len(result.Warnings)))
	return result, nil
}

// newRun indexes entries by label and splits them into stages. Entries must be in stage
// order.
func (e *Engine) newRun(entries []catalog.Entry, project *parse.Project, units []*parse.Unit) *run {
	binder := parse.NewBinder(project, e.logger)
	r := &run{
		entries:   entries,
		index:     make(map[string]int, len(entries)),
		binder:    binder,
		extractor: bind.NewExtractor(binder, e.logger),
		processor: rewrite.NewProcessor(project, e.logger),
		claimed:   query.NewClaimedSet(units),
	}
	for i, entry := range entries {
		r.index[entry.Label()] = i
		if len(r.stages) == 0 || entries[r.stages[len(r.stages)-1][0]].Stage != entry.Stage {
			r.stages = append(r.stages, nil)
		}
		r.stages[len(r.stages)-1] = append(r.stages[len(r.stages)-1], i)
	}
	return r
}

func failedPath(err error) string {
	var unavailable *crossfile.CrossFileUnavailableError
	if errors.As(err, &unavailable) {
		return unavailable.Path
	}
	return ""
}

// queryFile runs every stage over one file. Matches of a stage are claimed once the
// stage is complete, so two entries of one stage matching the same node are detected.
func (e *Engine) queryFile(ctx context.Context, r *run, u *parse.Unit) (*fileWork, error) {
	w := &fileWork{unit: u}
	for _, stage := range r.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		patterns := make([]pattern.Pattern, len(stage))
		for i, idx := range stage {
			patterns[i] = r.entries[idx].Pattern
		}

		owners := make(map[ast.NodeRef]int)
		var matched []query.Match
		fragments := make(map[ast.NodeRef][]bind.Fragment)
		for m := range query.Candidates(r.binder, u, patterns, r.claimed, e.logger) {
			idx, ok := r.index[m.Pattern.CleanupID+" "+m.Pattern.String()]
			if !ok {
				continue
			}
			entry := r.entries[idx]
			m.Entry = idx

			b, frags, err := e.bindMatch(r, entry, m)
			if err != nil {
				var bindErr *bind.BindError
				if !errors.As(err, &bindErr) {
					return nil, err
				}
				e.logger.Debug("Skipping candidate",
					zap.String("file", u.Path),
					zap.String("cleanup", entry.Cleanup),
					zap.String("reason", bindErr.Reason))
				if m.Form == query.FormUnqualified && m.Pattern.Kind == pattern.MethodCall {
					w.unmigrated = append(w.unmigrated, m)
				}
				continue
			}
			m.Bindings = b
			if entry.SwapOnly && !rewrite.NeedsSwap(b, entry.Rule.Swap[0], entry.Rule.Swap[1]) {
				continue
			}

			if prev, ok := owners[m.Node]; ok {
				return nil, &query.ConflictingMatchError{Node: m.Node, First: r.entries[prev].Label(), Second: entry.Label()}
			}
			owners[m.Node] = idx
			matched = append(matched, m)
			if len(frags) > 0 {
				fragments[m.Node] = frags
			}
		}

		for _, m := range matched {
			entry := r.entries[m.Entry]
			if err := r.claimed.Claim(m.Node, entry.Label()); err != nil {
				return nil, err
			}
			if entry.CrossFile {
				w.cross = append(w.cross, m)
				continue
			}
			edit, err := r.processor.Apply(m, entry.Rule)
			if err != nil {
				return nil, err
			}
			frags := fragments[m.Node]
			if len(frags) > 0 && edit.Group == "" {
				edit.Group = MatchGroupPrefix + m.Node.String()
			}
			w.edits = append(w.edits, edit)
			for _, f := range frags {
				extra, err := r.processor.Render(m, f.Span, f.Template, f.Bindings)
				if err != nil {
					return nil, err
				}
				extra.Group = edit.Group
				w.edits = append(w.edits, extra)
			}
		}
	}
	return w, nil
}

// MatchGroupPrefix prefixes the group tying the edit of a match to the edits it needs
// outside its node.
const MatchGroupPrefix = "match:"

func (e *Engine) bindMatch(r *run, entry catalog.Entry, m query.Match) (pattern.Bindings, []bind.Fragment, error) {
	b, err := r.extractor.Bind(m)
	if err != nil {
		return nil, nil, err
	}
	if entry.Derive != bind.DeriveNone {
		if err := r.extractor.Derive(entry.Derive, m, b); err != nil {
			return nil, nil, err
		}
	}
	frags, err := r.extractor.Companions(entry.Companion, m, b)
	if err != nil {
		return nil, nil, err
	}
	return b, frags, nil
}

// withholdStaticGroups drops the edits that statically import a member when an
// unmigrated unqualified call of the same name remains in the file: both static imports
// would make that call ambiguous.
func (e *Engine) withholdStaticGroups(r *run, w *fileWork) []rewrite.Edit {
	var remaining []query.Match
	for _, m := range w.unmigrated {
		if !r.claimed.Has(m.Node) {
			remaining = append(remaining, m)
		}
	}
	if len(remaining) == 0 {
		return w.edits
	}

	withheld := make(map[string]bool)
	for _, edit := range w.edits {
		if len(edit.Group) <= len(rewrite.StaticGroupPrefix) || edit.Group[:len(rewrite.StaticGroupPrefix)] != rewrite.StaticGroupPrefix {
			continue
		}
		member := edit.Group[len(rewrite.StaticGroupPrefix):]
		owner, name := base.Qualifier(member), base.LastSegment(member)
		for _, m := range remaining {
			if m.Name == name && m.Owner != owner {
				withheld[edit.Group] = true
			}
		}
	}
	if len(withheld) == 0 {
		return w.edits
	}

	kept := w.edits[:0:0]
	for _, edit := range w.edits {
		if withheld[edit.Group] {
			continue
		}
		kept = append(kept, edit)
	}
	groups := make([]string, 0, len(withheld))
	for g := range withheld {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		w.warnings = append(w.warnings, Warning{
			Path:    w.unit.Path,
			Message: fmt.Sprintf("kept calls unqualified for %s: an unmigrated call of the same name remains", g[len(rewrite.StaticGroupPrefix):]),
		})
	}
	return kept
}
