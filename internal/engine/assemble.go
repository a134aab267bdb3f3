package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/armchr/junitmig/internal/crossfile"
	"github.com/armchr/junitmig/internal/imports"
	"github.com/armchr/junitmig/internal/parse"
	"github.com/armchr/junitmig/internal/rewrite"
)

// assemble renders every file. A correlated group whose edits cannot be assembled in one
// of its files is dropped from all of them, and the files are assembled again.
func (e *Engine) assemble(ctx context.Context, project *parse.Project, work []*fileWork) ([]FileResult, []Warning, error) {
	assembler := imports.NewAssembler(project, e.logger)
	dropped := make(map[string]bool)
	var groupWarnings []Warning

	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		var files []FileResult
		var warnings []Warning
		retry := false

		for _, w := range work {
			var edits []rewrite.Edit
			for _, edit := range w.edits {
				if !dropped[edit.Group] {
					edits = append(edits, edit)
				}
			}
			res, groups, warns, err := assembleFile(assembler, w.unit, edits)
			if err != nil {
				return nil, nil, err
			}
			if len(groups) > 0 {
				for _, g := range groups {
					dropped[g] = true
				}
				groupWarnings = append(groupWarnings, rollbackWarnings(work, groups, w.unit.Path)...)
				retry = true
				break
			}
			warnings = append(warnings, warns...)
			if res.Changed {
				files = append(files, e.fileResult(res))
			}
		}
		if retry {
			continue
		}

		sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
		return files, append(groupWarnings, warnings...), nil
	}
}

// assembleFile assembles one file. Edits adding an import that clashes with one the file
// keeps are left out; when such an edit belongs to a correlated group, the group is
// returned instead so it can be dropped everywhere.
func assembleFile(assembler *imports.Assembler, u *parse.Unit, edits []rewrite.Edit) (*imports.Result, []string, []Warning, error) {
	var warnings []Warning
	for {
		res, err := assembler.Assemble(u, edits)
		if err == nil {
			return res, nil, warnings, nil
		}

		var clash *imports.ImportClashError
		var conflict *imports.ConflictingEditError
		switch {
		case errors.As(err, &clash):
			// edits of one group leave together
			var groups []string
			drop := make(map[string]bool)
			for _, edit := range edits {
				if !addsAny(edit, clash.Clashes) {
					continue
				}
				if isTxn(edit.Group) {
					groups = appendUnique(groups, edit.Group)
				}
				if edit.Group != "" {
					drop[edit.Group] = true
				}
			}
			var kept []rewrite.Edit
			removed := 0
			for _, edit := range edits {
				if addsAny(edit, clash.Clashes) || (edit.Group != "" && drop[edit.Group]) {
					removed++
					continue
				}
				kept = append(kept, edit)
			}
			if len(groups) > 0 {
				return nil, groups, nil, nil
			}
			if removed == 0 {
				return nil, nil, nil, err
			}
			warnings = append(warnings, Warning{
				Path:    u.Path,
				Cleanup: edits[0].CleanupID,
				Message: fmt.Sprintf("left %d edits unapplied: %v", removed, clash),
			})
			edits = kept

		case errors.As(err, &conflict):
			var groups []string
			drop := make(map[string]bool)
			for _, edit := range []rewrite.Edit{conflict.First, conflict.Second} {
				if isTxn(edit.Group) {
					groups = appendUnique(groups, edit.Group)
				} else if strings.HasPrefix(edit.Group, MatchGroupPrefix) {
					drop[edit.Group] = true
				}
			}
			if len(groups) > 0 {
				return nil, groups, nil, nil
			}
			if len(drop) == 0 {
				return nil, nil, nil, err
			}
			// a match and the edits outside its node leave together
			var kept []rewrite.Edit
			for _, edit := range edits {
				if !drop[edit.Group] {
					kept = append(kept, edit)
				}
			}
			warnings = append(warnings, Warning{
				Path:    u.Path,
				Cleanup: conflict.First.CleanupID,
				Message: fmt.Sprintf("left %d edits unapplied: %v", len(edits)-len(kept), conflict),
			})
			edits = kept

		default:
			return nil, nil, nil, err
		}
	}
}

// rollbackWarnings reports a dropped correlated change on every file that had edits in
// it, the file that failed to assemble first.
func rollbackWarnings(work []*fileWork, groups []string, failed string) []Warning {
	message := "rolled back correlated change " + strings.Join(groups, ", ") + " in every file"
	in := make(map[string]bool, len(groups))
	for _, g := range groups {
		in[g] = true
	}
	var warnings []Warning
	for _, w := range work {
		for _, edit := range w.edits {
			if !in[edit.Group] {
				continue
			}
			warning := Warning{Path: w.unit.Path, Cleanup: edit.CleanupID, Message: message}
			if w.unit.Path == failed {
				warnings = append([]Warning{warning}, warnings...)
			} else {
				warnings = append(warnings, warning)
			}
			break
		}
	}
	return warnings
}

func addsAny(edit rewrite.Edit, entries []imports.Entry) bool {
	for _, entry := range entries {
		list := edit.Imports.Add
		if entry.Static {
			list = edit.Imports.AddStatic
		}
		for _, name := range list {
			if name == entry.Name {
				return true
			}
		}
	}
	return false
}

func isTxn(group string) bool {
	return strings.HasPrefix(group, crossfile.TxnGroupPrefix)
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func (e *Engine) fileResult(res *imports.Result) FileResult {
	fr := FileResult{
		File:    res.File,
		Path:    res.Path,
		Applied: make(map[string]int),
		Imports: &res.Imports,
	}
	// a match and the edits outside its node count once
	counted := make(map[string]bool)
	for _, edit := range res.Applied {
		if strings.HasPrefix(edit.Group, MatchGroupPrefix) {
			if counted[edit.Group] {
				continue
			}
			counted[edit.Group] = true
		}
		fr.Applied[edit.CleanupID]++
	}
	switch e.opts.Output {
	case OutputEdits:
		fr.Edits = res.TextEdits
	default:
		fr.Text = res.Text
	}
	return fr
}
