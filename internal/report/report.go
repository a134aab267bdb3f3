// Package report renders migration results for terminals.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/armchr/junitmig/internal/model"

	"github.com/dustin/go-humanize"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// contextLines is the number of unchanged lines kept around every change.
const contextLines = 2

// Diff renders a line diff of one file: a header, then hunks of "-", "+" and " " lines.
// Unchanged stretches longer than the context collapse into "@@" separators.
func Diff(path, before, after string) string {
	if before == after {
		return ""
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", path, path)
	for i, d := range diffs {
		text := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			writeLines(&sb, "-", text)
		case diffmatchpatch.DiffInsert:
			writeLines(&sb, "+", text)
		case diffmatchpatch.DiffEqual:
			first, last := i == 0, i == len(diffs)-1
			switch {
			case len(text) <= 2*contextLines && !first && !last:
				writeLines(&sb, " ", text)
			case first:
				if len(text) > contextLines {
					sb.WriteString("@@\n")
				}
				writeLines(&sb, " ", tail(text, contextLines))
			case last:
				writeLines(&sb, " ", head(text, contextLines))
			default:
				writeLines(&sb, " ", head(text, contextLines))
				sb.WriteString("@@\n")
				writeLines(&sb, " ", tail(text, contextLines))
			}
		}
	}
	return sb.String()
}

func splitLines(s string) []string {
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func writeLines(sb *strings.Builder, prefix string, lines []string) {
	for _, l := range lines {
		sb.WriteString(prefix)
		sb.WriteString(strings.TrimSuffix(l, "\n"))
		sb.WriteByte('\n')
	}
}

func head(lines []string, n int) []string {
	if len(lines) > n {
		return lines[:n]
	}
	return lines
}

func tail(lines []string, n int) []string {
	if len(lines) > n {
		return lines[len(lines)-n:]
	}
	return lines
}

// Summary writes the counts of a run, then its warnings and the per-cleanup edit totals.
func Summary(w io.Writer, resp *model.MigrateResponse, sourceBytes int, elapsed time.Duration) {
	fmt.Fprintf(w, "Scanned %s files (%s), %s skipped, %s changed, %s edits in %s\n",
		humanize.Comma(int64(resp.Scanned)),
		humanize.Bytes(uint64(sourceBytes)),
		humanize.Comma(int64(resp.Skipped)),
		humanize.Comma(int64(len(resp.Files))),
		humanize.Comma(int64(resp.Edits)),
		elapsed.Round(time.Millisecond))

	totals := make(map[string]int)
	for _, f := range resp.Files {
		for cleanup, n := range f.Applied {
			totals[cleanup] += n
		}
	}
	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "  %-32s %s\n", id, humanize.Comma(int64(totals[id])))
	}

	for _, warning := range resp.Warnings {
		if warning.Cleanup != "" {
			fmt.Fprintf(w, "warning: %s [%s]: %s\n", warning.Path, warning.Cleanup, warning.Message)
		} else {
			fmt.Fprintf(w, "warning: %s: %s\n", warning.Path, warning.Message)
		}
	}
}
