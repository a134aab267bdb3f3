package crossfile

import (
	"fmt"
	"sort"

	"github.com/armchr/junitmig/internal/model/ast"
	"github.com/armchr/junitmig/internal/rewrite"
)

// TxnGroupPrefix prefixes the group of every edit committed by a transaction. The engine
// drops all edits of such a group, in every file, when any of its files cannot be
// assembled.
const TxnGroupPrefix = "txn:"

// Transaction collects the edits of one correlated group. Nothing reaches the edit set
// unless every step of the group succeeded.
type Transaction struct {
	id    string
	edits []rewrite.Edit
	links []CrossFileLink
	err   error
}

func NewTransaction(id string) *Transaction {
	return &Transaction{id: id}
}

func (t *Transaction) ID() string {
	return t.id
}

// Add stages an edit. Edits added after a failure are ignored.
func (t *Transaction) Add(edits ...rewrite.Edit) {
	if t.err != nil {
		return
	}
	for _, e := range edits {
		e.Group = TxnGroupPrefix + t.id
		t.edits = append(t.edits, e)
	}
}

func (t *Transaction) Link(link CrossFileLink) {
	if t.err == nil {
		t.links = append(t.links, link)
	}
}

// Fail aborts the transaction. The first error wins.
func (t *Transaction) Fail(err error) {
	if t.err == nil {
		t.err = err
	}
}

func (t *Transaction) Err() error {
	return t.err
}

// Files lists the files touched by the staged edits.
func (t *Transaction) Files() []ast.FileID {
	seen := make(map[ast.FileID]bool)
	var files []ast.FileID
	for _, e := range t.edits {
		if !seen[e.File] {
			seen[e.File] = true
			files = append(files, e.File)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i] < files[j] })
	return files
}

// Commit publishes the staged edits to set, or nothing if the transaction failed.
func (t *Transaction) Commit(set *EditSet) error {
	if t.err != nil {
		return fmt.Errorf("transaction %s: %w", t.id, t.err)
	}
	for _, e := range t.edits {
		set.byFile[e.File] = append(set.byFile[e.File], e)
	}
	set.links = append(set.links, t.links...)
	set.groups[TxnGroupPrefix+t.id] = t.Files()
	return nil
}

// EditSet holds the committed cross-file edits of a run.
type EditSet struct {
	byFile map[ast.FileID][]rewrite.Edit
	links  []CrossFileLink
	groups map[string][]ast.FileID
}

func NewEditSet() *EditSet {
	return &EditSet{
		byFile: make(map[ast.FileID][]rewrite.Edit),
		groups: make(map[string][]ast.FileID),
	}
}

func (s *EditSet) Edits(file ast.FileID) []rewrite.Edit {
	return s.byFile[file]
}

// All returns every committed edit ordered by file.
func (s *EditSet) All() []rewrite.Edit {
	files := make([]ast.FileID, 0, len(s.byFile))
	for f := range s.byFile {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i] < files[j] })
	var out []rewrite.Edit
	for _, f := range files {
		out = append(out, s.byFile[f]...)
	}
	return out
}

func (s *EditSet) Links() []CrossFileLink {
	return s.links
}

// GroupFiles returns the files a committed group touched.
func (s *EditSet) GroupFiles(group string) []ast.FileID {
	return s.groups[group]
}
