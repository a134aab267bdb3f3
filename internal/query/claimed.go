package query

import (
	"fmt"

	"github.com/armchr/junitmig/internal/model/ast"
	"github.com/armchr/junitmig/internal/parse"
	"github.com/bits-and-blooms/bitset"
)

// FileClaims is the claimed-node bitset of one file arena.
type FileClaims struct {
	generation uint32
	bits       *bitset.BitSet
	owners     map[ast.NodeID]string
}

// ClaimedSet records every node consumed by a match during one run. It only grows.
// Entries for all files are created up front, so per-file workers never touch shared
// map state while claiming.
type ClaimedSet struct {
	files map[ast.FileID]*FileClaims
}

func NewClaimedSet(units []*parse.Unit) *ClaimedSet {
	cs := &ClaimedSet{files: make(map[ast.FileID]*FileClaims, len(units))}
	for _, u := range units {
		cs.files[u.ID] = &FileClaims{
			generation: u.Generation,
			bits:       bitset.New(uint(u.Len())),
			owners:     make(map[ast.NodeID]string),
		}
	}
	return cs
}

func (cs *ClaimedSet) File(id ast.FileID) *FileClaims {
	return cs.files[id]
}

// Has reports whether the node was already claimed. References from another tree
// generation are never considered claimed.
func (cs *ClaimedSet) Has(ref ast.NodeRef) bool {
	fc := cs.files[ref.File]
	if fc == nil || fc.generation != ref.Generation || ref.ID < 0 {
		return false
	}
	return fc.bits.Test(uint(ref.ID))
}

// Claim marks the node as consumed by owner. It fails when the node is already claimed
// or the reference is stale.
func (cs *ClaimedSet) Claim(ref ast.NodeRef, owner string) error {
	fc := cs.files[ref.File]
	if fc == nil {
		return fmt.Errorf("claim %s: unknown file", ref)
	}
	if fc.generation != ref.Generation {
		return fmt.Errorf("claim %s: stale generation, tree is at %d", ref, fc.generation)
	}
	if fc.bits.Test(uint(ref.ID)) {
		return &ConflictingMatchError{Node: ref, First: fc.owners[ref.ID], Second: owner}
	}
	fc.bits.Set(uint(ref.ID))
	fc.owners[ref.ID] = owner
	return nil
}

// Owner returns the label of whoever claimed the node.
func (cs *ClaimedSet) Owner(ref ast.NodeRef) string {
	if fc := cs.files[ref.File]; fc != nil {
		return fc.owners[ref.ID]
	}
	return ""
}

// Count returns the number of claimed nodes across all files.
func (cs *ClaimedSet) Count() uint {
	var n uint
	for _, fc := range cs.files {
		n += fc.bits.Count()
	}
	return n
}
