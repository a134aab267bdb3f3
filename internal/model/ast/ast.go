package ast

import "fmt"

// FileID identifies one compilation unit within a migration run.
type FileID int32

// NodeID is the preorder index of a syntax node inside its file's arena.
type NodeID int32

const (
	InvalidFileID FileID = -1
	InvalidNodeID NodeID = -1
)

// NodeRef is a back-reference into a parsed tree. The generation is bumped whenever a
// file is re-parsed so references taken from an older tree can be detected.
type NodeRef struct {
	File       FileID `json:"file"`
	ID         NodeID `json:"id"`
	Generation uint32 `json:"generation"`
}

func (r NodeRef) Valid() bool {
	return r.File != InvalidFileID && r.ID != InvalidNodeID
}

func (r NodeRef) String() string {
	return fmt.Sprintf("%d:%d@%d", r.File, r.ID, r.Generation)
}

// Span is a half-open byte range [Start, End) in a file's source.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Span) Len() int {
	return s.End - s.Start
}

func (s Span) IsEmpty() bool {
	return s.Start == s.End
}

// Contains reports whether other lies fully inside s.
func (s Span) Contains(other Span) bool {
	return s.Start <= other.Start && other.End <= s.End
}

// Overlaps reports whether the two spans share at least one byte. Two insertions at the
// same offset do not overlap; an insertion strictly inside a replaced range does.
func (s Span) Overlaps(other Span) bool {
	if s.IsEmpty() && other.IsEmpty() {
		return false
	}
	if s.IsEmpty() {
		return other.Start < s.Start && s.Start < other.End
	}
	if other.IsEmpty() {
		return s.Start < other.Start && other.Start < s.End
	}
	return s.Start < other.End && other.Start < s.End
}
