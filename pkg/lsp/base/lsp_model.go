package base

// The subset of the LSP data model used to hand edits back to an editor.
// Lines and characters are zero based; Character counts bytes of the line.

type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// TextEdit replaces the text covered by Range with NewText. An empty range is an insertion.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

func (r *Range) Contains(pos Position) bool {
	if pos.Line < r.Start.Line || pos.Line > r.End.Line {
		return false
	}
	if pos.Line == r.Start.Line && pos.Character < r.Start.Character {
		return false
	}
	if pos.Line == r.End.Line && pos.Character > r.End.Character {
		return false
	}
	return true
}

func (r *Range) ContainsRange(other *Range) bool {
	if r.Contains(other.Start) && r.Contains(other.End) {
		return true
	}
	return false
}

func (r *Range) IsEmpty() bool {
	return r.Start == r.End
}
