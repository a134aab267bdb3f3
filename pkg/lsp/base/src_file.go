package base

import "sort"

// FileHolder keeps the line layout of a document so byte offsets produced by the
// rewrite engine can be converted to LSP positions and back.
type FileHolder struct {
	FileURI    string
	content    string
	lineStarts []int
}

func NewFileHolder(uri string, content string) *FileHolder {
	// a line ends at '\n', "\r\n" or a lone '\r'
	lineStarts := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			lineStarts = append(lineStarts, i+1)
		} else if content[i] == '\r' {
			if i+1 < len(content) && content[i+1] == '\n' {
				lineStarts = append(lineStarts, i+2)
				i++
			} else {
				lineStarts = append(lineStarts, i+1)
			}
		}
	}

	return &FileHolder{
		FileURI:    uri,
		content:    content,
		lineStarts: lineStarts,
	}
}

func (fh *FileHolder) LineCount() int {
	return len(fh.lineStarts)
}

func (fh *FileHolder) GetLine(line int) string {
	if line < 0 || line >= len(fh.lineStarts) {
		return ""
	}
	start := fh.lineStarts[line]
	end := len(fh.content)
	if line+1 < len(fh.lineStarts) {
		end = fh.lineStarts[line+1]
	}
	for end > start && (fh.content[end-1] == '\n' || fh.content[end-1] == '\r') {
		end--
	}
	return fh.content[start:end]
}

// PositionAt converts a byte offset into a line/character position.
// Offsets outside the document are clamped.
func (fh *FileHolder) PositionAt(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(fh.content) {
		offset = len(fh.content)
	}
	line := sort.Search(len(fh.lineStarts), func(i int) bool {
		return fh.lineStarts[i] > offset
	}) - 1
	return Position{Line: line, Character: offset - fh.lineStarts[line]}
}

// OffsetAt is the inverse of PositionAt.
func (fh *FileHolder) OffsetAt(pos Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(fh.lineStarts) {
		return len(fh.content)
	}
	offset := fh.lineStarts[pos.Line] + pos.Character
	if offset > len(fh.content) {
		return len(fh.content)
	}
	return offset
}

func (fh *FileHolder) RangeOf(start, end int) Range {
	return Range{Start: fh.PositionAt(start), End: fh.PositionAt(end)}
}
