package asm

import (
	"fmt"
	"strings"
)

// Note is a message attached to a byte range of the source.
type Note struct {
	Message string
	Start   int
	End     int
}

// Error is an assembler diagnostic: a primary message plus any number of
// notes pointing at related places in the source.
type Error struct {
	Source  string
	Primary Note
	Notes   []Note
}

func (e *Error) Error() string {
	pos := PositionOf(e.Source, e.Primary.Start)
	return fmt.Sprintf("%d:%d: %s", pos.Line, pos.Column, e.Primary.Message)
}

// All returns the primary note followed by the secondary ones.
func (e *Error) All() []Note {
	return append([]Note{e.Primary}, e.Notes...)
}

// Diagnostic is a note rendered against its source line.
type Diagnostic struct {
	Message string
	Line    int
	Column  int
	Snippet string
	Markers string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s\n%s\n%s", d.Line, d.Column, d.Message, d.Snippet, d.Markers)
}

// Format clips the source line holding n to at most maxLineLen bytes
// around the note and underlines the note's range: "^" under its first
// byte and "-" under the rest.
func (e *Error) Format(n Note, maxLineLen int) Diagnostic {
	src := e.Source
	pos, pos2 := n.Start, n.End
	if pos > len(src) {
		pos = len(src)
	}
	if pos2 < pos+1 {
		pos2 = pos + 1
	}

	start := strings.LastIndexByte(src[:pos], '\n') + 1
	lineStart := start
	end := len(src) + 1
	if i := strings.IndexByte(src[start:], '\n'); i >= 0 {
		end = start + i + 1
	}

	temp := min(pos2, pos+maxLineLen/2)
	switch {
	case temp < start+maxLineLen:
		end = min(end, start+maxLineLen)
	case pos >= end-maxLineLen:
		start = max(start, end-maxLineLen)
	default:
		mid := (pos + temp) / 2
		start = max(start, mid-maxLineLen/2)
		end = min(end, start+maxLineLen)
	}
	pos2 = min(pos2, end)

	snippet := strings.TrimRight(src[start:min(end, len(src))], "\n")
	markers := strings.Repeat(" ", pos-start) + "^" + strings.Repeat("-", max(pos2-pos-1, 0))

	return Diagnostic{
		Message: n.Message,
		Line:    strings.Count(src[:lineStart], "\n") + 1,
		Column:  pos - lineStart + 1,
		Snippet: snippet,
		Markers: markers,
	}
}

// PositionOf converts a byte offset into a 1-based line and column.
func PositionOf(src string, offset int) Position {
	offset = min(max(offset, 0), len(src))
	lineStart := strings.LastIndexByte(src[:offset], '\n') + 1
	return Position{
		Offset: offset,
		Line:   strings.Count(src[:lineStart], "\n") + 1,
		Column: offset - lineStart + 1,
	}
}

func noteAt(message string, tok Token) Note {
	start, end := tok.span()
	return Note{Message: message, Start: start, End: end}
}

// raise aborts assembly of the current class. The panic is recovered at the
// class boundary in Assemble, which fills in Source.
func raise(message string, tok Token, notes ...Note) {
	panic(&Error{Primary: noteAt(message, tok), Notes: notes})
}
