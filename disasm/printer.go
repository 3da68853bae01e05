package disasm

import (
	"bytes"
	"strings"
)

const (
	indentWidth = 4
	maxIndent   = 20
)

// printer builds assembly text line by line. Values on a line are
// separated by single spaces and trailing spaces are dropped at the end of
// each line.
type printer struct {
	buf       bytes.Buffer
	indent    int
	lineStart int
}

// padding is the text that starts a line at the current indentation,
// optionally carrying a prefix such as a label.
func (p *printer) padding(prefix string) string {
	level := min(p.indent, maxIndent) * indentWidth
	if len(prefix) >= level {
		if prefix == "" {
			return ""
		}
		return prefix + " "
	}
	return prefix + strings.Repeat(" ", level-len(prefix))
}

func (p *printer) sol() {
	p.buf.WriteString(p.padding(""))
}

func (p *printer) val(s string) {
	b := p.buf.Bytes()
	if len(b) > p.lineStart && b[len(b)-1] != ' ' {
		p.buf.WriteByte(' ')
	}
	p.buf.WriteString(s)
}

func (p *printer) vals(s ...string) {
	for _, v := range s {
		p.val(v)
	}
}

func (p *printer) eol() {
	b := p.buf.Bytes()
	n := len(b)
	for n > p.lineStart && b[n-1] == ' ' {
		n--
	}
	p.buf.Truncate(n)
	p.buf.WriteByte('\n')
	p.lineStart = p.buf.Len()
}

// state captures enough of the printer to undo everything written since.
type state struct {
	size      int
	indent    int
	lineStart int
}

func (p *printer) save() state {
	return state{size: p.buf.Len(), indent: p.indent, lineStart: p.lineStart}
}

func (p *printer) restore(s state) {
	p.buf.Truncate(s.size)
	p.indent = s.indent
	p.lineStart = s.lineStart
}
