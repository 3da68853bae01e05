package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/dhamidi/krak/asm"
)

// maxLineLen bounds the source snippet printed under a diagnostic.
const maxLineLen = 80

const (
	colorReset = "\x1b[0m"
	colorError = "\x1b[1;31m"
	colorNote  = "\x1b[1;36m"
	colorMark  = "\x1b[32m"
)

// reporter prints progress and diagnostics from concurrent workers.
type reporter struct {
	mu       sync.Mutex
	out      io.Writer
	errOut   io.Writer
	color    bool
	maxNotes int
}

func newReporter(out, errOut io.Writer, maxNotes int) *reporter {
	color := false
	if f, ok := errOut.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd())) && os.Getenv("NO_COLOR") == ""
	}
	return &reporter{out: out, errOut: errOut, color: color, maxNotes: maxNotes}
}

func (r *reporter) paint(color, s string) string {
	if !r.color {
		return s
	}
	return color + s + colorReset
}

func (r *reporter) wrote(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "wrote %s\n", path)
}

func (r *reporter) failed(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.errOut, "%s: %s %v\n", name, r.paint(colorError, "error:"), err)
}

// assembleError prints the primary note of err and at most maxNotes of
// the others, each with its source line.
func (r *reporter) assembleError(name string, err *asm.Error) {
	var b strings.Builder
	r.note(&b, name, err, err.Primary, r.paint(colorError, "error:"))
	for i, n := range err.Notes {
		if i >= r.maxNotes {
			fmt.Fprintf(&b, "(%d more notes omitted)\n", len(err.Notes)-i)
			break
		}
		r.note(&b, name, err, n, r.paint(colorNote, "note:"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	io.WriteString(r.errOut, b.String())
}

func (r *reporter) note(b *strings.Builder, name string, err *asm.Error, n asm.Note, label string) {
	d := err.Format(n, maxLineLen)
	fmt.Fprintf(b, "%s:%d:%d: %s %s\n", name, d.Line, d.Column, label, d.Message)
	fmt.Fprintf(b, "%s\n%s\n", d.Snippet, r.paint(colorMark, d.Markers))
}
