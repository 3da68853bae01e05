package asm

import (
	"strings"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("krak.asm")

// Result is the outcome of assembling one class: either its name and
// class file bytes, or the error that stopped it.
type Result struct {
	Name string
	Data []byte
	Err  *Error
}

// Assemble assembles every class in source. A class that fails to
// assemble yields a Result with Err set, and assembly resumes at the next
// line starting with .version or .class.
func Assemble(source string) []Result {
	// A final line without a trailing newline still ends a statement.
	if !strings.HasSuffix(source, "\n") {
		source += "\n"
	}

	var results []Result
	lex := NewLexer(source)
	for !lex.AtEnd() {
		res, eof, cur, floor := assembleClass(source, lex)
		if eof {
			break
		}
		results = append(results, res)
		if res.Err == nil {
			log.Debugf("assembled %s (%d bytes)", res.Name, len(res.Data))
			continue
		}

		next, ok := nextClassStart(source, cur, floor)
		if !ok {
			break
		}
		log.Debugf("resuming at line %d after error: %s", PositionOf(source, next).Line, res.Err)
		lex = newLexerAt(source, next)
	}
	return results
}

// assembleClass parses and assembles the class starting at the lexer's
// position. cur is the offset of the last token read and floor that of the
// class's first token, both used to resynchronize after an error.
func assembleClass(src string, lex *Lexer) (res Result, eof bool, cur, floor int) {
	start := lex.Position().Offset
	cur, floor = start, start
	p := newParser(lex)
	read := false

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err, ok := r.(*Error)
		if !ok {
			panic(r)
		}
		err.Source = src
		if read {
			cur = p.tok.Pos.Offset
		}
		res, eof = Result{Err: err}, false
	}()

	p.consume()
	read = true
	if p.tok.Kind == TokenEOF {
		return Result{}, true, cur, floor
	}
	floor = p.tok.Pos.Offset
	p.cls.Tok = p.tok

	name, data := p.parseClass()
	return Result{Name: name, Data: data}, false, cur, floor
}

// nextClassStart finds the first .version or .class directive that begins
// a line, lies at or after cur and strictly after floor.
func nextClassStart(src string, cur, floor int) (int, bool) {
	lex := newLexerAt(src, strings.LastIndexByte(src[:cur], '\n')+1)
	lineStart := true
	for {
		tok, err := lex.Next()
		if err != nil {
			lex.skipLine()
			lineStart = true
			continue
		}

		switch {
		case tok.Kind == TokenEOF:
			return 0, false
		case tok.Kind == TokenNewlines:
			lineStart = true
			continue
		case lineStart && tok.Kind == TokenDirective && (tok.Value == ".version" || tok.Value == ".class"):
			if tok.Pos.Offset >= cur && tok.Pos.Offset > floor {
				return tok.Pos.Offset, true
			}
		}
		lineStart = false
	}
}
