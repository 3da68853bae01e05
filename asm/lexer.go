package asm

import (
	"regexp"
	"strings"
)

const (
	wordPattern      = `(?:[a-zA-Z_$(<]|\[[A-Z\[])[\w$;/\[()<>*+-]*`
	directivePattern = `\.[a-z]+`
	labelDefPattern  = `L\w+:`
	newlinesPattern  = `(?:;.*)?\n\s*`
	refPattern       = `\[[a-z0-9_:]+\]`
	intPattern       = `[+-]?(?:0[xX][0-9a-fA-F]+|[1-9][0-9]*|0)[lL]?`
	floatPattern     = `(?:(?:[-+][Ii][Nn][Ff][Ii][Nn][Ii][Tt][Yy]|[-+][Nn][Aa][Nn](?:<0[xX][0-9a-fA-F]+>)?)|[-+]?(?:\d+\.\d+(?:[eE][+-]?\d+)?|\d+[eE][+-]?\d+|0[xX][0-9a-fA-F]+(?:\.[0-9a-fA-F]+)?[pP][+-]?\d+))[fF]?`
	escapePattern    = `\\(?:U00(?:10|0[0-9a-fA-F])[0-9a-fA-F]{4}|u[0-9a-fA-F]{4}|x[0-9a-fA-F]{2}|[btnfr'"\\0-7])`
	stringPattern    = `[bB]?(?:"[^"\n\\]*(?:` + escapePattern + `[^"\n\\]*)*"|'[^'\n\\]*(?:` + escapePattern + `[^'\n\\]*)*')`
	stringStart      = `[bB]?(?:"(?:[^"\\\n]|` + escapePattern + `)*|'(?:[^'\\\n]|` + escapePattern + `)*)`
)

type tokenRule struct {
	kind TokenKind
	re   *regexp.Regexp
	// delimited rules must be followed by whitespace or end of input; the
	// token is the first submatch.
	delimited bool
}

func rule(kind TokenKind, pattern string, delimited bool) tokenRule {
	if delimited {
		pattern = `^(` + pattern + `)(?:\s|$)`
	} else {
		pattern = `^(?:` + pattern + `)`
	}
	return tokenRule{kind: kind, re: regexp.MustCompile(pattern), delimited: delimited}
}

var tokenRules = []tokenRule{
	rule(TokenWhitespace, `[ \t\r]+`, false),
	rule(TokenWord, wordPattern, true),
	rule(TokenDirective, directivePattern, true),
	rule(TokenLabelDef, labelDefPattern, true),
	rule(TokenNewlines, newlinesPattern, false),
	rule(TokenRef, refPattern, true),
	rule(TokenColon, `:`, true),
	rule(TokenEquals, `=`, true),
	rule(TokenInt, intPattern, true),
	rule(TokenDouble, floatPattern, true),
	rule(TokenString, stringPattern, true),
}

var (
	stringStartRe = regexp.MustCompile(`^` + stringStart)
	invalidRe     = regexp.MustCompile(`^.\S*`)
	wordRe        = regexp.MustCompile(`^` + wordPattern + `$`)
)

// IsWord reports whether s would be read back as a single WORD token.
func IsWord(s string) bool {
	return wordRe.MatchString(s)
}

type Lexer struct {
	src       string
	pos       int
	line      int
	column    int
	atLineEnd bool
}

func NewLexer(src string) *Lexer {
	return &Lexer{src: src, line: 1, column: 1, atLineEnd: true}
}

// newLexerAt starts lexing at offset as though it were the start of a line.
func newLexerAt(src string, offset int) *Lexer {
	p := PositionOf(src, offset)
	return &Lexer{src: src, pos: p.Offset, line: p.Line, column: p.Column, atLineEnd: true}
}

func (l *Lexer) Position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.column}
}

func (l *Lexer) AtEnd() bool { return l.pos >= len(l.src) }

func (l *Lexer) advance(n int) {
	text := l.src[l.pos : l.pos+n]
	if nl := strings.Count(text, "\n"); nl > 0 {
		l.line += nl
		l.column = n - strings.LastIndexByte(text, '\n')
	} else {
		l.column += n
	}
	l.pos += n
}

func (l *Lexer) nextRaw() (Token, error) {
	rest := l.src[l.pos:]
	start := l.Position()
	for _, r := range tokenRules {
		m := r.re.FindStringSubmatchIndex(rest)
		if m == nil {
			continue
		}
		n := m[1]
		if r.delimited {
			n = m[3]
		}
		l.advance(n)
		return Token{Kind: r.kind, Value: rest[:n], Pos: start}, nil
	}

	if l.AtEnd() {
		return Token{Kind: TokenEOF, Pos: start}, nil
	}
	if m := stringStartRe.FindStringIndex(rest); m != nil {
		end := l.pos + m[1]
		return Token{}, &Error{
			Source:  l.src,
			Primary: Note{Message: "Invalid escape sequence or character in string literal", Start: end, End: end + 1},
		}
	}
	n := len(invalidRe.FindString(rest))
	l.advance(n)
	return Token{Kind: TokenInvalid, Value: rest[:n], Pos: start}, nil
}

// Next returns the next significant token. Whitespace is skipped, and so
// are blank lines and comments following a line end.
func (l *Lexer) Next() (Token, error) {
	tok, err := l.nextRaw()
	for err == nil && (tok.Kind == TokenWhitespace || l.atLineEnd && tok.Kind == TokenNewlines) {
		tok, err = l.nextRaw()
	}
	if err != nil {
		return tok, err
	}
	l.atLineEnd = tok.Kind == TokenNewlines

	switch {
	case tok.Kind == TokenInt && strings.HasSuffix(strings.ToLower(tok.Value), "l"):
		tok.Kind = TokenLong
	case tok.Kind == TokenDouble && strings.HasSuffix(strings.ToLower(tok.Value), "f"):
		tok.Kind = TokenFloat
	}
	return tok, nil
}

// skipLine moves past the next newline, used to resynchronize after a
// lexical error.
func (l *Lexer) skipLine() {
	i := strings.IndexByte(l.src[l.pos:], '\n')
	if i < 0 {
		l.advance(len(l.src) - l.pos)
	} else {
		l.advance(i + 1)
	}
	l.atLineEnd = true
}
