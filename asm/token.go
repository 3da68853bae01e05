package asm

type Position struct {
	Offset int
	Line   int
	Column int
}

type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenWhitespace
	TokenWord
	TokenDirective
	TokenLabelDef
	TokenNewlines
	TokenRef
	TokenColon
	TokenEquals
	TokenInt
	TokenLong
	TokenDouble
	TokenFloat
	TokenString
	TokenInvalid
)

// Names as they appear in "Expected ..." messages.
var tokenKindNames = map[TokenKind]string{
	TokenEOF:        "EOF",
	TokenWhitespace: "WHITESPACE",
	TokenWord:       "WORD",
	TokenDirective:  "DIRECTIVE",
	TokenLabelDef:   "LABEL_DEF",
	TokenNewlines:   "NEWLINES",
	TokenRef:        "REF",
	TokenColon:      "COLON",
	TokenEquals:     "EQUALS",
	TokenInt:        "INT_LITERAL",
	TokenLong:       "LONG_LITERAL",
	TokenDouble:     "DOUBLE_LITERAL",
	TokenFloat:      "FLOAT_LITERAL",
	TokenString:     "STRING_LITERAL",
	TokenInvalid:    "INVALID_TOKEN",
}

func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return "Unknown"
}

type Token struct {
	Kind  TokenKind
	Value string
	Pos   Position
}

// span is the byte range a diagnostic for this token covers. Newline and
// end-of-input tokens are reported as a single character.
func (t Token) span() (int, int) {
	if t.Kind == TokenNewlines || t.Kind == TokenEOF {
		return t.Pos.Offset, t.Pos.Offset + 1
	}
	return t.Pos.Offset, t.Pos.Offset + len(t.Value)
}
