package lexer

// TokenType identifies the lexical class of a token.
type TokenType int

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Structural tokens (emitted by the indentation scanner)
	NEWLINE // \n, \r or \r\n treated as one line break
	INDENT  // entering a task body
	DEDENT  // leaving a task body

	// Sigils
	HASH         // #
	SHEBANG      // #! (only meaningful at the start of a body line)
	AT           // @
	COLON        // :
	COLON_EQUALS // :=
	COMMA        // ,
	EQUALS       // =
	BACKTICK     // `
	QUOTE        // "
	LBRACE       // {
	RBRACE       // }

	// Content
	IDENTIFIER // task names, variable names, annotation keywords
	TEXT       // free-form run up to the next delimiter
	WHITESPACE // spaces and tabs inside a line
)

var tokenNames = map[TokenType]string{
	EOF:          "EOF",
	ILLEGAL:      "ILLEGAL",
	NEWLINE:      "NEWLINE",
	INDENT:       "INDENT",
	DEDENT:       "DEDENT",
	HASH:         "HASH",
	SHEBANG:      "SHEBANG",
	AT:           "AT",
	COLON:        "COLON",
	COLON_EQUALS: "COLON_EQUALS",
	COMMA:        "COMMA",
	EQUALS:       "EQUALS",
	BACKTICK:     "BACKTICK",
	QUOTE:        "QUOTE",
	LBRACE:       "LBRACE",
	RBRACE:       "RBRACE",
	IDENTIFIER:   "IDENTIFIER",
	TEXT:         "TEXT",
	WHITESPACE:   "WHITESPACE",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsTrivia reports whether the token carries no grammar meaning on its own.
func (t TokenType) IsTrivia() bool {
	return t == WHITESPACE
}

// Span is a half-open byte range [Start, End) into the source buffer.
type Span struct {
	Start uint32
	End   uint32
}

// NewSpan builds a span from byte offsets.
func NewSpan(start, end uint32) Span {
	return Span{Start: start, End: end}
}

// Text returns the source text covered by the span.
func (s Span) Text(source []byte) string {
	if int(s.Start) > len(source) || int(s.End) > len(source) || s.Start > s.End {
		return ""
	}
	return string(source[s.Start:s.End])
}

// Merge returns the smallest span covering both s and other.
func (s Span) Merge(other Span) Span {
	out := s
	if other.Start < out.Start {
		out.Start = other.Start
	}
	if other.End > out.End {
		out.End = other.End
	}
	return out
}

// Len returns the number of bytes covered.
func (s Span) Len() int {
	return int(s.End - s.Start)
}

// Contains reports whether the byte offset falls inside the span.
func (s Span) Contains(offset uint32) bool {
	return offset >= s.Start && offset < s.End
}

// Token is a lexed token. Text is not stored; callers slice the source
// buffer through the span, keeping tokens allocation-free.
type Token struct {
	Type TokenType
	Span Span
}

// Text returns the token's source text.
func (t Token) Text(source []byte) string {
	return t.Span.Text(source)
}

// Position is a 1-based line/column pair used in error messages.
type Position struct {
	Line   int
	Column int
}

// PositionFor derives the line/column of a byte offset. Columns count bytes,
// matching the Go scanner convention.
func PositionFor(source []byte, offset uint32) Position {
	pos := Position{Line: 1, Column: 1}
	end := int(offset)
	if end > len(source) {
		end = len(source)
	}
	for i := 0; i < end; i++ {
		if source[i] == '\n' {
			pos.Line++
			pos.Column = 1
		} else {
			pos.Column++
		}
	}
	return pos
}
