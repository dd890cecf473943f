package lexer

// Lexer tokenizes a dagrunfile buffer. Structural NEWLINE/INDENT/DEDENT
// tokens come from the embedded indentation Scanner; everything else is
// ordinary byte-level tokenization. The lexer holds no global state and is
// reset per file, so separate files can be lexed concurrently.
type Lexer struct {
	source  []byte
	pos     int
	scanner *Scanner
}

// New creates a lexer over source.
func New(source []byte) *Lexer {
	l := &Lexer{}
	l.Init(source)
	return l
}

// Init resets the lexer with new input (following the Go scanner pattern).
func (l *Lexer) Init(source []byte) {
	l.source = source
	l.pos = 0
	l.scanner = NewScanner(source)
}

// Tokenize consumes the whole input and returns all tokens, ending with EOF.
func (l *Lexer) Tokenize() []Token {
	// ~1 token per 4 source bytes is typical for dagrunfiles.
	tokens := make([]Token, 0, len(l.source)/4+16)
	for {
		tok := l.Next()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens
		}
	}
}

// accept reports which structural tokens the grammar can use. INDENT is only
// meaningful outside a body, DEDENT only inside one; NEWLINE always is.
func (l *Lexer) accept() Accept {
	return Accept{
		Newline: true,
		Indent:  l.scanner.State().IndentLevel == 0,
		Dedent:  l.scanner.State().IndentLevel > 0,
	}
}

// Next returns the next token.
func (l *Lexer) Next() Token {
	if tok, ok := l.scanner.Scan(l.accept()); ok {
		l.pos = l.scanner.Pos()
		return tok
	}
	l.pos = l.scanner.Pos()

	if l.pos >= len(l.source) {
		return Token{Type: EOF, Span: NewSpan(uint32(l.pos), uint32(l.pos))}
	}

	start := l.pos
	ch := l.source[l.pos]
	l.pos++

	var typ TokenType
	switch ch {
	case ' ', '\t':
		for l.pos < len(l.source) && (l.source[l.pos] == ' ' || l.source[l.pos] == '\t') {
			l.pos++
		}
		typ = WHITESPACE
	case '#':
		typ = HASH
		if l.pos < len(l.source) && l.source[l.pos] == '!' {
			l.pos++
			typ = SHEBANG
		}
	case '@':
		typ = AT
	case ':':
		typ = COLON
		if l.pos < len(l.source) && l.source[l.pos] == '=' {
			l.pos++
			typ = COLON_EQUALS
		}
	case ',':
		typ = COMMA
	case '=':
		typ = EQUALS
	case '`':
		typ = BACKTICK
	case '"':
		typ = QUOTE
	case '{':
		typ = LBRACE
	case '}':
		typ = RBRACE
	default:
		if isIdentStart(ch) {
			for l.pos < len(l.source) && isIdentPart(l.source[l.pos]) {
				l.pos++
			}
			typ = IDENTIFIER
		} else {
			// Free-form text: run until the next delimiter or line break.
			for l.pos < len(l.source) && !isDelimiter(l.source[l.pos]) {
				l.pos++
			}
			typ = TEXT
		}
	}

	l.syncScanner()
	return Token{Type: typ, Span: NewSpan(uint32(start), uint32(l.pos))}
}

// syncScanner moves the scanner cursor past bytes consumed by ordinary
// tokenization without touching the indentation state.
func (l *Lexer) syncScanner() {
	l.scanner.Restore(l.pos, l.scanner.State())
}

// ScannerState exposes the indentation state for incremental-reparse
// checkpoints.
func (l *Lexer) ScannerState() ScannerState {
	return l.scanner.State()
}

func isIdentStart(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_' || ch == '-'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || ch >= '0' && ch <= '9' || ch == '.'
}

func isDelimiter(ch byte) bool {
	switch ch {
	case '#', '@', ':', ',', '=', '`', '"', '{', '}', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
