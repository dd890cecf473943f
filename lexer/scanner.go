package lexer

// Accept tells the scanner which structural tokens the grammar can use at
// the current position. The scanner emits at most one of them per call and
// declines otherwise, leaving ordinary tokenization to the lexer.
type Accept struct {
	Newline bool
	Indent  bool
	Dedent  bool
}

// ScannerState is the full indentation state. Task bodies are flat line
// lists, so a single tracked level is enough; there is no indent stack.
type ScannerState struct {
	IndentLevel uint16
	AtLineStart bool
}

// stateSize is the serialized size: two bytes of level plus one flag byte.
const stateSize = 3

// MarshalBinary encodes the state so an incremental-reparse session can
// resume scanning at an unaffected boundary without rescanning the file.
func (s ScannerState) MarshalBinary() ([]byte, error) {
	buf := make([]byte, stateSize)
	buf[0] = byte(s.IndentLevel & 0xFF)
	buf[1] = byte(s.IndentLevel >> 8)
	if s.AtLineStart {
		buf[2] = 1
	}
	return buf, nil
}

// UnmarshalBinary restores a serialized state. Short input silently resets
// to the start-of-file state: a reparse session with no usable checkpoint
// begins exactly like a fresh scan, so there is nothing for the caller to
// handle.
func (s *ScannerState) UnmarshalBinary(data []byte) error {
	if len(data) < stateSize {
		s.IndentLevel = 0
		s.AtLineStart = true
		return nil
	}
	s.IndentLevel = uint16(data[0]) | uint16(data[1])<<8
	s.AtLineStart = data[2] != 0
	return nil
}

// Scanner produces the structural pseudo-tokens (NEWLINE, INDENT, DEDENT)
// that the grammar consumes wherever indentation boundaries matter. State is
// per-parse; a new Scanner is created for every parse invocation so files
// can be parsed concurrently.
type Scanner struct {
	source []byte
	pos    int
	state  ScannerState
}

// NewScanner creates a scanner at the start of source.
func NewScanner(source []byte) *Scanner {
	return &Scanner{source: source, state: ScannerState{AtLineStart: true}}
}

// State returns a copy of the current indentation state.
func (s *Scanner) State() ScannerState {
	return s.state
}

// Restore seats the scanner at a byte offset with a previously saved state.
func (s *Scanner) Restore(pos int, state ScannerState) {
	s.pos = pos
	s.state = state
}

// Pos returns the current byte offset.
func (s *Scanner) Pos() int {
	return s.pos
}

// Scan emits at most one structural token, or declines by returning ok=false.
// The rules run in fixed order:
//  1. at EOF, emit DEDENT if one is pending
//  2. a line-break sequence emits NEWLINE
//  3. at line start, measure the indent run (tab = 4 columns, space = 1);
//     blank lines never change indentation; a nonzero width at level 0
//     emits INDENT, a width below the current level emits DEDENT
//
// Any dedent below the current level collapses directly to a full exit:
// only one level is tracked, so there is no intermediate step.
func (s *Scanner) Scan(accept Accept) (Token, bool) {
	if s.pos >= len(s.source) {
		if accept.Dedent && s.state.IndentLevel > 0 {
			s.state.IndentLevel = 0
			return Token{Type: DEDENT, Span: NewSpan(uint32(s.pos), uint32(s.pos))}, true
		}
		return Token{}, false
	}

	ch := s.source[s.pos]

	if ch == '\n' || ch == '\r' {
		if !accept.Newline {
			return Token{}, false
		}
		start := s.pos
		s.pos++
		if ch == '\r' && s.pos < len(s.source) && s.source[s.pos] == '\n' {
			s.pos++
		}
		s.state.AtLineStart = true
		return Token{Type: NEWLINE, Span: NewSpan(uint32(start), uint32(s.pos))}, true
	}

	if s.state.AtLineStart {
		start := s.pos
		width := uint16(0)
		for s.pos < len(s.source) {
			switch s.source[s.pos] {
			case '\t':
				width += 4
			case ' ':
				width++
			default:
				goto measured
			}
			s.pos++
		}
	measured:
		// Blank line: rewind and decline so indentation state is untouched.
		if s.pos >= len(s.source) || s.source[s.pos] == '\n' || s.source[s.pos] == '\r' {
			s.pos = start
			return Token{}, false
		}

		s.state.AtLineStart = false

		if accept.Indent && width > 0 && s.state.IndentLevel == 0 {
			s.state.IndentLevel = width
			return Token{Type: INDENT, Span: NewSpan(uint32(start), uint32(s.pos))}, true
		}

		if accept.Dedent && width < s.state.IndentLevel {
			s.state.IndentLevel = 0
			// The indent run is ordinary leading whitespace for the line
			// that follows; the dedent itself is zero width.
			s.pos = start
			return Token{Type: DEDENT, Span: NewSpan(uint32(start), uint32(start))}, true
		}

		// Declined: leave the whitespace run for ordinary tokenization.
		s.pos = start
	}

	return Token{}, false
}
