package parser

import (
	"fmt"

	"github.com/wseaton/dagrun/lexer"
)

// ErrorKind categorizes a parse error.
type ErrorKind int

const (
	// SyntaxError is an unexpected token, an unterminated block, or a
	// malformed annotation argument.
	SyntaxError ErrorKind = iota
	// LexError is an indentation transition the single-level model cannot
	// represent, such as an indented line with no task header before it.
	LexError
)

func (k ErrorKind) String() string {
	switch k {
	case LexError:
		return "lex error"
	default:
		return "syntax error"
	}
}

// ParseError is one diagnostic with its byte-offset span. Errors never
// abort the parse; the tree always comes back with them attached.
type ParseError struct {
	Kind       ErrorKind
	ErrSpan    lexer.Span
	Message    string
	Suggestion string // optional actionable fix
}

// Error formats the diagnostic with a 1-based line:column prefix when the
// owning file's source is not at hand.
func (e ParseError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Suggestion)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Format renders the diagnostic against its source buffer.
func (e ParseError) Format(source []byte) string {
	pos := lexer.PositionFor(source, e.ErrSpan.Start)
	msg := fmt.Sprintf("%d:%d: %s: %s", pos.Line, pos.Column, e.Kind, e.Message)
	if e.Suggestion != "" {
		msg += "\n  hint: " + e.Suggestion
	}
	return msg
}
