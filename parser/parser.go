package parser

import (
	"sort"
	"strings"

	"github.com/wseaton/dagrun/lexer"
)

// Parse tokenizes and parses one dagrunfile buffer. The call always returns
// a complete tree for whatever it could recognize; malformed regions become
// entries in SourceFile.Errors (and ErrorNode items when nothing at all
// could be salvaged) instead of aborting the parse.
func Parse(source []byte) *SourceFile {
	tokens := lexer.New(source).Tokenize()
	p := &parser{
		source: source,
		tokens: tokens,
		errors: make([]ParseError, 0, 4),
	}
	return p.parseFile()
}

// ParseString is a convenience wrapper for tests.
func ParseString(input string) *SourceFile {
	return Parse([]byte(input))
}

type parser struct {
	source []byte
	tokens []lexer.Token
	pos    int
	errors []ParseError
}

func (p *parser) parseFile() *SourceFile {
	var items []Item
	var pending []Annotation

	for !p.atEnd() {
		p.skipBlank()
		if p.atEnd() {
			break
		}

		item := p.parseItem(&pending)
		if item != nil {
			items = append(items, item)
		}
	}

	for _, ann := range pending {
		p.errorAt(SyntaxError, ann.FullSpan, "annotation not followed by a task", "")
	}

	// Errors are recorded in discovery order, which can trail source order
	// when an abandoned annotation is only reported at end of input; the
	// returned list is ordered by span.
	sort.SliceStable(p.errors, func(i, j int) bool {
		return p.errors[i].ErrSpan.Start < p.errors[j].ErrSpan.Start
	})

	return &SourceFile{Source: p.source, Items: items, Errors: p.errors}
}

func (p *parser) parseItem(pending *[]Annotation) Item {
	p.skipWhitespace()
	tok := p.peek()

	switch tok.Type {
	case lexer.HASH, lexer.SHEBANG:
		// A shebang marker is only meaningful at the start of a body line;
		// at the top level it is an ordinary comment.
		return p.parseComment()

	case lexer.IDENTIFIER:
		name := tok.Text(p.source)
		if name == "set" && p.looksLikeSetDirective() {
			p.drainOrphans(pending, "annotation before set directive")
			return p.parseSetDirective()
		}
		p.advance()
		nameIdent := Ident{Name: name, NameSpan: tok.Span}
		p.skipWhitespace()

		if p.at(lexer.COLON_EQUALS) {
			p.drainOrphans(pending, "annotation before variable assignment")
			return p.parseVariable(nameIdent)
		}
		if p.at(lexer.COLON) || p.at(lexer.IDENTIFIER) {
			anns := *pending
			*pending = nil
			return p.parseTask(nameIdent, anns)
		}

		p.errorAt(SyntaxError, tok.Span, "expected ':=' or ':' after '"+name+"'", "a task header is 'name:', a variable is 'name := value'")
		span := p.recoverToLineStart(tok.Span)
		return &ErrorNode{FullSpan: span, Message: "unrecognized line"}

	case lexer.AT:
		atSpan := tok.Span
		p.advance()
		if !p.at(lexer.IDENTIFIER) {
			p.errorAt(SyntaxError, atSpan, "expected annotation name after '@'", "")
			span := p.recoverToLineStart(atSpan)
			return &ErrorNode{FullSpan: span, Message: "malformed annotation"}
		}
		switch p.peek().Text(p.source) {
		case "lua":
			p.drainOrphans(pending, "annotation before lua block")
			return p.parseLuaBlock(atSpan)
		case "context":
			p.drainOrphans(pending, "annotation before context block")
			return p.parseContextBlock(atSpan)
		}
		ann := p.parseAnnotation(atSpan)
		*pending = append(*pending, ann)
		p.skipToLineStart()
		return nil

	case lexer.NEWLINE:
		p.advance()
		return nil

	case lexer.INDENT:
		// Indented content with no task header above it. The body model
		// tracks one level, so the whole run is opaque.
		start := tok.Span
		p.errorAt(LexError, start, "unexpected indentation: no task header on the previous line", "")
		span := p.skipIndentedRun(start)
		return &ErrorNode{FullSpan: span, Message: "indented lines outside a task body"}

	default:
		p.errorAt(SyntaxError, tok.Span, "unexpected token "+tok.Type.String(), "")
		p.advance()
		span := p.recoverToLineStart(tok.Span)
		return &ErrorNode{FullSpan: span, Message: "unrecognized line"}
	}
}

// looksLikeSetDirective peeks past "set" for `identifier :=` without
// consuming anything, so a task literally named "set" still parses.
func (p *parser) looksLikeSetDirective() bool {
	i := p.pos + 1
	for i < len(p.tokens) && p.tokens[i].Type == lexer.WHITESPACE {
		i++
	}
	if i >= len(p.tokens) || p.tokens[i].Type != lexer.IDENTIFIER {
		return false
	}
	i++
	for i < len(p.tokens) && p.tokens[i].Type == lexer.WHITESPACE {
		i++
	}
	return i < len(p.tokens) && p.tokens[i].Type == lexer.COLON_EQUALS
}

func (p *parser) parseComment() Item {
	marker := p.peek()
	p.advance()
	text, span := p.restOfLine()
	full := marker.Span.Merge(span)
	return &Comment{
		FullSpan: full,
		Text:     marker.Text(p.source) + text,
		Doc:      marker.Type == lexer.HASH && strings.HasPrefix(text, "#"),
	}
}

func (p *parser) parseSetDirective() Item {
	setSpan := p.peek().Span
	p.advance() // set
	p.skipWhitespace()

	keyTok := p.peek()
	key := Ident{Name: keyTok.Text(p.source), NameSpan: keyTok.Span}
	p.advance()
	p.skipWhitespace()
	p.advance() // :=  (guaranteed by looksLikeSetDirective)
	p.skipWhitespace()

	raw, valueSpan := p.restOfLine()
	value := StaticValue{Value: strings.TrimSpace(raw), ValueSpan: valueSpan}

	return &SetDirective{
		FullSpan: setSpan.Merge(valueSpan),
		Key:      key,
		Value:    value,
	}
}

func (p *parser) parseVariable(name Ident) Item {
	p.advance() // :=
	p.skipWhitespace()

	// Backtick shell expansion is tried before the static catch-all, which
	// matches any remaining single-line text.
	if p.at(lexer.BACKTICK) {
		open := p.peek().Span
		p.advance()

		cmdStart := open.End
		terminated := false
		var close lexer.Span
		for !p.atEnd() && !p.at(lexer.NEWLINE) {
			if p.at(lexer.BACKTICK) {
				close = p.peek().Span
				p.advance()
				terminated = true
				break
			}
			p.advance()
		}

		cmdEnd := close.Start
		if !terminated {
			cmdEnd = p.prevEnd()
			p.errorAt(SyntaxError, open, "unclosed backtick in variable value", "add a closing '`' before the end of the line")
		}
		cmdSpan := lexer.NewSpan(cmdStart, cmdEnd)
		full := name.NameSpan.Merge(lexer.NewSpan(open.Start, cmdEnd))
		if terminated {
			full = name.NameSpan.Merge(close)
		}
		return &Variable{
			FullSpan: full,
			Name:     name,
			Value: &ShellExpansion{
				FullSpan:    lexer.NewSpan(open.Start, full.End),
				Command:     cmdSpan.Text(p.source),
				CommandSpan: cmdSpan,
				Terminated:  terminated,
			},
		}
	}

	raw, valueSpan := p.restOfLine()
	return &Variable{
		FullSpan: name.NameSpan.Merge(valueSpan),
		Name:     name,
		Value:    StaticValue{Value: strings.TrimSpace(raw), ValueSpan: valueSpan},
	}
}

func (p *parser) parseTask(name Ident, annotations []Annotation) Item {
	params := p.parseParameters()

	if !p.at(lexer.COLON) {
		p.errorAt(SyntaxError, p.peek().Span, "expected ':' after task name", "")
		span := p.recoverToLineStart(name.NameSpan)
		return &ErrorNode{FullSpan: span, Message: "malformed task header"}
	}
	colon := p.peek().Span
	p.advance()

	deps := p.parseDependencies()
	p.skipToLineStart()

	body := p.parseTaskBody()

	end := colon
	if len(deps) > 0 {
		end = deps[len(deps)-1].FullSpan
	}
	if body != nil {
		end = body.FullSpan
	}
	start := name.NameSpan
	if len(annotations) > 0 {
		start = annotations[0].FullSpan
	}

	return &Task{
		FullSpan:     start.Merge(end),
		Annotations:  annotations,
		Name:         name,
		Params:       params,
		Dependencies: deps,
		Body:         body,
	}
}

func (p *parser) parseParameters() []Parameter {
	var params []Parameter
	for {
		p.skipWhitespace()
		if !p.at(lexer.IDENTIFIER) {
			return params
		}
		tok := p.peek()
		name := Ident{Name: tok.Text(p.source), NameSpan: tok.Span}
		p.advance()

		param := Parameter{FullSpan: tok.Span, Name: name}
		if p.at(lexer.EQUALS) {
			p.advance()
			def := p.parseParamDefault()
			if def != nil {
				param.Default = def
				param.FullSpan = tok.Span.Merge(def.Span())
			}
		}
		params = append(params, param)
	}
}

// parseParamDefault tries the default-value matchers in fixed order: quoted
// string, then {{variable}} reference, then bare token.
func (p *parser) parseParamDefault() ParamDefault {
	start := p.peek().Span

	if p.at(lexer.QUOTE) {
		p.advance()
		valueStart := start.End
		for !p.atEnd() && !p.at(lexer.NEWLINE) {
			if p.at(lexer.QUOTE) {
				close := p.peek().Span
				p.advance()
				return QuotedDefault{
					FullSpan: start.Merge(close),
					Value:    lexer.NewSpan(valueStart, close.Start).Text(p.source),
				}
			}
			p.advance()
		}
		p.errorAt(SyntaxError, start, "unclosed quote in parameter default", "")
		return QuotedDefault{
			FullSpan: lexer.NewSpan(start.Start, p.prevEnd()),
			Value:    lexer.NewSpan(valueStart, p.prevEnd()).Text(p.source),
		}
	}

	if p.at(lexer.LBRACE) && p.peekAt(1, lexer.LBRACE) {
		interp := p.parseInterpolation()
		return VariableRefDefault{FullSpan: interp.FullSpan, Name: interp.Name}
	}

	// Bare token: anything up to whitespace, a quote, or the header colon.
	var end uint32 = start.Start
	for !p.atEnd() {
		t := p.peek()
		if t.Type == lexer.WHITESPACE || t.Type == lexer.COLON || t.Type == lexer.QUOTE || t.Type == lexer.NEWLINE {
			break
		}
		end = t.Span.End
		p.advance()
	}
	if end == start.Start {
		p.errorAt(SyntaxError, start, "expected parameter default value after '='", "")
		return nil
	}
	span := lexer.NewSpan(start.Start, end)
	return BareDefault{FullSpan: span, Value: span.Text(p.source)}
}

func (p *parser) parseDependencies() []Dependency {
	var deps []Dependency
	for {
		p.skipWhitespace()
		if p.atLineEnd() {
			return deps
		}
		if p.at(lexer.COMMA) {
			p.advance()
			continue
		}
		if !p.at(lexer.IDENTIFIER) {
			p.errorAt(SyntaxError, p.peek().Span, "expected dependency name", "")
			p.advance()
			continue
		}

		tok := p.peek()
		first := tok.Text(p.source)
		p.advance()

		// service:<name> marks a managed-service dependency. The token
		// after the colon is the service name.
		if p.at(lexer.COLON) {
			p.advance()
			if !p.at(lexer.IDENTIFIER) {
				p.errorAt(SyntaxError, tok.Span, "expected service name after ':'", "")
				continue
			}
			svcTok := p.peek()
			p.advance()
			if first != "service" {
				p.errorAt(SyntaxError, tok.Span, "expected 'service:' prefix in dependency", "write 'service:"+svcTok.Text(p.source)+"'")
			}
			deps = append(deps, Dependency{
				FullSpan: tok.Span.Merge(svcTok.Span),
				Name:     svcTok.Text(p.source),
				Service:  true,
			})
			continue
		}

		deps = append(deps, Dependency{FullSpan: tok.Span, Name: first})
	}
}

// parseTaskBody parses the indented region after a task header. The scanner
// emits a single INDENT when the body is entered and a single DEDENT when
// indentation falls back to the header's level (or at end of input); the
// lines in between are flat.
func (p *parser) parseTaskBody() *TaskBody {
	// Blank lines between the header and the first indented line are
	// indentation-neutral; the body still attaches when an INDENT follows
	// them. The lookahead consumes nothing unless the INDENT is there.
	i := p.pos
	for i < len(p.tokens) &&
		(p.tokens[i].Type == lexer.NEWLINE || p.tokens[i].Type == lexer.WHITESPACE) {
		i++
	}
	if i >= len(p.tokens) || p.tokens[i].Type != lexer.INDENT {
		return nil
	}
	p.pos = i
	span := p.peek().Span
	p.advance()

	var lines []BodyLine
	for !p.atEnd() {
		if p.at(lexer.DEDENT) {
			p.advance()
			break
		}
		// Blank lines and the leading indent of continuation lines never
		// end a body; only the DEDENT does.
		if p.at(lexer.NEWLINE) || p.at(lexer.WHITESPACE) || p.at(lexer.INDENT) {
			p.advance()
			continue
		}

		line := p.parseBodyLine()
		if line != nil {
			lines = append(lines, line)
			span = span.Merge(line.Span())
		}
		if p.at(lexer.NEWLINE) {
			p.advance()
		}
	}

	if len(lines) == 0 {
		return nil
	}
	return &TaskBody{FullSpan: span, Lines: lines}
}

func (p *parser) parseBodyLine() BodyLine {
	// A line is a shebang iff it begins with the exact `#!` marker. This
	// outranks ordinary command text; everywhere else `#!` is just text.
	if p.at(lexer.SHEBANG) {
		marker := p.peek().Span
		p.advance()
		raw, span := p.restOfLine()

		trimmed := strings.TrimSpace(raw)
		interpreter := trimmed
		args := ""
		if i := strings.IndexAny(trimmed, " \t"); i >= 0 {
			interpreter = trimmed[:i]
			args = strings.TrimSpace(trimmed[i:])
		}
		return &Shebang{
			FullSpan:    marker.Merge(span),
			Interpreter: interpreter,
			Args:        args,
		}
	}

	segments := p.parseSegments()
	if len(segments) == 0 {
		return nil
	}
	span := segments[0].Span()
	for _, seg := range segments[1:] {
		span = span.Merge(seg.Span())
	}
	return &CommandLine{FullSpan: span, Segments: segments}
}

// parseSegments splits a command line into raw text and interpolations.
// Text runs stop before `{{`; a lone `{` stays literal.
func (p *parser) parseSegments() []Segment {
	var segments []Segment
	textStart := uint32(0)
	textEnd := uint32(0)
	haveText := false

	flush := func() {
		if haveText {
			span := lexer.NewSpan(textStart, textEnd)
			segments = append(segments, RawText{FullSpan: span, Text: span.Text(p.source)})
			haveText = false
		}
	}

	for !p.atEnd() && !p.at(lexer.NEWLINE) && !p.at(lexer.DEDENT) {
		tok := p.peek()

		if tok.Type == lexer.LBRACE && p.peekAt(1, lexer.LBRACE) {
			flush()
			segments = append(segments, p.parseInterpolation())
			continue
		}

		if !haveText {
			textStart = tok.Span.Start
			haveText = true
		}
		textEnd = tok.Span.End
		p.advance()
	}

	flush()
	return segments
}

// parseInterpolation parses `{{name}}`. The caller has verified the double
// brace.
func (p *parser) parseInterpolation() *Interpolation {
	open := p.peek().Span
	p.advance()
	open = open.Merge(p.peek().Span)
	p.advance()
	p.skipWhitespace()

	var name Ident
	if p.at(lexer.IDENTIFIER) {
		tok := p.peek()
		name = Ident{Name: tok.Text(p.source), NameSpan: tok.Span}
		p.advance()
	} else {
		p.errorAt(SyntaxError, open, "expected variable name inside '{{'", "")
	}
	p.skipWhitespace()

	terminated := false
	end := open
	if name.Name != "" {
		end = name.NameSpan
	}
	if p.at(lexer.RBRACE) {
		first := p.peek().Span
		p.advance()
		if p.at(lexer.RBRACE) {
			end = first.Merge(p.peek().Span)
			p.advance()
			terminated = true
		} else {
			end = first
		}
	}
	if !terminated {
		p.errorAt(SyntaxError, open.Merge(end), "unclosed '{{' interpolation", "close it with '}}'")
	}

	return &Interpolation{
		FullSpan:   open.Merge(end),
		Name:       name,
		Terminated: terminated,
	}
}

func (p *parser) parseAnnotation(atSpan lexer.Span) Annotation {
	nameTok := p.peek()
	name := nameTok.Text(p.source)
	p.advance()

	args := p.parseAnnotationArgs()

	end := nameTok.Span
	if len(args) > 0 {
		end = args[len(args)-1].Span()
	}
	return Annotation{
		FullSpan: atSpan.Merge(end),
		Kind:     LookupAnnotation(name),
		Name:     Ident{Name: name, NameSpan: nameTok.Span},
		Args:     args,
	}
}

// parseAnnotationArgs splits the rest of the annotation line into arguments.
// Matchers run in fixed priority: key=value, then local:remote file
// transfer (one token, never split on the colon), then plain token.
func (p *parser) parseAnnotationArgs() []AnnArg {
	var args []AnnArg
	for {
		p.skipWhitespace()
		if p.atLineEnd() {
			return args
		}
		if p.at(lexer.COMMA) {
			p.advance()
			continue
		}

		if kv, ok := p.tryParseKeyValue(); ok {
			args = append(args, kv)
			continue
		}

		raw, span := p.consumeWord()
		if raw == "" {
			p.advance()
			continue
		}
		if !strings.Contains(raw, "=") && strings.Contains(raw, ":") {
			i := strings.Index(raw, ":")
			args = append(args, FileTransferArg{
				FullSpan: span,
				Raw:      raw,
				Local:    raw[:i],
				Remote:   raw[i+1:],
			})
			continue
		}
		args = append(args, PlainArg{FullSpan: span, Value: raw})
	}
}

// tryParseKeyValue attempts `identifier = value` with rewind on failure.
func (p *parser) tryParseKeyValue() (KeyValueArg, bool) {
	if !p.at(lexer.IDENTIFIER) || !p.peekAt(1, lexer.EQUALS) {
		return KeyValueArg{}, false
	}
	keyTok := p.peek()
	p.advance()
	p.advance() // =

	// A quoted value may contain spaces; an unquoted one runs to the next
	// word boundary.
	if p.at(lexer.QUOTE) {
		open := p.peek().Span
		p.advance()
		valueStart := open.End
		for !p.atEnd() && !p.at(lexer.NEWLINE) {
			if p.at(lexer.QUOTE) {
				close := p.peek().Span
				p.advance()
				return KeyValueArg{
					FullSpan: keyTok.Span.Merge(close),
					Key:      Ident{Name: keyTok.Text(p.source), NameSpan: keyTok.Span},
					Value:    lexer.NewSpan(valueStart, close.Start).Text(p.source),
				}, true
			}
			p.advance()
		}
		p.errorAt(SyntaxError, open, "unclosed quote in annotation argument", "")
		return KeyValueArg{
			FullSpan: keyTok.Span.Merge(lexer.NewSpan(open.Start, p.prevEnd())),
			Key:      Ident{Name: keyTok.Text(p.source), NameSpan: keyTok.Span},
			Value:    lexer.NewSpan(valueStart, p.prevEnd()).Text(p.source),
		}, true
	}

	value, valueSpan := p.consumeWord()
	return KeyValueArg{
		FullSpan: keyTok.Span.Merge(valueSpan),
		Key:      Ident{Name: keyTok.Text(p.source), NameSpan: keyTok.Span},
		Value:    value,
	}, true
}

// consumeWord reads one whitespace-delimited run of tokens as raw text.
func (p *parser) consumeWord() (string, lexer.Span) {
	start := p.peek().Span.Start
	end := start
	for !p.atEnd() {
		t := p.peek()
		if t.Type == lexer.WHITESPACE || t.Type == lexer.NEWLINE || t.Type == lexer.COMMA {
			break
		}
		end = t.Span.End
		p.advance()
	}
	span := lexer.NewSpan(start, end)
	return span.Text(p.source), span
}

func (p *parser) parseLuaBlock(atSpan lexer.Span) Item {
	p.advance() // lua
	p.skipToLineStart()

	contentStart := uint32(p.offset())
	for !p.atEnd() {
		// At each line start, check for the closing marker. Indented lua
		// source produces INDENT/DEDENT tokens; they are part of the raw
		// capture and carry no structure here.
		lineStart := p.pos
		p.skipTrivia()
		if p.at(lexer.AT) && p.peekTextAt(1) == "end" {
			contentEnd := p.tokens[lineStart].Span.Start
			endSpan := p.peek().Span
			p.advance()
			endSpan = endSpan.Merge(p.peek().Span)
			p.advance()
			p.skipToLineStart()
			return &LuaBlock{
				FullSpan:    atSpan.Merge(endSpan),
				Content:     lexer.NewSpan(contentStart, contentEnd).Text(p.source),
				ContentSpan: lexer.NewSpan(contentStart, contentEnd),
				Terminated:  true,
			}
		}
		p.skipToLineStart()
	}

	// No @end before end of input: the whole remainder is erroneous.
	span := lexer.NewSpan(atSpan.Start, uint32(len(p.source)))
	p.errorAt(SyntaxError, span, "lua block missing '@end'", "close the block with a line containing '@end'")
	return &LuaBlock{
		FullSpan:    span,
		Content:     lexer.NewSpan(contentStart, uint32(len(p.source))).Text(p.source),
		ContentSpan: lexer.NewSpan(contentStart, uint32(len(p.source))),
		Terminated:  false,
	}
}

func (p *parser) parseContextBlock(atSpan lexer.Span) Item {
	p.advance() // context
	p.skipWhitespace()

	var name Ident
	if p.at(lexer.IDENTIFIER) {
		tok := p.peek()
		name = Ident{Name: tok.Text(p.source), NameSpan: tok.Span}
		p.advance()
	} else {
		p.errorAt(SyntaxError, atSpan, "expected context name after '@context'", "")
	}
	p.skipToLineStart()

	var annotations []Annotation
	for !p.atEnd() {
		p.skipTrivia()
		if p.at(lexer.NEWLINE) {
			p.advance()
			continue
		}
		if p.at(lexer.AT) {
			annAt := p.peek().Span
			p.advance()
			if p.at(lexer.IDENTIFIER) && p.peek().Text(p.source) == "end" {
				endSpan := annAt.Merge(p.peek().Span)
				p.advance()
				p.skipToLineStart()
				return &ContextBlock{
					FullSpan:    atSpan.Merge(endSpan),
					Name:        name,
					Annotations: annotations,
					Terminated:  true,
				}
			}
			if p.at(lexer.IDENTIFIER) {
				annotations = append(annotations, p.parseAnnotation(annAt))
				p.skipToLineStart()
				continue
			}
			p.errorAt(SyntaxError, annAt, "expected annotation name after '@'", "")
			p.skipToLineStart()
			continue
		}
		if p.at(lexer.HASH) {
			p.skipToLineStart()
			continue
		}
		// Anything else cannot live inside a context block.
		break
	}

	span := lexer.NewSpan(atSpan.Start, uint32(len(p.source)))
	if !p.atEnd() {
		span = atSpan.Merge(p.peek().Span)
	}
	p.errorAt(SyntaxError, span, "context block missing '@end'", "close the block with a line containing '@end'")
	return &ContextBlock{
		FullSpan:    span,
		Name:        name,
		Annotations: annotations,
		Terminated:  false,
	}
}

// ============================================================================
// Cursor helpers
// ============================================================================

func (p *parser) peek() lexer.Token {
	if p.pos >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos]
}

func (p *parser) peekAt(n int, typ lexer.TokenType) bool {
	i := p.pos + n
	return i < len(p.tokens) && p.tokens[i].Type == typ
}

func (p *parser) peekTextAt(n int) string {
	i := p.pos + n
	if i >= len(p.tokens) {
		return ""
	}
	return p.tokens[i].Text(p.source)
}

func (p *parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

func (p *parser) at(typ lexer.TokenType) bool {
	return p.peek().Type == typ
}

func (p *parser) atEnd() bool {
	return p.peek().Type == lexer.EOF
}

func (p *parser) atLineEnd() bool {
	t := p.peek().Type
	return t == lexer.NEWLINE || t == lexer.EOF
}

func (p *parser) offset() int {
	return int(p.peek().Span.Start)
}

func (p *parser) prevEnd() uint32 {
	if p.pos == 0 {
		return 0
	}
	return p.tokens[p.pos-1].Span.End
}

func (p *parser) skipWhitespace() {
	for p.at(lexer.WHITESPACE) {
		p.advance()
	}
}

// skipTrivia skips intra-line whitespace plus stray structural tokens in
// regions parsed as raw text (lua and context blocks).
func (p *parser) skipTrivia() {
	for p.at(lexer.WHITESPACE) || p.at(lexer.INDENT) || p.at(lexer.DEDENT) {
		p.advance()
	}
}

func (p *parser) skipBlank() {
	for p.at(lexer.WHITESPACE) || p.at(lexer.NEWLINE) {
		p.advance()
	}
}

// skipToLineStart consumes through the next newline.
func (p *parser) skipToLineStart() {
	for !p.atLineEnd() {
		p.advance()
	}
	if p.at(lexer.NEWLINE) {
		p.advance()
	}
}

// restOfLine consumes to the line end and returns the covered text. The
// newline itself is left for the caller.
func (p *parser) restOfLine() (string, lexer.Span) {
	start := p.peek().Span.Start
	end := start
	for !p.atLineEnd() {
		end = p.peek().Span.End
		p.advance()
	}
	span := lexer.NewSpan(start, end)
	return span.Text(p.source), span
}

// recoverToLineStart skips to the next recognizable boundary and returns the
// span of everything skipped.
func (p *parser) recoverToLineStart(from lexer.Span) lexer.Span {
	end := from.End
	for !p.atLineEnd() {
		end = p.peek().Span.End
		p.advance()
	}
	if p.at(lexer.NEWLINE) {
		p.advance()
	}
	return lexer.NewSpan(from.Start, end)
}

// skipIndentedRun consumes an orphaned indented region through its DEDENT.
func (p *parser) skipIndentedRun(from lexer.Span) lexer.Span {
	end := from.End
	for !p.atEnd() {
		if p.at(lexer.DEDENT) {
			p.advance()
			break
		}
		end = p.peek().Span.End
		p.advance()
	}
	return lexer.NewSpan(from.Start, end)
}

func (p *parser) drainOrphans(pending *[]Annotation, msg string) {
	for _, ann := range *pending {
		p.errorAt(SyntaxError, ann.FullSpan, msg, "annotations belong on the lines directly above a task header")
	}
	*pending = nil
}

func (p *parser) errorAt(kind ErrorKind, span lexer.Span, msg, suggestion string) {
	p.errors = append(p.errors, ParseError{
		Kind:       kind,
		ErrSpan:    span,
		Message:    msg,
		Suggestion: suggestion,
	})
}
