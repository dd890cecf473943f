package parser

import "github.com/wseaton/dagrun/lexer"

// SourceFile is the root of the parse tree: every item in source order plus
// the ordered list of parse errors. The tree is an immutable value produced
// by one Parse call; edits produce a new tree.
type SourceFile struct {
	Source []byte
	Items  []Item
	Errors []ParseError
}

// Item is a top-level construct in a dagrunfile.
type Item interface {
	Span() lexer.Span
	item()
}

// Task is a named unit of work: annotations, optional parameters,
// dependencies after the colon, and an optional indented body.
type Task struct {
	FullSpan     lexer.Span
	Annotations  []Annotation
	Name         Ident
	Params       []Parameter
	Dependencies []Dependency
	Body         *TaskBody
}

// Variable is a `name := value` assignment.
type Variable struct {
	FullSpan lexer.Span
	Name     Ident
	Value    VariableValue
}

// SetDirective is a file-scoped `set key := value` option.
type SetDirective struct {
	FullSpan lexer.Span
	Key      Ident
	Value    StaticValue
}

// LuaBlock is an `@lua ... @end` region; Content is the raw text between
// the markers, line breaks included.
type LuaBlock struct {
	FullSpan    lexer.Span
	Content     string
	ContentSpan lexer.Span
	Terminated  bool
}

// ContextBlock is a reusable named annotation bundle:
// `@context name ... @end`.
type ContextBlock struct {
	FullSpan    lexer.Span
	Name        Ident
	Annotations []Annotation
	Terminated  bool
}

// Comment is a top-level `#` line. Doc reports a `##` doc comment.
type Comment struct {
	FullSpan lexer.Span
	Text     string
	Doc      bool
}

// ErrorNode marks a span the parser could not interpret. Consumers must
// treat anything it covers as unknown.
type ErrorNode struct {
	FullSpan lexer.Span
	Message  string
}

func (t *Task) Span() lexer.Span         { return t.FullSpan }
func (v *Variable) Span() lexer.Span     { return v.FullSpan }
func (s *SetDirective) Span() lexer.Span { return s.FullSpan }
func (l *LuaBlock) Span() lexer.Span     { return l.FullSpan }
func (c *ContextBlock) Span() lexer.Span { return c.FullSpan }
func (c *Comment) Span() lexer.Span      { return c.FullSpan }
func (e *ErrorNode) Span() lexer.Span    { return e.FullSpan }

func (*Task) item()         {}
func (*Variable) item()     {}
func (*SetDirective) item() {}
func (*LuaBlock) item()     {}
func (*ContextBlock) item() {}
func (*Comment) item()      {}
func (*ErrorNode) item()    {}

// Ident is an identifier with its source span.
type Ident struct {
	Name     string
	NameSpan lexer.Span
}

// VariableValue is either a static string or a backtick shell expansion.
// The backtick form is matched before the static catch-all.
type VariableValue interface {
	Span() lexer.Span
	variableValue()
}

// StaticValue is a literal single-line value.
type StaticValue struct {
	Value     string
	ValueSpan lexer.Span
}

// ShellExpansion is a `` `command` `` value whose command text is resolved
// by running a shell at execution time. Terminated is false when the
// closing backtick is missing.
type ShellExpansion struct {
	FullSpan    lexer.Span
	Command     string
	CommandSpan lexer.Span
	Terminated  bool
}

func (s StaticValue) Span() lexer.Span     { return s.ValueSpan }
func (s *ShellExpansion) Span() lexer.Span { return s.FullSpan }

func (StaticValue) variableValue()     {}
func (*ShellExpansion) variableValue() {}

// Parameter is a task parameter, optionally with a default.
type Parameter struct {
	FullSpan lexer.Span
	Name     Ident
	Default  ParamDefault // nil when the parameter is required
}

// ParamDefault is a parameter default value. Matchers run in fixed order:
// quoted string, then {{variable}}, then bare value.
type ParamDefault interface {
	Span() lexer.Span
	paramDefault()
}

// QuotedDefault is a double-quoted default. No escape processing is done;
// the literal content between the quotes is kept as-is.
type QuotedDefault struct {
	FullSpan lexer.Span
	Value    string
}

// VariableRefDefault is a `{{name}}` default referring to a file variable.
type VariableRefDefault struct {
	FullSpan lexer.Span
	Name     Ident
}

// BareDefault is an unquoted default token (no whitespace, quotes, colon).
type BareDefault struct {
	FullSpan lexer.Span
	Value    string
}

func (q QuotedDefault) Span() lexer.Span      { return q.FullSpan }
func (v VariableRefDefault) Span() lexer.Span { return v.FullSpan }
func (b BareDefault) Span() lexer.Span        { return b.FullSpan }

func (QuotedDefault) paramDefault()      {}
func (VariableRefDefault) paramDefault() {}
func (BareDefault) paramDefault()        {}

// Dependency is a task or managed-service dependency. The service form is
// written `service:<name>`; its meaning is owned by the execution engine.
type Dependency struct {
	FullSpan lexer.Span
	Name     string
	Service  bool
}

// AnnotationKind enumerates the known annotation keywords. Any other
// identifier is accepted as AnnotationUnknown so future annotations need no
// grammar change.
type AnnotationKind int

const (
	AnnotationUnknown AnnotationKind = iota
	AnnotationTimeout
	AnnotationRetry
	AnnotationJoin
	AnnotationPipeFrom
	AnnotationSSH
	AnnotationUpload
	AnnotationDownload
	AnnotationService
	AnnotationExtern
	AnnotationK8s
	AnnotationK8sConfigmap
	AnnotationK8sSecret
	AnnotationK8sUpload
	AnnotationK8sDownload
	AnnotationK8sForward
	AnnotationUse
)

// knownAnnotations maps keyword text to its kind.
var knownAnnotations = map[string]AnnotationKind{
	"timeout":       AnnotationTimeout,
	"retry":         AnnotationRetry,
	"join":          AnnotationJoin,
	"pipe_from":     AnnotationPipeFrom,
	"ssh":           AnnotationSSH,
	"upload":        AnnotationUpload,
	"download":      AnnotationDownload,
	"service":       AnnotationService,
	"extern":        AnnotationExtern,
	"k8s":           AnnotationK8s,
	"k8s-configmap": AnnotationK8sConfigmap,
	"k8s-secret":    AnnotationK8sSecret,
	"k8s-upload":    AnnotationK8sUpload,
	"k8s-download":  AnnotationK8sDownload,
	"k8s-forward":   AnnotationK8sForward,
	"use":           AnnotationUse,
}

// AnnotationKeywords returns the known keywords, for completion and
// suggestion candidates.
func AnnotationKeywords() []string {
	out := make([]string, 0, len(knownAnnotations))
	for kw := range knownAnnotations {
		out = append(out, kw)
	}
	return out
}

// LookupAnnotation classifies an annotation name.
func LookupAnnotation(name string) AnnotationKind {
	if kind, ok := knownAnnotations[name]; ok {
		return kind
	}
	return AnnotationUnknown
}

func (k AnnotationKind) String() string {
	for name, kind := range knownAnnotations {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// Annotation is an `@name args` directive. Execution semantics belong to
// the engine; here both name and args are syntax only.
type Annotation struct {
	FullSpan lexer.Span
	Kind     AnnotationKind
	Name     Ident
	Args     []AnnArg
}

// AnnArg is one annotation argument. Matchers run in fixed order:
// key=value, then local:remote file transfer, then plain token.
type AnnArg interface {
	Span() lexer.Span
	annArg()
}

// KeyValueArg is `key=value`; the value may be a quoted string.
type KeyValueArg struct {
	FullSpan lexer.Span
	Key      Ident
	Value    string
}

// FileTransferArg is a single `local-path:remote-path` token. It is matched
// as one token so it is never misread as two plain args split on the colon.
// Only the first colon splits: in a multi-colon token such as a
// `8080:svc/app:80` port forward, Remote carries the residue
// (`svc/app:80`) and Raw the whole token; consumers that need more
// structure split Raw themselves.
type FileTransferArg struct {
	FullSpan lexer.Span
	Raw      string
	Local    string
	Remote   string
}

// PlainArg is the lowest-priority catch-all for bare tokens like `2m`.
type PlainArg struct {
	FullSpan lexer.Span
	Value    string
}

func (k KeyValueArg) Span() lexer.Span     { return k.FullSpan }
func (f FileTransferArg) Span() lexer.Span { return f.FullSpan }
func (p PlainArg) Span() lexer.Span        { return p.FullSpan }

func (KeyValueArg) annArg()     {}
func (FileTransferArg) annArg() {}
func (PlainArg) annArg()        {}

// TaskBody is the indented line list between INDENT and the matching
// DEDENT. Bodies are flat; nothing inside is re-lexed for indentation.
type TaskBody struct {
	FullSpan lexer.Span
	Lines    []BodyLine
}

// BodyLine is one line of a task body.
type BodyLine interface {
	Span() lexer.Span
	bodyLine()
}

// Shebang is a body line starting with the exact `#!` marker. Interpreter
// is the path token only; Args is everything after it.
type Shebang struct {
	FullSpan    lexer.Span
	Interpreter string
	Args        string
}

// CommandLine is an ordinary body line split into raw text and
// interpolation segments.
type CommandLine struct {
	FullSpan lexer.Span
	Segments []Segment
}

func (s *Shebang) Span() lexer.Span     { return s.FullSpan }
func (c *CommandLine) Span() lexer.Span { return c.FullSpan }

func (*Shebang) bodyLine()     {}
func (*CommandLine) bodyLine() {}

// Segment is a piece of a command line.
type Segment interface {
	Span() lexer.Span
	segment()
}

// RawText is literal command text. Runs stop before `{{` and before `#!`;
// a lone `{` is still literal text.
type RawText struct {
	FullSpan lexer.Span
	Text     string
}

// Interpolation is a `{{name}}` reference. Terminated is false when the
// closing braces are missing.
type Interpolation struct {
	FullSpan   lexer.Span
	Name       Ident
	Terminated bool
}

func (r RawText) Span() lexer.Span        { return r.FullSpan }
func (i *Interpolation) Span() lexer.Span { return i.FullSpan }

func (RawText) segment()        {}
func (*Interpolation) segment() {}

// Tasks returns the file's tasks in source order.
func (f *SourceFile) Tasks() []*Task {
	var out []*Task
	for _, item := range f.Items {
		if t, ok := item.(*Task); ok {
			out = append(out, t)
		}
	}
	return out
}

// Variables returns the file's variable declarations in source order.
func (f *SourceFile) Variables() []*Variable {
	var out []*Variable
	for _, item := range f.Items {
		if v, ok := item.(*Variable); ok {
			out = append(out, v)
		}
	}
	return out
}

// Task looks a task up by name. Dependency resolution is by name, never by
// position.
func (f *SourceFile) Task(name string) *Task {
	for _, item := range f.Items {
		if t, ok := item.(*Task); ok && t.Name.Name == name {
			return t
		}
	}
	return nil
}
