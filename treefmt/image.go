package treefmt

import (
	"github.com/wseaton/dagrun/lexer"
	"github.com/wseaton/dagrun/parser"
)

// The image types flatten the tree's interface-valued fields into tagged
// records CBOR can round-trip. Tags are small integers so the canonical
// encoding stays compact and stable; renumbering is a format break.

const (
	itemTask uint8 = iota + 1
	itemVariable
	itemSet
	itemLua
	itemContext
	itemComment
	itemError
)

const (
	valueStatic uint8 = iota + 1
	valueShell
)

const (
	defaultQuoted uint8 = iota + 1
	defaultVarRef
	defaultBare
)

const (
	argKeyValue uint8 = iota + 1
	argFileTransfer
	argPlain
)

const (
	lineShebang uint8 = iota + 1
	lineCommand
)

const (
	segText uint8 = iota + 1
	segInterp
)

type fileImage struct {
	Source []byte       `cbor:"1,keyasint"`
	Items  []itemImage  `cbor:"2,keyasint,omitempty"`
	Errors []errorImage `cbor:"3,keyasint,omitempty"`
}

type identImage struct {
	Name string     `cbor:"1,keyasint"`
	Span lexer.Span `cbor:"2,keyasint"`
}

type itemImage struct {
	Kind uint8      `cbor:"1,keyasint"`
	Span lexer.Span `cbor:"2,keyasint"`
	Name identImage `cbor:"3,keyasint,omitempty"`

	Annotations []annotationImage `cbor:"4,keyasint,omitempty"`
	Params      []paramImage      `cbor:"5,keyasint,omitempty"`
	Deps        []depImage        `cbor:"6,keyasint,omitempty"`
	Body        *bodyImage        `cbor:"7,keyasint,omitempty"`

	Value *valueImage `cbor:"8,keyasint,omitempty"`

	Content     string     `cbor:"9,keyasint,omitempty"`
	ContentSpan lexer.Span `cbor:"10,keyasint,omitempty"`
	Terminated  bool       `cbor:"11,keyasint,omitempty"`

	Text string `cbor:"12,keyasint,omitempty"`
	Doc  bool   `cbor:"13,keyasint,omitempty"`

	Message string `cbor:"14,keyasint,omitempty"`
}

type valueImage struct {
	Kind        uint8      `cbor:"1,keyasint"`
	Value       string     `cbor:"2,keyasint,omitempty"`
	Span        lexer.Span `cbor:"3,keyasint"`
	Command     string     `cbor:"4,keyasint,omitempty"`
	CommandSpan lexer.Span `cbor:"5,keyasint,omitempty"`
	Terminated  bool       `cbor:"6,keyasint,omitempty"`
}

type annotationImage struct {
	Span lexer.Span `cbor:"1,keyasint"`
	Name identImage `cbor:"2,keyasint"`
	Args []argImage `cbor:"3,keyasint,omitempty"`
}

type argImage struct {
	Kind   uint8      `cbor:"1,keyasint"`
	Span   lexer.Span `cbor:"2,keyasint"`
	Key    identImage `cbor:"3,keyasint,omitempty"`
	Value  string     `cbor:"4,keyasint,omitempty"`
	Raw    string     `cbor:"5,keyasint,omitempty"`
	Local  string     `cbor:"6,keyasint,omitempty"`
	Remote string     `cbor:"7,keyasint,omitempty"`
}

type paramImage struct {
	Span    lexer.Span    `cbor:"1,keyasint"`
	Name    identImage    `cbor:"2,keyasint"`
	Default *defaultImage `cbor:"3,keyasint,omitempty"`
}

type defaultImage struct {
	Kind  uint8      `cbor:"1,keyasint"`
	Span  lexer.Span `cbor:"2,keyasint"`
	Value string     `cbor:"3,keyasint,omitempty"`
	Name  identImage `cbor:"4,keyasint,omitempty"`
}

type depImage struct {
	Span    lexer.Span `cbor:"1,keyasint"`
	Name    string     `cbor:"2,keyasint"`
	Service bool       `cbor:"3,keyasint,omitempty"`
}

type bodyImage struct {
	Span  lexer.Span  `cbor:"1,keyasint"`
	Lines []lineImage `cbor:"2,keyasint,omitempty"`
}

type lineImage struct {
	Kind        uint8      `cbor:"1,keyasint"`
	Span        lexer.Span `cbor:"2,keyasint"`
	Interpreter string     `cbor:"3,keyasint,omitempty"`
	Args        string     `cbor:"4,keyasint,omitempty"`
	Segments    []segImage `cbor:"5,keyasint,omitempty"`
}

type segImage struct {
	Kind       uint8      `cbor:"1,keyasint"`
	Span       lexer.Span `cbor:"2,keyasint"`
	Text       string     `cbor:"3,keyasint,omitempty"`
	Name       identImage `cbor:"4,keyasint,omitempty"`
	Terminated bool       `cbor:"5,keyasint,omitempty"`
}

type errorImage struct {
	Kind       int        `cbor:"1,keyasint"`
	Span       lexer.Span `cbor:"2,keyasint"`
	Message    string     `cbor:"3,keyasint"`
	Suggestion string     `cbor:"4,keyasint,omitempty"`
}

// ============================================================================
// Tree to image
// ============================================================================

func imageOf(tree *parser.SourceFile) fileImage {
	img := fileImage{Source: tree.Source}
	for _, item := range tree.Items {
		img.Items = append(img.Items, itemImageOf(item))
	}
	for _, e := range tree.Errors {
		img.Errors = append(img.Errors, errorImage{
			Kind:       int(e.Kind),
			Span:       e.ErrSpan,
			Message:    e.Message,
			Suggestion: e.Suggestion,
		})
	}
	return img
}

func identImageOf(id parser.Ident) identImage {
	return identImage{Name: id.Name, Span: id.NameSpan}
}

func itemImageOf(item parser.Item) itemImage {
	switch it := item.(type) {
	case *parser.Task:
		img := itemImage{
			Kind: itemTask,
			Span: it.FullSpan,
			Name: identImageOf(it.Name),
		}
		for _, ann := range it.Annotations {
			img.Annotations = append(img.Annotations, annotationImageOf(ann))
		}
		for _, param := range it.Params {
			img.Params = append(img.Params, paramImageOf(param))
		}
		for _, dep := range it.Dependencies {
			img.Deps = append(img.Deps, depImage{Span: dep.FullSpan, Name: dep.Name, Service: dep.Service})
		}
		if it.Body != nil {
			img.Body = bodyImageOf(it.Body)
		}
		return img

	case *parser.Variable:
		v := valueImageOf(it.Value)
		return itemImage{Kind: itemVariable, Span: it.FullSpan, Name: identImageOf(it.Name), Value: &v}

	case *parser.SetDirective:
		v := valueImage{Kind: valueStatic, Value: it.Value.Value, Span: it.Value.ValueSpan}
		return itemImage{Kind: itemSet, Span: it.FullSpan, Name: identImageOf(it.Key), Value: &v}

	case *parser.LuaBlock:
		return itemImage{
			Kind:        itemLua,
			Span:        it.FullSpan,
			Content:     it.Content,
			ContentSpan: it.ContentSpan,
			Terminated:  it.Terminated,
		}

	case *parser.ContextBlock:
		img := itemImage{
			Kind:       itemContext,
			Span:       it.FullSpan,
			Name:       identImageOf(it.Name),
			Terminated: it.Terminated,
		}
		for _, ann := range it.Annotations {
			img.Annotations = append(img.Annotations, annotationImageOf(ann))
		}
		return img

	case *parser.Comment:
		return itemImage{Kind: itemComment, Span: it.FullSpan, Text: it.Text, Doc: it.Doc}

	case *parser.ErrorNode:
		return itemImage{Kind: itemError, Span: it.FullSpan, Message: it.Message}
	}
	return itemImage{}
}

func valueImageOf(value parser.VariableValue) valueImage {
	switch v := value.(type) {
	case parser.StaticValue:
		return valueImage{Kind: valueStatic, Value: v.Value, Span: v.ValueSpan}
	case *parser.ShellExpansion:
		return valueImage{
			Kind:        valueShell,
			Span:        v.FullSpan,
			Command:     v.Command,
			CommandSpan: v.CommandSpan,
			Terminated:  v.Terminated,
		}
	}
	return valueImage{}
}

func annotationImageOf(ann parser.Annotation) annotationImage {
	img := annotationImage{Span: ann.FullSpan, Name: identImageOf(ann.Name)}
	for _, arg := range ann.Args {
		switch a := arg.(type) {
		case parser.KeyValueArg:
			img.Args = append(img.Args, argImage{
				Kind: argKeyValue, Span: a.FullSpan,
				Key: identImageOf(a.Key), Value: a.Value,
			})
		case parser.FileTransferArg:
			img.Args = append(img.Args, argImage{
				Kind: argFileTransfer, Span: a.FullSpan,
				Raw: a.Raw, Local: a.Local, Remote: a.Remote,
			})
		case parser.PlainArg:
			img.Args = append(img.Args, argImage{Kind: argPlain, Span: a.FullSpan, Value: a.Value})
		}
	}
	return img
}

func paramImageOf(param parser.Parameter) paramImage {
	img := paramImage{Span: param.FullSpan, Name: identImageOf(param.Name)}
	switch d := param.Default.(type) {
	case parser.QuotedDefault:
		img.Default = &defaultImage{Kind: defaultQuoted, Span: d.FullSpan, Value: d.Value}
	case parser.VariableRefDefault:
		img.Default = &defaultImage{Kind: defaultVarRef, Span: d.FullSpan, Name: identImageOf(d.Name)}
	case parser.BareDefault:
		img.Default = &defaultImage{Kind: defaultBare, Span: d.FullSpan, Value: d.Value}
	}
	return img
}

func bodyImageOf(body *parser.TaskBody) *bodyImage {
	img := &bodyImage{Span: body.FullSpan}
	for _, line := range body.Lines {
		switch l := line.(type) {
		case *parser.Shebang:
			img.Lines = append(img.Lines, lineImage{
				Kind: lineShebang, Span: l.FullSpan,
				Interpreter: l.Interpreter, Args: l.Args,
			})
		case *parser.CommandLine:
			li := lineImage{Kind: lineCommand, Span: l.FullSpan}
			for _, seg := range l.Segments {
				switch s := seg.(type) {
				case parser.RawText:
					li.Segments = append(li.Segments, segImage{Kind: segText, Span: s.FullSpan, Text: s.Text})
				case *parser.Interpolation:
					li.Segments = append(li.Segments, segImage{
						Kind: segInterp, Span: s.FullSpan,
						Name: identImageOf(s.Name), Terminated: s.Terminated,
					})
				}
			}
			img.Lines = append(img.Lines, li)
		}
	}
	return img
}

// ============================================================================
// Image to tree
// ============================================================================

func (img fileImage) tree() *parser.SourceFile {
	tree := &parser.SourceFile{Source: img.Source}
	for _, item := range img.Items {
		tree.Items = append(tree.Items, item.node())
	}
	for _, e := range img.Errors {
		tree.Errors = append(tree.Errors, parser.ParseError{
			Kind:       parser.ErrorKind(e.Kind),
			ErrSpan:    e.Span,
			Message:    e.Message,
			Suggestion: e.Suggestion,
		})
	}
	return tree
}

func (img identImage) ident() parser.Ident {
	return parser.Ident{Name: img.Name, NameSpan: img.Span}
}

func (img itemImage) node() parser.Item {
	switch img.Kind {
	case itemTask:
		task := &parser.Task{FullSpan: img.Span, Name: img.Name.ident()}
		for _, ann := range img.Annotations {
			task.Annotations = append(task.Annotations, ann.node())
		}
		for _, param := range img.Params {
			task.Params = append(task.Params, param.node())
		}
		for _, dep := range img.Deps {
			task.Dependencies = append(task.Dependencies, parser.Dependency{
				FullSpan: dep.Span, Name: dep.Name, Service: dep.Service,
			})
		}
		if img.Body != nil {
			task.Body = img.Body.node()
		}
		return task

	case itemVariable:
		return &parser.Variable{FullSpan: img.Span, Name: img.Name.ident(), Value: img.Value.node()}

	case itemSet:
		return &parser.SetDirective{
			FullSpan: img.Span,
			Key:      img.Name.ident(),
			Value:    parser.StaticValue{Value: img.Value.Value, ValueSpan: img.Value.Span},
		}

	case itemLua:
		return &parser.LuaBlock{
			FullSpan:    img.Span,
			Content:     img.Content,
			ContentSpan: img.ContentSpan,
			Terminated:  img.Terminated,
		}

	case itemContext:
		ctx := &parser.ContextBlock{FullSpan: img.Span, Name: img.Name.ident(), Terminated: img.Terminated}
		for _, ann := range img.Annotations {
			ctx.Annotations = append(ctx.Annotations, ann.node())
		}
		return ctx

	case itemComment:
		return &parser.Comment{FullSpan: img.Span, Text: img.Text, Doc: img.Doc}

	default:
		return &parser.ErrorNode{FullSpan: img.Span, Message: img.Message}
	}
}

func (img *valueImage) node() parser.VariableValue {
	if img == nil {
		return parser.StaticValue{}
	}
	if img.Kind == valueShell {
		return &parser.ShellExpansion{
			FullSpan:    img.Span,
			Command:     img.Command,
			CommandSpan: img.CommandSpan,
			Terminated:  img.Terminated,
		}
	}
	return parser.StaticValue{Value: img.Value, ValueSpan: img.Span}
}

func (img annotationImage) node() parser.Annotation {
	ann := parser.Annotation{
		FullSpan: img.Span,
		Kind:     parser.LookupAnnotation(img.Name.Name),
		Name:     img.Name.ident(),
	}
	for _, arg := range img.Args {
		switch arg.Kind {
		case argKeyValue:
			ann.Args = append(ann.Args, parser.KeyValueArg{
				FullSpan: arg.Span, Key: arg.Key.ident(), Value: arg.Value,
			})
		case argFileTransfer:
			ann.Args = append(ann.Args, parser.FileTransferArg{
				FullSpan: arg.Span, Raw: arg.Raw, Local: arg.Local, Remote: arg.Remote,
			})
		default:
			ann.Args = append(ann.Args, parser.PlainArg{FullSpan: arg.Span, Value: arg.Value})
		}
	}
	return ann
}

func (img paramImage) node() parser.Parameter {
	param := parser.Parameter{FullSpan: img.Span, Name: img.Name.ident()}
	if img.Default != nil {
		switch img.Default.Kind {
		case defaultQuoted:
			param.Default = parser.QuotedDefault{FullSpan: img.Default.Span, Value: img.Default.Value}
		case defaultVarRef:
			param.Default = parser.VariableRefDefault{FullSpan: img.Default.Span, Name: img.Default.Name.ident()}
		default:
			param.Default = parser.BareDefault{FullSpan: img.Default.Span, Value: img.Default.Value}
		}
	}
	return param
}

func (img *bodyImage) node() *parser.TaskBody {
	body := &parser.TaskBody{FullSpan: img.Span}
	for _, line := range img.Lines {
		if line.Kind == lineShebang {
			body.Lines = append(body.Lines, &parser.Shebang{
				FullSpan:    line.Span,
				Interpreter: line.Interpreter,
				Args:        line.Args,
			})
			continue
		}
		cmd := &parser.CommandLine{FullSpan: line.Span}
		for _, seg := range line.Segments {
			if seg.Kind == segInterp {
				cmd.Segments = append(cmd.Segments, &parser.Interpolation{
					FullSpan:   seg.Span,
					Name:       seg.Name.ident(),
					Terminated: seg.Terminated,
				})
				continue
			}
			cmd.Segments = append(cmd.Segments, parser.RawText{FullSpan: seg.Span, Text: seg.Text})
		}
		body.Lines = append(body.Lines, cmd)
	}
	return body
}
