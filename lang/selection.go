package lang

import (
	"github.com/wseaton/dagrun/lexer"
	"github.com/wseaton/dagrun/parser"
)

// SelectionKind names the textual unit a selection span covers.
type SelectionKind string

const (
	SelectTask      SelectionKind = "task"
	SelectTaskBody  SelectionKind = "task body"
	SelectBlock     SelectionKind = "block"
	SelectParameter SelectionKind = "parameter"
	SelectComment   SelectionKind = "comment"
)

// Selection is a selectable region.
type Selection struct {
	Kind  SelectionKind
	SSpan lexer.Span
}

// SelectionsAt returns the selectable spans enclosing a byte offset,
// innermost first, so repeated expand-selection steps walk outward.
func SelectionsAt(tree *parser.SourceFile, offset uint32) []Selection {
	var out []Selection

	for _, item := range tree.Items {
		if !item.Span().Contains(offset) {
			continue
		}
		switch it := item.(type) {
		case *parser.Comment:
			out = append(out, Selection{SelectComment, it.FullSpan})

		case *parser.LuaBlock:
			out = append(out, Selection{SelectBlock, it.FullSpan})

		case *parser.ContextBlock:
			out = append(out, Selection{SelectBlock, it.FullSpan})

		case *parser.Task:
			for _, param := range it.Params {
				if param.FullSpan.Contains(offset) {
					out = append(out, Selection{SelectParameter, param.FullSpan})
				}
			}
			if it.Body != nil && it.Body.FullSpan.Contains(offset) {
				out = append(out, Selection{SelectTaskBody, it.Body.FullSpan})
			}
			out = append(out, Selection{SelectTask, it.FullSpan})
		}
	}
	return out
}
