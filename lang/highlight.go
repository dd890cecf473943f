// Package lang is the editor-adapter layer over the parse tree: highlight
// categories, definition/reference symbols, selectable spans, and fuzzy
// completion. It never re-parses; everything is derived from a SourceFile.
package lang

import (
	"sort"

	"github.com/wseaton/dagrun/lexer"
	"github.com/wseaton/dagrun/parser"
)

// Category is a highlight class; the set is fixed so editor themes can map
// it once.
type Category string

const (
	CategoryKeyword     Category = "keyword"     // set, @end
	CategoryOperator    Category = "operator"    // :=, =
	CategoryPunctuation Category = "punctuation" // : , {{ }}
	CategoryString      Category = "string"      // quoted and static values
	CategoryDefinition  Category = "definition"  // task/variable/parameter/context names
	CategoryCall        Category = "call"        // dependency references
	CategoryAttribute   Category = "attribute"   // @annotation names
	CategoryPath        Category = "path"        // file-transfer arguments
	CategoryComment     Category = "comment"
	CategoryEmbedded    Category = "embedded" // lua block and shell expansion content
)

// Highlight is one categorized source span.
type Highlight struct {
	HSpan    lexer.Span
	Category Category
}

// Highlights walks the tree and returns categorized spans ordered by start
// offset. Raw command text is left uncategorized; only structure is marked.
func Highlights(tree *parser.SourceFile) []Highlight {
	var out []Highlight
	add := func(span lexer.Span, cat Category) {
		if span.Len() > 0 {
			out = append(out, Highlight{HSpan: span, Category: cat})
		}
	}

	for _, item := range tree.Items {
		switch it := item.(type) {
		case *parser.Comment:
			add(it.FullSpan, CategoryComment)

		case *parser.SetDirective:
			add(lexer.NewSpan(it.FullSpan.Start, it.FullSpan.Start+3), CategoryKeyword)
			add(it.Key.NameSpan, CategoryDefinition)
			add(it.Value.ValueSpan, CategoryString)

		case *parser.Variable:
			add(it.Name.NameSpan, CategoryDefinition)
			switch v := it.Value.(type) {
			case parser.StaticValue:
				add(v.ValueSpan, CategoryString)
			case *parser.ShellExpansion:
				add(v.CommandSpan, CategoryEmbedded)
			}

		case *parser.LuaBlock:
			add(it.ContentSpan, CategoryEmbedded)

		case *parser.ContextBlock:
			add(it.Name.NameSpan, CategoryDefinition)
			for _, ann := range it.Annotations {
				highlightAnnotation(ann, add)
			}

		case *parser.Task:
			for _, ann := range it.Annotations {
				highlightAnnotation(ann, add)
			}
			add(it.Name.NameSpan, CategoryDefinition)
			for _, param := range it.Params {
				add(param.Name.NameSpan, CategoryDefinition)
				if q, ok := param.Default.(parser.QuotedDefault); ok {
					add(q.FullSpan, CategoryString)
				}
			}
			for _, dep := range it.Dependencies {
				add(dep.FullSpan, CategoryCall)
			}
			if it.Body != nil {
				highlightBody(it.Body, add)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].HSpan.Start < out[j].HSpan.Start
	})
	return out
}

func highlightAnnotation(ann parser.Annotation, add func(lexer.Span, Category)) {
	add(lexer.NewSpan(ann.FullSpan.Start, ann.Name.NameSpan.End), CategoryAttribute)
	for _, arg := range ann.Args {
		switch a := arg.(type) {
		case parser.KeyValueArg:
			add(a.Key.NameSpan, CategoryDefinition)
			add(lexer.NewSpan(a.Key.NameSpan.End, a.FullSpan.End), CategoryString)
		case parser.FileTransferArg:
			add(a.FullSpan, CategoryPath)
		}
	}
}

func highlightBody(body *parser.TaskBody, add func(lexer.Span, Category)) {
	for _, line := range body.Lines {
		switch l := line.(type) {
		case *parser.Shebang:
			add(l.FullSpan, CategoryKeyword)
		case *parser.CommandLine:
			for _, seg := range l.Segments {
				if interp, ok := seg.(*parser.Interpolation); ok {
					add(interp.FullSpan, CategoryPunctuation)
				}
			}
		}
	}
}
