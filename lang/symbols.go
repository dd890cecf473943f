package lang

import (
	"github.com/wseaton/dagrun/lexer"
	"github.com/wseaton/dagrun/parser"
)

// SymbolRole distinguishes a name being introduced from a name being used.
type SymbolRole int

const (
	RoleDefinition SymbolRole = iota
	RoleReference
)

// SymbolKind says what namespace a symbol lives in. Task names and variable
// names never collide; dependency resolution only looks at tasks and
// services, interpolation only at variables and parameters.
type SymbolKind int

const (
	SymbolTask SymbolKind = iota
	SymbolVariable
	SymbolParameter
	SymbolContext
	SymbolService
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolTask:
		return "task"
	case SymbolVariable:
		return "variable"
	case SymbolParameter:
		return "parameter"
	case SymbolContext:
		return "context"
	case SymbolService:
		return "service"
	}
	return "unknown"
}

// Symbol is one definition or reference occurrence. Scope is the span the
// occurrence is valid in: the whole file for tasks, variables and contexts,
// the enclosing task for parameters.
type Symbol struct {
	Name  string
	Role  SymbolRole
	Kind  SymbolKind
	SSpan lexer.Span
	Scope lexer.Span
}

// Symbols extracts every definition and reference in source order.
func Symbols(tree *parser.SourceFile) []Symbol {
	fileScope := lexer.NewSpan(0, uint32(len(tree.Source)))
	var out []Symbol

	for _, item := range tree.Items {
		switch it := item.(type) {
		case *parser.Variable:
			out = append(out, Symbol{
				Name: it.Name.Name, Role: RoleDefinition, Kind: SymbolVariable,
				SSpan: it.Name.NameSpan, Scope: fileScope,
			})

		case *parser.ContextBlock:
			if it.Name.Name != "" {
				out = append(out, Symbol{
					Name: it.Name.Name, Role: RoleDefinition, Kind: SymbolContext,
					SSpan: it.Name.NameSpan, Scope: fileScope,
				})
			}

		case *parser.Task:
			out = append(out, taskSymbols(it, fileScope)...)
		}
	}
	return out
}

func taskSymbols(task *parser.Task, fileScope lexer.Span) []Symbol {
	out := []Symbol{{
		Name: task.Name.Name, Role: RoleDefinition, Kind: SymbolTask,
		SSpan: task.Name.NameSpan, Scope: fileScope,
	}}

	for _, param := range task.Params {
		out = append(out, Symbol{
			Name: param.Name.Name, Role: RoleDefinition, Kind: SymbolParameter,
			SSpan: param.Name.NameSpan, Scope: task.FullSpan,
		})
		if ref, ok := param.Default.(parser.VariableRefDefault); ok {
			out = append(out, Symbol{
				Name: ref.Name.Name, Role: RoleReference, Kind: SymbolVariable,
				SSpan: ref.Name.NameSpan, Scope: fileScope,
			})
		}
	}

	for _, dep := range task.Dependencies {
		kind := SymbolTask
		if dep.Service {
			kind = SymbolService
		}
		out = append(out, Symbol{
			Name: dep.Name, Role: RoleReference, Kind: kind,
			SSpan: dep.FullSpan, Scope: fileScope,
		})
	}

	if task.Body != nil {
		for _, line := range task.Body.Lines {
			cmd, ok := line.(*parser.CommandLine)
			if !ok {
				continue
			}
			for _, seg := range cmd.Segments {
				interp, ok := seg.(*parser.Interpolation)
				if !ok || interp.Name.Name == "" {
					continue
				}
				// Interpolated names bind to a parameter of the enclosing
				// task first, then to a file variable; both are emitted as
				// variable references with the task as scope, and the
				// consumer resolves against both namespaces.
				out = append(out, Symbol{
					Name: interp.Name.Name, Role: RoleReference, Kind: SymbolVariable,
					SSpan: interp.Name.NameSpan, Scope: task.FullSpan,
				})
			}
		}
	}
	return out
}

// Definition resolves a reference symbol to its definition, honoring scope.
// ok is false for dangling references.
func Definition(tree *parser.SourceFile, ref Symbol) (Symbol, bool) {
	syms := Symbols(tree)

	// Parameters shadow file variables inside their task.
	if ref.Kind == SymbolVariable {
		for _, s := range syms {
			if s.Role == RoleDefinition && s.Kind == SymbolParameter &&
				s.Name == ref.Name && s.Scope.Contains(ref.SSpan.Start) {
				return s, true
			}
		}
	}
	for _, s := range syms {
		if s.Role == RoleDefinition && s.Kind == ref.Kind && s.Name == ref.Name {
			return s, true
		}
	}
	return Symbol{}, false
}

// References returns every reference to the given definition name and kind.
func References(tree *parser.SourceFile, name string, kind SymbolKind) []Symbol {
	var out []Symbol
	for _, s := range Symbols(tree) {
		if s.Role == RoleReference && s.Name == name &&
			(s.Kind == kind || (kind == SymbolParameter && s.Kind == SymbolVariable)) {
			out = append(out, s)
		}
	}
	return out
}
