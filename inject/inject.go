// Package inject decides which secondary language interprets an already
// parsed region of a dagrunfile: task bodies, lua blocks, and backtick
// shell expansions. Consumers use the tag for nested highlighting and
// analysis; nothing here validates that an interpreter exists.
package inject

import (
	"strings"

	"github.com/wseaton/dagrun/parser"
)

// Language is a secondary-language tag.
type Language string

const (
	Bash       Language = "bash"
	Python     Language = "python"
	Ruby       Language = "ruby"
	JavaScript Language = "javascript"
	Perl       Language = "perl"
	Lua        Language = "lua"
)

// BodyKind classifies the region being resolved.
type BodyKind int

const (
	// CommandBody is an ordinary task body of shell-like command lines.
	CommandBody BodyKind = iota
	// LuaSource is the content of an @lua block.
	LuaSource
	// ShellExpansionSource is the content between backticks in a variable
	// value.
	ShellExpansionSource
)

// interpreterTable maps interpreter-path substrings to languages, in
// priority order; the first match wins.
var interpreterTable = []struct {
	substr string
	lang   Language
}{
	{"python", Python},
	{"ruby", Ruby},
	{"node", JavaScript},
	{"perl", Perl},
}

// Resolve maps a body region to its language. It is total: absence of a
// match is the shell default, never an error.
//
// The interpreter argument is the shebang's interpreter path token only,
// empty when the body has no shebang. Trailing shebang arguments are not
// consulted, so `#!/usr/bin/env python3` resolves to the shell default
// (the interpreter token is just /usr/bin/env). Matching is case
// sensitive.
func Resolve(kind BodyKind, interpreter string) Language {
	switch kind {
	case LuaSource:
		return Lua
	case ShellExpansionSource:
		return Bash
	}

	for _, entry := range interpreterTable {
		if strings.Contains(interpreter, entry.substr) {
			return entry.lang
		}
	}
	return Bash
}

// ForBody resolves the language of a task body from its first line.
func ForBody(body *parser.TaskBody) Language {
	if body == nil || len(body.Lines) == 0 {
		return Bash
	}
	if sb, ok := body.Lines[0].(*parser.Shebang); ok {
		return Resolve(CommandBody, sb.Interpreter)
	}
	return Resolve(CommandBody, "")
}

// ForItem resolves the language of any item that embeds a secondary
// grammar, reporting ok=false for items that embed none.
func ForItem(item parser.Item) (Language, bool) {
	switch it := item.(type) {
	case *parser.LuaBlock:
		return Resolve(LuaSource, ""), true
	case *parser.Task:
		if it.Body == nil {
			return Bash, false
		}
		return ForBody(it.Body), true
	case *parser.Variable:
		if _, ok := it.Value.(*parser.ShellExpansion); ok {
			return Resolve(ShellExpansionSource, ""), true
		}
	}
	return Bash, false
}
