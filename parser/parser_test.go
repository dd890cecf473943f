package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *SourceFile {
	t.Helper()
	tree := ParseString(src)
	require.NotNil(t, tree)
	require.Empty(t, tree.Errors, "unexpected parse errors")
	return tree
}

func commandText(t *testing.T, line BodyLine) string {
	t.Helper()
	cmd, ok := line.(*CommandLine)
	require.True(t, ok, "expected command line, got %T", line)
	var out string
	for _, seg := range cmd.Segments {
		switch s := seg.(type) {
		case RawText:
			out += s.Text
		case *Interpolation:
			out += "{{" + s.Name.Name + "}}"
		}
	}
	return out
}

func TestSimpleTask(t *testing.T) {
	tree := mustParse(t, "build:\n    echo hi\n")
	require.Len(t, tree.Items, 1)

	task := tree.Task("build")
	require.NotNil(t, task)
	assert.Empty(t, task.Annotations)
	assert.Empty(t, task.Params)
	assert.Empty(t, task.Dependencies)

	require.NotNil(t, task.Body)
	require.Len(t, task.Body.Lines, 1)
	assert.Equal(t, "echo hi", commandText(t, task.Body.Lines[0]))
}

func TestShebangBody(t *testing.T) {
	tree := mustParse(t, "run-py:\n    #!/usr/bin/python3\n    print(1)\n")
	task := tree.Task("run-py")
	require.NotNil(t, task)
	require.NotNil(t, task.Body)
	require.Len(t, task.Body.Lines, 2)

	sb, ok := task.Body.Lines[0].(*Shebang)
	require.True(t, ok)
	assert.Equal(t, "/usr/bin/python3", sb.Interpreter)
	assert.Equal(t, "", sb.Args)

	assert.Equal(t, "print(1)", commandText(t, task.Body.Lines[1]))
}

func TestShebangArgs(t *testing.T) {
	tree := mustParse(t, "t:\n    #!/usr/bin/env python3 -u\n    pass\n")
	sb, ok := tree.Task("t").Body.Lines[0].(*Shebang)
	require.True(t, ok)
	assert.Equal(t, "/usr/bin/env", sb.Interpreter)
	assert.Equal(t, "python3 -u", sb.Args)
}

// `#!` is a shebang only at the start of a body line; mid-line it is
// ordinary command text.
func TestShebangPrecedence(t *testing.T) {
	tree := mustParse(t, "t:\n    echo '#!' marker\n")
	line := tree.Task("t").Body.Lines[0]
	_, isShebang := line.(*Shebang)
	assert.False(t, isShebang)
	assert.Equal(t, "echo '#!' marker", commandText(t, line))
}

func TestAnnotatedTaskWithDependency(t *testing.T) {
	tree := mustParse(t, "@timeout 2m\ndeploy: test\n    ./deploy.sh\n")
	require.Len(t, tree.Items, 1)

	task := tree.Task("deploy")
	require.NotNil(t, task)

	require.Len(t, task.Annotations, 1)
	ann := task.Annotations[0]
	assert.Equal(t, AnnotationTimeout, ann.Kind)
	assert.Equal(t, "timeout", ann.Name.Name)
	require.Len(t, ann.Args, 1)
	plain, ok := ann.Args[0].(PlainArg)
	require.True(t, ok)
	assert.Equal(t, "2m", plain.Value)

	require.Len(t, task.Dependencies, 1)
	assert.Equal(t, "test", task.Dependencies[0].Name)
	assert.False(t, task.Dependencies[0].Service)

	require.Len(t, task.Body.Lines, 1)
	assert.Equal(t, "./deploy.sh", commandText(t, task.Body.Lines[0]))
}

// A path-pair argument is one FileTransfer token, never two plain args
// split on the colon.
func TestUploadArgumentIsOneToken(t *testing.T) {
	tree := mustParse(t, "@upload ./local.sh:/tmp/remote.sh\nremote-task:\n    chmod +x /tmp/remote.sh\n")
	task := tree.Task("remote-task")
	require.NotNil(t, task)
	require.Len(t, task.Annotations, 1)

	ann := task.Annotations[0]
	assert.Equal(t, AnnotationUpload, ann.Kind)
	require.Len(t, ann.Args, 1)

	ft, ok := ann.Args[0].(FileTransferArg)
	require.True(t, ok, "expected file transfer, got %T", ann.Args[0])
	assert.Equal(t, "./local.sh:/tmp/remote.sh", ft.Raw)
	assert.Equal(t, "./local.sh", ft.Local)
	assert.Equal(t, "/tmp/remote.sh", ft.Remote)
}

func TestServiceDependency(t *testing.T) {
	tree := mustParse(t, "integration-test: service:api-server\n    pytest tests/\n")
	task := tree.Task("integration-test")
	require.NotNil(t, task)

	require.Len(t, task.Dependencies, 1)
	dep := task.Dependencies[0]
	assert.Equal(t, "api-server", dep.Name)
	assert.True(t, dep.Service)
}

func TestDependencyList(t *testing.T) {
	tree := mustParse(t, "all: build, test, lint\n")
	task := tree.Task("all")
	require.NotNil(t, task)
	assert.Nil(t, task.Body)

	var names []string
	for _, d := range task.Dependencies {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"build", "test", "lint"}, names)
}

func TestServicePrefixMisspelled(t *testing.T) {
	tree := ParseString("t: svc:api\n    run\n")
	require.Len(t, tree.Errors, 1)
	assert.Contains(t, tree.Errors[0].Message, "service")

	// The dependency is still kept so downstream consumers see the name.
	task := tree.Task("t")
	require.NotNil(t, task)
	require.Len(t, task.Dependencies, 1)
	assert.Equal(t, "api", task.Dependencies[0].Name)
	assert.True(t, task.Dependencies[0].Service)
}

func TestVariables(t *testing.T) {
	tree := mustParse(t, "PORT := 8080\nNAME := my-app\n")
	vars := tree.Variables()
	require.Len(t, vars, 2)

	v0, ok := vars[0].Value.(StaticValue)
	require.True(t, ok)
	assert.Equal(t, "PORT", vars[0].Name.Name)
	assert.Equal(t, "8080", v0.Value)

	v1, ok := vars[1].Value.(StaticValue)
	require.True(t, ok)
	assert.Equal(t, "my-app", v1.Value)
}

func TestShellExpansionValue(t *testing.T) {
	tree := mustParse(t, "SHA := `git rev-parse HEAD`\n")
	vars := tree.Variables()
	require.Len(t, vars, 1)

	exp, ok := vars[0].Value.(*ShellExpansion)
	require.True(t, ok, "backtick value must outrank the static catch-all")
	assert.Equal(t, "git rev-parse HEAD", exp.Command)
	assert.True(t, exp.Terminated)
}

func TestUnterminatedShellExpansion(t *testing.T) {
	tree := ParseString("SHA := `git rev-parse\n")
	require.Len(t, tree.Errors, 1)
	assert.Equal(t, SyntaxError, tree.Errors[0].Kind)

	vars := tree.Variables()
	require.Len(t, vars, 1)
	exp, ok := vars[0].Value.(*ShellExpansion)
	require.True(t, ok)
	assert.False(t, exp.Terminated)
	assert.Equal(t, "git rev-parse", exp.Command)
}

func TestSetDirective(t *testing.T) {
	tree := mustParse(t, "set shell := zsh\n")
	require.Len(t, tree.Items, 1)

	set, ok := tree.Items[0].(*SetDirective)
	require.True(t, ok)
	assert.Equal(t, "shell", set.Key.Name)
	assert.Equal(t, "zsh", set.Value.Value)
}

// A task literally named "set" must still parse as a task.
func TestTaskNamedSet(t *testing.T) {
	tree := mustParse(t, "set:\n    stty sane\n")
	task := tree.Task("set")
	require.NotNil(t, task)
	require.NotNil(t, task.Body)
}

func TestParameters(t *testing.T) {
	tree := mustParse(t, "greet name greeting=\"Hello there\" mode={{MODE}} level=3:\n    echo {{greeting}}, {{name}}!\n")
	task := tree.Task("greet")
	require.NotNil(t, task)
	require.Len(t, task.Params, 4)

	assert.Equal(t, "name", task.Params[0].Name.Name)
	assert.Nil(t, task.Params[0].Default)

	q, ok := task.Params[1].Default.(QuotedDefault)
	require.True(t, ok, "quoted default must outrank the bare matcher")
	assert.Equal(t, "Hello there", q.Value)

	ref, ok := task.Params[2].Default.(VariableRefDefault)
	require.True(t, ok)
	assert.Equal(t, "MODE", ref.Name.Name)

	bare, ok := task.Params[3].Default.(BareDefault)
	require.True(t, ok)
	assert.Equal(t, "3", bare.Value)
}

func TestInterpolationSegments(t *testing.T) {
	tree := mustParse(t, "t:\n    echo {{greeting}}, {{name}}!\n")
	cmd, ok := tree.Task("t").Body.Lines[0].(*CommandLine)
	require.True(t, ok)
	require.Len(t, cmd.Segments, 5)

	assert.Equal(t, "echo ", cmd.Segments[0].(RawText).Text)
	assert.Equal(t, "greeting", cmd.Segments[1].(*Interpolation).Name.Name)
	assert.Equal(t, ", ", cmd.Segments[2].(RawText).Text)
	assert.Equal(t, "name", cmd.Segments[3].(*Interpolation).Name.Name)
	assert.Equal(t, "!", cmd.Segments[4].(RawText).Text)
}

// A lone `{` that is not part of `{{` stays literal command text.
func TestLoneBraceIsLiteral(t *testing.T) {
	tree := mustParse(t, "t:\n    awk { print }\n")
	cmd, ok := tree.Task("t").Body.Lines[0].(*CommandLine)
	require.True(t, ok)
	require.Len(t, cmd.Segments, 1)
	assert.Equal(t, "awk { print }", cmd.Segments[0].(RawText).Text)
}

func TestUnterminatedInterpolation(t *testing.T) {
	tree := ParseString("t:\n    echo {{name\n")
	require.Len(t, tree.Errors, 1)
	assert.Equal(t, SyntaxError, tree.Errors[0].Kind)

	cmd, ok := tree.Task("t").Body.Lines[0].(*CommandLine)
	require.True(t, ok)
	interp, ok := cmd.Segments[len(cmd.Segments)-1].(*Interpolation)
	require.True(t, ok)
	assert.False(t, interp.Terminated)
	assert.Equal(t, "name", interp.Name.Name)
}

func TestAnnotationArgumentPriority(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want AnnArg
	}{
		{"key value", "@ssh host=prod.example.com\nt:\n    run\n",
			KeyValueArg{Key: Ident{Name: "host"}, Value: "prod.example.com"}},
		{"key with quoted value", "@ssh opts=\"-o StrictHostKeyChecking=no\"\nt:\n    run\n",
			KeyValueArg{Key: Ident{Name: "opts"}, Value: "-o StrictHostKeyChecking=no"}},
		{"file transfer", "@download /var/log/app.log:./app.log\nt:\n    run\n",
			FileTransferArg{Raw: "/var/log/app.log:./app.log", Local: "/var/log/app.log", Remote: "./app.log"}},
		{"colon with equals is key value", "@k8s img=repo:tag\nt:\n    run\n",
			KeyValueArg{Key: Ident{Name: "img"}, Value: "repo:tag"}},
		{"plain token", "@retry 3\nt:\n    run\n",
			PlainArg{Value: "3"}},
		{"port forward splits on first colon only", "@k8s-forward 8080:svc/app:80\nt:\n    run\n",
			FileTransferArg{Raw: "8080:svc/app:80", Local: "8080", Remote: "svc/app:80"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := mustParse(t, tt.src)
			task := tree.Task("t")
			require.NotNil(t, task)
			require.Len(t, task.Annotations, 1)
			require.Len(t, task.Annotations[0].Args, 1)

			got := task.Annotations[0].Args[0]
			switch want := tt.want.(type) {
			case KeyValueArg:
				kv, ok := got.(KeyValueArg)
				require.True(t, ok, "got %T", got)
				assert.Equal(t, want.Key.Name, kv.Key.Name)
				assert.Equal(t, want.Value, kv.Value)
			case FileTransferArg:
				ft, ok := got.(FileTransferArg)
				require.True(t, ok, "got %T", got)
				assert.Equal(t, want.Raw, ft.Raw)
				assert.Equal(t, want.Local, ft.Local)
				assert.Equal(t, want.Remote, ft.Remote)
			case PlainArg:
				pl, ok := got.(PlainArg)
				require.True(t, ok, "got %T", got)
				assert.Equal(t, want.Value, pl.Value)
			}
		})
	}
}

// Unknown annotation keywords are accepted; the open keyword set needs no
// grammar change for new annotations.
func TestUnknownAnnotationAccepted(t *testing.T) {
	tree := mustParse(t, "@frobnicate fast\nt:\n    run\n")
	task := tree.Task("t")
	require.NotNil(t, task)
	require.Len(t, task.Annotations, 1)
	assert.Equal(t, AnnotationUnknown, task.Annotations[0].Kind)
	assert.Equal(t, "frobnicate", task.Annotations[0].Name.Name)
}

func TestMultipleAnnotations(t *testing.T) {
	tree := mustParse(t, "@timeout 5m\n@retry 3\n@ssh host=prod\ndeploy:\n    ./go.sh\n")
	task := tree.Task("deploy")
	require.NotNil(t, task)
	require.Len(t, task.Annotations, 3)
	assert.Equal(t, AnnotationTimeout, task.Annotations[0].Kind)
	assert.Equal(t, AnnotationRetry, task.Annotations[1].Kind)
	assert.Equal(t, AnnotationSSH, task.Annotations[2].Kind)
}

func TestOrphanedAnnotation(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"at end of file", "@timeout 5m\n"},
		{"before variable", "@timeout 5m\nV := 1\n"},
		{"before set directive", "@timeout 5m\nset shell := sh\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := ParseString(tt.src)
			require.NotEmpty(t, tree.Errors)
			assert.Equal(t, SyntaxError, tree.Errors[0].Kind)
			assert.Contains(t, tree.Errors[0].Message, "annotation")
		})
	}
}

func TestLuaBlock(t *testing.T) {
	tree := mustParse(t, "@lua\nlocal x = 1\nreturn x\n@end\n")
	require.Len(t, tree.Items, 1)

	block, ok := tree.Items[0].(*LuaBlock)
	require.True(t, ok)
	assert.True(t, block.Terminated)
	assert.Equal(t, "local x = 1\nreturn x\n", block.Content)
}

// An unterminated lua block still returns every preceding item plus one
// error spanning the marker through end of input.
func TestUnterminatedLuaBlock(t *testing.T) {
	src := "V := 1\nbuild:\n    make\n@lua\nlocal x = 1\n"
	tree := ParseString(src)

	require.Len(t, tree.Items, 3)
	assert.NotNil(t, tree.Task("build"))
	require.Len(t, tree.Variables(), 1)

	block, ok := tree.Items[2].(*LuaBlock)
	require.True(t, ok)
	assert.False(t, block.Terminated)

	require.Len(t, tree.Errors, 1)
	err := tree.Errors[0]
	assert.Equal(t, SyntaxError, err.Kind)
	assert.Equal(t, uint32(len(src)), err.ErrSpan.End)
	assert.Equal(t, block.FullSpan, err.ErrSpan)
}

func TestContextBlock(t *testing.T) {
	tree := mustParse(t, "@context production\n@ssh host=prod.example.com\n@timeout 10m\n@end\n")
	require.Len(t, tree.Items, 1)

	ctx, ok := tree.Items[0].(*ContextBlock)
	require.True(t, ok)
	assert.True(t, ctx.Terminated)
	assert.Equal(t, "production", ctx.Name.Name)
	require.Len(t, ctx.Annotations, 2)
	assert.Equal(t, AnnotationSSH, ctx.Annotations[0].Kind)
	assert.Equal(t, AnnotationTimeout, ctx.Annotations[1].Kind)
}

func TestUnterminatedContextBlock(t *testing.T) {
	tree := ParseString("@context production\n@ssh host=prod\n")
	require.Len(t, tree.Items, 1)

	ctx, ok := tree.Items[0].(*ContextBlock)
	require.True(t, ok)
	assert.False(t, ctx.Terminated)
	require.Len(t, ctx.Annotations, 1)

	require.Len(t, tree.Errors, 1)
	assert.Contains(t, tree.Errors[0].Message, "@end")
}

func TestComments(t *testing.T) {
	tree := mustParse(t, "# plain note\n## doc comment\n")
	require.Len(t, tree.Items, 2)

	c0, ok := tree.Items[0].(*Comment)
	require.True(t, ok)
	assert.Equal(t, "# plain note", c0.Text)
	assert.False(t, c0.Doc)

	c1, ok := tree.Items[1].(*Comment)
	require.True(t, ok)
	assert.Equal(t, "## doc comment", c1.Text)
	assert.True(t, c1.Doc)
}

// A body exists iff the line after the header is more indented; the body
// ends where indentation returns to the header's level.
func TestIndentationInvariant(t *testing.T) {
	tree := mustParse(t, "a:\nb:\n    cmd1\n    cmd2\nc: a\n")

	require.NotNil(t, tree.Task("a"))
	assert.Nil(t, tree.Task("a").Body)

	b := tree.Task("b")
	require.NotNil(t, b)
	require.NotNil(t, b.Body)
	assert.Len(t, b.Body.Lines, 2)

	c := tree.Task("c")
	require.NotNil(t, c)
	assert.Nil(t, c.Body)
	require.Len(t, c.Dependencies, 1)
}

func TestBodyAtEndOfFileWithoutNewline(t *testing.T) {
	tree := mustParse(t, "t:\n    echo done")
	task := tree.Task("t")
	require.NotNil(t, task)
	require.NotNil(t, task.Body)
	require.Len(t, task.Body.Lines, 1)
	assert.Equal(t, "echo done", commandText(t, task.Body.Lines[0]))
}

// Blank lines are indentation-neutral, so a body separated from its header
// by blank lines still attaches to the task.
func TestBlankLineBeforeBody(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty line", "t:\n\n    cmd\n"},
		{"whitespace-only line", "t:\n  \n    cmd\n"},
		{"several blank lines", "t:\n\n\n    cmd\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := mustParse(t, tt.src)
			task := tree.Task("t")
			require.NotNil(t, task)
			require.NotNil(t, task.Body)
			require.Len(t, task.Body.Lines, 1)
			assert.Equal(t, "cmd", commandText(t, task.Body.Lines[0]))
		})
	}
}

func TestBlankLinesInsideBody(t *testing.T) {
	tree := mustParse(t, "t:\n    first\n\n    second\n")
	task := tree.Task("t")
	require.NotNil(t, task)
	require.Len(t, task.Body.Lines, 2)
	assert.Equal(t, "first", commandText(t, task.Body.Lines[0]))
	assert.Equal(t, "second", commandText(t, task.Body.Lines[1]))
}

func TestIndentWithoutHeader(t *testing.T) {
	tree := ParseString("V := 1\n    stray line\nbuild:\n    make\n")

	require.NotEmpty(t, tree.Errors)
	assert.Equal(t, LexError, tree.Errors[0].Kind)

	// Preceding and following items both survive.
	assert.Len(t, tree.Variables(), 1)
	assert.NotNil(t, tree.Task("build"))

	var errNodes int
	for _, item := range tree.Items {
		if _, ok := item.(*ErrorNode); ok {
			errNodes++
		}
	}
	assert.Equal(t, 1, errNodes)
}

func TestRecoveryKeepsNeighbors(t *testing.T) {
	tree := ParseString("good1:\n    run1\n?!? broken\ngood2:\n    run2\n")

	require.NotEmpty(t, tree.Errors)
	assert.NotNil(t, tree.Task("good1"))
	assert.NotNil(t, tree.Task("good2"))
}

func TestIdempotence(t *testing.T) {
	src := "# header\nVERSION := `git describe`\nset shell := bash\n\n" +
		"@timeout 2m\n@ssh host=prod\ndeploy env=staging: build, service:db\n" +
		"    #!/usr/bin/python3\n    print({{env}})\n" +
		"@lua\nreturn 1\n@end\n"

	first := ParseString(src)
	second := ParseString(src)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("re-parse of unchanged text differs (-first +second):\n%s", diff)
	}
}

func TestErrorSpansAreOrdered(t *testing.T) {
	tree := ParseString("@orphan1 x\nV := 1\n@orphan2 y\nW := 2\n")
	require.Len(t, tree.Errors, 2)
	assert.LessOrEqual(t, tree.Errors[0].ErrSpan.Start, tree.Errors[1].ErrSpan.Start)

	// An annotation abandoned at end of input is only discovered after
	// later errors; the returned list is still in span order.
	tree = ParseString("@orphan x\n?!? broken\n")
	require.Len(t, tree.Errors, 2)
	assert.Equal(t, uint32(0), tree.Errors[0].ErrSpan.Start)
	assert.Contains(t, tree.Errors[0].Message, "annotation")
	assert.Less(t, tree.Errors[0].ErrSpan.Start, tree.Errors[1].ErrSpan.Start)
}

func TestErrorFormatting(t *testing.T) {
	src := []byte("t: svc:api\n")
	tree := Parse(src)
	require.Len(t, tree.Errors, 1)

	msg := tree.Errors[0].Format(src)
	assert.Contains(t, msg, "1:")
	assert.Contains(t, msg, "syntax error")
	assert.Contains(t, msg, "hint:")
}
