// Command dagrun-parser parses dagrunfiles and reports diagnostics. It is
// the syntax front door for editor integrations and CI checks: parse a
// file, print its problems, exit nonzero when any were found.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/wseaton/dagrun/lexer"
	"github.com/wseaton/dagrun/parser"
	"github.com/wseaton/dagrun/treefmt"
)

const (
	ExitSuccess          = 0
	ExitInvalidArguments = 1
	ExitIOError          = 2
	ExitParseError       = 3
)

const defaultFile = "dagrunfile"

func main() {
	var (
		format string
		watch  bool
	)

	rootCmd := &cobra.Command{
		Use:   "dagrun-parser [file]",
		Short: "Parse a dagrunfile and report diagnostics",
		Long: `Parse a dagrunfile and report diagnostics.

Reads the given file ("-" for stdin; piped input is auto-detected when no
file is named) and prints one line per problem. The exit code is 3 when the
file has parse errors, so CI can gate on it directly.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := defaultFile
			if len(args) == 1 {
				file = args[0]
			}
			if watch {
				if file == "-" {
					fmt.Fprintln(os.Stderr, "Error: --watch needs a file path, not stdin")
					os.Exit(ExitInvalidArguments)
				}
				return watchFile(file, format)
			}
			return checkOnce(file, format)
		},
	}

	rootCmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or cbor")
	rootCmd.Flags().BoolVar(&watch, "watch", false, "Re-parse and report on every change to the file")
	rootCmd.AddCommand(listCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitInvalidArguments)
	}
}

func checkOnce(file, format string) error {
	source, err := readInput(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitIOError)
	}

	tree := parser.Parse(source)
	if err := report(os.Stdout, file, tree, format); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitIOError)
	}
	if len(tree.Errors) > 0 {
		os.Exit(ExitParseError)
	}
	return nil
}

// watchFile re-parses on every write to the file until interrupted. Editors
// often replace files via rename, so the parent directory is watched and
// events are filtered by name.
func watchFile(file, format string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(file)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target, err := filepath.Abs(file)
	if err != nil {
		return err
	}

	reportOnce := func() {
		source, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		tree := parser.Parse(source)
		if err := report(os.Stdout, file, tree, format); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	reportOnce()
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil || name != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				reportOnce()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
		}
	}
}

// diagnosticsJSON is the machine-readable report shape.
type diagnosticsJSON struct {
	File   string     `json:"file"`
	Tasks  int        `json:"tasks"`
	Errors []diagJSON `json:"errors"`
}

type diagJSON struct {
	Kind    string `json:"kind"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Start   uint32 `json:"start"`
	End     uint32 `json:"end"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

func report(w io.Writer, file string, tree *parser.SourceFile, format string) error {
	switch format {
	case "text":
		if len(tree.Errors) == 0 {
			fmt.Fprintf(w, "%s: ok (%d tasks)\n", file, len(tree.Tasks()))
			return nil
		}
		for _, e := range tree.Errors {
			fmt.Fprintf(w, "%s:%s\n", file, e.Format(tree.Source))
		}
		return nil

	case "json":
		out := diagnosticsJSON{File: file, Tasks: len(tree.Tasks())}
		for _, e := range tree.Errors {
			pos := lexer.PositionFor(tree.Source, e.ErrSpan.Start)
			out.Errors = append(out.Errors, diagJSON{
				Kind:    e.Kind.String(),
				Line:    pos.Line,
				Column:  pos.Column,
				Start:   e.ErrSpan.Start,
				End:     e.ErrSpan.End,
				Message: e.Message,
				Hint:    e.Suggestion,
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)

	case "cbor":
		_, err := treefmt.Write(w, tree)
		return err

	default:
		return fmt.Errorf("unknown format %q (want text, json or cbor)", format)
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [file]",
		Short: "List the tasks a dagrunfile defines",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := defaultFile
			if len(args) == 1 {
				file = args[0]
			}
			source, err := readInput(file)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(ExitIOError)
			}

			tree := parser.Parse(source)
			for _, task := range tree.Tasks() {
				line := task.Name.Name
				for _, param := range task.Params {
					line += " " + param.Name.Name
				}
				if len(task.Dependencies) > 0 {
					line += " <-"
					for _, dep := range task.Dependencies {
						if dep.Service {
							line += " service:" + dep.Name
						} else {
							line += " " + dep.Name
						}
					}
				}
				fmt.Println(line)
			}
			if len(tree.Errors) > 0 {
				fmt.Fprintf(os.Stderr, "%d parse errors; task list may be incomplete\n", len(tree.Errors))
				os.Exit(ExitParseError)
			}
			return nil
		},
	}
}

// readInput handles the input modes: explicit stdin with "-", piped input
// auto-detected when no file was named, otherwise a file path.
func readInput(file string) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(os.Stdin)
	}
	if file == defaultFile && hasPipedInput() {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	return data, nil
}

func hasPipedInput() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
