// Package cli implements the fenn command: script execution, the
// REPL, and bundle building.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"

	"github.com/funvibe/fenn/internal/config"
	"github.com/funvibe/fenn/internal/lexer"
	"github.com/funvibe/fenn/internal/parser"
	"github.com/funvibe/fenn/internal/vm"
)

const usage = `Usage:
  fenn                      start the REPL
  fenn <script.fenn>        run a script
  fenn <program.fnb>        run a compiled bundle
  fenn build <script.fenn> [-o out.fnb]
                            compile a script to a bundle`

// Run dispatches the command line and returns the process exit code.
func Run(args []string) int {
	switch {
	case len(args) == 0:
		return runREPL()
	case args[0] == "build":
		return runBuild(args[1:])
	case len(args) == 1:
		return runPath(args[0])
	default:
		fmt.Fprintln(os.Stderr, usage)
		return config.ExitUsage
	}
}

// configureLogging maps the runtime config onto commonlog verbosity.
func configureLogging(cfg config.Runtime) {
	verbosity := 0
	if cfg.GC.Log {
		verbosity = 1
	}
	if cfg.Trace.Exec {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)
}

// compileSource runs the full frontend: lex, parse, compile.
func compileSource(source string, alloc *vm.Allocator) (*vm.FunctionObject, error) {
	p := parser.New(lexer.New(source))
	program, err := p.Parse()
	if err != nil {
		return nil, err
	}

	return vm.NewCompiler(alloc).Compile(program)
}

func runPath(path string) int {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fenn: bad config: %s\n", err)
		return config.ExitUsage
	}
	configureLogging(cfg)

	alloc := vm.NewAllocator(cfg.GC)

	var fn *vm.FunctionObject
	if strings.HasSuffix(path, config.BundleFileExt) {
		fn, err = vm.ReadBundleFile(path, alloc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fenn: %s\n", err)
			return config.ExitCompileError
		}
	} else {
		source, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fenn: %s\n", err)
			return config.ExitUsage
		}

		fn, err = compileSource(string(source), alloc)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return config.ExitCompileError
		}
	}

	if cfg.Trace.Disasm {
		var dump func(f *vm.FunctionObject, name string)
		dump = func(f *vm.FunctionObject, name string) {
			fmt.Fprint(os.Stderr, vm.Disassemble(f.Chunk, name))
			for _, c := range f.Chunk.Constants {
				if sub, ok := c.Obj.(*vm.FunctionObject); ok {
					dump(sub, sub.Name)
				}
			}
		}
		dump(fn, "script")
	}

	machine := vm.New(alloc, cfg)
	if err := machine.Interpret(fn); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return config.ExitRuntimeError
	}

	return config.ExitOK
}

func runBuild(args []string) int {
	var src, out string
	for i := 0; i < len(args); i++ {
		if args[i] == "-o" && i+1 < len(args) {
			out = args[i+1]
			i++
			continue
		}
		if src != "" {
			fmt.Fprintln(os.Stderr, usage)
			return config.ExitUsage
		}
		src = args[i]
	}
	if src == "" {
		fmt.Fprintln(os.Stderr, usage)
		return config.ExitUsage
	}
	if out == "" {
		out = config.TrimSourceExt(src) + config.BundleFileExt
	}

	cfg, err := config.Load(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fenn: bad config: %s\n", err)
		return config.ExitUsage
	}
	configureLogging(cfg)

	source, err := os.ReadFile(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fenn: %s\n", err)
		return config.ExitUsage
	}

	alloc := vm.NewAllocator(cfg.GC)
	fn, err := compileSource(string(source), alloc)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return config.ExitCompileError
	}

	if err := vm.WriteBundleFile(out, fn); err != nil {
		fmt.Fprintf(os.Stderr, "fenn: %s\n", err)
		return config.ExitUsage
	}

	return config.ExitOK
}

// runREPL reads one statement per line until EOF. Globals persist
// across lines; errors are reported and the loop continues.
func runREPL() int {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "fenn: bad config: %s\n", err)
		return config.ExitUsage
	}
	configureLogging(cfg)

	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())

	alloc := vm.NewAllocator(cfg.GC)
	machine := vm.New(alloc, cfg)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			fmt.Print(">> ")
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		fn, err := compileSource(line, alloc)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}

		if err := machine.Interpret(fn); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}

	return config.ExitOK
}
