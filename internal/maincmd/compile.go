package maincmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/mna/mainer"
	"github.com/mna/txsc/internal/compilectx"
	"github.com/mna/txsc/lang/compiler"
	"github.com/mna/txsc/lang/errs"
	"github.com/mna/txsc/lang/optimizer"
	"github.com/mna/txsc/lang/parser"
	"github.com/mna/txsc/lang/resolver"
	"github.com/mna/txsc/lang/token"
)

func (c *Cmd) Compile(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cctx := compilectx.Default()
	if c.Config != "" {
		loaded, err := compilectx.Load(c.Config)
		if err != nil {
			return printError(stdio, fmt.Errorf("compile: %s", err))
		}
		cctx = loaded
	}
	if c.NoOptimize {
		cctx.Optimize = false
	}
	if c.Target != "" {
		cctx.Target = compilectx.Target(c.Target)
	}
	return CompileFiles(ctx, stdio, cctx, args...)
}

// CompileFiles runs every stage of the pipeline (scan, parse, resolve,
// lower, optimize) over each named file and prints the resulting script in
// the encoding selected by cctx.Target.
func CompileFiles(ctx context.Context, stdio mainer.Stdio, cctx *compilectx.Context, files ...string) error {
	fset := token.NewFileSet()

	for _, name := range files {
		script, warnings, err := Compile(fset, name, cctx, stdio.Stderr)
		if err != nil {
			return printError(stdio, err)
		}
		for _, w := range warnings {
			fmt.Fprintln(stdio.Stderr, w)
		}

		switch cctx.Target {
		case compilectx.TargetHex:
			fmt.Fprintln(stdio.Stdout, hex.EncodeToString(compiler.Encode(script)))
		default:
			fmt.Fprint(stdio.Stdout, compiler.Format(script))
		}
	}
	return nil
}

// Compile runs the full scan-parse-resolve-lower-optimize pipeline over a
// single named file, honoring cctx.Optimize and logging the optimizer's
// rewrite sites (spec.md Section 4.4) to w. w may be nil to discard the log.
func Compile(fset *token.FileSet, name string, cctx *compilectx.Context, w io.Writer) (*compiler.Script, []errs.Warning, error) {
	chunk, err := parser.ParseFile(fset, name)
	if err != nil {
		return nil, nil, err
	}

	file := fset.File(name)
	checker, err := resolver.Check(file, chunk, cctx)
	if err != nil {
		return nil, nil, err
	}

	script, err := compiler.Lower(file, chunk, checker.ConstFolds)
	if err != nil {
		return nil, nil, err
	}

	script = optimizer.Run(script, cctx, w)

	return script, checker.Warnings, nil
}
