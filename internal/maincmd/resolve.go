package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/mainer"
	"github.com/mna/txsc/lang/ast"
	"github.com/mna/txsc/lang/parser"
	"github.com/mna/txsc/lang/resolver"
	"github.com/mna/txsc/lang/token"
)

func (c *Cmd) Resolve(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return ResolveFiles(ctx, stdio, "", args...)
}

// ResolveFiles parses and resolves each named file, printing the AST and
// any non-halting warnings (spec.md Section 7, "Policy").
func ResolveFiles(ctx context.Context, stdio mainer.Stdio, nodeFmt string, files ...string) error {
	fset := token.NewFileSet()
	printer := ast.Printer{Output: stdio.Stdout, NodeFmt: nodeFmt}

	for _, name := range files {
		chunk, err := parser.ParseFile(fset, name)
		if err != nil {
			// cannot resolve an AST that failed to parse
			return printError(stdio, err)
		}

		checker, err := resolver.Check(fset.File(name), chunk, nil)

		printer.File = fset.File(name)
		if perr := printer.Print(chunk); perr != nil {
			return printError(stdio, perr)
		}
		for _, w := range checker.Warnings {
			fmt.Fprintln(stdio.Stderr, w)
		}
		if err != nil {
			return printError(stdio, err)
		}
	}
	return nil
}
