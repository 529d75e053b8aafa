package maincmd

import (
	"context"

	"github.com/mna/mainer"
	"github.com/mna/txsc/lang/ast"
	"github.com/mna/txsc/lang/parser"
	"github.com/mna/txsc/lang/token"
)

func (c *Cmd) Parse(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return ParseFiles(ctx, stdio, "", args...)
}

// ParseFiles parses each named file and prints its AST.
func ParseFiles(ctx context.Context, stdio mainer.Stdio, nodeFmt string, files ...string) error {
	fset := token.NewFileSet()
	printer := ast.Printer{Output: stdio.Stdout, NodeFmt: nodeFmt}

	for _, name := range files {
		chunk, err := parser.ParseFile(fset, name)
		if err != nil {
			return printError(stdio, err)
		}
		printer.File = fset.File(name)
		if err := printer.Print(chunk); err != nil {
			return printError(stdio, err)
		}
	}
	return nil
}
