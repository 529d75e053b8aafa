package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mna/txsc/lang/errs"
	"github.com/mna/txsc/lang/scanner"
	"github.com/mna/txsc/lang/token"
)

func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return TokenizeFiles(ctx, stdio, args...)
}

// TokenizeFiles scans each named file and prints its tokens, one per line,
// stopping at the first lexical error (spec.md Section 7, "first error
// wins").
func TokenizeFiles(ctx context.Context, stdio mainer.Stdio, files ...string) error {
	fset := token.NewFileSet()
	for _, name := range files {
		if err := tokenizeFile(stdio, fset, name); err != nil {
			return printError(stdio, err)
		}
	}
	return nil
}

func tokenizeFile(stdio mainer.Stdio, fset *token.FileSet, name string) error {
	src, err := os.ReadFile(name)
	if err != nil {
		return errs.New(errs.ParseError, token.Position{Filename: name}, "%s", err)
	}

	file := fset.AddFile(name)
	var first *errs.CompileError
	var sc scanner.Scanner
	sc.Init(file, src, func(pos token.Position, msg string) {
		if first == nil {
			first = errs.New(errs.ParseError, pos, "%s", msg)
		}
	})

	for {
		tok, val := sc.Scan()
		fmt.Fprintf(stdio.Stdout, "%s: %s", file.Position(val.Pos), tok)
		if val.Raw != "" {
			fmt.Fprintf(stdio.Stdout, " %s", val.Raw)
		}
		fmt.Fprintln(stdio.Stdout)
		if first != nil {
			return first
		}
		if tok == token.EOF {
			break
		}
	}
	return nil
}
