package ast

import (
	"fmt"
	"io"
	"strings"

	"github.com/mna/txsc/lang/token"
)

// Printer pretty-prints an AST as an indented tree, one node per line.
type Printer struct {
	// Output is the io.Writer to print to.
	Output io.Writer

	// File, if non-nil, causes each node's source span to be printed
	// alongside its description.
	File *token.File

	// NodeFmt is the format string to use to print the nodes. The verb must
	// be 's' or 'v'. Defaults to "%v".
	NodeFmt string
}

// Print pretty-prints the AST node n.
func (p *Printer) Print(n Node) error {
	pp := &printer{w: p.Output, file: p.File, nodeFmt: p.NodeFmt}
	if pp.nodeFmt == "" {
		pp.nodeFmt = "%v"
	}
	Walk(pp, n)
	return pp.err
}

type printer struct {
	w       io.Writer
	file    *token.File
	nodeFmt string
	depth   int
	err     error
}

func (p *printer) Visit(n Node, dir VisitDirection) Visitor {
	if dir == VisitExit || p.err != nil {
		p.depth--
		return nil
	}
	p.depth++
	p.printNode(n, p.depth-1)
	return p
}

func (p *printer) printNode(n Node, indent int) {
	if p.err != nil {
		return
	}

	format := "%s"
	args := []interface{}{strings.Repeat(". ", indent)}
	if p.file != nil {
		start, end := n.Span()
		format += "[%s - %s] "
		args = append(args, p.file.Position(start), p.file.Position(end))
	}
	format += p.nodeFmt + "\n"
	args = append(args, n)

	_, p.err = fmt.Fprintf(p.w, format, args...)
}
