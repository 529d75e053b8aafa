package resolver

import (
	"math/big"

	"github.com/mna/txsc/lang/ast"
	"github.com/mna/txsc/lang/types"
)

// Kind identifies which of the four binding forms of spec.md Section 3 a
// Binding represents.
type Kind uint8

const (
	// ConstBinding is a fully evaluated constant, folded at declaration.
	ConstBinding Kind = iota
	// ExprBinding is an unevaluated expression, re-lowered at each use site
	// unless it is pure and used at most once.
	ExprBinding
	// StackBinding is an assumption: a name bound to an abstract stack
	// position rather than a value.
	StackBinding
	// FuncBinding is a callable, inlined at each call site.
	FuncBinding
)

func (k Kind) String() string {
	switch k {
	case ConstBinding:
		return "const"
	case ExprBinding:
		return "expr"
	case StackBinding:
		return "stack"
	case FuncBinding:
		return "func"
	default:
		return "unknown"
	}
}

// Binding associates a name with one of the four binding forms. Which
// fields are meaningful depends on Kind, mirroring the small tagged-union
// style the rest of the compiler uses for its own IR nodes.
type Binding struct {
	Kind    Kind
	Name    string
	Mutable bool     // meaningful for ExprBinding only
	Decl    ast.Node // the declaring statement, for diagnostics
	Used    int      // number of times this binding has been referenced

	// ConstBinding
	ConstType  types.Type
	ConstInt   *big.Int
	ConstBytes []byte

	// ExprBinding
	Expr ast.Expr
	Typ  types.Type // static type of Expr

	// StackBinding
	Depth int // depth from stack top at the point the assume was processed

	// FuncBinding
	Func *ast.FuncDeclStmt
}

// Type returns the static type this binding produces when used as a value.
// FuncBinding has no value type: it is only valid as a Call target.
func (b *Binding) Type() types.Type {
	switch b.Kind {
	case ConstBinding:
		return b.ConstType
	case ExprBinding:
		return b.Typ
	case StackBinding:
		// the runtime type of a value already on the stack cannot be known
		// statically.
		return types.Expr
	default:
		return types.Unknown
	}
}
