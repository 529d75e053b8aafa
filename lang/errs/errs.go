// Package errs defines the TxSC compile-time error taxonomy (spec.md
// Section 7). Every stage of the pipeline reports errors of this single
// type, each carrying a Kind and a full source span.
package errs

import (
	"fmt"

	"github.com/mna/txsc/lang/token"
)

// Kind enumerates the compile-time error kinds of spec.md Section 7.
type Kind uint8

//nolint:revive
const (
	_ Kind = iota
	ParseError
	UnknownName
	RedeclaredName
	ImmutableBinding
	MisplacedAssume
	AssumptionAfterImbalancedBranch
	TypeMismatch
	ArityMismatch
	InvalidLiteral
	ValidationFailed
	StackUnderflow
	InternalInvariant
)

var kindNames = [...]string{
	ParseError:                      "ParseError",
	UnknownName:                     "UnknownName",
	RedeclaredName:                  "RedeclaredName",
	ImmutableBinding:                "ImmutableBinding",
	MisplacedAssume:                 "MisplacedAssume",
	AssumptionAfterImbalancedBranch: "AssumptionAfterImbalancedBranch",
	TypeMismatch:                    "TypeMismatch",
	ArityMismatch:                   "ArityMismatch",
	InvalidLiteral:                  "InvalidLiteral",
	ValidationFailed:                "ValidationFailed",
	StackUnderflow:                  "StackUnderflow",
	InternalInvariant:               "InternalInvariant",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "UnknownErrorKind"
}

// CompileError is the single error type produced by every stage of the
// pipeline. Compilation halts and reports the first CompileError raised
// (spec.md Section 7, "Policy").
type CompileError struct {
	Kind Kind
	Pos  token.Position
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Pos, e.Kind, e.Msg)
}

// New builds a CompileError of the given kind at pos.
func New(kind Kind, pos token.Position, format string, args ...any) *CompileError {
	return &CompileError{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Warning is a non-halting diagnostic (spec.md Section 7, "Policy":
// implicit push, unused binding).
type Warning struct {
	Pos token.Position
	Msg string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: warning: %s", w.Pos, w.Msg)
}
