// Package builtins holds the fixed table of built-in function signatures
// available to every TxScript program (spec.md Section 5, "Built-ins").
// Both the resolver (arity/type checking) and the compiler (lowering to
// opcodes) consult this table, so the two stages can never disagree about
// what a built-in accepts or returns.
package builtins

import (
	"github.com/dolthub/swiss"
	"github.com/mna/txsc/lang/types"
)

// Signature describes a built-in's parameter types and result type.
// types.Expr in Params means "any value type is accepted here".
type Signature struct {
	Params []types.Type
	Result types.Type

	// ConstOnly marks a built-in whose arguments must be resolvable to a
	// compile-time constant; it exists purely to be decoded/validated at
	// compile time and has no runtime opcode encoding of its own.
	ConstOnly bool
}

// table is consulted on every call-expression check and every lowering of
// a built-in call, the hottest string-keyed lookup in the whole pipeline;
// it's backed by swiss's open-addressing map rather than the builtin Go
// map. (The resolver's and lowerer's scopes use plain Go maps.)
var table = newTable(map[string]Signature{
	"abs":   {Params: []types.Type{types.Int}, Result: types.Int},
	"size":  {Params: []types.Type{types.Bytes}, Result: types.Int},
	"min":   {Params: []types.Type{types.Int, types.Int}, Result: types.Int},
	"max":   {Params: []types.Type{types.Int, types.Int}, Result: types.Int},
	"within": {Params: []types.Type{types.Int, types.Int, types.Int}, Result: types.Int},

	"concat": {Params: []types.Type{types.Bytes, types.Bytes}, Result: types.Bytes},
	"left":   {Params: []types.Type{types.Bytes, types.Int}, Result: types.Bytes},
	"right":  {Params: []types.Type{types.Bytes, types.Int}, Result: types.Bytes},
	"substr": {Params: []types.Type{types.Bytes, types.Int, types.Int}, Result: types.Bytes},

	"ripemd160": {Params: []types.Type{types.Bytes}, Result: types.Bytes},
	"sha1":      {Params: []types.Type{types.Bytes}, Result: types.Bytes},
	"sha256":    {Params: []types.Type{types.Bytes}, Result: types.Bytes},
	"hash160":   {Params: []types.Type{types.Bytes}, Result: types.Bytes},
	"hash256":   {Params: []types.Type{types.Bytes}, Result: types.Bytes},

	"checkSig": {Params: []types.Type{types.Bytes, types.Bytes}, Result: types.Int},
	// Simplified to fixed arity: callers build the signature and pubkey
	// lists with concat() rather than passing a variable-length argument
	// list the checker could not validate statically.
	"checkMultiSig": {Params: []types.Type{types.Bytes, types.Bytes}, Result: types.Int},

	// Compile-time validation helpers: they pass their (sole) argument
	// through unchanged at runtime, but when it is a literal they check its
	// shape eagerly and fail the build on a malformed constant instead of
	// deferring to a runtime VERIFY that can never actually run in this
	// validator (it would always fail or always pass).
	"checkHash160":     {Params: []types.Type{types.Bytes}, Result: types.Bytes},
	"checkPubKey":      {Params: []types.Type{types.Bytes}, Result: types.Bytes},
	"addressToHash160": {Params: []types.Type{types.Bytes}, Result: types.Bytes, ConstOnly: true},

	// markInvalid takes no arguments and never returns a usable value; it
	// poisons every reachable path after it (spec.md Section 4.2).
	"markInvalid": {Params: nil, Result: types.Unknown},
})

func newTable(entries map[string]Signature) *swiss.Map[string, Signature] {
	m := swiss.NewMap[string, Signature](uint32(len(entries)))
	for name, sig := range entries {
		m.Put(name, sig)
	}
	return m
}

// Lookup returns the signature for name, and whether it was found.
func Lookup(name string) (Signature, bool) {
	return table.Get(name)
}
