// Package refmachine is a minimal reference interpreter for the opcode IR
// of lang/compiler. It exists solely so the test suite can check that the
// optimizer's rewrites preserve behavior (spec.md Section 8's
// optimizer-equivalence property): run an unoptimized and an optimized
// Script against the same seed stack and compare outcomes. spec.md's
// Non-goals explicitly exclude a script interpreter from the production
// compiler, so this package is never imported outside _test.go files.
package refmachine

import (
	"crypto/sha1" //nolint:gosec
	"crypto/sha256"
	"errors"
	"math/big"

	"github.com/mna/txsc/lang/compiler"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck
)

// Value is a single stack item: either an integer or a byte string,
// mirroring the Int/Bytes duality of lang/compiler.Instr.
type Value struct {
	Int   *big.Int
	Bytes []byte
}

// IntValue wraps an integer as a Value.
func IntValue(n int64) Value { return Value{Int: big.NewInt(n)} }

// BytesValue wraps a byte string as a Value.
func BytesValue(b []byte) Value { return Value{Bytes: b} }

func (v Value) bigInt() *big.Int {
	if v.Int != nil {
		return v.Int
	}
	return new(big.Int).SetBytes(v.Bytes)
}

func (v Value) bytes() []byte {
	if v.Bytes != nil {
		return v.Bytes
	}
	return v.Int.Bytes()
}

func (v Value) truthy() bool {
	if v.Int != nil {
		return v.Int.Sign() != 0
	}
	for _, b := range v.Bytes {
		if b != 0 {
			return true
		}
	}
	return false
}

func boolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

// equal compares two Values the way OP_EQUAL does: byte strings compare by
// content, integers by value, and an Int compares equal to Bytes when
// their big-endian magnitudes match (the IR makes no runtime distinction
// once a value reaches the stack).
func equal(a, b Value) bool {
	if a.Int != nil && b.Int != nil {
		return a.Int.Cmp(b.Int) == 0
	}
	return a.bigInt().Cmp(b.bigInt()) == 0
}

// ErrValidationFailed is returned when OP_VERIFY/OP_RETURN/OP_EQUALVERIFY
// fails, mirroring a script's runtime validation failure.
var ErrValidationFailed = errors.New("refmachine: validation failed")

type machine struct {
	instrs []compiler.Instr
	stack  []Value
}

// Run executes s against an initial stack (bottom to top) and returns the
// final stack contents, or an error if the script fails validation.
func Run(s *compiler.Script, initial []Value) ([]Value, error) {
	m := &machine{stack: append([]Value(nil), initial...)}
	if err := m.run(s.Instrs); err != nil {
		return nil, err
	}
	return m.stack, nil
}

func (m *machine) push(v Value)  { m.stack = append(m.stack, v) }
func (m *machine) pop() Value {
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}
func (m *machine) peek(depthFromTop int) Value {
	return m.stack[len(m.stack)-1-depthFromTop]
}

func (m *machine) run(instrs []compiler.Instr) error {
	var condStack []bool

	executing := func() bool {
		for _, c := range condStack {
			if !c {
				return false
			}
		}
		return true
	}

	for _, in := range instrs {
		if in.Dead {
			continue
		}

		if in.Kind == compiler.KindOp {
			switch in.Op {
			case compiler.OP_IF, compiler.OP_NOTIF:
				if executing() {
					cond := m.pop().truthy()
					if in.Op == compiler.OP_NOTIF {
						cond = !cond
					}
					condStack = append(condStack, cond)
				} else {
					condStack = append(condStack, false)
				}
				continue
			case compiler.OP_ELSE:
				condStack[len(condStack)-1] = !condStack[len(condStack)-1]
				continue
			case compiler.OP_ENDIF:
				condStack = condStack[:len(condStack)-1]
				continue
			}
		}

		if !executing() {
			continue
		}

		switch in.Kind {
		case compiler.KindPushInt:
			m.push(Value{Int: in.Int})
			continue
		case compiler.KindPushBytes:
			m.push(Value{Bytes: in.Bytes})
			continue
		}

		if err := m.step(in.Op); err != nil {
			return err
		}
	}
	return nil
}

func (m *machine) step(op compiler.Op) error {
	switch op {
	case compiler.OP_NOP:

	case compiler.OP_DUP:
		m.push(m.peek(0))
	case compiler.OP_2DUP:
		a, b := m.peek(1), m.peek(0)
		m.push(a)
		m.push(b)
	case compiler.OP_DROP:
		m.pop()
	case compiler.OP_2DROP:
		m.pop()
		m.pop()
	case compiler.OP_SWAP:
		b, a := m.pop(), m.pop()
		m.push(b)
		m.push(a)
	case compiler.OP_OVER:
		m.push(m.peek(1))
	case compiler.OP_TUCK:
		b, a := m.pop(), m.pop()
		m.push(b)
		m.push(a)
		m.push(b)
	case compiler.OP_NIP:
		b := m.pop()
		m.pop()
		m.push(b)
	case compiler.OP_PICK:
		n := int(m.pop().bigInt().Int64())
		m.push(m.peek(n))
	case compiler.OP_ROLL:
		n := int(m.pop().bigInt().Int64())
		idx := len(m.stack) - 1 - n
		v := m.stack[idx]
		m.stack = append(m.stack[:idx], m.stack[idx+1:]...)
		m.push(v)
	case compiler.OP_DEPTH:
		m.push(IntValue(int64(len(m.stack))))

	case compiler.OP_VERIFY:
		if !m.pop().truthy() {
			return ErrValidationFailed
		}
	case compiler.OP_RETURN:
		return ErrValidationFailed

	case compiler.OP_ADD:
		b, a := m.pop().bigInt(), m.pop().bigInt()
		m.push(Value{Int: new(big.Int).Add(a, b)})
	case compiler.OP_SUB:
		b, a := m.pop().bigInt(), m.pop().bigInt()
		m.push(Value{Int: new(big.Int).Sub(a, b)})
	case compiler.OP_MUL:
		b, a := m.pop().bigInt(), m.pop().bigInt()
		m.push(Value{Int: new(big.Int).Mul(a, b)})
	case compiler.OP_DIV:
		b, a := m.pop().bigInt(), m.pop().bigInt()
		m.push(Value{Int: new(big.Int).Quo(a, b)})
	case compiler.OP_MOD:
		b, a := m.pop().bigInt(), m.pop().bigInt()
		m.push(Value{Int: new(big.Int).Rem(a, b)})
	case compiler.OP_NEGATE:
		a := m.pop().bigInt()
		m.push(Value{Int: new(big.Int).Neg(a)})
	case compiler.OP_ABS:
		a := m.pop().bigInt()
		m.push(Value{Int: new(big.Int).Abs(a)})
	case compiler.OP_MIN:
		b, a := m.pop().bigInt(), m.pop().bigInt()
		if a.Cmp(b) <= 0 {
			m.push(Value{Int: a})
		} else {
			m.push(Value{Int: b})
		}
	case compiler.OP_MAX:
		b, a := m.pop().bigInt(), m.pop().bigInt()
		if a.Cmp(b) >= 0 {
			m.push(Value{Int: a})
		} else {
			m.push(Value{Int: b})
		}
	case compiler.OP_WITHIN:
		hi, lo, x := m.pop().bigInt(), m.pop().bigInt(), m.pop().bigInt()
		m.push(boolValue(x.Cmp(lo) >= 0 && x.Cmp(hi) < 0))

	case compiler.OP_AND:
		b, a := m.pop().bigInt(), m.pop().bigInt()
		m.push(Value{Int: new(big.Int).And(a, b)})
	case compiler.OP_OR:
		b, a := m.pop().bigInt(), m.pop().bigInt()
		m.push(Value{Int: new(big.Int).Or(a, b)})
	case compiler.OP_XOR:
		b, a := m.pop().bigInt(), m.pop().bigInt()
		m.push(Value{Int: new(big.Int).Xor(a, b)})
	case compiler.OP_INVERT:
		a := m.pop().bigInt()
		m.push(Value{Int: new(big.Int).Not(a)})
	case compiler.OP_LSHIFT:
		n, a := m.pop().bigInt(), m.pop().bigInt()
		m.push(Value{Int: new(big.Int).Lsh(a, uint(n.Uint64()))})
	case compiler.OP_RSHIFT:
		n, a := m.pop().bigInt(), m.pop().bigInt()
		m.push(Value{Int: new(big.Int).Rsh(a, uint(n.Uint64()))})

	case compiler.OP_NOT:
		m.push(boolValue(!m.pop().truthy()))
	case compiler.OP_0NOTEQUAL:
		m.push(boolValue(m.pop().truthy()))
	case compiler.OP_BOOLAND:
		b, a := m.pop(), m.pop()
		m.push(boolValue(a.truthy() && b.truthy()))
	case compiler.OP_BOOLOR:
		b, a := m.pop(), m.pop()
		m.push(boolValue(a.truthy() || b.truthy()))
	case compiler.OP_NUMEQUAL:
		b, a := m.pop().bigInt(), m.pop().bigInt()
		m.push(boolValue(a.Cmp(b) == 0))
	case compiler.OP_NUMNOTEQUAL:
		b, a := m.pop().bigInt(), m.pop().bigInt()
		m.push(boolValue(a.Cmp(b) != 0))
	case compiler.OP_LESSTHAN:
		b, a := m.pop().bigInt(), m.pop().bigInt()
		m.push(boolValue(a.Cmp(b) < 0))
	case compiler.OP_LESSTHANOREQUAL:
		b, a := m.pop().bigInt(), m.pop().bigInt()
		m.push(boolValue(a.Cmp(b) <= 0))
	case compiler.OP_GREATERTHAN:
		b, a := m.pop().bigInt(), m.pop().bigInt()
		m.push(boolValue(a.Cmp(b) > 0))
	case compiler.OP_GREATERTHANOREQUAL:
		b, a := m.pop().bigInt(), m.pop().bigInt()
		m.push(boolValue(a.Cmp(b) >= 0))
	case compiler.OP_EQUAL:
		b, a := m.pop(), m.pop()
		m.push(boolValue(equal(a, b)))
	case compiler.OP_EQUALVERIFY:
		b, a := m.pop(), m.pop()
		if !equal(a, b) {
			return ErrValidationFailed
		}

	case compiler.OP_SIZE:
		m.push(IntValue(int64(len(m.peek(0).bytes()))))
	case compiler.OP_CAT:
		b, a := m.pop().bytes(), m.pop().bytes()
		m.push(BytesValue(append(append([]byte(nil), a...), b...)))
	case compiler.OP_SUBSTR:
		n, i, a := m.pop().bigInt().Int64(), m.pop().bigInt().Int64(), m.pop().bytes()
		m.push(BytesValue(append([]byte(nil), a[i:i+n]...)))
	case compiler.OP_LEFT:
		n, a := m.pop().bigInt().Int64(), m.pop().bytes()
		m.push(BytesValue(append([]byte(nil), a[:n]...)))
	case compiler.OP_RIGHT:
		n, a := m.pop().bigInt().Int64(), m.pop().bytes()
		m.push(BytesValue(append([]byte(nil), a[int64(len(a))-n:]...)))

	case compiler.OP_RIPEMD160:
		a := m.pop().bytes()
		h := ripemd160.New()
		h.Write(a) //nolint:errcheck
		m.push(BytesValue(h.Sum(nil)))
	case compiler.OP_SHA1:
		a := m.pop().bytes()
		sum := sha1.Sum(a) //nolint:gosec
		m.push(BytesValue(sum[:]))
	case compiler.OP_SHA256:
		a := m.pop().bytes()
		sum := sha256.Sum256(a)
		m.push(BytesValue(sum[:]))
	case compiler.OP_HASH160:
		a := m.pop().bytes()
		sha := sha256.Sum256(a)
		h := ripemd160.New()
		h.Write(sha[:]) //nolint:errcheck
		m.push(BytesValue(h.Sum(nil)))
	case compiler.OP_HASH256:
		a := m.pop().bytes()
		first := sha256.Sum256(a)
		second := sha256.Sum256(first[:])
		m.push(BytesValue(second[:]))
	case compiler.OP_CHECKSIG:
		// No real signature-checking context exists in this reference
		// machine; treated as a deterministic stand-in so optimizer
		// rewrites around it can still be compared for stack shape.
		m.pop()
		m.pop()
		m.push(IntValue(1))
	case compiler.OP_CHECKMULTISIG:
		m.pop()
		m.pop()
		m.push(IntValue(1))

	default:
		return errors.New("refmachine: unhandled opcode " + op.String())
	}
	return nil
}
