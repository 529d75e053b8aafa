// Package compiler lowers a checked AST to a flat, jump-free opcode IR
// (spec.md Section 4.3, "Expression lowering") and assembles it to the
// textual and binary script forms the optimizer and emitter consume.
package compiler

import "fmt"

// Op is a single Bitcoin-style script opcode. Operands that are themselves
// script values (an integer, a byte string, the depth argument to PICK/
// ROLL) are never baked into the Op: they are separate PushInt/PushBytes
// instructions immediately before it, exactly as they appear on the wire.
type Op uint8

// "x y Op -> z" is a stack picture: arguments consumed left to right, then
// the result(s) pushed, read right to left from the top.
const ( //nolint:revive
	OP_NOP Op = iota // -        OP_NOP        -

	// stack manipulation
	OP_DUP   //   x        OP_DUP        x x
	OP_2DUP  // x y        OP_2DUP       x y x y
	OP_DROP  //   x        OP_DROP       -
	OP_2DROP // x y        OP_2DROP      -
	OP_SWAP  // x y        OP_SWAP       y x
	OP_OVER  // x y        OP_OVER       x y x
	OP_TUCK  // x y        OP_TUCK       y x y
	OP_NIP   // x y        OP_NIP        y
	OP_PICK  // ... n      OP_PICK       ... xn
	OP_ROLL  // ... n      OP_ROLL       ...  xn (removed from its slot)
	OP_DEPTH // -          OP_DEPTH      n

	// flow control
	OP_IF     //   x        OP_IF         -   (begins a conditional branch)
	OP_NOTIF  //   x        OP_NOTIF      -
	OP_ELSE   // -          OP_ELSE       -
	OP_ENDIF  // -          OP_ENDIF      -
	OP_VERIFY //   x        OP_VERIFY     -   (fails validation if x is falsy)
	OP_RETURN // -          OP_RETURN     -   (fails validation unconditionally)

	// arithmetic
	OP_ADD    // a b        OP_ADD        a+b
	OP_SUB    // a b        OP_SUB        a-b
	OP_MUL    // a b        OP_MUL        a*b
	OP_DIV    // a b        OP_DIV        a/b
	OP_MOD    // a b        OP_MOD        a%b
	OP_NEGATE //   a        OP_NEGATE     -a
	OP_ABS    //   a        OP_ABS        |a|
	OP_MIN    // a b        OP_MIN        min(a,b)
	OP_MAX    // a b        OP_MAX        max(a,b)
	OP_WITHIN // x lo hi    OP_WITHIN     lo<=x && x<hi

	// bitwise
	OP_AND    // a b        OP_AND        a&b
	OP_OR     // a b        OP_OR         a|b
	OP_XOR    // a b        OP_XOR        a^b
	OP_INVERT //   a        OP_INVERT     ~a
	OP_LSHIFT // a n        OP_LSHIFT     a<<n
	OP_RSHIFT // a n        OP_RSHIFT     a>>n

	// boolean / comparison, all produce 0 or 1
	OP_NOT                //   a        OP_NOT                a==0
	OP_0NOTEQUAL          //   a        OP_0NOTEQUAL          a!=0
	OP_BOOLAND            // a b        OP_BOOLAND            a!=0 && b!=0
	OP_BOOLOR             // a b        OP_BOOLOR             a!=0 || b!=0
	OP_NUMEQUAL           // a b        OP_NUMEQUAL           a==b
	OP_NUMNOTEQUAL        // a b        OP_NUMNOTEQUAL        a!=b
	OP_LESSTHAN           // a b        OP_LESSTHAN           a<b
	OP_LESSTHANOREQUAL    // a b        OP_LESSTHANOREQUAL    a<=b
	OP_GREATERTHAN        // a b        OP_GREATERTHAN        a>b
	OP_GREATERTHANOREQUAL // a b        OP_GREATERTHANOREQUAL a>=b
	OP_EQUAL              // a b        OP_EQUAL              a==b (bytes or int)
	OP_EQUALVERIFY        // a b        OP_EQUALVERIFY        -    (OP_EQUAL + OP_VERIFY fused)

	// byte strings
	OP_SIZE   //   a        OP_SIZE       a #a
	OP_CAT    // a b        OP_CAT        a||b
	OP_SUBSTR // a i n      OP_SUBSTR     a[i:i+n]
	OP_LEFT   // a n        OP_LEFT       a[:n]
	OP_RIGHT  // a n        OP_RIGHT      a[#a-n:]

	// crypto
	OP_RIPEMD160    //    a        OP_RIPEMD160    ripemd160(a)
	OP_SHA1         //    a        OP_SHA1         sha1(a)
	OP_SHA256       //    a        OP_SHA256       sha256(a)
	OP_HASH160      //    a        OP_HASH160      ripemd160(sha256(a))
	OP_HASH256      //    a        OP_HASH256      sha256(sha256(a))
	OP_CHECKSIG     // sig pk      OP_CHECKSIG     bool
	OP_CHECKMULTISIG // sigs pks  OP_CHECKMULTISIG bool

	opMax
)

var opNames = [...]string{
	OP_NOP:                "OP_NOP",
	OP_DUP:                "OP_DUP",
	OP_2DUP:                "OP_2DUP",
	OP_DROP:               "OP_DROP",
	OP_2DROP:              "OP_2DROP",
	OP_SWAP:               "OP_SWAP",
	OP_OVER:               "OP_OVER",
	OP_TUCK:               "OP_TUCK",
	OP_NIP:                "OP_NIP",
	OP_PICK:               "OP_PICK",
	OP_ROLL:               "OP_ROLL",
	OP_DEPTH:              "OP_DEPTH",
	OP_IF:                 "OP_IF",
	OP_NOTIF:              "OP_NOTIF",
	OP_ELSE:               "OP_ELSE",
	OP_ENDIF:              "OP_ENDIF",
	OP_VERIFY:             "OP_VERIFY",
	OP_RETURN:             "OP_RETURN",
	OP_ADD:                "OP_ADD",
	OP_SUB:                "OP_SUB",
	OP_MUL:                "OP_MUL",
	OP_DIV:                "OP_DIV",
	OP_MOD:                "OP_MOD",
	OP_NEGATE:             "OP_NEGATE",
	OP_ABS:                "OP_ABS",
	OP_MIN:                "OP_MIN",
	OP_MAX:                "OP_MAX",
	OP_WITHIN:             "OP_WITHIN",
	OP_AND:                "OP_AND",
	OP_OR:                 "OP_OR",
	OP_XOR:                "OP_XOR",
	OP_INVERT:             "OP_INVERT",
	OP_LSHIFT:             "OP_LSHIFT",
	OP_RSHIFT:             "OP_RSHIFT",
	OP_NOT:                "OP_NOT",
	OP_0NOTEQUAL:          "OP_0NOTEQUAL",
	OP_BOOLAND:            "OP_BOOLAND",
	OP_BOOLOR:             "OP_BOOLOR",
	OP_NUMEQUAL:           "OP_NUMEQUAL",
	OP_NUMNOTEQUAL:        "OP_NUMNOTEQUAL",
	OP_LESSTHAN:           "OP_LESSTHAN",
	OP_LESSTHANOREQUAL:    "OP_LESSTHANOREQUAL",
	OP_GREATERTHAN:        "OP_GREATERTHAN",
	OP_GREATERTHANOREQUAL: "OP_GREATERTHANOREQUAL",
	OP_EQUAL:              "OP_EQUAL",
	OP_EQUALVERIFY:        "OP_EQUALVERIFY",
	OP_SIZE:               "OP_SIZE",
	OP_CAT:                "OP_CAT",
	OP_SUBSTR:             "OP_SUBSTR",
	OP_LEFT:               "OP_LEFT",
	OP_RIGHT:              "OP_RIGHT",
	OP_RIPEMD160:          "OP_RIPEMD160",
	OP_SHA1:               "OP_SHA1",
	OP_SHA256:             "OP_SHA256",
	OP_HASH160:            "OP_HASH160",
	OP_HASH256:            "OP_HASH256",
	OP_CHECKSIG:           "OP_CHECKSIG",
	OP_CHECKMULTISIG:      "OP_CHECKMULTISIG",
}

var reverseLookupOp = func() map[string]Op {
	m := make(map[string]Op, len(opNames))
	for op, s := range opNames {
		if s != "" {
			m[s] = Op(op)
		}
	}
	return m
}()

// LookupOp returns the Op named s, for the assembler.
func LookupOp(s string) (Op, bool) {
	op, ok := reverseLookupOp[s]
	return op, ok
}

func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("illegal op (%d)", op)
}

const variableStackEffect = 127

// stackEffect records the net change in stack depth each Op causes. PICK
// and ROLL consume their depth argument and are therefore fixed (0 and -1
// respectively) even though the argument's value is dynamic: the argument
// is always pushed by a separate instruction right before it.
var stackEffect = [...]int8{
	OP_NOP:   0,
	OP_DUP:   +1,
	OP_2DUP:  +2,
	OP_DROP:  -1,
	OP_2DROP: -2,
	OP_SWAP:  0,
	OP_OVER:  +1,
	OP_TUCK:  +1,
	OP_NIP:   -1,
	OP_PICK:  0,
	OP_ROLL:  -1,
	OP_DEPTH: +1,

	OP_IF:     -1,
	OP_NOTIF:  -1,
	OP_ELSE:   0,
	OP_ENDIF:  0,
	OP_VERIFY: -1,
	OP_RETURN: 0,

	OP_ADD:    -1,
	OP_SUB:    -1,
	OP_MUL:    -1,
	OP_DIV:    -1,
	OP_MOD:    -1,
	OP_NEGATE: 0,
	OP_ABS:    0,
	OP_MIN:    -1,
	OP_MAX:    -1,
	OP_WITHIN: -2,

	OP_AND:    -1,
	OP_OR:     -1,
	OP_XOR:    -1,
	OP_INVERT: 0,
	OP_LSHIFT: -1,
	OP_RSHIFT: -1,

	OP_NOT:                0,
	OP_0NOTEQUAL:          0,
	OP_BOOLAND:            -1,
	OP_BOOLOR:             -1,
	OP_NUMEQUAL:           -1,
	OP_NUMNOTEQUAL:        -1,
	OP_LESSTHAN:           -1,
	OP_LESSTHANOREQUAL:    -1,
	OP_GREATERTHAN:        -1,
	OP_GREATERTHANOREQUAL: -1,
	OP_EQUAL:              -1,
	OP_EQUALVERIFY:        -2,

	OP_SIZE:   +1,
	OP_CAT:    -1,
	OP_SUBSTR: -2,
	OP_LEFT:   -1,
	OP_RIGHT:  -1,

	OP_RIPEMD160:     0,
	OP_SHA1:          0,
	OP_SHA256:        0,
	OP_HASH160:       0,
	OP_HASH256:       0,
	OP_CHECKSIG:      -1,
	OP_CHECKMULTISIG: -1,
}

// Effect returns the net stack-depth change of op.
func (op Op) Effect() int { return int(stackEffect[op]) }
