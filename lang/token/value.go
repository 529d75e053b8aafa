package token

import "math/big"

// Value carries the decoded payload of a scanned token alongside its raw
// source text and position.
type Value struct {
	Raw   string // the literal text as it appeared in the source
	Pos   Pos
	Int   *big.Int // set when Token == INT
	Bytes []byte   // set when Token == STRING or HEXBYTES
}
