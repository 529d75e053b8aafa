package compiler

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Format renders s as the canonical human-readable assembly of spec.md
// Section 4.5/6: a single line of space-separated, uppercase OP_* tokens.
// Small integers use their symbolic spelling (OP_0..OP_16, OP_1NEGATE);
// everything else — larger integers and byte strings alike — is a
// minimal-push: a single hex length byte (or OP_PUSHDATA1/2/4 and a wider
// hex length field, past 75 bytes) followed by the hex payload. For
// example, the P2PKH script of spec.md Section 8 scenario 1 formats as:
//
//	OP_DUP OP_HASH160 0x14 1010101010101010101010101010101010101010 OP_EQUALVERIFY OP_CHECKSIG
//
// Dead instructions are dropped, matching Encode: the assembly is the
// program that will actually run, not a diagnostic dump of everything the
// compiler considered (spec.md Section 8, "Boundary behaviors": an empty
// script formats as the empty string).
func Format(s *Script) string {
	var toks []string
	for _, in := range s.Instrs {
		if in.Dead {
			continue
		}
		switch in.Kind {
		case KindPushInt:
			toks = append(toks, formatIntPush(in.Int)...)
		case KindPushBytes:
			toks = append(toks, formatBytesPush(in.Bytes)...)
		default:
			toks = append(toks, in.Op.String())
		}
	}
	if len(toks) == 0 {
		return ""
	}
	return strings.Join(toks, " ") + "\n"
}

// formatIntPush renders n as its symbolic small-integer opcode when one
// exists, else as a minimal-push of its scriptnum encoding.
func formatIntPush(n *big.Int) []string {
	switch {
	case n.Cmp(bigNegOne) == 0:
		return []string{"OP_1NEGATE"}
	case n.Sign() == 0:
		return []string{"OP_0"}
	case n.Sign() > 0 && n.Cmp(bigSixteen) <= 0:
		return []string{"OP_" + n.String()}
	default:
		return formatBytesPush(encodeScriptNum(n))
	}
}

var (
	bigNegOne  = big.NewInt(-1)
	bigSixteen = big.NewInt(16)
)

// pushData1Threshold mirrors Bitcoin Script's own cutover: lengths below it
// use a single hex length byte; at and past it, the length needs its own
// OP_PUSHDATA1/2/4 marker and a wider length field.
const pushData1Threshold = 0x4c

// formatBytesPush renders b as a minimal length-prefixed hex push. A
// length of 0 is a degenerate push-empty-bytes with no data token.
func formatBytesPush(b []byte) []string {
	n := len(b)
	data := hex.EncodeToString(b)
	switch {
	case n == 0:
		return []string{"0x00"}
	case n < pushData1Threshold:
		return []string{fmt.Sprintf("0x%02x", n), data}
	case n <= 0xff:
		return []string{"OP_PUSHDATA1", fmt.Sprintf("0x%02x", n), data}
	case n <= 0xffff:
		return []string{"OP_PUSHDATA2", fmt.Sprintf("0x%04x", n), data}
	default:
		return []string{"OP_PUSHDATA4", fmt.Sprintf("0x%08x", n), data}
	}
}

// encodeScriptNum renders n in the minimal little-endian, sign-magnitude
// form used by both Bitcoin Script's CScriptNum and this IR's PushInt once
// it no longer fits a symbolic small-integer opcode: base-256 magnitude,
// high bit of the last byte as the sign flag, an extra all-zero byte
// appended when the magnitude's own high bit would otherwise be mistaken
// for the sign flag. Arbitrary-precision, unlike btcsuite/btcd's
// int64-bounded txscript.ScriptNum, since this compiler's constant folding
// (spec.md Section 4.4) is arbitrary-precision throughout.
func encodeScriptNum(n *big.Int) []byte {
	if n.Sign() == 0 {
		return nil
	}
	neg := n.Sign() < 0
	mag := new(big.Int).Abs(n).Bytes() // big-endian magnitude
	out := make([]byte, len(mag))
	for i, b := range mag {
		out[len(mag)-1-i] = b // little-endian
	}
	if out[len(out)-1]&0x80 != 0 {
		out = append(out, 0)
	}
	if neg {
		out[len(out)-1] |= 0x80
	}
	return out
}

// Parse reads assembly produced by Format back into a Script. It is used
// by the test harness to build fixtures directly, and by the disassembler
// round-trip property in spec.md Section 8. Tokens are whitespace-
// delimited (newlines included), so both Format's single-line output and
// hand-written, one-instruction-per-line fixtures parse the same way. Only
// the symbolic small ints (OP_1NEGATE, OP_0, OP_1..OP_16) reparse as
// KindPushInt; every length-prefixed push, including an integer outside
// -1..16, reparses as KindPushBytes: the textual form has no tag to
// distinguish the two once a push has left its symbolic-small-int range,
// mirroring Bitcoin Script's own wire format.
func Parse(src string) (*Script, error) {
	toks := strings.Fields(src)
	s := &Script{}
	dead := false

	for i := 0; i < len(toks); {
		tok := toks[i]
		if tok == ";" {
			dead = true
			i++
			continue
		}

		var in Instr
		var consumed int
		var err error
		switch small := opSmallInt(tok); {
		case tok == "OP_1NEGATE":
			in, consumed = PushInt(big.NewInt(-1)), 1
		case tok == "OP_0":
			in, consumed = PushInt(big.NewInt(0)), 1
		case small > 0:
			in, consumed = PushInt(big.NewInt(small)), 1
		case tok == "OP_PUSHDATA1" || tok == "OP_PUSHDATA2" || tok == "OP_PUSHDATA4":
			in, consumed, err = parseLengthPrefixedPush(toks, i+1, 1)
		case strings.HasPrefix(tok, "0x"):
			in, consumed, err = parseLengthPrefixedPush(toks, i, 0)
		default:
			op, ok := LookupOp(tok)
			if !ok {
				return nil, fmt.Errorf("unknown instruction %q", tok)
			}
			in, consumed = OpInstr(op), 1
		}
		if err != nil {
			return nil, err
		}

		in.Dead = dead
		dead = false
		s.Instrs = append(s.Instrs, in)
		i += consumed
	}
	return s, nil
}

// parseLengthPrefixedPush reads a length token at toks[lengthIdx] (and, for
// a nonzero length, a following hex data token) into a KindPushBytes
// instruction. leading is the number of tokens (0 or 1, the OP_PUSHDATAn
// marker) that precede the length token; the returned consumed count
// includes it, so the caller can advance its cursor from the marker.
func parseLengthPrefixedPush(toks []string, lengthIdx, leading int) (Instr, int, error) {
	if lengthIdx >= len(toks) {
		return Instr{}, 0, fmt.Errorf("push marker missing a length token")
	}
	lengthTok := toks[lengthIdx]
	if !strings.HasPrefix(lengthTok, "0x") {
		return Instr{}, 0, fmt.Errorf("expected a 0x-prefixed length, found %q", lengthTok)
	}
	length, err := strconv.ParseUint(lengthTok[2:], 16, 32)
	if err != nil {
		return Instr{}, 0, fmt.Errorf("invalid push length %q: %w", lengthTok, err)
	}
	if length == 0 {
		return PushBytes(nil), leading + 1, nil
	}
	if lengthIdx+1 >= len(toks) {
		return Instr{}, 0, fmt.Errorf("push of length %d missing its data token", length)
	}
	dataTok := toks[lengthIdx+1]
	data, err := hex.DecodeString(dataTok)
	if err != nil {
		return Instr{}, 0, fmt.Errorf("invalid push data %q: %w", dataTok, err)
	}
	if uint64(len(data)) != length {
		return Instr{}, 0, fmt.Errorf("push declares length %d but data is %d bytes", length, len(data))
	}
	return PushBytes(data), leading + 2, nil
}

// opSmallInt reports n for a token spelled "OP_n" with 1 <= n <= 16, or 0
// if tok isn't one of those. 0 is never itself a valid result (OP_0 is
// handled separately, as the zero value), so it doubles as a found/not-found
// signal.
func opSmallInt(tok string) int64 {
	if !strings.HasPrefix(tok, "OP_") {
		return 0
	}
	digits := tok[len("OP_"):]
	if digits == "" {
		return 0
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 1 || n > 16 {
		return 0
	}
	return n
}

// Binary tag bytes, encoded ahead of each instruction.
const (
	tagOp byte = iota
	tagPushInt
	tagPushBytes
)

// Encode serializes s to a compact binary form suitable for embedding in a
// transaction. Dead instructions are dropped: the binary form is the
// validator's input, not a diagnostic artifact.
func Encode(s *Script) []byte {
	var buf []byte
	var varint [binary.MaxVarintLen64]byte

	for _, in := range s.Instrs {
		if in.Dead {
			continue
		}
		switch in.Kind {
		case KindOp:
			buf = append(buf, tagOp, byte(in.Op))

		case KindPushInt:
			raw := in.Int.Bytes()
			sign := byte(0)
			if in.Int.Sign() < 0 {
				sign = 1
			}
			n := binary.PutUvarint(varint[:], uint64(len(raw)))
			buf = append(buf, tagPushInt, sign)
			buf = append(buf, varint[:n]...)
			buf = append(buf, raw...)

		case KindPushBytes:
			n := binary.PutUvarint(varint[:], uint64(len(in.Bytes)))
			buf = append(buf, tagPushBytes)
			buf = append(buf, varint[:n]...)
			buf = append(buf, in.Bytes...)
		}
	}
	return buf
}

// Decode parses the binary form produced by Encode.
func Decode(data []byte) (*Script, error) {
	s := &Script{}
	for len(data) > 0 {
		tag := data[0]
		data = data[1:]
		switch tag {
		case tagOp:
			if len(data) < 1 {
				return nil, fmt.Errorf("truncated opcode")
			}
			s.Instrs = append(s.Instrs, OpInstr(Op(data[0])))
			data = data[1:]

		case tagPushInt:
			if len(data) < 1 {
				return nil, fmt.Errorf("truncated integer push")
			}
			sign := data[0]
			data = data[1:]
			length, n := binary.Uvarint(data)
			if n <= 0 {
				return nil, fmt.Errorf("invalid varint length prefix")
			}
			data = data[n:]
			if uint64(len(data)) < length {
				return nil, fmt.Errorf("truncated integer push magnitude")
			}
			v := new(big.Int).SetBytes(data[:length])
			if sign == 1 {
				v.Neg(v)
			}
			s.Instrs = append(s.Instrs, PushInt(v))
			data = data[length:]

		case tagPushBytes:
			length, n := binary.Uvarint(data)
			if n <= 0 {
				return nil, fmt.Errorf("invalid varint length prefix")
			}
			data = data[n:]
			if uint64(len(data)) < length {
				return nil, fmt.Errorf("truncated byte push")
			}
			s.Instrs = append(s.Instrs, PushBytes(append([]byte(nil), data[:length]...)))
			data = data[length:]

		default:
			return nil, fmt.Errorf("unknown instruction tag %d", tag)
		}
	}
	return s, nil
}
