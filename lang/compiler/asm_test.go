package compiler

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleScript() *Script {
	s := &Script{}
	s.pushInt(big.NewInt(3))
	s.emitOp(OP_DUP)
	s.pushBytes([]byte{0x12, 0x34})
	s.emitOp(OP_CAT)
	in := PushInt(big.NewInt(-7))
	in.Dead = true
	s.Instrs = append(s.Instrs, in)
	return s
}

func TestFormatDropsDeadInstructions(t *testing.T) {
	s := sampleScript()
	text := Format(s)
	require.Equal(t, "OP_3 OP_DUP 0x02 1234 OP_CAT\n", text)
}

func TestFormatEmptyScriptIsEmptyString(t *testing.T) {
	require.Equal(t, "", Format(&Script{}))
}

func TestFormatScenario1P2PKH(t *testing.T) {
	// spec.md Section 8 scenario 1.
	s := &Script{}
	s.emitOp(OP_DUP)
	s.emitOp(OP_HASH160)
	hash, err := hex.DecodeString("1010101010101010101010101010101010101010")
	require.NoError(t, err)
	s.pushBytes(hash)
	s.emitOp(OP_EQUALVERIFY)
	s.emitOp(OP_CHECKSIG)

	want := "OP_DUP OP_HASH160 0x14 1010101010101010101010101010101010101010 OP_EQUALVERIFY OP_CHECKSIG\n"
	require.Equal(t, want, Format(s))
}

func TestFormatLargeIntUsesMinimalPush(t *testing.T) {
	s := &Script{}
	s.pushInt(big.NewInt(17))
	require.Equal(t, "0x01 11\n", Format(s))
}

func TestFormatIntNeedingSignPaddingByte(t *testing.T) {
	// 0x80's high bit would be mistaken for the sign flag, so the minimal
	// encoding needs a trailing zero byte: 128 -> 0x80 0x00.
	s := &Script{}
	s.pushInt(big.NewInt(128))
	require.Equal(t, "0x02 8000\n", Format(s))
}

func TestFormatNegativeOneUsesSymbolicOpcode(t *testing.T) {
	s := &Script{}
	s.pushInt(big.NewInt(-1))
	require.Equal(t, "OP_1NEGATE\n", Format(s))
}

func TestFormatParseRoundTripForLiveInstructions(t *testing.T) {
	s := sampleScript()
	text := Format(s)
	parsed, err := Parse(text)
	require.NoError(t, err)

	live := make([]Instr, 0, s.Len())
	for _, in := range s.Instrs {
		if !in.Dead {
			live = append(live, in)
		}
	}
	require.Equal(t, len(live), len(parsed.Instrs))
	for i := range live {
		require.Equal(t, live[i].Kind, parsed.Instrs[i].Kind)
		require.False(t, parsed.Instrs[i].Dead)
		switch live[i].Kind {
		case KindPushInt:
			require.Equal(t, 0, live[i].Int.Cmp(parsed.Instrs[i].Int))
		case KindPushBytes:
			require.Equal(t, live[i].Bytes, parsed.Instrs[i].Bytes)
		case KindOp:
			require.Equal(t, live[i].Op, parsed.Instrs[i].Op)
		}
	}
}

func TestParseLargeIntReparsesAsBytes(t *testing.T) {
	// Past the symbolic OP_1..OP_16 range, a PushInt and a PushBytes of the
	// same minimal encoding are textually indistinguishable (spec.md Section
	// 4.5); Parse always recovers KindPushBytes in that case.
	s := &Script{}
	s.pushInt(big.NewInt(128))
	parsed, err := Parse(Format(s))
	require.NoError(t, err)
	require.Len(t, parsed.Instrs, 1)
	require.Equal(t, KindPushBytes, parsed.Instrs[0].Kind)
	require.Equal(t, []byte{0x80, 0x00}, parsed.Instrs[0].Bytes)
}

func TestParsePushData1(t *testing.T) {
	data := make([]byte, 0x4c)
	for i := range data {
		data[i] = byte(i)
	}
	s := &Script{}
	s.pushBytes(data)
	text := Format(s)
	require.Contains(t, text, "OP_PUSHDATA1 0x4c ")

	parsed, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, parsed.Instrs, 1)
	require.Equal(t, data, parsed.Instrs[0].Bytes)
}

func TestParseEmptyBytesPush(t *testing.T) {
	s, err := Parse("0x00\n")
	require.NoError(t, err)
	require.Len(t, s.Instrs, 1)
	require.Equal(t, KindPushBytes, s.Instrs[0].Kind)
	require.Empty(t, s.Instrs[0].Bytes)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := sampleScript()
	data := Encode(s)
	decoded, err := Decode(data)
	require.NoError(t, err)

	// Dead instructions are dropped by Encode.
	require.Equal(t, s.Len(), len(decoded.Instrs))
	live := 0
	for _, in := range s.Instrs {
		if in.Dead {
			continue
		}
		got := decoded.Instrs[live]
		require.Equal(t, in.Kind, got.Kind)
		switch in.Kind {
		case KindPushInt:
			require.Equal(t, 0, in.Int.Cmp(got.Int))
		case KindPushBytes:
			require.Equal(t, in.Bytes, got.Bytes)
		case KindOp:
			require.Equal(t, in.Op, got.Op)
		}
		live++
	}
}

func TestEncodeNegativeIntPreservesSign(t *testing.T) {
	s := &Script{}
	s.pushInt(big.NewInt(-42))
	data := Encode(s)
	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, decoded.Instrs, 1)
	require.Equal(t, int64(-42), decoded.Instrs[0].Int.Int64())
}

func TestParseUnknownInstructionErrors(t *testing.T) {
	_, err := Parse("OP_NOSUCHOP\n")
	require.Error(t, err)
}

func TestParseDeadInstructionMarker(t *testing.T) {
	s, err := Parse("; OP_DUP\nOP_DROP\n")
	require.NoError(t, err)
	require.Len(t, s.Instrs, 2)
	require.True(t, s.Instrs[0].Dead)
	require.False(t, s.Instrs[1].Dead)
}

func TestScriptLenExcludesDead(t *testing.T) {
	s := sampleScript()
	require.Equal(t, 4, s.Len())
	require.Len(t, s.Instrs, 5)
}
