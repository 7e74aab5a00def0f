package verifier

import (
	"encoding/binary"
	"testing"

	"github.com/r3e-network/neo-go-core/pkg/vm"
)

func fakePubKey(seed byte) []byte {
	out := make([]byte, pubKeyLen)
	out[0] = 0x02
	out[1] = seed
	return out
}

func multiSigScript(m int, keys [][]byte) []byte {
	var out []byte
	emitInt := func(v int) {
		if v <= 16 {
			out = append(out, byte(vm.PUSH0)+byte(v))
			return
		}
		out = append(out, byte(vm.PUSHINT16))
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(v))
		out = append(out, b[:]...)
	}
	emitInt(m)
	for _, k := range keys {
		out = append(out, byte(vm.PUSHDATA1), byte(len(k)))
		out = append(out, k...)
	}
	emitInt(len(keys))
	out = append(out, byte(vm.SYSCALL))
	var tok [4]byte
	binary.LittleEndian.PutUint32(tok[:], checkMultisigToken)
	return append(out, tok[:]...)
}

func TestMatchSingleSigTemplate(t *testing.T) {
	pub := fakePubKey(1)
	script := []byte{byte(vm.PUSHDATA1), pubKeyLen}
	script = append(script, pub...)
	script = append(script, byte(vm.SYSCALL))
	var tok [4]byte
	binary.LittleEndian.PutUint32(tok[:], checkSigToken)
	script = append(script, tok[:]...)

	got, ok := matchSingleSig(script)
	if !ok {
		t.Fatal("canonical single-sig template must match")
	}
	if got[1] != 1 {
		t.Error("extracted key differs from the embedded one")
	}

	// A wrong syscall token must not match.
	script[len(script)-1] ^= 0xff
	if _, ok := matchSingleSig(script); ok {
		t.Error("tampered token must not match the single-sig template")
	}
}

func TestMatchMultiSigBounds(t *testing.T) {
	twoKeys := [][]byte{fakePubKey(1), fakePubKey(2)}

	m, keys, ok := matchMultiSig(multiSigScript(2, twoKeys))
	if !ok || m != 2 || len(keys) != 2 {
		t.Fatalf("2-of-2 must validate, got ok=%v m=%d keys=%d", ok, m, len(keys))
	}

	if _, _, ok := matchMultiSig(multiSigScript(3, twoKeys)); ok {
		t.Error("m > n must be rejected")
	}
	if _, _, ok := matchMultiSig(multiSigScript(0, twoKeys)); ok {
		t.Error("m == 0 must be rejected")
	}

	many := make([][]byte, 1025)
	for i := range many {
		many[i] = fakePubKey(byte(i))
	}
	if _, _, ok := matchMultiSig(multiSigScript(1, many)); ok {
		t.Error("n > 1024 must be rejected")
	}
}

func TestInvocationSignaturesShape(t *testing.T) {
	sig := make([]byte, sigLen)
	script := append([]byte{byte(vm.PUSHDATA1), sigLen}, sig...)
	script = append(script, byte(vm.PUSHDATA1), sigLen)
	script = append(script, sig...)

	sigs, ok := invocationSignatures(script)
	if !ok || len(sigs) != 2 {
		t.Fatalf("two pushed signatures must decode, got ok=%v n=%d", ok, len(sigs))
	}

	short := []byte{byte(vm.PUSHDATA1), 10}
	short = append(short, make([]byte, 10)...)
	if _, ok := invocationSignatures(short); ok {
		t.Error("a 10-byte push is not a signature")
	}
}
