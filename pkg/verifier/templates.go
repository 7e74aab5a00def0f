package verifier

import (
	"encoding/binary"

	"github.com/r3e-network/neo-go-core/pkg/vm"
)

// The two syscalls the recognised verification templates dispatch to.
// Tokens are derived the same way the engine's
// SYSCALL operand resolves any other interop (vm.SyscallToken).
const (
	SyscallCheckSig      = "Neo.Crypto.CheckSig"
	SyscallCheckMultisig = "Neo.Crypto.CheckMultisig"
)

var (
	checkSigToken      = vm.SyscallToken(SyscallCheckSig)
	checkMultisigToken = vm.SyscallToken(SyscallCheckMultisig)
)

const (
	pubKeyLen = 33
	sigLen    = 64
)

// decodeSmallPush reads a PUSH opcode encoding a small non-negative
// integer (PUSH0..PUSH16, or PUSHINT8/16 for m/n beyond 16 — committee
// size 21 needs this), returning the value and the number of bytes
// consumed, or ok=false if b doesn't start with a recognised push.
func decodeSmallPush(b []byte) (value int, consumed int, ok bool) {
	if len(b) == 0 {
		return 0, 0, false
	}
	op := vm.OpCode(b[0])
	switch {
	case op >= vm.PUSH0 && op <= vm.PUSH16:
		return int(op - vm.PUSH0), 1, true
	case op == vm.PUSHINT8:
		if len(b) < 2 {
			return 0, 0, false
		}
		return int(int8(b[1])), 2, true
	case op == vm.PUSHINT16:
		if len(b) < 3 {
			return 0, 0, false
		}
		return int(int16(binary.LittleEndian.Uint16(b[1:3]))), 3, true
	default:
		return 0, 0, false
	}
}

// matchSingleSig reports whether script is exactly the canonical
// single-signature verification template and, if so, returns the embedded
// 33-byte compressed public key.
func matchSingleSig(script []byte) (pubKey []byte, ok bool) {
	// PUSHDATA1 33 <pubkey> SYSCALL <token>
	const want = 1 + 1 + pubKeyLen + 1 + 4
	if len(script) != want {
		return nil, false
	}
	if vm.OpCode(script[0]) != vm.PUSHDATA1 || script[1] != pubKeyLen {
		return nil, false
	}
	pubKey = script[2 : 2+pubKeyLen]
	rest := script[2+pubKeyLen:]
	if vm.OpCode(rest[0]) != vm.SYSCALL {
		return nil, false
	}
	token := binary.LittleEndian.Uint32(rest[1:5])
	if token != checkSigToken {
		return nil, false
	}
	return pubKey, true
}

// matchMultiSig reports whether script is exactly the canonical multi-sig
// verification template; m > n, m == 0, and n > 1024 are rejected at
// template validation.
func matchMultiSig(script []byte) (m int, pubKeys [][]byte, ok bool) {
	pos := 0
	m, n1, ok := decodeSmallPush(script[pos:])
	if !ok {
		return 0, nil, false
	}
	pos += n1

	var keys [][]byte
	for {
		if pos >= len(script) {
			return 0, nil, false
		}
		if vm.OpCode(script[pos]) != vm.PUSHDATA1 {
			break
		}
		if pos+1 >= len(script) || script[pos+1] != pubKeyLen {
			return 0, nil, false
		}
		start := pos + 2
		if start+pubKeyLen > len(script) {
			return 0, nil, false
		}
		keys = append(keys, script[start:start+pubKeyLen])
		pos = start + pubKeyLen
	}

	n, consumed, ok := decodeSmallPush(script[pos:])
	if !ok {
		return 0, nil, false
	}
	pos += consumed

	if pos+5 != len(script) {
		return 0, nil, false
	}
	if vm.OpCode(script[pos]) != vm.SYSCALL {
		return 0, nil, false
	}
	token := binary.LittleEndian.Uint32(script[pos+1 : pos+5])
	if token != checkMultisigToken {
		return 0, nil, false
	}

	if n != len(keys) {
		return 0, nil, false
	}
	if m <= 0 || m > n || n > 1024 {
		return 0, nil, false
	}
	return m, keys, true
}

// extractPushedData reads a single `PUSHDATA1 len <data>` instruction from
// the front of b, used to pull a signature out of an invocation script.
// Returns the data and bytes consumed.
func extractPushedData(b []byte) (data []byte, consumed int, ok bool) {
	if len(b) < 2 || vm.OpCode(b[0]) != vm.PUSHDATA1 {
		return nil, 0, false
	}
	n := int(b[1])
	if len(b) < 2+n {
		return nil, 0, false
	}
	return b[2 : 2+n], 2 + n, true
}

// invocationSignatures splits an invocation script into its ordered list
// of PUSHDATA1-pushed signatures — the shape both the single-sig and
// multi-sig invocation scripts share, just with a different count.
func invocationSignatures(script []byte) ([][]byte, bool) {
	var sigs [][]byte
	pos := 0
	for pos < len(script) {
		data, consumed, ok := extractPushedData(script[pos:])
		if !ok || len(data) != sigLen {
			return nil, false
		}
		sigs = append(sigs, data)
		pos += consumed
	}
	return sigs, true
}
