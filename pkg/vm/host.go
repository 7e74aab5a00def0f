package vm

import (
	"crypto/sha256"
	"encoding/binary"
)

// SyscallToken derives the 32-bit token a SYSCALL operand encodes from an
// interop method name, the same first-4-bytes-of-SHA256 scheme the
// reference Neo VM uses so that a syscall name is a stable, collision-
// resistant token without a central registry file.
func SyscallToken(name string) uint32 {
	sum := sha256.Sum256([]byte(name))
	return binary.LittleEndian.Uint32(sum[:4])
}

type registeredSyscall struct {
	name    string
	price   int64
	handler SyscallHandler
}

// SimpleHost is a minimal, host-installed syscall table — deliberately
// not the engine's concern, only an external table the engine resolves
// tokens through. pkg/verifier and pkg/rpc each build one with
// just the interops their trigger needs.
type SimpleHost struct {
	calls              map[uint32]registeredSyscall
	defaultOpcodePrice int64
	opcodePrices       map[OpCode]int64
}

// NewSimpleHost returns a Host with no syscalls registered yet; every
// opcode costs defaultOpcodePrice unless overridden via SetOpcodePrice.
func NewSimpleHost(defaultOpcodePrice int64) *SimpleHost {
	return &SimpleHost{
		calls:              make(map[uint32]registeredSyscall),
		defaultOpcodePrice: defaultOpcodePrice,
		opcodePrices:       make(map[OpCode]int64),
	}
}

// Register installs handler under the token derived from name.
func (h *SimpleHost) Register(name string, price int64, handler SyscallHandler) {
	h.calls[SyscallToken(name)] = registeredSyscall{name: name, price: price, handler: handler}
}

// SetOpcodePrice overrides the flat per-opcode price for op.
func (h *SimpleHost) SetOpcodePrice(op OpCode, price int64) {
	h.opcodePrices[op] = price
}

func (h *SimpleHost) Syscall(token uint32) (SyscallHandler, bool) {
	rs, ok := h.calls[token]
	if !ok {
		return nil, false
	}
	return rs.handler, true
}

func (h *SimpleHost) OpcodePrice(op OpCode) int64 {
	if p, ok := h.opcodePrices[op]; ok {
		return p
	}
	return h.defaultOpcodePrice
}

func (h *SimpleHost) SyscallPrice(token uint32) int64 {
	if rs, ok := h.calls[token]; ok {
		return rs.price
	}
	return 0
}
