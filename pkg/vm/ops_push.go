package vm

import (
	"encoding/binary"
	"math/big"

	"github.com/r3e-network/neo-go-core/pkg/vm/stackitem"
)

func opNop(e *Engine, ctx *ExecutionContext, instr Instruction) error { return nil }

func opPushInt(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	// Little-endian two's-complement operand, width given by the opcode.
	b := make([]byte, len(instr.Operand))
	copy(b, instr.Operand)
	v := bytesLEToBigInt(b)
	e.Push(ctx, stackitem.NewInteger(v))
	return nil
}

// bytesLEToBigInt is a local mirror of stackitem's little-endian
// two's-complement decode, kept independent so pkg/vm never needs an
// unexported stackitem symbol.
func bytesLEToBigInt(b []byte) *big.Int {
	if len(b) == 0 {
		return big.NewInt(0)
	}
	be := make([]byte, len(b))
	for i, c := range b {
		be[len(b)-1-i] = c
	}
	neg := be[0]&0x80 != 0
	v := new(big.Int).SetBytes(be)
	if neg {
		mod := new(big.Int).Lsh(big.NewInt(1), uint(len(b)*8))
		v.Sub(v, mod)
	}
	return v
}

func opPushT(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	e.Push(ctx, stackitem.NewBoolean(true))
	return nil
}

func opPushF(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	e.Push(ctx, stackitem.NewBoolean(false))
	return nil
}

func opPushA(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	rel := int32(binary.LittleEndian.Uint32(instr.Operand))
	target := instr.Offset + int(rel)
	if target < 0 || target >= ctx.Script.Len() {
		return errOutOfScriptJump
	}
	e.Push(ctx, stackitem.NewPointer(nil, target))
	return nil
}

func opPushNull(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	e.Push(ctx, stackitem.Nil)
	return nil
}

func opPushData(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	var prefixLen int
	switch instr.Opcode {
	case PUSHDATA1:
		prefixLen = 1
	case PUSHDATA2:
		prefixLen = 2
	case PUSHDATA4:
		prefixLen = 4
	}
	data := instr.Operand[prefixLen:]
	if len(data) > MaxItemSize {
		return errItemTooBig
	}
	e.Push(ctx, stackitem.NewByteString(data))
	return nil
}

func opPushM1(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	e.Push(ctx, stackitem.NewIntegerFromInt64(-1))
	return nil
}

// makePushSmall returns a handler pushing the constant n (used for
// PUSH0..PUSH16, a contiguous opcode range).
func makePushSmall(n int64) func(*Engine, *ExecutionContext, Instruction) error {
	return func(e *Engine, ctx *ExecutionContext, instr Instruction) error {
		e.Push(ctx, stackitem.NewIntegerFromInt64(n))
		return nil
	}
}
