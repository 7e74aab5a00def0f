package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/r3e-network/neo-go-core/pkg/vm/stackitem"
)

// jumpTarget computes the absolute offset for a short (1-byte signed) or
// long (4-byte signed) relative jump operand and validates it lands inside
// the current script.
func jumpTarget(ctx *ExecutionContext, instr Instruction, long bool) (int, error) {
	var rel int
	if long {
		rel = int(int32(binary.LittleEndian.Uint32(instr.Operand)))
	} else {
		rel = int(int8(instr.Operand[0]))
	}
	target := instr.Offset + rel
	if target < 0 || target >= ctx.Script.Len() {
		return 0, errOutOfScriptJump
	}
	return target, nil
}

func makeJump(long bool, cond func(*Engine, *ExecutionContext) (bool, error)) func(*Engine, *ExecutionContext, Instruction) error {
	return func(e *Engine, ctx *ExecutionContext, instr Instruction) error {
		target, err := jumpTarget(ctx, instr, long)
		if err != nil {
			return err
		}
		ok := true
		if cond != nil {
			ok, err = cond(e, ctx)
			if err != nil {
				return err
			}
		}
		if ok {
			ctx.IP = target
		}
		return nil
	}
}

func condAlways(e *Engine, ctx *ExecutionContext) (bool, error) { return true, nil }

func condIf(want bool) func(*Engine, *ExecutionContext) (bool, error) {
	return func(e *Engine, ctx *ExecutionContext) (bool, error) {
		item, err := e.Pop(ctx)
		if err != nil {
			return false, err
		}
		return item.Boolean() == want, nil
	}
}

func condCompareEq(want bool) func(*Engine, *ExecutionContext) (bool, error) {
	return func(e *Engine, ctx *ExecutionContext) (bool, error) {
		b, err := e.Pop(ctx)
		if err != nil {
			return false, err
		}
		a, err := e.Pop(ctx)
		if err != nil {
			return false, err
		}
		ai, bi, err := twoIntegers(a, b)
		if err != nil {
			return false, err
		}
		eq := ai.Big().Cmp(bi.Big()) == 0
		return eq == want, nil
	}
}

func condCompare(op func(c int) bool) func(*Engine, *ExecutionContext) (bool, error) {
	return func(e *Engine, ctx *ExecutionContext) (bool, error) {
		b, err := e.Pop(ctx)
		if err != nil {
			return false, err
		}
		a, err := e.Pop(ctx)
		if err != nil {
			return false, err
		}
		ai, bi, err := twoIntegers(a, b)
		if err != nil {
			return false, err
		}
		return op(ai.Big().Cmp(bi.Big())), nil
	}
}

func twoIntegers(a, b stackitem.Item) (stackitem.Integer, stackitem.Integer, error) {
	ai, ok := a.(stackitem.Integer)
	if !ok {
		return stackitem.Integer{}, stackitem.Integer{}, &stackitem.ErrInvalidConversion{From: a.Type(), To: stackitem.TypeInteger}
	}
	bi, ok := b.(stackitem.Integer)
	if !ok {
		return stackitem.Integer{}, stackitem.Integer{}, &stackitem.ErrInvalidConversion{From: b.Type(), To: stackitem.TypeInteger}
	}
	return ai, bi, nil
}

func opCall(long bool) func(*Engine, *ExecutionContext, Instruction) error {
	return func(e *Engine, ctx *ExecutionContext, instr Instruction) error {
		target, err := jumpTarget(ctx, instr, long)
		if err != nil {
			return err
		}
		nc := ctx.Clone(target, -1)
		if len(e.invocation) >= MaxInvocationStackSize {
			return errInvocationOverflow
		}
		e.invocation = append(e.invocation, nc)
		return nil
	}
}

func opCallA(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	ptr, ok := item.(stackitem.Pointer)
	if !ok {
		return fmt.Errorf("CALLA: %w", &stackitem.ErrInvalidConversion{From: item.Type(), To: stackitem.TypePointer})
	}
	if ptr.Position() < 0 || ptr.Position() >= ctx.Script.Len() {
		return errOutOfScriptJump
	}
	if len(e.invocation) >= MaxInvocationStackSize {
		return errInvocationOverflow
	}
	nc := ctx.Clone(ptr.Position(), -1)
	e.invocation = append(e.invocation, nc)
	return nil
}

func opCallT(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	token := binary.LittleEndian.Uint16(instr.Operand)
	entry, ok := ctx.CallTable[token]
	if !ok {
		return errNoCallTableEntry
	}
	if len(e.invocation) >= MaxInvocationStackSize {
		return errInvocationOverflow
	}
	nc := NewExecutionContext(entry.Script, entry.RVCount, nil)
	nc.IP = entry.Offset
	e.invocation = append(e.invocation, nc)
	return nil
}

func opAbort(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	return fmt.Errorf("%w: %v", errUncatchableFault, errAborted)
}

func opAbortMsg(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	msg, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", errUncatchableFault, msg.String())
}

func opAssert(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	if !item.Boolean() {
		return errAssertionFailed
	}
	return nil
}

func opAssertMsg(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	msg, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	if !item.Boolean() {
		return fmt.Errorf("%w: %s", errAssertionFailed, msg.String())
	}
	return nil
}

func opThrow(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	e.Throw(item)
	return nil
}

func opTry(long bool) func(*Engine, *ExecutionContext, Instruction) error {
	return func(e *Engine, ctx *ExecutionContext, instr Instruction) error {
		var catchOff, finallyOff int
		if long {
			catchOff = int(int32(binary.LittleEndian.Uint32(instr.Operand[0:4])))
			finallyOff = int(int32(binary.LittleEndian.Uint32(instr.Operand[4:8])))
		} else {
			catchOff = int(int8(instr.Operand[0]))
			finallyOff = int(int8(instr.Operand[1]))
		}
		rec := &TryRecord{State: TryStateTry}
		if catchOff != 0 {
			rec.HasCatch = true
			rec.CatchOffset = instr.Offset + catchOff
		}
		if finallyOff != 0 {
			rec.HasFinally = true
			rec.FinallyOffset = instr.Offset + finallyOff
		}
		return ctx.PushTry(rec)
	}
}

func opEndTry(long bool) func(*Engine, *ExecutionContext, Instruction) error {
	return func(e *Engine, ctx *ExecutionContext, instr Instruction) error {
		var endOff int
		if long {
			endOff = int(int32(binary.LittleEndian.Uint32(instr.Operand)))
		} else {
			endOff = int(int8(instr.Operand[0]))
		}
		rec := ctx.CurrentTry()
		if rec == nil {
			return errNotInTryContext
		}
		target := instr.Offset + endOff
		if target < 0 || target >= ctx.Script.Len() {
			return errOutOfScriptJump
		}
		if rec.HasFinally && rec.State != TryStateFinally {
			rec.State = TryStateFinally
			rec.EndOffset = target
			ctx.IP = rec.FinallyOffset
			return nil
		}
		if _, err := ctx.PopTry(); err != nil {
			return err
		}
		ctx.IP = target
		return nil
	}
}

func opEndFinally(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	rec, err := ctx.PopTry()
	if err != nil {
		return err
	}
	if e.pendingThrow != nil {
		payload := e.pendingThrow
		e.pendingThrow = nil
		e.Throw(payload)
		return nil
	}
	ctx.IP = rec.EndOffset
	return nil
}

func opRet(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	e.ReturnFromContext()
	return nil
}

func opSyscall(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	token := binary.LittleEndian.Uint32(instr.Operand)
	if e.host == nil {
		return errNoSyscall
	}
	handler, ok := e.host.Syscall(token)
	if !ok {
		return errNoSyscall
	}
	e.GasConsumed += e.host.SyscallPrice(token)
	if e.GasLimit > 0 && e.GasConsumed > e.GasLimit {
		return errGasLimitExceeded
	}
	return handler(e, ctx)
}
