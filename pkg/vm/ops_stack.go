package vm

import (
	"github.com/r3e-network/neo-go-core/pkg/vm/stackitem"
)

func popIndex(e *Engine, ctx *ExecutionContext) (int, error) {
	item, err := e.Pop(ctx)
	if err != nil {
		return 0, err
	}
	ii, ok := item.(stackitem.Integer)
	if !ok {
		return 0, &stackitem.ErrInvalidConversion{From: item.Type(), To: stackitem.TypeInteger}
	}
	return int(ii.Big().Int64()), nil
}

func opDepth(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	e.Push(ctx, stackitem.NewIntegerFromInt64(int64(ctx.EvalStack.Len())))
	return nil
}

func opDrop(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	_, err := e.Pop(ctx)
	return err
}

func opNip(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	item, err := ctx.EvalStack.RemoveAt(1)
	if err != nil {
		return err
	}
	e.refCounter.Remove(item)
	return nil
}

func opXDrop(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	n, err := popIndex(e, ctx)
	if err != nil {
		return err
	}
	item, err := ctx.EvalStack.RemoveAt(n)
	if err != nil {
		return errOutOfRangeIndex
	}
	e.refCounter.Remove(item)
	return nil
}

func opClear(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	for _, item := range ctx.EvalStack.items {
		e.refCounter.Remove(item)
	}
	ctx.EvalStack.Clear()
	return nil
}

func opDup(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	item, err := ctx.EvalStack.Peek(0)
	if err != nil {
		return err
	}
	e.Push(ctx, item)
	return nil
}

func opOver(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	item, err := ctx.EvalStack.Peek(1)
	if err != nil {
		return err
	}
	e.Push(ctx, item)
	return nil
}

func opPick(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	n, err := popIndex(e, ctx)
	if err != nil {
		return err
	}
	item, err := ctx.EvalStack.Peek(n)
	if err != nil {
		return errOutOfRangeIndex
	}
	e.Push(ctx, item)
	return nil
}

func opTuck(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	item, err := ctx.EvalStack.Peek(0)
	if err != nil {
		return err
	}
	if err := ctx.EvalStack.InsertAt(2, item); err != nil {
		return err
	}
	e.refCounter.Add(item)
	return nil
}

func opSwap(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	a, err := ctx.EvalStack.RemoveAt(1)
	if err != nil {
		return err
	}
	if err := ctx.EvalStack.InsertAt(0, a); err != nil {
		return err
	}
	return nil
}

func opRot(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	a, err := ctx.EvalStack.RemoveAt(2)
	if err != nil {
		return err
	}
	if err := ctx.EvalStack.InsertAt(0, a); err != nil {
		return err
	}
	return nil
}

func opRoll(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	n, err := popIndex(e, ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	item, err := ctx.EvalStack.RemoveAt(n)
	if err != nil {
		return errOutOfRangeIndex
	}
	return ctx.EvalStack.InsertAt(0, item)
}

func opReverseN(n int) func(*Engine, *ExecutionContext, Instruction) error {
	return func(e *Engine, ctx *ExecutionContext, instr Instruction) error {
		return reverseTop(ctx, n)
	}
}

func opReverseN_(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	n, err := popIndex(e, ctx)
	if err != nil {
		return err
	}
	return reverseTop(ctx, n)
}

func reverseTop(ctx *ExecutionContext, n int) error {
	if n < 0 || n > ctx.EvalStack.Len() {
		return errOutOfRangeIndex
	}
	if n <= 1 {
		return nil
	}
	items := ctx.EvalStack.items
	base := len(items) - n
	for l, r := base, len(items)-1; l < r; l, r = l+1, r-1 {
		items[l], items[r] = items[r], items[l]
	}
	return nil
}
