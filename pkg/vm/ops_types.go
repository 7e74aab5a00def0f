package vm

import (
	"github.com/r3e-network/neo-go-core/pkg/vm/stackitem"
)

func opIsNull(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	e.Push(ctx, stackitem.NewBoolean(item.Type() == stackitem.TypeNull))
	return nil
}

func opIsType(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	target := stackitem.Type(instr.Operand[0])
	if !target.IsValid() || target == stackitem.TypeAny {
		return errInvalidOpcode
	}
	e.Push(ctx, stackitem.NewBoolean(item.Type() == target))
	return nil
}

func opConvert(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	target := stackitem.Type(instr.Operand[0])
	if !target.IsValid() {
		return errInvalidOpcode
	}
	converted, err := stackitem.Convert(item, target)
	if err != nil {
		return err
	}
	e.Push(ctx, converted)
	return nil
}
