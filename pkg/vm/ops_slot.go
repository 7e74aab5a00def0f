package vm

func opInitSSlot(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	if ctx.StaticFields != nil {
		return errSlotAlreadyInit
	}
	n := int(instr.Operand[0])
	ctx.StaticFields = newSlotVector(n, e.refCounter)
	ctx.ownsStatics = true
	return nil
}

func opInitSlot(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	if ctx.LocalVars != nil || ctx.Arguments != nil {
		return errSlotAlreadyInit
	}
	locals := int(instr.Operand[0])
	args := int(instr.Operand[1])
	ctx.LocalVars = newSlotVector(locals, e.refCounter)
	ctx.Arguments = newSlotVector(args, e.refCounter)
	for i := args - 1; i >= 0; i-- {
		item, err := e.Pop(ctx)
		if err != nil {
			return err
		}
		if err := ctx.Arguments.Store(i, item); err != nil {
			return err
		}
	}
	return nil
}

func loadSlot(vec func(*ExecutionContext) *slotVector) func(int) func(*Engine, *ExecutionContext, Instruction) error {
	return func(idx int) func(*Engine, *ExecutionContext, Instruction) error {
		return func(e *Engine, ctx *ExecutionContext, instr Instruction) error {
			item, err := vec(ctx).Load(idx)
			if err != nil {
				return err
			}
			e.Push(ctx, item)
			return nil
		}
	}
}

func loadSlotOperand(vec func(*ExecutionContext) *slotVector) func(*Engine, *ExecutionContext, Instruction) error {
	return func(e *Engine, ctx *ExecutionContext, instr Instruction) error {
		idx := int(instr.Operand[0])
		item, err := vec(ctx).Load(idx)
		if err != nil {
			return err
		}
		e.Push(ctx, item)
		return nil
	}
}

func storeSlot(vec func(*ExecutionContext) *slotVector) func(int) func(*Engine, *ExecutionContext, Instruction) error {
	return func(idx int) func(*Engine, *ExecutionContext, Instruction) error {
		return func(e *Engine, ctx *ExecutionContext, instr Instruction) error {
			item, err := e.Pop(ctx)
			if err != nil {
				return err
			}
			return vec(ctx).Store(idx, item)
		}
	}
}

func storeSlotOperand(vec func(*ExecutionContext) *slotVector) func(*Engine, *ExecutionContext, Instruction) error {
	return func(e *Engine, ctx *ExecutionContext, instr Instruction) error {
		idx := int(instr.Operand[0])
		item, err := e.Pop(ctx)
		if err != nil {
			return err
		}
		return vec(ctx).Store(idx, item)
	}
}

func staticFields(ctx *ExecutionContext) *slotVector { return ctx.StaticFields }
func localVars(ctx *ExecutionContext) *slotVector     { return ctx.LocalVars }
func arguments(ctx *ExecutionContext) *slotVector     { return ctx.Arguments }
