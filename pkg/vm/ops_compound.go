package vm

import (
	"github.com/r3e-network/neo-go-core/pkg/vm/stackitem"
)

// Compound mutations never touch the reference counter directly: object
// edges are derived from each tracked item's live children at the post-step
// scan, so the counter observes every new edge before the
// next opcode runs. Only stack positions (Push/Pop) carry explicit refs.

func opPack(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	n, err := popIndex(e, ctx)
	if err != nil {
		return err
	}
	if n < 0 || n > ctx.EvalStack.Len() {
		return errOutOfRangeIndex
	}
	items := make([]stackitem.Item, n)
	for i := 0; i < n; i++ {
		item, err := e.Pop(ctx)
		if err != nil {
			return err
		}
		items[i] = item
	}
	e.Push(ctx, stackitem.NewArray(items))
	return nil
}

func opPackStruct(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	n, err := popIndex(e, ctx)
	if err != nil {
		return err
	}
	if n < 0 || n > ctx.EvalStack.Len() {
		return errOutOfRangeIndex
	}
	items := make([]stackitem.Item, n)
	for i := 0; i < n; i++ {
		item, err := e.Pop(ctx)
		if err != nil {
			return err
		}
		items[i] = item
	}
	e.Push(ctx, stackitem.NewStruct(items))
	return nil
}

func opPackMap(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	n, err := popIndex(e, ctx)
	if err != nil {
		return err
	}
	if n < 0 || n > ctx.EvalStack.Len()/2 {
		return errOutOfRangeIndex
	}
	m := stackitem.NewMap()
	for i := 0; i < n; i++ {
		v, err := e.Pop(ctx)
		if err != nil {
			return err
		}
		k, err := e.Pop(ctx)
		if err != nil {
			return err
		}
		if err := m.Set(k, v); err != nil {
			return err
		}
	}
	e.Push(ctx, m)
	return nil
}

func opUnpack(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	arr, ok := item.(stackitem.ListLike)
	if !ok {
		return &stackitem.ErrInvalidConversion{From: item.Type(), To: stackitem.TypeArray}
	}
	children := arr.Items()
	for i := len(children) - 1; i >= 0; i-- {
		e.Push(ctx, children[i])
	}
	e.Push(ctx, stackitem.NewIntegerFromInt64(int64(len(children))))
	return nil
}

func opNewArray0(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	e.Push(ctx, stackitem.NewArray(nil))
	return nil
}

func opNewStruct0(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	e.Push(ctx, stackitem.NewStruct(nil))
	return nil
}

func makeNewCompound(isStruct bool) func(*Engine, *ExecutionContext, Instruction) error {
	return func(e *Engine, ctx *ExecutionContext, instr Instruction) error {
		n, err := popIndex(e, ctx)
		if err != nil {
			return err
		}
		if n < 0 || n > MaxInitialElementCount {
			return errInitialCountTooBig
		}
		items := make([]stackitem.Item, n)
		for i := range items {
			items[i] = stackitem.Nil
		}
		if isStruct {
			e.Push(ctx, stackitem.NewStruct(items))
		} else {
			e.Push(ctx, stackitem.NewArray(items))
		}
		return nil
	}
}

var opNewArray = makeNewCompound(false)
var opNewStruct = makeNewCompound(true)

func opNewArrayT(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	// NEWARRAY_T carries a type operand but every slot still starts out
	// Null; the type only constrains later SETITEM/APPEND conversions,
	// which this engine does not currently enforce at that granularity.
	return opNewArray(e, ctx, instr)
}

func opNewMap(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	e.Push(ctx, stackitem.NewMap())
	return nil
}

func opSize(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	switch v := item.(type) {
	case stackitem.ListLike:
		e.Push(ctx, stackitem.NewIntegerFromInt64(int64(v.Len())))
	case *stackitem.MapItem:
		e.Push(ctx, stackitem.NewIntegerFromInt64(int64(v.Len())))
	default:
		b, err := toBytes(item)
		if err != nil {
			return err
		}
		e.Push(ctx, stackitem.NewIntegerFromInt64(int64(len(b))))
	}
	return nil
}

func opHasKey(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	key, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	switch v := item.(type) {
	case *stackitem.MapItem:
		e.Push(ctx, stackitem.NewBoolean(v.Has(key)))
	case stackitem.ListLike:
		idx, err := toIndex(key)
		if err != nil {
			return err
		}
		e.Push(ctx, stackitem.NewBoolean(idx >= 0 && idx < v.Len()))
	default:
		return &stackitem.ErrInvalidConversion{From: item.Type(), To: stackitem.TypeArray}
	}
	return nil
}

func opKeys(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	m, ok := item.(*stackitem.MapItem)
	if !ok {
		return &stackitem.ErrInvalidConversion{From: item.Type(), To: stackitem.TypeMap}
	}
	keys := append([]stackitem.Item(nil), m.Keys()...)
	e.Push(ctx, stackitem.NewArray(keys))
	return nil
}

func opValues(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	switch v := item.(type) {
	case *stackitem.MapItem:
		vals := append([]stackitem.Item(nil), v.Values()...)
		e.Push(ctx, stackitem.NewArray(vals))
	case stackitem.ListLike:
		vals := append([]stackitem.Item(nil), v.Items()...)
		e.Push(ctx, stackitem.NewArray(vals))
	default:
		return &stackitem.ErrInvalidConversion{From: item.Type(), To: stackitem.TypeArray}
	}
	return nil
}

func toIndex(item stackitem.Item) (int, error) {
	ii, ok := item.(stackitem.Integer)
	if !ok {
		return 0, &stackitem.ErrInvalidConversion{From: item.Type(), To: stackitem.TypeInteger}
	}
	return int(ii.Big().Int64()), nil
}

func opPickItem(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	key, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	switch v := item.(type) {
	case *stackitem.MapItem:
		val, ok := v.Get(key)
		if !ok {
			return errOutOfRangeIndex
		}
		e.Push(ctx, val)
	case stackitem.ListLike:
		idx, err := toIndex(key)
		if err != nil {
			return err
		}
		if idx < 0 || idx >= v.Len() {
			return errOutOfRangeIndex
		}
		e.Push(ctx, v.At(idx))
	default:
		b, err := toBytes(item)
		if err != nil {
			return err
		}
		idx, err := toIndex(key)
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(b) {
			return errOutOfRangeIndex
		}
		e.Push(ctx, stackitem.NewIntegerFromInt64(int64(b[idx])))
	}
	return nil
}

func opAppend(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	target, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	v, ok := target.(stackitem.ListLike)
	if !ok {
		return &stackitem.ErrInvalidConversion{From: target.Type(), To: stackitem.TypeArray}
	}
	if v.Len() >= MaxInitialElementCount {
		return errInitialCountTooBig
	}
	v.Append(item)
	return nil
}

func opSetItem(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	value, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	key, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	target, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	switch v := target.(type) {
	case *stackitem.MapItem:
		if err := v.Set(key, value); err != nil {
			return err
		}
	case stackitem.ListLike:
		idx, err := toIndex(key)
		if err != nil {
			return err
		}
		if idx < 0 || idx >= v.Len() {
			return errOutOfRangeIndex
		}
		v.Set(idx, value)
	default:
		return &stackitem.ErrInvalidConversion{From: target.Type(), To: stackitem.TypeArray}
	}
	return nil
}

func opReverseItems(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	v, ok := item.(stackitem.ListLike)
	if !ok {
		return &stackitem.ErrInvalidConversion{From: item.Type(), To: stackitem.TypeArray}
	}
	v.Reverse()
	return nil
}

func opRemove(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	key, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	switch v := item.(type) {
	case *stackitem.MapItem:
		v.Delete(key)
	case stackitem.ListLike:
		idx, err := toIndex(key)
		if err != nil {
			return err
		}
		if idx < 0 || idx >= v.Len() {
			return errOutOfRangeIndex
		}
		v.RemoveAt(idx)
	default:
		return &stackitem.ErrInvalidConversion{From: item.Type(), To: stackitem.TypeArray}
	}
	return nil
}

func opClearItems(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	switch v := item.(type) {
	case *stackitem.MapItem:
		v.Clear()
	case stackitem.ListLike:
		v.Clear()
	default:
		return &stackitem.ErrInvalidConversion{From: item.Type(), To: stackitem.TypeArray}
	}
	return nil
}

func opPopItem(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	v, ok := item.(stackitem.ListLike)
	if !ok {
		return &stackitem.ErrInvalidConversion{From: item.Type(), To: stackitem.TypeArray}
	}
	if v.Len() == 0 {
		return errOutOfRangeIndex
	}
	last := v.At(v.Len() - 1)
	v.RemoveAt(v.Len() - 1)
	e.Push(ctx, last)
	return nil
}
