package vm

import (
	"github.com/r3e-network/neo-go-core/pkg/vm/stackitem"
)

func toBytes(item stackitem.Item) ([]byte, error) {
	switch v := item.(type) {
	case stackitem.ByteString:
		return []byte(v), nil
	case *stackitem.Buffer:
		return v.Bytes(), nil
	default:
		return item.ToByteArray()
	}
}

func opNewBuffer(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	n, err := popIndex(e, ctx)
	if err != nil {
		return err
	}
	if n < 0 || n > MaxItemSize {
		return errItemTooBig
	}
	e.Push(ctx, stackitem.NewBuffer(n))
	return nil
}

func opMemcpy(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	count, err := popIndex(e, ctx)
	if err != nil {
		return err
	}
	srcIndex, err := popIndex(e, ctx)
	if err != nil {
		return err
	}
	srcItem, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	dstIndex, err := popIndex(e, ctx)
	if err != nil {
		return err
	}
	dstItem, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	dst, ok := dstItem.(*stackitem.Buffer)
	if !ok {
		return &stackitem.ErrInvalidConversion{From: dstItem.Type(), To: stackitem.TypeBuffer}
	}
	src, err := toBytes(srcItem)
	if err != nil {
		return err
	}
	if count < 0 || srcIndex < 0 || dstIndex < 0 {
		return errOutOfRangeIndex
	}
	if srcIndex+count > len(src) || dstIndex+count > len(dst.Bytes()) {
		return errOutOfRangeIndex
	}
	copy(dst.Bytes()[dstIndex:dstIndex+count], src[srcIndex:srcIndex+count])
	return nil
}

func opCat(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	b, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	a, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	ab, err := toBytes(a)
	if err != nil {
		return err
	}
	bb, err := toBytes(b)
	if err != nil {
		return err
	}
	if len(ab)+len(bb) > MaxItemSize {
		return errItemTooBig
	}
	out := make([]byte, 0, len(ab)+len(bb))
	out = append(out, ab...)
	out = append(out, bb...)
	e.Push(ctx, stackitem.NewBufferFromBytes(out))
	return nil
}

func opSubstr(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	count, err := popIndex(e, ctx)
	if err != nil {
		return err
	}
	index, err := popIndex(e, ctx)
	if err != nil {
		return err
	}
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	b, err := toBytes(item)
	if err != nil {
		return err
	}
	if count < 0 || index < 0 || index+count > len(b) {
		return errOutOfRangeIndex
	}
	e.Push(ctx, stackitem.NewByteString(b[index:index+count]))
	return nil
}

func opLeft(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	count, err := popIndex(e, ctx)
	if err != nil {
		return err
	}
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	b, err := toBytes(item)
	if err != nil {
		return err
	}
	if count < 0 || count > len(b) {
		return errOutOfRangeIndex
	}
	e.Push(ctx, stackitem.NewByteString(b[:count]))
	return nil
}

func opRight(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	count, err := popIndex(e, ctx)
	if err != nil {
		return err
	}
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	b, err := toBytes(item)
	if err != nil {
		return err
	}
	if count < 0 || count > len(b) {
		return errOutOfRangeIndex
	}
	e.Push(ctx, stackitem.NewByteString(b[len(b)-count:]))
	return nil
}
