package vm

import (
	"math/big"

	"github.com/r3e-network/neo-go-core/pkg/vm/stackitem"
)

func popInt(e *Engine, ctx *ExecutionContext) (*big.Int, error) {
	item, err := e.Pop(ctx)
	if err != nil {
		return nil, err
	}
	ii, ok := item.(stackitem.Integer)
	if !ok {
		return nil, &stackitem.ErrInvalidConversion{From: item.Type(), To: stackitem.TypeInteger}
	}
	return ii.Big(), nil
}

func pushIntChecked(e *Engine, ctx *ExecutionContext, v *big.Int) error {
	if !bigFits(v) {
		return errItemTooBig
	}
	e.Push(ctx, stackitem.NewInteger(v))
	return nil
}

// bigFits mirrors stackitem's internal 32-byte two's-complement bound
// check; duplicated here (rather than exported from stackitem) because it
// is purely an arithmetic-opcode concern, not part of the value model.
func bigFits(v *big.Int) bool {
	if v.Sign() == 0 {
		return true
	}
	var bitLen int
	if v.Sign() < 0 {
		abs := new(big.Int).Abs(v)
		abs.Sub(abs, big.NewInt(1))
		bitLen = abs.BitLen() + 1
	} else {
		bitLen = v.BitLen() + 1
	}
	return bitLen <= 256
}

func makeUnaryInt(f func(*big.Int) (*big.Int, error)) func(*Engine, *ExecutionContext, Instruction) error {
	return func(e *Engine, ctx *ExecutionContext, instr Instruction) error {
		v, err := popInt(e, ctx)
		if err != nil {
			return err
		}
		r, err := f(v)
		if err != nil {
			return err
		}
		return pushIntChecked(e, ctx, r)
	}
}

func makeBinaryInt(f func(a, b *big.Int) (*big.Int, error)) func(*Engine, *ExecutionContext, Instruction) error {
	return func(e *Engine, ctx *ExecutionContext, instr Instruction) error {
		b, err := popInt(e, ctx)
		if err != nil {
			return err
		}
		a, err := popInt(e, ctx)
		if err != nil {
			return err
		}
		r, err := f(a, b)
		if err != nil {
			return err
		}
		return pushIntChecked(e, ctx, r)
	}
}

func makeBinaryBool(f func(a, b *big.Int) bool) func(*Engine, *ExecutionContext, Instruction) error {
	return func(e *Engine, ctx *ExecutionContext, instr Instruction) error {
		b, err := popInt(e, ctx)
		if err != nil {
			return err
		}
		a, err := popInt(e, ctx)
		if err != nil {
			return err
		}
		e.Push(ctx, stackitem.NewBoolean(f(a, b)))
		return nil
	}
}

// Bitwise (operate on the two's-complement representation directly).
func opInvert(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	return makeUnaryInt(func(v *big.Int) (*big.Int, error) {
		return new(big.Int).Not(v), nil
	})(e, ctx, instr)
}

var opAnd = makeBinaryInt(func(a, b *big.Int) (*big.Int, error) { return new(big.Int).And(a, b), nil })
var opOr = makeBinaryInt(func(a, b *big.Int) (*big.Int, error) { return new(big.Int).Or(a, b), nil })
var opXor = makeBinaryInt(func(a, b *big.Int) (*big.Int, error) { return new(big.Int).Xor(a, b), nil })

func opEqual(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	b, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	a, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	eq, err := stackitem.Equals(a, b)
	if err != nil {
		return err
	}
	e.Push(ctx, stackitem.NewBoolean(eq))
	return nil
}

func opNotEqual(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	b, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	a, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	eq, err := stackitem.Equals(a, b)
	if err != nil {
		return err
	}
	e.Push(ctx, stackitem.NewBoolean(!eq))
	return nil
}

// Arithmetic.
var opSign = func(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	v, err := popInt(e, ctx)
	if err != nil {
		return err
	}
	e.Push(ctx, stackitem.NewIntegerFromInt64(int64(v.Sign())))
	return nil
}

var opAbs = makeUnaryInt(func(v *big.Int) (*big.Int, error) { return new(big.Int).Abs(v), nil })
var opNegate = makeUnaryInt(func(v *big.Int) (*big.Int, error) { return new(big.Int).Neg(v), nil })
var opInc = makeUnaryInt(func(v *big.Int) (*big.Int, error) { return new(big.Int).Add(v, big.NewInt(1)), nil })
var opDec = makeUnaryInt(func(v *big.Int) (*big.Int, error) { return new(big.Int).Sub(v, big.NewInt(1)), nil })
var opAdd = makeBinaryInt(func(a, b *big.Int) (*big.Int, error) { return new(big.Int).Add(a, b), nil })
var opSub = makeBinaryInt(func(a, b *big.Int) (*big.Int, error) { return new(big.Int).Sub(a, b), nil })
var opMul = makeBinaryInt(func(a, b *big.Int) (*big.Int, error) { return new(big.Int).Mul(a, b), nil })

var opDiv = makeBinaryInt(func(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, errDivideByZero
	}
	return new(big.Int).Quo(a, b), nil
})

var opMod = makeBinaryInt(func(a, b *big.Int) (*big.Int, error) {
	if b.Sign() == 0 {
		return nil, errDivideByZero
	}
	return new(big.Int).Rem(a, b), nil
})

var opPow = makeBinaryInt(func(a, b *big.Int) (*big.Int, error) {
	if b.Sign() < 0 {
		return nil, errNegativeExponent
	}
	if b.BitLen() > 32 {
		return nil, errItemTooBig
	}
	return new(big.Int).Exp(a, b, nil), nil
})

var opSqrt = makeUnaryInt(func(v *big.Int) (*big.Int, error) {
	if v.Sign() < 0 {
		return nil, errNegativeSqrtOperand
	}
	return new(big.Int).Sqrt(v), nil
})

func opModMul(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	m, err := popInt(e, ctx)
	if err != nil {
		return err
	}
	b, err := popInt(e, ctx)
	if err != nil {
		return err
	}
	a, err := popInt(e, ctx)
	if err != nil {
		return err
	}
	if m.Sign() == 0 {
		return errDivideByZero
	}
	r := new(big.Int).Mul(a, b)
	r.Mod(r, m)
	return pushIntChecked(e, ctx, r)
}

func opModPow(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	m, err := popInt(e, ctx)
	if err != nil {
		return err
	}
	exp, err := popInt(e, ctx)
	if err != nil {
		return err
	}
	base, err := popInt(e, ctx)
	if err != nil {
		return err
	}
	if m.Sign() == 0 {
		return errDivideByZero
	}
	if exp.Sign() < 0 {
		if m.Cmp(big.NewInt(1)) == 0 {
			return pushIntChecked(e, ctx, big.NewInt(0))
		}
		inv := new(big.Int).ModInverse(base, m)
		if inv == nil {
			return errDivideByZero
		}
		r := new(big.Int).Exp(inv, new(big.Int).Neg(exp), m)
		return pushIntChecked(e, ctx, r)
	}
	r := new(big.Int).Exp(base, exp, m)
	return pushIntChecked(e, ctx, r)
}

var opShl = makeBinaryInt(func(a, shift *big.Int) (*big.Int, error) {
	if shift.Sign() < 0 {
		return nil, errNegativeShift
	}
	if shift.Cmp(big.NewInt(MaxShift)) > 0 {
		return nil, errShiftTooLarge
	}
	return new(big.Int).Lsh(a, uint(shift.Int64())), nil
})

var opShr = makeBinaryInt(func(a, shift *big.Int) (*big.Int, error) {
	if shift.Sign() < 0 {
		return nil, errNegativeShift
	}
	if shift.Cmp(big.NewInt(MaxShift)) > 0 {
		return nil, errShiftTooLarge
	}
	return new(big.Int).Rsh(a, uint(shift.Int64())), nil
})

func opNot(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	item, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	e.Push(ctx, stackitem.NewBoolean(!item.Boolean()))
	return nil
}

func opBoolAnd(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	b, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	a, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	e.Push(ctx, stackitem.NewBoolean(a.Boolean() && b.Boolean()))
	return nil
}

func opBoolOr(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	b, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	a, err := e.Pop(ctx)
	if err != nil {
		return err
	}
	e.Push(ctx, stackitem.NewBoolean(a.Boolean() || b.Boolean()))
	return nil
}

func opNz(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	v, err := popInt(e, ctx)
	if err != nil {
		return err
	}
	e.Push(ctx, stackitem.NewBoolean(v.Sign() != 0))
	return nil
}

var opNumEqual = makeBinaryBool(func(a, b *big.Int) bool { return a.Cmp(b) == 0 })
var opNumNotEqual = makeBinaryBool(func(a, b *big.Int) bool { return a.Cmp(b) != 0 })
var opLt = makeBinaryBool(func(a, b *big.Int) bool { return a.Cmp(b) < 0 })
var opLe = makeBinaryBool(func(a, b *big.Int) bool { return a.Cmp(b) <= 0 })
var opGt = makeBinaryBool(func(a, b *big.Int) bool { return a.Cmp(b) > 0 })
var opGe = makeBinaryBool(func(a, b *big.Int) bool { return a.Cmp(b) >= 0 })

var opMin = makeBinaryInt(func(a, b *big.Int) (*big.Int, error) {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a), nil
	}
	return new(big.Int).Set(b), nil
})

var opMax = makeBinaryInt(func(a, b *big.Int) (*big.Int, error) {
	if a.Cmp(b) >= 0 {
		return new(big.Int).Set(a), nil
	}
	return new(big.Int).Set(b), nil
})

func opWithin(e *Engine, ctx *ExecutionContext, instr Instruction) error {
	b, err := popInt(e, ctx)
	if err != nil {
		return err
	}
	a, err := popInt(e, ctx)
	if err != nil {
		return err
	}
	x, err := popInt(e, ctx)
	if err != nil {
		return err
	}
	e.Push(ctx, stackitem.NewBoolean(a.Cmp(x) <= 0 && x.Cmp(b) < 0))
	return nil
}
