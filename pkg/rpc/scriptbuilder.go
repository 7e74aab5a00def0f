package rpc

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/r3e-network/neo-go-core/pkg/core/transaction"
	"github.com/r3e-network/neo-go-core/pkg/vm"
)

// scriptBuilder emits a Neo-style invocation script by hand, the same
// push-arguments-then-SYSCALL shape every `invokefunction` handler in the
// reference node builds before handing a script to the VM. It exists only
// to translate JSON-RPC parameters into bytecode; it knows nothing about
// opcode semantics beyond what each Emit* call documents.
type scriptBuilder struct {
	buf []byte
}

func (b *scriptBuilder) emitOp(op vm.OpCode) { b.buf = append(b.buf, byte(op)) }

func (b *scriptBuilder) emitPushInt(v *big.Int) {
	switch {
	case v.Cmp(big.NewInt(-1)) == 0:
		b.emitOp(vm.PUSHM1)
	case v.Sign() >= 0 && v.Cmp(big.NewInt(16)) <= 0:
		b.emitOp(vm.OpCode(byte(vm.PUSH0) + byte(v.Int64())))
	default:
		data := twosComplementBytes(v)
		b.emitOp(vm.PUSHINT256)
		padded := make([]byte, 32)
		copy(padded, data)
		if v.Sign() < 0 {
			for i := len(data); i < 32; i++ {
				padded[i] = 0xff
			}
		}
		b.buf = append(b.buf, padded...)
	}
}

// twosComplementBytes renders v little-endian two's-complement, the same
// encoding stackitem.Integer uses internally.
func twosComplementBytes(v *big.Int) []byte {
	if v.Sign() == 0 {
		return nil
	}
	abs := new(big.Int).Abs(v)
	raw := abs.Bytes() // big-endian
	le := make([]byte, len(raw))
	for i, c := range raw {
		le[len(raw)-1-i] = c
	}
	if v.Sign() < 0 {
		// two's complement: invert and add one over the little-endian bytes.
		carry := true
		for i := range le {
			le[i] = ^le[i]
			if carry {
				le[i]++
				carry = le[i] == 0
			}
		}
		if le[len(le)-1]&0x80 == 0 {
			le = append(le, 0xff)
		}
	} else if len(le) > 0 && le[len(le)-1]&0x80 != 0 {
		le = append(le, 0)
	}
	return le
}

func (b *scriptBuilder) emitPushBytes(data []byte) {
	n := len(data)
	switch {
	case n <= 0xff:
		b.emitOp(vm.PUSHDATA1)
		b.buf = append(b.buf, byte(n))
	case n <= 0xffff:
		b.emitOp(vm.PUSHDATA2)
		var l [2]byte
		binary.LittleEndian.PutUint16(l[:], uint16(n))
		b.buf = append(b.buf, l[:]...)
	default:
		b.emitOp(vm.PUSHDATA4)
		var l [4]byte
		binary.LittleEndian.PutUint32(l[:], uint32(n))
		b.buf = append(b.buf, l[:]...)
	}
	b.buf = append(b.buf, data...)
}

func (b *scriptBuilder) emitPushBool(v bool) {
	if v {
		b.emitOp(vm.PUSHT)
	} else {
		b.emitOp(vm.PUSHF)
	}
}

// emitPushInt64 is the common path for element counts and the like.
func (b *scriptBuilder) emitPushInt64(v int64) { b.emitPushInt(big.NewInt(v)) }

// emitParam renders one JSON-decoded contract-invocation parameter
// (one rpcParam of invokefunction's `params[]`) as a push.
func (b *scriptBuilder) emitParam(p rpcParam) error {
	switch p.Type {
	case "Boolean":
		v, ok := p.Value.(bool)
		if !ok {
			return fmt.Errorf("param type Boolean needs a bool value")
		}
		b.emitPushBool(v)
	case "Integer":
		s, ok := p.Value.(string)
		if !ok {
			return fmt.Errorf("param type Integer needs a decimal-string value")
		}
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return fmt.Errorf("param type Integer has malformed value %q", s)
		}
		b.emitPushInt(n)
	case "ByteArray", "String":
		s, ok := p.Value.(string)
		if !ok {
			return fmt.Errorf("param type %s needs a string value", p.Type)
		}
		var data []byte
		var err error
		if p.Type == "String" {
			data = []byte(s)
		} else {
			data, err = base64.StdEncoding.DecodeString(s)
			if err != nil {
				return fmt.Errorf("param type ByteArray: %w", err)
			}
		}
		b.emitPushBytes(data)
	case "Hash160":
		s, ok := p.Value.(string)
		if !ok {
			return fmt.Errorf("param type Hash160 needs a string value")
		}
		h, err := transaction.ParseHash160(s)
		if err != nil {
			return err
		}
		b.emitPushBytes(h.Bytes())
	case "Hash256":
		s, ok := p.Value.(string)
		if !ok {
			return fmt.Errorf("param type Hash256 needs a string value")
		}
		h, err := transaction.ParseHash256(s)
		if err != nil {
			return err
		}
		b.emitPushBytes(h.Bytes())
	case "Array":
		items, ok := p.Value.([]interface{})
		if !ok {
			return fmt.Errorf("param type Array needs an array value")
		}
		nested := make([]rpcParam, len(items))
		for i, raw := range items {
			np, err := decodeRPCParam(raw)
			if err != nil {
				return err
			}
			nested[i] = np
		}
		for i := len(nested) - 1; i >= 0; i-- {
			if err := b.emitParam(nested[i]); err != nil {
				return err
			}
		}
		b.emitPushInt64(int64(len(nested)))
		b.emitOp(vm.PACK)
	case "Any", "":
		if p.Value == nil {
			b.emitOp(vm.PUSHNULL)
			return nil
		}
		return fmt.Errorf("param type Any only supports a null value")
	default:
		return fmt.Errorf("unsupported param type %q", p.Type)
	}
	return nil
}

// buildContractCallScript assembles the script `invokefunction` hands to
// the engine: push args (reversed) into an array, push the method name,
// push the contract hash, SYSCALL System.Contract.Call, RET — the
// canonical shape every Neo SDK's `invokefunction`-equivalent client
// builds client-side; this RPC layer builds it server-side instead, since
// the method's input is already (contract, method, params), not a
// pre-built script.
func buildContractCallScript(contract transaction.Hash160, method string, params []rpcParam) ([]byte, error) {
	b := &scriptBuilder{}
	for i := len(params) - 1; i >= 0; i-- {
		if err := b.emitParam(params[i]); err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
	}
	b.emitPushInt64(int64(len(params)))
	b.emitOp(vm.PACK)
	b.emitPushBytes([]byte(method))
	b.emitPushBytes(contract.Bytes())
	b.emitOp(vm.SYSCALL)
	var tok [4]byte
	binary.LittleEndian.PutUint32(tok[:], vm.SyscallToken(SyscallContractCall))
	b.buf = append(b.buf, tok[:]...)
	b.emitOp(vm.RET)
	return b.buf, nil
}
