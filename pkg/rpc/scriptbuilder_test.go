package rpc

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/r3e-network/neo-go-core/pkg/vm"
)

func TestEmitPushIntSmallValuesUseFastPath(t *testing.T) {
	b := &scriptBuilder{}
	b.emitPushInt(big.NewInt(5))
	require.Equal(t, []byte{byte(vm.PUSH0) + 5}, b.buf)

	b = &scriptBuilder{}
	b.emitPushInt(big.NewInt(-1))
	require.Equal(t, []byte{byte(vm.PUSHM1)}, b.buf)
}

func TestEmitPushIntLargeValueUsesPushInt256(t *testing.T) {
	b := &scriptBuilder{}
	b.emitPushInt(big.NewInt(1000000))
	require.Equal(t, byte(vm.PUSHINT256), b.buf[0])
	require.Len(t, b.buf, 33)

	n := new(big.Int).SetBytes(reverseBytes(b.buf[1:]))
	require.Equal(t, "1000000", n.String())
}

func TestEmitPushIntNegativeLargeValueRoundTrips(t *testing.T) {
	b := &scriptBuilder{}
	v := big.NewInt(-70000)
	b.emitPushInt(v)
	require.Equal(t, byte(vm.PUSHINT256), b.buf[0])

	le := b.buf[1:]
	n := decodeTwosComplementLE(le)
	require.Equal(t, v.String(), n.String())
}

func TestBuildContractCallScriptEndsWithSyscallAndRet(t *testing.T) {
	var contract [20]byte
	contract[0] = 1
	script, err := buildContractCallScript(contract, "balanceOf", nil)
	require.NoError(t, err)
	require.Equal(t, byte(vm.RET), script[len(script)-1])
	require.Contains(t, string(script), "balanceOf")
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

func decodeTwosComplementLE(le []byte) *big.Int {
	negative := len(le) > 0 && le[len(le)-1]&0x80 != 0
	if !negative {
		return new(big.Int).SetBytes(reverseBytes(le))
	}
	inv := make([]byte, len(le))
	carry := true
	for i := range le {
		inv[i] = ^le[i]
		if carry {
			inv[i]++
			carry = inv[i] == 0
		}
	}
	mag := new(big.Int).SetBytes(reverseBytes(inv))
	return mag.Neg(mag)
}
