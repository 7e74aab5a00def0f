package rpc

import (
	"encoding/base64"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/r3e-network/neo-go-core/pkg/chain"
	"github.com/r3e-network/neo-go-core/pkg/chain/memchain"
	"github.com/r3e-network/neo-go-core/pkg/config"
	"github.com/r3e-network/neo-go-core/pkg/core/block"
	"github.com/r3e-network/neo-go-core/pkg/core/transaction"
	"github.com/r3e-network/neo-go-core/pkg/metrics"
	"github.com/r3e-network/neo-go-core/pkg/verifier"
	"github.com/r3e-network/neo-go-core/pkg/vm"
)

func newTestNode(t *testing.T) (*Node, *memchain.Snapshot) {
	t.Helper()
	snap := memchain.NewSnapshot()
	genesis := &block.Block{Header: block.Header{Index: 0}}
	snap.AddBlock(genesis)
	snap.SetFeePerByte(1000)

	pool := memchain.NewMempool()
	crypto := memchain.NewCrypto()
	v := verifier.New(crypto, memchain.NewPolicy(), metrics.NewInProcess())

	cfg := config.Default()
	n := NewNode(snap, pool, v, crypto, nil, nil, cfg.Protocol, cfg.RPC, 1234, "test-node/1.0", metrics.NewInProcess())
	return n, snap
}

func TestGetVersionAndBlockCount(t *testing.T) {
	n, _ := newTestNode(t)

	res, rpcErr := Dispatch(n, "getversion", nil)
	require.Nil(t, rpcErr)
	ver, ok := res.(versionResult)
	require.True(t, ok)
	require.Equal(t, uint32(1234), ver.Nonce)

	count, rpcErr := Dispatch(n, "getblockcount", nil)
	require.Nil(t, rpcErr)
	require.Equal(t, uint32(1), count)
}

func TestGetBlockHashAndBlock(t *testing.T) {
	n, _ := newTestNode(t)

	hash, rpcErr := Dispatch(n, "getblockhash", []interface{}{float64(0)})
	require.Nil(t, rpcErr)
	require.IsType(t, "", hash)

	verbose, rpcErr := Dispatch(n, "getblock", []interface{}{hash, true})
	require.Nil(t, rpcErr)
	bj, ok := verbose.(blockJSON)
	require.True(t, ok)
	require.Equal(t, uint32(0), bj.Index)
}

func TestUnknownMethod(t *testing.T) {
	n, _ := newTestNode(t)
	_, rpcErr := Dispatch(n, "notamethod", nil)
	require.NotNil(t, rpcErr)
	require.Equal(t, -32601, rpcErr.Code)
}

func TestGetStorageAndFindStorage(t *testing.T) {
	n, snap := newTestNode(t)
	var contract transaction.Hash160
	contract[0] = 0xAB
	snap.PutContract(&chain.ContractState{Hash: contract})
	snap.PutStorage(contract, []byte("key1"), []byte("val1"))
	snap.PutStorage(contract, []byte("key2"), []byte("val2"))
	snap.PutStorage(contract, []byte("other"), []byte("val3"))

	contractHex := contract.String()
	keyB64 := base64.StdEncoding.EncodeToString([]byte("key1"))
	res, rpcErr := Dispatch(n, "getstorage", []interface{}{contractHex, keyB64})
	require.Nil(t, rpcErr)
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("val1")), res)

	prefixB64 := base64.StdEncoding.EncodeToString([]byte("key"))
	found, rpcErr := Dispatch(n, "findstorage", []interface{}{contractHex, prefixB64})
	require.Nil(t, rpcErr)
	m, ok := found.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, 2, reflect.ValueOf(m["results"]).Len())
}

func TestInvokeScriptHaltsOnPushOne(t *testing.T) {
	n, _ := newTestNode(t)
	script := []byte{byte(vm.PUSH1), byte(vm.RET)}
	res, rpcErr := Dispatch(n, "invokescript", []interface{}{base64.StdEncoding.EncodeToString(script)})
	require.Nil(t, rpcErr)
	rep, ok := res.(executionReport)
	require.True(t, ok)
	require.Equal(t, "HALT", rep.State)
	require.Len(t, rep.Stack, 1)
}

func TestInvokeFunctionBuildsCallScript(t *testing.T) {
	n, snap := newTestNode(t)
	var contract transaction.Hash160
	contract[1] = 0xCD
	calleeScript := []byte{byte(vm.PUSH2), byte(vm.RET)}
	snap.PutContract(&chain.ContractState{Hash: contract, Script: calleeScript})

	params := []interface{}{
		contract.String(),
		"transfer",
		[]interface{}{},
	}
	res, rpcErr := Dispatch(n, "invokefunction", params)
	require.Nil(t, rpcErr)
	rep, ok := res.(executionReport)
	require.True(t, ok)
	require.Equal(t, "HALT", rep.State)
}

func TestSendRawTransactionRejectsBadWitness(t *testing.T) {
	n, _ := newTestNode(t)

	tx := &transaction.Transaction{
		Version:         0,
		Nonce:           7,
		SystemFee:       1 << 20,
		NetworkFee:      1 << 20,
		ValidUntilBlock: 1000,
		Signers:         []transaction.Signer{{Account: transaction.Hash160{}, Scopes: transaction.ScopeCalledByEntry}},
		Script:          []byte{byte(vm.PUSH1), byte(vm.RET)},
		Witnesses:       []transaction.Witness{{VerificationScript: []byte{byte(vm.PUSHF), byte(vm.RET)}}},
	}
	raw := tx.Bytes()

	_, rpcErr := Dispatch(n, "sendrawtransaction", []interface{}{base64.StdEncoding.EncodeToString(raw)})
	require.NotNil(t, rpcErr)
}

func TestTerminateUnknownSession(t *testing.T) {
	n, _ := newTestNode(t)
	res, rpcErr := Dispatch(n, "terminatesession", []interface{}{"not-a-real-session"})
	require.Nil(t, rpcErr)
	require.Equal(t, false, res)
}
