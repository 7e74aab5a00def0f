package rpc

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/host"

	"github.com/r3e-network/neo-go-core/pkg/chain"
	"github.com/r3e-network/neo-go-core/pkg/core/block"
	"github.com/r3e-network/neo-go-core/pkg/core/transaction"
	"github.com/r3e-network/neo-go-core/pkg/metrics"
	"github.com/r3e-network/neo-go-core/pkg/p2p"
	"github.com/r3e-network/neo-go-core/pkg/verifier"
	"github.com/r3e-network/neo-go-core/pkg/vm"
	"github.com/r3e-network/neo-go-core/pkg/vm/stackitem"
)

type jsonRawMessage = json.RawMessage

// MethodHandler is the shape every entry of the dispatch table satisfies:
// a plain function of (node, params) -> JSON.
type MethodHandler func(n *Node, params []interface{}) (interface{}, *Error)

// Methods is the fixed dispatch table. It is built once at package init
// and never mutated at runtime — a fixed set of named methods, not a
// pluggable registry.
var Methods = map[string]MethodHandler{
	"getversion":              handleGetVersion,
	"getblockcount":           handleGetBlockCount,
	"getblockheadercount":     handleGetBlockCount,
	"getbestblockhash":        handleGetBestBlockHash,
	"getblock":                handleGetBlock,
	"getblockhash":            handleGetBlockHash,
	"getblockheader":          handleGetBlockHeader,
	"getrawmempool":           handleGetRawMempool,
	"getrawtransaction":       handleGetRawTransaction,
	"gettransactionheight":    handleGetTransactionHeight,
	"sendrawtransaction":      handleSendRawTransaction,
	"submitblock":             handleSubmitBlock,
	"invokefunction":          handleInvokeFunction,
	"invokescript":            handleInvokeScript,
	"invokecontractverify":    handleInvokeContractVerify,
	"getcontractstate":        handleGetContractState,
	"getstorage":              handleGetStorage,
	"findstorage":             handleFindStorage,
	"getunclaimedgas":         handleGetUnclaimedGas,
	"getcommittee":            handleEmptyArray,
	"getvalidators":           handleEmptyArray,
	"getnextblockvalidators":  handleEmptyArray,
	"getcandidates":           handleEmptyArray,
	"getnativecontracts":      handleEmptyArray,
	"getpeers":                handleGetPeers,
	"getconnectioncount":      handleGetConnectionCount,
	"validateaddress":         handleValidateAddress,
	"traverseiterator":        handleTraverseIterator,
	"terminatesession":        handleTerminateSession,
}

// Dispatch runs method against params, recording the per-method request
// and error counters around the call and reaping expired iterator
// sessions first.
func Dispatch(n *Node, method string, params []interface{}) (interface{}, *Error) {
	n.Metrics.IncLabeled(metrics.RPCRequestsByMethod, method)
	if n.Sessions != nil {
		n.Sessions.GC()
	}
	handler, ok := Methods[method]
	if !ok {
		n.Metrics.IncLabeled(metrics.RPCErrorsByMethod, method)
		return nil, &Error{Code: -32601, Message: "Method not found"}
	}
	result, rpcErr := handler(n, params)
	if rpcErr != nil {
		n.Metrics.IncLabeled(metrics.RPCErrorsByMethod, method)
	}
	return result, rpcErr
}

type versionResult struct {
	Port      int    `json:"tcpport"`
	Nonce     uint32 `json:"nonce"`
	UserAgent string `json:"useragent"`
	Protocol  struct {
		Network                     uint32 `json:"network"`
		ValidatorsCount             int    `json:"validatorscount"`
		MillisecondsPerBlock        uint32 `json:"msperblock"`
		MaxTransactionsPerBlock     uint32 `json:"maxtransactionsperblock"`
		MaxValidUntilBlockIncrement uint32 `json:"maxvaliduntilblockincrement"`
	} `json:"protocol"`
	Platform      string `json:"platform,omitempty"`
	UptimeSeconds uint64 `json:"uptimeseconds,omitempty"`
}

func handleGetVersion(n *Node, _ []interface{}) (interface{}, *Error) {
	var out versionResult
	out.Nonce = n.Nonce
	out.UserAgent = n.UserAgent
	out.Protocol.Network = n.Settings.NetworkMagic
	out.Protocol.ValidatorsCount = n.Settings.ValidatorsCount
	out.Protocol.MillisecondsPerBlock = n.Settings.MillisecondsPerBlock
	out.Protocol.MaxTransactionsPerBlock = n.Settings.MaxTransactionsPerBlock
	out.Protocol.MaxValidUntilBlockIncrement = n.Settings.MaxValidUntilBlockIncrement
	if info, err := host.Info(); err == nil {
		out.Platform = fmt.Sprintf("%s/%s", info.Platform, runtime.GOARCH)
		out.UptimeSeconds = info.Uptime
	}
	return out, nil
}

func handleGetBlockCount(n *Node, _ []interface{}) (interface{}, *Error) {
	return n.Snapshot.GetHeight() + 1, nil
}

func handleGetBestBlockHash(n *Node, _ []interface{}) (interface{}, *Error) {
	b, err := n.Snapshot.GetBlock(n.Snapshot.GetHeight())
	if err != nil {
		return nil, errUnknown("block")
	}
	return b.Hash().String(), nil
}

func handleGetBlockHash(n *Node, params []interface{}) (interface{}, *Error) {
	idx := uint32(paramOptInt(params, 0, -1))
	b, err := n.Snapshot.GetBlock(idx)
	if err != nil {
		return nil, errUnknown("block")
	}
	return b.Hash().String(), nil
}

type blockJSON struct {
	Hash          string   `json:"hash"`
	Size          int      `json:"size"`
	Version       uint32   `json:"version"`
	PreviousHash  string   `json:"previousblockhash"`
	MerkleRoot    string   `json:"merkleroot"`
	Time          uint64   `json:"time"`
	Index         uint32   `json:"index"`
	NextConsensus string   `json:"nextconsensus"`
	Transactions  []string `json:"tx,omitempty"`
}

func blockToJSON(b *block.Block, includeTx bool) blockJSON {
	out := blockJSON{
		Hash:          b.Hash().String(),
		Size:          len(b.Bytes()),
		Version:       b.Header.Version,
		PreviousHash:  b.Header.PrevHash.String(),
		MerkleRoot:    b.Header.MerkleRoot.String(),
		Time:          b.Header.Timestamp,
		Index:         b.Header.Index,
		NextConsensus: b.Header.NextConsensus.String(),
	}
	if includeTx {
		for _, tx := range b.Transactions {
			out.Transactions = append(out.Transactions, tx.Hash().String())
		}
	}
	return out
}

func handleGetBlock(n *Node, params []interface{}) (interface{}, *Error) {
	hi, err := hashOrIndex(params, 0)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	verbose := paramOptBool(params, 1, false)
	b, err := n.Snapshot.GetBlock(hi)
	if err != nil {
		return nil, errUnknown("block")
	}
	if !verbose {
		return base64.StdEncoding.EncodeToString(b.Bytes()), nil
	}
	return blockToJSON(b, true), nil
}

func handleGetBlockHeader(n *Node, params []interface{}) (interface{}, *Error) {
	hi, err := hashOrIndex(params, 0)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	verbose := paramOptBool(params, 1, false)
	h, err := n.Snapshot.GetHeader(hi)
	if err != nil {
		return nil, errUnknown("block header")
	}
	if !verbose {
		return base64.StdEncoding.EncodeToString(h.Bytes()), nil
	}
	return blockJSON{
		Hash:          h.Hash().String(),
		Size:          len(h.Bytes()),
		Version:       h.Version,
		PreviousHash:  h.PrevHash.String(),
		MerkleRoot:    h.MerkleRoot.String(),
		Time:          h.Timestamp,
		Index:         h.Index,
		NextConsensus: h.NextConsensus.String(),
	}, nil
}

func handleGetRawMempool(n *Node, _ []interface{}) (interface{}, *Error) {
	txs := n.Mempool.All()
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.Hash().String()
	}
	return out, nil
}

func handleGetRawTransaction(n *Node, params []interface{}) (interface{}, *Error) {
	s, err := paramString(params, 0)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	hash, err := transaction.ParseHash256(s)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	verbose := paramOptBool(params, 1, false)

	tx, lookupErr := n.Snapshot.GetTransaction(hash)
	if lookupErr != nil {
		tx, lookupErr = n.Mempool.Get(hash)
	}
	if lookupErr != nil {
		return nil, errUnknown("transaction")
	}
	if !verbose {
		return base64.StdEncoding.EncodeToString(tx.Bytes()), nil
	}
	return txToJSON(tx), nil
}

type txJSON struct {
	Hash            string `json:"hash"`
	Size            int    `json:"size"`
	Version         byte   `json:"version"`
	Nonce           uint32 `json:"nonce"`
	SystemFee       string `json:"sysfee"`
	NetworkFee      string `json:"netfee"`
	ValidUntilBlock uint32 `json:"validuntilblock"`
	Script          string `json:"script"`
}

func txToJSON(tx *transaction.Transaction) txJSON {
	return txJSON{
		Hash:            tx.Hash().String(),
		Size:            tx.Size(),
		Version:         tx.Version,
		Nonce:           tx.Nonce,
		SystemFee:       fmt.Sprintf("%d", tx.SystemFee),
		NetworkFee:      fmt.Sprintf("%d", tx.NetworkFee),
		ValidUntilBlock: tx.ValidUntilBlock,
		Script:          base64.StdEncoding.EncodeToString(tx.Script),
	}
}

func handleGetTransactionHeight(n *Node, params []interface{}) (interface{}, *Error) {
	s, err := paramString(params, 0)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	hash, err := transaction.ParseHash256(s)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	height, err := n.Snapshot.GetTransactionHeight(hash)
	if err != nil {
		return nil, errUnknown("transaction")
	}
	return height, nil
}

func handleSendRawTransaction(n *Node, params []interface{}) (interface{}, *Error) {
	raw, err := decodeBase64Param(params, 0)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	tx, err := transaction.Deserialize(raw)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}

	out := n.Verifier.Verify(tx, verifier.VerificationContext{
		Snapshot:           n.Snapshot,
		NetworkMagic:       n.NetworkMagic,
		FeePerByteFallback: n.Settings.FeePerByteFallback,
		MaxGas:             tx.SystemFee,
	})
	if out.Result != verifier.Succeed {
		return nil, &Error{Code: codeInternal, Message: out.Result.String(), Data: out.Message}
	}
	if err := n.Mempool.TryAdd(tx); err != nil {
		return nil, &Error{Code: codeInternal, Message: "already in the mempool or ledger", Data: err.Error()}
	}
	if n.Broadcaster != nil {
		n.Broadcaster.RelayInventory(p2p.InventoryVector{Type: p2p.InvTypeTransaction, Hash: tx.Hash()}, "")
	}
	return map[string]string{"hash": tx.Hash().String()}, nil
}

func handleSubmitBlock(n *Node, params []interface{}) (interface{}, *Error) {
	raw, err := decodeBase64Param(params, 0)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	b, err := block.Deserialize(raw)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	if b.Index() != n.Snapshot.GetHeight()+1 {
		return nil, &Error{Code: codeInternal, Message: "block index does not extend the current chain"}
	}
	if n.AcceptBlock != nil {
		if err := n.AcceptBlock(b); err != nil {
			return nil, &Error{Code: codeInternal, Message: "block rejected by ledger", Data: err.Error()}
		}
	}
	if n.Broadcaster != nil {
		n.Broadcaster.RelayInventory(p2p.InventoryVector{Type: p2p.InvTypeBlock, Hash: b.Hash()}, "")
	}
	return map[string]string{"hash": b.Hash().String()}, nil
}

func handleInvokeFunction(n *Node, params []interface{}) (interface{}, *Error) {
	if len(params) < 2 {
		return nil, errInvalidParams("invokefunction needs a contract hash and a method name")
	}
	contractStr, err := paramString(params, 0)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	contract, err := transaction.ParseHash160(contractStr)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	method, err := paramString(params, 1)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	var rawParams interface{}
	if len(params) > 2 {
		rawParams = params[2]
	}
	invokeParams, err := decodeRPCParams(rawParams)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	var signers []transaction.Signer
	if len(params) > 3 {
		signers, err = decodeSigners(params[3])
		if err != nil {
			return nil, errInvalidParams(err.Error())
		}
	}

	script, err := buildContractCallScript(contract, method, invokeParams)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	return runAndEncode(n, script, signers, triggerApplication)
}

func handleInvokeScript(n *Node, params []interface{}) (interface{}, *Error) {
	raw, err := decodeBase64Param(params, 0)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	var signers []transaction.Signer
	if len(params) > 1 {
		signers, err = decodeSigners(params[1])
		if err != nil {
			return nil, errInvalidParams(err.Error())
		}
	}
	return runAndEncode(n, raw, signers, triggerApplication)
}

func handleInvokeContractVerify(n *Node, params []interface{}) (interface{}, *Error) {
	if len(params) < 1 {
		return nil, errInvalidParams("invokecontractverify needs a contract hash")
	}
	contractStr, err := paramString(params, 0)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	contract, err := transaction.ParseHash160(contractStr)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	var rawParams interface{}
	if len(params) > 1 {
		rawParams = params[1]
	}
	invokeParams, err := decodeRPCParams(rawParams)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	var signers []transaction.Signer
	if len(params) > 2 {
		signers, err = decodeSigners(params[2])
		if err != nil {
			return nil, errInvalidParams(err.Error())
		}
	}

	cs, err := n.Snapshot.GetContract(contract)
	if err != nil {
		return nil, errUnknown("contract")
	}
	script := buildVerifyEntryScript(invokeParams)
	if script == nil {
		return nil, errInvalidParams("invokecontractverify: bad params")
	}
	full := append(append([]byte{}, script...), cs.Script...)
	return runAndEncode(n, full, signers, triggerVerification)
}

// buildVerifyEntryScript pushes params (reversed) and packs them into the
// single Array argument a verification script receives, then falls
// through into the contract's own bytecode (appended by the caller) —
// the same invocation-script-on-top-of-verification-script shape
// pkg/verifier's generic-witness path uses.
func buildVerifyEntryScript(params []rpcParam) []byte {
	b := &scriptBuilder{}
	for i := len(params) - 1; i >= 0; i-- {
		if err := b.emitParam(params[i]); err != nil {
			return nil
		}
	}
	b.emitPushInt64(int64(len(params)))
	b.emitOp(vm.PACK)
	return b.buf
}

func runAndEncode(n *Node, script []byte, signers []transaction.Signer, trig invokeTrigger) (interface{}, *Error) {
	res, err := runInvocation(n.Snapshot, script, signers, trig)
	if err != nil {
		return nil, errInternal(err)
	}
	n.Metrics.ObserveHistogram(metrics.VMGasHistogram, float64(res.GasConsumed))
	report, err := encodeReport(res.Script, res.State.String(), res.GasConsumed, res.Exception, res.Stack, n.Sessions)
	if err != nil {
		return nil, errInternal(err)
	}
	return report, nil
}

func handleGetContractState(n *Node, params []interface{}) (interface{}, *Error) {
	s, err := paramString(params, 0)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	hash, err := transaction.ParseHash160(s)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	cs, err := n.Snapshot.GetContract(hash)
	if err != nil {
		return nil, errUnknown("contract")
	}
	return map[string]interface{}{
		"hash":     cs.Hash.String(),
		"script":   base64.StdEncoding.EncodeToString(cs.Script),
		"manifest": jsonRawOrNull(cs.Manifest),
	}, nil
}

func jsonRawOrNull(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return jsonRawMessage(raw)
}

func handleGetStorage(n *Node, params []interface{}) (interface{}, *Error) {
	s, err := paramString(params, 0)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	contract, err := transaction.ParseHash160(s)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	key, err := decodeBase64Param(params, 1)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	v, err := n.Snapshot.Get(contract, key)
	if err == chain.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errInternal(err)
	}
	return base64.StdEncoding.EncodeToString(v), nil
}

func handleFindStorage(n *Node, params []interface{}) (interface{}, *Error) {
	s, err := paramString(params, 0)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	contract, err := transaction.ParseHash160(s)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	prefix, err := decodeBase64Param(params, 1)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	start := paramOptInt(params, 2, 0)

	entries, err := n.Snapshot.Find(contract, prefix)
	if err != nil {
		return nil, errInternal(err)
	}
	it := newStorageIterator(entries)
	const maxResults = 1000
	type kv struct{ Key, Value string }
	results := make([]kv, 0, maxResults)
	truncated := false
	skipped := 0
	for {
		item, ok := it.Next()
		if !ok {
			break
		}
		if skipped < start {
			skipped++
			continue
		}
		if len(results) >= maxResults {
			truncated = true
			break
		}
		pair := item.(*stackitem.Struct)
		key, _ := pair.At(0).ToByteArray()
		value, _ := pair.At(1).ToByteArray()
		results = append(results, kv{
			Key:   base64.StdEncoding.EncodeToString(key),
			Value: base64.StdEncoding.EncodeToString(value),
		})
	}
	return map[string]interface{}{"results": results, "truncated": truncated}, nil
}

func handleGetUnclaimedGas(n *Node, params []interface{}) (interface{}, *Error) {
	s, err := paramString(params, 0)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	return map[string]string{"unclaimed": "0", "address": s}, nil
}

func handleEmptyArray(n *Node, _ []interface{}) (interface{}, *Error) {
	return []interface{}{}, nil
}

func handleGetPeers(n *Node, _ []interface{}) (interface{}, *Error) {
	if n.Peers == nil {
		return map[string]interface{}{"unconnected": []interface{}{}, "connected": []interface{}{}, "bad": []interface{}{}}, nil
	}
	connected := make([]map[string]interface{}, 0)
	for _, p := range n.Peers.Peers() {
		if !p.Ready {
			continue
		}
		connected = append(connected, map[string]interface{}{"address": p.ID, "port": 0})
	}
	return map[string]interface{}{
		"unconnected": []interface{}{},
		"connected":   connected,
		"bad":         []interface{}{},
	}, nil
}

func handleGetConnectionCount(n *Node, _ []interface{}) (interface{}, *Error) {
	if n.Peers == nil {
		return 0, nil
	}
	count := 0
	for _, p := range n.Peers.Peers() {
		if p.Ready {
			count++
		}
	}
	return count, nil
}

func handleValidateAddress(n *Node, params []interface{}) (interface{}, *Error) {
	s, err := paramString(params, 0)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	valid := false
	if n.Crypto != nil {
		// A Neo address is Base58Check over (address-version byte ||
		// 20-byte script hash).
		if b, decodeErr := n.Crypto.Base58CheckDecode(s); decodeErr == nil &&
			len(b) == 21 && b[0] == n.Settings.AddressVersion {
			valid = true
		}
	} else if _, decodeErr := transaction.ParseHash160(s); decodeErr == nil {
		valid = true
	}
	return map[string]interface{}{"address": s, "isvalid": valid}, nil
}

func handleTraverseIterator(n *Node, params []interface{}) (interface{}, *Error) {
	sessionID, err := paramString(params, 0)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	iteratorID, err := paramString(params, 1)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	count := paramOptInt(params, 2, 100)
	if count > 1000 {
		count = 1000
	}
	items, rpcErr := n.Sessions.Traverse(sessionID, iteratorID, count)
	if rpcErr != nil {
		return nil, rpcErr
	}
	out := make([]stackItemJSON, len(items))
	for i, it := range items {
		enc, err := encodeStackItem(it, nil, "")
		if err != nil {
			return nil, errInternal(err)
		}
		out[i] = enc
	}
	return out, nil
}

func handleTerminateSession(n *Node, params []interface{}) (interface{}, *Error) {
	sessionID, err := paramString(params, 0)
	if err != nil {
		return nil, errInvalidParams(err.Error())
	}
	return n.Sessions.Terminate(sessionID), nil
}
