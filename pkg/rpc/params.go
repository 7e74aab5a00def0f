package rpc

import (
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/r3e-network/neo-go-core/pkg/core/transaction"
)

// rpcParam is one element of an `invokefunction`/`invokecontractverify` params[]
// array: {"type": "...", "value": ...} (the input-side
// mirror of the stack-item encoding the execution report uses for output).
type rpcParam struct {
	Type  string
	Value interface{}
}

func decodeRPCParam(raw interface{}) (rpcParam, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return rpcParam{}, fmt.Errorf("invoke param must be an object with type/value")
	}
	t, _ := m["type"].(string)
	return rpcParam{Type: t, Value: m["value"]}, nil
}

// decodeRPCParams decodes a raw JSON array of {type,value} objects.
func decodeRPCParams(raw interface{}) ([]rpcParam, error) {
	if raw == nil {
		return nil, nil
	}
	arr, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("params must be an array")
	}
	out := make([]rpcParam, len(arr))
	for i, el := range arr {
		p, err := decodeRPCParam(el)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// signerJSON is one entry of an invoke* request's signers[] array.
type signerJSON struct {
	Account string `json:"account"`
	Scopes  string `json:"scopes"`
}

func decodeSigners(raw interface{}) ([]transaction.Signer, error) {
	if raw == nil {
		return nil, nil
	}
	arr, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("signers must be an array")
	}
	out := make([]transaction.Signer, 0, len(arr))
	for _, el := range arr {
		m, ok := el.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("each signer must be an object")
		}
		acctStr, _ := m["account"].(string)
		acct, err := transaction.ParseHash160(acctStr)
		if err != nil {
			return nil, fmt.Errorf("signer account: %w", err)
		}
		scopes := transaction.ScopeNone
		if s, ok := m["scopes"].(string); ok {
			scopes = parseScopeString(s)
		}
		out = append(out, transaction.Signer{Account: acct, Scopes: scopes})
	}
	return out, nil
}

func parseScopeString(s string) transaction.WitnessScope {
	switch s {
	case "CalledByEntry":
		return transaction.ScopeCalledByEntry
	case "CustomContracts":
		return transaction.ScopeCustomContracts
	case "CustomGroups":
		return transaction.ScopeCustomGroups
	case "WitnessRules":
		return transaction.ScopeWitnessRules
	case "Global":
		return transaction.ScopeGlobal
	default:
		return transaction.ScopeNone
	}
}

// paramString extracts params[i] as a string.
func paramString(params []interface{}, i int) (string, error) {
	if i >= len(params) {
		return "", fmt.Errorf("missing parameter %d", i)
	}
	s, ok := params[i].(string)
	if !ok {
		return "", fmt.Errorf("parameter %d must be a string", i)
	}
	return s, nil
}

func paramOptInt(params []interface{}, i int, def int) int {
	if i >= len(params) {
		return def
	}
	switch v := params[i].(type) {
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func paramOptBool(params []interface{}, i int, def bool) bool {
	if i >= len(params) {
		return def
	}
	b, ok := params[i].(bool)
	if !ok {
		return def
	}
	return b
}

// hashOrIndex decodes params[i] as either a block/header hash (0x-prefixed
// hex, reversed per Neo convention) or a numeric index, the "hash|index"
// overload getblock/getblockheader share (table).
func hashOrIndex(params []interface{}, i int) (interface{}, error) {
	s, err := paramString(params, i)
	if err == nil {
		return transaction.ParseHash256(s)
	}
	if i >= len(params) {
		return nil, fmt.Errorf("missing parameter %d", i)
	}
	if f, ok := params[i].(float64); ok {
		return uint32(f), nil
	}
	return nil, fmt.Errorf("parameter %d must be a hash or an index", i)
}

func decodeBase64Param(params []interface{}, i int) ([]byte, error) {
	s, err := paramString(params, i)
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(s)
}
