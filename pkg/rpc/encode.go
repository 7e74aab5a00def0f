package rpc

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/r3e-network/neo-go-core/pkg/vm/stackitem"
)

// stackItemJSON is the wire shape of every encoded stack item:
// {"type": "<variant>", "value": <per-type encoding>}.
type stackItemJSON struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value,omitempty"`
}

// encodeStackItem renders a result-stack item to its JSON wire shape.
// An InteropInterface that wraps an Iterator is special-cased: rather than
// exposing the opaque handle, the session it was registered under (via
// sessions.Put) is what the client actually needs, so its id pair is
// carried as the value instead.
func encodeStackItem(item stackitem.Item, sessions *SessionStore, sessionID string) (stackItemJSON, error) {
	switch v := item.(type) {
	case nil:
		return stackItemJSON{Type: stackitem.TypeNull.String()}, nil
	case stackitem.Boolean:
		return stackItemJSON{Type: v.Type().String(), Value: bool(v)}, nil
	case stackitem.Integer:
		return stackItemJSON{Type: v.Type().String(), Value: v.Big().String()}, nil
	case stackitem.ByteString:
		return stackItemJSON{Type: v.Type().String(), Value: base64.StdEncoding.EncodeToString([]byte(v))}, nil
	case *stackitem.Buffer:
		return stackItemJSON{Type: v.Type().String(), Value: base64.StdEncoding.EncodeToString(v.Bytes())}, nil
	case *stackitem.Array:
		return encodeListLike(v, sessions, sessionID)
	case *stackitem.Struct:
		return encodeListLike(v, sessions, sessionID)
	case *stackitem.MapItem:
		return encodeMap(v, sessions, sessionID)
	default:
		// Null's canonical instance and any InteropInterface not carrying a
		// recognised Iterator fall here; only special-cases
		// iterator-bearing InteropInterface values, everything else reports
		// its declared type with no value.
		if item != nil && item.Type() == stackitem.TypeNull {
			return stackItemJSON{Type: stackitem.TypeNull.String()}, nil
		}
		if it, ok := asIterator(item); ok && sessions != nil {
			outSessionID, iteratorID, rpcErr := sessions.Put(sessionID, it)
			if rpcErr != nil {
				return stackItemJSON{}, rpcErr
			}
			return stackItemJSON{
				Type: stackitem.TypeInteropInterface.String(),
				Value: map[string]string{
					"id":        iteratorID,
					"session":   outSessionID,
					"interface": "IIterator",
				},
			}, nil
		}
		return stackItemJSON{Type: item.Type().String()}, nil
	}
}

// asIterator reports whether item is an InteropInterface wrapping an
// Iterator, per pkg/vm/stackitem/interop.go's opaque-handle mechanism.
func asIterator(item stackitem.Item) (Iterator, bool) {
	ii, ok := item.(*stackitem.InteropInterface)
	if !ok {
		return nil, false
	}
	it, ok := ii.Value().(Iterator)
	return it, ok
}

type listLike interface {
	Len() int
	At(i int) stackitem.Item
	Type() stackitem.Type
}

func encodeListLike(v listLike, sessions *SessionStore, sessionID string) (stackItemJSON, error) {
	out := make([]stackItemJSON, v.Len())
	for i := 0; i < v.Len(); i++ {
		enc, err := encodeStackItem(v.At(i), sessions, sessionID)
		if err != nil {
			return stackItemJSON{}, err
		}
		out[i] = enc
	}
	return stackItemJSON{Type: v.Type().String(), Value: out}, nil
}

// encodeMap renders a Map as a JSON object keyed by each key's stringified
// encoding: a string-valued key is used as-is, anything else (a Boolean's
// bool, for instance) is its JSON dump. Map keys are primitives, so the
// stringification is total.
func encodeMap(m *stackitem.MapItem, sessions *SessionStore, sessionID string) (stackItemJSON, error) {
	keys := m.Keys()
	values := m.Values()
	out := make(map[string]stackItemJSON, len(keys))
	for i := range keys {
		k, err := encodeStackItem(keys[i], sessions, sessionID)
		if err != nil {
			return stackItemJSON{}, err
		}
		v, err := encodeStackItem(values[i], sessions, sessionID)
		if err != nil {
			return stackItemJSON{}, err
		}
		out[stringifyMapKey(k)] = v
	}
	return stackItemJSON{Type: stackitem.TypeMap.String(), Value: out}, nil
}

func stringifyMapKey(k stackItemJSON) string {
	if s, ok := k.Value.(string); ok {
		return s
	}
	b, err := json.Marshal(k.Value)
	if err != nil {
		return ""
	}
	return string(b)
}

// executionReport is the invoke* result envelope.
type executionReport struct {
	Script      string          `json:"script"`
	State       string          `json:"state"`
	GasConsumed string          `json:"gasconsumed"`
	Exception   string          `json:"exception,omitempty"`
	Stack       []stackItemJSON `json:"stack"`
	Session     string          `json:"session,omitempty"`
}

func encodeReport(script []byte, state string, gasConsumed int64, exception string, stack []stackitem.Item, sessions *SessionStore) (executionReport, error) {
	sessionID := ""
	out := make([]stackItemJSON, len(stack))
	for i, item := range stack {
		enc, err := encodeStackItem(item, sessions, sessionID)
		if err != nil {
			return executionReport{}, fmt.Errorf("encoding stack item %d: %w", i, err)
		}
		if m, ok := enc.Value.(map[string]string); ok {
			sessionID = m["session"]
		}
		out[i] = enc
	}
	return executionReport{
		Script:      base64.StdEncoding.EncodeToString(script),
		State:       state,
		GasConsumed: fmt.Sprintf("%d", gasConsumed),
		Exception:   exception,
		Stack:       out,
		Session:     sessionID,
	}, nil
}
