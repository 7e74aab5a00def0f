package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/r3e-network/neo-go-core/pkg/vm/stackitem"
)

func TestEncodeMapIsKeyStringifiedObject(t *testing.T) {
	m := stackitem.NewMap()
	require.NoError(t, m.Set(stackitem.NewByteString([]byte("name")), stackitem.NewIntegerFromInt64(7)))
	require.NoError(t, m.Set(stackitem.NewBoolean(true), stackitem.NewByteString([]byte("v"))))

	enc, err := encodeStackItem(m, nil, "")
	require.NoError(t, err)
	require.Equal(t, "Map", enc.Type)

	obj, ok := enc.Value.(map[string]stackItemJSON)
	require.True(t, ok, "Map must encode as a JSON object, not an array of pairs")
	require.Len(t, obj, 2)

	// A ByteString key's base64 value is used directly; a Boolean key's
	// bool value is JSON-dumped.
	name, ok := obj["bmFtZQ=="]
	require.True(t, ok)
	require.Equal(t, "Integer", name.Type)
	require.Equal(t, "7", name.Value)

	boolVal, ok := obj["true"]
	require.True(t, ok)
	require.Equal(t, "ByteString", boolVal.Type)
}

func TestEncodePrimitivesAndCompounds(t *testing.T) {
	enc, err := encodeStackItem(stackitem.NewArray([]stackitem.Item{
		stackitem.NewIntegerFromInt64(1),
		stackitem.Nil,
	}), nil, "")
	require.NoError(t, err)
	require.Equal(t, "Array", enc.Type)
	items, ok := enc.Value.([]stackItemJSON)
	require.True(t, ok)
	require.Len(t, items, 2)
	require.Equal(t, "Integer", items[0].Type)
	require.Equal(t, "Null", items[1].Type)
}
