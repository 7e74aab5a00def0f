package rpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/r3e-network/neo-go-core/pkg/vm/stackitem"
)

type sliceIterator struct {
	items []stackitem.Item
	pos   int
}

func (it *sliceIterator) Next() (stackitem.Item, bool) {
	if it.pos >= len(it.items) {
		return nil, false
	}
	item := it.items[it.pos]
	it.pos++
	return item, true
}

func newTestStore(ttl time.Duration) (*SessionStore, *time.Time) {
	s := NewSessionStore(ttl, 4)
	now := time.Unix(1000, 0)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestSessionPutAllocatesIDs(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	sessionID, iteratorID, rpcErr := s.Put("", &sliceIterator{})
	require.Nil(t, rpcErr)
	require.NotEmpty(t, sessionID)
	require.NotEmpty(t, iteratorID)

	// A second iterator joins the same session rather than allocating a new
	// one.
	sameSession, otherIterator, rpcErr := s.Put(sessionID, &sliceIterator{})
	require.Nil(t, rpcErr)
	require.Equal(t, sessionID, sameSession)
	require.NotEqual(t, iteratorID, otherIterator)
}

func TestSessionIteratorCap(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	sessionID, _, rpcErr := s.Put("", &sliceIterator{})
	require.Nil(t, rpcErr)
	for i := 0; i < 3; i++ {
		_, _, rpcErr = s.Put(sessionID, &sliceIterator{})
		require.Nil(t, rpcErr)
	}
	_, _, rpcErr = s.Put(sessionID, &sliceIterator{})
	require.NotNil(t, rpcErr)
}

func TestTraverseStepsAndStopsAtExhaustion(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	it := &sliceIterator{items: []stackitem.Item{
		stackitem.NewIntegerFromInt64(1),
		stackitem.NewIntegerFromInt64(2),
		stackitem.NewIntegerFromInt64(3),
	}}
	sessionID, iteratorID, rpcErr := s.Put("", it)
	require.Nil(t, rpcErr)

	first, rpcErr := s.Traverse(sessionID, iteratorID, 2)
	require.Nil(t, rpcErr)
	require.Len(t, first, 2)

	rest, rpcErr := s.Traverse(sessionID, iteratorID, 10)
	require.Nil(t, rpcErr)
	require.Len(t, rest, 1)

	empty, rpcErr := s.Traverse(sessionID, iteratorID, 10)
	require.Nil(t, rpcErr)
	require.Empty(t, empty)
}

func TestSessionExpiresAfterTTL(t *testing.T) {
	s, now := newTestStore(time.Minute)
	sessionID, iteratorID, rpcErr := s.Put("", &sliceIterator{})
	require.Nil(t, rpcErr)

	*now = now.Add(2 * time.Minute)
	_, rpcErr = s.Traverse(sessionID, iteratorID, 1)
	require.NotNil(t, rpcErr)
}

func TestTraverseRefreshesActivity(t *testing.T) {
	s, now := newTestStore(time.Minute)
	it := &sliceIterator{items: []stackitem.Item{stackitem.NewIntegerFromInt64(1)}}
	sessionID, iteratorID, rpcErr := s.Put("", it)
	require.Nil(t, rpcErr)

	*now = now.Add(45 * time.Second)
	_, rpcErr = s.Traverse(sessionID, iteratorID, 1)
	require.Nil(t, rpcErr)

	// 45s more since the last touch is still within the 60s TTL.
	*now = now.Add(45 * time.Second)
	_, rpcErr = s.Traverse(sessionID, iteratorID, 1)
	require.Nil(t, rpcErr)
}

func TestTerminateReportsExistence(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	sessionID, _, rpcErr := s.Put("", &sliceIterator{})
	require.Nil(t, rpcErr)
	require.True(t, s.Terminate(sessionID))
	require.False(t, s.Terminate(sessionID))
}
