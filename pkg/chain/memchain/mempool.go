package memchain

import (
	"errors"
	"sync"

	"github.com/r3e-network/neo-go-core/pkg/core/transaction"
)

var ErrAlreadyInPool = errors.New("memchain: transaction already in pool")

// Mempool is a reference chain.Mempool: a mutex-guarded map, no fee-based
// eviction or capacity bound, adequate for the verifier/p2p tests this
// module ships but not for production use.
type Mempool struct {
	mu  sync.RWMutex
	txs map[transaction.Hash256]*transaction.Transaction
}

func NewMempool() *Mempool {
	return &Mempool{txs: make(map[transaction.Hash256]*transaction.Transaction)}
}

func (m *Mempool) TryAdd(tx *transaction.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := tx.Hash()
	if _, ok := m.txs[h]; ok {
		return ErrAlreadyInPool
	}
	m.txs[h] = tx
	return nil
}

func (m *Mempool) Has(hash transaction.Hash256) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.txs[hash]
	return ok
}

func (m *Mempool) Get(hash transaction.Hash256) (*transaction.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.txs[hash]
	if !ok {
		return nil, errors.New("memchain: transaction not in pool")
	}
	return tx, nil
}

func (m *Mempool) All() []*transaction.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*transaction.Transaction, 0, len(m.txs))
	for _, tx := range m.txs {
		out = append(out, tx)
	}
	return out
}

func (m *Mempool) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = make(map[transaction.Hash256]*transaction.Transaction)
}

func (m *Mempool) Remove(hash transaction.Hash256) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.txs, hash)
}
