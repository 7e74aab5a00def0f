package memchain

import (
	"sync"

	"github.com/r3e-network/neo-go-core/pkg/chain"
	"github.com/r3e-network/neo-go-core/pkg/core/block"
	"github.com/r3e-network/neo-go-core/pkg/core/transaction"
)

// storageKey addresses one (contract, key) storage cell.
type storageKey struct {
	contract transaction.Hash160
	key      string
}

// Snapshot is an in-memory, mutable ledger the reference adapter's tests
// build up block by block; it satisfies chain.Snapshot read-only from the
// core's point of view (no core package ever calls the Add* methods).
type Snapshot struct {
	mu sync.RWMutex

	blocksByHash  map[transaction.Hash256]*block.Block
	blocksByIndex map[uint32]*transaction.Hash256
	txHeight      map[transaction.Hash256]uint32
	contracts     map[transaction.Hash160]*chain.ContractState
	storage       map[storageKey][]byte
	height        uint32

	feePerByte     int64
	policyReady    bool
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		blocksByHash:  make(map[transaction.Hash256]*block.Block),
		blocksByIndex: make(map[uint32]*transaction.Hash256),
		txHeight:      make(map[transaction.Hash256]uint32),
		contracts:     make(map[transaction.Hash160]*chain.ContractState),
		storage:       make(map[storageKey][]byte),
	}
}

// AddBlock appends b as the new head, indexing every transaction it
// carries. Test scaffolding only — production snapshots are written by the
// ledger/consensus collaborators this module never implements.
func (s *Snapshot) AddBlock(b *block.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := b.Hash()
	s.blocksByHash[h] = b
	idx := b.Index()
	s.blocksByIndex[idx] = &h
	for _, tx := range b.Transactions {
		s.txHeight[tx.Hash()] = idx
	}
	if idx > s.height || (idx == 0 && len(s.blocksByIndex) == 1) {
		s.height = idx
	}
}

// SetFeePerByte activates the reference Policy contract at a given value;
// before this is called GetFeePerByte returns
// chain.ErrPolicyNotInitialized.
func (s *Snapshot) SetFeePerByte(v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feePerByte = v
	s.policyReady = true
}

func (s *Snapshot) PutContract(c *chain.ContractState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts[c.Hash] = c
}

func (s *Snapshot) PutStorage(contract transaction.Hash160, key, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storage[storageKey{contract, string(key)}] = value
}

func (s *Snapshot) GetHeight() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}

func (s *Snapshot) resolveBlock(hashOrIndex interface{}) (*block.Block, bool) {
	switch v := hashOrIndex.(type) {
	case transaction.Hash256:
		b, ok := s.blocksByHash[v]
		return b, ok
	case uint32:
		h, ok := s.blocksByIndex[v]
		if !ok {
			return nil, false
		}
		b, ok := s.blocksByHash[*h]
		return b, ok
	default:
		return nil, false
	}
}

func (s *Snapshot) GetBlock(hashOrIndex interface{}) (*block.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.resolveBlock(hashOrIndex)
	if !ok {
		return nil, chain.ErrNotFound
	}
	return b, nil
}

func (s *Snapshot) GetHeader(hashOrIndex interface{}) (*block.Header, error) {
	b, err := s.GetBlock(hashOrIndex)
	if err != nil {
		return nil, err
	}
	return &b.Header, nil
}

func (s *Snapshot) GetTransaction(hash transaction.Hash256) (*transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.txHeight[hash]
	if !ok {
		return nil, chain.ErrNotFound
	}
	h := *s.blocksByIndex[idx]
	b := s.blocksByHash[h]
	for _, tx := range b.Transactions {
		if tx.Hash() == hash {
			return tx, nil
		}
	}
	return nil, chain.ErrNotFound
}

func (s *Snapshot) GetTransactionHeight(hash transaction.Hash256) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.txHeight[hash]
	if !ok {
		return 0, chain.ErrNotFound
	}
	return idx, nil
}

func (s *Snapshot) GetContract(hash transaction.Hash160) (*chain.ContractState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[hash]
	if !ok {
		return nil, chain.ErrNotFound
	}
	return c, nil
}

func (s *Snapshot) Get(contract transaction.Hash160, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.storage[storageKey{contract, string(key)}]
	if !ok {
		return nil, chain.ErrNotFound
	}
	return v, nil
}

func (s *Snapshot) Find(contract transaction.Hash160, prefix []byte) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte)
	for k, v := range s.storage {
		if k.contract != contract {
			continue
		}
		if len(k.key) < len(prefix) || k.key[:len(prefix)] != string(prefix) {
			continue
		}
		out[k.key] = v
	}
	return out, nil
}

func (s *Snapshot) HasBlock(hash transaction.Hash256) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocksByHash[hash]
	return ok
}

func (s *Snapshot) HasTransaction(hash transaction.Hash256) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.txHeight[hash]
	return ok
}

// Policy is the reference chain.PolicyReader: returns the pinned fee once
// SetFeePerByte has been called, chain.ErrPolicyNotInitialized otherwise.
type Policy struct{}

func NewPolicy() Policy { return Policy{} }

func (Policy) GetFeePerByte(snap chain.Snapshot) (int64, error) {
	s, ok := snap.(*Snapshot)
	if !ok {
		return 0, chain.ErrPolicyNotInitialized
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.policyReady {
		return 0, chain.ErrPolicyNotInitialized
	}
	return s.feePerByte, nil
}
