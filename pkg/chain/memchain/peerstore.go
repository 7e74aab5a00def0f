package memchain

import (
	"encoding/binary"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/r3e-network/neo-go-core/pkg/chain"
)

func encodePeerRecord(r chain.PeerRecord) []byte {
	buf := make([]byte, 8+8+1+4+8)
	binary.LittleEndian.PutUint64(buf[0:8], r.Timestamp)
	binary.LittleEndian.PutUint64(buf[8:16], r.Services)
	if r.Connected {
		buf[16] = 1
	}
	binary.LittleEndian.PutUint32(buf[17:21], r.Attempts)
	binary.LittleEndian.PutUint64(buf[21:29], r.LastSeen)
	return buf
}

func decodePeerRecord(b []byte) (chain.PeerRecord, error) {
	if len(b) != 29 {
		return chain.PeerRecord{}, fmt.Errorf("memchain: malformed peer record (%d bytes)", len(b))
	}
	return chain.PeerRecord{
		Timestamp: binary.LittleEndian.Uint64(b[0:8]),
		Services:  binary.LittleEndian.Uint64(b[8:16]),
		Connected: b[16] != 0,
		Attempts:  binary.LittleEndian.Uint32(b[17:21]),
		LastSeen:  binary.LittleEndian.Uint64(b[21:29]),
	}, nil
}

func peerAddressKey(addr string, port uint16) []byte {
	return []byte(fmt.Sprintf("PeerAddress:%s:%d", addr, port))
}

// PeerStore persists peer address records, backed by goleveldb for
// on-disk durability across restarts; an in-memory leveldb.Storage is
// used when path == "" for tests.
type PeerStore struct {
	db *leveldb.DB
}

// OpenPeerStore opens (creating if absent) a goleveldb database at path, or
// an in-memory store when path is empty.
func OpenPeerStore(path string) (*PeerStore, error) {
	var db *leveldb.DB
	var err error
	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, err
	}
	return &PeerStore{db: db}, nil
}

func (p *PeerStore) Close() error { return p.db.Close() }

var _ chain.PeerStore = (*PeerStore)(nil)

// Put persists rec under the canonical PeerAddress:<addr>:<port> key.
func (p *PeerStore) Put(addr string, port uint16, rec chain.PeerRecord) error {
	return p.db.Put(peerAddressKey(addr, port), encodePeerRecord(rec), nil)
}

// Get returns the stored record, or (false, nil) if no record exists yet.
func (p *PeerStore) Get(addr string, port uint16) (chain.PeerRecord, bool, error) {
	v, err := p.db.Get(peerAddressKey(addr, port), nil)
	if err == leveldb.ErrNotFound {
		return chain.PeerRecord{}, false, nil
	}
	if err != nil {
		return chain.PeerRecord{}, false, err
	}
	rec, err := decodePeerRecord(v)
	if err != nil {
		return chain.PeerRecord{}, false, err
	}
	return rec, true, nil
}

// All iterates every persisted peer record, used to seed reconnection on
// startup.
func (p *PeerStore) All() (map[string]chain.PeerRecord, error) {
	iter := p.db.NewIterator(nil, nil)
	defer iter.Release()
	out := make(map[string]chain.PeerRecord)
	for iter.Next() {
		rec, err := decodePeerRecord(append([]byte{}, iter.Value()...))
		if err != nil {
			continue
		}
		out[string(iter.Key())] = rec
	}
	return out, iter.Error()
}
