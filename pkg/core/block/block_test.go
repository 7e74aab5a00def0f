package block

import (
	"bytes"
	"testing"

	"github.com/r3e-network/neo-go-core/pkg/core/transaction"
)

func sampleHeader(index uint32, prev transaction.Hash256, timestamp uint64) *Header {
	var consensus transaction.Hash160
	consensus[0] = 0x77
	return &Header{
		Version:       0,
		PrevHash:      prev,
		Timestamp:     timestamp,
		Nonce:         12345,
		Index:         index,
		PrimaryIndex:  1,
		NextConsensus: consensus,
		Witness: transaction.Witness{
			InvocationScript:   []byte{0x0c, 0x01, 0xaa},
			VerificationScript: []byte{0x40},
		},
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := sampleHeader(7, transaction.Hash256{0x01}, 1000)
	raw := h.Bytes()
	got, err := DeserializeHeader(raw)
	if err != nil {
		t.Fatalf("DeserializeHeader: %v", err)
	}
	if !bytes.Equal(got.Bytes(), raw) {
		t.Error("re-serialized header differs from the original encoding")
	}
	if got.Hash() != h.Hash() {
		t.Error("header hash changed across the round trip")
	}
}

func TestBlockRoundTripWithTransactions(t *testing.T) {
	tx := &transaction.Transaction{
		Version:         0,
		Nonce:           1,
		SystemFee:       100,
		NetworkFee:      200,
		ValidUntilBlock: 50,
		Signers:         []transaction.Signer{{Account: transaction.Hash160{0x01}}},
		Script:          []byte{0x11, 0x40},
		Witnesses:       []transaction.Witness{{VerificationScript: []byte{0x40}}},
	}
	b := &Block{Header: *sampleHeader(3, transaction.Hash256{0x02}, 500), Transactions: []*transaction.Transaction{tx}}

	raw := b.Bytes()
	got, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.Hash() != b.Hash() {
		t.Error("block hash changed across the round trip")
	}
	if len(got.Transactions) != 1 || got.Transactions[0].Hash() != tx.Hash() {
		t.Error("transactions did not survive the round trip")
	}
	if !bytes.Equal(got.Bytes(), raw) {
		t.Error("re-serialized block differs from the original encoding")
	}
}

func TestValidatesLink(t *testing.T) {
	genesis := sampleHeader(0, transaction.Hash256{}, 100)
	next := sampleHeader(1, genesis.Hash(), 200)
	if !next.ValidatesLink(genesis) {
		t.Fatal("a direct successor must validate")
	}

	wrongIndex := sampleHeader(2, genesis.Hash(), 200)
	if wrongIndex.ValidatesLink(genesis) {
		t.Error("a height gap must not validate")
	}

	staleTime := sampleHeader(1, genesis.Hash(), 100)
	if staleTime.ValidatesLink(genesis) {
		t.Error("a non-increasing timestamp must not validate")
	}

	wrongPrev := sampleHeader(1, transaction.Hash256{0xff}, 200)
	if wrongPrev.ValidatesLink(genesis) {
		t.Error("a broken prev-hash link must not validate")
	}

	if !genesis.ValidatesLink(nil) {
		t.Error("index 0 is the only legal chain start")
	}
}
