package transaction

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func sampleTx() *Transaction {
	var acct Hash160
	acct[0] = 0x11
	var allowed Hash160
	allowed[1] = 0x22
	return &Transaction{
		Version:         0,
		Nonce:           42,
		SystemFee:       1000000,
		NetworkFee:      500000,
		ValidUntilBlock: 999,
		Signers: []Signer{{
			Account:          acct,
			Scopes:           ScopeCalledByEntry | ScopeCustomContracts,
			AllowedContracts: []Hash160{allowed},
			AllowedGroups:    [][]byte{{0x02, 0xaa}},
			Rules:            []WitnessRule{{Action: WitnessRuleAllow, Condition: []byte{0x01}}},
		}},
		Attributes: []Attribute{{Type: 1, Value: []byte{0xfe}}},
		Script:     []byte{0x11, 0x40},
		Witnesses:  []Witness{{InvocationScript: []byte{0x0c, 0x01, 0x00}, VerificationScript: []byte{0x40}}},
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	tx := sampleTx()
	raw := tx.Bytes()

	got, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if !bytes.Equal(got.Bytes(), raw) {
		t.Error("re-serialized bytes differ from the original encoding")
	}
	if got.Hash() != tx.Hash() {
		t.Errorf("hash changed across the round trip: %s vs %s", got.Hash(), tx.Hash())
	}
	if got.Nonce != tx.Nonce || got.SystemFee != tx.SystemFee || got.ValidUntilBlock != tx.ValidUntilBlock {
		t.Error("scalar fields did not survive the round trip")
	}
	if len(got.Signers) != 1 || got.Signers[0].Account != tx.Signers[0].Account {
		t.Error("signer did not survive the round trip")
	}
	if len(got.Witnesses) != 1 || !bytes.Equal(got.Witnesses[0].VerificationScript, tx.Witnesses[0].VerificationScript) {
		t.Error("witness did not survive the round trip")
	}
}

func TestDeserializeRejectsTrailingBytes(t *testing.T) {
	raw := append(sampleTx().Bytes(), 0x00)
	if _, err := Deserialize(raw); err == nil {
		t.Fatal("trailing bytes must be rejected")
	}
}

func TestDeserializeRejectsTruncatedInput(t *testing.T) {
	raw := sampleTx().Bytes()
	if _, err := Deserialize(raw[:len(raw)/2]); err == nil {
		t.Fatal("truncated input must be rejected")
	}
}

func TestDeserializeRejectsAbsurdSignerCount(t *testing.T) {
	// A well-formed prefix followed by a varint signer count of 2^32-1.
	var buf bytes.Buffer
	buf.WriteByte(0)                               // version
	buf.Write(make([]byte, 4+8+8+4))               // nonce, sysfee, netfee, vub
	buf.Write([]byte{0xfe, 0xff, 0xff, 0xff, 0xff}) // signer count 0xffffffff
	if _, err := Deserialize(buf.Bytes()); err == nil {
		t.Fatal("absurd element count must be rejected before allocation")
	}
}

func TestHashExcludesWitnesses(t *testing.T) {
	tx := sampleTx()
	h1 := tx.Hash()

	modified := sampleTx()
	modified.Witnesses[0].InvocationScript = []byte{0xde, 0xad}
	if modified.Hash() != h1 {
		t.Error("the hash covers only the unsigned body, not witnesses")
	}

	changed := sampleTx()
	changed.Nonce++
	if changed.Hash() == h1 {
		t.Error("changing a body field must change the hash")
	}
}

func TestSignDataLayout(t *testing.T) {
	tx := sampleTx()
	const magic = 0x12345678
	data := SignData(tx, magic)
	if len(data) != 36 {
		t.Fatalf("sign data length = %d, want 4+32", len(data))
	}
	if binary.LittleEndian.Uint32(data[:4]) != magic {
		t.Error("sign data must start with the little-endian network magic")
	}
	h := tx.Hash()
	if !bytes.Equal(data[4:], h.Bytes()) {
		t.Error("sign data must end with the body hash")
	}
}

func TestParseHash256RoundTrip(t *testing.T) {
	tx := sampleTx()
	h := tx.Hash()
	parsed, err := ParseHash256(h.String())
	if err != nil {
		t.Fatalf("ParseHash256: %v", err)
	}
	if parsed != h {
		t.Errorf("String/Parse round trip mismatch: %s vs %s", parsed, h)
	}
}

func TestValidateStructuralInvariants(t *testing.T) {
	tx := sampleTx()
	if err := tx.Validate(); err != nil {
		t.Fatalf("sample must validate: %v", err)
	}

	noSigners := sampleTx()
	noSigners.Signers = nil
	if err := noSigners.Validate(); err != ErrNoSigners {
		t.Errorf("err = %v, want ErrNoSigners", err)
	}

	noScript := sampleTx()
	noScript.Script = nil
	if err := noScript.Validate(); err != ErrNoScript {
		t.Errorf("err = %v, want ErrNoScript", err)
	}

	badWitness := sampleTx()
	badWitness.Witnesses = nil
	if err := badWitness.Validate(); err != ErrBadWitness {
		t.Errorf("err = %v, want ErrBadWitness", err)
	}
}
