package transaction

// WitnessScope bounds where a signer's witness is considered valid. The
// bit layout mirrors Neo N3's wire encoding so
// a Signer round-trips without a translation table.
type WitnessScope byte

const (
	ScopeNone            WitnessScope = 0x00
	ScopeCalledByEntry   WitnessScope = 0x01
	ScopeCustomContracts WitnessScope = 0x10
	ScopeCustomGroups    WitnessScope = 0x20
	ScopeWitnessRules    WitnessScope = 0x40
	ScopeGlobal          WitnessScope = 0x80
)

func (s WitnessScope) Has(bit WitnessScope) bool { return s&bit != 0 }

// WitnessRuleAction is the action a witness rule resolves to.
type WitnessRuleAction byte

const (
	WitnessRuleDeny  WitnessRuleAction = 0
	WitnessRuleAllow WitnessRuleAction = 1
)

// WitnessRule is one conditional scope-narrowing rule (ScopeWitnessRules).
// The condition tree itself is opaque to the verifier: evaluating it is an
// Application-trigger concern (native ledger/contract state), not something
// the state-independent verification pipeline touches.
type WitnessRule struct {
	Action    WitnessRuleAction
	Condition []byte // opaque, pre-serialized condition expression
}
