package vm

import (
	"encoding/binary"
	"testing"

	"github.com/r3e-network/neo-go-core/pkg/vm/stackitem"
)

func runScript(t *testing.T, bytes []byte) *Engine {
	t.Helper()
	script, err := NewScript(bytes, true)
	if err != nil {
		t.Fatalf("NewScript: %v", err)
	}
	e := NewEngine(nil, 0)
	if _, err := e.LoadScript(script, -1, nil); err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	e.Execute()
	return e
}

func TestArithmeticHalts(t *testing.T) {
	// PUSH5 PUSH3 ADD RET
	e := runScript(t, []byte{byte(PUSH5), byte(PUSH3), byte(ADD), byte(RET)})
	if e.State() != StateHalt {
		t.Fatalf("state = %v, want HALT (%s)", e.State(), e.FaultMessage())
	}
	if e.ResultStack().Len() != 1 {
		t.Fatalf("result stack len = %d, want 1", e.ResultStack().Len())
	}
	top := e.ResultStack().All()[0]
	ii, ok := top.(stackitem.Integer)
	if !ok {
		t.Fatalf("result type = %T, want Integer", top)
	}
	if ii.Big().Int64() != 8 {
		t.Errorf("result = %d, want 8", ii.Big().Int64())
	}
}

func TestDivideByZeroFaults(t *testing.T) {
	// PUSH5 PUSH0 DIV RET
	e := runScript(t, []byte{byte(PUSH5), byte(PUSH0), byte(DIV), byte(RET)})
	if e.State() != StateFault {
		t.Fatalf("state = %v, want FAULT", e.State())
	}
}

func TestNegativeExponentFaults(t *testing.T) {
	// PUSH2 PUSHM1 POW RET
	e := runScript(t, []byte{byte(PUSH2), byte(PUSHM1), byte(POW), byte(RET)})
	if e.State() != StateFault {
		t.Fatalf("state = %v, want FAULT", e.State())
	}
}

func TestTryCatchThrowRecovers(t *testing.T) {
	bytes := []byte{
		byte(TRY), 5, 0, // 0: TRY catch=+5 finally=none
		byte(PUSH1),         // 3: push the value to throw
		byte(THROW),         // 4: throw it
		byte(PUSHINT8), 100, // 5: (catch handler) push 100
		byte(ADD), // 7: caught + 100
		byte(RET), // 8
	}
	e := runScript(t, bytes)
	if e.State() != StateHalt {
		t.Fatalf("state = %v, want HALT (%s)", e.State(), e.FaultMessage())
	}
	top := e.ResultStack().All()[0].(stackitem.Integer)
	if top.Big().Int64() != 101 {
		t.Errorf("result = %d, want 101", top.Big().Int64())
	}
}

func TestThrowWithoutCatchFaultsUncaught(t *testing.T) {
	bytes := []byte{byte(PUSH1), byte(THROW)}
	e := runScript(t, bytes)
	if e.State() != StateFault {
		t.Fatalf("state = %v, want FAULT", e.State())
	}
	if e.UncaughtException == nil {
		t.Fatal("UncaughtException is nil, want the thrown payload")
	}
}

func TestStackManipulation(t *testing.T) {
	// PUSH1 PUSH2 SWAP SUB RET  => (1 - 2) after swap becomes (2 - 1) = 1
	e := runScript(t, []byte{byte(PUSH1), byte(PUSH2), byte(SWAP), byte(SUB), byte(RET)})
	if e.State() != StateHalt {
		t.Fatalf("state = %v, want HALT (%s)", e.State(), e.FaultMessage())
	}
	top := e.ResultStack().All()[0].(stackitem.Integer)
	if top.Big().Int64() != 1 {
		t.Errorf("result = %d, want 1", top.Big().Int64())
	}
}

func TestCompoundAppendAndSize(t *testing.T) {
	// NEWARRAY0 DUP PUSH7 APPEND DUP SIZE RET
	bytes := []byte{
		byte(NEWARRAY0), byte(DUP), byte(PUSH7), byte(APPEND),
		byte(DUP), byte(SIZE), byte(RET),
	}
	e := runScript(t, bytes)
	if e.State() != StateHalt {
		t.Fatalf("state = %v, want HALT (%s)", e.State(), e.FaultMessage())
	}
	items := e.ResultStack().All()
	if len(items) != 2 {
		t.Fatalf("result stack len = %d, want 2", len(items))
	}
	size := items[0].(stackitem.Integer)
	if size.Big().Int64() != 1 {
		t.Errorf("size = %d, want 1", size.Big().Int64())
	}
}

func TestComparisonOpcodes(t *testing.T) {
	tests := []struct {
		name string
		ops  []byte
		want bool
	}{
		{"lt true", []byte{byte(PUSH1), byte(PUSH2), byte(LT)}, true},
		{"lt false", []byte{byte(PUSH2), byte(PUSH1), byte(LT)}, false},
		{"numequal", []byte{byte(PUSH3), byte(PUSH3), byte(NUMEQUAL)}, true},
		{"ge", []byte{byte(PUSH3), byte(PUSH3), byte(GE)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bytes := append(append([]byte{}, tt.ops...), byte(RET))
			e := runScript(t, bytes)
			if e.State() != StateHalt {
				t.Fatalf("state = %v, want HALT (%s)", e.State(), e.FaultMessage())
			}
			got := e.ResultStack().All()[0].(stackitem.Boolean)
			if bool(got) != tt.want {
				t.Errorf("got %v, want %v", bool(got), tt.want)
			}
		})
	}
}

func TestInitSlotAndLocals(t *testing.T) {
	// INITSLOT 1 local, 0 args; PUSH9 STLOC0; LDLOC0 RET
	bytes := []byte{
		byte(INITSLOT), 1, 0,
		byte(PUSH9), byte(STLOC0),
		byte(LDLOC0), byte(RET),
	}
	e := runScript(t, bytes)
	if e.State() != StateHalt {
		t.Fatalf("state = %v, want HALT (%s)", e.State(), e.FaultMessage())
	}
	top := e.ResultStack().All()[0].(stackitem.Integer)
	if top.Big().Int64() != 9 {
		t.Errorf("result = %d, want 9", top.Big().Int64())
	}
}

func TestStackOverflowFaults(t *testing.T) {
	bytes := make([]byte, 0, MaxStackSize*2+8)
	for i := 0; i < MaxStackSize+10; i++ {
		bytes = append(bytes, byte(PUSH1))
	}
	bytes = append(bytes, byte(RET))
	e := runScript(t, bytes)
	if e.State() != StateFault {
		t.Fatalf("state = %v, want FAULT", e.State())
	}
}

func TestPushDataAtItemSizeLimitHalts(t *testing.T) {
	data := make([]byte, MaxItemSize)
	bytes := []byte{byte(PUSHDATA4)}
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(data)))
	bytes = append(bytes, l[:]...)
	bytes = append(bytes, data...)
	bytes = append(bytes, byte(RET))
	e := runScript(t, bytes)
	if e.State() != StateHalt {
		t.Fatalf("state = %v, want HALT (%s)", e.State(), e.FaultMessage())
	}
}

func TestPushDataOverItemSizeLimitRejected(t *testing.T) {
	data := make([]byte, MaxItemSize+1)
	raw := []byte{byte(PUSHDATA4)}
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(data)))
	raw = append(raw, l[:]...)
	raw = append(raw, data...)
	raw = append(raw, byte(RET))

	if _, err := NewScript(raw, true); err == nil {
		t.Fatal("strict NewScript must reject an oversized PUSHDATA operand")
	}

	script, err := NewScript(raw, false)
	if err != nil {
		t.Fatalf("relaxed NewScript: %v", err)
	}
	e := NewEngine(nil, 0)
	if _, err := e.LoadScript(script, -1, nil); err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	if e.Execute() != StateFault {
		t.Fatalf("state = %v, want FAULT at run time in relaxed mode", e.State())
	}
}

func TestInvocationStackDepthLimitFaults(t *testing.T) {
	// CALL +0 targets itself, recursing until the invocation stack cap.
	e := runScript(t, []byte{byte(CALL), 0, byte(RET)})
	if e.State() != StateFault {
		t.Fatalf("state = %v, want FAULT", e.State())
	}
}

func pushInt256(fill byte, top byte) []byte {
	out := []byte{byte(PUSHINT256)}
	for i := 0; i < 31; i++ {
		out = append(out, fill)
	}
	return append(out, top)
}

func TestIntegerWidthBoundary(t *testing.T) {
	// 2^255-1 is the widest legal positive Integer; INC overflows it.
	max := pushInt256(0xff, 0x7f)

	ok := append(append([]byte{}, max...), byte(DEC), byte(RET))
	e := runScript(t, ok)
	if e.State() != StateHalt {
		t.Fatalf("DEC on max: state = %v, want HALT (%s)", e.State(), e.FaultMessage())
	}

	over := append(append([]byte{}, max...), byte(INC), byte(RET))
	e = runScript(t, over)
	if e.State() != StateFault {
		t.Fatalf("INC past max: state = %v, want FAULT", e.State())
	}
}

func TestEndTryRunsFinallyBeforeContinuation(t *testing.T) {
	bytes := []byte{
		byte(TRY), 0, 6, // 0: no catch, finally at 6
		byte(PUSH1),     // 3
		byte(ENDTRY), 6, // 4: end target 10
		byte(PUSH2),      // 6: finally body
		byte(ENDFINALLY), // 7: resume at 10
		byte(NOP),        // 8
		byte(NOP),        // 9
		byte(PUSH3),      // 10
		byte(RET),        // 11
	}
	e := runScript(t, bytes)
	if e.State() != StateHalt {
		t.Fatalf("state = %v, want HALT (%s)", e.State(), e.FaultMessage())
	}
	items := e.ResultStack().All()
	if len(items) != 3 {
		t.Fatalf("result stack len = %d, want 3", len(items))
	}
	want := []int64{3, 2, 1} // top first
	for i, w := range want {
		got := items[i].(stackitem.Integer).Big().Int64()
		if got != w {
			t.Errorf("result[%d] = %d, want %d", i, got, w)
		}
	}
}

func TestThrowInsideCatchRunsInnerFinallyThenOuterCatch(t *testing.T) {
	bytes := []byte{
		byte(TRY), 14, 0, // 0: outer, catch at 14
		byte(TRY), 5, 9, // 3: inner, catch at 8, finally at 12
		byte(PUSH1),      // 6
		byte(THROW),      // 7: -> inner catch
		byte(PUSH2),      // 8: inner catch body
		byte(THROW),      // 9: rethrow -> inner finally first
		byte(NOP),        // 10
		byte(NOP),        // 11
		byte(PUSH3),      // 12: inner finally body
		byte(ENDFINALLY), // 13: resume propagation -> outer catch
		byte(PUSH4),      // 14: outer catch body
		byte(RET),        // 15
	}
	e := runScript(t, bytes)
	if e.State() != StateHalt {
		t.Fatalf("state = %v, want HALT (%s)", e.State(), e.FaultMessage())
	}
	items := e.ResultStack().All()
	top := items[0].(stackitem.Integer).Big().Int64()
	if top != 4 {
		t.Fatalf("top = %d, want 4 (outer catch executed last)", top)
	}
	rethrown := items[1].(stackitem.Integer).Big().Int64()
	if rethrown != 2 {
		t.Errorf("outer catch received %d, want the rethrown 2", rethrown)
	}
}

func TestCallSharesStaticFieldSlot(t *testing.T) {
	bytes := []byte{
		byte(INITSSLOT), 1, // 0
		byte(PUSH5),   // 2
		byte(STSFLD0), // 3
		byte(CALL), 3, // 4: target 7
		byte(RET),     // 6
		byte(LDSFLD0), // 7: callee reads the shared static
		byte(RET),     // 8
	}
	e := runScript(t, bytes)
	if e.State() != StateHalt {
		t.Fatalf("state = %v, want HALT (%s)", e.State(), e.FaultMessage())
	}
	top := e.ResultStack().All()[0].(stackitem.Integer)
	if top.Big().Int64() != 5 {
		t.Errorf("result = %d, want the static field value 5", top.Big().Int64())
	}
}

func TestReferenceCountWithinBoundAfterHalt(t *testing.T) {
	// NEWARRAY0 DUP DUP APPEND builds a self-referencing array; dropping it must
	// let the post-step scan reclaim the cycle.
	bytes := []byte{
		byte(NEWARRAY0), byte(DUP), byte(DUP), byte(APPEND),
		byte(DROP),
		byte(PUSH1), byte(RET),
	}
	e := runScript(t, bytes)
	if e.State() != StateHalt {
		t.Fatalf("state = %v, want HALT (%s)", e.State(), e.FaultMessage())
	}
	if got := e.RefCounter().Count(); got > MaxStackSize {
		t.Errorf("total reference count %d exceeds MaxStackSize after halt", got)
	}
}
