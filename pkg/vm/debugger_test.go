package vm

import (
	"testing"

	"github.com/r3e-network/neo-go-core/pkg/vm/stackitem"
)

func loadEngine(t *testing.T, bytes []byte) (*Engine, *Script) {
	t.Helper()
	script, err := NewScript(bytes, true)
	if err != nil {
		t.Fatalf("NewScript: %v", err)
	}
	e := NewEngine(nil, 0)
	if _, err := e.LoadScript(script, -1, nil); err != nil {
		t.Fatalf("LoadScript: %v", err)
	}
	return e, script
}

func TestBreakpointStopsWithoutConsumingInstruction(t *testing.T) {
	e, script := loadEngine(t, []byte{byte(PUSH1), byte(PUSH2), byte(ADD), byte(RET)})
	e.AddBreakpoint(script, 2)

	if state := e.Execute(); state != StateBreak {
		t.Fatalf("state = %v, want BREAK", state)
	}
	ctx := e.CurrentContext()
	if ctx.IP != 2 {
		t.Fatalf("IP = %d, want 2 (stopped before ADD)", ctx.IP)
	}
	if ctx.EvalStack.Len() != 2 {
		t.Fatalf("eval stack len = %d, want 2 (ADD not yet executed)", ctx.EvalStack.Len())
	}

	// Resuming executes past the breakpoint.
	if state := e.Execute(); state != StateHalt {
		t.Fatalf("resume state = %v, want HALT (%s)", state, e.FaultMessage())
	}
	top := e.ResultStack().All()[0].(stackitem.Integer)
	if top.Big().Int64() != 3 {
		t.Errorf("result = %d, want 3", top.Big().Int64())
	}
}

func TestRemoveBreakpointRunsToCompletion(t *testing.T) {
	e, script := loadEngine(t, []byte{byte(PUSH1), byte(RET)})
	e.AddBreakpoint(script, 1)
	e.RemoveBreakpoint(script, 1)
	if state := e.Execute(); state != StateHalt {
		t.Fatalf("state = %v, want HALT", state)
	}
}

func TestStepIntoExecutesExactlyOneOpcode(t *testing.T) {
	e, _ := loadEngine(t, []byte{byte(PUSH1), byte(PUSH2), byte(RET)})
	e.StepInto()
	ctx := e.CurrentContext()
	if ctx.IP != 1 || ctx.EvalStack.Len() != 1 {
		t.Fatalf("after one StepInto: IP=%d stack=%d, want IP=1 stack=1", ctx.IP, ctx.EvalStack.Len())
	}
}

func TestStepOverSkipsCalleeFrames(t *testing.T) {
	bytes := []byte{
		byte(CALL), 3, // 0: target 3
		byte(RET),   // 2
		byte(PUSH1), // 3
		byte(RET),   // 4
	}
	e, _ := loadEngine(t, bytes)
	e.StepOver()
	if depth := e.InvocationDepth(); depth != 1 {
		t.Fatalf("invocation depth = %d after StepOver, want 1", depth)
	}
	ctx := e.CurrentContext()
	if ctx.IP != 2 {
		t.Fatalf("IP = %d after StepOver, want 2 (back in the caller)", ctx.IP)
	}
	if ctx.EvalStack.Len() != 1 {
		t.Fatalf("eval stack len = %d, want the callee's return value", ctx.EvalStack.Len())
	}
}

func TestStepOutReturnsToCaller(t *testing.T) {
	bytes := []byte{
		byte(CALL), 3, // 0: target 3
		byte(RET),   // 2
		byte(PUSH1), // 3
		byte(RET),   // 4
	}
	e, _ := loadEngine(t, bytes)
	e.StepInto() // CALL, depth now 2
	if e.InvocationDepth() != 2 {
		t.Fatalf("depth = %d after stepping into CALL, want 2", e.InvocationDepth())
	}
	e.StepOut()
	if e.InvocationDepth() != 1 {
		t.Fatalf("depth = %d after StepOut, want 1", e.InvocationDepth())
	}
}
