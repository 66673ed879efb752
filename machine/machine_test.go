package machine

import (
	"errors"
	"testing"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// omega is the self-application combinator applied to itself. It never
// halts; only a step limit stops it.
func omega() Term {
	self := Lam("x", App(Var("x"), Var("x")))
	return App(self, self)
}

func mustInteger(t *testing.T, obj Object, want int64) {
	t.Helper()
	got, ok := obj.(*Integer)
	if !ok {
		t.Fatalf("result = %T, want *Integer", obj)
	}
	if got.Value != want {
		t.Errorf("result = %d, want %d", got.Value, want)
	}
}

// ---------------------------------------------------------------------------
// Evaluation
// ---------------------------------------------------------------------------

func TestRunPrograms(t *testing.T) {
	tests := []struct {
		name string
		term Term
		want int64
	}{
		{
			"identity application",
			App(Lam("x", Var("x")), Int(7)),
			7,
		},
		{
			"constant function discards second argument",
			App(App(Lam("x", Lam("y", Var("x"))), Int(10)), Int(99)),
			10,
		},
		{
			"nested identity",
			App(Lam("x", App(Lam("y", Var("y")), Var("x"))), Int(5)),
			5,
		},
		{
			"lexical capture survives return",
			App(Lam("x", App(Lam("f", App(Var("f"), Int(0))), Lam("y", Var("x")))), Int(42)),
			42,
		},
		{
			"shadowing",
			App(Lam("x", App(Lam("x", Var("x")), Int(3))), Int(1)),
			3,
		},
		{
			"integer literal",
			Int(0),
			0,
		},
		{
			"negative integer literal",
			Int(-13),
			-13,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			result, err := m.Run(tt.term)
			if err != nil {
				t.Fatalf("Run(%s) error: %v", tt.term, err)
			}
			mustInteger(t, result, tt.want)
		})
	}
}

func TestRunReturnsClosure(t *testing.T) {
	m := New()
	result, err := m.Run(Lam("x", Var("x")))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	cl, ok := result.(*Closure)
	if !ok {
		t.Fatalf("result = %T, want *Closure", result)
	}
	if cl.Param != "x" {
		t.Errorf("closure param = %q, want x", cl.Param)
	}
	if cl.Env != NilRef {
		t.Errorf("closure env = %d, want NilRef", cl.Env)
	}
}

func TestRunUnboundVariable(t *testing.T) {
	m := New()
	_, err := m.Run(Var("undefined"))
	if err == nil {
		t.Fatal("expected error for unbound variable")
	}
	var unbound *UnboundVariableError
	if !errors.As(err, &unbound) {
		t.Fatalf("error = %T, want *UnboundVariableError", err)
	}
	if unbound.Name != "undefined" {
		t.Errorf("unbound name = %q, want undefined", unbound.Name)
	}
}

func TestRunNotAFunction(t *testing.T) {
	m := New()
	_, err := m.Run(App(Int(1), Int(2)))
	if err == nil {
		t.Fatal("expected error for integer in function position")
	}
	var notFn *NotAFunctionError
	if !errors.As(err, &notFn) {
		t.Fatalf("error = %T, want *NotAFunctionError", err)
	}
	applied, ok := notFn.Value.(*Integer)
	if !ok || applied.Value != 1 {
		t.Errorf("applied value = %v, want integer 1", notFn.Value)
	}
}

func TestRunUnboundInsideBody(t *testing.T) {
	// The body only fails once the application actually evaluates it.
	m := New()
	_, err := m.Run(App(Lam("x", Var("y")), Int(1)))
	var unbound *UnboundVariableError
	if !errors.As(err, &unbound) {
		t.Fatalf("error = %v, want *UnboundVariableError", err)
	}
	if unbound.Name != "y" {
		t.Errorf("unbound name = %q, want y", unbound.Name)
	}
}

// ---------------------------------------------------------------------------
// Step limit
// ---------------------------------------------------------------------------

func TestStepLimitStopsDivergence(t *testing.T) {
	m := New(WithStepLimit(100))
	_, err := m.Run(omega())
	var limit *StepLimitError
	if !errors.As(err, &limit) {
		t.Fatalf("error = %v, want *StepLimitError", err)
	}
	if limit.Limit != 100 {
		t.Errorf("limit = %d, want 100", limit.Limit)
	}
	if m.Steps() != 100 {
		t.Errorf("steps = %d, want 100", m.Steps())
	}
}

func TestStepLimitNotHitByTerminatingProgram(t *testing.T) {
	m := New(WithStepLimit(1000))
	result, err := m.Run(App(Lam("x", Var("x")), Int(7)))
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	mustInteger(t, result, 7)
}

func TestSetStepLimit(t *testing.T) {
	m := New(WithStepLimit(1))
	m.SetStepLimit(0)
	result, err := m.Run(App(Lam("x", Var("x")), Int(7)))
	if err != nil {
		t.Fatalf("Run error after lifting limit: %v", err)
	}
	mustInteger(t, result, 7)
}

func TestStepLimitSurvivesLoad(t *testing.T) {
	m := New(WithStepLimit(40))
	if got := m.StepLimit(); got != 40 {
		t.Fatalf("step limit = %d, want 40", got)
	}
	m.Load(Int(7))
	if got := m.StepLimit(); got != 40 {
		t.Errorf("step limit after Load = %d, want 40", got)
	}
	m.SetStepLimit(0)
	if got := m.StepLimit(); got != 0 {
		t.Errorf("step limit after reset = %d, want 0", got)
	}
}

// ---------------------------------------------------------------------------
// Stepping
// ---------------------------------------------------------------------------

func TestStepCountIdentity(t *testing.T) {
	// App, Lam, eval-arg, Int, apply, Var: six transitions to the final
	// value.
	m := New()
	m.Load(App(Lam("x", Var("x")), Int(7)))
	for !m.Done() {
		if err := m.Step(); err != nil {
			t.Fatalf("Step error: %v", err)
		}
	}
	if m.Steps() != 6 {
		t.Errorf("steps = %d, want 6", m.Steps())
	}
	result, ok := m.Value()
	if !ok {
		t.Fatal("no value after halt")
	}
	mustInteger(t, result, 7)
}

func TestStepOnFinishedMachineIsNoOp(t *testing.T) {
	m := New()
	if _, err := m.Run(Int(1)); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	steps := m.Steps()
	if err := m.Step(); err != nil {
		t.Fatalf("Step on finished machine: %v", err)
	}
	if m.Steps() != steps {
		t.Errorf("steps advanced on finished machine: %d -> %d", steps, m.Steps())
	}
}

func TestValueBeforeCompletion(t *testing.T) {
	m := New()
	m.Load(App(Lam("x", Var("x")), Int(7)))
	if _, ok := m.Value(); ok {
		t.Error("Value() reported a value before any step")
	}
	if m.Done() {
		t.Error("Done() true before any step")
	}
}

func TestDeepApplicationChain(t *testing.T) {
	// ((λx.x) ((λx.x) (... 7))) nested deep enough that a recursive
	// evaluator would consume a matching amount of call stack. The
	// continuation chain lives on the heap instead, so a flat Step loop
	// handles it.
	const depth = 50000
	term := Term(Int(7))
	for i := 0; i < depth; i++ {
		term = App(Lam("x", Var("x")), term)
	}

	m := New()
	m.Load(term)
	for !m.Done() {
		if err := m.Step(); err != nil {
			t.Fatalf("Step error: %v", err)
		}
	}
	result, _ := m.Value()
	mustInteger(t, result, 7)

	if m.Heap().Cap() < depth {
		t.Errorf("heap cap = %d, want at least %d frames", m.Heap().Cap(), depth)
	}
}

func TestDeepApplicationChainWithCollection(t *testing.T) {
	// Same shape, smaller depth, full Run: collection after every step
	// must never free a pending frame.
	const depth = 1000
	term := Term(Int(7))
	for i := 0; i < depth; i++ {
		term = App(Lam("x", Var("x")), term)
	}

	m := New()
	result, err := m.Run(term)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	mustInteger(t, result, 7)
	if m.TotalSwept() == 0 {
		t.Error("expected sweeping during a deep run")
	}
}

// ---------------------------------------------------------------------------
// Run isolation
// ---------------------------------------------------------------------------

func TestRunsAreIndependent(t *testing.T) {
	m := New()
	term := App(Lam("x", App(Lam("y", Var("y")), Var("x"))), Int(5))

	first, err := m.Run(term)
	if err != nil {
		t.Fatalf("first Run error: %v", err)
	}
	firstAllocs := m.Heap().TotalAllocs()
	mustInteger(t, first, 5)

	second, err := m.Run(term)
	if err != nil {
		t.Fatalf("second Run error: %v", err)
	}
	mustInteger(t, second, 5)

	if m.Heap().TotalAllocs() != firstAllocs {
		t.Errorf("allocation count differs between runs: %d then %d",
			firstAllocs, m.Heap().TotalAllocs())
	}
}

func TestRunRecoversAfterError(t *testing.T) {
	m := New()
	if _, err := m.Run(Var("nope")); err == nil {
		t.Fatal("expected unbound variable error")
	}
	result, err := m.Run(Int(3))
	if err != nil {
		t.Fatalf("Run after error: %v", err)
	}
	mustInteger(t, result, 3)
}

func TestStepWithoutLoadPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic stepping an unloaded machine")
		}
	}()
	New().Step()
}
