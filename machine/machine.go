package machine

import "fmt"

// ---------------------------------------------------------------------------
// Machine: CEK state and transitions
// ---------------------------------------------------------------------------

// Machine evaluates terms with an explicit control/environment/
// continuation state. Continuations are heap data rather than Go call
// frames, so source-level recursion depth is bounded only by heap size.
// The machine is single-threaded: callers that share one across
// goroutines must serialize access themselves.
type Machine struct {
	heap *Heap
	weak *WeakSet

	// Exactly one of control and value is set between steps: control
	// when a term is about to be evaluated, value when one just was.
	control Term
	value   Ref
	env     Ref
	kont    Ref

	steps       uint64
	stepLimit   uint64
	collections uint64
	totalSwept  int
	collectHook func(GCStats)
}

// Option configures a Machine.
type Option func(*Machine)

// WithStepLimit bounds the number of transitions a run may take. Zero
// means unlimited. Divergent programs need a limit to terminate at all.
func WithStepLimit(limit uint64) Option {
	return func(m *Machine) { m.stepLimit = limit }
}

// WithCollectHook registers a callback invoked after every collection
// cycle with that cycle's statistics.
func WithCollectHook(fn func(GCStats)) Option {
	return func(m *Machine) { m.collectHook = fn }
}

// New creates a machine with an empty heap and no program loaded.
func New(opts ...Option) *Machine {
	m := &Machine{
		heap:  NewHeap(),
		weak:  newWeakSet(),
		value: NilRef,
		env:   NilRef,
		kont:  NilRef,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetStepLimit replaces the step limit. Zero means unlimited. It applies
// from the next Step, so a serving loop can set it per request.
func (m *Machine) SetStepLimit(limit uint64) {
	m.stepLimit = limit
}

// StepLimit returns the current step limit. Zero means unlimited. Load
// does not touch it: the limit is configuration, not run state.
func (m *Machine) StepLimit() uint64 {
	return m.stepLimit
}

// Load resets the machine to an empty heap and installs term as the
// program: control = term, empty environment, halt continuation. Every
// run starts from a fresh pool, so runs are independent and
// deterministic.
func (m *Machine) Load(term Term) {
	if term == nil {
		panic("machine: load of nil term")
	}
	m.heap.Reset()
	m.weak.reset()
	m.control = term
	m.value = NilRef
	m.env = NilRef
	m.kont = m.heap.Alloc(&HaltFrame{})
	m.steps = 0
	m.collections = 0
	m.totalSwept = 0
}

// Run evaluates term to completion and returns the resulting value. The
// heap is collected after every step. On failure the returned error is
// one of UnboundVariableError, NotAFunctionError, or StepLimitError.
func (m *Machine) Run(term Term) (Object, error) {
	m.Load(term)
	return m.Resume()
}

// Resume drives the loaded machine until it halts, collecting after
// every step. The loop is flat: no Go recursion per transition.
func (m *Machine) Resume() (Object, error) {
	for !m.Done() {
		if err := m.Step(); err != nil {
			return nil, err
		}
		m.Collect()
	}
	return m.heap.Get(m.value), nil
}

// Done reports whether the machine holds a final value: a value is
// current and the continuation is the halt frame.
func (m *Machine) Done() bool {
	if m.control != nil || m.value == NilRef {
		return false
	}
	_, halted := m.heap.Get(m.kont).(*HaltFrame)
	return halted
}

// Value returns the current value if one is set. The result is the run's
// final value only once Done reports true.
func (m *Machine) Value() (Object, bool) {
	if m.value == NilRef {
		return nil, false
	}
	return m.heap.Get(m.value), true
}

// Step performs exactly one transition. It does not collect; Resume
// interleaves Step and Collect, while direct callers choose their own
// cadence. Calling Step on a finished machine is a no-op.
func (m *Machine) Step() error {
	if m.control == nil && m.value == NilRef {
		panic("machine: no program loaded")
	}
	if m.Done() {
		return nil
	}
	if m.stepLimit > 0 && m.steps >= m.stepLimit {
		return &StepLimitError{Limit: m.stepLimit}
	}
	m.steps++

	if m.control != nil {
		switch t := m.control.(type) {
		case *Variable:
			// Innermost binding wins; exhausting the chain is fatal.
			ref, ok := m.lookup(t.Name)
			if !ok {
				return &UnboundVariableError{Name: t.Name}
			}
			m.control = nil
			m.value = ref

		case *IntegerLiteral:
			m.control = nil
			m.value = m.heap.Alloc(&Integer{Value: t.Value})

		case *Lambda:
			// Lexical capture: the closure holds the environment that
			// is current right now, nothing more.
			m.control = nil
			m.value = m.heap.Alloc(&Closure{Param: t.Param, Body: t.Body, Env: m.env})

		case *Application:
			m.kont = m.heap.Alloc(&EvalArgFrame{Arg: t.Arg, Env: m.env, Next: m.kont})
			m.control = t.Fn

		default:
			panic(fmt.Sprintf("machine: unknown term %T", m.control))
		}
		return nil
	}

	// A value is current; the continuation decides what happens next.
	switch k := m.heap.Get(m.kont).(type) {
	case *EvalArgFrame:
		// The value is the function position's result. Hold it while the
		// argument is evaluated in the environment of the application.
		m.kont = m.heap.Alloc(&ApplyFrame{Fn: m.value, Next: k.Next})
		m.control = k.Arg
		m.env = k.Env
		m.value = NilRef

	case *ApplyFrame:
		fn := m.heap.Get(k.Fn)
		cl, ok := fn.(*Closure)
		if !ok {
			return &NotAFunctionError{Value: fn}
		}
		m.env = m.heap.Alloc(&Binding{Name: cl.Param, Value: m.value, Parent: cl.Env})
		m.control = cl.Body
		m.kont = k.Next
		m.value = NilRef

	case *HaltFrame:
		// Terminal; Done is now true.

	default:
		panic(fmt.Sprintf("machine: unknown continuation %T", m.heap.Get(m.kont)))
	}
	return nil
}

// lookup walks the environment chain innermost-first.
func (m *Machine) lookup(name string) (Ref, bool) {
	for env := m.env; env != NilRef; {
		b := m.heap.Binding(env)
		if b.Name == name {
			return b.Value, true
		}
		env = b.Parent
	}
	return NilRef, false
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Heap returns the machine's heap.
func (m *Machine) Heap() *Heap {
	return m.heap
}

// WeakRefs returns the machine's weak reference set.
func (m *Machine) WeakRefs() *WeakSet {
	return m.weak
}

// Steps returns the number of transitions taken since the last Load.
func (m *Machine) Steps() uint64 {
	return m.steps
}

// Collections returns the number of collection cycles since the last
// Load.
func (m *Machine) Collections() uint64 {
	return m.collections
}

// TotalSwept returns the number of objects reclaimed since the last
// Load.
func (m *Machine) TotalSwept() int {
	return m.totalSwept
}
