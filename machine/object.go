package machine

// ---------------------------------------------------------------------------
// Heap objects
// ---------------------------------------------------------------------------

// Ref is a handle to a heap slot. Handles are plain indices into the
// machine's arena, so stale or fabricated handles are caught by bounds
// checks instead of dereferencing freed memory.
type Ref int32

// NilRef marks the absence of a reference: the empty environment and the
// unset value slot. It is never a valid arena index.
const NilRef Ref = -1

// Kind discriminates heap object variants.
type Kind uint8

const (
	KindInteger Kind = iota + 1
	KindClosure
	KindBinding
	KindHalt
	KindEvalArg
	KindApply
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindClosure:
		return "closure"
	case KindBinding:
		return "binding"
	case KindHalt:
		return "halt"
	case KindEvalArg:
		return "eval-arg"
	case KindApply:
		return "apply"
	default:
		return "unknown"
	}
}

// Object is implemented by every heap-allocated cell: values, environment
// bindings, and continuation frames. The set is closed; the collector's
// mark phase is one exhaustive switch over it. Objects are immutable once
// allocated, so extension and frame pushes always allocate fresh cells.
type Object interface {
	Kind() Kind
}

// Integer is a boxed integer value.
type Integer struct {
	Value int64
}

// Closure pairs a lambda's parameter and body with the environment that
// was current when the lambda was evaluated. The captured environment is
// a strong reference.
type Closure struct {
	Param string
	Body  Term
	Env   Ref
}

// Binding is one immutable environment node: a name bound to a value,
// linked to the enclosing environment. The empty environment is NilRef.
type Binding struct {
	Name   string
	Value  Ref
	Parent Ref
}

// HaltFrame is the terminal continuation: when a value meets it,
// evaluation is complete.
type HaltFrame struct{}

// EvalArgFrame remembers a pending argument while the function position
// of an application is evaluated. Env is the environment that was current
// when the application was first encountered; it is restored before the
// argument is evaluated.
type EvalArgFrame struct {
	Arg  Term
	Env  Ref
	Next Ref
}

// ApplyFrame remembers an evaluated function while its argument is
// evaluated. When a value meets it, the function is applied.
type ApplyFrame struct {
	Fn   Ref
	Next Ref
}

func (*Integer) Kind() Kind      { return KindInteger }
func (*Closure) Kind() Kind      { return KindClosure }
func (*Binding) Kind() Kind      { return KindBinding }
func (*HaltFrame) Kind() Kind    { return KindHalt }
func (*EvalArgFrame) Kind() Kind { return KindEvalArg }
func (*ApplyFrame) Kind() Kind   { return KindApply }
