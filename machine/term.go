package machine

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Terms: the program AST
// ---------------------------------------------------------------------------

// Term is a node in the program AST. Terms are immutable, built by the
// caller before evaluation, and live outside the collected heap: the
// machine never allocates or frees them.
type Term interface {
	fmt.Stringer
	termNode()
}

// Variable is a reference to a name bound by an enclosing Lambda.
type Variable struct {
	Name string
}

// Lambda is a single-parameter abstraction.
type Lambda struct {
	Param string
	Body  Term
}

// Application applies Fn to Arg. Evaluation is call-by-value and
// left-to-right: Fn first, then Arg.
type Application struct {
	Fn  Term
	Arg Term
}

// IntegerLiteral is a literal integer.
type IntegerLiteral struct {
	Value int64
}

func (*Variable) termNode()       {}
func (*Lambda) termNode()         {}
func (*Application) termNode()    {}
func (*IntegerLiteral) termNode() {}

func (t *Variable) String() string {
	return t.Name
}

func (t *Lambda) String() string {
	return "(λ" + t.Param + ". " + t.Body.String() + ")"
}

func (t *Application) String() string {
	return "(" + t.Fn.String() + " " + t.Arg.String() + ")"
}

func (t *IntegerLiteral) String() string {
	return strconv.FormatInt(t.Value, 10)
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// Var builds a variable reference.
func Var(name string) *Variable {
	return &Variable{Name: name}
}

// Lam builds a single-parameter abstraction.
func Lam(param string, body Term) *Lambda {
	return &Lambda{Param: param, Body: body}
}

// App builds an application of fn to arg.
func App(fn, arg Term) *Application {
	return &Application{Fn: fn, Arg: arg}
}

// Int builds an integer literal.
func Int(n int64) *IntegerLiteral {
	return &IntegerLiteral{Value: n}
}
