// Package wire encodes machine terms, results, and snapshots as CBOR for
// transport and persistence. Encoding is canonical so equal states
// produce identical bytes. The same structs carry json tags for the
// HTTP/JSON surface.
package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/lamarck/machine"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal encodes v as canonical CBOR.
func Marshal(v any) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

// ---------------------------------------------------------------------------
// Terms
// ---------------------------------------------------------------------------

// TermKind identifies the kind of term in a wire Term.
type TermKind uint8

const (
	TermVariable    TermKind = 1
	TermLambda      TermKind = 2
	TermApplication TermKind = 3
	TermInteger     TermKind = 4
)

// Term is the wire form of a machine term. Name carries the variable
// name or lambda parameter depending on Kind.
type Term struct {
	Kind  TermKind `cbor:"1,keyasint" json:"kind"`
	Name  string   `cbor:"2,keyasint,omitempty" json:"name,omitempty"`
	Value int64    `cbor:"3,keyasint,omitempty" json:"value,omitempty"`
	Body  *Term    `cbor:"4,keyasint,omitempty" json:"body,omitempty"`
	Fn    *Term    `cbor:"5,keyasint,omitempty" json:"fn,omitempty"`
	Arg   *Term    `cbor:"6,keyasint,omitempty" json:"arg,omitempty"`
}

// FromTerm converts a machine term to its wire form.
func FromTerm(t machine.Term) *Term {
	switch t := t.(type) {
	case *machine.Variable:
		return &Term{Kind: TermVariable, Name: t.Name}
	case *machine.Lambda:
		return &Term{Kind: TermLambda, Name: t.Param, Body: FromTerm(t.Body)}
	case *machine.Application:
		return &Term{Kind: TermApplication, Fn: FromTerm(t.Fn), Arg: FromTerm(t.Arg)}
	case *machine.IntegerLiteral:
		return &Term{Kind: TermInteger, Value: t.Value}
	default:
		panic(fmt.Sprintf("wire: unknown term %T", t))
	}
}

// ToTerm converts a wire term back to a machine term, validating shape
// as it goes. Decoded input is untrusted.
func (t *Term) ToTerm() (machine.Term, error) {
	if t == nil {
		return nil, fmt.Errorf("wire: nil term")
	}
	switch t.Kind {
	case TermVariable:
		if t.Name == "" {
			return nil, fmt.Errorf("wire: variable with empty name")
		}
		return machine.Var(t.Name), nil
	case TermLambda:
		if t.Body == nil {
			return nil, fmt.Errorf("wire: lambda %q without body", t.Name)
		}
		body, err := t.Body.ToTerm()
		if err != nil {
			return nil, err
		}
		return machine.Lam(t.Name, body), nil
	case TermApplication:
		if t.Fn == nil || t.Arg == nil {
			return nil, fmt.Errorf("wire: application missing function or argument")
		}
		fn, err := t.Fn.ToTerm()
		if err != nil {
			return nil, err
		}
		arg, err := t.Arg.ToTerm()
		if err != nil {
			return nil, err
		}
		return machine.App(fn, arg), nil
	case TermInteger:
		return machine.Int(t.Value), nil
	default:
		return nil, fmt.Errorf("wire: unknown term kind %d", t.Kind)
	}
}

// MarshalTerm serializes a Term to CBOR bytes.
func MarshalTerm(t *Term) ([]byte, error) {
	return cborEncMode.Marshal(t)
}

// UnmarshalTerm deserializes a Term from CBOR bytes.
func UnmarshalTerm(data []byte) (*Term, error) {
	var t Term
	if err := cbor.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("wire: unmarshal term: %w", err)
	}
	return &t, nil
}

// ---------------------------------------------------------------------------
// Results
// ---------------------------------------------------------------------------

// ResultKind identifies the kind of value in a wire Result.
type ResultKind uint8

const (
	ResultInteger ResultKind = 1
	ResultClosure ResultKind = 2
)

// Result is the wire form of an evaluation result. A closure result
// carries its parameter and body only; the captured environment is not
// part of the wire form (a Snapshot carries full heaps).
type Result struct {
	Kind  ResultKind `cbor:"1,keyasint" json:"kind"`
	Value int64      `cbor:"2,keyasint,omitempty" json:"value,omitempty"`
	Param string     `cbor:"3,keyasint,omitempty" json:"param,omitempty"`
	Body  *Term      `cbor:"4,keyasint,omitempty" json:"body,omitempty"`
}

// FromObject converts an evaluation result to its wire form. Only value
// objects (integers and closures) have one.
func FromObject(obj machine.Object) (*Result, error) {
	switch o := obj.(type) {
	case *machine.Integer:
		return &Result{Kind: ResultInteger, Value: o.Value}, nil
	case *machine.Closure:
		return &Result{Kind: ResultClosure, Param: o.Param, Body: FromTerm(o.Body)}, nil
	default:
		return nil, fmt.Errorf("wire: %s is not a result value", obj.Kind())
	}
}

// MarshalResult serializes a Result to CBOR bytes.
func MarshalResult(r *Result) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalResult deserializes a Result from CBOR bytes.
func UnmarshalResult(data []byte) (*Result, error) {
	var r Result
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("wire: unmarshal result: %w", err)
	}
	return &r, nil
}
