package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chazu/lamarck/machine"
	"github.com/chazu/lamarck/trace"
)

// Expectation is the outcome a catalog program is supposed to produce.
type Expectation int

const (
	ExpectInteger Expectation = iota
	ExpectClosure
	ExpectUnbound
	ExpectNotAFunction
	ExpectStepLimit
)

// Program is one entry in the built-in catalog.
type Program struct {
	Name    string
	Summary string
	Term    machine.Term
	Expect  Expectation
	Want    int64  // expected integer, for ExpectInteger
	Limit   uint64 // per-program step limit, for programs that diverge
}

// catalog returns the built-in demonstration programs.
func catalog() []Program {
	identity := machine.Lam("x", machine.Var("x"))
	selfApply := machine.Lam("x", machine.App(machine.Var("x"), machine.Var("x")))

	return []Program{
		{
			Name:    "identity",
			Summary: "apply the identity function to an integer",
			Term:    machine.App(identity, machine.Int(7)),
			Expect:  ExpectInteger,
			Want:    7,
		},
		{
			Name:    "constant",
			Summary: "a two-argument constant function keeps its first argument",
			Term: machine.App(
				machine.App(machine.Lam("x", machine.Lam("y", machine.Var("x"))), machine.Int(10)),
				machine.Int(20),
			),
			Expect: ExpectInteger,
			Want:   10,
		},
		{
			Name:    "nested-identity",
			Summary: "identity applied to identity, applied to an integer",
			Term: machine.App(
				machine.App(identity, machine.Lam("y", machine.Var("y"))),
				machine.Int(5),
			),
			Expect: ExpectInteger,
			Want:   5,
		},
		{
			Name:    "lexical-capture",
			Summary: "a closure reads a variable from its defining scope",
			Term: machine.App(
				machine.Lam("x", machine.App(
					machine.Lam("f", machine.App(machine.Var("f"), machine.Var("x"))),
					machine.Lam("y", machine.Var("x")),
				)),
				machine.Int(42),
			),
			Expect: ExpectInteger,
			Want:   42,
		},
		{
			Name:    "shadowing",
			Summary: "an inner binding shadows an outer one of the same name",
			Term: machine.App(
				machine.Lam("x", machine.App(machine.Lam("x", machine.Var("x")), machine.Int(3))),
				machine.Int(5),
			),
			Expect: ExpectInteger,
			Want:   3,
		},
		{
			Name:    "closure-result",
			Summary: "a bare lambda evaluates to a closure",
			Term:    identity,
			Expect:  ExpectClosure,
		},
		{
			Name:    "unbound-variable",
			Summary: "referencing an undefined variable fails",
			Term:    machine.Var("undefined"),
			Expect:  ExpectUnbound,
		},
		{
			Name:    "not-a-function",
			Summary: "applying an integer to an argument fails",
			Term:    machine.App(machine.Int(1), machine.Int(2)),
			Expect:  ExpectNotAFunction,
		},
		{
			Name:    "omega",
			Summary: "the self-application combinator diverges until the step limit",
			Term:    machine.App(selfApply, machine.Lam("x", machine.App(machine.Var("x"), machine.Var("x")))),
			Expect:  ExpectStepLimit,
			Limit:   1000,
		},
	}
}

// findProgram returns the named catalog entry, or nil.
func findProgram(progs []Program, name string) *Program {
	for i := range progs {
		if progs[i].Name == name {
			return &progs[i]
		}
	}
	return nil
}

// listPrograms prints the catalog, one line per program.
func listPrograms(w io.Writer) {
	for _, p := range catalog() {
		fmt.Fprintf(w, "%-18s %s\n", p.Name, p.Summary)
	}
}

// runPrograms evaluates each program and assembles a report. When
// traceDB is non-empty, every run's collection telemetry is recorded
// there as well.
func runPrograms(progs []Program, stepLimit uint64, traceDB string) (*RunReport, error) {
	var store *trace.Store
	if traceDB != "" {
		var err error
		store, err = trace.Open(traceDB)
		if err != nil {
			return nil, err
		}
		defer store.Close()
	}

	report := &RunReport{}
	for _, p := range progs {
		pr := runProgram(p, stepLimit, store)
		if pr.Outcome == "pass" {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Programs = append(report.Programs, pr)
	}
	return report, nil
}

// runProgram evaluates one program on a fresh machine.
func runProgram(p Program, stepLimit uint64, store *trace.Store) ProgramReport {
	limit := stepLimit
	if limit == 0 {
		limit = p.Limit
	}

	rec := &trace.Recorder{}
	m := machine.New(machine.WithStepLimit(limit), machine.WithCollectHook(rec.Hook()))
	_, err := m.Run(p.Term)

	pr := ProgramReport{
		Name:        p.Name,
		Summary:     p.Summary,
		Term:        p.Term.String(),
		Steps:       m.Steps(),
		Collections: m.Collections(),
		Swept:       m.TotalSwept(),
		MaxLive:     rec.MaxLive(),
	}
	if err != nil {
		pr.Error = err.Error()
	} else if obj, ok := m.Value(); ok {
		pr.Result = machine.FormatObject(m.Heap(), obj)
	}
	if p.outcomeOK(m, err) {
		pr.Outcome = "pass"
	} else {
		pr.Outcome = "fail"
	}

	if store != nil {
		result := pr.Result
		if result == "" {
			result = pr.Error
		}
		run := &trace.Run{
			ID:          trace.NewRunID(),
			Program:     p.Name,
			Result:      result,
			Steps:       m.Steps(),
			Collections: m.Collections(),
			Swept:       m.TotalSwept(),
			MaxLive:     rec.MaxLive(),
			StartedAt:   time.Now(),
		}
		if rerr := store.RecordRun(run, rec.Cycles()); rerr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to record run %s: %v\n", p.Name, rerr)
		} else {
			pr.RunID = run.ID
		}
	}
	return pr
}

// outcomeOK reports whether the machine ended the way the program
// expects.
func (p Program) outcomeOK(m *machine.Machine, err error) bool {
	switch p.Expect {
	case ExpectInteger:
		if err != nil {
			return false
		}
		obj, ok := m.Value()
		if !ok {
			return false
		}
		n, ok := obj.(*machine.Integer)
		return ok && n.Value == p.Want
	case ExpectClosure:
		if err != nil {
			return false
		}
		obj, ok := m.Value()
		if !ok {
			return false
		}
		_, ok = obj.(*machine.Closure)
		return ok
	case ExpectUnbound:
		var e *machine.UnboundVariableError
		return errors.As(err, &e)
	case ExpectNotAFunction:
		var e *machine.NotAFunctionError
		return errors.As(err, &e)
	case ExpectStepLimit:
		var e *machine.StepLimitError
		return errors.As(err, &e)
	}
	return false
}
