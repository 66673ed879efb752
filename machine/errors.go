package machine

import "fmt"

// ---------------------------------------------------------------------------
// Evaluation errors
// ---------------------------------------------------------------------------

// Evaluation errors are fatal to the current run: there is no local
// recovery or partial result. They are typed so callers can distinguish
// them with errors.As.

// UnboundVariableError is returned when a variable lookup exhausts the
// environment chain without finding a binding.
type UnboundVariableError struct {
	Name string
}

func (e *UnboundVariableError) Error() string {
	return fmt.Sprintf("unbound variable %q", e.Name)
}

// NotAFunctionError is returned when application finds a non-closure in
// function position.
type NotAFunctionError struct {
	Value Object
}

func (e *NotAFunctionError) Error() string {
	return fmt.Sprintf("not a function: %s", describe(e.Value))
}

// StepLimitError is returned when evaluation exceeds the configured
// maximum step count. A divergent program never reaches the halt frame on
// its own; the limit is the only way to stop it.
type StepLimitError struct {
	Limit uint64
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("step limit of %d exceeded", e.Limit)
}
