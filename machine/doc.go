// Package machine implements a CEK abstract machine for a call-by-value
// lambda calculus with an integrated mark-and-sweep garbage collector.
//
// This package contains:
//   - Term constructors for the program AST
//   - An arena heap addressed by integer handles
//   - Defunctionalized continuations stored as heap data
//   - The state-transition evaluator and its driver loop
//   - A per-step mark-and-sweep collector with weak reference support
//   - Snapshots of running machines for capture and resume
package machine
