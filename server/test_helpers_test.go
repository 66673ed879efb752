package server

import (
	"context"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"

	"github.com/chazu/lamarck/machine"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for server package tests.
//
// Machines are cheap to build, so every test gets its own worker; there
// is no shared state to leak between tests.
// ---------------------------------------------------------------------------

// newTestEvalService creates an EvalService backed by a fresh machine.
func newTestEvalService(t *testing.T) *EvalService {
	t.Helper()
	worker := NewMachineWorker(machine.New())
	t.Cleanup(worker.Stop)
	return NewEvalService(worker)
}

// newTestHTTPServer starts an httptest server with the full Connect mux.
func newTestHTTPServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	srv := New(opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})
	return ts
}

func runClient(ts *httptest.Server, codec connect.Codec) *connect.Client[RunRequest, RunResponse] {
	return connect.NewClient[RunRequest, RunResponse](
		ts.Client(),
		ts.URL+EvalProcedure,
		connect.WithCodec(codec),
	)
}

func statsClient(ts *httptest.Server, codec connect.Codec) *connect.Client[StatsRequest, StatsResponse] {
	return connect.NewClient[StatsRequest, StatsResponse](
		ts.Client(),
		ts.URL+StatsProcedure,
		connect.WithCodec(codec),
	)
}

// ---------------------------------------------------------------------------
// Request builder helpers
// ---------------------------------------------------------------------------

func connectReq[T any](msg *T) *connect.Request[T] {
	return connect.NewRequest(msg)
}

func bg() context.Context {
	return context.Background()
}

// identityOf builds ((λx. x) n).
func identityOf(n int64) machine.Term {
	return machine.App(machine.Lam("x", machine.Var("x")), machine.Int(n))
}

// omega builds the smallest divergent program.
func omega() machine.Term {
	self := machine.Lam("x", machine.App(machine.Var("x"), machine.Var("x")))
	return machine.App(self, machine.Lam("x", machine.App(machine.Var("x"), machine.Var("x"))))
}
