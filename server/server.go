package server

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/lamarck/machine"
)

// Server is the evaluation server wrapping a single machine. It serves
// the Connect protocol with CBOR and JSON codecs on the same port.
type Server struct {
	worker *MachineWorker
	eval   *EvalService
	mux    *http.ServeMux
	log    commonlog.Logger

	httpServer *http.Server
}

// Option configures a Server.
type Option func(*config)

type config struct {
	machineOpts []machine.Option
}

// WithMachineOptions sets options for the machine the server wraps,
// like a default step limit.
func WithMachineOptions(opts ...machine.Option) Option {
	return func(c *config) { c.machineOpts = append(c.machineOpts, opts...) }
}

// New creates a Server wrapping a fresh machine.
func New(opts ...Option) *Server {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	worker := NewMachineWorker(machine.New(cfg.machineOpts...))
	eval := NewEvalService(worker)

	s := &Server{
		worker: worker,
		eval:   eval,
		mux:    http.NewServeMux(),
		log:    commonlog.GetLogger("lamarck.server"),
	}

	codecs := []connect.HandlerOption{
		connect.WithCodec(cborCodec{}),
		connect.WithCodec(jsonCodec{}),
	}
	s.mux.Handle(EvalProcedure, connect.NewUnaryHandler(EvalProcedure, eval.Run, codecs...))
	s.mux.Handle(StatsProcedure, connect.NewUnaryHandler(StatsProcedure, eval.Stats, codecs...))

	return s
}

// Handler returns the HTTP handler serving the Connect routes.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server on the given address. The
// address should be in the form "host:port" or ":port".
func (s *Server) ListenAndServe(addr string) error {
	s.log.Infof("evaluation server listening on %s", addr)
	s.httpServer = &http.Server{Addr: addr, Handler: s.mux}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server, then the machine worker.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.worker.Stop()
	return err
}

// Stop shuts down the machine worker without draining in-flight
// HTTP requests.
func (s *Server) Stop() {
	s.worker.Stop()
}
