package server

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/lamarck/machine"
	"github.com/chazu/lamarck/machine/wire"
)

// Connect routes served by the EvalService.
const (
	EvalProcedure  = "/lamarck.v1.EvalService/Run"
	StatsProcedure = "/lamarck.v1.EvalService/Stats"
)

// RunRequest asks the service to evaluate a term. A non-zero StepLimit
// bounds the number of machine transitions for this request only; zero
// defers to the server's configured limit.
type RunRequest struct {
	Term      *wire.Term `cbor:"1,keyasint" json:"term"`
	StepLimit uint64     `cbor:"2,keyasint,omitempty" json:"step_limit,omitempty"`
}

// RunResponse reports the outcome of one evaluation. Machine errors
// (unbound variables, applying a non-function, step limits) are
// reported in-band with Success false; transport and request shape
// problems become Connect errors instead.
type RunResponse struct {
	Success      bool         `cbor:"1,keyasint" json:"success"`
	ErrorMessage string       `cbor:"2,keyasint,omitempty" json:"error_message,omitempty"`
	Result       *wire.Result `cbor:"3,keyasint,omitempty" json:"result,omitempty"`
	Display      string       `cbor:"4,keyasint,omitempty" json:"display,omitempty"`
	Steps        uint64       `cbor:"5,keyasint,omitempty" json:"steps,omitempty"`
	Collections  uint64       `cbor:"6,keyasint,omitempty" json:"collections,omitempty"`
	Swept        int          `cbor:"7,keyasint,omitempty" json:"swept,omitempty"`
}

// StatsRequest asks for cumulative service statistics.
type StatsRequest struct{}

// StatsResponse reports totals since the server started, plus the
// current heap occupancy.
type StatsResponse struct {
	Runs        uint64 `cbor:"1,keyasint" json:"runs"`
	Steps       uint64 `cbor:"2,keyasint" json:"steps"`
	Collections uint64 `cbor:"3,keyasint" json:"collections"`
	Swept       uint64 `cbor:"4,keyasint" json:"swept"`
	HeapLive    int    `cbor:"5,keyasint" json:"heap_live"`
	HeapCap     int    `cbor:"6,keyasint" json:"heap_cap"`
}

// EvalService implements the evaluation Connect handlers.
type EvalService struct {
	worker *MachineWorker
	log    commonlog.Logger

	// Mutated and read only on the worker goroutine.
	runs        uint64
	steps       uint64
	collections uint64
	swept       uint64
}

// NewEvalService creates an EvalService.
func NewEvalService(worker *MachineWorker) *EvalService {
	return &EvalService{
		worker: worker,
		log:    commonlog.GetLogger("lamarck.server"),
	}
}

// Run evaluates a term on the machine goroutine.
func (s *EvalService) Run(
	ctx context.Context,
	req *connect.Request[RunRequest],
) (*connect.Response[RunResponse], error) {
	if req.Msg.Term == nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("term is required"))
	}
	term, err := req.Msg.Term.ToTerm()
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	limit := req.Msg.StepLimit

	var out *RunResponse
	if err := s.worker.Do(ctx, func(m *machine.Machine) {
		out = s.run(m, term, limit)
	}); err != nil {
		return nil, workerError(err)
	}
	return connect.NewResponse(out), nil
}

// Stats reports cumulative totals. Routed through the worker so the
// counters and heap are read between runs, not during one.
func (s *EvalService) Stats(
	ctx context.Context,
	req *connect.Request[StatsRequest],
) (*connect.Response[StatsResponse], error) {
	var out *StatsResponse
	if err := s.worker.Do(ctx, func(m *machine.Machine) {
		out = &StatsResponse{
			Runs:        s.runs,
			Steps:       s.steps,
			Collections: s.collections,
			Swept:       s.swept,
			HeapLive:    m.Heap().Live(),
			HeapCap:     m.Heap().Cap(),
		}
	}); err != nil {
		return nil, workerError(err)
	}
	return connect.NewResponse(out), nil
}

// workerError maps a worker failure onto a Connect error. Context
// errors keep their codes; a stopped worker is unavailable; a recovered
// panic is internal.
func workerError(err error) *connect.Error {
	switch {
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, ErrWorkerStopped):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

// run loads and evaluates a term, returning a RunResponse. Must be
// called on the machine worker goroutine. A non-zero request limit
// overrides the machine's configured limit for this run only; the
// configured limit is put back afterwards so one request can never
// loosen the cap for the next.
func (s *EvalService) run(m *machine.Machine, term machine.Term, limit uint64) *RunResponse {
	configured := m.StepLimit()
	if limit == 0 {
		limit = configured
	}
	m.SetStepLimit(limit)
	defer m.SetStepLimit(configured)

	_, err := m.Run(term)

	s.runs++
	s.steps += m.Steps()
	s.collections += m.Collections()
	s.swept += uint64(m.TotalSwept())

	if err != nil {
		s.log.Infof("run failed after %d steps: %v", m.Steps(), err)
		return &RunResponse{
			Success:      false,
			ErrorMessage: err.Error(),
			Steps:        m.Steps(),
			Collections:  m.Collections(),
			Swept:        m.TotalSwept(),
		}
	}

	obj, ok := m.Value()
	if !ok {
		return &RunResponse{
			Success:      false,
			ErrorMessage: "machine stopped without a value",
		}
	}
	res, resErr := wire.FromObject(obj)
	if resErr != nil {
		return &RunResponse{
			Success:      false,
			ErrorMessage: resErr.Error(),
		}
	}

	display := machine.FormatObject(m.Heap(), obj)
	s.log.Infof("evaluated %s in %d steps (%d collections)", display, m.Steps(), m.Collections())

	return &RunResponse{
		Success:     true,
		Result:      res,
		Display:     display,
		Steps:       m.Steps(),
		Collections: m.Collections(),
		Swept:       m.TotalSwept(),
	}
}
