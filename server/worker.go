package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/lamarck/machine"
)

// ErrWorkerStopped is returned by Do once Stop has begun. Requests that
// were still queued at that point fail with it too.
var ErrWorkerStopped = errors.New("server: machine worker stopped")

// machineRequest is one unit of work for the machine goroutine. The
// reply channel is buffered so the loop can answer and move on even
// when the submitter has already given up waiting.
type machineRequest struct {
	fn   func(*machine.Machine)
	done chan error
}

// MachineWorker owns a machine and serializes access to it on a single
// goroutine. The machine is single-threaded, so every handler funnels
// through Do. Results leave through variables the closure captures;
// a nil error from Do means the closure has finished and its captures
// are safe to read.
type MachineWorker struct {
	m        *machine.Machine
	requests chan machineRequest
	quit     chan struct{}
	stop     sync.Once
}

// NewMachineWorker starts the machine goroutine.
func NewMachineWorker(m *machine.Machine) *MachineWorker {
	w := &MachineWorker{
		m:        m,
		requests: make(chan machineRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *MachineWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			w.drain()
			return
		}
	}
}

// drain answers everything still queued at shutdown so no submitter is
// left waiting on a reply that will never come.
func (w *MachineWorker) drain() {
	for {
		select {
		case req := <-w.requests:
			req.done <- ErrWorkerStopped
		default:
			return
		}
	}
}

// execute runs one closure on the machine, converting panics into
// errors so a malformed request cannot kill the goroutine.
func (w *MachineWorker) execute(fn func(*machine.Machine)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("machine worker: %v", r)
		}
	}()
	fn(w.m)
	return nil
}

// Do runs fn on the machine goroutine and blocks until the closure has
// run, ctx is cancelled, or the worker stops. On cancellation the
// closure may still run later; its reply lands in the buffered channel
// instead of blocking the loop. Do calls racing Stop may report
// ErrWorkerStopped even if their closure ran.
func (w *MachineWorker) Do(ctx context.Context, fn func(*machine.Machine)) error {
	select {
	case <-w.quit:
		return ErrWorkerStopped
	default:
	}
	req := machineRequest{fn: fn, done: make(chan error, 1)}
	select {
	case w.requests <- req:
	case <-w.quit:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-w.quit:
		// The loop answers every request it has seen before exiting, so
		// take a verdict that already arrived over the stop signal.
		select {
		case err := <-req.done:
			return err
		default:
			return ErrWorkerStopped
		}
	}
}

// Stop shuts the worker down. It is idempotent and safe to call from
// multiple goroutines.
func (w *MachineWorker) Stop() {
	w.stop.Do(func() { close(w.quit) })
}
