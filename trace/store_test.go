package trace

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/chazu/lamarck/machine"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trace.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// recordedRun evaluates the identity program with a recorder attached
// and writes the resulting run to the store.
func recordedRun(t *testing.T, s *Store, startedAt time.Time) (*Run, *Recorder) {
	t.Helper()
	rec := &Recorder{}
	m := machine.New(machine.WithCollectHook(rec.Hook()))
	obj, err := m.Run(machine.App(machine.Lam("x", machine.Var("x")), machine.Int(7)))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	run := &Run{
		ID:          NewRunID(),
		Program:     "identity",
		Result:      machine.FormatObject(m.Heap(), obj),
		Steps:       m.Steps(),
		Collections: m.Collections(),
		Swept:       m.TotalSwept(),
		MaxLive:     rec.MaxLive(),
		StartedAt:   startedAt,
	}
	if err := s.RecordRun(run, rec.Cycles()); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	return run, rec
}

func TestRecordAndGetRun(t *testing.T) {
	s := openTestStore(t)
	run, rec := recordedRun(t, s, time.Now())

	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Program != "identity" {
		t.Errorf("program = %q, want identity", got.Program)
	}
	if got.Result != "7" {
		t.Errorf("result = %q, want 7", got.Result)
	}
	if got.Steps != run.Steps {
		t.Errorf("steps = %d, want %d", got.Steps, run.Steps)
	}
	if got.Collections != run.Collections {
		t.Errorf("collections = %d, want %d", got.Collections, run.Collections)
	}
	if got.MaxLive != rec.MaxLive() {
		t.Errorf("max live = %d, want %d", got.MaxLive, rec.MaxLive())
	}
	if !got.StartedAt.Equal(run.StartedAt) {
		t.Errorf("started at = %v, want %v", got.StartedAt, run.StartedAt)
	}
}

func TestCyclesForReturnsAllCyclesInOrder(t *testing.T) {
	s := openTestStore(t)
	run, rec := recordedRun(t, s, time.Now())

	cycles, err := s.CyclesFor(run.ID)
	if err != nil {
		t.Fatalf("CyclesFor: %v", err)
	}
	if len(cycles) != len(rec.Cycles()) {
		t.Fatalf("cycle count = %d, want %d", len(cycles), len(rec.Cycles()))
	}
	// Every step collects, so cycles and steps line up.
	if uint64(len(cycles)) != run.Collections {
		t.Errorf("cycle count = %d, want %d collections", len(cycles), run.Collections)
	}
	for i, c := range cycles {
		if c.Seq != uint64(i) {
			t.Errorf("cycle %d has seq %d", i, c.Seq)
		}
		if c.RunID != run.ID {
			t.Errorf("cycle %d has run id %q, want %q", i, c.RunID, run.ID)
		}
		if want := rec.Cycles()[i]; c.Marked != want.Marked || c.Swept != want.Swept || c.Live != want.Live {
			t.Errorf("cycle %d = %+v, want %+v", i, c, want)
		}
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun("no-such-run")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("error = %v, want ErrRunNotFound", err)
	}
}

func TestRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	base := time.Now()
	first, _ := recordedRun(t, s, base)
	second, _ := recordedRun(t, s, base.Add(time.Second))
	third, _ := recordedRun(t, s, base.Add(2*time.Second))

	runs, err := s.Runs(2)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("run count = %d, want 2", len(runs))
	}
	if runs[0].ID != third.ID {
		t.Errorf("runs[0] = %q, want %q", runs[0].ID, third.ID)
	}
	if runs[1].ID != second.ID {
		t.Errorf("runs[1] = %q, want %q", runs[1].ID, second.ID)
	}
	_ = first
}

func TestRecordRunRejectsDuplicateID(t *testing.T) {
	s := openTestStore(t)
	run, rec := recordedRun(t, s, time.Now())

	if err := s.RecordRun(run, rec.Cycles()); err == nil {
		t.Error("expected error recording a run with a duplicate id")
	}
}

func TestOpenExistingDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	run, _ := recordedRun(t, s, time.Now())
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.GetRun(run.ID); err != nil {
		t.Errorf("GetRun after reopen: %v", err)
	}
}

func TestRecorderReset(t *testing.T) {
	rec := &Recorder{}
	hook := rec.Hook()
	hook(machine.GCStats{Marked: 3, Swept: 1, Live: 3})
	hook(machine.GCStats{Marked: 4, Swept: 0, Live: 4})

	if len(rec.Cycles()) != 2 {
		t.Fatalf("cycle count = %d, want 2", len(rec.Cycles()))
	}
	if rec.MaxLive() != 4 {
		t.Errorf("max live = %d, want 4", rec.MaxLive())
	}

	rec.Reset()
	if len(rec.Cycles()) != 0 || rec.MaxLive() != 0 {
		t.Errorf("after reset: cycles = %d, max live = %d, want 0 and 0", len(rec.Cycles()), rec.MaxLive())
	}
}
