package machine

import "time"

// ---------------------------------------------------------------------------
// Garbage collection
// ---------------------------------------------------------------------------

// GCStats holds statistics from a single collection cycle.
type GCStats struct {
	Marked   int
	Swept    int
	Live     int // live objects after the sweep
	Duration time.Duration
}

// Collect performs one mark-and-sweep cycle over the heap. The root set
// is the current value (if set), the environment, and the continuation.
// Nothing reachable from the roots is freed; everything unreachable is
// freed in this cycle. Collecting twice without an intervening step frees
// nothing the second time.
func (m *Machine) Collect() GCStats {
	start := time.Now()

	// Mark phase: trace from the roots with an explicit worklist. Chains
	// can be arbitrarily long, so Go recursion is off the table here.
	marked := 0
	var work []Ref
	if m.value != NilRef {
		work = append(work, m.value)
	}
	if m.env != NilRef {
		work = append(work, m.env)
	}
	if m.kont != NilRef {
		work = append(work, m.kont)
	}

	for len(work) > 0 {
		ref := work[len(work)-1]
		work = work[:len(work)-1]
		if ref == NilRef || m.heap.marked(ref) {
			// Environments are shared by closures, so the reachability
			// graph is a DAG; skipping marked nodes bounds the work to
			// the live set.
			continue
		}
		m.heap.mark(ref)
		marked++

		switch obj := m.heap.Get(ref).(type) {
		case *Integer:
		case *Closure:
			work = append(work, obj.Env)
		case *Binding:
			work = append(work, obj.Value, obj.Parent)
		case *HaltFrame:
		case *EvalArgFrame:
			work = append(work, obj.Env, obj.Next)
		case *ApplyFrame:
			work = append(work, obj.Fn, obj.Next)
		}
	}

	// Weak references see the mark results before anything is freed.
	m.weak.processGC(m.heap)

	swept := m.heap.sweep()

	m.collections++
	m.totalSwept += swept

	stats := GCStats{
		Marked:   marked,
		Swept:    swept,
		Live:     m.heap.Live(),
		Duration: time.Since(start),
	}
	if m.collectHook != nil {
		m.collectHook(stats)
	}
	return stats
}
