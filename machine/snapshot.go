package machine

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

// Snapshot is a structural copy of a machine's complete state: the
// current control term or value, the root handles, the step count, and
// every heap slot. Free slots are nil entries in Objects. Heap objects
// are immutable once allocated, so the snapshot shares them with the
// machine it was taken from.
type Snapshot struct {
	Control Term
	Value   Ref
	Env     Ref
	Kont    Ref
	Steps   uint64
	Objects []Object
}

// Snapshot captures the machine's current state. The machine can keep
// stepping afterwards; the snapshot is unaffected.
func (m *Machine) Snapshot() *Snapshot {
	objs := make([]Object, len(m.heap.slots))
	copy(objs, m.heap.slots)
	return &Snapshot{
		Control: m.control,
		Value:   m.value,
		Env:     m.env,
		Kont:    m.kont,
		Steps:   m.steps,
		Objects: objs,
	}
}

// FromSnapshot builds a machine whose state matches s. Resuming it
// produces the same result the snapshotted machine would have produced.
// The snapshot is trusted to be well-formed; decoded snapshots are
// validated by the wire package before they reach here.
func FromSnapshot(s *Snapshot, opts ...Option) *Machine {
	m := New(opts...)
	m.heap.load(s.Objects)
	m.control = s.Control
	m.value = s.Value
	m.env = s.Env
	m.kont = s.Kont
	m.steps = s.Steps
	return m
}
