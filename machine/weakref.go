package machine

// ---------------------------------------------------------------------------
// WeakRef: a reference that doesn't prevent garbage collection
// ---------------------------------------------------------------------------

// WeakRef holds a handle to a heap object without keeping it alive. When
// the target is collected, the reference is cleared. Optionally supports
// finalization callbacks. Weak references follow the machine's
// single-threaded discipline: they are read and cleared only between
// steps.
type WeakRef struct {
	id        uint32
	target    Ref // NilRef once the target has been collected
	finalizer func(Ref)
}

// ID returns the unique identifier for this weak reference.
func (wr *WeakRef) ID() uint32 {
	return wr.id
}

// Get returns the target handle, or NilRef if it has been collected.
func (wr *WeakRef) Get() Ref {
	return wr.target
}

// IsAlive returns true if the target object has not been collected.
func (wr *WeakRef) IsAlive() bool {
	return wr.target != NilRef
}

// SetFinalizer sets a callback invoked when the target is collected. The
// callback receives the handle the reference held; the object behind it
// is already gone.
func (wr *WeakRef) SetFinalizer(fn func(Ref)) {
	wr.finalizer = fn
}

// clear drops the target and returns the handle it held.
func (wr *WeakRef) clear() Ref {
	old := wr.target
	wr.target = NilRef
	return old
}

// ---------------------------------------------------------------------------
// WeakSet: tracks all weak references attached to a machine
// ---------------------------------------------------------------------------

// WeakSet manages a machine's weak references. It integrates with the
// collector: between the mark and sweep phases, references to unmarked
// objects are cleared and their finalizers run.
type WeakSet struct {
	refs   map[uint32]*WeakRef
	nextID uint32
}

func newWeakSet() *WeakSet {
	return &WeakSet{refs: make(map[uint32]*WeakRef)}
}

// Track creates a weak reference to target and registers it.
func (s *WeakSet) Track(target Ref) *WeakRef {
	s.nextID++
	wr := &WeakRef{id: s.nextID, target: target}
	s.refs[wr.id] = wr
	return wr
}

// Untrack removes a weak reference from the set.
func (s *WeakSet) Untrack(wr *WeakRef) {
	delete(s.refs, wr.id)
}

// Lookup finds a weak reference by ID.
func (s *WeakSet) Lookup(id uint32) *WeakRef {
	return s.refs[id]
}

// Count returns the number of tracked weak references.
func (s *WeakSet) Count() int {
	return len(s.refs)
}

// processGC runs between mark and sweep: references whose target is
// unmarked are cleared and their finalizers invoked. Returns the number
// of references cleared.
func (s *WeakSet) processGC(h *Heap) int {
	cleared := 0
	for _, wr := range s.refs {
		if wr.target == NilRef || h.marked(wr.target) {
			continue
		}
		old := wr.clear()
		cleared++
		if wr.finalizer != nil {
			wr.finalizer(old)
		}
	}
	return cleared
}

// reset clears every reference without running finalizers. Called when
// the machine loads a new program; handles from the previous run must
// not leak into the next heap.
func (s *WeakSet) reset() {
	for _, wr := range s.refs {
		wr.target = NilRef
	}
	s.refs = make(map[uint32]*WeakRef)
	s.nextID = 0
}
