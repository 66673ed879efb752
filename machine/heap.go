package machine

import "fmt"

// ---------------------------------------------------------------------------
// Heap: the arena all machine objects live in
// ---------------------------------------------------------------------------

// Heap is a growable arena of Objects addressed by Ref handles, with a
// parallel mark bitset and a free list of reclaimed slots. Allocation
// reuses freed slots before growing the arena.
type Heap struct {
	slots  []Object // nil entries are free slots
	free   []Ref    // indices of free slots, reused LIFO
	marks  bitset
	live   int
	allocs uint64 // total allocations over the heap's lifetime
}

// NewHeap creates an empty heap.
func NewHeap() *Heap {
	return &Heap{}
}

// Alloc places obj in the arena and returns its handle.
func (h *Heap) Alloc(obj Object) Ref {
	if obj == nil {
		panic("machine: alloc of nil object")
	}
	h.allocs++
	h.live++

	if n := len(h.free); n > 0 {
		ref := h.free[n-1]
		h.free = h.free[:n-1]
		h.slots[ref] = obj
		return ref
	}

	h.slots = append(h.slots, obj)
	h.marks.grow(len(h.slots))
	return Ref(len(h.slots) - 1)
}

// Get returns the object at ref. It panics on NilRef, an out-of-range
// handle, or a freed slot; a dangling handle is a machine bug, not a
// recoverable condition.
func (h *Heap) Get(ref Ref) Object {
	if ref < 0 || int(ref) >= len(h.slots) {
		panic(fmt.Sprintf("machine: ref %d out of range (heap size %d)", ref, len(h.slots)))
	}
	obj := h.slots[ref]
	if obj == nil {
		panic(fmt.Sprintf("machine: ref %d points to a freed slot", ref))
	}
	return obj
}

// Contains reports whether ref currently addresses a live object.
func (h *Heap) Contains(ref Ref) bool {
	return ref >= 0 && int(ref) < len(h.slots) && h.slots[ref] != nil
}

// ---------------------------------------------------------------------------
// Typed accessors
// ---------------------------------------------------------------------------

// Integer returns the Integer at ref, panicking if the slot holds
// something else.
func (h *Heap) Integer(ref Ref) *Integer {
	obj, ok := h.Get(ref).(*Integer)
	if !ok {
		panic(fmt.Sprintf("machine: ref %d is %s, want integer", ref, h.Get(ref).Kind()))
	}
	return obj
}

// Closure returns the Closure at ref, panicking if the slot holds
// something else.
func (h *Heap) Closure(ref Ref) *Closure {
	obj, ok := h.Get(ref).(*Closure)
	if !ok {
		panic(fmt.Sprintf("machine: ref %d is %s, want closure", ref, h.Get(ref).Kind()))
	}
	return obj
}

// Binding returns the Binding at ref, panicking if the slot holds
// something else.
func (h *Heap) Binding(ref Ref) *Binding {
	obj, ok := h.Get(ref).(*Binding)
	if !ok {
		panic(fmt.Sprintf("machine: ref %d is %s, want binding", ref, h.Get(ref).Kind()))
	}
	return obj
}

// ---------------------------------------------------------------------------
// Statistics
// ---------------------------------------------------------------------------

// Live returns the number of occupied slots.
func (h *Heap) Live() int {
	return h.live
}

// Cap returns the arena size including free slots.
func (h *Heap) Cap() int {
	return len(h.slots)
}

// TotalAllocs returns the number of allocations over the heap's lifetime,
// including objects since reclaimed.
func (h *Heap) TotalAllocs() uint64 {
	return h.allocs
}

// KindCounts returns the number of live objects of each kind.
func (h *Heap) KindCounts() map[Kind]int {
	counts := make(map[Kind]int)
	for _, obj := range h.slots {
		if obj != nil {
			counts[obj.Kind()]++
		}
	}
	return counts
}

// ---------------------------------------------------------------------------
// Mark bits and lifecycle
// ---------------------------------------------------------------------------

// mark sets the mark bit for ref.
func (h *Heap) mark(ref Ref) {
	h.marks.set(int(ref))
}

// marked reports whether ref's mark bit is set.
func (h *Heap) marked(ref Ref) bool {
	return h.marks.has(int(ref))
}

// sweep frees every unmarked occupied slot and clears the mark bit on
// survivors. After a sweep the bitset is all zero again. Returns the
// number of slots freed.
func (h *Heap) sweep() int {
	swept := 0
	for i, obj := range h.slots {
		if obj == nil {
			continue
		}
		if h.marks.has(i) {
			h.marks.clear(i)
			continue
		}
		h.slots[i] = nil
		h.free = append(h.free, Ref(i))
		h.live--
		swept++
	}
	return swept
}

// Reset empties the heap. Existing handles become invalid.
func (h *Heap) Reset() {
	h.slots = h.slots[:0]
	h.free = h.free[:0]
	h.marks = h.marks[:0]
	h.live = 0
	h.allocs = 0
}

// load replaces the arena contents with objs, rebuilding the free list
// from nil entries. Used by snapshot restore.
func (h *Heap) load(objs []Object) {
	h.slots = make([]Object, len(objs))
	copy(h.slots, objs)
	h.free = h.free[:0]
	h.marks = make(bitset, (len(objs)+63)/64)
	h.live = 0
	for i, obj := range h.slots {
		if obj == nil {
			h.free = append(h.free, Ref(i))
		} else {
			h.live++
		}
	}
	h.allocs = uint64(h.live)
}

// ---------------------------------------------------------------------------
// bitset
// ---------------------------------------------------------------------------

// bitset is a packed bit vector, one bit per arena slot.
type bitset []uint64

// grow extends the bitset to cover at least n bits.
func (b *bitset) grow(n int) {
	words := (n + 63) / 64
	for len(*b) < words {
		*b = append(*b, 0)
	}
}

func (b bitset) set(i int) {
	b[i/64] |= 1 << (uint(i) % 64)
}

func (b bitset) clear(i int) {
	b[i/64] &^= 1 << (uint(i) % 64)
}

func (b bitset) has(i int) bool {
	return b[i/64]&(1<<(uint(i)%64)) != 0
}
