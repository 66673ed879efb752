package trace

import (
	"github.com/chazu/lamarck/machine"
)

// Recorder accumulates collection statistics during a run so they can
// be written to a Store afterwards. It is not safe for concurrent use;
// attach it to a single machine.
type Recorder struct {
	cycles  []Cycle
	maxLive int
}

// Hook returns a collect hook for machine.WithCollectHook. Each
// collection appends one Cycle with the next sequence number.
func (r *Recorder) Hook() func(machine.GCStats) {
	return func(st machine.GCStats) {
		r.cycles = append(r.cycles, Cycle{
			Seq:      uint64(len(r.cycles)),
			Marked:   st.Marked,
			Swept:    st.Swept,
			Live:     st.Live,
			Duration: st.Duration,
		})
		if st.Live > r.maxLive {
			r.maxLive = st.Live
		}
	}
}

// Cycles returns the cycles recorded so far.
func (r *Recorder) Cycles() []Cycle {
	return r.cycles
}

// MaxLive returns the peak post-collection live count seen so far.
func (r *Recorder) MaxLive() int {
	return r.maxLive
}

// Reset clears the recorder for a fresh run.
func (r *Recorder) Reset() {
	r.cycles = nil
	r.maxLive = 0
}
