package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/lamarck/machine"
)

// SnapshotVersion is the current snapshot wire format version.
const SnapshotVersion = 1

// nilHandle marks an unused or nil heap handle on the wire.
const nilHandle = int32(machine.NilRef)

// ObjectKind identifies the kind of heap object in a wire Object.
type ObjectKind uint8

const (
	ObjectInteger ObjectKind = 1
	ObjectClosure ObjectKind = 2
	ObjectBinding ObjectKind = 3
	ObjectHalt    ObjectKind = 4
	ObjectEvalArg ObjectKind = 5
	ObjectApply   ObjectKind = 6
)

func (k ObjectKind) String() string {
	switch k {
	case ObjectInteger:
		return "integer"
	case ObjectClosure:
		return "closure"
	case ObjectBinding:
		return "binding"
	case ObjectHalt:
		return "halt"
	case ObjectEvalArg:
		return "eval-arg"
	case ObjectApply:
		return "apply"
	}
	return "unknown"
}

// refClass is the set of kinds a handle may point at. Handles are bare
// slot numbers, so nothing but the referent's kind separates an
// environment from, say, an integer in the same arena. A value handle
// admits integers and closures, an environment handle only bindings,
// a continuation handle only frames.
type refClass uint8

const (
	classValue refClass = iota
	classBinding
	classFrame
)

func (c refClass) admits(k ObjectKind) bool {
	switch c {
	case classValue:
		return k == ObjectInteger || k == ObjectClosure
	case classBinding:
		return k == ObjectBinding
	case classFrame:
		return k == ObjectHalt || k == ObjectEvalArg || k == ObjectApply
	}
	return false
}

func (c refClass) String() string {
	switch c {
	case classValue:
		return "value"
	case classBinding:
		return "binding"
	case classFrame:
		return "frame"
	}
	return "unknown"
}

// Object is the wire form of one heap slot. Field use depends on Kind:
//
//	integer:  Value
//	closure:  Name (parameter), Term (body), Env
//	binding:  Name, Val, Next (parent scope)
//	halt:     nothing
//	eval-arg: Term (pending argument), Env, Next
//	apply:    Fn, Next
//
// Handle fields use -1 for nil. They never carry omitempty: slot 0 is a
// valid handle and must survive the round trip.
type Object struct {
	Kind  ObjectKind `cbor:"1,keyasint" json:"kind"`
	Value int64      `cbor:"2,keyasint,omitempty" json:"value,omitempty"`
	Name  string     `cbor:"3,keyasint,omitempty" json:"name,omitempty"`
	Term  *Term      `cbor:"4,keyasint,omitempty" json:"term,omitempty"`
	Env   int32      `cbor:"5,keyasint" json:"env"`
	Val   int32      `cbor:"6,keyasint" json:"val"`
	Next  int32      `cbor:"7,keyasint" json:"next"`
	Fn    int32      `cbor:"8,keyasint" json:"fn"`
}

// Snapshot is the wire form of a whole machine: the three roots, the
// step count, and every heap slot. Free slots are nil entries so
// handles stay positionally stable.
type Snapshot struct {
	Version uint8     `cbor:"1,keyasint" json:"version"`
	Control *Term     `cbor:"2,keyasint,omitempty" json:"control,omitempty"`
	Value   int32     `cbor:"3,keyasint" json:"value"`
	Env     int32     `cbor:"4,keyasint" json:"env"`
	Kont    int32     `cbor:"5,keyasint" json:"kont"`
	Steps   uint64    `cbor:"6,keyasint" json:"steps"`
	Objects []*Object `cbor:"7,keyasint" json:"objects"`
}

// CaptureSnapshot captures the machine's current state in wire form.
func CaptureSnapshot(m *machine.Machine) *Snapshot {
	snap := m.Snapshot()
	s := &Snapshot{
		Version: SnapshotVersion,
		Value:   int32(snap.Value),
		Env:     int32(snap.Env),
		Kont:    int32(snap.Kont),
		Steps:   snap.Steps,
		Objects: make([]*Object, len(snap.Objects)),
	}
	if snap.Control != nil {
		s.Control = FromTerm(snap.Control)
	}
	for i, obj := range snap.Objects {
		if obj == nil {
			continue
		}
		s.Objects[i] = fromHeapObject(obj)
	}
	return s
}

func fromHeapObject(obj machine.Object) *Object {
	w := &Object{Env: nilHandle, Val: nilHandle, Next: nilHandle, Fn: nilHandle}
	switch o := obj.(type) {
	case *machine.Integer:
		w.Kind = ObjectInteger
		w.Value = o.Value
	case *machine.Closure:
		w.Kind = ObjectClosure
		w.Name = o.Param
		w.Term = FromTerm(o.Body)
		w.Env = int32(o.Env)
	case *machine.Binding:
		w.Kind = ObjectBinding
		w.Name = o.Name
		w.Val = int32(o.Value)
		w.Next = int32(o.Parent)
	case *machine.HaltFrame:
		w.Kind = ObjectHalt
	case *machine.EvalArgFrame:
		w.Kind = ObjectEvalArg
		w.Term = FromTerm(o.Arg)
		w.Env = int32(o.Env)
		w.Next = int32(o.Next)
	case *machine.ApplyFrame:
		w.Kind = ObjectApply
		w.Fn = int32(o.Fn)
		w.Next = int32(o.Next)
	default:
		panic(fmt.Sprintf("wire: unknown heap object %T", obj))
	}
	return w
}

// Restore validates the snapshot and builds a machine resumed from it.
// Decoded input is untrusted, so every handle is range checked, must
// point at an occupied slot, and must land on a kind its class admits
// before the heap is reconstructed. Without the kind pass a snapshot
// could aim an environment handle at an integer and pass, turning the
// first variable lookup after Resume into a heap panic.
func (s *Snapshot) Restore(opts ...machine.Option) (*machine.Machine, error) {
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("wire: unsupported snapshot version %d", s.Version)
	}
	check := func(ref int32, what string, class refClass) error {
		if ref == nilHandle {
			return nil
		}
		if ref < 0 || int(ref) >= len(s.Objects) || s.Objects[ref] == nil {
			return fmt.Errorf("wire: snapshot %s handle %d is invalid", what, ref)
		}
		if kind := s.Objects[ref].Kind; !class.admits(kind) {
			return fmt.Errorf("wire: snapshot %s handle %d is %s, want %s", what, ref, kind, class)
		}
		return nil
	}
	require := func(ref int32, what string, class refClass) error {
		if ref == nilHandle {
			return fmt.Errorf("wire: snapshot %s handle is missing", what)
		}
		return check(ref, what, class)
	}

	var control machine.Term
	if s.Control != nil {
		var err error
		control, err = s.Control.ToTerm()
		if err != nil {
			return nil, err
		}
	}
	if control == nil && s.Value == nilHandle {
		return nil, fmt.Errorf("wire: snapshot has neither control nor value")
	}
	if control != nil && s.Value != nilHandle {
		return nil, fmt.Errorf("wire: snapshot has both control and value")
	}
	if err := check(s.Value, "value", classValue); err != nil {
		return nil, err
	}
	if err := check(s.Env, "environment", classBinding); err != nil {
		return nil, err
	}
	if err := require(s.Kont, "continuation", classFrame); err != nil {
		return nil, err
	}

	objs := make([]machine.Object, len(s.Objects))
	for i, o := range s.Objects {
		if o == nil {
			continue
		}
		obj, err := o.toHeapObject(i, check, require)
		if err != nil {
			return nil, err
		}
		objs[i] = obj
	}

	return machine.FromSnapshot(&machine.Snapshot{
		Control: control,
		Value:   machine.Ref(s.Value),
		Env:     machine.Ref(s.Env),
		Kont:    machine.Ref(s.Kont),
		Steps:   s.Steps,
		Objects: objs,
	}, opts...), nil
}

func (o *Object) toHeapObject(slot int, check, require func(int32, string, refClass) error) (machine.Object, error) {
	switch o.Kind {
	case ObjectInteger:
		return &machine.Integer{Value: o.Value}, nil
	case ObjectClosure:
		body, err := o.Term.ToTerm()
		if err != nil {
			return nil, fmt.Errorf("wire: closure at slot %d: %w", slot, err)
		}
		if err := check(o.Env, "closure environment", classBinding); err != nil {
			return nil, err
		}
		return &machine.Closure{Param: o.Name, Body: body, Env: machine.Ref(o.Env)}, nil
	case ObjectBinding:
		if err := require(o.Val, "binding value", classValue); err != nil {
			return nil, err
		}
		if err := check(o.Next, "binding parent", classBinding); err != nil {
			return nil, err
		}
		return &machine.Binding{Name: o.Name, Value: machine.Ref(o.Val), Parent: machine.Ref(o.Next)}, nil
	case ObjectHalt:
		return &machine.HaltFrame{}, nil
	case ObjectEvalArg:
		arg, err := o.Term.ToTerm()
		if err != nil {
			return nil, fmt.Errorf("wire: eval-arg frame at slot %d: %w", slot, err)
		}
		if err := check(o.Env, "frame environment", classBinding); err != nil {
			return nil, err
		}
		if err := require(o.Next, "frame next", classFrame); err != nil {
			return nil, err
		}
		return &machine.EvalArgFrame{Arg: arg, Env: machine.Ref(o.Env), Next: machine.Ref(o.Next)}, nil
	case ObjectApply:
		if err := require(o.Fn, "apply function", classValue); err != nil {
			return nil, err
		}
		if err := require(o.Next, "frame next", classFrame); err != nil {
			return nil, err
		}
		return &machine.ApplyFrame{Fn: machine.Ref(o.Fn), Next: machine.Ref(o.Next)}, nil
	default:
		return nil, fmt.Errorf("wire: unknown object kind %d at slot %d", o.Kind, slot)
	}
}

// MarshalSnapshot serializes a Snapshot to CBOR bytes.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("wire: unmarshal snapshot: %w", err)
	}
	return &s, nil
}
