package machine

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Display formatting
// ---------------------------------------------------------------------------

// FormatObject renders a heap object for display. Closures render their
// parameter and body; environment and continuation cells render their
// structure with handles left symbolic.
func FormatObject(h *Heap, obj Object) string {
	switch o := obj.(type) {
	case *Integer:
		return strconv.FormatInt(o.Value, 10)
	case *Closure:
		return "<closure (λ" + o.Param + ". " + o.Body.String() + ")>"
	case *Binding:
		return fmt.Sprintf("<binding %s=%s>", o.Name, formatRef(h, o.Value))
	case *HaltFrame:
		return "<halt>"
	case *EvalArgFrame:
		return fmt.Sprintf("<eval-arg %s>", o.Arg)
	case *ApplyFrame:
		return fmt.Sprintf("<apply %s>", formatRef(h, o.Fn))
	default:
		return fmt.Sprintf("<%v>", obj)
	}
}

// formatRef renders the object behind ref, or "·" for NilRef.
func formatRef(h *Heap, ref Ref) string {
	if ref == NilRef {
		return "·"
	}
	return FormatObject(h, h.Get(ref))
}

// describe renders an object without heap access, for error messages.
func describe(obj Object) string {
	switch o := obj.(type) {
	case *Integer:
		return strconv.FormatInt(o.Value, 10)
	case *Closure:
		return "(λ" + o.Param + ". " + o.Body.String() + ")"
	case nil:
		return "<nil>"
	default:
		return "<" + obj.Kind().String() + ">"
	}
}
