package ir

import "fmt"

// InvariantViolation reports a malformed instruction: a defect in the
// lowering that built it, never a user-facing circuit error. It is a
// distinct type so tests can assert on defect detection without aborting
// the process.
type InvariantViolation struct {
	Details string
}

func (e *InvariantViolation) Error() string {
	return "ir invariant violation: " + e.Details
}

func Violationf(format string, args ...interface{}) error {
	return &InvariantViolation{Details: fmt.Sprintf(format, args...)}
}

// Validate checks the structural rules a well-formed store must satisfy:
// a mapped location only addresses sub-component signals, indexed access
// steps carry at least one index, and two indexed steps are never adjacent
// (one step consumes all dimensions of a field).
func (s *StoreInst) Validate() error {
	if s.Dest.Kind == LocationMapped && s.DestAddress.Kind != AddrSubCmpSignal {
		return Violationf("mapped location with address kind %s", s.DestAddress.String())
	}
	if s.DestAddress.Kind == AddrSubCmpSignal && s.DestAddress.CmpIndex == nil {
		return Violationf("sub-component address without component index")
	}
	if s.Dest.Kind == LocationIndexed && s.Dest.Index == nil {
		return Violationf("indexed location without index expression")
	}
	return validateAccesses(s.Dest.Accesses)
}

// Validate applies the same structural rules to a load's source location.
func (l *LoadInst) Validate() error {
	if l.Src.Kind == LocationMapped && l.Address.Kind != AddrSubCmpSignal {
		return Violationf("mapped location with address kind %s", l.Address.String())
	}
	if l.Src.Kind == LocationIndexed && l.Src.Index == nil {
		return Violationf("indexed location without index expression")
	}
	return validateAccesses(l.Src.Accesses)
}

func validateAccesses(accesses []Access) error {
	for i, acc := range accesses {
		switch acc.Kind {
		case AccessIndexed:
			if len(acc.Indices) == 0 {
				return Violationf("indexed access step %d has no indices", i)
			}
			if i+1 < len(accesses) && accesses[i+1].Kind == AccessIndexed {
				return Violationf("adjacent indexed access steps at %d", i)
			}
		case AccessQualified:
		default:
			return Violationf("unknown access kind %d at step %d", int(acc.Kind), i)
		}
	}
	return nil
}
