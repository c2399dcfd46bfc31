package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// AddressKind selects the memory region a location lives in.
type AddressKind int

const (
	// AddrVariable is the current call frame's local value array.
	AddrVariable AddressKind = iota
	// AddrSignal is the current component's signal frame.
	AddrSignal
	// AddrSubCmpSignal is the signal frame of a nested component instance.
	AddrSubCmpSignal
)

// InputStatus classifies, for a write into a sub-component input, whether
// this write can be the last one the instance is waiting for.
type InputStatus int

const (
	// InputLast: statically known to be the final input write; the
	// sub-component runs unconditionally after the counter decrement.
	InputLast InputStatus = iota
	// InputNoLast: can never be the final write; decrement only.
	InputNoLast
	// InputUnknown: decided at run time by comparing the counter with zero.
	InputUnknown
)

// AddressType describes the destination region of a store (or the source
// region of a load). The sub-component fields are only meaningful when Kind
// is AddrSubCmpSignal.
type AddressType struct {
	Kind AddressKind

	// CmpIndex resolves, at run time, which sub-component instance is
	// addressed (an index into the current component's instance table).
	CmpIndex *Instruction
	// Parallel is the statically known parallel flag of the instance, or
	// nil when only the runtime flag can decide.
	Parallel *bool
	// Input is the pending-input classification of the written signal.
	Input InputStatus
}

// LocationKind selects how the offset inside the region is found.
type LocationKind int

const (
	// LocationIndexed carries an already computable index expression.
	LocationIndexed LocationKind = iota
	// LocationMapped carries a signal code resolved through the instance's
	// I/O-info table, plus an optional access chain.
	LocationMapped
)

// AccessKind tags one step of a mapped access chain.
type AccessKind int

const (
	// AccessIndexed selects one element of an N-dimensional array.
	AccessIndexed AccessKind = iota
	// AccessQualified selects a named bus field by declared position.
	AccessQualified
)

// Access is one step of a mapped access chain. Indices is set for
// AccessIndexed (and must be non-empty), Field for AccessQualified.
type Access struct {
	Kind    AccessKind
	Indices []*Instruction
	Field   int
}

// LocationRule describes where inside the selected region the accessed slot
// sits. Indexed fields and Mapped fields are mutually exclusive.
type LocationRule struct {
	Kind LocationKind

	// Indexed
	Index *Instruction
	// TemplateHeader names the destination template when the region is a
	// sub-component; the trigger protocol needs it to name the run routine.
	TemplateHeader string

	// Mapped
	SignalCode int
	Accesses   []Access
}

func (a AddressType) String() string {
	switch a.Kind {
	case AddrVariable:
		return "VARIABLE"
	case AddrSignal:
		return "SIGNAL"
	case AddrSubCmpSignal:
		return fmt.Sprintf("SUBCOMPONENT:%s", a.CmpIndex.String())
	}
	panic(fmt.Sprintf("unknown address kind %d", int(a.Kind)))
}

func (l LocationRule) String() string {
	switch l.Kind {
	case LocationIndexed:
		return fmt.Sprintf("INDEXED:%s", l.Index.String())
	case LocationMapped:
		steps := make([]string, len(l.Accesses))
		for i, acc := range l.Accesses {
			steps[i] = acc.String()
		}
		return fmt.Sprintf("MAPPED:%d:[%s]", l.SignalCode, strings.Join(steps, ","))
	}
	panic(fmt.Sprintf("unknown location kind %d", int(l.Kind)))
}

func (acc Access) String() string {
	switch acc.Kind {
	case AccessIndexed:
		idx := make([]string, len(acc.Indices))
		for i, e := range acc.Indices {
			idx[i] = e.String()
		}
		return fmt.Sprintf("IDX(%s)", strings.Join(idx, ","))
	case AccessQualified:
		return "FIELD(" + strconv.Itoa(acc.Field) + ")"
	}
	panic(fmt.Sprintf("unknown access kind %d", int(acc.Kind)))
}
