// Package codegen lowers IR instructions into target code. The lowering
// algorithm is written once against the Backend capability set; each target
// (stack machine, host language) implements Backend and nothing else, so the
// two outputs cannot drift apart semantically.
package codegen

import "fmt"

// Reg names one of the scratch slots the lowering needs. The backend maps
// each Reg to a concrete local / temporary through its Regs allocator.
type Reg int

const (
	// RegLVar is the base of the current variable frame.
	RegLVar Reg = iota
	// RegSignalStart is the base of the current component's signal frame.
	RegSignalStart
	// RegCmpOffset is the address of the current component's record.
	RegCmpOffset
	// RegSubCmp holds the resolved sub-component record while storing.
	RegSubCmp
	// RegSubCmpLoad is the load-side counterpart of RegSubCmp, so a load
	// feeding a store's source cannot clobber the store's resolution.
	RegSubCmpLoad
	// RegIOInfo holds the current I/O descriptor during a mapped walk.
	RegIOInfo
	// RegIOInfoLoad is the load-side counterpart of RegIOInfo.
	RegIOInfoLoad
	// RegDestIndex keeps the unscaled destination signal index for the
	// output-ready bookkeeping of parallel targets.
	RegDestIndex
	// RegCopyDst and RegCopySrc are the bulk-copy cursors.
	RegCopyDst
	RegCopySrc
	// RegCopyCounter counts remaining elements in the bulk-copy loop.
	RegCopyCounter
	// RegErr holds the result code of a sub-component run call.
	RegErr
)

var regNames = map[Reg]string{
	RegLVar:        "lvar",
	RegSignalStart: "signal_start",
	RegCmpOffset:   "offset",
	RegSubCmp:      "subcmp",
	RegSubCmpLoad:  "subcmp_load",
	RegIOInfo:      "io_info",
	RegIOInfoLoad:  "io_info_load",
	RegDestIndex:   "dest_index",
	RegCopyDst:     "copy_dst",
	RegCopySrc:     "copy_src",
	RegCopyCounter: "copy_counter",
	RegErr:         "merror",
}

func (r Reg) String() string {
	if s, ok := regNames[r]; ok {
		return s
	}
	panic(fmt.Sprintf("unknown reg %d", int(r)))
}

// Regs supplies uniquely named scratch slots. The surrounding code generator
// owns allocation; backends only resolve names through it, which keeps the
// lowering testable with a fake allocator.
type Regs interface {
	Slot(r Reg) string
}

// SlotNames is the default Regs implementation. An optional prefix keeps
// slots of separately generated routines apart.
type SlotNames struct {
	Prefix string
}

func (s *SlotNames) Slot(r Reg) string {
	return s.Prefix + r.String()
}

// Config carries the lowering options.
type Config struct {
	// Comments interleaves provenance comments with the emitted code.
	Comments bool
}

// Backend is the capability set a code-generation target provides. All value
// operations work on an implicit evaluation stack: a stack-machine backend
// emits them verbatim, a statement backend simulates the stack with named
// temporaries. Runtime-record accessors encapsulate the target's component
// memory layout so the lowering never hardcodes offsets or strides.
type Backend interface {
	Comment(s string)

	// stack ops
	Const(n int)
	FieldConstant(idx int) // push the address of constant pool entry idx
	GetTemp(r Reg)
	SetTemp(r Reg)
	TeeTemp(r Reg)
	Add()
	Sub()
	Mul()
	Eqz()

	// structured control
	If() // pops condition
	Else()
	EndIf()
	Block()
	Loop()
	Br(depth int)
	BrIf(depth int) // pops condition
	EndBlock()
	Return() // pops result code, terminates the enclosing routine

	// address formation; each pops what it needs and pushes an address
	VarAddr()    // pops index, pushes address in the variable frame
	SignalAddr() // pops index, pushes address in the current signal frame
	SubCmpResolve(sub Reg, cmpIndex func()) // resolve instance record into sub
	SubCmpSignalAddr(sub Reg)               // pops index, pushes address in sub's frame
	AddSubCmpFrameBase(sub Reg)             // pops offset, pushes offset + sub's frame base

	// mapped-location metadata access
	IODescriptor(sub, io Reg, signalCode int) // fetch signal descriptor into io
	DescOffset(io Reg)                        // push descriptor's stored offset
	DescLength(io Reg, i int)                 // push declared length of dimension i (i >= 1)
	DescBusID(io Reg)                         // push descriptor's bus id
	BusField(io Reg, field int)               // pops bus id, fetches field descriptor into io, pushes its offset
	AddScaledIndex(io Reg)                    // pops linear index, pushes offset + index * element size

	// value transfer
	FieldCopy() // pops dest, src; copies one field element
	HasBulkCopy() bool
	FieldCopyN(size int) // pops dest, src; copies size elements
	ConstStride()        // push the per-element address stride

	// sub-component trigger
	TemplateID(sub Reg)              // push sub's template id
	DecInputCounter(sub Reg, n int)  // decrement sub's pending-input counter by n
	InputCounterIsZero(sub Reg)      // push counter == 0
	SubCmpParallelFlag(sub Reg)      // push sub's runtime parallel flag
	CallRun(template string)         // pops instance arg, calls <template>_run, pushes result
	CallRunIndirect()                // pops template id and instance arg, dispatches, pushes result
	SupportsParallel() bool
	SpawnRun(template string) // pops instance arg, spawns <template>_run_parallel
	SpawnRunIndirect()        // pops template id and instance arg, spawns via dispatch table
	MarkOutputReady(idx Reg, size int)

	// diagnostics
	BuildMessage()      // pops message id, line
	PrintErrorMessage()
}
