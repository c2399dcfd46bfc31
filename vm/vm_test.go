package vm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zkcircuit/witnessc/codegen"
	"github.com/zkcircuit/witnessc/codegen/wasmgen"
	"github.com/zkcircuit/witnessc/ir"
)

const fieldBytes = 32

// enc fabricates a recognizable field element image.
func enc(v byte) []byte {
	e := make([]byte, fieldBytes)
	e[0] = v
	e[31] = 0xa0 ^ v
	return e
}

func emit(t *testing.T, layout wasmgen.Layout, insn *ir.Instruction) []wasmgen.Op {
	t.Helper()
	g := wasmgen.NewBackend(&codegen.SlotNames{}, layout)
	require.NoError(t, codegen.EmitStore(g, insn, codegen.Config{}))
	return g.Ops()
}

func u32v(v int) *ir.Instruction {
	return ir.NewValue(0, 0, ir.ValueU32, v)
}

func element(mem []byte, frame, i int) []byte {
	base := frame + i*fieldBytes
	return mem[base : base+fieldBytes]
}

func TestStoreVariableDirect(t *testing.T) {
	b := NewBuilder(fieldBytes)
	b.Constants([][]byte{enc(7)})
	vars := b.Frame(8)
	mem, layout := b.Build()

	insn := ir.NewStore(3, 1, ir.StoreInst{
		Size:        1,
		DestAddress: ir.AddressType{Kind: ir.AddrVariable},
		Dest:        ir.LocationRule{Kind: ir.LocationIndexed, Index: u32v(5)},
		Src:         ir.NewValue(0, 0, ir.ValueField, 0),
	})

	m := NewMachine(mem, fieldBytes)
	m.Locals["lvar"] = int32(vars)
	ret, returned, err := m.Run(emit(t, layout, insn))
	require.NoError(t, err)
	assert.False(t, returned)
	assert.Equal(t, int32(0), ret)
	assert.Equal(t, enc(7), element(m.Mem, vars, 5))
	for i := 0; i < 8; i++ {
		if i != 5 {
			assert.Equal(t, make([]byte, fieldBytes), element(m.Mem, vars, i), "element %d", i)
		}
	}
}

func TestStoreLoopCopiesEveryElement(t *testing.T) {
	b := NewBuilder(fieldBytes)
	b.Constants([][]byte{enc(1), enc(2), enc(3)})
	vars := b.Frame(8)
	mem, layout := b.Build()

	insn := ir.NewStore(4, 1, ir.StoreInst{
		Size:        3,
		DestAddress: ir.AddressType{Kind: ir.AddrVariable},
		Dest:        ir.LocationRule{Kind: ir.LocationIndexed, Index: u32v(2)},
		Src:         ir.NewValue(0, 0, ir.ValueField, 0),
	})

	m := NewMachine(mem, fieldBytes)
	m.Locals["lvar"] = int32(vars)
	_, _, err := m.Run(emit(t, layout, insn))
	require.NoError(t, err)
	assert.Equal(t, enc(1), element(m.Mem, vars, 2))
	assert.Equal(t, enc(2), element(m.Mem, vars, 3))
	assert.Equal(t, enc(3), element(m.Mem, vars, 4))
	assert.True(t, bytes.Equal(make([]byte, 2*fieldBytes), mem[vars:vars+2*fieldBytes]))
}

// subCmpWorld is the shared fixture for trigger tests: a root instance with
// one child whose run routine counts its invocations.
type subCmpWorld struct {
	m          *Machine
	layout     wasmgen.Layout
	childFrame int
	child      int
	runs       int
	runResult  int32
}

func newSubCmpWorld(t *testing.T, counter int, ioTables, busTables [][]IODef) *subCmpWorld {
	t.Helper()
	w := &subCmpWorld{}
	b := NewBuilder(fieldBytes)
	b.Constants([][]byte{enc(9)})
	w.childFrame = b.Frame(16)
	w.child = b.Component(0, w.childFrame, counter, nil)
	rootFrame := b.Frame(2)
	root := b.Component(1, rootFrame, 0, []int{w.child})
	b.IOTables(ioTables)
	b.BusTables(busTables)
	mem, layout := b.Build()
	w.layout = layout

	w.m = NewMachine(mem, fieldBytes)
	w.m.Locals["offset"] = int32(root)
	w.m.Funcs["Adder_run"] = Func{NArgs: 1, HasResult: true, Fn: func(m *Machine, args []int32) (int32, error) {
		require.Equal(t, int32(w.child), args[0])
		w.runs++
		return w.runResult, nil
	}}
	w.m.Table[0] = "Adder_run"
	return w
}

func (w *subCmpWorld) counter() uint32 {
	return w.m.U32(w.child + w.layout.InputCounterOff)
}

func subStore(line, message, size int, input ir.InputStatus, dest ir.LocationRule) *ir.Instruction {
	return ir.NewStore(line, message, ir.StoreInst{
		Size: size,
		DestAddress: ir.AddressType{
			Kind:     ir.AddrSubCmpSignal,
			CmpIndex: u32v(0),
			Input:    input,
		},
		Dest: dest,
		Src:  ir.NewValue(0, 0, ir.ValueField, 0),
	})
}

func TestKnownLastRunsExactlyOnce(t *testing.T) {
	w := newSubCmpWorld(t, 1, nil, nil)
	insn := subStore(12, 4, 1, ir.InputLast,
		ir.LocationRule{Kind: ir.LocationIndexed, Index: u32v(0), TemplateHeader: "Adder"})

	ret, returned, err := w.m.Run(emit(t, w.layout, insn))
	require.NoError(t, err)
	assert.False(t, returned)
	assert.Equal(t, int32(0), ret)
	assert.Equal(t, uint32(0), w.counter())
	assert.Equal(t, 1, w.runs)
	assert.Equal(t, enc(9), element(w.m.Mem, w.childFrame, 0))
}

func TestNoLastNeverRuns(t *testing.T) {
	w := newSubCmpWorld(t, 3, nil, nil)
	insn := subStore(12, 4, 2, ir.InputNoLast,
		ir.LocationRule{Kind: ir.LocationIndexed, Index: u32v(0), TemplateHeader: "Adder"})

	_, _, err := w.m.Run(emit(t, w.layout, insn))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), w.counter())
	assert.Equal(t, 0, w.runs)
}

func TestUnknownStatusFiresOnZero(t *testing.T) {
	w := newSubCmpWorld(t, 3, nil, nil)
	dest := func(i int) ir.LocationRule {
		return ir.LocationRule{Kind: ir.LocationIndexed, Index: u32v(i), TemplateHeader: "Adder"}
	}
	// writes of sizes 2 then 1; only the second can fire
	for i, size := range []int{2, 1} {
		_, _, err := w.m.Run(emit(t, w.layout, subStore(12, 4, size, ir.InputUnknown, dest(i))))
		require.NoError(t, err)
		// the batch write lowers as a single decrement
		assert.Equal(t, i, w.runs, "after write %d", i)
	}
	assert.Equal(t, uint32(0), w.counter())
	assert.Equal(t, 1, w.runs)
}

func TestRunFailurePropagates(t *testing.T) {
	w := newSubCmpWorld(t, 1, nil, nil)
	w.runResult = 2
	insn := subStore(9, 5, 1, ir.InputLast,
		ir.LocationRule{Kind: ir.LocationIndexed, Index: u32v(0), TemplateHeader: "Adder"})

	ret, returned, err := w.m.Run(emit(t, w.layout, insn))
	require.NoError(t, err)
	assert.True(t, returned, "error path must terminate the routine")
	assert.Equal(t, int32(2), ret)
	assert.True(t, w.m.Reported)
	assert.Equal(t, int32(9), w.m.ErrLine)
	assert.Equal(t, int32(5), w.m.ErrMessage)
}

func TestMappedEmptyChainDispatchesIndirect(t *testing.T) {
	io := [][]IODef{{
		{Offset: 0, Size: 1, BusID: -1},
		{Offset: 5 * fieldBytes, Size: 1, BusID: -1},
	}}
	w := newSubCmpWorld(t, 1, io, nil)
	insn := subStore(12, 4, 1, ir.InputLast,
		ir.LocationRule{Kind: ir.LocationMapped, SignalCode: 1})

	_, _, err := w.m.Run(emit(t, w.layout, insn))
	require.NoError(t, err)
	assert.Equal(t, 1, w.runs)
	assert.Equal(t, enc(9), element(w.m.Mem, w.childFrame, 5))
}

func TestMappedRowMajorFold(t *testing.T) {
	// a [3][4] array: only the inner extent is stored
	io := [][]IODef{{
		{Offset: 0, Size: 1, Lengths: []int{4}, BusID: -1},
	}}
	w := newSubCmpWorld(t, 12, io, nil)
	insn := subStore(12, 4, 1, ir.InputNoLast, ir.LocationRule{
		Kind:       ir.LocationMapped,
		SignalCode: 0,
		Accesses: []ir.Access{
			{Kind: ir.AccessIndexed, Indices: []*ir.Instruction{u32v(2), u32v(1)}},
		},
	})

	_, _, err := w.m.Run(emit(t, w.layout, insn))
	require.NoError(t, err)
	// [2][1] of a [3][4] array is linear index 9
	assert.Equal(t, enc(9), element(w.m.Mem, w.childFrame, 9))
	assert.Equal(t, uint32(11), w.counter())
}

func TestMappedBusFieldChain(t *testing.T) {
	// a [2] array of 3-element buses; field 1 sits one element in
	io := [][]IODef{{
		{Offset: 0, Size: 3, Lengths: nil, BusID: 0},
	}}
	bus := [][]IODef{{
		{Offset: 0, Size: 1, BusID: -1},
		{Offset: fieldBytes, Size: 1, BusID: -1},
	}}
	w := newSubCmpWorld(t, 6, io, bus)
	insn := subStore(12, 4, 1, ir.InputNoLast, ir.LocationRule{
		Kind:       ir.LocationMapped,
		SignalCode: 0,
		Accesses: []ir.Access{
			{Kind: ir.AccessIndexed, Indices: []*ir.Instruction{u32v(1)}},
			{Kind: ir.AccessQualified, Field: 1},
		},
	})

	_, _, err := w.m.Run(emit(t, w.layout, insn))
	require.NoError(t, err)
	// element 1 of the array starts at element 3; field 1 is element 4
	assert.Equal(t, enc(9), element(w.m.Mem, w.childFrame, 4))
}

func TestRunUnboundTemplate(t *testing.T) {
	w := newSubCmpWorld(t, 1, nil, nil)
	insn := subStore(12, 4, 1, ir.InputLast,
		ir.LocationRule{Kind: ir.LocationIndexed, Index: u32v(0), TemplateHeader: "Missing"})
	_, _, err := w.m.Run(emit(t, w.layout, insn))
	assert.ErrorContains(t, err, "unbound routine")
}

func TestMatchControlRejectsUnbalanced(t *testing.T) {
	_, _, err := matchControl([]wasmgen.Op{{Code: wasmgen.OpBlock}})
	assert.ErrorContains(t, err, "unclosed")
	_, _, err = matchControl([]wasmgen.Op{{Code: wasmgen.OpEnd}})
	assert.ErrorContains(t, err, "unmatched")
	_, _, err = matchControl([]wasmgen.Op{{Code: wasmgen.OpElse}})
	assert.ErrorContains(t, err, "else without if")
}
