package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/zkcircuit/witnessc/codegen/wasmgen"
)

// IODef is the source form of one I/O descriptor: Offset in bytes from the
// owning frame's base, Size in field elements, Lengths the declared extents
// of every dimension but the outermost, BusID the nested bus for bus-valued
// fields (-1 for scalars).
type IODef struct {
	Offset  int
	Size    int
	Lengths []int
	BusID   int
}

// Builder assembles a linear-memory image a Machine and a wasmgen.Backend
// agree on: constant pool, variable and signal frames, component records,
// and the per-template/per-bus descriptor tables.
type Builder struct {
	layout wasmgen.Layout
	mem    []byte

	ioTables  [][]IODef
	busTables [][]IODef
}

func NewBuilder(fieldBytes int) *Builder {
	return &Builder{
		layout: wasmgen.NewLayout(fieldBytes),
		// address 0 stays unused so 0 can't alias a real record
		mem: make([]byte, 8),
	}
}

func (b *Builder) alloc(n int) int {
	addr := len(b.mem)
	b.mem = append(b.mem, make([]byte, n)...)
	return addr
}

func (b *Builder) putU32(addr int, v int) {
	binary.LittleEndian.PutUint32(b.mem[addr:addr+4], uint32(v))
}

// Constants writes the field constant pool; entries are raw element images
// of FieldBytes each.
func (b *Builder) Constants(elements [][]byte) {
	if b.layout.ConstantsBase != 0 {
		panic("constant pool already placed")
	}
	base := b.alloc(len(elements) * b.layout.FieldBytes)
	b.layout.ConstantsBase = base
	for i, e := range elements {
		if len(e) != b.layout.FieldBytes {
			panic(fmt.Sprintf("constant %d has %d bytes", i, len(e)))
		}
		copy(b.mem[base+i*b.layout.FieldBytes:], e)
	}
}

// Frame allocates a zeroed region of n field elements and returns its base
// address; used for the variable frame and each component's signal frame.
func (b *Builder) Frame(n int) int {
	return b.alloc(n * b.layout.FieldBytes)
}

// Component writes an instance record and returns its address. subCmps are
// the record addresses of nested instances, in table order.
func (b *Builder) Component(templateID, signalStart, inputCounter int, subCmps []int) int {
	addr := b.alloc(b.layout.SubCmpTableOff + 4*len(subCmps))
	b.putU32(addr+b.layout.TemplateIDOff, templateID)
	b.putU32(addr+b.layout.SignalStartOff, signalStart)
	b.putU32(addr+b.layout.InputCounterOff, inputCounter)
	for i, sc := range subCmps {
		b.putU32(addr+b.layout.SubCmpTableOff+4*i, sc)
	}
	return addr
}

// SetInputCounter rewrites a record's pending-input counter.
func (b *Builder) SetInputCounter(component, counter int) {
	b.putU32(component+b.layout.InputCounterOff, counter)
}

// IOTables declares the per-template signal-code descriptor tables; index
// is the template id.
func (b *Builder) IOTables(tables [][]IODef) {
	b.ioTables = tables
}

// BusTables declares the per-bus field-number descriptor tables; index is
// the bus id.
func (b *Builder) BusTables(tables [][]IODef) {
	b.busTables = tables
}

func (b *Builder) writeDef(def IODef) int {
	addr := b.alloc(12 + 4*len(def.Lengths))
	b.putU32(addr, def.Offset)
	b.putU32(addr+4, def.Size)
	b.putU32(addr+8, def.BusID)
	for i, l := range def.Lengths {
		b.putU32(addr+wasmgen.DescLengthOff(i+1), l)
	}
	return addr
}

func (b *Builder) writeTables(tables [][]IODef) int {
	index := b.alloc(4 * len(tables))
	for i, defs := range tables {
		table := b.alloc(4 * len(defs))
		b.putU32(index+4*i, table)
		for j, def := range defs {
			b.putU32(table+4*j, b.writeDef(def))
		}
	}
	return index
}

// Build finalizes the image and the layout the backend must emit against.
func (b *Builder) Build() ([]byte, wasmgen.Layout) {
	b.layout.IOTableBase = b.writeTables(b.ioTables)
	b.layout.BusTableBase = b.writeTables(b.busTables)
	return b.mem, b.layout
}
