package wasmgen

import (
	"github.com/zkcircuit/witnessc/codegen"
)

// Backend emits the stack-machine opcode stream. It implements
// codegen.Backend; the target is single threaded, so the parallel
// capabilities are absent and must never be reached.
type Backend struct {
	regs   codegen.Regs
	layout Layout
	ops    []Op
}

func NewBackend(regs codegen.Regs, layout Layout) *Backend {
	return &Backend{regs: regs, layout: layout}
}

// Ops returns the emitted program.
func (g *Backend) Ops() []Op {
	return g.ops
}

func (g *Backend) emit(op Op) {
	g.ops = append(g.ops, op)
}

func (g *Backend) Comment(s string) { g.emit(Op{Code: OpComment, Name: s}) }

func (g *Backend) Const(n int) { g.emit(Op{Code: OpConst, Imm: n}) }

func (g *Backend) FieldConstant(idx int) {
	g.emit(Op{Code: OpConst, Imm: g.layout.ConstantsBase + idx*g.layout.FieldBytes})
}

func (g *Backend) GetTemp(r codegen.Reg) { g.emit(Op{Code: OpGetLocal, Name: g.regs.Slot(r)}) }
func (g *Backend) SetTemp(r codegen.Reg) { g.emit(Op{Code: OpSetLocal, Name: g.regs.Slot(r)}) }
func (g *Backend) TeeTemp(r codegen.Reg) { g.emit(Op{Code: OpTeeLocal, Name: g.regs.Slot(r)}) }

func (g *Backend) Add() { g.emit(Op{Code: OpAdd}) }
func (g *Backend) Sub() { g.emit(Op{Code: OpSub}) }
func (g *Backend) Mul() { g.emit(Op{Code: OpMul}) }
func (g *Backend) Eqz() { g.emit(Op{Code: OpEqz}) }

func (g *Backend) load(off int)  { g.emit(Op{Code: OpLoad, Imm: off}) }
func (g *Backend) store(off int) { g.emit(Op{Code: OpStore, Imm: off}) }

func (g *Backend) If()          { g.emit(Op{Code: OpIf}) }
func (g *Backend) Else()        { g.emit(Op{Code: OpElse}) }
func (g *Backend) EndIf()       { g.emit(Op{Code: OpEnd}) }
func (g *Backend) Block()       { g.emit(Op{Code: OpBlock}) }
func (g *Backend) Loop()        { g.emit(Op{Code: OpLoop}) }
func (g *Backend) Br(depth int) { g.emit(Op{Code: OpBr, Imm: depth}) }
func (g *Backend) BrIf(depth int) {
	g.emit(Op{Code: OpBrIf, Imm: depth})
}
func (g *Backend) EndBlock() { g.emit(Op{Code: OpEnd}) }
func (g *Backend) Return()   { g.emit(Op{Code: OpReturn}) }

func (g *Backend) VarAddr() {
	g.Const(g.layout.FieldBytes)
	g.Mul()
	g.GetTemp(codegen.RegLVar)
	g.Add()
}

func (g *Backend) SignalAddr() {
	g.Const(g.layout.FieldBytes)
	g.Mul()
	g.GetTemp(codegen.RegSignalStart)
	g.Add()
}

func (g *Backend) SubCmpResolve(sub codegen.Reg, cmpIndex func()) {
	g.GetTemp(codegen.RegCmpOffset)
	g.Const(g.layout.SubCmpTableOff)
	g.Add()
	cmpIndex()
	g.Const(4)
	g.Mul()
	g.Add()
	g.load(0) // sub-component record address
	g.SetTemp(sub)
}

func (g *Backend) SubCmpSignalAddr(sub codegen.Reg) {
	g.Const(g.layout.FieldBytes)
	g.Mul()
	g.GetTemp(sub)
	g.load(g.layout.SignalStartOff)
	g.Add()
}

func (g *Backend) AddSubCmpFrameBase(sub codegen.Reg) {
	g.GetTemp(sub)
	g.load(g.layout.SignalStartOff)
	g.Add()
}

func (g *Backend) IODescriptor(sub, io codegen.Reg, signalCode int) {
	g.GetTemp(sub)
	g.load(g.layout.TemplateIDOff)
	g.Const(4)
	g.Mul()
	g.load(g.layout.IOTableBase) // this template's I/O table
	g.load(signalCode * 4)       // descriptor address
	g.SetTemp(io)
}

func (g *Backend) DescOffset(io codegen.Reg) {
	g.GetTemp(io)
	g.load(descOffsetSlot)
}

func (g *Backend) DescLength(io codegen.Reg, i int) {
	g.GetTemp(io)
	g.load(DescLengthOff(i))
}

func (g *Backend) DescBusID(io codegen.Reg) {
	g.GetTemp(io)
	g.load(descBusIDSlot)
}

func (g *Backend) BusField(io codegen.Reg, field int) {
	g.Const(4)
	g.Mul()
	g.load(g.layout.BusTableBase) // this bus's field table
	g.load(field * 4)             // field descriptor address
	g.TeeTemp(io)
	g.load(descOffsetSlot)
}

func (g *Backend) AddScaledIndex(io codegen.Reg) {
	g.Const(g.layout.FieldBytes)
	g.GetTemp(io)
	g.load(descSizeSlot)
	g.Mul()
	g.Mul()
	g.Add()
}

func (g *Backend) FieldCopy() { g.emit(Op{Code: OpCall, Name: "Fr_copy"}) }

func (g *Backend) HasBulkCopy() bool { return false }

func (g *Backend) FieldCopyN(size int) {
	panic("stack-machine target has no bulk copy")
}

func (g *Backend) ConstStride() { g.Const(g.layout.FieldBytes) }

func (g *Backend) TemplateID(sub codegen.Reg) {
	g.GetTemp(sub)
	g.load(g.layout.TemplateIDOff)
}

func (g *Backend) DecInputCounter(sub codegen.Reg, n int) {
	g.GetTemp(sub)
	g.GetTemp(sub)
	g.load(g.layout.InputCounterOff)
	g.Const(n)
	g.Sub()
	g.store(g.layout.InputCounterOff)
}

func (g *Backend) InputCounterIsZero(sub codegen.Reg) {
	g.GetTemp(sub)
	g.load(g.layout.InputCounterOff)
	g.Eqz()
}

func (g *Backend) SubCmpParallelFlag(sub codegen.Reg) {
	panic("stack-machine target is single threaded")
}

func (g *Backend) CallRun(template string) {
	g.emit(Op{Code: OpCall, Name: template + "_run"})
}

func (g *Backend) CallRunIndirect() {
	g.emit(Op{Code: OpCallIndirect, Name: "runsmap"})
}

func (g *Backend) SupportsParallel() bool { return false }

func (g *Backend) SpawnRun(template string) {
	panic("stack-machine target is single threaded")
}

func (g *Backend) SpawnRunIndirect() {
	panic("stack-machine target is single threaded")
}

func (g *Backend) MarkOutputReady(idx codegen.Reg, size int) {
	panic("stack-machine target is single threaded")
}

func (g *Backend) BuildMessage()      { g.emit(Op{Code: OpCall, Name: "buildBufferMessage"}) }
func (g *Backend) PrintErrorMessage() { g.emit(Op{Code: OpCall, Name: "printErrorMessage"}) }
