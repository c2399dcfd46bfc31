// Package cgen realizes the code-generation backend for the host-language
// target: an ordered list of C-like statements over named temporaries,
// calling the witness-calculator runtime routines. It simulates the driver's
// implicit evaluation stack with expressions, materializing a temporary only
// when the driver stores into a scratch slot.
package cgen

import (
	"fmt"
	"strconv"

	"github.com/zkcircuit/witnessc/codegen"
)

// Backend implements codegen.Backend for the host-language target. This is
// the only target that executes sub-components concurrently.
type Backend struct {
	regs     codegen.Regs
	stmts    []string
	stack    []string
	declared map[string]bool
	cmpIndex map[codegen.Reg]string
	tmps     int
}

func NewBackend(regs codegen.Regs) *Backend {
	return &Backend{
		regs:     regs,
		declared: map[string]bool{},
		cmpIndex: map[codegen.Reg]string{},
	}
}

// Stmts returns the emitted statement list.
func (g *Backend) Stmts() []string {
	return g.stmts
}

func (g *Backend) line(format string, args ...interface{}) {
	g.stmts = append(g.stmts, fmt.Sprintf(format, args...))
}

func (g *Backend) push(e string) {
	g.stack = append(g.stack, e)
}

func (g *Backend) pop() string {
	if len(g.stack) == 0 {
		panic("expression stack underflow")
	}
	e := g.stack[len(g.stack)-1]
	g.stack = g.stack[:len(g.stack)-1]
	return e
}

// assign materializes a scratch slot, declaring it on first use.
func (g *Backend) assign(name, expr string) {
	if !g.declared[name] {
		g.declared[name] = true
		g.line("uint %s = %s;", name, expr)
		return
	}
	g.line("%s = %s;", name, expr)
}

func (g *Backend) cmp(sub codegen.Reg) string {
	return "ctx->componentMemory[" + g.regs.Slot(sub) + "]"
}

func (g *Backend) Comment(s string) { g.line("// %s", s) }

func (g *Backend) Const(n int) { g.push(strconv.Itoa(n)) }

func (g *Backend) FieldConstant(idx int) {
	g.push(fmt.Sprintf("&circuitConstants[%d]", idx))
}

func (g *Backend) GetTemp(r codegen.Reg) { g.push(g.regs.Slot(r)) }

func (g *Backend) SetTemp(r codegen.Reg) { g.assign(g.regs.Slot(r), g.pop()) }

func (g *Backend) TeeTemp(r codegen.Reg) {
	name := g.regs.Slot(r)
	g.assign(name, g.pop())
	g.push(name)
}

func (g *Backend) binop(op string) {
	b := g.pop()
	a := g.pop()
	g.push("(" + a + " " + op + " " + b + ")")
}

func (g *Backend) Add() { g.binop("+") }
func (g *Backend) Sub() { g.binop("-") }
func (g *Backend) Mul() { g.binop("*") }

func (g *Backend) Eqz() { g.push("!(" + g.pop() + ")") }

func (g *Backend) If()    { g.line("if (%s) {", g.pop()) }
func (g *Backend) Else()  { g.line("} else {") }
func (g *Backend) EndIf() { g.line("}") }

func (g *Backend) Block()       { panic("host target has no raw blocks") }
func (g *Backend) Loop()        { panic("host target has no raw loops") }
func (g *Backend) Br(int)       { panic("host target has no raw branches") }
func (g *Backend) BrIf(int)     { panic("host target has no raw branches") }
func (g *Backend) EndBlock()    { panic("host target has no raw blocks") }
func (g *Backend) ConstStride() { panic("host target copies with Fr_copyn") }

func (g *Backend) Return() { g.line("return %s;", g.pop()) }

func (g *Backend) VarAddr() { g.push("&lvar[" + g.pop() + "]") }

func (g *Backend) SignalAddr() { g.push("&signalValues[" + g.pop() + "]") }

func (g *Backend) SubCmpResolve(sub codegen.Reg, cmpIndex func()) {
	cmpIndex()
	ref := g.regs.Slot(sub) + "_index"
	g.assign(ref, g.pop())
	g.cmpIndex[sub] = ref
	g.assign(g.regs.Slot(sub), "mySubcomponents["+ref+"]")
}

func (g *Backend) SubCmpSignalAddr(sub codegen.Reg) {
	g.push(fmt.Sprintf("&ctx->signalValues[%s.signalStart + %s]", g.cmp(sub), g.pop()))
}

func (g *Backend) AddSubCmpFrameBase(sub codegen.Reg) {
	g.push(fmt.Sprintf("&ctx->signalValues[%s.signalStart + %s]", g.cmp(sub), g.pop()))
}

func (g *Backend) IODescriptor(sub, io codegen.Reg, signalCode int) {
	name := g.regs.Slot(io)
	g.declared[name] = true
	g.line("IOFieldDef *%s = &ctx->templateInsId2IOSignalInfo[%s.templateId].defs[%d];",
		name, g.cmp(sub), signalCode)
}

func (g *Backend) DescOffset(io codegen.Reg) {
	g.push(g.regs.Slot(io) + "->offset")
}

func (g *Backend) DescLength(io codegen.Reg, i int) {
	g.push(fmt.Sprintf("%s->lengths[%d]", g.regs.Slot(io), i-1))
}

func (g *Backend) DescBusID(io codegen.Reg) {
	g.push(g.regs.Slot(io) + "->busId")
}

func (g *Backend) BusField(io codegen.Reg, field int) {
	name := g.regs.Slot(io)
	bus := g.pop()
	// the accumulated offset expression still reads through the descriptor
	// pointer being replaced; pin its value down first
	if len(g.stack) > 0 {
		g.tmps++
		acc := fmt.Sprintf("map_acc_%d", g.tmps)
		g.assign(acc, g.pop())
		g.push(acc)
	}
	g.line("%s = &ctx->busInsId2FieldInfo[%s].defs[%d];", name, bus, field)
	g.push(name + "->offset")
}

func (g *Backend) AddScaledIndex(io codegen.Reg) {
	lin := g.pop()
	off := g.pop()
	g.push(fmt.Sprintf("(%s + %s*%s->size)", off, lin, g.regs.Slot(io)))
}

func (g *Backend) FieldCopy() {
	src := g.pop()
	dst := g.pop()
	g.line("Fr_copy(%s, %s);", dst, src)
}

func (g *Backend) HasBulkCopy() bool { return true }

func (g *Backend) FieldCopyN(size int) {
	src := g.pop()
	dst := g.pop()
	g.line("Fr_copyn(%s, %s, %d);", dst, src, size)
}

func (g *Backend) TemplateID(sub codegen.Reg) {
	g.push(g.cmp(sub) + ".templateId")
}

func (g *Backend) DecInputCounter(sub codegen.Reg, n int) {
	g.line("%s.inputCounter -= %d;", g.cmp(sub), n)
}

func (g *Backend) InputCounterIsZero(sub codegen.Reg) {
	g.push("!(" + g.cmp(sub) + ".inputCounter)")
}

func (g *Backend) SubCmpParallelFlag(sub codegen.Reg) {
	g.push("mySubcomponentsParallel[" + g.cmpIndex[sub] + "]")
}

func (g *Backend) CallRun(template string) {
	g.push(fmt.Sprintf("%s_run(%s, ctx)", template, g.pop()))
}

func (g *Backend) CallRunIndirect() {
	tid := g.pop()
	arg := g.pop()
	g.push(fmt.Sprintf("(*runsmap[%s])(%s, ctx)", tid, arg))
}

func (g *Backend) SupportsParallel() bool { return true }

// spawn blocks on the global concurrency limit, then launches the run task
// without waiting for its completion.
func (g *Backend) spawn(callee, arg string) {
	g.line("{")
	g.line("std::unique_lock<std::mutex> lkt(ctx->numThreadMutex);")
	g.line("ctx->ntcvs.wait(lkt, [ctx]() { return ctx->numThread < ctx->maxThread; });")
	g.line("ctx->numThread++;")
	g.line("}")
	g.line("ctx->componentMemory[ctx_index].sbct[%s] = std::thread(%s, %s, ctx);",
		g.cmpIndex[codegen.RegSubCmp], callee, arg)
}

func (g *Backend) SpawnRun(template string) {
	g.spawn(template+"_run_parallel", g.pop())
}

func (g *Backend) SpawnRunIndirect() {
	tid := g.pop()
	g.spawn("(*runsmapParallel["+tid+"])", g.pop())
}

// MarkOutputReady flips each written element's ready flag under its own
// mutex and wakes the waiters, strictly after the copy of all elements.
func (g *Backend) MarkOutputReady(idx codegen.Reg, size int) {
	di := g.regs.Slot(idx)
	if size == 1 {
		g.line("ctx->componentMemory[ctx_index].mutexes[%s].lock();", di)
		g.line("ctx->componentMemory[ctx_index].outputIsSet[%s] = true;", di)
		g.line("ctx->componentMemory[ctx_index].mutexes[%s].unlock();", di)
		g.line("ctx->componentMemory[ctx_index].cvs[%s].notify_all();", di)
		return
	}
	g.line("for (int i = 0; i < %d; i++) {", size)
	g.line("ctx->componentMemory[ctx_index].mutexes[%s+i].lock();", di)
	g.line("ctx->componentMemory[ctx_index].outputIsSet[%s+i] = true;", di)
	g.line("ctx->componentMemory[ctx_index].mutexes[%s+i].unlock();", di)
	g.line("ctx->componentMemory[ctx_index].cvs[%s+i].notify_all();", di)
	g.line("}")
}

func (g *Backend) BuildMessage() {
	line := g.pop()
	msg := g.pop()
	g.line("buildBufferMessage(%s, %s);", msg, line)
}

func (g *Backend) PrintErrorMessage() {
	g.line("printErrorMessage();")
}
