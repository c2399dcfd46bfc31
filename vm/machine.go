// Package vm executes stack-machine programs produced by wasmgen against a
// linear-memory witness-calculator image. It exists so emitted code can be
// run and checked without a downstream assembler.
package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/consensys/gnark/logger"

	"github.com/zkcircuit/witnessc/codegen/wasmgen"
)

// Func is a runtime routine the program can call: the field copy primitive,
// the diagnostic builders, and per-template run entry points.
type Func struct {
	NArgs     int
	HasResult bool
	Fn        func(m *Machine, args []int32) (int32, error)
}

// Machine interprets one routine's opcode stream. Locals are the scratch
// registers the surrounding code generator would have declared.
type Machine struct {
	Mem    []byte
	Locals map[string]int32
	Funcs  map[string]Func
	// Table dispatches call_indirect by template id.
	Table map[int32]string

	FieldBytes int

	// last diagnostic built by buildBufferMessage
	ErrMessage int32
	ErrLine    int32
	Reported   bool
}

func NewMachine(mem []byte, fieldBytes int) *Machine {
	m := &Machine{
		Mem:        mem,
		Locals:     map[string]int32{},
		Funcs:      map[string]Func{},
		Table:      map[int32]string{},
		FieldBytes: fieldBytes,
	}
	m.Funcs["Fr_copy"] = Func{NArgs: 2, Fn: frCopy}
	m.Funcs["buildBufferMessage"] = Func{NArgs: 2, Fn: buildBufferMessage}
	m.Funcs["printErrorMessage"] = Func{NArgs: 0, Fn: printErrorMessage}
	return m
}

func frCopy(m *Machine, args []int32) (int32, error) {
	dst, src := int(args[0]), int(args[1])
	copy(m.Mem[dst:dst+m.FieldBytes], m.Mem[src:src+m.FieldBytes])
	return 0, nil
}

func buildBufferMessage(m *Machine, args []int32) (int32, error) {
	m.ErrMessage, m.ErrLine = args[0], args[1]
	return 0, nil
}

func printErrorMessage(m *Machine, args []int32) (int32, error) {
	m.Reported = true
	log := logger.Logger()
	log.Error().
		Int("line", int(m.ErrLine)).
		Int("template", int(m.ErrMessage)).
		Msg("component run failed")
	return 0, nil
}

func (m *Machine) U32(addr int) uint32 {
	return binary.LittleEndian.Uint32(m.Mem[addr : addr+4])
}

func (m *Machine) PutU32(addr int, v uint32) {
	binary.LittleEndian.PutUint32(m.Mem[addr:addr+4], v)
}

type ctrlFrame struct {
	code  wasmgen.OpCode
	start int
	end   int
}

// Run interprets ops. It returns the routine's result and whether the
// program terminated through an explicit return (the error-propagation
// path) rather than by falling off the end.
func (m *Machine) Run(ops []wasmgen.Op) (int32, bool, error) {
	elseOf, endOf, err := matchControl(ops)
	if err != nil {
		return 0, false, err
	}
	var stack []int32
	var ctrl []ctrlFrame

	push := func(v int32) { stack = append(stack, v) }
	pop := func() int32 {
		if len(stack) == 0 {
			panic("value stack underflow")
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}
	branch := func(pc, depth int) int {
		idx := len(ctrl) - 1 - depth
		if idx < 0 {
			panic(fmt.Sprintf("branch depth %d with %d frames", depth, len(ctrl)))
		}
		f := ctrl[idx]
		ctrl = ctrl[:idx+1]
		if f.code == wasmgen.OpLoop {
			return f.start + 1
		}
		return f.end // the end opcode pops the frame
	}

	for pc := 0; pc < len(ops); pc++ {
		op := ops[pc]
		switch op.Code {
		case wasmgen.OpComment:
		case wasmgen.OpConst:
			push(int32(op.Imm))
		case wasmgen.OpGetLocal:
			push(m.Locals[op.Name])
		case wasmgen.OpSetLocal:
			m.Locals[op.Name] = pop()
		case wasmgen.OpTeeLocal:
			m.Locals[op.Name] = stack[len(stack)-1]
		case wasmgen.OpAdd:
			b := pop()
			push(pop() + b)
		case wasmgen.OpSub:
			b := pop()
			push(pop() - b)
		case wasmgen.OpMul:
			b := pop()
			push(pop() * b)
		case wasmgen.OpEqz:
			if pop() == 0 {
				push(1)
			} else {
				push(0)
			}
		case wasmgen.OpLoad:
			addr := int(pop()) + op.Imm
			push(int32(m.U32(addr)))
		case wasmgen.OpStore:
			v := pop()
			addr := int(pop()) + op.Imm
			m.PutU32(addr, uint32(v))
		case wasmgen.OpCall:
			if err := m.call(op.Name, &stack); err != nil {
				return 0, false, err
			}
		case wasmgen.OpCallIndirect:
			tid := pop()
			name, ok := m.Table[tid]
			if !ok {
				return 0, false, fmt.Errorf("no dispatch entry for template id %d", tid)
			}
			if err := m.call(name, &stack); err != nil {
				return 0, false, err
			}
		case wasmgen.OpBlock, wasmgen.OpLoop:
			ctrl = append(ctrl, ctrlFrame{code: op.Code, start: pc, end: endOf[pc]})
		case wasmgen.OpIf:
			f := ctrlFrame{code: wasmgen.OpIf, start: pc, end: endOf[pc]}
			ctrl = append(ctrl, f)
			if pop() == 0 {
				if e, ok := elseOf[pc]; ok {
					pc = e
				} else {
					pc = f.end - 1
				}
			}
		case wasmgen.OpElse:
			// then-branch done, skip to the matching end
			pc = ctrl[len(ctrl)-1].end - 1
		case wasmgen.OpEnd:
			if len(ctrl) == 0 {
				return 0, false, fmt.Errorf("unbalanced end at %d", pc)
			}
			ctrl = ctrl[:len(ctrl)-1]
		case wasmgen.OpBr:
			pc = branch(pc, op.Imm) - 1
		case wasmgen.OpBrIf:
			if pop() != 0 {
				pc = branch(pc, op.Imm) - 1
			}
		case wasmgen.OpReturn:
			return pop(), true, nil
		default:
			panic(fmt.Sprintf("unknown opcode %d", int(op.Code)))
		}
	}
	return 0, false, nil
}

func (m *Machine) call(name string, stack *[]int32) error {
	f, ok := m.Funcs[name]
	if !ok {
		return fmt.Errorf("call to unbound routine %q", name)
	}
	s := *stack
	if len(s) < f.NArgs {
		panic(fmt.Sprintf("call %s with %d of %d args", name, len(s), f.NArgs))
	}
	args := make([]int32, f.NArgs)
	copy(args, s[len(s)-f.NArgs:])
	s = s[:len(s)-f.NArgs]
	res, err := f.Fn(m, args)
	if err != nil {
		return err
	}
	if f.HasResult {
		s = append(s, res)
	}
	*stack = s
	return nil
}

// matchControl pairs every structured opener with its else/end.
func matchControl(ops []wasmgen.Op) (elseOf, endOf map[int]int, err error) {
	elseOf = map[int]int{}
	endOf = map[int]int{}
	var open []int
	for pc, op := range ops {
		switch op.Code {
		case wasmgen.OpBlock, wasmgen.OpLoop, wasmgen.OpIf:
			open = append(open, pc)
		case wasmgen.OpElse:
			if len(open) == 0 || ops[open[len(open)-1]].Code != wasmgen.OpIf {
				return nil, nil, fmt.Errorf("else without if at %d", pc)
			}
			elseOf[open[len(open)-1]] = pc
		case wasmgen.OpEnd:
			if len(open) == 0 {
				return nil, nil, fmt.Errorf("unmatched end at %d", pc)
			}
			endOf[open[len(open)-1]] = pc
			open = open[:len(open)-1]
		}
	}
	if len(open) != 0 {
		return nil, nil, fmt.Errorf("unclosed control frame at %d", open[len(open)-1])
	}
	return elseOf, endOf, nil
}
