// Package ir defines the typed instruction model the code generators consume.
// Instructions are immutable values built once during lowering; the emitters
// only ever read them.
package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/consensys/gnark/constraint"
)

// InstructionType enumerates the closed set of instruction variants. Every
// consumer dispatches with a switch over this tag and panics on unknown
// values, so an unhandled variant cannot slip through silently.
type InstructionType int

const (
	_ InstructionType = iota
	IValue
	ILoad
	ICompute
	IStore
)

// ValueType says how a Value instruction's payload is interpreted.
type ValueType int

const (
	// ValueU32 is a plain unsigned integer, used for index arithmetic.
	ValueU32 ValueType = iota
	// ValueField refers to an entry of the field constant pool.
	ValueField
)

// ComputeOp is the operator of a Compute instruction. Only the u32 index
// operators are needed here; full field arithmetic lives elsewhere.
type ComputeOp int

const (
	OpAdd ComputeOp = iota
	OpSub
	OpMul
)

// Instruction is one node of the instruction tree. Type selects which of the
// payload pointers is set; the others are nil.
type Instruction struct {
	Type    InstructionType
	Line    int
	Message int

	Value   *ValueInst
	Load    *LoadInst
	Compute *ComputeInst
	Store   *StoreInst
}

// ValueInst produces either a u32 literal or the address of a field constant.
type ValueInst struct {
	Parse ValueType
	Value int
}

// LoadInst reads Size consecutive field elements starting at the resolved
// source location. It shares the address/location model with StoreInst.
type LoadInst struct {
	Size    int
	Address AddressType
	Src     LocationRule
}

// ComputeInst applies Op left to right over the operand stack.
type ComputeInst struct {
	Op    ComputeOp
	Stack []*Instruction
}

// StoreInst writes Size consecutive field elements from Src to the resolved
// destination. Size 0 is a legal no-op and must emit no code.
type StoreInst struct {
	Size         int
	DestIsOutput bool
	DestAddress  AddressType
	Dest         LocationRule
	Src          *Instruction
}

func NewValue(line, message int, parse ValueType, value int) *Instruction {
	return &Instruction{
		Type:    IValue,
		Line:    line,
		Message: message,
		Value:   &ValueInst{Parse: parse, Value: value},
	}
}

func NewLoad(line, message int, l LoadInst) *Instruction {
	return &Instruction{Type: ILoad, Line: line, Message: message, Load: &l}
}

func NewCompute(line, message int, op ComputeOp, stack ...*Instruction) *Instruction {
	return &Instruction{
		Type:    ICompute,
		Line:    line,
		Message: message,
		Compute: &ComputeInst{Op: op, Stack: stack},
	}
}

func NewStore(line, message int, s StoreInst) *Instruction {
	return &Instruction{Type: IStore, Line: line, Message: message, Store: &s}
}

func (op ComputeOp) String() string {
	switch op {
	case OpAdd:
		return "ADD"
	case OpSub:
		return "SUB"
	case OpMul:
		return "MUL"
	}
	panic(fmt.Sprintf("unknown compute op %d", int(op)))
}

func (insn *Instruction) String() string {
	switch insn.Type {
	case IValue:
		kind := "U32"
		if insn.Value.Parse == ValueField {
			kind = "FIELD"
		}
		return fmt.Sprintf("VALUE(%s:%d)", kind, insn.Value.Value)
	case ILoad:
		return fmt.Sprintf("LOAD(address:%s,src:%s)", insn.Load.Address.String(), insn.Load.Src.String())
	case ICompute:
		args := make([]string, len(insn.Compute.Stack))
		for i, a := range insn.Compute.Stack {
			args[i] = a.String()
		}
		return fmt.Sprintf("COMPUTE(op:%s,stack:%s)", insn.Compute.Op, strings.Join(args, ","))
	case IStore:
		s := insn.Store
		return fmt.Sprintf(
			"STORE(line:%s,template_id:%s,dest_type:%s,dest:%s,src:%s)",
			strconv.Itoa(insn.Line), strconv.Itoa(insn.Message),
			s.DestAddress.String(), s.Dest.String(), s.Src.String(),
		)
	}
	panic(fmt.Sprintf("unknown instruction type %d", int(insn.Type)))
}

// Element is the field value type used by constant pools and signal frames.
type Element = constraint.Element
