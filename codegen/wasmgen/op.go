// Package wasmgen realizes the code-generation backend for the stack-machine
// target: an ordered opcode stream over an implicit i32 stack, named locals,
// and a linear memory shared with the witness-calculator image.
package wasmgen

import (
	"fmt"
	"strings"
)

type OpCode int

const (
	OpConst OpCode = iota
	OpGetLocal
	OpSetLocal
	OpTeeLocal
	OpAdd
	OpSub
	OpMul
	OpEqz
	OpLoad
	OpStore
	OpCall
	OpCallIndirect
	OpBlock
	OpLoop
	OpIf
	OpElse
	OpEnd
	OpBr
	OpBrIf
	OpReturn
	OpComment
)

// Op is one stack-machine instruction. Imm carries the constant, memory
// offset or branch depth; Name the local or callee, without the $ sigil.
type Op struct {
	Code OpCode
	Imm  int
	Name string
}

func (op Op) String() string {
	switch op.Code {
	case OpConst:
		return fmt.Sprintf("i32.const %d", op.Imm)
	case OpGetLocal:
		return "local.get $" + op.Name
	case OpSetLocal:
		return "local.set $" + op.Name
	case OpTeeLocal:
		return "local.tee $" + op.Name
	case OpAdd:
		return "i32.add"
	case OpSub:
		return "i32.sub"
	case OpMul:
		return "i32.mul"
	case OpEqz:
		return "i32.eqz"
	case OpLoad:
		if op.Imm == 0 {
			return "i32.load"
		}
		return fmt.Sprintf("i32.load offset=%d", op.Imm)
	case OpStore:
		if op.Imm == 0 {
			return "i32.store"
		}
		return fmt.Sprintf("i32.store offset=%d", op.Imm)
	case OpCall:
		return "call $" + op.Name
	case OpCallIndirect:
		return fmt.Sprintf("call_indirect $%s (type $_t_i32ri32)", op.Name)
	case OpBlock:
		return "block"
	case OpLoop:
		return "loop"
	case OpIf:
		return "if"
	case OpElse:
		return "else"
	case OpEnd:
		return "end"
	case OpBr:
		return fmt.Sprintf("br %d", op.Imm)
	case OpBrIf:
		return fmt.Sprintf("br_if %d", op.Imm)
	case OpReturn:
		return "return"
	case OpComment:
		return ";; " + op.Name
	}
	panic(fmt.Sprintf("unknown opcode %d", int(op.Code)))
}

// WAT renders the program as WebAssembly text, one instruction per line.
func WAT(ops []Op) string {
	var sb strings.Builder
	for _, op := range ops {
		sb.WriteString(op.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
