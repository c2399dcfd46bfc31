// Package witnessc turns typed circuit IR into executable witness
// calculators, in two interchangeable forms: a stack-machine instruction
// stream and a host-language source program. Both compute identical witness
// values for any valid circuit.
package witnessc

import (
	"github.com/consensys/gnark/logger"

	"github.com/zkcircuit/witnessc/codegen"
	"github.com/zkcircuit/witnessc/codegen/cgen"
	"github.com/zkcircuit/witnessc/codegen/wasmgen"
	"github.com/zkcircuit/witnessc/ir"
)

// CompileWasm lowers instructions into the stack-machine form, emitted
// against the given memory layout.
func CompileWasm(insns []*ir.Instruction, regs codegen.Regs, layout wasmgen.Layout, cfg codegen.Config) ([]wasmgen.Op, error) {
	g := wasmgen.NewBackend(regs, layout)
	if err := compile(g, insns, cfg); err != nil {
		return nil, err
	}
	log := logger.Logger()
	log.Debug().
		Int("nbInstructions", len(insns)).
		Int("nbOps", len(g.Ops())).
		Msg("compiled stack-machine target")
	return g.Ops(), nil
}

// CompileC lowers instructions into the host-language statement form.
func CompileC(insns []*ir.Instruction, regs codegen.Regs, cfg codegen.Config) ([]string, error) {
	g := cgen.NewBackend(regs)
	if err := compile(g, insns, cfg); err != nil {
		return nil, err
	}
	log := logger.Logger()
	log.Debug().
		Int("nbInstructions", len(insns)).
		Int("nbStatements", len(g.Stmts())).
		Msg("compiled host-language target")
	return g.Stmts(), nil
}

func compile(b codegen.Backend, insns []*ir.Instruction, cfg codegen.Config) error {
	for _, insn := range insns {
		var err error
		switch insn.Type {
		case ir.IStore:
			err = codegen.EmitStore(b, insn, cfg)
		default:
			err = codegen.EmitExpr(b, insn)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
