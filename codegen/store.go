package codegen

import (
	"fmt"

	"github.com/zkcircuit/witnessc/ir"
)

// EmitStore lowers one store instruction: resolve the destination, copy the
// source value(s), and, when the destination is a sub-component input, run
// the trigger protocol. A size of zero emits nothing.
func EmitStore(b Backend, insn *ir.Instruction, cfg Config) error {
	if insn.Type != ir.IStore {
		return ir.Violationf("EmitStore on %s", insn.String())
	}
	s := insn.Store
	if s.Size == 0 {
		return nil
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if cfg.Comments {
		b.Comment(fmt.Sprintf("store. line %d", insn.Line))
	}

	// the output-ready bookkeeping is only needed when another thread can
	// wait on the written signal
	outputReady := s.DestAddress.Kind == ir.AddrSignal && s.DestIsOutput && b.SupportsParallel()

	if cfg.Comments {
		b.Comment("getting dest")
	}
	if err := emitLocation(b, s.DestAddress, s.Dest, storeRegs, outputReady); err != nil {
		return err
	}

	if cfg.Comments {
		b.Comment("getting src")
	}
	if err := emitTransfer(b, s); err != nil {
		return err
	}
	if outputReady {
		b.MarkOutputReady(RegDestIndex, s.Size)
	}

	if s.DestAddress.Kind != ir.AddrSubCmpSignal {
		return nil
	}
	return emitTrigger(b, insn, cfg)
}

// emitTransfer copies s.Size field elements from the source to the resolved
// destination sitting on the stack. Backends with a bulk-copy primitive get
// one call; the others get a counted loop of scalar copies. Both forms move
// the same elements in the same order.
func emitTransfer(b Backend, s *ir.StoreInst) error {
	bulk := s.Size > 1 && b.HasBulkCopy()
	if s.Size > 1 && !bulk {
		b.SetTemp(RegCopyDst)
	}
	if err := EmitExpr(b, s.Src); err != nil {
		return err
	}
	switch {
	case s.Size == 1:
		b.FieldCopy()
	case bulk:
		b.FieldCopyN(s.Size)
	default:
		b.SetTemp(RegCopySrc)
		b.Const(s.Size)
		b.SetTemp(RegCopyCounter)
		b.Block()
		b.Loop()
		b.GetTemp(RegCopyCounter)
		b.Eqz()
		b.BrIf(1)
		b.GetTemp(RegCopyDst)
		b.GetTemp(RegCopySrc)
		b.FieldCopy()
		b.GetTemp(RegCopyCounter)
		b.Const(1)
		b.Sub()
		b.SetTemp(RegCopyCounter)
		b.GetTemp(RegCopyDst)
		b.ConstStride()
		b.Add()
		b.SetTemp(RegCopyDst)
		b.GetTemp(RegCopySrc)
		b.ConstStride()
		b.Add()
		b.SetTemp(RegCopySrc)
		b.Br(0)
		b.EndBlock()
		b.EndBlock()
	}
	return nil
}

// emitTrigger decrements the destination instance's pending-input counter
// and dispatches its run routine according to the pending-input status.
func emitTrigger(b Backend, insn *ir.Instruction, cfg Config) error {
	s := insn.Store
	if cfg.Comments {
		b.Comment("decrease counter")
	}
	b.DecInputCounter(RegSubCmp, s.Size)
	switch s.DestAddress.Input {
	case ir.InputNoLast:
		// the counter stays positive here; nothing can run
		if cfg.Comments {
			b.Comment("no need to run sub component")
		}
	case ir.InputLast:
		if cfg.Comments {
			b.Comment("run sub component")
		}
		return emitRun(b, insn, cfg)
	case ir.InputUnknown:
		if cfg.Comments {
			b.Comment("check if run is needed")
		}
		b.InputCounterIsZero(RegSubCmp)
		b.If()
		if cfg.Comments {
			b.Comment("run sub component")
		}
		if err := emitRun(b, insn, cfg); err != nil {
			return err
		}
		b.EndIf()
	default:
		return ir.Violationf("unknown input status %d", int(s.DestAddress.Input))
	}
	return nil
}

// emitRun dispatches the sub-component's run routine: by template name for
// an indexed destination, through the template-id dispatch table for a
// mapped one; spawned when the instance is parallel on a target that can.
func emitRun(b Backend, insn *ir.Instruction, cfg Config) error {
	s := insn.Store
	indexed := s.Dest.Kind == ir.LocationIndexed
	if indexed && s.Dest.TemplateHeader == "" {
		return ir.Violationf("indexed sub-component destination without template header")
	}
	par := s.DestAddress.Parallel
	if !b.SupportsParallel() || (par != nil && !*par) {
		emitDirectRun(b, insn, indexed)
		return nil
	}
	if par != nil {
		emitSpawn(b, s, indexed)
		return nil
	}
	// parallel only known at run time
	b.SubCmpParallelFlag(RegSubCmp)
	b.If()
	emitSpawn(b, s, indexed)
	b.Else()
	emitDirectRun(b, insn, indexed)
	b.EndIf()
	return nil
}

// emitDirectRun emits the synchronous call plus the error path: a non-zero
// result builds a diagnostic from the store's provenance and propagates the
// code outward immediately.
func emitDirectRun(b Backend, insn *ir.Instruction, indexed bool) {
	s := insn.Store
	b.GetTemp(RegSubCmp)
	if indexed {
		b.CallRun(s.Dest.TemplateHeader)
	} else {
		b.TemplateID(RegSubCmp)
		b.CallRunIndirect()
	}
	b.TeeTemp(RegErr)
	b.If()
	b.Const(insn.Message)
	b.Const(insn.Line)
	b.BuildMessage()
	b.PrintErrorMessage()
	b.GetTemp(RegErr)
	b.Return()
	b.EndIf()
}

func emitSpawn(b Backend, s *ir.StoreInst, indexed bool) {
	b.GetTemp(RegSubCmp)
	if indexed {
		b.SpawnRun(s.Dest.TemplateHeader)
	} else {
		b.TemplateID(RegSubCmp)
		b.SpawnRunIndirect()
	}
}
