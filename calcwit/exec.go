package calcwit

import (
	"fmt"

	"github.com/consensys/gnark/constraint"

	"github.com/zkcircuit/witnessc/ir"
)

// ExecStore applies one store instruction directly to the runtime state of
// component cur. This is the reference semantics both emitted forms are
// checked against: resolve the destination, copy, publish outputs, then run
// the trigger protocol for sub-component inputs.
func (e *Engine) ExecStore(cur int, insn *ir.Instruction) error {
	if insn.Type != ir.IStore {
		return ir.Violationf("ExecStore on %s", insn.String())
	}
	s := insn.Store
	if s.Size == 0 {
		return nil
	}
	if err := s.Validate(); err != nil {
		return err
	}

	dst, dstIdx, subIdx, err := e.resolveLocation(cur, s.DestAddress, s.Dest)
	if err != nil {
		return err
	}
	src, err := e.resolveSource(cur, s)
	if err != nil {
		return err
	}
	if s.Size == 1 {
		FrCopy(dst, src)
	} else {
		FrCopyN(dst, src, s.Size)
	}

	if s.DestAddress.Kind == ir.AddrSignal && s.DestIsOutput {
		c := e.Components[cur]
		for i := 0; i < s.Size; i++ {
			c.MarkOutputReady(dstIdx + i)
		}
	}

	if s.DestAddress.Kind != ir.AddrSubCmpSignal {
		return nil
	}
	return e.trigger(insn, subIdx)
}

// evalU32 evaluates an index expression. Only u32 values and u32 arithmetic
// occur in index position.
func (e *Engine) evalU32(insn *ir.Instruction) (int, error) {
	switch insn.Type {
	case ir.IValue:
		if insn.Value.Parse != ir.ValueU32 {
			return 0, ir.Violationf("field constant in index position")
		}
		return insn.Value.Value, nil
	case ir.ICompute:
		c := insn.Compute
		if len(c.Stack) < 2 {
			return 0, ir.Violationf("compute with %d operands", len(c.Stack))
		}
		acc, err := e.evalU32(c.Stack[0])
		if err != nil {
			return 0, err
		}
		for _, operand := range c.Stack[1:] {
			v, err := e.evalU32(operand)
			if err != nil {
				return 0, err
			}
			switch c.Op {
			case ir.OpAdd:
				acc += v
			case ir.OpSub:
				acc -= v
			case ir.OpMul:
				acc *= v
			default:
				panic(fmt.Sprintf("unknown compute op %d", int(c.Op)))
			}
		}
		return acc, nil
	default:
		return 0, ir.Violationf("%s in index position", insn.String())
	}
}

// resolveSource yields the element slice the store copies from.
func (e *Engine) resolveSource(cur int, s *ir.StoreInst) ([]constraint.Element, error) {
	switch s.Src.Type {
	case ir.IValue:
		if s.Src.Value.Parse != ir.ValueField {
			return nil, ir.Violationf("u32 value as store source")
		}
		return e.Constants[s.Src.Value.Value:], nil
	case ir.ILoad:
		l := s.Src.Load
		if err := l.Validate(); err != nil {
			return nil, err
		}
		src, _, _, err := e.resolveLocation(cur, l.Address, l.Src)
		return src, err
	default:
		return nil, ir.Violationf("%s as store source", s.Src.String())
	}
}

// resolveLocation computes the element slice an address/location pair
// denotes, plus the element index inside its frame and, for sub-component
// regions, the engine index of the addressed instance.
func (e *Engine) resolveLocation(cur int, addr ir.AddressType, loc ir.LocationRule) ([]constraint.Element, int, int, error) {
	c := e.Components[cur]
	switch loc.Kind {
	case ir.LocationIndexed:
		idx, err := e.evalU32(loc.Index)
		if err != nil {
			return nil, 0, 0, err
		}
		switch addr.Kind {
		case ir.AddrVariable:
			return e.Vars[idx:], idx, -1, nil
		case ir.AddrSignal:
			return e.Signals[c.SignalStart+idx:], idx, -1, nil
		case ir.AddrSubCmpSignal:
			subIdx, err := e.subCmpIndex(c, addr)
			if err != nil {
				return nil, 0, 0, err
			}
			sub := e.Components[subIdx]
			return e.Signals[sub.SignalStart+idx:], idx, subIdx, nil
		default:
			panic(fmt.Sprintf("unknown address kind %d", int(addr.Kind)))
		}
	case ir.LocationMapped:
		if addr.Kind != ir.AddrSubCmpSignal {
			return nil, 0, 0, ir.Violationf("mapped location with address kind %s", addr.String())
		}
		subIdx, err := e.subCmpIndex(c, addr)
		if err != nil {
			return nil, 0, 0, err
		}
		sub := e.Components[subIdx]
		off, err := e.mappedOffset(sub, loc)
		if err != nil {
			return nil, 0, 0, err
		}
		return e.Signals[sub.SignalStart+off:], off, subIdx, nil
	default:
		panic(fmt.Sprintf("unknown location kind %d", int(loc.Kind)))
	}
}

func (e *Engine) subCmpIndex(c *Component, addr ir.AddressType) (int, error) {
	i, err := e.evalU32(addr.CmpIndex)
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= len(c.SubCmps) {
		return 0, ir.Violationf("sub-component index %d outside table of %d", i, len(c.SubCmps))
	}
	return c.SubCmps[i], nil
}

// mappedOffset resolves a signal code and its access chain against the
// instance's metadata tables: row-major folding for array steps, descriptor
// replacement for bus-field steps. The bus id feeding a qualified step is
// always the one recorded on the descriptor of the preceding step.
func (e *Engine) mappedOffset(sub *Component, loc ir.LocationRule) (int, error) {
	if sub.TemplateID >= len(e.IOTables) {
		return 0, ir.Violationf("template %d has no I/O table", sub.TemplateID)
	}
	defs := e.IOTables[sub.TemplateID]
	if loc.SignalCode >= len(defs) {
		return 0, ir.Violationf("signal code %d outside I/O table of %d", loc.SignalCode, len(defs))
	}
	def := defs[loc.SignalCode]
	off := def.Offset
	bus := def.BusID
	for _, acc := range loc.Accesses {
		switch acc.Kind {
		case ir.AccessIndexed:
			if len(acc.Indices)-1 > len(def.Lengths) {
				return 0, ir.Violationf("%d indices for %d stored lengths", len(acc.Indices), len(def.Lengths))
			}
			lin, err := e.evalU32(acc.Indices[0])
			if err != nil {
				return 0, err
			}
			for i := 1; i < len(acc.Indices); i++ {
				v, err := e.evalU32(acc.Indices[i])
				if err != nil {
					return 0, err
				}
				lin = lin*def.Lengths[i-1] + v
			}
			off += lin * def.Size
		case ir.AccessQualified:
			if bus < 0 || bus >= len(e.BusTables) {
				return 0, ir.Violationf("qualified access through bus %d", bus)
			}
			fields := e.BusTables[bus]
			if acc.Field >= len(fields) {
				return 0, ir.Violationf("field %d outside bus %d of %d fields", acc.Field, bus, len(fields))
			}
			def = fields[acc.Field]
			off += def.Offset
		default:
			panic(fmt.Sprintf("unknown access kind %d", int(acc.Kind)))
		}
		bus = def.BusID
	}
	return off, nil
}

// trigger decrements the pending-input counter and, depending on the
// pending-input status, dispatches the sub-component's run routine.
func (e *Engine) trigger(insn *ir.Instruction, subIdx int) error {
	s := insn.Store
	sub := e.Components[subIdx]
	sub.InputCounter -= s.Size
	switch s.DestAddress.Input {
	case ir.InputNoLast:
		if sub.InputCounter <= 0 {
			return ir.Violationf("pending-input counter %d after a non-last write", sub.InputCounter)
		}
		return nil
	case ir.InputLast:
		if sub.InputCounter != 0 {
			return ir.Violationf("pending-input counter %d after the last write", sub.InputCounter)
		}
	case ir.InputUnknown:
		if sub.InputCounter != 0 {
			return nil
		}
	default:
		return ir.Violationf("unknown input status %d", int(s.DestAddress.Input))
	}
	return e.runSubCmp(insn, subIdx)
}

func (e *Engine) runSubCmp(insn *ir.Instruction, subIdx int) error {
	s := insn.Store
	sub := e.Components[subIdx]
	parallel := sub.Parallel
	if s.DestAddress.Parallel != nil {
		parallel = *s.DestAddress.Parallel
	}

	var fn RunFn
	var ok bool
	if s.Dest.Kind == ir.LocationIndexed {
		name := s.Dest.TemplateHeader
		if parallel {
			fn, ok = e.RunNamePar[name]
		} else {
			fn, ok = e.RunName[name]
		}
		if !ok {
			return ir.Violationf("no run routine for template %q", name)
		}
	} else {
		if parallel {
			fn, ok = e.RunPar[sub.TemplateID]
		} else {
			fn, ok = e.RunSeq[sub.TemplateID]
		}
		if !ok {
			return ir.Violationf("no dispatch entry for template id %d", sub.TemplateID)
		}
	}

	if parallel {
		e.Spawn(fn, subIdx)
		return nil
	}
	if err := fn(e, subIdx); err != nil {
		e.log.Error().
			Int("line", insn.Line).
			Int("template", insn.Message).
			Err(err).
			Msg("component run failed")
		return fmt.Errorf("line %d, template %d: %w", insn.Line, insn.Message, err)
	}
	return nil
}
