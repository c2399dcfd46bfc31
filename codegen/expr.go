package codegen

import (
	"fmt"

	"github.com/zkcircuit/witnessc/ir"
)

// locRegs picks the store-side or load-side scratch slots for one location
// resolution, so a load feeding a store cannot clobber the store's state.
type locRegs struct {
	sub Reg
	io  Reg
}

var storeRegs = locRegs{sub: RegSubCmp, io: RegIOInfo}
var loadRegs = locRegs{sub: RegSubCmpLoad, io: RegIOInfoLoad}

// EmitExpr lowers a value-producing instruction, leaving its result on the
// implicit stack: a u32 for Value(U32)/Compute, a field-element address for
// Value(Field)/Load.
func EmitExpr(b Backend, insn *ir.Instruction) error {
	switch insn.Type {
	case ir.IValue:
		switch insn.Value.Parse {
		case ir.ValueU32:
			b.Const(insn.Value.Value)
		case ir.ValueField:
			b.FieldConstant(insn.Value.Value)
		default:
			return ir.Violationf("unknown value parse %d", int(insn.Value.Parse))
		}
	case ir.ICompute:
		c := insn.Compute
		if len(c.Stack) < 2 {
			return ir.Violationf("compute with %d operands", len(c.Stack))
		}
		if err := EmitExpr(b, c.Stack[0]); err != nil {
			return err
		}
		for _, operand := range c.Stack[1:] {
			if err := EmitExpr(b, operand); err != nil {
				return err
			}
			switch c.Op {
			case ir.OpAdd:
				b.Add()
			case ir.OpSub:
				b.Sub()
			case ir.OpMul:
				b.Mul()
			default:
				panic(fmt.Sprintf("unknown compute op %d", int(c.Op)))
			}
		}
	case ir.ILoad:
		l := insn.Load
		if err := l.Validate(); err != nil {
			return err
		}
		return emitLocation(b, l.Address, l.Src, loadRegs, false)
	case ir.IStore:
		return ir.Violationf("store used as an expression")
	default:
		panic(fmt.Sprintf("unknown instruction type %d", int(insn.Type)))
	}
	return nil
}

// emitLocation resolves an address/location pair, leaving the absolute
// address of the first field element on the stack. With teeDest set, the
// unscaled signal index is additionally kept in RegDestIndex for the
// output-ready bookkeeping.
func emitLocation(b Backend, addr ir.AddressType, loc ir.LocationRule, lr locRegs, teeDest bool) error {
	switch loc.Kind {
	case ir.LocationIndexed:
		switch addr.Kind {
		case ir.AddrVariable:
			if err := EmitExpr(b, loc.Index); err != nil {
				return err
			}
			b.VarAddr()
		case ir.AddrSignal:
			if err := EmitExpr(b, loc.Index); err != nil {
				return err
			}
			if teeDest {
				b.TeeTemp(RegDestIndex)
			}
			b.SignalAddr()
		case ir.AddrSubCmpSignal:
			var err error
			b.SubCmpResolve(lr.sub, func() {
				err = EmitExpr(b, addr.CmpIndex)
			})
			if err != nil {
				return err
			}
			if err := EmitExpr(b, loc.Index); err != nil {
				return err
			}
			b.SubCmpSignalAddr(lr.sub)
		default:
			panic(fmt.Sprintf("unknown address kind %d", int(addr.Kind)))
		}
	case ir.LocationMapped:
		if addr.Kind != ir.AddrSubCmpSignal {
			return ir.Violationf("mapped location with address kind %s", addr.String())
		}
		var err error
		b.SubCmpResolve(lr.sub, func() {
			err = EmitExpr(b, addr.CmpIndex)
		})
		if err != nil {
			return err
		}
		b.IODescriptor(lr.sub, lr.io, loc.SignalCode)
		b.DescOffset(lr.io)
		if len(loc.Accesses) > 0 {
			if err := emitAccessChain(b, loc.Accesses, lr); err != nil {
				return err
			}
		}
		b.AddSubCmpFrameBase(lr.sub)
	default:
		panic(fmt.Sprintf("unknown location kind %d", int(loc.Kind)))
	}
	return nil
}

// emitAccessChain walks a mapped access chain left to right, accumulating
// the offset on the stack. The bus id feeding a qualified step is always
// pushed at the end of the preceding step, before the current descriptor is
// replaced; this interleaving is load-bearing and must not be reordered.
func emitAccessChain(b Backend, accesses []ir.Access, lr locRegs) error {
	if accesses[0].Kind == ir.AccessQualified {
		b.DescBusID(lr.io)
	}
	for pos, acc := range accesses {
		switch acc.Kind {
		case ir.AccessIndexed:
			// row-major fold: (((i0*d1)+i1)*d2+i2)...*d(n-1)+i(n-1);
			// dimension 0 is outermost and never multiplied
			if err := EmitExpr(b, acc.Indices[0]); err != nil {
				return err
			}
			for i := 1; i < len(acc.Indices); i++ {
				b.DescLength(lr.io, i)
				b.Mul()
				if err := EmitExpr(b, acc.Indices[i]); err != nil {
					return err
				}
				b.Add()
			}
			b.AddScaledIndex(lr.io)
			if pos+1 < len(accesses) {
				// validated: the next step is qualified
				b.DescBusID(lr.io)
			}
		case ir.AccessQualified:
			// the bus id is on the stack; fetching the field descriptor
			// replaces the current one and pushes the field's offset
			b.BusField(lr.io, acc.Field)
			b.Add()
			if pos+1 < len(accesses) && accesses[pos+1].Kind == ir.AccessQualified {
				b.DescBusID(lr.io)
			}
		default:
			panic(fmt.Sprintf("unknown access kind %d", int(acc.Kind)))
		}
	}
	return nil
}
