package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u32(v int) *Instruction {
	return NewValue(0, 0, ValueU32, v)
}

func TestInstructionString(t *testing.T) {
	assert.Equal(t, "VALUE(U32:5)", u32(5).String())
	assert.Equal(t, "VALUE(FIELD:2)", NewValue(0, 0, ValueField, 2).String())

	c := NewCompute(0, 0, OpMul, u32(2), u32(3))
	assert.Equal(t, "COMPUTE(op:MUL,stack:VALUE(U32:2),VALUE(U32:3))", c.String())

	l := NewLoad(0, 0, LoadInst{
		Size:    1,
		Address: AddressType{Kind: AddrSignal},
		Src:     LocationRule{Kind: LocationIndexed, Index: u32(3)},
	})
	assert.Equal(t, "LOAD(address:SIGNAL,src:INDEXED:VALUE(U32:3))", l.String())
}

func TestStoreString(t *testing.T) {
	insn := NewStore(12, 4, StoreInst{
		Size: 1,
		DestAddress: AddressType{
			Kind:     AddrSubCmpSignal,
			CmpIndex: u32(1),
		},
		Dest: LocationRule{
			Kind:       LocationMapped,
			SignalCode: 3,
			Accesses: []Access{
				{Kind: AccessIndexed, Indices: []*Instruction{u32(2), u32(0)}},
				{Kind: AccessQualified, Field: 1},
			},
		},
		Src: NewValue(0, 0, ValueField, 0),
	})
	assert.Equal(t,
		"STORE(line:12,template_id:4,dest_type:SUBCOMPONENT:VALUE(U32:1),"+
			"dest:MAPPED:3:[IDX(VALUE(U32:2),VALUE(U32:0)),FIELD(1)],src:VALUE(FIELD:0))",
		insn.String())
}

func requireViolation(t *testing.T, err error, substr string) {
	t.Helper()
	var viol *InvariantViolation
	require.ErrorAs(t, err, &viol)
	assert.Contains(t, viol.Details, substr)
}

func TestStoreValidate(t *testing.T) {
	valid := StoreInst{
		Size:        1,
		DestAddress: AddressType{Kind: AddrVariable},
		Dest:        LocationRule{Kind: LocationIndexed, Index: u32(0)},
	}
	assert.NoError(t, valid.Validate())

	mappedVar := StoreInst{
		DestAddress: AddressType{Kind: AddrVariable},
		Dest:        LocationRule{Kind: LocationMapped},
	}
	requireViolation(t, mappedVar.Validate(), "mapped location")

	noCmpIndex := StoreInst{
		DestAddress: AddressType{Kind: AddrSubCmpSignal},
		Dest:        LocationRule{Kind: LocationIndexed, Index: u32(0)},
	}
	requireViolation(t, noCmpIndex.Validate(), "without component index")

	noIndex := StoreInst{
		DestAddress: AddressType{Kind: AddrVariable},
		Dest:        LocationRule{Kind: LocationIndexed},
	}
	requireViolation(t, noIndex.Validate(), "without index expression")
}

func TestAccessChainValidate(t *testing.T) {
	mapped := func(accesses ...Access) *StoreInst {
		return &StoreInst{
			DestAddress: AddressType{Kind: AddrSubCmpSignal, CmpIndex: u32(0)},
			Dest:        LocationRule{Kind: LocationMapped, Accesses: accesses},
		}
	}

	assert.NoError(t, mapped().Validate())
	assert.NoError(t, mapped(
		Access{Kind: AccessIndexed, Indices: []*Instruction{u32(0)}},
		Access{Kind: AccessQualified, Field: 1},
		Access{Kind: AccessIndexed, Indices: []*Instruction{u32(2)}},
	).Validate())

	requireViolation(t, mapped(
		Access{Kind: AccessIndexed},
	).Validate(), "no indices")

	requireViolation(t, mapped(
		Access{Kind: AccessIndexed, Indices: []*Instruction{u32(0)}},
		Access{Kind: AccessIndexed, Indices: []*Instruction{u32(1)}},
	).Validate(), "adjacent indexed")
}

func TestLoadValidate(t *testing.T) {
	bad := LoadInst{
		Address: AddressType{Kind: AddrSignal},
		Src:     LocationRule{Kind: LocationMapped},
	}
	requireViolation(t, bad.Validate(), "mapped location")

	ok := LoadInst{
		Address: AddressType{Kind: AddrSignal},
		Src:     LocationRule{Kind: LocationIndexed, Index: u32(1)},
	}
	assert.NoError(t, ok.Validate())
}
