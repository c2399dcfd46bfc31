package wasmgen

// Layout fixes where the witness-calculator image keeps its runtime records
// in linear memory. The backend and the memory-image builder must agree on
// one Layout; everything is byte addressed.
//
// A component record starts with three u32 header slots (template id,
// signal-frame base, pending-input counter) followed by the sub-component
// table, a u32 record address per nested instance.
//
// An I/O descriptor is: offset (bytes, slot 0), element size in field
// elements (slot 1), bus id (slot 2), then the declared lengths of all
// dimensions but the outermost. Descriptor addresses are listed per signal
// code in the template's I/O table and per field number in a bus's table.
type Layout struct {
	// FieldBytes is the in-memory size of one field element.
	FieldBytes int

	// component record header
	TemplateIDOff   int
	SignalStartOff  int
	InputCounterOff int
	SubCmpTableOff  int

	// ConstantsBase is the address of the field constant pool.
	ConstantsBase int
	// IOTableBase maps template id (scaled by 4) to its I/O table address.
	IOTableBase int
	// BusTableBase maps bus id (scaled by 4) to its field table address.
	BusTableBase int
}

const (
	descOffsetSlot = 0
	descSizeSlot   = 4
	descBusIDSlot  = 8
	descLengthBase = 12
)

// NewLayout returns the header layout with the table addresses left at zero
// for the image builder to fill in.
func NewLayout(fieldBytes int) Layout {
	return Layout{
		FieldBytes:      fieldBytes,
		TemplateIDOff:   0,
		SignalStartOff:  4,
		InputCounterOff: 8,
		SubCmpTableOff:  12,
	}
}

// DescLengthOff is the descriptor slot of dimension i's declared length;
// dimension 0 is outermost and has no stored length.
func DescLengthOff(i int) int {
	if i < 1 {
		panic("dimension 0 has no stored length")
	}
	return descLengthBase + 4*(i-1)
}
