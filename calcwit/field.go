// Package calcwit implements the witness-calculator runtime the generated
// code runs against: signal memory, component instance records, the
// dependency-counting trigger state, parallel dispatch, and the field
// element primitives.
package calcwit

import (
	"encoding/binary"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/constraint"
)

var ScalarField = fr.Modulus()

// FieldBytes is the in-memory size of one field element.
const FieldBytes = 32

// Field adapts bn254 scalar arithmetic to the engine's element type.
type Field struct{}

func (Field) FromInterface(i interface{}) constraint.Element {
	var e fr.Element
	if _, err := e.SetInterface(i); err != nil {
		panic(err)
	}
	var r constraint.Element
	copy(r[:], e[:])
	return r
}

func (Field) ToBigInt(c constraint.Element) *big.Int {
	e := (*fr.Element)(c[:fr.Limbs])
	r := new(big.Int)
	e.BigInt(r)
	return r
}

// EncodeElement serializes an element into the FieldBytes image the linear
// memory of the stack-machine target uses.
func EncodeElement(c constraint.Element) []byte {
	buf := make([]byte, FieldBytes)
	for i := 0; i < fr.Limbs; i++ {
		binary.LittleEndian.PutUint64(buf[8*i:], c[i])
	}
	return buf
}

func DecodeElement(buf []byte) constraint.Element {
	var c constraint.Element
	for i := 0; i < fr.Limbs; i++ {
		c[i] = binary.LittleEndian.Uint64(buf[8*i:])
	}
	return c
}

// FrCopy copies one field element; FrCopyN copies n consecutive elements.
// Both are total: they either copy everything or panic on a short slice.
func FrCopy(dst, src []constraint.Element) {
	dst[0] = src[0]
}

func FrCopyN(dst, src []constraint.Element, n int) {
	if len(dst) < n || len(src) < n {
		panic("short copy")
	}
	copy(dst[:n], src[:n])
}
