package calcwit

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark/constraint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldRoundTrip(t *testing.T) {
	f := Field{}
	for _, v := range []int64{0, 1, 42, 1 << 40} {
		e := f.FromInterface(v)
		// Compare numerically: DeepEqual distinguishes big.NewInt(0)'s nil
		// abs slice from the empty one fr.Element.BigInt produces.
		assert.Equal(t, big.NewInt(v).String(), f.ToBigInt(e).String())
	}
}

func TestFieldReduction(t *testing.T) {
	f := Field{}
	over := new(big.Int).Add(ScalarField, big.NewInt(5))
	assert.Equal(t, big.NewInt(5), f.ToBigInt(f.FromInterface(over)))
}

func TestEncodeDecodeElement(t *testing.T) {
	e := Field{}.FromInterface(123456789)
	buf := EncodeElement(e)
	require.Len(t, buf, FieldBytes)
	assert.Equal(t, e, DecodeElement(buf))
}

func TestFrCopyN(t *testing.T) {
	src := []constraint.Element{elt(1), elt(2), elt(3)}
	dst := make([]constraint.Element, 3)
	FrCopyN(dst, src, 3)
	assert.Equal(t, src, dst)

	scalar := make([]constraint.Element, 1)
	FrCopy(scalar, src[2:])
	assert.Equal(t, elt(3), scalar[0])

	assert.Panics(t, func() { FrCopyN(dst[:1], src, 3) })
}
