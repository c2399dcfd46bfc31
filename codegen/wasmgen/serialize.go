package wasmgen

import (
	"encoding/binary"
	"fmt"
)

// OutputBuf accumulates the little-endian serialized form of an opcode
// stream, the shape the downstream assembler consumes.
type OutputBuf struct {
	buf []byte
}

func (o *OutputBuf) AppendUint32(x uint32) {
	o.buf = binary.LittleEndian.AppendUint32(o.buf, x)
}

func (o *OutputBuf) AppendUint8(x uint8) {
	o.buf = append(o.buf, x)
}

func (o *OutputBuf) AppendString(s string) {
	o.AppendUint32(uint32(len(s)))
	o.buf = append(o.buf, s...)
}

func (o *OutputBuf) Bytes() []byte {
	return o.buf
}

type InputBuf struct {
	buf []byte
}

func (i *InputBuf) ReadUint32() uint32 {
	x := binary.LittleEndian.Uint32(i.buf[:4])
	i.buf = i.buf[4:]
	return x
}

func (i *InputBuf) ReadUint8() uint8 {
	x := i.buf[0]
	i.buf = i.buf[1:]
	return x
}

func (i *InputBuf) ReadString() string {
	n := i.ReadUint32()
	s := string(i.buf[:n])
	i.buf = i.buf[n:]
	return s
}

// Serialize encodes a program as: count, then per op a code byte, the
// immediate as u32, and the name.
func Serialize(ops []Op) []byte {
	o := &OutputBuf{}
	o.AppendUint32(uint32(len(ops)))
	for _, op := range ops {
		o.AppendUint8(uint8(op.Code))
		o.AppendUint32(uint32(int32(op.Imm)))
		o.AppendString(op.Name)
	}
	return o.Bytes()
}

func Deserialize(buf []byte) []Op {
	i := &InputBuf{buf: buf}
	n := i.ReadUint32()
	ops := make([]Op, n)
	for j := range ops {
		code := OpCode(i.ReadUint8())
		if code < OpConst || code > OpComment {
			panic(fmt.Sprintf("bad opcode %d at %d", int(code), j))
		}
		ops[j] = Op{
			Code: code,
			Imm:  int(int32(i.ReadUint32())),
			Name: i.ReadString(),
		}
	}
	return ops
}
