package dicomio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"
)

type syntaxState struct {
	order    binary.ByteOrder
	implicit IsImplicitVR
}

// Encoder 把element header和value按当前transfer syntax写出, 是reader的逆过程.
// 第一个写错误之后的写入全部忽略, 由Error()返回.
type Encoder struct {
	out     io.Writer
	err     error
	written int64

	cur   syntaxState
	saved []syntaxState

	scratch [8]byte
}

// NewBytesEncoder 写入内存, 结果由Bytes()取出
func NewBytesEncoder(order binary.ByteOrder, implicit IsImplicitVR) *Encoder {
	return NewEncoder(&bytes.Buffer{}, order, implicit)
}

// NewBytesEncoderWithTransferSyntax 同NewBytesEncoder, 编码由transfer syntax UID决定.
// UID无法识别时返回一个带error的explicit little endian encoder.
func NewBytesEncoderWithTransferSyntax(transferSyntaxUID string) *Encoder {
	order, implicit, err := ParseTransferSyntaxUID(transferSyntaxUID)
	if err != nil {
		e := NewBytesEncoder(binary.LittleEndian, ExplicitVR)
		e.SetErrorf("%v: Unknown transfer syntax uid", transferSyntaxUID)
		return e
	}
	return NewBytesEncoder(order, implicit)
}

// NewEncoder creates an encoder writing to out.
func NewEncoder(out io.Writer, order binary.ByteOrder, implicit IsImplicitVR) *Encoder {
	return &Encoder{out: out, cur: syntaxState{order: order, implicit: implicit}}
}

func (e *Encoder) TransferSyntax() (binary.ByteOrder, IsImplicitVR) {
	return e.cur.order, e.cur.implicit
}

// PushTransferSyntax 临时切换编码, 例如file meta group总是explicit little endian.
// 用PopTransferSyntax恢复.
func (e *Encoder) PushTransferSyntax(order binary.ByteOrder, implicit IsImplicitVR) {
	e.saved = append(e.saved, e.cur)
	e.cur = syntaxState{order: order, implicit: implicit}
}

func (e *Encoder) PopTransferSyntax() {
	DoAssert(len(e.saved) > 0, "PopTransferSyntax without push")
	e.cur = e.saved[len(e.saved)-1]
	e.saved = e.saved[:len(e.saved)-1]
}

// SetError 只保留第一个error
func (e *Encoder) SetError(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *Encoder) SetErrorf(format string, args ...interface{}) {
	e.SetError(fmt.Errorf(format, args...))
}

func (e *Encoder) Error() error {
	return e.err
}

// Len 是已经写出的字节数
func (e *Encoder) Len() int64 {
	return e.written
}

// Bytes returns the encoded data. Only valid for encoders made by
// NewBytesEncoder, with no pending PushTransferSyntax and no error.
func (e *Encoder) Bytes() []byte {
	DoAssert(len(e.saved) == 0, "unbalanced PushTransferSyntax")
	if e.err != nil {
		logrus.Panic(e.err)
	}
	return e.out.(*bytes.Buffer).Bytes()
}

func (e *Encoder) WriteUInt8(v uint8) {
	e.scratch[0] = v
	e.WriteBytes(e.scratch[:1])
}

func (e *Encoder) WriteUInt16(v uint16) {
	e.cur.order.PutUint16(e.scratch[:2], v)
	e.WriteBytes(e.scratch[:2])
}

func (e *Encoder) WriteUInt32(v uint32) {
	e.cur.order.PutUint32(e.scratch[:4], v)
	e.WriteBytes(e.scratch[:4])
}

func (e *Encoder) WriteInt16(v int16) {
	e.WriteUInt16(uint16(v))
}

func (e *Encoder) WriteInt32(v int32) {
	e.WriteUInt32(uint32(v))
}

func (e *Encoder) WriteFloat32(v float32) {
	e.WriteUInt32(math.Float32bits(v))
}

func (e *Encoder) WriteFloat64(v float64) {
	e.cur.order.PutUint64(e.scratch[:8], math.Float64bits(v))
	e.WriteBytes(e.scratch[:8])
}

// WriteString 不加长度前缀也不补齐
func (e *Encoder) WriteString(v string) {
	e.WriteBytes([]byte(v))
}

func (e *Encoder) WriteZeros(n int) {
	e.WriteBytes(make([]byte, n))
}

func (e *Encoder) WriteBytes(v []byte) {
	if e.err != nil {
		return
	}
	n, err := e.out.Write(v)
	e.written += int64(n)
	if err != nil {
		e.SetError(err)
	}
}

// DoAssert panics through logrus when condition is false.
func DoAssert(condition bool, values ...interface{}) {
	if !condition {
		logrus.Panic(fmt.Sprint(values...))
	}
}
