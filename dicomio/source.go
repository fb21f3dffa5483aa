// Package dicomio provides byte sources the DICOM reader pulls from, plus
// utility functions for encoding and decoding low-level DICOM data types.
package dicomio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Continuation resumes a suspended consumer once the source can satisfy the
// request that suspended it. It runs on the goroutine that supplied the
// missing bytes.
type Continuation func(source ByteSource)

// ByteSource is a seekable cursor over a byte stream that may not be fully
// available yet.
//
// Get*/Skip must only be called for bytes that a preceding Require reported
// as available. Violations panic.
type ByteSource interface {
	// Endian is the byte order multi-byte reads are decoded with.
	Endian() binary.ByteOrder
	// SetEndian changes the byte order for subsequent reads, e.g. after
	// the file meta group of a big endian file.
	SetEndian(order binary.ByteOrder)
	Position() int64
	// Marker is the offset recorded by the last Mark.
	Marker() int64
	IsEOF() bool
	CanRewind() bool
	// CanGrow reports whether bytes may still be appended to the source,
	// i.e. whether a Require with a continuation can ever suspend.
	CanGrow() bool

	Mark()
	Rewind() error

	// Require reports whether count bytes are available from the current
	// position. When they are not and the source can grow, a non-nil cont
	// is registered and invoked once they are, and Require returns false.
	// Sources that can never supply the bytes return an *IOError.
	Require(count uint32, cont Continuation) (bool, error)

	GetUInt16() uint16
	GetUInt32() uint32
	GetBytes(n int) []byte
	// GetBuffer returns a copy of the next n bytes, owned by the caller.
	GetBuffer(n uint32) []byte
	Skip(n int)

	// PushMilestone records Position()+length as the end of a nested scope.
	PushMilestone(length uint32)
	HasReachedMilestone() bool
	PopMilestone()
}

// ErrPastEnd matches every *IOError with errors.Is.
var ErrPastEnd = errors.New("requested bytes past end of source")

// ErrNoMark is returned by Rewind when Mark was never called.
var ErrNoMark = errors.New("rewind without mark")

// ErrClosed is returned when a released source is used.
var ErrClosed = errors.New("byte source is closed")

// IOError reports a request a source can not satisfy.
type IOError struct {
	Requested uint32
	// Source names the kind of source, e.g. "file" or "fixed length stream".
	Source string
	// NoCallback is set when a growable source was asked synchronously.
	NoCallback bool
}

func (e *IOError) Error() string {
	if e.NoCallback {
		return fmt.Sprintf("Requested %d bytes past end of %s without providing a callback.", e.Requested, e.Source)
	}
	return fmt.Sprintf("Requested %d bytes past end of %s.", e.Requested, e.Source)
}

// Is makes errors.Is(err, ErrPastEnd) hold.
func (e *IOError) Is(target error) bool {
	return target == ErrPastEnd
}

// NativeByteOrder is the byte order of this machine, auto-detect
var NativeByteOrder = nativeByteOrder()

func nativeByteOrder() binary.ByteOrder {
	if binary.NativeEndian.Uint16([]byte{0x01, 0x00}) == 0x0001 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// IsLittleEndian reports whether order decodes little endian. Works for any
// ByteOrder implementation, including binary.NativeEndian.
func IsLittleEndian(order binary.ByteOrder) bool {
	return order.Uint16([]byte{0x01, 0x00}) == 0x0001
}

// SourceOption configures a byte source.
type SourceOption func(*cursor)

// WithByteOrder sets the byte order of the source. The default is
// NativeByteOrder.
func WithByteOrder(order binary.ByteOrder) SourceOption {
	return func(c *cursor) {
		c.order = order
	}
}

// cursor is the position bookkeeping shared by all sources.
type cursor struct {
	order binary.ByteOrder

	pos    int64
	mark   int64
	marked bool

	// Absolute end offsets of nested scopes, innermost last.
	milestones []int64
}

func newCursor(opts []SourceOption) cursor {
	c := cursor{order: NativeByteOrder}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c *cursor) Endian() binary.ByteOrder { return c.order }

func (c *cursor) SetEndian(order binary.ByteOrder) { c.order = order }

func (c *cursor) Position() int64 { return c.pos }

func (c *cursor) Marker() int64 { return c.mark }

func (c *cursor) CanRewind() bool { return true }

func (c *cursor) setMark() {
	c.mark = c.pos
	c.marked = true
}

func (c *cursor) rewind() error {
	if !c.marked {
		return ErrNoMark
	}
	c.pos = c.mark
	return nil
}

func (c *cursor) PushMilestone(length uint32) {
	c.milestones = append(c.milestones, c.pos+int64(length))
}

func (c *cursor) HasReachedMilestone() bool {
	n := len(c.milestones)
	return n > 0 && c.pos >= c.milestones[n-1]
}

func (c *cursor) PopMilestone() {
	if n := len(c.milestones); n > 0 {
		c.milestones = c.milestones[:n-1]
	}
}

// ToNativeEndian rewrites data, encoded in order as units of unitSize
// bytes, into NativeByteOrder in place and returns it. Trailing bytes that
// do not fill a whole unit are left alone.
func ToNativeEndian(data []byte, order binary.ByteOrder, unitSize int) []byte {
	if unitSize <= 1 || IsLittleEndian(order) == IsLittleEndian(NativeByteOrder) {
		return data
	}
	for i := 0; i+unitSize <= len(data); i += unitSize {
		unit := data[i : i+unitSize]
		for l, r := 0, unitSize-1; l < r; l, r = l+1, r-1 {
			unit[l], unit[r] = unit[r], unit[l]
		}
	}
	return data
}
