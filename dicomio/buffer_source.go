package dicomio

import (
	"errors"
	"sync"
)

// compactThreshold is how many consumed bytes a BufferSource keeps before
// dropping them on the next Mark.
const compactThreshold = 64 << 10

// BufferSource is an in-memory source that can be appended to after
// construction. It is the only source whose Require can suspend: a consumer
// that asks for bytes not yet added registers a continuation, and the
// goroutine calling Add or Finish runs it once the bytes exist.
//
// One goroutine consumes, any number may Add; Add and Finish are serialized
// internally.
type BufferSource struct {
	cursor

	mu   sync.Mutex
	data []byte
	// absolute offset of data[0]
	base  int64
	final bool

	pending Continuation
	// absolute offset pending is waiting for
	need int64
}

// NewBufferSource returns an empty source that waits for Add.
func NewBufferSource(opts ...SourceOption) *BufferSource {
	return &BufferSource{cursor: newCursor(opts)}
}

// NewBytesSource returns a source over data that will not grow.
func NewBytesSource(data []byte, opts ...SourceOption) *BufferSource {
	s := NewBufferSource(opts...)
	s.data = append([]byte(nil), data...)
	s.final = true
	return s
}

// ErrSourceFinished is returned by Add after Finish.
var ErrSourceFinished = errors.New("byte source already finished")

// Add appends data. If a consumer is suspended and the bytes it asked for are
// now available, its continuation runs before Add returns.
func (s *BufferSource) Add(data []byte) error {
	s.mu.Lock()
	if s.final {
		s.mu.Unlock()
		return ErrSourceFinished
	}
	s.data = append(s.data, data...)
	var cont Continuation
	if s.pending != nil && s.base+int64(len(s.data)) >= s.need {
		cont = s.pending
		s.pending = nil
	}
	s.mu.Unlock()

	if cont != nil {
		cont(s)
	}
	return nil
}

// Finish marks the end of the data. A suspended consumer is resumed so that
// it can observe the end of stream (or fail on its pending request).
func (s *BufferSource) Finish() {
	s.mu.Lock()
	s.final = true
	cont := s.pending
	s.pending = nil
	s.mu.Unlock()

	if cont != nil {
		cont(s)
	}
}

// Len returns the number of bytes added so far.
func (s *BufferSource) Len() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base + int64(len(s.data))
}

func (s *BufferSource) IsEOF() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.final && s.pos >= s.base+int64(len(s.data))
}

func (s *BufferSource) CanGrow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.final
}

func (s *BufferSource) Mark() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setMark()
	if drop := s.pos - s.base; drop > compactThreshold {
		s.data = append([]byte(nil), s.data[drop:]...)
		s.base = s.pos
	}
}

func (s *BufferSource) Rewind() error {
	return s.rewind()
}

func (s *BufferSource) Require(count uint32, cont Continuation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	need := s.pos + int64(count)
	if need <= s.base+int64(len(s.data)) {
		return true, nil
	}
	if s.final {
		return false, &IOError{Requested: count, Source: "byte source"}
	}
	if cont == nil {
		return false, &IOError{Requested: count, Source: "byte source", NoCallback: true}
	}
	s.pending = cont
	s.need = need
	return false, nil
}

// take returns the next n bytes without copying and advances.
func (s *BufferSource) take(n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	off := s.pos - s.base
	b := s.data[off : off+int64(n)]
	s.pos += int64(n)
	return b
}

func (s *BufferSource) GetUInt16() uint16 {
	return s.order.Uint16(s.take(2))
}

func (s *BufferSource) GetUInt32() uint32 {
	return s.order.Uint32(s.take(4))
}

func (s *BufferSource) GetBytes(n int) []byte {
	return append([]byte(nil), s.take(n)...)
}

func (s *BufferSource) GetBuffer(n uint32) []byte {
	return s.GetBytes(int(n))
}

func (s *BufferSource) Skip(n int) {
	s.take(n)
}
