package dicomio

import (
	"io"
)

const streamChunk = 32 << 10

// StreamSource reads forward from an io.Reader until it returns io.EOF. The
// bytes between the last Mark and the read position are kept so Rewind
// works; bytes before the mark are eventually dropped. Require blocks on the reader
// and never suspends.
type StreamSource struct {
	cursor

	r io.Reader

	buf []byte
	// absolute offset of buf[0]
	base int64
	eof  bool
	err  error
}

// NewStreamSource wraps r.
func NewStreamSource(r io.Reader, opts ...SourceOption) *StreamSource {
	return &StreamSource{cursor: newCursor(opts), r: r}
}

// fill reads until n bytes past the position are buffered, the reader is
// exhausted, or it fails. Reports whether the n bytes are there.
func (s *StreamSource) fill(n int64) bool {
	for s.base+int64(len(s.buf)) < s.pos+n {
		if s.eof || s.err != nil {
			return false
		}
		want := s.pos + n - (s.base + int64(len(s.buf)))
		// 每次最多翻倍, 声明的长度大于实际数据时先遇到EOF
		limit := int64(len(s.buf))
		if limit < streamChunk {
			limit = streamChunk
		}
		if want > limit {
			want = limit
		}
		if want < streamChunk {
			want = streamChunk
		}
		start := len(s.buf)
		if int64(cap(s.buf)-start) < want {
			grown := make([]byte, start, int64(start)+want)
			copy(grown, s.buf)
			s.buf = grown
		}
		read, err := io.ReadAtLeast(s.r, s.buf[start:int64(start)+want], 1)
		s.buf = s.buf[:start+read]
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			s.eof = true
		} else if err != nil {
			s.err = err
		}
	}
	return true
}

func (s *StreamSource) IsEOF() bool {
	if s.fill(1) {
		return false
	}
	// a read error is reported by the next Require, not hidden as EOF
	return s.err == nil
}

func (s *StreamSource) CanGrow() bool { return false }

func (s *StreamSource) Mark() {
	s.setMark()
	if drop := s.pos - s.base; drop > streamChunk {
		s.buf = append(s.buf[:0], s.buf[drop:]...)
		s.base = s.pos
	}
}

func (s *StreamSource) Rewind() error {
	return s.rewind()
}

func (s *StreamSource) Require(count uint32, cont Continuation) (bool, error) {
	if s.fill(int64(count)) {
		return true, nil
	}
	if s.err != nil {
		return false, s.err
	}
	return false, &IOError{Requested: count, Source: "fixed length stream"}
}

func (s *StreamSource) take(n int) []byte {
	off := s.pos - s.base
	b := s.buf[off : off+int64(n)]
	s.pos += int64(n)
	return b
}

func (s *StreamSource) GetUInt16() uint16 {
	return s.order.Uint16(s.take(2))
}

func (s *StreamSource) GetUInt32() uint32 {
	return s.order.Uint32(s.take(4))
}

func (s *StreamSource) GetBytes(n int) []byte {
	return append([]byte(nil), s.take(n)...)
}

func (s *StreamSource) GetBuffer(n uint32) []byte {
	return s.GetBytes(int(n))
}

func (s *StreamSource) Skip(n int) {
	s.take(n)
}
