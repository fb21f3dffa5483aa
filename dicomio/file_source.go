package dicomio

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// fileWindow is the size of the read-ahead cache of a FileSource.
const fileWindow = 64 << 10

// FileSource reads a file by offset. Its length is fixed when it is opened,
// so Require never suspends; reads block on I/O.
//
// The file handle is held until Close. Close may be called any number of
// times.
type FileSource struct {
	cursor

	file *os.File
	size int64

	window      []byte
	windowStart int64

	closeOnce sync.Once
	closed    bool
	closeErr  error
}

// NewFileSource opens path for reading.
func NewFileSource(path string, opts ...SourceOption) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close() // nolint: errcheck
		return nil, err
	}
	return &FileSource{
		cursor: newCursor(opts),
		file:   f,
		size:   info.Size(),
	}, nil
}

// Size returns the file length.
func (s *FileSource) Size() int64 { return s.size }

// Close releases the file handle. Calls after the first return the first
// call's result.
func (s *FileSource) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		s.window = nil
		s.closeErr = s.file.Close()
	})
	return s.closeErr
}

func (s *FileSource) IsEOF() bool {
	return s.pos >= s.size
}

func (s *FileSource) CanGrow() bool { return false }

func (s *FileSource) Mark() {
	s.setMark()
}

func (s *FileSource) Rewind() error {
	return s.rewind()
}

func (s *FileSource) Require(count uint32, cont Continuation) (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	if s.pos+int64(count) <= s.size {
		return true, nil
	}
	return false, &IOError{Requested: count, Source: "file"}
}

// take returns n bytes at the current position, refilling the window as
// needed, and advances. The slice is only valid until the next call.
func (s *FileSource) take(n int) []byte {
	if s.closed {
		panic(ErrClosed)
	}
	end := s.pos + int64(n)
	if s.pos < s.windowStart || end > s.windowStart+int64(len(s.window)) {
		size := fileWindow
		if n > size {
			size = n
		}
		if rest := s.size - s.pos; int64(size) > rest {
			size = int(rest)
		}
		buf := make([]byte, size)
		if _, err := s.file.ReadAt(buf, s.pos); err != nil && err != io.EOF {
			panic(fmt.Errorf("read %s at offset %d: %w", s.file.Name(), s.pos, err))
		}
		s.window = buf
		s.windowStart = s.pos
	}
	off := s.pos - s.windowStart
	s.pos = end
	return s.window[off : off+int64(n)]
}

func (s *FileSource) GetUInt16() uint16 {
	return s.order.Uint16(s.take(2))
}

func (s *FileSource) GetUInt32() uint32 {
	return s.order.Uint32(s.take(4))
}

func (s *FileSource) GetBytes(n int) []byte {
	return append([]byte(nil), s.take(n)...)
}

func (s *FileSource) GetBuffer(n uint32) []byte {
	return s.GetBytes(int(n))
}

func (s *FileSource) Skip(n int) {
	s.pos += int64(n)
}
