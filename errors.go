package dicom

import (
	"errors"
	"fmt"

	"github.com/odincare/dcmstream/dicomtag"
)

var (
	// ErrUnexpectedTag matches structural errors raised for a tag that is
	// not legal where it was found.
	ErrUnexpectedTag = errors.New("unexpected tag")

	// ErrReaderBusy is returned when a read is started on a Reader that
	// already has one in flight.
	ErrReaderBusy = errors.New("dicom: reader already has a read in progress")
)

// ParseError is a structural error in the encoded data set. It is fatal to
// the read.
type ParseError struct {
	Tag    dicomtag.Tag
	Offset int64
	msg    string
}

func (e *ParseError) Error() string {
	return e.msg
}

// Is makes errors.Is(err, ErrUnexpectedTag) hold.
func (e *ParseError) Is(target error) bool {
	return target == ErrUnexpectedTag
}

func unexpectedFragmentTag(tag dicomtag.Tag, offset int64) *ParseError {
	return &ParseError{
		Tag:    tag,
		Offset: offset,
		msg:    fmt.Sprintf("Unexpected tag in DICOM fragment sequence: %s", tag),
	}
}

// panicError converts a value recovered from a panicking parse step.
func panicError(v interface{}, offset int64) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("dicom: parse aborted at offset %d: %w", offset, err)
	}
	return fmt.Errorf("dicom: parse aborted at offset %d: %v", offset, v)
}
