package dicom

import "fmt"

// Status is the outcome of a read, or of one parse step.
type Status int

const (
	// StatusProcessing means a parse is in flight.
	StatusProcessing Status = iota
	// StatusSuccess means the scope, or the whole read, completed.
	StatusSuccess
	// StatusError means the read failed; see Result.Err.
	StatusError
	// StatusStopped means the read reached the stop tag and halted before
	// consuming it.
	StatusStopped
	// StatusSuspended means the read waits for bytes the source does not
	// have yet, and will resume from the source's continuation.
	StatusSuspended
)

func (s Status) String() string {
	switch s {
	case StatusProcessing:
		return "Processing"
	case StatusSuccess:
		return "Success"
	case StatusError:
		return "Error"
	case StatusStopped:
		return "Stopped"
	case StatusSuspended:
		return "Suspended"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is a Status plus, for StatusError, the failure. The zero value is
// a Processing result.
type Result struct {
	status  Status
	err     error
	message string
}

func Processing() Result { return Result{status: StatusProcessing} }

func Success() Result { return Result{status: StatusSuccess} }

func Stopped() Result { return Result{status: StatusStopped} }

func Suspended() Result { return Result{status: StatusSuspended} }

// Failure wraps err in an Error result. The message is err's text.
func Failure(err error) Result {
	return Result{status: StatusError, err: err, message: err.Error()}
}

// Failuref builds an Error result from a format string.
func Failuref(format string, args ...interface{}) Result {
	return Failure(fmt.Errorf(format, args...))
}

func (r Result) Status() Status { return r.status }

// IsBusy is true while the read is Processing or Suspended.
func (r Result) IsBusy() bool {
	return r.status == StatusProcessing || r.status == StatusSuspended
}

func (r Result) IsSuccess() bool { return r.status == StatusSuccess }

// Err is the failure of an Error result, nil otherwise.
func (r Result) Err() error { return r.err }

// Message is the failure text for errors and the status name otherwise.
func (r Result) Message() string {
	if r.message != "" {
		return r.message
	}
	return r.status.String()
}

func (r Result) String() string {
	if r.status == StatusError {
		return fmt.Sprintf("Error: %s", r.message)
	}
	return r.status.String()
}
