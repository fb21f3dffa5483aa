// Package dicom parses DICOM data sets as a stream of events.
//
// A Reader pulls bytes from a dicomio.ByteSource and reports what it finds to
// an Observer. Sources that receive their bytes incrementally (see
// dicomio.BufferSource) may run out mid-element; the Reader then suspends and
// picks up exactly where it stopped when the source has more data, on the
// goroutine that supplied it.
//
// Usage:
//
//	src, err := dicomio.NewFileSource(path, dicomio.WithByteOrder(binary.LittleEndian))
//	if err != nil {
//		panic(err)
//	}
//	defer src.Close()
//	builder := dicom.NewDataSetBuilder()
//	r := dicom.NewReader(dicom.WithExplicitVR(true))
//	if _, err := r.Read(src, builder, nil); err != nil {
//		panic(err)
//	}
//	for _, elem := range builder.DataSet().Elements {
//		fmt.Println(elem)
//	}
package dicom

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/odincare/dcmstream/dicomio"
	"github.com/odincare/dcmstream/dicomlog"
	"github.com/odincare/dcmstream/dicomtag"
)

// Reader is a resumable DICOM data set parser. A Reader runs at most one read
// at a time; it may be reused once that read has finished.
type Reader struct {
	dict     dicomtag.Dictionary
	explicit bool
	metrics  *ReaderMetrics
	logger   *logrus.Entry
	// 配置错误, 每次read都会返回
	optErr error

	// private creator 名称, key = (group<<16)|element, element是creator所在的slot
	// 对reader的所有read有效
	private map[uint32]string

	// 串行化启动goroutine和continuation对session的访问
	driveMu sync.Mutex

	mu      sync.Mutex
	status  Status
	pending *AsyncResult
	// 上一次read在嵌套scope里stop时留下的frame, 下一次读同一个source时继续
	resume *resumePoint
}

// resumePoint is the open scopes of a stopped read.
type resumePoint struct {
	source   dicomio.ByteSource
	frames   []frame
	explicit bool
}

// abandon pops the milestones the open scopes pushed on their source.
func (p *resumePoint) abandon() {
	for i := len(p.frames) - 1; i >= 0; i-- {
		if p.frames[i].milestone {
			p.source.PopMilestone()
		}
	}
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithDictionary sets the dictionary used to resolve implicit VRs and private
// tags. The default is dicomtag.DefaultDictionary().
func WithDictionary(dict dicomtag.Dictionary) ReaderOption {
	return func(r *Reader) {
		r.dict = dict
	}
}

// WithExplicitVR selects explicit (true) or implicit (false) VR decoding.
func WithExplicitVR(explicit bool) ReaderOption {
	return func(r *Reader) {
		r.explicit = explicit
	}
}

// WithTransferSyntax selects the VR mode of the given transfer syntax UID.
// An unknown UID makes every read fail with the lookup error. The byte order
// of the syntax belongs to the source; see NewReaderForTransferSyntax.
func WithTransferSyntax(uid string) ReaderOption {
	return func(r *Reader) {
		_, implicit, err := dicomio.ParseTransferSyntaxUID(uid)
		if err != nil {
			r.optErr = err
			return
		}
		r.explicit = implicit != dicomio.ImplicitVR
	}
}

// WithMetrics makes the Reader record into m.
func WithMetrics(m *ReaderMetrics) ReaderOption {
	return func(r *Reader) {
		r.metrics = m
	}
}

// WithLogger sets the logrus entry session loggers derive from.
func WithLogger(entry *logrus.Entry) ReaderOption {
	return func(r *Reader) {
		r.logger = entry
	}
}

// NewReader creates a Reader. Without options it decodes explicit VR using
// the standard dictionary.
func NewReader(opts ...ReaderOption) *Reader {
	r := &Reader{
		explicit: true,
		private:  make(map[uint32]string),
		status:   StatusSuccess,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.dict == nil {
		r.dict = dicomtag.DefaultDictionary()
	}
	return r
}

// NewReaderForTransferSyntax creates a Reader whose VR mode follows the given
// transfer syntax UID. The returned byte order is the one to open the source
// with. opts are applied after the transfer syntax.
func NewReaderForTransferSyntax(uid string, opts ...ReaderOption) (*Reader, binary.ByteOrder, error) {
	order, _, err := dicomio.ParseTransferSyntaxUID(uid)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]ReaderOption{WithTransferSyntax(uid)}, opts...)
	return NewReader(opts...), order, nil
}

func (r *Reader) Dictionary() dicomtag.Dictionary {
	return r.dict
}

func (r *Reader) IsExplicitVR() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.explicit
}

// SetExplicitVR changes the VR mode for reads started afterwards.
func (r *Reader) SetExplicitVR(explicit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.explicit = explicit
}

// Status is the state of the current, or last, read.
func (r *Reader) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Reader) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// AsyncResult tracks a read started with BeginRead.
type AsyncResult struct {
	done     chan struct{}
	once     sync.Once
	callback func(*AsyncResult)
	result   Result
}

func newAsyncResult(callback func(*AsyncResult)) *AsyncResult {
	return &AsyncResult{done: make(chan struct{}), callback: callback}
}

// Done is closed when the read has finished.
func (a *AsyncResult) Done() <-chan struct{} {
	return a.done
}

// IsCompleted reports whether the read has finished, without blocking.
func (a *AsyncResult) IsCompleted() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// Result blocks until the read finishes and returns its outcome.
func (a *AsyncResult) Result() Result {
	<-a.done
	return a.result
}

// Wait is Result with a deadline. The read itself is not cancelled when ctx
// is done.
func (a *AsyncResult) Wait(ctx context.Context) (Result, error) {
	select {
	case <-a.done:
		return a.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (a *AsyncResult) complete(res Result) {
	a.once.Do(func() {
		a.result = res
		close(a.done)
		if a.callback != nil {
			a.callback(a)
		}
	})
}

// BeginRead starts parsing source on a new goroutine and returns at once.
// Events go to observer; a non-nil stop halts the read, with StatusStopped,
// at the first tag >= *stop, leaving that tag unconsumed. callback, if not
// nil, runs once the read has finished.
//
// When the source suspends the read, the rest of the parse runs on the
// goroutine that resumes it, e.g. the one calling BufferSource.Add.
func (r *Reader) BeginRead(source dicomio.ByteSource, observer Observer, stop *dicomtag.Tag, callback func(*AsyncResult)) *AsyncResult {
	ar := newAsyncResult(callback)

	if r.optErr != nil {
		ar.complete(Failure(r.optErr))
		return ar
	}

	r.mu.Lock()
	if r.pending != nil {
		r.mu.Unlock()
		ar.complete(Failure(ErrReaderBusy))
		return ar
	}
	r.pending = ar
	r.status = StatusProcessing
	explicit := r.explicit
	resume := r.resume
	r.resume = nil
	r.mu.Unlock()

	if observer == nil {
		observer = NopObserver{}
	}
	sess := r.newSession(source, observer, stop, explicit)
	if resume != nil {
		if resume.source == source {
			sess.frames = resume.frames
			sess.explicit = resume.explicit
		} else {
			sess.log.Warnf("dicom: %d open scopes of a stopped read on another source dropped", len(resume.frames)-1)
			resume.abandon()
		}
	}
	sess.log.Vprintf(1, "dicom: begin read at offset %d, explicit VR %v, depth %d",
		sess.startPos, sess.explicit, len(sess.frames)-1)

	go r.drive(sess, source)
	return ar
}

// EndRead waits for a read started by BeginRead. It returns the final status,
// and the failure when that status is StatusError.
func (r *Reader) EndRead(ar *AsyncResult) (Status, error) {
	res := ar.Result()
	return res.Status(), res.Err()
}

// Read parses source until it ends, the stop tag is reached or an error
// occurs. Bytes that a growable source does not have yet are waited for.
//
// After StatusStopped the next read of the same source on this Reader
// continues inside the sequences and items that were open at the stop, so
// their end events are still reported.
func (r *Reader) Read(source dicomio.ByteSource, observer Observer, stop *dicomtag.Tag) (Status, error) {
	return r.EndRead(r.BeginRead(source, observer, stop, nil))
}

func (r *Reader) newSession(source dicomio.ByteSource, observer Observer, stop *dicomtag.Tag, explicit bool) *session {
	id := uuid.NewString()
	var log *dicomlog.Logger
	if r.logger != nil {
		log = dicomlog.WithEntry(r.logger.WithField("session", id))
	} else {
		log = dicomlog.WithSession(id)
	}
	s := &session{
		dict:     r.dict,
		private:  r.private,
		metrics:  r.metrics,
		observer: observer,
		stop:     stop,
		explicit: explicit,
		log:      log,
		started:  time.Now(),
		startPos: source.Position(),
		frames:   []frame{{proc: procDataset}},
	}
	s.cont = func(src dicomio.ByteSource) {
		r.drive(s, src)
	}
	return s
}

// drive runs the session until it finishes or suspends. It is the entry point
// both for the initial goroutine and for continuations.
func (r *Reader) drive(sess *session, source dicomio.ByteSource) {
	r.driveMu.Lock()
	defer r.driveMu.Unlock()

	r.setStatus(StatusProcessing)
	if sess.suspended {
		sess.suspended = false
		sess.log.Vprintf(2, "dicom: resume at offset %d", source.Position())
	}

	res := sess.run(source)
	if res.Status() == StatusSuspended {
		sess.suspended = true
		r.metrics.suspended()
		sess.log.Vprintf(2, "dicom: suspended at offset %d, waiting for data", source.Position())
		r.setStatus(StatusSuspended)
		return
	}

	if res.Status() == StatusError {
		sess.log.Entry().WithField("offset", source.Position()).Errorf("dicom: read failed: %v", res.Err())
	} else {
		sess.log.Vprintf(1, "dicom: end read with %s at offset %d", res, source.Position())
	}
	r.metrics.finished(res.Status(), sess.started, source.Position()-sess.startPos)

	r.mu.Lock()
	ar := r.pending
	r.pending = nil
	r.status = res.Status()
	if res.Status() == StatusStopped && len(sess.frames) > 1 {
		r.resume = &resumePoint{
			source:   source,
			frames:   append([]frame(nil), sess.frames...),
			explicit: sess.explicit,
		}
	}
	r.mu.Unlock()

	if ar != nil {
		ar.complete(res)
	}
}
