package dicom

import (
	"errors"
	"strings"
	"time"

	"github.com/odincare/dcmstream/dicomio"
	"github.com/odincare/dcmstream/dicomlog"
	"github.com/odincare/dcmstream/dicomtag"
)

// UndefinedLength is the length value of sequences, items and encapsulated
// elements terminated by a delimitation item.
const UndefinedLength uint32 = 0xffffffff

// parseState 是每个element的解码阶段 Tag -> VR -> Length -> Value
type parseState int

const (
	stateTag parseState = iota
	stateVR
	stateLength
	stateValue
)

type procedure int

const (
	procDataset procedure = iota
	procSequence
	procFragments
)

// frame is one open scope: the root data set, a sequence item's data set,
// a sequence, or a fragment sequence. The innermost scope is last in
// session.frames.
type frame struct {
	proc procedure

	// 这个scope push了milestone，结束时负责pop
	milestone bool

	// procSequence: an item data set is open below this frame
	inItem bool
	// procSequence: VR mode was flipped for this (bad private) sequence
	flipped bool

	// procFragments
	vr        dicomtag.VR
	fragments int
}

// session is everything one read needs between suspensions.
type session struct {
	dict     dicomtag.Dictionary
	private  map[uint32]string
	metrics  *ReaderMetrics
	observer Observer
	stop     *dicomtag.Tag
	explicit bool
	log      *dicomlog.Logger
	cont     dicomio.Continuation

	started   time.Time
	startPos  int64
	suspended bool

	state  parseState
	tag    dicomtag.Tag
	entry  *dicomtag.Entry
	vr     dicomtag.VR
	length uint32

	frames []frame
}

func (s *session) resetState() {
	s.state = stateTag
	s.tag = dicomtag.Tag{}
	s.entry = nil
	s.vr = ""
	s.length = 0
}

func (s *session) push(f frame) Result {
	s.frames = append(s.frames, f)
	return Processing()
}

// run steps the innermost frame until the frame stack is empty or a step
// ends the read. A step returns Processing after pushing a child frame and
// Success when its own scope is complete.
func (s *session) run(source dicomio.ByteSource) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Failure(panicError(p, source.Position()))
		}
	}()

	for len(s.frames) > 0 {
		i := len(s.frames) - 1
		var step Result
		switch s.frames[i].proc {
		case procDataset:
			step = s.parseDataset(source, &s.frames[i])
		case procSequence:
			step = s.parseSequence(source, &s.frames[i])
		case procFragments:
			step = s.parseFragments(source, &s.frames[i])
		}

		switch step.Status() {
		case StatusProcessing:
		case StatusSuccess:
			s.frames = s.frames[:i]
		default:
			return step
		}
	}
	return Success()
}

// require asks the source for count bytes. When ok is false the caller must
// return res unchanged: Suspended, with s.cont registered, or an Error.
func (s *session) require(source dicomio.ByteSource, count uint32) (res Result, ok bool) {
	ready, err := source.Require(count, s.cont)
	if err != nil {
		return Failure(err), false
	}
	if !ready {
		return Suspended(), false
	}
	return Result{}, true
}

func readTag(source dicomio.ByteSource) dicomtag.Tag {
	group := source.GetUInt16()
	element := source.GetUInt16()
	return dicomtag.Tag{Group: group, Element: element}
}

func privateCreatorKey(group, element uint16) uint32 {
	return uint32(group)<<16 | uint32(element)
}

func (s *session) parseDataset(source dicomio.ByteSource, f *frame) Result {
	for !source.IsEOF() && !source.HasReachedMilestone() {
		if s.state == stateTag {
			source.Mark()
			if res, ok := s.require(source, 4); !ok {
				return res
			}

			tag := readTag(source)
			if tag.IsPrivate() && tag.Element > 0x00ff {
				if creator, found := s.private[privateCreatorKey(tag.Group, tag.Element>>8)]; found {
					tag.Creator = creator
				}
			}
			s.tag = tag
			s.entry = s.dict.Lookup(tag)
			if !tag.IsPrivate() && s.entry != nil && s.entry.MaskTag == nil {
				s.tag = s.entry.Tag
			}

			// delimiter不是data element, 不参与stop判断
			if s.stop != nil && !tag.IsDelimiter() && s.tag.Compare(*s.stop) >= 0 {
				if err := source.Rewind(); err != nil {
					return Failure(err)
				}
				return Stopped()
			}
			s.state = stateVR
		}

		if s.state == stateVR {
			if res, ok := s.parseVR(source); !ok {
				return res
			}
		}

		if s.state == stateLength {
			if res, ok := s.parseLength(source); !ok {
				return res
			}
		}

		if s.state == stateValue {
			if s.vr == dicomtag.UN && s.explicit {
				if e := s.dict.Lookup(s.tag); e != nil {
					s.vr = e.VR()
				}
			}

			if s.tag.Equals(dicomtag.ItemDelimitationItem) {
				if len(s.frames) == 1 {
					s.log.Warnf("dicom: stray item delimitation item at offset %d ignored", source.Marker())
					s.resetState()
					continue
				}
				return s.endItem(source, f)
			}

			flipped := false
			if s.vr == dicomtag.SQ && s.tag.IsPrivate() {
				isSeq, res, ok := s.isPrivateSequence(source)
				if !ok {
					return res
				}
				if !isSeq {
					s.log.Warnf("dicom: private tag %s declared SQ without items, read as UN", s.tag)
					s.vr = dicomtag.UN
				} else {
					bad, res, ok := s.isPrivateSequenceBad(source)
					if !ok {
						return res
					}
					if bad {
						s.log.Vprintf(2, "dicom: private sequence %s encoded with the other VR convention", s.tag)
						flipped = true
						s.explicit = !s.explicit
					}
				}
			}

			if s.vr == dicomtag.SQ {
				s.observer.OnBeginSequence(source, s.tag, s.length)
				s.metrics.sequence()
				child := frame{proc: procSequence, flipped: flipped}
				if s.length != UndefinedLength {
					source.PushMilestone(s.length)
					child.milestone = true
				}
				s.resetState()
				return s.push(child)
			}

			if s.length == UndefinedLength {
				s.observer.OnBeginFragmentSequence(source, s.tag, s.vr)
				child := frame{proc: procFragments, vr: s.vr}
				s.resetState()
				return s.push(child)
			}

			if res, ok := s.require(source, s.length); !ok {
				return res
			}
			buf := source.GetBuffer(s.length)
			if !s.vr.IsString() {
				buf = dicomio.ToNativeEndian(buf, source.Endian(), s.vr.UnitSize())
			}
			s.observer.OnElement(source, s.tag, s.vr, buf)
			s.metrics.element()

			if s.tag.IsPrivateCreator() {
				s.addPrivateCreator(s.tag, buf)
			}
			s.resetState()
		}
	}

	if f.milestone {
		source.PopMilestone()
	}
	return Success()
}

func (s *session) parseVR(source dicomio.ByteSource) (Result, bool) {
	if s.tag.IsDelimiter() {
		s.vr = dicomtag.NONE
		s.state = stateLength
		return Result{}, true
	}

	s.vr = ""
	if s.explicit {
		if res, ok := s.require(source, 2); !ok {
			return res, false
		}
		vr, ok := dicomtag.ParseVR(string(source.GetBytes(2)))
		if !ok {
			vr = dicomtag.UN
		}
		s.vr = vr
	} else if s.entry != nil {
		switch {
		case s.entry == dicomtag.UnknownEntry:
			s.vr = dicomtag.UN
		case s.entry.HasVR(dicomtag.OB) && s.entry.HasVR(dicomtag.OW):
			s.vr = dicomtag.OW
		case len(s.entry.VRs) > 0:
			s.vr = s.entry.VRs[0]
		}
	}
	if s.vr == "" {
		s.vr = dicomtag.UN
	}
	s.state = stateLength

	switch {
	case s.vr == dicomtag.UN && s.tag.Element == 0x0000:
		// group length
		s.vr = dicomtag.UL
	case s.vr == dicomtag.UN && !s.explicit && s.tag.IsPrivateCreator():
		// private creator 总是LO
		s.vr = dicomtag.LO
	}
	return Result{}, true
}

func (s *session) parseLength(source dicomio.ByteSource) (Result, bool) {
	switch {
	case s.tag.IsDelimiter():
		if res, ok := s.require(source, 4); !ok {
			return res, false
		}
		s.length = source.GetUInt32()
	case s.explicit && s.vr.Is16BitLength():
		if res, ok := s.require(source, 2); !ok {
			return res, false
		}
		s.length = uint32(source.GetUInt16())
	case s.explicit:
		if res, ok := s.require(source, 6); !ok {
			return res, false
		}
		source.Skip(2)
		s.length = source.GetUInt32()
	default:
		if res, ok := s.require(source, 4); !ok {
			return res, false
		}
		s.length = source.GetUInt32()
		// implicit VR下只有undefined length能说明是sequence
		if s.length == UndefinedLength && s.vr == dicomtag.UN {
			s.vr = dicomtag.SQ
		}
	}
	s.state = stateValue
	return Result{}, true
}

func (s *session) addPrivateCreator(tag dicomtag.Tag, value []byte) {
	creator, err := dicomio.DecodeString(value, dicomio.CodingSystem{}, dicomio.IdeographicCodingSystem)
	if err != nil {
		s.log.Warnf("dicom: private creator %s: %v", tag, err)
		return
	}
	creator = strings.TrimRight(creator, string(rune(dicomtag.LO.Padding())))
	s.private[privateCreatorKey(tag.Group, tag.Element)] = creator
}

// endItem closes an item data set at its ItemDelimitationItem.
func (s *session) endItem(source dicomio.ByteSource, f *frame) Result {
	if f.milestone {
		s.log.Warnf("dicom: item delimitation item inside defined length item at offset %d", source.Marker())
		source.PopMilestone()
	}
	return Success()
}

// isPrivateSequence peeks for an Item or SequenceDelimitationItem tag. ok is
// false when the caller must return res.
func (s *session) isPrivateSequence(source dicomio.ByteSource) (isSeq bool, res Result, ok bool) {
	ready, err := source.Require(4, s.cont)
	if err != nil {
		if errors.Is(err, dicomio.ErrPastEnd) {
			return false, Result{}, true
		}
		return false, Failure(err), false
	}
	if !ready {
		return false, Suspended(), false
	}

	source.Mark()
	tag := readTag(source)
	if err := source.Rewind(); err != nil {
		return false, Failure(err), false
	}
	return tag.Equals(dicomtag.Item) || tag.Equals(dicomtag.SequenceDelimitationItem), Result{}, true
}

// isPrivateSequenceBad peeks at the first element of the first item (item
// tag, item length, element tag, two bytes) and reports whether they look
// encoded with the opposite VR convention.
func (s *session) isPrivateSequenceBad(source dicomio.ByteSource) (bad bool, res Result, ok bool) {
	ready, err := source.Require(14, s.cont)
	if err != nil {
		if errors.Is(err, dicomio.ErrPastEnd) {
			return false, Result{}, true
		}
		return false, Failure(err), false
	}
	if !ready {
		return false, Suspended(), false
	}

	source.Mark()
	readTag(source)
	source.GetUInt32()
	readTag(source)
	code := source.GetBytes(2)
	if err := source.Rewind(); err != nil {
		return false, Failure(err), false
	}

	if _, parsed := dicomtag.ParseVR(string(code)); parsed {
		return !s.explicit, Result{}, true
	}
	return s.explicit, Result{}, true
}

func (s *session) parseSequence(source dicomio.ByteSource, f *frame) Result {
	for {
		if f.inItem {
			f.inItem = false
			s.resetState()
			s.observer.OnEndSequenceItem()
		}

		if source.IsEOF() || source.HasReachedMilestone() {
			break
		}

		if s.state == stateTag {
			source.Mark()
			if res, ok := s.require(source, 8); !ok {
				return res
			}

			tag := readTag(source)
			if !tag.Equals(dicomtag.Item) && !tag.Equals(dicomtag.SequenceDelimitationItem) {
				// 不是合法的sequence，当作已结束
				if err := source.Rewind(); err != nil {
					return Failure(err)
				}
				s.log.Warnf("dicom: %s at offset %d ends sequence without delimiter", tag, source.Position())
				return s.endSequence(source, f)
			}

			s.tag = tag
			s.length = source.GetUInt32()
			if tag.Equals(dicomtag.SequenceDelimitationItem) {
				s.resetState()
				return s.endSequence(source, f)
			}
			s.state = stateValue
		}

		if s.state == stateValue {
			child := frame{proc: procDataset}
			if s.length != UndefinedLength {
				if res, ok := s.require(source, s.length); !ok {
					return res
				}
				source.PushMilestone(s.length)
				child.milestone = true
			}
			s.observer.OnBeginSequenceItem(source, s.length)
			s.metrics.item()
			s.resetState()
			f.inItem = true
			return s.push(child)
		}
	}

	return s.endSequence(source, f)
}

func (s *session) endSequence(source dicomio.ByteSource, f *frame) Result {
	if f.milestone {
		source.PopMilestone()
	}
	s.observer.OnEndSequence()
	if f.flipped {
		s.explicit = !s.explicit
	}
	return Success()
}

func (s *session) parseFragments(source dicomio.ByteSource, f *frame) Result {
	for !source.IsEOF() {
		if s.state == stateTag {
			source.Mark()
			if res, ok := s.require(source, 8); !ok {
				return res
			}

			tag := readTag(source)
			if !tag.Equals(dicomtag.Item) && !tag.Equals(dicomtag.SequenceDelimitationItem) {
				return Failure(unexpectedFragmentTag(tag, source.Marker()))
			}

			s.length = source.GetUInt32()
			if tag.Equals(dicomtag.SequenceDelimitationItem) {
				s.observer.OnEndFragmentSequence()
				s.resetState()
				return Success()
			}
			f.fragments++
			s.state = stateValue
		}

		if s.state == stateValue {
			if res, ok := s.require(source, s.length); !ok {
				return res
			}
			buf := source.GetBuffer(s.length)
			// 第一个fragment是Basic Offset Table, 由32位offset组成
			unit := f.vr.UnitSize()
			if f.fragments == 1 {
				unit = 4
			}
			buf = dicomio.ToNativeEndian(buf, source.Endian(), unit)
			s.observer.OnFragmentSequenceItem(source, buf)
			s.metrics.fragment()
			s.state = stateTag
		}
	}
	return Success()
}
