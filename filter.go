package dicom

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/odincare/dcmstream/dicomio"
	"github.com/odincare/dcmstream/dicomtag"
)

// TagFilter is an Observer that forwards only the top level elements whose
// tag or keyword matches one of its glob patterns. A matching sequence or
// encapsulated element is forwarded with everything nested in it.
//
// Patterns are matched against the tag string "(gggg,eeee)", lower case hex,
// and against the dictionary keyword, e.g. "(0010,*)" or "Patient*".
type TagFilter struct {
	next     Observer
	dict     dicomtag.Dictionary
	patterns []glob.Glob

	depth      int
	forwarding bool
}

// NewTagFilter wraps next. It fails if a pattern does not compile.
func NewTagFilter(next Observer, patterns ...string) (*TagFilter, error) {
	f := &TagFilter{next: next, dict: dicomtag.DefaultDictionary()}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "(") {
			p = strings.ToLower(p)
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("dicom: tag pattern %q: %v", p, err)
		}
		f.patterns = append(f.patterns, g)
	}
	return f, nil
}

// Match reports whether tag is selected by any pattern.
func (f *TagFilter) Match(tag dicomtag.Tag) bool {
	s := dicomtag.Tag{Group: tag.Group, Element: tag.Element}.String()
	keyword := ""
	if e := f.dict.Lookup(tag); e != nil && e != dicomtag.UnknownEntry {
		keyword = e.Keyword
	}
	for _, g := range f.patterns {
		if g.Match(s) || (keyword != "" && g.Match(keyword)) {
			return true
		}
	}
	return false
}

func (f *TagFilter) enter(tag dicomtag.Tag) {
	if f.depth == 0 {
		f.forwarding = f.Match(tag)
	}
	f.depth++
}

func (f *TagFilter) leave() {
	if f.depth > 0 {
		f.depth--
	}
}

func (f *TagFilter) OnElement(source dicomio.ByteSource, tag dicomtag.Tag, vr dicomtag.VR, data []byte) {
	if (f.depth == 0 && f.Match(tag)) || (f.depth > 0 && f.forwarding) {
		f.next.OnElement(source, tag, vr, data)
	}
}

func (f *TagFilter) OnBeginSequence(source dicomio.ByteSource, tag dicomtag.Tag, length uint32) {
	f.enter(tag)
	if f.forwarding {
		f.next.OnBeginSequence(source, tag, length)
	}
}

func (f *TagFilter) OnEndSequence() {
	f.leave()
	if f.forwarding {
		f.next.OnEndSequence()
	}
}

func (f *TagFilter) OnBeginSequenceItem(source dicomio.ByteSource, length uint32) {
	f.depth++
	if f.forwarding {
		f.next.OnBeginSequenceItem(source, length)
	}
}

func (f *TagFilter) OnEndSequenceItem() {
	f.leave()
	if f.forwarding {
		f.next.OnEndSequenceItem()
	}
}

func (f *TagFilter) OnBeginFragmentSequence(source dicomio.ByteSource, tag dicomtag.Tag, vr dicomtag.VR) {
	f.enter(tag)
	if f.forwarding {
		f.next.OnBeginFragmentSequence(source, tag, vr)
	}
}

func (f *TagFilter) OnFragmentSequenceItem(source dicomio.ByteSource, data []byte) {
	if f.forwarding {
		f.next.OnFragmentSequenceItem(source, data)
	}
}

func (f *TagFilter) OnEndFragmentSequence() {
	f.leave()
	if f.forwarding {
		f.next.OnEndFragmentSequence()
	}
}
