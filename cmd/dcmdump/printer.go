package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/odincare/dcmstream/dicomio"
	"github.com/odincare/dcmstream/dicomtag"
)

const (
	maxTextPreview   = 64
	maxBinaryPreview = 16
	maxNumbers       = 8
)

// printer writes one line per reader event, indented by nesting depth.
type printer struct {
	w     io.Writer
	dict  dicomtag.Dictionary
	depth int
	// 当前fragment sequence里的序号
	fragment int
}

func newPrinter(w io.Writer, dict dicomtag.Dictionary) *printer {
	return &printer{w: w, dict: dict}
}

func (p *printer) indent() string {
	return strings.Repeat("  ", p.depth)
}

func (p *printer) keyword(tag dicomtag.Tag) string {
	if e := p.dict.Lookup(tag); e != nil && e != dicomtag.UnknownEntry {
		return e.Keyword
	}
	return "?"
}

func lengthString(length uint32) string {
	if length == 0xffffffff {
		return "u/l"
	}
	return fmt.Sprint(length)
}

func (p *printer) OnElement(_ dicomio.ByteSource, tag dicomtag.Tag, vr dicomtag.VR, data []byte) {
	fmt.Fprintf(p.w, "%s%s %s %s #%d %s\n", p.indent(), tag, vr, p.keyword(tag), len(data), preview(vr, data))
}

func (p *printer) OnBeginSequence(_ dicomio.ByteSource, tag dicomtag.Tag, length uint32) {
	fmt.Fprintf(p.w, "%s%s SQ %s #%s\n", p.indent(), tag, p.keyword(tag), lengthString(length))
	p.depth++
}

func (p *printer) OnEndSequence() {
	p.depth--
	fmt.Fprintf(p.w, "%s%s end of sequence\n", p.indent(), dicomtag.SequenceDelimitationItem)
}

func (p *printer) OnBeginSequenceItem(_ dicomio.ByteSource, length uint32) {
	fmt.Fprintf(p.w, "%s%s item #%s\n", p.indent(), dicomtag.Item, lengthString(length))
	p.depth++
}

func (p *printer) OnEndSequenceItem() {
	p.depth--
	fmt.Fprintf(p.w, "%s%s end of item\n", p.indent(), dicomtag.ItemDelimitationItem)
}

func (p *printer) OnBeginFragmentSequence(_ dicomio.ByteSource, tag dicomtag.Tag, vr dicomtag.VR) {
	fmt.Fprintf(p.w, "%s%s %s %s #u/l encapsulated\n", p.indent(), tag, vr, p.keyword(tag))
	p.depth++
	p.fragment = 0
}

func (p *printer) OnFragmentSequenceItem(_ dicomio.ByteSource, data []byte) {
	label := fmt.Sprintf("fragment %d", p.fragment)
	if p.fragment == 0 {
		label = "offset table"
	}
	fmt.Fprintf(p.w, "%s%s %s #%d\n", p.indent(), dicomtag.Item, label, len(data))
	p.fragment++
}

func (p *printer) OnEndFragmentSequence() {
	p.depth--
	fmt.Fprintf(p.w, "%s%s end of fragments\n", p.indent(), dicomtag.SequenceDelimitationItem)
}

// preview renders the start of a value. Binary values arrive in native byte
// order.
func preview(vr dicomtag.VR, data []byte) string {
	if vr.IsString() {
		s := strings.TrimRight(string(data), " \x00")
		if len(s) > maxTextPreview {
			s = s[:maxTextPreview] + "..."
		}
		return fmt.Sprintf("%q", s)
	}

	order := dicomio.NativeByteOrder
	var nums []string
	switch vr {
	case dicomtag.US:
		for i := 0; i+2 <= len(data); i += 2 {
			nums = append(nums, fmt.Sprint(order.Uint16(data[i:])))
		}
	case dicomtag.SS:
		for i := 0; i+2 <= len(data); i += 2 {
			nums = append(nums, fmt.Sprint(int16(order.Uint16(data[i:]))))
		}
	case dicomtag.UL:
		for i := 0; i+4 <= len(data); i += 4 {
			nums = append(nums, fmt.Sprint(order.Uint32(data[i:])))
		}
	case dicomtag.SL:
		for i := 0; i+4 <= len(data); i += 4 {
			nums = append(nums, fmt.Sprint(int32(order.Uint32(data[i:]))))
		}
	default:
		if len(data) > maxBinaryPreview {
			return hex.EncodeToString(data[:maxBinaryPreview]) + "..."
		}
		return hex.EncodeToString(data)
	}
	if len(nums) > maxNumbers {
		nums = append(nums[:maxNumbers], "...")
	}
	return strings.Join(nums, "\\")
}
