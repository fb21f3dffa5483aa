package dicom

import (
	"fmt"

	"github.com/odincare/dcmstream/dicomio"
	"github.com/odincare/dcmstream/dicomtag"
)

// builderScope is a container elements are appended to: the data set itself
// (elem == nil), a sequence, or an item.
type builderScope struct {
	elem *Element
	// SpecificCharacterSet 只在所在的item内有效
	cs dicomio.CodingSystem
}

// DataSetBuilder is an Observer that assembles the events of a read into a
// DataSet. Elements are attached to their parent as soon as they begin, so a
// read that stops or fails early still leaves a well formed partial tree.
type DataSetBuilder struct {
	ds     DataSet
	scopes []*builderScope
	// 正在读取的 encapsulated element
	fragments *Element
	err       error
}

func NewDataSetBuilder() *DataSetBuilder {
	b := &DataSetBuilder{}
	b.scopes = []*builderScope{{}}
	return b
}

// DataSet returns the elements built so far.
func (b *DataSetBuilder) DataSet() *DataSet {
	return &b.ds
}

// Err is the first value decoding error. Decoding errors do not stop the
// read; the element is kept with its raw bytes as value.
func (b *DataSetBuilder) Err() error {
	return b.err
}

func (b *DataSetBuilder) top() *builderScope {
	return b.scopes[len(b.scopes)-1]
}

func (b *DataSetBuilder) add(e *Element) {
	scope := b.top()
	if scope.elem == nil {
		b.ds.Elements = append(b.ds.Elements, e)
		return
	}
	scope.elem.Value = append(scope.elem.Value, e)
}

func (b *DataSetBuilder) push(e *Element) {
	b.scopes = append(b.scopes, &builderScope{elem: e, cs: b.top().cs})
}

func (b *DataSetBuilder) pop() {
	if len(b.scopes) > 1 {
		b.scopes = b.scopes[:len(b.scopes)-1]
	}
}

func (b *DataSetBuilder) setError(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *DataSetBuilder) OnElement(_ dicomio.ByteSource, tag dicomtag.Tag, vr dicomtag.VR, data []byte) {
	scope := b.top()
	elem := &Element{Tag: tag, VR: vr}
	values, err := decodeValue(tag, vr, data, scope.cs)
	if err != nil {
		b.setError(fmt.Errorf("%s: %v", dicomtag.DebugString(tag), err))
		values = []interface{}{data}
	}
	elem.Value = values
	b.add(elem)

	if tag.Equals(dicomtag.SpecificCharacterSet) {
		// It's sad that SpecificCharacterSet isn't part
		// of metadata, but is part of regular attrs, so we need
		// to watch out for multiple occurrences of this type of
		// elements.
		encodingNames, err := elem.GetStrings()
		if err != nil {
			b.setError(err)
			return
		}
		cs, err := dicomio.ParseSpecificCharacterSet(encodingNames)
		if err != nil {
			b.setError(err)
			return
		}
		scope.cs = cs
	}
}

func (b *DataSetBuilder) OnBeginSequence(_ dicomio.ByteSource, tag dicomtag.Tag, length uint32) {
	seq := &Element{Tag: tag, VR: dicomtag.SQ, UndefinedLength: length == UndefinedLength}
	b.add(seq)
	b.push(seq)
}

func (b *DataSetBuilder) OnEndSequence() {
	b.pop()
}

func (b *DataSetBuilder) OnBeginSequenceItem(_ dicomio.ByteSource, length uint32) {
	item := &Element{Tag: dicomtag.Item, VR: dicomtag.NONE, UndefinedLength: length == UndefinedLength}
	b.add(item)
	b.push(item)
}

func (b *DataSetBuilder) OnEndSequenceItem() {
	b.pop()
}

func (b *DataSetBuilder) OnBeginFragmentSequence(_ dicomio.ByteSource, tag dicomtag.Tag, vr dicomtag.VR) {
	b.fragments = &Element{
		Tag:             tag,
		VR:              vr,
		UndefinedLength: true,
		Value:           []interface{}{PixelDataInfo{}},
	}
	b.add(b.fragments)
}

func (b *DataSetBuilder) OnFragmentSequenceItem(_ dicomio.ByteSource, data []byte) {
	if b.fragments == nil {
		return
	}
	image := b.fragments.Value[0].(PixelDataInfo)
	if image.Offsets == nil {
		// 第一个item是 basic offset table. 空的table意味着只有一帧
		image.Offsets = []uint32{}
		order := dicomio.NativeByteOrder
		for i := 0; i+4 <= len(data); i += 4 {
			image.Offsets = append(image.Offsets, order.Uint32(data[i:]))
		}
		if len(image.Offsets) == 0 {
			image.Offsets = append(image.Offsets, 0)
		}
	} else {
		image.Frames = append(image.Frames, data)
	}
	b.fragments.Value[0] = image
}

func (b *DataSetBuilder) OnEndFragmentSequence() {
	b.fragments = nil
}
