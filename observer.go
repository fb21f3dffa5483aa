package dicom

import (
	"github.com/odincare/dcmstream/dicomio"
	"github.com/odincare/dcmstream/dicomtag"
)

// Observer receives the structure of a data set as the Reader discovers it.
// Calls are made synchronously, in document order, on whatever goroutine is
// driving the parse (including the goroutine that feeds a BufferSource), so
// implementations must not block.
//
// Value buffers are owned by the observer and are already in native byte
// order for non-text VRs.
type Observer interface {
	OnElement(source dicomio.ByteSource, tag dicomtag.Tag, vr dicomtag.VR, data []byte)

	OnBeginSequence(source dicomio.ByteSource, tag dicomtag.Tag, length uint32)
	OnEndSequence()

	OnBeginSequenceItem(source dicomio.ByteSource, length uint32)
	OnEndSequenceItem()

	OnBeginFragmentSequence(source dicomio.ByteSource, tag dicomtag.Tag, vr dicomtag.VR)
	OnFragmentSequenceItem(source dicomio.ByteSource, data []byte)
	OnEndFragmentSequence()
}

// NopObserver ignores every event. Embed it to implement part of Observer.
type NopObserver struct{}

func (NopObserver) OnElement(dicomio.ByteSource, dicomtag.Tag, dicomtag.VR, []byte) {}

func (NopObserver) OnBeginSequence(dicomio.ByteSource, dicomtag.Tag, uint32) {}

func (NopObserver) OnEndSequence() {}

func (NopObserver) OnBeginSequenceItem(dicomio.ByteSource, uint32) {}

func (NopObserver) OnEndSequenceItem() {}

func (NopObserver) OnBeginFragmentSequence(dicomio.ByteSource, dicomtag.Tag, dicomtag.VR) {}

func (NopObserver) OnFragmentSequenceItem(dicomio.ByteSource, []byte) {}

func (NopObserver) OnEndFragmentSequence() {}

// MultiObserver forwards every event to each of its observers in order.
type MultiObserver []Observer

func (m MultiObserver) OnElement(source dicomio.ByteSource, tag dicomtag.Tag, vr dicomtag.VR, data []byte) {
	for _, o := range m {
		o.OnElement(source, tag, vr, data)
	}
}

func (m MultiObserver) OnBeginSequence(source dicomio.ByteSource, tag dicomtag.Tag, length uint32) {
	for _, o := range m {
		o.OnBeginSequence(source, tag, length)
	}
}

func (m MultiObserver) OnEndSequence() {
	for _, o := range m {
		o.OnEndSequence()
	}
}

func (m MultiObserver) OnBeginSequenceItem(source dicomio.ByteSource, length uint32) {
	for _, o := range m {
		o.OnBeginSequenceItem(source, length)
	}
}

func (m MultiObserver) OnEndSequenceItem() {
	for _, o := range m {
		o.OnEndSequenceItem()
	}
}

func (m MultiObserver) OnBeginFragmentSequence(source dicomio.ByteSource, tag dicomtag.Tag, vr dicomtag.VR) {
	for _, o := range m {
		o.OnBeginFragmentSequence(source, tag, vr)
	}
}

func (m MultiObserver) OnFragmentSequenceItem(source dicomio.ByteSource, data []byte) {
	for _, o := range m {
		o.OnFragmentSequenceItem(source, data)
	}
}

func (m MultiObserver) OnEndFragmentSequence() {
	for _, o := range m {
		o.OnEndFragmentSequence()
	}
}
