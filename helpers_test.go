package dicom_test

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	dicom "github.com/odincare/dcmstream"
	"github.com/odincare/dcmstream/dicomio"
	"github.com/odincare/dcmstream/dicomtag"
)

// recorder logs every reader event as one line.
type recorder struct {
	events []string
}

func lengthString(length uint32) string {
	if length == dicom.UndefinedLength {
		return "u/l"
	}
	return fmt.Sprint(length)
}

func (r *recorder) OnElement(_ dicomio.ByteSource, tag dicomtag.Tag, vr dicomtag.VR, data []byte) {
	r.events = append(r.events, fmt.Sprintf("element %s %s %s", tag, vr, hex.EncodeToString(data)))
}

func (r *recorder) OnBeginSequence(_ dicomio.ByteSource, tag dicomtag.Tag, length uint32) {
	r.events = append(r.events, fmt.Sprintf("begin sequence %s %s", tag, lengthString(length)))
}

func (r *recorder) OnEndSequence() {
	r.events = append(r.events, "end sequence")
}

func (r *recorder) OnBeginSequenceItem(_ dicomio.ByteSource, length uint32) {
	r.events = append(r.events, fmt.Sprintf("begin item %s", lengthString(length)))
}

func (r *recorder) OnEndSequenceItem() {
	r.events = append(r.events, "end item")
}

func (r *recorder) OnBeginFragmentSequence(_ dicomio.ByteSource, tag dicomtag.Tag, vr dicomtag.VR) {
	r.events = append(r.events, fmt.Sprintf("begin fragments %s %s", tag, vr))
}

func (r *recorder) OnFragmentSequenceItem(_ dicomio.ByteSource, data []byte) {
	r.events = append(r.events, fmt.Sprintf("fragment %s", hex.EncodeToString(data)))
}

func (r *recorder) OnEndFragmentSequence() {
	r.events = append(r.events, "end fragments")
}

// event helpers

func elementEvent(tag dicomtag.Tag, vr dicomtag.VR, data []byte) string {
	return fmt.Sprintf("element %s %s %s", tag, vr, hex.EncodeToString(data))
}

func textEvent(tag dicomtag.Tag, vr dicomtag.VR, s string) string {
	return elementEvent(tag, vr, []byte(s))
}

// native16 is v in the byte order binary values are delivered in.
func native16(v uint16) []byte {
	b := make([]byte, 2)
	dicomio.NativeByteOrder.PutUint16(b, v)
	return b
}

// stream builders

func newEncoder(order binary.ByteOrder, implicit dicomio.IsImplicitVR) *dicomio.Encoder {
	return dicomio.NewBytesEncoder(order, implicit)
}

func explicitLE() *dicomio.Encoder {
	return newEncoder(binary.LittleEndian, dicomio.ExplicitVR)
}

func implicitLE() *dicomio.Encoder {
	return newEncoder(binary.LittleEndian, dicomio.ImplicitVR)
}

// writeRaw writes one element with the given VR and raw value bytes.
func writeRaw(e *dicomio.Encoder, tag dicomtag.Tag, vr dicomtag.VR, value []byte) {
	dicom.WriteElementHeader(e, tag, vr, uint32(len(value)))
	e.WriteBytes(value)
}

func writeText(e *dicomio.Encoder, tag dicomtag.Tag, vr dicomtag.VR, s string) {
	writeRaw(e, tag, vr, []byte(s))
}

func writeUS(e *dicomio.Encoder, tag dicomtag.Tag, v uint16) {
	dicom.WriteElementHeader(e, tag, dicomtag.US, 2)
	e.WriteUInt16(v)
}

func writeDelimiter(e *dicomio.Encoder, tag dicomtag.Tag, length uint32) {
	dicom.WriteElementHeader(e, tag, dicomtag.NONE, length)
}

// sequenceStream is an explicit VR little endian data set with one element
// of every structural kind:
//
//	(0008,0005) CS "ISO_IR 192"
//	(0008,1140) SQ defined length, one defined length item
//	(0010,0010) PN
//	(0010,1001) SQ undefined length, one undefined length item
//	(0028,0010) US 512
//	(7fe0,0010) OB encapsulated, offset table + one fragment
func sequenceStream() []byte {
	e := explicitLE()
	writeText(e, dicomtag.SpecificCharacterSet, dicomtag.CS, "ISO_IR 192")

	item := explicitLE()
	writeText(item, dicomtag.ReferencedSOPClassUID, dicomtag.UI, "1.2\x00")
	itemBytes := item.Bytes()
	dicom.WriteElementHeader(e, dicomtag.ReferencedImageSequence, dicomtag.SQ, uint32(8+len(itemBytes)))
	writeDelimiter(e, dicomtag.Item, uint32(len(itemBytes)))
	e.WriteBytes(itemBytes)

	writeText(e, dicomtag.PatientName, dicomtag.PN, "张三")

	dicom.WriteElementHeader(e, otherPatientNamesSequence, dicomtag.SQ, dicom.UndefinedLength)
	writeDelimiter(e, dicomtag.Item, dicom.UndefinedLength)
	writeText(e, dicomtag.PatientName, dicomtag.PN, "Li^Si ")
	writeDelimiter(e, dicomtag.ItemDelimitationItem, 0)
	writeDelimiter(e, dicomtag.SequenceDelimitationItem, 0)

	writeUS(e, dicomtag.Rows, 512)
	dicom.WriteFragments(e, dicomtag.PixelData, dicomtag.OB, []uint32{0}, [][]byte{{1, 2, 3, 4}})
	return e.Bytes()
}

// (0010,1001) OtherPatientNames is PN; here it is reused as an arbitrary
// sequence tag the dictionary knows nothing special about.
var otherPatientNamesSequence = dicomtag.Tag{Group: 0x0010, Element: 0x1001}

func sequenceStreamEvents() []string {
	return []string{
		textEvent(dicomtag.SpecificCharacterSet, dicomtag.CS, "ISO_IR 192"),
		"begin sequence (0008,1140) 20",
		"begin item 12",
		textEvent(dicomtag.ReferencedSOPClassUID, dicomtag.UI, "1.2\x00"),
		"end item",
		"end sequence",
		textEvent(dicomtag.PatientName, dicomtag.PN, "张三"),
		"begin sequence (0010,1001) u/l",
		"begin item u/l",
		textEvent(dicomtag.PatientName, dicomtag.PN, "Li^Si "),
		"end item",
		"end sequence",
		elementEvent(dicomtag.Rows, dicomtag.US, native16(512)),
		"begin fragments (7fe0,0010) OB",
		"fragment 00000000",
		"fragment 01020304",
		"end fragments",
	}
}

func joinEvents(events []string) string {
	return strings.Join(events, "\n")
}
