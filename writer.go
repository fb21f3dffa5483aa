package dicom

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/odincare/dcmstream/dicomio"
	"github.com/odincare/dcmstream/dicomtag"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultImplementationClassUID is written into file headers that do
	// not carry their own ImplementationClassUID.
	DefaultImplementationClassUID = "1.2.826.0.1.3680043.9.7133.1.1"
	// DefaultImplementationVersionName goes with DefaultImplementationClassUID.
	DefaultImplementationVersionName = "DCMSTREAM_1_0"
)

// metaLayout 是file meta group的写出顺序. fallback为nil的element必须由调用者提供.
var metaLayout = []struct {
	tag      dicomtag.Tag
	fallback interface{}
}{
	{dicomtag.FileMetaInformationVersion, []byte{0x00, 0x01}},
	{dicomtag.MediaStorageSOPClassUID, nil},
	{dicomtag.MediaStorageSOPInstanceUID, nil},
	{dicomtag.TransferSyntaxUID, nil},
	{dicomtag.ImplementationClassUID, DefaultImplementationClassUID},
	{dicomtag.ImplementationVersionName, DefaultImplementationVersionName},
}

// WriteFileHeader writes the 128 byte preamble, "DICM" and the file meta
// group (always explicit VR little endian). metaElements must contain
// TransferSyntaxUID, MediaStorageSOPClassUID and MediaStorageSOPInstanceUID;
// other group 0002 elements are appended after the standard ones.
// Errors are reported via e.Error().
//
// PS3.10 7.1
func WriteFileHeader(e *dicomio.Encoder, metaElements []*Element) {
	e.PushTransferSyntax(binary.LittleEndian, dicomio.ExplicitVR)
	defer e.PopTransferSyntax()

	meta := dicomio.NewBytesEncoder(binary.LittleEndian, dicomio.ExplicitVR)
	written := map[dicomtag.Tag]bool{dicomtag.FileMetaInformationGroupLength: true}
	for _, m := range metaLayout {
		written[m.tag] = true
		elem, err := FindElementByTag(metaElements, m.tag)
		switch {
		case err == nil:
			WriteElement(meta, elem)
		case m.fallback != nil:
			WriteElement(meta, MustNewElement(m.tag, m.fallback))
		default:
			meta.SetErrorf("%v not found in metaElements: %v", dicomtag.DebugString(m.tag), err)
		}
	}
	for _, elem := range metaElements {
		if elem.Tag.Group == dicomtag.MetadataGroup && !written[elem.Tag] {
			WriteElement(meta, elem)
		}
	}
	if meta.Error() != nil {
		e.SetError(meta.Error())
		return
	}

	metaBytes := meta.Bytes()
	e.WriteZeros(128)
	e.WriteString("DICM")
	WriteElement(e, MustNewElement(dicomtag.FileMetaInformationGroupLength, uint32(len(metaBytes))))
	e.WriteBytes(metaBytes)
}

func writeRawItem(e *dicomio.Encoder, data []byte) {
	WriteElementHeader(e, dicomtag.Item, dicomtag.NONE, uint32(len(data)))
	e.WriteBytes(data)
}

func writeBasicOffsetTable(e *dicomio.Encoder, offsets []uint32) {

	byteOrder, _ := e.TransferSyntax()

	subEncoder := dicomio.NewBytesEncoder(byteOrder, dicomio.ImplicitVR)
	for _, offset := range offsets {
		subEncoder.WriteUInt32(offset)
	}

	writeRawItem(e, subEncoder.Bytes())
}

// WriteElementHeader writes tag, VR (explicit VR only) and value length.
// Elements of group FFFE are always written without VR. PS3.5 7.1, 7.5
func WriteElementHeader(e *dicomio.Encoder, tag dicomtag.Tag, vr dicomtag.VR, vl uint32) {
	e.WriteUInt16(tag.Group)
	e.WriteUInt16(tag.Element)

	_, implicit := e.TransferSyntax()
	if tag.Group == dicomtag.ItemSeqGroup {
		implicit = dicomio.ImplicitVR
	}

	if implicit == dicomio.ExplicitVR {
		dicomio.DoAssert(len(vr) == 2, vr)
		e.WriteString(string(vr))

		if vr.Is16BitLength() {
			e.WriteUInt16(uint16(vl))
		} else {
			e.WriteZeros(2) // 2 bytes for "future use" (0000H)
			e.WriteUInt32(vl)
		}
	} else {
		dicomio.DoAssert(implicit == dicomio.ImplicitVR, implicit)
		e.WriteUInt32(vl)
	}
}

// WriteFragments writes an encapsulated element: header with undefined
// length, the basic offset table item, one item per fragment and the
// sequence delimiter.
func WriteFragments(e *dicomio.Encoder, tag dicomtag.Tag, vr dicomtag.VR, offsets []uint32, fragments [][]byte) {
	WriteElementHeader(e, tag, vr, UndefinedLength)
	writeBasicOffsetTable(e, offsets)
	for _, f := range fragments {
		writeRawItem(e, f)
	}
	WriteElementHeader(e, dicomtag.SequenceDelimitationItem, dicomtag.NONE, 0)
}

// encodeNative 把native byte order的binary value按encoder的byte order写出
func encodeNative(e *dicomio.Encoder, data []byte, unitSize int) {
	order, _ := e.TransferSyntax()
	out := dicomio.ToNativeEndian(append([]byte(nil), data...), order, unitSize)
	e.WriteBytes(out)
}

func joinStrings(e *dicomio.Encoder, elem *Element) string {
	s := ""
	for i, value := range elem.Value {
		substr, ok := value.(string)
		if !ok {
			e.SetErrorf("%v: 非字符串的值", dicomtag.DebugString(elem.Tag))
			continue
		}
		if i > 0 {
			s += "\\"
		}
		s += substr
	}
	return s
}

// WriteElement encodes one data element, Errors are reported through e.Error().
//
// Requires: Each value in values[] must match the VR of the tag.
// e.g. if tag is for UL, then each value must be uint32
func WriteElement(e *dicomio.Encoder, elem *Element) {
	vr, err := writeVR(elem)
	if err != nil {
		e.SetError(err)
		return
	}

	if elem.Tag.Equals(dicomtag.PixelData) {
		if len(elem.Value) != 1 {
			e.SetError(fmt.Errorf("PixelData element must have one value of type PixelDataInfo"))
			return
		}

		image, ok := elem.Value[0].(PixelDataInfo)
		if !ok {
			e.SetError(fmt.Errorf("PixelData的子元素的类型必须是PixelDataInfo"))
			return
		}

		if elem.UndefinedLength {
			WriteFragments(e, elem.Tag, vr, image.Offsets, image.Frames)
		} else {
			if len(image.Frames) != 1 {
				e.SetErrorf("%v: defined length pixel data needs exactly one frame, found %d",
					dicomtag.DebugString(elem.Tag), len(image.Frames))
				return
			}
			WriteElementHeader(e, elem.Tag, vr, uint32(len(image.Frames[0])))
			encodeNative(e, image.Frames[0], vr.UnitSize())
		}

		return
	}

	if vr == dicomtag.SQ || elem.Tag.Equals(dicomtag.Item) {
		writeNested(e, elem, vr)
		return
	}

	if elem.UndefinedLength {
		e.SetErrorf("目前还不支持编码undefined-length的element: %v", elem)
		return
	}

	sube := dicomio.NewBytesEncoder(e.TransferSyntax())

	switch vr {
	case dicomtag.US:
		writeEach(e, elem, "uint16", sube.WriteUInt16)
	case dicomtag.UL:
		writeEach(e, elem, "uint32", sube.WriteUInt32)
	case dicomtag.SL:
		writeEach(e, elem, "int32", sube.WriteInt32)
	case dicomtag.SS:
		writeEach(e, elem, "int16", sube.WriteInt16)
	case dicomtag.FL:
		writeEach(e, elem, "float32", sube.WriteFloat32)
	case dicomtag.FD:
		writeEach(e, elem, "float64", sube.WriteFloat64)
	case dicomtag.AT:
		writeEach(e, elem, "Tag", func(t dicomtag.Tag) {
			sube.WriteUInt16(t.Group)
			sube.WriteUInt16(t.Element)
		})
	case dicomtag.OB, dicomtag.OW, dicomtag.OD, dicomtag.OF, dicomtag.OL, dicomtag.OV, dicomtag.UN:
		if len(elem.Value) != 1 {
			e.SetErrorf("%v: 需要单个value, 而不是: %v",
				dicomtag.DebugString(elem.Tag), elem.Value)
			break
		}
		bytes, ok := elem.Value[0].([]byte)
		if !ok {
			e.SetErrorf("%v: 需要一个二进制字符串，而不是: %v",
				dicomtag.DebugString(elem.Tag), elem.Value[0])
			break
		}
		if len(bytes)%vr.UnitSize() != 0 {
			e.SetErrorf("%v: %s 需要长度是 %d 的倍数, 而不是长度（length） %v",
				dicomtag.DebugString(elem.Tag), vr, vr.UnitSize(), len(bytes))
			break
		}
		encodeNative(sube, bytes, vr.UnitSize())
		if len(bytes)%2 == 1 {
			sube.WriteUInt8(0)
		}
	case dicomtag.UI:
		s := joinStrings(e, elem)
		sube.WriteString(s)
		if len(s)%2 == 1 {
			sube.WriteUInt8(0)
		}
	default:
		s := joinStrings(e, elem)
		sube.WriteString(s)
		if len(s)%2 == 1 {
			sube.WriteUInt8(' ')
		}
	}

	if sube.Error() != nil {
		e.SetError(sube.Error())
		return
	}

	bytes := sube.Bytes()
	WriteElementHeader(e, elem.Tag, vr, uint32(len(bytes)))
	e.WriteBytes(bytes)
}

// writeVR 决定写出时用的VR. elem.VR为空时取字典的VR, 字典里没有则为UN.
// 与字典不一致但编码方式相同时只警告.
func writeVR(elem *Element) (dicomtag.VR, error) {
	entry, err := dicomtag.Find(elem.Tag)
	switch {
	case elem.VR == "" && err != nil:
		return dicomtag.UN, nil
	case elem.VR == "":
		return entry.VR(), nil
	case err != nil || entry.HasVR(elem.VR) || elem.Tag.Equals(dicomtag.Item):
		return elem.VR, nil
	case dicomtag.GetVRKind(elem.Tag, entry.VR()) != dicomtag.GetVRKind(elem.Tag, elem.VR):
		return "", fmt.Errorf("dicom.WriteElement: VR mismatch for tag %s: element has %v, dictionary defines %v",
			dicomtag.DebugString(elem.Tag), elem.VR, entry.VR())
	}
	logrus.Warnf("dicom.WriteElement: VR mismatch for tag %s: element has %v, dictionary defines %v (continuing)",
		dicomtag.DebugString(elem.Tag), elem.VR, entry.VR())
	return elem.VR, nil
}

// writeEach 对elem的每个value调用put, 类型不对的value记录error并跳过
func writeEach[T any](e *dicomio.Encoder, elem *Element, typeName string, put func(T)) {
	for _, value := range elem.Value {
		v, ok := value.(T)
		if !ok {
			e.SetErrorf("%v: 需要是%s类型, 而不是: %v", dicomtag.DebugString(elem.Tag), typeName, value)
			continue
		}
		put(v)
	}
}

// writeNested 写SQ或Item. 子元素先写入一个子encoder来得到defined length
func writeNested(e *dicomio.Encoder, elem *Element, vr dicomtag.VR) {
	isSeq := vr == dicomtag.SQ
	delimiter := dicomtag.ItemDelimitationItem
	if isSeq {
		delimiter = dicomtag.SequenceDelimitationItem
	} else {
		vr = dicomtag.NONE
	}

	writeChildren := func(to *dicomio.Encoder) bool {
		for _, value := range elem.Value {
			subelem, ok := value.(*Element)
			if !ok {
				e.SetErrorf("Item values 必须是一个 dicom.Element, 而不是: %v", value)
				return false
			}
			if isSeq && !subelem.Tag.Equals(dicomtag.Item) {
				e.SetError(fmt.Errorf("SQ element 必须是一个Item, 而不是：%v", value))
				return false
			}
			WriteElement(to, subelem)
		}
		return true
	}

	if elem.UndefinedLength {
		WriteElementHeader(e, elem.Tag, vr, UndefinedLength)
		if !writeChildren(e) {
			return
		}
		WriteElementHeader(e, delimiter, dicomtag.NONE, 0)
		return
	}

	sube := dicomio.NewBytesEncoder(e.TransferSyntax())
	if !writeChildren(sube) {
		return
	}
	if sube.Error() != nil {
		e.SetError(sube.Error())
		return
	}

	bytes := sube.Bytes()
	WriteElementHeader(e, elem.Tag, vr, uint32(len(bytes)))
	e.WriteBytes(bytes)
}

// WriteDataSet writes the dataset into the stream in DICOM file format,
// complete with the magic header and metadata elements.
//
// The transfer syntax (byte order, etc) of the file is determined by the
// TransferSyntax element in "ds". If ds is missing that or a few other
// essential elements, this function returns an error.
//
//	ds := ... read or create dicom.Dataset ...
//	out, err := os.Create("test.dcm")
//	err := dicom.WriteDataSet(out, ds)
func WriteDataSet(out io.Writer, ds *DataSet) error {
	e := dicomio.NewEncoder(out, nil, dicomio.UnknownVR)
	var metaElems []*Element
	for _, elem := range ds.Elements {
		if elem.Tag.Group == dicomtag.MetadataGroup {
			metaElems = append(metaElems, elem)
		}
	}
	WriteFileHeader(e, metaElems)
	if e.Error() != nil {
		return e.Error()
	}
	uid, err := getTransferSyntaxUID(ds)
	if err != nil {
		return err
	}
	endian, implicit, err := dicomio.ParseTransferSyntaxUID(uid)
	if err != nil {
		return err
	}
	e.PushTransferSyntax(endian, implicit)
	for _, elem := range ds.Elements {
		if elem.Tag.Group != dicomtag.MetadataGroup {
			WriteElement(e, elem)
		}
	}
	e.PopTransferSyntax()
	return e.Error()
}

// WriteDataSetToFile writes "ds" to the given file. If the file already exists,
// existing contents are clobbered. Else, the file is newly created.
func WriteDataSetToFile(path string, ds *DataSet) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteDataSet(out, ds); err != nil {
		out.Close() // nolint: errcheck
		return err
	}
	return out.Close()
}
