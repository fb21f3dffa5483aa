package dicom

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/odincare/dcmstream/dicomio"
	"github.com/odincare/dcmstream/dicomtag"
	"github.com/odincare/dcmstream/dicomuid"

	"github.com/sirupsen/logrus"
)

// Element 是builder从reader事件里组装出来的一个data element.
// 自己构造时用NewElement, 它会按字典填好VR.
type Element struct {
	// Tag is a pair of <group, element>. See tag_definitions.go for possible values.
	Tag dicomtag.Tag

	// Value 的Go类型由VR决定, 见dicomtag.GetVRKind:
	//
	//   PixelData        一个PixelDataInfo
	//   Item             *Element, tag任意 (包括嵌套的Item)
	//   SQ               *Element, tag都是Item
	//   US/UL/SS/SL      uint16/uint32/int16/int32, 一个值对应一个VM
	//   FL/FD            float32/float64
	//   AT               dicomtag.Tag
	//   OB/OW/OD/OF/OL/OV/UN
	//                    一个[]byte, native byte order
	//   LT/UT/ST/UR/DA   一个string
	//   其他              string列表
	Value []interface{}

	// VR defines the encoding of Value[], e.g. dicomtag.UL. See P3.5 6.2.
	//
	// For elements built from a stream this is the VR the reader settled
	// on: read from the stream for explicit VR, from the dictionary for
	// implicit VR.
	VR dicomtag.VR

	// UndefinedLength 表示流里的长度是0xffffffff, 以delimiter结束.
	// 只对SQ, item和压缩的pixel data有意义.
	UndefinedLength bool
}

// DataSet 是一个文件的全部element, 包括group 0002的meta element.
type DataSet struct {
	Elements []*Element
}

// ReadOptions 控制ReadDataSet*读取哪些element
type ReadOptions struct {
	// DropPixelData会让ReadDataSet在PixelData前停止
	DropPixelData bool

	// ReturnTags 会返回一系列tag白名单, 只对顶层element有效
	ReturnTags []dicomtag.Tag

	// StopAtTag 使读取在第一个 >= StopAtTag 的tag前停止
	StopAtTag *dicomtag.Tag
}

// PixelDataInfo 是(7fe0,0010)的值. 非压缩时只有一帧, Offsets为空.
type PixelDataInfo struct {
	Offsets []uint32 // basic offset table
	Frames  [][]byte // 压缩时每个fragment一帧
}

// acceptsValue 判断v能否作为kind类element的一个值
func acceptsValue(kind dicomtag.VRKind, v interface{}) bool {
	switch v := v.(type) {
	case string:
		return kind == dicomtag.VRStringList || kind == dicomtag.VRString || kind == dicomtag.VRDate
	case []byte:
		return kind == dicomtag.VRBytes
	case uint16:
		return kind == dicomtag.VRUInt16List
	case uint32:
		return kind == dicomtag.VRUInt32List
	case int16:
		return kind == dicomtag.VRInt16List
	case int32:
		return kind == dicomtag.VRInt32List
	case float32:
		return kind == dicomtag.VRFloat32List
	case float64:
		return kind == dicomtag.VRFloat64List
	case PixelDataInfo:
		return kind == dicomtag.VRPixelData
	case dicomtag.Tag:
		return kind == dicomtag.VRTagList
	case *Element:
		return kind == dicomtag.VRItem || (kind == dicomtag.VRSequence && v.Tag.Equals(dicomtag.Item))
	}
	return false
}

// NewElement creates an element with the dictionary VR of tag. Every value
// must have the Go type that VR maps to (see Element.Value).
func NewElement(tag dicomtag.Tag, values ...interface{}) (*Element, error) {
	entry, err := dicomtag.Find(tag)
	if err != nil {
		return nil, err
	}
	kind := dicomtag.GetVRKind(tag, entry.VR())
	for _, v := range values {
		if !acceptsValue(kind, v) {
			return nil, fmt.Errorf("%v: wrong payload type for NewElement: expect %v, but found %v",
				dicomtag.DebugString(tag), kind, v)
		}
	}
	return &Element{Tag: tag, VR: entry.VR(), Value: append([]interface{}{}, values...)}, nil
}

// MustNewElement is NewElement that panics on error.
func MustNewElement(tag dicomtag.Tag, values ...interface{}) *Element {
	elem, err := NewElement(tag, values...)
	if err != nil {
		panic(fmt.Sprintf("Failed to create element with tag %v: %v", tag, err))
	}
	return elem
}

// NewItem returns an Item element holding elems.
func NewItem(elems ...*Element) *Element {
	item := &Element{Tag: dicomtag.Item, VR: dicomtag.NONE}
	for _, e := range elems {
		item.Value = append(item.Value, e)
	}
	return item
}

// single 取出唯一的一个T类型值
func single[T any](e *Element, name string) (T, error) {
	var zero T
	if len(e.Value) != 1 {
		return zero, fmt.Errorf("found %d value(s) in get%s (expect 1): %v", len(e.Value), name, e)
	}
	v, ok := e.Value[0].(T)
	if !ok {
		return zero, fmt.Errorf("%s value not found in %v", name, e)
	}
	return v, nil
}

func all[T any](e *Element, name string) ([]T, error) {
	values := make([]T, 0, len(e.Value))
	for _, v := range e.Value {
		t, ok := v.(T)
		if !ok {
			return nil, fmt.Errorf("%s value not found in %v", name, e)
		}
		values = append(values, t)
	}
	return values, nil
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// GetUInt32 returns the only value of a UL element.
func (e *Element) GetUInt32() (uint32, error) { return single[uint32](e, "uint32") }

func (e *Element) MustGetUInt32() uint32 { return must(e.GetUInt32()) }

// GetUInt16 returns the only value of a US element.
func (e *Element) GetUInt16() (uint16, error) { return single[uint16](e, "uint16") }

func (e *Element) MustGetUInt16() uint16 { return must(e.GetUInt16()) }

// GetString returns the only value of a string element.
func (e *Element) GetString() (string, error) { return single[string](e, "string") }

func (e *Element) MustGetString() string { return must(e.GetString()) }

// GetBytes returns the raw value of a binary element.
func (e *Element) GetBytes() ([]byte, error) { return single[[]byte](e, "bytes") }

// GetStrings 返回所有string值, 有非string值时报错
func (e *Element) GetStrings() ([]string, error) { return all[string](e, "string") }

func (e *Element) GetUint32s() ([]uint32, error) { return all[uint32](e, "uint32") }

func (e *Element) MustGetUint32s() []uint32 { return must(e.GetUint32s()) }

func (e *Element) GetUint16s() ([]uint16, error) { return all[uint16](e, "uint16") }

func (e *Element) MustGetUint16s() []uint16 { return must(e.GetUint16s()) }

func writeElementString(b *strings.Builder, e *Element, depth int) {
	dicomio.DoAssert(depth < 10, "element nested too deep")
	indent := strings.Repeat(" ", depth)
	vl := ""
	if e.UndefinedLength {
		vl = "u"
	}
	fmt.Fprintf(b, "%s %s %s %s ", indent, dicomtag.DebugString(e.Tag), e.VR, vl)

	if e.VR == dicomtag.SQ || e.Tag.Equals(dicomtag.Item) {
		fmt.Fprintf(b, " (#%d)[\n", len(e.Value))
		for _, v := range e.Value {
			writeElementString(b, v.(*Element), depth+1)
			b.WriteString("\n")
		}
		b.WriteString(indent + " ]")
		return
	}

	sv := fmt.Sprintf("%v", e.Value)
	if len(e.Value) != 1 {
		sv = fmt.Sprintf("(%d)%s", len(e.Value), sv)
	}
	if len(sv) > 1024 {
		sv = sv[1:1024] + "(...)"
	}
	b.WriteString(sv)
}

func (e *Element) String() string {
	var b strings.Builder
	writeElementString(&b, e, 0)
	return b.String()
}

// decodeValue 将reader交付的value buffer (非文本VR已是native byte order)
// 转换成 Element.Value
func decodeValue(tag dicomtag.Tag, vr dicomtag.VR, data []byte, cs dicomio.CodingSystem) ([]interface{}, error) {
	order := dicomio.NativeByteOrder
	var values []interface{}

	switch dicomtag.GetVRKind(tag, vr) {
	case dicomtag.VRPixelData:
		// defined length, 即非压缩的 pixel data
		return []interface{}{PixelDataInfo{Frames: [][]byte{data}}}, nil
	case dicomtag.VRBytes:
		return []interface{}{data}, nil
	case dicomtag.VRDate:
		// TODO validate the date against PS3.5 6.2 (YYYYMMDD).
		return []interface{}{strings.Trim(string(data), " \000")}, nil
	case dicomtag.VRTagList:
		// (2byte group, 2byte elem)
		for i := 0; i+4 <= len(data); i += 4 {
			values = append(values, dicomtag.Tag{Group: order.Uint16(data[i:]), Element: order.Uint16(data[i+2:])})
		}
	case dicomtag.VRString:
		s, err := dicomio.DecodeString(data, cs, dicomio.IdeographicCodingSystem)
		if err != nil {
			return nil, err
		}
		return []interface{}{strings.TrimRight(s, " \000")}, nil
	case dicomtag.VRUInt16List:
		for i := 0; i+2 <= len(data); i += 2 {
			values = append(values, order.Uint16(data[i:]))
		}
	case dicomtag.VRInt16List:
		for i := 0; i+2 <= len(data); i += 2 {
			values = append(values, int16(order.Uint16(data[i:])))
		}
	case dicomtag.VRUInt32List:
		for i := 0; i+4 <= len(data); i += 4 {
			values = append(values, order.Uint32(data[i:]))
		}
	case dicomtag.VRInt32List:
		for i := 0; i+4 <= len(data); i += 4 {
			values = append(values, int32(order.Uint32(data[i:])))
		}
	case dicomtag.VRFloat32List:
		for i := 0; i+4 <= len(data); i += 4 {
			values = append(values, math.Float32frombits(order.Uint32(data[i:])))
		}
	case dicomtag.VRFloat64List:
		for i := 0; i+8 <= len(data); i += 8 {
			values = append(values, math.Float64frombits(order.Uint64(data[i:])))
		}
	case dicomtag.VRStringList:
		csType := dicomio.IdeographicCodingSystem
		if vr == dicomtag.PN {
			csType = dicomio.AlphabeticCodingSystem
		}
		v, err := dicomio.DecodeString(data, cs, csType)
		if err != nil {
			return nil, err
		}
		// String may have '\0' suffix if its length is odd.
		str := strings.Trim(v, " \000")
		if len(str) > 0 {
			for _, s := range strings.Split(str, "\\") {
				values = append(values, s)
			}
		}
	default:
		return nil, fmt.Errorf("%s: VR %s carries no value", dicomtag.DebugString(tag), vr)
	}
	return values, nil
}

// metaGroupEnd is the first tag after the file meta information group.
var metaGroupEnd = dicomtag.Tag{Group: 0x0003, Element: 0x0000}

// requireBlocking waits until n bytes are available. On a growable source
// it blocks until enough bytes were added or the source was finished.
func requireBlocking(source dicomio.ByteSource, n uint32) error {
	for {
		wake := make(chan struct{}, 1)
		var cont dicomio.Continuation
		if source.CanGrow() {
			cont = func(dicomio.ByteSource) { wake <- struct{}{} }
		}
		ok, err := source.Require(n, cont)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		<-wake
	}
}

// readPreamble 跳过128 bytes前言 并检查 magic word "DICM"
func readPreamble(source dicomio.ByteSource) error {
	if err := requireBlocking(source, 132); err != nil {
		return err
	}
	source.Skip(128)
	if s := string(source.GetBytes(4)); s != "DICM" {
		// bom头没找到DICM
		return errors.New("keyword 'DICM' not found in the header")
	}
	return nil
}

// ParseFileHeader从Dicom文件读取DICOM头和元数据(element的tag group == 2的)
// source停在meta group之后的第一个tag
func ParseFileHeader(source dicomio.ByteSource) ([]*Element, error) {
	source.SetEndian(binary.LittleEndian)
	if err := readPreamble(source); err != nil {
		return nil, err
	}

	builder := NewDataSetBuilder()
	reader := NewReader(WithExplicitVR(true))
	if _, err := reader.Read(source, builder, &metaGroupEnd); err != nil {
		return nil, err
	}

	metaElems := builder.DataSet().Elements
	if len(metaElems) == 0 {
		return nil, errors.New("No data element found")
	}
	if !metaElems[0].Tag.Equals(dicomtag.FileMetaInformationGroupLength) {
		logrus.Warnf("dicom.ParseFileHeader: MetaElementGroupLength not found; instead found %s", metaElems[0].Tag.String())
	}
	return metaElems, builder.Err()
}

// readDataSet reads a whole DICOM file from source: header, meta group and
// the data set in the transfer syntax the meta group names.
func readDataSet(source dicomio.ByteSource, options ReadOptions) (*DataSet, error) {
	metaElements, err := ParseFileHeader(source)
	if err != nil {
		return nil, err
	}
	file := &DataSet{Elements: metaElements}

	// 改变剩余文件的 transfer syntax
	transferSyntaxUID, err := getTransferSyntaxUID(file)
	if err != nil {
		return nil, err
	}
	if transferSyntaxUID == dicomuid.DeflatedExplicitVRLittleEndian {
		return file, fmt.Errorf("%s: deflated data sets are not supported", transferSyntaxUID)
	}
	reader, endian, err := NewReaderForTransferSyntax(transferSyntaxUID)
	if err != nil {
		return nil, err
	}
	source.SetEndian(endian)

	builder := NewDataSetBuilder()
	var observer Observer = builder
	if options.ReturnTags != nil {
		patterns := make([]string, 0, len(options.ReturnTags))
		for _, t := range options.ReturnTags {
			patterns = append(patterns, dicomtag.Tag{Group: t.Group, Element: t.Element}.String())
		}
		filter, err := NewTagFilter(builder, patterns...)
		if err != nil {
			return nil, err
		}
		observer = filter
	}

	stop := options.StopAtTag
	if options.DropPixelData && (stop == nil || dicomtag.PixelData.Compare(*stop) < 0) {
		stop = &dicomtag.PixelData
	}

	_, err = reader.Read(source, observer, stop)
	file.Elements = append(file.Elements, builder.DataSet().Elements...)
	if err == nil {
		err = builder.Err()
	}
	return file, err
}

// ReadDataSet用io读取dicom file
// 当读取错误时，这个函数可能会返回部分可读取文件和读取时发现的第一个错误
func ReadDataSet(in io.Reader, options ReadOptions) (*DataSet, error) {
	return readDataSet(dicomio.NewStreamSource(in, dicomio.WithByteOrder(binary.LittleEndian)), options)
}

func ReadDataSetInBytes(data []byte, options ReadOptions) (*DataSet, error) {
	return ReadDataSet(bytes.NewReader(data), options)
}

// ReadDataSetFromFile 读取文件内容到 DataSet.
// 如果读取失败，会返回一个非空dataset和一个非空error，当出现错误时
// dataset会包含一部分可以读取的文件，error里会包含读取时的第一个错误
func ReadDataSetFromFile(path string, options ReadOptions) (*DataSet, error) {

	source, err := dicomio.NewFileSource(path, dicomio.WithByteOrder(binary.LittleEndian))
	if err != nil {
		return nil, err
	}

	ds, err := readDataSet(source, options)
	if e := source.Close(); e != nil && err == nil {
		err = e
	}

	return ds, err
}

// TransferSyntaxUID returns the value of (0002,0010).
func (f *DataSet) TransferSyntaxUID() (string, error) {
	return getTransferSyntaxUID(f)
}

func getTransferSyntaxUID(ds *DataSet) (string, error) {

	elem, err := ds.FindElementByTag(dicomtag.TransferSyntaxUID)
	if err != nil {
		return "", err
	}

	transferSyntaxUID, err := elem.GetString()
	if err != nil {
		return "", err
	}

	// UI values are padded with NUL
	return strings.TrimRight(transferSyntaxUID, "\000"), nil
}

// FindElementByName 寻找指定name的element
// 如“PatientName”
func (f *DataSet) FindElementByName(name string) (*Element, error) {

	return FindElementByName(f.Elements, name)
}

// FindElementByTag finds an element from the dataset given its tag, such as
// Tag{0x0010, 0x0010}.
func (f *DataSet) FindElementByTag(tag dicomtag.Tag) (*Element, error) {
	return FindElementByTag(f.Elements, tag)
}

// FindElementByName finds an element with the given keyword in
// "elements" If not found, return an error
func FindElementByName(elems []*Element, name string) (*Element, error) {
	t, err := dicomtag.FindByName(name)
	if err != nil {
		return nil, err
	}

	for _, elem := range elems {
		if elem.Tag.Equals(t.Tag) {
			return elem, nil
		}
	}

	return nil, fmt.Errorf("could not find element named '%s' in dicom file", name)
}

// FindElementByTag finds an element with the given Element.Tag in
// "elements" If not found, returns an error.
func FindElementByTag(elems []*Element, tag dicomtag.Tag) (*Element, error) {

	for _, elem := range elems {
		if elem.Tag.Equals(tag) {
			return elem, nil
		}
	}

	return nil, fmt.Errorf("%s: element not found", dicomtag.DebugString(tag))
}
