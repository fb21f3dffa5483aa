package dicom_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dicom "github.com/odincare/dcmstream"
	"github.com/odincare/dcmstream/dicomio"
	"github.com/odincare/dcmstream/dicomlog"
	"github.com/odincare/dcmstream/dicomtag"
	"github.com/odincare/dcmstream/dicomuid"
)

func TestMain(m *testing.M) {
	// 只保留warning以上
	dicomlog.SetLevel(0)
	os.Exit(m.Run())
}

func readBytes(t *testing.T, data []byte, opts ...dicom.ReaderOption) (*recorder, dicom.Status, error) {
	t.Helper()
	rec := &recorder{}
	src := dicomio.NewBytesSource(data, dicomio.WithByteOrder(binary.LittleEndian))
	status, err := dicom.NewReader(opts...).Read(src, rec, nil)
	return rec, status, err
}

func TestRead_MinimalDataSet(t *testing.T) {
	e := explicitLE()
	writeText(e, dicomtag.PatientName, dicomtag.PN, "Doe^John")
	writeUS(e, dicomtag.Rows, 512)

	rec, status, err := readBytes(t, e.Bytes())
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)
	require.Equal(t, []string{
		textEvent(dicomtag.PatientName, dicomtag.PN, "Doe^John"),
		elementEvent(dicomtag.Rows, dicomtag.US, native16(512)),
	}, rec.events)
}

func TestRead_EmptySource(t *testing.T) {
	rec, status, err := readBytes(t, nil)
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)
	require.Empty(t, rec.events)
}

func TestRead_Sequences(t *testing.T) {
	rec, status, err := readBytes(t, sequenceStream())
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)
	require.Equal(t, joinEvents(sequenceStreamEvents()), joinEvents(rec.events))
}

func TestRead_NestedDefinedLengthSequences(t *testing.T) {
	inner := explicitLE()
	writeText(inner, dicomtag.CodeValue, dicomtag.SH, "T-04")
	innerItem := inner.Bytes()

	outer := explicitLE()
	dicom.WriteElementHeader(outer, dicomtag.ReferencedImageSequence, dicomtag.SQ, uint32(8+len(innerItem)))
	writeDelimiter(outer, dicomtag.Item, uint32(len(innerItem)))
	outer.WriteBytes(innerItem)
	outerItem := outer.Bytes()

	e := explicitLE()
	dicom.WriteElementHeader(e, dicomtag.ReferencedImageSequence, dicomtag.SQ, uint32(8+len(outerItem)))
	writeDelimiter(e, dicomtag.Item, uint32(len(outerItem)))
	e.WriteBytes(outerItem)
	// 两个item
	writeText(e, dicomtag.Modality, dicomtag.CS, "CT")

	rec, status, err := readBytes(t, e.Bytes())
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)
	require.Equal(t, []string{
		"begin sequence (0008,1140) 40",
		"begin item 32",
		"begin sequence (0008,1140) 20",
		"begin item 12",
		textEvent(dicomtag.CodeValue, dicomtag.SH, "T-04"),
		"end item",
		"end sequence",
		"end item",
		"end sequence",
		textEvent(dicomtag.Modality, dicomtag.CS, "CT"),
	}, rec.events)
}

func TestRead_EmptySequences(t *testing.T) {
	e := explicitLE()
	dicom.WriteElementHeader(e, dicomtag.ReferencedImageSequence, dicomtag.SQ, 0)
	dicom.WriteElementHeader(e, otherPatientNamesSequence, dicomtag.SQ, dicom.UndefinedLength)
	writeDelimiter(e, dicomtag.SequenceDelimitationItem, 0)
	writeText(e, dicomtag.Modality, dicomtag.CS, "MR")

	rec, status, err := readBytes(t, e.Bytes())
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)
	require.Equal(t, []string{
		"begin sequence (0008,1140) 0",
		"end sequence",
		"begin sequence (0010,1001) u/l",
		"end sequence",
		textEvent(dicomtag.Modality, dicomtag.CS, "MR"),
	}, rec.events)
}

func TestRead_SequenceEndsAtNonItemTag(t *testing.T) {
	e := explicitLE()
	dicom.WriteElementHeader(e, otherPatientNamesSequence, dicomtag.SQ, dicom.UndefinedLength)
	writeText(e, dicomtag.PatientID, dicomtag.LO, "12")

	rec, status, err := readBytes(t, e.Bytes())
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)
	require.Equal(t, []string{
		"begin sequence (0010,1001) u/l",
		"end sequence",
		textEvent(dicomtag.PatientID, dicomtag.LO, "12"),
	}, rec.events)
}

func TestRead_StrayItemDelimiterAtRoot(t *testing.T) {
	e := explicitLE()
	writeDelimiter(e, dicomtag.ItemDelimitationItem, 0)
	writeText(e, dicomtag.PatientID, dicomtag.LO, "12")

	rec, status, err := readBytes(t, e.Bytes())
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)
	require.Equal(t, []string{textEvent(dicomtag.PatientID, dicomtag.LO, "12")}, rec.events)
}

func TestRead_Fragments(t *testing.T) {
	e := explicitLE()
	dicom.WriteFragments(e, dicomtag.PixelData, dicomtag.OB, []uint32{0, 6}, [][]byte{{1, 2, 3, 4, 5, 6}, {7, 8}})

	rec, status, err := readBytes(t, e.Bytes())
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)

	// offset table按32位转换为native byte order
	table := make([]byte, 8)
	dicomio.NativeByteOrder.PutUint32(table, 0)
	dicomio.NativeByteOrder.PutUint32(table[4:], 6)
	require.Equal(t, []string{
		"begin fragments (7fe0,0010) OB",
		"fragment " + hex.EncodeToString(table),
		"fragment 010203040506",
		"fragment 0708",
		"end fragments",
	}, rec.events)
}

func TestRead_UnexpectedTagInFragments(t *testing.T) {
	e := explicitLE()
	dicom.WriteElementHeader(e, dicomtag.PixelData, dicomtag.OB, dicom.UndefinedLength)
	writeDelimiter(e, dicomtag.Item, 0)
	writeText(e, dicomtag.PatientID, dicomtag.LO, "12")

	rec, status, err := readBytes(t, e.Bytes())
	require.Equal(t, dicom.StatusError, status)
	require.EqualError(t, err, "Unexpected tag in DICOM fragment sequence: (0010,0020)")
	require.True(t, errors.Is(err, dicom.ErrUnexpectedTag))

	var perr *dicom.ParseError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, dicomtag.PatientID, perr.Tag)
	// 12 bytes header + 8 bytes empty offset table
	require.EqualValues(t, 20, perr.Offset)

	require.Equal(t, []string{"begin fragments (7fe0,0010) OB", "fragment "}, rec.events)
}

func TestRead_StopTag(t *testing.T) {
	e := explicitLE()
	writeText(e, dicomtag.PatientName, dicomtag.PN, "Doe^John")
	writeUS(e, dicomtag.Rows, 512)
	writeUS(e, dicomtag.Columns, 256)
	data := e.Bytes()

	src := dicomio.NewBytesSource(data, dicomio.WithByteOrder(binary.LittleEndian))
	r := dicom.NewReader()
	rec := &recorder{}
	stop := dicomtag.Tag{Group: 0x0028, Element: 0x0000}
	status, err := r.Read(src, rec, &stop)
	require.NoError(t, err)
	require.Equal(t, dicom.StatusStopped, status)
	require.Equal(t, dicom.StatusStopped, r.Status())
	require.Equal(t, []string{textEvent(dicomtag.PatientName, dicomtag.PN, "Doe^John")}, rec.events)
	// stop tag本身没有被消费
	require.EqualValues(t, 16, src.Position())
	require.Equal(t, src.Marker(), src.Position())

	// 同一个reader可以从停下的位置继续
	rec = &recorder{}
	status, err = r.Read(src, rec, &dicomtag.Columns)
	require.NoError(t, err)
	require.Equal(t, dicom.StatusStopped, status)
	require.Equal(t, []string{elementEvent(dicomtag.Rows, dicomtag.US, native16(512))}, rec.events)

	rec = &recorder{}
	status, err = r.Read(src, rec, nil)
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)
	require.Equal(t, []string{elementEvent(dicomtag.Columns, dicomtag.US, native16(256))}, rec.events)
}

// nestedStopStream has Rows inside a defined length item, followed by a root
// level Modality.
func nestedStopStream() []byte {
	inner := explicitLE()
	writeText(inner, dicomtag.ReferencedSOPInstanceUID, dicomtag.UI, "1.2.34")
	writeUS(inner, dicomtag.Rows, 7)
	item := inner.Bytes()

	e := explicitLE()
	dicom.WriteElementHeader(e, dicomtag.ReferencedImageSequence, dicomtag.SQ, uint32(8+len(item)))
	writeDelimiter(e, dicomtag.Item, uint32(len(item)))
	e.WriteBytes(item)
	writeText(e, dicomtag.Modality, dicomtag.CS, "CT")
	return e.Bytes()
}

func TestRead_StopInsideItemResumes(t *testing.T) {
	src := dicomio.NewBytesSource(nestedStopStream(), dicomio.WithByteOrder(binary.LittleEndian))
	r := dicom.NewReader()

	rec := &recorder{}
	status, err := r.Read(src, rec, &dicomtag.Rows)
	require.NoError(t, err)
	require.Equal(t, dicom.StatusStopped, status)
	require.Equal(t, []string{
		"begin sequence (0008,1140) 32",
		"begin item 24",
		textEvent(dicomtag.ReferencedSOPInstanceUID, dicomtag.UI, "1.2.34"),
	}, rec.events)

	// 继续时先结束停下时打开的item和sequence
	rec = &recorder{}
	status, err = r.Read(src, rec, nil)
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)
	require.Equal(t, []string{
		elementEvent(dicomtag.Rows, dicomtag.US, native16(7)),
		"end item",
		"end sequence",
		textEvent(dicomtag.Modality, dicomtag.CS, "CT"),
	}, rec.events)
	require.True(t, src.IsEOF())
}

func TestRead_StopInsideItemThenOtherSource(t *testing.T) {
	src := dicomio.NewBytesSource(nestedStopStream(), dicomio.WithByteOrder(binary.LittleEndian))
	r := dicom.NewReader()
	status, err := r.Read(src, nil, &dicomtag.Rows)
	require.NoError(t, err)
	require.Equal(t, dicom.StatusStopped, status)

	other := explicitLE()
	writeText(other, dicomtag.PatientID, dicomtag.LO, "12")
	rec := &recorder{}
	status, err = r.Read(dicomio.NewBytesSource(other.Bytes(), dicomio.WithByteOrder(binary.LittleEndian)), rec, nil)
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)
	require.Equal(t, []string{textEvent(dicomtag.PatientID, dicomtag.LO, "12")}, rec.events)

	// 打开的scope已被丢弃, 它们的milestone也不再限制src
	rec = &recorder{}
	status, err = r.Read(src, rec, nil)
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)
	require.Equal(t, []string{
		elementEvent(dicomtag.Rows, dicomtag.US, native16(7)),
		textEvent(dicomtag.Modality, dicomtag.CS, "CT"),
	}, rec.events)
}

func TestRead_StopTagIgnoresDelimiters(t *testing.T) {
	rec := &recorder{}
	src := dicomio.NewBytesSource(sequenceStream(), dicomio.WithByteOrder(binary.LittleEndian))
	status, err := dicom.NewReader().Read(src, rec, &dicomtag.PixelData)
	require.NoError(t, err)
	require.Equal(t, dicom.StatusStopped, status)

	want := sequenceStreamEvents()
	require.Equal(t, joinEvents(want[:len(want)-4]), joinEvents(rec.events))
}

func TestRead_Truncated(t *testing.T) {
	e := explicitLE()
	writeText(e, dicomtag.PatientID, dicomtag.LO, "12")
	dicom.WriteElementHeader(e, dicomtag.PatientName, dicomtag.PN, 8)
	e.WriteString("Doe^")
	data := e.Bytes()

	t.Run("bytes", func(t *testing.T) {
		rec, status, err := readBytes(t, data)
		require.Equal(t, dicom.StatusError, status)
		require.EqualError(t, err, "Requested 8 bytes past end of byte source.")
		require.True(t, errors.Is(err, dicomio.ErrPastEnd))
		require.Len(t, rec.events, 1)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "truncated.bin")
		require.NoError(t, os.WriteFile(path, data, 0o600))
		src, err := dicomio.NewFileSource(path, dicomio.WithByteOrder(binary.LittleEndian))
		require.NoError(t, err)
		defer src.Close()

		status, err := dicom.NewReader().Read(src, nil, nil)
		require.Equal(t, dicom.StatusError, status)
		require.EqualError(t, err, "Requested 8 bytes past end of file.")
	})

	t.Run("stream", func(t *testing.T) {
		src := dicomio.NewStreamSource(bytes.NewReader(data), dicomio.WithByteOrder(binary.LittleEndian))
		status, err := dicom.NewReader().Read(src, nil, nil)
		require.Equal(t, dicom.StatusError, status)
		require.EqualError(t, err, "Requested 8 bytes past end of fixed length stream.")
	})

	t.Run("truncated tag", func(t *testing.T) {
		_, status, err := readBytes(t, data[:12])
		require.Equal(t, dicom.StatusError, status)
		require.EqualError(t, err, "Requested 4 bytes past end of byte source.")
	})
}

// feedByteByByte starts a read over an empty BufferSource and adds data one
// byte at a time.
func feedByteByByte(t *testing.T, r *dicom.Reader, data []byte, stop *dicomtag.Tag) (*recorder, dicom.Result) {
	t.Helper()
	rec := &recorder{}
	src := dicomio.NewBufferSource(dicomio.WithByteOrder(binary.LittleEndian))
	ar := r.BeginRead(src, rec, stop, nil)
	// 之后的parse都在Add里同步进行
	require.Eventually(t, func() bool { return r.Status() == dicom.StatusSuspended }, 5*time.Second, time.Millisecond)
	for i := range data {
		if ar.IsCompleted() {
			break
		}
		require.NoError(t, src.Add(data[i:i+1]))
	}
	src.Finish()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := ar.Wait(ctx)
	require.NoError(t, err)
	return rec, res
}

func TestRead_IncrementalMatchesSync(t *testing.T) {
	data := sequenceStream()
	sync, status, err := readBytes(t, data)
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)

	async, res := feedByteByByte(t, dicom.NewReader(), data, nil)
	require.NoError(t, res.Err())
	require.Equal(t, dicom.StatusSuccess, res.Status())
	require.Equal(t, joinEvents(sync.events), joinEvents(async.events))
}

func TestRead_IncrementalChunks(t *testing.T) {
	data := sequenceStream()
	for _, chunk := range []int{2, 3, 7, 64} {
		rec := &recorder{}
		src := dicomio.NewBufferSource(dicomio.WithByteOrder(binary.LittleEndian))
		r := dicom.NewReader()
		done := make(chan *dicom.AsyncResult, 1)
		r.BeginRead(src, rec, nil, func(ar *dicom.AsyncResult) { done <- ar })
		for i := 0; i < len(data); i += chunk {
			end := i + chunk
			if end > len(data) {
				end = len(data)
			}
			require.NoError(t, src.Add(data[i:end]))
		}
		src.Finish()

		select {
		case ar := <-done:
			status, err := r.EndRead(ar)
			require.NoError(t, err, "chunk %d", chunk)
			require.Equal(t, dicom.StatusSuccess, status)
		case <-time.After(10 * time.Second):
			t.Fatalf("chunk %d: read did not finish", chunk)
		}
		require.Equal(t, joinEvents(sequenceStreamEvents()), joinEvents(rec.events), "chunk %d", chunk)
	}
}

func TestRead_IncrementalTruncated(t *testing.T) {
	data := sequenceStream()
	rec, res := feedByteByByte(t, dicom.NewReader(), data[:len(data)-3], nil)
	require.Equal(t, dicom.StatusError, res.Status())
	require.EqualError(t, res.Err(), "Requested 8 bytes past end of byte source.")
	require.Equal(t, "Error: Requested 8 bytes past end of byte source.", res.String())
	require.NotEmpty(t, rec.events)
}

func TestRead_IncrementalStop(t *testing.T) {
	rec, res := feedByteByByte(t, dicom.NewReader(), sequenceStream(), &dicomtag.Rows)
	require.Equal(t, dicom.StatusStopped, res.Status())
	want := sequenceStreamEvents()
	require.Equal(t, joinEvents(want[:len(want)-5]), joinEvents(rec.events))
}

func TestRead_SuspendedStatus(t *testing.T) {
	r := dicom.NewReader()
	src := dicomio.NewBufferSource(dicomio.WithByteOrder(binary.LittleEndian))
	ar := r.BeginRead(src, nil, nil, nil)

	require.Eventually(t, func() bool { return r.Status() == dicom.StatusSuspended }, 5*time.Second, time.Millisecond)
	require.False(t, ar.IsCompleted())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := ar.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// 第二个read被拒绝, 第一个不受影响
	busy := r.BeginRead(dicomio.NewBytesSource(nil), nil, nil, nil)
	require.True(t, busy.IsCompleted())
	require.ErrorIs(t, busy.Result().Err(), dicom.ErrReaderBusy)
	require.False(t, ar.IsCompleted())

	src.Finish()
	status, err := r.EndRead(ar)
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)
	require.Equal(t, dicom.StatusSuccess, r.Status())
}

func TestRead_Callback(t *testing.T) {
	e := explicitLE()
	writeText(e, dicomtag.PatientID, dicomtag.LO, "12")
	r := dicom.NewReader()

	called := make(chan dicom.Result, 1)
	ar := r.BeginRead(dicomio.NewBytesSource(e.Bytes(), dicomio.WithByteOrder(binary.LittleEndian)), nil, nil, func(ar *dicom.AsyncResult) {
		called <- ar.Result()
	})
	<-ar.Done()
	select {
	case res := <-called:
		require.True(t, res.IsSuccess())
	case <-time.After(5 * time.Second):
		t.Fatal("callback not called")
	}
}

func TestRead_ImplicitVR(t *testing.T) {
	e := implicitLE()
	writeRaw(e, dicomtag.Tag{Group: 0x0008, Element: 0x9999}, dicomtag.UN, []byte{1, 2})
	writeRaw(e, dicomtag.Tag{Group: 0x0010, Element: 0x0000}, dicomtag.UN, []byte{0x10, 0, 0, 0})
	writeText(e, dicomtag.PatientName, dicomtag.PN, "Doe^John")
	writeUS(e, dicomtag.Rows, 512)
	writeRaw(e, dicomtag.Tag{Group: 0x6000, Element: 0x3000}, dicomtag.UN, []byte{1, 2, 3, 4})
	writeText(e, dicomtag.Tag{Group: 0x0029, Element: 0x0010}, dicomtag.UN, "SIEMENS CSA HEADER")
	writeRaw(e, dicomtag.Tag{Group: 0x0029, Element: 0x1010}, dicomtag.UN, []byte{1, 2, 3, 4})

	rec, status, err := readBytes(t, e.Bytes(), dicom.WithExplicitVR(false))
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)

	groupLength := make([]byte, 4)
	dicomio.NativeByteOrder.PutUint32(groupLength, 0x10)
	overlay := []byte{1, 2, 3, 4}
	dicomio.ToNativeEndian(overlay, binary.LittleEndian, 2)
	require.Equal(t, []string{
		elementEvent(dicomtag.Tag{Group: 0x0008, Element: 0x9999}, dicomtag.UN, []byte{1, 2}),
		elementEvent(dicomtag.Tag{Group: 0x0010, Element: 0x0000}, dicomtag.UL, groupLength),
		textEvent(dicomtag.PatientName, dicomtag.PN, "Doe^John"),
		elementEvent(dicomtag.Rows, dicomtag.US, native16(512)),
		// OB/OW读作OW
		elementEvent(dicomtag.Tag{Group: 0x6000, Element: 0x3000}, dicomtag.OW, overlay),
		textEvent(dicomtag.Tag{Group: 0x0029, Element: 0x0010}, dicomtag.LO, "SIEMENS CSA HEADER"),
		elementEvent(dicomtag.Tag{Group: 0x0029, Element: 0x1010, Creator: "SIEMENS CSA HEADER"}, dicomtag.OB, []byte{1, 2, 3, 4}),
	}, rec.events)
}

func TestRead_ImplicitUndefinedLengthIsSequence(t *testing.T) {
	private := dicomtag.Tag{Group: 0x0011, Element: 0x1001}
	e := implicitLE()
	dicom.WriteElementHeader(e, private, dicomtag.UN, dicom.UndefinedLength)
	writeDelimiter(e, dicomtag.Item, dicom.UndefinedLength)
	writeText(e, dicomtag.PatientID, dicomtag.LO, "12")
	writeDelimiter(e, dicomtag.ItemDelimitationItem, 0)
	writeDelimiter(e, dicomtag.SequenceDelimitationItem, 0)

	rec, status, err := readBytes(t, e.Bytes(), dicom.WithExplicitVR(false))
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)
	require.Equal(t, []string{
		"begin sequence (0011,1001) u/l",
		"begin item u/l",
		textEvent(dicomtag.PatientID, dicomtag.LO, "12"),
		"end item",
		"end sequence",
	}, rec.events)
}

func TestRead_PrivateSequenceWithoutItemsIsUN(t *testing.T) {
	e := explicitLE()
	writeText(e, dicomtag.Tag{Group: 0x0009, Element: 0x0010}, dicomtag.LO, "GEMS_IDEN_01")
	writeRaw(e, dicomtag.Tag{Group: 0x0009, Element: 0x1001}, dicomtag.SQ, []byte("abcd"))
	writeText(e, dicomtag.PatientID, dicomtag.LO, "12")

	rec, status, err := readBytes(t, e.Bytes())
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)
	require.Equal(t, []string{
		textEvent(dicomtag.Tag{Group: 0x0009, Element: 0x0010}, dicomtag.LO, "GEMS_IDEN_01"),
		textEvent(dicomtag.Tag{Group: 0x0009, Element: 0x1001, Creator: "GEMS_IDEN_01"}, dicomtag.UN, "abcd"),
		textEvent(dicomtag.PatientID, dicomtag.LO, "12"),
	}, rec.events)
}

func TestRead_PrivateSequenceInOtherVRConvention(t *testing.T) {
	creator := dicomtag.Tag{Group: 0x0009, Element: 0x0010}
	private := dicomtag.Tag{Group: 0x0009, Element: 0x1002}

	e := explicitLE()
	writeText(e, creator, dicomtag.LO, "ACME")
	dicom.WriteElementHeader(e, private, dicomtag.SQ, dicom.UndefinedLength)
	writeDelimiter(e, dicomtag.Item, dicom.UndefinedLength)
	// item内容按implicit VR编码
	e.PushTransferSyntax(binary.LittleEndian, dicomio.ImplicitVR)
	writeText(e, dicomtag.PatientName, dicomtag.PN, "AB^C")
	e.PopTransferSyntax()
	writeDelimiter(e, dicomtag.ItemDelimitationItem, 0)
	writeDelimiter(e, dicomtag.SequenceDelimitationItem, 0)
	writeUS(e, dicomtag.Rows, 512)

	rec, status, err := readBytes(t, e.Bytes())
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)
	require.Equal(t, []string{
		textEvent(creator, dicomtag.LO, "ACME"),
		"begin sequence (0009,1002:ACME) u/l",
		"begin item u/l",
		textEvent(dicomtag.PatientName, dicomtag.PN, "AB^C"),
		"end item",
		"end sequence",
		elementEvent(dicomtag.Rows, dicomtag.US, native16(512)),
	}, rec.events)
}

func TestRead_PrivateCreatorsPersistAcrossReads(t *testing.T) {
	first := explicitLE()
	writeText(first, dicomtag.Tag{Group: 0x0029, Element: 0x0011}, dicomtag.LO, "SIEMENS CSA HEADER")
	second := explicitLE()
	writeRaw(second, dicomtag.Tag{Group: 0x0029, Element: 0x1108}, dicomtag.CS, []byte("IMAGE NUM 4 "))

	r := dicom.NewReader()
	_, err := r.Read(dicomio.NewBytesSource(first.Bytes(), dicomio.WithByteOrder(binary.LittleEndian)), nil, nil)
	require.NoError(t, err)

	rec := &recorder{}
	_, err = r.Read(dicomio.NewBytesSource(second.Bytes(), dicomio.WithByteOrder(binary.LittleEndian)), rec, nil)
	require.NoError(t, err)
	require.Equal(t, []string{
		textEvent(dicomtag.Tag{Group: 0x0029, Element: 0x1108, Creator: "SIEMENS CSA HEADER"}, dicomtag.CS, "IMAGE NUM 4 "),
	}, rec.events)
}

func TestRead_BigEndian(t *testing.T) {
	e := newEncoder(binary.BigEndian, dicomio.ExplicitVR)
	writeUS(e, dicomtag.Rows, 512)
	writeText(e, dicomtag.PatientID, dicomtag.LO, "12")

	r, order, err := dicom.NewReaderForTransferSyntax(dicomuid.ExplicitVRBigEndian)
	require.NoError(t, err)
	require.Equal(t, binary.BigEndian, order)
	require.True(t, r.IsExplicitVR())

	rec := &recorder{}
	status, err := r.Read(dicomio.NewBytesSource(e.Bytes(), dicomio.WithByteOrder(order)), rec, nil)
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)
	require.Equal(t, []string{
		elementEvent(dicomtag.Rows, dicomtag.US, native16(512)),
		textEvent(dicomtag.PatientID, dicomtag.LO, "12"),
	}, rec.events)
}

func TestReaderOptions(t *testing.T) {
	r, _, err := dicom.NewReaderForTransferSyntax(dicomuid.ImplicitVRLittleEndian)
	require.NoError(t, err)
	require.False(t, r.IsExplicitVR())
	r.SetExplicitVR(true)
	require.True(t, r.IsExplicitVR())
	require.Same(t, dicomtag.DefaultDictionary(), r.Dictionary())

	_, _, err = dicom.NewReaderForTransferSyntax("1.2.3")
	require.Error(t, err)

	r = dicom.NewReader(dicom.WithTransferSyntax("1.2.3"))
	status, err := r.Read(dicomio.NewBytesSource(nil), nil, nil)
	require.Equal(t, dicom.StatusError, status)
	require.Error(t, err)

	dict := dicomtag.NewDictionary()
	r = dicom.NewReader(dicom.WithDictionary(dict), dicom.WithExplicitVR(false))
	require.Same(t, dict, r.Dictionary())
	require.False(t, r.IsExplicitVR())
}

type panickingObserver struct {
	dicom.NopObserver
}

func (panickingObserver) OnElement(dicomio.ByteSource, dicomtag.Tag, dicomtag.VR, []byte) {
	panic("observer exploded")
}

func TestRead_ObserverPanic(t *testing.T) {
	e := explicitLE()
	writeText(e, dicomtag.PatientID, dicomtag.LO, "12")

	r := dicom.NewReader()
	status, err := r.Read(dicomio.NewBytesSource(e.Bytes(), dicomio.WithByteOrder(binary.LittleEndian)), panickingObserver{}, nil)
	require.Equal(t, dicom.StatusError, status)
	require.ErrorContains(t, err, "observer exploded")

	// reader可以复用
	status, err = r.Read(dicomio.NewBytesSource(e.Bytes(), dicomio.WithByteOrder(binary.LittleEndian)), nil, nil)
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)
}

func TestRead_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := dicom.NewReaderMetrics(reg)
	require.NoError(t, err)

	data := sequenceStream()
	_, status, err := readBytes(t, data, dicom.WithMetrics(m))
	require.NoError(t, err)
	require.Equal(t, dicom.StatusSuccess, status)

	assert.Equal(t, 5.0, testutil.ToFloat64(m.Elements))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Sequences))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Items))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Fragments))
	assert.Equal(t, float64(len(data)), testutil.ToFloat64(m.BytesConsumed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReadsTotal.WithLabelValues("Success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Suspensions))

	_, res := feedByteByByte(t, dicom.NewReader(dicom.WithMetrics(m)), data, nil)
	require.True(t, res.IsSuccess())
	assert.Greater(t, testutil.ToFloat64(m.Suspensions), 10.0)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReadsTotal.WithLabelValues("Success")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ReadDuration))

	// 重复注册失败
	_, err = dicom.NewReaderMetrics(reg)
	require.Error(t, err)

	unregistered, err := dicom.NewReaderMetrics(nil)
	require.NoError(t, err)
	require.NotNil(t, unregistered)
}

func TestResult(t *testing.T) {
	require.True(t, dicom.Processing().IsBusy())
	require.True(t, dicom.Suspended().IsBusy())
	require.False(t, dicom.Success().IsBusy())
	require.True(t, dicom.Success().IsSuccess())
	require.False(t, dicom.Stopped().IsSuccess())
	require.Equal(t, "Stopped", dicom.Stopped().Message())
	require.Equal(t, "Suspended", dicom.Suspended().String())

	boom := errors.New("boom")
	res := dicom.Failure(boom)
	require.Equal(t, dicom.StatusError, res.Status())
	require.Same(t, boom, res.Err())
	require.Equal(t, "boom", res.Message())
	require.Equal(t, "Error: boom", res.String())

	res = dicom.Failuref("bad tag %s", dicomtag.PixelData)
	require.Equal(t, "bad tag (7fe0,0010)", res.Message())
	require.False(t, res.IsBusy())
	require.Equal(t, "Status(42)", dicom.Status(42).String())
}
