package dicom_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	dicom "github.com/odincare/dcmstream"
	"github.com/odincare/dcmstream/dicomio"
	"github.com/odincare/dcmstream/dicomtag"
	"github.com/odincare/dcmstream/dicomuid"
)

// exampleFile writes a small explicit VR little endian file and returns its
// path.
func exampleFile(dir string) string {
	ds := &dicom.DataSet{Elements: []*dicom.Element{
		dicom.MustNewElement(dicomtag.MediaStorageSOPClassUID, dicomuid.SecondaryCaptureStorage),
		dicom.MustNewElement(dicomtag.MediaStorageSOPInstanceUID, "1.2.3.4.5"),
		dicom.MustNewElement(dicomtag.TransferSyntaxUID, dicomuid.ExplicitVRLittleEndian),
		dicom.MustNewElement(dicomtag.InstitutionName, "UCLA Medical Center"),
		dicom.MustNewElement(dicomtag.PatientName, "Doe^John"),
		dicom.MustNewElement(dicomtag.PatientID, "7DkT2Tp"),
		dicom.MustNewElement(dicomtag.PatientBirthDate, "19530828"),
		dicom.MustNewElement(dicomtag.StudyInstanceUID, "1.2.3.4"),
		dicom.MustNewElement(dicomtag.SeriesInstanceUID, "1.2.3.4.1"),
		dicom.MustNewElement(dicomtag.Rows, uint16(2)),
		dicom.MustNewElement(dicomtag.Columns, uint16(2)),
		dicom.MustNewElement(dicomtag.PixelData, dicom.PixelDataInfo{Frames: [][]byte{{1, 2, 3, 4}}}),
	}}
	path := filepath.Join(dir, "IM-0001-0001.dcm")
	if err := dicom.WriteDataSetToFile(path, ds); err != nil {
		log.Panic(err)
	}
	return path
}

func mustReadFile(path string, options dicom.ReadOptions) *dicom.DataSet {
	data, err := dicom.ReadDataSetFromFile(path, options)
	if err != nil {
		log.Panic(err)
	}
	return data
}

func Example_read() {
	dir, err := os.MkdirTemp("", "dcmstream")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	ds, err := dicom.ReadDataSetFromFile(exampleFile(dir), dicom.ReadOptions{})
	if err != nil {
		panic(err)
	}
	patientID, err := ds.FindElementByTag(dicomtag.PatientID)
	if err != nil {
		panic(err)
	}
	patientBirthDate, err := ds.FindElementByTag(dicomtag.PatientBirthDate)
	if err != nil {
		panic(err)
	}
	institutionName, err := ds.FindElementByTag(dicomtag.InstitutionName)
	if err != nil {
		panic(err)
	}
	fmt.Println("ID: " + patientID.String())
	fmt.Println("BirthDate: " + patientBirthDate.String())
	fmt.Println("InstitutionName: " + institutionName.String())
	// Output:
	// ID:  (0010,0020)[PatientID] LO  [7DkT2Tp]
	// BirthDate:  (0010,0030)[PatientBirthDate] DA  [19530828]
	// InstitutionName:  (0008,0080)[InstitutionName] LO  [UCLA Medical Center]
}

func Example_updateExistingFile() {
	dir, err := os.MkdirTemp("", "dcmstream")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	ds, err := dicom.ReadDataSetFromFile(exampleFile(dir), dicom.ReadOptions{})
	if err != nil {
		panic(err)
	}
	patientID, err := ds.FindElementByTag(dicomtag.PatientID)
	if err != nil {
		panic(err)
	}
	patientID.Value = []interface{}{"Zhang San"}

	var buf bytes.Buffer
	if err := dicom.WriteDataSet(&buf, ds); err != nil {
		panic(err)
	}
	ds2, err := dicom.ReadDataSet(&buf, dicom.ReadOptions{})
	if err != nil {
		panic(err)
	}
	patientID, err = ds2.FindElementByTag(dicomtag.PatientID)
	if err != nil {
		panic(err)
	}
	fmt.Println("ID: " + patientID.String())
	// Output:
	// ID:  (0010,0020)[PatientID] LO  [Zhang San]
}

// Example_incremental feeds a file to a BufferSource in small chunks while
// the reader parses it.
func Example_incremental() {
	e := dicomio.NewBytesEncoder(binary.LittleEndian, dicomio.ExplicitVR)
	dicom.WriteElement(e, dicom.MustNewElement(dicomtag.PatientName, "Doe^John"))
	dicom.WriteElement(e, dicom.MustNewElement(dicomtag.Rows, uint16(512)))
	data := e.Bytes()

	src := dicomio.NewBufferSource(dicomio.WithByteOrder(binary.LittleEndian))
	builder := dicom.NewDataSetBuilder()
	r := dicom.NewReader()
	ar := r.BeginRead(src, builder, nil, nil)
	for i := 0; i < len(data); i += 5 {
		end := i + 5
		if end > len(data) {
			end = len(data)
		}
		if err := src.Add(data[i:end]); err != nil {
			panic(err)
		}
	}
	src.Finish()

	status, err := r.EndRead(ar)
	if err != nil {
		panic(err)
	}
	fmt.Println(status)
	for _, elem := range builder.DataSet().Elements {
		fmt.Println(elem)
	}
	// Output:
	// Success
	//  (0010,0010)[PatientName] PN  [Doe^John]
	//  (0028,0010)[Rows] US  [512]
}

// Test ReadOptions
func TestReadOptions(t *testing.T) {
	path := exampleFile(t.TempDir())

	// Test Drop Pixel Data
	data := mustReadFile(path, dicom.ReadOptions{DropPixelData: true})
	_, err := data.FindElementByTag(dicomtag.PatientName)
	require.NoError(t, err)
	_, err = data.FindElementByTag(dicomtag.PixelData)
	require.Error(t, err)

	data = mustReadFile(path, dicom.ReadOptions{})
	_, err = data.FindElementByTag(dicomtag.PixelData)
	require.NoError(t, err)

	// Test Return Tags
	data = mustReadFile(path, dicom.ReadOptions{DropPixelData: true, ReturnTags: []dicomtag.Tag{dicomtag.StudyInstanceUID}})
	_, err = data.FindElementByTag(dicomtag.StudyInstanceUID)
	require.NoError(t, err)
	_, err = data.FindElementByTag(dicomtag.PatientName)
	require.Error(t, err, "PatientName should not be present")
	// meta group 总是返回
	_, err = data.FindElementByTag(dicomtag.TransferSyntaxUID)
	require.NoError(t, err)

	// Test Stop at Tag
	data = mustReadFile(path,
		dicom.ReadOptions{
			DropPixelData: true,
			// Study Instance UID Element tag is Tag{0x0020, 0x000D}
			StopAtTag: &dicomtag.StudyInstanceUID})
	_, err = data.FindElementByTag(dicomtag.PatientName) // Patient Name Element tag is Tag{0x0010, 0x0010}
	require.NoError(t, err)
	_, err = data.FindElementByTag(dicomtag.StudyInstanceUID)
	require.Error(t, err, "StudyInstanceUID should not be present")
	_, err = data.FindElementByTag(dicomtag.SeriesInstanceUID) // Series Instance UID Element tag is Tag{0x0020, 0x000E}
	require.Error(t, err, "SeriesInstanceUID should not be present")
}

func TestDataSet_FindElement(t *testing.T) {
	data := mustReadFile(exampleFile(t.TempDir()), dicom.ReadOptions{})

	elem, err := data.FindElementByName("PatientName")
	require.NoError(t, err)
	require.Equal(t, "Doe^John", elem.MustGetString())

	_, err = data.FindElementByName("NoSuchKeyword")
	require.Error(t, err)
	_, err = data.FindElementByName("Modality")
	require.EqualError(t, err, "could not find element named 'Modality' in dicom file")
	_, err = data.FindElementByTag(dicomtag.Modality)
	require.EqualError(t, err, "(0008,0060)[Modality]: element not found")

	elem, err = data.FindElementByTag(dicomtag.PixelData)
	require.NoError(t, err)
	require.False(t, elem.UndefinedLength)
	require.Equal(t, dicom.PixelDataInfo{Frames: [][]byte{{1, 2, 3, 4}}}, elem.Value[0])
}
