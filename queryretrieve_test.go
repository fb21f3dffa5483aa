package dicom_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	dicom "github.com/odincare/dcmstream"
	"github.com/odincare/dcmstream/dicomtag"
	"github.com/odincare/dcmstream/dicomuid"
)

func queryDataSet() *dicom.DataSet {
	return &dicom.DataSet{Elements: []*dicom.Element{
		dicom.MustNewElement(dicomtag.PatientName, "Doe^John"),
		dicom.MustNewElement(dicomtag.StudyDate, "20240101"),
		dicom.MustNewElement(dicomtag.SOPInstanceUID, "1.2.3"),
		dicom.MustNewElement(dicomtag.Rows, uint16(512)),
		dicom.MustNewElement(dicomtag.ReferencedImageSequence,
			dicom.NewItem(
				dicom.MustNewElement(dicomtag.ReferencedSOPClassUID, dicomuid.SecondaryCaptureStorage),
				dicom.MustNewElement(dicomtag.ReferencedSOPInstanceUID, "1.2.3.4"),
			)),
	}}
}

func TestQuery(t *testing.T) {
	ds := queryDataSet()

	tests := []struct {
		query   string
		match   bool
		matched *dicomtag.Tag
	}{
		{"PatientName=Doe*", true, &dicomtag.PatientName},
		{"(0010,0010)=Smith*", false, nil},
		{"PatientName=*", true, &dicomtag.PatientName},
		{"StudyDate=2024*", true, &dicomtag.StudyDate},
		{"StudyDate=2023*", false, nil},
		{"SOPInstanceUID=1.2.3", true, &dicomtag.SOPInstanceUID},
		{"SOPInstanceUID=1.2", false, nil},
		// 不存在的element只有通用匹配
		{"PatientID=*", true, nil},
		{"PatientID=", true, nil},
		{"PatientID=12", false, nil},
		{"QueryRetrieveLevel=STUDY", true, nil},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			f, err := dicom.ParseQuery(tc.query)
			require.NoError(t, err)

			match, elem, err := dicom.Query(ds, f)
			require.NoError(t, err)
			require.Equal(t, tc.match, match)
			if tc.matched == nil {
				require.Nil(t, elem)
			} else {
				require.NotNil(t, elem)
				require.Equal(t, *tc.matched, elem.Tag)
			}
		})
	}
}

func TestQuery_Sequence(t *testing.T) {
	ds := queryDataSet()

	f := dicom.MustNewElement(dicomtag.ReferencedImageSequence,
		dicom.NewItem(dicom.MustNewElement(dicomtag.ReferencedSOPClassUID, dicomuid.SecondaryCaptureStorage)))
	match, elem, err := dicom.Query(ds, f)
	require.NoError(t, err)
	require.True(t, match)
	require.Equal(t, dicomtag.ReferencedImageSequence, elem.Tag)

	f = dicom.MustNewElement(dicomtag.ReferencedImageSequence,
		dicom.NewItem(
			dicom.MustNewElement(dicomtag.ReferencedSOPClassUID, dicomuid.SecondaryCaptureStorage),
			dicom.MustNewElement(dicomtag.ReferencedSOPInstanceUID, "9.9"),
		))
	match, _, err = dicom.Query(ds, f)
	require.NoError(t, err)
	require.False(t, match)

	// 空sequence filter是通用匹配
	match, _, err = dicom.Query(&dicom.DataSet{}, dicom.MustNewElement(dicomtag.ReferencedImageSequence))
	require.NoError(t, err)
	require.True(t, match)
}

func TestQuery_Errors(t *testing.T) {
	_, err := dicom.ParseQuery("PatientName")
	require.EqualError(t, err, `query "PatientName": expect KEY=PATTERN`)

	_, err = dicom.ParseQuery("Rows=512")
	require.EqualError(t, err, `query "Rows=512": VR US is not supported`)

	_, err = dicom.ParseQuery("NoSuchKeyword=1")
	require.Error(t, err)

	_, err = dicom.ParseQuery("(0008,9999)=x")
	require.Error(t, err)

	f := &dicom.Element{Tag: dicomtag.PatientName, VR: dicomtag.PN, Value: []interface{}{"a", "b"}}
	_, _, err = dicom.Query(queryDataSet(), f)
	require.Error(t, err)

	// filter和element的VR不一致
	f = &dicom.Element{Tag: dicomtag.PatientName, VR: dicomtag.LO, Value: []interface{}{"Doe*"}}
	match, _, err := dicom.Query(queryDataSet(), f)
	require.Error(t, err)
	require.False(t, match)

	f, err = dicom.ParseQuery("PatientName=[")
	require.NoError(t, err)
	_, _, err = dicom.Query(queryDataSet(), f)
	require.Error(t, err)
}
