// Package dicomuid lists the well known UIDs this module needs to recognise,
// mostly transfer syntaxes.
package dicomuid

import "fmt"

const (
	ImplicitVRLittleEndian         = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian         = "1.2.840.10008.1.2.1"
	DeflatedExplicitVRLittleEndian = "1.2.840.10008.1.2.1.99"
	ExplicitVRBigEndian            = "1.2.840.10008.1.2.2"

	JPEGBaseline8Bit        = "1.2.840.10008.1.2.4.50"
	JPEGExtended12Bit       = "1.2.840.10008.1.2.4.51"
	JPEGLossless            = "1.2.840.10008.1.2.4.57"
	JPEGLosslessSV1         = "1.2.840.10008.1.2.4.70"
	JPEGLSLossless          = "1.2.840.10008.1.2.4.80"
	JPEGLSNearLossless      = "1.2.840.10008.1.2.4.81"
	JPEG2000Lossless        = "1.2.840.10008.1.2.4.90"
	JPEG2000                = "1.2.840.10008.1.2.4.91"
	MPEG2MainProfile        = "1.2.840.10008.1.2.4.100"
	MPEG4HighProfile        = "1.2.840.10008.1.2.4.102"
	RLELossless             = "1.2.840.10008.1.2.5"
	VerificationSOPClass    = "1.2.840.10008.1.1"
	SecondaryCaptureStorage = "1.2.840.10008.5.1.4.1.1.7"
)

// Type 是UID的种类
type Type string

const (
	TypeTransferSyntax Type = "Transfer Syntax"
	TypeSOPClass       Type = "SOP Class"
)

// Info describes a well known UID.
type Info struct {
	UID  string
	Name string
	Type Type
}

var uidDict = map[string]Info{}

func add(uid, name string, t Type) {
	uidDict[uid] = Info{UID: uid, Name: name, Type: t}
}

func init() {
	add(ImplicitVRLittleEndian, "Implicit VR Little Endian", TypeTransferSyntax)
	add(ExplicitVRLittleEndian, "Explicit VR Little Endian", TypeTransferSyntax)
	add(DeflatedExplicitVRLittleEndian, "Deflated Explicit VR Little Endian", TypeTransferSyntax)
	add(ExplicitVRBigEndian, "Explicit VR Big Endian", TypeTransferSyntax)
	add(JPEGBaseline8Bit, "JPEG Baseline (Process 1)", TypeTransferSyntax)
	add(JPEGExtended12Bit, "JPEG Extended (Process 2 & 4)", TypeTransferSyntax)
	add(JPEGLossless, "JPEG Lossless, Non-Hierarchical (Process 14)", TypeTransferSyntax)
	add(JPEGLosslessSV1, "JPEG Lossless, Non-Hierarchical, First-Order Prediction", TypeTransferSyntax)
	add(JPEGLSLossless, "JPEG-LS Lossless Image Compression", TypeTransferSyntax)
	add(JPEGLSNearLossless, "JPEG-LS Lossy (Near-Lossless) Image Compression", TypeTransferSyntax)
	add(JPEG2000Lossless, "JPEG 2000 Image Compression (Lossless Only)", TypeTransferSyntax)
	add(JPEG2000, "JPEG 2000 Image Compression", TypeTransferSyntax)
	add(MPEG2MainProfile, "MPEG2 Main Profile / Main Level", TypeTransferSyntax)
	add(MPEG4HighProfile, "MPEG-4 AVC/H.264 High Profile / Level 4.1", TypeTransferSyntax)
	add(RLELossless, "RLE Lossless", TypeTransferSyntax)
	add(VerificationSOPClass, "Verification SOP Class", TypeSOPClass)
	add(SecondaryCaptureStorage, "Secondary Capture Image Storage", TypeSOPClass)
}

// Lookup returns the description of a well known UID.
func Lookup(uid string) (Info, error) {
	if e, ok := uidDict[uid]; ok {
		return e, nil
	}
	return Info{}, fmt.Errorf("unknown DICOM uid '%s'", uid)
}
