package dicomio

import (
	"encoding/binary"
	"fmt"

	"github.com/odincare/dcmstream/dicomuid"
)

// IsImplicitVR tells whether data elements carry their 2-character VR
// inline (ExplicitVR) or leave it to the dictionary (ImplicitVR).
type IsImplicitVR int

const (
	ImplicitVR IsImplicitVR = iota
	ExplicitVR

	// UnknownVR 只用于还没有确定transfer syntax的encoder, 例如写preamble时
	UnknownVR
)

// nativeSyntaxes 是data set本身的编码方式. 其他transfer syntax (JPEG, RLE ...)
// 只压缩pixel data, data set总是explicit little endian.
var nativeSyntaxes = map[string]struct {
	order    binary.ByteOrder
	implicit IsImplicitVR
}{
	dicomuid.ImplicitVRLittleEndian:         {binary.LittleEndian, ImplicitVR},
	dicomuid.ExplicitVRLittleEndian:         {binary.LittleEndian, ExplicitVR},
	dicomuid.ExplicitVRBigEndian:            {binary.BigEndian, ExplicitVR},
	dicomuid.DeflatedExplicitVRLittleEndian: {binary.LittleEndian, ExplicitVR},
}

// CanonicalTransferSyntaxUID maps any transfer syntax UID to one of the four
// uncompressed syntaxes that describe how the data set itself is encoded.
// UIDs that are unknown or not transfer syntaxes are errors.
func CanonicalTransferSyntaxUID(uid string) (string, error) {
	if _, ok := nativeSyntaxes[uid]; ok {
		return uid, nil
	}
	info, err := dicomuid.Lookup(uid)
	if err != nil {
		return "", err
	}
	if info.Type != dicomuid.TypeTransferSyntax {
		return "", fmt.Errorf("dicom.CanonicalTransferSyntaxUID: '%s' is not a transfer syntax (is %s)", uid, info.Type)
	}
	return dicomuid.ExplicitVRLittleEndian, nil
}

// ParseTransferSyntaxUID returns the byte order and VR encoding of a
// transfer syntax, e.g. 1.2.840.10008.1.2 is (LittleEndian, ImplicitVR) and
// 1.2.840.10008.1.2.4.50 is (LittleEndian, ExplicitVR).
func ParseTransferSyntaxUID(uid string) (byteorder binary.ByteOrder, implicit IsImplicitVR, err error) {
	canonical, err := CanonicalTransferSyntaxUID(uid)
	if err != nil {
		return nil, UnknownVR, err
	}
	ts := nativeSyntaxes[canonical]
	return ts.order, ts.implicit, nil
}
