package dicomio

import (
	"fmt"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// DefaultCharacterRepertoire decodes text when no SpecificCharacterSet is in
// effect. Strictly the default repertoire is ASCII; Latin-1 is a superset that
// never fails on the stray high bytes found in real files.
var DefaultCharacterRepertoire encoding.Encoding = charmap.ISO8859_1

// CodingSystem defines how a []byte is translated into a utf8 string.
type CodingSystem struct {
	// VR="PN" is the only place where we potentially use all three
	// decoders.  For all other VR types, only Ideographic decoder is used.
	// See P3.5, 6.2.
	//
	// 三个decoder的分配和pydicom一致, P3.5 6.1.
	Alphabetic  *encoding.Decoder
	Ideographic *encoding.Decoder
	Phonetic    *encoding.Decoder
}

// CodingSystemType defines the where the coding system is going to be
// used. This distinction is useful in Japanese, but of little use in other
// languages.
type CodingSystemType int

const (
	// AlphabeticCodingSystem is for writing a name in (English) alphabets.
	AlphabeticCodingSystem CodingSystemType = iota
	// IdeographicCodingSystem is for writing the name in the native writing
	// system (Kanji).
	IdeographicCodingSystem
	// PhoneticCodingSystem is for hirakana and/or katakana.
	PhoneticCodingSystem
)

// specific character set defined terms -> charset labels.
// http://dicom.nema.org/medical/dicom/current/output/chtml/part02/sect_D.6.2.html
var labelByTerm = map[string]string{
	"ISO_IR 6":   "iso-8859-1",
	"ISO_IR 100": "iso-ir-100",
	"ISO_IR 101": "iso-ir-101",
	"ISO_IR 109": "iso-ir-109",
	"ISO_IR 110": "iso-ir-110",
	"ISO_IR 126": "iso-ir-126",
	"ISO_IR 127": "iso-ir-127",
	"ISO_IR 138": "iso-ir-138",
	"ISO_IR 144": "iso-ir-144",
	"ISO_IR 148": "iso-ir-148",
	"ISO_IR 13":  "shift_jis",
	"ISO_IR 166": "tis-620",
	"ISO_IR 192": "utf-8",
	"GB18030":    "gb18030",
	"GBK":        "gbk",

	"ISO 2022 IR 6":   "iso-8859-1",
	"ISO 2022 IR 100": "iso-ir-100",
	"ISO 2022 IR 101": "iso-ir-101",
	"ISO 2022 IR 109": "iso-ir-109",
	"ISO 2022 IR 110": "iso-ir-110",
	"ISO 2022 IR 126": "iso-ir-126",
	"ISO 2022 IR 127": "iso-ir-127",
	"ISO 2022 IR 138": "iso-ir-138",
	"ISO 2022 IR 144": "iso-ir-144",
	"ISO 2022 IR 148": "iso-ir-148",
	"ISO 2022 IR 13":  "shift_jis",
	"ISO 2022 IR 166": "tis-620",
	"ISO 2022 IR 87":  "iso-2022-jp",
	"ISO 2022 IR 159": "iso-2022-jp",
	"ISO 2022 IR 149": "euc-kr",
}

func lookupEncoding(term string) (encoding.Encoding, error) {
	label, ok := labelByTerm[term]
	if !ok {
		return nil, fmt.Errorf("specific character set defined term not found: %v", term)
	}
	coding, _ := charset.Lookup(label)
	if coding == nil {
		return nil, fmt.Errorf("missing encoding for label %q", label)
	}
	return coding, nil
}

// ParseSpecificCharacterSet converts the values of a SpecificCharacterSet
// element into a CodingSystem. An empty list selects the default repertoire.
func ParseSpecificCharacterSet(encodingNames []string) (CodingSystem, error) {
	var decoders []*encoding.Decoder
	for _, name := range encodingNames {
		name = strings.TrimSpace(name)
		if name == "" {
			decoders = append(decoders, nil)
			continue
		}
		coding, err := lookupEncoding(name)
		if err != nil {
			return CodingSystem{}, err
		}
		decoders = append(decoders, coding.NewDecoder())
	}
	switch len(decoders) {
	case 0:
		return CodingSystem{}, nil
	case 1:
		return CodingSystem{decoders[0], decoders[0], decoders[0]}, nil
	case 2:
		return CodingSystem{decoders[0], decoders[1], decoders[1]}, nil
	default:
		return CodingSystem{decoders[0], decoders[1], decoders[2]}, nil
	}
}

// DecodeString converts raw value bytes into a utf8 string with the decoder
// csType selects. Without a decoder the default repertoire applies.
func DecodeString(data []byte, cs CodingSystem, csType CodingSystemType) (string, error) {
	var d *encoding.Decoder
	switch csType {
	case AlphabeticCodingSystem:
		d = cs.Alphabetic
	case IdeographicCodingSystem:
		d = cs.Ideographic
	case PhoneticCodingSystem:
		d = cs.Phonetic
	default:
		return "", fmt.Errorf("unknown coding system type %d", csType)
	}
	if d == nil {
		d = DefaultCharacterRepertoire.NewDecoder()
	}
	out, err := d.Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
