package dicomtag

// VR is a two letter value representation code, e.g. "UL" or "CS". PS3.5 6.2
type VR string

const (
	AE VR = "AE" // Application Entity
	AS VR = "AS" // Age String
	AT VR = "AT" // Attribute Tag
	CS VR = "CS" // Code String
	DA VR = "DA" // Date
	DS VR = "DS" // Decimal String
	DT VR = "DT" // Date Time
	FD VR = "FD" // Floating Point Double
	FL VR = "FL" // Floating Point Single
	IS VR = "IS" // Integer String
	LO VR = "LO" // Long String
	LT VR = "LT" // Long Text
	OB VR = "OB" // Other Byte
	OD VR = "OD" // Other Double
	OF VR = "OF" // Other Float
	OL VR = "OL" // Other Long
	OV VR = "OV" // Other 64-bit Very Long
	OW VR = "OW" // Other Word
	PN VR = "PN" // Person Name
	SH VR = "SH" // Short String
	SL VR = "SL" // Signed Long
	SQ VR = "SQ" // Sequence of Items
	SS VR = "SS" // Signed Short
	ST VR = "ST" // Short Text
	SV VR = "SV" // Signed 64-bit Very Long
	TM VR = "TM" // Time
	UC VR = "UC" // Unlimited Characters
	UI VR = "UI" // Unique Identifier
	UL VR = "UL" // Unsigned Long
	UN VR = "UN" // Unknown
	UR VR = "UR" // Universal Resource Identifier
	US VR = "US" // Unsigned Short
	UT VR = "UT" // Unlimited Text
	UV VR = "UV" // Unsigned 64-bit Very Long

	// NONE is the VR of Item, ItemDelimitationItem and
	// SequenceDelimitationItem, which carry no VR on the wire.
	NONE VR = "NA"
)

type vrInfo struct {
	// 16 bit length field in explicit VR encoding
	short    bool
	text     bool
	unitSize int
	padding  byte
}

var vrTable = map[VR]vrInfo{
	AE: {short: true, text: true, unitSize: 1, padding: ' '},
	AS: {short: true, text: true, unitSize: 1, padding: ' '},
	AT: {short: true, unitSize: 2},
	CS: {short: true, text: true, unitSize: 1, padding: ' '},
	DA: {short: true, text: true, unitSize: 1, padding: ' '},
	DS: {short: true, text: true, unitSize: 1, padding: ' '},
	DT: {short: true, text: true, unitSize: 1, padding: ' '},
	FD: {short: true, unitSize: 8},
	FL: {short: true, unitSize: 4},
	IS: {short: true, text: true, unitSize: 1, padding: ' '},
	LO: {short: true, text: true, unitSize: 1, padding: ' '},
	LT: {short: true, text: true, unitSize: 1, padding: ' '},
	OB: {unitSize: 1},
	OD: {unitSize: 8},
	OF: {unitSize: 4},
	OL: {unitSize: 4},
	OV: {unitSize: 8},
	OW: {unitSize: 2},
	PN: {short: true, text: true, unitSize: 1, padding: ' '},
	SH: {short: true, text: true, unitSize: 1, padding: ' '},
	SL: {short: true, unitSize: 4},
	SQ: {unitSize: 1},
	SS: {short: true, unitSize: 2},
	ST: {short: true, text: true, unitSize: 1, padding: ' '},
	SV: {unitSize: 8},
	TM: {short: true, text: true, unitSize: 1, padding: ' '},
	UC: {text: true, unitSize: 1, padding: ' '},
	UI: {short: true, text: true, unitSize: 1},
	UL: {short: true, unitSize: 4},
	UN: {unitSize: 1},
	UR: {text: true, unitSize: 1, padding: ' '},
	US: {short: true, unitSize: 2},
	UT: {text: true, unitSize: 1, padding: ' '},
	UV: {unitSize: 8},
	NONE: {unitSize: 1},
}

// ParseVR returns the VR for a two letter code read from an explicit VR
// stream. ok is false for anything that is not a known code.
func ParseVR(code string) (vr VR, ok bool) {
	vr = VR(code)
	if vr == NONE {
		return "", false
	}
	if _, ok = vrTable[vr]; !ok {
		return "", false
	}
	return vr, true
}

// Is16BitLength reports whether the explicit VR encoding of the VR uses a
// 2 byte length field. The others use 2 reserved bytes and a 4 byte length.
// PS3.5 7.1.2
func (vr VR) Is16BitLength() bool {
	return vrTable[vr].short
}

// IsString reports whether the value is character data (no byte swapping).
func (vr VR) IsString() bool {
	return vrTable[vr].text
}

// UnitSize is the width in bytes of the unit swapped on endian conversion.
func (vr VR) UnitSize() int {
	if n := vrTable[vr].unitSize; n > 0 {
		return n
	}
	return 1
}

// Padding is the byte used to pad values to even length.
func (vr VR) Padding() byte {
	return vrTable[vr].padding
}

func (vr VR) String() string {
	return string(vr)
}

// VRKind 定义了golang 编码的VR
type VRKind int

const (
	// VRStringList means the element stores a list of strings
	VRStringList VRKind = iota
	// VRBytes means the element stores a []byte
	VRBytes
	// VRString means the element stores a string
	VRString
	// VRUInt16List means the element stores a list of uint16s
	VRUInt16List
	// VRUInt32List means the element stores a list of uint32s
	VRUInt32List
	// VRInt16List means the element stores a list of int16s
	VRInt16List
	// VRInt32List element stores a list of int32s
	VRInt32List
	// VRFloat32List element stores a list of float32s
	VRFloat32List
	// VRFloat64List element stores a list of float64s
	VRFloat64List
	// VRSequence means the element stores a list of items
	VRSequence
	// VRItem means the element stores a list of elements
	VRItem
	// VRTagList element stores a list of Tags
	VRTagList
	// VRDate means the element stores a date string.
	VRDate
	// VRPixelData means the element stores encapsulated fragments
	VRPixelData
)

// GetVRKind 返回 go语言的 value encoding of an element with <tag, vr>.
func GetVRKind(tag Tag, vr VR) VRKind {
	if tag.Equals(Item) {
		return VRItem
	} else if tag.Equals(PixelData) {
		return VRPixelData
	}
	switch vr {
	case DA:
		return VRDate
	case AT:
		return VRTagList
	case OW, OB, UN, OD, OF, OL, OV:
		return VRBytes
	case LT, UT, ST, UR:
		return VRString
	case UL:
		return VRUInt32List
	case SL:
		return VRInt32List
	case US:
		return VRUInt16List
	case SS:
		return VRInt16List
	case FL:
		return VRFloat32List
	case FD:
		return VRFloat64List
	case SQ:
		return VRSequence
	default:
		return VRStringList
	}
}
