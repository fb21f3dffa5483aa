package dicomtag

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag 是一个定义了dicom文件中element 的类型的 <group, element> 元组
// 列表中的标准tags定义在tag_definitions.go, 也可以参考：
// ftp://medical.nema.org/medical/dicom/2011/11_06pu.pdf
type Tag struct {
	// Group 和 Element 是读取16进制对的结果 如 (1000,10008)
	Group   uint16
	Element uint16

	// Creator is the private creator that reserved the element block of a
	// private tag, e.g. "SIEMENS CSA HEADER". Empty for public tags and for
	// private tags whose creator is not known.
	Creator string
}

// Compare 返回 -1/0/1 如果t<other | t==other | t>other，
// tag先由group排序，再由element排序. Creator不参与比较
func (t Tag) Compare(other Tag) int {
	if t.Group < other.Group {
		return -1
	}

	if t.Group > other.Group {
		return 1
	}

	if t.Element < other.Element {
		return -1
	}

	if t.Element > other.Element {
		return 1
	}

	return 0
}

// Equals reports whether t and other have the same group and element.
func (t Tag) Equals(other Tag) bool {
	return t.Group == other.Group && t.Element == other.Element
}

func IsPrivate(group uint16) bool {
	return group%2 == 1
}

// IsPrivate reports whether the tag lives in an odd (private) group.
func (t Tag) IsPrivate() bool {
	return IsPrivate(t.Group)
}

// IsPrivateCreator reports whether the tag is a private creator slot,
// (gggg,0010)-(gggg,00FF) in an odd group.
func (t Tag) IsPrivateCreator() bool {
	return t.IsPrivate() && t.Element != 0x0000 && t.Element <= 0x00ff
}

// IsDelimiter reports whether the tag is one of the structural markers of
// group FFFE (Item, ItemDelimitationItem, SequenceDelimitationItem).
func (t Tag) IsDelimiter() bool {
	return t.Equals(Item) || t.Equals(ItemDelimitationItem) || t.Equals(SequenceDelimitationItem)
}

// Uint32 packs the tag as group<<16 | element.
func (t Tag) Uint32() uint32 {
	return uint32(t.Group)<<16 | uint32(t.Element)
}

// String 返回一个如"(0008,1234)"格式的string
// 0x0008 是 t.Group 0x1234是t.Element
func (t Tag) String() string {
	if t.Creator != "" {
		return fmt.Sprintf("(%04x,%04x:%s)", t.Group, t.Element, t.Creator)
	}
	return fmt.Sprintf("(%04x,%04x)", t.Group, t.Element)
}

// MetadataGroup 是 Tag.Group 中 metadata tags的值.
const MetadataGroup = 2

// ItemSeqGroup is the group of Item and the delimitation items.
const ItemSeqGroup = 0xFFFE

// ParseTag 将"(0010,0020)" 或 "0010,0020" 或 "00100020" 格式的字符串解析成Tag.
// Repeating-group forms such as "(60xx,3000)" are rejected; use ParseMaskedTag.
func ParseTag(tag string) (Tag, error) {
	s := strings.Trim(strings.TrimSpace(tag), "()")
	var parts []string
	if strings.Contains(s, ",") {
		parts = strings.Split(s, ",")
	} else if len(s) == 8 {
		parts = []string{s[:4], s[4:]}
	}
	if len(parts) != 2 {
		return Tag{}, fmt.Errorf("malformed tag %q", tag)
	}
	group, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 16, 16)
	if err != nil {
		return Tag{}, fmt.Errorf("malformed tag group %q: %w", tag, err)
	}
	elem, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 16, 16)
	if err != nil {
		return Tag{}, fmt.Errorf("malformed tag element %q: %w", tag, err)
	}
	return Tag{Group: uint16(group), Element: uint16(elem)}, nil
}

// MaskedTag matches a family of tags, e.g. the overlay planes (60xx,3000).
// A bit set in Mask must match the corresponding bit of Tag.
type MaskedTag struct {
	Tag  Tag
	Mask uint32
}

// Match reports whether t belongs to the family.
func (m MaskedTag) Match(t Tag) bool {
	return t.Uint32()&m.Mask == m.Tag.Uint32()&m.Mask
}

func (m MaskedTag) String() string {
	s := []byte(fmt.Sprintf("%08x", m.Tag.Uint32()))
	for i := 0; i < 8; i++ {
		if (m.Mask>>(uint(7-i)*4))&0xf == 0 {
			s[i] = 'x'
		}
	}
	return fmt.Sprintf("(%s,%s)", s[:4], s[4:])
}

// ParseMaskedTag 解析如"(60xx,3000)"的tag, 'x'代表任意的16进制数
func ParseMaskedTag(tag string) (MaskedTag, error) {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(tag), "()"))
	parts := strings.Split(s, ",")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 4 {
		return MaskedTag{}, fmt.Errorf("malformed masked tag %q", tag)
	}
	digits := parts[0] + parts[1]
	var value, mask uint32
	for i := 0; i < 8; i++ {
		value <<= 4
		mask <<= 4
		if digits[i] == 'x' {
			continue
		}
		n, err := strconv.ParseUint(digits[i:i+1], 16, 8)
		if err != nil {
			return MaskedTag{}, fmt.Errorf("malformed masked tag %q: %w", tag, err)
		}
		value |= uint32(n)
		mask |= 0xf
	}
	return MaskedTag{
		Tag:  Tag{Group: uint16(value >> 16), Element: uint16(value)},
		Mask: mask,
	}, nil
}
