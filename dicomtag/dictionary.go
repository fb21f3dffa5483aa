package dicomtag

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Entry 保存了Tag在DICOM dictionary中的detail information
type Entry struct {
	Tag Tag

	// MaskTag is set for entries that describe a family of tags, such as
	// the repeating groups (60xx,3000). Nil for single tag entries.
	MaskTag *MaskedTag

	// 人类可读的Tag名称 如 "PatientName"
	Keyword string

	// Acceptable VRs, most preferred first. e.g. [OB OW] for PixelData.
	VRs []VR

	// 基数(Cardinality) (element中期望的值 #)
	VM string
}

// VR returns the first declared VR, or UN when there is none.
func (e *Entry) VR() VR {
	if e == nil || len(e.VRs) == 0 {
		return UN
	}
	return e.VRs[0]
}

// HasVR reports whether vr is one of the entry's declared VRs.
func (e *Entry) HasVR(vr VR) bool {
	for _, v := range e.VRs {
		if v == vr {
			return true
		}
	}
	return false
}

// UnknownEntry is returned by StandardDictionary for tags it does not know.
var UnknownEntry = &Entry{
	Tag:     Tag{Group: 0xffff, Element: 0xffff},
	MaskTag: &MaskedTag{Mask: 0},
	Keyword: "Unknown",
	VRs:     []VR{UN},
	VM:      "1-n",
}

// Dictionary resolves tags to entries. A nil result means the tag is not
// known; implementations may also return UnknownEntry.
type Dictionary interface {
	Lookup(tag Tag) *Entry
}

// StandardDictionary is the public data dictionary plus any number of
// private dictionaries keyed by private creator. Safe for concurrent use.
type StandardDictionary struct {
	mu       sync.RWMutex
	tags     map[Tag]*Entry
	masked   []*Entry
	keywords map[string]*Entry
	private  map[string]map[uint32]*Entry
}

//go:embed data/standard.tsv
var standardData []byte

//go:embed data/private.yaml
var privateData []byte

// NewDictionary returns an empty dictionary.
func NewDictionary() *StandardDictionary {
	return &StandardDictionary{
		tags:     make(map[Tag]*Entry),
		keywords: make(map[string]*Entry),
		private:  make(map[string]map[uint32]*Entry),
	}
}

// NewStandardDictionary returns a dictionary filled with the built-in public
// and private entries.
func NewStandardDictionary() *StandardDictionary {
	d := NewDictionary()
	if err := d.LoadTSV(bytes.NewReader(standardData)); err != nil {
		panic(fmt.Sprintf("dicomtag: built-in dictionary: %v", err))
	}
	if err := d.LoadPrivateDictionary(bytes.NewReader(privateData)); err != nil {
		panic(fmt.Sprintf("dicomtag: built-in private dictionary: %v", err))
	}
	return d
}

// LoadTSV adds entries from a tab separated table with columns
// tag, VR (several separated by '/'), keyword, VM. Lines starting with '#'
// are ignored.
func (d *StandardDictionary) LoadTSV(in io.Reader) error {
	reader := csv.NewReader(in)
	reader.Comma = '\t'  // tab separated file
	reader.Comment = '#' // comments start with #
	reader.FieldsPerRecord = 4
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		entry := &Entry{Keyword: row[2], VM: row[3]}
		for _, v := range strings.Split(row[1], "/") {
			entry.VRs = append(entry.VRs, VR(v))
		}
		if strings.ContainsAny(row[0], "xX") {
			mt, err := ParseMaskedTag(row[0])
			if err != nil {
				return err
			}
			entry.Tag = mt.Tag
			entry.MaskTag = &mt
		} else {
			tag, err := ParseTag(row[0])
			if err != nil {
				return err
			}
			entry.Tag = tag
		}
		d.Add(entry)
	}
}

// Add registers a public entry.
func (d *StandardDictionary) Add(e *Entry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e.MaskTag != nil {
		d.masked = append(d.masked, e)
	} else {
		d.tags[Tag{Group: e.Tag.Group, Element: e.Tag.Element}] = e
	}
	if e.Keyword != "" {
		d.keywords[e.Keyword] = e
	}
}

// AddPrivate registers an entry of the private dictionary of creator. Only
// the low byte of e.Tag.Element is significant.
func (d *StandardDictionary) AddPrivate(creator string, e *Entry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	block, ok := d.private[creator]
	if !ok {
		block = make(map[uint32]*Entry)
		d.private[creator] = block
	}
	e.Tag.Creator = creator
	e.Tag.Element &= 0x00ff
	e.MaskTag = &MaskedTag{Tag: e.Tag, Mask: 0xffff00ff}
	block[privateKey(e.Tag.Group, e.Tag.Element)] = e
}

func privateKey(group, element uint16) uint32 {
	return uint32(group)<<16 | uint32(element&0x00ff)
}

// Lookup implements Dictionary. Private tags are resolved through the
// dictionary of their Creator. Unknown tags yield UnknownEntry.
func (d *StandardDictionary) Lookup(tag Tag) *Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if tag.IsPrivate() {
		if tag.Creator != "" {
			if e, ok := d.private[tag.Creator][privateKey(tag.Group, tag.Element)]; ok {
				return e
			}
		}
		return UnknownEntry
	}
	if e, ok := d.tags[Tag{Group: tag.Group, Element: tag.Element}]; ok {
		return e
	}
	for _, e := range d.masked {
		if e.MaskTag.Match(tag) {
			return e
		}
	}
	// (0000-u-ffff,0000)	UL	GenericGroupLength	1	GENERIC
	if tag.Element == 0x0000 {
		return &Entry{
			Tag:     tag,
			MaskTag: &MaskedTag{Tag: tag, Mask: 0x0000ffff},
			Keyword: "GenericGroupLength",
			VRs:     []VR{UL},
			VM:      "1",
		}
	}
	return UnknownEntry
}

// Private returns a view of the dictionary scoped to one private creator.
// Tags looked up through it are treated as reserved by that creator.
func (d *StandardDictionary) Private(creator string) Dictionary {
	return privateView{d: d, creator: creator}
}

type privateView struct {
	d       *StandardDictionary
	creator string
}

func (v privateView) Lookup(tag Tag) *Entry {
	tag.Creator = v.creator
	return v.d.Lookup(tag)
}

// FindByKeyword returns the public entry with the given keyword.
func (d *StandardDictionary) FindByKeyword(keyword string) (*Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.keywords[keyword]
	return e, ok
}

var (
	tagDictOnce sync.Once
	tagDict     *StandardDictionary
)

func maybeInitTagDict() {
	tagDictOnce.Do(func() {
		tagDict = NewStandardDictionary()
	})
}

// DefaultDictionary returns the process wide standard dictionary, loading it
// on first use. Private dictionaries loaded into it are seen by every user.
func DefaultDictionary() *StandardDictionary {
	maybeInitTagDict()
	return tagDict
}

// 找到给与的tag中的信息
// 如果tag不是dicom standard的一部分或已经不再在dicom standard中 会返回错误
func Find(tag Tag) (*Entry, error) {
	maybeInitTagDict()
	entry := tagDict.Lookup(tag)
	if entry == UnknownEntry {
		return nil, fmt.Errorf("Could not find tag (0x%x, 0x%x) in dictionary", tag.Group, tag.Element)
	}
	return entry, nil
}

// MustFind与Find相似, 但报错会panic停止程序
func MustFind(tag Tag) *Entry {
	e, err := Find(tag)
	if err != nil {
		panic(fmt.Sprintf("tag %v not found: %s", tag, err))
	}
	return e
}

// FindByName将传入的name寻找到information。
// 例: FindByName("TransferSyntaxUID")
func FindByName(name string) (*Entry, error) {
	maybeInitTagDict()
	if e, ok := tagDict.FindByKeyword(name); ok {
		return e, nil
	}
	return nil, fmt.Errorf("could not find tag with name %s", name)
}

// DebugString 返回一个人类可读的tag的诊断字符串，格式如 "(group,element)[name]"
func DebugString(tag Tag) string {
	e, err := Find(tag)
	if err != nil {
		if IsPrivate(tag.Group) {
			return fmt.Sprintf("(%04x,%04x)[private]", tag.Group, tag.Element)
		}
		return fmt.Sprintf("(%04x,%04x)[??]", tag.Group, tag.Element)
	}
	return fmt.Sprintf("(%04x,%04x)[%s]", tag.Group, tag.Element, e.Keyword)
}
