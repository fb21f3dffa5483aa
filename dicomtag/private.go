package dicomtag

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type privateElementDef struct {
	Element uint16 `yaml:"element"`
	VR      string `yaml:"vr"`
	Keyword string `yaml:"keyword"`
	VM      string `yaml:"vm"`
}

type privateBlockDef struct {
	Creator  string              `yaml:"creator"`
	Group    uint16              `yaml:"group"`
	Elements []privateElementDef `yaml:"elements"`
}

// LoadPrivateDictionary reads a YAML list of private creator blocks:
//
//	- creator: SIEMENS CSA HEADER
//	  group: 0x0029
//	  elements:
//	    - element: 0x10
//	      vr: OB
//	      keyword: CSAImageHeaderInfo
//
// Element numbers are the low byte within the creator's reserved block.
func (d *StandardDictionary) LoadPrivateDictionary(in io.Reader) error {
	var blocks []privateBlockDef
	if err := yaml.NewDecoder(in).Decode(&blocks); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("private dictionary: %w", err)
	}
	for _, b := range blocks {
		if b.Creator == "" {
			return fmt.Errorf("private dictionary: block for group %04x has no creator", b.Group)
		}
		if !IsPrivate(b.Group) {
			return fmt.Errorf("private dictionary: creator %q: group %04x is not private", b.Creator, b.Group)
		}
		for _, el := range b.Elements {
			if el.Element > 0xff {
				return fmt.Errorf("private dictionary: creator %q: element %04x exceeds block", b.Creator, el.Element)
			}
			vr, ok := ParseVR(el.VR)
			if !ok {
				return fmt.Errorf("private dictionary: creator %q: element %02x: bad VR %q", b.Creator, el.Element, el.VR)
			}
			vm := el.VM
			if vm == "" {
				vm = "1"
			}
			d.AddPrivate(b.Creator, &Entry{
				Tag:     Tag{Group: b.Group, Element: el.Element},
				Keyword: el.Keyword,
				VRs:     []VR{vr},
				VM:      vm,
			})
		}
	}
	return nil
}
