package dicom

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/odincare/dcmstream/dicomtag"

	"github.com/gobwas/glob"
)

// 查询检查dataset是否符合QR condition "filter"。
// 如果是，就返回<true, 匹配的element, nil>
// 如果 "filter" 要求一个通用匹配(universal match) i.e. 空查询 empty query value 且 element的filter.Tag不存在，函数返回<true, nil, nil>
// 如果”filter“有误(malformed)，函数返回<false, nil, err reason>
func Query(ds *DataSet, f *Element) (match bool, matchedElement *Element, err error) {

	if len(f.Value) > 1 && f.VR != dicomtag.SQ {
		// 过滤器不能包含多个值 P3.4 C2.2.2.1
		return false, nil, fmt.Errorf("multiple values found in filter '%v'", f)
	}

	if f.Tag.Equals(dicomtag.QueryRetrieveLevel) || f.Tag.Equals(dicomtag.SpecificCharacterSet) {
		return true, nil, nil
	}

	elem, _ := ds.FindElementByTag(f.Tag)
	match, err = queryElement(elem, f)
	if !match {
		return false, nil, err
	}
	return true, elem, nil
}

// ParseQuery 解析 "Keyword=pattern" 或 "(gggg,eeee)=pattern" 格式的查询
// 只支持字符串类VR
func ParseQuery(expr string) (*Element, error) {
	key, pattern, ok := strings.Cut(expr, "=")
	if !ok {
		return nil, fmt.Errorf("query %q: expect KEY=PATTERN", expr)
	}
	key = strings.TrimSpace(key)

	var entry *dicomtag.Entry
	if tag, err := dicomtag.ParseTag(key); err == nil {
		entry, err = dicomtag.Find(tag)
		if err != nil {
			return nil, err
		}
	} else {
		entry, err = dicomtag.FindByName(key)
		if err != nil {
			return nil, err
		}
	}

	switch dicomtag.GetVRKind(entry.Tag, entry.VR()) {
	case dicomtag.VRStringList, dicomtag.VRString, dicomtag.VRDate:
	default:
		return nil, fmt.Errorf("query %q: VR %s is not supported", expr, entry.VR())
	}
	return &Element{Tag: entry.Tag, VR: entry.VR(), Value: []interface{}{pattern}}, nil
}

func queryElement(elem *Element, f *Element) (match bool, err error) {
	if isEmptyQuery(f) {
		return true, nil
	}
	if f.VR == dicomtag.SQ {
		return querySequence(elem, f)
	}
	if elem == nil {
		// 不存在的element只有通用匹配能命中
		return false, nil
	}
	if f.VR != elem.VR {
		return false, fmt.Errorf("VR mismatch: filter %v, value %v", f, elem)
	}

	pattern, ok := f.Value[0].(string)
	if !ok || f.VR == dicomtag.UI {
		// UID和二进制值只做精确匹配 P3.4 C.2.2.2.2
		for _, value := range elem.Value {
			if equalValue(value, f.Value[0]) {
				return true, nil
			}
		}
		return false, nil
	}

	// TODO 日期范围匹配 (YYYYMMDD-YYYYMMDD) P3.4 C.2.2.2.5
	g, err := glob.Compile(pattern)
	if err != nil {
		return false, fmt.Errorf("query pattern %q: %w", pattern, err)
	}
	for _, value := range elem.Value {
		if s, ok := value.(string); ok && g.Match(s) {
			return true, nil
		}
	}
	return false, nil
}

// querySequence 匹配sequence: filter的每个item里的条件
// 都必须被elem中至少一个item满足 P3.4 C.2.2.2.6
func querySequence(elem *Element, f *Element) (match bool, err error) {
	if elem == nil || elem.VR != dicomtag.SQ {
		return false, nil
	}

	for _, fv := range f.Value {
		fItem, ok := fv.(*Element)
		if !ok {
			return false, fmt.Errorf("malformed sequence filter '%v'", f)
		}

		found := false
		for _, v := range elem.Value {
			item := v.(*Element)
			ds := &DataSet{}
			for _, sub := range item.Value {
				ds.Elements = append(ds.Elements, sub.(*Element))
			}

			all := true
			for _, sf := range fItem.Value {
				ok, _, err := Query(ds, sf.(*Element))
				if err != nil {
					return false, err
				}
				if !ok {
					all = false
					break
				}
			}
			if all {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	return true, nil
}

func equalValue(a, b interface{}) bool {
	ab, ok := a.([]byte)
	if !ok {
		_, isBytes := b.([]byte)
		return !isBytes && a == b
	}
	bb, ok := b.([]byte)
	return ok && bytes.Equal(ab, bb)
}

// isEmptyQuery 空值或者全是"*"的pattern都是通用匹配 P3.4 C.2.2.2.4
func isEmptyQuery(f *Element) bool {
	if len(f.Value) == 0 {
		return true
	}
	switch v := f.Value[0].(type) {
	case []byte:
		return len(v) == 0
	case string:
		return strings.Trim(v, "*") == ""
	}
	return false
}
