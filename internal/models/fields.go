package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FieldMap holds the structured values parsed out of a document's raw text,
// keyed by field name (e.g. "total_amount", "vendor_name", "transactions").
type FieldMap map[string]FieldValue

// FieldKind discriminates the payload carried by a FieldValue.
type FieldKind string

const (
	KindString  FieldKind = "string"
	KindNumber  FieldKind = "number"
	KindBool    FieldKind = "bool"
	KindList    FieldKind = "list"
	KindObject  FieldKind = "object"
	KindUnknown FieldKind = "unknown"
)

// FieldValue is a tagged union over the JSON value types the parser can
// produce. Payloads that fit none of the typed kinds are retained verbatim
// under KindUnknown rather than dropped.
type FieldValue struct {
	Kind   FieldKind
	Str    string
	Num    float64
	Bool   bool
	List   []FieldValue
	Object FieldMap
	Raw    json.RawMessage
}

func String(s string) FieldValue  { return FieldValue{Kind: KindString, Str: s} }
func Number(n float64) FieldValue { return FieldValue{Kind: KindNumber, Num: n} }
func Boolean(b bool) FieldValue   { return FieldValue{Kind: KindBool, Bool: b} }

func List(items ...FieldValue) FieldValue {
	return FieldValue{Kind: KindList, List: items}
}

func Object(m FieldMap) FieldValue {
	return FieldValue{Kind: KindObject, Object: m}
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case KindObject:
		if v.Object == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.Object)
	case KindUnknown:
		if len(v.Raw) == 0 {
			return []byte("null"), nil
		}
		return v.Raw, nil
	default:
		return nil, fmt.Errorf("marshal field value: unknown kind %q", v.Kind)
	}
}

func (v *FieldValue) UnmarshalJSON(data []byte) error {
	// Check for null first: unmarshalling null into a typed target is a
	// no-op success, so the string branch below would swallow it as "".
	if string(bytes.TrimSpace(data)) == "null" {
		*v = FieldValue{Kind: KindUnknown, Raw: json.RawMessage("null")}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = String(s)
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*v = Number(n)
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = Boolean(b)
		return nil
	}

	var list []FieldValue
	if err := json.Unmarshal(data, &list); err == nil {
		*v = FieldValue{Kind: KindList, List: list}
		return nil
	}

	var obj FieldMap
	if err := json.Unmarshal(data, &obj); err == nil {
		*v = FieldValue{Kind: KindObject, Object: obj}
		return nil
	}

	// A payload shape not covered above: keep the raw bytes.
	*v = FieldValue{Kind: KindUnknown, Raw: append(json.RawMessage(nil), data...)}
	return nil
}

// AsString renders scalar values as text. Numbers are formatted without a
// trailing exponent so they are safe for spreadsheet cells.
func (v FieldValue) AsString() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// String returns the named field as text, or "" if absent or non-scalar.
func (m FieldMap) String(key string) string {
	return m[key].AsString()
}

// Number returns the named field as a float. String payloads that parse as
// numbers are accepted, since OCR parsers frequently quote amounts.
func (m FieldMap) Number(key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindString:
		n, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Nested returns a field inside an object-valued field, e.g.
// Nested("invoice_details", "date").
func (m FieldMap) Nested(key, inner string) (FieldValue, bool) {
	v, ok := m[key]
	if !ok || v.Kind != KindObject {
		return FieldValue{}, false
	}
	nv, ok := v.Object[inner]
	return nv, ok
}

// FirstString returns the first non-empty string value among the given keys.
func (m FieldMap) FirstString(keys ...string) string {
	for _, k := range keys {
		if s := m.String(k); s != "" {
			return s
		}
	}
	return ""
}
