package scripting

import (
	"fmt"
	"sort"
	"strconv"
)

// Kind identifies the dynamic type of a Value.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindText
	KindList // ordered table
	KindMap  // named table
)

var kindNames = [...]string{"nil", "bool", "number", "text", "list", "map"}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is the closed set of types that may cross into and out of a scope's
// interpreter. Engines marshal these to and from their native
// representation; nothing mutable is ever shared between interpreters.
type Value struct {
	kind Kind
	b    bool
	num  float64
	str  string
	list []Value
	m    map[string]Value
}

// MakeNil returns the absent value.
func MakeNil() Value { return Value{kind: KindNil} }

// MakeBool returns a boolean value.
func MakeBool(b bool) Value { return Value{kind: KindBool, b: b} }

// MakeNumber returns a numeric value.
func MakeNumber(n float64) Value { return Value{kind: KindNumber, num: n} }

// MakeText returns a text value.
func MakeText(s string) Value { return Value{kind: KindText, str: s} }

// MakeList returns an ordered table value. The items are copied.
func MakeList(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// MakeMap returns a named table value. The entries are copied.
func MakeMap(entries map[string]Value) Value {
	cp := make(map[string]Value, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	return Value{kind: KindMap, m: cp}
}

// MakeTextMap returns a named table of text values.
func MakeTextMap(entries map[string]string) Value {
	cp := make(map[string]Value, len(entries))
	for k, v := range entries {
		cp[k] = MakeText(v)
	}
	return Value{kind: KindMap, m: cp}
}

// Kind returns the dynamic type of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNil reports whether the value is absent.
func (v Value) IsNil() bool { return v.kind == KindNil }

// IsScalar reports whether the value may cross a scope boundary:
// only nil, bool, number and text values may.
func (v Value) IsScalar() bool {
	switch v.kind {
	case KindNil, KindBool, KindNumber, KindText:
		return true
	}
	return false
}

// BoolVal returns the boolean payload; false for any other kind.
func (v Value) BoolVal() bool { return v.kind == KindBool && v.b }

// NumberVal returns the numeric payload, parsing text if possible.
func (v Value) NumberVal() float64 {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindText:
		n, _ := strconv.ParseFloat(v.str, 64)
		return n
	}
	return 0
}

// TextVal returns the text payload; numbers are formatted.
func (v Value) TextVal() string {
	switch v.kind {
	case KindText:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

// ListVal returns the items of an ordered table; nil for other kinds.
func (v Value) ListVal() []Value { return v.list }

// MapVal returns the entries of a named table; nil for other kinds.
func (v Value) MapVal() map[string]Value { return v.m }

// Keys returns the sorted keys of a named table.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindText:
		return strconv.Quote(v.str)
	case KindList:
		return fmt.Sprintf("list(%d items)", len(v.list))
	case KindMap:
		return fmt.Sprintf("map(%d entries)", len(v.m))
	}
	return "invalid"
}

// FromAny converts a small set of Go values into a Value. It is the host
// side of the marshaling contract.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return MakeNil(), nil
	case bool:
		return MakeBool(t), nil
	case int:
		return MakeNumber(float64(t)), nil
	case int64:
		return MakeNumber(float64(t)), nil
	case float64:
		return MakeNumber(t), nil
	case string:
		return MakeText(t), nil
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = MakeText(s)
		}
		return Value{kind: KindList, list: items}, nil
	case map[string]string:
		return MakeTextMap(t), nil
	case Value:
		return t, nil
	}
	return Value{}, fmt.Errorf("cannot convert %T to a script value", x)
}

// UnsupportedTypeError reports a value that may not cross a scope
// boundary, naming the offending argument position (1-based).
type UnsupportedTypeError struct {
	Position int
	Kind     Kind
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("cannot pass argument #%d (%s type) across scopes", e.Position, e.Kind)
}

// CheckScalars verifies that every value in args may cross a scope
// boundary. The callee must not be invoked when this fails.
func CheckScalars(args []Value) error {
	for i, a := range args {
		if !a.IsScalar() {
			return &UnsupportedTypeError{Position: i + 1, Kind: a.Kind()}
		}
	}
	return nil
}
