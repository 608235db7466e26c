package feel

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrTypeMismatch is matched by every *TypeMismatchError.
var ErrTypeMismatch = errors.New("feel: type mismatch")

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBoolean
	KindList
	KindContext
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBoolean:
		return "boolean"
	case KindList:
		return "list"
	case KindContext:
		return "context"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// TypeMismatchError is returned when an accessor is called on a Value of a
// different kind. It indicates a programming error in the caller.
type TypeMismatchError struct {
	Want Kind
	Got  Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("feel: expected %s, got %s", e.Want, e.Got)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// Value is an immutable FEEL value. The zero Value is null.
//
// Only the field matching kind is meaningful. List and context payloads are
// never exposed directly; accessors hand out copies.
type Value struct {
	kind Kind
	num  decimal.Decimal
	str  string
	b    bool
	list []Value
	ctx  *orderedmap.OrderedMap[string, Value]
}

// Null returns the null value.
func Null() Value { return Value{} }

// Number wraps an exact decimal.
func Number(d decimal.Decimal) Value { return Value{kind: KindNumber, num: d} }

// Int returns a number holding i.
func Int(i int64) Value { return Number(decimal.NewFromInt(i)) }

// Float returns a number holding the shortest decimal that round-trips f,
// so Float(0.1) is exactly 0.1 and Float(50000) is 50000.0. It panics if f
// is NaN or infinite; use FromNumber to get an error instead.
func Float(f float64) Value { return Number(floatScale(decimal.NewFromFloat(f))) }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBoolean, b: b} }

// List returns a list of items. The slice is copied.
func List(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Context returns a context holding the entries of m in m's order.
// The map is copied; a nil map yields an empty context.
func Context(m *orderedmap.OrderedMap[string, Value]) Value {
	return Value{kind: KindContext, ctx: copyContext(m)}
}

func copyContext(m *orderedmap.OrderedMap[string, Value]) *orderedmap.OrderedMap[string, Value] {
	cp := orderedmap.New[string, Value]()
	if m == nil {
		return cp
	}
	for p := m.Oldest(); p != nil; p = p.Next() {
		cp.Set(p.Key, p.Value)
	}
	return cp
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) mismatch(want Kind) error {
	return &TypeMismatchError{Want: want, Got: v.kind}
}

// AsNumber returns the decimal held by a number value.
func (v Value) AsNumber() (decimal.Decimal, error) {
	if v.kind != KindNumber {
		return decimal.Decimal{}, v.mismatch(KindNumber)
	}
	return v.num, nil
}

// AsString returns the text held by a string value.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", v.mismatch(KindString)
	}
	return v.str, nil
}

// AsBool returns the flag held by a boolean value.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBoolean {
		return false, v.mismatch(KindBoolean)
	}
	return v.b, nil
}

// AsList returns a copy of the items of a list value.
func (v Value) AsList() ([]Value, error) {
	if v.kind != KindList {
		return nil, v.mismatch(KindList)
	}
	cp := make([]Value, len(v.list))
	copy(cp, v.list)
	return cp, nil
}

// AsContext returns a copy of the entries of a context value, in order.
func (v Value) AsContext() (*orderedmap.OrderedMap[string, Value], error) {
	if v.kind != KindContext {
		return nil, v.mismatch(KindContext)
	}
	return copyContext(v.ctx), nil
}

// Get looks up key in a context value. It returns false when v is not a
// context or has no such key.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindContext {
		return Value{}, false
	}
	return v.ctx.Get(key)
}

// Index returns the i-th item of a list value. It returns false when v is
// not a list or i is out of range.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindList || i < 0 || i >= len(v.list) {
		return Value{}, false
	}
	return v.list[i], true
}

// Keys returns the keys of a context value in insertion order, or nil.
func (v Value) Keys() []string {
	if v.kind != KindContext {
		return nil
	}
	keys := make([]string, 0, v.ctx.Len())
	for p := v.ctx.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Len returns the number of items in a list or entries in a context, and 0
// for every other kind.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindContext:
		return v.ctx.Len()
	default:
		return 0
	}
}

// Equal reports whether v and o hold the same kind and payload. Numbers are
// compared by value and their scale is ignored, so 1 equals 1.00 even though
// the two encode differently; compare Marshal output to tell them apart.
// Contexts are equal when they hold the same keys with equal values; entry
// order is not compared.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindNumber:
		return v.num.Equal(o.num)
	case KindString:
		return v.str == o.str
	case KindBoolean:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindContext:
		if v.ctx.Len() != o.ctx.Len() {
			return false
		}
		for p := v.ctx.Oldest(); p != nil; p = p.Next() {
			other, ok := o.ctx.Get(p.Key)
			if !ok || !p.Value.Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders v in its JSON wire form.
func (v Value) String() string {
	b, err := Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%s: %v>", v.kind, err)
	}
	return string(b)
}
