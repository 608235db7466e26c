package feel

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	// ErrNotNumber is returned by FromNumber for input that is not a finite
	// number or a decimal literal.
	ErrNotNumber = errors.New("feel: not a number")

	// ErrUnsupportedShape is returned by FromRawStrict for input outside the
	// recognised shapes.
	ErrUnsupportedShape = errors.New("feel: unsupported value shape")
)

// FromNumber converts any Go numeric type, json.Number, decimal.Decimal,
// *big.Int, or decimal text into a number value. Text keeps its scale:
// "50000.00" stays 50000.00 on the wire. Floats are converted through
// their shortest round-trip decimal, never through binary expansion, and
// integral floats keep one fractional digit: 50000.0 encodes as 50000.0.
func FromNumber(n any) (Value, error) {
	d, err := toDecimal(n)
	if err != nil {
		return Value{}, err
	}
	return Number(d), nil
}

func toDecimal(n any) (decimal.Decimal, error) {
	switch x := n.(type) {
	case decimal.Decimal:
		return x, nil
	case json.Number:
		return parseDecimal(string(x))
	case string:
		return parseDecimal(x)
	case *big.Int:
		if x == nil {
			return decimal.Decimal{}, fmt.Errorf("%w: nil *big.Int", ErrNotNumber)
		}
		return decimal.NewFromBigInt(x, 0), nil
	}

	rv := reflect.ValueOf(n)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(rv.Uint()), 0), nil
	case reflect.Float32:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrNotNumber, f)
		}
		return floatScale(decimal.NewFromFloat32(float32(f))), nil
	case reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrNotNumber, f)
		}
		return floatScale(decimal.NewFromFloat(f)), nil
	}
	return decimal.Decimal{}, fmt.Errorf("%w: %T", ErrNotNumber, n)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrNotNumber, s)
	}
	return d, nil
}

// FromRaw classifies untyped Go data by shape:
//
//	nil                          → null
//	bool (and named bool types)  → boolean
//	string (and named strings)   → string
//	integers, floats, json.Number,
//	decimal.Decimal, *big.Int    → number
//	slices and arrays            → list, element-wise
//	map[string]T                 → context, keys in sorted order
//	*orderedmap.OrderedMap       → context, in the map's order
//	Value                        → itself
//
// Nil slices, maps and pointers become null, as encoding/json treats them.
// Non-nil pointers are followed.
//
// Anything else, including NaN or infinite floats and maps with non-string
// keys, becomes a string holding fmt.Sprint of the input. Use FromRawStrict
// to reject such input instead.
//
// Go randomises map iteration, so plain maps are read in sorted key order to
// keep the result deterministic.
func FromRaw(x any) Value {
	v, _ := classify(x, false)
	return v
}

// FromRawStrict is FromRaw without the string fallback: input outside the
// recognised shapes yields an error wrapping ErrUnsupportedShape.
func FromRawStrict(x any) (Value, error) {
	return classify(x, true)
}

func classify(x any, strict bool) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case *orderedmap.OrderedMap[string, Value]:
		if t == nil {
			return Null(), nil
		}
		return Context(t), nil
	case *orderedmap.OrderedMap[string, any]:
		if t == nil {
			return Null(), nil
		}
		ctx := orderedmap.New[string, Value]()
		for p := t.Oldest(); p != nil; p = p.Next() {
			item, err := classify(p.Value, strict)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", p.Key, err)
			}
			ctx.Set(p.Key, item)
		}
		return Value{kind: KindContext, ctx: ctx}, nil
	case *big.Int:
		if t == nil {
			return Null(), nil
		}
		return Number(decimal.NewFromBigInt(t, 0)), nil
	case decimal.Decimal, json.Number:
		d, err := toDecimal(t)
		if err != nil {
			return fallback(x, strict)
		}
		return Number(d), nil
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		d, err := toDecimal(x)
		if err != nil {
			return fallback(x, strict)
		}
		return Number(d), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Null(), nil
		}
		items := make([]Value, rv.Len())
		for i := range items {
			item, err := classify(rv.Index(i).Interface(), strict)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = item
		}
		return Value{kind: KindList, list: items}, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return fallback(x, strict)
		}
		if rv.IsNil() {
			return Null(), nil
		}
		type entry struct {
			key string
			val reflect.Value
		}
		entries := make([]entry, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			entries = append(entries, entry{key: iter.Key().String(), val: iter.Value()})
		}
		slices.SortFunc(entries, func(a, b entry) int { return strings.Compare(a.key, b.key) })
		ctx := orderedmap.New[string, Value]()
		for _, e := range entries {
			item, err := classify(e.val.Interface(), strict)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", e.key, err)
			}
			ctx.Set(e.key, item)
		}
		return Value{kind: KindContext, ctx: ctx}, nil
	case reflect.Pointer:
		if rv.IsNil() {
			return Null(), nil
		}
		return classify(rv.Elem().Interface(), strict)
	}
	return fallback(x, strict)
}

func fallback(x any, strict bool) (Value, error) {
	if strict {
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedShape, x)
	}
	return String(fmt.Sprint(x)), nil
}

// ToRaw projects v onto plain Go data for logging or for code that does not
// know about Value: nil, json.Number, string, bool, []any, map[string]any.
// Numbers become json.Number so the exact literal survives json.Marshal.
// Context order is not kept by map[string]any; use Marshal when order
// matters.
func (v Value) ToRaw() any {
	switch v.kind {
	case KindNumber:
		return json.Number(numberLiteral(v.num))
	case KindString:
		return v.str
	case KindBoolean:
		return v.b
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.ToRaw()
		}
		return out
	case KindContext:
		out := make(map[string]any, v.ctx.Len())
		for p := v.ctx.Oldest(); p != nil; p = p.Next() {
			out[p.Key] = p.Value.ToRaw()
		}
		return out
	default:
		return nil
	}
}

// floatScale gives an integral float the single fractional digit its
// literal form carries.
func floatScale(d decimal.Decimal) decimal.Decimal {
	if d.Exponent() >= 0 {
		return d.Round(1)
	}
	return d
}
