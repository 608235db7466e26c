package feel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrTrailingData is returned by Unmarshal when the input holds more than
// one JSON value.
var ErrTrailingData = errors.New("feel: trailing data after value")

// Marshal encodes v as JSON. Numbers are written as exact decimal literals
// at their stored scale, lists in order, contexts in insertion order.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindNumber:
		buf.WriteString(numberLiteral(v.num))
	case KindString:
		return encodeString(buf, v.str)
	case KindBoolean:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindContext:
		buf.WriteByte('{')
		first := true
		for p := v.ctx.Oldest(); p != nil; p = p.Next() {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			if err := encodeString(buf, p.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, p.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("feel: cannot encode %s", v.kind)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("feel: encode string: %w", err)
	}
	buf.Write(b)
	return nil
}

// maxPlainExponent bounds the exponents written in plain digits. Beyond it
// a literal such as 1e100000000 would expand to its full length.
const maxPlainExponent = 64

// numberLiteral renders d keeping the scale it was parsed with ("50000.00"
// stays "50000.00"). Exponents beyond maxPlainExponent in either direction
// are written as <coefficient>e<exponent>, which decodes to the same value.
func numberLiteral(d decimal.Decimal) string {
	exp := d.Exponent()
	switch {
	case exp > maxPlainExponent || exp < -maxPlainExponent:
		return d.Coefficient().String() + "e" + strconv.FormatInt(int64(exp), 10)
	case exp < 0:
		return d.StringFixed(-exp)
	}
	return d.String()
}

// Unmarshal decodes a single JSON value. Object keys keep the order in which
// they appear in data; a repeated key keeps its first position and its last
// value. Numbers are parsed straight from their literal text.
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, ErrTrailingData
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, fmt.Errorf("feel: decode: %w", err)
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return Value{}, fmt.Errorf("feel: decode number %q: %w", t, err)
		}
		return Number(d), nil
	case json.Delim:
		switch t {
		case '[':
			return decodeList(dec)
		case '{':
			return decodeContext(dec)
		}
	}
	return Value{}, fmt.Errorf("feel: decode: unexpected token %v", tok)
}

func decodeList(dec *json.Decoder) (Value, error) {
	items := []Value{}
	for dec.More() {
		item, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		items = append(items, item)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, fmt.Errorf("feel: decode list: %w", err)
	}
	return Value{kind: KindList, list: items}, nil
}

func decodeContext(dec *json.Decoder) (Value, error) {
	ctx := orderedmap.New[string, Value]()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Value{}, fmt.Errorf("feel: decode context key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("feel: decode context: key %v is not a string", tok)
		}
		item, err := decodeValue(dec)
		if err != nil {
			return Value{}, fmt.Errorf("key %q: %w", key, err)
		}
		ctx.Set(key, item)
	}
	if _, err := dec.Token(); err != nil {
		return Value{}, fmt.Errorf("feel: decode context: %w", err)
	}
	return Value{kind: KindContext, ctx: ctx}, nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := Unmarshal(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}
