package feel_test

import (
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/quantumdmn/dmn-go/pkg/feel"
	"github.com/shopspring/decimal"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

func TestFromNumber_preservesDecimalText(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"float 50000.0", 50000.0, "50000.0"},
		{"float32 integral", float32(3), "3.0"},
		{"int 50000", 50000, "50000"},
		{"text 50000.0", "50000.0", "50000.0"},
		{"text 50000.00", "50000.00", "50000.00"},
		{"float 0.1", 0.1, "0.1"},
		{"float32 0.1", float32(0.1), "0.1"},
		{"json.Number", json.Number("12.340"), "12.340"},
		{"uint64 max", uint64(math.MaxUint64), "18446744073709551615"},
		{"big.Int", new(big.Int).Lsh(big.NewInt(1), 100), "1267650600228229401496703205376"},
		{"decimal", decimal.New(15, -1), "1.5"},
		{"negative text", " -0.000123 ", "-0.000123"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := feel.FromNumber(tc.in)
			if err != nil {
				t.Fatalf("FromNumber(%v): %v", tc.in, err)
			}
			raw, ok := v.ToRaw().(json.Number)
			if !ok {
				t.Fatalf("ToRaw type: got %T, want json.Number", v.ToRaw())
			}
			if string(raw) != tc.want {
				t.Errorf("ToRaw: got %s, want %s", raw, tc.want)
			}
		})
	}
}

func TestFromNumber_floatAndTextAgree(t *testing.T) {
	fromFloat, err := feel.FromNumber(50000.0)
	if err != nil {
		t.Fatal(err)
	}
	fromText, err := feel.FromNumber("50000.0")
	if err != nil {
		t.Fatal(err)
	}
	if !fromFloat.Equal(fromText) {
		t.Errorf("50000.0 as float (%s) and text (%s) diverged", fromFloat, fromText)
	}

	d, _ := feel.Float(0.1).AsNumber()
	if !d.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("Float(0.1) drifted to %s", d.String())
	}
}

func TestFromNumber_rejects(t *testing.T) {
	for _, in := range []any{math.NaN(), math.Inf(1), "abc", "", true, []int{1}, (*big.Int)(nil)} {
		if _, err := feel.FromNumber(in); !errors.Is(err, feel.ErrNotNumber) {
			t.Errorf("FromNumber(%#v): expected ErrNotNumber, got %v", in, err)
		}
	}
}

type stringer struct{ name string }

func (s stringer) String() string { return "stringer:" + s.name }

type age int

func TestFromRaw(t *testing.T) {
	ordered := orderedmap.New[string, any]()
	ordered.Set("z", 1)
	ordered.Set("a", "x")

	tests := []struct {
		name string
		in   any
		want feel.Value
	}{
		{"nil", nil, feel.Null()},
		{"true", true, feel.Bool(true)},
		{"string", "hello", feel.String("hello")},
		{"int", 7, feel.Int(7)},
		{"named int", age(30), feel.Int(30)},
		{"float", 2.5, feel.Number(decimal.RequireFromString("2.5"))},
		{"json.Number", json.Number("1e3"), feel.Int(1000)},
		{"mixed list", []any{1, "x", nil}, feel.List(feel.Int(1), feel.String("x"), feel.Null())},
		{"typed slice", []string{"a", "b"}, feel.List(feel.String("a"), feel.String("b"))},
		{"array", [2]bool{true, false}, feel.List(feel.Bool(true), feel.Bool(false))},
		{"nil slice", []any(nil), feel.Null()},
		{"map", map[string]any{"b": 2, "a": []any{true}},
			feel.NewContextBuilder().Set("a", feel.List(feel.Bool(true))).SetInt("b", 2).Build()},
		{"ordered map", ordered, feel.NewContextBuilder().SetInt("z", 1).SetString("a", "x").Build()},
		{"value passthrough", feel.Int(5), feel.Int(5)},
		{"pointer", func() any { n := 3; return &n }(), feel.Int(3)},
		{"nil pointer", (*int)(nil), feel.Null()},
		{"stringer fallback", stringer{name: "s"}, feel.String("stringer:s")},
		{"struct fallback", struct{ A int }{A: 1}, feel.String("{1}")},
		{"non-string keys fallback", map[int]string{1: "a"}, feel.String("map[1:a]")},
		{"NaN fallback", math.NaN(), feel.String("NaN")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := feel.FromRaw(tc.in)
			if !got.Equal(tc.want) {
				t.Errorf("FromRaw(%#v): got %s (%s), want %s (%s)", tc.in, got, got.Kind(), tc.want, tc.want.Kind())
			}
		})
	}
}

func TestFromRaw_keyOrder(t *testing.T) {
	sorted := feel.FromRaw(map[string]int{"c": 3, "a": 1, "b": 2})
	if keys := sorted.Keys(); len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Errorf("plain map keys: got %v, want [a b c]", keys)
	}

	ordered := orderedmap.New[string, any]()
	ordered.Set("c", 3)
	ordered.Set("a", 1)
	if keys := feel.FromRaw(ordered).Keys(); len(keys) != 2 || keys[0] != "c" || keys[1] != "a" {
		t.Errorf("ordered map keys: got %v, want [c a]", keys)
	}
}

func TestFromRawStrict(t *testing.T) {
	if _, err := feel.FromRawStrict(struct{}{}); !errors.Is(err, feel.ErrUnsupportedShape) {
		t.Errorf("struct: expected ErrUnsupportedShape, got %v", err)
	}

	_, err := feel.FromRawStrict(map[string]any{"ok": 1, "bad": []any{1, make(chan int)}})
	if !errors.Is(err, feel.ErrUnsupportedShape) {
		t.Fatalf("nested chan: expected ErrUnsupportedShape, got %v", err)
	}
	if want := `key "bad": index 1:`; len(err.Error()) < len(want) || err.Error()[:len(want)] != want {
		t.Errorf("error should locate the bad element, got %q", err)
	}

	v, err := feel.FromRawStrict([]any{1, "x", nil})
	if err != nil {
		t.Fatalf("supported input: %v", err)
	}
	if !v.Equal(feel.List(feel.Int(1), feel.String("x"), feel.Null())) {
		t.Errorf("got %s", v)
	}
}

func TestToRaw(t *testing.T) {
	v := feel.NewContextBuilder().
		SetString("name", "Ada").
		Set("scores", feel.List(feel.Number(decimal.RequireFromString("9.50")), feel.Null())).
		SetBool("active", true).
		Build()

	raw, ok := v.ToRaw().(map[string]any)
	if !ok {
		t.Fatalf("ToRaw type: got %T", v.ToRaw())
	}
	if raw["name"] != "Ada" || raw["active"] != true {
		t.Errorf("scalars: got %v", raw)
	}
	scores, ok := raw["scores"].([]any)
	if !ok || len(scores) != 2 || scores[0] != json.Number("9.50") || scores[1] != nil {
		t.Errorf("scores: got %#v", raw["scores"])
	}

	back := feel.FromRaw(raw)
	if !back.Equal(v) {
		t.Errorf("FromRaw(ToRaw(v)) = %s, want %s", back, v)
	}
}
