package feel_test

import (
	"testing"

	"github.com/quantumdmn/dmn-go/pkg/feel"
	"github.com/shopspring/decimal"
)

func TestContextBuilder(t *testing.T) {
	b := feel.NewContextBuilder().
		SetInt("age", 25).
		SetFloat("income", 50000.5).
		SetBool("employed", true).
		SetString("name", "Ada").
		SetNull("spouse")
	v := b.Build()

	if got, want := v.String(), `{"age":25,"income":50000.5,"employed":true,"name":"Ada","spouse":null}`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}

	b.SetInt("age", 26)
	if age, _ := v.Get("age"); !age.Equal(feel.Int(25)) {
		t.Errorf("built value changed after builder reuse: age=%s", age)
	}
	if keys := b.Build().Keys(); keys[0] != "age" {
		t.Errorf("overwritten key moved: %v", keys)
	}
}

func TestListBuilder(t *testing.T) {
	v := feel.NewListBuilder().
		AddInt(1).
		AddDecimal(decimal.RequireFromString("2.50")).
		AddString("x").
		AddBool(false).
		AddNull().
		Add(feel.List()).
		Build()

	if got, want := v.String(), `[1,2.50,"x",false,null,[]]`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}
