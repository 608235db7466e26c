package feel

import (
	"github.com/shopspring/decimal"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ContextBuilder accumulates context entries in insertion order. Setting a
// key twice replaces the value and keeps the original position.
type ContextBuilder struct {
	entries *orderedmap.OrderedMap[string, Value]
}

// NewContextBuilder returns an empty ContextBuilder.
func NewContextBuilder() *ContextBuilder {
	return &ContextBuilder{entries: orderedmap.New[string, Value]()}
}

// Set stores v under key.
func (b *ContextBuilder) Set(key string, v Value) *ContextBuilder {
	b.entries.Set(key, v)
	return b
}

// SetInt stores Int(i) under key.
func (b *ContextBuilder) SetInt(key string, i int64) *ContextBuilder {
	return b.Set(key, Int(i))
}

// SetFloat stores Float(f) under key. It panics on NaN or infinite input,
// like Float.
func (b *ContextBuilder) SetFloat(key string, f float64) *ContextBuilder {
	return b.Set(key, Float(f))
}

// SetDecimal stores d under key at its own scale.
func (b *ContextBuilder) SetDecimal(key string, d decimal.Decimal) *ContextBuilder {
	return b.Set(key, Number(d))
}

// SetString stores String(s) under key.
func (b *ContextBuilder) SetString(key, s string) *ContextBuilder {
	return b.Set(key, String(s))
}

// SetBool stores Bool(v) under key.
func (b *ContextBuilder) SetBool(key string, v bool) *ContextBuilder {
	return b.Set(key, Bool(v))
}

// SetNull stores null under key.
func (b *ContextBuilder) SetNull(key string) *ContextBuilder {
	return b.Set(key, Null())
}

// Build returns the context built so far. The builder may keep being used;
// later calls do not affect values already built.
func (b *ContextBuilder) Build() Value {
	return Context(b.entries)
}

// ListBuilder accumulates list items in order.
type ListBuilder struct {
	items []Value
}

// NewListBuilder returns an empty ListBuilder.
func NewListBuilder() *ListBuilder {
	return &ListBuilder{}
}

// Add appends v.
func (b *ListBuilder) Add(v Value) *ListBuilder {
	b.items = append(b.items, v)
	return b
}

// AddInt appends Int(i).
func (b *ListBuilder) AddInt(i int64) *ListBuilder { return b.Add(Int(i)) }

// AddFloat appends Float(f) and panics on NaN or infinite input.
func (b *ListBuilder) AddFloat(f float64) *ListBuilder { return b.Add(Float(f)) }

// AddDecimal appends d at its own scale.
func (b *ListBuilder) AddDecimal(d decimal.Decimal) *ListBuilder { return b.Add(Number(d)) }

// AddString appends String(s).
func (b *ListBuilder) AddString(s string) *ListBuilder { return b.Add(String(s)) }

// AddBool appends Bool(v).
func (b *ListBuilder) AddBool(v bool) *ListBuilder { return b.Add(Bool(v)) }

// AddNull appends null.
func (b *ListBuilder) AddNull() *ListBuilder { return b.Add(Null()) }

// Build returns the list built so far.
func (b *ListBuilder) Build() Value {
	return List(b.items...)
}
