// Package feel models FEEL values exchanged with the QuantumDMN engine.
//
// A Value holds exactly one of: number, string, boolean, list, context, or
// null. Numbers are arbitrary-precision decimals and contexts keep their keys
// in insertion order, so a Value survives the trip to the engine and back
// without binary-float drift or re-sorted keys.
//
// # Building inputs
//
//	input := feel.NewContextBuilder().
//	    SetInt("age", 25).
//	    SetDecimal("income", decimal.RequireFromString("50000.00")).
//	    SetBool("employed", true).
//	    Build()
//
// Untyped data (decoded YAML, map[string]any from another library) is
// classified with FromRaw:
//
//	v := feel.FromRaw(map[string]any{"tags": []any{"a", "b"}, "score": 0.1})
//
// # Wire format
//
// Value implements json.Marshaler and json.Unmarshaler. Numbers are written
// as exact decimal literals and context keys are written and read in order:
//
//	b, _ := feel.Marshal(input)        // {"age":25,"income":50000.00,"employed":true}
//	back, _ := feel.Unmarshal(b)       // back.Equal(input) == true
package feel
