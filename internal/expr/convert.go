package expr

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sort"

	"github.com/qlarr-surveys/survey-engine/internal/ir"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// toCty converts a native Go value, as produced by JSON or YAML decoding,
// into a cty.Value.
func toCty(v any) (cty.Value, error) {
	switch val := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case cty.Value:
		return val, nil
	case bool:
		return cty.BoolVal(val), nil
	case string:
		return cty.StringVal(val), nil
	case int:
		return cty.NumberIntVal(int64(val)), nil
	case int64:
		return cty.NumberIntVal(val), nil
	case float64:
		return cty.NumberFloatVal(val), nil
	case json.Number:
		f, _, err := big.ParseFloat(string(val), 10, 512, big.ToNearestEven)
		if err != nil {
			return cty.NilVal, fmt.Errorf("number %q: %w", val, err)
		}
		return cty.NumberVal(f), nil
	case []any:
		if len(val) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(val))
		for i, e := range val {
			c, err := toCty(e)
			if err != nil {
				return cty.NilVal, fmt.Errorf("[%d]: %w", i, err)
			}
			elems[i] = c
		}
		return cty.TupleVal(elems), nil
	case map[string]any:
		if len(val) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(val))
		for k, e := range val {
			c, err := toCty(e)
			if err != nil {
				return cty.NilVal, fmt.Errorf("%q: %w", k, err)
			}
			attrs[k] = c
		}
		return cty.ObjectVal(attrs), nil
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty type of %T: %w", v, err)
	}
	return gocty.ToCtyValue(v, ty)
}

// fromCty converts a cty.Value back into its natural Go shape. Whole numbers
// become int64; other numbers become float64.
func fromCty(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i, nil
			}
		}
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert number to float64: %w", err)
		}
		return f, nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			native, err := fromCty(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			native, err := fromCty(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			out[key.AsString()] = native
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty type %s", ty.FriendlyName())
}

// coerce applies the runtime type check of a return type. It reports false
// when v cannot be represented as rt.
func coerce(v cty.Value, rt ir.ReturnType) (cty.Value, bool) {
	if v.IsNull() || !v.IsKnown() {
		return v, false
	}
	switch rt {
	case ir.ReturnBoolean:
		return convertTo(v, cty.Bool)
	case ir.ReturnString, ir.ReturnDate:
		return convertTo(v, cty.String)
	case ir.ReturnInt:
		n, ok := convertTo(v, cty.Number)
		if !ok || !n.AsBigFloat().IsInt() {
			return cty.NilVal, false
		}
		return n, true
	case ir.ReturnDouble:
		return convertTo(v, cty.Number)
	case ir.ReturnList:
		ty := v.Type()
		if ty.IsListType() || ty.IsTupleType() || ty.IsSetType() {
			return v, true
		}
		return cty.NilVal, false
	case ir.ReturnMap, ir.ReturnFile:
		ty := v.Type()
		if ty.IsObjectType() || ty.IsMapType() {
			return v, true
		}
		return cty.NilVal, false
	}
	return v, true
}

func convertTo(v cty.Value, ty cty.Type) (cty.Value, bool) {
	out, err := convert.Convert(v, ty)
	if err != nil || out.IsNull() {
		return cty.NilVal, false
	}
	return out, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
