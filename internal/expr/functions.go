package expr

import (
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// InEnumFunc reports whether a value is one of the given codes. Null and
// empty values pass; lists pass when every element is a member.
var InEnumFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "value", Type: cty.DynamicPseudoType, AllowNull: true},
		{Name: "codes", Type: cty.List(cty.String)},
	},
	Type: function.StaticReturnType(cty.Bool),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		value, codes := args[0], args[1]
		if value.IsNull() {
			return cty.True, nil
		}
		allowed := make(map[string]bool)
		for it := codes.ElementIterator(); it.Next(); {
			_, code := it.Element()
			if !code.IsNull() {
				allowed[code.AsString()] = true
			}
		}
		ty := value.Type()
		if ty.IsListType() || ty.IsTupleType() || ty.IsSetType() {
			for it := value.ElementIterator(); it.Next(); {
				_, elem := it.Element()
				if !memberOf(elem, allowed) {
					return cty.False, nil
				}
			}
			return cty.True, nil
		}
		return cty.BoolVal(memberOf(value, allowed)), nil
	},
})

func memberOf(v cty.Value, allowed map[string]bool) bool {
	s, err := convert.Convert(v, cty.String)
	if err != nil || s.IsNull() {
		return false
	}
	str := s.AsString()
	return str == "" || allowed[str]
}

// Functions returns the function table shared by the HCL validator and
// evaluator.
func Functions() map[string]function.Function {
	return map[string]function.Function{
		"in_enum":  InEnumFunc,
		"length":   stdlib.LengthFunc,
		"strlen":   stdlib.StrlenFunc,
		"upper":    stdlib.UpperFunc,
		"lower":    stdlib.LowerFunc,
		"min":      stdlib.MinFunc,
		"max":      stdlib.MaxFunc,
		"abs":      stdlib.AbsoluteFunc,
		"contains": stdlib.ContainsFunc,
		"concat":   stdlib.ConcatFunc,
		"join":     stdlib.JoinFunc,
		"regex":    stdlib.RegexFunc,
		"coalesce": stdlib.CoalesceFunc,
	}
}
