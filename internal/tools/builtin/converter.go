package builtin

import (
	"context"
	"fmt"
	"math"

	"chatkit/internal/tools"
)

// ConvertArgs are the unit converter's arguments.
type ConvertArgs struct {
	Value float64 `json:"value" jsonschema_description:"要转换的数值"`
	From  string  `json:"from" jsonschema:"enum=cm,enum=m,enum=kg,enum=g,enum=C,enum=F" jsonschema_description:"原始单位: cm(厘米), m(米), kg(千克), g(克), C(摄氏度), F(华氏度)"`
	To    string  `json:"to" jsonschema:"enum=cm,enum=m,enum=kg,enum=g,enum=C,enum=F" jsonschema_description:"目标单位: cm(厘米), m(米), kg(千克), g(克), C(摄氏度), F(华氏度)"`
}

// Conversion is a converted quantity.
type Conversion struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Convert performs one of the supported unit conversions. Temperatures are
// rounded to two decimals.
func Convert(a ConvertArgs) (Conversion, error) {
	v := a.Value
	switch a.From + "->" + a.To {
	case "cm->m":
		return Conversion{Value: v / 100, Unit: "m"}, nil
	case "m->cm":
		return Conversion{Value: v * 100, Unit: "cm"}, nil
	case "kg->g":
		return Conversion{Value: v * 1000, Unit: "g"}, nil
	case "g->kg":
		return Conversion{Value: v / 1000, Unit: "kg"}, nil
	case "C->F":
		return Conversion{Value: round2(v*9/5 + 32), Unit: "°F"}, nil
	case "F->C":
		return Conversion{Value: round2((v - 32) * 5 / 9), Unit: "°C"}, nil
	}
	return Conversion{}, fmt.Errorf("不支持的单位转换: %s 到 %s", a.From, a.To)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// NewUnitConverter returns the unit converter tool.
func NewUnitConverter() tools.Tool {
	return tools.MustTyped(tools.NameUnitConverter,
		"用于进行单位换算的工具，支持双向转换：厘米↔米(cm↔m)、千克↔克(kg↔g)、摄氏度↔华氏度(C↔F)。",
		func(_ context.Context, a ConvertArgs) (any, error) {
			return Convert(a)
		})
}
