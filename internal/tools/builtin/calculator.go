package builtin

import (
	"context"
	"errors"
	"fmt"

	"chatkit/internal/tools"
)

// CalculatorArgs are the calculator's arguments.
type CalculatorArgs struct {
	Num1      float64 `json:"num1" jsonschema_description:"第一个操作数（必须是需要参与计算的数字）"`
	Num2      float64 `json:"num2" jsonschema_description:"第二个操作数（必须是需要参与计算的数字）"`
	Operation string  `json:"operation" jsonschema:"enum=add,enum=subtract,enum=multiply,enum=divide" jsonschema_description:"运算操作类型：add(加法)、subtract(减法)、multiply(乘法)、divide(除法)"`
}

// ErrDivideByZero is returned for divide with a zero divisor.
var ErrDivideByZero = errors.New("除数不能为零")

// Calculate applies one of the four arithmetic operations.
func Calculate(a CalculatorArgs) (float64, error) {
	switch a.Operation {
	case "add":
		return a.Num1 + a.Num2, nil
	case "subtract":
		return a.Num1 - a.Num2, nil
	case "multiply":
		return a.Num1 * a.Num2, nil
	case "divide":
		if a.Num2 == 0 {
			return 0, ErrDivideByZero
		}
		return a.Num1 / a.Num2, nil
	default:
		return 0, fmt.Errorf("不支持的操作: %s", a.Operation)
	}
}

// NewCalculator returns the calculator tool.
func NewCalculator() tools.Tool {
	return tools.MustTyped(tools.NameCalculator,
		"用于进行数学四则运算的计算器工具。仅在用户明确要求进行数学计算（如加减乘除运算）时使用。注意：历史事件中的年份、日期、数量等描述性数字不需要使用此工具进行计算。",
		func(_ context.Context, a CalculatorArgs) (any, error) {
			return Calculate(a)
		})
}
