package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/BaSui01/mcpgate/types"
)

const jsonSchemaDialect = "https://json-schema.org/draft/2020-12/schema"

// 指数形式的数字（如 1e999999999）在截断成整数前限制规模
const maxBinaryExponent = 1 << 16

// Builtins returns the default tool set. digits and reduce_digits are the
// same operation under the two names clients use for it.
func Builtins() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "digits",
			Description: "Reduce an integer to a single digit by repeatedly summing its digits.",
			InputSchema: numberSchema(),
			Handler:     digitsHandler,
		},
		{
			Name:        "reduce_digits",
			Description: "Reduce an integer to a single digit by repeatedly summing its digits.",
			InputSchema: numberSchema(),
			Handler:     digitsHandler,
		},
		{
			Name:        "echo",
			Description: "Return the text unchanged.",
			InputSchema: map[string]any{
				"$schema": jsonSchemaDialect,
				"type":    "object",
				"properties": map[string]any{
					"text": map[string]any{"type": "string", "description": "Text to return"},
				},
				"required":             []string{"text"},
				"additionalProperties": false,
			},
			Handler: echoHandler,
		},
	}
}

// RegisterBuiltins adds Builtins to r.
func RegisterBuiltins(r *Registry) error {
	for _, def := range Builtins() {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func numberSchema() map[string]any {
	return map[string]any{
		"$schema": jsonSchemaDialect,
		"type":    "object",
		"properties": map[string]any{
			"number": map[string]any{"type": "integer", "description": "Number to reduce"},
		},
		"required":             []string{"number"},
		"additionalProperties": false,
	}
}

func digitsHandler(_ context.Context, args map[string]any) (any, error) {
	n, err := ToInteger(args["number"])
	if err != nil {
		return nil, types.NewError(types.ErrToolValidation, "'number' must be integer").WithCause(err)
	}
	return DigitalRoot(n), nil
}

func echoHandler(_ context.Context, args map[string]any) (any, error) {
	switch v := args["text"].(type) {
	case string:
		return v, nil
	case nil:
		return "null", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, types.NewError(types.ErrToolValidation, "'text' must be string").WithCause(err)
		}
		return string(data), nil
	}
}

// =============================================================================
// 🔢 数字根
// =============================================================================

// DigitalRoot repeatedly sums the decimal digits of |n| until one digit
// remains. DigitalRoot(0) == 0.
func DigitalRoot(n *big.Int) int {
	s := new(big.Int).Abs(n).String()
	for len(s) > 1 {
		sum := 0
		for _, c := range s {
			sum += int(c - '0')
		}
		s = fmt.Sprint(sum)
	}
	return int(s[0] - '0')
}

// ToInteger coerces a decoded JSON value to an integer. Numeric strings are
// accepted; fractional numbers are truncated toward zero.
func ToInteger(v any) (*big.Int, error) {
	switch x := v.(type) {
	case json.Number:
		return parseNumber(string(x), true)
	case string:
		return parseNumber(strings.TrimSpace(x), false)
	case int:
		return big.NewInt(int64(x)), nil
	case int64:
		return big.NewInt(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("not a finite number: %v", x)
		}
		i, _ := big.NewFloat(x).Int(nil)
		return i, nil
	case *big.Int:
		return new(big.Int).Set(x), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

// parseNumber parses an integer literal. JSON numbers may also carry a
// fraction or exponent, which is truncated.
func parseNumber(s string, allowFraction bool) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty number")
	}
	if i, ok := new(big.Int).SetString(s, 10); ok {
		return i, nil
	}
	if !allowFraction {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	f, _, err := big.ParseFloat(s, 10, 256, big.ToZero)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	if f.IsInf() || f.MantExp(nil) > maxBinaryExponent {
		return nil, fmt.Errorf("number out of range %q", s)
	}
	i, _ := f.Int(nil)
	return i, nil
}
