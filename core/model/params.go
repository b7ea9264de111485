package model

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/pipeperm/pkg/errors"
)

// Parameter values arrive from Go code and from YAML experiment files, where
// integers and floats are not distinguished. These helpers accept any numeric
// representation that converts without loss.

// ParamFloat converts v to float64.
func ParamFloat(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	}
	return 0, errors.NewValidationError(name, "expected a number", v)
}

// ParamInt converts v to int. Floats are accepted when integral.
func ParamInt(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case int32:
		return int(x), nil
	case uint:
		return int(x), nil
	case uint64:
		return int(x), nil
	case float64:
		if x == math.Trunc(x) {
			return int(x), nil
		}
	case float32:
		if float64(x) == math.Trunc(float64(x)) {
			return int(x), nil
		}
	}
	return 0, errors.NewValidationError(name, "expected an integer", v)
}

// ParamBool converts v to bool.
func ParamBool(name string, v interface{}) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, errors.NewValidationError(name, "expected a boolean", v)
}

// ParamString converts v to string.
func ParamString(name string, v interface{}) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return "", errors.NewValidationError(name, "expected a string", v)
}

// CopyParams returns a shallow copy of params.
func CopyParams(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
