package models

import (
	"encoding/json"
	"strconv"
)

// MapLeaves returns a copy of v with every non-container value replaced by
// fn. Maps and slices are copied; v itself is never modified.
func MapLeaves(v interface{}, fn func(interface{}) interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, e := range val {
			out[k] = MapLeaves(e, fn)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = MapLeaves(e, fn)
		}
		return out
	default:
		return fn(v)
	}
}

// MapNumbers applies fn to every json.Number in v.
func MapNumbers(v interface{}, fn func(json.Number) interface{}) interface{} {
	return MapLeaves(v, func(leaf interface{}) interface{} {
		if n, ok := leaf.(json.Number); ok {
			return fn(n)
		}
		return leaf
	})
}

// NumberToFloat converts a JSON number to float64, the type encoding/json
// uses by default. Precision above 2^53 is lost.
func NumberToFloat(n json.Number) interface{} {
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return n.String()
	}
	return f
}
