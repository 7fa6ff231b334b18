package skills

import (
	"fmt"
	"strconv"
)

// Params is a validated, typed parameter map. Values are only placed here by
// the validator, so the accessors can assume type and range checks already
// passed; they coerce across the few representations JSON and YAML produce.
type Params map[string]any

// Has reports whether the parameter was supplied or defaulted.
func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// Float returns the parameter as a float64, zero if absent.
func (p Params) Float(name string) float64 {
	switch v := p[name].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

// Int returns the parameter as an int, zero if absent.
func (p Params) Int(name string) int {
	switch v := p[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	}
	return 0
}

// Str returns the parameter as a string, empty if absent.
func (p Params) Str(name string) string {
	switch v := p[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Bool returns the parameter as a bool, false if absent.
func (p Params) Bool(name string) bool {
	v, _ := p[name].(bool)
	return v
}
