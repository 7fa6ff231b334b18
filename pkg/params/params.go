// Package params validates raw pipeline parameters against a skill's
// parameter specs, filling defaults, enforcing types and bounds, and
// autocorrecting near-miss enum values through a bounded fuzzy match.
package params

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
)

// Validate checks raw against specs and returns the typed parameter map.
// The raw map is normalized in place: aliases are renamed to canonical
// names, defaults are filled, and autocorrected enum values overwrite the
// originals so downstream consumers observe the corrected value. Unknown
// keys are rejected.
func Validate(skill string, raw map[string]any, specs []skillstypes.ParameterSpec) (skillstypes.Params, error) {
	if raw == nil {
		raw = make(map[string]any)
	}
	canonicalizeAliases(raw, specs)

	known := make(map[string]bool, len(specs))
	for _, spec := range specs {
		known[spec.Name] = true
	}
	for key := range raw {
		if !known[key] {
			return nil, &skillstypes.ValidationError{
				Skill:  skill,
				Param:  key,
				Reason: "unknown parameter; remove it or check the skill's parameter list",
			}
		}
	}

	out := make(skillstypes.Params, len(specs))
	for _, spec := range specs {
		value, present := raw[spec.Name]
		if !present || value == nil {
			if spec.Default != nil {
				raw[spec.Name] = spec.Default
				out[spec.Name] = spec.Default
				continue
			}
			if spec.Required {
				return nil, &skillstypes.ValidationError{
					Skill:  skill,
					Param:  spec.Name,
					Reason: "required parameter is missing and has no default",
				}
			}
			continue
		}

		checked, err := checkValue(skill, value, spec)
		if err != nil {
			return nil, err
		}
		raw[spec.Name] = checked
		out[spec.Name] = checked
	}
	return out, nil
}

func canonicalizeAliases(raw map[string]any, specs []skillstypes.ParameterSpec) {
	for _, spec := range specs {
		for _, alias := range spec.Aliases {
			if v, ok := raw[alias]; ok {
				if _, taken := raw[spec.Name]; !taken {
					raw[spec.Name] = v
				}
				delete(raw, alias)
			}
		}
	}
}

func checkValue(skill string, value any, spec skillstypes.ParameterSpec) (any, error) {
	switch spec.Type {
	case skillstypes.ParamInt:
		n, ok := asInt(value)
		if !ok {
			return nil, typeErr(skill, spec, value, "an integer")
		}
		if err := checkBounds(skill, spec, float64(n)); err != nil {
			return nil, err
		}
		return n, nil

	case skillstypes.ParamFloat:
		f, ok := asFloat(value)
		if !ok {
			return nil, typeErr(skill, spec, value, "a number")
		}
		if err := checkBounds(skill, spec, f); err != nil {
			return nil, err
		}
		return f, nil

	case skillstypes.ParamTime:
		f, ok := asSeconds(value)
		if !ok {
			return nil, typeErr(skill, spec, value, "seconds or a HH:MM:SS timestamp")
		}
		if err := checkBounds(skill, spec, f); err != nil {
			return nil, err
		}
		return f, nil

	case skillstypes.ParamBool:
		b, ok := value.(bool)
		if !ok {
			return nil, typeErr(skill, spec, value, "a boolean")
		}
		return b, nil

	case skillstypes.ParamEnum:
		s, ok := value.(string)
		if !ok {
			return nil, typeErr(skill, spec, value, "a string")
		}
		if corrected, ok := matchChoice(s, spec.Choices); ok {
			return corrected, nil
		}
		return nil, &skillstypes.ValidationError{
			Skill:   skill,
			Param:   spec.Name,
			Reason:  fmt.Sprintf("%q does not match any choice", s),
			Choices: spec.Choices,
		}

	case skillstypes.ParamString:
		s, ok := value.(string)
		if !ok {
			return nil, typeErr(skill, spec, value, "a string")
		}
		return s, nil

	default:
		return nil, &skillstypes.ConfigurationError{
			Skill:  skill,
			Reason: fmt.Sprintf("parameter %q has unknown type %q", spec.Name, spec.Type),
		}
	}
}

// matchChoice resolves a raw enum value through three tiers, each tried in
// order and each short-circuiting on an unambiguous hit: case-insensitive
// exact match, unique case-insensitive prefix match, unique case-insensitive
// substring match. Zero or multiple candidates at every tier means failure.
func matchChoice(raw string, choices []string) (string, bool) {
	lowered := strings.ToLower(raw)

	for _, c := range choices {
		if strings.ToLower(c) == lowered {
			return c, true
		}
	}

	if hit, ok := uniqueMatch(choices, func(c string) bool {
		return strings.HasPrefix(strings.ToLower(c), lowered)
	}); ok {
		return hit, true
	}

	return uniqueMatch(choices, func(c string) bool {
		return strings.Contains(strings.ToLower(c), lowered)
	})
}

func uniqueMatch(choices []string, pred func(string) bool) (string, bool) {
	var hit string
	count := 0
	for _, c := range choices {
		if pred(c) {
			hit = c
			count++
		}
	}
	return hit, count == 1
}

func checkBounds(skill string, spec skillstypes.ParameterSpec, f float64) error {
	if spec.Min != nil && f < *spec.Min {
		return &skillstypes.ValidationError{
			Skill:  skill,
			Param:  spec.Name,
			Reason: fmt.Sprintf("%s is below the minimum %s", skillstypes.FormatNumber(f), skillstypes.FormatNumber(*spec.Min)),
		}
	}
	if spec.Max != nil && f > *spec.Max {
		return &skillstypes.ValidationError{
			Skill:  skill,
			Param:  spec.Name,
			Reason: fmt.Sprintf("%s is above the maximum %s", skillstypes.FormatNumber(f), skillstypes.FormatNumber(*spec.Max)),
		}
	}
	return nil
}

func typeErr(skill string, spec skillstypes.ParameterSpec, value any, want string) error {
	return &skillstypes.ValidationError{
		Skill:  skill,
		Param:  spec.Name,
		Reason: fmt.Sprintf("expected %s, got %T", want, value),
	}
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
	case float32:
		if float64(v) == math.Trunc(float64(v)) {
			return int(v), true
		}
	}
	return 0, false
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// asSeconds accepts a bare number of seconds or a [HH:]MM:SS(.ms) string.
func asSeconds(value any) (float64, bool) {
	if f, ok := asFloat(value); ok {
		return f, true
	}
	s, ok := value.(string)
	if !ok {
		return 0, false
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	var total float64
	for _, part := range parts {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil || f < 0 {
			return 0, false
		}
		total = total*60 + f
	}
	return total, true
}
