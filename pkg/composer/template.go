package composer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kinocut/kinocut/pkg/sanitize"
	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
)

var placeholderRe = regexp.MustCompile(`\{[a-zA-Z_][a-zA-Z0-9_]*\}`)

// expandTemplate substitutes validated parameters into a declarative
// template. Filter-level templates yield one filter expression on the
// declared stream; option-level templates yield raw output flags.
func expandTemplate(def *skillstypes.SkillDefinition, validated skillstypes.Params) (*skillstypes.HandlerResult, error) {
	if def.OptionLevel {
		flags, err := optionFlags(def, validated)
		if err != nil {
			return nil, err
		}
		return &skillstypes.HandlerResult{OutputFlags: flags}, nil
	}

	rendered := def.Template
	for _, spec := range def.Params {
		value, ok := validated[spec.Name]
		if !ok {
			continue
		}
		rendered = strings.ReplaceAll(rendered,
			"{"+spec.Name+"}", filterValue(value))
	}

	if leftover := placeholderRe.FindString(rendered); leftover != "" {
		return nil, &skillstypes.ConfigurationError{
			Skill:  def.Name,
			Reason: fmt.Sprintf("template placeholder %s has no matching parameter", leftover),
		}
	}

	if def.Stream == skillstypes.StreamAudio {
		return &skillstypes.HandlerResult{AudioFilters: []string{rendered}}, nil
	}
	return &skillstypes.HandlerResult{VideoFilters: []string{rendered}}, nil
}

// filterValue formats one value substituted into filter text. Strings pass
// through the escaper.
func filterValue(value any) string {
	switch v := value.(type) {
	case string:
		return sanitize.Escape(v).String()
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return skillstypes.FormatNumber(v)
	}
}

// optionValue formats one value substituted into an argv token. The token
// boundary, not escaping, is what contains it.
func optionValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return skillstypes.FormatNumber(v)
	}
}

// optionFlags renders an option-level template ("-crf {value}") into flag
// tokens. The template is tokenized before substitution, so a parameter
// value stays inside its one argv token no matter what it contains; flag
// and value positions come from the template alone, never from substituted
// text.
func optionFlags(def *skillstypes.SkillDefinition, validated skillstypes.Params) ([]skillstypes.Flag, error) {
	tokens := strings.Fields(def.Template)
	rendered := make([]string, len(tokens))
	for i, tok := range tokens {
		var expandErr error
		rendered[i] = placeholderRe.ReplaceAllStringFunc(tok, func(m string) string {
			value, ok := validated[strings.Trim(m, "{}")]
			if !ok {
				expandErr = &skillstypes.ConfigurationError{
					Skill:  def.Name,
					Reason: fmt.Sprintf("template placeholder %s has no matching parameter", m),
				}
				return m
			}
			return optionValue(value)
		})
		if expandErr != nil {
			return nil, expandErr
		}
	}

	var flags []skillstypes.Flag
	for i := 0; i < len(tokens); i++ {
		flag := skillstypes.Flag{Name: rendered[i]}
		if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") {
			flag.Value = rendered[i+1]
			i++
		}
		flags = append(flags, flag)
	}
	return flags, nil
}
