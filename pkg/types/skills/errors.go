package skills

import (
	"fmt"
	"strings"
)

// ConfigurationError is a fatal, pre-compile defect in the skill catalog or
// the pipeline's use of it: an unknown skill name or a cyclic sub-pipeline.
type ConfigurationError struct {
	Skill  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Skill == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error in skill %q: %s", e.Skill, e.Reason)
}

// ValidationError is a per-step, caller-fixable parameter problem. Choices
// carries the valid enum values when an enum match failed.
type ValidationError struct {
	Skill   string
	Param   string
	Reason  string
	Choices []string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid parameter %q for skill %q: %s", e.Param, e.Skill, e.Reason)
	if len(e.Choices) > 0 {
		msg += fmt.Sprintf(" (valid choices: %s)", strings.Join(e.Choices, ", "))
	}
	return msg
}

// SanitizationError aborts the whole compile: a path escaped its sandbox,
// carries a disallowed extension, or does not exist where it must.
type SanitizationError struct {
	Path   string
	Reason string
}

func (e *SanitizationError) Error() string {
	return fmt.Sprintf("unsafe path %q: %s", e.Path, e.Reason)
}

// InvariantViolation marks an internal compiler bug, never user input: a
// label collision after namespacing, a flag in the wrong slot, a duplicate
// stream specifier. It must fail loudly; a silently wrong command handed to
// a subprocess runner is the worst failure mode this system has.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("compile invariant violated: %s (this is a bug, please report it)", e.Reason)
}
