// Package emitter renders a CommandDescriptor into the literal argument
// vector, in the target tool's required order: global flags, per-input
// flags and inputs, exactly one of a filter graph or chain flags, output
// flags, stream mappings, output path.
package emitter

import (
	"fmt"

	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
)

// Render produces the final argv. The command name itself is not included;
// invoking the tool is the caller's concern.
func Render(desc *skillstypes.CommandDescriptor) ([]string, error) {
	if desc == nil {
		return nil, &skillstypes.InvariantViolation{Reason: "nil command descriptor"}
	}
	if desc.FilterGraph != "" && (desc.VideoChain != "" || desc.AudioChain != "") {
		return nil, &skillstypes.InvariantViolation{
			Reason: "descriptor carries both a filter graph and chain flags",
		}
	}
	if len(desc.Inputs) == 0 {
		return nil, &skillstypes.InvariantViolation{Reason: "descriptor has no inputs"}
	}
	if err := checkMapList(desc.StreamMap); err != nil {
		return nil, err
	}

	var argv []string
	for _, flag := range desc.GlobalFlags {
		argv = append(argv, flag.Tokens()...)
	}

	// Input-positioned flags ride immediately before the primary input.
	for _, flag := range desc.InputFlags {
		argv = append(argv, flag.Tokens()...)
	}
	for _, input := range desc.Inputs {
		argv = append(argv, "-i", input)
	}

	switch {
	case desc.FilterGraph != "":
		argv = append(argv, "-filter_complex", desc.FilterGraph)
	default:
		// Empty chains are omitted entirely, never emitted as empty flags.
		if desc.VideoChain != "" {
			argv = append(argv, "-vf", desc.VideoChain)
		}
		if desc.AudioChain != "" {
			argv = append(argv, "-af", desc.AudioChain)
		}
	}

	for _, flag := range dedupeLastWins(desc.OutputFlags) {
		argv = append(argv, flag.Tokens()...)
	}

	for _, m := range desc.StreamMap {
		argv = append(argv, "-map", m)
	}

	argv = append(argv, desc.OutputPath)
	return argv, nil
}

// dedupeLastWins keeps only the final occurrence of each same-named output
// flag, at its original position, matching the target tool's own override
// semantics. Two codec-selection steps resolve to the later one.
func dedupeLastWins(flags []skillstypes.Flag) []skillstypes.Flag {
	lastIdx := make(map[string]int, len(flags))
	for i, flag := range flags {
		lastIdx[flag.Name] = i
	}
	out := make([]skillstypes.Flag, 0, len(flags))
	for i, flag := range flags {
		if lastIdx[flag.Name] == i {
			out = append(out, flag)
		}
	}
	return out
}

func checkMapList(maps []string) error {
	seen := make(map[string]bool, len(maps))
	for _, m := range maps {
		if seen[m] {
			return &skillstypes.InvariantViolation{
				Reason: fmt.Sprintf("duplicate stream specifier %q in map list", m),
			}
		}
		seen[m] = true
	}
	return nil
}
