package composer

import (
	"fmt"
	"strings"

	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
)

// state is the merge engine for one compile: Accumulating until the first
// graph fragment flips it into graph mode permanently, then Finalized. The
// target grammar allows a simple chain or a filter graph to drive the
// output, never both, so the transition is one-way.
type state struct {
	pctx *skillstypes.PipelineContext

	graphMode bool
	finalized bool

	// pending simple filters, not yet folded into the graph
	vFilters []string
	aFilters []string

	nodes []renderedNode
	mainV string
	mainA string

	slot    int // per-result label namespace
	foldSeq int
	used    map[string]bool

	inputFlags  []skillstypes.Flag
	outputFlags []skillstypes.Flag
	streamMap   []string
}

type renderedNode struct {
	inputs  []string
	filter  string
	outputs []string
}

func newState(pctx *skillstypes.PipelineContext) *state {
	return &state{
		pctx:  pctx,
		mainV: "0:v",
		mainA: "0:a",
		used:  map[string]bool{},
	}
}

// apply merges one HandlerResult. Results carry simple filters or a graph
// fragment, never both; flags may accompany either.
func (st *state) apply(skill string, res *skillstypes.HandlerResult) error {
	if st.finalized {
		return &skillstypes.InvariantViolation{Reason: "apply called after finalize"}
	}
	if res == nil {
		return &skillstypes.InvariantViolation{Reason: fmt.Sprintf("skill %q produced a nil result", skill)}
	}
	if res.Fragment != nil && (len(res.VideoFilters) > 0 || len(res.AudioFilters) > 0) {
		return &skillstypes.InvariantViolation{
			Reason: fmt.Sprintf("skill %q mixed simple filters with a graph fragment", skill),
		}
	}
	if len(res.AudioFilters) > 0 && !st.pctx.HasAudio {
		return &skillstypes.ValidationError{
			Skill:  skill,
			Param:  "audio",
			Reason: "the primary input has no audio track",
		}
	}

	st.inputFlags = append(st.inputFlags, res.InputFlags...)
	st.outputFlags = append(st.outputFlags, res.OutputFlags...)
	if len(res.StreamMap) > 0 {
		// Replaces the default mapping entirely; never concatenated with a
		// generated list, which would duplicate stream specifiers.
		st.streamMap = res.StreamMap
	}

	st.vFilters = append(st.vFilters, res.VideoFilters...)
	st.aFilters = append(st.aFilters, res.AudioFilters...)

	if res.Fragment != nil {
		return st.splice(skill, res.Fragment)
	}
	return nil
}

// splice enters (or stays in) graph mode: pending simple filters fold onto
// the current main labels as chained nodes, then the fragment's nodes are
// re-namespaced and attached.
func (st *state) splice(skill string, frag *skillstypes.GraphFragment) error {
	st.graphMode = true
	if err := st.foldPending(); err != nil {
		return err
	}

	prefix := fmt.Sprintf("s%d", st.slot)
	st.slot++

	ns := func(label string) string {
		switch {
		case label == "vin":
			return st.mainV
		case label == "ain":
			return st.mainA
		case strings.Contains(label, ":"):
			// stream specifier, e.g. "1:v"
			return label
		default:
			return prefix + "_" + label
		}
	}

	for _, node := range frag.Nodes {
		rendered := renderedNode{filter: node.Filter}
		for _, in := range node.Inputs {
			rendered.inputs = append(rendered.inputs, ns(in))
		}
		for _, out := range node.Outputs {
			label := ns(out)
			if st.used[label] {
				return &skillstypes.InvariantViolation{
					Reason: fmt.Sprintf("fragment label %q from skill %q collides after namespacing", label, skill),
				}
			}
			st.used[label] = true
			rendered.outputs = append(rendered.outputs, label)
		}
		st.nodes = append(st.nodes, rendered)
	}

	if frag.VideoOut != "" {
		st.mainV = ns(frag.VideoOut)
	}
	if frag.AudioOut != "" {
		st.mainA = ns(frag.AudioOut)
	}
	return nil
}

// foldPending concatenates accumulated simple filters into one chain segment
// spliced onto the current main label as a new node with a fresh label.
func (st *state) foldPending() error {
	if len(st.vFilters) > 0 {
		label := fmt.Sprintf("vmain%d", st.foldSeq)
		st.foldSeq++
		if st.used[label] {
			return &skillstypes.InvariantViolation{Reason: fmt.Sprintf("fold label %q already in use", label)}
		}
		st.used[label] = true
		st.nodes = append(st.nodes, renderedNode{
			inputs:  []string{st.mainV},
			filter:  strings.Join(st.vFilters, ","),
			outputs: []string{label},
		})
		st.mainV = label
		st.vFilters = nil
	}
	if len(st.aFilters) > 0 {
		label := fmt.Sprintf("amain%d", st.foldSeq)
		st.foldSeq++
		if st.used[label] {
			return &skillstypes.InvariantViolation{Reason: fmt.Sprintf("fold label %q already in use", label)}
		}
		st.used[label] = true
		st.nodes = append(st.nodes, renderedNode{
			inputs:  []string{st.mainA},
			filter:  strings.Join(st.aFilters, ","),
			outputs: []string{label},
		})
		st.mainA = label
		st.aFilters = nil
	}
	return nil
}

// finalize renders the merged representation into a CommandDescriptor. No
// further mutation is permitted afterward.
func (st *state) finalize() (*skillstypes.CommandDescriptor, error) {
	if st.finalized {
		return nil, &skillstypes.InvariantViolation{Reason: "finalize called twice"}
	}
	st.finalized = true

	desc := &skillstypes.CommandDescriptor{
		GlobalFlags: []skillstypes.Flag{{Name: "-y"}},
		InputFlags:  st.inputFlags,
		Inputs:      append([]string{st.pctx.InputPath}, extraPaths(st.pctx)...),
		OutputFlags: st.outputFlags,
		StreamMap:   st.streamMap,
		OutputPath:  st.pctx.OutputPath,
	}

	if st.graphMode {
		if err := st.foldPending(); err != nil {
			return nil, err
		}
		var parts []string
		for _, node := range st.nodes {
			var b strings.Builder
			for _, in := range node.inputs {
				fmt.Fprintf(&b, "[%s]", in)
			}
			b.WriteString(node.filter)
			for _, out := range node.outputs {
				fmt.Fprintf(&b, "[%s]", out)
			}
			parts = append(parts, b.String())
		}
		desc.FilterGraph = strings.Join(parts, ";")

		if len(desc.StreamMap) == 0 {
			desc.StreamMap = []string{mapValue(st.mainV)}
			if st.pctx.HasAudio {
				desc.StreamMap = append(desc.StreamMap, mapValue(st.mainA))
			}
		}
		return desc, nil
	}

	// Chain mode: each chain is omitted entirely when empty, never emitted
	// as an empty-string flag.
	desc.VideoChain = strings.Join(st.vFilters, ",")
	desc.AudioChain = strings.Join(st.aFilters, ",")
	return desc, nil
}

// mapValue renders a -map value: stream specifiers map bare, graph labels
// map bracketed.
func mapValue(label string) string {
	if strings.Contains(label, ":") {
		return label
	}
	return "[" + label + "]"
}

func extraPaths(pctx *skillstypes.PipelineContext) []string {
	paths := make([]string, 0, len(pctx.Extras))
	for _, extra := range pctx.Extras {
		paths = append(paths, extra.Path)
	}
	return paths
}
