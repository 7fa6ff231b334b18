package handlers

import (
	"fmt"

	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
)

// concatHandler appends every unreserved extra input after the primary
// video. Each segment is normalized to the canvas first; still images become
// finite looped segments. Segment count is always extras+1.
func concatHandler(_ skillstypes.Params, pctx *skillstypes.PipelineContext) (*skillstypes.HandlerResult, error) {
	indices, extras, err := pctx.ReserveAllExtras("concat")
	if err != nil {
		return nil, err
	}

	w, h := canvas(pctx)
	fps := contextFPS(pctx)

	nodes := []skillstypes.GraphNode{
		{Inputs: []string{"vin"}, Filter: scaleChain(w, h), Outputs: []string{"seg0"}},
	}
	inputs := []string{"seg0"}
	for i, extra := range extras {
		label := fmt.Sprintf("seg%d", i+1)
		nodes = append(nodes, skillstypes.GraphNode{
			Inputs:  []string{fmt.Sprintf("%d:v", indices[i]+1)},
			Filter:  segmentChain(extra, w, h, imageSegmentSeconds, fps),
			Outputs: []string{label},
		})
		inputs = append(inputs, label)
	}
	nodes = append(nodes, skillstypes.GraphNode{
		Inputs:  inputs,
		Filter:  fmt.Sprintf("concat=n=%d:v=1:a=0", len(inputs)),
		Outputs: []string{"vout"},
	})

	return &skillstypes.HandlerResult{
		Fragment: &skillstypes.GraphFragment{Nodes: nodes, VideoOut: "vout"},
	}, nil
}

// imageSegmentSeconds is how long a still image plays inside a concat.
const imageSegmentSeconds = 3.0

// xfadeHandler crossfades from the primary video into one extra input. The
// xfade offset is where the transition begins on the primary timeline:
// primary duration minus transition duration.
func xfadeHandler(params skillstypes.Params, pctx *skillstypes.PipelineContext) (*skillstypes.HandlerResult, error) {
	idx, extra, err := pctx.ReserveExtra("xfade")
	if err != nil {
		return nil, err
	}

	duration := params.Float("duration")
	if pctx.Duration <= duration {
		return nil, &skillstypes.ValidationError{
			Skill:  "xfade",
			Param:  "duration",
			Reason: fmt.Sprintf("transition duration %s must be shorter than the primary input's %s seconds",
				skillstypes.FormatSeconds(duration), skillstypes.FormatSeconds(pctx.Duration)),
		}
	}
	offset := pctx.Duration - duration

	w, h := canvas(pctx)
	fps := contextFPS(pctx)

	fragment := &skillstypes.GraphFragment{
		Nodes: []skillstypes.GraphNode{
			{Inputs: []string{"vin"}, Filter: scaleChain(w, h), Outputs: []string{"from"}},
			{
				Inputs:  []string{fmt.Sprintf("%d:v", idx+1)},
				Filter:  segmentChain(extra, w, h, duration*2, fps),
				Outputs: []string{"to"},
			},
			{
				Inputs: []string{"from", "to"},
				Filter: fmt.Sprintf("xfade=transition=%s:duration=%s:offset=%s",
					params.Str("transition"),
					skillstypes.FormatSeconds(duration),
					skillstypes.FormatSeconds(offset)),
				Outputs: []string{"vout"},
			},
		},
		VideoOut: "vout",
	}
	return &skillstypes.HandlerResult{Fragment: fragment}, nil
}
