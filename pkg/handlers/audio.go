package handlers

import (
	"fmt"

	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
)

// replaceAudioHandler swaps the primary audio for an extra input's track.
// The explicit map list replaces the default stream mapping entirely.
func replaceAudioHandler(_ skillstypes.Params, pctx *skillstypes.PipelineContext) (*skillstypes.HandlerResult, error) {
	idx, _, err := pctx.ReserveExtra("replace_audio")
	if err != nil {
		return nil, err
	}
	return &skillstypes.HandlerResult{
		StreamMap: []string{"0:v", fmt.Sprintf("%d:a", idx+1)},
		OutputFlags: []skillstypes.Flag{
			{Name: "-shortest"},
		},
	}, nil
}

// mixAudioHandler ducks an extra input's audio under the primary track on
// the audio branch of the graph.
func mixAudioHandler(params skillstypes.Params, pctx *skillstypes.PipelineContext) (*skillstypes.HandlerResult, error) {
	if !pctx.HasAudio {
		return nil, &skillstypes.ValidationError{
			Skill:  "mix_audio",
			Param:  "extra_inputs",
			Reason: "the primary input has no audio track to mix against; use replace_audio instead",
		}
	}
	idx, _, err := pctx.ReserveExtra("mix_audio")
	if err != nil {
		return nil, err
	}

	weight := params.Float("weight")
	fragment := &skillstypes.GraphFragment{
		Nodes: []skillstypes.GraphNode{
			{
				Inputs: []string{"ain", fmt.Sprintf("%d:a", idx+1)},
				Filter: fmt.Sprintf("amix=inputs=2:duration=first:weights='1 %s'",
					skillstypes.FormatNumber(weight)),
				Outputs: []string{"aout"},
			},
		},
		AudioOut: "aout",
	}
	return &skillstypes.HandlerResult{Fragment: fragment}, nil
}
