package handlers

import (
	"fmt"

	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
)

// trimHandler emits a fast input seek (-ss before -i) plus an output
// duration cap (-t). The seek rides the input slot so the decoder skips
// straight to the start point instead of decoding and discarding.
func trimHandler(params skillstypes.Params, _ *skillstypes.PipelineContext) (*skillstypes.HandlerResult, error) {
	start := params.Float("start")

	result := &skillstypes.HandlerResult{}
	if start > 0 {
		result.InputFlags = append(result.InputFlags,
			skillstypes.Flag{Name: "-ss", Value: skillstypes.FormatNumber(start)})
	}

	switch {
	case params.Has("end"):
		end := params.Float("end")
		if end <= start {
			return nil, &skillstypes.ValidationError{
				Skill:  "trim",
				Param:  "end",
				Reason: fmt.Sprintf("end %s must be after start %s",
					skillstypes.FormatNumber(end), skillstypes.FormatNumber(start)),
			}
		}
		result.OutputFlags = append(result.OutputFlags,
			skillstypes.Flag{Name: "-t", Value: skillstypes.FormatSeconds(end - start)})
	case params.Has("duration"):
		result.OutputFlags = append(result.OutputFlags,
			skillstypes.Flag{Name: "-t", Value: skillstypes.FormatSeconds(params.Float("duration"))})
	}

	return result, nil
}

func loopInputHandler(params skillstypes.Params, _ *skillstypes.PipelineContext) (*skillstypes.HandlerResult, error) {
	return &skillstypes.HandlerResult{
		InputFlags: []skillstypes.Flag{
			{Name: "-stream_loop", Value: skillstypes.FormatNumber(params.Int("count"))},
		},
	}, nil
}

func hwaccelHandler(params skillstypes.Params, _ *skillstypes.PipelineContext) (*skillstypes.HandlerResult, error) {
	return &skillstypes.HandlerResult{
		InputFlags: []skillstypes.Flag{
			{Name: "-hwaccel", Value: params.Str("api")},
		},
	}, nil
}

// speedHandler retimes video with setpts and keeps audio pitch-correct with
// atempo. atempo only accepts factors in [0.5, 2.0], so larger changes chain
// multiple stages.
func speedHandler(params skillstypes.Params, pctx *skillstypes.PipelineContext) (*skillstypes.HandlerResult, error) {
	factor := params.Float("factor")

	result := &skillstypes.HandlerResult{
		VideoFilters: []string{fmt.Sprintf("setpts=PTS/%s", skillstypes.FormatNumber(factor))},
	}
	if pctx.HasAudio {
		result.AudioFilters = atempoChain(factor)
	}
	return result, nil
}

func atempoChain(factor float64) []string {
	var stages []string
	for factor > 2.0 {
		stages = append(stages, "atempo=2.0")
		factor /= 2.0
	}
	for factor < 0.5 {
		stages = append(stages, "atempo=0.5")
		factor /= 0.5
	}
	stages = append(stages, fmt.Sprintf("atempo=%s", skillstypes.FormatNumber(factor)))
	return stages
}
