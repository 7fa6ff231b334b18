package handlers

import (
	"fmt"

	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
)

var cornerChoices = []string{"top_left", "top_right", "bottom_left", "bottom_right", "center"}

// overlay x:y expressions per corner. W/w and H/h are the overlay filter's
// main and overlaid stream dimensions.
var overlayExprs = map[string]string{
	"top_left":     "20:20",
	"top_right":    "W-w-20:20",
	"bottom_left":  "20:H-h-20",
	"bottom_right": "W-w-20:H-h-20",
	"center":       "(W-w)/2:(H-h)/2",
}

func watermarkHandler(params skillstypes.Params, pctx *skillstypes.PipelineContext) (*skillstypes.HandlerResult, error) {
	idx, _, err := pctx.ReserveExtra("watermark")
	if err != nil {
		return nil, err
	}
	stream := fmt.Sprintf("%d:v", idx+1)

	scale := params.Float("scale")
	opacity := params.Float("opacity")
	w, _ := canvas(pctx)

	prep := fmt.Sprintf("scale=%d:-1", int(float64(w)*scale))
	if opacity < 1.0 {
		prep += fmt.Sprintf(",format=rgba,colorchannelmixer=aa=%s", skillstypes.FormatNumber(opacity))
	}

	fragment := &skillstypes.GraphFragment{
		Nodes: []skillstypes.GraphNode{
			{Inputs: []string{stream}, Filter: prep, Outputs: []string{"mark"}},
			{
				Inputs:  []string{"vin", "mark"},
				Filter:  "overlay=" + overlayExprs[params.Str("position")],
				Outputs: []string{"vout"},
			},
		},
		VideoOut: "vout",
	}
	return &skillstypes.HandlerResult{Fragment: fragment}, nil
}

func pipHandler(params skillstypes.Params, pctx *skillstypes.PipelineContext) (*skillstypes.HandlerResult, error) {
	idx, extra, err := pctx.ReserveExtra("pip")
	if err != nil {
		return nil, err
	}
	stream := fmt.Sprintf("%d:v", idx+1)

	w, h := canvas(pctx)
	insetW := int(float64(w) * params.Float("scale"))

	prep := fmt.Sprintf("scale=%d:-1,setsar=1", insetW)
	if extra.Kind == skillstypes.MediaImage {
		prep = loopChain(insetW, insetW*h/w, pctx.Duration, contextFPS(pctx))
	}

	fragment := &skillstypes.GraphFragment{
		Nodes: []skillstypes.GraphNode{
			{Inputs: []string{stream}, Filter: prep, Outputs: []string{"inset"}},
			{
				Inputs:  []string{"vin", "inset"},
				Filter:  "overlay=" + overlayExprs[params.Str("position")],
				Outputs: []string{"vout"},
			},
		},
		VideoOut: "vout",
	}
	return &skillstypes.HandlerResult{Fragment: fragment}, nil
}

// glowHandler needs a fan-out: the stream splits into a base copy and a
// blurred copy that are blended back together.
func glowHandler(params skillstypes.Params, _ *skillstypes.PipelineContext) (*skillstypes.HandlerResult, error) {
	sigma := params.Float("sigma")
	intensity := params.Float("intensity")

	fragment := &skillstypes.GraphFragment{
		Nodes: []skillstypes.GraphNode{
			{Inputs: []string{"vin"}, Filter: "split=2", Outputs: []string{"base", "tosoften"}},
			{
				Inputs:  []string{"tosoften"},
				Filter:  fmt.Sprintf("gblur=sigma=%s", skillstypes.FormatNumber(sigma)),
				Outputs: []string{"soft"},
			},
			{
				Inputs:  []string{"base", "soft"},
				Filter:  fmt.Sprintf("blend=all_mode=screen:all_opacity=%s", skillstypes.FormatNumber(intensity)),
				Outputs: []string{"vout"},
			},
		},
		VideoOut: "vout",
	}
	return &skillstypes.HandlerResult{Fragment: fragment}, nil
}

// gridHandler lays the primary plus three extras out in a 2x2 grid.
func gridHandler(_ skillstypes.Params, pctx *skillstypes.PipelineContext) (*skillstypes.HandlerResult, error) {
	indices, extras, err := pctx.ReserveAllExtras("grid")
	if err != nil {
		return nil, err
	}
	if len(extras) != 3 {
		return nil, &skillstypes.ValidationError{
			Skill:  "grid",
			Param:  "extra_inputs",
			Reason: fmt.Sprintf("a 2x2 grid needs exactly 3 unreserved extra inputs, got %d", len(extras)),
		}
	}

	w, h := canvas(pctx)
	cellW, cellH := w/2, h/2
	fps := contextFPS(pctx)

	nodes := []skillstypes.GraphNode{
		{Inputs: []string{"vin"}, Filter: scaleChain(cellW, cellH), Outputs: []string{"cell0"}},
	}
	stack := []string{"cell0"}
	for i, extra := range extras {
		label := fmt.Sprintf("cell%d", i+1)
		nodes = append(nodes, skillstypes.GraphNode{
			Inputs:  []string{fmt.Sprintf("%d:v", indices[i]+1)},
			Filter:  segmentChain(extra, cellW, cellH, pctx.Duration, fps),
			Outputs: []string{label},
		})
		stack = append(stack, label)
	}
	nodes = append(nodes, skillstypes.GraphNode{
		Inputs:  stack,
		Filter:  "xstack=inputs=4:layout=0_0|w0_0|0_h0|w0_h0",
		Outputs: []string{"vout"},
	})

	return &skillstypes.HandlerResult{
		Fragment: &skillstypes.GraphFragment{Nodes: nodes, VideoOut: "vout"},
	}, nil
}
