// Package handlers implements the builtin skill catalog: declarative
// template skills, sub-pipeline skills, and the procedural handlers that
// need multi-input graphs, auxiliary files, or raw input/output flags.
package handlers

import (
	"fmt"

	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
)

const (
	defaultWidth  = 1920
	defaultHeight = 1080
	defaultFPS    = 30.0
)

// canvas returns the pipeline's target frame size, falling back to 1080p
// when the context carries no probe data.
func canvas(pctx *skillstypes.PipelineContext) (int, int) {
	w, h := pctx.Width, pctx.Height
	if w <= 0 || h <= 0 {
		return defaultWidth, defaultHeight
	}
	return w, h
}

func contextFPS(pctx *skillstypes.PipelineContext) float64 {
	if pctx.FPS > 0 {
		return pctx.FPS
	}
	return defaultFPS
}

// scaleChain normalizes a stream to the common canvas: fit inside, pad to
// exact size, square pixels. Every stream entering a concat, xfade, or grid
// node must pass through this so the multi-input filter sees equal frames.
func scaleChain(w, h int) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1",
		w, h, w, h,
	)
}

// loopChain converts a still image into a finite segment of duration
// seconds at the pipeline frame rate, then normalizes it to the canvas.
func loopChain(w, h int, duration, fps float64) string {
	frames := int(duration*fps + 0.5)
	if frames < 1 {
		frames = 1
	}
	return fmt.Sprintf("loop=loop=%d:size=1:start=0,fps=%s,%s",
		frames, skillstypes.FormatNumber(fps), scaleChain(w, h))
}

// segmentChain picks the per-input prep chain for a multi-input node: still
// images loop into a finite segment, video extras only scale and pad.
func segmentChain(extra skillstypes.ExtraInput, w, h int, duration, fps float64) string {
	if extra.Kind == skillstypes.MediaImage {
		return loopChain(w, h, duration, fps)
	}
	return scaleChain(w, h)
}

func fptr(f float64) *float64 { return &f }
