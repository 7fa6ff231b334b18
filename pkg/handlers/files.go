package handlers

import (
	"fmt"

	"github.com/kinocut/kinocut/pkg/sanitize"
	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
)

func subtitlesHandler(params skillstypes.Params, _ *skillstypes.PipelineContext) (*skillstypes.HandlerResult, error) {
	abs, err := sanitize.CheckReadPath(params.Str("path"), sanitize.KindSubtitle)
	if err != nil {
		return nil, err
	}
	filter := fmt.Sprintf("subtitles=filename='%s'", sanitize.Escape(abs))
	return &skillstypes.HandlerResult{VideoFilters: []string{filter}}, nil
}

func lutHandler(params skillstypes.Params, _ *skillstypes.PipelineContext) (*skillstypes.HandlerResult, error) {
	abs, err := sanitize.CheckReadPath(params.Str("path"), sanitize.KindLUT)
	if err != nil {
		return nil, err
	}
	filter := fmt.Sprintf("lut3d=file='%s'", sanitize.Escape(abs))
	return &skillstypes.HandlerResult{VideoFilters: []string{filter}}, nil
}
