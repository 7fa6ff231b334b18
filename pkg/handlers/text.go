package handlers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kinocut/kinocut/pkg/sanitize"
	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
	"github.com/mitchellh/mapstructure"
)

var positionChoices = []string{
	"top", "bottom", "center", "top_left", "top_right", "bottom_left", "bottom_right",
}

// drawtext x:y expressions per named position. These are trusted constants,
// never user text.
var positionExprs = map[string][2]string{
	"top":          {"(w-text_w)/2", "40"},
	"bottom":       {"(w-text_w)/2", "h-text_h-40"},
	"center":       {"(w-text_w)/2", "(h-text_h)/2"},
	"top_left":     {"40", "40"},
	"top_right":    {"w-text_w-40", "40"},
	"bottom_left":  {"40", "h-text_h-40"},
	"bottom_right": {"w-text_w-40", "h-text_h-40"},
}

// textEnvelope is the optional JSON shape of a text side-channel payload.
type textEnvelope struct {
	Text      string   `mapstructure:"text"`
	Mode      string   `mapstructure:"mode"`
	FontSize  int      `mapstructure:"font_size"`
	FontColor string   `mapstructure:"font_color"`
	Position  string   `mapstructure:"position"`
	StartTime *float64 `mapstructure:"start_time"`
	EndTime   *float64 `mapstructure:"end_time"`
}

// parseEnvelope decodes a side-channel payload. A payload that is not a
// JSON object with a text field is treated as literal display text.
func parseEnvelope(payload string) textEnvelope {
	var raw map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return textEnvelope{Text: payload}
	}
	var env textEnvelope
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &env,
		WeaklyTypedInput: true,
	})
	if err != nil || decoder.Decode(raw) != nil || env.Text == "" {
		return textEnvelope{Text: payload}
	}
	return env
}

func captionHandler(params skillstypes.Params, pctx *skillstypes.PipelineContext) (*skillstypes.HandlerResult, error) {
	text := params.Str("text")
	fontSize := params.Int("font_size")
	fontColor := params.Str("font_color")
	position := params.Str("position")
	var start, end *float64

	if params.Has("start") {
		s := params.Float("start")
		start = &s
	}
	if params.Has("end") {
		e := params.Float("end")
		end = &e
	}

	if text == "" {
		idx := params.Int("payload")
		if idx >= len(pctx.TextPayloads) {
			return nil, &skillstypes.ValidationError{
				Skill:  "caption",
				Param:  "payload",
				Reason: fmt.Sprintf("payload index %d out of range, %d payloads supplied", idx, len(pctx.TextPayloads)),
			}
		}
		env := parseEnvelope(pctx.TextPayloads[idx])
		text = env.Text
		if env.FontSize > 0 {
			fontSize = env.FontSize
		}
		if env.FontColor != "" {
			fontColor = env.FontColor
		}
		if env.Position != "" {
			position = env.Position
		}
		if env.Mode == "title" {
			if env.Position == "" {
				position = "center"
			}
			if env.FontSize == 0 {
				fontSize = 72
			}
		}
		start, end = env.StartTime, env.EndTime
	}

	expr, ok := positionExprs[position]
	if !ok {
		// Envelope positions are free text; near misses fall back to bottom.
		expr = positionExprs["bottom"]
	}

	font, err := checkedFont(params)
	if err != nil {
		return nil, err
	}

	filter := drawtext(text, fontSize, fontColor, expr[0], expr[1], font, start, end)
	return &skillstypes.HandlerResult{VideoFilters: []string{filter}}, nil
}

// checkedFont sanitizes the optional font path before it can reach filter
// text.
func checkedFont(params skillstypes.Params) (string, error) {
	font := params.Str("font")
	if font == "" {
		return "", nil
	}
	return sanitize.CheckReadPath(font, sanitize.KindFont)
}

// lowerThirdHandler emits two stacked text layers: the name plate and a
// smaller title line underneath.
func lowerThirdHandler(params skillstypes.Params, _ *skillstypes.PipelineContext) (*skillstypes.HandlerResult, error) {
	name := params.Str("name")
	title := params.Str("title")
	size := params.Int("font_size")
	fontColor := params.Str("font_color")
	font, err := checkedFont(params)
	if err != nil {
		return nil, err
	}

	filters := []string{
		drawtext(name, size, fontColor, "60", "h-text_h-140", font, nil, nil),
	}
	if title != "" {
		filters = append(filters,
			drawtext(title, size*3/5, fontColor, "60", "h-text_h-90", font, nil, nil))
	}
	return &skillstypes.HandlerResult{VideoFilters: filters}, nil
}

func drawtext(text string, size int, fontColor, x, y, fontPath string, start, end *float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "drawtext=text='%s'", sanitize.Escape(text))
	fmt.Fprintf(&b, ":fontsize=%d", size)
	fmt.Fprintf(&b, ":fontcolor=%s", sanitize.Escape(fontColor))
	fmt.Fprintf(&b, ":x=%s:y=%s", x, y)
	fmt.Fprintf(&b, ":borderw=2:bordercolor=black@0.6")
	if fontPath != "" {
		fmt.Fprintf(&b, ":fontfile='%s'", sanitize.Escape(fontPath))
	}
	if start != nil || end != nil {
		s, e := 0.0, 1e9
		if start != nil {
			s = *start
		}
		if end != nil {
			e = *end
		}
		fmt.Fprintf(&b, ":enable='between(t,%s,%s)'",
			skillstypes.FormatNumber(s), skillstypes.FormatNumber(e))
	}
	return b.String()
}
