package handlers

import (
	"github.com/kinocut/kinocut/pkg/registry"
	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
	"github.com/pkg/errors"
)

// RegisterBuiltins loads the stock skill catalog into the registry. It is
// called once during startup, before user skill packs, so packs can
// overwrite builtins by name.
func RegisterBuiltins(r *registry.Registry) error {
	for _, def := range builtinDefinitions() {
		if err := r.Register(def); err != nil {
			return errors.Wrapf(err, "registering builtin skill %q", def.Name)
		}
	}
	return nil
}

func builtinDefinitions() []*skillstypes.SkillDefinition {
	defs := []*skillstypes.SkillDefinition{
		// --- color grading templates ---
		{
			Name: "brightness", Category: "color",
			Description: "Adjust brightness; negative values darken, positive brighten",
			Tags:        []string{"color", "exposure"},
			Params: []skillstypes.ParameterSpec{
				{Name: "value", Type: skillstypes.ParamFloat, Default: 0.0, Min: fptr(-1), Max: fptr(1), Aliases: []string{"amount"}},
			},
			Template: "eq=brightness={value}",
		},
		{
			Name: "contrast", Category: "color",
			Description: "Adjust contrast around 1.0",
			Tags:        []string{"color"},
			Params: []skillstypes.ParameterSpec{
				{Name: "value", Type: skillstypes.ParamFloat, Default: 1.0, Min: fptr(0), Max: fptr(4), Aliases: []string{"amount"}},
			},
			Template: "eq=contrast={value}",
		},
		{
			Name: "saturation", Category: "color",
			Description: "Adjust color saturation; 0 is grayscale, 1 is unchanged",
			Tags:        []string{"color"},
			Params: []skillstypes.ParameterSpec{
				{Name: "value", Type: skillstypes.ParamFloat, Default: 1.0, Min: fptr(0), Max: fptr(3), Aliases: []string{"amount"}},
			},
			Template: "eq=saturation={value}",
		},
		{
			Name: "gamma", Category: "color",
			Description: "Adjust gamma curve",
			Tags:        []string{"color", "exposure"},
			Params: []skillstypes.ParameterSpec{
				{Name: "value", Type: skillstypes.ParamFloat, Default: 1.0, Min: fptr(0.1), Max: fptr(10)},
			},
			Template: "eq=gamma={value}",
		},
		{
			Name: "hue", Category: "color",
			Description: "Rotate the hue by degrees",
			Tags:        []string{"color"},
			Params: []skillstypes.ParameterSpec{
				{Name: "degrees", Type: skillstypes.ParamFloat, Default: 0.0, Min: fptr(-360), Max: fptr(360)},
			},
			Template: "hue=h={degrees}",
		},
		{
			Name: "grayscale", Category: "color",
			Description: "Drop all color",
			Tags:        []string{"color", "looks"},
			Template:    "hue=s=0",
		},
		{
			Name: "color_balance", Category: "color",
			Description: "Shift shadow color balance toward red/green/blue",
			Tags:        []string{"color", "grading"},
			Params: []skillstypes.ParameterSpec{
				{Name: "rs", Type: skillstypes.ParamFloat, Default: 0.0, Min: fptr(-1), Max: fptr(1)},
				{Name: "gs", Type: skillstypes.ParamFloat, Default: 0.0, Min: fptr(-1), Max: fptr(1)},
				{Name: "bs", Type: skillstypes.ParamFloat, Default: 0.0, Min: fptr(-1), Max: fptr(1)},
			},
			Template: "colorbalance=rs={rs}:gs={gs}:bs={bs}",
		},

		// --- detail templates ---
		{
			Name: "sharpen", Category: "detail",
			Description: "Sharpen fine detail",
			Tags:        []string{"detail"},
			Params: []skillstypes.ParameterSpec{
				{Name: "amount", Type: skillstypes.ParamFloat, Default: 1.0, Min: fptr(0), Max: fptr(5)},
			},
			Template: "unsharp=5:5:{amount}",
		},
		{
			Name: "blur", Category: "detail",
			Description: "Gaussian blur",
			Tags:        []string{"detail", "looks"},
			Params: []skillstypes.ParameterSpec{
				{Name: "sigma", Type: skillstypes.ParamFloat, Default: 5.0, Min: fptr(0.1), Max: fptr(50)},
			},
			Template: "gblur=sigma={sigma}",
		},
		{
			Name: "denoise", Category: "detail",
			Description: "Reduce sensor noise",
			Tags:        []string{"detail", "cleanup"},
			Params: []skillstypes.ParameterSpec{
				{Name: "strength", Type: skillstypes.ParamFloat, Default: 4.0, Min: fptr(0), Max: fptr(10)},
			},
			Template: "hqdn3d={strength}",
		},
		{
			Name: "deshake", Category: "detail",
			Description: "Stabilize small camera shakes",
			Tags:        []string{"cleanup"},
			Template:    "deshake",
		},

		// --- frame templates ---
		{
			Name: "scale", Category: "frame",
			Description: "Resize the frame; -1 keeps aspect ratio for one axis",
			Tags:        []string{"frame", "resize"},
			Params: []skillstypes.ParameterSpec{
				{Name: "width", Type: skillstypes.ParamInt, Default: 1920, Min: fptr(-1), Max: fptr(7680)},
				{Name: "height", Type: skillstypes.ParamInt, Default: -1, Min: fptr(-1), Max: fptr(4320)},
			},
			Template: "scale={width}:{height}",
		},
		{
			Name: "crop", Category: "frame",
			Description: "Crop a region from the frame",
			Tags:        []string{"frame"},
			Params: []skillstypes.ParameterSpec{
				{Name: "width", Type: skillstypes.ParamInt, Required: true, Min: fptr(16), Max: fptr(7680)},
				{Name: "height", Type: skillstypes.ParamInt, Required: true, Min: fptr(16), Max: fptr(4320)},
				{Name: "x", Type: skillstypes.ParamInt, Default: 0, Min: fptr(0)},
				{Name: "y", Type: skillstypes.ParamInt, Default: 0, Min: fptr(0)},
			},
			Template: "crop={width}:{height}:{x}:{y}",
		},
		{
			Name: "rotate", Category: "frame",
			Description: "Rotate by degrees, filling the corners with black",
			Tags:        []string{"frame"},
			Params: []skillstypes.ParameterSpec{
				{Name: "angle", Type: skillstypes.ParamFloat, Default: 0.0, Min: fptr(-360), Max: fptr(360), Aliases: []string{"degrees"}},
			},
			Template: "rotate={angle}*PI/180:fillcolor=black",
		},
		{
			Name: "hflip", Category: "frame",
			Description: "Mirror horizontally",
			Tags:        []string{"frame"},
			Template:    "hflip",
		},
		{
			Name: "vflip", Category: "frame",
			Description: "Mirror vertically",
			Tags:        []string{"frame"},
			Template:    "vflip",
		},
		{
			Name: "vignette", Category: "looks",
			Description: "Darken the frame edges",
			Tags:        []string{"looks", "retro"},
			Params: []skillstypes.ParameterSpec{
				{Name: "angle", Type: skillstypes.ParamFloat, Default: 0.6283, Min: fptr(0), Max: fptr(1.5708)},
			},
			Template: "vignette=angle={angle}",
		},

		// --- timing templates ---
		{
			Name: "fps", Category: "timing",
			Description: "Force a constant frame rate",
			Tags:        []string{"timing"},
			Params: []skillstypes.ParameterSpec{
				{Name: "fps", Type: skillstypes.ParamFloat, Default: 30.0, Min: fptr(1), Max: fptr(240), Aliases: []string{"rate"}},
			},
			Template: "fps={fps}",
		},
		{
			Name: "fade", Category: "timing",
			Description: "Fade the video in or out",
			Tags:        []string{"timing", "transition"},
			Params: []skillstypes.ParameterSpec{
				{Name: "direction", Type: skillstypes.ParamEnum, Choices: []string{"in", "out"}, Default: "in"},
				{Name: "start", Type: skillstypes.ParamTime, Default: 0.0, Min: fptr(0)},
				{Name: "duration", Type: skillstypes.ParamFloat, Default: 1.0, Min: fptr(0.1), Max: fptr(30)},
			},
			Template: "fade=t={direction}:st={start}:d={duration}",
		},

		// --- audio templates ---
		{
			Name: "volume", Category: "audio",
			Description: "Scale audio volume; 1.0 is unchanged",
			Tags:        []string{"audio"},
			Params: []skillstypes.ParameterSpec{
				{Name: "gain", Type: skillstypes.ParamFloat, Default: 1.0, Min: fptr(0), Max: fptr(10), Aliases: []string{"level"}},
			},
			Template: "volume={gain}",
			Stream:   skillstypes.StreamAudio,
		},
		{
			Name: "audio_fade", Category: "audio",
			Description: "Fade the audio in or out",
			Tags:        []string{"audio", "transition"},
			Params: []skillstypes.ParameterSpec{
				{Name: "direction", Type: skillstypes.ParamEnum, Choices: []string{"in", "out"}, Default: "in"},
				{Name: "start", Type: skillstypes.ParamTime, Default: 0.0, Min: fptr(0)},
				{Name: "duration", Type: skillstypes.ParamFloat, Default: 1.0, Min: fptr(0.1), Max: fptr(30)},
			},
			Template: "afade=t={direction}:st={start}:d={duration}",
			Stream:   skillstypes.StreamAudio,
		},

		// --- output option templates ---
		{
			Name: "crf", Category: "output",
			Description: "Constant rate factor quality; lower is better",
			Tags:        []string{"encoding", "quality"},
			Params: []skillstypes.ParameterSpec{
				{Name: "value", Type: skillstypes.ParamInt, Default: 23, Min: fptr(0), Max: fptr(51), Aliases: []string{"quality"}},
			},
			Template:    "-crf {value}",
			OptionLevel: true,
		},
		{
			Name: "preset", Category: "output",
			Description: "Encoder speed/size trade-off",
			Tags:        []string{"encoding"},
			Params: []skillstypes.ParameterSpec{
				{Name: "name", Type: skillstypes.ParamEnum, Default: "medium",
					Choices: []string{"ultrafast", "superfast", "veryfast", "faster", "fast", "medium", "slow", "slower", "veryslow"}},
			},
			Template:    "-preset {name}",
			OptionLevel: true,
		},
		{
			Name: "video_codec", Category: "output",
			Description: "Select the video encoder",
			Tags:        []string{"encoding", "codec"},
			Params: []skillstypes.ParameterSpec{
				{Name: "codec", Type: skillstypes.ParamEnum, Default: "libx264",
					Choices: []string{"libx264", "libx265", "libvpx-vp9", "libaom-av1", "copy"}},
			},
			Template:    "-c:v {codec}",
			OptionLevel: true,
		},
		{
			Name: "audio_codec", Category: "output",
			Description: "Select the audio encoder",
			Tags:        []string{"encoding", "codec", "audio"},
			Params: []skillstypes.ParameterSpec{
				{Name: "codec", Type: skillstypes.ParamEnum, Default: "aac",
					Choices: []string{"aac", "libmp3lame", "libopus", "flac", "copy"}},
			},
			Template:    "-c:a {codec}",
			OptionLevel: true,
		},
		{
			Name: "audio_bitrate", Category: "output",
			Description: "Target audio bitrate",
			Tags:        []string{"encoding", "audio"},
			Params: []skillstypes.ParameterSpec{
				{Name: "bitrate", Type: skillstypes.ParamEnum, Default: "192k",
					Choices: []string{"96k", "128k", "192k", "256k", "320k"}},
			},
			Template:    "-b:a {bitrate}",
			OptionLevel: true,
		},

		// --- sub-pipelines ---
		{
			Name: "sepia", Category: "looks",
			Description: "Warm monochrome film look",
			Tags:        []string{"looks", "retro"},
			Pipeline: []skillstypes.SubStep{
				{Skill: "grayscale"},
				{Skill: "color_balance", Params: map[string]any{"rs": 0.35, "gs": 0.15, "bs": -0.2}},
			},
		},
		{
			Name: "punchy", Category: "looks",
			Description: "Boosted contrast and saturation for social clips",
			Tags:        []string{"looks", "social"},
			Params: []skillstypes.ParameterSpec{
				{Name: "contrast", Type: skillstypes.ParamFloat, Default: 1.2, Min: fptr(0.5), Max: fptr(2)},
				{Name: "saturation", Type: skillstypes.ParamFloat, Default: 1.3, Min: fptr(0.5), Max: fptr(2)},
			},
			Pipeline: []skillstypes.SubStep{
				{Skill: "contrast", Params: map[string]any{"value": "{contrast}"}},
				{Skill: "saturation", Params: map[string]any{"value": "{saturation}"}},
			},
		},
	}

	defs = append(defs, handlerDefinitions()...)
	return defs
}

// handlerDefinitions declares the procedural skills. Shapes, per contract:
// single-filter generators, multi-filter generators, graph-fragment
// generators for anything touching more than one stream, and raw-flag
// generators for seek/loop/hwaccel concerns that live outside filter text.
func handlerDefinitions() []*skillstypes.SkillDefinition {
	return []*skillstypes.SkillDefinition{
		{
			Name: "caption", Category: "text",
			Description: "Draw a text caption; reads a text payload when no text parameter is given",
			Tags:        []string{"text", "overlay"},
			Params: []skillstypes.ParameterSpec{
				{Name: "text", Type: skillstypes.ParamString},
				{Name: "payload", Type: skillstypes.ParamInt, Default: 0, Min: fptr(0)},
				{Name: "font_size", Type: skillstypes.ParamInt, Default: 36, Min: fptr(8), Max: fptr(400), Aliases: []string{"size"}},
				{Name: "font_color", Type: skillstypes.ParamString, Default: "white", Aliases: []string{"color"}},
				{Name: "position", Type: skillstypes.ParamEnum, Default: "bottom", Choices: positionChoices},
				{Name: "start", Type: skillstypes.ParamTime},
				{Name: "end", Type: skillstypes.ParamTime},
				{Name: "font", Type: skillstypes.ParamString},
			},
			Handler: captionHandler,
		},
		{
			Name: "lower_third", Category: "text",
			Description: "Name plate with a smaller title line underneath",
			Tags:        []string{"text", "overlay", "broadcast"},
			Params: []skillstypes.ParameterSpec{
				{Name: "name", Type: skillstypes.ParamString, Required: true},
				{Name: "title", Type: skillstypes.ParamString, Default: ""},
				{Name: "font_size", Type: skillstypes.ParamInt, Default: 48, Min: fptr(8), Max: fptr(400)},
				{Name: "font_color", Type: skillstypes.ParamString, Default: "white"},
				{Name: "font", Type: skillstypes.ParamString},
			},
			Handler: lowerThirdHandler,
		},
		{
			Name: "subtitles", Category: "text",
			Description: "Burn a subtitle file into the video",
			Tags:        []string{"text", "subtitles"},
			Params: []skillstypes.ParameterSpec{
				{Name: "path", Type: skillstypes.ParamString, Required: true, Aliases: []string{"file"}},
			},
			Handler: subtitlesHandler,
		},
		{
			Name: "lut", Category: "color",
			Description: "Apply a 3D LUT grading file",
			Tags:        []string{"color", "grading"},
			Params: []skillstypes.ParameterSpec{
				{Name: "path", Type: skillstypes.ParamString, Required: true, Aliases: []string{"file"}},
			},
			Handler: lutHandler,
		},
		{
			Name: "glow", Category: "looks",
			Description: "Soft glow by blending a blurred copy over the original",
			Tags:        []string{"looks"},
			Params: []skillstypes.ParameterSpec{
				{Name: "sigma", Type: skillstypes.ParamFloat, Default: 10.0, Min: fptr(1), Max: fptr(50)},
				{Name: "intensity", Type: skillstypes.ParamFloat, Default: 0.5, Min: fptr(0), Max: fptr(1)},
			},
			Handler: glowHandler,
		},
		{
			Name: "watermark", Category: "overlay",
			Description: "Overlay an extra input image as a watermark",
			Tags:        []string{"overlay", "branding"},
			Params: []skillstypes.ParameterSpec{
				{Name: "position", Type: skillstypes.ParamEnum, Default: "top_right", Choices: cornerChoices},
				{Name: "scale", Type: skillstypes.ParamFloat, Default: 0.15, Min: fptr(0.01), Max: fptr(1)},
				{Name: "opacity", Type: skillstypes.ParamFloat, Default: 1.0, Min: fptr(0), Max: fptr(1)},
			},
			Handler: watermarkHandler,
		},
		{
			Name: "pip", Category: "overlay",
			Description: "Picture-in-picture from an extra input",
			Tags:        []string{"overlay", "multicam"},
			Params: []skillstypes.ParameterSpec{
				{Name: "position", Type: skillstypes.ParamEnum, Default: "bottom_right", Choices: cornerChoices},
				{Name: "scale", Type: skillstypes.ParamFloat, Default: 0.33, Min: fptr(0.1), Max: fptr(0.5)},
			},
			Handler: pipHandler,
		},
		{
			Name: "concat", Category: "transition",
			Description: "Append every extra input after the primary video",
			Tags:        []string{"transition", "sequence"},
			Handler:     concatHandler,
		},
		{
			Name: "xfade", Category: "transition",
			Description: "Crossfade from the primary video into the next extra input",
			Tags:        []string{"transition"},
			Params: []skillstypes.ParameterSpec{
				{Name: "transition", Type: skillstypes.ParamEnum, Default: "fade", Choices: xfadeTransitions},
				{Name: "duration", Type: skillstypes.ParamFloat, Default: 1.0, Min: fptr(0.1), Max: fptr(10)},
			},
			Handler: xfadeHandler,
		},
		{
			Name: "grid", Category: "overlay",
			Description: "2x2 grid of the primary video plus three extra inputs",
			Tags:        []string{"overlay", "multicam", "layout"},
			Handler:     gridHandler,
		},
		{
			Name: "trim", Category: "input",
			Description: "Keep only the span between start and end",
			Tags:        []string{"timing", "cut"},
			Params: []skillstypes.ParameterSpec{
				{Name: "start", Type: skillstypes.ParamTime, Default: 0.0, Min: fptr(0), Aliases: []string{"from"}},
				{Name: "end", Type: skillstypes.ParamTime, Aliases: []string{"to"}},
				{Name: "duration", Type: skillstypes.ParamFloat, Min: fptr(0.01)},
			},
			Handler: trimHandler,
		},
		{
			Name: "loop_input", Category: "input",
			Description: "Loop the primary input; -1 loops forever",
			Tags:        []string{"timing"},
			Params: []skillstypes.ParameterSpec{
				{Name: "count", Type: skillstypes.ParamInt, Default: 1, Min: fptr(-1), Max: fptr(1000)},
			},
			Handler: loopInputHandler,
		},
		{
			Name: "hwaccel", Category: "input",
			Description: "Select a hardware decode backend",
			Tags:        []string{"performance"},
			Params: []skillstypes.ParameterSpec{
				{Name: "api", Type: skillstypes.ParamEnum, Default: "auto",
					Choices: []string{"auto", "cuda", "vaapi", "qsv", "videotoolbox"}},
			},
			Handler: hwaccelHandler,
		},
		{
			Name: "speed", Category: "timing",
			Description: "Change playback speed, keeping audio pitch-correct",
			Tags:        []string{"timing"},
			Params: []skillstypes.ParameterSpec{
				{Name: "factor", Type: skillstypes.ParamFloat, Default: 1.5, Min: fptr(0.25), Max: fptr(4), Aliases: []string{"rate"}},
			},
			Handler: speedHandler,
		},
		{
			Name: "replace_audio", Category: "audio",
			Description: "Replace the primary audio with an extra input's audio track",
			Tags:        []string{"audio"},
			Handler:     replaceAudioHandler,
		},
		{
			Name: "mix_audio", Category: "audio",
			Description: "Mix an extra input's audio under the primary track",
			Tags:        []string{"audio", "music"},
			Params: []skillstypes.ParameterSpec{
				{Name: "weight", Type: skillstypes.ParamFloat, Default: 0.5, Min: fptr(0), Max: fptr(1), Aliases: []string{"level"}},
			},
			Handler: mixAudioHandler,
		},
	}
}

var xfadeTransitions = []string{
	"fade", "dissolve", "wipeleft", "wiperight", "wipeup", "wipedown",
	"slideleft", "slideright", "circleopen", "circleclose", "radial", "pixelize",
}
