package handlers

import (
	"os"
	"path/filepath"
	"testing"

	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pctxWith(extras ...skillstypes.ExtraInput) *skillstypes.PipelineContext {
	return &skillstypes.PipelineContext{
		InputPath:  "/media/in.mp4",
		OutputPath: "/media/out.mp4",
		Extras:     extras,
		Duration:   10.0,
		FPS:        30.0,
		Width:      1280,
		Height:     720,
		HasAudio:   true,
	}
}

func TestScaleChain(t *testing.T) {
	chain := scaleChain(1280, 720)
	assert.Equal(t,
		"scale=1280:720:force_original_aspect_ratio=decrease,pad=1280:720:(ow-iw)/2:(oh-ih)/2,setsar=1",
		chain)
}

func TestLoopChainFrameCount(t *testing.T) {
	assert.Contains(t, loopChain(640, 360, 3.0, 30), "loop=loop=90:size=1:start=0,fps=30,")
	// rounds up, never zero frames
	assert.Contains(t, loopChain(640, 360, 0.01, 30), "loop=loop=1:")
}

func TestParseEnvelope(t *testing.T) {
	t.Run("json object", func(t *testing.T) {
		env := parseEnvelope(`{"text":"hi","mode":"title","font_size":80}`)
		assert.Equal(t, "hi", env.Text)
		assert.Equal(t, "title", env.Mode)
		assert.Equal(t, 80, env.FontSize)
	})

	t.Run("plain text falls back to literal", func(t *testing.T) {
		env := parseEnvelope("just a caption")
		assert.Equal(t, "just a caption", env.Text)
		assert.Empty(t, env.Mode)
	})

	t.Run("json without text falls back to literal", func(t *testing.T) {
		env := parseEnvelope(`{"mode":"title"}`)
		assert.Equal(t, `{"mode":"title"}`, env.Text)
	})
}

func TestCaptionPayloadOutOfRange(t *testing.T) {
	pctx := pctxWith()
	params := skillstypes.Params{
		"text": "", "payload": 2, "font_size": 36,
		"font_color": "white", "position": "bottom", "font": "",
	}
	_, err := captionHandler(params, pctx)
	var verr *skillstypes.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "payload", verr.Param)
}

func TestCaptionRejectsBadFontPath(t *testing.T) {
	params := skillstypes.Params{
		"text": "hi", "payload": 0, "font_size": 36,
		"font_color": "white", "position": "bottom",
		"font": "../../etc/passwd",
	}
	_, err := captionHandler(params, pctxWith())
	var serr *skillstypes.SanitizationError
	require.ErrorAs(t, err, &serr)
}

func TestLowerThirdLayers(t *testing.T) {
	params := skillstypes.Params{
		"name": "Ada Lovelace", "title": "Analyst",
		"font_size": 50, "font_color": "white", "font": "",
	}
	res, err := lowerThirdHandler(params, pctxWith())
	require.NoError(t, err)
	require.Len(t, res.VideoFilters, 2)
	assert.Contains(t, res.VideoFilters[0], "drawtext=text='Ada Lovelace':fontsize=50")
	assert.Contains(t, res.VideoFilters[1], "fontsize=30")
}

func TestSubtitlesEscapesPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ep1.srt")
	require.NoError(t, os.WriteFile(path, []byte("1"), 0o644))

	res, err := subtitlesHandler(skillstypes.Params{"path": path}, pctxWith())
	require.NoError(t, err)
	require.Len(t, res.VideoFilters, 1)
	assert.Contains(t, res.VideoFilters[0], "subtitles=filename='")
	// absolute paths always contain separators, never live colons
	assert.NotContains(t, res.VideoFilters[0], "..")
}

func TestTrimHandler(t *testing.T) {
	t.Run("start and end", func(t *testing.T) {
		res, err := trimHandler(skillstypes.Params{"start": 5.0, "end": 30.0}, pctxWith())
		require.NoError(t, err)
		assert.Equal(t, []skillstypes.Flag{{Name: "-ss", Value: "5"}}, res.InputFlags)
		assert.Equal(t, []skillstypes.Flag{{Name: "-t", Value: "25.0"}}, res.OutputFlags)
	})

	t.Run("zero start omits seek", func(t *testing.T) {
		res, err := trimHandler(skillstypes.Params{"start": 0.0, "duration": 8.0}, pctxWith())
		require.NoError(t, err)
		assert.Empty(t, res.InputFlags)
		assert.Equal(t, []skillstypes.Flag{{Name: "-t", Value: "8.0"}}, res.OutputFlags)
	})

	t.Run("end before start", func(t *testing.T) {
		_, err := trimHandler(skillstypes.Params{"start": 10.0, "end": 5.0}, pctxWith())
		var verr *skillstypes.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "end", verr.Param)
	})
}

func TestAtempoChain(t *testing.T) {
	assert.Equal(t, []string{"atempo=1.5"}, atempoChain(1.5))
	assert.Equal(t, []string{"atempo=2.0", "atempo=2"}, atempoChain(4.0))
	assert.Equal(t, []string{"atempo=0.5", "atempo=0.5"}, atempoChain(0.25))
}

func TestWatermarkOpacity(t *testing.T) {
	params := skillstypes.Params{"position": "top_right", "scale": 0.15, "opacity": 1.0}
	res, err := watermarkHandler(params, pctxWith(skillstypes.ExtraInput{Path: "/m/logo.png", Kind: skillstypes.MediaImage}))
	require.NoError(t, err)
	assert.NotContains(t, res.Fragment.Nodes[0].Filter, "colorchannelmixer")

	params["opacity"] = 0.4
	res, err = watermarkHandler(params, pctxWith(skillstypes.ExtraInput{Path: "/m/logo.png", Kind: skillstypes.MediaImage}))
	require.NoError(t, err)
	assert.Contains(t, res.Fragment.Nodes[0].Filter, "format=rgba,colorchannelmixer=aa=0.4")
	assert.Equal(t, []string{"1:v"}, res.Fragment.Nodes[0].Inputs)
}

func TestXfadeDurationTooLong(t *testing.T) {
	pctx := pctxWith(skillstypes.ExtraInput{Path: "/m/b.mp4", Kind: skillstypes.MediaVideo})
	pctx.Duration = 2.0
	_, err := xfadeHandler(skillstypes.Params{"transition": "fade", "duration": 3.0}, pctx)
	var verr *skillstypes.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "duration", verr.Param)
}

func TestGridNeedsExactlyThreeExtras(t *testing.T) {
	pctx := pctxWith(
		skillstypes.ExtraInput{Path: "/m/a.mp4", Kind: skillstypes.MediaVideo},
		skillstypes.ExtraInput{Path: "/m/b.mp4", Kind: skillstypes.MediaVideo},
	)
	_, err := gridHandler(skillstypes.Params{}, pctx)
	var verr *skillstypes.ValidationError
	require.ErrorAs(t, err, &verr)

	pctx = pctxWith(
		skillstypes.ExtraInput{Path: "/m/a.mp4", Kind: skillstypes.MediaVideo},
		skillstypes.ExtraInput{Path: "/m/b.png", Kind: skillstypes.MediaImage},
		skillstypes.ExtraInput{Path: "/m/c.mp4", Kind: skillstypes.MediaVideo},
	)
	res, err := gridHandler(skillstypes.Params{}, pctx)
	require.NoError(t, err)
	last := res.Fragment.Nodes[len(res.Fragment.Nodes)-1]
	assert.Equal(t, "xstack=inputs=4:layout=0_0|w0_0|0_h0|w0_h0", last.Filter)
	assert.Len(t, last.Inputs, 4)
}

func TestMixAudioRequiresAudioTrack(t *testing.T) {
	pctx := pctxWith(skillstypes.ExtraInput{Path: "/m/music.mp3", Kind: skillstypes.MediaVideo})
	pctx.HasAudio = false
	_, err := mixAudioHandler(skillstypes.Params{"weight": 0.5}, pctx)
	var verr *skillstypes.ValidationError
	require.ErrorAs(t, err, &verr)

	pctx.HasAudio = true
	res, err := mixAudioHandler(skillstypes.Params{"weight": 0.5}, pctx)
	require.NoError(t, err)
	require.Len(t, res.Fragment.Nodes, 1)
	assert.Equal(t, "amix=inputs=2:duration=first:weights='1 0.5'", res.Fragment.Nodes[0].Filter)
	assert.Equal(t, "aout", res.Fragment.AudioOut)
}

func TestConcatSegments(t *testing.T) {
	pctx := pctxWith(
		skillstypes.ExtraInput{Path: "/m/a.png", Kind: skillstypes.MediaImage},
		skillstypes.ExtraInput{Path: "/m/b.mp4", Kind: skillstypes.MediaVideo},
	)
	res, err := concatHandler(skillstypes.Params{}, pctx)
	require.NoError(t, err)

	nodes := res.Fragment.Nodes
	require.Len(t, nodes, 4)
	assert.Contains(t, nodes[1].Filter, "loop=loop=")
	assert.NotContains(t, nodes[2].Filter, "loop=")
	assert.Equal(t, "concat=n=3:v=1:a=0", nodes[3].Filter)
}
