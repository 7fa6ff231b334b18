package composer

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kinocut/kinocut/pkg/emitter"
	"github.com/kinocut/kinocut/pkg/handlers"
	"github.com/kinocut/kinocut/pkg/registry"
	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestComposer(t *testing.T) *Composer {
	t.Helper()
	r := registry.New()
	require.NoError(t, handlers.RegisterBuiltins(r))
	require.NoError(t, r.CheckCycles())
	return New(r)
}

// testContext builds a PipelineContext over real temp files, one extra input
// per requested kind.
func testContext(t *testing.T, kinds ...skillstypes.MediaKind) *skillstypes.PipelineContext {
	t.Helper()
	dir := t.TempDir()

	in := filepath.Join(dir, "in.mp4")
	require.NoError(t, os.WriteFile(in, []byte("x"), 0o644))

	var extras []skillstypes.ExtraInput
	for i, kind := range kinds {
		name := filepath.Join(dir, "extra"+string(rune('0'+i)))
		if kind == skillstypes.MediaImage {
			name += ".png"
		} else {
			name += ".mp4"
		}
		require.NoError(t, os.WriteFile(name, []byte("x"), 0o644))
		extras = append(extras, skillstypes.ExtraInput{Path: name, Kind: kind})
	}

	return &skillstypes.PipelineContext{
		InputPath:  in,
		OutputPath: filepath.Join(dir, "out.mp4"),
		Extras:     extras,
		Duration:   10.0,
		FPS:        30.0,
		Width:      1280,
		Height:     720,
		HasAudio:   true,
	}
}

func compile(t *testing.T, pctx *skillstypes.PipelineContext, steps ...skillstypes.PipelineStep) *skillstypes.CommandDescriptor {
	t.Helper()
	c := newTestComposer(t)
	desc, err := c.Compile(context.Background(), &skillstypes.Pipeline{Steps: steps, Context: pctx})
	require.NoError(t, err)
	return desc
}

func TestScenarioBrightnessChain(t *testing.T) {
	desc := compile(t, testContext(t),
		skillstypes.PipelineStep{Skill: "brightness", Params: map[string]any{"value": 0.2}})

	assert.Equal(t, "eq=brightness=0.2", desc.VideoChain)
	assert.Empty(t, desc.FilterGraph, "no graph flag for a pure chain pipeline")
	assert.Empty(t, desc.AudioChain)
}

func TestScenarioTrimFlags(t *testing.T) {
	desc := compile(t, testContext(t),
		skillstypes.PipelineStep{Skill: "trim", Params: map[string]any{"start": 5, "end": 30}})

	assert.Equal(t, []skillstypes.Flag{{Name: "-ss", Value: "5"}}, desc.InputFlags)
	assert.Equal(t, []skillstypes.Flag{{Name: "-t", Value: "25.0"}}, desc.OutputFlags)

	argv, err := emitter.Render(desc)
	require.NoError(t, err)
	joined := strings.Join(argv, " ")
	assert.Contains(t, joined, "-ss 5 -i ")
	assert.Contains(t, joined, "-t 25.0")
}

func TestScenarioXfadeOffset(t *testing.T) {
	desc := compile(t, testContext(t, skillstypes.MediaVideo),
		skillstypes.PipelineStep{Skill: "xfade", Params: map[string]any{"transition": "fade", "duration": 1.0}})

	require.NotEmpty(t, desc.FilterGraph)
	assert.Equal(t, 1, strings.Count(desc.FilterGraph, "xfade="))
	assert.Contains(t, desc.FilterGraph, "xfade=transition=fade:duration=1.0:offset=9.0")
	assert.Empty(t, desc.VideoChain)
}

func TestModeExclusivity(t *testing.T) {
	t.Run("chain only", func(t *testing.T) {
		desc := compile(t, testContext(t),
			skillstypes.PipelineStep{Skill: "brightness", Params: map[string]any{"value": 0.1}},
			skillstypes.PipelineStep{Skill: "sharpen", Params: map[string]any{"amount": 2.0}})
		assert.Empty(t, desc.FilterGraph)
		assert.Equal(t, "eq=brightness=0.1,unsharp=5:5:2", desc.VideoChain)
	})

	t.Run("graph mode is permanent", func(t *testing.T) {
		// brightness before the fragment folds into the graph; blur after
		// the fragment folds too. Neither may surface as a chain flag.
		desc := compile(t, testContext(t),
			skillstypes.PipelineStep{Skill: "brightness", Params: map[string]any{"value": 0.2}},
			skillstypes.PipelineStep{Skill: "glow", Params: map[string]any{}},
			skillstypes.PipelineStep{Skill: "blur", Params: map[string]any{"sigma": 3.0}})

		require.NotEmpty(t, desc.FilterGraph)
		assert.Empty(t, desc.VideoChain)
		assert.Empty(t, desc.AudioChain)

		assert.Contains(t, desc.FilterGraph, "[0:v]eq=brightness=0.2[vmain0]")
		assert.Contains(t, desc.FilterGraph, "[vmain0]split=2")
		assert.Contains(t, desc.FilterGraph, "[s0_vout]gblur=sigma=3[vmain1]")
		assert.Equal(t, []string{"[vmain1]", "0:a"}, desc.StreamMap)
	})
}

func TestFragmentLabelNamespacing(t *testing.T) {
	// Two glow steps emit identical handler-local labels; after namespacing
	// they must not collide and must chain on the main stream.
	desc := compile(t, testContext(t),
		skillstypes.PipelineStep{Skill: "glow"},
		skillstypes.PipelineStep{Skill: "glow"})

	assert.Contains(t, desc.FilterGraph, "[0:v]split=2[s0_base][s0_tosoften]")
	assert.Contains(t, desc.FilterGraph, "[s0_vout]split=2[s1_base][s1_tosoften]")
	assert.Contains(t, desc.FilterGraph, "[s1_vout]")
	assert.Equal(t, []string{"[s1_vout]", "0:a"}, desc.StreamMap)
}

func TestConcatMultiInputAccounting(t *testing.T) {
	// Three extras, one of them a still image: exactly one looped sub-chain,
	// three non-looped scale chains (primary plus two videos), segment count
	// four.
	pctx := testContext(t, skillstypes.MediaVideo, skillstypes.MediaImage, skillstypes.MediaVideo)
	desc := compile(t, pctx, skillstypes.PipelineStep{Skill: "concat"})

	graph := desc.FilterGraph
	assert.Equal(t, 1, strings.Count(graph, "loop=loop="))
	assert.Equal(t, 4, strings.Count(graph, "force_original_aspect_ratio"), "every segment is normalized")
	assert.Contains(t, graph, "concat=n=4:v=1:a=0")
}

func TestInjectionNeutralized(t *testing.T) {
	payload := "reds:cyan=0,drawtext=text='X'"
	desc := compile(t, testContext(t),
		skillstypes.PipelineStep{Skill: "caption", Params: map[string]any{"text": payload}})

	// The crafted value must never survive as live filter syntax.
	assert.NotContains(t, desc.VideoChain, ",drawtext=text='X'")
	assert.Contains(t, desc.VideoChain, `reds\:cyan=0\,drawtext=text=\'X\'`)

	argv, err := emitter.Render(desc)
	require.NoError(t, err)
	var vf string
	for i, tok := range argv {
		if tok == "-vf" {
			vf = argv[i+1]
		}
	}
	require.NotEmpty(t, vf)
	// Exactly one live drawtext stage.
	assert.Equal(t, 1, strings.Count(vf, "drawtext=text='"))
}

func TestAudioChainSeparation(t *testing.T) {
	desc := compile(t, testContext(t),
		skillstypes.PipelineStep{Skill: "brightness", Params: map[string]any{"value": 0.1}},
		skillstypes.PipelineStep{Skill: "volume", Params: map[string]any{"gain": 0.5}})

	assert.Equal(t, "eq=brightness=0.1", desc.VideoChain)
	assert.Equal(t, "volume=0.5", desc.AudioChain)
}

func TestAudioFilterWithoutAudioTrack(t *testing.T) {
	pctx := testContext(t)
	pctx.HasAudio = false
	c := newTestComposer(t)
	_, err := c.Compile(context.Background(), &skillstypes.Pipeline{
		Steps:   []skillstypes.PipelineStep{{Skill: "volume", Params: map[string]any{"gain": 2.0}}},
		Context: pctx,
	})
	var verr *skillstypes.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "no audio track")
}

func TestUnknownSkillAndBadParamsAggregate(t *testing.T) {
	c := newTestComposer(t)
	_, err := c.Compile(context.Background(), &skillstypes.Pipeline{
		Steps: []skillstypes.PipelineStep{
			{Skill: "definitely_not_a_skill"},
			{Skill: "brightness", Params: map[string]any{"value": 9.0}},
		},
		Context: testContext(t),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "definitely_not_a_skill")
	assert.Contains(t, err.Error(), "above the maximum")
}

func TestEnumAutocorrectionFlowsThrough(t *testing.T) {
	desc := compile(t, testContext(t, skillstypes.MediaVideo),
		skillstypes.PipelineStep{Skill: "xfade", Params: map[string]any{"transition": "DISS", "duration": 2.0}})
	assert.Contains(t, desc.FilterGraph, "xfade=transition=dissolve:duration=2.0:offset=8.0")
}

func TestSubPipelineExpansion(t *testing.T) {
	t.Run("fixed params", func(t *testing.T) {
		desc := compile(t, testContext(t), skillstypes.PipelineStep{Skill: "sepia"})
		assert.Equal(t, "hue=s=0,colorbalance=rs=0.35:gs=0.15:bs=-0.2", desc.VideoChain)
	})

	t.Run("parameter forwarding", func(t *testing.T) {
		desc := compile(t, testContext(t),
			skillstypes.PipelineStep{Skill: "punchy", Params: map[string]any{"contrast": 1.5}})
		assert.Equal(t, "eq=contrast=1.5,eq=saturation=1.3", desc.VideoChain)
	})
}

func TestReplaceAudioMapList(t *testing.T) {
	desc := compile(t, testContext(t, skillstypes.MediaVideo),
		skillstypes.PipelineStep{Skill: "replace_audio"})

	assert.Equal(t, []string{"0:v", "1:a"}, desc.StreamMap)

	argv, err := emitter.Render(desc)
	require.NoError(t, err)
	joined := strings.Join(argv, " ")
	assert.Equal(t, 1, strings.Count(joined, "-map 0:v"))
	assert.Equal(t, 1, strings.Count(joined, "-map 1:a"))
}

func TestExtraInputReservationNoCollision(t *testing.T) {
	// watermark and pip in one pipeline must claim different extras.
	desc := compile(t, testContext(t, skillstypes.MediaImage, skillstypes.MediaVideo),
		skillstypes.PipelineStep{Skill: "watermark"},
		skillstypes.PipelineStep{Skill: "pip"})

	assert.Contains(t, desc.FilterGraph, "[1:v]")
	assert.Contains(t, desc.FilterGraph, "[2:v]")
}

func TestExtraInputExhaustion(t *testing.T) {
	c := newTestComposer(t)
	_, err := c.Compile(context.Background(), &skillstypes.Pipeline{
		Steps: []skillstypes.PipelineStep{
			{Skill: "watermark"},
			{Skill: "pip"},
		},
		Context: testContext(t, skillstypes.MediaImage),
	})
	var verr *skillstypes.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "pip", verr.Skill)
}

func TestOutputFlagLastWins(t *testing.T) {
	desc := compile(t, testContext(t),
		skillstypes.PipelineStep{Skill: "crf", Params: map[string]any{"value": 18}},
		skillstypes.PipelineStep{Skill: "crf", Params: map[string]any{"value": 28}})

	argv, err := emitter.Render(desc)
	require.NoError(t, err)
	joined := strings.Join(argv, " ")
	assert.NotContains(t, joined, "-crf 18")
	assert.Contains(t, joined, "-crf 28")
}

func TestSanitizationAbortsCompile(t *testing.T) {
	pctx := testContext(t)
	pctx.OutputPath = "/etc/owned.mp4"
	c := newTestComposer(t)
	_, err := c.Compile(context.Background(), &skillstypes.Pipeline{
		Steps:   []skillstypes.PipelineStep{{Skill: "brightness"}},
		Context: pctx,
	})
	var serr *skillstypes.SanitizationError
	require.ErrorAs(t, err, &serr)
}

func TestCaptionReadsTextPayloadEnvelope(t *testing.T) {
	pctx := testContext(t)
	pctx.TextPayloads = []string{`{"text":"Hello, world","mode":"title","start_time":1,"end_time":4}`}

	desc := compile(t, pctx, skillstypes.PipelineStep{Skill: "caption"})
	assert.Contains(t, desc.VideoChain, `drawtext=text='Hello\, world'`)
	assert.Contains(t, desc.VideoChain, "fontsize=72")
	assert.Contains(t, desc.VideoChain, "enable='between(t,1,4)'")
}

func TestEveryDefaultOnlySkillCompiles(t *testing.T) {
	r := registry.New()
	require.NoError(t, handlers.RegisterBuiltins(r))
	c := New(r)

	for _, name := range r.Names() {
		def, _ := r.Get(name)
		if hasRequiredWithoutDefault(def) {
			continue
		}
		t.Run(name, func(t *testing.T) {
			pctx := testContext(t, skillstypes.MediaVideo, skillstypes.MediaImage, skillstypes.MediaVideo)
			pctx.TextPayloads = []string{"hello"}
			_, err := c.Compile(context.Background(), &skillstypes.Pipeline{
				Steps:   []skillstypes.PipelineStep{{Skill: name}},
				Context: pctx,
			})
			var verr *skillstypes.ValidationError
			assert.False(t, stderrors.As(err, &verr), "default-value compile must not raise a validation error, got %v", err)
		})
	}
}

func hasRequiredWithoutDefault(def *skillstypes.SkillDefinition) bool {
	for _, p := range def.Params {
		if p.Required && p.Default == nil {
			return true
		}
	}
	return false
}
