package registry

import (
	"encoding/json"
	"testing"

	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func templateDef(name, category, description, template string, tags ...string) *skillstypes.SkillDefinition {
	return &skillstypes.SkillDefinition{
		Name:        name,
		Category:    category,
		Description: description,
		Tags:        tags,
		Template:    template,
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(templateDef("brightness", "color", "Adjust brightness", "eq=brightness={value}")))

	def, ok := r.Get("brightness")
	require.True(t, ok)
	assert.Equal(t, "color", def.Category)

	_, ok = r.Get("nope")
	assert.False(t, ok)
}

func TestRegisterLastWriterWins(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(templateDef("blur", "detail", "first", "gblur=sigma=1")))
	require.NoError(t, r.Register(templateDef("blur", "looks", "second", "gblur=sigma=2")))

	def, ok := r.Get("blur")
	require.True(t, ok)
	assert.Equal(t, "second", def.Description)

	assert.Empty(t, r.ByCategory("detail"), "old index entry removed on overwrite")
	assert.Equal(t, []string{"blur"}, r.ByCategory("looks"))
}

func TestRegisterRejectsBadDefinitions(t *testing.T) {
	r := New()

	err := r.Register(&skillstypes.SkillDefinition{Name: "empty"})
	var cerr *skillstypes.ConfigurationError
	require.ErrorAs(t, err, &cerr)

	err = r.Register(&skillstypes.SkillDefinition{
		Name:     "both",
		Template: "noop",
		Pipeline: []skillstypes.SubStep{{Skill: "x"}},
	})
	require.ErrorAs(t, err, &cerr)

	err = r.Register(&skillstypes.SkillDefinition{
		Name:     "badenum",
		Template: "noop={mode}",
		Params:   []skillstypes.ParameterSpec{{Name: "mode", Type: skillstypes.ParamEnum}},
	})
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Reason, "no choices")
}

func TestSearch(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(templateDef("vignette", "looks", "Darken the frame edges", "vignette", "retro", "frame")))
	require.NoError(t, r.Register(templateDef("sharpen", "detail", "Sharpen fine detail", "unsharp")))

	hits := r.Search("RETRO")
	require.Len(t, hits, 1)
	assert.Equal(t, "vignette", hits[0].Name)

	hits = r.Search("sharp")
	require.Len(t, hits, 1)
	assert.Equal(t, "sharpen", hits[0].Name)

	assert.Empty(t, r.Search("nonexistent"))
}

func TestCatalogMemoization(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(templateDef("fps", "timing", "Force frame rate", "fps={fps}")))

	first := r.CatalogText()
	assert.Contains(t, first, "fps")
	assert.Equal(t, first, r.CatalogText(), "reads do not invalidate")

	require.NoError(t, r.Register(templateDef("scale", "frame", "Resize", "scale={width}:{height}")))
	second := r.CatalogText()
	assert.NotEqual(t, first, second)
	assert.Contains(t, second, "scale")
}

func TestSchemaJSON(t *testing.T) {
	r := New()
	minT := 0.0
	require.NoError(t, r.Register(&skillstypes.SkillDefinition{
		Name:        "xfade",
		Category:    "transition",
		Description: "Crossfade to the next input",
		Template:    "placeholder",
		Params: []skillstypes.ParameterSpec{
			{Name: "transition", Type: skillstypes.ParamEnum, Choices: []string{"fade", "dissolve"}, Default: "fade"},
			{Name: "duration", Type: skillstypes.ParamFloat, Min: &minT, Default: 1.0},
		},
	}))

	data, err := r.SchemaJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "array", decoded["type"])

	s := string(data)
	assert.Contains(t, s, `"xfade"`)
	assert.Contains(t, s, `"dissolve"`)

	again, err := r.SchemaJSON()
	require.NoError(t, err)
	assert.Equal(t, data, again, "memoized until next register")
}

func TestCheckCycles(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(templateDef("grayscale", "color", "Drop saturation", "hue=s=0")))
	require.NoError(t, r.Register(&skillstypes.SkillDefinition{
		Name:     "mono_punch",
		Category: "looks",
		Pipeline: []skillstypes.SubStep{{Skill: "grayscale"}},
	}))
	require.NoError(t, r.CheckCycles())

	require.NoError(t, r.Register(&skillstypes.SkillDefinition{
		Name:     "a",
		Category: "looks",
		Pipeline: []skillstypes.SubStep{{Skill: "b"}},
	}))
	require.NoError(t, r.Register(&skillstypes.SkillDefinition{
		Name:     "b",
		Category: "looks",
		Pipeline: []skillstypes.SubStep{{Skill: "a"}},
	}))

	err := r.CheckCycles()
	var cerr *skillstypes.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Reason, "cyclic")
}
