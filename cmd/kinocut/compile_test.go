package main

import (
	"os"
	"path/filepath"
	"testing"

	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtraInputs(t *testing.T) {
	extras, err := parseExtraInputs([]string{
		"/media/b.mp4",
		"/media/logo.PNG",
		"/media/c.mov:video",
		"/media/frame.mp4:image",
	})
	require.NoError(t, err)
	assert.Equal(t, []skillstypes.ExtraInput{
		{Path: "/media/b.mp4", Kind: skillstypes.MediaVideo},
		{Path: "/media/logo.PNG", Kind: skillstypes.MediaImage},
		{Path: "/media/c.mov", Kind: skillstypes.MediaVideo},
		{Path: "/media/frame.mp4", Kind: skillstypes.MediaImage},
	}, extras)

	_, err = parseExtraInputs([]string{"/media/b.mp4:audio"})
	assert.Error(t, err)
}

func TestReadSteps(t *testing.T) {
	dir := t.TempDir()

	t.Run("envelope", func(t *testing.T) {
		path := filepath.Join(dir, "pipeline.json")
		require.NoError(t, os.WriteFile(path,
			[]byte(`{"steps":[{"skill":"brightness","params":{"value":0.2}}]}`), 0o644))

		steps, err := readSteps(path)
		require.NoError(t, err)
		require.Len(t, steps, 1)
		assert.Equal(t, "brightness", steps[0].Skill)
		assert.Equal(t, 0.2, steps[0].Params["value"])
	})

	t.Run("bare array", func(t *testing.T) {
		path := filepath.Join(dir, "bare.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"skill":"hflip"}]`), 0o644))

		steps, err := readSteps(path)
		require.NoError(t, err)
		require.Len(t, steps, 1)
		assert.Equal(t, "hflip", steps[0].Skill)
	})

	t.Run("empty pipeline", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"steps":[]}`), 0o644))

		_, err := readSteps(path)
		assert.Error(t, err)
	})
}

func TestShellJoin(t *testing.T) {
	argv := []string{"-y", "-i", "/media/my clip.mp4", "-vf", "drawtext=text='hi'"}
	assert.Equal(t,
		`-y -i '/media/my clip.mp4' -vf 'drawtext=text='\''hi'\'''`,
		shellJoin(argv))
}
