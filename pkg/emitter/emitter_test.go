package emitter

import (
	"testing"

	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseDescriptor() *skillstypes.CommandDescriptor {
	return &skillstypes.CommandDescriptor{
		GlobalFlags: []skillstypes.Flag{{Name: "-y"}},
		Inputs:      []string{"/media/in.mp4"},
		OutputPath:  "/media/out.mp4",
	}
}

func TestRenderOrdering(t *testing.T) {
	desc := baseDescriptor()
	desc.InputFlags = []skillstypes.Flag{{Name: "-ss", Value: "5"}}
	desc.Inputs = append(desc.Inputs, "/media/extra.mp4")
	desc.VideoChain = "eq=brightness=0.2"
	desc.AudioChain = "volume=0.5"
	desc.OutputFlags = []skillstypes.Flag{{Name: "-t", Value: "25.0"}}
	desc.StreamMap = []string{"0:v", "1:a"}

	argv, err := Render(desc)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-y",
		"-ss", "5",
		"-i", "/media/in.mp4",
		"-i", "/media/extra.mp4",
		"-vf", "eq=brightness=0.2",
		"-af", "volume=0.5",
		"-t", "25.0",
		"-map", "0:v",
		"-map", "1:a",
		"/media/out.mp4",
	}, argv)
}

func TestRenderGraph(t *testing.T) {
	desc := baseDescriptor()
	desc.FilterGraph = "[0:v]split=2[a][b];[a][b]blend=all_mode=screen[out]"
	desc.StreamMap = []string{"[out]", "0:a"}

	argv, err := Render(desc)
	require.NoError(t, err)
	assert.Contains(t, argv, "-filter_complex")
	assert.NotContains(t, argv, "-vf")
	assert.NotContains(t, argv, "-af")
}

func TestRenderOmitsEmptyChains(t *testing.T) {
	argv, err := Render(baseDescriptor())
	require.NoError(t, err)
	assert.Equal(t, []string{"-y", "-i", "/media/in.mp4", "/media/out.mp4"}, argv)
}

func TestOutputFlagDedupe(t *testing.T) {
	desc := baseDescriptor()
	desc.OutputFlags = []skillstypes.Flag{
		{Name: "-crf", Value: "18"},
		{Name: "-preset", Value: "fast"},
		{Name: "-crf", Value: "28"},
	}

	argv, err := Render(desc)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-y", "-i", "/media/in.mp4",
		"-preset", "fast",
		"-crf", "28",
		"/media/out.mp4",
	}, argv)
}

func TestRenderInvariants(t *testing.T) {
	assertViolation := func(t *testing.T, desc *skillstypes.CommandDescriptor) {
		t.Helper()
		_, err := Render(desc)
		var iv *skillstypes.InvariantViolation
		require.ErrorAs(t, err, &iv)
	}

	t.Run("nil descriptor", func(t *testing.T) {
		assertViolation(t, nil)
	})

	t.Run("graph and chain together", func(t *testing.T) {
		desc := baseDescriptor()
		desc.FilterGraph = "[0:v]hflip[v]"
		desc.VideoChain = "hflip"
		assertViolation(t, desc)
	})

	t.Run("no inputs", func(t *testing.T) {
		desc := baseDescriptor()
		desc.Inputs = nil
		assertViolation(t, desc)
	})

	t.Run("duplicate map entries", func(t *testing.T) {
		desc := baseDescriptor()
		desc.StreamMap = []string{"0:v", "0:v"}
		assertViolation(t, desc)
	})
}
