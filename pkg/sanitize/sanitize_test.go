package sanitize

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscape(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "hello world", "hello world"},
		{"backslash", `a\b`, `a\\b`},
		{"quote", "it's", `it\'s`},
		{"colon", "a:b", `a\:b`},
		{"semicolon", "a;b", `a\;b`},
		{"percent", "50%", "50%%"},
		{"comma", "a,b", `a\,b`},
		{"brackets", "[v]", `\[v\]`},
		{"injection payload", "reds:cyan=0,drawtext=text='X'", `reds\:cyan=0\,drawtext=text=\'X\'`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Escape(tt.raw).String())
		})
	}
}

func TestEscapeAppliedOnce(t *testing.T) {
	// Escaping must never re-escape its own output. The backslash produced
	// for a colon would otherwise double on a second pass.
	raw := `\:`
	once := Escape(raw).String()
	assert.Equal(t, `\\\:`, once)

	twice := Escape(once).String()
	assert.NotEqual(t, once, twice, "a second pass changes the value, so callers must escape exactly once")
}

func TestEscapeLeavesNoLiveSpecials(t *testing.T) {
	raw := "reds:cyan=0,drawtext=text='X'"
	escaped := Escape(raw).String()

	// Every structural character must be preceded by a backslash (or doubled
	// for percent).
	for i, r := range escaped {
		switch r {
		case ':', ';', ',', '\'', '[', ']':
			require.Greater(t, i, 0)
			assert.Equal(t, byte('\\'), escaped[i-1], "unescaped %q at %d in %q", r, i, escaped)
		}
	}
}

func TestCheckReadPath(t *testing.T) {
	dir := t.TempDir()
	lut := filepath.Join(dir, "grade.cube")
	require.NoError(t, os.WriteFile(lut, []byte("LUT_3D_SIZE 2\n"), 0o644))

	t.Run("valid", func(t *testing.T) {
		abs, err := CheckReadPath(lut, KindLUT)
		require.NoError(t, err)
		assert.Equal(t, lut, abs)
	})

	t.Run("traversal", func(t *testing.T) {
		// Build the path by hand: filepath.Join would clean the ".." away
		// before CheckReadPath could see it.
		_, err := CheckReadPath(dir+string(filepath.Separator)+".."+string(filepath.Separator)+"grade.cube", KindLUT)
		var serr *skillstypes.SanitizationError
		require.ErrorAs(t, err, &serr)
		assert.Contains(t, serr.Reason, "traversal")
	})

	t.Run("wrong extension", func(t *testing.T) {
		_, err := CheckReadPath(lut, KindFont)
		var serr *skillstypes.SanitizationError
		require.ErrorAs(t, err, &serr)
		assert.Contains(t, serr.Reason, "not allowed")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := CheckReadPath(filepath.Join(dir, "nope.cube"), KindLUT)
		var serr *skillstypes.SanitizationError
		require.ErrorAs(t, err, &serr)
	})

	t.Run("directory rejected", func(t *testing.T) {
		sub := filepath.Join(dir, "clips.mp4")
		require.NoError(t, os.Mkdir(sub, 0o755))
		_, err := CheckReadPath(sub, KindMedia)
		var serr *skillstypes.SanitizationError
		require.ErrorAs(t, err, &serr)
		assert.Contains(t, serr.Reason, "regular file")
	})
}

func TestCheckOutputPath(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "out.mp4")
		abs, err := CheckOutputPath(out)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(abs, "out.mp4"))
	})

	t.Run("system directory", func(t *testing.T) {
		_, err := CheckOutputPath("/etc/evil.mp4")
		var serr *skillstypes.SanitizationError
		require.ErrorAs(t, err, &serr)
		assert.Contains(t, serr.Reason, "protected")
	})

	t.Run("non-media extension", func(t *testing.T) {
		_, err := CheckOutputPath(filepath.Join(t.TempDir(), "out.sh"))
		require.Error(t, err)
	})
}
