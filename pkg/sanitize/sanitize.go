// Package sanitize neutralizes untrusted text before it reaches filter
// syntax and validates every file path a compile touches. Filter-building
// code cannot splice a raw string into an option value by accident: the only
// way to obtain a Literal is through Escape.
package sanitize

import (
	"os"
	"path/filepath"
	"strings"

	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
)

// Literal is an escaped filter option value. The zero value renders as the
// empty string; non-empty Literals are only produced by Escape.
type Literal struct {
	escaped string
}

func (l Literal) String() string {
	return l.escaped
}

// Escape neutralizes the characters that filter syntax treats as structure.
// It walks the raw value exactly once, so a value is never double-escaped;
// the substitutions for later characters cannot re-trigger on the output of
// earlier ones.
func Escape(raw string) Literal {
	var b strings.Builder
	b.Grow(len(raw) + len(raw)/4)
	for _, r := range raw {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case ':':
			b.WriteString(`\:`)
		case ';':
			b.WriteString(`\;`)
		case '%':
			b.WriteString(`%%`)
		case ',':
			b.WriteString(`\,`)
		case '[':
			b.WriteString(`\[`)
		case ']':
			b.WriteString(`\]`)
		default:
			b.WriteRune(r)
		}
	}
	return Literal{escaped: b.String()}
}

// FileKind selects the extension allow-list a path is checked against.
type FileKind string

const (
	KindMedia    FileKind = "media" // video, image, or audio
	KindSubtitle FileKind = "subtitle"
	KindLUT      FileKind = "lut"
	KindFont     FileKind = "font"
)

var allowedExtensions = map[FileKind][]string{
	KindMedia: {
		".mp4", ".mkv", ".mov", ".webm", ".avi", ".m4v", ".ts",
		".png", ".jpg", ".jpeg", ".bmp", ".webp", ".gif",
		".mp3", ".aac", ".wav", ".flac", ".ogg", ".m4a", ".opus",
	},
	KindSubtitle: {".srt", ".ass", ".ssa", ".vtt"},
	KindLUT:      {".cube", ".3dl", ".dat", ".m3d"},
	KindFont:     {".ttf", ".otf", ".ttc", ".woff", ".woff2"},
}

// deniedOutputPrefixes are OS-critical directories an output path must not
// land in.
var deniedOutputPrefixes = []string{
	"/bin", "/sbin", "/usr", "/etc", "/boot", "/dev", "/proc", "/sys", "/lib",
	"/lib64", "/var/lib", "/var/run", "/run",
	"C:\\Windows", "C:\\Program Files", "C:\\Program Files (x86)",
	"/System", "/Library",
}

// CheckReadPath validates a path a compile will read: absolute resolution,
// no traversal segments, an extension from the kind's allow-list, and
// existence as a regular file. It returns the cleaned absolute path.
func CheckReadPath(path string, kind FileKind) (string, error) {
	abs, err := resolve(path)
	if err != nil {
		return "", err
	}
	if err := checkExtension(abs, kind); err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", &skillstypes.SanitizationError{Path: path, Reason: "file does not exist or is not readable"}
	}
	if !info.Mode().IsRegular() {
		return "", &skillstypes.SanitizationError{Path: path, Reason: "not a regular file"}
	}
	return abs, nil
}

// CheckOutputPath validates a path a compile will write: absolute
// resolution, no traversal, a media extension, and a destination outside
// OS-critical directories. The file itself need not exist.
func CheckOutputPath(path string) (string, error) {
	abs, err := resolve(path)
	if err != nil {
		return "", err
	}
	if err := checkExtension(abs, KindMedia); err != nil {
		return "", err
	}
	for _, prefix := range deniedOutputPrefixes {
		if abs == prefix || strings.HasPrefix(abs, prefix+string(filepath.Separator)) {
			return "", &skillstypes.SanitizationError{Path: path, Reason: "output path inside a protected system directory"}
		}
	}
	return abs, nil
}

func resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", &skillstypes.SanitizationError{Path: path, Reason: "empty path"}
	}
	for _, seg := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return "", &skillstypes.SanitizationError{Path: path, Reason: "path traversal segment"}
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &skillstypes.SanitizationError{Path: path, Reason: "cannot resolve to an absolute path"}
	}
	return filepath.Clean(abs), nil
}

func checkExtension(abs string, kind FileKind) error {
	ext := strings.ToLower(filepath.Ext(abs))
	for _, allowed := range allowedExtensions[kind] {
		if ext == allowed {
			return nil
		}
	}
	return &skillstypes.SanitizationError{
		Path:   abs,
		Reason: "extension " + ext + " not allowed for " + string(kind) + " files",
	}
}
