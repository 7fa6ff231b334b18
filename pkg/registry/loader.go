package registry

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/kinocut/kinocut/pkg/logger"
	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// PackConfig configures user skill pack loading.
type PackConfig struct {
	Enabled bool     `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Dirs    []string `mapstructure:"dirs" json:"dirs" yaml:"dirs"`
	Watch   bool     `mapstructure:"watch" json:"watch" yaml:"watch"`
}

// DefaultPackConfig returns the stock pack settings.
func DefaultPackConfig() PackConfig {
	return PackConfig{
		Enabled: true,
		Dirs:    []string{"~/.kinocut/skills", "./kinocut-skills"},
	}
}

// packFile is the YAML shape of one skill pack. Packs can only declare
// template and sub-pipeline skills; procedural handlers are compiled in.
type packFile struct {
	Skills []packSkill `mapstructure:"skills"`
}

type packSkill struct {
	Name        string                      `mapstructure:"name"`
	Category    string                      `mapstructure:"category"`
	Description string                      `mapstructure:"description"`
	Tags        []string                    `mapstructure:"tags"`
	Params      []skillstypes.ParameterSpec `mapstructure:"params"`
	Template    string                      `mapstructure:"template"`
	OptionLevel bool                        `mapstructure:"option_level"`
	Stream      string                      `mapstructure:"stream"`
	Pipeline    []skillstypes.SubStep       `mapstructure:"pipeline"`
}

// LoadPacks discovers *.yaml/*.yml files under cfg.Dirs and registers their
// skills, last writer (later dir, later file) winning on name collisions.
// The load is a sync, not an append: pack skills whose file has disappeared
// since the previous load are removed again, and a builtin a removed pack
// had overwritten comes back. After loading it re-checks the registry for
// sub-pipeline cycles so a bad pack cannot poison the first compile that
// expands it.
func LoadPacks(ctx context.Context, r *Registry, cfg PackConfig) error {
	if !cfg.Enabled {
		return nil
	}
	log := logger.G(ctx)
	seen := make(map[string]bool)
	for _, dir := range cfg.Dirs {
		dir = expandHome(dir)
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		files, err := discoverPackFiles(dir)
		if err != nil {
			return errors.Wrapf(err, "discovering skill packs under %s", dir)
		}
		for _, file := range files {
			if err := loadPackFile(r, file, seen); err != nil {
				return err
			}
			log.WithField("pack", file).Debug("loaded skill pack")
		}
	}
	r.prunePacks(seen)
	return r.CheckCycles()
}

func discoverPackFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"**/*.yaml", "**/*.yml"} {
		matches, err := doublestar.Glob(os.DirFS(dir), pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			files = append(files, filepath.Join(dir, m))
		}
	}
	sort.Strings(files)
	return files, nil
}

func loadPackFile(r *Registry, path string, seen map[string]bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading skill pack %s", path)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return errors.Wrapf(err, "parsing skill pack %s", path)
	}

	var pack packFile
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &pack,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return errors.Wrap(err, "building pack decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return errors.Wrapf(err, "decoding skill pack %s", path)
	}

	for _, s := range pack.Skills {
		def := &skillstypes.SkillDefinition{
			Name:        s.Name,
			Category:    s.Category,
			Description: s.Description,
			Tags:        s.Tags,
			Params:      s.Params,
			Template:    s.Template,
			OptionLevel: s.OptionLevel,
			Stream:      skillstypes.StreamKind(s.Stream),
			Pipeline:    s.Pipeline,
		}
		if def.Category == "" {
			def.Category = "custom"
		}
		if err := r.register(def, true); err != nil {
			return errors.Wrapf(err, "registering skill from %s", path)
		}
		seen[def.Name] = true
	}
	return nil
}

// Watch reloads skill packs whenever a file under the pack directories
// changes. LoadPacks synchronizes the catalog with the directory state, so
// a removed or renamed pack file drops its skills too. The registry
// serializes index and cache mutation, so an in-flight compile observes
// either the old or the new catalog atomically. Watch blocks until ctx is
// done.
func Watch(ctx context.Context, r *Registry, cfg PackConfig) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating skill pack watcher")
	}
	defer watcher.Close()

	watched := 0
	for _, dir := range cfg.Dirs {
		dir = expandHome(dir)
		if _, statErr := os.Stat(dir); statErr != nil {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return errors.Wrapf(err, "watching %s", dir)
		}
		watched++
	}
	if watched == 0 {
		<-ctx.Done()
		return nil
	}

	log := logger.G(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			log.WithField("file", event.Name).Info("skill pack change detected, reloading")
			if err := LoadPacks(ctx, r, cfg); err != nil {
				log.WithError(err).Error("skill pack reload failed, keeping previous catalog")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("skill pack watcher error")
		}
	}
}

func expandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
