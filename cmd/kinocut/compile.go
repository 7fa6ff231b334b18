package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/kinocut/kinocut/pkg/composer"
	"github.com/kinocut/kinocut/pkg/emitter"
	"github.com/kinocut/kinocut/pkg/handlers"
	"github.com/kinocut/kinocut/pkg/presenter"
	"github.com/kinocut/kinocut/pkg/registry"
	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CompileOptions contains all options for the compile command
type CompileOptions struct {
	pipelineFile string
	input        string
	output       string
	extraInputs  []string
	textPayloads []string
	duration     float64
	fps          float64
	width        int
	height       int
	hasAudio     bool
	shell        bool
}

var compileOptions = &CompileOptions{}

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile a pipeline into a command line",
	Long: `Compile reads a pipeline as JSON, either from --pipeline or stdin,
validates it against the skill catalog, and prints the resulting argument
vector one token per line. With --shell the output is a single shell-quoted
command line instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			cancel()
		}()

		if err := runCompile(ctx, compileOptions); err != nil {
			presenter.Error(err, "compilation failed")
			os.Exit(1)
		}
	},
}

func init() {
	compileCmd.Flags().StringVarP(&compileOptions.pipelineFile, "pipeline", "p", "", "Pipeline JSON file (defaults to stdin)")
	compileCmd.Flags().StringVarP(&compileOptions.input, "input", "i", "", "Primary input media path")
	compileCmd.Flags().StringVarP(&compileOptions.output, "output", "o", "", "Output media path")
	compileCmd.Flags().StringArrayVar(&compileOptions.extraInputs, "extra-input", nil, "Extra input as path[:video|image], repeatable")
	compileCmd.Flags().StringArrayVar(&compileOptions.textPayloads, "text-payload", nil, "Text payload for caption skills, repeatable")
	compileCmd.Flags().Float64Var(&compileOptions.duration, "duration", 0, "Primary input duration in seconds")
	compileCmd.Flags().Float64Var(&compileOptions.fps, "fps", 0, "Primary input frame rate")
	compileCmd.Flags().IntVar(&compileOptions.width, "width", 0, "Primary input width in pixels")
	compileCmd.Flags().IntVar(&compileOptions.height, "height", 0, "Primary input height in pixels")
	compileCmd.Flags().BoolVar(&compileOptions.hasAudio, "has-audio", true, "Primary input carries an audio track")
	compileCmd.Flags().BoolVar(&compileOptions.shell, "shell", false, "Print one shell-quoted command line instead of one token per line")

	compileCmd.MarkFlagRequired("input")
	compileCmd.MarkFlagRequired("output")
}

func runCompile(ctx context.Context, opts *CompileOptions) error {
	steps, err := readSteps(opts.pipelineFile)
	if err != nil {
		return err
	}

	extras, err := parseExtraInputs(opts.extraInputs)
	if err != nil {
		return err
	}

	reg, err := buildRegistry(ctx)
	if err != nil {
		return err
	}

	pipeline := &skillstypes.Pipeline{
		Steps: steps,
		Context: &skillstypes.PipelineContext{
			InputPath:    opts.input,
			OutputPath:   opts.output,
			Extras:       extras,
			Duration:     opts.duration,
			FPS:          opts.fps,
			Width:        opts.width,
			Height:       opts.height,
			HasAudio:     opts.hasAudio,
			TextPayloads: opts.textPayloads,
		},
	}

	desc, err := composer.New(reg).Compile(ctx, pipeline)
	if err != nil {
		return err
	}
	argv, err := emitter.Render(desc)
	if err != nil {
		return err
	}

	if opts.shell {
		fmt.Println("ffmpeg " + shellJoin(argv))
		return nil
	}
	for _, tok := range argv {
		fmt.Println(tok)
	}
	return nil
}

// readSteps loads the pipeline step list from a file, or from stdin when no
// file is given.
func readSteps(path string) ([]skillstypes.PipelineStep, error) {
	var raw []byte
	var err error
	if path != "" {
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "reading pipeline file")
		}
	} else {
		raw, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, errors.Wrap(err, "reading pipeline from stdin")
		}
	}

	var envelope struct {
		Steps []skillstypes.PipelineStep `json:"steps"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		// A bare step array is accepted too.
		var steps []skillstypes.PipelineStep
		if arrErr := json.Unmarshal(raw, &steps); arrErr != nil {
			return nil, errors.Wrap(err, "parsing pipeline JSON")
		}
		return steps, nil
	}
	if len(envelope.Steps) == 0 {
		return nil, errors.New("pipeline has no steps")
	}
	return envelope.Steps, nil
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true, ".webp": true,
}

// parseExtraInputs converts path[:video|image] specs. Without an explicit
// kind the file extension decides.
func parseExtraInputs(specs []string) ([]skillstypes.ExtraInput, error) {
	var extras []skillstypes.ExtraInput
	for _, spec := range specs {
		path := spec
		var kind skillstypes.MediaKind

		if idx := strings.LastIndex(spec, ":"); idx > 0 {
			switch suffix := spec[idx+1:]; suffix {
			case "video":
				path, kind = spec[:idx], skillstypes.MediaVideo
			case "image":
				path, kind = spec[:idx], skillstypes.MediaImage
			default:
				return nil, errors.Errorf("extra input %q: kind must be video or image", spec)
			}
		}
		if kind == "" {
			kind = skillstypes.MediaVideo
			if imageExtensions[strings.ToLower(filepath.Ext(path))] {
				kind = skillstypes.MediaImage
			}
		}
		extras = append(extras, skillstypes.ExtraInput{Path: path, Kind: kind})
	}
	return extras, nil
}

// buildRegistry loads the builtin catalog plus any configured skill packs.
func buildRegistry(ctx context.Context) (*registry.Registry, error) {
	reg := registry.New()
	if err := handlers.RegisterBuiltins(reg); err != nil {
		return nil, err
	}

	cfg := registry.DefaultPackConfig()
	if viper.IsSet("skill_packs") {
		if err := viper.UnmarshalKey("skill_packs", &cfg); err != nil {
			return nil, errors.Wrap(err, "parsing skill_packs config")
		}
	}
	if cfg.Enabled {
		if err := registry.LoadPacks(ctx, reg, cfg); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// shellJoin quotes each token for a POSIX shell.
func shellJoin(argv []string) string {
	quoted := make([]string, 0, len(argv))
	for _, tok := range argv {
		quoted = append(quoted, shellQuote(tok))
	}
	return strings.Join(quoted, " ")
}

func shellQuote(tok string) string {
	if tok != "" && !strings.ContainsAny(tok, " \t\n'\"\\$`;&|<>()[]*?#~") {
		return tok
	}
	return "'" + strings.ReplaceAll(tok, "'", `'\''`) + "'"
}
