// Package composer orchestrates one compile request: it resolves each
// pipeline step against the registry, validates and normalizes parameters,
// expands templates and sub-pipelines, invokes handlers, and merges every
// per-step result into a single chain or filter graph.
package composer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/kinocut/kinocut/pkg/logger"
	"github.com/kinocut/kinocut/pkg/params"
	"github.com/kinocut/kinocut/pkg/registry"
	"github.com/kinocut/kinocut/pkg/sanitize"
	"github.com/kinocut/kinocut/pkg/telemetry"
	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// maxExpansionDepth bounds sub-pipeline nesting as a backstop behind the
// registry's cycle check.
const maxExpansionDepth = 16

// Composer compiles pipelines against one registry. It holds no per-request
// state; every Compile call owns its own accumulators.
type Composer struct {
	reg *registry.Registry
}

// New creates a Composer over the given registry.
func New(reg *registry.Registry) *Composer {
	return &Composer{reg: reg}
}

// Compile turns a pipeline into a CommandDescriptor. Validation and
// configuration errors are aggregated across steps so the caller sees every
// problem at once; sanitization errors abort immediately. No partially
// compiled command is ever returned.
func (c *Composer) Compile(ctx context.Context, p *skillstypes.Pipeline) (*skillstypes.CommandDescriptor, error) {
	if p == nil || p.Context == nil {
		return nil, errors.New("pipeline has no context")
	}

	compileID := uuid.NewString()[:8]
	log := logger.G(ctx).WithField("compile_id", compileID)
	ctx = logger.WithLogger(ctx, log)

	var desc *skillstypes.CommandDescriptor
	err := telemetry.WithSpan(ctx, "compile", func(ctx context.Context) error {
		var err error
		desc, err = c.compile(ctx, p)
		return err
	}, attribute.Int("steps", len(p.Steps)), attribute.String("compile_id", compileID))
	if err != nil {
		return nil, err
	}
	return desc, nil
}

func (c *Composer) compile(ctx context.Context, p *skillstypes.Pipeline) (*skillstypes.CommandDescriptor, error) {
	pctx := p.Context
	if err := checkContextPaths(pctx); err != nil {
		return nil, err
	}

	// First pass: resolve and validate every step so the caller gets the
	// full error list instead of the first failure.
	type resolved struct {
		def    *skillstypes.SkillDefinition
		params skillstypes.Params
	}
	steps := make([]resolved, 0, len(p.Steps))
	var merr *multierror.Error
	for i, step := range p.Steps {
		def, ok := c.reg.Get(step.Skill)
		if !ok {
			merr = multierror.Append(merr, &skillstypes.ConfigurationError{
				Skill:  step.Skill,
				Reason: fmt.Sprintf("unknown skill at step %d; check the skill catalog", i+1),
			})
			continue
		}
		validated, err := params.Validate(step.Skill, step.Params, def.Params)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		steps = append(steps, resolved{def: def, params: validated})
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}

	st := newState(pctx)
	for _, step := range steps {
		logger.G(ctx).WithField("skill", step.def.Name).Debug("expanding step")
		telemetry.AddEvent(ctx, "expand_step", step.def.TracingKVs()...)
		if err := c.expand(st, step.def, step.params, nil); err != nil {
			return nil, err
		}
	}

	return st.finalize()
}

func checkContextPaths(pctx *skillstypes.PipelineContext) error {
	abs, err := sanitize.CheckReadPath(pctx.InputPath, sanitize.KindMedia)
	if err != nil {
		return err
	}
	pctx.InputPath = abs

	for i := range pctx.Extras {
		abs, err := sanitize.CheckReadPath(pctx.Extras[i].Path, sanitize.KindMedia)
		if err != nil {
			return err
		}
		pctx.Extras[i].Path = abs
	}

	out, err := sanitize.CheckOutputPath(pctx.OutputPath)
	if err != nil {
		return err
	}
	pctx.OutputPath = out
	return nil
}

// expand turns one resolved step into HandlerResults and merges them. stack
// carries the sub-pipeline expansion trail for cycle detection.
func (c *Composer) expand(st *state, def *skillstypes.SkillDefinition, validated skillstypes.Params, stack []string) error {
	if len(stack) > maxExpansionDepth {
		return &skillstypes.ConfigurationError{
			Skill:  def.Name,
			Reason: fmt.Sprintf("sub-pipeline nesting exceeds %d levels", maxExpansionDepth),
		}
	}
	for _, seen := range stack {
		if seen == def.Name {
			return &skillstypes.ConfigurationError{
				Skill:  def.Name,
				Reason: "cyclic sub-pipeline expansion: " + strings.Join(append(stack, def.Name), " -> "),
			}
		}
	}

	switch {
	case def.Template != "":
		result, err := expandTemplate(def, validated)
		if err != nil {
			return err
		}
		return st.apply(def.Name, result)

	case len(def.Pipeline) > 0:
		for _, sub := range def.Pipeline {
			inner, ok := c.reg.Get(sub.Skill)
			if !ok {
				return &skillstypes.ConfigurationError{
					Skill:  def.Name,
					Reason: fmt.Sprintf("sub-pipeline references unknown skill %q", sub.Skill),
				}
			}
			forwarded := forwardParams(sub.Params, validated)
			innerValidated, err := params.Validate(sub.Skill, forwarded, inner.Params)
			if err != nil {
				return errors.Wrapf(err, "expanding sub-pipeline %q", def.Name)
			}
			if err := c.expand(st, inner, innerValidated, append(stack, def.Name)); err != nil {
				return err
			}
		}
		return nil

	case def.Handler != nil:
		result, err := def.Handler(validated, st.pctx)
		if err != nil {
			return err
		}
		return st.apply(def.Name, result)

	default:
		return &skillstypes.ConfigurationError{
			Skill:  def.Name,
			Reason: "definition has no template, pipeline, or handler",
		}
	}
}

// forwardParams resolves "{name}" placeholders in a sub-pipeline step's
// parameter values against the outer step's validated parameters. A value
// that is exactly one placeholder forwards the typed outer value; partial
// placeholders substitute textually.
func forwardParams(declared map[string]any, outer skillstypes.Params) map[string]any {
	if declared == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(declared))
	for key, value := range declared {
		s, isString := value.(string)
		if !isString {
			out[key] = value
			continue
		}
		if name, ok := wholePlaceholder(s); ok {
			if v, has := outer[name]; has {
				out[key] = v
				continue
			}
		}
		for name, v := range outer {
			s = strings.ReplaceAll(s, "{"+name+"}", formatForwarded(v))
		}
		out[key] = s
	}
	return out
}

func wholePlaceholder(s string) (string, bool) {
	if len(s) > 2 && s[0] == '{' && s[len(s)-1] == '}' && !strings.ContainsAny(s[1:len(s)-1], "{}") {
		return s[1 : len(s)-1], true
	}
	return "", false
}

func formatForwarded(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return skillstypes.FormatNumber(v)
}
