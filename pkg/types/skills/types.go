// Package skills defines the shared types of the skill pipeline compiler:
// parameter specifications, skill definitions, the pipeline IR consumed from
// the generation layer, the per-step HandlerResult, and the compiled
// CommandDescriptor handed to an external process runner.
package skills

import (
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
)

// ParamType is the semantic type of a skill parameter.
type ParamType string

const (
	ParamInt    ParamType = "int"
	ParamFloat  ParamType = "float"
	ParamString ParamType = "string"
	ParamBool   ParamType = "bool"
	ParamEnum   ParamType = "enum"
	// ParamTime accepts seconds as a number or a "HH:MM:SS(.ms)" string and
	// normalizes to float seconds.
	ParamTime ParamType = "time"
)

// ParameterSpec describes one parameter of a skill. Specs are immutable once
// the owning definition is registered.
type ParameterSpec struct {
	Name        string    `json:"name" yaml:"name" mapstructure:"name"`
	Type        ParamType `json:"type" yaml:"type" mapstructure:"type"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty" mapstructure:"required"`
	Default     any       `json:"default,omitempty" yaml:"default,omitempty" mapstructure:"default"`
	Min         *float64  `json:"min,omitempty" yaml:"min,omitempty" mapstructure:"min"`
	Max         *float64  `json:"max,omitempty" yaml:"max,omitempty" mapstructure:"max"`
	Choices     []string  `json:"choices,omitempty" yaml:"choices,omitempty" mapstructure:"choices"`
	Aliases     []string  `json:"aliases,omitempty" yaml:"aliases,omitempty" mapstructure:"aliases"`
}

// StreamKind selects which simple chain a template skill contributes to.
type StreamKind string

const (
	StreamVideo StreamKind = "video"
	StreamAudio StreamKind = "audio"
)

// SubStep is one entry of a declarative sub-pipeline. Parameter values that
// are whole "{name}" placeholders are resolved against the outer step's
// validated parameters at expansion time.
type SubStep struct {
	Skill  string         `json:"skill" yaml:"skill" mapstructure:"skill"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty" mapstructure:"params"`
}

// HandlerFn is the contract for procedural skills: a pure function from
// validated parameters and the compile context to a structured result. The
// only permitted I/O is read-only existence checks on auxiliary files, and
// any such path must pass sanitization before it is embedded in filter text.
type HandlerFn func(params Params, pctx *PipelineContext) (*HandlerResult, error)

// SkillDefinition is a named editing operation. Exactly one of Template,
// Pipeline, or Handler must be set; the registry rejects anything else.
// Definitions are owned by the registry and immutable after registration.
type SkillDefinition struct {
	Name        string
	Category    string
	Description string
	Tags        []string
	Params      []ParameterSpec

	// Template is a "{param}"-substituted filter expression. When
	// OptionLevel is true it renders raw output flags instead.
	Template    string
	OptionLevel bool
	// Stream selects the chain a template contributes to. Defaults to video.
	Stream StreamKind

	// Pipeline expands to a recursive compile of the named inner skills.
	Pipeline []SubStep

	Handler HandlerFn
}

// TracingKVs returns tracing attributes for one invocation of the skill.
func (d *SkillDefinition) TracingKVs() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("skill", d.Name),
		attribute.String("category", d.Category),
	}
}

// PipelineStep is one entry of the externally produced pipeline IR.
type PipelineStep struct {
	Skill  string         `json:"skill"`
	Params map[string]any `json:"params"`
}

// MediaKind classifies an extra input path.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaImage MediaKind = "image"
)

// ExtraInput is an additional media input supplied alongside the primary.
type ExtraInput struct {
	Path string
	Kind MediaKind
}

// PipelineContext carries everything a compile request knows about its
// media. It lives for exactly one compile and is never shared.
type PipelineContext struct {
	InputPath  string
	OutputPath string
	Extras     []ExtraInput

	Duration float64
	FPS      float64
	Width    int
	Height   int
	HasAudio bool

	// TextPayloads are raw side-channel payloads, each either a small JSON
	// envelope or literal display text.
	TextPayloads []string

	reserved map[int]string // extra index -> reserving skill
}

// ReserveExtra claims the next unreserved extra input for the named skill so
// two multi-input skills in one pipeline cannot collide on the same extra.
// The returned index is the extra's position in Extras; its input stream
// index in the emitted command is index+1.
func (c *PipelineContext) ReserveExtra(skill string) (int, ExtraInput, error) {
	if c.reserved == nil {
		c.reserved = make(map[int]string)
	}
	for i, extra := range c.Extras {
		if _, taken := c.reserved[i]; !taken {
			c.reserved[i] = skill
			return i, extra, nil
		}
	}
	return 0, ExtraInput{}, &ValidationError{
		Skill:  skill,
		Param:  "extra_inputs",
		Reason: fmt.Sprintf("requires an extra input but all %d are already in use; supply another input path", len(c.Extras)),
	}
}

// ReserveAllExtras claims every remaining extra input, in order. Used by
// skills like concat and grid that consume the whole extra-input list.
func (c *PipelineContext) ReserveAllExtras(skill string) ([]int, []ExtraInput, error) {
	if c.reserved == nil {
		c.reserved = make(map[int]string)
	}
	var idx []int
	var extras []ExtraInput
	for i, extra := range c.Extras {
		if _, taken := c.reserved[i]; taken {
			continue
		}
		c.reserved[i] = skill
		idx = append(idx, i)
		extras = append(extras, extra)
	}
	if len(idx) == 0 {
		return nil, nil, &ValidationError{
			Skill:  skill,
			Param:  "extra_inputs",
			Reason: "requires at least one unreserved extra input",
		}
	}
	return idx, extras, nil
}

// ReservedBy reports which skill, if any, holds the extra at index i.
func (c *PipelineContext) ReservedBy(i int) (string, bool) {
	s, ok := c.reserved[i]
	return s, ok
}

// Pipeline is one edit request: the ordered steps plus their context.
type Pipeline struct {
	Steps   []PipelineStep
	Context *PipelineContext
}

// Flag is a single command-line flag with an optional value token.
type Flag struct {
	Name  string
	Value string
}

// Tokens renders the flag as argv tokens.
func (f Flag) Tokens() []string {
	if f.Value == "" {
		return []string{f.Name}
	}
	return []string{f.Name, f.Value}
}

// GraphNode is one statement of a filter-graph fragment. Input and output
// labels are handler-local; the composer re-namespaces them before splicing.
// Two labels are special and never namespaced: "vin" and "ain" refer to the
// pipeline's current main video and audio streams. Labels containing ':'
// (such as "1:v") are stream specifiers and pass through untouched.
type GraphNode struct {
	Inputs  []string
	Filter  string
	Outputs []string
}

// GraphFragment is a self-scoped set of graph nodes emitted by one step.
// VideoOut/AudioOut name the fragment's label that becomes the pipeline's
// new main video/audio stream; empty means the stream is unchanged.
type GraphFragment struct {
	Nodes    []GraphNode
	VideoOut string
	AudioOut string
}

// HandlerResult is the per-step intermediate representation. A step
// contributes to the simple chains or supplies a graph fragment, never both.
type HandlerResult struct {
	VideoFilters []string
	AudioFilters []string
	InputFlags   []Flag
	OutputFlags  []Flag
	Fragment     *GraphFragment
	// StreamMap, when non-empty, replaces the default stream mapping
	// entirely. Entries are -map values such as "0:v" or "1:a".
	StreamMap []string
}

// CommandDescriptor is the compiled artifact: everything the emitter needs
// to render the final argument vector, in order. It is handed to an
// out-of-scope process runner and discarded.
type CommandDescriptor struct {
	GlobalFlags []Flag
	InputFlags  []Flag // positioned before the primary input
	Inputs      []string
	FilterGraph string // -filter_complex value; mutually exclusive with the chains
	VideoChain  string // -vf value
	AudioChain  string // -af value
	OutputFlags []Flag
	StreamMap   []string
	OutputPath  string
}

// FormatNumber renders a numeric parameter value the way filter syntax
// expects: minimal decimal representation ("5", "0.2").
func FormatNumber(v any) string {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// FormatSeconds renders a duration in seconds with at least one decimal
// place ("25.0", "1.5"), matching ffmpeg's conventional -t formatting.
func FormatSeconds(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	for _, r := range s {
		if r == '.' {
			return s
		}
	}
	return s + ".0"
}
