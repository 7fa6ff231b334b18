// Package registry holds the skill catalog: named skill definitions with
// secondary category and tag indices, substring search over a precomputed
// blob, and memoized catalog/schema renderings invalidated on registration.
package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	skillstypes "github.com/kinocut/kinocut/pkg/types/skills"
	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Registry is process-wide shared state: built during an explicit loading
// phase, read-mostly afterward. All methods are safe for concurrent use so a
// hot reload observes either the pre- or post-update catalog, never a
// partial one.
type Registry struct {
	mu         sync.RWMutex
	skills     map[string]*skillstypes.SkillDefinition
	byCategory map[string][]string
	byTag      map[string][]string
	searchBlob map[string]string

	// pack bookkeeping: which names came from skill packs, and the builtin
	// definition a pack skill displaced, if any, so removing the pack file
	// restores it.
	packNames map[string]bool
	shadowed  map[string]*skillstypes.SkillDefinition

	catalog      string
	catalogValid bool
	schemaJSON   []byte
	schemaValid  bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		skills:     make(map[string]*skillstypes.SkillDefinition),
		byCategory: make(map[string][]string),
		byTag:      make(map[string][]string),
		searchBlob: make(map[string]string),
		packNames:  make(map[string]bool),
		shadowed:   make(map[string]*skillstypes.SkillDefinition),
	}
}

// Register inserts or overwrites a definition by name (last writer wins),
// refreshes the secondary indices and search blob, and invalidates the
// memoized renderings. Renderings are never invalidated on read.
func (r *Registry) Register(def *skillstypes.SkillDefinition) error {
	return r.register(def, false)
}

func (r *Registry) register(def *skillstypes.SkillDefinition, fromPack bool) error {
	if err := checkDefinition(def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.skills[def.Name]; ok {
		if fromPack && !r.packNames[def.Name] {
			r.shadowed[def.Name] = old
		}
		r.dropFromIndices(old)
	}
	r.insertLocked(def)
	if fromPack {
		r.packNames[def.Name] = true
	}
	return nil
}

func (r *Registry) insertLocked(def *skillstypes.SkillDefinition) {
	r.skills[def.Name] = def
	r.byCategory[def.Category] = append(r.byCategory[def.Category], def.Name)
	for _, tag := range def.Tags {
		r.byTag[tag] = append(r.byTag[tag], def.Name)
	}

	// Computed once here, not per query.
	blob := strings.ToLower(def.Name + " " + def.Description + " " + strings.Join(def.Tags, " "))
	r.searchBlob[def.Name] = blob

	r.catalogValid = false
	r.schemaValid = false
}

// prunePacks drops pack skills absent from the latest load, so a deleted or
// renamed pack file removes its skills from the catalog. A builtin a removed
// pack had shadowed is restored.
func (r *Registry) prunePacks(current map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name := range r.packNames {
		if current[name] {
			continue
		}
		if def, ok := r.skills[name]; ok {
			r.dropFromIndices(def)
			delete(r.skills, name)
			delete(r.searchBlob, name)
		}
		delete(r.packNames, name)
		if prior, ok := r.shadowed[name]; ok {
			r.insertLocked(prior)
			delete(r.shadowed, name)
		}
		r.catalogValid = false
		r.schemaValid = false
	}
}

func checkDefinition(def *skillstypes.SkillDefinition) error {
	if def == nil || def.Name == "" {
		return &skillstypes.ConfigurationError{Reason: "skill definition has no name"}
	}
	strategies := 0
	if def.Template != "" {
		strategies++
	}
	if len(def.Pipeline) > 0 {
		strategies++
	}
	if def.Handler != nil {
		strategies++
	}
	if strategies != 1 {
		return &skillstypes.ConfigurationError{
			Skill:  def.Name,
			Reason: fmt.Sprintf("exactly one of template, pipeline, or handler must be set, got %d", strategies),
		}
	}
	seen := make(map[string]bool, len(def.Params))
	for _, spec := range def.Params {
		if spec.Name == "" {
			return &skillstypes.ConfigurationError{Skill: def.Name, Reason: "parameter with empty name"}
		}
		if seen[spec.Name] {
			return &skillstypes.ConfigurationError{Skill: def.Name, Reason: fmt.Sprintf("duplicate parameter %q", spec.Name)}
		}
		seen[spec.Name] = true
		if spec.Type == skillstypes.ParamEnum && len(spec.Choices) == 0 {
			return &skillstypes.ConfigurationError{Skill: def.Name, Reason: fmt.Sprintf("enum parameter %q has no choices", spec.Name)}
		}
	}
	return nil
}

func (r *Registry) dropFromIndices(def *skillstypes.SkillDefinition) {
	r.byCategory[def.Category] = removeString(r.byCategory[def.Category], def.Name)
	for _, tag := range def.Tags {
		r.byTag[tag] = removeString(r.byTag[tag], def.Name)
	}
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

// Get returns the definition for name.
func (r *Registry) Get(name string) (*skillstypes.SkillDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.skills[name]
	return def, ok
}

// Names returns all registered skill names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.skills))
	for name := range r.skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByCategory returns the names registered under a category, sorted.
func (r *Registry) ByCategory(category string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := append([]string(nil), r.byCategory[category]...)
	sort.Strings(names)
	return names
}

// ByTag returns the names carrying a tag, sorted.
func (r *Registry) ByTag(tag string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := append([]string(nil), r.byTag[tag]...)
	sort.Strings(names)
	return names
}

// Search returns definitions whose name, description, or tags contain the
// query, case-insensitively, sorted by name.
func (r *Registry) Search(query string) []*skillstypes.SkillDefinition {
	lowered := strings.ToLower(query)
	r.mu.RLock()
	defer r.mu.RUnlock()

	var hits []*skillstypes.SkillDefinition
	for name, blob := range r.searchBlob {
		if strings.Contains(blob, lowered) {
			hits = append(hits, r.skills[name])
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Name < hits[j].Name })
	return hits
}

// CatalogText renders a human-readable skill catalog grouped by category.
// The rendering is memoized and only recomputed after the next Register.
func (r *Registry) CatalogText() string {
	r.mu.RLock()
	if r.catalogValid {
		defer r.mu.RUnlock()
		return r.catalog
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.catalogValid {
		return r.catalog
	}
	r.catalog = r.renderCatalogLocked()
	r.catalogValid = true
	return r.catalog
}

func (r *Registry) renderCatalogLocked() string {
	categories := make([]string, 0, len(r.byCategory))
	for cat, names := range r.byCategory {
		if len(names) > 0 {
			categories = append(categories, cat)
		}
	}
	sort.Strings(categories)

	var b strings.Builder
	for _, cat := range categories {
		fmt.Fprintf(&b, "## %s\n", cat)
		names := append([]string(nil), r.byCategory[cat]...)
		sort.Strings(names)
		for _, name := range names {
			def := r.skills[name]
			fmt.Fprintf(&b, "- %s: %s\n", def.Name, def.Description)
			for _, p := range def.Params {
				fmt.Fprintf(&b, "    %s (%s%s)", p.Name, p.Type, requiredSuffix(p))
				if len(p.Choices) > 0 {
					fmt.Fprintf(&b, " one of: %s", strings.Join(p.Choices, "|"))
				}
				if p.Description != "" {
					fmt.Fprintf(&b, " - %s", p.Description)
				}
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func requiredSuffix(p skillstypes.ParameterSpec) string {
	if p.Required {
		return ", required"
	}
	return ""
}

// SchemaJSON renders a JSON schema describing the pipeline IR this registry
// accepts: an array of step objects, one permitted shape per skill. Memoized
// like CatalogText.
func (r *Registry) SchemaJSON() ([]byte, error) {
	r.mu.RLock()
	if r.schemaValid {
		defer r.mu.RUnlock()
		return r.schemaJSON, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.schemaValid {
		return r.schemaJSON, nil
	}

	data, err := json.MarshalIndent(r.buildSchemaLocked(), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshaling pipeline schema")
	}
	r.schemaJSON = data
	r.schemaValid = true
	return r.schemaJSON, nil
}

func (r *Registry) buildSchemaLocked() *jsonschema.Schema {
	names := make([]string, 0, len(r.skills))
	for name := range r.skills {
		names = append(names, name)
	}
	sort.Strings(names)

	var stepShapes []*jsonschema.Schema
	for _, name := range names {
		stepShapes = append(stepShapes, stepSchema(r.skills[name]))
	}

	return &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "kinocut pipeline",
		Description: "Ordered list of skill invocations forming one edit request",
		Type:        "array",
		Items:       &jsonschema.Schema{OneOf: stepShapes},
	}
}

func stepSchema(def *skillstypes.SkillDefinition) *jsonschema.Schema {
	paramProps := orderedmap.New[string, *jsonschema.Schema]()
	var required []string
	for _, p := range def.Params {
		paramProps.Set(p.Name, paramSchema(p))
		if p.Required && p.Default == nil {
			required = append(required, p.Name)
		}
	}

	props := orderedmap.New[string, *jsonschema.Schema]()
	props.Set("skill", &jsonschema.Schema{Type: "string", Enum: []any{def.Name}})
	props.Set("params", &jsonschema.Schema{
		Type:                 "object",
		Properties:           paramProps,
		Required:             required,
		AdditionalProperties: jsonschema.FalseSchema,
	})

	return &jsonschema.Schema{
		Type:                 "object",
		Description:          def.Description,
		Properties:           props,
		Required:             []string{"skill"},
		AdditionalProperties: jsonschema.FalseSchema,
	}
}

func paramSchema(p skillstypes.ParameterSpec) *jsonschema.Schema {
	s := &jsonschema.Schema{Description: p.Description}
	switch p.Type {
	case skillstypes.ParamInt:
		s.Type = "integer"
	case skillstypes.ParamFloat, skillstypes.ParamTime:
		s.Type = "number"
	case skillstypes.ParamBool:
		s.Type = "boolean"
	case skillstypes.ParamEnum:
		s.Type = "string"
		for _, c := range p.Choices {
			s.Enum = append(s.Enum, c)
		}
	default:
		s.Type = "string"
	}
	if p.Min != nil {
		s.Minimum = json.Number(skillstypes.FormatNumber(*p.Min))
	}
	if p.Max != nil {
		s.Maximum = json.Number(skillstypes.FormatNumber(*p.Max))
	}
	if p.Default != nil {
		s.Default = p.Default
	}
	return s
}

// CheckCycles verifies that no sub-pipeline definition transitively expands
// its own name. It is called once after a loading phase, before the first
// compile that would expand the cycle.
func (r *Registry) CheckCycles() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state := make(map[string]int) // 0 unvisited, 1 in progress, 2 done
	var visit func(name string, trail []string) error
	visit = func(name string, trail []string) error {
		switch state[name] {
		case 1:
			return &skillstypes.ConfigurationError{
				Skill:  name,
				Reason: "cyclic sub-pipeline expansion: " + strings.Join(append(trail, name), " -> "),
			}
		case 2:
			return nil
		}
		state[name] = 1
		if def, ok := r.skills[name]; ok {
			for _, sub := range def.Pipeline {
				if err := visit(sub.Skill, append(trail, name)); err != nil {
					return err
				}
			}
		}
		state[name] = 2
		return nil
	}

	for name := range r.skills {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}
