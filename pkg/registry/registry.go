// Package registry holds the static, ordered definition of the onboarding
// protocol (the "Step Registry").
//
// A Registry is loaded once at process start and is immutable afterwards, so
// it is safe for unsynchronized concurrent reads. Reordering or adding steps
// is a data change to the YAML definition, not a code change.
package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	"github.com/aretw0/onramp/pkg/domain"
	"gopkg.in/yaml.v3"
)

//go:embed protocol.yaml
var defaultProtocol []byte

// ErrInvalidProtocol is returned when a protocol definition fails validation.
var ErrInvalidProtocol = errors.New("invalid protocol definition")

type protocolFile struct {
	Steps []domain.StepDefinition `yaml:"steps"`
}

// Registry is the ordered set of protocol steps.
type Registry struct {
	steps     []domain.StepDefinition
	index     map[string]int
	templates map[string]*template.Template
}

// Default returns the embedded protocol.
func Default() *Registry {
	r, err := Load(defaultProtocol)
	if err != nil {
		panic(fmt.Sprintf("embedded protocol is invalid: %v", err))
	}
	return r
}

// LoadFile reads a YAML protocol definition from disk.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read protocol file: %w", err)
	}
	return Load(data)
}

// Load parses and validates a YAML protocol definition.
func Load(data []byte) (*Registry, error) {
	var file protocolFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProtocol, err)
	}
	return New(file.Steps...)
}

// New builds a registry from step definitions. Steps without an explicit
// Order are ordered by their position in the argument list.
func New(steps ...domain.StepDefinition) (*Registry, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: no steps defined", ErrInvalidProtocol)
	}

	ordered := make([]domain.StepDefinition, len(steps))
	copy(ordered, steps)
	for i := range ordered {
		if ordered[i].Order == 0 {
			ordered[i].Order = i + 1
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Order < ordered[j].Order
	})

	r := &Registry{
		steps:     ordered,
		index:     make(map[string]int, len(ordered)),
		templates: make(map[string]*template.Template, len(ordered)),
	}

	for i, step := range ordered {
		if step.ID == "" {
			return nil, fmt.Errorf("%w: step at position %d has no id", ErrInvalidProtocol, i+1)
		}
		if step.ID != strings.ToLower(step.ID) || strings.ContainsAny(step.ID, " \t\n/") {
			return nil, fmt.Errorf("%w: step id %q must be lower case without spaces or slashes", ErrInvalidProtocol, step.ID)
		}
		if step.ID == domain.CommandNext {
			return nil, fmt.Errorf("%w: %q is reserved", ErrInvalidProtocol, step.ID)
		}
		if _, dup := r.index[step.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate step id %q", ErrInvalidProtocol, step.ID)
		}
		if i > 0 && ordered[i-1].Order == step.Order {
			return nil, fmt.Errorf("%w: steps %q and %q share order %d", ErrInvalidProtocol, ordered[i-1].ID, step.ID, step.Order)
		}
		if step.RequiresPriorStep != "" {
			// Only earlier steps can be prerequisites.
			if _, ok := r.index[step.RequiresPriorStep]; !ok {
				return nil, fmt.Errorf("%w: step %q requires %q, which is not an earlier step", ErrInvalidProtocol, step.ID, step.RequiresPriorStep)
			}
		}

		tmpl, err := template.New(step.ID).Option("missingkey=zero").Parse(step.NarrativeTemplate)
		if err != nil {
			return nil, fmt.Errorf("%w: step %q narrative: %v", ErrInvalidProtocol, step.ID, err)
		}

		r.index[step.ID] = i
		r.templates[step.ID] = tmpl
	}

	return r, nil
}

// StepsInOrder returns a copy of the steps in protocol order.
func (r *Registry) StepsInOrder() []domain.StepDefinition {
	out := make([]domain.StepDefinition, len(r.steps))
	copy(out, r.steps)
	return out
}

// Lookup returns the step with the given id.
func (r *Registry) Lookup(id string) (domain.StepDefinition, error) {
	i, ok := r.index[id]
	if !ok {
		return domain.StepDefinition{}, &domain.UnknownStepError{StepID: id}
	}
	return r.steps[i], nil
}

// First returns the initial step.
func (r *Registry) First() domain.StepDefinition {
	return r.steps[0]
}

// Last returns the final step.
func (r *Registry) Last() domain.StepDefinition {
	return r.steps[len(r.steps)-1]
}

// IsLast reports whether id is the final step.
func (r *Registry) IsLast(id string) bool {
	return r.Last().ID == id
}

// Next returns the step following id in protocol order.
func (r *Registry) Next(id string) (domain.StepDefinition, bool) {
	i, ok := r.index[id]
	if !ok || i+1 >= len(r.steps) {
		return domain.StepDefinition{}, false
	}
	return r.steps[i+1], true
}

// Position returns the zero-based position of id, or -1 if it is unknown.
func (r *Registry) Position(id string) int {
	i, ok := r.index[id]
	if !ok {
		return -1
	}
	return i
}

// Template returns the parsed narrative template of a step.
func (r *Registry) Template(id string) (*template.Template, bool) {
	t, ok := r.templates[id]
	return t, ok
}

// Len returns the number of steps.
func (r *Registry) Len() int {
	return len(r.steps)
}
