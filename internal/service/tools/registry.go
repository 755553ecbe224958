package tools

import (
	"fmt"
	"encoding/json"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/sandevgo/lilybot/internal/core"
)

// Registry is the read-only tool catalog, fixed after startup.
type Registry struct {
	defs    map[string]core.ToolDefinition
	schemas map[string]*jsonschema.Resolved
	order   []string
}

func NewRegistry(defs ...core.ToolDefinition) (*Registry, error) {
	r := &Registry{
		defs:    make(map[string]core.ToolDefinition, len(defs)),
		schemas: make(map[string]*jsonschema.Resolved, len(defs)),
	}
	for _, d := range defs {
		if d.Name == "" {
			return nil, fmt.Errorf("tool definition without a name")
		}
		if !d.Kind.Valid() {
			return nil, fmt.Errorf("tool %s: unknown kind %q", d.Name, d.Kind)
		}
		if _, dup := r.defs[d.Name]; dup {
			return nil, fmt.Errorf("tool %s registered twice", d.Name)
		}
		schema, err := compileSchema(d.Schema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", d.Name, err)
		}
		r.defs[d.Name] = d
		r.schemas[d.Name] = schema
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// Validate checks args for the named tool against its declared schema.
func (r *Registry) Validate(name string, args json.RawMessage) error {
	if _, ok := r.defs[name]; !ok {
		return fmt.Errorf("%w: %s", core.ErrUnknownTool, name)
	}
	return validateArgs(name, r.schemas[name], args)
}

func (r *Registry) Find(name string) (core.ToolDefinition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Definitions returns the catalog in registration order.
func (r *Registry) Definitions() []core.ToolDefinition {
	out := make([]core.ToolDefinition, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.defs[n])
	}
	return out
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Kinds lists every handler kind the catalog needs, sorted.
func (r *Registry) Kinds() []core.ToolKind {
	seen := make(map[core.ToolKind]bool)
	var kinds []core.ToolKind
	for _, d := range r.defs {
		if !seen[d.Kind] {
			seen[d.Kind] = true
			kinds = append(kinds, d.Kind)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Subset returns the definitions named in allow, in catalog order, minus
// those in exclude. A nil allow means the whole catalog. Names that are not
// in the catalog are an error.
func (r *Registry) Subset(allow, exclude []string) ([]core.ToolDefinition, error) {
	allowed := make(map[string]bool, len(allow))
	for _, n := range allow {
		if _, ok := r.defs[n]; !ok {
			return nil, fmt.Errorf("%w: %s", core.ErrUnknownTool, n)
		}
		allowed[n] = true
	}
	excluded := make(map[string]bool, len(exclude))
	for _, n := range exclude {
		excluded[n] = true
	}

	var out []core.ToolDefinition
	for _, n := range r.order {
		if allow != nil && !allowed[n] {
			continue
		}
		if excluded[n] {
			continue
		}
		out = append(out, r.defs[n])
	}
	return out, nil
}
