package tools

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/sandevgo/lilybot/internal/core"
)

// compileSchema resolves a tool's argument schema. Tool arguments are always
// a JSON object, and every required key must be declared as a property.
func compileSchema(raw json.RawMessage) (*jsonschema.Resolved, error) {
	s := &jsonschema.Schema{Type: "object"}
	if len(raw) > 0 {
		s = &jsonschema.Schema{}
		if err := json.Unmarshal(raw, s); err != nil {
			return nil, fmt.Errorf("invalid schema: %w", err)
		}
	}
	if s.Type != "" && s.Type != "object" {
		return nil, fmt.Errorf("schema type must be object, got %q", s.Type)
	}
	for _, req := range s.Required {
		if _, ok := s.Properties[req]; !ok {
			return nil, fmt.Errorf("required property %q is not declared", req)
		}
	}

	// Remote servers announce assorted drafts; the keywords tools use are shared.
	s.Schema = ""
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return resolved, nil
}

// validateArgs checks args against the tool's resolved schema. Unknown extra
// properties are tolerated unless the schema forbids them.
func validateArgs(name string, schema *jsonschema.Resolved, args json.RawMessage) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	var obj map[string]any
	if err := json.Unmarshal(args, &obj); err != nil || obj == nil {
		return fmt.Errorf("%w: arguments for %s must be a JSON object", core.ErrInvalidArguments, name)
	}
	if schema == nil {
		return nil
	}
	if err := schema.Validate(obj); err != nil {
		return fmt.Errorf("%w: %s: %w", core.ErrInvalidArguments, name, err)
	}
	return nil
}
