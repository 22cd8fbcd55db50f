package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// Definition describes a single callable tool: its name, the description
// shown to the model, a JSON schema for its arguments, and the handler that
// executes it.
type Definition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`

	handler   func(ctx context.Context, args json.RawMessage) (any, error)
	validator *gojsonschema.Schema
}

// NewDefinition builds a Definition from a typed handler. The argument
// schema is reflected from In; optional fields use pointer types with an
// omitempty json tag.
func NewDefinition[In any](name, description string, fn func(ctx context.Context, in In) (any, error)) (Definition, error) {
	if name == "" {
		return Definition{}, errors.New("tool name cannot be empty")
	}

	reflector := jsonschema.Reflector{
		// Expand definitions inline instead of using $refs, and skip the
		// top-level wrapper so the schema is the bare object the chat API
		// expects.
		DoNotReference: true,
		ExpandedStruct: true,
	}
	var zero In
	schema := reflector.Reflect(&zero)
	if schema.Type == "" && schema.Ref == "" {
		schema.Type = "object"
	}
	// The model regularly invents extra argument keys; tolerate them and let
	// the typed decode drop them.
	schema.AdditionalProperties = nil
	// Drop the 2020-12 $schema marker: the validator only speaks the older
	// drafts and the chat API ignores it anyway.
	schema.Version = ""

	raw, err := schema.MarshalJSON()
	if err != nil {
		return Definition{}, errors.Wrapf(err, "marshal schema for tool %s", name)
	}
	validator, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return Definition{}, errors.Wrapf(err, "compile schema for tool %s", name)
	}

	handler := func(ctx context.Context, args json.RawMessage) (any, error) {
		var in In
		if len(args) > 0 {
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, NewToolError("invalid arguments: %s", err)
			}
		}
		return fn(ctx, in)
	}

	return Definition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		handler:     handler,
		validator:   validator,
	}, nil
}

// MustDefinition panics on construction errors; tool sets are wired at
// startup, where a bad definition is a programming error.
func MustDefinition(def Definition, err error) Definition {
	if err != nil {
		panic(err)
	}
	return def
}

// Call validates args against the declared schema and runs the handler.
// Schema violations come back as user-facing tool errors so the model can
// correct itself.
func (d *Definition) Call(ctx context.Context, args json.RawMessage) (any, error) {
	if d.handler == nil {
		return nil, errors.Errorf("tool %s has no handler", d.Name)
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	if d.validator != nil {
		result, err := d.validator.Validate(gojsonschema.NewBytesLoader(args))
		if err != nil {
			return nil, NewToolError("invalid arguments: %s", err)
		}
		if !result.Valid() {
			descs := make([]string, 0, len(result.Errors()))
			for _, e := range result.Errors() {
				descs = append(descs, e.String())
			}
			return nil, NewToolError("invalid arguments: %s", strings.Join(descs, "; "))
		}
	}

	return d.handler(ctx, args)
}
