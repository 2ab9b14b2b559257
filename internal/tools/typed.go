package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Typed adapts a function over a Go argument struct into a Tool. The
// parameter schema is reflected from A once at construction and every call
// is validated against it before A is decoded.
type Typed[A any] struct {
	name        Name
	description string
	params      map[string]any
	schema      *jsonschema.Schema
	fn          func(ctx context.Context, args A) (any, error)
}

var _ Tool = (*Typed[struct{}])(nil)

// NewTyped builds a Typed tool.
//
// Field tags follow invopop/jsonschema: `json` for names (omitempty makes a
// field optional), `jsonschema:"enum=a,enum=b"` and `jsonschema_description`.
func NewTyped[A any](name Name, description string, fn func(context.Context, A) (any, error)) (*Typed[A], error) {
	params, err := ReflectSchema[A]()
	if err != nil {
		return nil, fmt.Errorf("reflect schema for %s: %w", name, err)
	}
	compiled, err := CompileSchema(string(name)+".json", params)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", name, err)
	}
	return &Typed[A]{
		name:        name,
		description: description,
		params:      params,
		schema:      compiled,
		fn:          fn,
	}, nil
}

// MustTyped is NewTyped that panics; intended for package-level tool tables.
func MustTyped[A any](name Name, description string, fn func(context.Context, A) (any, error)) *Typed[A] {
	t, err := NewTyped(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Typed[A]) Name() Name                 { return t.name }
func (t *Typed[A]) Description() string        { return t.description }
func (t *Typed[A]) Parameters() map[string]any { return t.params }

// Execute validates args, decodes them into A and calls the wrapped function.
func (t *Typed[A]) Execute(ctx context.Context, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}
	if err := t.schema.Validate(args); err != nil {
		return nil, NewInvalidArgsError(t.name.String(), "schema validation failed", err)
	}

	var decoded A
	data, err := json.Marshal(args)
	if err != nil {
		return nil, NewInvalidArgsError(t.name.String(), "encode arguments", err)
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, NewInvalidArgsError(t.name.String(), "decode arguments", err)
	}
	return t.fn(ctx, decoded)
}

// ReflectSchema derives a flat object schema for A.
func ReflectSchema[A any]() (map[string]any, error) {
	r := &invopop.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(new(A))
	s.Version = ""

	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CompileSchema compiles a schema document held as a map.
func CompileSchema(id string, doc map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return CompileSchemaJSON(id, data)
}

// CompileSchemaJSON compiles a raw JSON schema document.
func CompileSchemaJSON(id string, raw []byte) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(id, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(id)
}
