package tools

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	santhosh "github.com/santhosh-tekuri/jsonschema/v5"
)

var reflector = &jsonschema.Reflector{
	Anonymous:      true,
	DoNotReference: true,
	ExpandedStruct: true,
}

// SchemaFor reflects the JSON Schema of an argument struct, in the plain
// object form model providers accept for tool parameters.
func SchemaFor(args any) json.RawMessage {
	s := reflector.Reflect(args)
	s.Version = ""
	s.ID = ""
	data, err := json.Marshal(s)
	if err != nil {
		// Argument structs are fixed at compile time.
		panic(err)
	}
	return data
}

var compiled sync.Map

// validateArgs checks raw arguments against schema. Compiled schemas are
// cached by their text.
func validateArgs(schema, args json.RawMessage) error {
	key := string(schema)
	var s *santhosh.Schema
	if cached, ok := compiled.Load(key); ok {
		s = cached.(*santhosh.Schema)
	} else {
		c, err := santhosh.CompileString("tool.schema.json", key)
		if err != nil {
			return err
		}
		compiled.Store(key, c)
		s = c
	}

	var decoded any
	if len(args) == 0 {
		decoded = map[string]any{}
	} else if err := json.Unmarshal(args, &decoded); err != nil {
		return err
	}
	return s.Validate(decoded)
}

// SchemaProperties splits a JSON Schema object into its properties and
// required list, the shape provider SDKs ask for.
func SchemaProperties(schema json.RawMessage) (map[string]any, []string) {
	var s struct {
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	if err := json.Unmarshal(schema, &s); err != nil || s.Properties == nil {
		return map[string]any{}, nil
	}
	return s.Properties, s.Required
}
