package agent

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaFor derives a tool's argument schema from its Go argument struct.
// Field names come from json tags; descriptions, defaults, and enums from
// jsonschema tags. The result is the flat object schema LLM providers expect,
// without $schema or $defs indirection.
func SchemaFor(v any) (json.RawMessage, error) {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	schema := r.Reflect(v)
	schema.Version = ""

	b, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %T: %w", v, err)
	}
	return b, nil
}

// MustSchemaFor is SchemaFor for registration-time use, where a broken
// argument struct is a programming error.
func MustSchemaFor(v any) json.RawMessage {
	schema, err := SchemaFor(v)
	if err != nil {
		panic(err)
	}
	return schema
}
