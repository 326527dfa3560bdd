package toolconv

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"google.golang.org/genai"

	"github.com/haasonsaas/steward/internal/agent"
)

type stubTool struct {
	name        string
	description string
	schema      json.RawMessage
}

func (s *stubTool) Name() string            { return s.name }
func (s *stubTool) Description() string     { return s.description }
func (s *stubTool) Category() string        { return "test" }
func (s *stubTool) Schema() json.RawMessage { return s.schema }
func (s *stubTool) Execute(ctx context.Context, args map[string]any) *agent.ToolResult {
	return agent.DataResult(nil)
}

var taskSchema = json.RawMessage(`{
	"type": "object",
	"description": "Schedule a task",
	"properties": {
		"name": {"type": "string", "description": "Task name"},
		"kind": {"type": "string", "enum": ["one_off", "recurring"]},
		"tags": {"type": "array", "items": {"type": "string"}}
	},
	"required": ["name", "kind"]
}`)

func TestToGeminiSchema(t *testing.T) {
	var schemaMap map[string]any
	if err := json.Unmarshal(taskSchema, &schemaMap); err != nil {
		t.Fatal(err)
	}

	schema := ToGeminiSchema(schemaMap)
	if schema.Type != genai.TypeObject {
		t.Errorf("Type = %v, want OBJECT", schema.Type)
	}
	if schema.Description != "Schedule a task" {
		t.Errorf("Description = %q", schema.Description)
	}
	if len(schema.Required) != 2 {
		t.Errorf("Required = %v", schema.Required)
	}

	name := schema.Properties["name"]
	if name == nil || name.Type != genai.TypeString {
		t.Fatalf("name property = %+v", name)
	}
	kind := schema.Properties["kind"]
	if kind == nil || len(kind.Enum) != 2 {
		t.Fatalf("kind enum = %+v", kind)
	}
	tags := schema.Properties["tags"]
	if tags == nil || tags.Items == nil || tags.Items.Type != genai.TypeString {
		t.Fatalf("array items not converted: %+v", tags)
	}

	if ToGeminiSchema(nil) != nil {
		t.Error("nil schema map should convert to nil")
	}
}

func TestToGeminiToolsSkipsUnparseable(t *testing.T) {
	tools := []agent.Tool{
		&stubTool{name: "good", description: "works", schema: taskSchema},
		&stubTool{name: "bad", schema: json.RawMessage(`{not json`)},
	}

	converted := ToGeminiTools(tools)
	if len(converted) != 1 {
		t.Fatalf("tool groups = %d, want 1", len(converted))
	}
	decls := converted[0].FunctionDeclarations
	if len(decls) != 1 || decls[0].Name != "good" {
		t.Fatalf("declarations = %+v", decls)
	}

	if ToGeminiTools(nil) != nil {
		t.Error("no tools should convert to nil")
	}
}

func TestToOpenAITools(t *testing.T) {
	tools := []agent.Tool{
		&stubTool{name: "schedule_task", description: "Schedule a task", schema: taskSchema},
	}

	converted := ToOpenAITools(tools)
	if len(converted) != 1 {
		t.Fatalf("tools = %d", len(converted))
	}
	fn := converted[0].Function
	if fn.Name != "schedule_task" || fn.Description != "Schedule a task" {
		t.Errorf("function = %+v", fn)
	}
	params, ok := fn.Parameters.(map[string]any)
	if !ok {
		t.Fatalf("parameters type %T", fn.Parameters)
	}
	if params["type"] != "object" {
		t.Errorf("parameters = %v", params)
	}
}

func TestToBedrockTools(t *testing.T) {
	tools := []agent.Tool{
		&stubTool{name: "schedule_task", description: "Schedule a task", schema: taskSchema},
		&stubTool{name: "broken", description: "bad schema", schema: json.RawMessage(`{not json`)},
	}

	config := ToBedrockTools(tools)
	if len(config.Tools) != 2 {
		t.Fatalf("tools = %d", len(config.Tools))
	}
	spec, ok := config.Tools[0].(*types.ToolMemberToolSpec)
	if !ok {
		t.Fatalf("tool member type %T", config.Tools[0])
	}
	if aws.ToString(spec.Value.Name) != "schedule_task" {
		t.Errorf("name = %q", aws.ToString(spec.Value.Name))
	}
	if spec.Value.InputSchema == nil {
		t.Error("input schema missing")
	}

	// A broken schema falls back to an empty object schema rather than
	// dropping the tool.
	broken := config.Tools[1].(*types.ToolMemberToolSpec)
	if broken.Value.InputSchema == nil {
		t.Error("fallback schema missing for unparseable input")
	}
}
