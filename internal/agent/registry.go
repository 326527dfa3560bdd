package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	// MaxToolNameLength caps tool names; providers reject longer ones.
	MaxToolNameLength = 256

	// MaxToolArgsSize caps the serialised argument payload for a single call.
	MaxToolArgsSize = 10 * 1024 * 1024
)

// ConfirmationPolicy answers whether a tool needs user approval before it
// runs. The registry consults it on every lookup so an externally edited
// policy takes effect without restart. A nil policy means everything needs
// approval.
type ConfirmationPolicy interface {
	RequiresConfirmation(tool string) bool
}

// Registry is the process-wide tool catalogue. Registration happens during
// startup; lookups and dispatch dominate afterwards, hence the RWMutex.
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool
	validators map[string]*jsonschema.Schema
	policy     ConfirmationPolicy
	logger     *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithPolicy sets the confirmation policy source.
func WithPolicy(p ConfirmationPolicy) RegistryOption {
	return func(r *Registry) { r.policy = p }
}

// WithRegistryLogger overrides the default logger.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:      make(map[string]Tool),
		validators: make(map[string]*jsonschema.Schema),
		logger:     slog.Default().With("component", "tool-registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool to the catalogue, replacing any previous tool of the
// same name. The schema is compiled once here so dispatch-time validation is
// a pure lookup.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return errors.New("tool is nil")
	}
	name := tool.Name()
	if name == "" {
		return errors.New("tool name is empty")
	}
	if len(name) > MaxToolNameLength {
		return fmt.Errorf("tool name exceeds %d characters", MaxToolNameLength)
	}

	var validator *jsonschema.Schema
	if schema := tool.Schema(); len(schema) > 0 {
		compiled, err := jsonschema.CompileString(name+".json", string(schema))
		if err != nil {
			return fmt.Errorf("compile schema for %s: %w", name, err)
		}
		validator = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		r.logger.Warn("replacing registered tool", "tool", name)
	}
	r.tools[name] = tool
	r.validators[name] = validator
	return nil
}

// RegisterFunc registers an annotated handler with a separate argument
// schema, the second registration form.
func (r *Registry) RegisterFunc(name, description, category string, schema json.RawMessage, fn ToolHandler) error {
	return r.Register(&ToolFunc{
		ToolName:        name,
		ToolDescription: description,
		ToolCategory:    category,
		ToolSchema:      schema,
		Handler:         fn,
	})
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Tools returns the catalogue sorted by name, for deterministic schema
// export to providers.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// RequiresConfirmation reports whether the named tool needs user approval.
// Unknown tools report true; denying an unknown name is harmless and the
// dispatch path rejects it anyway.
func (r *Registry) RequiresConfirmation(name string) bool {
	r.mu.RLock()
	policy := r.policy
	r.mu.RUnlock()
	if policy == nil {
		return true
	}
	return policy.RequiresConfirmation(name)
}

// Execute validates args against the tool's schema and runs the handler.
// Every failure mode lands in the ToolResult error envelope: unknown names,
// oversized or invalid arguments, handler errors, and handler panics. The
// envelope is what the model sees; full detail goes to the log.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) *ToolResult {
	r.mu.RLock()
	tool, ok := r.tools[name]
	validator := r.validators[name]
	r.mu.RUnlock()

	if !ok {
		return ErrorResult("unknown tool %q", name)
	}

	if args == nil {
		args = map[string]any{}
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return ErrorResult("arguments are not serialisable: %v", err)
	}
	if len(payload) > MaxToolArgsSize {
		return ErrorResult("arguments exceed %d bytes", MaxToolArgsSize)
	}

	if validator != nil {
		// Validate expects values as decoded by encoding/json, so Go-native
		// argument maps are round-tripped to normalise number types.
		var doc any
		if err := json.Unmarshal(payload, &doc); err != nil {
			return ErrorResult("arguments are not valid JSON: %v", err)
		}
		if err := validator.Validate(doc); err != nil {
			return ErrorResult("invalid arguments: %s", validationMessage(err))
		}
	}

	return r.dispatch(ctx, tool, args)
}

// dispatch runs the handler with panic containment.
func (r *Registry) dispatch(ctx context.Context, tool Tool, args map[string]any) (result *ToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool panicked",
				"tool", tool.Name(),
				"panic", rec,
			)
			result = ErrorResult("tool %q failed", tool.Name())
		}
	}()

	result = tool.Execute(ctx, args)
	if result == nil {
		r.logger.Error("tool returned nil result", "tool", tool.Name())
		result = ErrorResult("tool %q failed", tool.Name())
	}
	if !result.OK() {
		r.logger.Warn("tool returned error", "tool", tool.Name(), "error", result.Err)
	}
	return result
}

// validationMessage flattens a jsonschema validation error to a single line
// naming the offending field.
func validationMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	loc := leaf.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("%s: %s", loc, leaf.Message)
}
