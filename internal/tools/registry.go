// Package tools exposes the fixed set of named tracker operations. Every
// invocation yields either a structured success payload or a structured
// error payload; nothing above this layer sees an error.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trackle-io/trackle-mcp/internal/api"
	"github.com/trackle-io/trackle-mcp/internal/identity"
)

// TicketKeyPattern is the format constraint for ticket identifiers: an
// uppercase 2-10 letter project prefix, a hyphen and the ticket number.
var TicketKeyPattern = regexp.MustCompile(`^[A-Z]{2,10}-\d+$`)

// Parameter JSON types.
const (
	TypeString  = "string"
	TypeBoolean = "boolean"
	TypeInteger = "integer"
)

// Param declares one tool parameter. Pattern and Enum are published verbatim
// in the tool's input schema, so clients see the same constraint the
// validator enforces.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Pattern     *regexp.Regexp
	Enum        []string
}

// Handler runs a tool against validated arguments.
type Handler func(ctx context.Context, args Args) (any, error)

// Tool is one registered operation.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler
}

// Definition is the wire shape of a tool for tools/list.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ContentItem is one block of tool output.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the uniform response envelope for a tool call.
type Result struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// Registry holds the registered tools. It is read-only after New.
type Registry struct {
	client   *api.Client
	resolver *identity.Resolver
	log      zerolog.Logger
	tools    []Tool
	byName   map[string]*Tool
}

func NewRegistry(client *api.Client, resolver *identity.Resolver, log zerolog.Logger) *Registry {
	r := &Registry{
		client:   client,
		resolver: resolver,
		log:      log,
		byName:   map[string]*Tool{},
	}
	r.tools = r.definitions()
	for i := range r.tools {
		r.byName[r.tools[i].Name] = &r.tools[i]
	}
	return r
}

// Definitions returns the published tool definitions in registration order.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.definition())
	}
	return defs
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	return r.tools
}

// Invoke validates the raw arguments and runs the named tool, returning the
// raw payload. Call wraps this into the uniform Result envelope; one-shot
// CLI commands use Invoke directly.
func (r *Registry) Invoke(ctx context.Context, name string, raw map[string]any) (any, error) {
	tool, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}

	args, err := validateArgs(tool.Params, raw)
	if err != nil {
		return nil, err
	}

	return tool.Handler(ctx, args)
}

// Call runs the named tool and always returns a Result, never an error.
func (r *Registry) Call(ctx context.Context, name string, raw map[string]any) Result {
	log := r.log.With().
		Str("call_id", uuid.NewString()).
		Str("tool", name).
		Logger()

	start := time.Now()
	payload, err := r.Invoke(ctx, name, raw)
	if err != nil {
		log.Warn().Dur("elapsed", time.Since(start)).Err(err).Msg("tool call failed")
		return ErrorResult(err)
	}

	log.Debug().Dur("elapsed", time.Since(start)).Msg("tool call completed")
	return successResult(payload)
}

func successResult(payload any) Result {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return ErrorResult(err)
	}
	return Result{
		Content: []ContentItem{{Type: "text", Text: string(encoded)}},
	}
}

// ErrorResult formats any error into a single-line user-visible payload:
// "Error [CODE]: message" for typed tracker errors, "Error: message" for
// everything else. No stack traces or internals are surfaced.
func ErrorResult(err error) Result {
	var apiErr *api.Error
	var text string
	if errors.As(err, &apiErr) {
		text = fmt.Sprintf("Error [%s]: %s", apiErr.Code, apiErr.Message)
	} else {
		text = fmt.Sprintf("Error: %s", err.Error())
	}
	return Result{
		Content: []ContentItem{{Type: "text", Text: text}},
		IsError: true,
	}
}

func (t Tool) definition() Definition {
	properties := map[string]any{}
	var required []string
	for _, p := range t.Params {
		schema := map[string]any{"type": p.Type}
		if p.Description != "" {
			schema["description"] = p.Description
		}
		if p.Pattern != nil {
			schema["pattern"] = p.Pattern.String()
		}
		if len(p.Enum) > 0 {
			schema["enum"] = p.Enum
		}
		properties[p.Name] = schema
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	return Definition{Name: t.Name, Description: t.Description, InputSchema: schema}
}
