package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/trackle-io/trackle-mcp/internal/api"
	"github.com/trackle-io/trackle-mcp/internal/tools"
)

const mcpProtocolVersion = "2024-11-05"

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return fmt.Sprintf("rpc error %d", e.Code)
	}
	return e.Message
}

type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      map[string]any `json:"clientInfo"`
}

type resourceDescriptor struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MimeType    string `json:"mimeType,omitempty"`
}

type resourceReadParams struct {
	URI string `json:"uri"`
}

type resourceReadResult struct {
	Contents []map[string]any `json:"contents"`
}

type mcpState struct {
	Registry *tools.Registry
	Client   *api.Client
}

func serveMCP(ctx context.Context, state *mcpState, in io.Reader, out io.Writer) error {
	decoder := json.NewDecoder(bufio.NewReader(in))
	decoder.UseNumber()
	encoder := json.NewEncoder(out)

	for {
		var req rpcRequest
		if err := decoder.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if req.JSONRPC == "" {
			continue
		}

		response, err := handleMCPRequest(ctx, state, req)
		if err != nil {
			if len(req.ID) == 0 {
				continue
			}

			rpcErr, ok := err.(*rpcError)
			if !ok {
				rpcErr = &rpcError{Code: -32603, Message: err.Error()}
			}

			response = &rpcResponse{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error:   rpcErr,
			}
		}

		if response == nil {
			continue
		}

		if err := encoder.Encode(response); err != nil {
			return err
		}

		if req.Method == "exit" {
			return nil
		}
	}
}

func handleMCPRequest(ctx context.Context, state *mcpState, req rpcRequest) (*rpcResponse, error) {
	switch req.Method {
	case "initialize":
		params := initializeParams{}
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				return nil, invalidParamsError("invalid initialize params")
			}
		}

		protocol := params.ProtocolVersion
		if protocol == "" {
			protocol = mcpProtocolVersion
		}

		result := map[string]any{
			"protocolVersion": protocol,
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
			"serverInfo": map[string]any{
				"name":    "trackle-mcp",
				"version": resolveVersion(),
			},
		}

		return rpcResult(req.ID, result), nil
	case "initialized":
		return nil, nil
	case "shutdown":
		return rpcResult(req.ID, map[string]any{}), nil
	case "exit":
		return rpcResult(req.ID, map[string]any{}), nil
	case "tools/list":
		return rpcResult(req.ID, map[string]any{"tools": state.Registry.Definitions()}), nil
	case "tools/call":
		return handleToolCall(ctx, state, req)
	case "resources/list":
		return rpcResult(req.ID, map[string]any{"resources": resourceList()}), nil
	case "resources/read":
		return handleResourceRead(ctx, state, req)
	default:
		return nil, methodNotFoundError(fmt.Sprintf("method not found: %s", req.Method))
	}
}

func handleToolCall(ctx context.Context, state *mcpState, req rpcRequest) (*rpcResponse, error) {
	if len(req.Params) == 0 {
		return nil, invalidParamsError("missing params")
	}

	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, invalidParamsError("invalid tool call params")
	}

	if params.Name == "" {
		return nil, invalidParamsError("tool name required")
	}

	if params.Arguments == nil {
		params.Arguments = map[string]any{}
	}

	// Call never returns an error: every failure is already folded into a
	// structured result payload.
	result := state.Registry.Call(ctx, params.Name, params.Arguments)
	return rpcResult(req.ID, result), nil
}

func handleResourceRead(ctx context.Context, state *mcpState, req rpcRequest) (*rpcResponse, error) {
	if len(req.Params) == 0 {
		return nil, invalidParamsError("missing params")
	}

	var params resourceReadParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, invalidParamsError("invalid resource params")
	}

	if params.URI == "" {
		return nil, invalidParamsError("uri required")
	}

	payload, err := readResource(ctx, state, params.URI)
	if err != nil {
		return rpcResult(req.ID, tools.ErrorResult(err)), nil
	}

	return rpcResult(req.ID, payload), nil
}

func readResource(ctx context.Context, state *mcpState, uri string) (resourceReadResult, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return resourceReadResult{}, err
	}

	if parsed.Scheme != "trackle" {
		return resourceReadResult{}, fmt.Errorf("unsupported scheme: %s", parsed.Scheme)
	}

	switch parsed.Host {
	case "projects":
		payload, err := state.Client.Get(ctx, "/projects", nil)
		if err != nil {
			return resourceReadResult{}, err
		}
		return resourceResult(uri, payload)
	case "users":
		payload, err := state.Client.Get(ctx, "/users", map[string]string{"isActive": "true"})
		if err != nil {
			return resourceReadResult{}, err
		}
		return resourceResult(uri, payload)
	case "tickets":
		key := strings.TrimPrefix(parsed.Path, "/")
		if key == "" {
			return resourceReadResult{}, fmt.Errorf("ticket key required, e.g. trackle://tickets/DATA-7")
		}
		if !tools.TicketKeyPattern.MatchString(key) {
			return resourceReadResult{}, fmt.Errorf("invalid ticket key %q: must match %s", key, tools.TicketKeyPattern)
		}
		payload, err := state.Client.Get(ctx, "/tickets/"+key, nil)
		if err != nil {
			return resourceReadResult{}, err
		}
		return resourceResult(uri, payload)
	default:
		return resourceReadResult{}, fmt.Errorf("unknown resource: %s", parsed.Host)
	}
}

func resourceList() []resourceDescriptor {
	return []resourceDescriptor{
		{
			URI:         "trackle://projects",
			Name:        "Projects",
			Description: "All projects in the tracker.",
			MimeType:    "application/json",
		},
		{
			URI:         "trackle://users",
			Name:        "Active users",
			Description: "Users currently authorised to act through the gateway.",
			MimeType:    "application/json",
		},
		{
			URI:         "trackle://tickets/{key}",
			Name:        "Ticket",
			Description: "A single ticket by key, e.g. trackle://tickets/DATA-7.",
			MimeType:    "application/json",
		},
	}
}

func resourceResult(uri string, payload any) (resourceReadResult, error) {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return resourceReadResult{}, err
	}

	return resourceReadResult{
		Contents: []map[string]any{
			{
				"uri":      uri,
				"mimeType": "application/json",
				"text":     string(encoded),
			},
		},
	}, nil
}

func rpcResult(id json.RawMessage, result any) *rpcResponse {
	return &rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
}

func invalidParamsError(message string) *rpcError {
	return &rpcError{Code: -32602, Message: message}
}

func methodNotFoundError(message string) *rpcError {
	return &rpcError{Code: -32601, Message: message}
}
