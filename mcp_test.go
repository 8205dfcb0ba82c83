package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackle-io/trackle-mcp/internal/api"
	"github.com/trackle-io/trackle-mcp/internal/identity"
	"github.com/trackle-io/trackle-mcp/internal/tools"
)

func newTestState(t *testing.T) *mcpState {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/users" {
			w.Write([]byte(`{"data":[{"id":"u1","login":"_system","displayName":"System Agent","isActive":true}]}`))
			return
		}
		w.Write([]byte(`{"data":{"key":"DATA-7"}}`))
	}))
	t.Cleanup(server.Close)

	client, err := api.New(server.URL, "_system", "secret", 0, zerolog.Nop())
	require.NoError(t, err)

	registry := tools.NewRegistry(client, identity.NewResolver(client, "_system"), zerolog.Nop())
	return &mcpState{Registry: registry, Client: client}
}

func decodeResponses(t *testing.T, out *bytes.Buffer) []map[string]any {
	t.Helper()

	var responses []map[string]any
	decoder := json.NewDecoder(out)
	for decoder.More() {
		var response map[string]any
		require.NoError(t, decoder.Decode(&response))
		responses = append(responses, response)
	}
	return responses
}

func TestServeMCPSession(t *testing.T) {
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`,
		`{"jsonrpc":"2.0","method":"initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"frobnicate"}}`,
		`{"jsonrpc":"2.0","id":4,"method":"no/such"}`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, serveMCP(context.Background(), newTestState(t), strings.NewReader(input), &out))

	responses := decodeResponses(t, &out)
	require.Len(t, responses, 4, "the initialized notification produces no response")

	initResult, ok := responses[0]["result"].(map[string]any)
	require.True(t, ok)
	serverInfo, ok := initResult["serverInfo"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "trackle-mcp", serverInfo["name"])

	listResult, ok := responses[1]["result"].(map[string]any)
	require.True(t, ok)
	toolList, ok := listResult["tools"].([]any)
	require.True(t, ok)
	assert.Len(t, toolList, 12)

	callResult, ok := responses[2]["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, callResult["isError"])
	content, ok := callResult["content"].([]any)
	require.True(t, ok)
	first, ok := content[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Error: unknown tool: frobnicate", first["text"])

	rpcErr, ok := responses[3]["error"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, -32601, rpcErr["code"])
}

func TestToolCallSuccessOverRPC(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_ticket","arguments":{"key":"DATA-7"}}}`

	var out bytes.Buffer
	require.NoError(t, serveMCP(context.Background(), newTestState(t), strings.NewReader(input), &out))

	responses := decodeResponses(t, &out)
	require.Len(t, responses, 1)

	result, ok := responses[0]["result"].(map[string]any)
	require.True(t, ok)
	assert.Nil(t, result["isError"])
	content, ok := result["content"].([]any)
	require.True(t, ok)
	first, ok := content[0].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, first["text"], "DATA-7")
}

func TestResources(t *testing.T) {
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"resources/list"}`,
		`{"jsonrpc":"2.0","id":2,"method":"resources/read","params":{"uri":"trackle://tickets/DATA-7"}}`,
		`{"jsonrpc":"2.0","id":3,"method":"resources/read","params":{"uri":"trackle://tickets/nope"}}`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, serveMCP(context.Background(), newTestState(t), strings.NewReader(input), &out))

	responses := decodeResponses(t, &out)
	require.Len(t, responses, 3)

	listResult, ok := responses[0]["result"].(map[string]any)
	require.True(t, ok)
	resources, ok := listResult["resources"].([]any)
	require.True(t, ok)
	assert.Len(t, resources, 3)

	readResult, ok := responses[1]["result"].(map[string]any)
	require.True(t, ok)
	contents, ok := readResult["contents"].([]any)
	require.True(t, ok)
	entry, ok := contents[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "trackle://tickets/DATA-7", entry["uri"])
	assert.Contains(t, entry["text"], "DATA-7")

	badResult, ok := responses[2]["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, badResult["isError"])
}
