package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	calls     []Request
	responses map[string]*Response
	err       error
}

func (b *stubBackend) Call(_ context.Context, req *Request) (*Response, error) {
	b.calls = append(b.calls, *req)
	if b.err != nil {
		return nil, b.err
	}
	if resp, ok := b.responses[req.Method]; ok {
		return resp, nil
	}
	return result(req.ID, map[string]any{}), nil
}

func runRelay(t *testing.T, backend Caller, input string) []map[string]any {
	t.Helper()

	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	relay := NewRelay(backend, strings.NewReader(input), &out, "test-relay", "1.0.0", logger)
	require.NoError(t, relay.Run(context.Background()))

	var responses []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var msg map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &msg))
		responses = append(responses, msg)
	}
	return responses
}

func TestRelayInitializeHandledLocally(t *testing.T) {
	backend := &stubBackend{}

	responses := runRelay(t, backend, `{"jsonrpc":"2.0","id":0,"method":"initialize"}`+"\n")
	require.Len(t, responses, 1)

	res := responses[0]["result"].(map[string]any)
	assert.Equal(t, protocolVersion, res["protocolVersion"])
	assert.Empty(t, backend.calls, "initialize must not hit the bridge")
}

func TestRelaySuppressesNotifications(t *testing.T) {
	backend := &stubBackend{}

	input := `{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n" +
		`{"jsonrpc":"2.0","method":"notifications/cancelled"}` + "\n" +
		`{"jsonrpc":"2.0","method":"initialize"}` + "\n" +
		`{"jsonrpc":"2.0","id":null,"method":"initialize"}` + "\n" +
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}` + "\n"

	responses := runRelay(t, backend, input)
	require.Len(t, responses, 1, "only the initialize request with an id is answered")
	assert.Equal(t, float64(1), responses[0]["id"])
}

func TestRelayForwardsToolList(t *testing.T) {
	backend := &stubBackend{
		responses: map[string]*Response{
			"list_tools": result(json.RawMessage("1"), map[string]any{
				"tools": []any{map[string]any{"name": "search_products"}},
			}),
		},
	}

	responses := runRelay(t, backend, `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`+"\n")
	require.Len(t, responses, 1)

	require.Len(t, backend.calls, 1)
	assert.Equal(t, "list_tools", backend.calls[0].Method)

	tools := responses[0]["result"].(map[string]any)["tools"].([]any)
	require.Len(t, tools, 1)
}

func TestRelayToolListFallsBackToEmpty(t *testing.T) {
	backend := &stubBackend{err: errors.New("connection refused")}

	responses := runRelay(t, backend, `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`+"\n")
	require.Len(t, responses, 1)
	assert.Empty(t, responses[0]["result"].(map[string]any)["tools"])
}

func TestRelayWrapsToolCallResult(t *testing.T) {
	backend := &stubBackend{
		responses: map[string]*Response{
			"call_tool": result(json.RawMessage("1"), map[string]any{"status": "cart"}),
		},
	}

	input := `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"create_checkout","arguments":{"items":[]}}}` + "\n"
	responses := runRelay(t, backend, input)
	require.Len(t, responses, 1)

	require.Len(t, backend.calls, 1)
	assert.Equal(t, "call_tool", backend.calls[0].Method)
	assert.JSONEq(t, `{"name":"create_checkout","arguments":{"items":[]}}`, string(backend.calls[0].Params))

	content := responses[0]["result"].(map[string]any)["content"].([]any)
	require.Len(t, content, 1)
	block := content[0].(map[string]any)
	assert.Equal(t, "text", block["type"])
	assert.Contains(t, block["text"], `"status":"cart"`)
}

func TestRelayToolCallErrorBecomesContent(t *testing.T) {
	backend := &stubBackend{
		responses: map[string]*Response{
			"call_tool": errorResponse(json.RawMessage("1"), CodeToolError, "cart is empty"),
		},
	}

	input := `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"complete_checkout"}}` + "\n"
	responses := runRelay(t, backend, input)
	require.Len(t, responses, 1)

	res := responses[0]["result"].(map[string]any)
	assert.Equal(t, true, res["isError"])
	content := res["content"].([]any)
	assert.Contains(t, content[0].(map[string]any)["text"], "cart is empty")
}

func TestRelayUnknownMethod(t *testing.T) {
	responses := runRelay(t, &stubBackend{}, `{"jsonrpc":"2.0","id":6,"method":"prompts/list"}`+"\n")
	require.Len(t, responses, 1)

	errObj := responses[0]["error"].(map[string]any)
	assert.Equal(t, float64(CodeMethodNotFound), errObj["code"])
}

func TestRelaySkipsMalformedLines(t *testing.T) {
	input := "{garbage\n" +
		"\n" +
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}` + "\n" +
		"also not json\n" +
		`{"jsonrpc":"2.0","id":2,"method":"initialize"}` + "\n"

	responses := runRelay(t, &stubBackend{}, input)
	require.Len(t, responses, 2)
	assert.Equal(t, float64(1), responses[0]["id"])
	assert.Equal(t, float64(2), responses[1]["id"])
}

func TestRelayPreservesOrdering(t *testing.T) {
	backend := &stubBackend{}

	var input strings.Builder
	for i := 1; i <= 10; i++ {
		req, _ := json.Marshal(Request{JSONRPC: Version, ID: json.RawMessage(jsonInt(i)), Method: "initialize"})
		input.Write(req)
		input.WriteByte('\n')
	}

	responses := runRelay(t, backend, input.String())
	require.Len(t, responses, 10)
	for i, resp := range responses {
		assert.Equal(t, float64(i+1), resp["id"])
	}
}

// chunkReader yields the stream in tiny reads so lines are split mid-message.
type chunkReader struct {
	data []byte
	size int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.size
	if n > len(r.data) {
		n = len(r.data)
	}
	n = copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func TestRelayBuffersPartialLines(t *testing.T) {
	input := `{"jsonrpc":"2.0","id":1,"method":"initialize"}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"initialize"}` + "\n"

	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	relay := NewRelay(&stubBackend{}, &chunkReader{data: []byte(input), size: 7}, &out, "test-relay", "1.0.0", logger)
	require.NoError(t, relay.Run(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	for i, line := range lines {
		var resp Response
		require.NoError(t, json.Unmarshal([]byte(line), &resp))
		assert.Equal(t, jsonInt(i+1), string(resp.ID))
	}
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
