package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ucplabs/ucp-bridge/pkg/httpclient"
)

// maxLineSize bounds a single JSON-RPC line on the relay's stdin.
const maxLineSize = 1 << 20

// Caller forwards a JSON-RPC request to the bridge and returns its response.
type Caller interface {
	Call(ctx context.Context, req *Request) (*Response, error)
}

// HTTPCaller posts JSON-RPC requests to the bridge's /rpc endpoint.
type HTTPCaller struct {
	endpoint string
	client   *httpclient.Client
}

// NewHTTPCaller creates a caller for the given JSON-RPC endpoint URL.
func NewHTTPCaller(endpoint string, client *httpclient.Client) *HTTPCaller {
	return &HTTPCaller{endpoint: endpoint, client: client}
}

func (c *HTTPCaller) Call(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint returned HTTP %d", httpResp.StatusCode)
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// Relay bridges a line-delimited JSON-RPC stream (stdin/stdout of an agent
// process) to the bridge's HTTP endpoint. It answers the initialize handshake
// locally, forwards tool listing and calls, suppresses responses to
// notifications and processes lines strictly in order so responses can never
// overtake each other. Diagnostics go to the logger, never to the output
// stream: that stream carries protocol JSON only.
type Relay struct {
	backend Caller
	in      io.Reader
	out     io.Writer
	name    string
	version string
	logger  *slog.Logger
}

// NewRelay creates a relay reading requests from in and writing responses to out.
func NewRelay(backend Caller, in io.Reader, out io.Writer, name, version string, logger *slog.Logger) *Relay {
	return &Relay{
		backend: backend,
		in:      in,
		out:     out,
		name:    name,
		version: version,
		logger:  logger,
	}
}

// Run processes the input stream until EOF or context cancellation. Partial
// lines are buffered across reads; malformed lines are logged and skipped.
func (r *Relay) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			r.logger.Warn("skipping malformed line", slog.String("error", err.Error()))
			continue
		}

		resp := r.translate(ctx, &req)
		if resp == nil {
			continue
		}
		if err := r.write(resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (r *Relay) write(resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	if _, err := r.out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// translate maps one client request to the response to emit, or nil when
// nothing must be written.
func (r *Relay) translate(ctx context.Context, req *Request) *Response {
	switch req.Method {
	case "initialize":
		if req.IsNotification() {
			return nil
		}
		return result(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo": map[string]any{
				"name":    r.name,
				"version": r.version,
			},
			"capabilities": map[string]any{
				"tools": map[string]any{"listChanged": false},
			},
		})

	case "tools/list":
		return r.listTools(ctx, req)

	case "tools/call":
		return r.callTool(ctx, req)

	default:
		if req.IsNotification() {
			return nil
		}
		return errorResponse(req.ID, CodeMethodNotFound, "Method not found: "+req.Method)
	}
}

func (r *Relay) listTools(ctx context.Context, req *Request) *Response {
	if req.IsNotification() {
		return nil
	}

	resp, err := r.backend.Call(ctx, &Request{
		JSONRPC: Version,
		ID:      json.RawMessage("1"),
		Method:  "list_tools",
	})
	if err != nil || resp.Error != nil {
		// An unreachable bridge yields an empty tool list rather than a dead
		// connection; the client can retry listing later.
		r.logger.Warn("tool listing failed", slog.Any("error", err))
		return result(req.ID, map[string]any{"tools": []any{}})
	}
	return result(req.ID, resp.Result)
}

func (r *Relay) callTool(ctx context.Context, req *Request) *Response {
	resp, err := r.backend.Call(ctx, &Request{
		JSONRPC: Version,
		ID:      json.RawMessage("1"),
		Method:  "call_tool",
		Params:  req.Params,
	})

	if req.IsNotification() {
		return nil
	}

	if err != nil {
		return result(req.ID, toolErrorContent(err.Error()))
	}
	if resp.Error != nil {
		return result(req.ID, toolErrorContent(resp.Error.Message))
	}

	text, err := json.Marshal(resp.Result)
	if err != nil {
		return result(req.ID, toolErrorContent("invalid tool result"))
	}
	return result(req.ID, map[string]any{
		"content": []map[string]any{{"type": "text", "text": string(text)}},
	})
}

func toolErrorContent(msg string) map[string]any {
	return map[string]any{
		"content": []map[string]any{{"type": "text", "text": "Error: " + msg}},
		"isError": true,
	}
}
