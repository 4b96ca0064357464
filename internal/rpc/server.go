package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ucplabs/ucp-bridge/internal/catalog"
	"github.com/ucplabs/ucp-bridge/internal/service"
	apperrors "github.com/ucplabs/ucp-bridge/pkg/errors"
)

// Server dispatches JSON-RPC tool requests onto the checkout orchestrator and
// the catalog. It accepts both the standard method names and the legacy
// aliases (list_tools, call_tool) older connectors still send.
type Server struct {
	checkout *service.CheckoutService
	catalog  *catalog.Service
	name     string
	version  string
	logger   *slog.Logger
}

// NewServer creates the tool dispatcher. name and version are reported to
// clients during the initialize handshake.
func NewServer(checkout *service.CheckoutService, cat *catalog.Service, name, version string, logger *slog.Logger) *Server {
	return &Server{
		checkout: checkout,
		catalog:  cat,
		name:     name,
		version:  version,
		logger:   logger,
	}
}

// Handle processes one raw JSON-RPC request and returns the response to send,
// or nil when the request is a notification.
func (s *Server) Handle(ctx context.Context, body []byte) *Response {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return errorResponse(nil, CodeParseError, "parse error")
	}
	return s.HandleRequest(ctx, &req)
}

// HandleRequest processes one decoded request. Notifications are executed but
// never answered.
func (s *Server) HandleRequest(ctx context.Context, req *Request) *Response {
	if req.JSONRPC != Version || req.Method == "" {
		return errorResponse(req.ID, CodeInvalidRequest, "invalid JSON-RPC request")
	}

	res, rpcErr := s.dispatch(ctx, req)

	if req.IsNotification() {
		return nil
	}
	if rpcErr != nil {
		return &Response{JSONRPC: Version, ID: req.ID, Error: rpcErr}
	}
	return result(req.ID, res)
}

func (s *Server) dispatch(ctx context.Context, req *Request) (any, *Error) {
	switch req.Method {
	case "initialize":
		return s.initialize(), nil
	case "notifications/initialized":
		return true, nil
	case "tools/list", "list_tools":
		return map[string]any{"tools": toolDefinitions()}, nil
	case "resources/list":
		return map[string]any{"resources": []any{}}, nil
	case "tools/call", "call_tool":
		return s.callTool(ctx, req.Params)
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: "Method not found: " + req.Method}
	}
}

func (s *Server) initialize() any {
	return map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools":     map[string]any{"listChanged": false},
			"resources": map[string]any{"listChanged": false},
		},
		"serverInfo": map[string]any{
			"name":    s.name,
			"version": s.version,
		},
	}
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type searchArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type productArgs struct {
	ID string `json:"id"`
}

type updateArgs struct {
	CheckoutID string `json:"checkout_id"`
	service.UpdateInput
}

type completeArgs struct {
	CheckoutID string `json:"checkout_id"`
}

func (s *Server) callTool(ctx context.Context, raw json.RawMessage) (any, *Error) {
	var params callParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, &Error{Code: CodeInvalidRequest, Message: "invalid tool call params"}
		}
	}

	s.logger.DebugContext(ctx, "tool call", slog.String("tool", params.Name))

	res, err := s.runTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return nil, toolError(err)
	}
	return res, nil
}

func (s *Server) runTool(ctx context.Context, name string, args json.RawMessage) (any, error) {
	switch name {
	case "search_products":
		var in searchArgs
		if err := unmarshalArgs(args, &in); err != nil {
			return nil, err
		}
		if in.Query == "" {
			return nil, apperrors.InvalidInput("query is required")
		}
		items, err := s.catalog.Search(ctx, in.Query, in.Limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"items": items}, nil

	case "get_product":
		var in productArgs
		if err := unmarshalArgs(args, &in); err != nil {
			return nil, err
		}
		if in.ID == "" {
			return nil, apperrors.InvalidInput("id is required")
		}
		p, err := s.catalog.FindProduct(ctx, in.ID)
		if err != nil {
			return nil, err
		}
		return catalog.ProjectItem(p), nil

	case "create_checkout":
		var in service.CreateInput
		if err := unmarshalArgs(args, &in); err != nil {
			return nil, err
		}
		return s.checkout.Create(ctx, &in)

	case "update_checkout":
		var in updateArgs
		if err := unmarshalArgs(args, &in); err != nil {
			return nil, err
		}
		if in.CheckoutID == "" {
			return nil, apperrors.InvalidInput("checkout_id is required")
		}
		return s.checkout.Update(ctx, in.CheckoutID, &in.UpdateInput)

	case "complete_checkout":
		var in completeArgs
		if err := unmarshalArgs(args, &in); err != nil {
			return nil, err
		}
		if in.CheckoutID == "" {
			return nil, apperrors.InvalidInput("checkout_id is required")
		}
		return s.checkout.Complete(ctx, in.CheckoutID)

	default:
		return nil, fmt.Errorf("tool not found: %s", name)
	}
}

func unmarshalArgs(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.InvalidInput("invalid tool arguments")
	}
	return nil
}

// toolError flattens any tool failure into the JSON-RPC tool error code. The
// typed error code rides along in the data field so agents can branch on it.
func toolError(err error) *Error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return &Error{
			Code:    CodeToolError,
			Message: appErr.Message,
			Data:    map[string]any{"code": appErr.Code},
		}
	}
	return &Error{Code: CodeToolError, Message: err.Error()}
}

func toolDefinitions() []map[string]any {
	return []map[string]any{
		{
			"name":        "search_products",
			"description": "Search for products in the catalog.",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
					"limit": map[string]any{"type": "integer"},
				},
				"required": []string{"query"},
			},
		},
		{
			"name":        "get_product",
			"description": "Look up a single product by id.",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{"type": "string"},
				},
				"required": []string{"id"},
			},
		},
		{
			"name":        "create_checkout",
			"description": "Create a checkout session. Returns a session token for later updates and completion.",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"items": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"id":       map[string]any{"type": "string"},
								"quantity": map[string]any{"type": "integer"},
							},
							"required": []string{"id", "quantity"},
						},
					},
				},
			},
		},
		{
			"name":        "update_checkout",
			"description": "Update an existing checkout session: replace items or discount codes, or amend the shipping address.",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"checkout_id": map[string]any{"type": "string", "description": "Session token returned by create_checkout"},
					"items": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"id":       map[string]any{"type": "string"},
								"quantity": map[string]any{"type": "integer"},
							},
						},
					},
					"discount_codes":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"shipping_address": map[string]any{"type": "object"},
				},
				"required": []string{"checkout_id"},
			},
		},
		{
			"name":        "complete_checkout",
			"description": "Finalize a checkout session. Returns a \"continue_url\" link that YOU MUST present to the user to complete payment.",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"checkout_id": map[string]any{"type": "string", "description": "Session token returned by create_checkout"},
				},
				"required": []string{"checkout_id"},
			},
		},
	}
}
