package http

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/ucplabs/ucp-bridge/internal/rpc"
	"github.com/ucplabs/ucp-bridge/pkg/httputil"
)

// RPCHandler mounts the JSON-RPC tool dispatcher on the REST router.
type RPCHandler struct {
	server *rpc.Server
	logger *slog.Logger
}

// NewRPCHandler creates a new JSON-RPC HTTP handler.
func NewRPCHandler(server *rpc.Server, logger *slog.Logger) *RPCHandler {
	return &RPCHandler{
		server: server,
		logger: logger,
	}
}

// Handle handles POST /ucp/v1/rpc. Notifications get a 204 with no body; the
// JSON-RPC envelope itself carries success or failure, so the HTTP status is
// 200 even for dispatch errors.
func (h *RPCHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "failed to read request body"}.Write(w, http.StatusBadRequest)
		return
	}

	resp := h.server.Handle(r.Context(), body)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}
