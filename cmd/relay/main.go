// The relay bridges a local agent speaking line-delimited JSON-RPC over
// stdio to a remote bridge's HTTP endpoint. stdout carries protocol JSON
// only; all diagnostics go to stderr.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ucplabs/ucp-bridge/internal/rpc"
	"github.com/ucplabs/ucp-bridge/pkg/httpclient"
	"github.com/ucplabs/ucp-bridge/pkg/logger"
)

const version = "0.1.0"

func main() {
	var (
		baseURL  = flag.String("url", envOr("UCP_BRIDGE_URL", "http://localhost:8080"), "bridge base URL")
		logLevel = flag.String("log-level", envOr("LOG_LEVEL", "info"), "log level")
	)
	flag.Parse()

	// stdout is reserved for protocol JSON; log to stderr.
	log := logger.NewWithWriter("ucp-relay", *logLevel, os.Stderr)

	endpoint := strings.TrimRight(*baseURL, "/") + "/ucp/v1/rpc"
	log.Info("starting relay", slog.String("endpoint", endpoint))

	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = 30 * time.Second
	caller := rpc.NewHTTPCaller(endpoint, httpclient.New(clientCfg))

	relay := rpc.NewRelay(caller, os.Stdin, os.Stdout, "ucp-relay", version, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "relay error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
