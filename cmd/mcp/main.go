package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rsi-lens/internal/cache"
	"rsi-lens/internal/config"
	"rsi-lens/internal/mcpserver"
	"rsi-lens/internal/provider"
	"rsi-lens/internal/service"
	"rsi-lens/pkg/tracing"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/trace"
)

const version = "v1.0.0"

var (
	loadEnvFunc        = godotenv.Load
	loadConfigFunc     = config.Load
	initRedisFunc      = cache.InitRedis
	initTracerFunc     = tracing.InitTracer
	newRSIProviderFunc = func(tracer trace.Tracer, cfg *config.Config) service.RSIProvider {
		return provider.NewAlphaVantageProvider(tracer, cfg.AlphaVantageAPIKey, cfg.AlphaVantageBaseURL,
			cfg.AlphaVantageEntitlement, cfg.AlphaVantageRequestsPerMin)
	}
	runStdioFunc = func(ctx context.Context, server *mcp.Server) error {
		return server.Run(ctx, &mcp.StdioTransport{})
	}
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
)

func main() {
	loadEnvFunc()
	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initRedisFunc(ctx, cfg.RedisURL)
	defer cache.Close()

	tp, tracer, err := initTracerFunc(ctx, "rsi-lens-mcp")
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	var redisClient service.RedisClient
	if cache.Client != nil {
		redisClient = cache.Client
	}
	rsiService := service.NewRSIService(tracer, newRSIProviderFunc(tracer, cfg), redisClient, nil,
		time.Duration(cfg.RSICacheTTLSecs)*time.Second)
	server := mcpserver.NewServer(rsiService, version)

	if cfg.MCPTransport != "http" {
		log.Println("MCP server running on stdio")
		if err := runStdioFunc(ctx, server); err != nil {
			log.Printf("MCP stdio server stopped: %v", err)
		}
		return
	}

	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.MCPHTTPBind, cfg.MCPHTTPPort),
		Handler: handler,
	}

	go func() {
		log.Printf("MCP server listening on http://%s", srv.Addr)
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down MCP server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Printf("MCP server shutdown error: %v", err)
	}

	log.Println("MCP server exited")
}
