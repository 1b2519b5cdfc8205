package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	platformgrpc "github.com/cortonemo/narequenta-vtt/internal/platform/grpc"
	"github.com/cortonemo/narequenta-vtt/internal/platform/timeouts"
	resolutionapi "github.com/cortonemo/narequenta-vtt/internal/services/game/api/grpc/resolution"
	"github.com/cortonemo/narequenta-vtt/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"
)

const (
	serverName    = "narequenta-mcp"
	serverVersion = "0.1.0"
)

// Transport names accepted by Run.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds MCP runtime settings.
type Config struct {
	GRPCAddr  string
	HTTPAddr  string
	Transport string
}

// Server binds the MCP tools to a game client.
type Server struct {
	mcpServer *mcp.Server
	conn      *grpc.ClientConn
}

// NewServer registers every tool against client.
func NewServer(client domain.GameClient) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(mcpServer, domain.EssenceDeriveTool(), domain.EssenceDeriveHandler())
	mcp.AddTool(mcpServer, domain.ResolutionApplyTool(), domain.ResolutionApplyHandler(client))
	mcp.AddTool(mcpServer, domain.SheetGetTool(), domain.SheetGetHandler(client))
	mcp.AddTool(mcpServer, domain.RollDataGetTool(), domain.RollDataGetHandler(client))
	mcp.AddTool(mcpServer, domain.EntityPutTool(), domain.EntityPutHandler(client))
	return &Server{mcpServer: mcpServer}
}

// Close releases the game connection, if any.
func (s *Server) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Run is the service entrypoint for MCP and blocks until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}
	switch cfg.Transport {
	case TransportStdio:
		return runWithTransport(ctx, cfg.GRPCAddr, &mcp.StdioTransport{})
	case TransportHTTP:
		return runWithHTTP(ctx, cfg)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

func runWithTransport(ctx context.Context, grpcAddr string, transport mcp.Transport) error {
	server, err := dial(ctx, grpcAddr)
	if err != nil {
		return err
	}
	return server.serveWithTransport(ctx, transport)
}

func runWithHTTP(ctx context.Context, cfg Config) error {
	httpAddr := strings.TrimSpace(cfg.HTTPAddr)
	if httpAddr == "" {
		httpAddr = "localhost:8081"
	}
	server, err := dial(ctx, cfg.GRPCAddr)
	if err != nil {
		return err
	}
	defer server.Close()

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           server.HTTPHandler(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("MCP HTTP listening at %s", httpAddr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown MCP HTTP: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve MCP HTTP: %w", err)
	}
}

// HTTPHandler serves the tools over the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.mcpServer }, nil)
}

func dial(ctx context.Context, grpcAddr string) (*Server, error) {
	addr := strings.TrimSpace(grpcAddr)
	if addr == "" {
		return nil, fmt.Errorf("game server address is required")
	}
	logf := func(format string, args ...any) {
		log.Printf("game %s", fmt.Sprintf(format, args...))
	}
	conn, err := platformgrpc.DialWithHealth(ctx, addr, timeouts.GRPCDial, logf)
	if err != nil {
		var dialErr *platformgrpc.DialError
		if errors.As(err, &dialErr) && dialErr.Stage == platformgrpc.DialStageConnect {
			return nil, fmt.Errorf("connect to game server at %s: %w", addr, dialErr.Err)
		}
		return nil, err
	}
	server := NewServer(resolutionapi.NewClient(conn))
	server.conn = conn
	return server, nil
}

func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	closeErr := s.Close()
	if closeErr != nil {
		if err == nil {
			return fmt.Errorf("close gRPC connection: %w", closeErr)
		}
		return fmt.Errorf("serve MCP: %v; close gRPC connection: %w", err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
