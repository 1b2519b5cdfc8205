package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cortonemo/narequenta-vtt/internal/platform/timeouts"
	resolutionapi "github.com/cortonemo/narequenta-vtt/internal/services/game/api/grpc/resolution"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/resolution"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/systems/narequenta"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/journal"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/journal/integrity"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/notify"
	storagesqlite "github.com/cortonemo/narequenta-vtt/internal/services/game/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Config holds the runtime settings of the game server.
type Config struct {
	// Addr is the gRPC listen address, e.g. ":8082".
	Addr string
	// HTTPAddr is the notifications websocket listen address. Empty disables it.
	HTTPAddr    string
	DBPath      string
	JournalDir  string
	RulesetPath string
	// JournalKeyring signs journal entries. Nil leaves them hash-chained only.
	JournalKeyring *integrity.Keyring
	Logger         *log.Logger
}

// Server hosts the narequenta game server.
type Server struct {
	listener     net.Listener
	httpListener net.Listener
	grpcServer   *grpc.Server
	httpServer   *http.Server
	health       *health.Server
	store        *storagesqlite.Store
	journal      *journal.Writer
	hub          *notify.Hub
	logger       *log.Logger
}

// New opens storage and listeners and registers every service.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	rules := narequenta.DefaultRuleset()
	if path := strings.TrimSpace(cfg.RulesetPath); path != "" {
		loaded, err := narequenta.LoadRuleset(path)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	journalDir := strings.TrimSpace(cfg.JournalDir)
	if journalDir == "" {
		journalDir = filepath.Join("data", "journal")
	}
	writer, err := journal.Open(journalDir)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	writer.SetKeyring(cfg.JournalKeyring)

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = store.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	hub := notify.NewHub(logger)
	var httpListener net.Listener
	var httpServer *http.Server
	if addr := strings.TrimSpace(cfg.HTTPAddr); addr != "" {
		httpListener, err = net.Listen("tcp", addr)
		if err != nil {
			_ = listener.Close()
			_ = store.Close()
			_ = writer.Close()
			return nil, fmt.Errorf("listen on %s: %w", addr, err)
		}
		mux := http.NewServeMux()
		mux.Handle(notify.Path, hub)
		httpServer = &http.Server{Handler: mux, ReadHeaderTimeout: timeouts.ReadHeader}
	}

	processor := resolution.NewProcessor(store, store,
		resolution.WithLedger(store),
		resolution.WithRuleset(rules),
		resolution.WithLogger(logger),
	)

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	resolutionapi.RegisterResolutionServiceServer(grpcServer, resolutionapi.NewService(store, processor,
		resolutionapi.WithJournal(writer),
		resolutionapi.WithNotifier(hub),
		resolutionapi.WithRuleset(rules),
		resolutionapi.WithLogger(logger),
	))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(resolutionapi.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:     listener,
		httpListener: httpListener,
		grpcServer:   grpcServer,
		httpServer:   httpServer,
		health:       healthServer,
		store:        store,
		journal:      writer,
		hub:          hub,
		logger:       logger,
	}, nil
}

// Addr returns the gRPC listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HTTPAddr returns the notifications listener address, or empty when disabled.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// Run creates and serves a game server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve blocks until the context ends or a listener fails, then shuts every
// component down.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.close()

	s.logger.Printf("game server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 2)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()
	if s.httpServer != nil {
		s.logger.Printf("notifications listening at %v%s", s.httpListener.Addr(), notify.Path)
		go func() {
			serveErr <- s.httpServer.Serve(s.httpListener)
		}()
	}

	handleErr := func(err error) error {
		if err == nil || errors.Is(err, grpc.ErrServerStopped) || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}
	s.shutdown()
	return handleErr(err)
}

func (s *Server) shutdown() {
	if s.health != nil {
		s.health.Shutdown()
	}
	s.hub.Close()
	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Printf("shutdown notifications: %v", err)
		}
	}
	s.grpcServer.GracefulStop()
}

func (s *Server) close() {
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Printf("close journal: %v", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Printf("close game store: %v", err)
		}
	}
}

func openStore(path string) (*storagesqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = filepath.Join("data", "game.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := storagesqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}
