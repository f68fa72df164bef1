package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"rate_server/internal/eventlog"
	"rate_server/internal/infra"
	"rate_server/internal/provider"
	"rate_server/internal/resolver"
	"rate_server/internal/server"
	"rate_server/internal/storage"
)

// Bootstrap wires the system together and exposes the administrative
// operations the operator console drives.
type Bootstrap struct {
	Config   *infra.Config
	Logger   *slog.Logger
	Store    *storage.Store
	Provider *provider.Client
	Resolver *resolver.Resolver
	Events   *eventlog.Log
	Counter  *server.ConnCounter

	baseCtx context.Context

	mu       sync.Mutex
	sup      *server.Supervisor
	wsServer *http.Server
}

// NewBootstrap creates a Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{Counter: &server.ConnCounter{}}
}

// Initialize loads configuration and constructs every component. The given
// context is the parent of all server lifecycles started later.
func (b *Bootstrap) Initialize(ctx context.Context, configPath string) error {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg
	b.baseCtx = ctx

	b.Logger = infra.NewLogger(cfg)
	slog.SetDefault(b.Logger)

	store, err := storage.Open(storage.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		return err
	}
	b.Store = store
	b.Logger.Info("rate store initialized", slog.String("driver", cfg.Database.Driver))

	b.Provider = provider.NewClient(
		cfg.Provider.URL,
		cfg.Provider.BaseCurrency,
		time.Duration(cfg.Provider.TimeoutSec)*time.Second,
	)
	b.Resolver = resolver.New(b.Store, b.Provider, b.Logger)
	b.Events = eventlog.New(cfg.EventLog.Path)

	return nil
}

// StartServer binds the TCP supervisor and, when configured, the WebSocket
// gateway. Both share the live-connection counter and the event log.
func (b *Bootstrap) StartServer() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sup != nil {
		return errors.New("server is already running")
	}

	addr := fmt.Sprintf("%s:%d", b.Config.Server.Host, b.Config.Server.Port)
	sup := server.NewSupervisor(addr, b.Resolver, b.Events, b.Counter, b.Logger)
	if err := sup.Start(b.baseCtx); err != nil {
		return err
	}
	b.sup = sup

	if wsAddr := b.Config.Server.WSAddr; wsAddr != "" {
		gw := server.NewWSGateway(b.Resolver, b.Events, b.Counter, b.Logger, b.Config.Server.WSOrigin)
		mux := http.NewServeMux()
		mux.Handle("/ws", gw)
		b.wsServer = &http.Server{Addr: wsAddr, Handler: mux}

		go func(srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				b.Logger.Error("websocket gateway failed", slog.Any("error", err))
			}
		}(b.wsServer)
		b.Logger.Info("websocket gateway listening", slog.String("addr", wsAddr))
	}

	return nil
}

// StopServer terminates the supervisor and the WebSocket gateway. In-flight
// sessions are cut off; no drain.
func (b *Bootstrap) StopServer() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sup == nil {
		return errors.New("server is not running")
	}

	b.sup.Stop()
	b.sup = nil

	if b.wsServer != nil {
		b.wsServer.Close()
		b.wsServer = nil
	}
	return nil
}

// Running reports whether the server is accepting connections.
func (b *Bootstrap) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sup != nil
}

// ClientCount returns the live-connection count across all transports.
func (b *Bootstrap) ClientCount() int64 {
	return b.Counter.Value()
}

// ClearCache deletes every cached rate.
func (b *Bootstrap) ClearCache(ctx context.Context) error {
	return b.Store.ClearAll(ctx)
}

// Shutdown stops the server if it is running. Used on process exit.
func (b *Bootstrap) Shutdown() {
	if b.Running() {
		if err := b.StopServer(); err != nil {
			b.Logger.Warn("shutdown stop failed", slog.Any("error", err))
		}
	}
}
