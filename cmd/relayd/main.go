package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/rickgao/screen-relay/internal/config"
	"github.com/rickgao/screen-relay/internal/heartbeat"
	"github.com/rickgao/screen-relay/internal/relay"
	"github.com/rickgao/screen-relay/internal/transport"
	"github.com/rickgao/screen-relay/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/relayd.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting relayd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadRelayAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"heartbeat_timeout", cfg.Relay.HeartbeatTimeout,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Create and start the relay coordinator
	coord := relay.New(relay.Config{
		RegistrationTimeout: cfg.Relay.RegistrationTimeout,
		Heartbeat: heartbeat.Config{
			Interval: cfg.Relay.HeartbeatInterval,
			Timeout:  cfg.Relay.HeartbeatTimeout,
		},
	}, logger)
	coord.Start(ctx)
	defer coord.Stop()

	// Start the WebSocket server
	server := transport.NewServer(transport.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		SendBufferSize:  cfg.Server.SendBufferSize,
		WriteTimeout:    cfg.Server.WriteTimeout,
		MaxMessageBytes: cfg.Server.MaxMessageBytes,
	}, &relayHandler{coord: coord}, logger)

	if err := server.Start(ctx); err != nil {
		logger.Error("failed to start websocket server", "error", err)
		os.Exit(1)
	}

	// Start health server
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: createHealthHandler(coord, server, cfg.Metrics.Path, logger),
	}

	go func() {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	logger.Info("relayd running",
		"ws_url", fmt.Sprintf("ws://%s/ws", server.Addr()),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)
	server.Stop(shutdownCtx)

	logger.Info("relayd stopped")
}

// relayHandler bridges transport peers to the coordinator. Operator peers
// bypass the session registry entirely.
type relayHandler struct {
	coord *relay.Coordinator
}

func (h *relayHandler) OnConnect(p *transport.Peer) {
	if p.Operator() {
		h.coord.AttachOperator(p)
		return
	}
	h.coord.HandleConnect(p)
}

func (h *relayHandler) OnMessage(p *transport.Peer, data []byte) {
	if p.Operator() {
		return
	}
	h.coord.HandleMessage(p, data)
}

func (h *relayHandler) OnDisconnect(p *transport.Peer, err error) {
	if p.Operator() {
		h.coord.DetachOperator(p.ID())
		return
	}
	h.coord.HandleDisconnect(p, err)
}

// createHealthHandler creates the HTTP handler for health checks and stats.
func createHealthHandler(coord *relay.Coordinator, server *transport.Server, statsPath string, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	proc, procErr := process.NewProcess(int32(os.Getpid()))
	if procErr != nil {
		logger.Warn("process stats unavailable", "error", procErr)
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		health := struct {
			Status   string `json:"status"`
			Sessions any    `json:"sessions"`
			Peers    int    `json:"peers"`
		}{
			Status:   "healthy",
			Sessions: coord.Registry().Stats(),
			Peers:    server.PeerCount(),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc(statsPath, func(w http.ResponseWriter, r *http.Request) {
		stats := map[string]any{
			"version":  version.Version,
			"sessions": coord.Registry().Stats(),
			"router":   coord.RouterStats(),
			"peers":    server.PeerCount(),
		}

		if proc != nil {
			if cpu, err := proc.CPUPercent(); err == nil {
				stats["cpu_percent"] = cpu
			}
			if mem, err := proc.MemoryInfo(); err == nil {
				stats["rss_bytes"] = mem.RSS
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	return mux
}
