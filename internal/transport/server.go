package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Handler receives connection lifecycle and message events.
type Handler interface {
	// OnConnect is called once per accepted peer, before any messages.
	OnConnect(p *Peer)

	// OnMessage is called for every inbound message, in receive order
	// per peer.
	OnMessage(p *Peer, data []byte)

	// OnDisconnect is called exactly once when the peer's read loop ends.
	OnDisconnect(p *Peer, err error)
}

// Config configures the WebSocket server.
type Config struct {
	Host            string
	Port            int
	SendBufferSize  int           // per-peer outbound buffer (payload count)
	WriteTimeout    time.Duration // write deadline per payload
	MaxMessageBytes int64         // read limit; oversized messages close the peer
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            3000,
		SendBufferSize:  64,
		WriteTimeout:    5 * time.Second,
		MaxMessageBytes: 16 << 20, // full frames are raw screenshots
	}
}

// Server accepts WebSocket connections and feeds the Handler.
type Server struct {
	cfg     Config
	handler Handler
	logger  *slog.Logger

	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener

	mu    sync.Mutex
	peers map[string]*Peer
	wg    sync.WaitGroup
}

// NewServer creates a Server. Start must be called before it accepts.
func NewServer(cfg Config, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 64 << 10,
			// The relay trusts its network boundary; there is no
			// browser-origin policy to enforce.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		peers: make(map[string]*Peer),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.httpServer = &http.Server{Handler: mux}

	return s
}

// Start begins listening. The bind error surfaces here; serving continues
// in the background until Stop.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.httpServer.Serve(ln); err != http.ErrServerClosed {
			s.logger.Error("websocket server error", "error", err)
		}
	}()

	s.logger.Info("websocket server listening", "addr", ln.Addr().String())
	return nil
}

// Stop shuts down the HTTP server and closes every live peer.
func (s *Server) Stop(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	s.mu.Lock()
	for _, p := range s.peers {
		p.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("websocket server stopped")
	case <-ctx.Done():
		s.logger.Warn("websocket server stop timed out")
	}

	return err
}

// Addr returns the bound address, useful when Port is 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// PeerCount returns the number of live peers.
func (s *Server) PeerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	operator := r.URL.Query().Get("role") == "operator"
	if s.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(s.cfg.MaxMessageBytes)
	}

	p := newPeer(conn, operator, s.cfg, s.logger.With("remote", r.RemoteAddr))

	s.mu.Lock()
	s.peers[p.ID()] = p
	s.mu.Unlock()

	s.logger.Info("peer connected",
		"conn_id", p.ID(),
		"remote", r.RemoteAddr,
		"operator", operator,
	)

	s.handler.OnConnect(p)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.peers, p.ID())
			s.mu.Unlock()
		}()
		p.readLoop(s.handler)
	}()
}
