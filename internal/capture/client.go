package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/screen-relay/internal/config"
	"github.com/rickgao/screen-relay/internal/protocol"
)

// Agent streams frames from a Provider to the relay.
type Agent struct {
	cfg      config.AgentConfig
	provider Provider
	logger   *slog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	monitor int
}

// NewAgent creates an agent. Run must be called to start streaming.
func NewAgent(cfg config.AgentConfig, provider Provider, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
		monitor:  cfg.Capture.Monitor,
	}
}

// Run connects to the relay and streams until the context is cancelled.
// Connection failures trigger reconnection with exponential backoff.
func (a *Agent) Run(ctx context.Context) error {
	wait := a.cfg.Relay.ReconnectBaseDelay
	maxWait := a.cfg.Relay.ReconnectMaxDelay

	for {
		err := a.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		a.logger.Warn("relay session ended, reconnecting",
			"error", err,
			"wait", wait,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		// Exponential backoff
		wait *= 2
		if wait > maxWait {
			wait = maxWait
		}
	}
}

// runOnce performs one full session: dial, handshake, stream until failure.
func (a *Agent) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, a.cfg.Relay.URL, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	a.conn = conn
	defer conn.Close()

	if err := a.handshake(); err != nil {
		return err
	}

	a.logger.Info("registered with relay",
		"url", a.cfg.Relay.URL,
		"display_name", a.cfg.DisplayName,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.readLoop(gctx) })
	g.Go(func() error { return a.heartbeatLoop(gctx) })
	g.Go(func() error { return a.fullLoop(gctx) })
	g.Go(func() error { return a.previewLoop(gctx) })

	// Unblock the read loop when a sibling loop fails.
	go func() {
		<-gctx.Done()
		conn.Close()
	}()

	return g.Wait()
}

// handshake registers the agent and advertises its displays.
func (a *Agent) handshake() error {
	if err := a.send(protocol.EventRegister, protocol.RegisterMsg{
		DisplayName: a.cfg.DisplayName,
	}); err != nil {
		return fmt.Errorf("send register: %w", err)
	}

	displays, err := a.provider.Displays()
	if err != nil {
		return fmt.Errorf("enumerate displays: %w", err)
	}
	if err := a.send(protocol.EventDisplays, protocol.DisplaysMsg{
		Displays: displays,
	}); err != nil {
		return fmt.Errorf("send displays: %w", err)
	}
	return nil
}

// readLoop handles relay-originated events until the connection fails.
func (a *Agent) readLoop(ctx context.Context) error {
	for {
		_, data, err := a.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		env, err := protocol.Decode(data)
		if err != nil {
			a.logger.Warn("dropping malformed message", "error", err)
			continue
		}

		switch env.Type {
		case protocol.EventSwitchMonitor:
			var msg protocol.SwitchMonitorMsg
			if err := json.Unmarshal(env.Msg, &msg); err != nil {
				a.logger.Warn("bad switch-monitor payload", "error", err)
				continue
			}
			a.setMonitor(msg.Monitor)
			a.logger.Info("switched monitor", "monitor", msg.Monitor)

		case protocol.EventPleaseRegister:
			a.logger.Info("relay requested re-registration")
			if err := a.handshake(); err != nil {
				return err
			}

		default:
			a.logger.Debug("ignoring event", "type", env.Type)
		}
	}
}

func (a *Agent) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Capture.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.send(protocol.EventHeartbeat, nil); err != nil {
				return fmt.Errorf("send heartbeat: %w", err)
			}
		}
	}
}

func (a *Agent) fullLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Capture.FullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			monitor := a.Monitor()
			img, err := a.provider.FullFrame(monitor)
			if err != nil {
				a.logger.Warn("full frame capture failed", "monitor", monitor, "error", err)
				continue
			}
			if err := a.send(protocol.EventFullFrame, protocol.FullFrameMsg{
				Image:   img,
				Monitor: &monitor,
			}); err != nil {
				return fmt.Errorf("send full frame: %w", err)
			}
		}
	}
}

func (a *Agent) previewLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Capture.PreviewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			img, err := a.provider.PreviewFrame(a.Monitor())
			if err != nil {
				a.logger.Warn("preview capture failed", "error", err)
				continue
			}
			if err := a.send(protocol.EventPreviewFrame, protocol.PreviewFrameMsg{
				Image: img,
			}); err != nil {
				return fmt.Errorf("send preview: %w", err)
			}
		}
	}
}

// Monitor returns the currently streamed monitor index.
func (a *Agent) Monitor() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.monitor
}

func (a *Agent) setMonitor(monitor int) {
	a.mu.Lock()
	a.monitor = monitor
	a.mu.Unlock()
}

// send serializes one event onto the connection.
func (a *Agent) send(t protocol.EventType, payload any) error {
	data, err := protocol.Encode(t, payload)
	if err != nil {
		return err
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	a.conn.SetWriteDeadline(time.Now().Add(a.cfg.Relay.WriteTimeout))
	return a.conn.WriteMessage(websocket.TextMessage, data)
}
