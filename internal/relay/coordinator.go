package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/screen-relay/internal/heartbeat"
	"github.com/rickgao/screen-relay/internal/protocol"
	"github.com/rickgao/screen-relay/internal/registry"
)

// Config configures the Relay Coordinator.
type Config struct {
	// RegistrationTimeout is how long a new connection may stay
	// unclassified before it is prompted to register. The prompt is
	// advisory only; viewers never register and are never disconnected
	// for it.
	RegistrationTimeout time.Duration

	// Heartbeat configures the liveness monitor for capture clients.
	Heartbeat heartbeat.Config
}

// DefaultConfig returns the reference timing values.
func DefaultConfig() Config {
	return Config{
		RegistrationTimeout: 10 * time.Second,
		Heartbeat:           heartbeat.DefaultConfig(),
	}
}

// Coordinator wires the Session Registry, the Fan-out Router, and the
// Heartbeat Monitor together. It is the only writer of registry state;
// transport goroutines call its Handle* methods concurrently and every
// compound transition happens under the registry's lock.
type Coordinator struct {
	cfg     Config
	reg     *registry.Registry
	router  *Router
	monitor *heartbeat.Monitor
	logger  *slog.Logger

	// Injectable for tests.
	now       func() time.Time
	afterFunc func(time.Duration, func()) *time.Timer

	timerMu   sync.Mutex
	regTimers map[string]*time.Timer
}

// New creates a Coordinator with a fresh registry and router.
func New(cfg Config, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RegistrationTimeout <= 0 {
		cfg.RegistrationTimeout = DefaultConfig().RegistrationTimeout
	}

	c := &Coordinator{
		cfg:       cfg,
		reg:       registry.New(),
		router:    NewRouter(logger),
		logger:    logger,
		now:       time.Now,
		afterFunc: time.AfterFunc,
		regTimers: make(map[string]*time.Timer),
	}
	c.monitor = heartbeat.NewMonitor(cfg.Heartbeat, c.reg, c.handleEviction, logger)
	return c
}

// Start begins the heartbeat sweep loop.
func (c *Coordinator) Start(ctx context.Context) {
	c.monitor.Start(ctx)
	c.logger.Info("relay coordinator started",
		"registration_timeout", c.cfg.RegistrationTimeout,
	)
}

// Stop halts the heartbeat monitor and cancels pending registration timers.
func (c *Coordinator) Stop() {
	c.monitor.Stop()

	c.timerMu.Lock()
	for id, t := range c.regTimers {
		t.Stop()
		delete(c.regTimers, id)
	}
	c.timerMu.Unlock()

	c.logger.Info("relay coordinator stopped")
}

// Registry exposes the session registry for health reporting.
func (c *Coordinator) Registry() *registry.Registry {
	return c.reg
}

// RouterStats exposes delivery counters for health reporting.
func (c *Coordinator) RouterStats() RouterStats {
	return c.router.Stats()
}

// HandleConnect classifies a new connection as unregistered, bootstraps it
// with the current capture-client snapshot, and arms the registration timer.
func (c *Coordinator) HandleConnect(conn Conn) {
	id := conn.ID()
	connLog := c.logger.With("conn_id", id)
	connLog.Info("connection established")

	c.router.Add(conn)
	c.reg.Track(id)

	// A freshly connected consumer needs the current producer roster
	// before any live traffic makes sense to it.
	c.sendSnapshot(conn)

	c.armRegistrationTimer(id, conn)
}

// HandleMessage dispatches one inbound event. Malformed or out-of-state
// events never propagate an error; they are logged and, for role-bearing
// events, answered with a please-register prompt.
func (c *Coordinator) HandleMessage(conn Conn, data []byte) {
	id := conn.ID()
	connLog := c.logger.With("conn_id", id)

	env, err := protocol.Decode(data)
	if err != nil {
		connLog.Warn("dropping malformed message", "error", err)
		return
	}

	switch env.Type {
	case protocol.EventRegister:
		c.handleRegister(conn, env.Msg, connLog)

	case protocol.EventDisplays:
		c.handleDisplays(conn, env.Msg, connLog)

	case protocol.EventHeartbeat:
		if err := c.reg.RecordHeartbeat(id, c.now()); err != nil {
			c.promptRegister(conn, "heartbeat before registration", connLog)
			return
		}
		connLog.Debug("heartbeat recorded")

	case protocol.EventPreviewFrame:
		c.handleFrame(conn, env, connLog)

	case protocol.EventFullFrame:
		c.handleFrame(conn, env, connLog)

	case protocol.EventWatchRequest:
		c.handleWatchRequest(conn, env.Msg, connLog)

	case protocol.EventListClients:
		c.sendSnapshot(conn)

	default:
		connLog.Warn("unknown event type", "type", env.Type)
	}
}

// HandleDisconnect removes the departing connection and, for capture
// clients, broadcasts its departure. The transport-supplied reason is
// informational only.
func (c *Coordinator) HandleDisconnect(conn Conn, reason error) {
	id := conn.ID()
	c.cancelRegistrationTimer(id)
	c.router.Remove(id)

	state, ok := c.reg.Remove(id)
	if !ok {
		return
	}

	if state == registry.StateCapture {
		c.logger.Warn("capture client disconnected", "conn_id", id, "reason", reason)
		c.broadcastDeparture(id)
	} else {
		c.logger.Info("viewer disconnected", "conn_id", id, "state", state, "reason", reason)
	}
}

// AttachOperator registers the privileged sink that mirrors all broadcasts.
// Operator connections take no part in the session registry.
func (c *Coordinator) AttachOperator(conn Conn) {
	c.router.SetOperator(conn)
	c.logger.Info("operator sink attached", "conn_id", conn.ID())
}

// DetachOperator removes the operator sink.
func (c *Coordinator) DetachOperator(id string) {
	c.router.ClearOperator(id)
	c.logger.Info("operator sink detached", "conn_id", id)
}

func (c *Coordinator) handleRegister(conn Conn, msg json.RawMessage, connLog *slog.Logger) {
	var reg protocol.RegisterMsg
	if err := json.Unmarshal(msg, &reg); err != nil {
		connLog.Warn("dropping malformed register", "error", err)
		return
	}

	id := conn.ID()
	c.cancelRegistrationTimer(id)

	cc, err := c.reg.Register(id, reg.DisplayName, c.now())
	if err != nil {
		// The connection raced its own disconnect; nothing to do.
		connLog.Warn("register for untracked connection", "error", err)
		return
	}

	connLog.Info("capture client registered", "display_name", cc.DisplayName)
	c.broadcastRegistered(cc)
}

func (c *Coordinator) handleDisplays(conn Conn, msg json.RawMessage, connLog *slog.Logger) {
	var displays protocol.DisplaysMsg
	if err := json.Unmarshal(msg, &displays); err != nil {
		connLog.Warn("dropping malformed displays", "error", err)
		return
	}

	cc, err := c.reg.UpdateDisplays(conn.ID(), displays.Displays)
	if err != nil {
		c.promptRegister(conn, "displays before registration", connLog)
		return
	}

	connLog.Info("displays updated", "count", len(cc.Displays))
	c.broadcastRegistered(cc)
}

func (c *Coordinator) handleFrame(conn Conn, env protocol.Envelope, connLog *slog.Logger) {
	id := conn.ID()
	if !c.reg.IsCapture(id) {
		c.promptRegister(conn, "frame before registration", connLog)
		return
	}

	var out []byte
	switch env.Type {
	case protocol.EventPreviewFrame:
		var frame protocol.PreviewFrameMsg
		if err := json.Unmarshal(env.Msg, &frame); err != nil {
			connLog.Warn("dropping malformed preview frame", "error", err)
			return
		}
		frame.SourceID = id
		out = protocol.MustEncode(protocol.EventPreviewFrame, frame)

	case protocol.EventFullFrame:
		var frame protocol.FullFrameMsg
		if err := json.Unmarshal(env.Msg, &frame); err != nil {
			connLog.Warn("dropping malformed full frame", "error", err)
			return
		}
		frame.SourceID = id
		out = protocol.MustEncode(protocol.EventFullFrame, frame)
	}

	connLog.Debug("frame received", "type", env.Type, "bytes", len(out))
	c.router.Broadcast(c.reg.ViewerIDs(), out)
}

func (c *Coordinator) handleWatchRequest(conn Conn, msg json.RawMessage, connLog *slog.Logger) {
	var watch protocol.WatchRequestMsg
	if err := json.Unmarshal(msg, &watch); err != nil {
		connLog.Warn("dropping malformed watch request", "error", err)
		return
	}

	id := conn.ID()
	if err := c.reg.Watch(id, watch.TargetID); err != nil {
		connLog.Warn("watch request rejected", "error", err)
		return
	}
	connLog.Info("viewer watching", "target_id", watch.TargetID, "monitor", watch.Monitor)

	if watch.Monitor == nil {
		return
	}
	if !c.reg.IsCapture(watch.TargetID) {
		// Target vanished between the viewer's click and now. Silent
		// no-op, consistent with connectionless frame semantics.
		connLog.Debug("watch target departed", "target_id", watch.TargetID)
		return
	}

	data := protocol.MustEncode(protocol.EventSwitchMonitor, protocol.SwitchMonitorMsg{
		Monitor: *watch.Monitor,
	})
	c.router.Route(watch.TargetID, data)
}

// handleEviction runs for each capture client the heartbeat monitor removed.
// The registry record is already gone; force-close the connection and tell
// every viewer.
func (c *Coordinator) handleEviction(cc registry.CaptureClient) {
	c.cancelRegistrationTimer(cc.ID)
	if conn, ok := c.router.Remove(cc.ID); ok {
		conn.Close()
	}
	c.broadcastDeparture(cc.ID)
}

func (c *Coordinator) armRegistrationTimer(id string, conn Conn) {
	timer := c.afterFunc(c.cfg.RegistrationTimeout, func() {
		c.cancelRegistrationTimer(id)
		if c.reg.MarkPrompted(id) {
			c.logger.Info("registration timeout, prompting", "conn_id", id)
			c.promptRegister(conn, "registration timeout", c.logger.With("conn_id", id))
		}
	})

	c.timerMu.Lock()
	c.regTimers[id] = timer
	c.timerMu.Unlock()
}

func (c *Coordinator) cancelRegistrationTimer(id string) {
	c.timerMu.Lock()
	if t, ok := c.regTimers[id]; ok {
		t.Stop()
		delete(c.regTimers, id)
	}
	c.timerMu.Unlock()
}

// promptRegister answers an out-of-state event. The far end plausibly
// restarted and reconnected with a new connection id, so the prompt asks it
// to redo its registration handshake instead of silently dropping traffic.
func (c *Coordinator) promptRegister(conn Conn, reason string, connLog *slog.Logger) {
	connLog.Warn("requesting registration", "reason", reason)
	conn.TrySend(protocol.MustEncode(protocol.EventPleaseRegister, protocol.PleaseRegisterMsg{
		Reason: reason,
	}))
}

// sendSnapshot delivers the current capture-client roster to one connection.
func (c *Coordinator) sendSnapshot(conn Conn) {
	for _, cc := range c.reg.CaptureClients() {
		conn.TrySend(protocol.MustEncode(protocol.EventClientRegistered, protocol.ClientRegisteredMsg{
			ID:          cc.ID,
			DisplayName: cc.DisplayName,
			Displays:    cc.Displays,
		}))
	}
}

func (c *Coordinator) broadcastRegistered(cc registry.CaptureClient) {
	data := protocol.MustEncode(protocol.EventClientRegistered, protocol.ClientRegisteredMsg{
		ID:          cc.ID,
		DisplayName: cc.DisplayName,
		Displays:    cc.Displays,
	})
	c.router.Broadcast(c.reg.ViewerIDs(), data)
}

func (c *Coordinator) broadcastDeparture(id string) {
	data := protocol.MustEncode(protocol.EventClientDeparted, protocol.ClientDepartedMsg{ID: id})
	c.router.Broadcast(c.reg.ViewerIDs(), data)
}
