package relay

import (
	"log/slog"
	"sync"
)

// Conn is a bidirectional connection handle supplied by the transport.
// TrySend is fire-and-forget: it must never block, returning false when the
// destination cannot accept the payload right now.
type Conn interface {
	ID() string
	TrySend(data []byte) bool
	Close() error
}

// RouterStats contains runtime delivery counters.
type RouterStats struct {
	Connections int   `json:"connections"`
	Broadcasts  int64 `json:"broadcasts"`
	Delivered   int64 `json:"delivered"`
	Dropped     int64 `json:"dropped"`
	Routed      int64 `json:"routed"`
}

// Router fans out payloads to sets of live connections.
type Router struct {
	logger *slog.Logger

	mu       sync.RWMutex
	conns    map[string]Conn
	operator Conn

	broadcasts int64
	delivered  int64
	dropped    int64
	routed     int64
}

// NewRouter creates an empty Router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger: logger,
		conns:  make(map[string]Conn),
	}
}

// Add makes a connection routable by id.
func (rt *Router) Add(c Conn) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.conns[c.ID()] = c
}

// Remove forgets a connection and returns it for closing.
func (rt *Router) Remove(id string) (Conn, bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	c, ok := rt.conns[id]
	if ok {
		delete(rt.conns, id)
	}
	return c, ok
}

// Get returns the connection for id.
func (rt *Router) Get(id string) (Conn, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	c, ok := rt.conns[id]
	return c, ok
}

// SetOperator attaches the privileged sink that mirrors all broadcasts.
func (rt *Router) SetOperator(c Conn) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.operator = c
}

// ClearOperator detaches the operator sink if it matches id.
func (rt *Router) ClearOperator(id string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.operator != nil && rt.operator.ID() == id {
		rt.operator = nil
	}
}

// Broadcast delivers data to every id in the destination set, in the given
// order, plus the operator sink. Delivery is non-blocking: a consumer whose
// send would block simply misses this payload. Returns the delivered count.
func (rt *Router) Broadcast(ids []string, data []byte) int {
	rt.mu.RLock()
	dests := make([]Conn, 0, len(ids)+1)
	for _, id := range ids {
		if c, ok := rt.conns[id]; ok {
			dests = append(dests, c)
		}
	}
	operator := rt.operator
	rt.mu.RUnlock()

	delivered := 0
	droppedNow := 0
	for _, c := range dests {
		if c.TrySend(data) {
			delivered++
		} else {
			droppedNow++
			rt.logger.Debug("destination backpressured, dropping payload", "conn_id", c.ID())
		}
	}
	if operator != nil && operator.TrySend(data) {
		delivered++
	}

	rt.mu.Lock()
	rt.broadcasts++
	rt.delivered += int64(delivered)
	rt.dropped += int64(droppedNow)
	rt.mu.Unlock()

	return delivered
}

// Route delivers data to exactly one connection. An unknown target is a
// no-op: no error surfaces back over the relay.
func (rt *Router) Route(targetID string, data []byte) bool {
	c, ok := rt.Get(targetID)
	if !ok {
		rt.logger.Debug("route target unknown, dropping", "target_id", targetID)
		return false
	}
	if !c.TrySend(data) {
		rt.mu.Lock()
		rt.dropped++
		rt.mu.Unlock()
		return false
	}
	rt.mu.Lock()
	rt.routed++
	rt.mu.Unlock()
	return true
}

// Stats returns current delivery counters.
func (rt *Router) Stats() RouterStats {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	return RouterStats{
		Connections: len(rt.conns),
		Broadcasts:  rt.broadcasts,
		Delivered:   rt.delivered,
		Dropped:     rt.dropped,
		Routed:      rt.routed,
	}
}
