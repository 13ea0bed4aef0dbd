package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/rickgao/screen-relay/internal/protocol"
)

// Errors
var (
	// ErrNotRegistered is returned for role-bearing events from a
	// connection that is not a registered capture client. Callers must
	// answer with a please-register prompt, never drop silently.
	ErrNotRegistered = errors.New("connection is not a registered capture client")

	// ErrNotTracked is returned for operations on an unknown connection id.
	ErrNotTracked = errors.New("connection id is not tracked")
)

// State is the classification of a tracked connection id.
// A connection id is in exactly one state at any time; capture and viewer
// membership are mutually exclusive.
type State string

const (
	// StateUnclassified is the initial state: connected, first message
	// not yet seen.
	StateUnclassified State = "unclassified"

	// StatePendingRegistration means the registration timer fired and the
	// connection was prompted to register.
	StatePendingRegistration State = "pending-registration"

	// StateCapture is a registered capture client (frame producer).
	StateCapture State = "capture"

	// StateViewer is a consumer watching a capture client's stream.
	StateViewer State = "viewer"
)

// CaptureClient is a point-in-time snapshot of a registered producer.
type CaptureClient struct {
	ID            string
	DisplayName   string
	Displays      []protocol.Display
	LastHeartbeat time.Time
}

// ViewerSession is a point-in-time snapshot of a consumer.
type ViewerSession struct {
	ID            string
	WatchedTarget string // empty until the first watch-request
}

// Stats summarizes current registry membership.
type Stats struct {
	CaptureClients int `json:"capture_clients"`
	Viewers        int `json:"viewers"`
	Unclassified   int `json:"unclassified"`
}

// session is the internal per-connection record.
type session struct {
	id    string
	state State

	// Capture-only fields. lastHeartbeat exists iff state == StateCapture,
	// so the heartbeat record is removed atomically with the session.
	displayName   string
	displays      []protocol.Display
	lastHeartbeat time.Time

	// Viewer-only field.
	watchedTarget string
}

// Registry is the thread-safe session table.
//
// Compound operations (Register, Remove, EvictStale) hold the write lock for
// their full duration so role transitions and heartbeat eviction never
// interleave inconsistently.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session

	// Insertion orders give broadcasts and snapshots a deterministic,
	// testable iteration order.
	order        []string // all tracked ids
	captureOrder []string // registered capture clients
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		sessions: make(map[string]*session),
	}
}

// Track inserts a newly connected id as Unclassified. Idempotent.
func (r *Registry) Track(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; ok {
		return
	}
	r.sessions[id] = &session{id: id, state: StateUnclassified}
	r.order = append(r.order, id)
}

// MarkPrompted transitions Unclassified to PendingRegistration. It returns
// true only when the id was still unclassified, i.e. the caller should send
// a please-register prompt.
func (r *Registry) MarkPrompted(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || s.state != StateUnclassified {
		return false
	}
	s.state = StatePendingRegistration
	return true
}

// Register classifies id as a capture client and seeds its heartbeat record
// with now. Legal from any tracked state: a prior viewer record is replaced
// (role reassignment), and re-registering an existing capture client updates
// the display name while preserving its display list.
func (r *Registry) Register(id, displayName string, now time.Time) (CaptureClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return CaptureClient{}, ErrNotTracked
	}

	if s.state != StateCapture {
		s.displays = nil
		s.watchedTarget = ""
		s.state = StateCapture
		r.captureOrder = append(r.captureOrder, id)
	}
	s.displayName = displayName
	s.lastHeartbeat = now

	return snapshotLocked(s), nil
}

// UpdateDisplays replaces the display list of a registered capture client.
func (r *Registry) UpdateDisplays(id string, displays []protocol.Display) (CaptureClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || s.state != StateCapture {
		return CaptureClient{}, ErrNotRegistered
	}

	s.displays = append([]protocol.Display(nil), displays...)
	return snapshotLocked(s), nil
}

// RecordHeartbeat refreshes the last-seen instant of a capture client.
func (r *Registry) RecordHeartbeat(id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || s.state != StateCapture {
		return ErrNotRegistered
	}
	s.lastHeartbeat = now
	return nil
}

// Watch binds a viewer to a watched target id, classifying the connection as
// a Viewer on its first watch-request. Fails for capture clients.
func (r *Registry) Watch(id, targetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return ErrNotTracked
	}
	if s.state == StateCapture {
		return ErrNotRegistered
	}
	s.state = StateViewer
	s.watchedTarget = targetID
	return nil
}

// IsCapture reports whether id is a registered capture client.
func (r *Registry) IsCapture(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	return ok && s.state == StateCapture
}

// Remove deletes id from whichever table holds it and returns its prior
// state. Idempotent: removing an unknown id returns ok=false.
func (r *Registry) Remove(id string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return "", false
	}
	r.removeLocked(s)
	return s.state, true
}

// CaptureClients returns a point-in-time snapshot of all registered capture
// clients in registration order.
func (r *Registry) CaptureClients() []CaptureClient {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]CaptureClient, 0, len(r.captureOrder))
	for _, id := range r.captureOrder {
		if s, ok := r.sessions[id]; ok && s.state == StateCapture {
			result = append(result, snapshotLocked(s))
		}
	}
	return result
}

// ViewerIDs returns the broadcast destination set: every tracked connection
// that is not a capture client, in connection order. Unclassified and
// pending connections receive broadcasts too; a consumer's first message is
// never "register", so it must not miss traffic while unclassified.
func (r *Registry) ViewerIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if s, ok := r.sessions[id]; ok && s.state != StateCapture {
			result = append(result, id)
		}
	}
	return result
}

// Viewer returns the viewer session snapshot for id.
func (r *Registry) Viewer(id string) (ViewerSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok || s.state == StateCapture {
		return ViewerSession{}, false
	}
	return ViewerSession{ID: s.id, WatchedTarget: s.watchedTarget}, true
}

// EvictStale removes every capture client whose heartbeat is older than
// timeout relative to now, and returns the evicted snapshots. Removal and
// eviction are a single locked operation so a client cannot be evicted
// mid-registration.
func (r *Registry) EvictStale(now time.Time, timeout time.Duration) []CaptureClient {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []CaptureClient
	for _, id := range r.captureOrder {
		s, ok := r.sessions[id]
		if !ok || s.state != StateCapture {
			continue
		}
		if now.Sub(s.lastHeartbeat) > timeout {
			evicted = append(evicted, snapshotLocked(s))
		}
	}
	for _, cc := range evicted {
		r.removeLocked(r.sessions[cc.ID])
	}
	return evicted
}

// Stats returns current membership counts.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var st Stats
	for _, s := range r.sessions {
		switch s.state {
		case StateCapture:
			st.CaptureClients++
		case StateViewer:
			st.Viewers++
		default:
			st.Unclassified++
		}
	}
	return st
}

// removeLocked deletes a session and its order entries (caller holds lock).
func (r *Registry) removeLocked(s *session) {
	delete(r.sessions, s.id)
	r.order = deleteID(r.order, s.id)
	if s.state == StateCapture {
		r.captureOrder = deleteID(r.captureOrder, s.id)
	}
}

// snapshotLocked copies a capture session (caller holds lock).
func snapshotLocked(s *session) CaptureClient {
	return CaptureClient{
		ID:            s.id,
		DisplayName:   s.displayName,
		Displays:      append([]protocol.Display(nil), s.displays...),
		LastHeartbeat: s.lastHeartbeat,
	}
}

func deleteID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
