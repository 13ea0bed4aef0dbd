package transport

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Peer is one accepted WebSocket connection.
type Peer struct {
	id       string
	operator bool
	conn     *websocket.Conn
	logger   *slog.Logger

	writeTimeout time.Duration

	send    chan []byte
	done    chan struct{}
	dropped atomic.Int64

	closeOnce sync.Once
}

func newPeer(conn *websocket.Conn, operator bool, cfg Config, logger *slog.Logger) *Peer {
	p := &Peer{
		id:           uuid.NewString(),
		operator:     operator,
		conn:         conn,
		logger:       logger,
		writeTimeout: cfg.WriteTimeout,
		send:         make(chan []byte, cfg.SendBufferSize),
		done:         make(chan struct{}),
	}
	go p.writePump()
	return p
}

// ID returns the relay-assigned connection id.
func (p *Peer) ID() string { return p.id }

// Operator reports whether the peer connected as the privileged mirror sink.
func (p *Peer) Operator() bool { return p.operator }

// RemoteAddr returns the peer's network address, for logging.
func (p *Peer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

// TrySend queues data for delivery without blocking. It returns false when
// the peer's buffer is full or the peer is closed; the payload is dropped
// and the next one supersedes it.
func (p *Peer) TrySend(data []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}

	select {
	case p.send <- data:
		return true
	default:
		p.dropped.Add(1)
		return false
	}
}

// Dropped returns how many payloads this peer has missed under pressure.
func (p *Peer) Dropped() int64 {
	return p.dropped.Load()
}

// Close shuts the connection down. Idempotent.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		p.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = p.conn.Close()
	})
	return err
}

// writePump serializes all writes to the underlying connection.
func (p *Peer) writePump() {
	for {
		select {
		case <-p.done:
			return
		case data := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				p.logger.Debug("write failed, closing peer", "error", err)
				p.Close()
				return
			}
		}
	}
}

// readLoop reads until the connection fails and reports messages to the
// handler. Runs on its own goroutine per peer.
func (p *Peer) readLoop(handler Handler) {
	defer p.Close()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			handler.OnDisconnect(p, err)
			return
		}
		handler.OnMessage(p, data)
	}
}
