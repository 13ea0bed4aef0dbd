package heartbeat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/screen-relay/internal/registry"
)

// Store is the registry surface the monitor sweeps.
type Store interface {
	EvictStale(now time.Time, timeout time.Duration) []registry.CaptureClient
}

// Config configures the Heartbeat Monitor.
type Config struct {
	Interval time.Duration // sweep interval
	Timeout  time.Duration // max age of a heartbeat before eviction
}

// DefaultConfig returns the reference timing values.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Second,
		Timeout:  15 * time.Second,
	}
}

// Monitor periodically evicts stale capture clients.
type Monitor struct {
	cfg     Config
	store   Store
	onEvict func(registry.CaptureClient)
	logger  *slog.Logger

	// Injectable clock for tests.
	now func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a Heartbeat Monitor. onEvict is called once per evicted
// client, after the registry record is already gone.
func NewMonitor(cfg Config, store Store, onEvict func(registry.CaptureClient), logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	return &Monitor{
		cfg:     cfg,
		store:   store,
		onEvict: onEvict,
		logger:  logger,
		now:     time.Now,
	}
}

// Start begins the sweep loop.
func (m *Monitor) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.sweepLoop()

	m.logger.Info("heartbeat monitor started",
		"interval", m.cfg.Interval,
		"timeout", m.cfg.Timeout,
	)
}

// Stop halts the sweep loop and waits for it to finish.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("heartbeat monitor stopped")
}

func (m *Monitor) sweepLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}

// Sweep evicts every capture client whose heartbeat is older than the
// timeout relative to now. Exposed so tests can drive time directly.
func (m *Monitor) Sweep(now time.Time) {
	evicted := m.store.EvictStale(now, m.cfg.Timeout)
	for _, cc := range evicted {
		m.logger.Warn("heartbeat timeout exceeded, evicting capture client",
			"client_id", cc.ID,
			"display_name", cc.DisplayName,
			"last_heartbeat", cc.LastHeartbeat,
		)
		if m.onEvict != nil {
			m.onEvict(cc)
		}
	}
}
