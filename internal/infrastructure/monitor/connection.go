package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pinger is anything the monitor can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// BufferSizer reports the number of parked writes.
type BufferSizer interface {
	Size() (int, error)
}

// Monitor tracks the health of the storefront's dependencies. Postgres is
// required for IsOnline; Redis only backs checkout idempotency and is
// reported without gating.
type Monitor struct {
	pg     Pinger
	redis  Pinger
	buffer BufferSizer

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	logger   *zap.Logger
}

func New(pg, redis Pinger, buf BufferSizer, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		pg:       pg,
		redis:    redis,
		buffer:   buf,
		interval: interval,
		logger:   logger,
	}
}

func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go m.loop(ctx)
}

func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.PostgreSQL
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Refresh(ctx)
	for {
		select {
		case <-ticker.C:
			m.Refresh(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Refresh probes every dependency concurrently and stores the result.
func (m *Monitor) Refresh(ctx context.Context) Status {
	var status Status
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		status.PostgreSQL = probe(gctx, m.pg, 3*time.Second)
		return nil
	})
	g.Go(func() error {
		status.Redis = probe(gctx, m.redis, 2*time.Second)
		return nil
	})
	g.Go(func() error {
		status.Buffer, status.BufferSize = m.checkBuffer()
		return nil
	})
	_ = g.Wait()
	status.LastCheck = time.Now()

	m.mu.Lock()
	previous := m.status
	m.status = status
	m.mu.Unlock()

	if !previous.LastCheck.IsZero() && previous.PostgreSQL != status.PostgreSQL {
		m.logger.Warn("postgres availability changed", zap.Bool("online", status.PostgreSQL))
	}
	return status
}

func probe(ctx context.Context, p Pinger, timeout time.Duration) bool {
	if p == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Ping(ctx) == nil
}

func (m *Monitor) checkBuffer() (bool, int) {
	if m.buffer == nil {
		return false, 0
	}
	size, err := m.buffer.Size()
	if err != nil {
		m.logger.Warn("buffer size check failed", zap.Error(err))
		return false, size
	}
	return true, size
}
