// Package monitor periodically probes the backing services. Its verdict
// gates the action processor: while the relational store is down, learner
// actions accumulate in the local queue instead of failing requests.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/learnstack/backend/internal/infrastructure/buffer"
)

const (
	pgProbeTimeout    = 3 * time.Second
	redisProbeTimeout = 2 * time.Second
)

// Status is one probe round's result, served on the health endpoint.
type Status struct {
	PostgreSQL bool      `json:"postgresql"`
	Redis      bool      `json:"redis"`
	Buffer     bool      `json:"buffer"`
	BufferSize int       `json:"buffer_size"`
	LastCheck  time.Time `json:"last_check"`
}

type Monitor struct {
	pg    *pgxpool.Pool
	redis *redislib.Client
	queue *buffer.Store

	interval time.Duration
	logger   *zap.Logger
	stopCh   chan struct{}

	mu     sync.RWMutex
	status Status
	online bool
	probed bool
}

func New(pg *pgxpool.Pool, redis *redislib.Client, queue *buffer.Store, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		pg:       pg,
		redis:    redis,
		queue:    queue,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

func (m *Monitor) Start() {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.probe()
		for {
			select {
			case <-ticker.C:
				m.probe()
			case <-m.stopCh:
				return
			}
		}
	}()
}

func (m *Monitor) Stop() {
	close(m.stopCh)
}

// IsOnline reports whether both the relational store and the cache answered
// the last probe.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) probe() {
	status := Status{
		PostgreSQL: m.pingPostgres(),
		Redis:      m.pingRedis(),
		LastCheck:  time.Now(),
	}
	if m.queue != nil {
		size, err := m.queue.Len()
		status.Buffer = err == nil
		status.BufferSize = size
		if err != nil {
			m.logger.Warn("action queue probe failed", zap.Error(err))
		}
	}

	online := status.PostgreSQL && status.Redis

	m.mu.Lock()
	transitioned := m.probed && online != m.online
	m.status = status
	m.online = online
	m.probed = true
	m.mu.Unlock()

	if transitioned {
		if online {
			m.logger.Info("backing services reachable, resuming flushes",
				zap.Int("queued_actions", status.BufferSize))
		} else {
			m.logger.Warn("backing services unreachable, buffering locally",
				zap.Bool("postgresql", status.PostgreSQL),
				zap.Bool("redis", status.Redis))
		}
	}
}

func (m *Monitor) pingPostgres() bool {
	if m.pg == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), pgProbeTimeout)
	defer cancel()
	return m.pg.Ping(ctx) == nil
}

func (m *Monitor) pingRedis() bool {
	if m.redis == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisProbeTimeout)
	defer cancel()
	return m.redis.Ping(ctx).Err() == nil
}
