// Package lifecycle sequences graceful shutdown: components register in
// startup order and are stopped in reverse, under a single deadline.
package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// ShutdownFunc stops one component. It must respect ctx's deadline.
type ShutdownFunc func(ctx context.Context) error

type entry struct {
	name string
	stop ShutdownFunc
}

// Manager collects shutdown hooks and runs them when the process stops.
type Manager struct {
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	entries []entry
}

func New(timeout time.Duration, logger *zap.Logger) *Manager {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{timeout: timeout, logger: logger}
}

// Register appends a named shutdown hook. Registration order is startup
// order; shutdown runs the hooks newest first.
func (m *Manager) Register(name string, stop ShutdownFunc) {
	if stop == nil {
		return
	}
	m.mu.Lock()
	m.entries = append(m.entries, entry{name: name, stop: stop})
	m.mu.Unlock()
}

// Shutdown stops every registered component in reverse order. A failing hook
// is logged and does not prevent the remaining hooks from running.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	var failures error
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		started := time.Now()
		if err := e.stop(ctx); err != nil {
			m.logger.Error("shutdown hook failed",
				zap.String("component", e.name),
				zap.Error(err))
			failures = errors.Join(failures, err)
			continue
		}
		m.logger.Info("component stopped",
			zap.String("component", e.name),
			zap.Duration("took", time.Since(started)))
	}
	return failures
}

// Listen waits for SIGTERM or SIGINT in the background and invokes cancel
// once, letting main fall through to Shutdown.
func (m *Manager) Listen(cancel context.CancelFunc) {
	if cancel == nil {
		return
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigCh)
		sig := <-sigCh
		m.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()
}
