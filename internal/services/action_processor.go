package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/learnstack/backend/domain"
	"github.com/learnstack/backend/internal/infrastructure/buffer"
	"github.com/learnstack/backend/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the buffer is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// ActionProcessor flushes buffered learner actions to the authoritative
// store. Actions drive activity tracking, so losing one only costs a slightly
// earlier inactivity warning, never correctness.
type ActionProcessor struct {
	store   *buffer.Store
	monitor ConnectionHealth
	actions repository.ActionRepository
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ProcessorConfig
}

func NewActionProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	actions repository.ActionRepository,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *ActionProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ap := &ActionProcessor{
		store:   store,
		monitor: monitor,
		actions: actions,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = ap.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := ap.Drain(ctx); err != nil {
			ap.logger.Error("action buffer drain failed", zap.Error(err))
		}
	})

	return ap
}

// Start launches the cron scheduler.
func (ap *ActionProcessor) Start() {
	if ap == nil || ap.cron == nil {
		return
	}
	ap.cron.Start()
	ap.logger.Info("action processor started")
}

// Stop gracefully stops the scheduler.
func (ap *ActionProcessor) Stop(ctx context.Context) {
	if ap == nil || ap.cron == nil {
		return
	}
	stopCtx := ap.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	ap.logger.Info("action processor stopped")
}

// Drain flushes buffered items synchronously.
func (ap *ActionProcessor) Drain(ctx context.Context) error {
	if ap == nil || ap.store == nil {
		return nil
	}
	if ap.monitor != nil && !ap.monitor.IsOnline() {
		ap.logger.Debug("skipping action drain (offline)")
		return nil
	}

	items, err := ap.store.Peek(ap.cfg.BatchSize)
	if err != nil {
		return err
	}

	actions := make([]domain.Action, 0, len(items))
	valid := make([]buffer.Item, 0, len(items))
	for _, item := range items {
		var action domain.Action
		if err := json.Unmarshal(item.Data, &action); err != nil {
			ap.logger.Warn("dropping corrupt buffered action", zap.String("item_id", item.ID), zap.Error(err))
			_ = ap.store.Ack(item)
			continue
		}
		actions = append(actions, action)
		valid = append(valid, item)
	}
	if len(actions) == 0 {
		return nil
	}

	if err := ap.actions.InsertBatch(ctx, actions); err != nil {
		ap.logger.Error("action batch insert failed", zap.Int("count", len(actions)), zap.Error(err))
		ap.requeueAll(valid)
		return err
	}

	for _, item := range valid {
		if err := ap.store.Ack(item); err != nil {
			ap.logger.Warn("failed to purge flushed action", zap.Error(err))
		}
	}
	return nil
}

// BufferOperation attempts the insert immediately and falls back to persisting
// the item when the store is unreachable.
func (ap *ActionProcessor) BufferOperation(ctx context.Context, item buffer.Item) error {
	if ap == nil || ap.store == nil {
		return fmt.Errorf("action processor not configured")
	}

	if ap.monitor == nil || ap.monitor.IsOnline() {
		var action domain.Action
		if err := json.Unmarshal(item.Data, &action); err == nil {
			if err := ap.actions.InsertBatch(ctx, []domain.Action{action}); err == nil {
				return nil
			} else {
				ap.logger.Warn("immediate action insert failed, buffering", zap.Error(err))
			}
		}
	}
	return ap.store.Enqueue(item)
}

// Size returns the number of buffered items.
func (ap *ActionProcessor) Size() int {
	if ap == nil || ap.store == nil {
		return 0
	}
	size, err := ap.store.Len()
	if err != nil {
		return 0
	}
	return size
}

func (ap *ActionProcessor) requeueAll(items []buffer.Item) {
	for _, item := range items {
		item.Retries++
		if item.Retries >= ap.cfg.MaxRetries {
			ap.logger.Warn("dropping buffered action (max retries reached)", zap.String("item_id", item.ID))
			_ = ap.store.Ack(item)
			continue
		}
		if err := ap.store.Retry(item); err != nil {
			ap.logger.Error("failed to requeue buffered action", zap.Error(err))
		}
	}
}
