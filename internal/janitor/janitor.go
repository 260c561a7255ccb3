// Package janitor abandons conversations that have gone idle.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Abandoner is the storage capability the janitor needs.
type Abandoner interface {
	AbandonIdle(ctx context.Context, cutoff time.Time) (int, error)
}

type Janitor struct {
	store        Abandoner
	abandonAfter time.Duration
	interval     time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

func New(store Abandoner, abandonAfter, interval time.Duration, logger *zap.Logger) *Janitor {
	return &Janitor{
		store:        store,
		abandonAfter: abandonAfter,
		interval:     interval,
		logger:       logger,
		now:          time.Now,
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
// A zero abandonAfter disables sweeping. Overlapping sweeps are skipped.
func (j *Janitor) Run(ctx context.Context) error {
	if j.abandonAfter <= 0 || j.interval <= 0 {
		j.logger.Info("Conversation sweeper disabled")
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc("@every "+j.interval.String(), func() { j.Sweep(ctx) }); err != nil {
		return fmt.Errorf("schedule sweeper: %w", err)
	}

	j.Sweep(ctx)
	c.Start()
	j.logger.Info("Conversation sweeper started",
		zap.Duration("abandon_after", j.abandonAfter),
		zap.Duration("interval", j.interval))

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// Sweep abandons every active conversation idle for longer than abandonAfter.
func (j *Janitor) Sweep(ctx context.Context) int {
	cutoff := j.now().Add(-j.abandonAfter)
	n, err := j.store.AbandonIdle(ctx, cutoff)
	if err != nil {
		j.logger.Error("Failed to abandon idle conversations", zap.Error(err))
		return 0
	}
	if n > 0 {
		j.logger.Info("Abandoned idle conversations",
			zap.Int("count", n),
			zap.Time("cutoff", cutoff))
	}
	return n
}
