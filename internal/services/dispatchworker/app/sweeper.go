// Package app hosts the dispatch worker runtime: a background sweeper that
// re-attempts notifications stuck in the pending state, plus the gRPC
// health endpoint the deployment probes.
package app

import (
	"context"
	"log"
	"time"

	clientsstorage "github.com/gclavel/assurvie/internal/services/clients/storage"
)

// Config controls the sweep loop behavior.
type Config struct {
	// PollInterval is the pause between sweeps.
	PollInterval time.Duration
	// BatchSize caps how many records one sweep re-attempts.
	BatchSize int
	// StaleAfter is how long a record may sit pending before the sweeper
	// considers its original delivery attempt lost.
	StaleAfter time.Duration
}

const (
	defaultPollInterval = 30 * time.Second
	defaultBatchSize    = 25
	defaultStaleAfter   = 5 * time.Minute
)

func (c Config) normalized() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = defaultStaleAfter
	}
	return c
}

type deliverer interface {
	Deliver(ctx context.Context, record clientsstorage.NotificationRecord, textBody string) clientsstorage.NotificationRecord
}

// Sweeper re-attempts stale pending notification records. Failed records
// are never retried automatically; resending those is an explicit admin
// action.
type Sweeper struct {
	store      clientsstorage.NotificationStore
	dispatcher deliverer
	cfg        Config
	clock      func() time.Time
}

// NewSweeper builds a sweeper. clock may be nil.
func NewSweeper(store clientsstorage.NotificationStore, dispatcher deliverer, cfg Config, clock func() time.Time) *Sweeper {
	if clock == nil {
		clock = time.Now
	}
	return &Sweeper{
		store:      store,
		dispatcher: dispatcher,
		cfg:        cfg.normalized(),
		clock:      clock,
	}
}

// Run sweeps immediately and then on every poll interval until the context
// is canceled. Sweep errors are logged, not fatal.
func (s *Sweeper) Run(ctx context.Context) error {
	if swept, err := s.sweepOnce(ctx); err != nil {
		log.Printf("sweep pending notifications: %v", err)
	} else if swept > 0 {
		log.Printf("re-attempted %d stale pending notifications", swept)
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			swept, err := s.sweepOnce(ctx)
			if err != nil {
				log.Printf("sweep pending notifications: %v", err)
				continue
			}
			if swept > 0 {
				log.Printf("re-attempted %d stale pending notifications", swept)
			}
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) (int, error) {
	cutoff := s.clock().UTC().Add(-s.cfg.StaleAfter)
	records, err := s.store.ListStalePendingNotifications(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	for _, record := range records {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		s.dispatcher.Deliver(ctx, record, "")
	}
	return len(records), nil
}
