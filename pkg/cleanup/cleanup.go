// Package cleanup runs the periodic maintenance jobs: TTL store sweeps,
// request-context expiry with temp-file unlinking, and SSE broker idle
// stream expiry. All jobs share one scheduler goroutine.
package cleanup

import (
	"os"
	"sync"
	"time"

	"github.com/marmos91/imgforge/internal/logger"
	"github.com/marmos91/imgforge/pkg/optimize"
	"github.com/marmos91/imgforge/pkg/reqcontext"
	"github.com/marmos91/imgforge/pkg/sse"
	"github.com/marmos91/imgforge/pkg/ttlstore"
)

const (
	// DefaultSweepInterval is the TTL store sweep cadence.
	DefaultSweepInterval = 5 * time.Minute

	// DefaultContextInterval is the request-context sweep cadence.
	DefaultContextInterval = time.Hour
)

// Config tunes the scheduler.
type Config struct {
	SweepInterval   time.Duration
	ContextInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.ContextInterval <= 0 {
		c.ContextInterval = DefaultContextInterval
	}
	return c
}

// Scheduler owns the maintenance loop.
type Scheduler struct {
	cfg    Config
	store  *ttlstore.Store[any]
	broker *sse.Broker

	// evict runs for every entry removed by the context sweep.
	evict func(key string, value any)

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// New creates a scheduler over the shared TTL store and SSE broker.
func New(store *ttlstore.Store[any], broker *sse.Broker, cfg Config) *Scheduler {
	return &Scheduler{
		cfg:    cfg.withDefaults(),
		store:  store,
		broker: broker,
		evict:  UnlinkTempFiles,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the scheduler goroutine. Safe to call once.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		go s.loop()
	})
}

// Stop halts the scheduler and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}

func (s *Scheduler) loop() {
	defer close(s.done)

	sweep := time.NewTicker(s.cfg.SweepInterval)
	defer sweep.Stop()
	contexts := time.NewTicker(s.cfg.ContextInterval)
	defer contexts.Stop()

	logger.Debug("cleanup scheduler started",
		"sweep_interval", s.cfg.SweepInterval.String(),
		"context_interval", s.cfg.ContextInterval.String())

	for {
		select {
		case <-s.stop:
			return
		case <-sweep.C:
			s.runSweep()
		case <-contexts.C:
			s.runContextSweep()
		}
	}
}

// runSweep evicts expired TTL entries and idle SSE streams. It runs the
// unlink hook too: the frequent sweep removes most expired contexts, so
// skipping the hook here would leave their temp files to pile up until the
// hourly pass.
func (s *Scheduler) runSweep() {
	start := time.Now()
	evicted := s.store.SweepFunc(s.evict)
	dropped := s.broker.Sweep()

	if evicted > 0 || dropped > 0 {
		logger.Info("cleanup sweep finished",
			logger.KeyEvicted, evicted,
			"streams_dropped", dropped,
			logger.KeyDurationMs, logger.Duration(start))
	}
}

// runContextSweep evicts expired entries with the unlink hook, so temp
// files belonging to dead request contexts do not accumulate.
func (s *Scheduler) runContextSweep() {
	start := time.Now()
	evicted := s.store.SweepFunc(s.evict)

	if evicted > 0 {
		logger.Info("context sweep finished",
			logger.KeyEvicted, evicted,
			logger.KeyDurationMs, logger.Duration(start))
	}
}

// UnlinkTempFiles removes the on-disk temp uploads of an evicted
// controller-params context. Other entry kinds are ignored.
func UnlinkTempFiles(key string, value any) {
	entry, ok := value.(reqcontext.Entry[optimize.Params])
	if !ok {
		return
	}

	for _, f := range entry.Value.Files {
		if f.TempPath == "" {
			continue
		}
		if err := os.Remove(f.TempPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("cannot unlink orphaned temp file",
				"path", f.TempPath, logger.KeyError, err)
		}
	}
}
