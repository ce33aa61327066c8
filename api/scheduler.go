/*
scheduler.go - Periodic stats sampler

PURPOSE:
  Periodically snapshots ledger.Stats into the Prometheus gauges. The clock
  advances without any operation running, so the tick gauge needs a
  heartbeat of its own.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Samples once immediately on Start
  - Stop waits for the goroutine to exit

USAGE:
  sampler := NewStatsSampler(l, metrics, logger)
  sampler.Start()
  // ... later
  sampler.Stop()
*/
package api

import (
	"log/slog"
	"sync"
	"time"

	"github.com/warp/microledger/ledger"
	"github.com/warp/microledger/observability"
)

// StatsSampler feeds ledger stats into metrics gauges.
type StatsSampler struct {
	Ledger        *ledger.Ledger
	Metrics       *observability.Metrics
	CheckInterval time.Duration
	Enabled       bool

	logger *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewStatsSampler creates a sampler with a 15s interval.
func NewStatsSampler(l *ledger.Ledger, m *observability.Metrics, logger *slog.Logger) *StatsSampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsSampler{
		Ledger:        l,
		Metrics:       m,
		CheckInterval: 15 * time.Second,
		Enabled:       m != nil,
		logger:        logger.With("component", "sampler"),
	}
}

// Start begins sampling.
func (s *StatsSampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.logger.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.logger.Info("started", "interval", s.CheckInterval)
}

// Stop stops sampling.
func (s *StatsSampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.logger.Info("stopped")
	}
}

// RunNow samples immediately.
func (s *StatsSampler) RunNow() {
	if s.Metrics != nil {
		s.Metrics.Observe(s.Ledger.Stats())
	}
}

func (s *StatsSampler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	s.RunNow()

	for {
		select {
		case <-ticker.C:
			s.RunNow()
		case <-stop:
			return
		}
	}
}
