package fsrpad

import (
	"context"
	"sync"
	"time"

	log "github.com/inconshreveable/log15"
)

// Sampler drives a pad from its own goroutine and publishes the pad status
// for concurrent readers.
type Sampler struct {
	pad      *Pad
	interval time.Duration
	log      log.Logger

	mu     sync.RWMutex
	status Status
}

// NewSampler returns a sampler calling pad.Tick every interval.
func NewSampler(pad *Pad, interval time.Duration) *Sampler {
	return &Sampler{
		pad:      pad,
		interval: interval,
		log:      log.New("module", "sampler"),
	}
}

// Run ticks the pad until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) error {
	s.log.Info("Sampling pad", "interval", s.interval)
	s.pad.Begin()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Sampler stopped")
			return nil
		case <-ticker.C:
			s.pad.Tick()
			ticksTotal.Inc()

			status := s.pad.Status()
			s.mu.Lock()
			s.status = status
			s.mu.Unlock()
		}
	}
}

// Status returns the status recorded after the last tick.
func (s *Sampler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}
