package fraud

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepInterval is how often detector state is pruned.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper runs the detector's periodic state cleanup on a cron schedule.
type Sweeper struct {
	c        *cron.Cron
	detector *Detector
	logger   *slog.Logger
	interval time.Duration
}

// NewSweeper creates a Sweeper for the detector. A non-positive interval
// falls back to the default.
func NewSweeper(detector *Detector, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		c:        cron.New(),
		detector: detector,
		logger:   logger.With("component", "fraud.sweeper"),
		interval: interval,
	}
}

// Start schedules the sweep and stops it when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.c.AddFunc("@every "+s.interval.String(), s.sweep)
	if err != nil {
		return err
	}
	s.c.Start()
	s.logger.Info("fraud sweeper started", "interval", s.interval.String())

	go func() {
		<-ctx.Done()
		stopped := s.c.Stop()
		<-stopped.Done()
	}()
	return nil
}

// Shutdown stops the scheduler, waiting for an in-flight sweep.
func (s *Sweeper) Shutdown(ctx context.Context) error {
	stopped := s.c.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) sweep() {
	before := s.detector.TrackedFingerprints()
	s.detector.Sweep()
	s.logger.Debug("fraud state swept",
		"fingerprints_before", before,
		"fingerprints_after", s.detector.TrackedFingerprints(),
	)
}
