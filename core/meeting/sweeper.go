package meeting

import (
	"context"
	"fmt"
	"time"

	"github.com/sathyagomani/academy/core"
)

// Sweeper periodically purges meetings past their deletion deadline. It is
// owned by the process lifecycle: started on boot, stopped on shutdown. Each
// sweep is idempotent, and a failing sweep only logs; the next tick retries.
type Sweeper struct {
	repo     Repository
	logger   core.Logger
	interval time.Duration
	stopChan chan struct{}
	nowFunc  func() time.Time // mockable
}

func NewSweeper(repo Repository, logger core.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{
		repo:     repo,
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
		nowFunc:  time.Now,
	}
}

// Start launches the sweep loop in the background. The first sweep runs
// immediately so a restart does not leave stale meetings around for a full
// interval.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("starting meeting sweeper")
	go s.run(ctx)
}

// Stop terminates the sweep loop.
func (s *Sweeper) Stop() {
	s.logger.Info("stopping meeting sweeper")
	close(s.stopChan)
}

func (s *Sweeper) run(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-s.stopChan:
			s.logger.Info("meeting sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("meeting sweeper cancelled")
			return
		}
	}
}

// Sweep deletes all meetings whose deletion deadline has passed. Storage
// errors never propagate; they are logged and the loop carries on.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.nowFunc().UTC()
	n, err := s.repo.DeleteMeetingsDue(ctx, now)
	if err != nil {
		s.logger.Error(fmt.Sprintf("sweeping expired meetings: %v", err), err)
		return
	}
	if n > 0 {
		s.logger.Info(fmt.Sprintf("auto-deleted %d expired meeting(s)", n))
	}
}
