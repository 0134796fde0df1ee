package service

import (
	"context"
	"time"

	"capstone/store"

	"github.com/robfig/cron/v3"
)

const sweepTimeout = 5 * time.Minute

// Sweeper removes messages and attachment records left behind by a
// conversation delete that did not complete.
type Sweeper struct {
	store store.MessageStore
}

func NewSweeper(s store.MessageStore) *Sweeper {
	return &Sweeper{store: s}
}

// Sweep runs one pass and returns the number of removed records.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	logger.Infof("[%s] Start scheduled task Sweep", "scheduled task")
	startTime := time.Now()

	n, err := s.store.DeleteOrphans(ctx)
	if err != nil {
		logger.Warnf("[%s] sweep error, %s", "scheduled task", err)
		return 0, err
	}

	logger.Infof("[%s] Finished scheduled task Sweep, removed %d records, cost %v", "scheduled task", n, time.Since(startTime))
	return n, nil
}

// Schedule registers Sweep on c. An empty spec leaves c untouched.
func (s *Sweeper) Schedule(c *cron.Cron, spec string) error {
	if spec == "" {
		return nil
	}
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		_, _ = s.Sweep(ctx)
	})
	return err
}
