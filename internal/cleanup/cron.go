package cleanup

import (
	"context"
	"log"
	"sync"

	"github.com/robfig/cron/v3"
)

// CronConfig configures the daemon's scheduled sweep.
type CronConfig struct {
	Enabled  bool
	Schedule string // standard five-field cron expression
	Filter   Filter
}

// CronSweeper runs a Sweeper's Run on a cron schedule, logging the
// result of each pass rather than erroring the daemon.
type CronSweeper struct {
	sweeper *Sweeper
	cfg     CronConfig
	cron    *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewCronSweeper builds a scheduled sweep bound to sweeper.
func NewCronSweeper(sweeper *Sweeper, cfg CronConfig) *CronSweeper {
	return &CronSweeper{sweeper: sweeper, cfg: cfg, cron: cron.New()}
}

// Start registers and starts the schedule. A no-op if disabled or
// already running.
func (c *CronSweeper) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || !c.cfg.Enabled {
		return nil
	}

	_, err := c.cron.AddFunc(c.cfg.Schedule, func() {
		result, err := c.sweeper.Run(ctx, c.cfg.Filter)
		if err != nil {
			log.Printf("cleanup: scheduled sweep failed: %v", err)
			return
		}
		log.Printf("cleanup: scheduled sweep removed %d jobs, %d worktrees, %d repo caches",
			len(result.JobsDeleted), len(result.WorktreesRemoved), len(result.RepoCachesPruned))
	})
	if err != nil {
		return err
	}

	c.cron.Start()
	c.running = true
	return nil
}

// Stop halts the schedule, waiting for any in-flight sweep to finish.
func (c *CronSweeper) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	<-c.cron.Stop().Done()
	c.running = false
}
