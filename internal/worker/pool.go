// Package worker runs the bounded-concurrency pool that claims pending
// jobs from the store and drives each one through its agent subprocess,
// worktree, and commit/push lifecycle.
package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/conductor-oss/conductor/internal/agent"
	"github.com/conductor-oss/conductor/internal/eventbus"
	"github.com/conductor-oss/conductor/internal/store"
	"github.com/conductor-oss/conductor/internal/worktree"
)

// Config tunes one Pool.
type Config struct {
	WorkerType      string
	Concurrency     int
	PollInterval    time.Duration
	AgentTimeout    time.Duration
	ReasoningEffort string
	TestCommand     []string // defaults to ["npm", "test"] when nil
}

// Pool runs Config.Concurrency goroutines, each polling Store.ClaimOldest
// and running HandleJob against whatever it claims.
type Pool struct {
	cfg       Config
	store     *store.Store
	worktrees *worktree.Manager
	agents    *agent.Runner
	bus       *eventbus.Bus

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Pool. Call Start to begin polling.
func New(cfg Config, st *store.Store, wm *worktree.Manager, ar *agent.Runner, bus *eventbus.Bus) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.WorkerType == "" {
		cfg.WorkerType = "default"
	}
	return &Pool{cfg: cfg, store: st, worktrees: wm, agents: ar, bus: bus}
}

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.loop(ctx)
	}
}

// Shutdown cancels the shared context and waits for in-flight HandleJob
// calls to return, bounded by ctx's own deadline.
func (p *Pool) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) loop(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.store.ClaimOldest(ctx, p.cfg.WorkerType)
		if err != nil {
			log.Printf("worker: claim failed: %v", err)
			sleep(ctx, p.cfg.PollInterval)
			continue
		}
		if job == nil {
			sleep(ctx, p.cfg.PollInterval)
			continue
		}

		h := &handler{pool: p}
		// A claimed job runs to completion even if Shutdown cancels ctx.
		if err := h.HandleJob(context.WithoutCancel(ctx), job); err != nil {
			log.Printf("worker: job %s failed: %v", job.ID, err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
