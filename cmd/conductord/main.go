// Command conductord is the orchestrator daemon: it serves the HTTP
// control plane and runs the worker pool against a shared store,
// optionally pruning old jobs and worktrees on a cron schedule.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/conductor-oss/conductor/internal/agent"
	"github.com/conductor-oss/conductor/internal/cleanup"
	"github.com/conductor-oss/conductor/internal/config"
	"github.com/conductor-oss/conductor/internal/daemon"
	"github.com/conductor-oss/conductor/internal/eventbus"
	"github.com/conductor-oss/conductor/internal/httpapi"
	"github.com/conductor-oss/conductor/internal/store"
	"github.com/conductor-oss/conductor/internal/worker"
	"github.com/conductor-oss/conductor/internal/worktree"
)

func main() {
	configPath := flag.String("config", "conductor.toml", "path to the TOML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatalf("conductord: %v", err)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	wm, err := worktree.New(cfg.WorktreeBaseDir)
	if err != nil {
		return fmt.Errorf("init worktree manager: %w", err)
	}

	bus := eventbus.New()
	runner := agent.New(cfg.AgentCliPath)

	pool := worker.New(worker.Config{
		Concurrency:     cfg.WorkerConcurrency,
		PollInterval:    time.Duration(cfg.WorkerPollIntervalMs) * time.Millisecond,
		AgentTimeout:    time.Duration(cfg.AgentTimeoutMs) * time.Millisecond,
		ReasoningEffort: cfg.AgentReasoningEffort,
	}, st, wm, runner, bus)

	server := &httpapi.Server{Store: st, Worktrees: wm, Bus: bus}
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.OrchestratorPort),
		Handler: httpapi.NewRouter(server),
	}

	sweeper := cleanup.New(st, wm)
	cron := cleanup.NewCronSweeper(sweeper, cleanup.CronConfig{
		Enabled:  cfg.CleanupCron != "",
		Schedule: cfg.CleanupCron,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := daemon.NewSignalHandler(cancel)
	handler.OnShutdown(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := pool.Shutdown(shutdownCtx); err != nil {
			log.Printf("conductord: worker pool shutdown: %v", err)
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("conductord: http server shutdown: %v", err)
		}
		cron.Stop()
	})
	handler.Start()

	if err := cron.Start(ctx); err != nil {
		return fmt.Errorf("start cleanup cron: %w", err)
	}
	pool.Start(ctx)

	log.Printf("conductord: listening on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}

	handler.Wait()
	return nil
}
