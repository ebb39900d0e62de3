// Package sched runs the engine's periodic background jobs (cache sweeps,
// session sweeps, market scans) with an explicit lifecycle so tests can call
// job functions directly instead of waiting on wall-clock timers.
package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/polypilot/engine/internal/logger"
)

// Job is one recurring task. InitialDelay, when set, postpones the first run
// past process start; otherwise the first run waits a full interval.
type Job struct {
	Name         string
	Interval     time.Duration
	InitialDelay time.Duration
	Fn           func(ctx context.Context)
}

type Scheduler struct {
	jobs   []Job
	logger *logger.Logger
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(log *logger.Logger) *Scheduler {
	return &Scheduler{logger: log}
}

func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start launches every job loop. Jobs run until Stop or parent context
// cancellation; a panicking run is logged and the loop keeps going.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}

	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop cancels all job loops and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()

	if job.InitialDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(job.InitialDelay):
			s.run(ctx, job)
		}
	}

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx, job)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in background job", "job", job.Name, "panic", fmt.Sprint(r))
		}
	}()
	s.logger.Debug("running background job", "job", job.Name)
	job.Fn(ctx)
}
