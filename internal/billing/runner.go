// Copyright 2026 The PropDesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package billing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/propdesk/propdesk/internal/observability/logger"
)

const recomputeLeaseKey = "propdesk:billing:recompute"

// Recomputer runs a full billing recomputation
type Recomputer interface {
	RecomputeAll(ctx context.Context) (*RecomputeReport, error)
}

// Lease grants one holder at a time the right to run a job across replicas.
// release is non-nil only when held is true.
type Lease interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (held bool, release func(context.Context) error, err error)
}

// RunnerConfig configures the scheduled recomputation
type RunnerConfig struct {
	Interval time.Duration
	Timeout  time.Duration

	// RunOnStart triggers one recomputation immediately instead of waiting a full interval
	RunOnStart bool

	// StopTimeout bounds how long Stop waits for an in-flight run
	StopTimeout time.Duration
}

// Runner recomputes tenant billing state on a fixed schedule
type Runner struct {
	recomputer Recomputer
	lease      Lease
	cfg        RunnerConfig

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRunner creates a new scheduled runner. lease may be nil for single-replica deployments.
func NewRunner(recomputer Recomputer, lease Lease, cfg RunnerConfig) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Timeout <= 0 || cfg.Timeout > cfg.Interval {
		cfg.Timeout = cfg.Interval
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 30 * time.Second
	}

	return &Runner{
		recomputer: recomputer,
		lease:      lease,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the schedule in a background goroutine
func (r *Runner) Start() {
	slog.Info("starting billing recompute runner",
		slog.Duration("interval", r.cfg.Interval),
		slog.Bool("distributed_lease", r.lease != nil),
	)

	r.wg.Add(1)
	go r.loop()
}

// Stop halts the schedule and waits for an in-flight run, up to StopTimeout
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("billing recompute runner stopped")
	case <-time.After(r.cfg.StopTimeout):
		slog.Warn("billing recompute runner stop timed out")
	}
}

func (r *Runner) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	if r.cfg.RunOnStart {
		r.RunOnce()
	}

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.RunOnce()
		}
	}
}

// leaseTTL keeps the lease for one interval, less a small margin so the
// holder's own next tick finds the key expired.
func (r *Runner) leaseTTL() time.Duration {
	return r.cfg.Interval - r.cfg.Interval/20
}

// RunOnce performs a single scheduled recomputation, honouring the lease.
// It reports whether this replica ran the batch.
//
// A successful run keeps the lease until it expires, so replicas whose tickers
// are out of phase skip the rest of the interval. A failed run releases it
// and leaves the tick to whichever replica fires next.
func (r *Runner) RunOnce() bool {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	defer cancel()

	go func() {
		select {
		case <-r.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	var release func(context.Context) error
	if r.lease != nil {
		held, rel, err := r.lease.Acquire(ctx, recomputeLeaseKey, r.leaseTTL())
		if err != nil {
			slog.ErrorContext(ctx, "failed to acquire recompute lease", logger.Error(err))
			return false
		}
		if !held {
			slog.DebugContext(ctx, "recompute lease held by another replica, skipping")
			return false
		}
		release = rel
	}

	if _, err := r.recomputer.RecomputeAll(ctx); err != nil {
		slog.ErrorContext(ctx, "scheduled billing recompute failed", logger.Error(err))
		if release != nil {
			// fresh context: the run's own context may already be cancelled
			relCtx, relCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer relCancel()
			if err := release(relCtx); err != nil {
				slog.Warn("failed to release recompute lease", logger.Error(err))
			}
		}
	}
	return true
}
