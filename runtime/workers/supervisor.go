// Package workers contains the supervised background workers: the
// subscribe relay listener and the room reaper run under the Supervisor.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"notify-lab/contract"
	"notify-lab/errors"
)

// Supervisor Own a context and a Cancel function
// Run each worker in a goroutine
// Check panics and errors
// Restart workers with exponential backoff and jitter
// Shutdown properly if parent context is canceled
// Wait for the end of all goroutines via WaitGroup
type Supervisor struct {
	mu       sync.Mutex
	cancel   context.CancelFunc
	stopped  bool
	wg       *sync.WaitGroup
	log      *slog.Logger
	workers  []contract.Worker
	baseWait time.Duration
	maxWait  time.Duration
}

func NewSupervisor(log *slog.Logger, baseWait, maxWait time.Duration) *Supervisor {
	if baseWait <= 0 {
		baseWait = 200 * time.Millisecond
	}
	if maxWait < baseWait {
		maxWait = 30 * time.Second
	}
	return &Supervisor{wg: &sync.WaitGroup{}, log: log, baseWait: baseWait, maxWait: maxWait}
}

// Run blocks until every supervised worker has stopped.
// A local cancellation trigger is tied to the parent ctx: if the parent
// cancels, the children cancel; if Stop is called, only our children
// cancel. A Stop that raced ahead of Run wins: nothing starts.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.cancel = cancel
	s.mu.Unlock()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Start runs a worker under supervision.
// The worker is executed in a dedicated goroutine. If its Run method
// panics or returns an error, the supervisor restarts it after a
// backoff that doubles on every consecutive failure (plus jitter, so a
// fleet of instances does not hammer a recovering broker in lockstep).
// A clean return is final: the worker is not restarted.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		wait := s.baseWait
		for {
			if ctx.Err() != nil {
				s.log.Info(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			started := time.Now()
			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				// Terminated properly, never restart !
				s.log.Info(fmt.Sprintf("Worker finished : %s", workerName))
				return
			}

			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", workerName)
				return
			}

			// A worker that held on for a while had a working
			// connection; its next failure starts over from the base.
			if time.Since(started) > s.maxWait {
				wait = s.baseWait
			}

			delay := withJitter(wait)
			s.log.Warn("Worker crashed, restarting",
				"name", workerName, "error", err, "backoff", delay)

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			wait *= 2
			if wait > s.maxWait {
				wait = s.maxWait
			}
		}
	}()
}

// Stop Cancel all goroutines listening channel for Ctx.Done
// Supervisor will wait for all goroutines to finish
func (s *Supervisor) Stop() {
	s.mu.Lock()
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// withJitter spreads a delay over [d/2, 3d/2).
func withJitter(d time.Duration) time.Duration {
	half := d / 2
	return half + rand.N(d)
}
