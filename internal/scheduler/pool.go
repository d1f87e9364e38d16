// Package scheduler provides delayed dispatch of named reconciliation steps.
// The step logic assumes nothing about the queue beyond "executes the named
// step with the given id no earlier than delay", so the in-process pool here
// can be swapped for an external broker without touching the state machines.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Step names a reconciliation step a job executes against a torrent id.
type Step string

const (
	StepUpdateAndSave        Step = "update_and_save_information"
	StepUpdateAndStopSeeding Step = "update_and_stop_seeding"
)

// Scheduler enqueues a single future invocation of a step.
type Scheduler interface {
	ScheduleAfter(delay time.Duration, step Step, torrentID int64)
}

// StepFunc executes one step invocation. Returning an error stalls the chain;
// recovery is up to an external supervisor re-enqueuing the step.
type StepFunc func(ctx context.Context, torrentID int64) error

// Pool runs scheduled steps on background goroutines. Each job waits out its
// delay off-worker, so a delay never blocks another job's execution.
type Pool struct {
	clk    clock.Clock
	logger *logrus.Logger

	mu    sync.Mutex
	steps map[Step]StepFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(clk clock.Clock, logger *logrus.Logger) *Pool {
	if logger == nil {
		logger = logrus.New()
	}
	return &Pool{
		clk:    clk,
		logger: logger,
		steps:  make(map[Step]StepFunc),
	}
}

// Register binds a step name to its implementation. Must be called before
// Start.
func (p *Pool) Register(step Step, fn StepFunc) {
	p.mu.Lock()
	p.steps[step] = fn
	p.mu.Unlock()
}

// Start makes the pool accept jobs until Shutdown.
func (p *Pool) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
}

// Shutdown cancels pending delays and waits for running steps to return.
func (p *Pool) Shutdown() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// ScheduleAfter enqueues one invocation of step for torrentID, executed no
// earlier than delay from now.
func (p *Pool) ScheduleAfter(delay time.Duration, step Step, torrentID int64) {
	p.mu.Lock()
	fn, ok := p.steps[step]
	p.mu.Unlock()

	logger := p.logger.WithFields(logrus.Fields{
		"job_id":     uuid.NewString(),
		"step":       string(step),
		"torrent_id": torrentID,
	})

	if !ok {
		logger.Error("schedule of unregistered step")
		return
	}
	if p.ctx == nil {
		logger.Error("scheduler pool not started")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("step panicked: %v", r)
			}
		}()

		if delay > 0 {
			select {
			case <-p.ctx.Done():
				return
			case <-p.clk.After(delay):
			}
		} else if err := p.ctx.Err(); err != nil {
			return
		}

		if err := fn(p.ctx, torrentID); err != nil {
			// No retry here: the chain stalls until a supervisor
			// re-enqueues the step.
			logger.Errorf("step failed: %v", err)
		}
	}()
}

var _ Scheduler = (*Pool)(nil)
