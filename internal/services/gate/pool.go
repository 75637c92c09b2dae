package gate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/advisorai/admission-gate/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Task is one unit of gated work. The context carries the per-class
// deadline; tasks that ignore it still get abandoned at the deadline.
type Task func(ctx context.Context) (any, error)

type taskSlot struct {
	fn       Task
	enqueued time.Time
	result   chan models.GateResult
}

// Pool is a fixed-size worker pool for one operation class. Workers
// race each task against the class timeout; whichever resolves first
// determines the outcome. running never exceeds the configured
// concurrency; the queue is monitored for saturation rather than
// bounded.
type Pool struct {
	class models.GateClass
	cfg   models.GateClassConfig

	tasks chan *taskSlot

	queued    atomic.Int64
	running   atomic.Int64
	completed atomic.Int64
	timedOut  atomic.Int64

	workerWg sync.WaitGroup
	inflight sync.WaitGroup

	killed   chan struct{}
	stopOnce sync.Once
	draining atomic.Bool
}

// NewPool starts the workers for one class.
func NewPool(class models.GateClass, cfg models.GateClassConfig) *Pool {
	queueCap := cfg.IntervalCap * 8
	if queueCap < 1024 {
		queueCap = 1024
	}

	p := &Pool{
		class:  class,
		cfg:    cfg,
		tasks:  make(chan *taskSlot, queueCap),
		killed: make(chan struct{}),
	}

	for range cfg.Concurrency {
		p.workerWg.Add(1)
		go p.run()
	}

	return p
}

// Submit enqueues fn and blocks until it completes or times out.
func (p *Pool) Submit(ctx context.Context, fn Task) models.GateResult {
	if p.draining.Load() {
		return models.GateResult{Err: fmt.Errorf("pool %s is draining", p.class)}
	}
	select {
	case <-p.killed:
		return models.GateResult{Err: fmt.Errorf("pool %s is stopped", p.class)}
	default:
	}

	slot := &taskSlot{
		fn:       fn,
		enqueued: time.Now(),
		result:   make(chan models.GateResult, 1),
	}

	p.inflight.Add(1)
	p.queued.Add(1)

	select {
	case p.tasks <- slot:
	case <-p.killed:
		p.queued.Add(-1)
		p.inflight.Done()
		return models.GateResult{Err: fmt.Errorf("pool %s is stopped", p.class)}
	case <-ctx.Done():
		p.queued.Add(-1)
		p.inflight.Done()
		return models.GateResult{Err: ctx.Err()}
	}

	select {
	case res := <-slot.result:
		return res
	case <-p.killed:
		return models.GateResult{Err: fmt.Errorf("pool %s was stopped while task was in flight", p.class)}
	}
}

func (p *Pool) run() {
	defer p.workerWg.Done()

	for {
		select {
		case <-p.killed:
			return
		case slot := <-p.tasks:
			p.execute(slot)
		}
	}
}

func (p *Pool) execute(slot *taskSlot) {
	p.queued.Add(-1)
	p.running.Add(1)
	defer func() {
		p.running.Add(-1)
		p.inflight.Done()
	}()

	started := time.Now()
	queueTime := started.Sub(slot.enqueued)

	timeout := time.Duration(p.cfg.TimeoutMs) * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := slot.fn(ctx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		p.completed.Add(1)
		slot.result <- models.GateResult{
			Success:   out.err == nil,
			Value:     out.value,
			Err:       out.err,
			QueueTime: queueTime,
			ExecTime:  time.Since(started),
		}
	case <-ctx.Done():
		// The task goroutine keeps running until it observes the
		// context; its eventual value is discarded.
		p.timedOut.Add(1)
		fiberlog.Warnf("Gate: task in class %s exceeded %v deadline", p.class, timeout)
		slot.result <- models.GateResult{
			Err:       models.NewTimeoutError(string(p.class), ctx.Err()),
			QueueTime: queueTime,
			ExecTime:  time.Since(started),
			TimedOut:  true,
		}
	case <-p.killed:
		slot.result <- models.GateResult{
			Err:       fmt.Errorf("pool %s was killed", p.class),
			QueueTime: queueTime,
			ExecTime:  time.Since(started),
		}
	}
}

// Overloaded reports the saturation predicate: pending work above 80%
// of the interval cap. Monotonic in queued and running.
func (p *Pool) Overloaded() bool {
	pending := p.queued.Load() + p.running.Load()
	return float64(pending) > 0.8*float64(p.cfg.IntervalCap)
}

// Stats returns a point-in-time snapshot.
func (p *Pool) Stats() models.PoolStats {
	running := int(p.running.Load())
	return models.PoolStats{
		Class:       p.class,
		Queued:      int(p.queued.Load()),
		Running:     running,
		Idle:        p.cfg.Concurrency - running,
		Concurrency: p.cfg.Concurrency,
		IntervalCap: p.cfg.IntervalCap,
		Completed:   p.completed.Load(),
		TimedOut:    p.timedOut.Load(),
		Overloaded:  p.Overloaded(),
	}
}

// Drain stops accepting new submissions and returns once every
// in-flight task has resolved.
func (p *Pool) Drain() {
	p.draining.Store(true)
	p.inflight.Wait()
	p.stop()
	p.workerWg.Wait()
}

// Kill abandons all in-flight tasks immediately. Emergency resets only.
func (p *Pool) Kill() {
	p.draining.Store(true)
	p.stop()

	// Fail any slots that never reached a worker.
	for {
		select {
		case slot := <-p.tasks:
			p.queued.Add(-1)
			p.inflight.Done()
			slot.result <- models.GateResult{Err: fmt.Errorf("pool %s was killed", p.class)}
		default:
			return
		}
	}
}

func (p *Pool) stop() {
	p.stopOnce.Do(func() {
		close(p.killed)
	})
}
