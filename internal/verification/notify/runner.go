package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/metrics"
)

// Task is one best-effort side effect.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// Runner executes side effects off the request path. Submit never blocks:
// when the queue is full the task is dropped and logged. Each task runs
// under its own timeout and a panic inside a task is recovered.
type Runner struct {
	cfg     RunnerConfig
	tasks   chan Task
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	running bool
	closed  bool
	wg      sync.WaitGroup
}

// NewRunner creates a stopped runner.
func NewRunner(cfg RunnerConfig, logger *slog.Logger, m *metrics.Metrics) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:     cfg,
		tasks:   make(chan Task, cfg.QueueSize),
		logger:  logger.With("component", "side_effects"),
		metrics: m,
	}
}

// Start launches the workers. Tasks are detached from ctx values but stop
// being accepted once Stop is called.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running || r.closed {
		return
	}
	r.running = true
	base := context.WithoutCancel(ctx)
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(base)
	}
}

// Stop closes the queue and waits for queued tasks to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.tasks)
	r.mu.Unlock()
	r.wg.Wait()
}

// Submit enqueues a task and reports whether it was accepted.
func (r *Runner) Submit(name string, run func(ctx context.Context) error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.logger.Warn("side effect dropped, runner stopped", "task", name)
		r.metrics.SideEffect(name, "dropped")
		return false
	}
	select {
	case r.tasks <- Task{Name: name, Run: run}:
		return true
	default:
		r.logger.Warn("side effect dropped, queue full", "task", name, "queue_size", r.cfg.QueueSize)
		r.metrics.SideEffect(name, "dropped")
		return false
	}
}

func (r *Runner) worker(base context.Context) {
	defer r.wg.Done()
	for task := range r.tasks {
		r.execute(base, task)
	}
}

func (r *Runner) execute(base context.Context, task Task) {
	ctx, cancel := context.WithTimeout(base, r.cfg.Timeout)
	defer cancel()
	start := time.Now()

	result := "failed"
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
				result = "panic"
			}
		}()
		return task.Run(ctx)
	}()

	if err != nil {
		r.logger.Warn("side effect failed", "task", task.Name, "error", err, "duration", time.Since(start))
		r.metrics.SideEffect(task.Name, result)
		return
	}
	r.metrics.SideEffect(task.Name, "ok")
}
