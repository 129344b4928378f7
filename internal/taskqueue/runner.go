package taskqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/errwatch/issue-lifecycle-service/internal/config"
	"github.com/errwatch/issue-lifecycle-service/internal/domain"
	"github.com/errwatch/issue-lifecycle-service/pkg/logger/sl"
)

// Handler processes one task payload. Handlers run at-least-once and must be
// idempotent; a returned error is logged, not retried in-process.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Runner polls the outbox and dispatches claimed tasks to handlers on a small
// worker pool.
type Runner struct {
	outbox   *Outbox
	log      *slog.Logger
	handlers map[string]Handler
	interval time.Duration
	workers  int
}

func NewRunner(outbox *Outbox, log *slog.Logger, cfg config.TaskQueue) *Runner {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	return &Runner{
		outbox:   outbox,
		log:      log,
		handlers: make(map[string]Handler),
		interval: cfg.PollInterval,
		workers:  workers,
	}
}

// Register binds a task name to its handler. Must be called before Run.
func (r *Runner) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Run polls until the context is canceled. It blocks; start it in a goroutine.
func (r *Runner) Run(ctx context.Context) {
	tasks := make(chan *domain.Task)

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for task := range tasks {
				r.dispatch(ctx, task)
			}
		}()
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			for {
				task, err := r.outbox.ClaimNext(ctx)
				if err != nil {
					r.log.Error("failed to claim task", sl.Err(err))
					break
				}

				if task == nil {
					break
				}

				select {
				case tasks <- task:
				case <-ctx.Done():
					break loop
				}
			}
		}
	}

	close(tasks)
	wg.Wait()
}

func (r *Runner) dispatch(ctx context.Context, task *domain.Task) {
	log := r.log.With(
		slog.Int64("task_id", task.ID),
		slog.String("task", task.Name),
	)

	handler, ok := r.handlers[task.Name]
	if !ok {
		log.Warn("no handler registered for task")
		return
	}

	if err := handler(ctx, json.RawMessage(task.Payload)); err != nil {
		log.Error("task handler failed", sl.Err(err))
		return
	}

	log.Info("task processed")
}
