package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tcpsweep/scanner"
)

// TaskRunner executes queued scan tasks.
type TaskRunner struct {
	store   TaskStore
	scanner *scanner.Scanner
	resolve func(ctx context.Context, host string) (string, error)
	logger  *slog.Logger
}

// NewTaskRunner wires a runner. A nil scanner uses the TCP prober.
func NewTaskRunner(store TaskStore, s *scanner.Scanner, logger *slog.Logger) *TaskRunner {
	if s == nil {
		s = scanner.New(nil, nil)
	}
	return &TaskRunner{
		store:   store,
		scanner: s,
		resolve: scanner.ResolveHost,
		logger:  logger,
	}
}

// StartWorkers launches numWorkers goroutines that process tasks until ctx is
// cancelled. The returned WaitGroup is done once all of them have exited.
func (r *TaskRunner) StartWorkers(ctx context.Context, numWorkers int) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.workerLoop(ctx)
		}()
	}
	return &wg
}

func (r *TaskRunner) workerLoop(ctx context.Context) {
	for {
		taskID, err := r.store.PopFromQueue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Error("worker failed to pop task", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		r.Process(ctx, taskID)
	}
}

// Process runs a single task to a terminal state.
func (r *TaskRunner) Process(ctx context.Context, taskID string) {
	task, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, ErrTaskNotFound) {
			r.logger.Warn("worker task disappeared", "task_id", taskID)
			return
		}
		r.logger.Error("worker failed to load task", "task_id", taskID, "error", err)
		return
	}

	task.Status = StatusRunning
	task.Error = ""
	task.OpenPorts = nil
	task.CompletedAt = nil
	if err := r.store.UpdateTask(ctx, task); err != nil {
		r.logger.Error("worker failed to mark task running", "task_id", taskID, "error", err)
		return
	}

	openPorts, err := r.scan(ctx, task)
	if err != nil {
		r.failTask(ctx, task, err)
		return
	}

	task.Status = StatusCompleted
	task.OpenPorts = openPorts
	now := time.Now().UTC()
	task.CompletedAt = &now
	if err := r.store.UpdateTask(ctx, task); err != nil {
		r.logger.Error("worker failed to update task", "task_id", task.ID, "error", err)
		return
	}
	r.logger.Info("scan task completed",
		"task_id", task.ID,
		"host", task.Host,
		"open_ports", len(openPorts),
		"duration_ms", now.Sub(task.CreatedAt).Milliseconds(),
	)
}

func (r *TaskRunner) scan(ctx context.Context, task *ScanTask) ([]uint16, error) {
	ports, err := scanner.ParsePorts(task.Ports)
	if err != nil {
		return nil, fmt.Errorf("invalid ports: %w", err)
	}

	ip, err := r.resolve(ctx, task.Host)
	if err != nil {
		return nil, err
	}
	task.IP = ip

	return r.scanner.Scan(ctx, ip, ports, task.Workers, task.Timeout())
}

func (r *TaskRunner) failTask(ctx context.Context, task *ScanTask, err error) {
	r.logger.Error("worker task failed", "task_id", task.ID, "error", err)
	task.Status = StatusFailed
	task.Error = err.Error()
	task.OpenPorts = nil
	now := time.Now().UTC()
	task.CompletedAt = &now

	// Record the failure even when ctx was cancelled mid-scan.
	if updateErr := r.store.UpdateTask(context.WithoutCancel(ctx), task); updateErr != nil {
		r.logger.Error("worker failed to persist failed task", "task_id", task.ID, "error", updateErr)
	}
}
