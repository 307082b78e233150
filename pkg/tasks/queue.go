// Package tasks runs background work on a bounded queue with a fixed pool
// of worker goroutines. Document ingestion is its main client: an upload
// enqueues an indexing task and the HTTP handler returns immediately.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config configures the background task queue.
type Config struct {
	QueueSize int           // Buffered queue capacity (default: 64)
	Workers   int           // Worker goroutines (default: 2)
	Timeout   time.Duration // Per-task execution timeout (default: 30m)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		QueueSize: 64,
		Workers:   2,
		Timeout:   30 * time.Minute,
	}
}

var (
	// ErrQueueFull is returned by Enqueue when the queue buffer is at capacity.
	ErrQueueFull = errors.New("task queue is full")
	// ErrQueueClosed is returned by Enqueue after Shutdown has been called.
	ErrQueueClosed = errors.New("task queue is closed")
)

// Queue executes tasks with bounded buffering and bounded concurrency.
// Enqueue never blocks: when the buffer is full the task is rejected and
// the caller decides how to surface that.
type Queue struct {
	config Config
	logger *zap.Logger

	tasks chan Task
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool

	// baseCtx cancels running tasks when the drain deadline expires.
	baseCtx context.Context
	cancel  context.CancelFunc

	completed atomic.Int64
	failed    atomic.Int64
}

// NewQueue creates a new task queue. Call Start to launch the workers.
func NewQueue(config Config, logger *zap.Logger) *Queue {
	if config.QueueSize < 1 {
		config.QueueSize = 64
	}
	if config.Workers < 1 {
		config.Workers = 2
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		config:  config,
		logger:  logger.Named("tasks"),
		tasks:   make(chan Task, config.QueueSize),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines.
func (q *Queue) Start() {
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	q.logger.Info("task queue started",
		zap.Int("workers", q.config.Workers),
		zap.Int("queue_size", q.config.QueueSize),
		zap.Duration("task_timeout", q.config.Timeout))
}

// Enqueue submits a task without blocking.
// Returns ErrQueueFull when the buffer is at capacity and ErrQueueClosed
// after Shutdown.
func (q *Queue) Enqueue(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- task:
		q.logger.Info("task enqueued",
			zap.String("task_id", task.ID()),
			zap.String("task_name", task.Name()),
			zap.Int("queue_depth", len(q.tasks)))
		return nil
	default:
		q.logger.Warn("task queue full, rejecting task",
			zap.String("task_id", task.ID()),
			zap.String("task_name", task.Name()))
		return ErrQueueFull
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()

	for task := range q.tasks {
		q.runTask(id, task)
	}
}

func (q *Queue) runTask(workerID int, task Task) {
	ctx, cancel := context.WithTimeout(q.baseCtx, q.config.Timeout)
	defer cancel()

	start := time.Now()
	q.logger.Info("starting task",
		zap.String("task_id", task.ID()),
		zap.String("task_name", task.Name()),
		zap.Int("worker", workerID))

	err := q.execute(ctx, task)
	if err != nil {
		q.failed.Add(1)
		q.logger.Error("task failed",
			zap.String("task_id", task.ID()),
			zap.String("task_name", task.Name()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}

	q.completed.Add(1)
	q.logger.Info("task completed",
		zap.String("task_id", task.ID()),
		zap.String("task_name", task.Name()),
		zap.Duration("duration", time.Since(start)))
}

// execute isolates panics so a misbehaving task cannot take down a worker.
func (q *Queue) execute(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked",
				zap.String("task_id", task.ID()),
				zap.String("task_name", task.Name()),
				zap.Any("panic", r),
				zap.Stack("stack"))
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	return task.Execute(ctx)
}

// Depth returns the number of tasks waiting in the buffer.
func (q *Queue) Depth() int {
	return len(q.tasks)
}

// Completed returns the number of tasks that finished successfully.
func (q *Queue) Completed() int64 {
	return q.completed.Load()
}

// Failed returns the number of tasks that returned an error or panicked.
func (q *Queue) Failed() int64 {
	return q.failed.Load()
}

// Shutdown stops accepting new tasks and drains queued work.
// Queued tasks are still processed; when ctx expires first, running tasks
// are signalled to stop via context cancellation and ctx.Err() is returned
// without waiting for them.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.logger.Info("task queue draining", zap.Int("queued", len(q.tasks)))

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("task queue drained",
			zap.Int64("completed", q.completed.Load()),
			zap.Int64("failed", q.failed.Load()))
		return nil
	case <-ctx.Done():
		q.cancel()
		q.logger.Warn("task queue drain deadline exceeded, cancelling running tasks")
		return ctx.Err()
	}
}
