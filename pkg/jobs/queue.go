package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrQueueStopped is returned when enqueueing after Stop or before Start.
	ErrQueueStopped = errors.New("queue is not running")
	// ErrQueueFull is returned when the buffer has no room and the caller must not block.
	ErrQueueFull = errors.New("queue buffer is full")
)

// Task is a unit of background work carrying a typed payload.
type Task[T any] struct {
	ID       string
	Payload  T
	Attempt  int
	Enqueued time.Time
}

// Handler processes one task attempt.
type Handler[T any] func(context.Context, Task[T]) error

// FailureHook is invoked once a task has used up its retries.
type FailureHook[T any] func(Task[T], error)

// QueueConfig configures the worker pool.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	MaxDelay   time.Duration
	Logger     *zap.Logger
}

// Queue fans tasks out to a fixed pool of goroutines and retries failures
// with exponential backoff.
type Queue[T any] struct {
	name      string
	handler   Handler[T]
	onFailure FailureHook[T]
	cfg       QueueConfig
	logger    *zap.Logger

	tasks   chan Task[T]
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
}

// NewQueue builds a stopped queue. Call Start before enqueueing.
func NewQueue[T any](name string, handler Handler[T], cfg QueueConfig) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.RetryDelay {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger,
		tasks:   make(chan Task[T], cfg.BufferSize),
	}
}

// OnFailure registers a hook for tasks dropped after their final attempt.
func (q *Queue[T]) OnFailure(hook FailureHook[T]) {
	q.mu.Lock()
	q.onFailure = hook
	q.mu.Unlock()
}

// Start launches the workers. Repeated calls are no-ops.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	q.running = true
	q.logger.Info("queue started", zap.String("queue", q.name), zap.Int("workers", q.cfg.Workers))
}

// Stop cancels the workers and waits for in-flight tasks to return.
// Buffered tasks that were not picked up are discarded.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Info("queue stopped", zap.String("queue", q.name), zap.Int("discarded", len(q.tasks)))
}

// Enqueue adds a payload without blocking. It returns the task ID.
func (q *Queue[T]) Enqueue(payload T) (string, error) {
	task := Task[T]{ID: uuid.NewString(), Payload: payload, Enqueued: time.Now().UTC()}
	if err := q.push(task); err != nil {
		return "", err
	}
	return task.ID, nil
}

func (q *Queue[T]) push(task Task[T]) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running {
		return fmt.Errorf("%s: %w", q.name, ErrQueueStopped)
	}
	select {
	case q.tasks <- task:
		return nil
	default:
		return fmt.Errorf("%s: %w", q.name, ErrQueueFull)
	}
}

func (q *Queue[T]) work() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case task := <-q.tasks:
			task.Attempt++
			if err := q.handler(q.ctx, task); err != nil {
				q.retry(task, err)
			}
		}
	}
}

func (q *Queue[T]) retry(task Task[T], err error) {
	if task.Attempt > q.cfg.MaxRetries {
		q.logger.Error("task exhausted retries",
			zap.String("queue", q.name),
			zap.String("task_id", task.ID),
			zap.Int("attempts", task.Attempt),
			zap.Error(err))
		q.mu.RLock()
		hook := q.onFailure
		q.mu.RUnlock()
		if hook != nil {
			hook(task, err)
		}
		return
	}

	delay := Backoff(q.cfg.RetryDelay, q.cfg.MaxDelay, task.Attempt)
	q.logger.Warn("task failed, retrying",
		zap.String("queue", q.name),
		zap.String("task_id", task.ID),
		zap.Int("attempt", task.Attempt),
		zap.Duration("delay", delay),
		zap.Error(err))

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if err := q.push(task); err != nil {
				q.logger.Error("failed to requeue task", zap.String("queue", q.name), zap.String("task_id", task.ID), zap.Error(err))
			}
		}
	}()
}

// Backoff doubles base for every attempt after the first, capped at max.
func Backoff(base, max time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	return delay
}
