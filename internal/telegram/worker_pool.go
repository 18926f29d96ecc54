package telegram

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/transcribot/transcribot/internal/logger"
	"github.com/transcribot/transcribot/internal/metrics"
)

// UpdateFunc processes one update
type UpdateFunc func(ctx context.Context, update tgbotapi.Update) error

// WorkerPool processes updates concurrently across chats while keeping each
// chat's updates in arrival order: a chat is always served by the same worker.
type WorkerPool struct {
	handle  UpdateFunc
	metrics *metrics.Collector
	queues  []chan tgbotapi.Update
	queued  atomic.Int64

	// Lifecycle management
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex

	shutdownTimeout time.Duration
}

// WorkerPoolConfig holds configuration for the worker pool
type WorkerPoolConfig struct {
	Workers         int // Number of workers, each owning a shard of chats
	QueueSize       int // Buffered updates per worker
	ShutdownTimeout time.Duration
}

// DefaultWorkerPoolConfig returns a sensible default configuration
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Workers:         32,
		QueueSize:       64,
		ShutdownTimeout: 30 * time.Second,
	}
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(handle UpdateFunc, config WorkerPoolConfig, collector *metrics.Collector) *WorkerPool {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 30 * time.Second
	}
	if collector == nil {
		collector = metrics.NewCollector(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	queues := make([]chan tgbotapi.Update, config.Workers)
	for i := range queues {
		queues[i] = make(chan tgbotapi.Update, config.QueueSize)
	}

	return &WorkerPool{
		handle:          handle,
		metrics:         collector,
		queues:          queues,
		ctx:             ctx,
		cancel:          cancel,
		shutdownTimeout: config.ShutdownTimeout,
	}
}

// Start initializes and starts all worker goroutines
func (wp *WorkerPool) Start() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.started {
		return fmt.Errorf("worker pool already started")
	}

	logger.Info("Starting worker pool", map[string]interface{}{
		"workers":    len(wp.queues),
		"queue_size": cap(wp.queues[0]),
	})

	for i := range wp.queues {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	wp.started = true
	return nil
}

// Stop closes the queues and waits for queued updates to be processed
func (wp *WorkerPool) Stop() error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.started {
		return fmt.Errorf("worker pool not started")
	}

	logger.InfoMsg("Stopping worker pool...")

	for _, q := range wp.queues {
		close(q)
	}
	wp.started = false

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.cancel()
		logger.InfoMsg("Worker pool stopped gracefully")
		return nil
	case <-time.After(wp.shutdownTimeout):
		wp.cancel()
		logger.Warn("Worker pool shutdown timed out", nil)
		return fmt.Errorf("worker pool shutdown timed out")
	}
}

// Submit queues update on the worker that owns chatID. It does not block:
// a full queue drops the update.
func (wp *WorkerPool) Submit(chatID int64, update tgbotapi.Update) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if !wp.started {
		return fmt.Errorf("worker pool not started")
	}

	q := wp.queues[wp.shard(chatID)]
	select {
	case q <- update:
		wp.metrics.SetQueueDepth(int(wp.queued.Add(1)))
		return nil
	default:
		logger.Warn("Worker queue full, dropping update", map[string]interface{}{
			"chat_id":   chatID,
			"update_id": update.UpdateID,
		})
		return fmt.Errorf("worker queue full")
	}
}

func (wp *WorkerPool) shard(chatID int64) int {
	if chatID < 0 {
		chatID = -chatID
	}
	return int(chatID % int64(len(wp.queues)))
}

func (wp *WorkerPool) worker(workerID int) {
	defer wp.wg.Done()

	logger.Debug("Worker started", map[string]interface{}{
		"worker_id": workerID,
	})

	for update := range wp.queues[workerID] {
		wp.metrics.SetQueueDepth(int(wp.queued.Add(-1)))
		wp.process(workerID, update)
	}

	logger.Debug("Worker stopping", map[string]interface{}{
		"worker_id": workerID,
	})
}

// process runs one update, recovering from panics so the worker survives
func (wp *WorkerPool) process(workerID int, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Worker panic recovered", map[string]interface{}{
				"worker_id": workerID,
				"update_id": update.UpdateID,
				"panic":     r,
			})
		}
	}()

	startTime := time.Now()
	if err := wp.handle(wp.ctx, update); err != nil {
		logger.Error("Error processing update", map[string]interface{}{
			"worker_id": workerID,
			"update_id": update.UpdateID,
			"error":     err.Error(),
		})
	}

	logger.Debug("Update processed", map[string]interface{}{
		"worker_id": workerID,
		"update_id": update.UpdateID,
		"duration":  time.Since(startTime).String(),
	})
}

// GetStats returns current worker pool statistics
func (wp *WorkerPool) GetStats() map[string]interface{} {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	return map[string]interface{}{
		"started":        wp.started,
		"workers":        len(wp.queues),
		"queued_updates": wp.queued.Load(),
		"queue_capacity": cap(wp.queues[0]) * len(wp.queues),
	}
}
