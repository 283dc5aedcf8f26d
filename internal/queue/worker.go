package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"timeoff-bot/internal/logger"
)

// Handler processes one envelope. A returned error leaves the message on the queue.
type Handler func(ctx context.Context, env Envelope) error

type workerConfig struct {
	workers          int
	receiveBatchSize int
	receiveWaitSecs  int
}

type WorkerOption func(*workerConfig)

func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds >= 0 && seconds <= 20 {
			cfg.receiveWaitSecs = seconds
		}
	}
}

func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size > 0 && size <= 10 {
			cfg.receiveBatchSize = size
		}
	}
}

// Worker consumes envelopes from a Queue with a fixed number of goroutines.
type Worker struct {
	queue   Queue
	handler Handler
	logger  *slog.Logger
	cfg     workerConfig
	wg      sync.WaitGroup
}

func NewWorker(q Queue, handler Handler, log *slog.Logger, opts ...WorkerOption) *Worker {
	if log == nil {
		log = slog.Default()
	}
	cfg := workerConfig{workers: 1, receiveBatchSize: 1, receiveWaitSecs: 20}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{queue: q, handler: handler, logger: log, cfg: cfg}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("queue worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			w.logger.Debug("queue worker stopping", "worker_id", workerID)
			return
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive envelopes", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.HandleMessage(ctx, msg)
		}
	}
}

// HandleMessage decodes and handles one message and reports whether it should
// be redelivered. Handled and undecodable messages are deleted.
func (w *Worker) HandleMessage(ctx context.Context, msg Message) (redeliver bool) {
	env, err := Decode(msg.Body)
	if err != nil {
		w.logger.Error("dropping undecodable envelope", "error", err, "msg_id", msg.ID)
		w.delete(msg)
		return false
	}

	ctx = logger.WithTraceID(ctx, env.ID)
	if err := w.handler(ctx, env); err != nil {
		w.logger.ErrorContext(ctx, "envelope handling failed", "error", err, "kind", env.Kind, "msg_id", msg.ID)
		return true
	}
	w.delete(msg)
	return false
}

// delete is a no-op without a queue or receipt handle, as for messages handed
// over by a Lambda SQS trigger.
func (w *Worker) delete(msg Message) {
	if w.queue == nil || msg.ReceiptHandle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.queue.Delete(ctx, msg.ReceiptHandle); err != nil {
		w.logger.Error("failed to delete message", "error", err, "msg_id", msg.ID)
	}
}
