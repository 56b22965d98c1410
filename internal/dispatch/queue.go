package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cancelkit/cancelkit/internal/pending"
)

// queueKey is the Redis list holding confirmed tokens awaiting dispatch
const queueKey = "dispatch:queue"

// Queue hands confirmed cancellation batches to the worker pool through
// a Redis list, so a confirmation survives a process restart.
type Queue struct {
	redis *redis.Client
}

// NewQueue creates a dispatch queue
func NewQueue(client *redis.Client) *Queue {
	return &Queue{redis: client}
}

// Enqueue pushes a confirmed token onto the dispatch queue
func (q *Queue) Enqueue(ctx context.Context, token string) error {
	if err := q.redis.LPush(ctx, queueKey, token).Err(); err != nil {
		return fmt.Errorf("enqueueing dispatch for token: %w", err)
	}
	return nil
}

// Length returns the number of batches waiting for a worker
func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, queueKey).Result()
}

// Worker consumes the dispatch queue with a pool of goroutines
type Worker struct {
	queue      *Queue
	dispatcher *Dispatcher
	store      *pending.Store
	numWorkers int
	logger     *log.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewWorker creates a dispatch worker pool; numWorkers <= 0 defaults to 2
func NewWorker(queue *Queue, dispatcher *Dispatcher, store *pending.Store, numWorkers int, logger *log.Logger) *Worker {
	if numWorkers <= 0 {
		numWorkers = 2
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Worker{
		queue:      queue,
		dispatcher: dispatcher,
		store:      store,
		numWorkers: numWorkers,
		logger:     logger,
	}
}

// Start begins the worker goroutines
func (w *Worker) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("dispatch worker already running")
	}
	w.running = true
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.mu.Unlock()

	w.logger.Printf("[DispatchWorker] Starting %d workers", w.numWorkers)
	for i := 0; i < w.numWorkers; i++ {
		w.wg.Add(1)
		go w.worker(i)
	}
	return nil
}

// Stop drains the pool and waits for in-flight batches to finish
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.cancel()
	w.mu.Unlock()

	w.logger.Println("[DispatchWorker] Stopping workers...")
	w.wg.Wait()
	w.logger.Println("[DispatchWorker] Stopped")
}

// worker is the consume loop for one goroutine
func (w *Worker) worker(workerNum int) {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			res, err := w.queue.redis.BRPop(w.ctx, time.Second, queueKey).Result()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				if w.ctx.Err() != nil {
					return
				}
				w.logger.Printf("[DispatchWorker %d] queue error: %v", workerNum, err)
				time.Sleep(time.Second)
				continue
			}
			// BRPop returns [key, value]
			if len(res) == 2 {
				w.process(res[1])
			}
		}
	}
}

// process runs one token through the dispatcher
func (w *Worker) process(token string) {
	ctx, cancel := context.WithTimeout(w.ctx, 2*time.Minute)
	defer cancel()

	req, err := w.store.Lookup(ctx, token)
	if errors.Is(err, pending.ErrNotFound) {
		// Expired or already consumed between confirm and pickup
		w.logger.Printf("[DispatchWorker] token no longer pending, skipping")
		return
	}
	if err != nil {
		w.logger.Printf("[DispatchWorker] looking up token: %v", err)
		return
	}

	if ok := w.dispatcher.HandleDeregisterRequest(ctx, req); !ok {
		w.logger.Printf("[DispatchWorker] batch for %s finished without summary", req.Contact.Email)
	}
}
