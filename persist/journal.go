package persist

import (
	"context"
	"log"
	"sync"
	"time"
)

// Journal decouples the real-time path from storage I/O. Writes are handed
// to a single worker goroutine through a bounded queue; overflow drops the
// record and failures are logged, never propagated back to a tick.
type Journal struct {
	store    Store
	queue    chan func(context.Context) error
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	logger   *log.Logger
	timeout  time.Duration
}

const journalQueueSize = 64
const journalWriteTimeout = 5 * time.Second

func NewJournal(store Store, logger *log.Logger) *Journal {
	if logger == nil {
		logger = log.Default()
	}
	j := &Journal{
		store:   store,
		queue:   make(chan func(context.Context) error, journalQueueSize),
		done:    make(chan struct{}),
		logger:  logger,
		timeout: journalWriteTimeout,
	}
	j.wg.Add(1)
	go j.run()
	return j
}

func (j *Journal) run() {
	defer j.wg.Done()
	for {
		select {
		case <-j.done:
			// Drain whatever was queued before shutdown.
			for {
				select {
				case write := <-j.queue:
					j.apply(write)
				default:
					return
				}
			}
		case write := <-j.queue:
			j.apply(write)
		}
	}
}

func (j *Journal) apply(write func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if err := write(ctx); err != nil {
		j.logger.Printf("persist write failed: %v", err)
	}
}

func (j *Journal) enqueue(write func(context.Context) error) {
	select {
	case j.queue <- write:
	default:
		j.logger.Printf("persist queue full, dropping record")
	}
}

// RecordSession queues a finished-session write, fire-and-forget.
func (j *Journal) RecordSession(record SessionRecord) {
	if j == nil || j.store == nil {
		return
	}
	j.enqueue(func(ctx context.Context) error {
		return j.store.RecordSession(ctx, record)
	})
}

// RecordHighScore queues a score write, fire-and-forget.
func (j *Journal) RecordHighScore(entry ScoreEntry) {
	if j == nil || j.store == nil {
		return
	}
	j.enqueue(func(ctx context.Context) error {
		return j.store.RecordHighScore(ctx, entry)
	})
}

// Close stops the worker after draining queued writes.
func (j *Journal) Close() {
	if j == nil {
		return
	}
	j.stopOnce.Do(func() {
		close(j.done)
	})
	j.wg.Wait()
}
