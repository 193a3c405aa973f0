package queue

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// RowBatch is one imported slice of raw candidate rows, tagged with the
// source they belong to.
type RowBatch struct {
	Source string
	Rows   []map[string]string
}

// RowQueue is an in-memory queue of imported candidate-row batches. Import
// handlers push; the batch processor subscribes and persists.
type RowQueue struct {
	items    chan RowBatch
	done     chan struct{}
	maxSize  int
	closed   bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []func(RowBatch) error
}

// NewRowQueue creates a new row queue with the specified buffer size
func NewRowQueue(bufferSize int, logger *logrus.Logger) *RowQueue {
	return &RowQueue{
		items:    make(chan RowBatch, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func(RowBatch) error, 0),
	}
}

// Push adds a batch of rows to the queue
func (q *RowQueue) Push(batch RowBatch) error {
	// The read lock is held across the send so Close, which takes the write
	// lock before closing the channel, cannot close it mid-send.
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	// Non-blocking send to prevent deadlocks
	select {
	case q.items <- batch:
		q.logger.WithFields(logrus.Fields{
			"source":     batch.Source,
			"batch_size": len(batch.Rows),
		}).Debug("Pushed batch to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler function that will be called for each batch
func (q *RowQueue) Subscribe(handler func(RowBatch) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing items in the queue
func (q *RowQueue) Start() {
	go q.process()
}

// process handles the queue processing loop
func (q *RowQueue) process() {
	for {
		select {
		case <-q.done:
			return
		case batch := <-q.items:
			q.processBatch(batch)
		}
	}
}

// processBatch sends the batch to all subscribed handlers
func (q *RowQueue) processBatch(batch RowBatch) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			q.logger.WithError(err).WithField("source", batch.Source).Error("Handler failed to process batch")
		}
	}
}

// Close stops the queue and prevents new items from being added
func (q *RowQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.done)
	close(q.items)
	return nil
}

// Len returns the current number of batches in the queue
func (q *RowQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *RowQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
