package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"woningwaarde/server/config"
	"woningwaarde/server/internal/database"
	"woningwaarde/server/internal/queue"
)

// BatchProcessor drains the import queue and persists candidate-row batches.
// Imports stay fast: the HTTP handler only enqueues, persistence happens here.
type BatchProcessor struct {
	db     *database.Database
	logger *logrus.Logger
	config *config.Config
	queue  *queue.RowQueue
	ctx    context.Context
	cancel context.CancelFunc
}

func NewBatchProcessor(db *database.Database, q *queue.RowQueue, cfg *config.Config, logger *logrus.Logger) *BatchProcessor {
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchProcessor{
		db:     db,
		queue:  q,
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes the processor to the import queue.
func (p *BatchProcessor) Start() {
	p.queue.Subscribe(func(batch queue.RowBatch) error {
		return p.processBatch(batch)
	})
}

// Stop interrupts any in-flight retry wait.
func (p *BatchProcessor) Stop() {
	p.cancel()
}

// processBatch persists a single batch with transaction and retry logic
func (p *BatchProcessor) processBatch(batch queue.RowBatch) error {
	var err error
	for attempt := 0; attempt <= p.config.BatchProcessing.MaxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Infof("Retrying batch persistence, attempt %d of %d", attempt, p.config.BatchProcessing.MaxRetries)
			select {
			case <-p.ctx.Done():
				return p.ctx.Err()
			case <-time.After(time.Duration(p.config.BatchProcessing.RetryDelay) * time.Second):
			}
		}

		err = p.db.Transaction(func(tx *gorm.DB) error {
			if err := database.SaveCandidateRows(tx, batch.Source, batch.Rows); err != nil {
				return fmt.Errorf("failed to save candidate rows: %w", err)
			}
			return nil
		})

		if err == nil {
			p.logger.WithFields(logrus.Fields{
				"source":     batch.Source,
				"batch_size": len(batch.Rows),
			}).Info("Persisted candidate batch")
			return nil
		}

		p.logger.Errorf("Batch persistence failed: %v", err)
	}

	return fmt.Errorf("failed to persist batch after %d attempts: %w", p.config.BatchProcessing.MaxRetries, err)
}
