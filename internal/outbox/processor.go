package outbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"checkout/internal/domain"
	"checkout/internal/metrics"
	"checkout/internal/repository/outbox_repo"
)

type Publisher interface {
	Produce(ctx context.Context, key, topic string, value []byte) error
}

type Processor struct {
	tx           domain.Transactor
	outboxRepo   outbox_repo.OutboxRepository
	publisher    Publisher
	pollInterval time.Duration
	pollTimeout  time.Duration
	batchSize    int
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

func NewProcessor(
	tx domain.Transactor,
	outboxRepo outbox_repo.OutboxRepository,
	publisher Publisher,
	pollInterval time.Duration,
	pollTimeout time.Duration,
	batchSize int,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		tx:           tx,
		outboxRepo:   outboxRepo,
		publisher:    publisher,
		pollInterval: pollInterval,
		pollTimeout:  pollTimeout,
		batchSize:    batchSize,
		metrics:      m,
		logger:       logger,
	}
}

// Start polls until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) error {
	p.logger.Info("Starting outbox processor...", zap.Duration("poll_interval", p.pollInterval))
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopped.")
			return nil
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error("Failed to process outbox batch", zap.Error(err))
			}
		}
	}
}

// ProcessBatch relays one batch of pending messages and returns how many were sent.
// Messages that fail to publish stay pending and are retried on the next poll;
// the batch stops at the first failure to keep per-key ordering.
func (p *Processor) ProcessBatch(ctx context.Context) (int, error) {
	batchCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
	defer cancel()

	sent := 0
	err := p.tx.WithinTx(batchCtx, func(ctx context.Context, q domain.Querier) error {
		messages, err := p.outboxRepo.GetPendingMessages(ctx, q, p.batchSize)
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			p.logger.Debug("No pending outbox messages found.")
			return nil
		}

		sentIDs := make([]string, 0, len(messages))
		for _, msg := range messages {
			if err := p.publisher.Produce(ctx, msg.Key, msg.Topic, msg.Payload); err != nil {
				p.metrics.OutboxPublished.WithLabelValues(msg.Topic, "error").Inc()
				p.logger.Error("Failed to send outbox message to Kafka",
					zap.String("message_id", msg.ID),
					zap.String("topic", msg.Topic),
					zap.String("message_type", msg.MessageType),
					zap.Error(err))
				break
			}
			p.metrics.OutboxPublished.WithLabelValues(msg.Topic, "ok").Inc()
			sentIDs = append(sentIDs, msg.ID)
		}

		if err := p.outboxRepo.MarkMessagesAsSentTx(ctx, q, sentIDs); err != nil {
			return fmt.Errorf("failed to mark outbox messages as sent: %w", err)
		}
		sent = len(sentIDs)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if sent > 0 {
		p.logger.Info("Outbox messages relayed", zap.Int("count", sent))
	}
	return sent, nil
}
